// Package tactical implements the scoring, identity and aggregation engine
// behind the tactical console.
//
// Aggregation always flows upwards and is called explicitly: node ownership
// changes trigger an asset recompute, which is followed by a recompute of the
// owning matrix. Every mutation that feeds a matrix rollup holds that matrix's
// lock and runs its write together with the cascade in one store transaction.
package tactical

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/laboveda/internal/db"
	"github.com/thebtf/laboveda/internal/lock"
	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/pkg/models"
)

// Engine is the tactical core. It is safe for concurrent use.
type Engine struct {
	store   db.CatalogStore
	calc    *scoring.Calculator
	locker  lock.Locker
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker replaces the in-process lock, e.g. with a RedisLocker when
// several processes share one database.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithMetrics sets the instruments the engine records to.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a new tactical engine.
func NewEngine(store db.CatalogStore, calc *scoring.Calculator, log zerolog.Logger, opts ...Option) *Engine {
	if calc == nil {
		calc = scoring.NewCalculator(nil)
	}
	e := &Engine{
		store: store,
		calc:  calc,
		log:   log.With().Str("component", "tactical").Logger(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locker == nil {
		e.locker = lock.NewKeyedMutex()
	}
	if e.metrics == nil {
		e.metrics = NoopMetrics()
	}
	return e
}

// Calculator returns the scoring calculator used by the engine.
func (e *Engine) Calculator() *scoring.Calculator {
	return e.calc
}

func matrixKey(code string) string { return "matrix:" + code }

func assetKey(sku string) string { return "asset:" + sku }

// lockKeys acquires the given lock keys in a global order.
func (e *Engine) lockKeys(ctx context.Context, keys ...string) (func(), error) {
	unlock, err := lock.LockAll(ctx, e.locker, keys...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &models.PersistenceError{Op: "acquire lock", Err: err}
	}
	return unlock, nil
}

// lockAsset locks an asset together with the matrix it currently belongs to.
// The owner is re-read after locking so a concurrent move cannot slip through.
func (e *Engine) lockAsset(ctx context.Context, sku string, extra ...string) (*models.Asset, func(), error) {
	const maxAttempts = 3
	for attempt := 0; attempt < maxAttempts; attempt++ {
		asset, err := e.store.GetAsset(ctx, sku)
		if err != nil {
			return nil, nil, err
		}

		keys := append([]string{assetKey(sku), matrixKey(asset.MatrixCode)}, extra...)
		unlock, err := e.lockKeys(ctx, keys...)
		if err != nil {
			return nil, nil, err
		}

		current, err := e.store.GetAsset(ctx, sku)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if current.MatrixCode == asset.MatrixCode {
			return current, unlock, nil
		}
		unlock()
	}
	return nil, nil, &models.PersistenceError{Op: "lock asset", Err: errors.New("asset kept moving between matrices")}
}

// cascadeError marks a failure that happened after the primary write succeeded.
type cascadeError struct {
	err error
}

func (c *cascadeError) Error() string { return c.err.Error() }

func (c *cascadeError) Unwrap() error { return c.err }

// mutation describes one write followed by its aggregation cascade.
type mutation struct {
	op         string
	sku        string
	matrixCode string
	write      func(ctx context.Context, tx db.CatalogStore) error
	cascade    func(ctx context.Context, tx db.CatalogStore) error
}

// apply runs write and cascade in one transaction. Callers must hold the locks.
// If the store cannot roll back and the cascade fails, the write stays and an
// InconsistentStateError tells the caller a recalibration is needed.
func (e *Engine) apply(ctx context.Context, m mutation) error {
	err := e.store.RunInTx(ctx, func(tx db.CatalogStore) error {
		if err := m.write(ctx, tx); err != nil {
			return err
		}
		if m.cascade == nil {
			return nil
		}
		if err := m.cascade(ctx, tx); err != nil {
			return &cascadeError{err: err}
		}
		return nil
	})
	if err == nil {
		return nil
	}

	var ce *cascadeError
	if !errors.As(err, &ce) {
		return err
	}
	if e.store.Atomic() {
		// Rolled back together with the write.
		return ce.err
	}

	e.metrics.inconsistent(ctx, m.op)
	e.log.Warn().
		Err(ce.err).
		Str("op", m.op).
		Str("sku", m.sku).
		Str("matrix", m.matrixCode).
		Msg("aggregate cascade failed after write, recalibration required")
	return &models.InconsistentStateError{Op: m.op, SKU: m.sku, MatrixCode: m.matrixCode, Err: ce.err}
}
