// Package bootstrap wires configuration into a running tactical engine.
// It is shared by the worker and the operator CLI.
package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm/logger"

	"github.com/thebtf/laboveda/internal/config"
	gormdb "github.com/thebtf/laboveda/internal/db/gorm"
	"github.com/thebtf/laboveda/internal/lock"
	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/internal/tactical"
)

// Runtime holds the opened store and the engine built on it.
type Runtime struct {
	Store  *gormdb.Store
	Calc   *scoring.Calculator
	Engine *tactical.Engine
	redis  *lock.RedisLocker
}

// NewLogger builds the process logger from the log settings. Unknown levels
// fall back to info.
func NewLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.LogFormat != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Open connects to the database, runs migrations and builds the engine.
// A configured Redis address replaces the in-process locks.
func Open(cfg *config.Config, log zerolog.Logger) (*Runtime, error) {
	store, err := gormdb.NewStore(gormdb.Config{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DBDSN,
		MaxConns: cfg.MaxConns,
		LogLevel: logger.Silent,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rt := &Runtime{
		Store: store,
		Calc:  scoring.NewCalculator(cfg.ScoringConfig()),
	}

	metrics, err := tactical.NewMetrics(nil)
	if err != nil {
		log.Warn().Err(err).Msg("metrics unavailable, recording disabled")
		metrics = tactical.NoopMetrics()
	}
	opts := []tactical.Option{tactical.WithMetrics(metrics)}

	if cfg.RedisAddr != "" {
		rl, err := lock.NewRedisLocker(lock.RedisConfig{Addr: cfg.RedisAddr, Prefix: cfg.RedisPrefix}, log)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		rt.redis = rl
		opts = append(opts, tactical.WithLocker(rl))
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis locks")
	}

	rt.Engine = tactical.NewEngine(gormdb.NewCatalogStore(store), rt.Calc, log, opts...)
	log.Debug().Str("driver", store.Driver()).Msg("catalog store ready")
	return rt, nil
}

// ApplyConfig pushes reloaded scoring settings into the running calculator.
func (rt *Runtime) ApplyConfig(cfg *config.Config) error {
	return rt.Calc.UpdateConfig(cfg.ScoringConfig())
}

// Close releases the lock pool and the database.
func (rt *Runtime) Close() error {
	var errs []error
	if rt.redis != nil {
		errs = append(errs, rt.redis.Close())
	}
	errs = append(errs, rt.Store.Close())
	return errors.Join(errs...)
}
