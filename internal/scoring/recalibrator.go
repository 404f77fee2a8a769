package scoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/laboveda/pkg/models"
)

// Target defines the operations the recalibrator drives. RecomputeAsset must
// not cascade to the matrix; RecomputeCollection must serialize per code.
type Target interface {
	ListAssetRefs(ctx context.Context) ([]models.AssetRef, error)
	ListMatrixCodes(ctx context.Context) ([]string, error)
	RecomputeAsset(ctx context.Context, sku string) (string, error)
	RecomputeCollection(ctx context.Context, code string) error
}

// Phase identifies the stage a recalibration run is in.
type Phase string

const (
	PhaseAssets   Phase = "assets"
	PhaseMatrices Phase = "matrices"
)

// Progress is reported after every processed asset and matrix.
type Progress struct {
	Phase Phase `json:"phase"`
	Done  int   `json:"done"`
	Total int   `json:"total"`
}

// ProgressFunc receives progress updates. It may be called from several goroutines.
type ProgressFunc func(Progress)

// Options tunes a single recalibration run.
type Options struct {
	Progress    ProgressFunc
	Concurrency int
}

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 4

// Recalibrator re-derives every asset score from its nodes, then recomputes
// each affected matrix exactly once.
type Recalibrator struct {
	log    zerolog.Logger
	target Target
	now    func() time.Time
}

// NewRecalibrator creates a new bulk recalibrator.
func NewRecalibrator(target Target, log zerolog.Logger) *Recalibrator {
	return &Recalibrator{
		target: target,
		log:    log.With().Str("component", "recalibrator").Logger(),
		now:    time.Now,
	}
}

// Run walks every asset, then every distinct matrix. A single failure never
// aborts the run; failures are accumulated in the report. The returned error is
// non-nil only when the asset listing fails or ctx is canceled, in which case
// the partial report is still returned.
func (r *Recalibrator) Run(ctx context.Context, opts Options) (*models.RecalibrationReport, error) {
	started := r.now()
	report := &models.RecalibrationReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}
	defer func() { report.Duration = time.Since(started) }()

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	refs, err := r.target.ListAssetRefs(ctx)
	if err != nil {
		return report, fmt.Errorf("list assets: %w", err)
	}
	report.TotalAssets = len(refs)

	codes := make(map[string]struct{})
	for _, ref := range refs {
		if ref.MatrixCode != "" {
			codes[ref.MatrixCode] = struct{}{}
		}
	}
	// Matrices that lost their last asset still need their rollup zeroed.
	if all, err := r.target.ListMatrixCodes(ctx); err != nil {
		r.log.Warn().Err(err).Msg("failed to list matrices, recomputing only matrices with assets")
	} else {
		for _, code := range all {
			codes[code] = struct{}{}
		}
	}

	var mu sync.Mutex
	done := 0

	// Phase 1: assets, bounded parallelism.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, ref := range refs {
		if gctx.Err() != nil {
			break
		}
		ref := ref
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := r.target.RecomputeAsset(gctx, ref.SKU)

			mu.Lock()
			if err != nil {
				report.FailedAssets = append(report.FailedAssets, models.FailedItem{Key: ref.SKU, Error: err.Error()})
			} else {
				report.AssetsUpdated++
			}
			done++
			p := Progress{Phase: PhaseAssets, Done: done, Total: len(refs)}
			mu.Unlock()

			if err != nil {
				r.log.Error().Err(err).Str("sku", ref.SKU).Msg("asset recompute failed")
			}
			if opts.Progress != nil {
				opts.Progress(p)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		report.Canceled = true
		r.log.Warn().Str("run_id", report.RunID).Int("assets_updated", report.AssetsUpdated).Msg("recalibration canceled")
		return report, err
	}

	// Phase 2: one recompute per distinct matrix. The target serializes per code.
	ordered := make([]string, 0, len(codes))
	for code := range codes {
		ordered = append(ordered, code)
	}
	sort.Strings(ordered)

	done = 0
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, code := range ordered {
		if gctx.Err() != nil {
			break
		}
		code := code
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			err := r.target.RecomputeCollection(gctx, code)

			mu.Lock()
			if err != nil {
				report.FailedMatrices = append(report.FailedMatrices, models.FailedItem{Key: code, Error: err.Error()})
			} else {
				report.MatricesRecomputed++
			}
			done++
			p := Progress{Phase: PhaseMatrices, Done: done, Total: len(ordered)}
			mu.Unlock()

			if err != nil {
				r.log.Error().Err(err).Str("matrix", code).Msg("matrix recompute failed")
			}
			if opts.Progress != nil {
				opts.Progress(p)
			}
			return nil
		})
	}
	_ = g.Wait()

	sortFailures(report.FailedAssets)
	sortFailures(report.FailedMatrices)

	if err := ctx.Err(); err != nil {
		report.Canceled = true
		return report, err
	}

	r.log.Info().
		Str("run_id", report.RunID).
		Int("assets_updated", report.AssetsUpdated).
		Int("assets_failed", len(report.FailedAssets)).
		Int("matrices", report.MatricesRecomputed).
		Dur("elapsed", time.Since(started)).
		Msg("recalibration complete")

	return report, nil
}

func sortFailures(items []models.FailedItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })
}
