package tactical

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/pkg/models"
)

// recalTarget adapts the engine to scoring.Target.
type recalTarget struct {
	e *Engine
}

func (t recalTarget) ListAssetRefs(ctx context.Context) ([]models.AssetRef, error) {
	return t.e.store.ListAssetRefs(ctx)
}

func (t recalTarget) ListMatrixCodes(ctx context.Context) ([]string, error) {
	return t.e.store.ListMatrixCodes(ctx)
}

func (t recalTarget) RecomputeAsset(ctx context.Context, sku string) (string, error) {
	return t.e.RecomputeAsset(ctx, sku)
}

func (t recalTarget) RecomputeCollection(ctx context.Context, code string) error {
	return t.e.RecomputeCollection(ctx, code)
}

// RecalibrateAll re-derives every asset and then every matrix. It is safe to
// run at any time; a second run with no intervening writes changes nothing.
func (e *Engine) RecalibrateAll(ctx context.Context, opts scoring.Options) (*models.RecalibrationReport, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "tactical.RecalibrateAll")
	defer span.End()

	started := time.Now()
	report, err := scoring.NewRecalibrator(recalTarget{e: e}, e.log).Run(ctx, opts)
	elapsed := time.Since(started)

	if report != nil {
		span.SetAttributes(
			attribute.String("run_id", report.RunID),
			attribute.Int("assets_updated", report.AssetsUpdated),
			attribute.Int("assets_failed", len(report.FailedAssets)),
			attribute.Int("matrices_recomputed", report.MatricesRecomputed),
		)
		e.metrics.recalibrationDone(ctx, elapsed, err == nil && report.Clean())
	}
	if err != nil {
		span.RecordError(err)
		return report, err
	}
	if !report.Clean() {
		e.log.Warn().
			Str("run_id", report.RunID).
			Int("failed_assets", len(report.FailedAssets)).
			Int("failed_matrices", len(report.FailedMatrices)).
			Msg("recalibration finished with failures")
	}
	return report, nil
}
