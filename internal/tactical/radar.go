package tactical

import (
	"context"
	"slices"

	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/pkg/models"
)

// Radar returns one of the operator radar lists, optionally scoped to a matrix.
func (e *Engine) Radar(ctx context.Context, kind models.RadarKind, matrixCode string, limit int) ([]models.RadarItem, error) {
	if !slices.Contains(models.RadarKinds, kind) {
		return nil, models.Invalid("kind", "unknown radar "+string(kind))
	}
	matrixCode = normalizeCode(matrixCode)
	if matrixCode != "" {
		if _, err := e.store.GetMatrix(ctx, matrixCode); err != nil {
			return nil, err
		}
	}
	return e.store.Radar(ctx, kind, matrixCode, limit)
}

// KPIs returns the headline counters of the catalog.
func (e *Engine) KPIs(ctx context.Context) (*models.GlobalKPIs, error) {
	kpis, err := e.store.GlobalKPIs(ctx)
	if err != nil {
		return nil, err
	}
	kpis.GlobalScore = e.calc.RoundTotal([]float64{kpis.GlobalScore})
	kpis.GlobalRevenue = e.calc.RoundTotal([]float64{kpis.GlobalRevenue})
	return kpis, nil
}

// ScorePreview scores raw counters without touching the store.
func (e *Engine) ScorePreview(counters models.Counters, revenue float64) scoring.ScoreComponents {
	return e.calc.Components(counters, revenue)
}

// ScoringConfig returns the active scoring configuration.
func (e *Engine) ScoringConfig() *models.ScoringConfig {
	return e.calc.GetConfig()
}
