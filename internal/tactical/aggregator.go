package tactical

import (
	"context"

	"github.com/thebtf/laboveda/internal/db"
	"github.com/thebtf/laboveda/internal/scoring"
	"github.com/thebtf/laboveda/pkg/models"
)

// RecomputeAsset re-derives an asset's score, tier and traffic from the nodes
// currently attached to it and returns the asset's matrix code. It does not
// cascade; the caller recomputes the matrix. An asset without nodes resets to
// score 0 and DUST.
func (e *Engine) RecomputeAsset(ctx context.Context, sku string) (string, error) {
	if sku == "" {
		return "", models.Invalid("sku", "is required")
	}

	unlock, err := e.lockKeys(ctx, assetKey(sku))
	if err != nil {
		return "", err
	}
	defer unlock()

	code, _, err := e.recomputeAsset(ctx, e.store, sku)
	return code, err
}

// RecomputeCollection re-derives a matrix's rollups from its member assets.
// Calls for the same code are serialized.
func (e *Engine) RecomputeCollection(ctx context.Context, code string) error {
	code = normalizeCode(code)
	if code == "" {
		return models.Invalid("matrix_code", "is required")
	}

	unlock, err := e.lockKeys(ctx, matrixKey(code))
	if err != nil {
		return err
	}
	defer unlock()

	_, err = e.recomputeCollection(ctx, e.store, code)
	return err
}

// RefreshAsset recomputes an asset and then its matrix as one operation.
func (e *Engine) RefreshAsset(ctx context.Context, sku string) (*models.Asset, error) {
	if sku == "" {
		return nil, models.Invalid("sku", "is required")
	}

	asset, unlock, err := e.lockAsset(ctx, sku)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = e.apply(ctx, mutation{
		op:         "refresh asset",
		sku:        sku,
		matrixCode: asset.MatrixCode,
		write: func(ctx context.Context, tx db.CatalogStore) error {
			_, _, err := e.recomputeAsset(ctx, tx, sku)
			return err
		},
		cascade: func(ctx context.Context, tx db.CatalogStore) error {
			_, err := e.recomputeCollection(ctx, tx, asset.MatrixCode)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return e.store.GetAsset(ctx, sku)
}

func (e *Engine) recomputeAsset(ctx context.Context, st db.CatalogStore, sku string) (string, models.AssetScore, error) {
	asset, err := st.GetAsset(ctx, sku)
	if err != nil {
		return "", models.AssetScore{}, err
	}

	nodes, err := st.ListNodesByAsset(ctx, sku)
	if err != nil {
		return "", models.AssetScore{}, err
	}

	totals := scoring.SumCounters(nodes)
	score, tier := e.calc.Evaluate(totals, 0)
	result := models.AssetScore{
		AuditedAt: e.now(),
		Tier:      tier,
		Score:     score,
		Traffic:   float64(max(totals.OutboundClicks, 0)),
	}

	if err := st.UpdateAssetScore(ctx, sku, result); err != nil {
		return "", models.AssetScore{}, err
	}

	e.metrics.assetRecomputed(ctx, tier)
	e.log.Debug().
		Str("sku", sku).
		Str("matrix", asset.MatrixCode).
		Int("nodes", len(nodes)).
		Float64("score", score).
		Str("tier", string(tier)).
		Msg("asset recomputed")
	return asset.MatrixCode, result, nil
}

func (e *Engine) recomputeCollection(ctx context.Context, st db.CatalogStore, code string) (models.MatrixRollup, error) {
	if _, err := st.GetMatrix(ctx, code); err != nil {
		return models.MatrixRollup{}, err
	}

	assets, err := st.ListAssetsByMatrix(ctx, code)
	if err != nil {
		return models.MatrixRollup{}, err
	}

	scores := make([]float64, len(assets))
	traffic := make([]float64, len(assets))
	revenue := make([]float64, len(assets))
	for i, a := range assets {
		scores[i] = a.Score
		traffic[i] = a.Traffic
		revenue[i] = a.Revenue
	}

	rollup := models.MatrixRollup{
		AuditedAt:    e.now(),
		AssetCount:   len(assets),
		TotalScore:   e.calc.RoundTotal(scores),
		TotalTraffic: e.calc.RoundTotal(traffic),
		TotalRevenue: e.calc.RoundTotal(revenue),
	}
	if err := st.UpdateMatrixRollup(ctx, code, rollup); err != nil {
		return models.MatrixRollup{}, err
	}

	e.metrics.collectionRecomputed(ctx)
	e.log.Debug().
		Str("matrix", code).
		Int("assets", rollup.AssetCount).
		Float64("score", rollup.TotalScore).
		Msg("matrix recomputed")
	return rollup, nil
}
