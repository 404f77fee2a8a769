package tactical

import (
	"context"
	"math"
	"strings"

	"github.com/thebtf/laboveda/internal/db"
	"github.com/thebtf/laboveda/pkg/models"
)

// CreateAssetRequest describes a blank asset. An empty SKU draws the next
// identity of the matrix.
type CreateAssetRequest struct {
	MatrixCode       string `json:"matrix_code"`
	SKU              string `json:"sku,omitempty"`
	DisplayName      string `json:"display_name,omitempty"`
	FileSourceLink   string `json:"file_source_link,omitempty"`
	MonetizationLink string `json:"monetization_link,omitempty"`
}

// CreateAsset inserts a blank asset (score 0, DUST) and recomputes its matrix.
func (e *Engine) CreateAsset(ctx context.Context, req CreateAssetRequest) (*models.Asset, error) {
	req.MatrixCode = normalizeCode(req.MatrixCode)
	req.SKU = strings.TrimSpace(req.SKU)
	if req.MatrixCode == "" {
		return nil, models.Invalid("matrix_code", "is required")
	}

	if req.SKU == "" {
		id, err := e.NextIdentity(ctx, req.MatrixCode)
		if err != nil {
			return nil, err
		}
		req.SKU = id.SKU
		if req.DisplayName == "" {
			req.DisplayName = id.DisplayName
		}
	}
	if req.DisplayName == "" {
		req.DisplayName = req.SKU
	}

	unlock, err := e.lockKeys(ctx, assetKey(req.SKU), matrixKey(req.MatrixCode))
	if err != nil {
		return nil, err
	}
	defer unlock()

	asset := &models.Asset{
		SKU:              req.SKU,
		MatrixCode:       req.MatrixCode,
		DisplayName:      req.DisplayName,
		Tier:             models.TierDust,
		FileSourceLink:   req.FileSourceLink,
		MonetizationLink: req.MonetizationLink,
	}
	err = e.apply(ctx, mutation{
		op:         "create asset",
		sku:        req.SKU,
		matrixCode: req.MatrixCode,
		write: func(ctx context.Context, tx db.CatalogStore) error {
			if _, err := tx.GetMatrix(ctx, req.MatrixCode); err != nil {
				return err
			}
			return tx.CreateAsset(ctx, asset)
		},
		cascade: func(ctx context.Context, tx db.CatalogStore) error {
			_, err := e.recomputeCollection(ctx, tx, req.MatrixCode)
			return err
		},
	})
	if err != nil {
		e.logFailure(err, "create asset", req.SKU, req.MatrixCode, "")
		return nil, err
	}

	e.log.Info().Str("sku", asset.SKU).Str("matrix", asset.MatrixCode).Msg("asset created")
	return asset, nil
}

// GetAsset returns an asset by SKU.
func (e *Engine) GetAsset(ctx context.Context, sku string) (*models.Asset, error) {
	if sku == "" {
		return nil, models.Invalid("sku", "is required")
	}
	return e.store.GetAsset(ctx, sku)
}

// ListAssetsByMatrix returns the members of a matrix, best score first.
func (e *Engine) ListAssetsByMatrix(ctx context.Context, code string) ([]*models.Asset, error) {
	code = normalizeCode(code)
	if _, err := e.store.GetMatrix(ctx, code); err != nil {
		return nil, err
	}
	return e.store.ListAssetsByMatrix(ctx, code)
}

// SearchAssets matches query against SKU and display name.
func (e *Engine) SearchAssets(ctx context.Context, query string, limit int) ([]*models.Asset, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.Invalid("q", "search query is required")
	}
	return e.store.SearchAssets(ctx, query, limit)
}

// ListRecentAssets returns the most recently audited assets.
func (e *Engine) ListRecentAssets(ctx context.Context, limit int) ([]*models.Asset, error) {
	return e.store.ListRecentAssets(ctx, limit)
}

// UpdateAssetLinks edits the external link fields. Links do not feed the
// score, so nothing is recomputed.
func (e *Engine) UpdateAssetLinks(ctx context.Context, sku string, links models.AssetLinks) (*models.Asset, error) {
	if sku == "" {
		return nil, models.Invalid("sku", "is required")
	}

	unlock, err := e.lockKeys(ctx, assetKey(sku))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := e.store.UpdateAssetLinks(ctx, sku, links); err != nil {
		e.logFailure(err, "update asset links", sku, "", "")
		return nil, err
	}
	return e.store.GetAsset(ctx, sku)
}

// SetAssetRevenue overwrites an asset's revenue and recomputes its matrix.
func (e *Engine) SetAssetRevenue(ctx context.Context, sku string, revenue float64) (*models.Asset, error) {
	if sku == "" {
		return nil, models.Invalid("sku", "is required")
	}
	if math.IsNaN(revenue) || math.IsInf(revenue, 0) || revenue < 0 {
		return nil, models.Invalid("revenue", "must be a finite, non-negative number")
	}

	asset, unlock, err := e.lockAsset(ctx, sku)
	if err != nil {
		return nil, err
	}
	defer unlock()

	err = e.apply(ctx, mutation{
		op:         "set asset revenue",
		sku:        sku,
		matrixCode: asset.MatrixCode,
		write: func(ctx context.Context, tx db.CatalogStore) error {
			return tx.SetAssetRevenue(ctx, sku, e.calc.RoundTotal([]float64{revenue}))
		},
		cascade: func(ctx context.Context, tx db.CatalogStore) error {
			_, err := e.recomputeCollection(ctx, tx, asset.MatrixCode)
			return err
		},
	})
	if err != nil {
		e.logFailure(err, "set asset revenue", sku, asset.MatrixCode, "")
		return nil, err
	}
	return e.store.GetAsset(ctx, sku)
}

// MoveAsset reassigns an asset to another matrix and recomputes both.
func (e *Engine) MoveAsset(ctx context.Context, sku, matrixCode string) (*models.Asset, error) {
	matrixCode = normalizeCode(matrixCode)
	switch {
	case sku == "":
		return nil, models.Invalid("sku", "is required")
	case matrixCode == "":
		return nil, models.Invalid("matrix_code", "is required")
	}

	asset, unlock, err := e.lockAsset(ctx, sku, matrixKey(matrixCode))
	if err != nil {
		return nil, err
	}
	defer unlock()

	from := asset.MatrixCode
	if from == matrixCode {
		return asset, nil
	}

	err = e.apply(ctx, mutation{
		op:         "move asset",
		sku:        sku,
		matrixCode: matrixCode,
		write: func(ctx context.Context, tx db.CatalogStore) error {
			if _, err := tx.GetMatrix(ctx, matrixCode); err != nil {
				return err
			}
			return tx.MoveAsset(ctx, sku, matrixCode)
		},
		cascade: func(ctx context.Context, tx db.CatalogStore) error {
			if _, err := e.recomputeCollection(ctx, tx, from); err != nil {
				return err
			}
			_, err := e.recomputeCollection(ctx, tx, matrixCode)
			return err
		},
	})
	if err != nil {
		e.logFailure(err, "move asset", sku, matrixCode, "")
		return nil, err
	}

	e.log.Info().Str("sku", sku).Str("from", from).Str("to", matrixCode).Msg("asset moved")
	return e.store.GetAsset(ctx, sku)
}

// DeleteAsset removes an asset, returning its nodes to the orphan pool, and
// recomputes its matrix.
func (e *Engine) DeleteAsset(ctx context.Context, sku string) error {
	if sku == "" {
		return models.Invalid("sku", "is required")
	}

	asset, unlock, err := e.lockAsset(ctx, sku)
	if err != nil {
		return err
	}
	defer unlock()

	var orphaned int64
	err = e.apply(ctx, mutation{
		op:         "delete asset",
		sku:        sku,
		matrixCode: asset.MatrixCode,
		write: func(ctx context.Context, tx db.CatalogStore) error {
			n, err := tx.OrphanAssetNodes(ctx, sku)
			if err != nil {
				return err
			}
			orphaned = n
			return tx.DeleteAsset(ctx, sku)
		},
		cascade: func(ctx context.Context, tx db.CatalogStore) error {
			_, err := e.recomputeCollection(ctx, tx, asset.MatrixCode)
			return err
		},
	})
	if err != nil {
		e.logFailure(err, "delete asset", sku, asset.MatrixCode, "")
		return err
	}

	e.log.Info().Str("sku", sku).Str("matrix", asset.MatrixCode).Int64("orphaned_nodes", orphaned).Msg("asset deleted")
	return nil
}
