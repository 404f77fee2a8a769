package gorm

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/thebtf/laboveda/pkg/models"
)

// GetAsset retrieves an asset by SKU.
func (s *CatalogStore) GetAsset(ctx context.Context, sku string) (*models.Asset, error) {
	var row Asset
	err := s.db.WithContext(ctx).Where("sku = ?", sku).First(&row).Error
	if err != nil {
		return nil, translate("get asset", "asset", sku, err)
	}
	return toModelAsset(&row), nil
}

// ListAssetsByMatrix returns the members of a matrix, best score first.
func (s *CatalogStore) ListAssetsByMatrix(ctx context.Context, code string) ([]*models.Asset, error) {
	var rows []Asset
	err := s.db.WithContext(ctx).
		Where("primary_matrix_id = ?", code).
		Order("total_score DESC, sku ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translate("list assets by matrix", "matrix", code, err)
	}
	return toModelAssets(rows), nil
}

// ListAssetRefs returns the SKU and matrix of every asset.
func (s *CatalogStore) ListAssetRefs(ctx context.Context) ([]models.AssetRef, error) {
	ctx, cancel := bulkContext(ctx)
	defer cancel()

	var rows []struct {
		SKU        string `gorm:"column:sku"`
		MatrixCode string `gorm:"column:primary_matrix_id"`
	}
	err := s.db.WithContext(ctx).
		Model(&Asset{}).
		Select("sku, primary_matrix_id").
		Order("sku ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, translate("list asset refs", "asset", "", err)
	}

	refs := make([]models.AssetRef, len(rows))
	for i, r := range rows {
		refs[i] = models.AssetRef{SKU: r.SKU, MatrixCode: r.MatrixCode}
	}
	return refs, nil
}

// CountAssetsByMatrix returns the number of assets in a matrix.
func (s *CatalogStore) CountAssetsByMatrix(ctx context.Context, code string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Asset{}).
		Where("primary_matrix_id = ?", code).
		Count(&count).Error
	if err != nil {
		return 0, translate("count assets", "matrix", code, err)
	}
	return count, nil
}

// SearchAssets matches query against SKU and display name, case-insensitively.
func (s *CatalogStore) SearchAssets(ctx context.Context, query string, limit int) ([]*models.Asset, error) {
	pattern := likePattern(query)
	var rows []Asset
	err := s.db.WithContext(ctx).
		Where("LOWER(sku) LIKE ? ESCAPE '\\' OR LOWER(display_name) LIKE ? ESCAPE '\\'", pattern, pattern).
		Order("total_score DESC, sku ASC").
		Limit(clampLimit(limit, 20)).
		Find(&rows).Error
	if err != nil {
		return nil, translate("search assets", "asset", query, err)
	}
	return toModelAssets(rows), nil
}

// ListRecentAssets returns the most recently audited assets. Never-audited assets come last.
func (s *CatalogStore) ListRecentAssets(ctx context.Context, limit int) ([]*models.Asset, error) {
	var rows []Asset
	err := s.db.WithContext(ctx).
		Order("last_audit_at IS NULL, last_audit_at DESC, sku ASC").
		Limit(clampLimit(limit, 20)).
		Find(&rows).Error
	if err != nil {
		return nil, translate("list recent assets", "asset", "", err)
	}
	return toModelAssets(rows), nil
}

// CreateAsset inserts a new asset.
func (s *CatalogStore) CreateAsset(ctx context.Context, a *models.Asset) error {
	tier := a.Tier
	if tier == "" {
		tier = models.TierDust
	}
	row := &Asset{
		SKU:          a.SKU,
		MatrixCode:   a.MatrixCode,
		DisplayName:  a.DisplayName,
		RarityTier:   string(tier),
		TotalScore:   a.Score,
		TrafficScore: a.Traffic,
		RevenueScore: a.Revenue,
		DriveLink:    nullStringPtr(&a.FileSourceLink),
		PayhipLink:   nullStringPtr(&a.MonetizationLink),
		LastAuditAt:  nullTime(a.LastAuditAt),
		CreatedAt:    a.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(row).Error; err != nil {
		return translate("create asset", "asset", a.SKU, err)
	}
	a.Tier = tier
	a.CreatedAt = row.CreatedAt
	return nil
}

// UpdateAssetScore writes the derived score, tier and traffic of an asset.
func (s *CatalogStore) UpdateAssetScore(ctx context.Context, sku string, score models.AssetScore) error {
	auditedAt := score.AuditedAt
	if auditedAt.IsZero() {
		auditedAt = time.Now()
	}
	return s.updateAsset(ctx, "update asset score", sku, map[string]interface{}{
		"rarity_tier":   string(score.Tier),
		"total_score":   score.Score,
		"traffic_score": score.Traffic,
		"last_audit_at": auditedAt,
	})
}

// UpdateAssetLinks sets the non-nil link fields. An empty string clears a link.
func (s *CatalogStore) UpdateAssetLinks(ctx context.Context, sku string, links models.AssetLinks) error {
	updates := map[string]interface{}{}
	if links.FileSource != nil {
		updates["drive_link"] = nullStringPtr(links.FileSource)
	}
	if links.Monetization != nil {
		updates["payhip_link"] = nullStringPtr(links.Monetization)
	}
	if len(updates) == 0 {
		_, err := s.GetAsset(ctx, sku)
		return err
	}
	return s.updateAsset(ctx, "update asset links", sku, updates)
}

// SetAssetRevenue overwrites the revenue figure of an asset.
func (s *CatalogStore) SetAssetRevenue(ctx context.Context, sku string, revenue float64) error {
	return s.updateAsset(ctx, "set asset revenue", sku, map[string]interface{}{
		"revenue_score": revenue,
	})
}

// MoveAsset reassigns an asset to another matrix.
func (s *CatalogStore) MoveAsset(ctx context.Context, sku, matrixCode string) error {
	return s.updateAsset(ctx, "move asset", sku, map[string]interface{}{
		"primary_matrix_id": matrixCode,
	})
}

// DeleteAsset removes an asset. Attached nodes are orphaned by the foreign key.
func (s *CatalogStore) DeleteAsset(ctx context.Context, sku string) error {
	result := s.db.WithContext(ctx).Where("sku = ?", sku).Delete(&Asset{})
	if result.Error != nil {
		return translate("delete asset", "asset", sku, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NotFound("asset", sku)
	}
	return nil
}

func (s *CatalogStore) updateAsset(ctx context.Context, op, sku string, updates map[string]interface{}) error {
	result := s.db.WithContext(ctx).
		Model(&Asset{}).
		Where("sku = ?", sku).
		Updates(updates)
	if result.Error != nil {
		return translate(op, "asset", sku, result.Error)
	}
	if result.RowsAffected == 0 {
		return models.NotFound("asset", sku)
	}
	return nil
}
