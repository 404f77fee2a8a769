package gorm

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/thebtf/laboveda/pkg/models"
)

type radarRow struct {
	SKU        string  `gorm:"column:sku"`
	MatrixCode string  `gorm:"column:matrix_code"`
	Name       string  `gorm:"column:name"`
	Tier       string  `gorm:"column:tier"`
	Score      float64 `gorm:"column:score"`
	NodeCount  int64   `gorm:"column:node_count"`
}

var radarIssues = map[models.RadarKind]string{
	models.RadarMonetizationGap:   "high-tier asset without monetization link",
	models.RadarInfrastructureGap: "asset without file-source link",
	models.RadarGhostAssets:       "asset without signal-nodes",
	models.RadarDustCleaner:       "DUST asset, purge or archive candidate",
}

// Radar returns the assets matching one operator radar, optionally within one matrix.
func (s *CatalogStore) Radar(ctx context.Context, kind models.RadarKind, matrixCode string, limit int) ([]models.RadarItem, error) {
	issue, ok := radarIssues[kind]
	if !ok {
		return nil, models.Invalid("kind", fmt.Sprintf("unknown radar %q", kind))
	}

	q := s.db.WithContext(ctx).
		Table("business_assets AS a").
		Select(`a.sku AS sku, a.primary_matrix_id AS matrix_code, a.display_name AS name,
			a.rarity_tier AS tier, a.total_score AS score, COUNT(n.pin_id) AS node_count`).
		Joins("LEFT JOIN pinterest_nodes AS n ON n.asset_sku = a.sku").
		Group("a.sku, a.primary_matrix_id, a.display_name, a.rarity_tier, a.total_score")

	if matrixCode != "" {
		q = q.Where("a.primary_matrix_id = ?", matrixCode)
	}
	q = applyRadarFilter(q, kind)

	var rows []radarRow
	if err := q.Limit(clampLimit(limit, 50)).Scan(&rows).Error; err != nil {
		return nil, translate("radar "+string(kind), "radar", string(kind), err)
	}

	items := make([]models.RadarItem, len(rows))
	for i, r := range rows {
		name := r.Name
		if name == "" {
			name = r.SKU
		}
		items[i] = models.RadarItem{
			SKU:        r.SKU,
			MatrixCode: r.MatrixCode,
			Name:       name,
			Tier:       models.RarityTier(r.Tier),
			Issue:      issue,
			Score:      r.Score,
			NodeCount:  r.NodeCount,
		}
	}
	return items, nil
}

func applyRadarFilter(q *gorm.DB, kind models.RadarKind) *gorm.DB {
	switch kind {
	case models.RadarMonetizationGap:
		return q.Where("a.rarity_tier IN ?", []string{string(models.TierRare), string(models.TierLegendary)}).
			Where("(a.payhip_link IS NULL OR a.payhip_link = '')").
			Order("a.total_score DESC, a.sku ASC")
	case models.RadarInfrastructureGap:
		return q.Where("(a.drive_link IS NULL OR a.drive_link = '')").
			Order("a.total_score DESC, a.sku ASC")
	case models.RadarGhostAssets:
		return q.Having("COUNT(n.pin_id) = 0").
			Order("a.created_at ASC, a.sku ASC")
	default:
		return q.Where("a.rarity_tier = ?", string(models.TierDust)).
			Order("a.total_score ASC, a.sku ASC")
	}
}

// GlobalKPIs returns the headline counters across the whole catalog.
func (s *CatalogStore) GlobalKPIs(ctx context.Context) (*models.GlobalKPIs, error) {
	kpis := &models.GlobalKPIs{}
	dbc := s.db.WithContext(ctx)

	if err := dbc.Model(&Matrix{}).Count(&kpis.TotalMatrices).Error; err != nil {
		return nil, translate("count matrices", "kpis", "", err)
	}
	if err := dbc.Model(&Asset{}).Count(&kpis.TotalAssets).Error; err != nil {
		return nil, translate("count assets", "kpis", "", err)
	}
	if err := dbc.Model(&Node{}).Count(&kpis.TotalNodes).Error; err != nil {
		return nil, translate("count nodes", "kpis", "", err)
	}
	if err := dbc.Model(&Node{}).Where("asset_sku IS NULL").Count(&kpis.OrphanNodes).Error; err != nil {
		return nil, translate("count orphan nodes", "kpis", "", err)
	}

	var sums struct {
		Score   float64 `gorm:"column:score"`
		Revenue float64 `gorm:"column:revenue"`
	}
	err := dbc.Model(&Asset{}).
		Select("COALESCE(SUM(total_score), 0) AS score, COALESCE(SUM(revenue_score), 0) AS revenue").
		Scan(&sums).Error
	if err != nil {
		return nil, translate("sum assets", "kpis", "", err)
	}
	kpis.GlobalScore = sums.Score
	kpis.GlobalRevenue = sums.Revenue
	return kpis, nil
}
