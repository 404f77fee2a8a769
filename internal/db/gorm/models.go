package gorm

import (
	"database/sql"
	"time"

	"github.com/thebtf/laboveda/pkg/models"
)

// GORM Models. Table and column names follow the dashboard's existing schema.

// Matrix is a row of matrix_registry.
type Matrix struct {
	LastAuditAt  sql.NullTime `gorm:"column:last_audit_at"`
	CreatedAt    time.Time    `gorm:"not null"`
	Code         string       `gorm:"column:matrix_code;primaryKey;size:64"`
	VisualName   string       `gorm:"column:visual_name;not null;default:''"`
	Type         string       `gorm:"column:type;type:text;not null;default:'PRIMARY';check:type IN ('PRIMARY', 'SECONDARY')"`
	AssetCount   int          `gorm:"column:asset_count;not null;default:0"`
	TotalScore   float64      `gorm:"column:total_score;not null;default:0;index:idx_matrix_total_score,sort:desc"`
	TotalTraffic float64      `gorm:"column:total_traffic_score;not null;default:0"`
	TotalRevenue float64      `gorm:"column:total_revenue_score;not null;default:0"`
}

func (Matrix) TableName() string { return "matrix_registry" }

// Asset is a row of business_assets.
type Asset struct {
	LastAuditAt  sql.NullTime   `gorm:"column:last_audit_at;index:idx_assets_last_audit,sort:desc"`
	CreatedAt    time.Time      `gorm:"not null"`
	Matrix       *Matrix        `gorm:"foreignKey:MatrixCode;references:Code;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	DriveLink    sql.NullString `gorm:"column:drive_link"`
	PayhipLink   sql.NullString `gorm:"column:payhip_link"`
	SKU          string         `gorm:"column:sku;primaryKey;size:128"`
	MatrixCode   string         `gorm:"column:primary_matrix_id;size:64;not null;index:idx_assets_matrix"`
	DisplayName  string         `gorm:"column:display_name;not null;default:''"`
	RarityTier   string         `gorm:"column:rarity_tier;type:text;not null;default:'DUST';check:rarity_tier IN ('DUST', 'COMMON', 'UNCOMMON', 'RARE', 'LEGENDARY');index:idx_assets_tier"`
	TotalScore   float64        `gorm:"column:total_score;not null;default:0;index:idx_assets_total_score,sort:desc"`
	TrafficScore float64        `gorm:"column:traffic_score;not null;default:0"`
	RevenueScore float64        `gorm:"column:revenue_score;not null;default:0"`
}

func (Asset) TableName() string { return "business_assets" }

// Node is a row of pinterest_nodes.
type Node struct {
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time      `gorm:"not null"`
	Asset          *Asset         `gorm:"foreignKey:AssetSKU;references:SKU;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
	AssetSKU       sql.NullString `gorm:"column:asset_sku;size:128;index:idx_nodes_asset"`
	PinID          string         `gorm:"column:pin_id;primaryKey;size:128"`
	Title          string         `gorm:"column:title;not null;default:''"`
	ImageURL       string         `gorm:"column:image_url;not null;default:''"`
	Impressions    int64          `gorm:"column:cached_impressions;not null;default:0"`
	OutboundClicks int64          `gorm:"column:cached_outbound_clicks;not null;default:0"`
	Saves          int64          `gorm:"column:cached_pin_clicks;not null;default:0"`
}

func (Node) TableName() string { return "pinterest_nodes" }

// MatrixSequence holds the last asset sequence number issued per matrix.
type MatrixSequence struct {
	Matrix     *Matrix `gorm:"foreignKey:MatrixCode;references:Code;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	MatrixCode string  `gorm:"column:matrix_code;primaryKey;size:64"`
	LastValue  int64   `gorm:"column:last_value;not null;default:0"`
}

func (MatrixSequence) TableName() string { return "matrix_sequences" }

func toModelMatrix(m *Matrix) *models.Matrix {
	out := &models.Matrix{
		Code:         m.Code,
		VisualName:   m.VisualName,
		Kind:         models.MatrixKind(m.Type),
		AssetCount:   m.AssetCount,
		TotalScore:   m.TotalScore,
		TotalTraffic: m.TotalTraffic,
		TotalRevenue: m.TotalRevenue,
		CreatedAt:    m.CreatedAt,
	}
	if m.LastAuditAt.Valid {
		t := m.LastAuditAt.Time
		out.LastAuditAt = &t
	}
	return out
}

func toModelAsset(a *Asset) *models.Asset {
	out := &models.Asset{
		SKU:              a.SKU,
		MatrixCode:       a.MatrixCode,
		DisplayName:      a.DisplayName,
		Tier:             models.RarityTier(a.RarityTier),
		Score:            a.TotalScore,
		Traffic:          a.TrafficScore,
		Revenue:          a.RevenueScore,
		FileSourceLink:   a.DriveLink.String,
		MonetizationLink: a.PayhipLink.String,
		CreatedAt:        a.CreatedAt,
	}
	if a.LastAuditAt.Valid {
		t := a.LastAuditAt.Time
		out.LastAuditAt = &t
	}
	return out
}

func toModelAssets(rows []Asset) []*models.Asset {
	out := make([]*models.Asset, len(rows))
	for i := range rows {
		out[i] = toModelAsset(&rows[i])
	}
	return out
}

func toModelNode(n *Node) *models.Node {
	out := &models.Node{
		ID:        n.PinID,
		Title:     n.Title,
		ImageURL:  n.ImageURL,
		CreatedAt: n.CreatedAt,
		Counters: models.Counters{
			Impressions:    n.Impressions,
			OutboundClicks: n.OutboundClicks,
			Saves:          n.Saves,
		},
	}
	if n.AssetSKU.Valid && n.AssetSKU.String != "" {
		sku := n.AssetSKU.String
		out.AssetSKU = &sku
	}
	return out
}

func toModelNodes(rows []Node) []*models.Node {
	out := make([]*models.Node, len(rows))
	for i := range rows {
		out[i] = toModelNode(&rows[i])
	}
	return out
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
