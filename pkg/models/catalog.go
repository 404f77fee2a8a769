package models

import "time"

// MatrixKind is the category of a matrix.
type MatrixKind string

const (
	MatrixPrimary   MatrixKind = "PRIMARY"
	MatrixSecondary MatrixKind = "SECONDARY"
)

// Valid reports whether k is a known matrix kind.
func (k MatrixKind) Valid() bool {
	return k == MatrixPrimary || k == MatrixSecondary
}

// Matrix is a named collection of assets. Rollup fields are owned by the
// collection aggregator and are never written by callers.
type Matrix struct {
	LastAuditAt  *time.Time `json:"last_audit_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	Code         string     `json:"code"`
	VisualName   string     `json:"visual_name"`
	Kind         MatrixKind `json:"kind"`
	AssetCount   int        `json:"asset_count"`
	TotalScore   float64    `json:"total_score"`
	TotalTraffic float64    `json:"total_traffic"`
	TotalRevenue float64    `json:"total_revenue"`
}

// DisplayName returns the visual name, falling back to the code.
func (m *Matrix) DisplayName() string {
	if m.VisualName != "" {
		return m.VisualName
	}
	return m.Code
}

// MatrixRollup is the set of derived metrics persisted on a matrix.
type MatrixRollup struct {
	AuditedAt    time.Time `json:"audited_at"`
	AssetCount   int       `json:"asset_count"`
	TotalScore   float64   `json:"total_score"`
	TotalTraffic float64   `json:"total_traffic"`
	TotalRevenue float64   `json:"total_revenue"`
}

// Asset is the unit of value, identified by its immutable SKU.
type Asset struct {
	LastAuditAt      *time.Time `json:"last_audit_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	SKU              string     `json:"sku"`
	MatrixCode       string     `json:"matrix_code"`
	DisplayName      string     `json:"display_name"`
	Tier             RarityTier `json:"tier"`
	FileSourceLink   string     `json:"file_source_link,omitempty"`
	MonetizationLink string     `json:"monetization_link,omitempty"`
	Score            float64    `json:"score"`
	Traffic          float64    `json:"traffic"`
	Revenue          float64    `json:"revenue"`
}

// AssetScore is the derived state written by the asset aggregator.
type AssetScore struct {
	AuditedAt time.Time  `json:"audited_at"`
	Tier      RarityTier `json:"tier"`
	Score     float64    `json:"score"`
	Traffic   float64    `json:"traffic"`
}

// AssetLinks holds the two optional external link fields. A nil field is left unchanged.
type AssetLinks struct {
	FileSource   *string `json:"file_source,omitempty"`
	Monetization *string `json:"monetization,omitempty"`
}

// AssetRef is the minimal projection used to walk every asset.
type AssetRef struct {
	SKU        string `json:"sku"`
	MatrixCode string `json:"matrix_code"`
}

// Counters are the raw engagement metrics of a signal-node (or a sum of them).
type Counters struct {
	Impressions    int64 `json:"impressions"`
	OutboundClicks int64 `json:"outbound_clicks"`
	Saves          int64 `json:"saves"`
}

// Add returns the component-wise sum of c and o.
func (c Counters) Add(o Counters) Counters {
	return Counters{
		Impressions:    c.Impressions + o.Impressions,
		OutboundClicks: c.OutboundClicks + o.OutboundClicks,
		Saves:          c.Saves + o.Saves,
	}
}

// Node is a signal-node ingested from the external feed. A nil AssetSKU marks an orphan.
type Node struct {
	CreatedAt time.Time `json:"created_at"`
	AssetSKU  *string   `json:"asset_sku"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ImageURL  string    `json:"image_url,omitempty"`
	Counters
}

// IsOrphan reports whether the node has no owning asset.
func (n *Node) IsOrphan() bool {
	return n.AssetSKU == nil || *n.AssetSKU == ""
}

// Identity is a freshly generated asset identity within a matrix.
type Identity struct {
	SKU         string `json:"sku"`
	DisplayName string `json:"display_name"`
	MatrixCode  string `json:"matrix_code"`
	Sequence    int64  `json:"sequence"`
}
