package models

// RadarKind names one of the operator radar lists.
type RadarKind string

const (
	// RadarMonetizationGap lists high-tier assets without a monetization link.
	RadarMonetizationGap RadarKind = "monetization"
	// RadarInfrastructureGap lists assets without a file-source link.
	RadarInfrastructureGap RadarKind = "infrastructure"
	// RadarGhostAssets lists assets with no attached signal-nodes.
	RadarGhostAssets RadarKind = "ghosts"
	// RadarDustCleaner lists DUST assets as purge/archive candidates.
	RadarDustCleaner RadarKind = "dust"
)

// RadarKinds lists every supported radar.
var RadarKinds = []RadarKind{RadarMonetizationGap, RadarInfrastructureGap, RadarGhostAssets, RadarDustCleaner}

// RadarItem is one row of a radar list.
type RadarItem struct {
	SKU        string     `json:"sku"`
	MatrixCode string     `json:"matrix_code"`
	Name       string     `json:"asset_name"`
	Tier       RarityTier `json:"tier"`
	Issue      string     `json:"issue"`
	Score      float64    `json:"score"`
	NodeCount  int64      `json:"node_count"`
}

// GlobalKPIs are the headline counters of the console.
type GlobalKPIs struct {
	TotalMatrices int64   `json:"total_matrices"`
	TotalAssets   int64   `json:"total_assets"`
	TotalNodes    int64   `json:"total_nodes"`
	OrphanNodes   int64   `json:"orphan_nodes"`
	GlobalScore   float64 `json:"global_score"`
	GlobalRevenue float64 `json:"global_revenue"`
}
