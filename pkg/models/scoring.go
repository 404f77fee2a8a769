// Package models contains domain models for the laboveda tactical console.
package models

import "fmt"

// RarityTier is the discrete classification derived from an asset's tactical score.
type RarityTier string

const (
	TierDust      RarityTier = "DUST"
	TierCommon    RarityTier = "COMMON"
	TierUncommon  RarityTier = "UNCOMMON"
	TierRare      RarityTier = "RARE"
	TierLegendary RarityTier = "LEGENDARY"
)

// AllTiers lists every tier from lowest to highest.
var AllTiers = []RarityTier{TierDust, TierCommon, TierUncommon, TierRare, TierLegendary}

// Rank returns the ordinal position of the tier (DUST=0 … LEGENDARY=4), or -1 if unknown.
func (t RarityTier) Rank() int {
	for i, tier := range AllTiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// Valid reports whether t is one of the known tiers.
func (t RarityTier) Valid() bool {
	return t.Rank() >= 0
}

// ScoringWeights are the per-unit multipliers of the tactical score.
// Outbound clicks dominate: clicks are intent, impressions are noise, saves are passive interest.
type ScoringWeights struct {
	Impression    float64 `json:"impression" yaml:"impression"`
	Click         float64 `json:"click" yaml:"click"`
	Save          float64 `json:"save" yaml:"save"`
	RevenueDollar float64 `json:"revenue_dollar" yaml:"revenue_dollar"`
}

// TierThresholds are the closed lower bounds of each tier above DUST.
type TierThresholds struct {
	Common    float64 `json:"common" yaml:"common"`
	Uncommon  float64 `json:"uncommon" yaml:"uncommon"`
	Rare      float64 `json:"rare" yaml:"rare"`
	Legendary float64 `json:"legendary" yaml:"legendary"`
}

// TierBand pairs a tier with its inclusive lower bound.
type TierBand struct {
	Tier     RarityTier `json:"tier"`
	MinScore float64    `json:"min_score"`
}

// Bands returns the bands in descending order, the order they must be evaluated in.
func (t TierThresholds) Bands() []TierBand {
	return []TierBand{
		{Tier: TierLegendary, MinScore: t.Legendary},
		{Tier: TierRare, MinScore: t.Rare},
		{Tier: TierUncommon, MinScore: t.Uncommon},
		{Tier: TierCommon, MinScore: t.Common},
	}
}

// ScoringConfig contains all scoring weights and tier cutoffs.
// A config value is treated as immutable once handed to a calculator;
// tuning replaces the whole value.
type ScoringConfig struct {
	Weights ScoringWeights `json:"weights" yaml:"weights"`
	Tiers   TierThresholds `json:"tiers" yaml:"tiers"`

	// Precision is the number of decimal places scores are rounded to.
	Precision int32 `json:"precision" yaml:"precision"`
}

// DefaultScoringConfig returns the reference weights and thresholds.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		Weights: ScoringWeights{
			Impression:    0.001,
			Click:         5.0,
			Save:          0.5,
			RevenueDollar: 20.0,
		},
		Tiers: TierThresholds{
			Common:    100,
			Uncommon:  500,
			Rare:      1500,
			Legendary: 5000,
		},
		Precision: 2,
	}
}

// Validate checks that weights are non-negative and thresholds strictly ascending.
func (c *ScoringConfig) Validate() error {
	w := c.Weights
	if w.Impression < 0 || w.Click < 0 || w.Save < 0 || w.RevenueDollar < 0 {
		return fmt.Errorf("scoring weights must be non-negative: %+v", w)
	}
	t := c.Tiers
	if !(t.Common > 0 && t.Common < t.Uncommon && t.Uncommon < t.Rare && t.Rare < t.Legendary) {
		return fmt.Errorf("tier thresholds must be positive and strictly ascending: %+v", t)
	}
	if c.Precision < 0 || c.Precision > 6 {
		return fmt.Errorf("precision must be between 0 and 6, got %d", c.Precision)
	}
	return nil
}
