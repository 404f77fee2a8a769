// Package scoring computes tactical scores and rarity tiers for assets.
package scoring

import (
	"math"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/thebtf/laboveda/pkg/models"
)

// Calculator computes tactical scores and classifies them into rarity tiers.
// It is safe for concurrent use; UpdateConfig swaps the whole config value.
type Calculator struct {
	config atomic.Pointer[models.ScoringConfig]
}

// NewCalculator creates a new scoring calculator.
// If config is nil, uses the default configuration.
func NewCalculator(config *models.ScoringConfig) *Calculator {
	if config == nil {
		config = models.DefaultScoringConfig()
	}
	c := &Calculator{}
	c.config.Store(config)
	return c
}

// Score computes the tactical score for the given counters and revenue.
//
// The scoring formula:
//
//	Score = impressions×W_imp + outboundClicks×W_click + saves×W_save + revenue×W_rev
//
// rounded to the configured precision (2 decimal places by default).
// Counters and revenue below zero count as zero.
func (c *Calculator) Score(counters models.Counters, revenue float64) float64 {
	return c.Components(counters, revenue).Score
}

// Tier maps a score to its rarity tier. Bands are closed-lower/open-upper and
// evaluated from LEGENDARY downwards; the first match wins.
func (c *Calculator) Tier(score float64) models.RarityTier {
	return ClassifyTier(c.GetConfig().Tiers, score)
}

// ClassifyTier maps a score to a tier using the given thresholds.
func ClassifyTier(t models.TierThresholds, score float64) models.RarityTier {
	if math.IsNaN(score) {
		return models.TierDust
	}
	for _, band := range t.Bands() {
		if score >= band.MinScore {
			return band.Tier
		}
	}
	return models.TierDust
}

// Evaluate returns both the score and the tier for the given counters.
func (c *Calculator) Evaluate(counters models.Counters, revenue float64) (float64, models.RarityTier) {
	cfg := c.GetConfig()
	score := components(cfg, counters, revenue).Score
	return score, ClassifyTier(cfg.Tiers, score)
}

// Components returns the individual contributions of the score.
// Useful for explaining scores to operators; Score() delegates to this.
func (c *Calculator) Components(counters models.Counters, revenue float64) ScoreComponents {
	return components(c.GetConfig(), counters, revenue)
}

func components(cfg *models.ScoringConfig, counters models.Counters, revenue float64) ScoreComponents {
	w := cfg.Weights

	imp := decimal.NewFromInt(nonNegative(counters.Impressions)).Mul(decimal.NewFromFloat(w.Impression))
	clk := decimal.NewFromInt(nonNegative(counters.OutboundClicks)).Mul(decimal.NewFromFloat(w.Click))
	sav := decimal.NewFromInt(nonNegative(counters.Saves)).Mul(decimal.NewFromFloat(w.Save))

	rev := decimal.Zero
	if revenue > 0 && !math.IsInf(revenue, 1) {
		rev = decimal.NewFromFloat(revenue).Mul(decimal.NewFromFloat(w.RevenueDollar))
	}

	total := imp.Add(clk).Add(sav).Add(rev).Round(cfg.Precision)
	score := total.InexactFloat64()

	return ScoreComponents{
		ImpressionContrib: imp.InexactFloat64(),
		ClickContrib:      clk.InexactFloat64(),
		SaveContrib:       sav.InexactFloat64(),
		RevenueContrib:    rev.InexactFloat64(),
		Score:             score,
		Tier:              ClassifyTier(cfg.Tiers, score),
	}
}

// ScoreComponents contains the breakdown of a tactical score calculation.
type ScoreComponents struct {
	Tier              models.RarityTier `json:"tier"`
	ImpressionContrib float64           `json:"impression_contrib"`
	ClickContrib      float64           `json:"click_contrib"`
	SaveContrib       float64           `json:"save_contrib"`
	RevenueContrib    float64           `json:"revenue_contrib"`
	Score             float64           `json:"score"`
}

// SumCounters totals the engagement counters of the given nodes.
func SumCounters(nodes []*models.Node) models.Counters {
	var total models.Counters
	for _, n := range nodes {
		if n == nil {
			continue
		}
		total = total.Add(n.Counters)
	}
	return total
}

// RoundTotal sums values exactly and rounds the result to the configured precision.
// Used for matrix rollups so repeated recomputes never drift.
func (c *Calculator) RoundTotal(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Round(c.GetConfig().Precision).InexactFloat64()
}

// UpdateConfig replaces the calculator's scoring configuration.
// Invalid configs are rejected and the current config is kept.
func (c *Calculator) UpdateConfig(config *models.ScoringConfig) error {
	if config == nil {
		return nil
	}
	if err := config.Validate(); err != nil {
		return err
	}
	c.config.Store(config)
	return nil
}

// GetConfig returns the current scoring configuration. Callers must not mutate it.
func (c *Calculator) GetConfig() *models.ScoringConfig {
	return c.config.Load()
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
