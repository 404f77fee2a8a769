package scoring

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/thebtf/laboveda/pkg/models"
)

// CalculatorSuite is a test suite for the Calculator.
type CalculatorSuite struct {
	suite.Suite
	calc   *Calculator
	config *models.ScoringConfig
}

func (s *CalculatorSuite) SetupTest() {
	s.config = models.DefaultScoringConfig()
	s.calc = NewCalculator(s.config)
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorSuite))
}

// =============================================================================
// SCORE
// =============================================================================

func (s *CalculatorSuite) TestScore_SingleNode() {
	// 1000×0.001 + 10×5 + 5×0.5 = 1 + 50 + 2.5
	score := s.calc.Score(models.Counters{Impressions: 1000, OutboundClicks: 10, Saves: 5}, 0)
	s.Equal(53.5, score)
}

func (s *CalculatorSuite) TestScore_WithRevenue() {
	score := s.calc.Score(models.Counters{OutboundClicks: 2}, 3.25)
	// 2×5 + 3.25×20
	s.Equal(75.0, score)
}

func (s *CalculatorSuite) TestScore_ZeroCounters() {
	s.Equal(0.0, s.calc.Score(models.Counters{}, 0))
}

func (s *CalculatorSuite) TestScore_NegativeInputsCountAsZero() {
	score := s.calc.Score(models.Counters{Impressions: -500, OutboundClicks: -3, Saves: 4}, -10)
	s.Equal(2.0, score)
}

func (s *CalculatorSuite) TestScore_RoundsToTwoDecimals() {
	// 1234×0.001 + 1×0.5 = 1.734 → 1.73
	score := s.calc.Score(models.Counters{Impressions: 1234, Saves: 1}, 0)
	s.Equal(1.73, score)

	// 0.005 rounds half away from zero
	score = s.calc.Score(models.Counters{Impressions: 5}, 0)
	s.Equal(0.01, score)
}

func (s *CalculatorSuite) TestScore_ClicksDominateImpressions() {
	oneClick := s.calc.Score(models.Counters{OutboundClicks: 1}, 0)
	manyImpressions := s.calc.Score(models.Counters{Impressions: 4994}, 0)
	s.Greater(oneClick, manyImpressions)

	// 4999 impressions round up to a click's worth; the raw contribution stays below it.
	s.Equal(oneClick, s.calc.Score(models.Counters{Impressions: 4999}, 0))
	s.Less(s.calc.Components(models.Counters{Impressions: 4999}, 0).ImpressionContrib, oneClick)
}

func (s *CalculatorSuite) TestScore_Monotonic() {
	base := models.Counters{Impressions: 100, OutboundClicks: 1, Saves: 1}
	baseScore := s.calc.Score(base, 1)

	bumps := []models.Counters{
		{Impressions: 1000},
		{OutboundClicks: 1},
		{Saves: 1},
	}
	for _, b := range bumps {
		s.GreaterOrEqual(s.calc.Score(base.Add(b), 1), baseScore)
	}
	s.Greater(s.calc.Score(base, 2), baseScore)
}

func (s *CalculatorSuite) TestScore_InfiniteRevenueIgnored() {
	score := s.calc.Score(models.Counters{OutboundClicks: 1}, math.Inf(1))
	s.Equal(5.0, score)
}

func (s *CalculatorSuite) TestComponents_SumToScore() {
	c := s.calc.Components(models.Counters{Impressions: 1000, OutboundClicks: 60, Saves: 5}, 0)

	s.Equal(1.0, c.ImpressionContrib)
	s.Equal(300.0, c.ClickContrib)
	s.Equal(2.5, c.SaveContrib)
	s.Equal(0.0, c.RevenueContrib)
	s.Equal(303.5, c.Score)
	s.Equal(models.TierCommon, c.Tier)
}

func (s *CalculatorSuite) TestEvaluate_MatchesScoreAndTier() {
	counters := models.Counters{Impressions: 1000, OutboundClicks: 60, Saves: 5}
	score, tier := s.calc.Evaluate(counters, 0)
	s.Equal(s.calc.Score(counters, 0), score)
	s.Equal(s.calc.Tier(score), tier)
}

// =============================================================================
// TIER
// =============================================================================

func (s *CalculatorSuite) TestTier_Boundaries() {
	cases := []struct {
		score float64
		tier  models.RarityTier
	}{
		{0, models.TierDust},
		{99.99, models.TierDust},
		{100, models.TierCommon},
		{499.99, models.TierCommon},
		{500, models.TierUncommon},
		{1499.99, models.TierUncommon},
		{1500, models.TierRare},
		{4999.99, models.TierRare},
		{5000, models.TierLegendary},
		{1e9, models.TierLegendary},
		{-5, models.TierDust},
		{math.NaN(), models.TierDust},
	}
	for _, tc := range cases {
		s.Equal(tc.tier, s.calc.Tier(tc.score), "score %v", tc.score)
	}
}

func (s *CalculatorSuite) TestTier_MonotonicInScore() {
	prev := -1
	for score := 0.0; score <= 6000; score += 25 {
		rank := s.calc.Tier(score).Rank()
		s.GreaterOrEqual(rank, prev)
		prev = rank
	}
}

// =============================================================================
// CONFIG
// =============================================================================

func (s *CalculatorSuite) TestNewCalculator_NilConfig() {
	calc := NewCalculator(nil)
	s.Equal(models.DefaultScoringConfig(), calc.GetConfig())
}

func (s *CalculatorSuite) TestUpdateConfig() {
	cfg := models.DefaultScoringConfig()
	cfg.Weights.Click = 10
	cfg.Tiers.Common = 50

	s.Require().NoError(s.calc.UpdateConfig(cfg))
	s.Equal(10.0, s.calc.GetConfig().Weights.Click)
	s.Equal(100.0, s.calc.Score(models.Counters{OutboundClicks: 10}, 0))
	s.Equal(models.TierCommon, s.calc.Tier(50))
}

func (s *CalculatorSuite) TestUpdateConfig_NilIgnored() {
	s.NoError(s.calc.UpdateConfig(nil))
	s.Same(s.config, s.calc.GetConfig())
}

func (s *CalculatorSuite) TestUpdateConfig_InvalidRejected() {
	bad := models.DefaultScoringConfig()
	bad.Tiers.Rare = 400 // below UNCOMMON

	s.Error(s.calc.UpdateConfig(bad))
	s.Same(s.config, s.calc.GetConfig())

	bad = models.DefaultScoringConfig()
	bad.Weights.Save = -1
	s.Error(s.calc.UpdateConfig(bad))
}

// =============================================================================
// AGGREGATION HELPERS
// =============================================================================

func (s *CalculatorSuite) TestSumCounters() {
	nodes := []*models.Node{
		{ID: "a", Counters: models.Counters{Impressions: 1000, OutboundClicks: 10, Saves: 5}},
		nil,
		{ID: "b", Counters: models.Counters{OutboundClicks: 50}},
	}
	s.Equal(models.Counters{Impressions: 1000, OutboundClicks: 60, Saves: 5}, SumCounters(nodes))
	s.Equal(models.Counters{}, SumCounters(nil))
}

func (s *CalculatorSuite) TestRoundTotal_NoFloatDrift() {
	values := make([]float64, 0, 10)
	for i := 0; i < 10; i++ {
		values = append(values, 0.1)
	}
	s.Equal(1.0, s.calc.RoundTotal(values))
	s.Equal(357.0, s.calc.RoundTotal([]float64{303.5, 53.5}))
	s.Equal(0.0, s.calc.RoundTotal(nil))
	s.Equal(1.5, s.calc.RoundTotal([]float64{1.5, math.NaN(), math.Inf(1)}))
}

func TestCalculator_ConcurrentAccess(t *testing.T) {
	calc := NewCalculator(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				cfg := models.DefaultScoringConfig()
				cfg.Weights.Click = float64(5 + i)
				assert.NoError(t, calc.UpdateConfig(cfg))
				return
			}
			score := calc.Score(models.Counters{OutboundClicks: 1}, 0)
			assert.Greater(t, score, 0.0)
		}(i)
	}
	wg.Wait()
}

func TestClassifyTier_CustomThresholds(t *testing.T) {
	th := models.TierThresholds{Common: 1, Uncommon: 2, Rare: 3, Legendary: 4}
	require.Equal(t, models.TierDust, ClassifyTier(th, 0.5))
	require.Equal(t, models.TierRare, ClassifyTier(th, 3))
	require.Equal(t, models.TierLegendary, ClassifyTier(th, 4))
}
