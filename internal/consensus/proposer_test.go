package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/go-council/internal/domain"
)

func linkedRow(provider string, score, confidence float64, shouldTrade, win bool) domain.LinkedEvaluation {
	r := -1.0
	if win {
		r = 2.0
	}
	return domain.LinkedEvaluation{
		Provider:    provider,
		TradeScore:  score,
		Confidence:  confidence,
		ShouldTrade: shouldTrade,
		Outcome:     domain.Outcome{TradeTaken: true, RMultiple: &r},
	}
}

func TestComputeProviderMetrics_Discrimination(t *testing.T) {
	rows := []domain.LinkedEvaluation{
		// Provider a scores winners high and losers low.
		linkedRow("a", 90, 80, true, true),
		linkedRow("a", 80, 70, true, true),
		linkedRow("a", 20, 30, false, false),
		// Provider b scores everything the same.
		linkedRow("b", 50, 50, true, true),
		linkedRow("b", 50, 50, true, false),
	}

	metrics := ComputeProviderMetrics(rows, []string{"a", "b"})

	a := metrics["a"]
	assert.Equal(t, 3, a.CompliantCount)
	assert.Equal(t, 2, a.TradePredictions)
	assert.InDelta(t, 1.0, a.Accuracy, 1e-9, "both trade calls won")
	assert.InDelta(t, 2.0, a.AvgR, 1e-9)
	assert.InDelta(t, 85, a.AvgScoreOnWins, 1e-9)
	assert.InDelta(t, 20, a.AvgScoreOnLosses, 1e-9)
	assert.InDelta(t, 65, a.Discrimination, 1e-9)
	assert.InDelta(t, 85.0/20.0, a.DiscriminationRatio, 1e-9)

	b := metrics["b"]
	assert.InDelta(t, 0.5, b.Accuracy, 1e-9)
	assert.Zero(t, b.Discrimination, "flat scores carry no discrimination")
	assert.InDelta(t, 1.0, b.DiscriminationRatio, 1e-9)

	assert.Greater(t, a.ModelScore, b.ModelScore,
		"the discriminating provider must outscore the flat one")
}

func TestComputeProviderMetrics_BrierRewardsHonestConfidence(t *testing.T) {
	rows := []domain.LinkedEvaluation{
		linkedRow("honest", 70, 90, true, true),
		linkedRow("honest", 70, 10, false, false),
		linkedRow("overconfident", 70, 95, true, false),
		linkedRow("overconfident", 70, 95, true, false),
	}

	metrics := ComputeProviderMetrics(rows, []string{"honest", "overconfident"})

	// honest: (0.9-1)^2 and (0.1-0)^2 average to 0.01.
	assert.InDelta(t, 0.01, metrics["honest"].Brier, 1e-9)
	// overconfident: (0.95-0)^2 twice.
	assert.InDelta(t, 0.9025, metrics["overconfident"].Brier, 1e-9)
}

func TestComputeProviderMetrics_SilentProvider(t *testing.T) {
	metrics := ComputeProviderMetrics(nil, []string{"silent"})

	m := metrics["silent"]
	assert.Zero(t, m.CompliantCount)
	assert.InDelta(t, 1.0, m.Brier, 1e-9, "no history reads as uninformative")
	assert.Zero(t, m.ModelScore)
}

func TestComputeProviderMetrics_NegativeScoreClampsToZero(t *testing.T) {
	// A provider that is maximally confident and always wrong has a
	// Brier of 1 and no winning scores; its raw weight floors at zero.
	rows := []domain.LinkedEvaluation{
		linkedRow("bad", 90, 100, true, false),
		linkedRow("bad", 90, 100, true, false),
	}
	metrics := ComputeProviderMetrics(rows, []string{"bad"})
	assert.Zero(t, metrics["bad"].ModelScore)
}

func TestProposeWeights_NormalizesModelScores(t *testing.T) {
	metrics := map[string]ProviderMetrics{
		"a": {Provider: "a", CompliantCount: 10, ModelScore: 3.0},
		"b": {Provider: "b", CompliantCount: 10, ModelScore: 1.0},
	}

	weights := ProposeWeights(metrics, []string{"b", "a"})

	assert.InDelta(t, 0.75, weights["a"], 1e-9)
	assert.InDelta(t, 0.25, weights["b"], 1e-9)

	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestProposeWeights_AllZeroScoresSplitsAmongActive(t *testing.T) {
	metrics := map[string]ProviderMetrics{
		"a":      {Provider: "a", CompliantCount: 10},
		"b":      {Provider: "b", CompliantCount: 10},
		"silent": {Provider: "silent"},
	}

	weights := ProposeWeights(metrics, []string{"a", "b", "silent"})

	assert.InDelta(t, 0.5, weights["a"], 1e-9)
	assert.InDelta(t, 0.5, weights["b"], 1e-9)
	assert.Zero(t, weights["silent"],
		"a provider with no scored history gets nothing in the fallback")
}

func TestProposeWeights_NoHistoryAtAll(t *testing.T) {
	metrics := map[string]ProviderMetrics{
		"a": {Provider: "a"},
		"b": {Provider: "b"},
		"c": {Provider: "c"},
	}

	weights := ProposeWeights(metrics, []string{"a", "b", "c"})

	require.Len(t, weights, 3)
	for p, w := range weights {
		assert.InDelta(t, 1.0/3.0, w, 1e-9, "provider %s", p)
	}
}

func TestProposeWeights_DeterministicAcrossCalls(t *testing.T) {
	rows := []domain.LinkedEvaluation{
		linkedRow("a", 90, 80, true, true),
		linkedRow("b", 40, 60, false, false),
		linkedRow("c", 60, 55, true, false),
	}
	providers := []string{"c", "a", "b"}

	first := ProposeWeights(ComputeProviderMetrics(rows, providers), providers)
	for i := 0; i < 5; i++ {
		again := ProposeWeights(ComputeProviderMetrics(rows, providers), providers)
		assert.Equal(t, first, again)
	}
}
