// Package consensus turns per-provider evaluations into a single trade
// decision using the active ensemble weights, and supports offline weight
// calibration: simulating candidate weight sets against historical windows
// and committing an approved set with provenance.
package consensus

import (
	"math"

	"github.com/marketbridge/go-council/internal/domain"
)

// Score combines compliant evaluations into one ConsensusResult using the
// given weight set. It is a pure function: identical inputs always produce
// identical results, which is what makes weight simulation trustworthy.
//
// Non-compliant providers contribute no score and are excluded from the
// weight normalization denominator. Every compliant provider's weight is
// floored at MinWeight, so a provider that answered correctly is never
// fully zeroed out even when nominally weighted at zero. The disagreement
// penalty subtracts k times the population standard deviation of the
// individual scores, so a confident-but-divided ensemble lands lower than
// a confident-and-aligned one.
func Score(evals []domain.ProviderEvaluation, weights domain.EnsembleWeights) domain.ConsensusResult {
	type contribution struct {
		weight float64
		output *domain.ValidatedOutput
	}

	compliant := make([]contribution, 0, len(evals))
	for _, ev := range evals {
		if !ev.Compliant || ev.Output == nil {
			continue
		}
		w := weights.WeightFor(ev.Provider)
		if w < weights.MinWeight {
			w = weights.MinWeight
		}
		compliant = append(compliant, contribution{weight: w, output: ev.Output})
	}

	result := domain.ConsensusResult{
		Agreement:        domain.AgreementUnanimousSkip,
		WeightProvenance: weights.Provenance,
	}
	if len(compliant) == 0 {
		return result
	}

	var totalWeight, weightedScore, weightedConfidence, tradeWeight float64
	tradeVotes := 0
	for _, c := range compliant {
		totalWeight += c.weight
		weightedScore += c.weight * c.output.TradeScore
		weightedConfidence += c.weight * c.output.Confidence
		if c.output.ShouldTrade {
			tradeWeight += c.weight
			tradeVotes++
		}
	}

	mean := 0.0
	for _, c := range compliant {
		mean += c.output.TradeScore
	}
	mean /= float64(len(compliant))

	variance := 0.0
	for _, c := range compliant {
		d := c.output.TradeScore - mean
		variance += d * d
	}
	variance /= float64(len(compliant))
	spread := math.Sqrt(variance)

	penalty := weights.DisagreementK * spread
	score := weightedScore/totalWeight - penalty
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	result.TradeScore = score
	result.Confidence = weightedConfidence / totalWeight
	result.Disagreement = spread
	result.Penalty = penalty
	result.ShouldTrade = tradeWeight > totalWeight/2
	result.CompliantProviders = len(compliant)
	result.Agreement = domain.ClassifyAgreement(tradeVotes, len(compliant))
	return result
}
