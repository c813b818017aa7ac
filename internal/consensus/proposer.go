package consensus

import (
	"sort"

	"github.com/marketbridge/go-council/internal/domain"
)

// ProviderMetrics summarizes one provider's scored history for weight
// recalibration. The fields mirror what an operator reviews before
// approving a proposal: how often the provider is right, how honest its
// confidence is, and whether its scores actually separate winners from
// losers.
type ProviderMetrics struct {
	Provider string `json:"provider"`

	// CompliantCount is the number of outcome-linked evaluations.
	CompliantCount int `json:"compliant_count"`

	// TradePredictions counts evaluations where the provider said trade.
	TradePredictions int `json:"trade_predictions"`

	// Accuracy is the win rate among the provider's trade predictions.
	Accuracy float64 `json:"accuracy"`

	// Brier is the mean squared error of normalized confidence against
	// realized wins; 0 is perfect, 1 is maximally wrong.
	Brier float64 `json:"brier"`

	// AvgR is the mean realized R-multiple of the provider's trade calls.
	AvgR float64 `json:"avg_r"`

	// AvgScoreOnWins and AvgScoreOnLosses measure discrimination: a
	// useful provider scores winners higher than losers.
	AvgScoreOnWins   float64 `json:"avg_score_on_wins"`
	AvgScoreOnLosses float64 `json:"avg_score_on_losses"`

	// Discrimination is AvgScoreOnWins minus AvgScoreOnLosses.
	Discrimination float64 `json:"discrimination"`

	// DiscriminationRatio divides the win-score by the loss-score,
	// floored at 1 in the denominator.
	DiscriminationRatio float64 `json:"discrimination_ratio"`

	// ModelScore is the non-negative raw weight the proposal normalizes:
	// max(0, (1 - Brier) * DiscriminationRatio).
	ModelScore float64 `json:"model_score"`
}

// ComputeProviderMetrics derives per-provider recalibration metrics from
// outcome-linked rows. Providers with no rows get a zero-value entry with
// Brier pinned to 1 so the proposal treats them as uninformative.
func ComputeProviderMetrics(rows []domain.LinkedEvaluation, providers []string) map[string]ProviderMetrics {
	byProvider := make(map[string][]domain.LinkedEvaluation, len(providers))
	for _, row := range rows {
		byProvider[row.Provider] = append(byProvider[row.Provider], row)
	}

	metrics := make(map[string]ProviderMetrics, len(providers))
	for _, p := range providers {
		group := byProvider[p]
		m := ProviderMetrics{Provider: p, CompliantCount: len(group)}
		if len(group) == 0 {
			m.Brier = 1.0
			metrics[p] = m
			continue
		}

		var brierSum float64
		var winScoreSum, lossScoreSum float64
		var winCount, lossCount int
		var tradeWins int
		var rSum float64
		var rCount int

		for _, row := range group {
			win := row.Outcome.Win()

			prob := row.Confidence / 100.0
			actual := 0.0
			if win {
				actual = 1.0
			}
			brierSum += (prob - actual) * (prob - actual)

			if win {
				winScoreSum += row.TradeScore
				winCount++
			} else {
				lossScoreSum += row.TradeScore
				lossCount++
			}

			if row.ShouldTrade {
				m.TradePredictions++
				if win {
					tradeWins++
				}
				if row.Outcome.RMultiple != nil {
					rSum += *row.Outcome.RMultiple
					rCount++
				}
			}
		}

		m.Brier = brierSum / float64(len(group))
		if m.TradePredictions > 0 {
			m.Accuracy = float64(tradeWins) / float64(m.TradePredictions)
		}
		if rCount > 0 {
			m.AvgR = rSum / float64(rCount)
		}
		if winCount > 0 {
			m.AvgScoreOnWins = winScoreSum / float64(winCount)
		}
		if lossCount > 0 {
			m.AvgScoreOnLosses = lossScoreSum / float64(lossCount)
		}
		m.Discrimination = m.AvgScoreOnWins - m.AvgScoreOnLosses

		denom := m.AvgScoreOnLosses
		if denom < 1.0 {
			denom = 1.0
		}
		m.DiscriminationRatio = m.AvgScoreOnWins / denom

		score := (1.0 - m.Brier) * m.DiscriminationRatio
		if score < 0 {
			score = 0
		}
		m.ModelScore = score
		metrics[p] = m
	}
	return metrics
}

// ProposeWeights normalizes the providers' model scores into a weight
// vector. When every score is zero, weight splits evenly across providers
// that have at least one scored evaluation, with zero for silent ones;
// when nobody has history, everyone gets an even share.
func ProposeWeights(metrics map[string]ProviderMetrics, providers []string) map[string]float64 {
	ordered := append([]string(nil), providers...)
	sort.Strings(ordered)

	total := 0.0
	for _, p := range ordered {
		total += metrics[p].ModelScore
	}

	weights := make(map[string]float64, len(ordered))
	if total <= 0 {
		active := make([]string, 0, len(ordered))
		for _, p := range ordered {
			if metrics[p].CompliantCount > 0 {
				active = append(active, p)
			}
		}
		if len(active) == 0 {
			share := 1.0 / float64(len(ordered))
			for _, p := range ordered {
				weights[p] = share
			}
			return weights
		}
		share := 1.0 / float64(len(active))
		for _, p := range ordered {
			weights[p] = 0
		}
		for _, p := range active {
			weights[p] = share
		}
		return weights
	}

	for _, p := range ordered {
		weights[p] = metrics[p].ModelScore / total
	}
	return weights
}
