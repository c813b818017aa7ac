package domain

// AgreementClass buckets how the compliant providers' should-trade votes
// split. The classification feeds both the consensus result and the offline
// agreement analytics.
type AgreementClass string

const (
	AgreementUnanimousTrade AgreementClass = "unanimous_trade"
	AgreementMajorityTrade  AgreementClass = "majority_trade"
	AgreementMajoritySkip   AgreementClass = "majority_skip"
	AgreementUnanimousSkip  AgreementClass = "unanimous_skip"
)

// ClassifyAgreement maps the number of trade votes among n compliant
// providers onto an AgreementClass. With zero compliant providers the split
// is reported as a unanimous skip.
func ClassifyAgreement(tradeVotes, n int) AgreementClass {
	switch {
	case n == 0 || tradeVotes == 0:
		return AgreementUnanimousSkip
	case tradeVotes == n:
		return AgreementUnanimousTrade
	case tradeVotes*2 > n:
		return AgreementMajorityTrade
	default:
		return AgreementMajoritySkip
	}
}

// ConsensusResult is the single decision distilled from one evaluation's
// provider responses. It is computed per request and never persisted by the
// core; persistence, if any, belongs to the surrounding process.
type ConsensusResult struct {
	// TradeScore is the weighted, disagreement-penalized score, 0-100.
	TradeScore float64 `json:"trade_score"`

	// ShouldTrade is the weighted-majority verdict of compliant providers.
	ShouldTrade bool `json:"should_trade"`

	// Confidence is the weighted mean of compliant providers' confidence.
	Confidence float64 `json:"confidence"`

	// Disagreement is the population standard deviation of the compliant
	// providers' individual trade scores, in score units.
	Disagreement float64 `json:"disagreement"`

	// Penalty is the amount subtracted from the weighted score, equal to
	// the active weight set's k times Disagreement.
	Penalty float64 `json:"penalty"`

	// Agreement classifies the should-trade vote split.
	Agreement AgreementClass `json:"agreement"`

	// CompliantProviders counts how many providers contributed.
	CompliantProviders int `json:"compliant_providers"`

	// WeightProvenance records which weight set produced this result.
	WeightProvenance WeightProvenance `json:"weight_provenance"`
}
