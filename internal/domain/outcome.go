package domain

import "time"

// Outcome is the realized result of an evaluation, produced after the fact
// by an external execution-tracking collaborator. It is read-only input to
// the drift detector and the weight calibrator.
type Outcome struct {
	// EvaluationID links the outcome back to the evaluation it settles.
	EvaluationID string `json:"evaluation_id"`

	// TradeTaken reports whether a trade was actually entered.
	TradeTaken bool `json:"trade_taken"`

	// RMultiple is the signed realized R-multiple, nil when no trade was
	// taken or the result has not been measured.
	RMultiple *float64 `json:"r_multiple,omitempty"`
}

// Win reports whether the outcome realized a profit: a trade was taken and
// closed with a positive R-multiple.
func (o Outcome) Win() bool {
	return o.TradeTaken && o.RMultiple != nil && *o.RMultiple > 0
}

// LinkedEvaluation joins one provider's compliant output with the realized
// outcome of its evaluation. These rows are the unit of analysis for the
// drift detector and the weight proposer.
type LinkedEvaluation struct {
	// EvaluationID identifies the parent evaluation.
	EvaluationID string `json:"evaluation_id"`

	// Provider is the forecasting source the row belongs to.
	Provider string `json:"provider"`

	// Timestamp orders the provider's evaluations within rolling windows.
	Timestamp time.Time `json:"timestamp"`

	// TradeScore, Confidence, and ShouldTrade are lifted from the
	// provider's validated output.
	TradeScore  float64 `json:"trade_score"`
	Confidence  float64 `json:"confidence"`
	ShouldTrade bool    `json:"should_trade"`

	// Outcome is the realized result of the parent evaluation.
	Outcome Outcome `json:"outcome"`
}

// Correct reports whether the provider's decision agreed with the realized
// profitability sign: should_trade with a winning outcome, or a skip when
// the trade lost or was never taken.
func (l LinkedEvaluation) Correct() bool {
	return l.ShouldTrade == l.Outcome.Win()
}

// EvaluationRecord is one complete historical evaluation: every provider's
// response plus the realized outcome when one exists. Weight simulation
// replays consensus over windows of these records without issuing any new
// provider calls.
type EvaluationRecord struct {
	// EvaluationID identifies the evaluation.
	EvaluationID string `json:"evaluation_id"`

	// Timestamp is when the evaluation ran.
	Timestamp time.Time `json:"timestamp"`

	// Evaluations holds one entry per provider that was registered when
	// the evaluation ran.
	Evaluations []ProviderEvaluation `json:"evaluations"`

	// Outcome is nil until the execution tracker settles the evaluation.
	Outcome *Outcome `json:"outcome,omitempty"`
}
