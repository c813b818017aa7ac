package domain

import "time"

// MaxReasoningChars caps the reasoning field of a ValidatedOutput.
// Longer reasoning invalidates the payload rather than being truncated,
// because a provider that ignores the length contract has likely ignored
// other parts of it too.
const MaxReasoningChars = 500

// ValidatedOutput is the structured payload a forecast provider must return.
// A payload is only accepted when every field sits inside its declared range;
// unknown fields are dropped during decoding rather than merged.
type ValidatedOutput struct {
	// TradeScore is the provider's overall rating of the setup, 0-100.
	TradeScore float64 `json:"trade_score" validate:"min=0,max=100"`

	// ExtensionRisk rates how over-extended the move already is, 0-100.
	ExtensionRisk float64 `json:"extension_risk" validate:"min=0,max=100"`

	// ExhaustionRisk rates the chance momentum is exhausting, 0-100.
	ExhaustionRisk float64 `json:"exhaustion_risk" validate:"min=0,max=100"`

	// FloatRotationRisk rates crowding from float turnover, 0-100.
	FloatRotationRisk float64 `json:"float_rotation_risk" validate:"min=0,max=100"`

	// MarketAlignment scores how well the trade direction agrees with the
	// broad market, -100 (fighting it) to 100 (fully aligned).
	MarketAlignment float64 `json:"market_alignment" validate:"min=-100,max=100"`

	// ExpectedRR is the provider's estimated reward-to-risk multiple.
	ExpectedRR float64 `json:"expected_rr" validate:"min=0"`

	// Confidence is the provider's self-reported certainty, 0-100.
	Confidence float64 `json:"confidence" validate:"min=0,max=100"`

	// ShouldTrade is the provider's binary verdict on taking the trade.
	ShouldTrade bool `json:"should_trade"`

	// Reasoning is a short free-text justification. Length is enforced
	// against MaxReasoningChars by the payload parser, counted in runes.
	Reasoning string `json:"reasoning"`
}

// ProviderEvaluation records one provider's answer (or failure) for a single
// ensemble evaluation. Exactly one is produced per registered provider per
// run, including timeouts and transport failures, so the result set always
// has a fixed cardinality. The struct is immutable once created and owned by
// the runner's result set.
type ProviderEvaluation struct {
	// Provider identifies the forecasting source that produced this row.
	Provider string `json:"provider"`

	// Output holds the parsed payload when Compliant is true, nil otherwise.
	Output *ValidatedOutput `json:"output,omitempty"`

	// RawResponse preserves the provider's unparsed response text for
	// auditing, even when parsing failed.
	RawResponse string `json:"raw_response"`

	// Latency is the wall-clock duration of the provider call.
	Latency time.Duration `json:"latency"`

	// Err carries a human-readable description of any transport, parse,
	// or validation failure. Empty when Compliant is true.
	Err string `json:"error,omitempty"`

	// Compliant is true only when a structured output parsed and validated.
	Compliant bool `json:"compliant"`

	// ProviderVersion records the model/version string the provider reported.
	ProviderVersion string `json:"provider_version"`

	// PromptFingerprint ties the evaluation back to the exact prompt used.
	PromptFingerprint string `json:"prompt_fingerprint"`

	// TokenCount is the total tokens consumed by the call, when known.
	TokenCount int `json:"token_count"`

	// Timestamp records when the evaluation was produced.
	Timestamp time.Time `json:"timestamp"`
}
