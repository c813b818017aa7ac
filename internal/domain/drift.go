package domain

import "time"

// RollingAccuracy holds a provider's correctness rate over its most recent
// short and long windows of outcome-linked evaluations. Windows clip to
// however many evaluations exist; with none, both rates are zero.
type RollingAccuracy struct {
	Last10 float64 `json:"last_10"`
	Last50 float64 `json:"last_50"`
}

// ProviderDrift is one provider's row in a drift report.
type ProviderDrift struct {
	// Provider names the forecasting source.
	Provider string `json:"provider"`

	// Evaluations counts the provider's outcome-linked evaluations.
	Evaluations int `json:"evaluations"`

	// Rolling holds the short- and long-window correctness rates.
	Rolling RollingAccuracy `json:"rolling_accuracy"`

	// CalibrationError is the absolute gap between the provider's mean
	// normalized trade score and its realized win rate.
	CalibrationError float64 `json:"calibration_error"`

	// WinRate is the fraction of the provider's linked evaluations whose
	// outcome realized a profit.
	WinRate float64 `json:"win_rate"`

	// Brier is the mean squared error of the provider's normalized
	// confidence against realized wins. Lower is better-calibrated.
	Brier float64 `json:"brier"`

	// Discrimination is the provider's average trade score on winning
	// outcomes minus its average on losing ones. A provider that cannot
	// separate winners from losers scores near zero.
	Discrimination float64 `json:"discrimination"`

	// RegimeShift flags a material drop of recent accuracy below the
	// provider's longer-run accuracy.
	RegimeShift bool `json:"regime_shift"`
}

// DriftReport is the full health picture across providers, recomputed from
// scratch on every request. It is never incrementally updated.
type DriftReport struct {
	// GeneratedAt records when the report was computed.
	GeneratedAt time.Time `json:"generated_at"`

	// OverallAccuracy pools correctness across all providers: total
	// correct decisions divided by total linked evaluations, so providers
	// with more history dominate the figure.
	OverallAccuracy float64 `json:"overall_accuracy"`

	// Providers holds one row per provider, ordered by provider name.
	Providers []ProviderDrift `json:"by_model"`

	// RegimeShiftDetected is the OR across all providers' flags.
	RegimeShiftDetected bool `json:"regime_shift_detected"`

	// Recommendation is a human-readable next step for the operator.
	Recommendation string `json:"recommendation"`
}
