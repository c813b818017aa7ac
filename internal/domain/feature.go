// Package domain defines the core value types shared across the ensemble
// evaluation pipeline: feature vectors, provider evaluations, ensemble
// weights, consensus results, realized outcomes, and drift reports.
// All types are plain values with no behavior that touches I/O, so they can
// move freely between the runner, the consensus scorer, the drift detector,
// and the storage adapters.
package domain

import "time"

// VolatilityRegime buckets the recent realized volatility of a symbol.
type VolatilityRegime string

const (
	VolatilityLow     VolatilityRegime = "low"
	VolatilityNormal  VolatilityRegime = "normal"
	VolatilityHigh    VolatilityRegime = "high"
	VolatilityExtreme VolatilityRegime = "extreme"
)

// LiquidityBucket classifies how easily a symbol absorbs order flow.
type LiquidityBucket string

const (
	LiquidityThin   LiquidityBucket = "thin"
	LiquidityNormal LiquidityBucket = "normal"
	LiquidityThick  LiquidityBucket = "thick"
)

// TimeOfDayBucket places an evaluation inside the trading day.
type TimeOfDayBucket string

const (
	TimeOfDayPremarket  TimeOfDayBucket = "premarket"
	TimeOfDayOpen15     TimeOfDayBucket = "open_15"
	TimeOfDayMorning    TimeOfDayBucket = "morning"
	TimeOfDayMidday     TimeOfDayBucket = "midday"
	TimeOfDayAfternoon  TimeOfDayBucket = "afternoon"
	TimeOfDayClose15    TimeOfDayBucket = "close_15"
	TimeOfDayAfterHours TimeOfDayBucket = "after_hours"
)

// FeatureVector is the immutable snapshot of market indicators computed for
// one symbol at one instant. It is produced by an external feature builder
// and owned solely by the caller that requests an evaluation; the runner
// only reads from it when rendering the evaluation prompt.
type FeatureVector struct {
	// Symbol is the ticker the features describe.
	Symbol string `json:"symbol"`

	// Timestamp records when the features were computed.
	Timestamp time.Time `json:"timestamp"`

	// LastPrice is the most recent trade price.
	LastPrice float64 `json:"last_price"`

	// RelativeVolume compares current volume against the symbol's average
	// for this time of day. Values above 1 indicate elevated interest.
	RelativeVolume float64 `json:"rvol"`

	// VWAPDeviationPct measures how far price has stretched from VWAP.
	VWAPDeviationPct float64 `json:"vwap_deviation_pct"`

	// ATRPct is the average true range as a percentage of price.
	ATRPct float64 `json:"atr_pct"`

	// PriceExtensionPct measures the move from the session open.
	PriceExtensionPct float64 `json:"price_extension_pct"`

	// GapPct is the overnight gap against the prior close.
	GapPct float64 `json:"gap_pct"`

	// VolumeAcceleration captures whether volume is building or fading.
	VolumeAcceleration float64 `json:"volume_acceleration"`

	// FloatRotation estimates how many times the tradable float has
	// turned over during the session.
	FloatRotation float64 `json:"float_rotation_est"`

	// SPYChangePct and QQQChangePct anchor the symbol against the broad
	// market for alignment checks.
	SPYChangePct float64 `json:"spy_change_pct"`
	QQQChangePct float64 `json:"qqq_change_pct"`

	// MarketAlignment summarizes whether the proposed direction trades
	// with or against the indices ("aligned", "against", "neutral").
	MarketAlignment string `json:"market_alignment"`

	// VolatilityRegime, LiquidityBucket, and TimeOfDay are the categorical
	// regime labels the drift analytics later condition on.
	VolatilityRegime VolatilityRegime `json:"volatility_regime"`
	LiquidityBucket  LiquidityBucket  `json:"liquidity_bucket"`
	TimeOfDay        TimeOfDayBucket  `json:"time_of_day"`

	// MinutesSinceOpen positions the evaluation within the session.
	MinutesSinceOpen int `json:"minutes_since_open"`
}
