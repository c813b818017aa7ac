// Package config defines the YAML configuration surface for the
// evaluation core. Defaults are applied before validation so a minimal
// file only needs to override what differs from stock settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/marketbridge/go-council/internal/drift"
	"github.com/marketbridge/go-council/internal/ensemble"
	"github.com/marketbridge/go-council/internal/logging"
	"github.com/marketbridge/go-council/internal/risk"
)

// Config is the root configuration document.
type Config struct {
	// Providers lists the forecast providers to register, in dispatch
	// order. Each entry is "provider" or "provider/model".
	Providers []string `yaml:"providers" validate:"required,min=1,dive,min=1"`

	Ensemble  EnsembleConfig  `yaml:"ensemble"`
	Consensus ConsensusConfig `yaml:"consensus"`
	Drift     drift.Config    `yaml:"drift"`
	Risk      RiskConfig      `yaml:"risk"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   logging.Config  `yaml:"logging"`
}

// EnsembleConfig holds runner settings.
type EnsembleConfig struct {
	// ProviderTimeoutMS is the independent dispatch budget per provider,
	// in milliseconds.
	ProviderTimeoutMS int `yaml:"provider_timeout_ms" validate:"omitempty,min=100,max=600000"`

	// Retry configures the transport-level retry wrapper around each
	// provider client.
	Retry RetryConfig `yaml:"retry"`

	// RateLimitPerSecond throttles each provider's outbound requests.
	// Zero disables rate limiting.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second" validate:"omitempty,min=0"`

	// RateLimitBurst is the burst size when rate limiting is enabled.
	RateLimitBurst int `yaml:"rate_limit_burst" validate:"omitempty,min=1"`
}

// RetryConfig holds transport retry tunables.
type RetryConfig struct {
	MaxAttempts   int `yaml:"max_attempts" validate:"min=0,max=10"`
	InitialWaitMS int `yaml:"initial_wait_ms" validate:"omitempty,min=0,max=60000"`
	MaxWaitMS     int `yaml:"max_wait_ms" validate:"omitempty,min=0,max=300000"`
}

// ConsensusConfig holds scorer and calibration settings.
type ConsensusConfig struct {
	// DisagreementK scales the disagreement penalty.
	DisagreementK float64 `yaml:"disagreement_k" validate:"min=0"`

	// MinWeight floors every compliant provider's weight.
	MinWeight float64 `yaml:"min_weight" validate:"min=0,max=1"`

	// MinSampleSize is the smallest historical window a weight apply
	// accepts.
	MinSampleSize int `yaml:"min_sample_size" validate:"omitempty,min=1"`
}

// RiskConfig holds the risk gate limit set. AccountEquity is kept as a
// string so the decimal conversion is explicit and lossless.
type RiskConfig struct {
	AccountEquity        string  `yaml:"account_equity" validate:"required"`
	MaxPositionPct       float64 `yaml:"max_position_pct" validate:"gt=0,lte=100"`
	MaxDailyLossPct      float64 `yaml:"max_daily_loss_pct" validate:"gt=0,lte=100"`
	MaxConcentrationPct  float64 `yaml:"max_concentration_pct" validate:"gt=0,lte=100"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses" validate:"gt=0"`
	VolatilityScalar     float64 `yaml:"volatility_scalar" validate:"gt=0"`
	WindowStartMin       int     `yaml:"window_start_min" validate:"gte=0,lt=1440"`
	WindowEndMin         int     `yaml:"window_end_min" validate:"gt=0,lte=1440"`
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	// DatabasePath is the SQLite evaluation/outcome store.
	DatabasePath string `yaml:"database_path" validate:"required"`

	// WeightsPath is the JSON file holding the active weight set.
	WeightsPath string `yaml:"weights_path" validate:"required"`
}

// Default returns the stock configuration. Provider credentials still
// come from the environment; this covers everything else.
func Default() Config {
	return Config{
		Providers: []string{"anthropic", "openai", "google"},
		Ensemble: EnsembleConfig{
			ProviderTimeoutMS:  30000,
			Retry:              RetryConfig{MaxAttempts: 3, InitialWaitMS: 1000, MaxWaitMS: 30000},
			RateLimitPerSecond: 2,
			RateLimitBurst:     4,
		},
		Consensus: ConsensusConfig{
			DisagreementK: 1.5,
			MinWeight:     0.05,
			MinSampleSize: 50,
		},
		Drift: drift.Config{},
		Risk: RiskConfig{
			AccountEquity:        "100000",
			MaxPositionPct:       10,
			MaxDailyLossPct:      3,
			MaxConcentrationPct:  20,
			MaxConsecutiveLosses: 3,
			VolatilityScalar:     1,
			WindowStartMin:       570,
			WindowEndMin:         960,
		},
		Storage: StorageConfig{
			DatabasePath: "council.db",
			WeightsPath:  "weights.json",
		},
		Logging: logging.DefaultConfig(),
	}
}

var validate = validator.New()

// Load reads a YAML file over the defaults and validates the result.
// A missing path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// EnsembleRunnerConfig converts the ensemble section into the runner's
// own config type.
func (c Config) EnsembleRunnerConfig() ensemble.Config {
	return ensemble.Config{
		ProviderTimeout: time.Duration(c.Ensemble.ProviderTimeoutMS) * time.Millisecond,
	}
}

// RiskLimits converts the risk section into gate limits.
func (c Config) RiskLimits() (risk.Limits, error) {
	equity, err := decimal.NewFromString(c.Risk.AccountEquity)
	if err != nil {
		return risk.Limits{}, fmt.Errorf("invalid account_equity: %w", err)
	}
	return risk.Limits{
		AccountEquity:        equity,
		MaxPositionPct:       c.Risk.MaxPositionPct,
		MaxDailyLossPct:      c.Risk.MaxDailyLossPct,
		MaxConcentrationPct:  c.Risk.MaxConcentrationPct,
		MaxConsecutiveLosses: c.Risk.MaxConsecutiveLosses,
		VolatilityScalar:     c.Risk.VolatilityScalar,
		WindowStartMin:       c.Risk.WindowStartMin,
		WindowEndMin:         c.Risk.WindowEndMin,
	}, nil
}
