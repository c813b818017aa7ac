package consensus

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ports"
)

// DefaultMinSampleSize is the smallest historical window a weight apply
// will accept. Tuning weights on fewer scored outcomes than this fits
// noise, not signal.
const DefaultMinSampleSize = 50

// SimulationReport compares a candidate weight set against the active one
// over the same historical window. All deltas are candidate minus active.
type SimulationReport struct {
	// SampleSize is the number of historical evaluations replayed.
	SampleSize int `json:"sample_size"`

	// OutcomeLinked counts the subset with a settled outcome; only those
	// contribute to AccuracyDelta.
	OutcomeLinked int `json:"outcome_linked"`

	// AvgScoreDelta is the change in mean consensus trade score.
	AvgScoreDelta float64 `json:"avg_score_delta"`

	// TradeRateDelta is the change in the fraction of evaluations whose
	// consensus decision was to trade.
	TradeRateDelta float64 `json:"trade_rate_delta"`

	// AccuracyDelta is the change in decision correctness over the
	// outcome-linked subset.
	AccuracyDelta float64 `json:"accuracy_delta"`

	// ChangedDecisions counts evaluations whose should-trade verdict
	// would flip under the candidate weights.
	ChangedDecisions int `json:"changed_decisions"`
}

// Simulate replays consensus over a window of already-recorded evaluations
// under both weight sets and reports the deltas. No provider calls are made
// and nothing is persisted; repeated calls with identical inputs yield
// identical reports.
func Simulate(window []domain.EvaluationRecord, candidate, active domain.EnsembleWeights) (SimulationReport, error) {
	if len(window) == 0 {
		return SimulationReport{}, domain.ErrEmptyWindow
	}

	report := SimulationReport{SampleSize: len(window)}

	var candScore, actScore float64
	var candTrades, actTrades int
	var candCorrect, actCorrect int

	for _, rec := range window {
		cand := Score(rec.Evaluations, candidate)
		act := Score(rec.Evaluations, active)

		candScore += cand.TradeScore
		actScore += act.TradeScore
		if cand.ShouldTrade {
			candTrades++
		}
		if act.ShouldTrade {
			actTrades++
		}
		if cand.ShouldTrade != act.ShouldTrade {
			report.ChangedDecisions++
		}

		if rec.Outcome == nil {
			continue
		}
		report.OutcomeLinked++
		win := rec.Outcome.Win()
		if cand.ShouldTrade == win {
			candCorrect++
		}
		if act.ShouldTrade == win {
			actCorrect++
		}
	}

	n := float64(len(window))
	report.AvgScoreDelta = (candScore - actScore) / n
	report.TradeRateDelta = float64(candTrades-actTrades) / n
	if report.OutcomeLinked > 0 {
		report.AccuracyDelta = float64(candCorrect-actCorrect) / float64(report.OutcomeLinked)
	}
	return report, nil
}

// Calibrator owns the simulate-then-apply workflow around a weight store.
// Simulation is read-only; Apply is the single place a new weight set
// becomes active, always wholesale and always with provenance.
type Calibrator struct {
	store     ports.WeightStore
	history   ports.WeightHistoryLog
	minSample int
	now       func() time.Time
	logger    zerolog.Logger
}

// CalibratorOption customizes a Calibrator.
type CalibratorOption func(*Calibrator)

// WithHistoryLog attaches an audit log that records every weight
// transition. A history append failure is logged, not fatal: losing an
// audit row must not lose an operator-approved weight set.
func WithHistoryLog(history ports.WeightHistoryLog) CalibratorOption {
	return func(c *Calibrator) { c.history = history }
}

// WithMinSampleSize overrides the minimum window size an apply accepts.
func WithMinSampleSize(n int) CalibratorOption {
	return func(c *Calibrator) { c.minSample = n }
}

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) CalibratorOption {
	return func(c *Calibrator) { c.now = now }
}

// NewCalibrator creates a Calibrator over the given weight store.
func NewCalibrator(store ports.WeightStore, logger zerolog.Logger, opts ...CalibratorOption) *Calibrator {
	c := &Calibrator{
		store:     store,
		minSample: DefaultMinSampleSize,
		now:       time.Now,
		logger:    logger.With().Str("component", "weight_calibrator").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Simulate loads the active weight set and compares the candidate against
// it over the window. Nothing is written.
func (c *Calibrator) Simulate(
	ctx context.Context,
	window []domain.EvaluationRecord,
	candidate domain.EnsembleWeights,
) (SimulationReport, error) {
	active, err := c.store.Load(ctx)
	if err != nil {
		return SimulationReport{}, fmt.Errorf("loading active weights: %w", err)
	}
	return Simulate(window, candidate, active)
}

// Apply persists the candidate as the new active weight set with
// provenance "simulation", a sample size equal to the window it was
// validated against, and a timestamp of now. The previous set is retained
// only in the history log.
func (c *Calibrator) Apply(
	ctx context.Context,
	candidate domain.EnsembleWeights,
	windowSize int,
	reason string,
) (domain.EnsembleWeights, error) {
	if windowSize < c.minSample {
		return domain.EnsembleWeights{}, fmt.Errorf(
			"%w: window %d below minimum %d", domain.ErrSampleTooSmall, windowSize, c.minSample)
	}

	previous, err := c.store.Load(ctx)
	if err != nil {
		return domain.EnsembleWeights{}, fmt.Errorf("loading previous weights: %w", err)
	}

	updated := candidate.Clone()
	updated.Provenance = domain.ProvenanceSimulation
	updated.SampleSize = windowSize
	updated.UpdatedAt = c.now().UTC()

	if err := c.store.Save(ctx, updated); err != nil {
		return domain.EnsembleWeights{}, fmt.Errorf("saving weights: %w", err)
	}

	if c.history != nil {
		if err := c.history.AppendWeightHistory(ctx, previous, updated, reason); err != nil {
			c.logger.Warn().Err(err).Msg("weight history append failed")
		}
	}

	c.logger.Info().
		Int("sample_size", windowSize).
		Str("reason", reason).
		Msg("applied new ensemble weights")
	return updated, nil
}
