package consensus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/go-council/internal/domain"
)

type memWeightStore struct {
	weights domain.EnsembleWeights
	loadErr error
	saveErr error
	saves   int
}

func (s *memWeightStore) Load(context.Context) (domain.EnsembleWeights, error) {
	if s.loadErr != nil {
		return domain.EnsembleWeights{}, s.loadErr
	}
	return s.weights, nil
}

func (s *memWeightStore) Save(_ context.Context, w domain.EnsembleWeights) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.weights = w
	s.saves++
	return nil
}

type memHistoryLog struct {
	appends int
	lastOld domain.EnsembleWeights
	lastNew domain.EnsembleWeights
	reason  string
	err     error
}

func (l *memHistoryLog) AppendWeightHistory(
	_ context.Context, old, updated domain.EnsembleWeights, reason string,
) error {
	if l.err != nil {
		return l.err
	}
	l.appends++
	l.lastOld = old
	l.lastNew = updated
	l.reason = reason
	return nil
}

func winOutcome(r float64) *domain.Outcome {
	return &domain.Outcome{TradeTaken: true, RMultiple: &r}
}

func calibrationWindow() []domain.EvaluationRecord {
	// Provider a says trade, provider b says skip, on every record. Two
	// records settled as wins, one as a loss, one unsettled.
	mk := func(outcome *domain.Outcome) domain.EvaluationRecord {
		return domain.EvaluationRecord{
			Evaluations: []domain.ProviderEvaluation{
				compliantEval("a", 80, true),
				compliantEval("b", 40, false),
			},
			Outcome: outcome,
		}
	}
	loss := -1.0
	return []domain.EvaluationRecord{
		mk(winOutcome(2.0)),
		mk(winOutcome(1.5)),
		mk(&domain.Outcome{TradeTaken: true, RMultiple: &loss}),
		mk(nil),
	}
}

func TestSimulate_EmptyWindow(t *testing.T) {
	_, err := Simulate(nil, domain.EnsembleWeights{}, domain.EnsembleWeights{})
	assert.ErrorIs(t, err, domain.ErrEmptyWindow)
}

func TestSimulate_ReportsDecisionFlips(t *testing.T) {
	window := calibrationWindow()
	active := testWeights(0, map[string]float64{"a": 0.3, "b": 0.7})    // skip wins
	candidate := testWeights(0, map[string]float64{"a": 0.7, "b": 0.3}) // trade wins

	report, err := Simulate(window, candidate, active)
	require.NoError(t, err)

	assert.Equal(t, 4, report.SampleSize)
	assert.Equal(t, 3, report.OutcomeLinked)
	assert.Equal(t, 4, report.ChangedDecisions, "every record flips skip to trade")
	assert.InDelta(t, 1.0, report.TradeRateDelta, 1e-9)
	assert.Greater(t, report.AvgScoreDelta, 0.0,
		"shifting weight to the higher scorer must raise the mean score")
	// Trading was right twice and wrong once; skipping the inverse.
	assert.InDelta(t, 1.0/3.0, report.AccuracyDelta, 1e-9)
}

func TestSimulate_Deterministic(t *testing.T) {
	window := calibrationWindow()
	active := testWeights(1.5, map[string]float64{"a": 0.5, "b": 0.5})
	candidate := testWeights(1.5, map[string]float64{"a": 0.8, "b": 0.2})

	first, err := Simulate(window, candidate, active)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Simulate(window, candidate, active)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestCalibratorSimulate_IsReadOnly(t *testing.T) {
	store := &memWeightStore{weights: testWeights(1.5, map[string]float64{"a": 0.5, "b": 0.5})}
	cal := NewCalibrator(store, zerolog.Nop())

	_, err := cal.Simulate(context.Background(), calibrationWindow(),
		testWeights(1.5, map[string]float64{"a": 0.9, "b": 0.1}))
	require.NoError(t, err)
	assert.Zero(t, store.saves, "simulation must never write")
}

func TestCalibratorApply_RefusesSmallWindow(t *testing.T) {
	store := &memWeightStore{weights: domain.DefaultWeights([]string{"a", "b"})}
	cal := NewCalibrator(store, zerolog.Nop())

	_, err := cal.Apply(context.Background(),
		testWeights(1.5, map[string]float64{"a": 0.6, "b": 0.4}), 49, "test")
	assert.ErrorIs(t, err, domain.ErrSampleTooSmall)
	assert.Zero(t, store.saves)
}

func TestCalibratorApply_StampsProvenanceAndLogsHistory(t *testing.T) {
	previous := domain.DefaultWeights([]string{"a", "b"})
	store := &memWeightStore{weights: previous}
	history := &memHistoryLog{}
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	cal := NewCalibrator(store, zerolog.Nop(),
		WithHistoryLog(history),
		WithClock(func() time.Time { return fixed }))

	candidate := testWeights(1.5, map[string]float64{"a": 0.65, "b": 0.35})
	applied, err := cal.Apply(context.Background(), candidate, 120, "quarterly recalibration")
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceSimulation, applied.Provenance)
	assert.Equal(t, 120, applied.SampleSize)
	assert.Equal(t, fixed, applied.UpdatedAt)
	assert.Equal(t, applied, store.weights, "the store holds the applied set wholesale")

	assert.Equal(t, 1, history.appends)
	assert.Equal(t, previous, history.lastOld)
	assert.Equal(t, applied, history.lastNew)
	assert.Equal(t, "quarterly recalibration", history.reason)
}

func TestCalibratorApply_HistoryFailureIsNotFatal(t *testing.T) {
	store := &memWeightStore{weights: domain.DefaultWeights([]string{"a"})}
	history := &memHistoryLog{err: errors.New("disk full")}
	cal := NewCalibrator(store, zerolog.Nop(), WithHistoryLog(history))

	_, err := cal.Apply(context.Background(),
		testWeights(1.5, map[string]float64{"a": 1}), 60, "test")
	require.NoError(t, err, "losing an audit row must not lose the weight set")
	assert.Equal(t, 1, store.saves)
}

func TestCalibratorApply_LowerMinSampleOption(t *testing.T) {
	store := &memWeightStore{weights: domain.DefaultWeights([]string{"a"})}
	cal := NewCalibrator(store, zerolog.Nop(), WithMinSampleSize(10))

	_, err := cal.Apply(context.Background(),
		testWeights(1.5, map[string]float64{"a": 1}), 10, "test")
	assert.NoError(t, err)
}
