package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketbridge/go-council/internal/domain"
)

func openTestDB(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "council.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func compliantOutput(provider string, score float64, shouldTrade bool, at time.Time) domain.ProviderEvaluation {
	return domain.ProviderEvaluation{
		Provider:  provider,
		Compliant: true,
		Output: &domain.ValidatedOutput{
			TradeScore:  score,
			Confidence:  score,
			ExpectedRR:  2.0,
			ShouldTrade: shouldTrade,
			Reasoning:   "clean setup",
		},
		RawResponse:       `{"trade_score": ...}`,
		Latency:           420 * time.Millisecond,
		ProviderVersion:   provider + "-v1",
		PromptFingerprint: "abc123",
		TokenCount:        900,
		Timestamp:         at,
	}
}

func TestSQLiteStore_EvaluationRoundTrip(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	evals := []domain.ProviderEvaluation{
		compliantOutput("anthropic", 80, true, at),
		{
			Provider:    "openai",
			Compliant:   false,
			Err:         "deadline exceeded",
			RawResponse: "",
			Timestamp:   at,
		},
	}
	require.NoError(t, store.RecordEvaluation(ctx, "eval-1", "AAPL", "long", at, evals))

	records, err := store.EvaluationWindow(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "eval-1", rec.EvaluationID)
	require.Len(t, rec.Evaluations, 2)
	assert.Nil(t, rec.Outcome, "no outcome settled yet")

	// Ordered by provider name.
	anthropic, openai := rec.Evaluations[0], rec.Evaluations[1]
	assert.True(t, anthropic.Compliant)
	require.NotNil(t, anthropic.Output)
	assert.InDelta(t, 80, anthropic.Output.TradeScore, 1e-9)
	assert.Equal(t, "clean setup", anthropic.Output.Reasoning)
	assert.Equal(t, 420*time.Millisecond, anthropic.Latency)

	assert.False(t, openai.Compliant)
	assert.Nil(t, openai.Output)
	assert.Equal(t, "deadline exceeded", openai.Err)
}

func TestSQLiteStore_LinkedEvaluationsJoinOutcomes(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	at := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordEvaluation(ctx, "eval-1", "AAPL", "long", at,
		[]domain.ProviderEvaluation{
			compliantOutput("anthropic", 80, true, at),
			{Provider: "openai", Err: "timeout", Timestamp: at},
		}))
	require.NoError(t, store.RecordEvaluation(ctx, "eval-2", "TSLA", "short", at.Add(time.Hour),
		[]domain.ProviderEvaluation{
			compliantOutput("anthropic", 40, false, at.Add(time.Hour)),
		}))

	r := 2.5
	require.NoError(t, store.RecordOutcome(ctx,
		domain.Outcome{EvaluationID: "eval-1", TradeTaken: true, RMultiple: &r}))

	linked, err := store.LinkedEvaluations(ctx, at.Add(-time.Hour))
	require.NoError(t, err)

	// Only eval-1 has an outcome; only its compliant row links.
	require.Len(t, linked, 1)
	row := linked[0]
	assert.Equal(t, "anthropic", row.Provider)
	assert.True(t, row.ShouldTrade)
	assert.True(t, row.Outcome.Win())
	assert.True(t, row.Correct())
}

func TestSQLiteStore_LinkedEvaluationsSinceFilter(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	recent := old.AddDate(0, 1, 0)

	for i, at := range []time.Time{old, recent} {
		id := []string{"eval-old", "eval-new"}[i]
		require.NoError(t, store.RecordEvaluation(ctx, id, "AAPL", "long", at,
			[]domain.ProviderEvaluation{compliantOutput("anthropic", 70, true, at)}))
		r := 1.0
		require.NoError(t, store.RecordOutcome(ctx,
			domain.Outcome{EvaluationID: id, TradeTaken: true, RMultiple: &r}))
	}

	linked, err := store.LinkedEvaluations(ctx, recent.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, "eval-new", linked[0].EvaluationID)
}

func TestSQLiteStore_EvaluationWindowLimitKeepsNewest(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 2, 9, 30, 0, 0, time.UTC)

	ids := []string{"eval-1", "eval-2", "eval-3"}
	for i, id := range ids {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.RecordEvaluation(ctx, id, "AAPL", "long", at,
			[]domain.ProviderEvaluation{compliantOutput("anthropic", 70, true, at)}))
	}

	records, err := store.EvaluationWindow(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "eval-2", records[0].EvaluationID, "oldest-first within the window")
	assert.Equal(t, "eval-3", records[1].EvaluationID)
}

func TestSQLiteStore_AppendWeightHistory(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	old := domain.DefaultWeights([]string{"anthropic", "openai"})
	updated := old.Clone()
	updated.Weights["anthropic"] = 0.7
	updated.Weights["openai"] = 0.3
	updated.Provenance = domain.ProvenanceSimulation
	updated.SampleSize = 90

	require.NoError(t, store.AppendWeightHistory(ctx, old, updated, "recalibration"))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM weight_history`).Scan(&count))
	assert.Equal(t, 1, count)
}
