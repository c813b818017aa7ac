package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/marketbridge/go-council/internal/domain"
)

// SQLiteStore is the read handle over recorded evaluations, per-provider
// outputs, and settled outcomes, plus the append-only weight history
// audit table. Writes to evaluations and outcomes belong to the external
// execution tracker; this store only appends weight history.
type SQLiteStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// OpenSQLite opens (or creates) the database at path and ensures the
// schema exists.
func OpenSQLite(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	store := &SQLiteStore{
		db:     db,
		logger: logger.With().Str("component", "sqlite_store").Logger(),
	}
	if err := store.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	direction  TEXT,
	timestamp  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS model_outputs (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id  TEXT NOT NULL REFERENCES evaluations(id),
	model_id       TEXT NOT NULL,
	trade_score    REAL,
	extension_risk REAL,
	exhaustion_risk REAL,
	float_rotation_risk REAL,
	market_alignment_score REAL,
	expected_rr    REAL,
	confidence     REAL,
	should_trade   INTEGER,
	reasoning      TEXT,
	raw_response   TEXT,
	compliant      INTEGER NOT NULL DEFAULT 0,
	error          TEXT,
	latency_ms     INTEGER,
	model_version  TEXT,
	prompt_hash    TEXT,
	token_count    INTEGER,
	timestamp      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_model_outputs_eval ON model_outputs(evaluation_id);
CREATE INDEX IF NOT EXISTS idx_model_outputs_model ON model_outputs(model_id, timestamp);

CREATE TABLE IF NOT EXISTS outcomes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	evaluation_id TEXT NOT NULL REFERENCES evaluations(id),
	trade_taken   INTEGER NOT NULL,
	r_multiple    REAL,
	recorded_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_outcomes_eval ON outcomes(evaluation_id);

CREATE TABLE IF NOT EXISTS weight_history (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	weights_json TEXT NOT NULL,
	prev_json    TEXT,
	sample_size  INTEGER,
	reason       TEXT,
	created_at   TEXT NOT NULL
);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}

// LinkedEvaluations joins compliant provider outputs with their settled
// outcomes, ordered by output timestamp ascending.
func (s *SQLiteStore) LinkedEvaluations(ctx context.Context, since time.Time) ([]domain.LinkedEvaluation, error) {
	const query = `
SELECT m.evaluation_id, m.model_id, m.timestamp,
       m.trade_score, m.confidence, m.should_trade,
       o.trade_taken, o.r_multiple
FROM model_outputs m
JOIN outcomes o ON o.evaluation_id = m.evaluation_id
WHERE m.compliant = 1 AND m.timestamp >= ?
ORDER BY m.timestamp ASC`

	rows, err := s.db.QueryContext(ctx, query, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("querying linked evaluations: %w", err)
	}
	defer rows.Close()

	var linked []domain.LinkedEvaluation
	for rows.Next() {
		var (
			row       domain.LinkedEvaluation
			ts        string
			shouldInt int
			takenInt  int
			rMultiple sql.NullFloat64
		)
		if err := rows.Scan(
			&row.EvaluationID, &row.Provider, &ts,
			&row.TradeScore, &row.Confidence, &shouldInt,
			&takenInt, &rMultiple,
		); err != nil {
			return nil, fmt.Errorf("scanning linked evaluation: %w", err)
		}
		row.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing evaluation timestamp %q: %w", ts, err)
		}
		row.ShouldTrade = shouldInt != 0
		row.Outcome = domain.Outcome{
			EvaluationID: row.EvaluationID,
			TradeTaken:   takenInt != 0,
		}
		if rMultiple.Valid {
			r := rMultiple.Float64
			row.Outcome.RMultiple = &r
		}
		linked = append(linked, row)
	}
	return linked, rows.Err()
}

// EvaluationWindow returns the most recent limit evaluations with every
// provider's output attached and the outcome when one is settled, ordered
// by evaluation timestamp ascending. A zero limit returns everything.
func (s *SQLiteStore) EvaluationWindow(ctx context.Context, limit int) ([]domain.EvaluationRecord, error) {
	query := `SELECT id, timestamp FROM evaluations ORDER BY timestamp DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying evaluations: %w", err)
	}
	defer rows.Close()

	var records []domain.EvaluationRecord
	for rows.Next() {
		var rec domain.EvaluationRecord
		var ts string
		if err := rows.Scan(&rec.EvaluationID, &ts); err != nil {
			return nil, fmt.Errorf("scanning evaluation: %w", err)
		}
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing evaluation timestamp %q: %w", ts, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; callers get oldest-first.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	for i := range records {
		if records[i].Evaluations, err = s.providerOutputs(ctx, records[i].EvaluationID); err != nil {
			return nil, err
		}
		if records[i].Outcome, err = s.outcome(ctx, records[i].EvaluationID); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func (s *SQLiteStore) providerOutputs(ctx context.Context, evaluationID string) ([]domain.ProviderEvaluation, error) {
	const query = `
SELECT model_id, trade_score, extension_risk, exhaustion_risk,
       float_rotation_risk, market_alignment_score, expected_rr,
       confidence, should_trade, reasoning, raw_response, compliant,
       error, latency_ms, model_version, prompt_hash, token_count, timestamp
FROM model_outputs WHERE evaluation_id = ? ORDER BY model_id ASC`

	rows, err := s.db.QueryContext(ctx, query, evaluationID)
	if err != nil {
		return nil, fmt.Errorf("querying model outputs: %w", err)
	}
	defer rows.Close()

	var evals []domain.ProviderEvaluation
	for rows.Next() {
		var (
			ev            domain.ProviderEvaluation
			tradeScore    sql.NullFloat64
			extension     sql.NullFloat64
			exhaustion    sql.NullFloat64
			floatRotation sql.NullFloat64
			alignment     sql.NullFloat64
			expectedRR    sql.NullFloat64
			confidence    sql.NullFloat64
			shouldTrade   sql.NullInt64
			reasoning     sql.NullString
			rawResponse   sql.NullString
			compliant     int
			errText       sql.NullString
			latencyMS     sql.NullInt64
			version       sql.NullString
			fingerprint   sql.NullString
			tokens        sql.NullInt64
			ts            string
		)
		if err := rows.Scan(
			&ev.Provider, &tradeScore, &extension, &exhaustion,
			&floatRotation, &alignment, &expectedRR,
			&confidence, &shouldTrade, &reasoning, &rawResponse, &compliant,
			&errText, &latencyMS, &version, &fingerprint, &tokens, &ts,
		); err != nil {
			return nil, fmt.Errorf("scanning model output: %w", err)
		}

		ev.Compliant = compliant != 0
		ev.RawResponse = rawResponse.String
		ev.Err = errText.String
		ev.ProviderVersion = version.String
		ev.PromptFingerprint = fingerprint.String
		ev.TokenCount = int(tokens.Int64)
		ev.Latency = time.Duration(latencyMS.Int64) * time.Millisecond
		ev.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing output timestamp %q: %w", ts, err)
		}

		if ev.Compliant {
			ev.Output = &domain.ValidatedOutput{
				TradeScore:        tradeScore.Float64,
				ExtensionRisk:     extension.Float64,
				ExhaustionRisk:    exhaustion.Float64,
				FloatRotationRisk: floatRotation.Float64,
				MarketAlignment:   alignment.Float64,
				ExpectedRR:        expectedRR.Float64,
				Confidence:        confidence.Float64,
				ShouldTrade:       shouldTrade.Int64 != 0,
				Reasoning:         reasoning.String,
			}
		}
		evals = append(evals, ev)
	}
	return evals, rows.Err()
}

func (s *SQLiteStore) outcome(ctx context.Context, evaluationID string) (*domain.Outcome, error) {
	const query = `
SELECT trade_taken, r_multiple FROM outcomes
WHERE evaluation_id = ? ORDER BY recorded_at DESC LIMIT 1`

	var taken int
	var rMultiple sql.NullFloat64
	err := s.db.QueryRowContext(ctx, query, evaluationID).Scan(&taken, &rMultiple)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying outcome: %w", err)
	}

	out := &domain.Outcome{EvaluationID: evaluationID, TradeTaken: taken != 0}
	if rMultiple.Valid {
		r := rMultiple.Float64
		out.RMultiple = &r
	}
	return out, nil
}

// AppendWeightHistory records a weight transition for audit.
func (s *SQLiteStore) AppendWeightHistory(ctx context.Context, old, updated domain.EnsembleWeights, reason string) error {
	updatedJSON, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("encoding updated weights: %w", err)
	}
	prevJSON, err := json.Marshal(old)
	if err != nil {
		return fmt.Errorf("encoding previous weights: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO weight_history (weights_json, prev_json, sample_size, reason, created_at)
VALUES (?, ?, ?, ?, ?)`,
		string(updatedJSON), string(prevJSON), updated.SampleSize, reason,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("appending weight history: %w", err)
	}
	return nil
}

// RecordEvaluation persists a full evaluation run: the evaluation row plus
// one model_outputs row per provider. Used by the surrounding process
// after each ensemble run so drift and calibration have history to read.
func (s *SQLiteStore) RecordEvaluation(ctx context.Context, evaluationID, symbol, direction string, at time.Time, evals []domain.ProviderEvaluation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO evaluations (id, symbol, direction, timestamp) VALUES (?, ?, ?, ?)`,
		evaluationID, symbol, direction, at.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("inserting evaluation: %w", err)
	}

	for _, ev := range evals {
		var (
			tradeScore, extension, exhaustion, floatRotation *float64
			alignment, expectedRR, confidence                *float64
			shouldTrade                                      *int
			reasoning                                        *string
		)
		if ev.Output != nil {
			out := ev.Output
			tradeScore, extension = &out.TradeScore, &out.ExtensionRisk
			exhaustion, floatRotation = &out.ExhaustionRisk, &out.FloatRotationRisk
			alignment, expectedRR = &out.MarketAlignment, &out.ExpectedRR
			confidence = &out.Confidence
			st := 0
			if out.ShouldTrade {
				st = 1
			}
			shouldTrade = &st
			reasoning = &out.Reasoning
		}

		compliant := 0
		if ev.Compliant {
			compliant = 1
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO model_outputs (
	evaluation_id, model_id, trade_score, extension_risk, exhaustion_risk,
	float_rotation_risk, market_alignment_score, expected_rr, confidence,
	should_trade, reasoning, raw_response, compliant, error, latency_ms,
	model_version, prompt_hash, token_count, timestamp
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			evaluationID, ev.Provider, tradeScore, extension, exhaustion,
			floatRotation, alignment, expectedRR, confidence,
			shouldTrade, reasoning, ev.RawResponse, compliant, nullIfEmpty(ev.Err),
			ev.Latency.Milliseconds(), ev.ProviderVersion, ev.PromptFingerprint,
			ev.TokenCount, ev.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting model output for %s: %w", ev.Provider, err)
		}
	}
	return tx.Commit()
}

// RecordOutcome persists a settled outcome for an evaluation.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, outcome domain.Outcome) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO outcomes (evaluation_id, trade_taken, r_multiple, recorded_at)
VALUES (?, ?, ?, ?)`,
		outcome.EvaluationID, boolToInt(outcome.TradeTaken), outcome.RMultiple,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting outcome: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
