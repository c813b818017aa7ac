package ports

import (
	"context"
	"time"

	"github.com/marketbridge/go-council/internal/domain"
)

// EvaluationReader is the read handle over historical evaluation records.
// The drift detector and the weight simulator are pure computations over a
// snapshot; they rely on the implementation to guarantee a consistent read
// and require no locking of their own.
type EvaluationReader interface {
	// LinkedEvaluations returns every compliant, outcome-linked provider
	// evaluation recorded at or after since, ordered by evaluation
	// timestamp ascending.
	LinkedEvaluations(ctx context.Context, since time.Time) ([]domain.LinkedEvaluation, error)

	// EvaluationWindow returns the most recent limit complete evaluation
	// records (all providers' responses plus outcome when settled),
	// ordered by timestamp ascending. A limit of zero returns everything.
	EvaluationWindow(ctx context.Context, limit int) ([]domain.EvaluationRecord, error)
}

// WeightStore persists the active ensemble weight set. Load must supply
// documented defaults when no stored set exists or the stored set is
// unreadable; Save must be atomic so a concurrent reader never observes a
// partially written set.
type WeightStore interface {
	Load(ctx context.Context) (domain.EnsembleWeights, error)
	Save(ctx context.Context, weights domain.EnsembleWeights) error
}

// WeightHistoryLog records weight transitions for audit. The consensus core
// only appends; retention and pruning belong to the storage owner.
type WeightHistoryLog interface {
	// AppendWeightHistory records a transition from the previously active
	// set to the newly applied one, with the sample size it was derived
	// from and a free-text reason.
	AppendWeightHistory(ctx context.Context, old, updated domain.EnsembleWeights, reason string) error
}
