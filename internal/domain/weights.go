package domain

import "time"

// WeightProvenance records where the active weight set came from.
type WeightProvenance string

const (
	// ProvenanceDefault marks the built-in even split used when no stored
	// weight set exists.
	ProvenanceDefault WeightProvenance = "default"

	// ProvenanceFile marks a weight set loaded from the backing store.
	ProvenanceFile WeightProvenance = "file"

	// ProvenanceSimulation marks a weight set committed after an operator
	// approved a simulation run.
	ProvenanceSimulation WeightProvenance = "simulation"
)

// EnsembleWeights is the complete tunable parameter set for consensus
// scoring. Exactly one set is active at a time and it is always replaced
// wholesale; nothing ever mutates an active set in place.
type EnsembleWeights struct {
	// Weights maps provider name to its non-negative weight. The values
	// need not sum to one; consensus normalizes over compliant providers.
	Weights map[string]float64 `json:"weights" yaml:"weights" validate:"required,dive,min=0"`

	// DisagreementK scales the penalty applied when providers disagree.
	DisagreementK float64 `json:"k" yaml:"k" validate:"min=0"`

	// MinWeight floors every compliant provider's effective weight so a
	// provider that parsed and validated is never fully zeroed out.
	MinWeight float64 `json:"min_weight" yaml:"min_weight" validate:"min=0"`

	// SampleSize is the number of scored outcomes the set was derived from.
	SampleSize int `json:"sample_size" yaml:"sample_size" validate:"min=0"`

	// Provenance records how the set came to be active.
	Provenance WeightProvenance `json:"provenance" yaml:"provenance" validate:"required,oneof=default file simulation"`

	// UpdatedAt is when the set became active.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// DefaultWeights returns the even-split weight set used when no stored set
// exists or the backing store is unreadable.
func DefaultWeights(providers []string) EnsembleWeights {
	weights := make(map[string]float64, len(providers))
	share := 0.0
	if len(providers) > 0 {
		share = 1.0 / float64(len(providers))
	}
	for _, p := range providers {
		weights[p] = share
	}
	return EnsembleWeights{
		Weights:       weights,
		DisagreementK: 1.5,
		MinWeight:     0.05,
		SampleSize:    0,
		Provenance:    ProvenanceDefault,
	}
}

// Clone returns a deep copy so holders can hand out snapshots without
// exposing their internal map to mutation.
func (w EnsembleWeights) Clone() EnsembleWeights {
	out := w
	out.Weights = make(map[string]float64, len(w.Weights))
	for k, v := range w.Weights {
		out.Weights[k] = v
	}
	return out
}

// WeightFor returns the configured weight for a provider, zero when the
// provider is absent from the set.
func (w EnsembleWeights) WeightFor(provider string) float64 {
	return w.Weights[provider]
}
