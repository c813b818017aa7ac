package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/marketbridge/go-council/internal/domain"
	"github.com/marketbridge/go-council/internal/ports"
)

// WeightHolder serves the active weight set to concurrent evaluation
// requests. Readers get an isolated clone; the set is only ever swapped
// wholesale, either explicitly or by reloading from the backing store.
// Reload cadence belongs to the surrounding process; the holder itself
// never polls.
type WeightHolder struct {
	mu      sync.RWMutex
	current domain.EnsembleWeights

	store  ports.WeightStore
	logger zerolog.Logger
}

// NewWeightHolder creates a holder primed from the store. The store's
// defaults-on-corruption behavior means priming only fails on real I/O
// trouble.
func NewWeightHolder(ctx context.Context, store ports.WeightStore, logger zerolog.Logger) (*WeightHolder, error) {
	weights, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("priming weight holder: %w", err)
	}
	return &WeightHolder{
		current: weights,
		store:   store,
		logger:  logger.With().Str("component", "weight_holder").Logger(),
	}, nil
}

// Current returns a clone of the active set.
func (h *WeightHolder) Current() domain.EnsembleWeights {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current.Clone()
}

// Reload re-reads the backing store and swaps in whatever it returns.
func (h *WeightHolder) Reload(ctx context.Context) error {
	weights, err := h.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reloading weights: %w", err)
	}
	h.Swap(weights)
	return nil
}

// Swap replaces the active set wholesale.
func (h *WeightHolder) Swap(weights domain.EnsembleWeights) {
	h.mu.Lock()
	h.current = weights.Clone()
	h.mu.Unlock()
	h.logger.Info().
		Str("provenance", string(weights.Provenance)).
		Msg("active weight set swapped")
}
