// Package storage provides the persistence adapters behind the ports
// interfaces: a JSON file store for the active ensemble weight set, an
// in-process holder that serves the active set to concurrent readers, and
// a SQLite read handle over historical evaluations and outcomes.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/marketbridge/go-council/internal/domain"
)

// FileWeightStore persists the active weight set as a JSON document. A
// missing or unreadable file degrades to the default even split so a
// corrupt weight file never takes down the evaluation path.
type FileWeightStore struct {
	path      string
	providers []string
	logger    zerolog.Logger
}

// NewFileWeightStore creates a store at path. The provider list seeds the
// default weight set used when no valid file exists.
func NewFileWeightStore(path string, providers []string, logger zerolog.Logger) *FileWeightStore {
	return &FileWeightStore{
		path:      path,
		providers: providers,
		logger:    logger.With().Str("component", "weight_store").Str("path", path).Logger(),
	}
}

// Load reads the stored weight set. File absence is the normal first-run
// state and returns defaults silently; a present-but-unreadable file also
// returns defaults but logs what was wrong.
func (s *FileWeightStore) Load(_ context.Context) (domain.EnsembleWeights, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Msg("weight file unreadable, using defaults")
		}
		return domain.DefaultWeights(s.providers), nil
	}

	var weights domain.EnsembleWeights
	if err := json.Unmarshal(data, &weights); err != nil {
		s.logger.Warn().Err(err).Msg("weight file corrupt, using defaults")
		return domain.DefaultWeights(s.providers), nil
	}
	if len(weights.Weights) == 0 {
		s.logger.Warn().Msg("weight file has no providers, using defaults")
		return domain.DefaultWeights(s.providers), nil
	}
	if weights.Provenance == "" || weights.Provenance == domain.ProvenanceDefault {
		weights.Provenance = domain.ProvenanceFile
	}
	return weights, nil
}

// Save writes the weight set atomically: a temp file in the same directory
// followed by a rename, so a concurrent Load never sees a half-written
// document.
func (s *FileWeightStore) Save(_ context.Context, weights domain.EnsembleWeights) error {
	data, err := json.MarshalIndent(weights, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding weights: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating weight directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".weights-*.json")
	if err != nil {
		return fmt.Errorf("creating temp weight file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp weight file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp weight file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing weight file: %w", err)
	}

	s.logger.Info().
		Str("provenance", string(weights.Provenance)).
		Int("sample_size", weights.SampleSize).
		Msg("weight set saved")
	return nil
}
