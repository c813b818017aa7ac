package domain

import (
	"errors"
	"fmt"
)

// Common domain errors shared across the evaluation pipeline.
var (
	// ErrNoProviders indicates an ensemble operation was attempted with
	// zero registered providers.
	ErrNoProviders = errors.New("no providers registered")

	// ErrEmptyWindow indicates a simulation was requested over an empty
	// historical window.
	ErrEmptyWindow = errors.New("empty historical window")

	// ErrSampleTooSmall indicates a weight apply was refused because the
	// backing window is below the configured minimum sample size.
	ErrSampleTooSmall = errors.New("sample size below minimum")

	// ErrInvalidConfiguration indicates configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// PayloadError describes why a provider response failed structured-output
// validation. It is recovered locally into a non-compliant evaluation rather
// than propagated; the type exists so callers can distinguish parse failures
// from range violations in logs and tests.
type PayloadError struct {
	// Provider is the forecasting source whose payload failed.
	Provider string

	// Stage names the step that failed: "parse" or "validate".
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface for PayloadError.
func (e *PayloadError) Error() string {
	return fmt.Sprintf("provider %s: payload %s failed: %v", e.Provider, e.Stage, e.Err)
}

// Unwrap returns the underlying error for errors.Is / errors.As chains.
func (e *PayloadError) Unwrap() error { return e.Err }

// NewPayloadError creates a PayloadError for the given provider and stage.
func NewPayloadError(provider, stage string, err error) *PayloadError {
	return &PayloadError{Provider: provider, Stage: stage, Err: err}
}
