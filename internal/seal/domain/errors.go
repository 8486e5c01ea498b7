package domain

import (
	"fmt"

	"github.com/sealbox/sealbox/internal/errors"
)

// Seal lifecycle error definitions.
//
// Sealed-state errors fail closed and must never be retried automatically:
// recovering from them requires operator action (the unseal ceremony).
var (
	// ErrSealed indicates an operation required the master key while the engine
	// is sealed.
	ErrSealed = errors.New("engine is sealed")

	// ErrAlreadyInitialized indicates Initialize was called after a master key
	// was already generated.
	ErrAlreadyInitialized = errors.Wrap(errors.ErrConflict, "seal already initialized")

	// ErrNotInitialized indicates an unseal was attempted before Initialize.
	ErrNotInitialized = errors.Wrap(errors.ErrNotFound, "seal not initialized")

	// ErrAlreadyUnsealed indicates a share was submitted while unsealed.
	ErrAlreadyUnsealed = errors.Wrap(errors.ErrConflict, "engine is already unsealed")

	// ErrInvalidKey indicates the combined shares did not reproduce the master
	// key. The share accumulator is cleared so candidates cannot be guessed
	// incrementally.
	ErrInvalidKey = errors.New("unseal verification failed")

	// ErrThresholdNotMet indicates fewer than threshold distinct shares have
	// been collected. Wrapped by ThresholdNotMetError, which carries only the
	// progress count, never key material.
	ErrThresholdNotMet = errors.New("unseal threshold not met")
)

// ThresholdNotMetError reports unseal progress after accepting a share that did
// not yet reach the threshold.
type ThresholdNotMetError struct {
	Progress  int
	Threshold int
}

// Error implements the error interface.
func (e *ThresholdNotMetError) Error() string {
	return fmt.Sprintf("unseal threshold not met: %d of %d shares", e.Progress, e.Threshold)
}

// Unwrap lets errors.Is match ErrThresholdNotMet.
func (e *ThresholdNotMetError) Unwrap() error {
	return ErrThresholdNotMet
}
