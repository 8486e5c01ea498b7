// Package service implements the seal manager: the sealed/unsealed lifecycle of
// the master key, the unseal share ceremony, and optional KMS auto-unseal.
package service

import (
	"context"

	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
)

// SealConfigRepository defines the interface for seal configuration persistence.
type SealConfigRepository interface {
	Create(ctx context.Context, cfg *sealDomain.SealConfig) error
	Get(ctx context.Context) (*sealDomain.SealConfig, error)
	Update(ctx context.Context, cfg *sealDomain.SealConfig) error
}

// Keeper wraps and unwraps the master key with an external KMS for auto-unseal.
// *secrets.Keeper from gocloud.dev satisfies this interface.
type Keeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// Manager owns the sealed/unsealed lifecycle of the master key.
//
// The in-memory master key and the share accumulator are the engine's one
// exclusive-access resource: all methods are safe for concurrent use and share
// submission is fully serialized.
type Manager interface {
	// Initialize generates the master key, splits it into shareCount shares with
	// the given threshold, persists the seal configuration and returns the
	// shares exactly once. The engine is Sealed afterwards.
	Initialize(ctx context.Context, shareCount, threshold int) ([][]byte, error)

	// SubmitUnsealShare accumulates one distinct share. Below the threshold it
	// returns ThresholdNotMetError carrying only a progress count. At the
	// threshold it combines, verifies against the stored verification value and
	// either unseals (nil error) or clears the accumulator and returns
	// ErrInvalidKey.
	SubmitUnsealShare(ctx context.Context, share []byte) error

	// Seal clears the in-memory master key. Idempotent.
	Seal(ctx context.Context) error

	// MasterKey returns a copy of the master key, or nil while sealed.
	// Callers must treat nil as fail-closed and zero the copy after use.
	MasterKey() []byte

	// TryAutoUnseal restores the master key from the KMS-wrapped copy, if both
	// a keeper and a wrapped key are configured. A no-op otherwise.
	TryAutoUnseal(ctx context.Context) error

	// Status reports the current seal state for operators.
	Status(ctx context.Context) (sealDomain.Status, error)
}
