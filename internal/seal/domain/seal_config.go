// Package domain defines the seal domain models: the persisted seal
// configuration singleton and the in-memory unseal ceremony state.
//
// The master key exists in exactly two forms: split into operator-held shares,
// or reconstructed in memory while the engine is unsealed. It is never persisted,
// except optionally wrapped by an external KMS keeper for auto-unseal.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MasterKeySize is the size of the generated master key in bytes.
const MasterKeySize = 32

// SealConfigID is the well-known primary key of the seal configuration
// singleton row. Keeping the singleton in the durable store, guarded by the
// same compare-and-swap discipline as secrets, lets multiple server instances
// agree on initialization state.
const SealConfigID = "seal-config"

// State is the seal lifecycle state.
type State string

const (
	// StateUninitialized means no master key has ever been generated.
	StateUninitialized State = "uninitialized"
	// StateSealed means the master key exists but is absent from memory.
	StateSealed State = "sealed"
	// StateUnsealed means the master key is available in memory.
	StateUnsealed State = "unsealed"
)

// SealConfig is the persisted seal configuration singleton.
type SealConfig struct {
	// ID is always SealConfigID.
	ID string
	// Initialized reports whether a master key has been generated.
	Initialized bool
	// ShareCount is the number of unseal shares generated at initialization (N).
	ShareCount int
	// Threshold is the number of distinct shares required to unseal (T).
	Threshold int
	// VerificationValue is derived from the master key (HKDF), never the key
	// itself. A reconstructed candidate key is checked against it before the
	// engine unseals.
	VerificationValue []byte
	// WrappedMasterKey is the master key encrypted by an external KMS keeper
	// for auto-unseal. Nil when auto-unseal is not configured.
	WrappedMasterKey []byte
	// ClusterID identifies this installation; shares from another cluster can
	// never verify here.
	ClusterID uuid.UUID
	// RowVersion guards updates with compare-and-swap.
	RowVersion uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Status is a point-in-time view of the seal for operators and metrics.
type Status struct {
	Initialized bool
	State       State
	// Progress is the number of distinct shares collected so far while sealed.
	Progress   int
	ShareCount int
	Threshold  int
	ClusterID  uuid.UUID
}

// Zero securely overwrites a byte slice with zeros to clear sensitive data from memory.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
