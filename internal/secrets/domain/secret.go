// Package domain defines the core domain models for the versioned secret store.
//
// Each secret path owns an ordered, append-only version history. Updates never
// overwrite: a write appends a new version row and advances the current
// pointer on the metadata row. Every version records the key name and key
// version that encrypted it, so reads decrypt with exactly the DEK version in
// effect at write time even after key rotation.
package domain

import (
	"time"
)

// VersionState is the lifecycle state of one secret version.
type VersionState string

const (
	// StateLive means the version's ciphertext is present and readable.
	StateLive VersionState = "live"
	// StateSoftDeleted hides the version from reads; the ciphertext remains
	// and the version can be undeleted.
	StateSoftDeleted VersionState = "soft_deleted"
	// StateDestroyed means the ciphertext has been erased. Absorbing: no
	// transition leaves this state.
	StateDestroyed VersionState = "destroyed"
)

// Secret is the per-path metadata row.
type Secret struct {
	// Path is the hierarchical logical key (e.g., "db/prod/password").
	Path string
	// CurrentVersion is the version served by default reads. Zero only for a
	// metadata row whose every version has been destroyed.
	CurrentVersion uint
	// MaxVersions bounds the retained history; 0 means the engine default.
	// When exceeded, the oldest surviving version is destroyed.
	MaxVersions uint
	// CasRequired forces every write to carry an explicit CAS value.
	CasRequired bool
	// RowVersion guards the current pointer with compare-and-swap; exactly one
	// racing writer advances it.
	RowVersion uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SecretVersion is one immutable entry in a path's history.
type SecretVersion struct {
	Path    string
	Version uint
	// Ciphertext is nil once the version is destroyed.
	Ciphertext []byte
	Nonce      []byte
	// KeyName and KeyVersion record the DEK identity used at write time.
	KeyName    string
	KeyVersion uint
	State      VersionState
	// DeletionTime is set when the version was soft-deleted or destroyed.
	DeletionTime *time.Time
	CreatedAt    time.Time
	// Plaintext holds the decrypted value in memory only; must be zeroed after use.
	Plaintext []byte `json:"-"`
}

// Metadata is the version history of a path without any secret material.
type Metadata struct {
	Secret   *Secret
	Versions []*SecretVersion
}

// WriteOptions carries per-write options.
type WriteOptions struct {
	// CAS is the expected current version: 0 means "must not exist", any other
	// value must equal the current version. Nil skips the check unless the
	// secret has CasRequired set.
	CAS *uint
	// MaxVersions overrides the retained history bound for this path when the
	// write creates it. Ignored on existing paths.
	MaxVersions uint
	// CasRequired marks the path as requiring CAS on every future write when
	// the write creates it. Ignored on existing paths.
	CasRequired bool
}

// Zero securely overwrites a byte slice with zeros to clear sensitive data from memory.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
