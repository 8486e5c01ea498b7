// Package domain defines the key hierarchy domain models.
//
// Named encryption keys own an append-only, ordered list of wrapped Data
// Encryption Keys (DEKs). The master key wraps every DEK version; plaintext
// DEKs exist only transiently in memory. Rotation appends a version and moves
// the "current" pointer; retiring old ciphertext moves the "floor"
// (min decryption version). Past entries are never mutated in place, which is
// what makes lazy re-encryption of secret data safe.
package domain

import (
	"time"
)

// EncryptionKey is the metadata row for a named, versioned key.
type EncryptionKey struct {
	// Name uniquely identifies the key (e.g., "secrets-engine").
	Name string
	// Algorithm applies to every version of this key.
	Algorithm Algorithm
	// CurrentVersion is the version used to encrypt new data.
	CurrentVersion uint
	// MinDecryptionVersion is the floor: unwrapping any version below it fails.
	// Raising the floor permanently forecloses ciphertext bound to older
	// versions. Invariant: CurrentVersion >= MinDecryptionVersion >= 1.
	MinDecryptionVersion uint
	// Exportable permits the plaintext DEK to leave the engine boundary.
	Exportable bool
	// DeletionAllowed permits the key to be deleted once nothing references it.
	DeletionAllowed bool
	// RowVersion guards metadata updates with compare-and-swap.
	RowVersion uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// KeyVersion is one wrapped DEK blob, keyed by (key name, version).
type KeyVersion struct {
	KeyName string
	Version uint
	// WrappedKey is the DEK encrypted with the master key.
	WrappedKey []byte
	// Nonce is the AEAD nonce used to wrap the DEK.
	Nonce     []byte
	CreatedAt time.Time
}

// Dek is an unwrapped data encryption key, valid only in memory.
// Callers must Zero the Key after use.
type Dek struct {
	KeyName   string
	Version   uint
	Algorithm Algorithm
	Key       []byte
}

// Zero securely overwrites a byte slice with zeros to clear sensitive data from memory.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
