// Package usecase defines the business logic interfaces for key hierarchy operations.
//
// This package contains interface definitions for repositories and use cases
// related to named, versioned encryption keys. Implementations handle lazy key
// creation, rotation, min decryption version management, and DEK unwrapping.
package usecase

import (
	"context"

	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
)

// KeyRepository defines the interface for encryption key persistence.
//
// This interface abstracts key storage operations, allowing different
// implementations for PostgreSQL, MySQL, or other data stores. It supports
// transaction-aware operations through context propagation, enabling atomic
// rotation workflows (append a version row and advance the current pointer in
// one transaction).
//
// Implementation requirements:
//   - CreateKey returns ErrConflict when the name already exists
//   - UpdateKey is guarded by RowVersion and returns ErrConflict on a lost race
//   - Version rows are append-only; there is no version update or delete
//
// Available implementations:
//   - PostgreSQLKeyRepository: Uses BYTEA for wrapped key material
//   - MySQLKeyRepository: Uses VARBINARY/BLOB for wrapped key material
type KeyRepository interface {
	// CreateKey stores new key metadata. Returns ErrConflict on duplicate name.
	CreateKey(ctx context.Context, key *keysDomain.EncryptionKey) error

	// GetKey retrieves key metadata by name. Returns ErrKeyNotFound when absent.
	GetKey(ctx context.Context, name string) (*keysDomain.EncryptionKey, error)

	// UpdateKey modifies key metadata guarded by RowVersion.
	UpdateKey(ctx context.Context, key *keysDomain.EncryptionKey) error

	// CreateVersion appends a wrapped DEK version row.
	CreateVersion(ctx context.Context, version *keysDomain.KeyVersion) error

	// GetVersion retrieves one wrapped DEK version.
	GetVersion(ctx context.Context, name string, version uint) (*keysDomain.KeyVersion, error)

	// ListKeys returns all key metadata ordered by name.
	ListKeys(ctx context.Context) ([]*keysDomain.EncryptionKey, error)
}

// MasterKeySource provides the unsealed master key.
//
// Returns nil while the engine is sealed; every use case operation translates
// that into ErrSealed so key material is never derivable from a sealed engine.
type MasterKeySource interface {
	MasterKey() []byte
}

// KeyUseCase defines the interface for key hierarchy business logic.
//
// All operations that touch key material require the engine to be unsealed.
// Version numbering starts at 1 and only grows; retired versions stay on disk
// but refuse to unwrap.
type KeyUseCase interface {
	// CreateKey explicitly creates a named key with version 1.
	// Returns ErrConflict if the name is taken.
	CreateKey(ctx context.Context, name string, alg keysDomain.Algorithm) (*keysDomain.EncryptionKey, error)

	// GetActiveDek returns the unwrapped DEK at the key's current version,
	// lazily creating the key (version 1, default algorithm) when it does not
	// exist yet. Concurrent first uses of the same name collapse into a single
	// creation. Callers must Zero the returned key material after use.
	GetActiveDek(ctx context.Context, name string) (*keysDomain.Dek, error)

	// GetDekVersion returns the unwrapped DEK at a specific version.
	// Returns ErrKeyVersionRetired when version is below the key's
	// min decryption version.
	GetDekVersion(ctx context.Context, name string, version uint) (*keysDomain.Dek, error)

	// Rotate appends a new DEK version and makes it current. Existing
	// ciphertext remains readable at its recorded version. Returns the new
	// current version.
	Rotate(ctx context.Context, name string) (uint, error)

	// SetMinDecryptionVersion raises the floor below which versions refuse to
	// unwrap. The floor never moves down and cannot exceed the current version.
	SetMinDecryptionVersion(ctx context.Context, name string, version uint) error

	// GetKey returns key metadata without any key material.
	GetKey(ctx context.Context, name string) (*keysDomain.EncryptionKey, error)

	// ListKeys returns all key metadata ordered by name.
	ListKeys(ctx context.Context) ([]*keysDomain.EncryptionKey, error)
}
