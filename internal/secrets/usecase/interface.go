// Package usecase implements business logic orchestration for the secret store.
// It coordinates the key hierarchy, repositories, and domain rules to provide
// versioned, envelope-encrypted secret storage with check-and-set writes and
// two-tier deletion.
package usecase

import (
	"context"

	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
)

// SecretRepository defines the interface for secret persistence.
//
// Implementation requirements:
//   - CreateSecret returns ErrConflict when the path already exists
//   - UpdateSecret is guarded by RowVersion and returns ErrConflict on a lost
//     race; exactly one concurrent writer advances the current pointer
//   - CreateVersion returns ErrConflict when (path, version) already exists,
//     so a racing writer that lost the pointer race aborts at the insert
//   - Version rows never lose their row; destroying erases ciphertext in place
//
// Available implementations:
//   - PostgreSQLSecretRepository
//   - MySQLSecretRepository
//   - CachedSecretRepository (read-through decorator over either)
type SecretRepository interface {
	// CreateSecret stores new path metadata. Returns ErrConflict on duplicate path.
	CreateSecret(ctx context.Context, secret *secretsDomain.Secret) error

	// GetSecret retrieves path metadata. Returns ErrSecretNotFound when absent.
	GetSecret(ctx context.Context, path string) (*secretsDomain.Secret, error)

	// UpdateSecret modifies path metadata guarded by RowVersion.
	UpdateSecret(ctx context.Context, secret *secretsDomain.Secret) error

	// CreateVersion appends one version row. Returns ErrConflict when the
	// (path, version) pair already exists.
	CreateVersion(ctx context.Context, version *secretsDomain.SecretVersion) error

	// GetVersion retrieves one version row regardless of state.
	GetVersion(ctx context.Context, path string, version uint) (*secretsDomain.SecretVersion, error)

	// ListVersions returns all version rows for a path ordered by version,
	// without ciphertext.
	ListVersions(ctx context.Context, path string) ([]*secretsDomain.SecretVersion, error)

	// SetVersionState transitions a version row. When erase is true the
	// ciphertext and nonce are nulled in the same statement.
	SetVersionState(ctx context.Context, path string, version uint, state secretsDomain.VersionState, erase bool) error

	// ListPaths returns all paths with the given prefix, ordered.
	ListPaths(ctx context.Context, prefix string) ([]string, error)
}

// SecretUseCase defines the interface for secret store business logic.
//
// All read and write operations require the engine to be unsealed; they fail
// with ErrSealed otherwise.
type SecretUseCase interface {
	// Write appends a new version at the path, creating the path on first
	// write. CAS semantics: nil skips the check unless the secret requires it;
	// 0 means the path must not exist; any other value must equal the current
	// version. Returns the stored version row without plaintext.
	Write(ctx context.Context, path string, data []byte, opts secretsDomain.WriteOptions) (*secretsDomain.SecretVersion, error)

	// Read decrypts one version; version 0 means the current version.
	// Soft-deleted and missing versions read as ErrSecretNotFound, destroyed
	// versions as ErrVersionDestroyed. Callers must Zero the plaintext.
	Read(ctx context.Context, path string, version uint) (*secretsDomain.SecretVersion, error)

	// Delete soft-deletes the given versions (current version when empty).
	// Deleting a soft-deleted version is a no-op; a destroyed version fails.
	Delete(ctx context.Context, path string, versions []uint) error

	// Undelete restores soft-deleted versions to live. Destroyed versions fail
	// with ErrVersionDestroyed.
	Undelete(ctx context.Context, path string, versions []uint) error

	// Destroy permanently erases the ciphertext of the given versions
	// (current version when empty). Idempotent.
	Destroy(ctx context.Context, path string, versions []uint) error

	// List returns the immediate child segments under a prefix,
	// directory-style: leaf names as-is, intermediate segments with a
	// trailing slash, deduplicated and ordered.
	List(ctx context.Context, prefix string) ([]string, error)

	// Metadata returns the path's version history without any secret material.
	Metadata(ctx context.Context, path string) (*secretsDomain.Metadata, error)
}
