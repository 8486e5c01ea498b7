package domain

import (
	"github.com/sealbox/sealbox/internal/errors"
)

// Secret store error definitions.
var (
	// ErrSecretNotFound indicates no secret exists at the path, or the
	// requested version is hidden by a soft delete.
	ErrSecretNotFound = errors.Wrap(errors.ErrNotFound, "secret not found")

	// ErrVersionNotFound indicates the requested version number does not exist.
	ErrVersionNotFound = errors.Wrap(errors.ErrNotFound, "secret version not found")

	// ErrVersionDestroyed indicates the version's ciphertext has been
	// permanently erased.
	ErrVersionDestroyed = errors.Wrap(errors.ErrNotFound, "secret version destroyed")

	// ErrCasMismatch indicates the write's expected version did not match the
	// current version. The caller should re-read and retry deliberately; the
	// engine never retries on its own.
	ErrCasMismatch = errors.Wrap(errors.ErrConflict, "check-and-set version mismatch")

	// ErrCasRequired indicates the secret requires every write to carry an
	// explicit CAS value and none was provided.
	ErrCasRequired = errors.Wrap(errors.ErrInvalidInput, "check-and-set value required")
)
