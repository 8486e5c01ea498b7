package domain

import (
	"github.com/sealbox/sealbox/internal/errors"
)

// Key hierarchy error definitions.
var (
	// ErrUnsupportedAlgorithm indicates the requested encryption algorithm is not supported.
	// Supported algorithms: AESGCM (AES-256-GCM), ChaCha20 (ChaCha20-Poly1305).
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates a key is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrKeyNotFound indicates no encryption key exists with the given name.
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "encryption key not found")

	// ErrKeyVersionNotFound indicates the requested version does not exist.
	ErrKeyVersionNotFound = errors.Wrap(errors.ErrNotFound, "key version not found")

	// ErrKeyVersionRetired indicates the requested version is below the key's
	// min decryption version. Ciphertext bound to it is permanently foreclosed.
	ErrKeyVersionRetired = errors.Wrap(errors.ErrNotFound, "key version retired")

	// ErrDecryptionFailed indicates an unwrap or decrypt operation failed.
	// The specific cause is not disclosed; details are logged server-side.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInternal, "decryption failed")
)
