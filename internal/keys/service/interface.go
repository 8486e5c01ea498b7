package service

import (
	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
)

// AEAD defines the interface for authenticated encryption with associated data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional additional authenticated data.
	// Returns the ciphertext (with authentication tag appended) and the
	// randomly generated nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the nonce and AAD from encryption.
	// Fails if the ciphertext, nonce, or AAD has been altered.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager creates AEAD cipher instances for supported algorithms.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher for the given 32-byte key and algorithm.
	CreateCipher(key []byte, alg keysDomain.Algorithm) (AEAD, error)
}

// KeyWrapper wraps and unwraps DEKs with the master key.
//
// Wrapping binds each DEK to its (key name, version) identity through AAD, so
// a wrapped blob cannot be replayed under a different key or version.
type KeyWrapper interface {
	// Wrap encrypts a plaintext DEK under the master key.
	Wrap(masterKey, dek []byte, keyName string, version uint) (wrapped, nonce []byte, err error)

	// Unwrap decrypts a wrapped DEK. The keyName and version must match the
	// values used at wrap time.
	Unwrap(masterKey, wrapped, nonce []byte, keyName string, version uint) ([]byte, error)
}
