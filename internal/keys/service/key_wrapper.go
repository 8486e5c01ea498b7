package service

import (
	"fmt"

	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
)

// KeyWrapperService wraps DEKs under the master key using AES-256-GCM.
//
// The AAD for every wrap is "name:version", so a wrapped blob decrypts only
// under the exact key identity it was created for. Swapping blobs between
// versions or keys fails authentication.
type KeyWrapperService struct {
	aeadManager AEADManager
}

// NewKeyWrapper creates a new KeyWrapperService.
func NewKeyWrapper(aeadManager AEADManager) *KeyWrapperService {
	return &KeyWrapperService{aeadManager: aeadManager}
}

func wrapAAD(keyName string, version uint) []byte {
	return []byte(fmt.Sprintf("%s:%d", keyName, version))
}

// Wrap encrypts a plaintext DEK under the master key, binding it to the
// key name and version through AAD.
func (kw *KeyWrapperService) Wrap(masterKey, dek []byte, keyName string, version uint) (wrapped, nonce []byte, err error) {
	if len(dek) != keysDomain.KeySize {
		return nil, nil, keysDomain.ErrInvalidKeySize
	}

	cipher, err := kw.aeadManager.CreateCipher(masterKey, keysDomain.AESGCM)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create wrapping cipher: %w", err)
	}

	wrapped, nonce, err = cipher.Encrypt(dek, wrapAAD(keyName, version))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to wrap key %q version %d: %w", keyName, version, err)
	}
	return wrapped, nonce, nil
}

// Unwrap decrypts a wrapped DEK. The keyName and version must match the
// values supplied at wrap time or authentication fails.
func (kw *KeyWrapperService) Unwrap(masterKey, wrapped, nonce []byte, keyName string, version uint) ([]byte, error) {
	cipher, err := kw.aeadManager.CreateCipher(masterKey, keysDomain.AESGCM)
	if err != nil {
		return nil, fmt.Errorf("failed to create wrapping cipher: %w", err)
	}

	dek, err := cipher.Decrypt(wrapped, nonce, wrapAAD(keyName, version))
	if err != nil {
		return nil, keysDomain.ErrDecryptionFailed
	}
	if len(dek) != keysDomain.KeySize {
		keysDomain.Zero(dek)
		return nil, keysDomain.ErrInvalidKeySize
	}
	return dek, nil
}
