package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
)

func TestKeyWrapperRoundTrip(t *testing.T) {
	wrapper := NewKeyWrapper(NewAEADManager())
	masterKey := testKey(t)
	dek := testKey(t)

	wrapped, nonce, err := wrapper.Wrap(masterKey, dek, "app-secrets", 1)
	require.NoError(t, err)
	assert.NotEqual(t, dek, wrapped)

	unwrapped, err := wrapper.Unwrap(masterKey, wrapped, nonce, "app-secrets", 1)
	require.NoError(t, err)
	assert.Equal(t, dek, unwrapped)
}

func TestKeyWrapperBindsKeyIdentity(t *testing.T) {
	wrapper := NewKeyWrapper(NewAEADManager())
	masterKey := testKey(t)
	dek := testKey(t)

	wrapped, nonce, err := wrapper.Wrap(masterKey, dek, "app-secrets", 1)
	require.NoError(t, err)

	// A wrapped blob only unwraps under the exact name and version it was
	// created for.
	_, err = wrapper.Unwrap(masterKey, wrapped, nonce, "app-secrets", 2)
	assert.ErrorIs(t, err, keysDomain.ErrDecryptionFailed)

	_, err = wrapper.Unwrap(masterKey, wrapped, nonce, "other-key", 1)
	assert.ErrorIs(t, err, keysDomain.ErrDecryptionFailed)
}

func TestKeyWrapperRejectsWrongMasterKey(t *testing.T) {
	wrapper := NewKeyWrapper(NewAEADManager())
	masterKey := testKey(t)
	dek := testKey(t)

	wrapped, nonce, err := wrapper.Wrap(masterKey, dek, "app-secrets", 1)
	require.NoError(t, err)

	_, err = wrapper.Unwrap(testKey(t), wrapped, nonce, "app-secrets", 1)
	assert.ErrorIs(t, err, keysDomain.ErrDecryptionFailed)
}

func TestKeyWrapperRejectsShortDek(t *testing.T) {
	wrapper := NewKeyWrapper(NewAEADManager())

	_, _, err := wrapper.Wrap(testKey(t), make([]byte, 16), "app-secrets", 1)
	assert.ErrorIs(t, err, keysDomain.ErrInvalidKeySize)
}
