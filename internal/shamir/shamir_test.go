package shamir

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCombineRoundtrip(t *testing.T) {
	cases := []struct {
		n, t int
	}{
		{1, 1},
		{2, 2},
		{5, 3},
		{10, 7},
		{255, 2},
	}

	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)

	for _, tc := range cases {
		shares, err := Split(secret, tc.n, tc.t)
		require.NoError(t, err)
		require.Len(t, shares, tc.n)

		// Exactly the threshold, taken from the tail to avoid index bias.
		got, err := Combine(shares[tc.n-tc.t:])
		require.NoError(t, err)
		assert.Equal(t, secret, got, "n=%d t=%d", tc.n, tc.t)

		// All shares work too.
		got, err = Combine(shares)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	}
}

func TestCombineAnySubset(t *testing.T) {
	secret := []byte("master-key-material-0123456789ab")
	shares, err := Split(secret, 5, 3)
	require.NoError(t, err)

	subsets := [][]int{{0, 1, 2}, {0, 2, 4}, {1, 3, 4}, {2, 3, 4}, {4, 0, 3}}
	for _, idx := range subsets {
		subset := [][]byte{shares[idx[0]], shares[idx[1]], shares[idx[2]]}
		got, err := Combine(subset)
		require.NoError(t, err)
		assert.Equal(t, secret, got, "subset %v", idx)
	}
}

func TestCombineBelowThreshold(t *testing.T) {
	shares, err := Split([]byte("sensitive"), 5, 3)
	require.NoError(t, err)

	_, err = Combine(shares[:2])
	assert.ErrorIs(t, err, ErrInsufficientShares)

	_, err = Combine(nil)
	assert.ErrorIs(t, err, ErrInsufficientShares)
}

func TestSplitArgumentValidation(t *testing.T) {
	secret := []byte("x")

	_, err := Split(nil, 3, 2)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = Split(secret, 2, 3) // t > n
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = Split(secret, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidArguments)

	_, err = Split(secret, 256, 2)
	assert.ErrorIs(t, err, ErrInvalidArguments)
}

func TestCombineDetectsCorruption(t *testing.T) {
	secret := []byte("master-key-material-0123456789ab")
	shares, err := Split(secret, 5, 3)
	require.NoError(t, err)

	t.Run("FlippedPayloadByte", func(t *testing.T) {
		mutated := append([]byte(nil), shares[0]...)
		mutated[headerSize] ^= 0xff
		_, err := Combine([][]byte{mutated, shares[1], shares[2]})
		assert.ErrorIs(t, err, ErrCorruptShare)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Combine([][]byte{shares[0][:headerSize], shares[1], shares[2]})
		assert.ErrorIs(t, err, ErrCorruptShare)
	})

	t.Run("DuplicateShare", func(t *testing.T) {
		_, err := Combine([][]byte{shares[0], shares[0], shares[1]})
		assert.ErrorIs(t, err, ErrCorruptShare)
	})

	t.Run("MixedSplitBatches", func(t *testing.T) {
		other, err := Split(secret, 5, 3)
		require.NoError(t, err)
		_, err = Combine([][]byte{shares[0], shares[1], other[2]})
		assert.ErrorIs(t, err, ErrCorruptShare)
	})

	t.Run("UnknownFormatVersion", func(t *testing.T) {
		mutated := append([]byte(nil), shares[0]...)
		mutated[0] = 9
		_, err := Combine([][]byte{mutated, shares[1], shares[2]})
		assert.ErrorIs(t, err, ErrCorruptShare)
	})

	t.Run("PointMismatch", func(t *testing.T) {
		// Swap the payload's trailing coordinate and recompute the checksum,
		// so only the header/payload consistency check can catch it.
		mutated := append([]byte(nil), shares[0]...)
		body := mutated[:len(mutated)-checksumSize]
		body[len(body)-1] ^= 0xff
		sum := sha256.Sum256(body)
		copy(mutated[len(mutated)-checksumSize:], sum[:checksumSize])
		_, err := Combine([][]byte{mutated, shares[1], shares[2]})
		assert.ErrorIs(t, err, ErrCorruptShare)
	})
}

func TestSplitIsNonDeterministic(t *testing.T) {
	secret := []byte("same secret, fresh coefficients!")

	first, err := Split(secret, 3, 2)
	require.NoError(t, err)
	second, err := Split(secret, 3, 2)
	require.NoError(t, err)

	// Same secret and parameters must never produce the same share payloads;
	// matching payloads would mean coefficient reuse.
	for i := range first {
		assert.False(t, bytes.Equal(first[i], second[i]))
	}
}

func TestSingleShareThreshold(t *testing.T) {
	secret := []byte("master-key-material-0123456789ab")
	shares, err := Split(secret, 4, 1)
	require.NoError(t, err)

	for i, share := range shares {
		got, err := Combine([][]byte{share})
		require.NoError(t, err)
		assert.Equal(t, secret, got, "share %d", i)
	}
}
