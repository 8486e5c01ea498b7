package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	t.Run("WrapNil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "context"))
	})

	t.Run("WrapPreservesChain", func(t *testing.T) {
		err := Wrap(ErrNotFound, "secret lookup")
		assert.True(t, stderrors.Is(err, ErrNotFound))
		assert.Equal(t, "secret lookup: not found", err.Error())
	})

	t.Run("WrapTwice", func(t *testing.T) {
		err := Wrap(Wrap(ErrConflict, "inner"), "outer")
		assert.True(t, stderrors.Is(err, ErrConflict))
		assert.Equal(t, "outer: inner: conflict", err.Error())
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrConflict))
	assert.True(t, IsRetryable(Wrap(ErrConflict, "cas failed")))
	assert.False(t, IsRetryable(ErrNotFound))
	assert.False(t, IsRetryable(ErrUnauthorized))
	assert.False(t, IsRetryable(nil))
}
