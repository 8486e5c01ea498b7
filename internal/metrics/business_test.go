package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBusinessMetrics(t *testing.T) {
	provider, err := NewProvider("sealbox_test")
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(context.Background()) }()

	bm, err := NewBusinessMetrics(provider.MeterProvider(), "sealbox_test")
	require.NoError(t, err)
	require.NotNil(t, bm)

	// Recording must not panic on any path.
	ctx := context.Background()
	bm.RecordOperation(ctx, "secrets", "secret_write", "success")
	bm.RecordDuration(ctx, "leases", "lease_renew", 25*time.Millisecond, "error")
	bm.SetSealState(ctx, true)
	bm.SetSealState(ctx, false)
}

func TestNoOpBusinessMetrics(t *testing.T) {
	bm := NewNoOpBusinessMetrics()
	assert.NotNil(t, bm)

	ctx := context.Background()
	bm.RecordOperation(ctx, "seal", "unseal_submit", "success")
	bm.RecordDuration(ctx, "seal", "unseal_submit", time.Second, "success")
	bm.SetSealState(ctx, true)
}

func TestProviderHandler(t *testing.T) {
	provider, err := NewProvider("sealbox_test")
	require.NoError(t, err)
	defer func() { _ = provider.Shutdown(context.Background()) }()

	assert.NotNil(t, provider.Handler())
	assert.NotNil(t, provider.MeterProvider())
}
