package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sealbox/sealbox/internal/leases/usecase"
)

// fakeLeaseUseCase serves a scripted sequence of ExpireDue results. The
// embedded interface covers the methods the sweeper never calls.
type fakeLeaseUseCase struct {
	usecase.LeaseUseCase

	mu      sync.Mutex
	batches []int64
	err     error
	limits  []int
}

func (f *fakeLeaseUseCase) ExpireDue(ctx context.Context, limit int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.limits = append(f.limits, limit)
	if f.err != nil {
		return 0, f.err
	}
	if len(f.batches) == 0 {
		return 0, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeLeaseUseCase) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.limits...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperDrainsBacklogInBatches(t *testing.T) {
	leases := &fakeLeaseUseCase{batches: []int64{500, 500, 120}}
	sweeper := NewSweeper(leases, testLogger(), time.Minute, 500, 1000)

	sweeper.sweep(context.Background())

	// Two full batches keep the loop going; the short third one ends it.
	assert.Equal(t, []int{500, 500, 500}, leases.calls())
}

func TestSweeperStopsSweepOnError(t *testing.T) {
	leases := &fakeLeaseUseCase{err: errors.New("connection refused")}
	sweeper := NewSweeper(leases, testLogger(), time.Minute, 500, 1000)

	sweeper.sweep(context.Background())

	assert.Len(t, leases.calls(), 1)
}

func TestSweeperStartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	leases := &fakeLeaseUseCase{}
	sweeper := NewSweeper(leases, testLogger(), time.Hour, 500, 1000)

	require.NoError(t, sweeper.Start())
	// Start is idempotent.
	require.NoError(t, sweeper.Start())

	sweeper.Stop()
	// Stop is safe on a stopped sweeper.
	sweeper.Stop()
}

func TestSweeperStopInterruptsInFlightSweep(t *testing.T) {
	defer goleak.VerifyNone(t)

	// Full batches forever, paced so slowly the sweep blocks in the limiter.
	leases := &fakeLeaseUseCase{batches: []int64{500, 500, 500, 500, 500, 500}}
	sweeper := NewSweeper(leases, testLogger(), time.Hour, 500, 0.001)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sweeper.sweep(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not stop after cancellation")
	}
}
