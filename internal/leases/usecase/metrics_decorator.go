package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	leasesDomain "github.com/sealbox/sealbox/internal/leases/domain"
	"github.com/sealbox/sealbox/internal/metrics"
)

// leaseUseCaseWithMetrics decorates LeaseUseCase with metrics instrumentation.
type leaseUseCaseWithMetrics struct {
	next    LeaseUseCase
	metrics metrics.BusinessMetrics
}

// NewLeaseUseCaseWithMetrics wraps a LeaseUseCase with metrics recording.
func NewLeaseUseCaseWithMetrics(useCase LeaseUseCase, m metrics.BusinessMetrics) LeaseUseCase {
	return &leaseUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (l *leaseUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	l.metrics.RecordOperation(ctx, "leases", operation, status)
	l.metrics.RecordDuration(ctx, "leases", operation, time.Since(start), status)
}

// Create records metrics for lease creation.
func (l *leaseUseCaseWithMetrics) Create(
	ctx context.Context,
	path, grantee string,
	duration time.Duration,
	opts CreateOptions,
) (*leasesDomain.Lease, error) {
	start := time.Now()
	lease, err := l.next.Create(ctx, path, grantee, duration, opts)
	l.record(ctx, "lease_create", start, err)
	return lease, err
}

// Renew records metrics for lease renewals.
func (l *leaseUseCaseWithMetrics) Renew(
	ctx context.Context,
	id uuid.UUID,
	grantee string,
	increment *time.Duration,
) (*leasesDomain.Lease, error) {
	start := time.Now()
	lease, err := l.next.Renew(ctx, id, grantee, increment)
	l.record(ctx, "lease_renew", start, err)
	return lease, err
}

// Revoke records metrics for lease revocations.
func (l *leaseUseCaseWithMetrics) Revoke(ctx context.Context, id uuid.UUID, actor, reason string) error {
	start := time.Now()
	err := l.next.Revoke(ctx, id, actor, reason)
	l.record(ctx, "lease_revoke", start, err)
	return err
}

// RevokeAllForSecret records metrics for bulk revocations.
func (l *leaseUseCaseWithMetrics) RevokeAllForSecret(
	ctx context.Context,
	path, actor, reason string,
) (int, error) {
	start := time.Now()
	revoked, err := l.next.RevokeAllForSecret(ctx, path, actor, reason)
	l.record(ctx, "lease_revoke_all", start, err)
	return revoked, err
}

// Get records metrics for lease lookups.
func (l *leaseUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*leasesDomain.Lease, error) {
	start := time.Now()
	lease, err := l.next.Get(ctx, id)
	l.record(ctx, "lease_get", start, err)
	return lease, err
}

// History records metrics for renewal history reads.
func (l *leaseUseCaseWithMetrics) History(
	ctx context.Context,
	id uuid.UUID,
) ([]*leasesDomain.LeaseRenewal, error) {
	start := time.Now()
	renewals, err := l.next.History(ctx, id)
	l.record(ctx, "lease_history", start, err)
	return renewals, err
}

// ExpireDue records metrics for expiration sweeps.
func (l *leaseUseCaseWithMetrics) ExpireDue(ctx context.Context, limit int) (int64, error) {
	start := time.Now()
	expired, err := l.next.ExpireDue(ctx, limit)
	l.record(ctx, "lease_expire_due", start, err)
	return expired, err
}
