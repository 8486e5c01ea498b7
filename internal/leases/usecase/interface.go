// Package usecase implements business logic orchestration for lease management.
// It coordinates repositories, the secret store, and domain rules to issue,
// renew, revoke, and expire time-bounded access grants.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	leasesDomain "github.com/sealbox/sealbox/internal/leases/domain"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
)

// LeaseRepository defines the interface for lease persistence.
//
// Implementation requirements:
//   - UpdateActive only touches rows with status 'active', so a lease that a
//     concurrent revoke or sweep already terminated reports ErrAlreadyTerminal
//     instead of being resurrected
//   - Renewal rows are append-only
//   - ExpireBatch flips at most limit overdue active leases per call
//
// Available implementations:
//   - PostgreSQLLeaseRepository
//   - MySQLLeaseRepository
type LeaseRepository interface {
	// Create stores a new lease.
	Create(ctx context.Context, lease *leasesDomain.Lease) error

	// Get retrieves a lease by id. Returns ErrLeaseNotFound when absent.
	Get(ctx context.Context, id uuid.UUID) (*leasesDomain.Lease, error)

	// UpdateActive modifies a lease guarded by status = 'active'. Returns
	// ErrAlreadyTerminal when the lease is no longer active.
	UpdateActive(ctx context.Context, lease *leasesDomain.Lease) error

	// RecordExpiredRevocation stamps revocation metadata on a lease that
	// already expired, keeping its status. Only the first revoke writes;
	// later attempts are no-ops.
	RecordExpiredRevocation(ctx context.Context, lease *leasesDomain.Lease) error

	// ListActiveBySecret returns all active leases for a secret path.
	ListActiveBySecret(ctx context.Context, path string) ([]*leasesDomain.Lease, error)

	// CreateRenewal appends one renewal history row.
	CreateRenewal(ctx context.Context, renewal *leasesDomain.LeaseRenewal) error

	// ListRenewals returns a lease's renewal history ordered by renewed_at.
	ListRenewals(ctx context.Context, leaseID uuid.UUID) ([]*leasesDomain.LeaseRenewal, error)

	// ExpireBatch flips up to limit active leases with expires_at before now to
	// expired, returning how many rows changed.
	ExpireBatch(ctx context.Context, now time.Time, limit int) (int64, error)
}

// SecretStore is the slice of the secret store the lease manager needs: enough
// to tell whether a path still has a live current version.
type SecretStore interface {
	Metadata(ctx context.Context, path string) (*secretsDomain.Metadata, error)
}

// CreateOptions carries optional lease creation parameters.
type CreateOptions struct {
	// MaxRenewals bounds renewals for this lease; nil means the engine default.
	MaxRenewals *uint
	// AutoRenew marks the lease for agent-driven renewal.
	AutoRenew bool
}

// LeaseUseCase defines the interface for lease business logic.
type LeaseUseCase interface {
	// Create issues a lease on a secret path. Fails with ErrSecretNotFound
	// when the path has no live current version.
	Create(ctx context.Context, path, grantee string, duration time.Duration, opts CreateOptions) (*leasesDomain.Lease, error)

	// Renew extends a lease's expiry by exactly the increment, anchored at
	// the current expiry. The grantee must match (mismatch is an opaque
	// ErrUnauthorized). A nil increment defaults to the original duration.
	// Every attempt appends a history row.
	Renew(ctx context.Context, id uuid.UUID, grantee string, increment *time.Duration) (*leasesDomain.Lease, error)

	// Revoke terminates a lease early. Idempotent: revoking a revoked lease is
	// a no-op, revoking an expired lease records the attempt and succeeds.
	Revoke(ctx context.Context, id uuid.UUID, actor, reason string) error

	// RevokeAllForSecret revokes every active lease on a path.
	RevokeAllForSecret(ctx context.Context, path, actor, reason string) (int, error)

	// Get retrieves a lease by id.
	Get(ctx context.Context, id uuid.UUID) (*leasesDomain.Lease, error)

	// History returns a lease's renewal history.
	History(ctx context.Context, id uuid.UUID) ([]*leasesDomain.LeaseRenewal, error)

	// ExpireDue flips up to limit overdue active leases to expired.
	// Called by the sweeper; exposed for operational use.
	ExpireDue(ctx context.Context, limit int) (int64, error)
}
