package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	leasesDomain "github.com/sealbox/sealbox/internal/leases/domain"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
	"github.com/sealbox/sealbox/internal/validation"
)

// leaseUseCase implements LeaseUseCase.
type leaseUseCase struct {
	txManager database.TxManager
	leaseRepo LeaseRepository
	secrets   SecretStore
	logger    *slog.Logger
	nowFn     func() time.Time

	// defaultMaxRenewals applies to leases created without an explicit bound;
	// 0 means unlimited.
	defaultMaxRenewals uint
}

// NewLeaseUseCase creates a new lease use case instance with the provided dependencies.
func NewLeaseUseCase(
	txManager database.TxManager,
	leaseRepo LeaseRepository,
	secrets SecretStore,
	logger *slog.Logger,
	defaultMaxRenewals uint,
) LeaseUseCase {
	return &leaseUseCase{
		txManager:          txManager,
		leaseRepo:          leaseRepo,
		secrets:            secrets,
		logger:             logger,
		nowFn:              func() time.Time { return time.Now().UTC() },
		defaultMaxRenewals: defaultMaxRenewals,
	}
}

// checkLeasableSecret verifies the path has a live current version.
func (l *leaseUseCase) checkLeasableSecret(ctx context.Context, path string) error {
	md, err := l.secrets.Metadata(ctx, path)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return leasesDomain.ErrSecretNotFound
		}
		return err
	}

	current := md.Secret.CurrentVersion
	for _, version := range md.Versions {
		if version.Version == current && version.State == secretsDomain.StateLive {
			return nil
		}
	}
	return leasesDomain.ErrSecretNotFound
}

// Create issues a lease on a secret path.
func (l *leaseUseCase) Create(
	ctx context.Context,
	path, grantee string,
	duration time.Duration,
	opts CreateOptions,
) (*leasesDomain.Lease, error) {
	if err := validation.WrapValidationError(validation.SecretPath.Validate(path)); err != nil {
		return nil, err
	}
	if err := validation.WrapValidationError(validation.NotBlank.Validate(grantee)); err != nil {
		return nil, err
	}
	if err := validation.WrapValidationError((validation.PositiveDuration{}).Validate(duration)); err != nil {
		return nil, err
	}

	if err := l.checkLeasableSecret(ctx, path); err != nil {
		return nil, err
	}

	now := l.nowFn()
	lease := &leasesDomain.Lease{
		ID:          uuid.Must(uuid.NewV7()),
		SecretPath:  path,
		Grantee:     grantee,
		IssuedAt:    now,
		ExpiresAt:   now.Add(duration),
		Duration:    duration,
		MaxRenewals: opts.MaxRenewals,
		AutoRenew:   opts.AutoRenew,
		Status:      leasesDomain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.leaseRepo.Create(ctx, lease); err != nil {
		return nil, err
	}

	l.logger.Info("lease created",
		slog.String("lease_id", lease.ID.String()),
		slog.String("secret_path", path),
		slog.String("grantee", grantee),
		slog.Time("expires_at", lease.ExpiresAt),
	)
	return lease, nil
}

// renewalLimit resolves the effective bound for a lease; 0 means unlimited.
func (l *leaseUseCase) renewalLimit(lease *leasesDomain.Lease) uint {
	if lease.MaxRenewals != nil {
		return *lease.MaxRenewals
	}
	return l.defaultMaxRenewals
}

// Renew extends a lease; every adjudicated attempt appends a history row.
//
// Failure rows are written outside the update transaction so a refused
// renewal still leaves its trace.
func (l *leaseUseCase) Renew(
	ctx context.Context,
	id uuid.UUID,
	grantee string,
	increment *time.Duration,
) (*leasesDomain.Lease, error) {
	lease, err := l.leaseRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	// The grantee check reveals nothing about the lease; a wrong grantee
	// learns only that the renewal was refused.
	if lease.Grantee != grantee {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "lease renewal refused")
	}

	now := l.nowFn()
	if lease.Terminal() {
		return nil, leasesDomain.ErrAlreadyTerminal
	}
	if !lease.ExpiresAt.After(now) {
		// Overdue but not yet swept; refuse rather than resurrect it.
		return nil, l.failRenewal(ctx, lease, now, grantee, leasesDomain.ErrAlreadyTerminal)
	}

	if limit := l.renewalLimit(lease); limit > 0 && lease.RenewalCount >= limit {
		return nil, l.failRenewal(ctx, lease, now, grantee, leasesDomain.ErrRenewalLimitExceeded)
	}

	// A lease on a destroyed or deleted secret must not outlive it.
	if err := l.checkLeasableSecret(ctx, lease.SecretPath); err != nil {
		return nil, l.failRenewal(ctx, lease, now, grantee, err)
	}

	inc := lease.Duration
	if increment != nil {
		if err := validation.WrapValidationError(
			(validation.PositiveDuration{}).Validate(*increment),
		); err != nil {
			return nil, err
		}
		inc = *increment
	}

	// The extension anchors at the current expiry, not at now: renewing
	// with increment d moves expires_at forward by exactly d, so renewals
	// compose to the sum of their increments. A positive increment can
	// never move the deadline backward.
	previous := lease.ExpiresAt
	lease.ExpiresAt = lease.ExpiresAt.Add(inc)

	lease.RenewalCount++
	lease.UpdatedAt = now
	err = l.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := l.leaseRepo.UpdateActive(ctx, lease); err != nil {
			return err
		}
		return l.leaseRepo.CreateRenewal(ctx, &leasesDomain.LeaseRenewal{
			ID:                uuid.Must(uuid.NewV7()),
			LeaseID:           lease.ID,
			RenewedAt:         now,
			PreviousExpiresAt: previous,
			NewExpiresAt:      lease.ExpiresAt,
			Success:           true,
			Actor:             grantee,
			IsAuto:            lease.AutoRenew,
		})
	})
	if err != nil {
		return nil, err
	}
	renewed := lease

	l.logger.Info("lease renewed",
		slog.String("lease_id", renewed.ID.String()),
		slog.Time("expires_at", renewed.ExpiresAt),
		slog.Uint64("renewal_count", uint64(renewed.RenewalCount)),
	)
	return renewed, nil
}

// failRenewal records a failed renewal attempt and returns its cause.
func (l *leaseUseCase) failRenewal(
	ctx context.Context,
	lease *leasesDomain.Lease,
	now time.Time,
	actor string,
	cause error,
) error {
	if err := l.leaseRepo.CreateRenewal(ctx, &leasesDomain.LeaseRenewal{
		ID:                uuid.Must(uuid.NewV7()),
		LeaseID:           lease.ID,
		RenewedAt:         now,
		PreviousExpiresAt: lease.ExpiresAt,
		NewExpiresAt:      lease.ExpiresAt,
		Success:           false,
		Error:             cause.Error(),
		Actor:             actor,
		IsAuto:            lease.AutoRenew,
	}); err != nil {
		return err
	}
	return cause
}

// Revoke terminates a lease early. Idempotent.
func (l *leaseUseCase) Revoke(ctx context.Context, id uuid.UUID, actor, reason string) error {
	return l.txManager.WithTx(ctx, func(ctx context.Context) error {
		lease, err := l.leaseRepo.Get(ctx, id)
		if err != nil {
			return err
		}

		switch lease.Status {
		case leasesDomain.StatusRevoked:
			return nil
		case leasesDomain.StatusExpired:
			// The lease already lapsed, but the operator action still lands
			// in the audit trail.
			now := l.nowFn()
			lease.RevokedAt = &now
			lease.RevokedBy = actor
			lease.RevocationReason = reason
			lease.UpdatedAt = now
			if err := l.leaseRepo.RecordExpiredRevocation(ctx, lease); err != nil {
				return err
			}
			l.logger.Warn("revoke of expired lease",
				slog.String("lease_id", id.String()),
				slog.String("actor", actor),
			)
			return nil
		}

		now := l.nowFn()
		lease.Status = leasesDomain.StatusRevoked
		lease.RevokedAt = &now
		lease.RevokedBy = actor
		lease.RevocationReason = reason
		lease.UpdatedAt = now
		if err := l.leaseRepo.UpdateActive(ctx, lease); err != nil {
			// A concurrent revoke or sweep won; the lease is terminal either way.
			if apperrors.Is(err, leasesDomain.ErrAlreadyTerminal) {
				return nil
			}
			return err
		}

		l.logger.Info("lease revoked",
			slog.String("lease_id", id.String()),
			slog.String("actor", actor),
			slog.String("reason", reason),
		)
		return nil
	})
}

// RevokeAllForSecret revokes every active lease on a path.
func (l *leaseUseCase) RevokeAllForSecret(
	ctx context.Context,
	path, actor, reason string,
) (int, error) {
	leases, err := l.leaseRepo.ListActiveBySecret(ctx, path)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, lease := range leases {
		if err := l.Revoke(ctx, lease.ID, actor, reason); err != nil {
			return revoked, err
		}
		revoked++
	}

	l.logger.Info("leases revoked for secret",
		slog.String("secret_path", path),
		slog.Int("count", revoked),
	)
	return revoked, nil
}

// Get retrieves a lease by id.
func (l *leaseUseCase) Get(ctx context.Context, id uuid.UUID) (*leasesDomain.Lease, error) {
	return l.leaseRepo.Get(ctx, id)
}

// History returns a lease's renewal history.
func (l *leaseUseCase) History(ctx context.Context, id uuid.UUID) ([]*leasesDomain.LeaseRenewal, error) {
	if _, err := l.leaseRepo.Get(ctx, id); err != nil {
		return nil, err
	}
	return l.leaseRepo.ListRenewals(ctx, id)
}

// ExpireDue flips up to limit overdue active leases to expired.
func (l *leaseUseCase) ExpireDue(ctx context.Context, limit int) (int64, error) {
	return l.leaseRepo.ExpireBatch(ctx, l.nowFn(), limit)
}
