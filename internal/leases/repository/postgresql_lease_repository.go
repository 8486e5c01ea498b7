// Package repository implements data persistence for lease management.
// Repositories support both PostgreSQL and MySQL; lease state changes are
// guarded by conditional updates on the active status.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	leasesDomain "github.com/sealbox/sealbox/internal/leases/domain"
)

// PostgreSQLLeaseRepository implements lease persistence for PostgreSQL.
type PostgreSQLLeaseRepository struct {
	db *sql.DB
}

// NewPostgreSQLLeaseRepository creates a new PostgreSQL lease repository.
func NewPostgreSQLLeaseRepository(db *sql.DB) *PostgreSQLLeaseRepository {
	return &PostgreSQLLeaseRepository{db: db}
}

func maxRenewalsValue(lease *leasesDomain.Lease) sql.NullInt64 {
	if lease.MaxRenewals == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*lease.MaxRenewals), Valid: true}
}

// Create inserts a new lease.
func (p *PostgreSQLLeaseRepository) Create(ctx context.Context, lease *leasesDomain.Lease) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO leases (id, secret_path, grantee, issued_at, expires_at, duration_seconds,
				  renewal_count, max_renewals, auto_renew, status, revoked_at, revoked_by,
				  revocation_reason, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := querier.ExecContext(
		ctx,
		query,
		lease.ID,
		lease.SecretPath,
		lease.Grantee,
		lease.IssuedAt,
		lease.ExpiresAt,
		int64(lease.Duration/time.Second),
		lease.RenewalCount,
		maxRenewalsValue(lease),
		lease.AutoRenew,
		lease.Status,
		lease.RevokedAt,
		lease.RevokedBy,
		lease.RevocationReason,
		lease.CreatedAt,
		lease.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create lease")
	}
	return nil
}

func scanLease(row interface {
	Scan(dest ...any) error
}) (*leasesDomain.Lease, error) {
	var lease leasesDomain.Lease
	var durationSeconds int64
	var maxRenewals sql.NullInt64
	err := row.Scan(
		&lease.ID,
		&lease.SecretPath,
		&lease.Grantee,
		&lease.IssuedAt,
		&lease.ExpiresAt,
		&durationSeconds,
		&lease.RenewalCount,
		&maxRenewals,
		&lease.AutoRenew,
		&lease.Status,
		&lease.RevokedAt,
		&lease.RevokedBy,
		&lease.RevocationReason,
		&lease.CreatedAt,
		&lease.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	lease.Duration = time.Duration(durationSeconds) * time.Second
	if maxRenewals.Valid {
		value := uint(maxRenewals.Int64)
		lease.MaxRenewals = &value
	}
	return &lease, nil
}

const leaseColumns = `id, secret_path, grantee, issued_at, expires_at, duration_seconds,
				  renewal_count, max_renewals, auto_renew, status, revoked_at, revoked_by,
				  revocation_reason, created_at, updated_at`

// Get retrieves a lease by id.
func (p *PostgreSQLLeaseRepository) Get(ctx context.Context, id uuid.UUID) (*leasesDomain.Lease, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + leaseColumns + `
			  FROM leases
			  WHERE id = $1`

	lease, err := scanLease(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, leasesDomain.ErrLeaseNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get lease")
	}
	return lease, nil
}

// UpdateActive modifies a lease guarded by status = 'active'. A concurrent
// revoke or sweep that already terminated the lease surfaces as
// ErrAlreadyTerminal.
func (p *PostgreSQLLeaseRepository) UpdateActive(ctx context.Context, lease *leasesDomain.Lease) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE leases
			  SET expires_at = $1,
				  renewal_count = $2,
				  status = $3,
				  revoked_at = $4,
				  revoked_by = $5,
				  revocation_reason = $6,
				  updated_at = $7
			  WHERE id = $8 AND status = 'active'`

	result, err := querier.ExecContext(
		ctx,
		query,
		lease.ExpiresAt,
		lease.RenewalCount,
		lease.Status,
		lease.RevokedAt,
		lease.RevokedBy,
		lease.RevocationReason,
		lease.UpdatedAt,
		lease.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update lease")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check lease update")
	}
	if affected == 0 {
		return leasesDomain.ErrAlreadyTerminal
	}
	return nil
}

// RecordExpiredRevocation stamps revocation metadata on an expired lease
// without changing its status. The revoked_at guard keeps the first revoke's
// metadata under repeated attempts.
func (p *PostgreSQLLeaseRepository) RecordExpiredRevocation(
	ctx context.Context,
	lease *leasesDomain.Lease,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE leases
			  SET revoked_at = $1,
				  revoked_by = $2,
				  revocation_reason = $3,
				  updated_at = $4
			  WHERE id = $5 AND status = 'expired' AND revoked_at IS NULL`

	_, err := querier.ExecContext(
		ctx,
		query,
		lease.RevokedAt,
		lease.RevokedBy,
		lease.RevocationReason,
		lease.UpdatedAt,
		lease.ID,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to record revocation on expired lease")
	}
	return nil
}

// ListActiveBySecret returns all active leases for a secret path.
func (p *PostgreSQLLeaseRepository) ListActiveBySecret(
	ctx context.Context,
	path string,
) ([]*leasesDomain.Lease, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT ` + leaseColumns + `
			  FROM leases
			  WHERE secret_path = $1 AND status = 'active'
			  ORDER BY issued_at`

	rows, err := querier.QueryContext(ctx, query, path)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list leases")
	}
	defer rows.Close()

	var leases []*leasesDomain.Lease
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan lease")
		}
		leases = append(leases, lease)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate leases")
	}

	return leases, nil
}

// CreateRenewal appends one renewal history row.
func (p *PostgreSQLLeaseRepository) CreateRenewal(
	ctx context.Context,
	renewal *leasesDomain.LeaseRenewal,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO lease_renewals (id, lease_id, renewed_at, previous_expires_at,
				  new_expires_at, success, error, actor, is_auto)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := querier.ExecContext(
		ctx,
		query,
		renewal.ID,
		renewal.LeaseID,
		renewal.RenewedAt,
		renewal.PreviousExpiresAt,
		renewal.NewExpiresAt,
		renewal.Success,
		renewal.Error,
		renewal.Actor,
		renewal.IsAuto,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create lease renewal")
	}
	return nil
}

// ListRenewals returns a lease's renewal history ordered by renewed_at.
func (p *PostgreSQLLeaseRepository) ListRenewals(
	ctx context.Context,
	leaseID uuid.UUID,
) ([]*leasesDomain.LeaseRenewal, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, lease_id, renewed_at, previous_expires_at, new_expires_at,
				  success, error, actor, is_auto
			  FROM lease_renewals
			  WHERE lease_id = $1
			  ORDER BY renewed_at`

	rows, err := querier.QueryContext(ctx, query, leaseID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list lease renewals")
	}
	defer rows.Close()

	var renewals []*leasesDomain.LeaseRenewal
	for rows.Next() {
		var renewal leasesDomain.LeaseRenewal
		if err := rows.Scan(
			&renewal.ID,
			&renewal.LeaseID,
			&renewal.RenewedAt,
			&renewal.PreviousExpiresAt,
			&renewal.NewExpiresAt,
			&renewal.Success,
			&renewal.Error,
			&renewal.Actor,
			&renewal.IsAuto,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan lease renewal")
		}
		renewals = append(renewals, &renewal)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate lease renewals")
	}

	return renewals, nil
}

// ExpireBatch flips up to limit overdue active leases to expired.
func (p *PostgreSQLLeaseRepository) ExpireBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE leases
			  SET status = 'expired', updated_at = $1
			  WHERE id IN (
				  SELECT id FROM leases
				  WHERE status = 'active' AND expires_at < $2
				  ORDER BY expires_at
				  LIMIT $3
			  )`

	result, err := querier.ExecContext(ctx, query, now, now, limit)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to expire leases")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to check lease expiry")
	}
	return affected, nil
}
