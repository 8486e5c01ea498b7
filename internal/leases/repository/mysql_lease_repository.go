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

// MySQLLeaseRepository implements lease persistence for MySQL.
// UUIDs are stored as CHAR(36) strings.
type MySQLLeaseRepository struct {
	db *sql.DB
}

// NewMySQLLeaseRepository creates a new MySQL lease repository.
func NewMySQLLeaseRepository(db *sql.DB) *MySQLLeaseRepository {
	return &MySQLLeaseRepository{db: db}
}

// Create inserts a new lease.
func (m *MySQLLeaseRepository) Create(ctx context.Context, lease *leasesDomain.Lease) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO leases (id, secret_path, grantee, issued_at, expires_at, duration_seconds,
				  renewal_count, max_renewals, auto_renew, status, revoked_at, revoked_by,
				  revocation_reason, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		lease.ID.String(),
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

func scanMySQLLease(row interface {
	Scan(dest ...any) error
}) (*leasesDomain.Lease, error) {
	var lease leasesDomain.Lease
	var id string
	var durationSeconds int64
	var maxRenewals sql.NullInt64
	err := row.Scan(
		&id,
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
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse lease id")
	}
	lease.ID = parsed
	lease.Duration = time.Duration(durationSeconds) * time.Second
	if maxRenewals.Valid {
		value := uint(maxRenewals.Int64)
		lease.MaxRenewals = &value
	}
	return &lease, nil
}

// Get retrieves a lease by id.
func (m *MySQLLeaseRepository) Get(ctx context.Context, id uuid.UUID) (*leasesDomain.Lease, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + leaseColumns + `
			  FROM leases
			  WHERE id = ?`

	lease, err := scanMySQLLease(querier.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, leasesDomain.ErrLeaseNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get lease")
	}
	return lease, nil
}

// UpdateActive modifies a lease guarded by status = 'active'.
func (m *MySQLLeaseRepository) UpdateActive(ctx context.Context, lease *leasesDomain.Lease) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE leases
			  SET expires_at = ?,
				  renewal_count = ?,
				  status = ?,
				  revoked_at = ?,
				  revoked_by = ?,
				  revocation_reason = ?,
				  updated_at = ?
			  WHERE id = ? AND status = 'active'`

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
		lease.ID.String(),
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
// without changing its status.
func (m *MySQLLeaseRepository) RecordExpiredRevocation(
	ctx context.Context,
	lease *leasesDomain.Lease,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE leases
			  SET revoked_at = ?,
				  revoked_by = ?,
				  revocation_reason = ?,
				  updated_at = ?
			  WHERE id = ? AND status = 'expired' AND revoked_at IS NULL`

	_, err := querier.ExecContext(
		ctx,
		query,
		lease.RevokedAt,
		lease.RevokedBy,
		lease.RevocationReason,
		lease.UpdatedAt,
		lease.ID.String(),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to record revocation on expired lease")
	}
	return nil
}

// ListActiveBySecret returns all active leases for a secret path.
func (m *MySQLLeaseRepository) ListActiveBySecret(
	ctx context.Context,
	path string,
) ([]*leasesDomain.Lease, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT ` + leaseColumns + `
			  FROM leases
			  WHERE secret_path = ? AND status = 'active'
			  ORDER BY issued_at`

	rows, err := querier.QueryContext(ctx, query, path)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list leases")
	}
	defer rows.Close()

	var leases []*leasesDomain.Lease
	for rows.Next() {
		lease, err := scanMySQLLease(rows)
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
func (m *MySQLLeaseRepository) CreateRenewal(
	ctx context.Context,
	renewal *leasesDomain.LeaseRenewal,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO lease_renewals (id, lease_id, renewed_at, previous_expires_at,
				  new_expires_at, success, error, actor, is_auto)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(
		ctx,
		query,
		renewal.ID.String(),
		renewal.LeaseID.String(),
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
func (m *MySQLLeaseRepository) ListRenewals(
	ctx context.Context,
	leaseID uuid.UUID,
) ([]*leasesDomain.LeaseRenewal, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, lease_id, renewed_at, previous_expires_at, new_expires_at,
				  success, error, actor, is_auto
			  FROM lease_renewals
			  WHERE lease_id = ?
			  ORDER BY renewed_at`

	rows, err := querier.QueryContext(ctx, query, leaseID.String())
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list lease renewals")
	}
	defer rows.Close()

	var renewals []*leasesDomain.LeaseRenewal
	for rows.Next() {
		var renewal leasesDomain.LeaseRenewal
		var id, parentID string
		if err := rows.Scan(
			&id,
			&parentID,
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
		renewalID, err := uuid.Parse(id)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse lease renewal id")
		}
		renewalLeaseID, err := uuid.Parse(parentID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse lease renewal lease id")
		}
		renewal.ID = renewalID
		renewal.LeaseID = renewalLeaseID
		renewals = append(renewals, &renewal)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate lease renewals")
	}

	return renewals, nil
}

// ExpireBatch flips up to limit overdue active leases to expired. MySQL allows
// LIMIT directly on UPDATE.
func (m *MySQLLeaseRepository) ExpireBatch(
	ctx context.Context,
	now time.Time,
	limit int,
) (int64, error) {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE leases
			  SET status = 'expired', updated_at = ?
			  WHERE status = 'active' AND expires_at < ?
			  LIMIT ?`

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
