// Package repository implements data persistence for the seal configuration
// singleton. Updates are compare-and-swap guarded so that concurrent server
// instances cannot disagree about initialization state.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
)

// PostgreSQLSealConfigRepository implements SealConfig persistence for PostgreSQL databases.
type PostgreSQLSealConfigRepository struct {
	db *sql.DB
}

// Create inserts the seal configuration singleton row.
// Returns ErrConflict if the row already exists (initialization race).
func (p *PostgreSQLSealConfigRepository) Create(ctx context.Context, cfg *sealDomain.SealConfig) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO seal_config
			  (id, initialized, share_count, threshold, verification_value, wrapped_master_key, cluster_id, row_version, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT (id) DO NOTHING`

	result, err := querier.ExecContext(
		ctx,
		query,
		cfg.ID,
		cfg.Initialized,
		cfg.ShareCount,
		cfg.Threshold,
		cfg.VerificationValue,
		cfg.WrappedMasterKey,
		cfg.ClusterID,
		cfg.RowVersion,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create seal config")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to create seal config")
	}
	if rows == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "seal config already exists")
	}

	return nil
}

// Get retrieves the seal configuration singleton.
// Returns ErrNotFound when the engine has never been initialized.
func (p *PostgreSQLSealConfigRepository) Get(ctx context.Context) (*sealDomain.SealConfig, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, initialized, share_count, threshold, verification_value, wrapped_master_key, cluster_id, row_version, created_at, updated_at
			  FROM seal_config
			  WHERE id = $1`

	var cfg sealDomain.SealConfig
	err := querier.QueryRowContext(ctx, query, sealDomain.SealConfigID).Scan(
		&cfg.ID,
		&cfg.Initialized,
		&cfg.ShareCount,
		&cfg.Threshold,
		&cfg.VerificationValue,
		&cfg.WrappedMasterKey,
		&cfg.ClusterID,
		&cfg.RowVersion,
		&cfg.CreatedAt,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get seal config")
	}

	return &cfg, nil
}

// Update mutates the singleton guarded by RowVersion compare-and-swap.
// Returns ErrConflict when another instance updated the row first; the caller
// must re-read and decide again with fresh state.
func (p *PostgreSQLSealConfigRepository) Update(ctx context.Context, cfg *sealDomain.SealConfig) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE seal_config
			  SET initialized = $1, share_count = $2, threshold = $3, verification_value = $4,
			      wrapped_master_key = $5, row_version = row_version + 1, updated_at = $6
			  WHERE id = $7 AND row_version = $8`

	result, err := querier.ExecContext(
		ctx,
		query,
		cfg.Initialized,
		cfg.ShareCount,
		cfg.Threshold,
		cfg.VerificationValue,
		cfg.WrappedMasterKey,
		time.Now().UTC(),
		cfg.ID,
		cfg.RowVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update seal config")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to update seal config")
	}
	if rows == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "seal config row version mismatch")
	}

	cfg.RowVersion++
	return nil
}

// NewPostgreSQLSealConfigRepository creates a new PostgreSQL SealConfig repository instance.
func NewPostgreSQLSealConfigRepository(db *sql.DB) *PostgreSQLSealConfigRepository {
	return &PostgreSQLSealConfigRepository{db: db}
}
