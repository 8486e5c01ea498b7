package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
)

// MySQLSealConfigRepository implements SealConfig persistence for MySQL databases.
type MySQLSealConfigRepository struct {
	db *sql.DB
}

// Create inserts the seal configuration singleton row.
// Returns ErrConflict if the row already exists (initialization race).
func (m *MySQLSealConfigRepository) Create(ctx context.Context, cfg *sealDomain.SealConfig) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT IGNORE INTO seal_config
			  (id, initialized, share_count, threshold, verification_value, wrapped_master_key, cluster_id, row_version, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := querier.ExecContext(
		ctx,
		query,
		cfg.ID,
		cfg.Initialized,
		cfg.ShareCount,
		cfg.Threshold,
		cfg.VerificationValue,
		cfg.WrappedMasterKey,
		cfg.ClusterID.String(),
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
func (m *MySQLSealConfigRepository) Get(ctx context.Context) (*sealDomain.SealConfig, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, initialized, share_count, threshold, verification_value, wrapped_master_key, cluster_id, row_version, created_at, updated_at
			  FROM seal_config
			  WHERE id = ?`

	var cfg sealDomain.SealConfig
	var clusterID string
	err := querier.QueryRowContext(ctx, query, sealDomain.SealConfigID).Scan(
		&cfg.ID,
		&cfg.Initialized,
		&cfg.ShareCount,
		&cfg.Threshold,
		&cfg.VerificationValue,
		&cfg.WrappedMasterKey,
		&clusterID,
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

	parsed, err := parseClusterID(clusterID)
	if err != nil {
		return nil, err
	}
	cfg.ClusterID = parsed

	return &cfg, nil
}

// Update mutates the singleton guarded by RowVersion compare-and-swap.
// Returns ErrConflict when another instance updated the row first.
func (m *MySQLSealConfigRepository) Update(ctx context.Context, cfg *sealDomain.SealConfig) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE seal_config
			  SET initialized = ?, share_count = ?, threshold = ?, verification_value = ?,
			      wrapped_master_key = ?, row_version = row_version + 1, updated_at = ?
			  WHERE id = ? AND row_version = ?`

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

// NewMySQLSealConfigRepository creates a new MySQL SealConfig repository instance.
func NewMySQLSealConfigRepository(db *sql.DB) *MySQLSealConfigRepository {
	return &MySQLSealConfigRepository{db: db}
}
