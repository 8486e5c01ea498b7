package repository

import (
	"context"
	"database/sql"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
)

// PostgreSQLKeyRepository implements encryption key persistence for PostgreSQL.
// Uses native BYTEA types with transaction support via database.GetTx().
type PostgreSQLKeyRepository struct {
	db *sql.DB
}

// NewPostgreSQLKeyRepository creates a new PostgreSQL encryption key repository.
func NewPostgreSQLKeyRepository(db *sql.DB) *PostgreSQLKeyRepository {
	return &PostgreSQLKeyRepository{db: db}
}

// CreateKey inserts a new encryption key row. Returns ErrConflict when a key
// with the same name already exists, so concurrent lazy creation resolves to
// a single winner.
func (p *PostgreSQLKeyRepository) CreateKey(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_keys (name, algorithm, current_version, min_decryption_version,
				  exportable, deletion_allowed, row_version, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (name) DO NOTHING`

	result, err := querier.ExecContext(
		ctx,
		query,
		key.Name,
		key.Algorithm,
		key.CurrentVersion,
		key.MinDecryptionVersion,
		key.Exportable,
		key.DeletionAllowed,
		key.RowVersion,
		key.CreatedAt,
		key.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create encryption key")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check encryption key creation")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "encryption key already exists")
	}
	return nil
}

// GetKey retrieves an encryption key by name.
func (p *PostgreSQLKeyRepository) GetKey(ctx context.Context, name string) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT name, algorithm, current_version, min_decryption_version,
				  exportable, deletion_allowed, row_version, created_at, updated_at
			  FROM encryption_keys
			  WHERE name = $1`

	var key keysDomain.EncryptionKey
	err := querier.QueryRowContext(ctx, query, name).Scan(
		&key.Name,
		&key.Algorithm,
		&key.CurrentVersion,
		&key.MinDecryptionVersion,
		&key.Exportable,
		&key.DeletionAllowed,
		&key.RowVersion,
		&key.CreatedAt,
		&key.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, keysDomain.ErrKeyNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encryption key")
	}

	return &key, nil
}

// UpdateKey modifies key metadata guarded by row_version. Returns ErrConflict
// when a concurrent writer got there first; on success the in-memory
// RowVersion is advanced to match the stored row.
func (p *PostgreSQLKeyRepository) UpdateKey(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE encryption_keys
			  SET current_version = $1,
				  min_decryption_version = $2,
				  exportable = $3,
				  deletion_allowed = $4,
				  row_version = row_version + 1,
				  updated_at = $5
			  WHERE name = $6 AND row_version = $7`

	result, err := querier.ExecContext(
		ctx,
		query,
		key.CurrentVersion,
		key.MinDecryptionVersion,
		key.Exportable,
		key.DeletionAllowed,
		key.UpdatedAt,
		key.Name,
		key.RowVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update encryption key")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check encryption key update")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "encryption key was modified concurrently")
	}

	key.RowVersion++
	return nil
}

// CreateVersion appends a wrapped DEK version row.
func (p *PostgreSQLKeyRepository) CreateVersion(ctx context.Context, version *keysDomain.KeyVersion) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO encryption_key_versions (key_name, version, wrapped_key, nonce, created_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(
		ctx,
		query,
		version.KeyName,
		version.Version,
		version.WrappedKey,
		version.Nonce,
		version.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create key version")
	}
	return nil
}

// GetVersion retrieves one wrapped DEK version.
func (p *PostgreSQLKeyRepository) GetVersion(ctx context.Context, name string, version uint) (*keysDomain.KeyVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT key_name, version, wrapped_key, nonce, created_at
			  FROM encryption_key_versions
			  WHERE key_name = $1 AND version = $2`

	var kv keysDomain.KeyVersion
	err := querier.QueryRowContext(ctx, query, name, version).Scan(
		&kv.KeyName,
		&kv.Version,
		&kv.WrappedKey,
		&kv.Nonce,
		&kv.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, keysDomain.ErrKeyVersionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get key version")
	}

	return &kv, nil
}

// ListKeys returns key metadata ordered by name.
func (p *PostgreSQLKeyRepository) ListKeys(ctx context.Context) ([]*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT name, algorithm, current_version, min_decryption_version,
				  exportable, deletion_allowed, row_version, created_at, updated_at
			  FROM encryption_keys
			  ORDER BY name`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list encryption keys")
	}
	defer rows.Close()

	var keys []*keysDomain.EncryptionKey
	for rows.Next() {
		var key keysDomain.EncryptionKey
		if err := rows.Scan(
			&key.Name,
			&key.Algorithm,
			&key.CurrentVersion,
			&key.MinDecryptionVersion,
			&key.Exportable,
			&key.DeletionAllowed,
			&key.RowVersion,
			&key.CreatedAt,
			&key.UpdatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encryption key")
		}
		keys = append(keys, &key)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encryption keys")
	}

	return keys, nil
}
