package repository

import (
	"context"
	"database/sql"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	keysDomain "github.com/sealbox/sealbox/internal/keys/domain"
)

// MySQLKeyRepository implements encryption key persistence for MySQL.
// Uses VARBINARY types with transaction support via database.GetTx().
type MySQLKeyRepository struct {
	db *sql.DB
}

// NewMySQLKeyRepository creates a new MySQL encryption key repository.
func NewMySQLKeyRepository(db *sql.DB) *MySQLKeyRepository {
	return &MySQLKeyRepository{db: db}
}

// CreateKey inserts a new encryption key row. Returns ErrConflict when a key
// with the same name already exists.
func (m *MySQLKeyRepository) CreateKey(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT IGNORE INTO encryption_keys (name, algorithm, current_version, min_decryption_version,
				  exportable, deletion_allowed, row_version, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

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
func (m *MySQLKeyRepository) GetKey(ctx context.Context, name string) (*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT name, algorithm, current_version, min_decryption_version,
				  exportable, deletion_allowed, row_version, created_at, updated_at
			  FROM encryption_keys
			  WHERE name = ?`

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
// when a concurrent writer got there first.
func (m *MySQLKeyRepository) UpdateKey(ctx context.Context, key *keysDomain.EncryptionKey) error {
	querier := database.GetTx(ctx, m.db)

	query := `UPDATE encryption_keys
			  SET current_version = ?,
				  min_decryption_version = ?,
				  exportable = ?,
				  deletion_allowed = ?,
				  row_version = row_version + 1,
				  updated_at = ?
			  WHERE name = ? AND row_version = ?`

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
func (m *MySQLKeyRepository) CreateVersion(ctx context.Context, version *keysDomain.KeyVersion) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO encryption_key_versions (key_name, version, wrapped_key, nonce, created_at)
			  VALUES (?, ?, ?, ?, ?)`

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
func (m *MySQLKeyRepository) GetVersion(ctx context.Context, name string, version uint) (*keysDomain.KeyVersion, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT key_name, version, wrapped_key, nonce, created_at
			  FROM encryption_key_versions
			  WHERE key_name = ? AND version = ?`

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
func (m *MySQLKeyRepository) ListKeys(ctx context.Context) ([]*keysDomain.EncryptionKey, error) {
	querier := database.GetTx(ctx, m.db)

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
