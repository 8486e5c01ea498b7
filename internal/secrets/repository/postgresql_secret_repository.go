// Package repository implements data persistence for the versioned secret store.
// Repositories support both PostgreSQL and MySQL with append-only version rows
// and compare-and-swap guarded metadata updates.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/sealbox/sealbox/internal/database"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
)

// PostgreSQLSecretRepository implements secret persistence for PostgreSQL.
type PostgreSQLSecretRepository struct {
	db *sql.DB
}

// NewPostgreSQLSecretRepository creates a new PostgreSQL secret repository.
func NewPostgreSQLSecretRepository(db *sql.DB) *PostgreSQLSecretRepository {
	return &PostgreSQLSecretRepository{db: db}
}

// CreateSecret inserts new path metadata. Returns ErrConflict when the path
// already exists.
func (p *PostgreSQLSecretRepository) CreateSecret(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secrets (path, current_version, max_versions, cas_required, row_version, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (path) DO NOTHING`

	result, err := querier.ExecContext(
		ctx,
		query,
		secret.Path,
		secret.CurrentVersion,
		secret.MaxVersions,
		secret.CasRequired,
		secret.RowVersion,
		secret.CreatedAt,
		secret.UpdatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create secret")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check secret creation")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "secret already exists")
	}
	return nil
}

// GetSecret retrieves path metadata.
func (p *PostgreSQLSecretRepository) GetSecret(ctx context.Context, path string) (*secretsDomain.Secret, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT path, current_version, max_versions, cas_required, row_version, created_at, updated_at
			  FROM secrets
			  WHERE path = $1`

	var secret secretsDomain.Secret
	err := querier.QueryRowContext(ctx, query, path).Scan(
		&secret.Path,
		&secret.CurrentVersion,
		&secret.MaxVersions,
		&secret.CasRequired,
		&secret.RowVersion,
		&secret.CreatedAt,
		&secret.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, secretsDomain.ErrSecretNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret")
	}

	return &secret, nil
}

// UpdateSecret modifies path metadata guarded by row_version. Exactly one of
// any set of racing writers advances the current pointer; the rest see
// ErrConflict.
func (p *PostgreSQLSecretRepository) UpdateSecret(ctx context.Context, secret *secretsDomain.Secret) error {
	querier := database.GetTx(ctx, p.db)

	query := `UPDATE secrets
			  SET current_version = $1,
				  max_versions = $2,
				  cas_required = $3,
				  row_version = row_version + 1,
				  updated_at = $4
			  WHERE path = $5 AND row_version = $6`

	result, err := querier.ExecContext(
		ctx,
		query,
		secret.CurrentVersion,
		secret.MaxVersions,
		secret.CasRequired,
		secret.UpdatedAt,
		secret.Path,
		secret.RowVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to update secret")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check secret update")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "secret was modified concurrently")
	}

	secret.RowVersion++
	return nil
}

// CreateVersion appends one version row. Returns ErrConflict when the
// (path, version) pair already exists.
func (p *PostgreSQLSecretRepository) CreateVersion(ctx context.Context, version *secretsDomain.SecretVersion) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO secret_versions (path, version, ciphertext, nonce, key_name, key_version, state, deletion_time, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (path, version) DO NOTHING`

	result, err := querier.ExecContext(
		ctx,
		query,
		version.Path,
		version.Version,
		version.Ciphertext,
		version.Nonce,
		version.KeyName,
		version.KeyVersion,
		version.State,
		version.DeletionTime,
		version.CreatedAt,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create secret version")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check secret version creation")
	}
	if affected == 0 {
		return apperrors.Wrap(apperrors.ErrConflict, "secret version already exists")
	}
	return nil
}

// GetVersion retrieves one version row regardless of state.
func (p *PostgreSQLSecretRepository) GetVersion(
	ctx context.Context,
	path string,
	version uint,
) (*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT path, version, ciphertext, nonce, key_name, key_version, state, deletion_time, created_at
			  FROM secret_versions
			  WHERE path = $1 AND version = $2`

	var sv secretsDomain.SecretVersion
	err := querier.QueryRowContext(ctx, query, path, version).Scan(
		&sv.Path,
		&sv.Version,
		&sv.Ciphertext,
		&sv.Nonce,
		&sv.KeyName,
		&sv.KeyVersion,
		&sv.State,
		&sv.DeletionTime,
		&sv.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, secretsDomain.ErrVersionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get secret version")
	}

	return &sv, nil
}

// ListVersions returns all version rows for a path ordered by version, without
// ciphertext.
func (p *PostgreSQLSecretRepository) ListVersions(
	ctx context.Context,
	path string,
) ([]*secretsDomain.SecretVersion, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT path, version, key_name, key_version, state, deletion_time, created_at
			  FROM secret_versions
			  WHERE path = $1
			  ORDER BY version`

	rows, err := querier.QueryContext(ctx, query, path)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secret versions")
	}
	defer rows.Close()

	var versions []*secretsDomain.SecretVersion
	for rows.Next() {
		var sv secretsDomain.SecretVersion
		if err := rows.Scan(
			&sv.Path,
			&sv.Version,
			&sv.KeyName,
			&sv.KeyVersion,
			&sv.State,
			&sv.DeletionTime,
			&sv.CreatedAt,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret version")
		}
		versions = append(versions, &sv)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secret versions")
	}

	return versions, nil
}

// SetVersionState transitions a version row. When erase is true the ciphertext
// and nonce are nulled in the same statement.
func (p *PostgreSQLSecretRepository) SetVersionState(
	ctx context.Context,
	path string,
	version uint,
	state secretsDomain.VersionState,
	erase bool,
) error {
	querier := database.GetTx(ctx, p.db)

	var deletionTime *time.Time
	if state != secretsDomain.StateLive {
		now := time.Now().UTC()
		deletionTime = &now
	}

	query := `UPDATE secret_versions
			  SET state = $1, deletion_time = $2
			  WHERE path = $3 AND version = $4`
	if erase {
		query = `UPDATE secret_versions
				  SET state = $1, deletion_time = $2, ciphertext = NULL, nonce = NULL
				  WHERE path = $3 AND version = $4`
	}

	result, err := querier.ExecContext(ctx, query, state, deletionTime, path, version)
	if err != nil {
		return apperrors.Wrap(err, "failed to set secret version state")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to check secret version state update")
	}
	if affected == 0 {
		return secretsDomain.ErrVersionNotFound
	}
	return nil
}

// ListPaths returns all paths with the given prefix, ordered.
func (p *PostgreSQLSecretRepository) ListPaths(ctx context.Context, prefix string) ([]string, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT path
			  FROM secrets
			  WHERE path LIKE $1 || '%'
			  ORDER BY path`

	rows, err := querier.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list secret paths")
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan secret path")
		}
		paths = append(paths, path)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate secret paths")
	}

	return paths, nil
}
