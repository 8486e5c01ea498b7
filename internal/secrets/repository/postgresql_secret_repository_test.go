package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sealbox/sealbox/internal/errors"
	secretsDomain "github.com/sealbox/sealbox/internal/secrets/domain"
)

func testSecret() *secretsDomain.Secret {
	now := time.Now().UTC()
	return &secretsDomain.Secret{
		Path:           "db/prod/password",
		CurrentVersion: 1,
		MaxVersions:    10,
		RowVersion:     1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestPostgreSQLSecretRepository_CreateSecret(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO secrets").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewPostgreSQLSecretRepository(db)
		err = repo.CreateSecret(context.Background(), testSecret())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ConflictOnDuplicatePath", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO secrets").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgreSQLSecretRepository(db)
		err = repo.CreateSecret(context.Background(), testSecret())
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestPostgreSQLSecretRepository_GetSecret(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		secret := testSecret()
		rows := sqlmock.NewRows([]string{
			"path", "current_version", "max_versions", "cas_required", "row_version", "created_at", "updated_at",
		}).AddRow(
			secret.Path, secret.CurrentVersion, secret.MaxVersions, secret.CasRequired,
			secret.RowVersion, secret.CreatedAt, secret.UpdatedAt,
		)
		mock.ExpectQuery("SELECT (.+) FROM secrets").
			WithArgs(secret.Path).
			WillReturnRows(rows)

		repo := NewPostgreSQLSecretRepository(db)
		got, err := repo.GetSecret(context.Background(), secret.Path)
		require.NoError(t, err)
		assert.Equal(t, secret.Path, got.Path)
		assert.Equal(t, secret.CurrentVersion, got.CurrentVersion)
	})

	t.Run("NotFound", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM secrets").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"path"}))

		repo := NewPostgreSQLSecretRepository(db)
		_, err = repo.GetSecret(context.Background(), "missing")
		assert.ErrorIs(t, err, secretsDomain.ErrSecretNotFound)
	})
}

func TestPostgreSQLSecretRepository_UpdateSecret(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE secrets").
			WillReturnResult(sqlmock.NewResult(0, 1))

		secret := testSecret()
		repo := NewPostgreSQLSecretRepository(db)
		err = repo.UpdateSecret(context.Background(), secret)
		require.NoError(t, err)
		assert.Equal(t, uint(2), secret.RowVersion)
	})

	t.Run("ConflictOnRowVersionMismatch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE secrets").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgreSQLSecretRepository(db)
		err = repo.UpdateSecret(context.Background(), testSecret())
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestPostgreSQLSecretRepository_CreateVersion(t *testing.T) {
	t.Run("ConflictOnDuplicateVersion", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO secret_versions").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgreSQLSecretRepository(db)
		err = repo.CreateVersion(context.Background(), &secretsDomain.SecretVersion{
			Path:      "db/prod/password",
			Version:   1,
			State:     secretsDomain.StateLive,
			CreatedAt: time.Now().UTC(),
		})
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestPostgreSQLSecretRepository_SetVersionState(t *testing.T) {
	t.Run("EraseNullsCiphertext", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE secret_versions SET state = (.+) ciphertext = NULL").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewPostgreSQLSecretRepository(db)
		err = repo.SetVersionState(
			context.Background(), "db/prod/password", 1, secretsDomain.StateDestroyed, true,
		)
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingVersion", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE secret_versions").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgreSQLSecretRepository(db)
		err = repo.SetVersionState(
			context.Background(), "db/prod/password", 9, secretsDomain.StateSoftDeleted, false,
		)
		assert.ErrorIs(t, err, secretsDomain.ErrVersionNotFound)
	})
}

func TestPostgreSQLSecretRepository_ListPaths(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"path"}).
		AddRow("db/prod/password").
		AddRow("db/prod/user")
	mock.ExpectQuery("SELECT path FROM secrets").
		WithArgs("db/").
		WillReturnRows(rows)

	repo := NewPostgreSQLSecretRepository(db)
	paths, err := repo.ListPaths(context.Background(), "db/")
	require.NoError(t, err)
	assert.Equal(t, []string{"db/prod/password", "db/prod/user"}, paths)
}
