package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sealbox/sealbox/internal/errors"
	sealDomain "github.com/sealbox/sealbox/internal/seal/domain"
)

func testSealConfig() *sealDomain.SealConfig {
	now := time.Now().UTC()
	return &sealDomain.SealConfig{
		ID:                sealDomain.SealConfigID,
		Initialized:       true,
		ShareCount:        5,
		Threshold:         3,
		VerificationValue: []byte("verification-value"),
		ClusterID:         uuid.Must(uuid.NewV7()),
		RowVersion:        1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func TestPostgreSQLSealConfigRepository_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("INSERT INTO seal_config").
			WillReturnResult(sqlmock.NewResult(0, 1))

		repo := NewPostgreSQLSealConfigRepository(db)
		err = repo.Create(context.Background(), testSealConfig())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ConflictWhenRowExists", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		// ON CONFLICT DO NOTHING reports zero affected rows.
		mock.ExpectExec("INSERT INTO seal_config").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgreSQLSealConfigRepository(db)
		err = repo.Create(context.Background(), testSealConfig())
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}

func TestPostgreSQLSealConfigRepository_Get(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		cfg := testSealConfig()
		rows := sqlmock.NewRows([]string{
			"id", "initialized", "share_count", "threshold", "verification_value",
			"wrapped_master_key", "cluster_id", "row_version", "created_at", "updated_at",
		}).AddRow(
			cfg.ID, cfg.Initialized, cfg.ShareCount, cfg.Threshold, cfg.VerificationValue,
			nil, cfg.ClusterID.String(), cfg.RowVersion, cfg.CreatedAt, cfg.UpdatedAt,
		)
		mock.ExpectQuery("SELECT (.+) FROM seal_config").
			WithArgs(sealDomain.SealConfigID).
			WillReturnRows(rows)

		repo := NewPostgreSQLSealConfigRepository(db)
		got, err := repo.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, cfg.ShareCount, got.ShareCount)
		assert.Equal(t, cfg.Threshold, got.Threshold)
		assert.Equal(t, cfg.ClusterID, got.ClusterID)
		assert.Nil(t, got.WrappedMasterKey)
	})

	t.Run("NotFoundBeforeInitialization", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT (.+) FROM seal_config").
			WithArgs(sealDomain.SealConfigID).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		repo := NewPostgreSQLSealConfigRepository(db)
		_, err = repo.Get(context.Background())
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}

func TestPostgreSQLSealConfigRepository_Update(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE seal_config").
			WillReturnResult(sqlmock.NewResult(0, 1))

		cfg := testSealConfig()
		repo := NewPostgreSQLSealConfigRepository(db)
		err = repo.Update(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, uint(2), cfg.RowVersion)
	})

	t.Run("ConflictOnRowVersionMismatch", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE seal_config").
			WillReturnResult(sqlmock.NewResult(0, 0))

		repo := NewPostgreSQLSealConfigRepository(db)
		err = repo.Update(context.Background(), testSealConfig())
		assert.ErrorIs(t, err, apperrors.ErrConflict)
	})
}
