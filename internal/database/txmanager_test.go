package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx(t *testing.T) {
	t.Run("CommitOnSuccess", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE leases").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		m := NewTxManager(db)
		err = m.WithTx(context.Background(), func(ctx context.Context) error {
			q := GetTx(ctx, db)
			_, err := q.ExecContext(ctx, "UPDATE leases SET status = 'expired'")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("RollbackOnError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		m := NewTxManager(db)
		err = m.WithTx(context.Background(), func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("GetTxFallsBackToDB", func(t *testing.T) {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		q := GetTx(context.Background(), db)
		assert.Equal(t, Querier(db), q)
	})
}
