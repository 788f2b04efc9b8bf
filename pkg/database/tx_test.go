package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTxMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWithinTxCommits(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	var outcomes []bool
	manager := NewTxManager(db, func(_ time.Duration, committed bool) {
		outcomes = append(outcomes, committed)
	})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE cases SET")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		_, ok := TxFrom(ctx)
		require.True(t, ok)
		_, execErr := Conn(ctx, db).ExecContext(ctx, "UPDATE cases SET status = $1", "CLOSED")
		return execErr
	})
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, outcomes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	manager := NewTxManager(db, nil)
	boom := errors.New("audit insert failed")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	manager := NewTxManager(db, nil)
	mock.ExpectBegin()
	mock.ExpectRollback()

	require.Panics(t, func() {
		_ = manager.WithinTx(context.Background(), func(ctx context.Context) error {
			panic("unexpected")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxJoinsOuterTransaction(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	manager := NewTxManager(db, nil)
	mock.ExpectBegin()
	mock.ExpectCommit()

	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		outer, _ := TxFrom(ctx)
		return manager.WithinTx(ctx, func(inner context.Context) error {
			tx, ok := TxFrom(inner)
			require.True(t, ok)
			assert.Same(t, outer, tx)
			return nil
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnFallsBackToDB(t *testing.T) {
	db, _, cleanup := newTxMock(t)
	defer cleanup()

	assert.Equal(t, Executor(db), Conn(context.Background(), db))
}

func TestWithinTxBeginFailure(t *testing.T) {
	db, mock, cleanup := newTxMock(t)
	defer cleanup()

	manager := NewTxManager(db, nil)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := manager.WithinTx(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
