package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepositoryDisplayName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT full_name FROM users WHERE id = $1")).
		WithArgs("specialist-1").
		WillReturnRows(sqlmock.NewRows([]string{"full_name"}).AddRow("Ana Lima"))

	name, found, err := repo.DisplayName(context.Background(), "specialist-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Ana Lima", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDisplayNameUnknown(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT full_name FROM users")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	name, found, err := repo.DisplayName(context.Background(), "ghost")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, name)
}

func TestUserRepositoryDisplayNameFailure(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewUserRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT full_name FROM users")).
		WithArgs("specialist-1").
		WillReturnError(errors.New("connection reset"))

	_, _, err := repo.DisplayName(context.Background(), "specialist-1")
	require.Error(t, err)
}
