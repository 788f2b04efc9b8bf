package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casework-api/pkg/database"
)

// UserRepository provides read access to staff accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// DisplayName resolves a user's full name. found is false when the id does not resolve.
func (r *UserRepository) DisplayName(ctx context.Context, id string) (name string, found bool, err error) {
	const query = `SELECT full_name FROM users WHERE id = $1 LIMIT 1`
	if err := database.Conn(ctx, r.db).GetContext(ctx, &name, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve user name: %w", err)
	}
	return name, true, nil
}
