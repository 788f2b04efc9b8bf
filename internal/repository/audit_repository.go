package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/pkg/database"
)

// AuditRepository appends and reads case audit entries. Entries are never
// updated or deleted, so the repository exposes no such operations.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create inserts an audit entry, joining the caller's transaction when present.
func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO case_audit_entries (id, case_id, author_id, action, description, before_payload, after_payload, created_at)
	VALUES (:id, :case_id, :author_id, :action, :description, :before_payload, :after_payload, :created_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create audit entry: %w", err)
	}
	return nil
}

// ListByCase returns entries for a case newest first. A positive limit caps the window.
func (r *AuditRepository) ListByCase(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error) {
	query := `SELECT id, case_id, author_id, action, description, before_payload, after_payload, created_at
	FROM case_audit_entries WHERE case_id = $1 ORDER BY created_at DESC, id DESC`
	args := []interface{}{caseID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	entries := make([]models.AuditEntry, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
