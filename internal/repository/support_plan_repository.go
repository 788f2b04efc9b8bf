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

const supportPlanColumns = `id, case_id, diagnosis, objectives, strategies, deadline, author_id, current_version_number, created_at, updated_at`

// SupportPlanRepository persists support plans and their archived versions.
type SupportPlanRepository struct {
	db *sqlx.DB
}

// NewSupportPlanRepository constructs the repository.
func NewSupportPlanRepository(db *sqlx.DB) *SupportPlanRepository {
	return &SupportPlanRepository{db: db}
}

// Create inserts the plan at version 1. A second plan for the same case
// violates the unique case_id constraint and yields ErrDuplicate.
func (r *SupportPlanRepository) Create(ctx context.Context, plan *models.SupportPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.CurrentVersionNumber == 0 {
		plan.CurrentVersionNumber = 1
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = plan.CreatedAt
	const query = `INSERT INTO support_plans (id, case_id, diagnosis, objectives, strategies, deadline, author_id, current_version_number, created_at, updated_at)
	VALUES (:id, :case_id, :diagnosis, :objectives, :strategies, :deadline, :author_id, :current_version_number, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, plan); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create support plan: %w", err)
	}
	return nil
}

// GetByCaseID returns the plan of a case or sql.ErrNoRows.
func (r *SupportPlanRepository) GetByCaseID(ctx context.Context, caseID string) (*models.SupportPlan, error) {
	return r.getByCase(ctx, caseID, false)
}

// GetByCaseIDForUpdate returns the plan of a case and locks its row inside a transaction.
func (r *SupportPlanRepository) GetByCaseIDForUpdate(ctx context.Context, caseID string) (*models.SupportPlan, error) {
	_, inTx := database.TxFrom(ctx)
	return r.getByCase(ctx, caseID, inTx)
}

func (r *SupportPlanRepository) getByCase(ctx context.Context, caseID string, lock bool) (*models.SupportPlan, error) {
	query := `SELECT ` + supportPlanColumns + ` FROM support_plans WHERE case_id = $1`
	if lock {
		query += " FOR UPDATE"
	}
	var plan models.SupportPlan
	if err := database.Conn(ctx, r.db).GetContext(ctx, &plan, query, caseID); err != nil {
		return nil, err
	}
	return &plan, nil
}

// Update overwrites the current content, author and version number.
func (r *SupportPlanRepository) Update(ctx context.Context, plan *models.SupportPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	const query = `UPDATE support_plans SET diagnosis = :diagnosis, objectives = :objectives, strategies = :strategies,
	 deadline = :deadline, author_id = :author_id, current_version_number = :current_version_number, updated_at = :updated_at
	WHERE id = :id`
	result, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, plan)
	if err != nil {
		return fmt.Errorf("update support plan: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check support plan update rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update support plan %s: no rows affected", plan.ID)
	}
	return nil
}

// CreateVersion archives a snapshot of the plan.
func (r *SupportPlanRepository) CreateVersion(ctx context.Context, version *models.SupportPlanVersion) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.SavedAt.IsZero() {
		version.SavedAt = time.Now().UTC()
	}
	const query = `INSERT INTO support_plan_versions (id, plan_id, diagnosis, objectives, strategies, deadline, author_id, version_number, saved_at)
	VALUES (:id, :plan_id, :diagnosis, :objectives, :strategies, :deadline, :author_id, :version_number, :saved_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, version); err != nil {
		return fmt.Errorf("create support plan version: %w", err)
	}
	return nil
}

// ListVersions returns the archived versions of a plan newest first.
func (r *SupportPlanRepository) ListVersions(ctx context.Context, planID string) ([]models.SupportPlanVersion, error) {
	const query = `SELECT id, plan_id, diagnosis, objectives, strategies, deadline, author_id, version_number, saved_at
	FROM support_plan_versions WHERE plan_id = $1 ORDER BY saved_at DESC, version_number DESC`
	versions := make([]models.SupportPlanVersion, 0)
	if err := database.Conn(ctx, r.db).SelectContext(ctx, &versions, query, planID); err != nil {
		return nil, fmt.Errorf("list support plan versions: %w", err)
	}
	return versions, nil
}
