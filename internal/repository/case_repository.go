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

const caseColumns = `id, full_name, document_number, birth_date, urgency_category, urgency_weight, violation_type,
       population_category, requesting_agency, description, observations, status, intake_agent_id, specialist_id,
       followup_started_at, closure_reason, closure_opinion, closed_at, created_by, created_at, updated_at`

// CaseRepository persists cases. Cases are never deleted.
type CaseRepository struct {
	db *sqlx.DB
}

// NewCaseRepository constructs the repository.
func NewCaseRepository(db *sqlx.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Create inserts a new case row.
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = c.CreatedAt
	const query = `INSERT INTO cases
	(id, full_name, document_number, birth_date, urgency_category, urgency_weight, violation_type, population_category,
	 requesting_agency, description, observations, status, intake_agent_id, specialist_id, followup_started_at,
	 closure_reason, closure_opinion, closed_at, created_by, created_at, updated_at)
	VALUES (:id, :full_name, :document_number, :birth_date, :urgency_category, :urgency_weight, :violation_type, :population_category,
	 :requesting_agency, :description, :observations, :status, :intake_agent_id, :specialist_id, :followup_started_at,
	 :closure_reason, :closure_opinion, :closed_at, :created_by, :created_at, :updated_at)`
	if _, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, c); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create case: %w", err)
	}
	return nil
}

// GetByID fetches a case by identifier. It returns sql.ErrNoRows when absent.
func (r *CaseRepository) GetByID(ctx context.Context, id string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`
	var c models.Case
	if err := database.Conn(ctx, r.db).GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetForUpdate fetches a case and locks its row until the enclosing
// transaction ends. Outside a transaction it behaves like GetByID.
func (r *CaseRepository) GetForUpdate(ctx context.Context, id string) (*models.Case, error) {
	if _, ok := database.TxFrom(ctx); !ok {
		return r.GetByID(ctx, id)
	}
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1 FOR UPDATE`
	var c models.Case
	if err := database.Conn(ctx, r.db).GetContext(ctx, &c, query, id); err != nil {
		return nil, err
	}
	return &c, nil
}

// Update overwrites every mutable column of the case.
func (r *CaseRepository) Update(ctx context.Context, c *models.Case) error {
	c.UpdatedAt = time.Now().UTC()
	const query = `UPDATE cases SET
	 full_name = :full_name, document_number = :document_number, birth_date = :birth_date,
	 urgency_category = :urgency_category, urgency_weight = :urgency_weight, violation_type = :violation_type,
	 population_category = :population_category, requesting_agency = :requesting_agency,
	 description = :description, observations = :observations, status = :status,
	 intake_agent_id = :intake_agent_id, specialist_id = :specialist_id, followup_started_at = :followup_started_at,
	 closure_reason = :closure_reason, closure_opinion = :closure_opinion, closed_at = :closed_at,
	 updated_at = :updated_at
	WHERE id = :id`
	result, err := database.Conn(ctx, r.db).NamedExecContext(ctx, query, c)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update case: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check case update rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update case %s: no rows affected", c.ID)
	}
	return nil
}
