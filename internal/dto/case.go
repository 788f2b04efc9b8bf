package dto

import (
	"time"

	"github.com/noah-isme/casework-api/internal/models"
)

// RegisterCaseRequest is the already-validated intake form payload.
type RegisterCaseRequest struct {
	FullName           string     `json:"fullName" validate:"required"`
	DocumentNumber     string     `json:"documentNumber" validate:"required"`
	BirthDate          *time.Time `json:"birthDate"`
	UrgencyCategory    string     `json:"urgencyCategory" validate:"required"`
	ViolationType      string     `json:"violationType"`
	PopulationCategory string     `json:"populationCategory"`
	RequestingAgency   string     `json:"requestingAgency"`
	Description        *string    `json:"description"`
	Observations       *string    `json:"observations"`
	IntakeAgentID      string     `json:"intakeAgentId"`
}

// UpdateCaseRequest carries partial edits to a case's classification fields.
type UpdateCaseRequest struct {
	FullName           *string    `json:"fullName" validate:"omitempty,min=1"`
	DocumentNumber     *string    `json:"documentNumber" validate:"omitempty,min=1"`
	BirthDate          *time.Time `json:"birthDate"`
	UrgencyCategory    *string    `json:"urgencyCategory" validate:"omitempty,min=1"`
	ViolationType      *string    `json:"violationType"`
	PopulationCategory *string    `json:"populationCategory"`
	RequestingAgency   *string    `json:"requestingAgency"`
	Description        *string    `json:"description"`
	Observations       *string    `json:"observations"`
	IntakeAgentID      *string    `json:"intakeAgentId" validate:"omitempty,min=1"`
}

// AdvanceStatusRequest asks for a direct status change.
type AdvanceStatusRequest struct {
	Status models.CaseStatus `json:"status" validate:"required"`
}

// AssignSpecialistRequest hands a case over to a specialist.
type AssignSpecialistRequest struct {
	SpecialistID string `json:"specialistId" validate:"required"`
}

// CloseCaseRequest closes a case with a reason and a technical opinion.
type CloseCaseRequest struct {
	Reason  string `json:"reason" validate:"required"`
	Opinion string `json:"opinion" validate:"required,min=10"`
}

// AuditQuery bounds the audit trail listing. Zero lists every entry.
type AuditQuery struct {
	Limit int `form:"limit" binding:"min=0"`
}
