package models

import (
	"strings"
	"time"
)

// CaseStatus captures the workflow stage of a case.
type CaseStatus string

const (
	CaseStatusAwaitingIntake     CaseStatus = "AWAITING_INTAKE"
	CaseStatusInIntake           CaseStatus = "IN_INTAKE"
	CaseStatusAwaitingAssignment CaseStatus = "AWAITING_ASSIGNMENT"
	CaseStatusInFollowup         CaseStatus = "IN_FOLLOWUP"
	CaseStatusClosed             CaseStatus = "CLOSED"
)

// Valid reports whether s is one of the known workflow states.
func (s CaseStatus) Valid() bool {
	switch s {
	case CaseStatusAwaitingIntake,
		CaseStatusInIntake,
		CaseStatusAwaitingAssignment,
		CaseStatusInFollowup,
		CaseStatusClosed:
		return true
	}
	return false
}

// PreAssignment reports whether the state precedes specialist assignment.
func (s CaseStatus) PreAssignment() bool {
	return s == CaseStatusAwaitingIntake || s == CaseStatusInIntake || s == CaseStatusAwaitingAssignment
}

// DefaultUrgencyWeight applies to urgency categories missing from the lookup table.
const DefaultUrgencyWeight = 1

var urgencyWeights = map[string]int{
	"LOW":      1,
	"MEDIUM":   2,
	"HIGH":     3,
	"CRITICAL": 4,
}

// UrgencyWeight maps a free-text urgency category to its sorting weight.
func UrgencyWeight(category string) int {
	key := strings.ToUpper(strings.TrimSpace(category))
	if weight, ok := urgencyWeights[key]; ok {
		return weight
	}
	return DefaultUrgencyWeight
}

// Case tracks a vulnerable individual or family through intake and follow-up.
type Case struct {
	ID                 string     `db:"id" json:"id"`
	FullName           string     `db:"full_name" json:"fullName"`
	DocumentNumber     string     `db:"document_number" json:"documentNumber"`
	BirthDate          *time.Time `db:"birth_date" json:"birthDate,omitempty"`
	UrgencyCategory    string     `db:"urgency_category" json:"urgencyCategory"`
	UrgencyWeight      int        `db:"urgency_weight" json:"urgencyWeight"`
	ViolationType      string     `db:"violation_type" json:"violationType"`
	PopulationCategory string     `db:"population_category" json:"populationCategory"`
	RequestingAgency   string     `db:"requesting_agency" json:"requestingAgency"`
	Description        *string    `db:"description" json:"description,omitempty"`
	Observations       *string    `db:"observations" json:"observations,omitempty"`
	Status             CaseStatus `db:"status" json:"status"`
	IntakeAgentID      string     `db:"intake_agent_id" json:"intakeAgentId"`
	SpecialistID       *string    `db:"specialist_id" json:"specialistId,omitempty"`
	FollowupStartedAt  *time.Time `db:"followup_started_at" json:"followupStartedAt,omitempty"`
	ClosureReason      *string    `db:"closure_reason" json:"closureReason,omitempty"`
	ClosureOpinion     *string    `db:"closure_opinion" json:"closureOpinion,omitempty"`
	ClosedAt           *time.Time `db:"closed_at" json:"closedAt,omitempty"`
	CreatedBy          string     `db:"created_by" json:"createdBy"`
	CreatedAt          time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// Clone returns a deep copy so callers can diff before and after a mutation.
func (c *Case) Clone() *Case {
	if c == nil {
		return nil
	}
	clone := *c
	clone.BirthDate = cloneTime(c.BirthDate)
	clone.Description = cloneString(c.Description)
	clone.Observations = cloneString(c.Observations)
	clone.SpecialistID = cloneString(c.SpecialistID)
	clone.FollowupStartedAt = cloneTime(c.FollowupStartedAt)
	clone.ClosureReason = cloneString(c.ClosureReason)
	clone.ClosureOpinion = cloneString(c.ClosureOpinion)
	clone.ClosedAt = cloneTime(c.ClosedAt)
	return &clone
}

// IsClosed reports whether the case is in the terminal state.
func (c *Case) IsClosed() bool {
	return c != nil && c.Status == CaseStatusClosed
}

// SetClosure records all closure fields together.
func (c *Case) SetClosure(reason, opinion string, at time.Time) {
	c.ClosureReason = &reason
	c.ClosureOpinion = &opinion
	closedAt := at
	c.ClosedAt = &closedAt
}

// ClearClosure removes all closure fields together.
func (c *Case) ClearClosure() {
	c.ClosureReason = nil
	c.ClosureOpinion = nil
	c.ClosedAt = nil
}

// HasSpecialist reports whether a specialist is assigned.
func (c *Case) HasSpecialist() bool {
	return c != nil && c.SpecialistID != nil && *c.SpecialistID != ""
}

// CaseDetail bundles a case with its most recent audit entries.
type CaseDetail struct {
	Case        Case         `json:"case"`
	RecentAudit []AuditEntry `json:"recentAudit"`
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
