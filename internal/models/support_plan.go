package models

import "time"

// SupportPlan is the Family Support Plan (PAF) attached to a case in follow-up.
// Only the current content lives here; earlier content is archived as
// SupportPlanVersion rows.
type SupportPlan struct {
	ID                   string    `db:"id" json:"id"`
	CaseID               string    `db:"case_id" json:"caseId"`
	Diagnosis            string    `db:"diagnosis" json:"diagnosis"`
	Objectives           string    `db:"objectives" json:"objectives"`
	Strategies           string    `db:"strategies" json:"strategies"`
	Deadline             time.Time `db:"deadline" json:"deadline"`
	AuthorID             string    `db:"author_id" json:"authorId"`
	CurrentVersionNumber int       `db:"current_version_number" json:"currentVersionNumber"`
	CreatedAt            time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time `db:"updated_at" json:"updatedAt"`
}

// Content returns the versioned part of the plan.
func (p *SupportPlan) Content() SupportPlanContent {
	return SupportPlanContent{
		Diagnosis:  p.Diagnosis,
		Objectives: p.Objectives,
		Strategies: p.Strategies,
		Deadline:   p.Deadline,
	}
}

// SupportPlanContent is the editable body of a plan.
type SupportPlanContent struct {
	Diagnosis  string    `json:"diagnosis"`
	Objectives string    `json:"objectives"`
	Strategies string    `json:"strategies"`
	Deadline   time.Time `json:"deadline"`
}

// SupportPlanVersion is an immutable snapshot of a plan taken right before an edit.
// AuthorID is the author of the snapshotted content, not the editor.
type SupportPlanVersion struct {
	ID            string    `db:"id" json:"id"`
	PlanID        string    `db:"plan_id" json:"planId"`
	Diagnosis     string    `db:"diagnosis" json:"diagnosis"`
	Objectives    string    `db:"objectives" json:"objectives"`
	Strategies    string    `db:"strategies" json:"strategies"`
	Deadline      time.Time `db:"deadline" json:"deadline"`
	AuthorID      string    `db:"author_id" json:"authorId"`
	VersionNumber int       `db:"version_number" json:"versionNumber"`
	SavedAt       time.Time `db:"saved_at" json:"savedAt"`
}

// SnapshotOf archives the current content of plan under its current version number.
func SnapshotOf(plan *SupportPlan, savedAt time.Time) *SupportPlanVersion {
	return &SupportPlanVersion{
		PlanID:        plan.ID,
		Diagnosis:     plan.Diagnosis,
		Objectives:    plan.Objectives,
		Strategies:    plan.Strategies,
		Deadline:      plan.Deadline,
		AuthorID:      plan.AuthorID,
		VersionNumber: plan.CurrentVersionNumber,
		SavedAt:       savedAt,
	}
}
