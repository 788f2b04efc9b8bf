package models

import (
	"encoding/json"
	"time"
)

// AuditAction enumerates the kinds of case mutations recorded in the trail.
type AuditAction string

const (
	AuditActionCreate       AuditAction = "CREATE"
	AuditActionStatusChange AuditAction = "STATUS_CHANGE"
	AuditActionAssign       AuditAction = "ASSIGN"
	AuditActionClose        AuditAction = "CLOSE"
	AuditActionPlanCreated  AuditAction = "PLAN_CREATED"
	AuditActionPlanUpdated  AuditAction = "PLAN_UPDATED"
	AuditActionOther        AuditAction = "OTHER"
)

// AuditEntry is an immutable record of one mutation applied to a case.
// Before and After hold JSON payloads whose shape depends on the action: a
// per-field diff, a JSON string such as a display name, or nothing at all.
type AuditEntry struct {
	ID          string      `db:"id" json:"id"`
	CaseID      string      `db:"case_id" json:"caseId"`
	AuthorID    string      `db:"author_id" json:"authorId"`
	Action      AuditAction `db:"action" json:"action"`
	Description string      `db:"description" json:"description"`
	Before      *string     `db:"before_payload" json:"before,omitempty"`
	After       *string     `db:"after_payload" json:"after,omitempty"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}

// AuditPayload serializes v as JSON for storage in an audit entry. Plain
// strings such as display names become JSON strings; nil yields no payload.
func AuditPayload(v interface{}) (*string, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}
