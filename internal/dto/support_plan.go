package dto

import "time"

// CreateSupportPlanRequest is the initial content of a Family Support Plan.
type CreateSupportPlanRequest struct {
	Diagnosis  string    `json:"diagnosis" validate:"required,min=10"`
	Objectives string    `json:"objectives" validate:"required,min=10"`
	Strategies string    `json:"strategies" validate:"required,min=10"`
	Deadline   time.Time `json:"deadline" validate:"required"`
}

// UpdateSupportPlanRequest carries the fields to change; nil fields keep their value.
type UpdateSupportPlanRequest struct {
	Diagnosis  *string    `json:"diagnosis,omitempty" validate:"omitempty,min=10"`
	Objectives *string    `json:"objectives,omitempty" validate:"omitempty,min=10"`
	Strategies *string    `json:"strategies,omitempty" validate:"omitempty,min=10"`
	Deadline   *time.Time `json:"deadline,omitempty"`
}

// Empty reports whether the request changes nothing.
func (r UpdateSupportPlanRequest) Empty() bool {
	return r.Diagnosis == nil && r.Objectives == nil && r.Strategies == nil && r.Deadline == nil
}
