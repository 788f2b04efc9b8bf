package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casework-api/internal/dto"
	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/pkg/response"
)

type caseService interface {
	Register(ctx context.Context, req dto.RegisterCaseRequest, actor models.Actor) (*models.Case, error)
	UpdateDetails(ctx context.Context, caseID string, req dto.UpdateCaseRequest, actor models.Actor) (*models.Case, error)
	Get(ctx context.Context, caseID string) (*models.CaseDetail, error)
	AuditTrail(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error)
}

type caseLifecycleService interface {
	AdvanceStatus(ctx context.Context, caseID string, target models.CaseStatus, actor models.Actor) (*models.Case, error)
	StartIntake(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error)
	FinishIntake(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error)
	AssignSpecialist(ctx context.Context, caseID, specialistID string, actor models.Actor) (*models.Case, error)
	Close(ctx context.Context, caseID, reason, opinion string, actor models.Actor) (*models.Case, error)
}

// CaseHandler exposes case registration, detail and workflow endpoints.
type CaseHandler struct {
	cases     caseService
	lifecycle caseLifecycleService
}

// NewCaseHandler builds a new handler.
func NewCaseHandler(cases caseService, lifecycle caseLifecycleService) *CaseHandler {
	return &CaseHandler{cases: cases, lifecycle: lifecycle}
}

// Register godoc
// @Summary Register a case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body dto.RegisterCaseRequest true "Case payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cases [post]
func (h *CaseHandler) Register(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RegisterCaseRequest
	if !bindJSON(c, &req, "invalid case payload") {
		return
	}
	item, err := h.cases.Register(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Get godoc
// @Summary Get a case with its recent audit trail
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id} [get]
func (h *CaseHandler) Get(c *gin.Context) {
	detail, err := h.cases.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// Update godoc
// @Summary Edit case classification fields
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.UpdateCaseRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /cases/{id} [patch]
func (h *CaseHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateCaseRequest
	if !bindJSON(c, &req, "invalid case payload") {
		return
	}
	item, err := h.cases.UpdateDetails(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Audit godoc
// @Summary List the audit trail of a case, newest first
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/audit [get]
func (h *CaseHandler) Audit(c *gin.Context) {
	query, err := bindAuditQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entries, err := h.cases.AuditTrail(c.Request.Context(), c.Param("id"), query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries, map[string]interface{}{"count": len(entries)})
}

// AdvanceStatus godoc
// @Summary Change the status of a case
// @Description Any status may be set directly. A closed case is reopened into AWAITING_INTAKE.
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.AdvanceStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/status [post]
func (h *CaseHandler) AdvanceStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AdvanceStatusRequest
	if !bindJSON(c, &req, "invalid status payload") {
		return
	}
	item, err := h.lifecycle.AdvanceStatus(c.Request.Context(), c.Param("id"), req.Status, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// StartIntake godoc
// @Summary Start the intake of a case
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/intake/start [post]
func (h *CaseHandler) StartIntake(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	item, err := h.lifecycle.StartIntake(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// FinishIntake godoc
// @Summary Finish the intake of a case
// @Tags Cases
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/intake/finish [post]
func (h *CaseHandler) FinishIntake(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	item, err := h.lifecycle.FinishIntake(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Assign godoc
// @Summary Assign a specialist and start follow-up
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.AssignSpecialistRequest true "Specialist"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /cases/{id}/assign [post]
func (h *CaseHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.AssignSpecialistRequest
	if !bindJSON(c, &req, "invalid assignment payload") {
		return
	}
	item, err := h.lifecycle.AssignSpecialist(c.Request.Context(), c.Param("id"), req.SpecialistID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}

// Close godoc
// @Summary Close a case
// @Tags Cases
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.CloseCaseRequest true "Closure"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /cases/{id}/close [post]
func (h *CaseHandler) Close(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CloseCaseRequest
	if !bindJSON(c, &req, "invalid closure payload") {
		return
	}
	item, err := h.lifecycle.Close(c.Request.Context(), c.Param("id"), req.Reason, req.Opinion, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, item)
}
