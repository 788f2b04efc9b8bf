package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/casework-api/internal/dto"
	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/pkg/response"
)

type supportPlanService interface {
	Create(ctx context.Context, caseID string, req dto.CreateSupportPlanRequest, actor models.Actor) (*models.SupportPlan, error)
	Update(ctx context.Context, caseID string, req dto.UpdateSupportPlanRequest, actor models.Actor) (*models.SupportPlan, error)
	Get(ctx context.Context, caseID string) (*models.SupportPlan, error)
	History(ctx context.Context, caseID string) ([]models.SupportPlanVersion, error)
}

// SupportPlanHandler exposes the Family Support Plan of a case.
type SupportPlanHandler struct {
	service supportPlanService
}

// NewSupportPlanHandler builds a new handler.
func NewSupportPlanHandler(service supportPlanService) *SupportPlanHandler {
	return &SupportPlanHandler{service: service}
}

// Get godoc
// @Summary Get the current support plan
// @Tags SupportPlans
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /cases/{id}/plan [get]
func (h *SupportPlanHandler) Get(c *gin.Context) {
	plan, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, plan)
}

// Create godoc
// @Summary Create the support plan of a case in follow-up
// @Tags SupportPlans
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.CreateSupportPlanRequest true "Plan content"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /cases/{id}/plan [post]
func (h *SupportPlanHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateSupportPlanRequest
	if !bindJSON(c, &req, "invalid support plan payload") {
		return
	}
	plan, err := h.service.Create(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Update godoc
// @Summary Edit the support plan, archiving the previous version
// @Tags SupportPlans
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.UpdateSupportPlanRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/plan [patch]
func (h *SupportPlanHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.UpdateSupportPlanRequest
	if !bindJSON(c, &req, "invalid support plan payload") {
		return
	}
	plan, err := h.service.Update(c.Request.Context(), c.Param("id"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, plan)
}

// History godoc
// @Summary List archived support plan versions, newest first
// @Tags SupportPlans
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /cases/{id}/plan/history [get]
func (h *SupportPlanHandler) History(c *gin.Context) {
	versions, err := h.service.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, versions)
}
