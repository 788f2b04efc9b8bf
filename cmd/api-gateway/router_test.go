package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/dto"
	"github.com/noah-isme/casework-api/internal/handler"
	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/internal/service"
	"github.com/noah-isme/casework-api/pkg/config"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
)

type staticTokens map[string]*models.JWTClaims

func (s staticTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := s[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type noopCases struct{}

func (noopCases) Register(ctx context.Context, req dto.RegisterCaseRequest, actor models.Actor) (*models.Case, error) {
	return &models.Case{ID: "case-1"}, nil
}

func (noopCases) UpdateDetails(ctx context.Context, caseID string, req dto.UpdateCaseRequest, actor models.Actor) (*models.Case, error) {
	return &models.Case{ID: caseID}, nil
}

func (noopCases) Get(ctx context.Context, caseID string) (*models.CaseDetail, error) {
	return &models.CaseDetail{Case: models.Case{ID: caseID}, RecentAudit: []models.AuditEntry{}}, nil
}

func (noopCases) AuditTrail(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error) {
	return []models.AuditEntry{}, nil
}

type noopLifecycle struct{}

func (noopLifecycle) AdvanceStatus(ctx context.Context, caseID string, target models.CaseStatus, actor models.Actor) (*models.Case, error) {
	return &models.Case{ID: caseID, Status: target}, nil
}

func (noopLifecycle) StartIntake(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error) {
	return &models.Case{ID: caseID}, nil
}

func (noopLifecycle) FinishIntake(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error) {
	return &models.Case{ID: caseID}, nil
}

func (noopLifecycle) AssignSpecialist(ctx context.Context, caseID, specialistID string, actor models.Actor) (*models.Case, error) {
	return &models.Case{ID: caseID, SpecialistID: &specialistID}, nil
}

func (noopLifecycle) Close(ctx context.Context, caseID, reason, opinion string, actor models.Actor) (*models.Case, error) {
	return &models.Case{ID: caseID}, nil
}

type noopPlans struct{}

func (noopPlans) Create(ctx context.Context, caseID string, req dto.CreateSupportPlanRequest, actor models.Actor) (*models.SupportPlan, error) {
	return &models.SupportPlan{CaseID: caseID}, nil
}

func (noopPlans) Update(ctx context.Context, caseID string, req dto.UpdateSupportPlanRequest, actor models.Actor) (*models.SupportPlan, error) {
	return &models.SupportPlan{CaseID: caseID}, nil
}

func (noopPlans) Get(ctx context.Context, caseID string) (*models.SupportPlan, error) {
	return &models.SupportPlan{CaseID: caseID}, nil
}

func (noopPlans) History(ctx context.Context, caseID string) ([]models.SupportPlanVersion, error) {
	return []models.SupportPlanVersion{}, nil
}

func testRouter(env string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Env: env, APIPrefix: "/api/v1", Docs: config.DocsConfig{Enabled: true}}
	metrics := service.NewMetricsService()
	return newRouter(cfg, zap.NewNop(), routerDeps{
		tokens: staticTokens{
			"manager": {UserID: "manager-1", Role: models.RoleManager},
			"agent":   {UserID: "agent-1", Role: models.RoleSocialAgent},
		},
		metrics:     metrics,
		cases:       handler.NewCaseHandler(noopCases{}, noopLifecycle{}),
		plans:       handler.NewSupportPlanHandler(noopPlans{}),
		observation: handler.NewMetricsHandler(metrics, nil, nil),
	})
}

func call(r *gin.Engine, method, path, token, body string) int {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestRouterProtectsCaseRoutes(t *testing.T) {
	r := testRouter(config.EnvDevelopment)

	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/health", "", ""))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/ready", "", ""))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/metrics", "", ""))
	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/v1/cases/case-1", "", ""))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/cases/case-1", "agent", ""))
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/api/v1/cases/case-1/plan/history", "agent", ""))
}

func TestRouterRoleGates(t *testing.T) {
	r := testRouter(config.EnvDevelopment)
	assign := `{"specialistId":"specialist-1"}`

	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/v1/cases/case-1/assign", "agent", assign))
	assert.Equal(t, http.StatusOK, call(r, http.MethodPost, "/api/v1/cases/case-1/assign", "manager", assign))

	plan := `{"diagnosis":"family lacks income","objectives":"enrol in programs","strategies":"weekly home visits","deadline":"2030-01-01T00:00:00Z"}`
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/v1/cases/case-1/plan", "agent", plan))
	assert.Equal(t, http.StatusCreated, call(r, http.MethodPost, "/api/v1/cases/case-1/plan", "manager", plan))
}

func TestRouterHidesDocsInProduction(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, call(testRouter(config.EnvProduction), http.MethodGet, "/docs/index.html", "", ""))
	assert.Equal(t, http.StatusOK, call(testRouter(config.EnvDevelopment), http.MethodGet, "/docs/index.html", "", ""))
}
