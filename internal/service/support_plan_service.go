package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/dto"
	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/internal/repository"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
)

const minPlanTextLength = 10

type supportPlanStore interface {
	Create(ctx context.Context, plan *models.SupportPlan) error
	GetByCaseID(ctx context.Context, caseID string) (*models.SupportPlan, error)
	GetByCaseIDForUpdate(ctx context.Context, caseID string) (*models.SupportPlan, error)
	Update(ctx context.Context, plan *models.SupportPlan) error
	CreateVersion(ctx context.Context, version *models.SupportPlanVersion) error
	ListVersions(ctx context.Context, planID string) ([]models.SupportPlanVersion, error)
}

type planMetrics interface {
	RecordPlanVersion()
}

// SupportPlanService manages the Family Support Plan of a case. Every edit
// archives the previous content as an immutable version first.
type SupportPlanService struct {
	base      *caseMutator
	plans     supportPlanStore
	validator *validator.Validate
}

// NewSupportPlanService constructs the plan versioning controller.
func NewSupportPlanService(tx txRunner, cases caseStore, plans supportPlanStore, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, opts ...CaseWorkflowOption) *SupportPlanService {
	if validate == nil {
		validate = validator.New()
	}
	return &SupportPlanService{
		base:      newCaseMutator(tx, cases, audit, nil, logger, opts),
		plans:     plans,
		validator: validate,
	}
}

// Create opens the plan of a case in follow-up at version 1.
func (s *SupportPlanService) Create(ctx context.Context, caseID string, req dto.CreateSupportPlanRequest, actor models.Actor) (*models.SupportPlan, error) {
	if actor.Role != models.RoleSpecialist && actor.Role != models.RoleManager {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only specialists and managers can create support plans")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid support plan payload")
	}
	content := models.SupportPlanContent{
		Diagnosis:  strings.TrimSpace(req.Diagnosis),
		Objectives: strings.TrimSpace(req.Objectives),
		Strategies: strings.TrimSpace(req.Strategies),
		Deadline:   req.Deadline,
	}
	if err := s.validateContent(content, true); err != nil {
		return nil, err
	}

	plan := &models.SupportPlan{
		CaseID:               caseID,
		Diagnosis:            content.Diagnosis,
		Objectives:           content.Objectives,
		Strategies:           content.Strategies,
		Deadline:             content.Deadline,
		AuthorID:             actor.ID,
		CurrentVersionNumber: 1,
	}
	err := s.base.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.base.cases.GetForUpdate(ctx, caseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "case not found")
			}
			return appErrors.Storage(err, "failed to load case")
		}
		if c.Status != models.CaseStatusInFollowup {
			return appErrors.Clone(appErrors.ErrInvalidState, "support plans can only be created for cases in follow-up")
		}
		if _, err := s.plans.GetByCaseIDForUpdate(ctx, caseID); err == nil {
			return appErrors.Clone(appErrors.ErrInvalidState, "case already has a support plan")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Storage(err, "failed to load support plan")
		}

		if err := s.plans.Create(ctx, plan); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrInvalidState, "case already has a support plan")
			}
			return appErrors.Storage(err, "failed to create support plan")
		}
		_, err = s.base.audit.Record(ctx, caseID, actor.ID, models.AuditActionPlanCreated, "support plan created", nil, content)
		return err
	})
	if err != nil {
		return nil, s.fail(caseID, actor, err)
	}

	s.committed(ctx, caseID, actor, models.AuditActionPlanCreated, plan.CurrentVersionNumber)
	return plan, nil
}

// Update archives the current plan content, applies the submitted fields and
// bumps the version. Only managers and the current author may edit.
func (s *SupportPlanService) Update(ctx context.Context, caseID string, req dto.UpdateSupportPlanRequest, actor models.Actor) (*models.SupportPlan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid support plan payload")
	}
	if req.Empty() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no support plan fields to update")
	}

	var updated *models.SupportPlan
	err := s.base.tx.WithinTx(ctx, func(ctx context.Context) error {
		plan, err := s.plans.GetByCaseIDForUpdate(ctx, caseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "support plan not found")
			}
			return appErrors.Storage(err, "failed to load support plan")
		}
		if !actor.IsManager() && actor.ID != plan.AuthorID {
			return appErrors.Clone(appErrors.ErrForbidden, "only managers or the plan author can edit the support plan")
		}

		previous := plan.Content()
		next := applyPlanChanges(previous, req)
		if err := s.validateContent(next, req.Deadline != nil); err != nil {
			return err
		}

		if err := s.plans.CreateVersion(ctx, models.SnapshotOf(plan, s.base.timestamp())); err != nil {
			return appErrors.Storage(err, "failed to archive support plan version")
		}

		plan.Diagnosis = next.Diagnosis
		plan.Objectives = next.Objectives
		plan.Strategies = next.Strategies
		plan.Deadline = next.Deadline
		plan.AuthorID = actor.ID
		plan.CurrentVersionNumber++
		if err := s.plans.Update(ctx, plan); err != nil {
			return appErrors.Storage(err, "failed to update support plan")
		}

		description := fmt.Sprintf("support plan updated to version %d", plan.CurrentVersionNumber)
		if _, err := s.base.audit.Record(ctx, caseID, actor.ID, models.AuditActionPlanUpdated, description, previous, req); err != nil {
			return err
		}
		updated = plan
		return nil
	})
	if err != nil {
		return nil, s.fail(caseID, actor, err)
	}

	s.committed(ctx, caseID, actor, models.AuditActionPlanUpdated, updated.CurrentVersionNumber)
	return updated, nil
}

// Get returns the current plan of a case.
func (s *SupportPlanService) Get(ctx context.Context, caseID string) (*models.SupportPlan, error) {
	plan, err := s.plans.GetByCaseID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "support plan not found")
		}
		return nil, appErrors.Storage(err, "failed to load support plan")
	}
	return plan, nil
}

// History lists archived versions newest-first. A case without a plan has an
// empty history.
func (s *SupportPlanService) History(ctx context.Context, caseID string) ([]models.SupportPlanVersion, error) {
	plan, err := s.plans.GetByCaseID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []models.SupportPlanVersion{}, nil
		}
		return nil, appErrors.Storage(err, "failed to load support plan")
	}
	versions, err := s.plans.ListVersions(ctx, plan.ID)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load support plan history")
	}
	if versions == nil {
		versions = []models.SupportPlanVersion{}
	}
	return versions, nil
}

func applyPlanChanges(content models.SupportPlanContent, req dto.UpdateSupportPlanRequest) models.SupportPlanContent {
	if req.Diagnosis != nil {
		content.Diagnosis = strings.TrimSpace(*req.Diagnosis)
	}
	if req.Objectives != nil {
		content.Objectives = strings.TrimSpace(*req.Objectives)
	}
	if req.Strategies != nil {
		content.Strategies = strings.TrimSpace(*req.Strategies)
	}
	if req.Deadline != nil {
		content.Deadline = *req.Deadline
	}
	return content
}

// validateContent re-checks the minimum text lengths. When checkDeadline is set
// deadlines before today (UTC) are rejected.
func (s *SupportPlanService) validateContent(content models.SupportPlanContent, checkDeadline bool) error {
	fields := []struct {
		name  string
		value string
	}{
		{"diagnosis", content.Diagnosis},
		{"objectives", content.Objectives},
		{"strategies", content.Strategies},
	}
	for _, field := range fields {
		if utf8.RuneCountInString(field.value) < minPlanTextLength {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must have at least %d characters", field.name, minPlanTextLength))
		}
	}
	if content.Deadline.IsZero() {
		return appErrors.Clone(appErrors.ErrValidation, "deadline is required")
	}
	if checkDeadline && startOfDay(content.Deadline).Before(startOfDay(s.base.timestamp())) {
		return appErrors.Clone(appErrors.ErrValidation, "deadline cannot be in the past")
	}
	return nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *SupportPlanService) fail(caseID string, actor models.Actor, err error) error {
	err = wrapStorage(err, "support plan update failed")
	if !appErrors.IsRecoverable(err) {
		s.base.logger.Error("support plan operation failed", zap.String("case_id", caseID), zap.String("actor_id", actor.ID), zap.Error(err))
	}
	return err
}

func (s *SupportPlanService) committed(ctx context.Context, caseID string, actor models.Actor, action models.AuditAction, version int) {
	s.base.invalidate(ctx, caseID)
	if s.base.metrics != nil {
		s.base.metrics.RecordTransition(action)
		if pm, ok := s.base.metrics.(planMetrics); ok {
			pm.RecordPlanVersion()
		}
	}
	s.base.logger.Info("support plan saved",
		zap.String("case_id", caseID),
		zap.String("action", string(action)),
		zap.String("actor_id", actor.ID),
		zap.Int("version", version))
}
