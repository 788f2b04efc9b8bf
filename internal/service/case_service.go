package service

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/dto"
	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/internal/repository"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
)

const defaultAuditWindow = 20

type auditTrail interface {
	auditRecorder
	ListByCase(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error)
}

// caseDetailCache is the read side of the cache, used when the configured
// invalidator supports it.
type caseDetailCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CaseServiceConfig tunes case reads.
type CaseServiceConfig struct {
	AuditWindow int
	CacheTTL    time.Duration
}

// CaseService registers cases, edits their classification and serves details.
type CaseService struct {
	mutator   *caseMutator
	audit     auditTrail
	validator *validator.Validate
	config    CaseServiceConfig
}

// NewCaseService constructs the service.
func NewCaseService(tx txRunner, cases caseStore, audit auditTrail, names nameResolver, validate *validator.Validate, logger *zap.Logger, cfg CaseServiceConfig, opts ...CaseWorkflowOption) *CaseService {
	if validate == nil {
		validate = validator.New()
	}
	if cfg.AuditWindow <= 0 {
		cfg.AuditWindow = defaultAuditWindow
	}
	return &CaseService{
		mutator:   newCaseMutator(tx, cases, audit, names, logger, opts),
		audit:     audit,
		validator: validate,
		config:    cfg,
	}
}

// Register creates a case in AWAITING_INTAKE. The intake agent defaults to the actor.
func (s *CaseService) Register(ctx context.Context, req dto.RegisterCaseRequest, actor models.Actor) (*models.Case, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid case payload")
	}
	if strings.TrimSpace(actor.ID) == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "actor is required")
	}

	intakeAgent := strings.TrimSpace(req.IntakeAgentID)
	if intakeAgent == "" {
		intakeAgent = actor.ID
	}
	c := &models.Case{
		FullName:           strings.TrimSpace(req.FullName),
		DocumentNumber:     strings.TrimSpace(req.DocumentNumber),
		BirthDate:          req.BirthDate,
		UrgencyCategory:    strings.TrimSpace(req.UrgencyCategory),
		UrgencyWeight:      models.UrgencyWeight(req.UrgencyCategory),
		ViolationType:      req.ViolationType,
		PopulationCategory: req.PopulationCategory,
		RequestingAgency:   req.RequestingAgency,
		Description:        req.Description,
		Observations:       req.Observations,
		Status:             models.CaseStatusAwaitingIntake,
		IntakeAgentID:      intakeAgent,
		CreatedBy:          actor.ID,
		CreatedAt:          s.mutator.timestamp(),
	}

	err := s.mutator.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.mutator.cases.Create(ctx, c); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrInvalidState, "a case with this document number already exists")
			}
			return appErrors.Storage(err, "failed to create case")
		}
		_, err := s.audit.Record(ctx, c.ID, actor.ID, models.AuditActionCreate, "case registered", nil, map[string]interface{}{
			"fullName":        c.FullName,
			"status":          c.Status,
			"urgencyCategory": c.UrgencyCategory,
		})
		return err
	})
	if err != nil {
		err = wrapStorage(err, "case registration failed")
		if !appErrors.IsRecoverable(err) {
			s.mutator.logger.Error("case registration failed", zap.String("actor_id", actor.ID), zap.Error(err))
		}
		return nil, err
	}

	if s.mutator.metrics != nil {
		s.mutator.metrics.RecordTransition(models.AuditActionCreate)
	}
	s.mutator.logger.Info("case registered", zap.String("case_id", c.ID), zap.String("actor_id", actor.ID))
	return c, nil
}

// UpdateDetails applies partial edits to the classification fields. Moving the
// case to another intake agent is reserved to managers.
func (s *CaseService) UpdateDetails(ctx context.Context, caseID string, req dto.UpdateCaseRequest, actor models.Actor) (*models.Case, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid case payload")
	}

	return s.mutator.mutate(ctx, caseID, actor, func(ctx context.Context, c *models.Case) (*models.Case, *auditRecord, error) {
		original := c.Clone()

		if req.IntakeAgentID != nil {
			agent := strings.TrimSpace(*req.IntakeAgentID)
			if agent != c.IntakeAgentID {
				if !actor.IsManager() {
					return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can reassign the intake agent")
				}
				c.IntakeAgentID = agent
			}
		}
		applyCaseChanges(c, req)

		if reflect.DeepEqual(original, c) {
			return c, nil, nil
		}
		return c, &auditRecord{action: models.AuditActionOther, description: "case details updated", diff: true}, nil
	})
}

func applyCaseChanges(c *models.Case, req dto.UpdateCaseRequest) {
	if req.FullName != nil {
		c.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.DocumentNumber != nil {
		c.DocumentNumber = strings.TrimSpace(*req.DocumentNumber)
	}
	if req.BirthDate != nil {
		birth := *req.BirthDate
		c.BirthDate = &birth
	}
	if req.UrgencyCategory != nil {
		c.UrgencyCategory = strings.TrimSpace(*req.UrgencyCategory)
		c.UrgencyWeight = models.UrgencyWeight(c.UrgencyCategory)
	}
	if req.ViolationType != nil {
		c.ViolationType = *req.ViolationType
	}
	if req.PopulationCategory != nil {
		c.PopulationCategory = *req.PopulationCategory
	}
	if req.RequestingAgency != nil {
		c.RequestingAgency = *req.RequestingAgency
	}
	if req.Description != nil {
		description := *req.Description
		c.Description = &description
	}
	if req.Observations != nil {
		observations := *req.Observations
		c.Observations = &observations
	}
}

// Get returns the case with its most recent audit entries.
func (s *CaseService) Get(ctx context.Context, caseID string) (*models.CaseDetail, error) {
	cache, cacheable := s.mutator.cache.(caseDetailCache)
	key := caseDetailCacheKey + caseID
	if cacheable {
		var cached models.CaseDetail
		hit, err := cache.Get(ctx, key, &cached)
		if err == nil && hit {
			return &cached, nil
		}
	}

	c, err := s.mutator.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Storage(err, "failed to load case")
	}
	entries, err := s.audit.ListByCase(ctx, caseID, s.config.AuditWindow)
	if err != nil {
		return nil, wrapStorage(err, "failed to load audit trail")
	}

	detail := &models.CaseDetail{Case: *c, RecentAudit: entries}
	if cacheable {
		s.cacheDetail(ctx, cache, key, detail)
	}
	return detail, nil
}

// cacheDetail stores detail and drops it again when the case was updated
// after it was read.
func (s *CaseService) cacheDetail(ctx context.Context, cache caseDetailCache, key string, detail *models.CaseDetail) {
	if err := cache.Set(ctx, key, detail, s.config.CacheTTL); err != nil {
		return
	}
	current, err := s.mutator.cases.GetByID(ctx, detail.Case.ID)
	if err == nil && current.UpdatedAt.Equal(detail.Case.UpdatedAt) {
		return
	}
	s.mutator.invalidate(ctx, detail.Case.ID)
}

// AuditTrail lists the audit entries of a case newest-first. limit <= 0
// returns the whole trail.
func (s *CaseService) AuditTrail(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error) {
	if _, err := s.mutator.cases.GetByID(ctx, caseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "case not found")
		}
		return nil, appErrors.Storage(err, "failed to load case")
	}
	entries, err := s.audit.ListByCase(ctx, caseID, limit)
	if err != nil {
		return nil, wrapStorage(err, "failed to load audit trail")
	}
	return entries, nil
}
