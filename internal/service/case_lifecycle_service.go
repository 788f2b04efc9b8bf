package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/models"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
)

const minClosureOpinionLength = 10

// CaseWorkflowOption configures the case services.
type CaseWorkflowOption func(*caseMutator)

// WithCaseCache invalidates cached case details after every committed change.
func WithCaseCache(cache cacheInvalidator) CaseWorkflowOption {
	return func(m *caseMutator) {
		if cache != nil {
			m.cache = cache
		}
	}
}

// WithCaseMetrics records committed transitions.
func WithCaseMetrics(metrics transitionMetrics) CaseWorkflowOption {
	return func(m *caseMutator) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithCaseClock overrides the time source.
func WithCaseClock(now func() time.Time) CaseWorkflowOption {
	return func(m *caseMutator) {
		if now != nil {
			m.now = now
		}
	}
}

func newCaseMutator(tx txRunner, cases caseStore, audit auditRecorder, names nameResolver, logger *zap.Logger, opts []CaseWorkflowOption) *caseMutator {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &caseMutator{tx: tx, cases: cases, audit: audit, names: names, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// CaseLifecycleService owns the case state machine.
type CaseLifecycleService struct {
	mutator *caseMutator
}

// NewCaseLifecycleService constructs the lifecycle controller.
func NewCaseLifecycleService(tx txRunner, cases caseStore, audit auditRecorder, names nameResolver, logger *zap.Logger, opts ...CaseWorkflowOption) *CaseLifecycleService {
	return &CaseLifecycleService{mutator: newCaseMutator(tx, cases, audit, names, logger, opts)}
}

// AdvanceStatus moves a case to target with no adjacency check. A closed case
// asked to leave CLOSED is reopened into AWAITING_INTAKE whatever target was
// requested. Moving an open case to CLOSED this way leaves the closure fields
// empty; Close records them.
func (s *CaseLifecycleService) AdvanceStatus(ctx context.Context, caseID string, target models.CaseStatus, actor models.Actor) (*models.Case, error) {
	target = models.CaseStatus(strings.ToUpper(strings.TrimSpace(string(target))))

	return s.mutator.mutate(ctx, caseID, actor, func(ctx context.Context, c *models.Case) (*models.Case, *auditRecord, error) {
		if !target.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown case status %q", target))
		}

		if c.IsClosed() {
			if target == models.CaseStatusClosed {
				return c, nil, nil
			}
			reopen(c)
			return c, &auditRecord{action: models.AuditActionStatusChange, description: "case reopened", diff: true}, nil
		}

		if c.Status == target {
			return c, nil, nil
		}
		if target == models.CaseStatusInFollowup && !c.HasSpecialist() {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "a specialist must be assigned before follow-up")
		}

		setStatus(c, target)
		return c, statusChange(target), nil
	})
}

// StartIntake moves a case from AWAITING_INTAKE to IN_INTAKE.
func (s *CaseLifecycleService) StartIntake(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error) {
	return s.step(ctx, caseID, actor, models.CaseStatusAwaitingIntake, models.CaseStatusInIntake)
}

// FinishIntake moves a case from IN_INTAKE to AWAITING_ASSIGNMENT.
func (s *CaseLifecycleService) FinishIntake(ctx context.Context, caseID string, actor models.Actor) (*models.Case, error) {
	return s.step(ctx, caseID, actor, models.CaseStatusInIntake, models.CaseStatusAwaitingAssignment)
}

func (s *CaseLifecycleService) step(ctx context.Context, caseID string, actor models.Actor, from, to models.CaseStatus) (*models.Case, error) {
	return s.mutator.mutate(ctx, caseID, actor, func(ctx context.Context, c *models.Case) (*models.Case, *auditRecord, error) {
		if c.Status != from {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("case must be %s, found %s", from, c.Status))
		}
		setStatus(c, to)
		return c, statusChange(to), nil
	})
}

// AssignSpecialist hands the case to a specialist and starts follow-up.
// Only managers may assign.
func (s *CaseLifecycleService) AssignSpecialist(ctx context.Context, caseID, specialistID string, actor models.Actor) (*models.Case, error) {
	if !actor.IsManager() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only managers can assign specialists")
	}
	specialistID = strings.TrimSpace(specialistID)
	if specialistID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "specialist is required")
	}

	return s.mutator.mutate(ctx, caseID, actor, func(ctx context.Context, c *models.Case) (*models.Case, *auditRecord, error) {
		if c.IsClosed() {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "closed cases cannot be assigned")
		}

		var previousName interface{}
		if c.HasSpecialist() {
			name, err := s.mutator.displayName(ctx, *c.SpecialistID)
			if err != nil {
				return nil, nil, err
			}
			previousName = name
		}
		newName, err := s.mutator.displayName(ctx, specialistID)
		if err != nil {
			return nil, nil, err
		}

		now := s.mutator.timestamp()
		c.SpecialistID = &specialistID
		c.Status = models.CaseStatusInFollowup
		c.FollowupStartedAt = &now

		return c, &auditRecord{
			action:      models.AuditActionAssign,
			description: fmt.Sprintf("specialist %s assigned", newName),
			before:      previousName,
			after:       newName,
		}, nil
	})
}

// Close ends the case. Managers, the intake agent and the assigned specialist
// may close it.
func (s *CaseLifecycleService) Close(ctx context.Context, caseID, reason, opinion string, actor models.Actor) (*models.Case, error) {
	reason = strings.TrimSpace(reason)
	opinion = strings.TrimSpace(opinion)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "closure reason is required")
	}
	if utf8.RuneCountInString(opinion) < minClosureOpinionLength {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("closure opinion must have at least %d characters", minClosureOpinionLength))
	}

	return s.mutator.mutate(ctx, caseID, actor, func(ctx context.Context, c *models.Case) (*models.Case, *auditRecord, error) {
		if !canClose(c, actor) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only managers or the case owners can close it")
		}
		if c.IsClosed() {
			return nil, nil, appErrors.Clone(appErrors.ErrInvalidState, "case is already closed")
		}

		c.Status = models.CaseStatusClosed
		c.SetClosure(reason, opinion, s.mutator.timestamp())
		return c, &auditRecord{action: models.AuditActionClose, description: "case closed: " + reason, diff: true}, nil
	})
}

func canClose(c *models.Case, actor models.Actor) bool {
	if actor.IsManager() {
		return true
	}
	if actor.ID == "" {
		return false
	}
	return actor.ID == c.IntakeAgentID || (c.HasSpecialist() && actor.ID == *c.SpecialistID)
}

// reopen returns a closed case to the start of the workflow.
func reopen(c *models.Case) {
	c.ClearClosure()
	setStatus(c, models.CaseStatusAwaitingIntake)
}

// setStatus applies target and drops follow-up data when the case moves back
// before assignment.
func setStatus(c *models.Case, target models.CaseStatus) {
	c.Status = target
	if target.PreAssignment() {
		c.SpecialistID = nil
		c.FollowupStartedAt = nil
	}
}

func statusChange(target models.CaseStatus) *auditRecord {
	return &auditRecord{
		action:      models.AuditActionStatusChange,
		description: fmt.Sprintf("status changed to %s", target),
		diff:        true,
	}
}
