package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/internal/repository"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
)

const (
	unknownUserName    = "Unknown"
	caseDetailCacheKey = "cases:detail:"
)

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type caseStore interface {
	Create(ctx context.Context, c *models.Case) error
	GetByID(ctx context.Context, id string) (*models.Case, error)
	GetForUpdate(ctx context.Context, id string) (*models.Case, error)
	Update(ctx context.Context, c *models.Case) error
}

type auditRecorder interface {
	Record(ctx context.Context, caseID, authorID string, action models.AuditAction, description string, before, after interface{}) (*models.AuditEntry, error)
}

type nameResolver interface {
	DisplayName(ctx context.Context, id string) (string, bool, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type transitionMetrics interface {
	RecordTransition(action models.AuditAction)
}

// auditRecord describes the entry a mutation wants written. When diff is set
// the payloads are computed from the before and after versions of the case.
type auditRecord struct {
	action      models.AuditAction
	description string
	before      interface{}
	after       interface{}
	diff        bool
}

// caseMutation receives a private copy of the locked case and returns the
// version to persist. A nil record means nothing changed.
type caseMutation func(ctx context.Context, current *models.Case) (*models.Case, *auditRecord, error)

// caseMutator runs the load, validate, write and audit sequence shared by
// every case-changing operation inside one transaction.
type caseMutator struct {
	tx      txRunner
	cases   caseStore
	audit   auditRecorder
	names   nameResolver
	cache   cacheInvalidator
	metrics transitionMetrics
	logger  *zap.Logger
	now     func() time.Time
}

func (m *caseMutator) mutate(ctx context.Context, caseID string, actor models.Actor, fn caseMutation) (*models.Case, error) {
	var (
		result  *models.Case
		written *auditRecord
	)
	err := m.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := m.cases.GetForUpdate(ctx, caseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "case not found")
			}
			return appErrors.Storage(err, "failed to load case")
		}

		next, rec, err := fn(ctx, current.Clone())
		if err != nil {
			return err
		}
		if rec == nil {
			result = current
			return nil
		}

		before, after := rec.before, rec.after
		if rec.diff {
			changes, err := m.diff(ctx, current, next)
			if err != nil {
				return err
			}
			before, after = changes.Before(), changes.After()
		}

		if err := m.cases.Update(ctx, next); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return appErrors.Clone(appErrors.ErrInvalidState, "another case already uses this document number")
			}
			return appErrors.Storage(err, "failed to update case")
		}
		if _, err := m.audit.Record(ctx, next.ID, actor.ID, rec.action, rec.description, before, after); err != nil {
			return err
		}
		result = next
		written = rec
		return nil
	})
	if err != nil {
		err = wrapStorage(err, "case update failed")
		if !appErrors.IsRecoverable(err) {
			m.logger.Error("case mutation failed", zap.String("case_id", caseID), zap.String("actor_id", actor.ID), zap.Error(err))
		}
		return nil, err
	}

	if written != nil {
		m.invalidate(ctx, caseID)
		if m.metrics != nil {
			m.metrics.RecordTransition(written.action)
		}
		m.logger.Info("case updated",
			zap.String("case_id", caseID),
			zap.String("action", string(written.action)),
			zap.String("actor_id", actor.ID),
			zap.String("status", string(result.Status)))
	}
	return result, nil
}

// diff computes the audited changes, resolving intake agents to display names.
func (m *caseMutator) diff(ctx context.Context, previous, next *models.Case) (CaseChanges, error) {
	var lookupErr error
	lookup := func(id string) string {
		name, err := m.displayName(ctx, id)
		if err != nil && lookupErr == nil {
			lookupErr = err
		}
		return name
	}
	changes := ComputeCaseChanges(previous, next, lookup)
	if lookupErr != nil {
		return nil, lookupErr
	}
	return changes, nil
}

// displayName resolves a user name, falling back to a placeholder for ids that
// do not resolve. Storage failures are returned.
func (m *caseMutator) displayName(ctx context.Context, id string) (string, error) {
	if m.names == nil || id == "" {
		return unknownUserName, nil
	}
	name, found, err := m.names.DisplayName(ctx, id)
	if err != nil {
		return "", appErrors.Storage(err, "failed to resolve user name")
	}
	if !found || name == "" {
		return unknownUserName, nil
	}
	return name, nil
}

func (m *caseMutator) invalidate(ctx context.Context, caseID string) {
	if m.cache == nil {
		return
	}
	if err := m.cache.Invalidate(ctx, caseDetailCacheKey+caseID+"*"); err != nil {
		m.logger.Warn("failed to invalidate case cache", zap.String("case_id", caseID), zap.Error(err))
	}
}

func (m *caseMutator) timestamp() time.Time {
	if m.now != nil {
		return m.now().UTC()
	}
	return time.Now().UTC()
}
