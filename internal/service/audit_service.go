package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/casework-api/internal/models"
	appErrors "github.com/noah-isme/casework-api/pkg/errors"
)

type auditStore interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	ListByCase(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error)
}

type auditMetrics interface {
	RecordAuditEntry(action models.AuditAction)
}

// AuditService appends entries to the case audit trail. It trusts its callers
// and never raises business-rule errors: every failure it returns is fatal and
// must abort the enclosing transaction.
type AuditService struct {
	repo    auditStore
	metrics auditMetrics
	logger  *zap.Logger
}

// NewAuditService constructs the recorder. metrics may be nil.
func NewAuditService(repo auditStore, metrics auditMetrics, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{repo: repo, metrics: metrics, logger: logger}
}

// Record appends one entry. before and after may be nil, a string, or any
// JSON-serializable value.
func (s *AuditService) Record(ctx context.Context, caseID, authorID string, action models.AuditAction, description string, before, after interface{}) (*models.AuditEntry, error) {
	if strings.TrimSpace(caseID) == "" || strings.TrimSpace(authorID) == "" {
		return nil, appErrors.Clone(appErrors.ErrInternal, "audit entry requires case and author")
	}
	beforePayload, err := models.AuditPayload(before)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode audit payload")
	}
	afterPayload, err := models.AuditPayload(after)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode audit payload")
	}

	entry := &models.AuditEntry{
		CaseID:      caseID,
		AuthorID:    authorID,
		Action:      action,
		Description: description,
		Before:      beforePayload,
		After:       afterPayload,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.logger.Error("failed to write audit entry",
			zap.String("case_id", caseID),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, appErrors.Storage(err, "failed to write audit entry")
	}
	if s.metrics != nil {
		s.metrics.RecordAuditEntry(action)
	}
	return entry, nil
}

// ListByCase returns entries newest-first. limit <= 0 returns the full trail.
func (s *AuditService) ListByCase(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error) {
	entries, err := s.repo.ListByCase(ctx, caseID, limit)
	if err != nil {
		return nil, appErrors.Storage(err, "failed to load audit trail")
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	return entries, nil
}

// wrapStorage leaves typed errors untouched and marks everything else as a
// storage failure.
func wrapStorage(err error, message string) error {
	if err == nil {
		return nil
	}
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return appErrors.Storage(err, message)
}
