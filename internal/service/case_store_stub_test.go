package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/casework-api/internal/models"
	"github.com/noah-isme/casework-api/internal/repository"
)

// memoryStore is an in-memory stand-in for the case, audit, plan and user
// tables. WithinTx restores the previous state when the unit of work fails.
type memoryStore struct {
	mu       sync.Mutex
	cases    map[string]*models.Case
	audit    []models.AuditEntry
	plans    map[string]*models.SupportPlan
	versions []models.SupportPlanVersion
	users    map[string]string
	seq      int

	caseUpdateErr    error
	auditCreateErr   error
	planUpdateErr    error
	versionCreateErr error
	nameErr          error
	txCount          int
	rollbacks        int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		cases: make(map[string]*models.Case),
		plans: make(map[string]*models.SupportPlan),
		users: make(map[string]string),
	}
}

type memorySnapshot struct {
	cases    map[string]*models.Case
	audit    []models.AuditEntry
	plans    map[string]*models.SupportPlan
	versions []models.SupportPlanVersion
}

func (m *memoryStore) snapshot() memorySnapshot {
	snap := memorySnapshot{
		cases:    make(map[string]*models.Case, len(m.cases)),
		audit:    append([]models.AuditEntry(nil), m.audit...),
		plans:    make(map[string]*models.SupportPlan, len(m.plans)),
		versions: append([]models.SupportPlanVersion(nil), m.versions...),
	}
	for id, c := range m.cases {
		snap.cases[id] = c.Clone()
	}
	for id, p := range m.plans {
		copied := *p
		snap.plans[id] = &copied
	}
	return snap
}

func (m *memoryStore) restore(snap memorySnapshot) {
	m.cases = snap.cases
	m.audit = snap.audit
	m.plans = snap.plans
	m.versions = snap.versions
}

func (m *memoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	m.mu.Lock()
	m.txCount++
	snap := m.snapshot()
	m.mu.Unlock()
	defer func() {
		if p := recover(); p != nil {
			m.mu.Lock()
			m.restore(snap)
			m.rollbacks++
			m.mu.Unlock()
			panic(p)
		}
	}()
	if err = fn(ctx); err != nil {
		m.mu.Lock()
		m.restore(snap)
		m.rollbacks++
		m.mu.Unlock()
	}
	return err
}

func (m *memoryStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memoryStore) putCase(c *models.Case) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases[c.ID] = c.Clone()
}

func (m *memoryStore) caseByID(id string) *models.Case {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cases[id].Clone()
}

func (m *memoryStore) auditFor(caseID string) []models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.AuditEntry
	for _, entry := range m.audit {
		if entry.CaseID == caseID {
			out = append(out, entry)
		}
	}
	return out
}

func (m *memoryStore) Create(ctx context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.cases {
		if existing.DocumentNumber == c.DocumentNumber {
			return repository.ErrDuplicate
		}
	}
	if c.ID == "" {
		c.ID = m.nextID("case")
	}
	c.UpdatedAt = c.CreatedAt
	m.cases[c.ID] = c.Clone()
	return nil
}

func (m *memoryStore) GetByID(ctx context.Context, id string) (*models.Case, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cases[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return c.Clone(), nil
}

func (m *memoryStore) GetForUpdate(ctx context.Context, id string) (*models.Case, error) {
	return m.GetByID(ctx, id)
}

func (m *memoryStore) Update(ctx context.Context, c *models.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.caseUpdateErr != nil {
		return m.caseUpdateErr
	}
	if _, ok := m.cases[c.ID]; !ok {
		return fmt.Errorf("update case %s: no rows affected", c.ID)
	}
	for id, existing := range m.cases {
		if id != c.ID && existing.DocumentNumber == c.DocumentNumber {
			return repository.ErrDuplicate
		}
	}
	c.UpdatedAt = time.Now().UTC()
	m.cases[c.ID] = c.Clone()
	return nil
}

// auditTable adapts the store to the audit repository contract.
type auditTable struct{ *memoryStore }

func (a auditTable) Create(ctx context.Context, entry *models.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.auditCreateErr != nil {
		return a.auditCreateErr
	}
	// payload columns are JSONB
	for _, payload := range []*string{entry.Before, entry.After} {
		if payload != nil && !json.Valid([]byte(*payload)) {
			return fmt.Errorf("invalid input syntax for type json: %q", *payload)
		}
	}
	entry.ID = a.nextID("audit")
	entry.CreatedAt = time.Now().UTC().Add(time.Duration(a.seq) * time.Millisecond)
	a.audit = append(a.audit, *entry)
	return nil
}

func (a auditTable) ListByCase(ctx context.Context, caseID string, limit int) ([]models.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []models.AuditEntry{}
	for i := len(a.audit) - 1; i >= 0; i-- {
		if a.audit[i].CaseID == caseID {
			out = append(out, a.audit[i])
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// planTable adapts the store to the support plan repository contract.
type planTable struct{ *memoryStore }

func (p planTable) Create(ctx context.Context, plan *models.SupportPlan) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.plans[plan.CaseID]; ok {
		return repository.ErrDuplicate
	}
	plan.ID = p.nextID("plan")
	if plan.CurrentVersionNumber == 0 {
		plan.CurrentVersionNumber = 1
	}
	copied := *plan
	p.plans[plan.CaseID] = &copied
	return nil
}

func (p planTable) GetByCaseID(ctx context.Context, caseID string) (*models.SupportPlan, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	plan, ok := p.plans[caseID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *plan
	return &copied, nil
}

func (p planTable) GetByCaseIDForUpdate(ctx context.Context, caseID string) (*models.SupportPlan, error) {
	return p.GetByCaseID(ctx, caseID)
}

func (p planTable) Update(ctx context.Context, plan *models.SupportPlan) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.planUpdateErr != nil {
		return p.planUpdateErr
	}
	copied := *plan
	p.plans[plan.CaseID] = &copied
	return nil
}

func (p planTable) CreateVersion(ctx context.Context, version *models.SupportPlanVersion) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.versionCreateErr != nil {
		return p.versionCreateErr
	}
	version.ID = p.nextID("version")
	p.versions = append(p.versions, *version)
	return nil
}

func (p planTable) ListVersions(ctx context.Context, planID string) ([]models.SupportPlanVersion, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []models.SupportPlanVersion{}
	for _, v := range p.versions {
		if v.PlanID == planID {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].VersionNumber > out[j].VersionNumber
		}
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	return out, nil
}

func (m *memoryStore) DisplayName(ctx context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameErr != nil {
		return "", false, m.nameErr
	}
	name, ok := m.users[id]
	return name, ok, nil
}

type invalidatorStub struct {
	patterns []string
}

func (s *invalidatorStub) Invalidate(ctx context.Context, pattern string) error {
	s.patterns = append(s.patterns, pattern)
	return nil
}

type transitionCounter struct {
	actions  []models.AuditAction
	versions int
}

func (c *transitionCounter) RecordTransition(action models.AuditAction) {
	c.actions = append(c.actions, action)
}

func (c *transitionCounter) RecordPlanVersion() {
	c.versions++
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
