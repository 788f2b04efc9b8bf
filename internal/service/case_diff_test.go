package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/casework-api/internal/models"
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func sampleCase() *models.Case {
	birth := time.Date(2012, 5, 4, 0, 0, 0, 0, time.UTC)
	return &models.Case{
		ID:                 "case-1",
		FullName:           "Maria Souza",
		DocumentNumber:     "123.456.789-00",
		BirthDate:          &birth,
		UrgencyCategory:    "HIGH",
		UrgencyWeight:      3,
		ViolationType:      "NEGLECT",
		PopulationCategory: "CHILD",
		RequestingAgency:   "Tutelary Council",
		Status:             models.CaseStatusAwaitingIntake,
		IntakeAgentID:      "agent-1",
		CreatedBy:          "agent-1",
		CreatedAt:          time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestComputeCaseChangesIdentical(t *testing.T) {
	c := sampleCase()
	assert.Empty(t, ComputeCaseChanges(c, c.Clone(), nil))

	closed := sampleCase()
	closed.Status = models.CaseStatusClosed
	closed.SetClosure("Resolved", "family reached stability", time.Now())
	assert.Empty(t, ComputeCaseChanges(closed, closed.Clone(), nil))
}

func TestComputeCaseChangesReportsChangedFields(t *testing.T) {
	prev := sampleCase()
	next := prev.Clone()
	next.Status = models.CaseStatusInIntake
	next.ViolationType = "PHYSICAL_ABUSE"

	changes := ComputeCaseChanges(prev, next, nil)
	require.Len(t, changes, 2)
	assert.Equal(t, FieldChange{From: "AWAITING_INTAKE", To: "IN_INTAKE"}, changes["status"])
	assert.Equal(t, FieldChange{From: "NEGLECT", To: "PHYSICAL_ABUSE"}, changes["violationType"])
}

func TestComputeCaseChangesSkipsIgnoredFields(t *testing.T) {
	prev := sampleCase()
	next := prev.Clone()
	next.UpdatedAt = next.UpdatedAt.Add(48 * time.Hour)
	next.CreatedAt = next.CreatedAt.Add(-48 * time.Hour)
	next.UrgencyWeight = 4
	next.Description = strPtr("new narrative")
	next.Observations = strPtr("called the school")
	next.CreatedBy = "someone-else"
	next.ID = "case-2"

	assert.Empty(t, ComputeCaseChanges(prev, next, nil))
}

func TestComputeCaseChangesIgnoresTimeOfDay(t *testing.T) {
	prev := sampleCase()
	prev.FollowupStartedAt = timePtr(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	next := prev.Clone()
	next.FollowupStartedAt = timePtr(time.Date(2026, 3, 10, 17, 45, 0, 0, time.UTC))
	next.BirthDate = timePtr(prev.BirthDate.Add(13 * time.Hour))

	assert.Empty(t, ComputeCaseChanges(prev, next, nil))

	next.FollowupStartedAt = timePtr(time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC))
	changes := ComputeCaseChanges(prev, next, nil)
	require.Contains(t, changes, "followupStartedAt")
	assert.Equal(t, "2026-03-10", changes["followupStartedAt"].From)
	assert.Equal(t, "2026-03-11", changes["followupStartedAt"].To)
}

func TestComputeCaseChangesNormalisesTimezone(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	prev := sampleCase()
	prev.FollowupStartedAt = timePtr(time.Date(2026, 3, 10, 22, 0, 0, 0, saoPaulo))
	next := prev.Clone()
	next.FollowupStartedAt = timePtr(time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC))

	assert.Empty(t, ComputeCaseChanges(prev, next, nil))
}

func TestComputeCaseChangesEmptyRepresentations(t *testing.T) {
	prev := sampleCase()
	prev.ClosureReason = strPtr("")
	prev.RequestingAgency = ""
	next := prev.Clone()
	next.ClosureReason = nil
	next.BirthDate = nil
	prev.BirthDate = timePtr(time.Time{})

	assert.Empty(t, ComputeCaseChanges(prev, next, nil))
}

func TestComputeCaseChangesResolvesIntakeAgentNames(t *testing.T) {
	names := map[string]string{"agent-1": "João Pereira", "agent-2": "Rita Alves"}
	lookup := func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return "Unknown"
	}

	prev := sampleCase()
	next := prev.Clone()
	next.IntakeAgentID = "agent-2"

	changes := ComputeCaseChanges(prev, next, lookup)
	require.Len(t, changes, 1)
	assert.NotContains(t, changes, "intakeAgentId")
	assert.Equal(t, FieldChange{From: "João Pereira", To: "Rita Alves"}, changes["intakeAgent"])

	raw := ComputeCaseChanges(prev, next, nil)
	assert.Equal(t, FieldChange{From: "agent-1", To: "agent-2"}, raw["intakeAgentId"])
}

func TestComputeChangesDateStrings(t *testing.T) {
	type snapshot struct {
		Deadline string `json:"deadline"`
		Note     string `json:"note"`
	}
	prev := snapshot{Deadline: "2026-06-01T09:00:00Z", Note: "a"}
	next := snapshot{Deadline: "2026-06-01", Note: "a"}
	assert.Empty(t, ComputeChanges(prev, next))

	next.Deadline = "2026-06-02"
	changes := ComputeChanges(prev, next)
	assert.Contains(t, changes, "deadline")
}

func TestCaseChangesBeforeAfter(t *testing.T) {
	changes := CaseChanges{"status": {From: "IN_FOLLOWUP", To: "CLOSED"}}
	assert.Equal(t, map[string]interface{}{"status": "IN_FOLLOWUP"}, changes.Before())
	assert.Equal(t, map[string]interface{}{"status": "CLOSED"}, changes.After())
}
