package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/therealashik/julesctl/internal/models"
)

func payload(kind models.PayloadKind) models.Activity {
	return models.Activity{
		Name:    "sessions/s1/activities/" + string(kind),
		Payload: models.Payload{Kind: kind},
	}
}

func at(kind models.PayloadKind, createTime string) models.Activity {
	a := payload(kind)
	a.CreateTime = createTime
	return a
}

func TestCategoriesAreAdditive(t *testing.T) {
	a := models.Activity{
		Payload: models.Payload{Kind: models.PayloadAgentMessage, Text: "done"},
		Artifacts: []models.Artifact{
			{BashOutput: &models.BashOutputArtifact{Command: "go test ./...", ExitCode: 1}},
			{ChangeSet: &models.ChangeSetArtifact{GitPatch: &models.GitPatch{UnidiffPatch: "--- a\n+++ b\n"}}},
		},
	}
	assert.Equal(t, []Category{
		CategoryAgentMessage,
		CategoryArtifactBash,
		CategoryArtifactChangeSet,
	}, Categories(&a))
}

func TestCategoriesSystemNote(t *testing.T) {
	noted := models.Activity{Description: "Environment ready"}
	assert.Equal(t, []Category{CategorySystemNote}, Categories(&noted))

	empty := models.Activity{}
	assert.Empty(t, Categories(&empty))
}

func TestAtMostOneActivityIsActive(t *testing.T) {
	activities := []models.Activity{
		at(models.PayloadUserMessage, "2026-08-01T10:00:00Z"),
		at(models.PayloadProgress, "2026-08-01T10:00:05Z"),
		at(models.PayloadAgentMessage, "2026-08-01T10:00:10Z"),
		at(models.PayloadUserMessage, "2026-08-01T10:00:15Z"),
	}
	c := NewClassifier(activities)

	active := 0
	for i := range activities {
		if c.IsCurrentlyActive(i, true) {
			active++
			assert.Equal(t, 2, i, "only the last significant activity is active")
		}
	}
	assert.Equal(t, 1, active)
}

func TestNothingActiveWhenNotProcessing(t *testing.T) {
	activities := []models.Activity{
		at(models.PayloadProgress, "2026-08-01T10:00:00Z"),
	}
	c := NewClassifier(activities)
	assert.False(t, c.IsCurrentlyActive(0, false))
}

func TestNothingActiveWithoutSignificantActivities(t *testing.T) {
	activities := []models.Activity{
		at(models.PayloadUserMessage, "2026-08-01T10:00:00Z"),
		at(models.PayloadPlanApproved, "2026-08-01T10:00:05Z"),
	}
	c := NewClassifier(activities)
	for i := range activities {
		assert.False(t, c.IsCurrentlyActive(i, true))
	}
}

func TestPlanApprovalDerivedFromEventOrder(t *testing.T) {
	earlyPlan := at(models.PayloadPlanGenerated, "2026-08-01T10:00:00Z")
	latePlan := at(models.PayloadPlanGenerated, "2026-08-01T10:05:00Z")
	c := NewClassifier([]models.Activity{
		earlyPlan,
		at(models.PayloadPlanApproved, "2026-08-01T10:01:00Z"),
		latePlan,
	})

	assert.True(t, c.IsPlanApproved(&earlyPlan))
	assert.False(t, c.IsPlanApproved(&latePlan), "approval predates this plan")
}

func TestPlanApprovalRequiresStrictlyLaterApproval(t *testing.T) {
	plan := at(models.PayloadPlanGenerated, "2026-08-01T10:00:00Z")
	c := NewClassifier([]models.Activity{
		plan,
		at(models.PayloadPlanApproved, "2026-08-01T10:00:00Z"),
	})
	assert.False(t, c.IsPlanApproved(&plan))
}

func TestPlanApprovalWithNoApprovals(t *testing.T) {
	plan := at(models.PayloadPlanGenerated, "")
	c := NewClassifier([]models.Activity{plan})
	assert.False(t, c.IsPlanApproved(&plan))
}

func TestSuppressCelebration(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 30, 0, time.UTC)

	fresh := at(models.PayloadSessionCompleted, "2026-08-01T10:00:25Z")
	assert.False(t, SuppressCelebration(&fresh, now))

	stale := at(models.PayloadSessionCompleted, "2026-08-01T10:00:00Z")
	assert.True(t, SuppressCelebration(&stale, now))

	junk := at(models.PayloadSessionCompleted, "garbage")
	assert.True(t, SuppressCelebration(&junk, now))
}

func TestNeedsSyntheticPrompt(t *testing.T) {
	prompt := "Fix the login bug"
	echo := models.Activity{Payload: models.Payload{Kind: models.PayloadUserMessage, Text: "Fix the login bug\n"}}
	other := models.Activity{Payload: models.Payload{Kind: models.PayloadUserMessage, Text: "something else"}}

	assert.True(t, NeedsSyntheticPrompt(nil, prompt))
	assert.True(t, NeedsSyntheticPrompt([]models.Activity{other}, prompt))
	assert.False(t, NeedsSyntheticPrompt([]models.Activity{echo}, prompt))
	assert.False(t, NeedsSyntheticPrompt(nil, "  "))
}

func TestSessionStateInfo(t *testing.T) {
	busyStates := []models.SessionState{
		models.StateQueued, models.StatePlanning, models.StateInProgress,
	}
	for _, s := range busyStates {
		assert.True(t, SessionStateInfo(s).Busy, string(s))
	}

	info := SessionStateInfo(models.StateAwaitingPlanApproval)
	assert.False(t, info.Busy)
	assert.NotEmpty(t, info.CTA)

	assert.Equal(t, "Completed", SessionStateInfo(models.StateCompleted).Label)
	assert.Equal(t, "WEIRD", SessionStateInfo(models.SessionState("WEIRD")).Label)
}
