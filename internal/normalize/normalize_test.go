package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealashik/julesctl/internal/models"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestMessageText_BareString(t *testing.T) {
	assert.Equal(t, "hello", UserMessageText("hello"))
}

func TestMessageText_VariantBeatsCommonField(t *testing.T) {
	// The payload-specific variant outranks the generic text field.
	m := map[string]any{"agent_message": "A", "text": "B"}
	assert.Equal(t, "A", AgentMessageText(m))

	// A user-message payload ignores agent variants and falls through to text.
	assert.Equal(t, "B", UserMessageText(m))
}

func TestMessageText_CommonFieldPrecedence(t *testing.T) {
	m := map[string]any{"message": "second", "text": "first"}
	assert.Equal(t, "first", AgentMessageText(m))
}

func TestMessageText_PartsFallback(t *testing.T) {
	m := decode(t, `{"parts": [{"text": "a"}, {"text": "b"}, {"other": 1}]}`)
	assert.Equal(t, "ab", AgentMessageText(m))
}

func TestMessageText_NothingMatches(t *testing.T) {
	assert.Equal(t, "", UserMessageText(map[string]any{"unrelated": 42}))
	assert.Equal(t, "", UserMessageText(nil))
	assert.Equal(t, "", UserMessageText(12.5))
}

func TestActivity_UserMessageSnakeCase(t *testing.T) {
	raw := decode(t, `{
		"name": "sessions/1/activities/a1",
		"create_time": "2025-01-02T03:04:05Z",
		"user_messaged": {"user_message": "fix the bug"}
	}`)
	act := Activity(raw)
	assert.Equal(t, "sessions/1/activities/a1", act.Name)
	assert.Equal(t, "2025-01-02T03:04:05Z", act.CreateTime)
	assert.Equal(t, models.PayloadUserMessage, act.Payload.Kind)
	assert.Equal(t, "fix the bug", act.Payload.Text)
}

func TestActivity_AgentMessageBareString(t *testing.T) {
	raw := decode(t, `{
		"name": "sessions/1/activities/a2",
		"createTime": "2025-01-02T03:05:00Z",
		"agentMessaged": "working on it"
	}`)
	act := Activity(raw)
	assert.Equal(t, models.PayloadAgentMessage, act.Payload.Kind)
	assert.Equal(t, "working on it", act.Payload.Text)
}

func TestActivity_EmptyMessageIsContentless(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t", "agentMessaged": {}}`)
	act := Activity(raw)
	assert.Equal(t, models.PayloadAgentMessage, act.Payload.Kind)
	assert.Equal(t, "", act.Payload.Text)
}

func TestActivity_PlanGenerated(t *testing.T) {
	raw := decode(t, `{
		"name": "sessions/1/activities/a3",
		"createTime": "2025-01-02T03:06:00Z",
		"plan_generated": {"plan": {"id": "p1", "steps": [
			{"title": "Read code", "index": 0},
			{"title": "Write fix", "description": "patch main.go", "index": 1}
		]}}
	}`)
	act := Activity(raw)
	assert.Equal(t, models.PayloadPlanGenerated, act.Payload.Kind)
	require.NotNil(t, act.Payload.Plan)
	require.Len(t, act.Payload.Plan.Steps, 2)
	assert.Equal(t, "p1", act.Payload.Plan.ID)
	assert.Equal(t, "Write fix", act.Payload.Plan.Steps[1].Title)
	assert.Equal(t, 1, act.Payload.Plan.Steps[1].Index)
}

func TestActivity_PlanApprovedSnakeCaseID(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t", "planApproved": {"plan_id": "p1"}}`)
	act := Activity(raw)
	assert.Equal(t, models.PayloadPlanApproved, act.Payload.Kind)
	assert.Equal(t, "p1", act.Payload.PlanID)
}

func TestActivity_SessionFailedReason(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t", "session_failed": {"reason": "out of quota"}}`)
	act := Activity(raw)
	assert.Equal(t, models.PayloadSessionFailed, act.Payload.Kind)
	assert.Equal(t, "out of quota", act.Payload.FailureReason)
}

func TestActivity_Artifacts(t *testing.T) {
	raw := decode(t, `{
		"name": "a", "createTime": "t",
		"artifacts": [
			{"bash_output": {"command": "go test ./...", "output": "ok", "exit_code": 0}},
			{"media": {"mime_type": "image/png", "data": "aGk="}},
			{"changeSet": {"gitPatch": {"unidiffPatch": "--- a\n+++ b\n", "suggested_commit_message": "fix"}}}
		]
	}`)
	act := Activity(raw)
	require.Len(t, act.Artifacts, 3)
	require.NotNil(t, act.Artifacts[0].BashOutput)
	assert.Equal(t, "go test ./...", act.Artifacts[0].BashOutput.Command)
	assert.Equal(t, 0, act.Artifacts[0].BashOutput.ExitCode)
	require.NotNil(t, act.Artifacts[1].Media)
	assert.Equal(t, "image/png", act.Artifacts[1].Media.MimeType)
	require.NotNil(t, act.Artifacts[2].ChangeSet)
	require.NotNil(t, act.Artifacts[2].ChangeSet.GitPatch)
	assert.Equal(t, "fix", act.Artifacts[2].ChangeSet.GitPatch.SuggestedCommitMessage)
}

func TestActivity_MalformedFieldsDoNotPanic(t *testing.T) {
	raw := decode(t, `{
		"name": 12, "createTime": null,
		"artifacts": ["nope", {"bashOutput": "also nope"}],
		"progressUpdated": {"title": 7}
	}`)
	act := Activity(raw)
	assert.Equal(t, "", act.Name)
	assert.Equal(t, models.PayloadProgress, act.Payload.Kind)
}

func TestProgress_TitlePrecedence(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t",
		"progressUpdated": {"status_update": "via status", "progress_title": "via title"}}`)
	act := Activity(raw)
	require.NotNil(t, act.Payload.Progress)
	assert.Equal(t, "via title", act.Payload.Progress.Title)
}

func TestProgress_TitleFallsBackToActivityDescription(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t",
		"description": "Installing dependencies",
		"progressUpdated": {}}`)
	act := Activity(raw)
	require.NotNil(t, act.Payload.Progress)
	assert.Equal(t, "Installing dependencies", act.Payload.Progress.Title)
}

func TestProgress_RedundantDescriptionSuppressed(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t",
		"progressUpdated": {"title": "Running tests", "description": "running tests"}}`)
	act := Activity(raw)
	assert.Equal(t, "Running tests", act.Payload.Progress.Title)
	assert.Equal(t, "", act.Payload.Progress.Description)
}

func TestProgress_ContainedDescriptionSuppressed(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t",
		"progressUpdated": {"title": "Running unit tests", "description": "unit tests"}}`)
	act := Activity(raw)
	assert.Equal(t, "", act.Payload.Progress.Description)
}

func TestProgress_DistinctDescriptionKept(t *testing.T) {
	raw := decode(t, `{"name": "a", "createTime": "t",
		"progressUpdated": {"title": "Running tests", "description": "Running unit tests for module X"}}`)
	act := Activity(raw)
	assert.Equal(t, "Running unit tests for module X", act.Payload.Progress.Description)
}

func TestSession_SnakeCaseAndDefaults(t *testing.T) {
	raw := decode(t, `{
		"name": "sessions/42",
		"prompt": "add dark mode",
		"create_time": "2025-01-01T00:00:00Z",
		"update_time": "2025-01-01T01:00:00Z",
		"source_context": {"source": "sources/github/o/r", "github_repo_context": {"starting_branch": "dev"}},
		"require_plan_approval": true,
		"outputs": [{"pull_request": {"url": "https://github.com/o/r/pull/1", "title": "Dark mode", "description": "", "branch": "jules-1"}}]
	}`)
	s := Session(raw)
	assert.Equal(t, "sessions/42", s.Name)
	assert.Equal(t, models.StateQueued, s.State) // absent state defaults to QUEUED
	assert.Equal(t, "2025-01-01T00:00:00Z", s.CreateTime)
	require.NotNil(t, s.SourceContext)
	assert.Equal(t, "dev", s.SourceContext.StartingBranch)
	assert.True(t, s.RequirePlanApproval)
	require.Len(t, s.Outputs, 1)
	require.NotNil(t, s.Outputs[0].PullRequest)
	assert.Equal(t, "jules-1", s.Outputs[0].PullRequest.Branch)
}

func TestSource_DisplayNameFromRepo(t *testing.T) {
	raw := decode(t, `{
		"name": "sources/github/octo/widgets",
		"github_repo": {"owner": "octo", "repo": "widgets", "is_private": true,
			"default_branch": {"display_name": "main"},
			"branches": [{"display_name": "main"}, {"display_name": "dev"}]}
	}`)
	src := Source(raw)
	assert.Equal(t, "octo/widgets", src.DisplayName)
	require.NotNil(t, src.GitHubRepo)
	assert.True(t, src.GitHubRepo.IsPrivate)
	require.NotNil(t, src.GitHubRepo.DefaultBranch)
	assert.Equal(t, "main", src.GitHubRepo.DefaultBranch.DisplayName)
	assert.Len(t, src.GitHubRepo.Branches, 2)
}

func TestSource_DisplayNameFromName(t *testing.T) {
	raw := decode(t, `{"name": "sources/github/octo/widgets"}`)
	assert.Equal(t, "octo/widgets", Source(raw).DisplayName)
}

func TestCompareActivityOrder(t *testing.T) {
	a := &models.Activity{Name: "x", CreateTime: "2025-01-01T00:00:00Z"}
	b := &models.Activity{Name: "y", CreateTime: "2025-01-01T00:00:01Z"}
	assert.Negative(t, models.CompareActivityOrder(a, b))
	assert.Positive(t, models.CompareActivityOrder(b, a))

	c := &models.Activity{Name: "z", CreateTime: a.CreateTime}
	assert.Negative(t, models.CompareActivityOrder(a, c)) // name breaks ties
}
