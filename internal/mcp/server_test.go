package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealashik/julesctl/internal/api"
	"github.com/therealashik/julesctl/internal/models"
)

// ---------------------------------------------------------------------------
// Mock implementations
// ---------------------------------------------------------------------------

// mockAPI implements JulesAPI for testing.
type mockAPI struct {
	sessions   []models.Session
	activities map[string][]models.Activity
	sources    []models.Source

	// Track calls for verification.
	createdPrompts []string
	createdOpts    []api.CreateSessionOptions
	sentMessages   []string
	approvedPlans  []string

	// Optional error injection.
	listSessionsErr error
	getSessionErr   error
	createErr       error
	sendErr         error
	approveErr      error
	activitiesErr   error
}

func (m *mockAPI) ListAllSessions(_ context.Context) ([]models.Session, error) {
	if m.listSessionsErr != nil {
		return nil, m.listSessionsErr
	}
	return m.sessions, nil
}

func (m *mockAPI) GetSession(_ context.Context, name string) (*models.Session, error) {
	if m.getSessionErr != nil {
		return nil, m.getSessionErr
	}
	for i := range m.sessions {
		if m.sessions[i].Name == name {
			return &m.sessions[i], nil
		}
	}
	return nil, fmt.Errorf("session not found: %s", name)
}

func (m *mockAPI) CreateSession(_ context.Context, prompt, sourceName string, opts api.CreateSessionOptions) (*models.Session, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createdPrompts = append(m.createdPrompts, prompt)
	m.createdOpts = append(m.createdOpts, opts)
	sess := models.Session{
		Name:          fmt.Sprintf("sessions/new-%d", len(m.createdPrompts)),
		Title:         opts.Title,
		Prompt:        prompt,
		State:         models.StateQueued,
		CreateTime:    "2026-08-01T10:00:00Z",
		SourceContext: &models.SourceContext{Source: sourceName, StartingBranch: opts.StartingBranch},
	}
	m.sessions = append(m.sessions, sess)
	return &sess, nil
}

func (m *mockAPI) SendMessage(_ context.Context, sessionName, text string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sentMessages = append(m.sentMessages, sessionName+": "+text)
	return nil
}

func (m *mockAPI) ApprovePlan(_ context.Context, sessionName, planID string) error {
	if m.approveErr != nil {
		return m.approveErr
	}
	m.approvedPlans = append(m.approvedPlans, sessionName+"/"+planID)
	return nil
}

func (m *mockAPI) ListAllActivities(_ context.Context, sessionName string) ([]models.Activity, error) {
	if m.activitiesErr != nil {
		return nil, m.activitiesErr
	}
	return m.activities[sessionName], nil
}

func (m *mockAPI) ListAllSources(_ context.Context) ([]models.Source, error) {
	return m.sources, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) (*Server, *mockAPI) {
	t.Helper()
	ma := &mockAPI{activities: map[string][]models.Activity{}}
	srv := NewServer(ma)
	require.NotNil(t, srv)
	return srv, ma
}

// callToolReq builds a mcpgo.CallToolRequest with the given name and arguments.
func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		tc, ok := c.(mcpgo.TextContent)
		if ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func seedSession(ma *mockAPI, id string, state models.SessionState) models.Session {
	sess := models.Session{
		Name:       "sessions/" + id,
		ID:         id,
		Title:      "Session " + id,
		State:      state,
		CreateTime: "2026-08-01T10:00:00Z",
	}
	ma.sessions = append(ma.sessions, sess)
	return sess
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHandleListSessions_Empty(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleListSessions(context.Background(), callToolReq("jules_list_sessions", nil))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))
}

func TestHandleListSessions_SortsAndFilters(t *testing.T) {
	srv, ma := newTestServer(t)
	seedSession(ma, "done", models.StateCompleted)
	seedSession(ma, "working", models.StateInProgress)
	seedSession(ma, "blocked", models.StateAwaitingPlanApproval)

	result, err := srv.handleListSessions(context.Background(), callToolReq("jules_list_sessions", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Less(t, strings.Index(text, "working"), strings.Index(text, "blocked"))
	assert.Less(t, strings.Index(text, "blocked"), strings.Index(text, "done"))

	result, err = srv.handleListSessions(context.Background(),
		callToolReq("jules_list_sessions", map[string]any{"state": "COMPLETED"}))
	require.NoError(t, err)
	text = resultText(t, result)
	assert.Contains(t, text, "done")
	assert.NotContains(t, text, "working")
}

func TestHandleListSessions_Error(t *testing.T) {
	srv, ma := newTestServer(t)
	ma.listSessionsErr = errors.New("boom")

	result, err := srv.handleListSessions(context.Background(), callToolReq("jules_list_sessions", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetSession(t *testing.T) {
	srv, ma := newTestServer(t)
	sess := seedSession(ma, "s1", models.StateInProgress)
	sess.Outputs = []models.SessionOutput{
		{PullRequest: &models.PullRequest{URL: "https://github.com/o/r/pull/7"}},
	}
	ma.sessions[0] = sess

	// Bare id resolves to the full name.
	result, err := srv.handleGetSession(context.Background(),
		callToolReq("jules_get_session", map[string]any{"session": "s1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "sessions/s1")
	assert.Contains(t, text, "IN_PROGRESS")
	assert.Contains(t, text, "In progress")
	assert.Contains(t, text, "https://github.com/o/r/pull/7")
}

func TestHandleGetSession_MissingParam(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleGetSession(context.Background(), callToolReq("jules_get_session", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCreateSession(t *testing.T) {
	srv, ma := newTestServer(t)

	result, err := srv.handleCreateSession(context.Background(),
		callToolReq("jules_create_session", map[string]any{
			"prompt": "Fix the login bug",
			"source": "sources/github/o/r",
			"title":  "fix login",
			"branch": "develop",
		}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	require.Len(t, ma.createdPrompts, 1)
	assert.Equal(t, "Fix the login bug", ma.createdPrompts[0])
	assert.Equal(t, "fix login", ma.createdOpts[0].Title)
	assert.Equal(t, "develop", ma.createdOpts[0].StartingBranch)
	assert.True(t, ma.createdOpts[0].RequirePlanApproval, "plan approval defaults on")

	assert.Contains(t, resultText(t, result), "sessions/new-1")
}

func TestHandleCreateSession_NoApproval(t *testing.T) {
	srv, ma := newTestServer(t)

	_, err := srv.handleCreateSession(context.Background(),
		callToolReq("jules_create_session", map[string]any{
			"prompt":                "do it",
			"source":                "sources/github/o/r",
			"require_plan_approval": false,
		}))
	require.NoError(t, err)
	require.Len(t, ma.createdOpts, 1)
	assert.False(t, ma.createdOpts[0].RequirePlanApproval)
}

func TestHandleCreateSession_MissingParams(t *testing.T) {
	srv, _ := newTestServer(t)

	result, err := srv.handleCreateSession(context.Background(),
		callToolReq("jules_create_session", map[string]any{"source": "sources/github/o/r"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "prompt")

	result, err = srv.handleCreateSession(context.Background(),
		callToolReq("jules_create_session", map[string]any{"prompt": "do it"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "source")
}

func TestHandleSendMessage(t *testing.T) {
	srv, ma := newTestServer(t)

	result, err := srv.handleSendMessage(context.Background(),
		callToolReq("jules_send_message", map[string]any{
			"session": "s1",
			"message": "use testify please",
		}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []string{"sessions/s1: use testify please"}, ma.sentMessages)
}

func TestHandleSendMessage_Error(t *testing.T) {
	srv, ma := newTestServer(t)
	ma.sendErr = errors.New("boom")

	result, err := srv.handleSendMessage(context.Background(),
		callToolReq("jules_send_message", map[string]any{
			"session": "s1",
			"message": "hello",
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleApprovePlan(t *testing.T) {
	srv, ma := newTestServer(t)

	result, err := srv.handleApprovePlan(context.Background(),
		callToolReq("jules_approve_plan", map[string]any{
			"session": "sessions/s1",
			"plan_id": "plan-9",
		}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, []string{"sessions/s1/plan-9"}, ma.approvedPlans)
}

func TestHandleListActivities(t *testing.T) {
	srv, ma := newTestServer(t)
	ma.activities["sessions/s1"] = []models.Activity{
		{
			Name:       "sessions/s1/activities/a1",
			CreateTime: "2026-08-01T10:00:00Z",
			Payload:    models.Payload{Kind: models.PayloadUserMessage, Text: "fix it"},
		},
		{
			Name:       "sessions/s1/activities/a2",
			CreateTime: "2026-08-01T10:00:05Z",
			Payload: models.Payload{Kind: models.PayloadPlanGenerated, Plan: &models.Plan{
				ID:    "plan-1",
				Steps: []models.Step{{Title: "Find the bug"}, {Title: "Fix the bug"}},
			}},
		},
		{
			Name:       "sessions/s1/activities/a3",
			CreateTime: "2026-08-01T10:00:10Z",
			Payload:    models.Payload{Kind: models.PayloadProgress, Progress: &models.Progress{Title: "Running tests"}},
			Artifacts: []models.Artifact{
				{BashOutput: &models.BashOutputArtifact{Command: "go test ./..."}},
			},
		},
		{
			Name:        "sessions/s1/activities/a4",
			CreateTime:  "2026-08-01T10:00:15Z",
			Description: "Environment provisioned",
		},
	}

	result, err := srv.handleListActivities(context.Background(),
		callToolReq("jules_list_activities", map[string]any{"session": "s1"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, `"kind":"user-message"`)
	assert.Contains(t, text, "fix it")
	assert.Contains(t, text, "Find the bug")
	assert.Contains(t, text, `"plan_id":"plan-1"`)
	assert.Contains(t, text, "Running tests")
	assert.Contains(t, text, "go test ./...")
	assert.Contains(t, text, `"kind":"system-note"`)
	assert.Contains(t, text, "Environment provisioned")
}

func TestHandleListSources(t *testing.T) {
	srv, ma := newTestServer(t)
	ma.sources = []models.Source{
		{
			Name: "sources/github/octo/widgets",
			GitHubRepo: &models.GitHubRepo{
				Owner:         "octo",
				Repo:          "widgets",
				DefaultBranch: &models.Branch{DisplayName: "main"},
			},
		},
		{Name: "sources/github/octo/gadgets"},
	}

	result, err := srv.handleListSources(context.Background(), callToolReq("jules_list_sources", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "octo/widgets")
	assert.Contains(t, text, `"default_branch":"main"`)
	assert.Contains(t, text, "octo/gadgets")
}

func TestMCPServerRegistersTools(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.NotNil(t, srv.MCPServer())
}
