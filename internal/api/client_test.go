package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealashik/julesctl/internal/models"
)

func TestListActivities_IncrementalFilterParam(t *testing.T) {
	var seenQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenQuery = r.URL.RawQuery
		assert.Equal(t, "/sessions/123/activities", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-Id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"activities": []}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "test-key")
	_, _, err := c.ListActivities(context.Background(), "123", ListActivitiesOptions{
		NewerThan: "2025-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	assert.Contains(t, seenQuery, "createTime=2025-01-01T00%3A00%3A00Z")
	assert.Contains(t, seenQuery, "pageSize=50")
}

func TestListActivities_NormalizesSnakeCase(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"activities": [
			{"name": "sessions/1/activities/a1", "create_time": "2025-01-01T00:00:00Z",
			 "agent_messaged": {"agent_message": "hi"}}
		], "next_page_token": "tok"}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "k")
	acts, next, err := c.ListActivities(context.Background(), "sessions/1", ListActivitiesOptions{})
	require.NoError(t, err)
	assert.Equal(t, "tok", next)
	require.Len(t, acts, 1)
	assert.Equal(t, models.PayloadAgentMessage, acts[0].Payload.Kind)
	assert.Equal(t, "hi", acts[0].Payload.Text)
	assert.Equal(t, "2025-01-01T00:00:00Z", acts[0].CreateTime)
}

func TestListAllSessions_FollowsPagination(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"sessions": [{"name": "sessions/1", "prompt": "a", "state": "COMPLETED", "createTime": "t1"}], "nextPageToken": "p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"sessions": [{"name": "sessions/2", "prompt": "b", "state": "QUEUED", "createTime": "t2"}]}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "k")
	sessions, err := c.ListAllSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, sessions, 2)
	assert.Equal(t, "sessions/1", sessions[0].Name)
	assert.Equal(t, "sessions/2", sessions[1].Name)
}

func TestUnauthorized_ByStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Request had invalid authentication credentials."}}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "bad")
	_, err := c.GetSession(context.Background(), "sessions/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUnauthorized_ByMessageMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "API key not valid. Please pass a valid API key."}}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "bad")
	_, err := c.GetSession(context.Background(), "sessions/1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestServerError_NotUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "k")
	_, err := c.GetSession(context.Background(), "sessions/1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestCreateSession_Defaults(t *testing.T) {
	var seen map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, jsonDecode(r, &seen))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "sessions/9", "state": "QUEUED", "createTime": "t"}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "k")
	s, err := c.CreateSession(context.Background(), "do things", "sources/github/o/r", CreateSessionOptions{
		RequirePlanApproval: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "sessions/9", s.Name)
	assert.Equal(t, "do things", s.Prompt) // fallback when server omits prompt

	assert.Equal(t, "AUTO_CREATE_PR", seen["automationMode"])
	assert.Equal(t, true, seen["requirePlanApproval"])
	sc := seen["sourceContext"].(map[string]any)
	assert.Equal(t, "sources/github/o/r", sc["source"])
	assert.Equal(t, "main", sc["githubRepoContext"].(map[string]any)["startingBranch"])
}

func TestUpdateSession_UpdateMask(t *testing.T) {
	var seenQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenQuery = r.URL.RawQuery
		assert.Equal(t, http.MethodPatch, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name": "sessions/1", "state": "PAUSED", "createTime": "t"}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(server.URL, "k")
	s, err := c.UpdateSession(context.Background(), "sessions/1", map[string]any{"state": "PAUSED"}, []string{"state"})
	require.NoError(t, err)
	assert.Equal(t, models.StatePaused, s.State)
	assert.Contains(t, seenQuery, "updateMask=state")
}

func jsonDecode(r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}
