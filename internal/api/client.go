// Package api is the HTTP client for the Jules REST API. Responses are
// decoded generically and pushed through the normalize package, so the rest
// of the program only ever sees canonical model values.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/therealashik/julesctl/internal/models"
	"github.com/therealashik/julesctl/internal/normalize"
)

const (
	// DefaultBaseURL is the public Jules API endpoint.
	DefaultBaseURL = "https://jules.googleapis.com/v1alpha"

	defaultPageSize = 50
)

// ErrUnauthorized marks 401/403 responses and their message-matched
// equivalents so callers can prompt for a new API key.
var ErrUnauthorized = errors.New("invalid API key")

// Client talks to the Jules API. Construct once at startup and pass by
// reference; there is no package-level key or singleton.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a client against the public endpoint.
func New(apiKey string) *Client {
	return NewWithBaseURL(DefaultBaseURL, apiKey)
}

// NewWithBaseURL creates a client against a specific endpoint (tests,
// proxies).
func NewWithBaseURL(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response from the Jules API.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jules api error (%d): %s [req %s]", e.StatusCode, e.Message, e.RequestID)
}

// Unwrap maps auth failures onto ErrUnauthorized. The upstream contract has
// no structured error code, so besides the status we also match on message
// content (an accepted fragility of the API).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	msg := strings.ToLower(e.Message)
	if strings.Contains(msg, "api key not valid") || strings.Contains(msg, "invalid api key") {
		return ErrUnauthorized
	}
	return nil
}

// newRequestID mints a ULID used as X-Request-Id and echoed in errors.
func newRequestID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	reqID := newRequestID()
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Request-Id", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp, reqID)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeAPIError extracts the message from the Google-style error envelope
// {"error": {"message": ...}} when present.
func decodeAPIError(resp *http.Response, reqID string) error {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	msg := envelope.Error.Message
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg, RequestID: reqID}
}

func pageToken(body map[string]any) string {
	return firstString(body, "nextPageToken", "next_page_token")
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// --- Sources ---

// ListSources returns one page of repositories connected to the account.
func (c *Client) ListSources(ctx context.Context, pageSize int, token string) ([]models.Source, string, error) {
	q := url.Values{}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if token != "" {
		q.Set("pageToken", token)
	}

	var body map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/sources", q, nil, &body); err != nil {
		return nil, "", fmt.Errorf("list sources: %w", err)
	}

	var sources []models.Source
	if list, ok := body["sources"].([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				sources = append(sources, normalize.Source(m))
			}
		}
	}
	return sources, pageToken(body), nil
}

// ListAllSources follows nextPageToken until exhausted.
func (c *Client) ListAllSources(ctx context.Context) ([]models.Source, error) {
	var all []models.Source
	token := ""
	for {
		page, next, err := c.ListSources(ctx, defaultPageSize, token)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		token = next
	}
}

// --- Sessions ---

// ListSessions returns one page of sessions, newest first (server order).
func (c *Client) ListSessions(ctx context.Context, pageSize int, token string) ([]models.Session, string, error) {
	q := url.Values{}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if token != "" {
		q.Set("pageToken", token)
	}

	var body map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", q, nil, &body); err != nil {
		return nil, "", fmt.Errorf("list sessions: %w", err)
	}

	var sessions []models.Session
	if list, ok := body["sessions"].([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				sessions = append(sessions, normalize.Session(m))
			}
		}
	}
	return sessions, pageToken(body), nil
}

// ListAllSessions follows nextPageToken until exhausted.
func (c *Client) ListAllSessions(ctx context.Context) ([]models.Session, error) {
	var all []models.Session
	token := ""
	for {
		page, next, err := c.ListSessions(ctx, defaultPageSize, token)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		token = next
	}
}

// GetSession fetches the current snapshot of one session.
func (c *Client) GetSession(ctx context.Context, name string) (*models.Session, error) {
	var body map[string]any
	path := "/" + models.QualifiedSessionName(name)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, fmt.Errorf("get session %s: %w", name, err)
	}
	s := normalize.Session(body)
	return &s, nil
}

// CreateSessionOptions configures session creation. Zero values fall back to
// the defaults the official clients send.
type CreateSessionOptions struct {
	Title               string
	RequirePlanApproval bool
	StartingBranch      string
	AutomationMode      models.AutomationMode
}

// CreateSession starts a new remote agent task against a source.
func (c *Client) CreateSession(ctx context.Context, prompt, sourceName string, opts CreateSessionOptions) (*models.Session, error) {
	if opts.AutomationMode == "" {
		opts.AutomationMode = models.AutomationAutoCreatePR
	}
	if opts.StartingBranch == "" {
		opts.StartingBranch = "main"
	}

	payload := map[string]any{
		"prompt":              prompt,
		"requirePlanApproval": opts.RequirePlanApproval,
		"automationMode":      string(opts.AutomationMode),
		"sourceContext": map[string]any{
			"source": sourceName,
			"githubRepoContext": map[string]any{
				"startingBranch": opts.StartingBranch,
			},
		},
	}
	if opts.Title != "" {
		payload["title"] = opts.Title
	}

	var body map[string]any
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", nil, payload, &body); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s := normalize.Session(body)
	if s.Prompt == "" {
		s.Prompt = prompt
	}
	return &s, nil
}

// UpdateSession patches session fields named by updateMask.
func (c *Client) UpdateSession(ctx context.Context, name string, fields map[string]any, updateMask []string) (*models.Session, error) {
	q := url.Values{}
	if len(updateMask) > 0 {
		q.Set("updateMask", strings.Join(updateMask, ","))
	}

	var body map[string]any
	path := "/" + models.QualifiedSessionName(name)
	if err := c.doJSON(ctx, http.MethodPatch, path, q, fields, &body); err != nil {
		return nil, fmt.Errorf("update session %s: %w", name, err)
	}
	s := normalize.Session(body)
	return &s, nil
}

// DeleteSession removes a session remotely.
func (c *Client) DeleteSession(ctx context.Context, name string) error {
	path := "/" + models.QualifiedSessionName(name)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete session %s: %w", name, err)
	}
	return nil
}

// --- Activities ---

// ListActivitiesOptions filters an activity page fetch.
type ListActivitiesOptions struct {
	PageSize  int
	PageToken string
	// NewerThan, when set, asks the server for activities whose createTime is
	// strictly greater. Incremental polling depends on this guarantee.
	NewerThan string
}

// ListActivities returns one page of a session's activity history.
func (c *Client) ListActivities(ctx context.Context, sessionName string, opts ListActivitiesOptions) ([]models.Activity, string, error) {
	q := url.Values{}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	q.Set("pageSize", strconv.Itoa(opts.PageSize))
	if opts.PageToken != "" {
		q.Set("pageToken", opts.PageToken)
	}
	if opts.NewerThan != "" {
		q.Set("createTime", opts.NewerThan)
	}

	var body map[string]any
	path := "/" + models.QualifiedSessionName(sessionName) + "/activities"
	if err := c.doJSON(ctx, http.MethodGet, path, q, nil, &body); err != nil {
		return nil, "", fmt.Errorf("list activities: %w", err)
	}

	var activities []models.Activity
	if list, ok := body["activities"].([]any); ok {
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				activities = append(activities, normalize.Activity(m))
			}
		}
	}
	return activities, pageToken(body), nil
}

// ListAllActivities fetches the full history, following pagination.
func (c *Client) ListAllActivities(ctx context.Context, sessionName string) ([]models.Activity, error) {
	var all []models.Activity
	opts := ListActivitiesOptions{PageSize: 100}
	for {
		page, next, err := c.ListActivities(ctx, sessionName, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if next == "" {
			return all, nil
		}
		opts.PageToken = next
	}
}

// --- Session actions ---

// SendMessage posts a user message into a session. The API replies with an
// empty 200.
func (c *Client) SendMessage(ctx context.Context, sessionName, text string) error {
	path := "/" + models.QualifiedSessionName(sessionName) + ":sendMessage"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, map[string]any{"prompt": text}, nil); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// ApprovePlan approves the pending plan; planID is optional.
func (c *Client) ApprovePlan(ctx context.Context, sessionName, planID string) error {
	body := map[string]any{}
	if planID != "" {
		body["planId"] = planID
	}
	path := "/" + models.QualifiedSessionName(sessionName) + ":approvePlan"
	if err := c.doJSON(ctx, http.MethodPost, path, nil, body, nil); err != nil {
		return fmt.Errorf("approve plan: %w", err)
	}
	return nil
}
