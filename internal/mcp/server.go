package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/therealashik/julesctl/internal/api"
	"github.com/therealashik/julesctl/internal/models"
	"github.com/therealashik/julesctl/internal/render"
	"github.com/therealashik/julesctl/internal/sessionlist"
)

// JulesAPI is the slice of the Jules client the tools need.
type JulesAPI interface {
	ListAllSessions(ctx context.Context) ([]models.Session, error)
	GetSession(ctx context.Context, name string) (*models.Session, error)
	CreateSession(ctx context.Context, prompt, sourceName string, opts api.CreateSessionOptions) (*models.Session, error)
	SendMessage(ctx context.Context, sessionName, text string) error
	ApprovePlan(ctx context.Context, sessionName, planID string) error
	ListAllActivities(ctx context.Context, sessionName string) ([]models.Activity, error)
	ListAllSources(ctx context.Context) ([]models.Source, error)
}

// Server exposes the Jules API as MCP tools.
type Server struct {
	api JulesAPI
}

// NewServer creates the MCP server wrapper.
func NewServer(a JulesAPI) *Server {
	return &Server{api: a}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("julesctl", "1.0.0", server.WithToolCapabilities(true))

	// Register all tools
	srv.AddTool(s.listSessionsTool())
	srv.AddTool(s.getSessionTool())
	srv.AddTool(s.createSessionTool())
	srv.AddTool(s.sendMessageTool())
	srv.AddTool(s.approvePlanTool())
	srv.AddTool(s.listActivitiesTool())
	srv.AddTool(s.listSourcesTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// ---------------------------------------------------------------------------
// Output shapes
// ---------------------------------------------------------------------------

type sessionOut struct {
	Name       string `json:"name"`
	ID         string `json:"id"`
	Title      string `json:"title,omitempty"`
	State      string `json:"state"`
	StateLabel string `json:"state_label"`
	CreateTime string `json:"create_time"`
	UpdateTime string `json:"update_time,omitempty"`
	Source     string `json:"source,omitempty"`
	Branch     string `json:"branch,omitempty"`
	PRURL      string `json:"pr_url,omitempty"`
}

func sessionToOut(sess *models.Session) sessionOut {
	out := sessionOut{
		Name:       sess.Name,
		ID:         sess.ShortName(),
		Title:      sess.Title,
		State:      string(sess.State),
		StateLabel: render.SessionStateInfo(sess.State).Label,
		CreateTime: sess.CreateTime,
		UpdateTime: sess.UpdateTime,
	}
	if sess.SourceContext != nil {
		out.Source = sess.SourceContext.Source
		out.Branch = sess.SourceContext.StartingBranch
	}
	for _, o := range sess.Outputs {
		if o.PullRequest != nil {
			out.PRURL = o.PullRequest.URL
			break
		}
	}
	return out
}

type activityOut struct {
	Name          string   `json:"name"`
	CreateTime    string   `json:"create_time"`
	Kind          string   `json:"kind"`
	Text          string   `json:"text,omitempty"`
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Steps         []string `json:"steps,omitempty"`
	PlanID        string   `json:"plan_id,omitempty"`
	FailureReason string   `json:"failure_reason,omitempty"`
	Commands      []string `json:"commands,omitempty"`
}

func activityToOut(a *models.Activity) activityOut {
	out := activityOut{
		Name:          a.Name,
		CreateTime:    a.CreateTime,
		Kind:          string(a.Payload.Kind),
		Text:          a.Payload.Text,
		PlanID:        a.Payload.PlanID,
		FailureReason: a.Payload.FailureReason,
	}
	if a.Payload.Kind == models.PayloadNone {
		out.Kind = "system-note"
		out.Text = a.Description
	}
	if a.Payload.Plan != nil {
		out.PlanID = a.Payload.Plan.ID
		for _, step := range a.Payload.Plan.Steps {
			out.Steps = append(out.Steps, step.Title)
		}
	}
	if a.Payload.Progress != nil {
		out.Title = a.Payload.Progress.Title
		out.Description = a.Payload.Progress.Description
	}
	for _, art := range a.Artifacts {
		if art.BashOutput != nil {
			out.Commands = append(out.Commands, art.BashOutput.Command)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// jules_list_sessions
func (s *Server) listSessionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jules_list_sessions",
		mcp.WithDescription("List all Jules sessions. Returns a JSON array sorted by urgency: sessions the agent is working on first, then ones waiting on you, then paused, then finished. Each entry has name, id, title, state, state_label, create_time, and pr_url when a pull request exists."),
		mcp.WithString("state", mcp.Description("Filter by exact state: QUEUED, PLANNING, AWAITING_PLAN_APPROVAL, AWAITING_USER_FEEDBACK, IN_PROGRESS, PAUSED, COMPLETED, FAILED")),
	)
	return tool, s.handleListSessions
}

func (s *Server) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.api.ListAllSessions(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sessions: %v", err)), nil
	}

	sessions = sessionlist.Sort(sessions)
	stateFilter := request.GetString("state", "")
	out := make([]sessionOut, 0, len(sessions))
	for i := range sessions {
		if stateFilter != "" && string(sessions[i].State) != stateFilter {
			continue
		}
		out = append(out, sessionToOut(&sessions[i]))
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// jules_get_session
func (s *Server) getSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jules_get_session",
		mcp.WithDescription("Get the current snapshot of one session: state, title, source, branch, and pull request URL if one was opened."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id or full name (sessions/<id>)")),
	)
	return tool, s.handleGetSession
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session"), nil
	}

	sess, err := s.api.GetSession(ctx, models.QualifiedSessionName(name))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get session: %v", err)), nil
	}

	data, err := json.Marshal(sessionToOut(sess))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal session: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// jules_create_session
func (s *Server) createSessionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jules_create_session",
		mcp.WithDescription("Start a new Jules session against a source repository. Returns the created session as JSON. The agent plans first and waits for approval unless require_plan_approval is set to false."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Task description for the agent")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source name (sources/<id>) identifying the repository")),
		mcp.WithString("title", mcp.Description("Optional session title")),
		mcp.WithString("branch", mcp.Description("Starting branch (default: main)")),
		mcp.WithBoolean("require_plan_approval", mcp.Description("Whether the plan needs explicit approval before execution (default: true)")),
	)
	return tool, s.handleCreateSession
}

func (s *Server) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := request.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: prompt"), nil
	}
	source, err := request.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: source"), nil
	}

	opts := api.CreateSessionOptions{
		Title:               request.GetString("title", ""),
		StartingBranch:      request.GetString("branch", ""),
		RequirePlanApproval: request.GetBool("require_plan_approval", true),
	}

	sess, err := s.api.CreateSession(ctx, prompt, source, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create session: %v", err)), nil
	}

	data, err := json.Marshal(sessionToOut(sess))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal session: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// jules_send_message
func (s *Server) sendMessageTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jules_send_message",
		mcp.WithDescription("Send a message to a running session, e.g. to answer a question the agent asked or to redirect its work."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id or full name (sessions/<id>)")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message text to send")),
	)
	return tool, s.handleSendMessage
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session"), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}

	if err := s.api.SendMessage(ctx, models.QualifiedSessionName(name), message); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to send message: %v", err)), nil
	}
	return mcp.NewToolResultText(`{"sent":true}`), nil
}

// jules_approve_plan
func (s *Server) approvePlanTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jules_approve_plan",
		mcp.WithDescription("Approve a session's pending plan so the agent starts executing. Use after reviewing the plan activity from jules_list_activities."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id or full name (sessions/<id>)")),
		mcp.WithString("plan_id", mcp.Description("Specific plan id; defaults to the latest pending plan")),
	)
	return tool, s.handleApprovePlan
}

func (s *Server) handleApprovePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session"), nil
	}

	planID := request.GetString("plan_id", "")
	if err := s.api.ApprovePlan(ctx, models.QualifiedSessionName(name), planID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to approve plan: %v", err)), nil
	}
	return mcp.NewToolResultText(`{"approved":true}`), nil
}

// jules_list_activities
func (s *Server) listActivitiesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jules_list_activities",
		mcp.WithDescription("List a session's full activity history in chronological order. Each entry has kind (user-message, agent-message, plan, plan-approved, progress, completed, failed, system-note) plus the fields for that kind: text, title/description for progress, steps for plans, failure_reason, and commands run."),
		mcp.WithString("session", mcp.Required(), mcp.Description("Session id or full name (sessions/<id>)")),
	)
	return tool, s.handleListActivities
}

func (s *Server) handleListActivities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session"), nil
	}

	activities, err := s.api.ListAllActivities(ctx, models.QualifiedSessionName(name))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list activities: %v", err)), nil
	}

	out := make([]activityOut, len(activities))
	for i := range activities {
		out[i] = activityToOut(&activities[i])
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal activities: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// jules_list_sources
func (s *Server) listSourcesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("jules_list_sources",
		mcp.WithDescription("List the source repositories connected to Jules. Use a source's name when creating a session."),
	)
	return tool, s.handleListSources
}

func (s *Server) handleListSources(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := s.api.ListAllSources(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sources: %v", err)), nil
	}

	type sourceOut struct {
		Name          string `json:"name"`
		DisplayName   string `json:"display_name"`
		DefaultBranch string `json:"default_branch,omitempty"`
	}

	out := make([]sourceOut, len(sources))
	for i := range sources {
		so := sourceOut{
			Name:        sources[i].Name,
			DisplayName: sources[i].FallbackDisplayName(),
		}
		if sources[i].GitHubRepo != nil && sources[i].GitHubRepo.DefaultBranch != nil {
			so.DefaultBranch = sources[i].GitHubRepo.DefaultBranch.DisplayName
		}
		out[i] = so
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal sources: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
