package models

import "strings"

// SessionState is the lifecycle state reported by the Jules API.
type SessionState string

const (
	StateUnspecified          SessionState = ""
	StateQueued               SessionState = "QUEUED"
	StatePlanning             SessionState = "PLANNING"
	StateAwaitingPlanApproval SessionState = "AWAITING_PLAN_APPROVAL"
	StateAwaitingUserFeedback SessionState = "AWAITING_USER_FEEDBACK"
	StateInProgress           SessionState = "IN_PROGRESS"
	StatePaused               SessionState = "PAUSED"
	StateCompleted            SessionState = "COMPLETED"
	StateFailed               SessionState = "FAILED"
)

// Terminal reports whether the state admits no further transitions.
// A terminal session must never be polled again.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Processing reports whether the remote agent is actively working.
// This, not activity content, drives the busy indicator.
func (s SessionState) Processing() bool {
	return s == StateQueued || s == StatePlanning || s == StateInProgress
}

// AutomationMode controls what Jules does with finished work.
type AutomationMode string

const (
	AutomationAutoCreatePR AutomationMode = "AUTO_CREATE_PR"
	AutomationNone         AutomationMode = "NONE"
	AutomationAutoMerge    AutomationMode = "AUTO_MERGE"
)

// PullRequest describes a PR produced by a session.
type PullRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Branch      string `json:"branch,omitempty"`
}

// SessionOutput is one result object attached to a session.
type SessionOutput struct {
	PullRequest *PullRequest `json:"pullRequest,omitempty"`
}

// SourceContext ties a session to the repository it works on.
type SourceContext struct {
	Source         string `json:"source"`
	StartingBranch string `json:"startingBranch,omitempty"`
}

// Session is one long-running remote agent task. The client holds a
// read-mostly cached copy; only the remote system mutates it.
type Session struct {
	Name                string          `json:"name"`
	ID                  string          `json:"id,omitempty"`
	Title               string          `json:"title,omitempty"`
	Prompt              string          `json:"prompt"`
	State               SessionState    `json:"state"`
	CreateTime          string          `json:"createTime"`
	UpdateTime          string          `json:"updateTime,omitempty"`
	SourceContext       *SourceContext  `json:"sourceContext,omitempty"`
	AutomationMode      AutomationMode  `json:"automationMode,omitempty"`
	RequirePlanApproval bool            `json:"requirePlanApproval,omitempty"`
	Outputs             []SessionOutput `json:"outputs,omitempty"`
}

// ShortName returns the id portion of a "sessions/{id}" name.
func (s *Session) ShortName() string {
	return strings.TrimPrefix(s.Name, "sessions/")
}

// QualifiedSessionName prefixes a bare id with "sessions/" if needed.
func QualifiedSessionName(name string) string {
	if strings.HasPrefix(name, "sessions/") {
		return name
	}
	return "sessions/" + name
}
