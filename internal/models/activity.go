package models

import "strings"

// PayloadKind tags the single effective payload of an activity after
// normalization. Downstream code switches on the tag and never re-checks
// raw wire field presence.
type PayloadKind string

const (
	PayloadNone             PayloadKind = ""
	PayloadUserMessage      PayloadKind = "user-message"
	PayloadAgentMessage     PayloadKind = "agent-message"
	PayloadPlanGenerated    PayloadKind = "plan"
	PayloadPlanApproved     PayloadKind = "plan-approved"
	PayloadProgress         PayloadKind = "progress"
	PayloadSessionCompleted PayloadKind = "completed"
	PayloadSessionFailed    PayloadKind = "failed"
)

// Step is one entry of an execution plan. Steps render in array order;
// Index is informational only.
type Step struct {
	ID          string `json:"id,omitempty"`
	Index       int    `json:"index,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Plan is an execution plan proposed by the agent.
type Plan struct {
	ID         string `json:"id,omitempty"`
	Steps      []Step `json:"steps"`
	CreateTime string `json:"createTime,omitempty"`
}

// Progress is a normalized progress update. Description is already
// redundancy-filtered against Title.
type Progress struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Payload is the tagged union of activity payload variants. Exactly the
// fields matching Kind are populated.
type Payload struct {
	Kind          PayloadKind `json:"kind"`
	Text          string      `json:"text,omitempty"`          // user/agent message
	Plan          *Plan       `json:"plan,omitempty"`          // plan-generated
	PlanID        string      `json:"planId,omitempty"`        // plan-approved
	Progress      *Progress   `json:"progress,omitempty"`      // progress
	FailureReason string      `json:"failureReason,omitempty"` // failed
}

// MediaArtifact is inline base64 content.
type MediaArtifact struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// BashOutputArtifact is a command run by the agent. A non-zero ExitCode is
// a rendering signal, not a client error.
type BashOutputArtifact struct {
	Command  string `json:"command"`
	Output   string `json:"output"`
	ExitCode int    `json:"exitCode"`
}

// GitPatch is a proposed change as a unified diff.
type GitPatch struct {
	BaseCommitID           string `json:"baseCommitId,omitempty"`
	UnidiffPatch           string `json:"unidiffPatch,omitempty"`
	SuggestedCommitMessage string `json:"suggestedCommitMessage,omitempty"`
}

// ChangeSetArtifact wraps a git patch.
type ChangeSetArtifact struct {
	Source   string    `json:"source,omitempty"`
	GitPatch *GitPatch `json:"gitPatch,omitempty"`
}

// Artifact carries at most one of media, bash output, or change set.
type Artifact struct {
	Media      *MediaArtifact      `json:"media,omitempty"`
	BashOutput *BashOutputArtifact `json:"bashOutput,omitempty"`
	ChangeSet  *ChangeSetArtifact  `json:"changeSet,omitempty"`
}

// Activity is one timestamped event in a session's history. Activities are
// append-only: once observed they never change, which makes merging by Name
// safe.
type Activity struct {
	Name        string     `json:"name"`
	CreateTime  string     `json:"createTime"`
	Originator  string     `json:"originator,omitempty"` // "system", "agent", "user", or empty
	Description string     `json:"description,omitempty"`
	Payload     Payload    `json:"payload"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
}

// CompareActivityOrder orders activities chronologically. Timestamps are
// ISO-8601 strings, so lexical order equals chronological order; Name breaks
// ties. All ordering decisions go through here so the representation can
// change without touching merge logic.
func CompareActivityOrder(a, b *Activity) int {
	if c := strings.Compare(a.CreateTime, b.CreateTime); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}
