// Package render derives display metadata from an ordered activity list.
// Everything here is a pure function of its inputs: no fetching, no
// mutation, so the same list always classifies the same way.
package render

import (
	"strings"
	"time"

	"github.com/therealashik/julesctl/internal/models"
)

// Category labels one renderable aspect of an activity. Categorization is
// additive: an activity carrying a message and artifacts gets both labels.
type Category string

const (
	CategorySystemNote   Category = "system-note"
	CategoryUserMessage  Category = "user-message"
	CategoryAgentMessage Category = "agent-message"
	CategoryPlan         Category = "plan"
	CategoryProgress     Category = "progress"
	CategoryCompleted    Category = "completed"
	CategoryFailed       Category = "failed"
	CategoryArtifactMedia     Category = "artifact-media"
	CategoryArtifactBash      Category = "artifact-bash"
	CategoryArtifactChangeSet Category = "artifact-changeset"
)

// Categories returns every category that applies to the activity. An
// activity with no recognized payload but a description renders as a system
// note; one with nothing at all gets no categories.
func Categories(a *models.Activity) []Category {
	var cats []Category
	switch a.Payload.Kind {
	case models.PayloadUserMessage:
		cats = append(cats, CategoryUserMessage)
	case models.PayloadAgentMessage:
		cats = append(cats, CategoryAgentMessage)
	case models.PayloadPlanGenerated:
		cats = append(cats, CategoryPlan)
	case models.PayloadProgress:
		cats = append(cats, CategoryProgress)
	case models.PayloadSessionCompleted:
		cats = append(cats, CategoryCompleted)
	case models.PayloadSessionFailed:
		cats = append(cats, CategoryFailed)
	case models.PayloadNone:
		if a.Description != "" {
			cats = append(cats, CategorySystemNote)
		}
	}
	for _, art := range a.Artifacts {
		switch {
		case art.Media != nil:
			cats = append(cats, CategoryArtifactMedia)
		case art.BashOutput != nil:
			cats = append(cats, CategoryArtifactBash)
		case art.ChangeSet != nil:
			cats = append(cats, CategoryArtifactChangeSet)
		}
	}
	return cats
}

// significant reports whether an activity kind represents agent output that
// supersedes earlier work. Only the last significant activity may show a
// live spinner.
func significant(kind models.PayloadKind) bool {
	switch kind {
	case models.PayloadProgress, models.PayloadAgentMessage,
		models.PayloadPlanGenerated, models.PayloadSessionCompleted,
		models.PayloadSessionFailed:
		return true
	}
	return false
}

// Classifier precomputes per-list facts in one O(n) pass so per-activity
// queries are O(1). Build a fresh one per render pass; it holds no state
// beyond its inputs.
type Classifier struct {
	lastSignificant int
	maxApprovedTime string
}

// NewClassifier scans the activity list once.
func NewClassifier(activities []models.Activity) *Classifier {
	c := &Classifier{lastSignificant: -1}
	for i := range activities {
		if significant(activities[i].Payload.Kind) {
			c.lastSignificant = i
		}
		if activities[i].Payload.Kind == models.PayloadPlanApproved &&
			activities[i].CreateTime > c.maxApprovedTime {
			c.maxApprovedTime = activities[i].CreateTime
		}
	}
	return c
}

// IsCurrentlyActive reports whether the activity at index should show a live
// spinner. At most one activity is active at a time, and only while the
// session-level processing flag is set. Activity content never drives this.
func (c *Classifier) IsCurrentlyActive(index int, processing bool) bool {
	return processing && index == c.lastSignificant
}

// IsPlanApproved reports whether a plan activity was approved, derived from
// event order: some plan-approved activity must postdate the plan. Approval
// is never stored on the plan because the same plan may be re-evaluated
// against a different activity window.
func (c *Classifier) IsPlanApproved(plan *models.Activity) bool {
	return c.maxApprovedTime != "" && c.maxApprovedTime > plan.CreateTime
}

// celebrationWindow bounds how long after completion the one-time
// celebratory effect may still fire.
const celebrationWindow = 10 * time.Second

// SuppressCelebration reports whether a completion activity is too old to
// celebrate, so reloading a finished session's history does not replay the
// effect. Unparseable timestamps count as old.
func SuppressCelebration(a *models.Activity, now time.Time) bool {
	t, err := time.Parse(time.RFC3339Nano, a.CreateTime)
	if err != nil {
		return true
	}
	return now.Sub(t) > celebrationWindow
}

// NeedsSyntheticPrompt reports whether the session prompt needs a synthetic
// leading user message: true unless some user-message activity already
// carries the same text.
func NeedsSyntheticPrompt(activities []models.Activity, prompt string) bool {
	trimmed := strings.TrimSpace(prompt)
	if trimmed == "" {
		return false
	}
	for i := range activities {
		if activities[i].Payload.Kind == models.PayloadUserMessage &&
			strings.TrimSpace(activities[i].Payload.Text) == trimmed {
			return false
		}
	}
	return true
}

// StateInfo is display metadata for a session state.
type StateInfo struct {
	Label string
	Busy  bool   // show an animated indicator
	CTA   string // suggested next action, if any
}

// SessionStateInfo maps a state to its label, busy hint, and call to action.
func SessionStateInfo(state models.SessionState) StateInfo {
	switch state {
	case models.StateQueued:
		return StateInfo{Label: "Queued", Busy: true}
	case models.StatePlanning:
		return StateInfo{Label: "Planning", Busy: true}
	case models.StateAwaitingPlanApproval:
		return StateInfo{Label: "Awaiting plan approval", CTA: "Review and approve the plan"}
	case models.StateAwaitingUserFeedback:
		return StateInfo{Label: "Awaiting your feedback", CTA: "Reply to unblock the agent"}
	case models.StateInProgress:
		return StateInfo{Label: "In progress", Busy: true}
	case models.StatePaused:
		return StateInfo{Label: "Paused", CTA: "Resume the session"}
	case models.StateCompleted:
		return StateInfo{Label: "Completed"}
	case models.StateFailed:
		return StateInfo{Label: "Failed"}
	default:
		return StateInfo{Label: string(state)}
	}
}
