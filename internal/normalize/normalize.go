// Package normalize turns loosely-typed Jules wire records into canonical
// model values. The API mixes camelCase and snake_case keys and sometimes
// collapses message objects to bare strings; everything funnels through here
// exactly once so downstream code never re-checks raw field presence.
package normalize

import (
	"strings"

	"github.com/therealashik/julesctl/internal/models"
)

var (
	userMessageVariants  = []string{"userMessage", "user_message"}
	agentMessageVariants = []string{"agentMessage", "agent_message"}

	// Shared tail of the text precedence order, tried after the
	// payload-specific variants.
	commonTextFields = []string{"text", "message", "content", "prompt"}
)

// MessageText resolves the display text of a message payload. The payload may
// be a bare string or a nested object; field variants are tried in order and
// the first non-empty match wins. A miss resolves to "" rather than an error:
// absence is always valid input.
func MessageText(v any, variants []string) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	m, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	for _, key := range variants {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	for _, key := range commonTextFields {
		if s := stringField(m, key); s != "" {
			return s
		}
	}
	// Last resort: concatenate parts[].text in array order.
	if parts, ok := m["parts"].([]any); ok {
		var b strings.Builder
		for _, p := range parts {
			if pm, ok := p.(map[string]any); ok {
				b.WriteString(stringField(pm, "text"))
			}
		}
		return b.String()
	}
	return ""
}

// UserMessageText resolves text for a user-message payload.
func UserMessageText(v any) string { return MessageText(v, userMessageVariants) }

// AgentMessageText resolves text for an agent-message payload.
func AgentMessageText(v any) string { return MessageText(v, agentMessageVariants) }

// Activity maps a raw activity record to its canonical form. The effective
// payload is selected in a fixed order; the wire format is a oneof, so at
// most one variant group is populated in practice.
func Activity(raw map[string]any) models.Activity {
	act := models.Activity{
		Name:        stringField(raw, "name"),
		CreateTime:  stringField(raw, "createTime", "create_time"),
		Originator:  stringField(raw, "originator"),
		Description: stringField(raw, "description"),
	}

	switch {
	case has(raw, "userMessaged", "user_messaged", "userMessage", "user_message"):
		v := pick(raw, "userMessaged", "user_messaged", "userMessage", "user_message")
		act.Payload = models.Payload{Kind: models.PayloadUserMessage, Text: UserMessageText(v)}
	case has(raw, "agentMessaged", "agent_messaged", "agentMessage", "agent_message"):
		v := pick(raw, "agentMessaged", "agent_messaged", "agentMessage", "agent_message")
		act.Payload = models.Payload{Kind: models.PayloadAgentMessage, Text: AgentMessageText(v)}
	case has(raw, "planGenerated", "plan_generated"):
		m := mapField(raw, "planGenerated", "plan_generated")
		act.Payload = models.Payload{Kind: models.PayloadPlanGenerated, Plan: plan(mapField(m, "plan"))}
	case has(raw, "planApproved", "plan_approved"):
		m := mapField(raw, "planApproved", "plan_approved")
		act.Payload = models.Payload{Kind: models.PayloadPlanApproved, PlanID: stringField(m, "planId", "plan_id")}
	case has(raw, "progressUpdated", "progress_updated"):
		m := mapField(raw, "progressUpdated", "progress_updated")
		act.Payload = models.Payload{Kind: models.PayloadProgress, Progress: progress(m, act.Description)}
	case has(raw, "sessionCompleted", "session_completed"):
		act.Payload = models.Payload{Kind: models.PayloadSessionCompleted}
	case has(raw, "sessionFailed", "session_failed"):
		m := mapField(raw, "sessionFailed", "session_failed")
		act.Payload = models.Payload{Kind: models.PayloadSessionFailed, FailureReason: stringField(m, "reason")}
	}

	if list, ok := raw["artifacts"].([]any); ok {
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			act.Artifacts = append(act.Artifacts, artifact(m))
		}
	}

	return act
}

// progress normalizes a progressUpdated payload. A description that is empty
// or contained (case-insensitively) in the title would render as a duplicate
// line, so it is dropped. This suppression is a business rule, not cleanup.
func progress(m map[string]any, activityDescription string) *models.Progress {
	title := stringField(m, "title", "progress_title", "status", "status_update")
	if title == "" {
		title = activityDescription
	}
	desc := stringField(m, "description", "progress_description", "text", "message")

	cleanTitle := strings.ToLower(strings.TrimSpace(title))
	cleanDesc := strings.ToLower(strings.TrimSpace(desc))
	if cleanDesc == "" || cleanTitle == cleanDesc || strings.Contains(cleanTitle, cleanDesc) {
		desc = ""
	}

	return &models.Progress{Title: title, Description: desc}
}

func plan(m map[string]any) *models.Plan {
	if m == nil {
		return nil
	}
	p := &models.Plan{
		ID:         stringField(m, "id"),
		CreateTime: stringField(m, "createTime", "create_time"),
	}
	if steps, ok := m["steps"].([]any); ok {
		for _, s := range steps {
			sm, ok := s.(map[string]any)
			if !ok {
				continue
			}
			p.Steps = append(p.Steps, models.Step{
				ID:          stringField(sm, "id"),
				Index:       intField(sm, "index"),
				Title:       stringField(sm, "title"),
				Description: stringField(sm, "description"),
			})
		}
	}
	return p
}

func artifact(m map[string]any) models.Artifact {
	var a models.Artifact
	if mm := mapField(m, "media"); mm != nil {
		a.Media = &models.MediaArtifact{
			MimeType: stringField(mm, "mimeType", "mime_type"),
			Data:     stringField(mm, "data"),
		}
	}
	if bm := mapField(m, "bashOutput", "bash_output"); bm != nil {
		a.BashOutput = &models.BashOutputArtifact{
			Command:  stringField(bm, "command"),
			Output:   stringField(bm, "output"),
			ExitCode: intField(bm, "exitCode", "exit_code"),
		}
	}
	if cm := mapField(m, "changeSet", "change_set"); cm != nil {
		cs := &models.ChangeSetArtifact{Source: stringField(cm, "source")}
		if gm := mapField(cm, "gitPatch", "git_patch"); gm != nil {
			cs.GitPatch = &models.GitPatch{
				BaseCommitID:           stringField(gm, "baseCommitId", "base_commit_id"),
				UnidiffPatch:           stringField(gm, "unidiffPatch", "unidiff_patch"),
				SuggestedCommitMessage: stringField(gm, "suggestedCommitMessage", "suggested_commit_message"),
			}
		}
		a.ChangeSet = cs
	}
	return a
}

// Session maps a raw session record to its canonical form.
func Session(raw map[string]any) models.Session {
	s := models.Session{
		Name:                stringField(raw, "name"),
		ID:                  stringField(raw, "id"),
		Title:               stringField(raw, "title"),
		Prompt:              stringField(raw, "prompt"),
		State:               models.SessionState(stringField(raw, "state")),
		CreateTime:          stringField(raw, "createTime", "create_time"),
		UpdateTime:          stringField(raw, "updateTime", "update_time"),
		AutomationMode:      models.AutomationMode(stringField(raw, "automationMode", "automation_mode")),
		RequirePlanApproval: boolField(raw, "requirePlanApproval", "require_plan_approval"),
	}
	if s.State == models.StateUnspecified {
		s.State = models.StateQueued
	}
	if sc := mapField(raw, "sourceContext", "source_context"); sc != nil {
		ctx := &models.SourceContext{Source: stringField(sc, "source")}
		if gh := mapField(sc, "githubRepoContext", "github_repo_context"); gh != nil {
			ctx.StartingBranch = stringField(gh, "startingBranch", "starting_branch")
		}
		s.SourceContext = ctx
	}
	if outputs, ok := raw["outputs"].([]any); ok {
		for _, o := range outputs {
			om, ok := o.(map[string]any)
			if !ok {
				continue
			}
			var out models.SessionOutput
			if pr := mapField(om, "pullRequest", "pull_request"); pr != nil {
				out.PullRequest = &models.PullRequest{
					URL:         stringField(pr, "url"),
					Title:       stringField(pr, "title"),
					Description: stringField(pr, "description"),
					Branch:      stringField(pr, "branch"),
				}
			}
			s.Outputs = append(s.Outputs, out)
		}
	}
	return s
}

// Source maps a raw source record, deriving a display name from the repo.
func Source(raw map[string]any) models.Source {
	src := models.Source{
		Name:        stringField(raw, "name"),
		ID:          stringField(raw, "id"),
		DisplayName: stringField(raw, "displayName", "display_name"),
	}
	if repo := mapField(raw, "githubRepo", "github_repo"); repo != nil {
		gh := &models.GitHubRepo{
			Owner:     stringField(repo, "owner"),
			Repo:      stringField(repo, "repo"),
			IsPrivate: boolField(repo, "isPrivate", "is_private"),
		}
		if db := mapField(repo, "defaultBranch", "default_branch"); db != nil {
			gh.DefaultBranch = &models.Branch{DisplayName: stringField(db, "displayName", "display_name")}
		}
		if branches, ok := repo["branches"].([]any); ok {
			for _, b := range branches {
				if bm, ok := b.(map[string]any); ok {
					gh.Branches = append(gh.Branches, models.Branch{DisplayName: stringField(bm, "displayName", "display_name")})
				}
			}
		}
		src.GitHubRepo = gh
	}
	if src.DisplayName == "" {
		src.DisplayName = src.FallbackDisplayName()
	}
	return src
}

// --- raw record helpers ---

func pick(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func has(m map[string]any, keys ...string) bool {
	return pick(m, keys...) != nil
}

func stringField(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolField(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if b, ok := m[k].(bool); ok {
			return b
		}
	}
	return false
}

// intField tolerates float64 (encoding/json's default number type) and int.
func intField(m map[string]any, keys ...string) int {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return 0
}

func mapField(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if mm, ok := m[k].(map[string]any); ok {
			return mm
		}
	}
	return nil
}
