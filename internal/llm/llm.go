package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/therealashik/julesctl/internal/models"
)

// Summary holds the LLM-generated digest of a session transcript.
type Summary struct {
	Summary   string   `json:"summary"`
	Outcome   string   `json:"outcome"`
	NextSteps []string `json:"next_steps"`
}

// Client wraps the Anthropic API for transcript summarization.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildTranscript flattens a session's activity history into labeled lines.
func buildTranscript(session *models.Session, activities []models.Activity) string {
	var sb strings.Builder
	if session.Title != "" {
		fmt.Fprintf(&sb, "Session: %s\n", session.Title)
	}
	fmt.Fprintf(&sb, "State: %s\n", session.State)
	if session.Prompt != "" {
		fmt.Fprintf(&sb, "Initial prompt: %s\n", session.Prompt)
	}
	sb.WriteString("\n")

	for i := range activities {
		a := &activities[i]
		switch a.Payload.Kind {
		case models.PayloadUserMessage:
			fmt.Fprintf(&sb, "[user] %s\n", a.Payload.Text)
		case models.PayloadAgentMessage:
			fmt.Fprintf(&sb, "[agent] %s\n", a.Payload.Text)
		case models.PayloadPlanGenerated:
			sb.WriteString("[agent] Proposed plan:\n")
			if a.Payload.Plan != nil {
				for j, step := range a.Payload.Plan.Steps {
					fmt.Fprintf(&sb, "  %d. %s\n", j+1, step.Title)
				}
			}
		case models.PayloadPlanApproved:
			sb.WriteString("[user] Approved the plan.\n")
		case models.PayloadProgress:
			if a.Payload.Progress != nil {
				line := a.Payload.Progress.Title
				if a.Payload.Progress.Description != "" {
					line += ": " + a.Payload.Progress.Description
				}
				fmt.Fprintf(&sb, "[progress] %s\n", line)
			}
		case models.PayloadSessionCompleted:
			sb.WriteString("[system] Session completed.\n")
		case models.PayloadSessionFailed:
			reason := a.Payload.FailureReason
			if reason == "" {
				reason = "unknown reason"
			}
			fmt.Fprintf(&sb, "[system] Session failed: %s\n", reason)
		}
		for _, art := range a.Artifacts {
			if art.BashOutput != nil {
				fmt.Fprintf(&sb, "[command] %s (exit %d)\n", art.BashOutput.Command, art.BashOutput.ExitCode)
			}
			if art.ChangeSet != nil && art.ChangeSet.GitPatch != nil && art.ChangeSet.GitPatch.SuggestedCommitMessage != "" {
				fmt.Fprintf(&sb, "[change] %s\n", art.ChangeSet.GitPatch.SuggestedCommitMessage)
			}
		}
	}
	return sb.String()
}

// buildSummaryPrompt constructs the system and user prompts for summarization.
func buildSummaryPrompt(transcript string) (system string, user string) {
	system = `You summarize transcripts of remote coding-agent sessions. Return ONLY a JSON object with exactly these fields:
- "summary": 2-4 sentences describing what the agent was asked to do and what it did
- "outcome": one short sentence on the end state (e.g. "Opened a pull request with the fix", "Failed during test execution", "Still waiting on plan approval")
- "next_steps": array of 0-3 short strings suggesting what the user should do next; empty array if nothing is pending

Rules:
- Base the summary only on the transcript; never invent work that is not mentioned
- Mention commands or file changes only when they matter to the outcome
- Return valid JSON only, no markdown fencing or explanation`

	user = "Summarize this session transcript:\n\n" + transcript
	return
}

// stripFencing removes a surrounding markdown code fence if present.
func stripFencing(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// Summarize sends the session transcript to the LLM and returns a digest.
func (c *Client) Summarize(ctx context.Context, session *models.Session, activities []models.Activity) (*Summary, error) {
	systemPrompt, userPrompt := buildSummaryPrompt(buildTranscript(session, activities))

	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 2048,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API call: %w", err)
	}

	// Extract text from response
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}

	if text == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	text = stripFencing(text)

	var summary Summary
	if err := json.Unmarshal([]byte(text), &summary); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}

	return &summary, nil
}
