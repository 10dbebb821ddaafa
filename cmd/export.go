package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/therealashik/julesctl/internal/models"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <session>",
	Short: "Export a session transcript as YAML or Markdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(args[0])
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "yaml", "Output format: yaml or markdown")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

type sessionExport struct {
	Session    *models.Session   `yaml:"session"`
	Activities []models.Activity `yaml:"activities"`
}

func exportRun(nameArg string) error {
	ctx := context.Background()
	name := models.QualifiedSessionName(nameArg)

	client, err := getClient()
	if err != nil {
		return err
	}

	sess, err := client.GetSession(ctx, name)
	if err != nil {
		return err
	}
	activities, err := client.ListAllActivities(ctx, name)
	if err != nil {
		return err
	}

	var data []byte
	switch exportFormat {
	case "yaml", "yml":
		data, err = yaml.Marshal(sessionExport{Session: sess, Activities: activities})
		if err != nil {
			return fmt.Errorf("encoding session: %w", err)
		}
	case "markdown", "md":
		data = []byte(renderMarkdown(sess, activities))
	default:
		return fmt.Errorf("unknown format %q (want yaml or markdown)", exportFormat)
	}

	if exportOut == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(exportOut, data, 0o644); err != nil {
		return err
	}
	ui.Success("Wrote %s", exportOut)
	return nil
}

func renderMarkdown(sess *models.Session, activities []models.Activity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sessionTitle(sess))
	fmt.Fprintf(&b, "- **Session:** %s\n", sess.Name)
	fmt.Fprintf(&b, "- **State:** %s\n", sess.State)
	fmt.Fprintf(&b, "- **Created:** %s\n", sess.CreateTime)
	if sess.SourceContext != nil {
		fmt.Fprintf(&b, "- **Source:** %s\n", sess.SourceContext.Source)
	}
	for _, o := range sess.Outputs {
		if o.PullRequest != nil {
			fmt.Fprintf(&b, "- **PR:** %s\n", o.PullRequest.URL)
		}
	}
	b.WriteString("\n## Transcript\n\n")

	for i := range activities {
		a := &activities[i]
		switch a.Payload.Kind {
		case models.PayloadUserMessage:
			fmt.Fprintf(&b, "**You:** %s\n\n", a.Payload.Text)
		case models.PayloadAgentMessage:
			fmt.Fprintf(&b, "**Jules:** %s\n\n", a.Payload.Text)
		case models.PayloadPlanGenerated:
			b.WriteString("**Plan:**\n\n")
			if a.Payload.Plan != nil {
				for n, step := range a.Payload.Plan.Steps {
					fmt.Fprintf(&b, "%d. %s\n", n+1, step.Title)
					if step.Description != "" {
						fmt.Fprintf(&b, "   %s\n", step.Description)
					}
				}
			}
			b.WriteString("\n")
		case models.PayloadPlanApproved:
			b.WriteString("_Plan approved._\n\n")
		case models.PayloadProgress:
			if a.Payload.Progress != nil {
				fmt.Fprintf(&b, "- %s", a.Payload.Progress.Title)
				if a.Payload.Progress.Description != "" {
					fmt.Fprintf(&b, ": %s", a.Payload.Progress.Description)
				}
				b.WriteString("\n")
			}
		case models.PayloadSessionCompleted:
			b.WriteString("\n**Session completed.**\n\n")
		case models.PayloadSessionFailed:
			reason := a.Payload.FailureReason
			if reason == "" {
				reason = "unknown reason"
			}
			fmt.Fprintf(&b, "\n**Session failed:** %s\n\n", reason)
		default:
			if a.Description != "" {
				fmt.Fprintf(&b, "_%s_\n\n", a.Description)
			}
		}

		for _, art := range a.Artifacts {
			if art.BashOutput != nil {
				fmt.Fprintf(&b, "```\n$ %s\n```\n\n", art.BashOutput.Command)
			}
			if art.ChangeSet != nil && art.ChangeSet.GitPatch != nil &&
				art.ChangeSet.GitPatch.SuggestedCommitMessage != "" {
				fmt.Fprintf(&b, "> %s\n\n", art.ChangeSet.GitPatch.SuggestedCommitMessage)
			}
		}
	}
	return b.String()
}
