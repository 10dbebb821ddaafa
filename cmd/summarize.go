package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/therealashik/julesctl/internal/llm"
	"github.com/therealashik/julesctl/internal/models"
	"github.com/therealashik/julesctl/internal/output"
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <session>",
	Short: "Summarize a session's transcript with an LLM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return summarizeRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd)
}

func summarizeRun(nameArg string) error {
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

	summarizer := llm.NewClient(viper.GetString("anthropic.api_key"), viper.GetString("anthropic.model"))
	summary, err := summarizer.Summarize(ctx, sess, activities)
	if err != nil {
		return fmt.Errorf("summarizing session: %w", err)
	}

	fmt.Fprintf(ui.Out, "%s %s\n\n", output.Cyan("Session:"), sessionTitle(sess))
	fmt.Fprintln(ui.Out, summary.Summary)
	if summary.Outcome != "" {
		fmt.Fprintf(ui.Out, "\n%s %s\n", output.Cyan("Outcome:"), summary.Outcome)
	}
	if len(summary.NextSteps) > 0 {
		fmt.Fprintf(ui.Out, "\n%s\n", output.Cyan("Next steps:"))
		for _, step := range summary.NextSteps {
			fmt.Fprintf(ui.Out, "  - %s\n", step)
		}
	}
	return nil
}
