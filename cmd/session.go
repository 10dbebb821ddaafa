package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/therealashik/julesctl/internal/api"
	"github.com/therealashik/julesctl/internal/models"
	"github.com/therealashik/julesctl/internal/output"
	"github.com/therealashik/julesctl/internal/render"
	"github.com/therealashik/julesctl/internal/sessionlist"
)

var (
	sessionNewTitle      string
	sessionNewSource     string
	sessionNewBranch     string
	sessionNewNoApproval bool
	sessionNewAutomation string

	sessionApprovePlanID string
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"s"},
	Short:   "Manage Jules sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun()
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most urgent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionListRun()
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <session>",
	Short: "Show a session's state and full activity history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionShowRun(args[0])
	},
}

var sessionNewCmd = &cobra.Command{
	Use:   "new <prompt>",
	Short: "Start a new session",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionNewRun(strings.Join(args, " "))
	},
}

var sessionMessageCmd = &cobra.Command{
	Use:     "message <session> <text>",
	Aliases: []string{"msg"},
	Short:   "Send a message to a running session",
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionMessageRun(args[0], strings.Join(args[1:], " "))
	},
}

var sessionApproveCmd = &cobra.Command{
	Use:   "approve <session>",
	Short: "Approve a session's pending plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionApproveRun(args[0])
	},
}

var sessionPauseCmd = &cobra.Command{
	Use:   "pause <session>",
	Short: "Pause a running session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionSetStateRun(args[0], models.StatePaused)
	},
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume <session>",
	Short: "Resume a paused session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionSetStateRun(args[0], models.StateInProgress)
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:     "delete <session>",
	Aliases: []string{"rm"},
	Short:   "Delete a session",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sessionDeleteRun(args[0])
	},
}

func init() {
	sessionNewCmd.Flags().StringVar(&sessionNewTitle, "title", "", "Session title (defaults to the prompt)")
	sessionNewCmd.Flags().StringVar(&sessionNewSource, "source", "", "Source name (sources/github/<owner>/<repo>)")
	sessionNewCmd.Flags().StringVar(&sessionNewBranch, "branch", "", "Starting branch (default: main)")
	sessionNewCmd.Flags().BoolVar(&sessionNewNoApproval, "no-approval", false, "Skip plan approval and start executing immediately")
	sessionNewCmd.Flags().StringVar(&sessionNewAutomation, "automation", "", "Automation mode: AUTO_CREATE_PR, NONE, AUTO_MERGE")
	_ = sessionNewCmd.MarkFlagRequired("source")

	sessionApproveCmd.Flags().StringVar(&sessionApprovePlanID, "plan", "", "Specific plan id (default: latest pending plan)")

	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionMessageCmd)
	sessionCmd.AddCommand(sessionApproveCmd)
	sessionCmd.AddCommand(sessionPauseCmd)
	sessionCmd.AddCommand(sessionResumeCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	rootCmd.AddCommand(sessionCmd)
}

func sessionListRun() error {
	ctx := context.Background()

	client, err := getClient()
	if err != nil {
		return err
	}

	cache := sessionlist.New()
	if refreshErr := cache.Refresh(ctx, client); refreshErr != nil {
		// Fall back to the local mirror so listings work offline.
		s, storeErr := getStore()
		if storeErr != nil {
			return refreshErr
		}
		cached, storeErr := s.ListSessions(ctx)
		if storeErr != nil || len(cached) == 0 {
			return refreshErr
		}
		ui.Warning("Remote fetch failed (%v); showing cached sessions", refreshErr)
		for _, sess := range cached {
			cache.Add(sess)
		}
	} else if s, storeErr := getStore(); storeErr == nil {
		_ = s.UpsertSessions(ctx, cache.All())
	}

	sessions := cache.Sorted()
	if len(sessions) == 0 {
		ui.Info("No sessions yet. Start one with 'julesctl session new'.")
		return nil
	}

	table := ui.Table([]string{"ID", "Title", "State", "Created", "PR"})
	for i := range sessions {
		sess := &sessions[i]
		pr := ""
		for _, o := range sess.Outputs {
			if o.PullRequest != nil {
				pr = o.PullRequest.URL
				break
			}
		}
		table.Append([]string{
			sess.ShortName(),
			truncate(sessionTitle(sess), 48),
			output.StateColor(sess.State),
			timeAgo(sess.CreateTime),
			pr,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(ui.Out)
	ui.Info("%d sessions, %d created in the last 24h", len(sessions), cache.CreatedLast24h())
	return nil
}

func sessionShowRun(nameArg string) error {
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

	// Best-effort mirror for offline listings and watch warm-start.
	if s, storeErr := getStore(); storeErr == nil {
		_ = s.UpsertSession(ctx, sess)
		_ = s.UpsertActivities(ctx, name, activities)
	}

	printSessionHeader(sess)
	fmt.Fprintln(ui.Out)

	classifier := render.NewClassifier(activities)
	processing := sess.State.Processing()

	if render.NeedsSyntheticPrompt(activities, sess.Prompt) {
		fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan("you:"), sess.Prompt)
	}
	for i := range activities {
		printActivity(&activities[i], classifier, classifier.IsCurrentlyActive(i, processing))
	}
	return nil
}

func sessionNewRun(prompt string) error {
	ctx := context.Background()

	client, err := getClient()
	if err != nil {
		return err
	}

	opts := api.CreateSessionOptions{
		Title:               sessionNewTitle,
		StartingBranch:      sessionNewBranch,
		RequirePlanApproval: !sessionNewNoApproval,
		AutomationMode:      models.AutomationMode(sessionNewAutomation),
	}

	sess, err := client.CreateSession(ctx, prompt, sessionNewSource, opts)
	if err != nil {
		return err
	}

	if s, storeErr := getStore(); storeErr == nil {
		_ = s.UpsertSession(ctx, sess)
	}

	ui.Success("Created session %s", output.Cyan(sess.ShortName()))
	ui.Info("State: %s", output.StateColor(sess.State))
	ui.Info("Follow it with: julesctl watch %s", sess.ShortName())
	return nil
}

func sessionMessageRun(nameArg, text string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	if err := client.SendMessage(context.Background(), models.QualifiedSessionName(nameArg), text); err != nil {
		return err
	}
	ui.Success("Message sent")
	return nil
}

func sessionApproveRun(nameArg string) error {
	client, err := getClient()
	if err != nil {
		return err
	}
	if err := client.ApprovePlan(context.Background(), models.QualifiedSessionName(nameArg), sessionApprovePlanID); err != nil {
		return err
	}
	ui.Success("Plan approved")
	return nil
}

func sessionSetStateRun(nameArg string, state models.SessionState) error {
	ctx := context.Background()
	name := models.QualifiedSessionName(nameArg)

	client, err := getClient()
	if err != nil {
		return err
	}

	sess, err := client.UpdateSession(ctx, name,
		map[string]any{"state": string(state)}, []string{"state"})
	if err != nil {
		return err
	}

	if s, storeErr := getStore(); storeErr == nil {
		_ = s.UpsertSession(ctx, sess)
	}

	ui.Success("Session %s is now %s", sess.ShortName(), output.StateColor(sess.State))
	return nil
}

func sessionDeleteRun(nameArg string) error {
	ctx := context.Background()
	name := models.QualifiedSessionName(nameArg)

	client, err := getClient()
	if err != nil {
		return err
	}
	if err := client.DeleteSession(ctx, name); err != nil {
		return err
	}

	// Drop locally without waiting for the next listing to confirm.
	if s, storeErr := getStore(); storeErr == nil {
		_ = s.DeleteSession(ctx, name)
	}

	ui.Success("Deleted %s", name)
	return nil
}

// --- shared rendering helpers ---

func printSessionHeader(sess *models.Session) {
	info := render.SessionStateInfo(sess.State)

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(sessionTitle(sess)), output.StateColor(sess.State))
	fmt.Fprintf(ui.Out, "  %s  created %s\n", sess.Name, timeAgo(sess.CreateTime))
	if sess.SourceContext != nil {
		branch := sess.SourceContext.StartingBranch
		if branch == "" {
			branch = "main"
		}
		fmt.Fprintf(ui.Out, "  %s @ %s\n", sess.SourceContext.Source, branch)
	}
	for _, o := range sess.Outputs {
		if o.PullRequest != nil {
			fmt.Fprintf(ui.Out, "  PR: %s\n", output.Green(o.PullRequest.URL))
		}
	}
	if info.CTA != "" {
		ui.Warning("%s", info.CTA)
	}
}

func printActivity(a *models.Activity, classifier *render.Classifier, active bool) {
	marker := ""
	if active {
		marker = " " + output.Yellow("…")
	} else if a.Payload.Kind == models.PayloadSessionCompleted &&
		!render.SuppressCelebration(a, time.Now()) {
		marker = " " + output.Green("🎉")
	}

	switch a.Payload.Kind {
	case models.PayloadUserMessage:
		fmt.Fprintf(ui.Out, "%s %s\n", output.Cyan("you:"), a.Payload.Text)
	case models.PayloadAgentMessage:
		fmt.Fprintf(ui.Out, "%s %s%s\n", output.Magenta("jules:"), a.Payload.Text, marker)
	case models.PayloadPlanGenerated:
		status := output.Yellow("pending approval")
		if classifier != nil && classifier.IsPlanApproved(a) {
			status = output.Green("approved")
		}
		fmt.Fprintf(ui.Out, "%s (%s)%s\n", output.Magenta("plan:"), status, marker)
		if a.Payload.Plan != nil {
			for i, step := range a.Payload.Plan.Steps {
				fmt.Fprintf(ui.Out, "  %d. %s\n", i+1, step.Title)
			}
		}
	case models.PayloadPlanApproved:
		fmt.Fprintf(ui.Out, "%s\n", output.Green("✓ plan approved"))
	case models.PayloadProgress:
		if a.Payload.Progress != nil {
			line := a.Payload.Progress.Title
			if a.Payload.Progress.Description != "" {
				line += "  " + output.Dim(a.Payload.Progress.Description)
			}
			fmt.Fprintf(ui.Out, "%s %s%s\n", output.Dim("→"), line, marker)
		}
	case models.PayloadSessionCompleted:
		fmt.Fprintf(ui.Out, "%s%s\n", output.Green("✓ session completed"), marker)
	case models.PayloadSessionFailed:
		reason := a.Payload.FailureReason
		if reason == "" {
			reason = "no reason given"
		}
		fmt.Fprintf(ui.Out, "%s %s\n", output.Red("✗ session failed:"), reason)
	default:
		if a.Description != "" {
			fmt.Fprintf(ui.Out, "%s\n", output.Dim(a.Description))
		}
	}

	for _, art := range a.Artifacts {
		if art.BashOutput != nil {
			fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("$"), output.Dim(art.BashOutput.Command))
		}
		if art.ChangeSet != nil && art.ChangeSet.GitPatch != nil &&
			art.ChangeSet.GitPatch.SuggestedCommitMessage != "" {
			fmt.Fprintf(ui.Out, "  %s %s\n", output.Dim("±"), art.ChangeSet.GitPatch.SuggestedCommitMessage)
		}
	}
}

func sessionTitle(sess *models.Session) string {
	if sess.Title != "" {
		return sess.Title
	}
	if sess.Prompt != "" {
		return sess.Prompt
	}
	return sess.ShortName()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// timeAgo humanizes an ISO-8601 timestamp; unparseable input passes through.
func timeAgo(iso string) string {
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		return iso
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	}
}
