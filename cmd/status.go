package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/therealashik/julesctl/internal/models"
	"github.com/therealashik/julesctl/internal/output"
	"github.com/therealashik/julesctl/internal/render"
	"github.com/therealashik/julesctl/internal/sessionlist"
)

var statusAll bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sessions that need your attention",
	Long: `Show a dashboard of sessions waiting on you.

By default only blocked sessions are listed (awaiting plan approval or
a reply). Use --all to include everything that is still running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return statusRun()
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusAll, "all", false, "Include running and paused sessions")
	rootCmd.AddCommand(statusCmd)
}

func statusRun() error {
	ctx := context.Background()

	client, err := getClient()
	if err != nil {
		return err
	}

	sessions, err := client.ListAllSessions(ctx)
	if err != nil {
		return err
	}

	var working, blocked, paused, terminal int
	var shown []models.Session
	for _, sess := range sessionlist.Sort(sessions) {
		switch {
		case sess.State.Processing():
			working++
			if statusAll {
				shown = append(shown, sess)
			}
		case sess.State == models.StateAwaitingPlanApproval || sess.State == models.StateAwaitingUserFeedback:
			blocked++
			shown = append(shown, sess)
		case sess.State == models.StatePaused:
			paused++
			if statusAll {
				shown = append(shown, sess)
			}
		default:
			terminal++
		}
	}

	if len(shown) == 0 {
		ui.Success("Nothing is waiting on you")
	} else {
		table := ui.Table([]string{"ID", "Title", "State", "Next Step"})
		for i := range shown {
			sess := &shown[i]
			info := render.SessionStateInfo(sess.State)
			table.Append([]string{
				sess.ShortName(),
				truncate(sessionTitle(sess), 48),
				output.StateColor(sess.State),
				info.CTA,
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	fmt.Fprintln(ui.Out)
	ui.Info("%d working, %d blocked, %d paused, %d finished", working, blocked, paused, terminal)
	return nil
}
