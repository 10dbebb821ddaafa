package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/therealashik/julesctl/internal/models"
	"github.com/therealashik/julesctl/internal/output"
	"github.com/therealashik/julesctl/internal/poller"
	"github.com/therealashik/julesctl/internal/render"
)

var watchCmd = &cobra.Command{
	Use:     "watch <session>",
	Aliases: []string{"w"},
	Short:   "Follow a session live until it finishes",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return watchRun(args[0])
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func watchRun(nameArg string) error {
	name := models.QualifiedSessionName(nameArg)

	client, err := getClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm-start from the local mirror so history already fetched by
	// earlier commands is not re-downloaded.
	var (
		seed     *models.Session
		seedActs []models.Activity
	)
	if s, storeErr := getStore(); storeErr == nil {
		if cached, getErr := s.GetSession(ctx, name); getErr == nil {
			seed = cached
			seedActs, _ = s.ListActivities(ctx, name)
		}
	}

	interval := time.Duration(viper.GetInt("poll_interval_ms")) * time.Millisecond
	if interval <= 0 {
		interval = poller.DefaultInterval
	}

	lastState := models.SessionState("")
	if seed != nil {
		printSessionHeader(seed)
		lastState = seed.State
		classifier := render.NewClassifier(seedActs)
		for i := range seedActs {
			printActivity(&seedActs[i], classifier, false)
		}
	}

	p := poller.New(client,
		poller.WithInterval(interval),
		poller.WithHooks(poller.Hooks{
			OnUpdate: func(u poller.Update) {
				if u.Session != nil && u.Session.State != lastState {
					if lastState == "" {
						printSessionHeader(u.Session)
					} else {
						ui.Info("State: %s", output.StateColor(u.Session.State))
						if cta := render.SessionStateInfo(u.Session.State).CTA; cta != "" {
							ui.Warning("%s", cta)
						}
					}
					lastState = u.Session.State
				}
				for i := range u.Appended {
					printActivity(&u.Appended[i], nil, false)
				}
				if s, storeErr := getStore(); storeErr == nil {
					if u.Session != nil {
						_ = s.UpsertSession(ctx, u.Session)
					}
					if len(u.Appended) > 0 {
						_ = s.UpsertActivities(ctx, name, u.Appended)
					}
				}
			},
			OnError: func(err error) {
				ui.VerboseLog("poll error (will retry): %v", err)
			},
		}),
	)

	p.StartWithHistory(name, seed, seedActs)
	defer p.Stop()

	select {
	case <-ctx.Done():
		fmt.Fprintln(ui.Out)
		ui.Info("Stopped watching (session keeps running remotely)")
		return nil
	case <-p.Done():
	}

	snap := p.Snapshot()
	if snap.Session != nil && snap.Session.State == models.StateFailed {
		return fmt.Errorf("session %s failed", snap.Session.ShortName())
	}
	return nil
}
