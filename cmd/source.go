package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/therealashik/julesctl/internal/output"
)

var sourceCmd = &cobra.Command{
	Use:     "source",
	Aliases: []string{"sources", "src"},
	Short:   "List repositories Jules can work on",
	RunE: func(cmd *cobra.Command, args []string) error {
		return sourceListRun()
	},
}

func init() {
	sourceCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sourceListRun()
		},
	})
	rootCmd.AddCommand(sourceCmd)
}

func sourceListRun() error {
	client, err := getClient()
	if err != nil {
		return err
	}

	sources, err := client.ListAllSources(context.Background())
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		ui.Info("No sources connected. Link a repository from the Jules web app first.")
		return nil
	}

	table := ui.Table([]string{"Name", "Repo", "Default Branch", "Private"})
	for i := range sources {
		src := &sources[i]
		branch := ""
		private := ""
		if src.GitHubRepo != nil {
			if src.GitHubRepo.DefaultBranch != nil {
				branch = src.GitHubRepo.DefaultBranch.DisplayName
			}
			if src.GitHubRepo.IsPrivate {
				private = output.Yellow("yes")
			}
		}
		table.Append([]string{src.Name, src.FallbackDisplayName(), branch, private})
	}
	return table.Render()
}
