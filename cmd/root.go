package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/therealashik/julesctl/internal/api"
	"github.com/therealashik/julesctl/internal/output"
	"github.com/therealashik/julesctl/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	apiClient *api.Client
	dataStore store.Store

	verbose bool

	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "julesctl",
	Short: "Jules session manager - drive remote coding-agent sessions from the terminal",
	Long: `julesctl manages Jules remote coding-agent sessions.
It creates sessions against your connected repositories, follows their
activity streams live, approves plans, and mirrors everything to a local
cache so listings stay fast when you are offline.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return sessionListRun()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/julesctl/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "julesctl")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("JULES")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "julesctl")

	viper.SetDefault("api_key", "")
	viper.SetDefault("base_url", api.DefaultBaseURL)
	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "julesctl.db"))
	viper.SetDefault("poll_interval_ms", 2000)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose

	// Client and store are initialized lazily so config/version commands
	// run without credentials or a db.
}

// getClient returns the shared API client, initializing it on first call.
func getClient() (*api.Client, error) {
	if apiClient != nil {
		return apiClient, nil
	}

	apiKey := viper.GetString("api_key")
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured: set JULES_API_KEY or api_key in the config file (run 'julesctl config init')")
	}

	apiClient = api.NewWithBaseURL(viper.GetString("base_url"), apiKey)
	return apiClient, nil
}

// getStore returns the shared local mirror, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "julesctl %s (commit %s, built %s)\n", buildVersion, buildCommit, buildDate)
	},
}
