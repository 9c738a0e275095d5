package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/tutorly/internal/config"
	"github.com/abhisek/tutorly/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "tutorly",
	Short: "AI-guided learning sessions",
	Long: "Tutorly plans a lesson for any topic, teaches it step by step at your knowledge level,\n" +
		"checks understanding with short quizzes and finishes with a comprehensive quiz.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides TUTORLY_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file (overrides TUTORLY_CONFIG env var)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(stepCmd)
	rootCmd.AddCommand(quizCmd)
	rootCmd.AddCommand(answerCmd)
	rootCmd.AddCommand(finalCmd)
	rootCmd.AddCommand(finalAnswerCmd)
	rootCmd.AddCommand(levelCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(attemptsCmd)
	rootCmd.AddCommand(feedbackCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads configuration, honoring --config.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path (TUTORLY_DB or db_path), then the default XDG path.
func resolveDBPath(cmd *cobra.Command, cfg config.Config) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if cfg.DBPath != "" {
		return cfg.DBPath, store.EnsureDir(cfg.DBPath)
	}
	return store.DefaultDBPath()
}

// openStore loads configuration and opens the database, for commands that
// need no LLM provider.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}
