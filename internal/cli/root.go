package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	dbPath string
)

var rootCmd = &cobra.Command{
	Use:   "splitkit",
	Short: "splitkit - an A/B experimentation engine for headless storefronts",
	Long: `splitkit runs A/B/n experiments for a headless storefront: weighted
traffic splitting with sticky sessions, conversion tracking, and
statistical-significance analysis. Single Go binary, embedded SQLite.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("SPLITKIT_DB_PATH", "./splitkit.db"), "database path")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
