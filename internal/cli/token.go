package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show the running server's admin token",
	Long: `Show the admin token of the running splitkit server.

Use this when you've scrolled past the startup message or need to
authenticate API calls from another terminal.

Example:
  splitkit token`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	tokenFile := getTokenFilePath()

	data, err := os.ReadFile(tokenFile)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no server running. Start with: splitkit serve")
		}
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return fmt.Errorf("token file is empty. Restart the server with: splitkit serve")
	}

	fmt.Printf("Admin token: %s\n", token)
	fmt.Println()
	fmt.Println("Pass it as the X-Splitkit-Token header on admin requests:")
	fmt.Printf("  curl -H 'X-Splitkit-Token: %s' http://localhost:8080/api/experiments\n", token)
	return nil
}

// getTokenFilePath returns the path to the token file, honoring the
// SPLITKIT_TOKEN_FILE override.
func getTokenFilePath() string {
	if path := os.Getenv("SPLITKIT_TOKEN_FILE"); path != "" {
		return path
	}
	// Token file lives alongside the database
	return filepath.Join(filepath.Dir(dbPath), ".splitkit-token")
}
