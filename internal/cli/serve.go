package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/splitkit/splitkit/internal/docstore"
	"github.com/splitkit/splitkit/internal/server"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the splitkit HTTP server.

The server provides:
  - Experiment CRUD API for the admin surface
  - Variant assignment endpoint for the storefront's page-render layer
  - Conversion tracking endpoint
  - On-demand results aggregation
  - Health check endpoint

Configuration comes from the environment (SPLITKIT_PORT, SPLITKIT_DB_PATH,
SPLITKIT_TOKEN_FILE); flags override it.

Example:
  splitkit serve --port 8080`,
	RunE: runServe,
}

func init() {
	cfg, err := server.LoadConfig()
	defaultPort := 8080
	if err == nil {
		defaultPort = cfg.Port
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := server.LoadConfig()
	if err != nil {
		return err
	}

	log, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	docs, err := docstore.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer docs.Close()

	tokenFile := cfg.TokenFile
	if tokenFile == "" {
		tokenFile = getTokenFilePath()
	}

	srv := server.New(docs, log, port, tokenFile)
	return srv.Start()
}
