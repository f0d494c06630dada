package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http",
	Short: "Start the HTTP API and MCP server without a scheduler",
	Long: `Serves the HTTP API, /metrics and MCP over HTTP. Checks only run when
/api/scrape is called (e.g. by an external cron) or through the run_cycle tool.`,
	RunE: runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	rootCmd.AddCommand(serveHTTPCmd)
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	port := cfg.HTTPPort
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := fmt.Sprintf(":%s", port)
	return listen(ctx, addr, a.routes(cfg.APIKey))
}
