package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	mcpserver "github.com/lukman83/pricewatch/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start MCP stdio server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting pricewatch MCP server on stdio...")

	if err := mcpserver.Serve(mcpserver.Deps{Service: a.service, Registry: a.registry}); err != nil {
		log.Printf("MCP server error: %v", err)
		return err
	}
	return nil
}
