package mcp

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"

	"github.com/lukman83/pricewatch/internal/api"
)

// Mount serves the MCP streamable HTTP transport on /mcp with optional
// Bearer token auth.
func Mount(mux *http.ServeMux, s *server.MCPServer, apiKey string) {
	httpServer := server.NewStreamableHTTPServer(s, server.WithStateLess(true))

	var mcpHandler http.Handler = httpServer
	if apiKey != "" {
		mcpHandler = api.BearerAuth(apiKey, "mcp", httpServer)
	}
	mux.Handle("/mcp", mcpHandler)
}
