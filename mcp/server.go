package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/lukman83/pricewatch/internal/api"
	"github.com/lukman83/pricewatch/internal/platform"
)

// Deps are the services the tools call into.
type Deps struct {
	Service  *api.Service
	Registry *platform.Registry
}

// NewServer returns an MCP server with all tools registered.
func NewServer(d Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"pricewatch",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	registerTools(s, d)

	return s
}

// Serve starts the MCP stdio server with all tools registered.
func Serve(d Deps) error {
	return server.ServeStdio(NewServer(d))
}
