// Package mcpserver exposes the optimizer over the Model Context
// Protocol, so agents can inspect symbols, trace reachability, and run
// dry-run optimizations against a Python tree.
package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server and registers all pyshake tools.
type Server struct {
	server *mcp.Server
}

// NewServer creates a new MCP server with all pyshake tools registered.
func NewServer(version string) *Server {
	if version == "" {
		version = "dev"
	}
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    "pyshake",
			Version: version,
		},
		nil,
	)

	s := &Server{server: server}
	s.registerTools()
	s.registerPrompts()
	return s
}

// Run starts the MCP server over stdio transport.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// registerTools adds all pyshake tools to the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "optimize",
		Description: describeOptimize(),
	}, handleOptimize)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_symbols",
		Description: describeListSymbols(),
	}, handleListSymbols)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "call_graph",
		Description: describeCallGraph(),
	}, handleCallGraph)
}
