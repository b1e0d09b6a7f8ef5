package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/tmajka/pyshake/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes the optimizer
as tools LLMs can invoke against a Python tree.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "pyshake": {
        "command": "pyshake",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - optimize       Dry-run optimization with full diagnostic report
  - list_symbols   Declared functions, classes, and methods
  - call_graph     Typed reference edges, resolved and unresolved`,
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	server := mcpserver.NewServer(version)
	return server.Run(context.Background())
}
