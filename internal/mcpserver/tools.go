package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/tmajka/pyshake/internal/output"
	"github.com/tmajka/pyshake/internal/scanner"
	"github.com/tmajka/pyshake/pkg/config"
	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/optimizer"
	"github.com/tmajka/pyshake/pkg/pysrc"
	"github.com/tmajka/pyshake/pkg/resolve"
)

// OptimizeInput drives a dry-run optimization. Nothing is written; the
// tool returns the diagnostic report.
type OptimizeInput struct {
	Path       string `json:"path,omitempty" jsonschema:"Root directory of the Python sources. Defaults to the current directory."`
	Entrypoint string `json:"entrypoint" jsonschema:"Reachability root in module.path:function or module.path:Class.method form, e.g. app:handler."`
	Suffix     string `json:"suffix,omitempty" jsonschema:"Rename suffix for surviving modules. Default __ma."`
}

// ListSymbolsInput selects the symbol listing scope.
type ListSymbolsInput struct {
	Path   string `json:"path,omitempty" jsonschema:"Root directory of the Python sources. Defaults to the current directory."`
	Module string `json:"module,omitempty" jsonschema:"Restrict the listing to one dotted module path."`
	Kind   string `json:"kind,omitempty" jsonschema:"Restrict to one kind: function, class, or method."`
}

// CallGraphInput selects the call graph scope.
type CallGraphInput struct {
	Path       string `json:"path,omitempty" jsonschema:"Root directory of the Python sources. Defaults to the current directory."`
	Symbol     string `json:"symbol,omitempty" jsonschema:"Restrict output to edges originating from this module.path:qualified.name symbol."`
	Unresolved bool   `json:"unresolved,omitempty" jsonschema:"Only return edges whose target could not be resolved."`
}

func toolResult(data any) (*mcp.CallToolResult, any, error) {
	text, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(text)},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func scanRoot(path string) (string, []string, error) {
	if path == "" {
		path = "."
	}
	files, err := scanner.NewScanner(config.DefaultConfig()).ScanDir(path)
	if err != nil {
		return "", nil, err
	}
	if len(files) == 0 {
		return "", nil, fmt.Errorf("no Python files found under %s", path)
	}
	return path, files, nil
}

func buildIndex(path string, files []string) (*index.Index, error) {
	set, err := pysrc.LoadFiles(path, files, nil)
	if err != nil {
		return nil, err
	}
	return index.Build(set)
}

func handleOptimize(ctx context.Context, req *mcp.CallToolRequest, input OptimizeInput) (*mcp.CallToolResult, any, error) {
	if input.Entrypoint == "" {
		return toolError("entrypoint is required")
	}
	root, files, err := scanRoot(input.Path)
	if err != nil {
		return toolError(err.Error())
	}

	opts := []optimizer.Option{optimizer.WithEntrypoint(input.Entrypoint)}
	if input.Suffix != "" {
		opts = append(opts, optimizer.WithSuffix(input.Suffix))
	}
	opt := optimizer.New(root, opts...)
	defer opt.Close()

	result, err := opt.Analyze(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}

	// Surface a size estimate alongside the report, the way agents budget
	// context.
	report := result.Report
	return toolResult(map[string]any{
		"report":           report,
		"estimated_tokens": output.EstimateTokens(fmt.Sprintf("%v", report)),
	})
}

type symbolInfo struct {
	FQN  string `json:"fqn" toon:"fqn"`
	Kind string `json:"kind" toon:"kind"`
	File string `json:"file" toon:"file"`
	Line uint32 `json:"line" toon:"line"`
}

func handleListSymbols(ctx context.Context, req *mcp.CallToolRequest, input ListSymbolsInput) (*mcp.CallToolResult, any, error) {
	root, files, err := scanRoot(input.Path)
	if err != nil {
		return toolError(err.Error())
	}
	idx, err := buildIndex(root, files)
	if err != nil {
		return toolError(err.Error())
	}

	var symbols []symbolInfo
	for _, sym := range idx.All() {
		if sym.Kind == index.KindModule {
			continue
		}
		if input.Module != "" && sym.Module != input.Module {
			continue
		}
		if input.Kind != "" && string(sym.Kind) != input.Kind {
			continue
		}
		symbols = append(symbols, symbolInfo{
			FQN:  sym.FQN(),
			Kind: string(sym.Kind),
			File: sym.File,
			Line: sym.Pos.Line,
		})
	}
	return toolResult(map[string]any{"symbols": symbols, "count": len(symbols)})
}

type edgeInfo struct {
	From   string `json:"from" toon:"from"`
	Kind   string `json:"kind" toon:"kind"`
	To     string `json:"to" toon:"to"`
	Reason string `json:"reason,omitempty" toon:"reason,omitempty"`
	Line   uint32 `json:"line" toon:"line"`
}

func handleCallGraph(ctx context.Context, req *mcp.CallToolRequest, input CallGraphInput) (*mcp.CallToolResult, any, error) {
	root, files, err := scanRoot(input.Path)
	if err != nil {
		return toolError(err.Error())
	}
	idx, err := buildIndex(root, files)
	if err != nil {
		return toolError(err.Error())
	}
	res, err := resolve.New(idx).Resolve(ctx, 0)
	if err != nil {
		return toolError(err.Error())
	}

	var from *index.Symbol
	if input.Symbol != "" {
		sym, ok := idx.Lookup(input.Symbol)
		if !ok {
			return toolError("no such symbol: " + input.Symbol)
		}
		from = sym
	}

	edges := res.Graph.Edges()
	if from != nil {
		edges = res.Graph.Outgoing(from.ID)
	}

	var out []edgeInfo
	for _, e := range edges {
		if input.Unresolved && e.To.OK {
			continue
		}
		info := edgeInfo{
			From: idx.Symbol(e.From).FQN(),
			Kind: e.Kind.String(),
			Line: e.Pos.Line,
		}
		if e.To.OK {
			info.To = idx.Symbol(e.To.Symbol).FQN()
		} else {
			info.To = e.To.Name
			info.Reason = e.To.Reason
		}
		out = append(out, info)
	}
	return toolResult(map[string]any{"edges": out, "count": len(out), "warnings": res.Warnings})
}
