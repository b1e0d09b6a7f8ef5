package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tmajka/pyshake/internal/output"
	"github.com/tmajka/pyshake/pkg/callgraph"
	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/pysrc"
	"github.com/tmajka/pyshake/pkg/resolve"
)

func graphCmd() *cli.Command {
	return &cli.Command{
		Name:      "graph",
		Usage:     "Inspect the resolved reference graph of a Python tree",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Only show edges originating from this module.path:qualified.name symbol",
			},
			&cli.BoolFlag{
				Name:  "unresolved",
				Usage: "Only show edges whose target could not be resolved",
			},
			&cli.BoolFlag{
				Name:  "mermaid",
				Usage: "Emit a Mermaid diagram instead of a table",
			},
			&cli.BoolFlag{
				Name:  "cycles",
				Usage: "List recursion groups (strongly connected components)",
			},
		},
		Action: runGraphCmd,
	}
}

func runGraphCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	root, files, err := scanPython(getRoot(c), cfg)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No Python files found")
		return nil
	}

	set, err := pysrc.LoadFiles(root, files, nil)
	if err != nil {
		return err
	}
	idx, err := index.Build(set)
	if err != nil {
		return err
	}
	res, err := resolve.New(idx).Resolve(context.Background(), cfg.Optimize.Workers)
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if c.Bool("cycles") {
		return renderCycles(formatter, res.Graph)
	}

	edges := res.Graph.Edges()
	if from := c.String("from"); from != "" {
		sym, ok := idx.Lookup(from)
		if !ok {
			return fmt.Errorf("no such symbol: %s", from)
		}
		edges = res.Graph.Outgoing(sym.ID)
	}
	if c.Bool("unresolved") {
		var filtered []callgraph.Edge
		for _, e := range edges {
			if !e.To.OK {
				filtered = append(filtered, e)
			}
		}
		edges = filtered
	}

	if c.Bool("mermaid") {
		return renderMermaid(formatter, idx, edges)
	}

	type row struct {
		From   string `json:"from" toon:"from"`
		Kind   string `json:"kind" toon:"kind"`
		To     string `json:"to" toon:"to"`
		Reason string `json:"reason,omitempty" toon:"reason,omitempty"`
		Line   uint32 `json:"line" toon:"line"`
	}
	var data []row
	var rows [][]string
	for _, e := range edges {
		r := row{
			From: idx.Symbol(e.From).FQN(),
			Kind: e.Kind.String(),
			Line: e.Pos.Line,
		}
		if e.To.OK {
			r.To = idx.Symbol(e.To.Symbol).FQN()
		} else {
			r.To = e.To.Name
			r.Reason = e.To.Reason
		}
		data = append(data, r)
		rows = append(rows, []string{r.From, r.Kind, r.To, r.Reason, fmt.Sprintf("%d", r.Line)})
	}

	table := output.NewTable(
		fmt.Sprintf("References (%d)", len(rows)),
		[]string{"From", "Kind", "To", "Reason", "Line"},
		rows,
		nil,
		data,
	)
	return formatter.Output(table)
}

func renderCycles(formatter *output.Formatter, g *callgraph.Graph) error {
	cycles := g.Cycles()
	if len(cycles) == 0 {
		formatter.Info("No recursion groups found")
		return nil
	}

	var rows [][]string
	for i, cycle := range cycles {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), fmt.Sprintf("%d", len(cycle)), strings.Join(cycle, " -> ")})
	}
	table := output.NewTable(
		fmt.Sprintf("Recursion groups (%d)", len(cycles)),
		[]string{"#", "Size", "Members"},
		rows,
		nil,
		cycles,
	)
	return formatter.Output(table)
}

func renderMermaid(formatter *output.Formatter, idx *index.Index, edges []callgraph.Edge) error {
	var b strings.Builder
	b.WriteString("graph LR\n")

	seen := make(map[string]bool)
	node := func(fqn string) string {
		id := sanitizeID(fqn)
		if !seen[id] {
			seen[id] = true
			fmt.Fprintf(&b, "    %s[\"%s\"]\n", id, fqn)
		}
		return id
	}

	for _, e := range edges {
		if !e.To.OK {
			continue
		}
		from := node(idx.Symbol(e.From).FQN())
		to := node(idx.Symbol(e.To.Symbol).FQN())
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", from, e.Kind, to)
	}

	_, err := fmt.Fprintln(formatter.Writer(), b.String())
	return err
}
