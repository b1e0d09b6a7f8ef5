package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tmajka/pyshake/internal/output"
	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/pysrc"
)

func symbolsCmd() *cli.Command {
	return &cli.Command{
		Name:      "symbols",
		Aliases:   []string{"sym"},
		Usage:     "List the declared symbols of a Python tree",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "module",
				Usage: "Restrict the listing to one dotted module path",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Restrict to one kind: function, class, or method",
			},
		},
		Action: runSymbolsCmd,
	}
}

func runSymbolsCmd(c *cli.Context) error {
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

	moduleFilter := c.String("module")
	kindFilter := c.String("kind")

	type row struct {
		FQN  string `json:"fqn" toon:"fqn"`
		Kind string `json:"kind" toon:"kind"`
		File string `json:"file" toon:"file"`
		Line uint32 `json:"line" toon:"line"`
	}
	var data []row
	var rows [][]string
	for _, sym := range idx.All() {
		if sym.Kind == index.KindModule {
			continue
		}
		if moduleFilter != "" && sym.Module != moduleFilter {
			continue
		}
		if kindFilter != "" && string(sym.Kind) != kindFilter {
			continue
		}
		data = append(data, row{FQN: sym.FQN(), Kind: string(sym.Kind), File: sym.File, Line: sym.Pos.Line})
		rows = append(rows, []string{sym.FQN(), string(sym.Kind), truncate(sym.File, 60), fmt.Sprintf("%d", sym.Pos.Line)})
	}

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	table := output.NewTable(
		fmt.Sprintf("Symbols (%d)", len(rows)),
		[]string{"Symbol", "Kind", "File", "Line"},
		rows,
		nil,
		data,
	)
	return formatter.Output(table)
}
