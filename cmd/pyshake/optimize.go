package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/tmajka/pyshake/internal/output"
	"github.com/tmajka/pyshake/internal/progress"
	"github.com/tmajka/pyshake/pkg/analyzer"
	"github.com/tmajka/pyshake/pkg/optimizer"
)

func optimizeCmd() *cli.Command {
	return &cli.Command{
		Name:      "optimize",
		Aliases:   []string{"opt"},
		Usage:     "Prune, rename, and re-link a Python tree down to one entrypoint",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "entrypoint",
				Aliases:  []string{"e"},
				Usage:    "Reachability root in module.path:function or module.path:Class.method form",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Output root for the optimized tree",
			},
			&cli.StringFlag{
				Name:  "suffix",
				Usage: "Suffix appended to surviving module path segments and the entrypoint",
			},
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Value:   true,
				Usage:   "Walk subdirectories of the input",
			},
			&cli.BoolFlag{
				Name:  "keep-docstrings",
				Usage: "Preserve docstrings in the output",
			},
			&cli.BoolFlag{
				Name:  "keep-comments",
				Usage: "Preserve comments in the output",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Analyze and report without writing any files",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Analysis parallelism (0 derives from CPU count)",
			},
		},
		Action: runOptimizeCmd,
	}
}

func runOptimizeCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Flags override the config file.
	if c.IsSet("suffix") {
		cfg.Optimize.Suffix = c.String("suffix")
	}
	if c.IsSet("out-dir") {
		cfg.Optimize.OutDir = c.String("out-dir")
	}
	if c.IsSet("recursive") {
		cfg.Optimize.Recursive = c.Bool("recursive")
	}
	if c.IsSet("keep-docstrings") {
		cfg.Optimize.KeepDocstrings = c.Bool("keep-docstrings")
	}
	if c.IsSet("keep-comments") {
		cfg.Optimize.KeepComments = c.Bool("keep-comments")
	}
	if c.IsSet("workers") {
		cfg.Optimize.Workers = c.Int("workers")
	}
	cfg.Optimize.Entrypoint = c.String("entrypoint")

	root, files, err := scanPython(getRoot(c), cfg)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No Python files found")
		return nil
	}

	opt := optimizer.New(root,
		optimizer.WithEntrypoint(cfg.Optimize.Entrypoint),
		optimizer.WithSuffix(cfg.Optimize.Suffix),
		optimizer.WithKeepDocstrings(cfg.Optimize.KeepDocstrings),
		optimizer.WithKeepComments(cfg.Optimize.KeepComments),
		optimizer.WithWorkers(cfg.Optimize.Workers),
	)
	defer opt.Close()

	bar := progress.NewTracker("Optimizing...", len(files))
	ctx := analyzer.WithTracker(context.Background(), analyzer.NewTracker(func(current, total int, path string) {
		bar.Tick()
	}))

	result, err := opt.Analyze(ctx, files)
	if err != nil {
		bar.FinishError(err)
		return err
	}
	bar.FinishSuccess()

	formatter, err := output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if err := formatter.Output(result.Report); err != nil {
		return err
	}

	if c.Bool("dry-run") {
		formatter.Info("Dry run: no files written")
		return nil
	}

	if err := result.Write(cfg.Optimize.OutDir); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	tokens := 0
	for _, f := range result.Files {
		tokens += output.EstimateTokens(string(f.Data))
	}
	formatter.Success("Wrote %d files to %s (about %s tokens)",
		len(result.Files), cfg.Optimize.OutDir, output.FormatTokenCount(tokens))
	return nil
}
