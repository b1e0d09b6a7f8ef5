package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/tmajka/pyshake/internal/scanner"
	"github.com/tmajka/pyshake/pkg/config"
)

// getRoot returns the positional source root, defaulting to ".".
func getRoot(c *cli.Context) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return "."
}

// loadConfig loads the config named by the global --config flag, or the
// first config found in the standard locations.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault(), nil
}

// scanPython resolves the root and collects the Python files under it.
func scanPython(root string, cfg *config.Config) (string, []string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", nil, fmt.Errorf("invalid path %s: %w", root, err)
	}
	files, err := scanner.NewScanner(cfg).ScanDir(absRoot)
	if err != nil {
		return "", nil, fmt.Errorf("failed to scan directory %s: %w", root, err)
	}
	files, _ = scanner.FilterBySize(files, cfg.Optimize.MaxFileSize)
	return absRoot, files, nil
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// sanitizeID replaces non-alphanumeric characters for Mermaid diagram IDs.
func sanitizeID(id string) string {
	var result strings.Builder
	for _, c := range id {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			result.WriteRune(c)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}
