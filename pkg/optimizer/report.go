package optimizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/tmajka/pyshake/internal/output"
	"github.com/tmajka/pyshake/pkg/resolve"
)

// ModuleReport describes what happened to one surviving module.
type ModuleReport struct {
	Module        string `json:"module" toon:"module"`
	Renamed       string `json:"renamed" toon:"renamed"`
	OutputPath    string `json:"output_path" toon:"output_path"`
	SymbolsTotal  int    `json:"symbols_total" toon:"symbols_total"`
	SymbolsLive   int    `json:"symbols_live" toon:"symbols_live"`
	SymbolsPruned int    `json:"symbols_pruned" toon:"symbols_pruned"`
	BytesIn       int    `json:"bytes_in" toon:"bytes_in"`
	BytesOut      int    `json:"bytes_out" toon:"bytes_out"`
	// Digest is the BLAKE3 hash of the output content, for verifying that
	// two runs produced an identical bundle.
	Digest string `json:"digest" toon:"digest"`
}

// Report is the diagnostic output of one optimization run.
type Report struct {
	Entrypoint        string            `json:"entrypoint" toon:"entrypoint"`
	RenamedEntrypoint string            `json:"renamed_entrypoint" toon:"renamed_entrypoint"`
	Suffix            string            `json:"suffix" toon:"suffix"`
	Modules           []ModuleReport    `json:"modules" toon:"modules"`
	DroppedModules    []string          `json:"dropped_modules,omitempty" toon:"dropped_modules,omitempty"`
	PrunedSymbols     []string          `json:"pruned_symbols,omitempty" toon:"pruned_symbols,omitempty"`
	RemovedImports    []string          `json:"removed_imports,omitempty" toon:"removed_imports,omitempty"`
	Warnings          []resolve.Warning `json:"warnings,omitempty" toon:"warnings,omitempty"`
	RenameMap         map[string]string `json:"rename_map" toon:"rename_map"`
}

// TotalBytesIn sums input sizes across surviving modules.
func (r *Report) TotalBytesIn() int {
	total := 0
	for _, m := range r.Modules {
		total += m.BytesIn
	}
	return total
}

// TotalBytesOut sums output sizes across surviving modules.
func (r *Report) TotalBytesOut() int {
	total := 0
	for _, m := range r.Modules {
		total += m.BytesOut
	}
	return total
}

// RenderData implements output.Renderable.
func (r *Report) RenderData() any {
	return r
}

// RenderText implements output.Renderable.
func (r *Report) RenderText(w io.Writer, colored bool) error {
	rows := make([][]string, 0, len(r.Modules))
	for _, m := range r.Modules {
		rows = append(rows, []string{
			m.Module,
			m.Renamed,
			fmt.Sprintf("%d/%d", m.SymbolsLive, m.SymbolsTotal),
			fmt.Sprintf("%d", m.BytesIn),
			fmt.Sprintf("%d", m.BytesOut),
		})
	}
	table := output.NewTable(
		fmt.Sprintf("Optimized %s -> %s", r.Entrypoint, r.RenamedEntrypoint),
		[]string{"Module", "Renamed", "Live", "Bytes In", "Bytes Out"},
		rows,
		[]string{"total", "", fmt.Sprintf("%d pruned", len(r.PrunedSymbols)),
			fmt.Sprintf("%d", r.TotalBytesIn()), fmt.Sprintf("%d", r.TotalBytesOut())},
		nil,
	)
	if err := table.RenderText(w, colored); err != nil {
		return err
	}

	if len(r.DroppedModules) > 0 {
		fmt.Fprintf(w, "Dropped modules: %d\n", len(r.DroppedModules))
		for _, m := range r.DroppedModules {
			fmt.Fprintf(w, "  - %s\n", m)
		}
	}
	if len(r.RemovedImports) > 0 {
		fmt.Fprintf(w, "Removed imports: %d\n", len(r.RemovedImports))
		for _, imp := range r.RemovedImports {
			fmt.Fprintf(w, "  - %s\n", imp)
		}
	}
	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings: %d\n", len(r.Warnings))
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [%s] %s (%s, %s:%d)\n",
				warn.Code, warn.Message, warn.Symbol, filepath.Base(warn.File), warn.Pos.Line)
		}
	}
	return nil
}

// RenderMarkdown implements output.Renderable.
func (r *Report) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# Optimization Report\n\n")
	fmt.Fprintf(w, "Entrypoint: `%s` -> `%s`\n\n", r.Entrypoint, r.RenamedEntrypoint)

	fmt.Fprintln(w, "| Module | Renamed | Live | Bytes In | Bytes Out |")
	fmt.Fprintln(w, "| --- | --- | --- | --- | --- |")
	for _, m := range r.Modules {
		fmt.Fprintf(w, "| %s | %s | %d/%d | %d | %d |\n",
			m.Module, m.Renamed, m.SymbolsLive, m.SymbolsTotal, m.BytesIn, m.BytesOut)
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintf(w, "## Warnings\n\n")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "- **%s**: %s (`%s`)\n", warn.Code, warn.Message, warn.Symbol)
		}
		fmt.Fprintln(w)
	}
	return nil
}

// File is one output file of the bundle.
type File struct {
	// Path is relative to the output root.
	Path string `json:"path" toon:"path"`
	Data []byte `json:"-" toon:"-"`
}

// Result is the complete outcome of one optimization run: the bundle
// files, held in memory until Write, plus the diagnostic report. Nothing
// touches the filesystem before Write is called, so a failed analysis
// never leaves a partial bundle behind.
type Result struct {
	Files  []File  `json:"files" toon:"files"`
	Report *Report `json:"report" toon:"report"`
}

// Write materializes the bundle under the output root.
func (r *Result) Write(outDir string) error {
	for _, f := range r.Files {
		path := filepath.Join(outDir, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// sortReport orders report slices for deterministic output.
func sortReport(r *Report) {
	sort.Slice(r.Modules, func(i, j int) bool { return r.Modules[i].Module < r.Modules[j].Module })
	sort.Strings(r.DroppedModules)
	sort.Strings(r.PrunedSymbols)
	sort.Strings(r.RemovedImports)
	sort.Slice(r.Warnings, func(i, j int) bool {
		if r.Warnings[i].Symbol != r.Warnings[j].Symbol {
			return r.Warnings[i].Symbol < r.Warnings[j].Symbol
		}
		return r.Warnings[i].Pos.Line < r.Warnings[j].Pos.Line
	})
}
