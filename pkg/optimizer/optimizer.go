// Package optimizer runs the whole-program optimization pipeline: load
// and index the module set, resolve references into a call graph, compute
// reachability from the entrypoint, then prune, rename, and re-link the
// surviving modules into an output bundle.
package optimizer

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/zeebo/blake3"

	"github.com/tmajka/pyshake/pkg/analyzer"
	"github.com/tmajka/pyshake/pkg/config"
	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/minify"
	"github.com/tmajka/pyshake/pkg/parser"
	"github.com/tmajka/pyshake/pkg/pysrc"
	"github.com/tmajka/pyshake/pkg/reach"
	"github.com/tmajka/pyshake/pkg/resolve"
)

// EntrypointError is fatal: analysis does not run and nothing is written.
type EntrypointError struct {
	Entrypoint string
	Reason     string
}

func (e *EntrypointError) Error() string {
	return fmt.Sprintf("entrypoint %q: %s", e.Entrypoint, e.Reason)
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithEntrypoint sets the reachability root, in module:function or
// module:Class.method form.
func WithEntrypoint(ep string) Option {
	return func(o *Optimizer) { o.entrypoint = ep }
}

// WithSuffix overrides the rename suffix.
func WithSuffix(s string) Option {
	return func(o *Optimizer) { o.suffix = s }
}

// WithKeepDocstrings disables docstring stripping.
func WithKeepDocstrings(keep bool) Option {
	return func(o *Optimizer) { o.keepDocstrings = keep }
}

// WithKeepComments disables comment stripping.
func WithKeepComments(keep bool) Option {
	return func(o *Optimizer) { o.keepComments = keep }
}

// WithWorkers caps analysis parallelism. Zero derives from CPU count.
func WithWorkers(n int) Option {
	return func(o *Optimizer) { o.workers = n }
}

// Optimizer drives one optimization run. It is stateless between runs;
// every Analyze recomputes the index, graph, and live set from scratch.
type Optimizer struct {
	root           string
	entrypoint     string
	suffix         string
	keepDocstrings bool
	keepComments   bool
	workers        int

	parser *parser.Parser
}

var _ analyzer.FileAnalyzer[*Result] = (*Optimizer)(nil)

// New creates an optimizer rooted at the given source directory.
func New(root string, opts ...Option) *Optimizer {
	o := &Optimizer{
		root:   root,
		suffix: config.DefaultSuffix,
		parser: parser.New(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Close releases the parser.
func (o *Optimizer) Close() {
	o.parser.Close()
}

// Analyze runs the pipeline over the given Python files and returns the
// bundle. The filesystem is untouched; call Result.Write to emit it.
func (o *Optimizer) Analyze(ctx context.Context, files []string) (*Result, error) {
	tracker := analyzer.TrackerFromContext(ctx)
	tick := func() {
		if tracker != nil {
			tracker.Tick("parse")
		}
	}
	if tracker != nil {
		tracker.SetTotal(len(files))
	}

	set, err := pysrc.LoadFiles(o.root, files, tick)
	if err != nil {
		return nil, err
	}

	idx, err := index.Build(set)
	if err != nil {
		return nil, err
	}

	entry, err := o.resolveEntrypoint(idx)
	if err != nil {
		return nil, err
	}

	res, err := resolve.New(idx).Resolve(ctx, o.workers)
	if err != nil {
		return nil, err
	}

	seeds := append([]uint32{entry.ID}, res.Tainted...)
	live := reach.Compute(res.Graph, seeds)

	var surviving, dropped []string
	for _, name := range set.Names() {
		if live.ModuleLive(name) {
			surviving = append(surviving, name)
		} else {
			dropped = append(dropped, name)
		}
	}

	rm, err := buildRenameMap(surviving, o.suffix, entry)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Report: &Report{
			Entrypoint:        entry.FQN(),
			RenamedEntrypoint: rm.Module(entry.Module) + ":" + rm.EntryNew,
			Suffix:            o.suffix,
			DroppedModules:    dropped,
			Warnings:          res.Warnings,
			RenameMap:         rm.Mapping(),
		},
	}

	for _, name := range surviving {
		m := set.Modules[name]
		data, mr, err := o.emitModule(m, idx, live, rm, result.Report)
		if err != nil {
			return nil, fmt.Errorf("emitting %s: %w", name, err)
		}
		result.Files = append(result.Files, File{Path: mr.OutputPath, Data: data})
		result.Report.Modules = append(result.Report.Modules, mr)
	}

	sortReport(result.Report)
	return result, nil
}

// resolveEntrypoint validates the entrypoint against the index. Any
// callable qualifies: a top-level function, a method, or a nested
// function named by its dotted qualified name.
func (o *Optimizer) resolveEntrypoint(idx *index.Index) (*index.Symbol, error) {
	ep := o.entrypoint
	if ep == "" {
		return nil, &EntrypointError{Entrypoint: ep, Reason: "entrypoint is required"}
	}
	if !strings.Contains(ep, ":") {
		return nil, &EntrypointError{Entrypoint: ep, Reason: "expected module.path:qualified.name form"}
	}
	sym, ok := idx.Lookup(ep)
	if !ok {
		return nil, &EntrypointError{Entrypoint: ep, Reason: "no such symbol in the analyzed modules"}
	}
	if sym.Kind != index.KindFunction && sym.Kind != index.KindMethod {
		return nil, &EntrypointError{Entrypoint: ep, Reason: fmt.Sprintf("symbol is a %s, want a function or method", sym.Kind)}
	}
	return sym, nil
}

// emitModule transforms one surviving module into its output bytes. The
// transform is two renders: prune and strip against the original tree,
// then reparse so the import rewriter and renamer see only surviving code.
func (o *Optimizer) emitModule(m *pysrc.Module, idx *index.Index, live *reach.Result, rm *RenameMap, report *Report) ([]byte, ModuleReport, error) {
	deletions, prunedFQNs := pruneEdits(m, idx, live)
	deletions = append(deletions, minify.Strip(m, minify.Options{
		Docstrings: !o.keepDocstrings,
		Comments:   !o.keepComments,
	})...)
	edits := append(deletions, passEdits(m, idx, live, deletions)...)

	intermediate := pysrc.Render(m, edits)

	reparsed, err := pysrc.FromSource(o.parser, m.Name, m.Path, m.IsPackage, intermediate)
	if err != nil {
		return nil, ModuleReport{}, err
	}

	linkEdits, removed := importEdits(reparsed, rm, idx)
	if m.Name == rm.EntryModule {
		linkEdits = append(linkEdits, entrypointEdits(reparsed, rm)...)
	} else if strings.Contains(rm.EntryOld, ".") {
		linkEdits = append(linkEdits, entryAttrEdits(reparsed, rm)...)
	}
	out := pysrc.Render(reparsed, linkEdits)

	report.PrunedSymbols = append(report.PrunedSymbols, prunedFQNs...)
	report.RemovedImports = append(report.RemovedImports, removed...)

	total := len(idx.ModuleSymbols(m.Name))
	liveCount := len(live.LiveSymbols(m.Name))
	digest := blake3.Sum256(out)
	mr := ModuleReport{
		Module:        m.Name,
		Renamed:       rm.Module(m.Name),
		OutputPath:    rm.Path(m),
		SymbolsTotal:  total,
		SymbolsLive:   liveCount,
		SymbolsPruned: total - liveCount,
		BytesIn:       len(m.Source),
		BytesOut:      len(out),
		Digest:        hex.EncodeToString(digest[:]),
	}
	return out, mr, nil
}

// entrypointEdits renames the entrypoint in its defining module: the def
// itself plus every reference to it. The rewrite is uniform syntactic
// substitution on the entrypoint's own name, the last segment of its
// qualified name, matching how module segments are renamed. For a method
// or nested entrypoint the attribute side of accesses is substituted too,
// since that is how a method is reached; for a plain function an
// attribute of the same name belongs to some other object.
func entrypointEdits(m *pysrc.Module, rm *RenameMap) []pysrc.Edit {
	oldName := rm.EntryOld
	dotted := false
	if i := strings.LastIndexByte(oldName, '.'); i >= 0 {
		oldName = oldName[i+1:]
		dotted = true
	}
	newName := oldName + rm.suffix

	var edits []pysrc.Edit
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "import_statement", "import_from_statement":
			return
		case "identifier":
			if parser.GetNodeText(n, m.Source) == oldName {
				edits = append(edits, pysrc.Replace(n.StartByte(), n.EndByte(), newName))
			}
			return
		case "attribute":
			walk(n.ChildByFieldName("object"))
			if dotted {
				walk(n.ChildByFieldName("attribute"))
			}
			return
		}
		for i := range int(n.NamedChildCount()) {
			walk(n.NamedChild(i))
		}
	}
	walk(m.Tree.RootNode())
	return edits
}

// entryAttrEdits renames method-entrypoint call sites in the other
// surviving modules: every attribute access spelling the method name is
// substituted, mirroring the rename in the defining module.
func entryAttrEdits(m *pysrc.Module, rm *RenameMap) []pysrc.Edit {
	oldName := rm.EntryOld[strings.LastIndexByte(rm.EntryOld, '.')+1:]
	newName := oldName + rm.suffix

	var edits []pysrc.Edit
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "import_statement", "import_from_statement":
			return
		case "attribute":
			if attr := n.ChildByFieldName("attribute"); attr != nil &&
				parser.GetNodeText(attr, m.Source) == oldName {
				edits = append(edits, pysrc.Replace(attr.StartByte(), attr.EndByte(), newName))
			}
			walk(n.ChildByFieldName("object"))
			return
		}
		for i := range int(n.NamedChildCount()) {
			walk(n.NamedChild(i))
		}
	}
	walk(m.Tree.RootNode())
	return edits
}
