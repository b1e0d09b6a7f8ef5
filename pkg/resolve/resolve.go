// Package resolve classifies every reference in every callable body against
// the frozen symbol index, producing the typed edges the call graph is
// built from. Resolution is a pure function of the index and the
// per-module import tables; the analyzed code is never executed.
package resolve

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmajka/pyshake/internal/fileproc"
	"github.com/tmajka/pyshake/pkg/callgraph"
	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/pysrc"
)

// Warning codes surfaced in the diagnostic report.
const (
	WarnWildcardImport   = "wildcard-import"
	WarnDynamicImport    = "dynamic-import"
	WarnDynamicExec      = "dynamic-exec"
	WarnDynamicAttribute = "dynamic-attribute"
	WarnUntypedReceiver  = "untyped-receiver"
)

// Warning is a non-fatal finding: a closed-world violation or an
// unresolvable reference that forced conservative treatment.
type Warning struct {
	Code    string         `json:"code" toon:"code"`
	Message string         `json:"message" toon:"message"`
	Symbol  string         `json:"symbol" toon:"symbol"`
	File    string         `json:"file" toon:"file"`
	Pos     pysrc.Position `json:"pos" toon:"pos"`
}

// Result is the output of the resolution phase.
type Result struct {
	Graph *callgraph.Graph
	// Tainted lists symbols marked conservatively always-reachable because
	// they contain a closed-world violation.
	Tainted  []uint32
	Warnings []Warning
}

// moduleEnv is the name environment of one module: import bindings plus
// top-level declarations.
type moduleEnv struct {
	m         *pysrc.Module
	imports   map[string]*pysrc.Import // alias -> binding
	byModule  map[string]*pysrc.Import // plain-import dotted path -> binding
	wildcards []*pysrc.Import
	locals    map[string]uint32 // top-level declaration name -> symbol ID
}

// Resolver holds the frozen index and the derived per-module environments.
type Resolver struct {
	idx         *index.Index
	envs        map[string]*moduleEnv
	methodNames map[string][]uint32 // method name -> candidate symbol IDs
}

// New builds a resolver over a frozen index.
func New(idx *index.Index) *Resolver {
	r := &Resolver{
		idx:         idx,
		envs:        make(map[string]*moduleEnv),
		methodNames: make(map[string][]uint32),
	}

	set := idx.Set()
	for _, name := range set.Names() {
		m := set.Modules[name]
		env := &moduleEnv{
			m:        m,
			imports:  make(map[string]*pysrc.Import),
			byModule: make(map[string]*pysrc.Import),
			locals:   make(map[string]uint32),
		}
		for _, imp := range m.Imports {
			if imp.Wildcard {
				env.wildcards = append(env.wildcards, imp)
				continue
			}
			env.imports[imp.Alias] = imp
			if !imp.FromForm {
				env.byModule[imp.Module] = imp
			}
		}
		for _, sym := range idx.ModuleSymbols(name) {
			if sym.Decl != nil && sym.Decl.Kind != pysrc.DeclMethod && sym.QualName == sym.Decl.Name {
				env.locals[sym.Decl.Name] = sym.ID
			}
		}
		r.envs[name] = env
	}

	for _, sym := range idx.All() {
		if sym.Kind == index.KindMethod {
			name := sym.Decl.Name
			r.methodNames[name] = append(r.methodNames[name], sym.ID)
		}
	}

	return r
}

// Resolve walks every symbol body in parallel per module and returns the
// completed call graph. The index is read-only during this phase, so the
// per-module workers share it without synchronization.
func (r *Resolver) Resolve(ctx context.Context, workers int) (*Result, error) {
	graph := callgraph.New(r.idx)
	result := &Result{Graph: graph}

	type moduleOut struct {
		tainted  []uint32
		warnings []Warning
	}
	outs := make(chan moduleOut, r.idx.Set().Len())

	names := r.idx.Set().Names()
	errs := fileproc.ForEach(ctx, names, workers, func(name string) error {
		edges, tainted, warnings := r.resolveModule(name)
		graph.AddBatch(edges)
		outs <- moduleOut{tainted: tainted, warnings: warnings}
		return nil
	})
	if errs != nil {
		return nil, fmt.Errorf("resolution failed: %w", errs)
	}
	close(outs)

	for out := range outs {
		result.Tainted = append(result.Tainted, out.tainted...)
		result.Warnings = append(result.Warnings, out.warnings...)
	}
	return result, nil
}

// resolveModule produces the edge partition for one module.
func (r *Resolver) resolveModule(name string) ([]callgraph.Edge, []uint32, []Warning) {
	env := r.envs[name]
	var edges []callgraph.Edge
	var tainted []uint32
	var warnings []Warning

	moduleScope, _ := r.idx.ModuleScope(name)

	// Wildcard imports break the closed world at module scope: warn, taint
	// the module scope, and keep every symbol of an internal target module
	// plausibly referenced.
	for _, imp := range env.wildcards {
		warnings = append(warnings, Warning{
			Code:    WarnWildcardImport,
			Message: fmt.Sprintf("wildcard import from %s defeats static resolution", imp.Module),
			Symbol:  moduleScope.FQN(),
			File:    env.m.Path,
			Pos:     imp.Pos,
		})
		tainted = append(tainted, moduleScope.ID)
		for _, target := range r.idx.ModuleSymbols(imp.Module) {
			edges = append(edges, callgraph.Edge{
				From: moduleScope.ID,
				Kind: callgraph.EdgeAttribute,
				To:   callgraph.Resolved(target.ID, target.QualName),
				Pos:  imp.Pos,
			})
		}
	}

	for _, sym := range append([]*index.Symbol{moduleScope}, r.idx.ModuleSymbols(name)...) {
		b := &bodyResolver{r: r, env: env, sym: sym}
		b.resolve()
		edges = append(edges, b.edges...)
		if b.tainted {
			tainted = append(tainted, sym.ID)
		}
		warnings = append(warnings, b.warnings...)
	}

	return edges, tainted, warnings
}

// resolveClassIn resolves a class name in the context of a module: a local
// class declaration, a from-import of a class in another analyzed module,
// or a dotted mod.Class reference through a plain import. Returns nil when
// the name is external or not a class.
func (r *Resolver) resolveClassIn(module, name string) *index.Symbol {
	env := r.envs[module]
	if env == nil || name == "" {
		return nil
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		prefix, clsName := name[:i], name[i+1:]
		var target string
		if imp, ok := env.byModule[prefix]; ok {
			target = imp.Module
		} else if imp, ok := env.imports[prefix]; ok && imp.Symbol == "" {
			target = imp.Module
		}
		if target == "" {
			return nil
		}
		if sym, ok := r.idx.LookupIn(target, clsName); ok && sym.Kind == index.KindClass {
			return sym
		}
		return nil
	}
	if id, ok := env.locals[name]; ok {
		if sym := r.idx.Symbol(id); sym.Kind == index.KindClass {
			return sym
		}
		return nil
	}
	if imp, ok := env.imports[name]; ok && imp.Symbol != "" {
		if sym, ok := r.idx.LookupIn(imp.Module, imp.Symbol); ok && sym.Kind == index.KindClass {
			return sym
		}
	}
	return nil
}

// lookupMethod finds a method on a class, walking the base-class chain in
// declaration order until found or exhausted.
func (r *Resolver) lookupMethod(class *index.Symbol, name string) *index.Symbol {
	return r.lookupMethodFrom(class, name, make(map[uint32]bool), true)
}

// lookupBaseMethod starts the walk at the class's bases, for super() calls.
func (r *Resolver) lookupBaseMethod(class *index.Symbol, name string) *index.Symbol {
	return r.lookupMethodFrom(class, name, make(map[uint32]bool), false)
}

func (r *Resolver) lookupMethodFrom(class *index.Symbol, name string, seen map[uint32]bool, includeSelf bool) *index.Symbol {
	if class == nil || seen[class.ID] {
		return nil
	}
	seen[class.ID] = true

	if includeSelf {
		if m, ok := r.idx.Method(class.Module, class.QualName, name); ok {
			return m
		}
	}
	if class.Decl == nil {
		return nil
	}
	for _, base := range class.Decl.Bases {
		baseSym := r.resolveClassIn(class.Module, base)
		if m := r.lookupMethodFrom(baseSym, name, seen, true); m != nil {
			return m
		}
	}
	return nil
}
