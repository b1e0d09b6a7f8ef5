// Package index builds the global symbol table for a module set. The index
// is constructed once per run, after which it is frozen: resolution workers
// share it read-only, which is what makes the parallel resolve phase safe.
package index

import (
	"fmt"

	"github.com/tmajka/pyshake/pkg/pysrc"
)

// Kind classifies an indexed symbol.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindMethod   Kind = "method"
	// KindModule is the synthetic symbol representing a module's top-level
	// executable code. It keeps callees of module-level statements alive
	// once the module itself is materialized.
	KindModule Kind = "module"
)

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// ModuleScopeName is the qualified name of the synthetic module symbol.
const ModuleScopeName = "<module>"

// Symbol is one entry in the index. Identity is (module, qualified name);
// the ID is an arena address valid for the lifetime of one run.
type Symbol struct {
	ID       uint32         `json:"id" toon:"id"`
	Kind     Kind           `json:"kind" toon:"kind"`
	Module   string         `json:"module" toon:"module"`
	QualName string         `json:"name" toon:"name"`
	Class    string         `json:"class,omitempty" toon:"class,omitempty"`
	File     string         `json:"file" toon:"file"`
	Pos      pysrc.Position `json:"pos" toon:"pos"`
	Decl     *pysrc.Decl    `json:"-" toon:"-"`
}

// FQN returns the fully-qualified name in module:qualified form, the shape
// used for entrypoints and diagnostics.
func (s *Symbol) FQN() string {
	return s.Module + ":" + s.QualName
}

// DuplicateError reports two declarations claiming the same fully-qualified
// name. It is fatal: analysis cannot proceed with ambiguous identity.
type DuplicateError struct {
	FQN        string
	FirstFile  string
	FirstPos   pysrc.Position
	SecondFile string
	SecondPos  pysrc.Position
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate symbol %s: declared at %s:%d and %s:%d",
		e.FQN, e.FirstFile, e.FirstPos.Line, e.SecondFile, e.SecondPos.Line)
}

// Index is the frozen symbol table.
type Index struct {
	symbols    []*Symbol
	byFQN      map[string]uint32
	byModule   map[string][]uint32
	moduleSyms map[string]uint32
	set        *pysrc.Set
}

// Build indexes every declaration in the set. Modules are visited in
// sorted order so IDs are deterministic across runs. A duplicate
// fully-qualified name aborts with a *DuplicateError.
func Build(set *pysrc.Set) (*Index, error) {
	idx := &Index{
		byFQN:      make(map[string]uint32),
		byModule:   make(map[string][]uint32),
		moduleSyms: make(map[string]uint32),
		set:        set,
	}

	for _, name := range set.Names() {
		m := set.Modules[name]

		// Synthetic module-scope symbol first, so module-level references
		// have an owner.
		idx.add(&Symbol{
			Kind:     KindModule,
			Module:   m.Name,
			QualName: ModuleScopeName,
			File:     m.Path,
			Pos:      pysrc.Position{Line: 1},
		})

		for _, d := range m.Decls {
			if err := idx.addDecl(m, d, ""); err != nil {
				return nil, err
			}
		}
	}

	return idx, nil
}

func (idx *Index) addDecl(m *pysrc.Module, d *pysrc.Decl, prefix string) error {
	qual := d.Name
	if prefix != "" {
		qual = prefix + "." + d.Name
	}

	kind := KindFunction
	switch d.Kind {
	case pysrc.DeclClass:
		kind = KindClass
	case pysrc.DeclMethod:
		kind = KindMethod
	}

	sym := &Symbol{
		Kind:     kind,
		Module:   m.Name,
		QualName: qual,
		Class:    d.Class,
		File:     m.Path,
		Pos:      d.Pos,
		Decl:     d,
	}
	if err := idx.addChecked(sym); err != nil {
		return err
	}

	for _, child := range d.Children {
		if err := idx.addDecl(m, child, qual); err != nil {
			return err
		}
	}
	return nil
}

func (idx *Index) add(sym *Symbol) {
	sym.ID = uint32(len(idx.symbols))
	idx.symbols = append(idx.symbols, sym)
	idx.byFQN[sym.FQN()] = sym.ID
	if sym.Kind == KindModule {
		idx.moduleSyms[sym.Module] = sym.ID
	} else {
		idx.byModule[sym.Module] = append(idx.byModule[sym.Module], sym.ID)
	}
}

func (idx *Index) addChecked(sym *Symbol) error {
	if existingID, ok := idx.byFQN[sym.FQN()]; ok {
		existing := idx.symbols[existingID]
		return &DuplicateError{
			FQN:        sym.FQN(),
			FirstFile:  existing.File,
			FirstPos:   existing.Pos,
			SecondFile: sym.File,
			SecondPos:  sym.Pos,
		}
	}
	idx.add(sym)
	return nil
}

// Symbol returns the symbol at the given arena ID.
func (idx *Index) Symbol(id uint32) *Symbol {
	if int(id) >= len(idx.symbols) {
		return nil
	}
	return idx.symbols[id]
}

// Len returns the number of indexed symbols, synthetic ones included.
func (idx *Index) Len() int {
	return len(idx.symbols)
}

// Lookup finds a symbol by module:qualified name.
func (idx *Index) Lookup(fqn string) (*Symbol, bool) {
	id, ok := idx.byFQN[fqn]
	if !ok {
		return nil, false
	}
	return idx.symbols[id], true
}

// LookupIn finds a symbol by module and qualified name.
func (idx *Index) LookupIn(module, qual string) (*Symbol, bool) {
	return idx.Lookup(module + ":" + qual)
}

// ModuleScope returns the synthetic module-scope symbol for a module.
func (idx *Index) ModuleScope(module string) (*Symbol, bool) {
	id, ok := idx.moduleSyms[module]
	if !ok {
		return nil, false
	}
	return idx.symbols[id], true
}

// ModuleSymbols returns the declared (non-synthetic) symbols of a module
// in declaration order.
func (idx *Index) ModuleSymbols(module string) []*Symbol {
	ids := idx.byModule[module]
	out := make([]*Symbol, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.symbols[id])
	}
	return out
}

// Method finds a method symbol on a class within a module.
func (idx *Index) Method(module, class, method string) (*Symbol, bool) {
	return idx.Lookup(module + ":" + class + "." + method)
}

// All returns every symbol in arena order. The slice is shared; callers
// must not mutate it.
func (idx *Index) All() []*Symbol {
	return idx.symbols
}

// Set returns the module set this index was built from.
func (idx *Index) Set() *pysrc.Set {
	return idx.set
}

// HasModule reports whether the module path is part of the analyzed set.
func (idx *Index) HasModule(module string) bool {
	_, ok := idx.moduleSyms[module]
	return ok
}
