// Package pysrc models a set of parsed Python modules: their declarations,
// import bindings, and source spans. It is the boundary between the
// tree-sitter parse layer and the resolution engine; everything downstream
// works on this model and never mutates the underlying trees.
package pysrc

import (
	"sort"

	sitter "github.com/smacker/go-tree-sitter"
)

// Position is a 1-based line and 0-based column in a source file.
type Position struct {
	Line uint32 `json:"line" toon:"line"`
	Col  uint32 `json:"col" toon:"col"`
}

// DeclKind classifies a declaration.
type DeclKind string

const (
	DeclFunction DeclKind = "function"
	DeclClass    DeclKind = "class"
	DeclMethod   DeclKind = "method"
)

// String returns the string representation.
func (k DeclKind) String() string {
	return string(k)
}

// Param is a declared parameter with its optional type annotation.
// Annotations are kept as raw strings; they are matched textually against
// class names, never evaluated.
type Param struct {
	Name       string
	Annotation string
}

// Decorator is a decorator application above a declaration.
type Decorator struct {
	// Name is the decorator expression with the leading @ stripped and any
	// call arguments removed, e.g. "lru_cache" for "@lru_cache(maxsize=1)".
	Name string
	Pos  Position
}

// Decl is a function, class, or method declaration. Classes carry their
// methods and nested classes as children; functions carry nested
// declarations. The byte span covers the whole declaration including
// decorators, so deleting the span removes the declaration completely.
type Decl struct {
	Kind       DeclKind
	Name       string
	Class      string // enclosing class name, set for methods
	Bases      []string
	Decorators []Decorator
	Params     []Param
	Returns    string
	Pos        Position
	End        Position
	StartByte  uint32
	EndByte    uint32
	Node       *sitter.Node // the function_definition / class_definition node
	Body       *sitter.Node
	Children   []*Decl
}

// Import is one import binding. A single import statement may produce
// several bindings (e.g. "from m import a, b"); they share the statement
// span.
type Import struct {
	Alias     string // local name bound by this import ("" for wildcard)
	Module    string // absolute dotted module path
	Symbol    string // imported symbol name for from-imports, "" otherwise
	Wildcard  bool
	FromForm  bool // "from m import x" as opposed to "import m"
	Pos       Position
	StartByte uint32 // span of the whole import statement
	EndByte   uint32
}

// Module is one parsed source file.
type Module struct {
	Name      string // dotted module path, e.g. "myapp.utils.io"
	Path      string // absolute input file path
	RelPath   string // path relative to the set root, for output layout
	IsPackage bool   // true for __init__.py
	Source    []byte
	Tree      *sitter.Tree
	Decls     []*Decl
	Imports   []*Import
}

// Set is the module set handed to the optimizer: every parsed module keyed
// by dotted path.
type Set struct {
	Root    string
	Modules map[string]*Module
}

// NewSet creates an empty module set rooted at the given directory.
func NewSet(root string) *Set {
	return &Set{
		Root:    root,
		Modules: make(map[string]*Module),
	}
}

// Add inserts a module into the set.
func (s *Set) Add(m *Module) {
	s.Modules[m.Name] = m
}

// Get returns the module with the given dotted path, or nil.
func (s *Set) Get(name string) *Module {
	return s.Modules[name]
}

// Names returns all module paths in sorted order for deterministic output.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Modules))
	for name := range s.Modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of modules in the set.
func (s *Set) Len() int {
	return len(s.Modules)
}

// Walk visits every declaration in the module depth-first, parents before
// children.
func (m *Module) Walk(fn func(parent, d *Decl)) {
	var visit func(parent, d *Decl)
	visit = func(parent, d *Decl) {
		fn(parent, d)
		for _, child := range d.Children {
			visit(d, child)
		}
	}
	for _, d := range m.Decls {
		visit(nil, d)
	}
}
