// Package callgraph stores the directed multigraph of symbol references.
// Nodes live in the symbol index arena and are referenced by ID; edges are
// identity pairs, never embedded pointers, so cyclic reference chains
// (mutual recursion, class/method cycles) carry no ownership problems.
// The graph is rebuilt wholesale on every run.
package callgraph

import (
	"sync"

	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/pysrc"
)

// EdgeKind classifies the relationship between two symbols.
type EdgeKind string

const (
	EdgeCall        EdgeKind = "call"
	EdgeAttribute   EdgeKind = "attribute-access"
	EdgeInheritance EdgeKind = "inheritance"
	EdgeDecorator   EdgeKind = "decorator-use"
	EdgeAnnotation  EdgeKind = "type-annotation-use"
)

// String returns the string representation.
func (k EdgeKind) String() string {
	return string(k)
}

// Target is the tagged resolution outcome of a reference: either a symbol
// in the index (OK) or an unresolved marker with the raw name and a
// reason. Downstream logic branches on OK exhaustively; there is no third
// state.
type Target struct {
	OK     bool   `json:"resolved" toon:"resolved"`
	Symbol uint32 `json:"symbol,omitempty" toon:"symbol,omitempty"`
	Name   string `json:"name" toon:"name"`
	Reason string `json:"reason,omitempty" toon:"reason,omitempty"`
}

// Resolved builds a resolved target.
func Resolved(symbol uint32, name string) Target {
	return Target{OK: true, Symbol: symbol, Name: name}
}

// Unresolved builds an unresolved target with a reason.
func Unresolved(name, reason string) Target {
	return Target{Name: name, Reason: reason}
}

// Edge is one typed reference from a source symbol.
type Edge struct {
	From uint32         `json:"from" toon:"from"`
	Kind EdgeKind       `json:"kind" toon:"kind"`
	To   Target         `json:"to" toon:"to"`
	Pos  pysrc.Position `json:"pos" toon:"pos"`
}

// Graph accumulates edges keyed by source symbol. AddBatch is safe for
// concurrent use, matching the per-module partitioning of the resolve
// phase.
type Graph struct {
	idx *index.Index

	mu    sync.Mutex
	edges []Edge
	out   map[uint32][]int
}

// New creates an empty graph over the given index.
func New(idx *index.Index) *Graph {
	return &Graph{
		idx: idx,
		out: make(map[uint32][]int),
	}
}

// Index returns the symbol index the graph is built over.
func (g *Graph) Index() *index.Index {
	return g.idx
}

// AddBatch appends a partition of edges. Every edge source must exist in
// the index; resolution guarantees this by construction since edges
// originate from indexed bodies.
func (g *Graph) AddBatch(edges []Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range edges {
		idx := len(g.edges)
		g.edges = append(g.edges, e)
		g.out[e.From] = append(g.out[e.From], idx)
	}
}

// Outgoing returns the edges originating from a symbol.
func (g *Graph) Outgoing(id uint32) []Edge {
	indices := g.out[id]
	edges := make([]Edge, len(indices))
	for i, idx := range indices {
		edges[i] = g.edges[idx]
	}
	return edges
}

// Edges returns all edges. The slice is shared; callers must not mutate.
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	return len(g.edges)
}

// UnresolvedEdges returns every edge whose target did not resolve.
func (g *Graph) UnresolvedEdges() []Edge {
	var out []Edge
	for _, e := range g.edges {
		if !e.To.OK {
			out = append(out, e)
		}
	}
	return out
}

// Subclasses maps each class symbol to the classes that inherit from it,
// derived from inheritance edges. Used by the override-conservatism rule.
func (g *Graph) Subclasses() map[uint32][]uint32 {
	subs := make(map[uint32][]uint32)
	for _, e := range g.edges {
		if e.Kind != EdgeInheritance || !e.To.OK {
			continue
		}
		from := g.idx.Symbol(e.From)
		if from == nil || from.Kind != index.KindClass {
			continue
		}
		subs[e.To.Symbol] = append(subs[e.To.Symbol], e.From)
	}
	return subs
}
