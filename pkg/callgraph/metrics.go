package callgraph

import (
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Cycle is a strongly connected group of symbols, reported by
// fully-qualified name.
type Cycle []string

// Cycles returns the recursion groups in the graph: strongly connected
// components with more than one member, plus directly self-recursive
// symbols. Only resolved edges participate.
func (g *Graph) Cycles() []Cycle {
	dg := simple.NewDirectedGraph()

	selfLoops := make(map[uint32]bool)
	for _, e := range g.edges {
		if !e.To.OK {
			continue
		}
		if e.From == e.To.Symbol {
			selfLoops[e.From] = true
			continue
		}
		from := simple.Node(int64(e.From))
		to := simple.Node(int64(e.To.Symbol))
		if dg.Node(from.ID()) == nil {
			dg.AddNode(from)
		}
		if dg.Node(to.ID()) == nil {
			dg.AddNode(to)
		}
		dg.SetEdge(dg.NewEdge(from, to))
	}

	var cycles []Cycle
	for _, scc := range topo.TarjanSCC(dg) {
		if len(scc) < 2 {
			continue
		}
		cycle := make(Cycle, 0, len(scc))
		for _, n := range scc {
			if sym := g.idx.Symbol(uint32(n.ID())); sym != nil {
				cycle = append(cycle, sym.FQN())
			}
		}
		sort.Strings(cycle)
		cycles = append(cycles, cycle)
	}

	for id := range selfLoops {
		if sym := g.idx.Symbol(id); sym != nil {
			cycles = append(cycles, Cycle{sym.FQN()})
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i][0] < cycles[j][0]
	})
	return cycles
}
