// Package reach computes the live symbol set: a breadth-first traversal of
// resolved edges from the seeds, interleaved with liveness widening rules
// until a fixpoint. Liveness is monotone, symbols are only ever added, so
// the fixpoint is reached in at most a few passes over the set.
package reach

import (
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/tmajka/pyshake/pkg/callgraph"
	"github.com/tmajka/pyshake/pkg/index"
)

// Result is the computed live set over one call graph.
type Result struct {
	graph *callgraph.Graph
	live  *roaring.Bitmap
	seeds []uint32
}

// Compute runs reachability from the seeds, normally the entrypoint plus
// every tainted symbol. The widening rules applied between traversal
// rounds:
//
//   - a live nested symbol keeps its enclosing declaration alive, so a
//     live method keeps its class and a live nested function keeps the
//     function it is defined in;
//   - a live class keeps its __init__ alive, since instantiation precedes
//     any method call;
//   - a live method on a live class keeps overrides of it on live
//     subclasses alive (dispatch may pick the subclass at runtime);
//   - any live symbol materializes its module's top-level code.
func Compute(g *callgraph.Graph, seeds []uint32) *Result {
	idx := g.Index()
	live := roaring.New()
	var queue []uint32

	enqueue := func(id uint32) {
		if !live.Contains(id) {
			live.Add(id)
			queue = append(queue, id)
		}
	}
	for _, s := range seeds {
		enqueue(s)
	}

	subclasses := transitiveSubclasses(g)

	for {
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, e := range g.Outgoing(id) {
				if e.To.OK {
					enqueue(e.To.Symbol)
				}
			}
		}

		var adds []uint32
		it := live.Iterator()
		for it.HasNext() {
			id := it.Next()
			sym := idx.Symbol(id)
			if sym == nil {
				continue
			}

			switch sym.Kind {
			case index.KindMethod:
				adds = append(adds, liveOverrides(idx, live, subclasses, sym)...)
			case index.KindClass:
				if init, ok := idx.Method(sym.Module, sym.QualName, "__init__"); ok && !live.Contains(init.ID) {
					adds = append(adds, init.ID)
				}
			}

			// Enclosing declarations survive with their live children: the
			// pruner deletes whole declaration spans, nested code included.
			if i := strings.LastIndexByte(sym.QualName, '.'); i >= 0 {
				if parent, ok := idx.LookupIn(sym.Module, sym.QualName[:i]); ok && !live.Contains(parent.ID) {
					adds = append(adds, parent.ID)
				}
			}

			if sym.Kind != index.KindModule {
				if scope, ok := idx.ModuleScope(sym.Module); ok && !live.Contains(scope.ID) {
					adds = append(adds, scope.ID)
				}
			}
		}

		if len(adds) == 0 {
			break
		}
		for _, id := range adds {
			enqueue(id)
		}
	}

	return &Result{graph: g, live: live, seeds: seeds}
}

// ownerClass resolves a method symbol to its class symbol.
func ownerClass(idx *index.Index, method *index.Symbol) *index.Symbol {
	if method.Decl == nil {
		return nil
	}
	classQual := strings.TrimSuffix(method.QualName, "."+method.Decl.Name)
	cls, ok := idx.LookupIn(method.Module, classQual)
	if !ok {
		return nil
	}
	return cls
}

// liveOverrides finds overrides of a live method declared on live
// transitive subclasses of its class.
func liveOverrides(idx *index.Index, live *roaring.Bitmap, subclasses map[uint32][]uint32, method *index.Symbol) []uint32 {
	cls := ownerClass(idx, method)
	if cls == nil {
		return nil
	}
	var adds []uint32
	for _, subID := range subclasses[cls.ID] {
		if !live.Contains(subID) {
			continue
		}
		sub := idx.Symbol(subID)
		if sub == nil {
			continue
		}
		if override, ok := idx.Method(sub.Module, sub.QualName, method.Decl.Name); ok && !live.Contains(override.ID) {
			adds = append(adds, override.ID)
		}
	}
	return adds
}

// transitiveSubclasses expands the direct subclass relation to its
// transitive closure per base class.
func transitiveSubclasses(g *callgraph.Graph) map[uint32][]uint32 {
	direct := g.Subclasses()
	out := make(map[uint32][]uint32, len(direct))
	for base := range direct {
		seen := make(map[uint32]bool)
		stack := append([]uint32(nil), direct[base]...)
		var all []uint32
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if seen[id] {
				continue
			}
			seen[id] = true
			all = append(all, id)
			stack = append(stack, direct[id]...)
		}
		out[base] = all
	}
	return out
}

// IsLive reports whether a symbol is in the live set.
func (r *Result) IsLive(id uint32) bool {
	return r.live.Contains(id)
}

// Live returns a copy of the live bitmap.
func (r *Result) Live() *roaring.Bitmap {
	return r.live.Clone()
}

// LiveCount returns the number of live symbols.
func (r *Result) LiveCount() int {
	return int(r.live.GetCardinality())
}

// Seeds returns the seed symbols reachability started from.
func (r *Result) Seeds() []uint32 {
	return r.seeds
}

// DeadSymbols returns the symbols of one module that are not live,
// synthetic module scopes excluded, in declaration order.
func (r *Result) DeadSymbols(module string) []*index.Symbol {
	var dead []*index.Symbol
	for _, sym := range r.graph.Index().ModuleSymbols(module) {
		if !r.live.Contains(sym.ID) {
			dead = append(dead, sym)
		}
	}
	return dead
}

// LiveSymbols returns the live declared symbols of one module in
// declaration order.
func (r *Result) LiveSymbols(module string) []*index.Symbol {
	var out []*index.Symbol
	for _, sym := range r.graph.Index().ModuleSymbols(module) {
		if r.live.Contains(sym.ID) {
			out = append(out, sym)
		}
	}
	return out
}

// ModuleLive reports whether any symbol of the module is live, meaning the
// module survives pruning.
func (r *Result) ModuleLive(module string) bool {
	idx := r.graph.Index()
	if scope, ok := idx.ModuleScope(module); ok && r.live.Contains(scope.ID) {
		return true
	}
	for _, sym := range idx.ModuleSymbols(module) {
		if r.live.Contains(sym.ID) {
			return true
		}
	}
	return false
}
