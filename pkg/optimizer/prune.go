package optimizer

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/pysrc"
	"github.com/tmajka/pyshake/pkg/reach"
)

// pruneEdits returns deletion edits for every dead declaration in the
// module, outermost first, plus the pruned fully-qualified names for the
// report. A dead declaration's span covers its decorators and children, so
// nested symbols need no separate edits.
func pruneEdits(m *pysrc.Module, idx *index.Index, live *reach.Result) ([]pysrc.Edit, []string) {
	var edits []pysrc.Edit
	var pruned []string

	var walk func(d *pysrc.Decl, prefix string)
	walk = func(d *pysrc.Decl, prefix string) {
		qual := d.Name
		if prefix != "" {
			qual = prefix + "." + d.Name
		}
		sym, ok := idx.LookupIn(m.Name, qual)
		if !ok {
			return
		}
		if !live.IsLive(sym.ID) {
			start, end := pysrc.LineSpan(m.Source, d.StartByte, d.EndByte)
			edits = append(edits, pysrc.Delete(start, end))
			pruned = append(pruned, sym.FQN())
			return
		}
		for _, child := range d.Children {
			walk(child, qual)
		}
	}
	for _, d := range m.Decls {
		walk(d, "")
	}
	return edits, pruned
}

// passEdits keeps surviving bodies syntactically valid: when every
// statement of a live declaration's body is covered by a deletion edit,
// the whole body is replaced with a pass statement. The replacement spans
// the body, so the contained deletions are dropped when edits apply.
func passEdits(m *pysrc.Module, idx *index.Index, live *reach.Result, deletions []pysrc.Edit) []pysrc.Edit {
	covered := func(n *sitter.Node) bool {
		for _, e := range deletions {
			if len(e.Replacement) == 0 && e.Start <= n.StartByte() && e.End >= n.EndByte() {
				return true
			}
		}
		return false
	}

	var out []pysrc.Edit
	var walk func(d *pysrc.Decl, prefix string)
	walk = func(d *pysrc.Decl, prefix string) {
		qual := d.Name
		if prefix != "" {
			qual = prefix + "." + d.Name
		}
		sym, ok := idx.LookupIn(m.Name, qual)
		if !ok || !live.IsLive(sym.ID) {
			return
		}

		if d.Body != nil {
			emptied := true
			count := 0
			for i := range int(d.Body.NamedChildCount()) {
				count++
				if !covered(d.Body.NamedChild(i)) {
					emptied = false
					break
				}
			}
			if count > 0 && emptied {
				out = append(out, pysrc.Replace(d.Body.StartByte(), d.Body.EndByte(), "pass"))
			}
		}

		for _, child := range d.Children {
			walk(child, qual)
		}
	}
	for _, d := range m.Decls {
		walk(d, "")
	}
	return out
}
