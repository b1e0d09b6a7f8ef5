package optimizer

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/parser"
	"github.com/tmajka/pyshake/pkg/pysrc"
)

// importEdits rewrites the import statements of a surviving module against
// the rename map and drops bindings no longer referenced by the surviving
// code. The module must be the reparsed post-prune tree, so usage checks
// see only surviving statements. Returns the edits plus descriptions of
// removed imports for the report.
func importEdits(m *pysrc.Module, rm *RenameMap, idx *index.Index) ([]pysrc.Edit, []string) {
	var edits []pysrc.Edit
	var removed []string

	// Bindings of one source statement share a start byte.
	groups := make(map[uint32][]*pysrc.Import)
	var order []uint32
	for _, imp := range m.Imports {
		if _, ok := groups[imp.StartByte]; !ok {
			order = append(order, imp.StartByte)
		}
		groups[imp.StartByte] = append(groups[imp.StartByte], imp)
	}

	for _, start := range order {
		group := groups[start]
		stmt := group[0]

		var text string
		var dropped []string
		if stmt.FromForm || stmt.Wildcard {
			text, dropped = rewriteFromImport(m, group, rm, idx)
		} else {
			text, dropped = rewritePlainImport(m, group, rm, idx, &edits)
		}
		removed = append(removed, dropped...)

		original := string(m.Source[stmt.StartByte:stmt.EndByte])
		if text == original {
			continue
		}
		if text == "" {
			s, e := pysrc.LineSpan(m.Source, stmt.StartByte, stmt.EndByte)
			edits = append(edits, pysrc.Delete(s, e))
			continue
		}
		edits = append(edits, pysrc.Replace(stmt.StartByte, stmt.EndByte, text))
	}

	return edits, removed
}

// rewriteFromImport rebuilds a from-import statement, renaming the target
// module and dropping unused names. An empty result deletes the statement.
func rewriteFromImport(m *pysrc.Module, group []*pysrc.Import, rm *RenameMap, idx *index.Index) (string, []string) {
	target := group[0].Module
	internal := idx.HasModule(target)

	var items []string
	var dropped []string
	for _, imp := range group {
		if imp.Wildcard {
			items = append(items, "*")
			continue
		}
		if !nameUsed(m, imp.Alias) {
			dropped = append(dropped, fmt.Sprintf("%s: unused import %s from %s", m.Name, imp.Alias, target))
			continue
		}
		item := imp.Symbol
		// The entrypoint keeps its call sites valid through an alias.
		if internal && target == rm.EntryModule && imp.Symbol == rm.EntryOld {
			item = rm.EntryNew + " as " + imp.Alias
		} else if imp.Alias != imp.Symbol {
			item = imp.Symbol + " as " + imp.Alias
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return "", dropped
	}

	module := target
	if internal {
		module = rm.Module(target)
	}
	return "from " + module + " import " + strings.Join(items, ", "), dropped
}

// rewritePlainImport rebuilds an import statement. Renamed single-segment
// modules keep their original name through an alias; renamed dotted
// modules are followed by attribute-path rewrites in the body.
func rewritePlainImport(m *pysrc.Module, group []*pysrc.Import, rm *RenameMap, idx *index.Index, edits *[]pysrc.Edit) (string, []string) {
	var items []string
	var dropped []string

	for _, imp := range group {
		aliased := imp.Alias != firstSegment(imp.Module)
		refName := imp.Alias
		if !aliased && strings.Contains(imp.Module, ".") {
			refName = firstSegment(imp.Module)
		}
		if !nameUsed(m, refName) {
			dropped = append(dropped, fmt.Sprintf("%s: unused import %s", m.Name, imp.Module))
			continue
		}

		if !idx.HasModule(imp.Module) || !rm.Has(imp.Module) {
			if aliased {
				items = append(items, imp.Module+" as "+imp.Alias)
			} else {
				items = append(items, imp.Module)
			}
			continue
		}

		renamed := rm.Module(imp.Module)
		switch {
		case aliased:
			items = append(items, renamed+" as "+imp.Alias)
		case !strings.Contains(imp.Module, "."):
			items = append(items, renamed+" as "+imp.Module)
		default:
			// Dotted form has no alias to hide behind: rewrite the
			// attribute paths that spell the module out.
			items = append(items, renamed)
			*edits = append(*edits, dottedPathEdits(m, imp.Module, renamed)...)
		}
	}

	if len(items) == 0 {
		return "", dropped
	}
	return "import " + strings.Join(items, ", "), dropped
}

// nameUsed reports whether an identifier occurs anywhere outside import
// statements. Shadowed or unrelated occurrences count; dropping an import
// is only safe when the name never appears.
func nameUsed(m *pysrc.Module, name string) bool {
	found := false
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found || n == nil {
			return
		}
		switch n.Type() {
		case "import_statement", "import_from_statement":
			return
		case "identifier":
			if parser.GetNodeText(n, m.Source) == name {
				found = true
			}
			return
		}
		for i := range int(n.NamedChildCount()) {
			walk(n.NamedChild(i))
		}
	}
	walk(m.Tree.RootNode())
	return found
}

// dottedPathEdits rewrites attribute chains that spell a dotted module
// path, e.g. a.b.c.f() after import a.b.c becomes a__ma.b__ma.c__ma.f().
func dottedPathEdits(m *pysrc.Module, old, renamed string) []pysrc.Edit {
	var out []pysrc.Edit
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch n.Type() {
		case "import_statement", "import_from_statement":
			return
		case "attribute":
			if parser.GetNodeText(n, m.Source) == old {
				out = append(out, pysrc.Replace(n.StartByte(), n.EndByte(), renamed))
				return
			}
		}
		for i := range int(n.NamedChildCount()) {
			walk(n.NamedChild(i))
		}
	}
	walk(m.Tree.RootNode())
	return out
}

func firstSegment(module string) string {
	if idx := strings.IndexByte(module, '.'); idx >= 0 {
		return module[:idx]
	}
	return module
}
