// Package minify strips docstrings and comments from Python modules. The
// strip is expressed as byte-span edits against the original source so it
// composes with pruning and renaming in a single render.
package minify

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/tmajka/pyshake/pkg/pysrc"
)

// Options selects what to strip.
type Options struct {
	Docstrings bool
	Comments   bool
}

// Strip returns edits removing the selected trivia from the module.
func Strip(m *pysrc.Module, opts Options) []pysrc.Edit {
	var edits []pysrc.Edit
	if opts.Docstrings {
		edits = append(edits, docstringEdits(m)...)
	}
	if opts.Comments {
		edits = append(edits, commentEdits(m)...)
	}
	return edits
}

// docstringEdits removes the leading string literal of the module body and
// of every declaration body.
func docstringEdits(m *pysrc.Module) []pysrc.Edit {
	var edits []pysrc.Edit

	if e, ok := docstringEdit(m, m.Tree.RootNode()); ok {
		edits = append(edits, e)
	}

	m.Walk(func(_, d *pysrc.Decl) {
		if d.Body == nil {
			return
		}
		if e, ok := docstringEdit(m, d.Body); ok {
			edits = append(edits, e)
		}
	})
	return edits
}

// docstringEdit matches a body whose first statement is a bare string.
// The edit only fires when another statement follows, so a docstring-only
// body keeps a statement and stays parseable.
func docstringEdit(m *pysrc.Module, body *sitter.Node) (pysrc.Edit, bool) {
	if body.NamedChildCount() < 2 {
		return pysrc.Edit{}, false
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() != 1 {
		return pysrc.Edit{}, false
	}
	if first.NamedChild(0).Type() != "string" {
		return pysrc.Edit{}, false
	}
	start, end := pysrc.LineSpan(m.Source, first.StartByte(), first.EndByte())
	return pysrc.Delete(start, end), true
}

// commentEdits removes comment nodes. A comment alone on its line takes
// the line with it; a trailing comment takes its preceding spaces.
func commentEdits(m *pysrc.Module) []pysrc.Edit {
	var edits []pysrc.Edit
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == "comment" {
			edits = append(edits, commentEdit(m.Source, n))
			return
		}
		for i := range int(n.ChildCount()) {
			walk(n.Child(i))
		}
	}
	walk(m.Tree.RootNode())
	return edits
}

func commentEdit(source []byte, n *sitter.Node) pysrc.Edit {
	start, end := n.StartByte(), n.EndByte()

	lineStart := start
	for lineStart > 0 && source[lineStart-1] != '\n' {
		lineStart--
	}
	onlyComment := true
	for i := lineStart; i < start; i++ {
		if source[i] != ' ' && source[i] != '\t' {
			onlyComment = false
			break
		}
	}

	if onlyComment {
		s, e := pysrc.LineSpan(source, start, end)
		return pysrc.Delete(s, e)
	}

	for start > 0 && (source[start-1] == ' ' || source[start-1] == '\t') {
		start--
	}
	return pysrc.Delete(start, end)
}
