package pysrc

import (
	"bytes"
	"sort"
)

// Edit is a byte-span replacement against a module's original source. An
// empty replacement deletes the span. Edits are how pruning, import
// rewriting, renaming, and minification all express themselves; the
// original tree is never mutated.
type Edit struct {
	Start       uint32
	End         uint32
	Replacement []byte
}

// Delete returns an edit that removes the span.
func Delete(start, end uint32) Edit {
	return Edit{Start: start, End: end}
}

// Replace returns an edit that substitutes the span with text.
func Replace(start, end uint32, text string) Edit {
	return Edit{Start: start, End: end, Replacement: []byte(text)}
}

// Render applies edits to the module source and returns the new file
// content. Edits contained inside another edit's span are dropped (the
// outer edit wins); remaining edits must not partially overlap. Runs of
// blank lines left behind by deletions are collapsed.
func Render(m *Module, edits []Edit) []byte {
	return apply(m.Source, edits)
}

func apply(source []byte, edits []Edit) []byte {
	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].End > sorted[j].End
	})

	var out bytes.Buffer
	out.Grow(len(source))
	cursor := uint32(0)
	for _, e := range sorted {
		if e.End > uint32(len(source)) || e.Start > e.End {
			continue
		}
		if e.Start < cursor {
			// Contained in or overlapping a previously applied edit.
			continue
		}
		out.Write(source[cursor:e.Start])
		out.Write(e.Replacement)
		cursor = e.End
	}
	out.Write(source[cursor:])

	return tidy(out.Bytes())
}

// tidy normalizes whitespace damage from span deletion: leading blank
// lines go away, runs of more than two blank lines collapse, and the file
// ends with exactly one newline.
func tidy(src []byte) []byte {
	src = bytes.TrimLeft(src, "\n")

	var out bytes.Buffer
	out.Grow(len(src))
	newlines := 0
	for _, b := range src {
		if b == '\n' {
			newlines++
			if newlines > 3 {
				continue
			}
		} else {
			newlines = 0
		}
		out.WriteByte(b)
	}

	result := bytes.TrimRight(out.Bytes(), " \t\n")
	if len(result) > 0 {
		result = append(result, '\n')
	}
	return result
}

// LineSpan widens a byte span to cover whole lines, including the trailing
// newline, so deleting a declaration does not leave dangling indentation.
func LineSpan(source []byte, start, end uint32) (uint32, uint32) {
	for start > 0 && source[start-1] != '\n' {
		start--
	}
	for end < uint32(len(source)) && source[end] != '\n' {
		end++
	}
	if end < uint32(len(source)) {
		end++
	}
	return start, end
}
