package pysrc

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tmajka/pyshake/internal/fileproc"
	"github.com/tmajka/pyshake/pkg/parser"
)

// LoadFiles parses the given Python files into a module set. Module paths
// are derived from each file's location relative to root: "a/b/c.py"
// becomes "a.b.c" and "a/b/__init__.py" becomes "a.b". Parsing runs in
// parallel with one parser per worker; the returned set is complete and
// read-only for the rest of the pipeline.
func LoadFiles(root string, files []string, onProgress func()) (*Set, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid root %s: %w", root, err)
	}

	modules, errs := fileproc.MapFiles(files, func(p *parser.Parser, path string) (*Module, error) {
		return loadOne(p, absRoot, path)
	}, onProgress)
	if errs != nil {
		return nil, errs
	}

	set := NewSet(absRoot)
	for _, m := range modules {
		if existing := set.Get(m.Name); existing != nil {
			return nil, fmt.Errorf("module %s defined by both %s and %s", m.Name, existing.Path, m.Path)
		}
		set.Add(m)
	}
	return set, nil
}

func loadOne(p *parser.Parser, root, path string) (*Module, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("file %s is outside the module root %s", path, root)
	}

	name, isPackage, err := ModuleName(rel)
	if err != nil {
		return nil, err
	}

	result, err := p.ParseFile(absPath)
	if err != nil {
		return nil, err
	}

	m := &Module{
		Name:      name,
		Path:      absPath,
		RelPath:   rel,
		IsPackage: isPackage,
		Source:    result.Source,
		Tree:      result.Tree,
	}
	extract(m)
	return m, nil
}

// FromSource parses raw source into a module with the given identity. Used
// when a transformation pass needs a fresh tree over rewritten content.
func FromSource(p *parser.Parser, name, path string, isPackage bool, source []byte) (*Module, error) {
	result, err := p.Parse(source, path)
	if err != nil {
		return nil, err
	}
	m := &Module{
		Name:      name,
		Path:      path,
		IsPackage: isPackage,
		Source:    result.Source,
		Tree:      result.Tree,
	}
	extract(m)
	return m, nil
}

// ModuleName converts a root-relative file path into a dotted module path.
// The second return reports whether the file is a package __init__.
func ModuleName(rel string) (string, bool, error) {
	rel = filepath.ToSlash(rel)
	ext := filepath.Ext(rel)
	if parser.DetectLanguage(rel) != parser.LangPython {
		return "", false, fmt.Errorf("not a Python source file: %s", rel)
	}
	trimmed := strings.TrimSuffix(rel, ext)

	isPackage := false
	if base := filepath.Base(trimmed); base == "__init__" {
		isPackage = true
		trimmed = strings.TrimSuffix(trimmed, "__init__")
		trimmed = strings.TrimSuffix(trimmed, "/")
	}

	name := strings.ReplaceAll(trimmed, "/", ".")
	if name == "" && !isPackage {
		return "", false, fmt.Errorf("cannot derive module path from %s", rel)
	}
	return name, isPackage, nil
}
