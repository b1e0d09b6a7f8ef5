package parser

import (
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"app.py", LangPython},
		{"script.PYW", LangPython},
		{"dir/mod.py", LangPython},
		{"main.go", LangUnknown},
		{"README.md", LangUnknown},
		{"noext", LangUnknown},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.path); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte("def f():\n    return 1\n"), "f.py")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.Tree.RootNode().Type() != "module" {
		t.Errorf("root type = %q", result.Tree.RootNode().Type())
	}

	defs := FindNodesByType(result.Tree.RootNode(), result.Source, "function_definition")
	if len(defs) != 1 {
		t.Fatalf("got %d function definitions, want 1", len(defs))
	}
	name := defs[0].ChildByFieldName("name")
	if GetNodeText(name, result.Source) != "f" {
		t.Errorf("function name = %q", GetNodeText(name, result.Source))
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.py")
	if err := os.WriteFile(path, []byte("x = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := New()
	defer p.Close()

	result, err := p.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if result.Path != path {
		t.Errorf("path = %q", result.Path)
	}

	if _, err := p.ParseFile(filepath.Join(dir, "notes.txt")); err == nil {
		t.Error("expected error for non-Python file")
	}
}

func TestWalkStopsDescent(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte("def f():\n    def g():\n        pass\n"), "f.py")
	if err != nil {
		t.Fatal(err)
	}

	var visited []string
	Walk(result.Tree.RootNode(), result.Source, func(n *sitter.Node, _ []byte) bool {
		if n.Type() == "function_definition" {
			visited = append(visited, GetNodeText(n.ChildByFieldName("name"), result.Source))
			return false
		}
		return true
	})
	if len(visited) != 1 || visited[0] != "f" {
		t.Errorf("visited = %v, want [f]", visited)
	}
}

func TestGetNodeTextNil(t *testing.T) {
	if GetNodeText(nil, []byte("x")) != "" {
		t.Error("nil node should yield empty text")
	}
}
