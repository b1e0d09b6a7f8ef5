package scanner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tmajka/pyshake/pkg/config"
)

func writeTestTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func relPaths(t *testing.T, root string, files []string) []string {
	t.Helper()
	var out []string
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func contains(paths []string, want string) bool {
	for _, p := range paths {
		if p == want {
			return true
		}
	}
	return false
}

func TestNewScanner(t *testing.T) {
	s := NewScanner(nil)
	if s.config == nil {
		t.Error("nil config should fall back to defaults")
	}

	cfg := config.DefaultConfig()
	s = NewScanner(cfg)
	if s.config != cfg {
		t.Error("explicit config not retained")
	}
}

func TestScanDirPythonOnly(t *testing.T) {
	root := writeTestTree(t, map[string]string{
		"app.py":        "x = 1\n",
		"lib/util.py":   "y = 2\n",
		"lib/native.go": "package lib\n",
		"README.md":     "# readme\n",
	})

	s := NewScanner(config.DefaultConfig())
	files, err := s.ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}

	rels := relPaths(t, root, files)
	if len(rels) != 2 {
		t.Fatalf("got %v, want 2 Python files", rels)
	}
	if !contains(rels, "app.py") || !contains(rels, "lib/util.py") {
		t.Errorf("missing expected files: %v", rels)
	}
}

func TestScanDirExcludesDirs(t *testing.T) {
	root := writeTestTree(t, map[string]string{
		"app.py":               "x = 1\n",
		"__pycache__/app.py":   "cached\n",
		".venv/lib/site.py":    "z = 3\n",
		"build/generated.py":   "g = 4\n",
		"src/__pycache__/m.py": "m\n",
		"src/mod.py":           "ok\n",
	})

	s := NewScanner(config.DefaultConfig())
	files, err := s.ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}

	rels := relPaths(t, root, files)
	for _, rel := range rels {
		if strings.Contains(rel, "__pycache__") || strings.Contains(rel, ".venv") || strings.HasPrefix(rel, "build/") {
			t.Errorf("excluded dir leaked: %s", rel)
		}
	}
	if !contains(rels, "app.py") || !contains(rels, "src/mod.py") {
		t.Errorf("missing expected files: %v", rels)
	}
}

func TestScanDirExcludesTestPatterns(t *testing.T) {
	root := writeTestTree(t, map[string]string{
		"app.py":          "x = 1\n",
		"test_app.py":     "t = 1\n",
		"app_test.py":     "t = 2\n",
		"conftest.py":     "c = 1\n",
		"sub/test_sub.py": "t = 3\n",
	})

	s := NewScanner(config.DefaultConfig())
	files, err := s.ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}

	rels := relPaths(t, root, files)
	if len(rels) != 1 || rels[0] != "app.py" {
		t.Errorf("got %v, want only app.py", rels)
	}
}

func TestScanDirNonRecursive(t *testing.T) {
	root := writeTestTree(t, map[string]string{
		"top.py":      "x = 1\n",
		"sub/deep.py": "y = 2\n",
	})

	cfg := config.DefaultConfig()
	cfg.Optimize.Recursive = false
	s := NewScanner(cfg)
	files, err := s.ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}

	rels := relPaths(t, root, files)
	if len(rels) != 1 || rels[0] != "top.py" {
		t.Errorf("got %v, want only top.py", rels)
	}
}

func TestScanDirGitignore(t *testing.T) {
	root := writeTestTree(t, map[string]string{
		"app.py":       "x = 1\n",
		"generated.py": "g = 1\n",
		".gitignore":   "generated.py\n",
		".git/HEAD":    "ref: refs/heads/main\n",
	})

	s := NewScanner(config.DefaultConfig())
	files, err := s.ScanDir(root)
	if err != nil {
		t.Fatalf("ScanDir: %v", err)
	}

	rels := relPaths(t, root, files)
	if contains(rels, "generated.py") {
		t.Errorf("gitignored file leaked: %v", rels)
	}
	if !contains(rels, "app.py") {
		t.Errorf("missing app.py: %v", rels)
	}
}

func TestScanFile(t *testing.T) {
	root := writeTestTree(t, map[string]string{
		"app.py":      "x = 1\n",
		"test_app.py": "t = 1\n",
		"notes.txt":   "hi\n",
	})

	s := NewScanner(config.DefaultConfig())

	ok, err := s.ScanFile(filepath.Join(root, "app.py"))
	if err != nil || !ok {
		t.Errorf("app.py: ok=%v err=%v", ok, err)
	}
	ok, err = s.ScanFile(filepath.Join(root, "test_app.py"))
	if err != nil || ok {
		t.Errorf("test_app.py should be excluded: ok=%v err=%v", ok, err)
	}
	ok, err = s.ScanFile(filepath.Join(root, "notes.txt"))
	if err != nil || ok {
		t.Errorf("notes.txt should be skipped: ok=%v err=%v", ok, err)
	}
	if _, err := s.ScanFile(filepath.Join(root, "absent.py")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFilterBySize(t *testing.T) {
	root := writeTestTree(t, map[string]string{
		"small.py": "x = 1\n",
		"big.py":   strings.Repeat("# padding\n", 1000),
	})
	files := []string{
		filepath.Join(root, "small.py"),
		filepath.Join(root, "big.py"),
		filepath.Join(root, "gone.py"),
	}

	filtered, skipped := FilterBySize(files, 100)
	if len(filtered) != 1 || skipped != 2 {
		t.Errorf("filtered=%v skipped=%d", filtered, skipped)
	}

	all, skipped := FilterBySize(files, 0)
	if len(all) != 3 || skipped != 0 {
		t.Errorf("zero limit should pass everything: %v %d", all, skipped)
	}
}
