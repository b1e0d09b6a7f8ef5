package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Optimize.Suffix != DefaultSuffix {
		t.Errorf("default suffix = %q, want %q", cfg.Optimize.Suffix, DefaultSuffix)
	}
	if cfg.Optimize.OutDir != "optimized" {
		t.Errorf("default out_dir = %q", cfg.Optimize.OutDir)
	}
	if !cfg.Optimize.Recursive {
		t.Error("recursive should default to true")
	}
	if cfg.Output.Format != "text" {
		t.Errorf("default format = %q", cfg.Output.Format)
	}
	if !cfg.Exclude.Gitignore {
		t.Error("gitignore should default to true")
	}
	if len(cfg.Exclude.Patterns) == 0 || len(cfg.Exclude.Dirs) == 0 {
		t.Error("default exclusions missing")
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyshake.toml")
	content := `[optimize]
entrypoint = "app:main"
suffix = "__opt"
out_dir = "out"
keep_docstrings = true
workers = 4

[exclude]
patterns = ["skip_*.py"]

[output]
format = "json"
color = false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Optimize.Entrypoint != "app:main" {
		t.Errorf("entrypoint = %q", cfg.Optimize.Entrypoint)
	}
	if cfg.Optimize.Suffix != "__opt" {
		t.Errorf("suffix = %q", cfg.Optimize.Suffix)
	}
	if cfg.Optimize.OutDir != "out" {
		t.Errorf("out_dir = %q", cfg.Optimize.OutDir)
	}
	if !cfg.Optimize.KeepDocstrings {
		t.Error("keep_docstrings not loaded")
	}
	if cfg.Optimize.Workers != 4 {
		t.Errorf("workers = %d", cfg.Optimize.Workers)
	}
	if len(cfg.Exclude.Patterns) != 1 || cfg.Exclude.Patterns[0] != "skip_*.py" {
		t.Errorf("patterns = %v", cfg.Exclude.Patterns)
	}
	if cfg.Output.Format != "json" || cfg.Output.Color {
		t.Errorf("output = %+v", cfg.Output)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyshake.yaml")
	content := `optimize:
  entrypoint: "svc:handler"
  suffix: "__y"
output:
  format: markdown
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Optimize.Entrypoint != "svc:handler" || cfg.Optimize.Suffix != "__y" {
		t.Errorf("optimize = %+v", cfg.Optimize)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyshake.json")
	content := `{"optimize": {"entrypoint": "app:run"}, "output": {"format": "toon"}}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Optimize.Entrypoint != "app:run" {
		t.Errorf("entrypoint = %q", cfg.Optimize.Entrypoint)
	}
	if cfg.Output.Format != "toon" {
		t.Errorf("format = %q", cfg.Output.Format)
	}
}

func TestLoadEmptySuffixFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pyshake.toml")
	content := `[optimize]
suffix = ""
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Optimize.Suffix != DefaultSuffix {
		t.Errorf("suffix = %q, want fallback %q", cfg.Optimize.Suffix, DefaultSuffix)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("[optimize\nbroken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadOrDefault(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(cwd)

	// No config anywhere: defaults.
	cfg := LoadOrDefault()
	if cfg.Optimize.Suffix != DefaultSuffix {
		t.Errorf("suffix = %q", cfg.Optimize.Suffix)
	}

	// A pyshake.toml in the working directory wins.
	content := "[optimize]\nsuffix = \"__found\"\n"
	if err := os.WriteFile("pyshake.toml", []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg = LoadOrDefault()
	if cfg.Optimize.Suffix != "__found" {
		t.Errorf("suffix = %q, want __found", cfg.Optimize.Suffix)
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("src", "app.py"), false},
		{filepath.Join("src", "__pycache__", "app.py"), true},
		{filepath.Join(".venv", "lib", "mod.py"), true},
		{filepath.Join("src", "test_app.py"), true},
		{filepath.Join("src", "app_test.py"), true},
		{filepath.Join("src", "conftest.py"), true},
		{filepath.Join("src", "contest.py"), false},
	}
	for _, tt := range tests {
		if got := cfg.ShouldExclude(tt.path); got != tt.want {
			t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
