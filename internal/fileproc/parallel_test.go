package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/tmajka/pyshake/pkg/parser"
)

func createPyFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestWorkers(t *testing.T) {
	if got := Workers(4); got != 4 {
		t.Errorf("Workers(4) = %d", got)
	}
	want := runtime.NumCPU() * DefaultWorkerMultiplier
	if got := Workers(0); got != want {
		t.Errorf("Workers(0) = %d, want %d", got, want)
	}
	if got := Workers(-1); got != want {
		t.Errorf("Workers(-1) = %d, want %d", got, want)
	}
}

func TestMapFiles(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 20; i++ {
		files = append(files, createPyFile(t, dir, fmt.Sprintf("m%d.py", i), "x = 1\n"))
	}

	var progress atomic.Int32
	results, errs := MapFiles(files, func(p *parser.Parser, path string) (string, error) {
		if _, err := p.ParseFile(path); err != nil {
			return "", err
		}
		return filepath.Base(path), nil
	}, func() { progress.Add(1) })

	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != 20 {
		t.Errorf("got %d results, want 20", len(results))
	}
	if progress.Load() != 20 {
		t.Errorf("progress calls = %d, want 20", progress.Load())
	}

	sort.Strings(results)
	if results[0] != "m0.py" {
		t.Errorf("results = %v", results[:3])
	}
}

func TestMapFilesNParserPerWorker(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for i := 0; i < 5; i++ {
		files = append(files, createPyFile(t, dir, fmt.Sprintf("s%d.py", i), "y = 2\n"))
	}

	// A single worker must reuse one parser across its whole batch.
	seen := make(map[*parser.Parser]bool)
	results, errs := MapFilesN(files, 1, func(p *parser.Parser, path string) (int, error) {
		seen[p] = true
		if _, err := p.ParseFile(path); err != nil {
			return 0, err
		}
		return 1, nil
	}, nil)

	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
	if len(seen) != 1 {
		t.Errorf("single worker used %d parsers, want 1", len(seen))
	}
}

func TestMapFilesCollectsErrors(t *testing.T) {
	dir := t.TempDir()
	good := createPyFile(t, dir, "good.py", "x = 1\n")
	missing := filepath.Join(dir, "missing.py")

	results, errs := MapFiles([]string{good, missing}, func(p *parser.Parser, path string) (int, error) {
		if _, err := os.Stat(path); err != nil {
			return 0, err
		}
		return 1, nil
	}, nil)

	if errs == nil || !errs.HasErrors() {
		t.Fatal("expected collected errors")
	}
	if len(errs.Errors) != 1 || errs.Errors[0].Path != missing {
		t.Errorf("errors = %+v", errs.Errors)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want 1 partial result", len(results))
	}
}

func TestMapFilesEmpty(t *testing.T) {
	results, errs := MapFiles(nil, func(p *parser.Parser, path string) (int, error) {
		return 0, nil
	}, nil)
	if results != nil || errs != nil {
		t.Errorf("empty input should be a no-op, got %v %v", results, errs)
	}
}

func TestForEach(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var sum atomic.Int64

	errs := ForEach(context.Background(), items, 2, func(n int) error {
		sum.Add(int64(n))
		return nil
	})
	if errs != nil {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if sum.Load() != 15 {
		t.Errorf("sum = %d, want 15", sum.Load())
	}
}

func TestForEachCollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	errs := ForEach(context.Background(), []string{"a", "b"}, 1, func(s string) error {
		if s == "b" {
			return boom
		}
		return nil
	})
	if errs == nil || !errs.HasErrors() {
		t.Fatal("expected collected errors")
	}
	if len(errs.Errors) != 1 || !errors.Is(errs.Errors[0].Err, boom) {
		t.Errorf("errors = %+v", errs.Errors)
	}
}

func TestForEachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Int32
	items := make([]int, 100)
	errs := ForEach(ctx, items, 1, func(int) error {
		ran.Add(1)
		return nil
	})

	if errs == nil {
		t.Fatal("cancelled context should surface an error")
	}
	if int(ran.Load()) == len(items) {
		t.Error("all items ran despite cancellation")
	}
}

func TestProcessingErrorsMessage(t *testing.T) {
	errs := &ProcessingErrors{}
	errs.Add("a.py", errors.New("parse failed"))
	if got := errs.Error(); got != "a.py: parse failed" {
		t.Errorf("single error message = %q", got)
	}

	errs.Add("b.py", errors.New("io failed"))
	if got := errs.Error(); got == "" {
		t.Error("multi error message empty")
	}
}
