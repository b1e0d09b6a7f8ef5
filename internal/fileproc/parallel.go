// Package fileproc provides concurrent file processing for the optimizer
// pipeline. Parsing and per-module indexing are embarrassingly parallel;
// everything here fans work out over a bounded pool and joins at a barrier
// before the results are handed to the next stage.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/tmajka/pyshake/pkg/parser"
)

// ProcessingError records a failure for one input file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ProcessingErrors collects failures across the pool.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is applied to NumCPU for the worker count.
// 2x works well for the mixed I/O and CGO parse workload.
const DefaultWorkerMultiplier = 2

// ProgressFunc is called after each file is processed.
type ProgressFunc func()

// Workers resolves a configured worker count, defaulting to 2x NumCPU.
func Workers(n int) int {
	if n > 0 {
		return n
	}
	return runtime.NumCPU() * DefaultWorkerMultiplier
}

// MapFiles processes files in parallel, calling fn for each file with its
// worker's parser. Results arrive in arbitrary order. All failures are
// collected; the optimizer treats any failure as fatal, so no partial
// results are silently dropped.
func MapFiles[T any](files []string, fn func(*parser.Parser, string) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	return MapFilesN(files, 0, fn, onProgress)
}

// MapFilesN is MapFiles with an explicit worker count (<= 0 means default).
// Each worker owns one parser for its whole batch; tree-sitter parsers are
// CGO objects and are not safe to share across goroutines.
func MapFilesN[T any](files []string, maxWorkers int, fn func(*parser.Parser, string) (T, error), onProgress ProgressFunc) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	results := make([]T, 0, len(files))
	errs := &ProcessingErrors{}
	var mu sync.Mutex

	workers := Workers(maxWorkers)
	if workers > len(files) {
		workers = len(files)
	}
	paths := make(chan string)

	p := pool.New().WithMaxGoroutines(workers)
	for range workers {
		p.Go(func() {
			psr := parser.New()
			defer psr.Close()

			for path := range paths {
				result, err := fn(psr, path)
				if onProgress != nil {
					onProgress()
				}
				if err != nil {
					errs.Add(path, err)
					continue
				}

				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}
		})
	}
	for _, path := range files {
		paths <- path
	}
	close(paths)
	p.Wait()

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// ForEach runs fn for each item in parallel without a parser. Used for the
// resolution phase, where workers share the frozen index read-only.
func ForEach[S any](ctx context.Context, items []S, maxWorkers int, fn func(S) error) *ProcessingErrors {
	if len(items) == 0 {
		return nil
	}

	errs := &ProcessingErrors{}
	p := pool.New().WithMaxGoroutines(Workers(maxWorkers)).WithContext(ctx)
	for _, item := range items {
		p.Go(func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := fn(item); err != nil {
				errs.Add(fmt.Sprintf("%v", item), err)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		errs.Add("", err)
	}

	if !errs.HasErrors() {
		return nil
	}
	return errs
}
