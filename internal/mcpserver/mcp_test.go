package mcpserver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePyTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	tc, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", result.Content[0])
	return tc.Text
}

func TestNewServer(t *testing.T) {
	s := NewServer("1.2.3")
	require.NotNil(t, s)
}

func TestHandleOptimize(t *testing.T) {
	root := writePyTree(t, map[string]string{
		"util.py": "def helper():\n    return 1\n\n\ndef unused():\n    return 2\n",
		"app.py":  "from util import helper\n\n\ndef handler():\n    return helper()\n",
	})

	result, _, err := handleOptimize(context.Background(), nil, OptimizeInput{
		Path:       root,
		Entrypoint: "app:handler",
	})
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := textOf(t, result)
	assert.Contains(t, text, "app__ma")
	assert.Contains(t, text, "util:unused")
	assert.Contains(t, text, "estimated_tokens")

	// Dry run: nothing written next to the sources.
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestHandleOptimizeRequiresEntrypoint(t *testing.T) {
	result, _, err := handleOptimize(context.Background(), nil, OptimizeInput{})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "entrypoint is required")
}

func TestHandleOptimizeBadEntrypoint(t *testing.T) {
	root := writePyTree(t, map[string]string{
		"app.py": "def handler():\n    return 1\n",
	})

	result, _, err := handleOptimize(context.Background(), nil, OptimizeInput{
		Path:       root,
		Entrypoint: "app:missing",
	})
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textOf(t, result), "no such symbol")
}

func TestHandleOptimizeCustomSuffix(t *testing.T) {
	root := writePyTree(t, map[string]string{
		"app.py": "def handler():\n    return 1\n",
	})

	result, _, err := handleOptimize(context.Background(), nil, OptimizeInput{
		Path:       root,
		Entrypoint: "app:handler",
		Suffix:     "__x",
	})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "app__x:handler__x")
}

func TestHandleListSymbols(t *testing.T) {
	root := writePyTree(t, map[string]string{
		"shapes.py": "class Circle:\n    def area(self):\n        return 0\n\n\ndef describe():\n    pass\n",
		"other.py":  "def extra():\n    pass\n",
	})

	result, _, err := handleListSymbols(context.Background(), nil, ListSymbolsInput{Path: root})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	assert.Contains(t, text, "shapes:Circle")
	assert.Contains(t, text, "shapes:Circle.area")
	assert.Contains(t, text, "other:extra")

	// Module filter.
	result, _, err = handleListSymbols(context.Background(), nil, ListSymbolsInput{Path: root, Module: "other"})
	require.NoError(t, err)
	text = textOf(t, result)
	assert.Contains(t, text, "other:extra")
	assert.NotContains(t, text, "shapes:Circle")

	// Kind filter.
	result, _, err = handleListSymbols(context.Background(), nil, ListSymbolsInput{Path: root, Kind: "class"})
	require.NoError(t, err)
	text = textOf(t, result)
	assert.Contains(t, text, "shapes:Circle")
	assert.NotContains(t, text, "describe")
}

func TestHandleCallGraph(t *testing.T) {
	root := writePyTree(t, map[string]string{
		"util.py": "def fmt(x):\n    return str(x)\n",
		"app.py":  "import json\nfrom util import fmt\n\n\ndef run():\n    json.dumps({})\n    return fmt(3)\n",
	})

	result, _, err := handleCallGraph(context.Background(), nil, CallGraphInput{Path: root})
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := textOf(t, result)
	assert.Contains(t, text, "app:run")
	assert.Contains(t, text, "util:fmt")

	// Unresolved filter keeps only the external call.
	result, _, err = handleCallGraph(context.Background(), nil, CallGraphInput{Path: root, Unresolved: true})
	require.NoError(t, err)
	text = textOf(t, result)
	assert.Contains(t, text, "json.dumps")
	assert.NotContains(t, text, "util:fmt")

	// Symbol filter.
	result, _, err = handleCallGraph(context.Background(), nil, CallGraphInput{Path: root, Symbol: "app:run"})
	require.NoError(t, err)
	assert.Contains(t, textOf(t, result), "app:run")

	result, _, err = handleCallGraph(context.Background(), nil, CallGraphInput{Path: root, Symbol: "app:nope"})
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSplitFrontmatter(t *testing.T) {
	desc, body := splitFrontmatter("---\ndescription: Shrink a bundle\n---\n\nDo the thing.\n")
	assert.Equal(t, "Shrink a bundle", desc)
	assert.Equal(t, "Do the thing.\n", body)

	desc, body = splitFrontmatter("plain prompt\n")
	assert.Empty(t, desc)
	assert.Equal(t, "plain prompt\n", body)

	desc, body = splitFrontmatter("---\nunclosed")
	assert.Empty(t, desc)
	assert.Equal(t, "---\nunclosed", body)
}

func TestScanRootNoFiles(t *testing.T) {
	_, _, err := scanRoot(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no Python files")
}
