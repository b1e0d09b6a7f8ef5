package reach

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmajka/pyshake/pkg/index"
	"github.com/tmajka/pyshake/pkg/pysrc"
	"github.com/tmajka/pyshake/pkg/resolve"
)

type fixture struct {
	idx *index.Index
	res *resolve.Result
}

func analyze(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	root := t.TempDir()
	var paths []string
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		paths = append(paths, path)
	}
	set, err := pysrc.LoadFiles(root, paths, nil)
	require.NoError(t, err)
	idx, err := index.Build(set)
	require.NoError(t, err)
	res, err := resolve.New(idx).Resolve(context.Background(), 1)
	require.NoError(t, err)
	return &fixture{idx: idx, res: res}
}

func (f *fixture) compute(t *testing.T, entry string) *Result {
	t.Helper()
	sym, ok := f.idx.Lookup(entry)
	require.True(t, ok, "entrypoint %s not indexed", entry)
	seeds := append([]uint32{sym.ID}, f.res.Tainted...)
	return Compute(f.res.Graph, seeds)
}

func (f *fixture) isLive(t *testing.T, r *Result, fqn string) bool {
	t.Helper()
	sym, ok := f.idx.Lookup(fqn)
	require.True(t, ok, "symbol %s not indexed", fqn)
	return r.IsLive(sym.ID)
}

func TestTransitiveCalls(t *testing.T) {
	f := analyze(t, map[string]string{
		"app.py": `def leaf():
    return 1


def mid():
    return leaf()


def entry():
    return mid()


def dead():
    return leaf()
`,
	})
	r := f.compute(t, "app:entry")

	assert.True(t, f.isLive(t, r, "app:entry"))
	assert.True(t, f.isLive(t, r, "app:mid"))
	assert.True(t, f.isLive(t, r, "app:leaf"))
	assert.False(t, f.isLive(t, r, "app:dead"))
}

func TestMethodKeepsClassAndInit(t *testing.T) {
	f := analyze(t, map[string]string{
		"ds.py": `class Frame:
    def __init__(self, data):
        self.data = data

    def head(self, n: int) -> "Frame":
        return self

    def tail(self, n: int) -> "Frame":
        return self
`,
		"app.py": `from ds import Frame


def entry(f: Frame):
    return f.head(3)
`,
	})
	r := f.compute(t, "app:entry")

	assert.True(t, f.isLive(t, r, "ds:Frame.head"))
	assert.True(t, f.isLive(t, r, "ds:Frame"))
	assert.True(t, f.isLive(t, r, "ds:Frame.__init__"))
	assert.False(t, f.isLive(t, r, "ds:Frame.tail"))
}

func TestOverrideConservatism(t *testing.T) {
	f := analyze(t, map[string]string{
		"m.py": `class Base:
    def render(self):
        pass


class Child(Base):
    def render(self):
        pass

    def extra(self):
        pass


def entry(c: Child, b: Base):
    b.render()
    c.extra()
`,
	})
	r := f.compute(t, "m:entry")

	// The call resolves on Base, but Child is live, so its override must
	// survive too.
	assert.True(t, f.isLive(t, r, "m:Base.render"))
	assert.True(t, f.isLive(t, r, "m:Child.render"))
}

func TestOverrideOnDeadSubclassStaysDead(t *testing.T) {
	f := analyze(t, map[string]string{
		"m.py": `class Base:
    def render(self):
        pass


class Unused(Base):
    def render(self):
        pass


def entry(b: Base):
    b.render()
`,
	})
	r := f.compute(t, "m:entry")

	assert.True(t, f.isLive(t, r, "m:Base.render"))
	assert.False(t, f.isLive(t, r, "m:Unused"))
	assert.False(t, f.isLive(t, r, "m:Unused.render"))
}

func TestModuleScopeMaterialized(t *testing.T) {
	f := analyze(t, map[string]string{
		"lib.py": `def setup():
    pass


def helper():
    return 1


setup()
`,
		"app.py": `from lib import helper


def entry():
    return helper()
`,
	})
	r := f.compute(t, "app:entry")

	// Importing anything from lib runs its top-level code, which calls
	// setup.
	assert.True(t, f.isLive(t, r, "lib:helper"))
	assert.True(t, f.isLive(t, r, "lib:<module>"))
	assert.True(t, f.isLive(t, r, "lib:setup"))
}

func TestNestedFunctionKeepsEnclosing(t *testing.T) {
	f := analyze(t, map[string]string{
		"app.py": `def outer():
    def inner():
        return 1
    return inner


def dead():
    return 0
`,
	})
	r := f.compute(t, "app:outer.inner")

	assert.True(t, f.isLive(t, r, "app:outer.inner"))
	assert.True(t, f.isLive(t, r, "app:outer"))
	assert.False(t, f.isLive(t, r, "app:dead"))
}

func TestMethodSeedKeepsClass(t *testing.T) {
	f := analyze(t, map[string]string{
		"app.py": `class Runner:
    def __init__(self):
        pass

    def go(self):
        return 1

    def other(self):
        return 2
`,
	})
	r := f.compute(t, "app:Runner.go")

	assert.True(t, f.isLive(t, r, "app:Runner"))
	assert.True(t, f.isLive(t, r, "app:Runner.__init__"))
	assert.False(t, f.isLive(t, r, "app:Runner.other"))
}

func TestViolationOnlyWidensLiveSet(t *testing.T) {
	const cleanBody = `def entry():
    return helper()


def helper():
    return 1


def risky(expr):
    return expr


def unrelated():
    return 2
`
	const dirtyBody = `def entry():
    return helper()


def helper():
    return 1


def risky(expr):
    return eval(expr)


def unrelated():
    return 2
`
	clean := analyze(t, map[string]string{"app.py": cleanBody})
	dirty := analyze(t, map[string]string{"app.py": dirtyBody})
	rClean := clean.compute(t, "app:entry")
	rDirty := dirty.compute(t, "app:entry")

	// The eval variant must keep everything the clean variant keeps: the
	// conservative fallback only ever adds to the live set.
	for _, sym := range clean.idx.All() {
		if clean.isLive(t, rClean, sym.FQN()) {
			assert.True(t, dirty.isLive(t, rDirty, sym.FQN()),
				"%s live without the violation but dead with it", sym.FQN())
		}
	}

	assert.False(t, clean.isLive(t, rClean, "app:risky"))
	assert.True(t, dirty.isLive(t, rDirty, "app:risky"))
	assert.Greater(t, rDirty.LiveCount(), rClean.LiveCount())
}

func TestTaintedSeeds(t *testing.T) {
	f := analyze(t, map[string]string{
		"app.py": `def entry():
    pass


def risky(name):
    return getattr(object(), name)
`,
	})
	r := f.compute(t, "app:entry")

	// risky is never called but contains a dynamic attribute access, so it
	// is seeded as always-reachable.
	assert.True(t, f.isLive(t, r, "app:risky"))
}

func TestDeadAndLiveSymbols(t *testing.T) {
	f := analyze(t, map[string]string{
		"app.py": `def entry():
    return used()


def used():
    return 1


def unused():
    return 2
`,
	})
	r := f.compute(t, "app:entry")

	dead := r.DeadSymbols("app")
	require.Len(t, dead, 1)
	assert.Equal(t, "app:unused", dead[0].FQN())

	live := r.LiveSymbols("app")
	assert.Len(t, live, 2)
}

func TestModuleLive(t *testing.T) {
	f := analyze(t, map[string]string{
		"used.py":   "def helper():\n    return 1\n",
		"orphan.py": "def never():\n    return 0\n",
		"app.py":    "from used import helper\n\n\ndef entry():\n    return helper()\n",
	})
	r := f.compute(t, "app:entry")

	assert.True(t, r.ModuleLive("app"))
	assert.True(t, r.ModuleLive("used"))
	assert.False(t, r.ModuleLive("orphan"))
}

func TestLiveCountAndClone(t *testing.T) {
	f := analyze(t, map[string]string{
		"app.py": "def entry():\n    pass\n",
	})
	r := f.compute(t, "app:entry")

	require.GreaterOrEqual(t, r.LiveCount(), 1)

	clone := r.Live()
	clone.Clear()
	assert.GreaterOrEqual(t, r.LiveCount(), 1)
}
