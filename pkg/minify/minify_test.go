package minify

import (
	"testing"

	"github.com/tmajka/pyshake/pkg/parser"
	"github.com/tmajka/pyshake/pkg/pysrc"
)

func parse(t *testing.T, source string) *pysrc.Module {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)
	m, err := pysrc.FromSource(p, "m", "m.py", false, []byte(source))
	if err != nil {
		t.Fatalf("FromSource: %v", err)
	}
	return m
}

func strip(t *testing.T, source string, opts Options) string {
	t.Helper()
	m := parse(t, source)
	return string(pysrc.Render(m, Strip(m, opts)))
}

func TestStripModuleDocstring(t *testing.T) {
	got := strip(t, "\"\"\"Module doc.\"\"\"\n\nx = 1\n", Options{Docstrings: true})
	want := "x = 1\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripFunctionDocstring(t *testing.T) {
	src := `def f():
    """Does a thing."""
    return 1
`
	got := strip(t, src, Options{Docstrings: true})
	want := "def f():\n    return 1\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripClassAndMethodDocstrings(t *testing.T) {
	src := `class C:
    """Class doc."""

    def m(self):
        """Method doc."""
        return 1
`
	got := strip(t, src, Options{Docstrings: true})
	want := "class C:\n\n    def m(self):\n        return 1\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDocstringOnlyBodyKept(t *testing.T) {
	src := `def stub():
    """Placeholder."""
`
	got := strip(t, src, Options{Docstrings: true})
	if got != src {
		t.Errorf("docstring-only body changed: %q", got)
	}
}

func TestStripWholeLineComment(t *testing.T) {
	src := "# setup\nx = 1\n# teardown\n"
	got := strip(t, src, Options{Comments: true})
	want := "x = 1\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripTrailingComment(t *testing.T) {
	src := "x = 1  # the answer\ny = 2\n"
	got := strip(t, src, Options{Comments: true})
	want := "x = 1\ny = 2\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripIndentedComment(t *testing.T) {
	src := "def f():\n    # explain\n    return 1\n"
	got := strip(t, src, Options{Comments: true})
	want := "def f():\n    return 1\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStripNothingByDefault(t *testing.T) {
	src := "\"\"\"Doc.\"\"\"\n# comment\nx = 1\n"
	got := strip(t, src, Options{})
	if got != src {
		t.Errorf("no-op strip changed source: %q", got)
	}
}

func TestStringLiteralsUntouched(t *testing.T) {
	src := "def f():\n    return \"# not a comment\"\n"
	got := strip(t, src, Options{Docstrings: true, Comments: true})
	if got != src {
		t.Errorf("string literal changed: %q", got)
	}
}
