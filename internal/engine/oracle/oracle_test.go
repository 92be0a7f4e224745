package oracle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/parser"
)

// project writes files under a temporary root and opens main.
func project(t *testing.T, files map[string]string, main string) (*Oracle, *Module) {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ws := NewWorkspace(parser.NewParser(parser.NewGrammarLoader()), dir)
	t.Cleanup(ws.Close)
	m, err := ws.Open(filepath.Join(dir, filepath.FromSlash(main)))
	if err != nil {
		t.Fatalf("open %s: %v", main, err)
	}
	return New(ws), m
}

// nth returns the n-th identifier (0-based) spelled name.
func nth(t *testing.T, unit *parser.Unit, name string, n int) *sitter.Node {
	t.Helper()
	var found []*sitter.Node
	engine := parser.NewExtractorEngine(map[string]parser.NodeHandler{
		"identifier": func(ctx *parser.WalkContext, node *sitter.Node) bool {
			if ctx.Unit.Text(node) == name {
				found = append(found, node)
			}
			return false
		},
	}, nil)
	engine.Walk(&parser.WalkContext{Unit: unit}, unit.Root())
	if n >= len(found) {
		t.Fatalf("identifier %q #%d not found (have %d)", name, n, len(found))
	}
	return found[n]
}

func resolve(t *testing.T, o *Oracle, m *Module, name string, n int) []ports.Declaration {
	t.Helper()
	decls, err := o.Resolve(context.Background(), m.Unit, nth(t, m.Unit, name, n))
	if err != nil {
		t.Fatalf("resolve %s: %v", name, err)
	}
	return decls
}

func lines(decls []ports.Declaration) map[int]bool {
	out := make(map[int]bool)
	for _, d := range decls {
		out[d.Line] = true
	}
	return out
}

func TestResolveSuperMultipleInheritance(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": `class A:
    def a_method(self): pass

class B:
    def b_method(self): pass

class Baz(A, B):
    def run(self):
        super().a_method()
        super().b_method()
        super(Baz, self).b_method()
`}, "main.py")

	a := resolve(t, o, m, "a_method", 1)
	if len(a) != 1 || a[0].Kind != ports.DeclFunction || a[0].Line != 2 {
		t.Fatalf("super().a_method resolved to %v", a)
	}
	b := resolve(t, o, m, "b_method", 1)
	if len(b) != 1 || b[0].Line != 5 {
		t.Fatalf("super().b_method resolved to %v", b)
	}
	explicit := resolve(t, o, m, "b_method", 2)
	if len(explicit) != 1 || explicit[0].Line != 5 {
		t.Fatalf("super(Baz, self).b_method resolved to %v", explicit)
	}
}

func TestResolveCallSiteFanOut(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": `class A:
    def foo(self): pass

class B:
    def foo(self): pass

def call(x):
    x.foo()

call(A())
call(x=B())
`}, "main.py")

	got := lines(resolve(t, o, m, "foo", 2))
	if len(got) != 2 || !got[2] || !got[5] {
		t.Fatalf("expected A.foo and B.foo, got lines %v", got)
	}
}

func TestResolveFlowInsensitiveLocals(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": `def f(c):
    if c:
        v = 1
    else:
        v = 2
    return v
`}, "main.py")

	if got := lines(resolve(t, o, m, "v", 2)); len(got) != 2 || !got[3] || !got[5] {
		t.Fatalf("read of v should see both writes, got %v", got)
	}
	if got := resolve(t, o, m, "v", 0); len(got) != 1 || got[0].Line != 3 {
		t.Fatalf("a write resolves to itself, got %v", got)
	}
	if got := resolve(t, o, m, "c", 1); len(got) != 1 || got[0].Kind != ports.DeclParam {
		t.Fatalf("expected parameter, got %v", got)
	}
}

func TestResolveSelfAttributes(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": `class Foo:
    count = 0

    def __init__(self, bar):
        self.baz = bar

    def get(self):
        return self.baz + self.count
`}, "main.py")

	baz := resolve(t, o, m, "baz", 1)
	if len(baz) != 1 || baz[0].Kind != ports.DeclStatement || baz[0].Line != 5 {
		t.Fatalf("self.baz resolved to %v", baz)
	}
	count := resolve(t, o, m, "count", 1)
	if len(count) != 1 || count[0].Line != 2 {
		t.Fatalf("self.count resolved to %v", count)
	}
}

func TestResolveImports(t *testing.T) {
	o, m := project(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/mod.py":      "class Thing:\n    pass\n\nVALUE = 1\n",
		"main.py": `from pkg.mod import Thing
import pkg.mod
from .pkg import mod as alias
from missing import nothing

t = Thing()
pkg.mod.VALUE
alias.Thing
`,
	}, "main.py")

	thing := resolve(t, o, m, "Thing", 1)
	if len(thing) != 1 || thing[0].Kind != ports.DeclClass || thing[0].ModuleName != "pkg.mod" || thing[0].Line != 1 {
		t.Fatalf("Thing resolved to %v", thing)
	}
	mod := resolve(t, o, m, "mod", 1)
	if len(mod) != 1 || mod[0].Kind != ports.DeclModule || mod[0].FullName != "pkg.mod" {
		t.Fatalf("import pkg.mod resolved to %v", mod)
	}
	value := resolve(t, o, m, "VALUE", 0)
	if len(value) != 1 || value[0].Kind != ports.DeclStatement || value[0].Line != 4 {
		t.Fatalf("pkg.mod.VALUE resolved to %v", value)
	}
	alias := resolve(t, o, m, "Thing", 2)
	if len(alias) != 1 || alias[0].Kind != ports.DeclClass {
		t.Fatalf("relative import alias resolved to %v", alias)
	}
	if got := resolve(t, o, m, "missing", 0); len(got) != 0 {
		t.Fatalf("unknown module resolved to %v", got)
	}
	if got := resolve(t, o, m, "nothing", 0); len(got) != 0 {
		t.Fatalf("member of unknown module resolved to %v", got)
	}
}

func TestResolveBuiltinsAndStdlib(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": "import os\nprint(len(os.getcwd()))\n"}, "main.py")

	printDecl := resolve(t, o, m, "print", 0)
	if len(printDecl) != 1 || printDecl[0].HasLocation() || printDecl[0].ModuleName != "builtins" || printDecl[0].Kind != ports.DeclFunction {
		t.Fatalf("print resolved to %v", printDecl)
	}
	osDecl := resolve(t, o, m, "os", 1)
	if len(osDecl) != 1 || osDecl[0].Kind != ports.DeclModule || osDecl[0].ModulePath != "" {
		t.Fatalf("os resolved to %v", osDecl)
	}
	getcwd := resolve(t, o, m, "getcwd", 0)
	if len(getcwd) != 1 || getcwd[0].Kind != ports.DeclInstance || getcwd[0].FullName != "os.getcwd" {
		t.Fatalf("os.getcwd resolved to %v", getcwd)
	}
}

func TestOverridesOf(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": `class Base:
    def run(self): pass

class Middle(Base):
    pass

class Child(Middle):
    def run(self): pass
    def fresh(self): pass
`}, "main.py")

	ctx := context.Background()
	got, err := o.OverridesOf(ctx, m.Unit, nth(t, m.Unit, "run", 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Line != 2 {
		t.Fatalf("expected Base.run, got %v", got)
	}
	none, err := o.OverridesOf(ctx, m.Unit, nth(t, m.Unit, "fresh", 0))
	if err != nil || len(none) != 0 {
		t.Fatalf("fresh overrides nothing, got %v %v", none, err)
	}
}

func TestResolveCycles(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": `a = b
b = a
a.x

class P(Q): pass
class Q(P): pass
P().missing
`}, "main.py")

	if got := resolve(t, o, m, "x", 0); len(got) != 0 {
		t.Fatalf("expected no declarations, got %v", got)
	}
	if got := resolve(t, o, m, "missing", 0); len(got) != 0 {
		t.Fatalf("expected no declarations, got %v", got)
	}
}

func TestResolveCancelled(t *testing.T) {
	o, m := project(t, map[string]string{"main.py": "x = 1\n"}, "main.py")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := o.Resolve(ctx, m.Unit, nth(t, m.Unit, "x", 0)); err == nil {
		t.Fatal("expected context error")
	}
}
