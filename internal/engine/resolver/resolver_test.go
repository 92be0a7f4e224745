package resolver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/oracle"
	"pyindexer/internal/engine/parser"
)

func openProject(t *testing.T, files map[string]string, main string) (*oracle.Workspace, *parser.Unit) {
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
	ws := oracle.NewWorkspace(parser.NewParser(parser.NewGrammarLoader()), dir)
	t.Cleanup(ws.Close)
	m, err := ws.Open(filepath.Join(dir, main))
	if err != nil {
		t.Fatal(err)
	}
	return ws, m.Unit
}

func ident(t *testing.T, unit *parser.Unit, name string, n int) *sitter.Node {
	t.Helper()
	var found []*sitter.Node
	parser.NewExtractorEngine(map[string]parser.NodeHandler{
		"identifier": func(ctx *parser.WalkContext, node *sitter.Node) bool {
			if ctx.Unit.Text(node) == name {
				found = append(found, node)
			}
			return false
		},
	}, nil).Walk(&parser.WalkContext{Unit: unit}, unit.Root())
	if n >= len(found) {
		t.Fatalf("identifier %q #%d not found", name, n)
	}
	return found[n]
}

func TestShallowResolve(t *testing.T) {
	ws, unit := openProject(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/mod.py":      "class Thing:\n    pass\n",
		"main.py": `import os
import pkg.mod
from pkg.mod import Thing
from .pkg import mod as alias
import missing

class Foo:
    count = 0

    def __init__(self, bar):
        self.baz = bar

    def get(self):
        return self.baz + self.count + Foo.count

v = Thing()
print(os.path.join, v, alias, missing)
`,
	}, "main.py")
	r := NewShallow(ws)
	ctx := context.Background()

	resolve := func(t *testing.T, name string, n int) []ports.Declaration {
		t.Helper()
		decls, err := r.Resolve(ctx, unit, ident(t, unit, name, n))
		if err != nil {
			t.Fatal(err)
		}
		return decls
	}

	t.Run("SelfAttributes", func(t *testing.T) {
		baz := resolve(t, "baz", 1)
		if len(baz) != 1 || baz[0].Kind != ports.DeclStatement || baz[0].Line != 11 {
			t.Fatalf("self.baz resolved to %v", baz)
		}
		count := resolve(t, "count", 1)
		if len(count) != 1 || count[0].Line != 8 {
			t.Fatalf("self.count resolved to %v", count)
		}
	})

	t.Run("ClassAttribute", func(t *testing.T) {
		count := resolve(t, "count", 2)
		if len(count) != 1 || count[0].Line != 8 {
			t.Fatalf("Foo.count resolved to %v", count)
		}
	})

	t.Run("FromImportIsInstance", func(t *testing.T) {
		thing := resolve(t, "Thing", 1)
		if len(thing) != 1 || thing[0].Kind != ports.DeclInstance || thing[0].FullName != "pkg.mod.Thing" || thing[0].HasLocation() {
			t.Fatalf("Thing resolved to %v", thing)
		}
	})

	t.Run("Modules", func(t *testing.T) {
		mod := resolve(t, "mod", 0)
		if len(mod) != 1 || mod[0].Kind != ports.DeclModule || mod[0].FullName != "pkg.mod" || mod[0].ModulePath == "" {
			t.Fatalf("pkg.mod resolved to %v", mod)
		}
		osDecl := resolve(t, "os", 1)
		if len(osDecl) != 1 || osDecl[0].Kind != ports.DeclModule || osDecl[0].ModulePath != "" {
			t.Fatalf("os resolved to %v", osDecl)
		}
		alias := resolve(t, "alias", 1)
		if len(alias) != 1 || alias[0].FullName != "pkg.mod" {
			t.Fatalf("alias resolved to %v", alias)
		}
		if got := resolve(t, "missing", 1); len(got) != 0 {
			t.Fatalf("missing module resolved to %v", got)
		}
	})

	t.Run("ModuleAttribute", func(t *testing.T) {
		join := resolve(t, "join", 0)
		if len(join) != 1 || join[0].FullName != "os.path.join" || join[0].ModuleName != "os" {
			t.Fatalf("os.path.join resolved to %v", join)
		}
	})

	t.Run("LocalsAndBuiltins", func(t *testing.T) {
		v := resolve(t, "v", 1)
		if len(v) != 1 || v[0].Kind != ports.DeclStatement || v[0].Line != 16 {
			t.Fatalf("v resolved to %v", v)
		}
		p := resolve(t, "print", 0)
		if len(p) != 1 || p[0].ModuleName != "builtins" {
			t.Fatalf("print resolved to %v", p)
		}
		bar := resolve(t, "bar", 1)
		if len(bar) != 1 || bar[0].Kind != ports.DeclParam {
			t.Fatalf("bar resolved to %v", bar)
		}
	})

	t.Run("Cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := r.Resolve(cctx, unit, ident(t, unit, "v", 0)); err == nil {
			t.Fatal("expected context error")
		}
	})
}

func TestDeepDelegates(t *testing.T) {
	ws, unit := openProject(t, map[string]string{
		"pkg/__init__.py": "",
		"pkg/mod.py":      "class Thing:\n    def run(self): pass\n",
		"main.py": `from pkg.mod import Thing

class Sub(Thing):
    def run(self): pass
`,
	}, "main.py")
	d := NewDeep(oracle.New(ws))
	ctx := context.Background()

	thing, err := d.Resolve(ctx, unit, ident(t, unit, "Thing", 1))
	if err != nil {
		t.Fatal(err)
	}
	if len(thing) != 1 || thing[0].Kind != ports.DeclClass || thing[0].ModuleName != "pkg.mod" {
		t.Fatalf("Thing resolved to %v", thing)
	}
	over, err := d.OverridesOf(ctx, unit, ident(t, unit, "run", 0))
	if err != nil {
		t.Fatal(err)
	}
	if len(over) != 1 || over[0].FullName != "pkg.mod.run" {
		t.Fatalf("Sub.run overrides %v", over)
	}
}
