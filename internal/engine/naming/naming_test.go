package naming

import (
	"os"
	"path/filepath"
	"testing"
)

func TestQualifiedName(t *testing.T) {
	t.Run("DisplayAndSerialize", func(t *testing.T) {
		qn := New("pkg", "mod").Append("Foo")
		if qn.Display() != "pkg.mod.Foo" {
			t.Fatalf("unexpected display %q", qn.Display())
		}
		want := `{"name_delimiter":".","name_elements":[{"prefix":"","name":"pkg","postfix":""},{"prefix":"","name":"mod","postfix":""},{"prefix":"","name":"Foo","postfix":""}]}`
		if qn.Serialize() != want {
			t.Fatalf("unexpected serialization %s", qn.Serialize())
		}
	})

	t.Run("PrefixPostfix", func(t *testing.T) {
		qn := New("mod").AppendElement(Element{Prefix: "int", Name: "count", Postfix: "()"})
		if qn.Display() != "mod.int count()" {
			t.Fatalf("unexpected display %q", qn.Display())
		}
	})

	t.Run("AppendDoesNotAlias", func(t *testing.T) {
		base := New("m")
		a := base.Append("a")
		b := base.Append("b")
		if a.Display() != "m.a" || b.Display() != "m.b" || base.Display() != "m" {
			t.Fatalf("append aliased: %s %s %s", a, b, base)
		}
	})

	t.Run("EqualityFollowsSerialization", func(t *testing.T) {
		a := New("m", "C")
		b, ok := ParseDotted("m.C")
		if !ok {
			t.Fatal("expected ParseDotted to succeed")
		}
		if a.Serialize() != b.Serialize() {
			t.Fatal("expected equal names")
		}
		if a.Serialize() == New("m", "D").Serialize() {
			t.Fatal("expected different names")
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		qn := New("a", "b")
		back, err := Deserialize(qn.Serialize())
		if err != nil {
			t.Fatal(err)
		}
		if back.Serialize() != qn.Serialize() {
			t.Fatalf("round trip changed name: %s", back)
		}
	})

	t.Run("Unsolved", func(t *testing.T) {
		if !Unsolved().IsUnsolved() || New("a").IsUnsolved() {
			t.Fatal("unsolved detection broken")
		}
	})
}

func TestModuleNameFromPath(t *testing.T) {
	root := t.TempDir()

	cases := []struct {
		name  string
		path  string
		roots []string
		want  string
		ok    bool
	}{
		{"virtual", VirtualFile, nil, "virtual_file", true},
		{"plain", filepath.Join(root, "pkg", "mod.py"), []string{root}, "pkg.mod", true},
		{"stub", filepath.Join(root, "pkg", "mod.pyi"), []string{root}, "pkg.mod", true},
		{"package init", filepath.Join(root, "pkg", "__init__.py"), []string{root}, "pkg", true},
		{"legacy builtin", filepath.Join(root, "__builtin__.py"), []string{root}, "builtins", true},
		{"longest root wins", filepath.Join(root, "src", "app", "main.py"), []string{root, filepath.Join(root, "src")}, "app.main", true},
		{"no root", filepath.Join(root, "x.py"), []string{filepath.Join(root, "other")}, "", false},
		{"root itself", filepath.Join(root, "__init__.py"), []string{root}, "", false},
		{"partial component is not a prefix", filepath.Join(root, "srcx", "m.py"), []string{filepath.Join(root, "src")}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ModuleNameFromPath(tc.path, tc.roots)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v (got %s)", ok, tc.ok, got)
			}
			if ok && got.Display() != tc.want {
				t.Fatalf("got %q, want %q", got.Display(), tc.want)
			}
		})
	}
}

func TestSearchRoots(t *testing.T) {
	root := t.TempDir()
	pkg := filepath.Join(root, "pkg", "sub")
	if err := os.MkdirAll(pkg, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{filepath.Join(root, "pkg"), pkg} {
		if err := os.WriteFile(filepath.Join(dir, "__init__.py"), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	roots := SearchRoots(filepath.Join(pkg, "mod.py"), []string{"", root, filepath.Join(root, "lib")})
	if len(roots) != 2 {
		t.Fatalf("expected package root plus one extra root, got %v", roots)
	}
	if roots[0] != root {
		t.Fatalf("expected package root %s first, got %s", root, roots[0])
	}

	got, ok := ModuleNameFromPath(filepath.Join(pkg, "mod.py"), roots)
	if !ok || got.Display() != "pkg.sub.mod" {
		t.Fatalf("unexpected module name %s (%v)", got, ok)
	}

	if len(SearchRoots(VirtualFile, nil)) != 0 {
		t.Fatal("virtual file has no package root")
	}
}
