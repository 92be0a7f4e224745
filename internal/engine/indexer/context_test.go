package indexer

import (
	"testing"

	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/parser"
)

func TestContextStack(t *testing.T) {
	unit, err := parser.NewParser(parser.NewGrammarLoader()).Parse("main.py", []byte("class A:\n    class A:\n        pass\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer unit.Close()
	outer := unit.Root().NamedChild(0)
	inner := parser.ChildOfKind(outer.ChildByFieldName("body"), "class_definition")
	if outer == nil || inner == nil {
		t.Fatal("expected nested class definitions")
	}

	var stack ContextStack
	stack.Push(newFrame(1, FrameFile, naming.QualifiedName{}, nil))
	stack.Push(newFrame(2, FrameModule, naming.New("main"), nil))
	stack.Push(newFrame(3, FrameClass, naming.New("main", "A"), outer))
	stack.Push(newFrame(4, FrameClass, naming.New("main", "A", "A"), inner))

	t.Run("PopRequiresSameNode", func(t *testing.T) {
		if stack.PopIfAnchor(outer) {
			t.Fatal("outer definition must not pop the inner frame")
		}
		if !stack.PopIfAnchor(inner) || stack.Top().ID != 3 {
			t.Fatalf("expected inner frame popped, top is %+v", stack.Top())
		}
	})
	t.Run("FileAndModuleStay", func(t *testing.T) {
		if !stack.PopIfAnchor(outer) {
			t.Fatal("expected outer frame popped")
		}
		if stack.PopIfAnchor(outer) || stack.PopIfAnchor(nil) {
			t.Fatal("frames without an anchor are never popped")
		}
		if stack.Top().Kind != FrameModule {
			t.Fatalf("unexpected top frame %+v", stack.Top())
		}
	})
}

func TestNamerModuleName(t *testing.T) {
	n := NewNamer([]string{"/src"}, nil)
	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"/src/pkg/mod.py", "pkg.mod", true},
		{"/src/pkg/__init__.py", "pkg", true},
		{"/other/mod.py", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := n.ModuleName(tt.path)
			if ok != tt.ok || (ok && got.Display() != tt.want) {
				t.Fatalf("ModuleName(%q) = %q, %v; want %q, %v", tt.path, got.Display(), ok, tt.want, tt.ok)
			}
		})
	}
}
