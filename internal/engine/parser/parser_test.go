package parser

import (
	"bytes"
	"strings"
	"testing"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

func parse(t *testing.T, src string) *Unit {
	t.Helper()
	p := NewParser(NewGrammarLoader())
	unit, err := p.Parse("sample.py", []byte(src))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	t.Cleanup(unit.Close)
	return unit
}

func findKind(root *sitter.Node, kind string) *sitter.Node {
	var found *sitter.Node
	engine := NewExtractorEngine(nil, nil)
	engine.EnterAny = func(ctx *WalkContext, node *sitter.Node) bool {
		if found == nil && node.Kind() == kind {
			found = node
		}
		return found != nil
	}
	engine.Walk(&WalkContext{}, root)
	return found
}

func TestSupportedPaths(t *testing.T) {
	p := NewParser(NewGrammarLoader("pyw"))
	for path, want := range map[string]bool{
		"a.py":      true,
		"stubs.pyi": true,
		"gui.pyw":   true,
		"main.go":   false,
		"README":    false,
	} {
		if got := p.IsSupportedPath(path); got != want {
			t.Errorf("IsSupportedPath(%q) = %v, want %v", path, got, want)
		}
	}
	if strings.Join(p.SupportedExtensions(), ",") != ".py,.pyi,.pyw" {
		t.Errorf("unexpected extensions %v", p.SupportedExtensions())
	}
}

func TestUnitSpan(t *testing.T) {
	t.Run("SingleToken", func(t *testing.T) {
		unit := parse(t, "x = 1\n")
		id := findKind(unit.Root(), "identifier")
		if got := unit.Span(id).String(); got != "[1:1|1:1]" {
			t.Fatalf("unexpected span %s", got)
		}
	})

	t.Run("CodePointColumns", func(t *testing.T) {
		unit := parse(t, "s = 'ü'; name = s\n")
		var last *sitter.Node
		engine := NewExtractorEngine(map[string]NodeHandler{
			"identifier": func(ctx *WalkContext, node *sitter.Node) bool {
				if ctx.Unit.Text(node) == "name" {
					last = node
				}
				return false
			},
		}, nil)
		engine.Walk(&WalkContext{Unit: unit}, unit.Root())
		if last == nil {
			t.Fatal("identifier not found")
		}
		if got := unit.Span(last).String(); got != "[1:10|1:13]" {
			t.Fatalf("unexpected span %s", got)
		}
	})

	t.Run("MultiLineString", func(t *testing.T) {
		unit := parse(t, "doc = \"\"\"a\nb\"\"\"\n")
		str := findKind(unit.Root(), "string")
		span := unit.Span(str)
		if !span.MultiLine() || span.String() != "[1:7|2:4]" {
			t.Fatalf("unexpected span %s", span)
		}
	})
}

func TestEngineOrder(t *testing.T) {
	unit := parse(t, "def f(a):\n    return a\n")

	t.Run("EnterExitNesting", func(t *testing.T) {
		var events []string
		engine := NewExtractorEngine(
			map[string]NodeHandler{"function_definition": func(ctx *WalkContext, node *sitter.Node) bool {
				events = append(events, "enter")
				return false
			}},
			map[string]NodeHandler{"function_definition": func(ctx *WalkContext, node *sitter.Node) bool {
				events = append(events, "exit")
				return false
			}},
		)
		engine.EnterAny = func(ctx *WalkContext, node *sitter.Node) bool {
			if node.Kind() == "return_statement" {
				events = append(events, "return")
			}
			return false
		}
		engine.Walk(&WalkContext{Unit: unit}, unit.Root())
		if strings.Join(events, ",") != "enter,return,exit" {
			t.Fatalf("unexpected events %v", events)
		}
	})

	t.Run("DescendOverridesChildren", func(t *testing.T) {
		var seen []string
		engine := NewExtractorEngine(map[string]NodeHandler{
			"function_definition": func(ctx *WalkContext, node *sitter.Node) bool {
				ctx.Descend(node.ChildByFieldName("body"))
				return true
			},
			"identifier": func(ctx *WalkContext, node *sitter.Node) bool {
				seen = append(seen, ctx.Unit.Text(node))
				return false
			},
		}, nil)
		engine.Walk(&WalkContext{Unit: unit}, unit.Root())
		if strings.Join(seen, ",") != "a" {
			t.Fatalf("expected only the body identifier, got %v", seen)
		}
	})
}

func TestNodeHelpers(t *testing.T) {
	unit := parse(t, "import os\nos.path.join('a')\n")

	attr := findKind(unit.Root(), "attribute")
	if attr == nil {
		t.Fatal("attribute not found")
	}
	object := attr.ChildByFieldName("object")
	next := NextLeaf(object)
	if next == nil || unit.Text(next) != "." {
		t.Fatalf("expected '.' after object, got %v", next)
	}
	if Ancestor(object, "expression_statement") == nil {
		t.Fatal("expected expression_statement ancestor")
	}
	if !IsField(attr, "object", object) {
		t.Fatal("expected object field")
	}
	if !Contains(unit.Root(), attr) {
		t.Fatal("root contains every node")
	}
}

func TestDump(t *testing.T) {
	unit := parse(t, "pass\n")
	var buf bytes.Buffer
	if err := Dump(&buf, unit); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "AST: module [1:1|") {
		t.Fatalf("unexpected dump header: %q", out)
	}
	if !strings.Contains(out, "AST: | pass_statement") {
		t.Fatalf("expected indented statement, got %q", out)
	}
	if !strings.Contains(out, `pass ("pass")`) {
		t.Fatalf("expected leaf text, got %q", out)
	}
}
