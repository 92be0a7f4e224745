package scope

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/engine/parser"
)

// ScopeFor returns the scope opened by a class, function, lambda or
// comprehension node.
func (t *Table) ScopeFor(def *sitter.Node) *Scope {
	if def == nil {
		return nil
	}
	return t.scopes[keyOf(def)]
}

// BindingAt returns the binding whose name node is exactly node.
func (t *Table) BindingAt(node *sitter.Node) *Binding {
	if node == nil {
		return nil
	}
	b, ok := t.sites[node.StartByte()]
	if !ok || !parser.SameNode(b.Node, node) {
		return nil
	}
	return b
}

// Calls lists every call expression in the unit in source order.
func (t *Table) Calls() []*sitter.Node {
	return t.calls
}

// ScopeOf returns the scope in which names at node are resolved.
// Defaults, annotations and decorators of a function belong to the
// enclosing scope; the first iterable of a comprehension does too.
func (t *Table) ScopeOf(node *sitter.Node) *Scope {
	if node == nil {
		return t.Root
	}
	child := node
	for p := node.Parent(); p != nil; child, p = p, p.Parent() {
		var s *Scope
		switch p.Kind() {
		case "function_definition", "lambda":
			if parser.IsField(p, "body", child) || (parser.IsField(p, "parameters", child) && t.isParamName(node)) {
				s = t.ScopeFor(p)
			}
		case "class_definition":
			if parser.IsField(p, "body", child) {
				s = t.ScopeFor(p)
			}
		case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
			first := parser.ChildOfKind(p, "for_in_clause")
			if !parser.SameNode(first, child) || !parser.Contains(first.ChildByFieldName("right"), node) {
				s = t.ScopeFor(p)
			}
		}
		if s != nil {
			return s
		}
	}
	return t.Root
}

func (t *Table) isParamName(node *sitter.Node) bool {
	b := t.BindingAt(node)
	return b != nil && b.Kind == BindParam
}

// Lookup resolves name from scope s following Python's LEGB rules: class
// bodies are visible only to themselves, global and nonlocal declarations
// redirect the search. All bindings of the winning scope are returned.
func (t *Table) Lookup(s *Scope, name string) []*Binding {
	if s == nil {
		s = t.Root
	}
	for cur, first := s, true; cur != nil; cur, first = cur.Parent, false {
		if cur.Kind == ClassScope && !first {
			continue
		}
		if cur.Globals[name] {
			return t.Root.Local(name)
		}
		if cur.Nonlocals[name] {
			continue
		}
		if bs := cur.Local(name); len(bs) > 0 {
			return bs
		}
	}
	return nil
}

// MethodClassForSelf returns the class whose instance name refers to from
// scope s: the nearest function binding name must be a method whose first
// parameter is name.
func (t *Table) MethodClassForSelf(s *Scope, name string) *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		switch cur.Kind {
		case ComprehensionScope:
			continue
		case ClassScope, ModuleScope:
			return nil
		}
		if len(cur.Local(name)) == 0 {
			continue
		}
		if cur.IsMethod() && cur.SelfParam == name {
			return cur.Parent
		}
		return nil
	}
	return nil
}

// EnclosingClass returns the nearest class scope containing s, including s.
func EnclosingClass(s *Scope) *Scope {
	for cur := s; cur != nil; cur = cur.Parent {
		if cur.Kind == ClassScope {
			return cur
		}
	}
	return nil
}
