// Package scope builds per-file lexical scope tables for Python sources:
// which names each module, class, function, lambda and comprehension binds,
// and where.
package scope

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/engine/parser"
)

type Kind int

const (
	ModuleScope Kind = iota
	ClassScope
	FunctionScope
	LambdaScope
	ComprehensionScope
)

func (k Kind) String() string {
	switch k {
	case ModuleScope:
		return "module"
	case ClassScope:
		return "class"
	case FunctionScope:
		return "function"
	case LambdaScope:
		return "lambda"
	default:
		return "comprehension"
	}
}

type BindingKind int

const (
	BindAssign BindingKind = iota
	BindParam
	BindClass
	BindFunction
	BindImport
)

// ImportRef describes what an import binding refers to.
type ImportRef struct {
	// Module holds the dotted module path after any leading dots.
	Module []string
	// Level is the number of leading dots of a relative import.
	Level int
	// Member is the imported name for "from m import x"; empty otherwise.
	Member string
	// Alias is set for "import a.b as c" and "from m import x as y".
	Alias bool
}

// Binding is one place a name gets bound.
type Binding struct {
	Name  string
	Kind  BindingKind
	Node  *sitter.Node // the binding identifier
	Def   *sitter.Node // class/function definition, parameter, or enclosing statement
	Value *sitter.Node // assigned expression, when known
	Type  *sitter.Node // annotation, when present
	Scope *Scope

	Import *ImportRef

	// ParamIndex is the positional index of a parameter, -1 for keyword-only
	// and variadic parameters.
	ParamIndex int
	Unpacked   bool
	// InstanceAttr marks "self.x = ..." bindings stored on a class scope.
	InstanceAttr bool
}

type Scope struct {
	Kind     Kind
	Node     *sitter.Node
	Name     string
	Parent   *Scope
	Children []*Scope

	bindings map[string][]*Binding
	order    []string

	Globals   map[string]bool
	Nonlocals map[string]bool
	Stars     []*ImportRef

	// Params lists function or lambda parameters in declaration order.
	Params []*Binding
	// SelfParam is the first positional parameter of a method.
	SelfParam string
	// Decorators holds decorator expressions of a decorated function or class.
	Decorators []*sitter.Node

	// instanceAttrs holds "self.x" bindings made inside methods (class scopes only).
	instanceAttrs map[string][]*Binding
}

func newScope(kind Kind, node *sitter.Node, parent *Scope) *Scope {
	s := &Scope{
		Kind:          kind,
		Node:          node,
		Parent:        parent,
		bindings:      make(map[string][]*Binding),
		Globals:       make(map[string]bool),
		Nonlocals:     make(map[string]bool),
		instanceAttrs: make(map[string][]*Binding),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Local returns the bindings of name made directly in s, in source order.
func (s *Scope) Local(name string) []*Binding {
	return s.bindings[name]
}

// Names returns locally bound names in first-binding order.
func (s *Scope) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Scope) InstanceAttrs(name string) []*Binding {
	return s.instanceAttrs[name]
}

// IsMethod reports whether s is a function defined directly in a class body.
func (s *Scope) IsMethod() bool {
	return s.Kind == FunctionScope && s.Parent != nil && s.Parent.Kind == ClassScope
}

// HasDecorator reports whether a decorator's trailing name equals name
// (matches "@classmethod" and "@abc.abstractmethod" style decorators).
func (s *Scope) HasDecorator(unit *parser.Unit, name string) bool {
	for _, d := range s.Decorators {
		expr := d
		if expr.Kind() == "call" {
			expr = expr.ChildByFieldName("function")
		}
		if expr == nil {
			continue
		}
		if expr.Kind() == "attribute" {
			expr = expr.ChildByFieldName("attribute")
		}
		if expr != nil && unit.Text(expr) == name {
			return true
		}
	}
	return false
}

func (s *Scope) add(b *Binding) {
	b.Scope = s
	if _, ok := s.bindings[b.Name]; !ok {
		s.order = append(s.order, b.Name)
	}
	s.bindings[b.Name] = append(s.bindings[b.Name], b)
}

func (s *Scope) addInstanceAttr(b *Binding) {
	b.Scope = s
	b.InstanceAttr = true
	s.instanceAttrs[b.Name] = append(s.instanceAttrs[b.Name], b)
}
