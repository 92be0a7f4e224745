package indexer

import (
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/scope"
)

// TableSource hands out scope tables for parsed units. The oracle
// workspace implements it; tables are shared with the resolvers.
type TableSource interface {
	TableOf(unit *parser.Unit) *scope.Table
}

// builtTables builds tables on demand for callers without a workspace.
type builtTables struct {
	mu     sync.Mutex
	tables map[*parser.Unit]*scope.Table
}

func (b *builtTables) TableOf(unit *parser.Unit) *scope.Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tables[unit]; ok {
		return t
	}
	if b.tables == nil {
		b.tables = make(map[*parser.Unit]*scope.Table)
	}
	t := scope.Build(unit)
	b.tables[unit] = t
	return t
}

// Namer derives qualified names of declarations from their position in the
// source: module name from the search roots, then one element per
// enclosing class or function.
type Namer struct {
	roots   []string
	tables  TableSource
	modules map[string]moduleName
}

type moduleName struct {
	name naming.QualifiedName
	ok   bool
}

func NewNamer(roots []string, tables TableSource) *Namer {
	if tables == nil {
		tables = &builtTables{}
	}
	return &Namer{roots: roots, tables: tables, modules: make(map[string]moduleName)}
}

// ModuleName names the module stored at path. It reports false when no
// search root contains path.
func (n *Namer) ModuleName(path string) (naming.QualifiedName, bool) {
	if m, ok := n.modules[path]; ok {
		return m.name, m.ok
	}
	name, ok := naming.ModuleNameFromPath(path, n.roots)
	n.modules[path] = moduleName{name: name, ok: ok}
	return name, ok
}

// NameOf names the declaration whose name node is node. Attributes bound
// through the instance parameter of a method are named under the class.
// Unmappable modules yield the unsolved sentinel.
func (n *Namer) NameOf(unit *parser.Unit, node *sitter.Node) naming.QualifiedName {
	if unit == nil || node == nil {
		return naming.Unsolved()
	}
	ident := unit.Text(node)
	if cls := n.selfClass(unit, node); cls != nil {
		base := n.NameOf(unit, cls.ChildByFieldName("name"))
		if base.IsUnsolved() {
			return base
		}
		return base.Append(ident)
	}

	start := node.Parent()
	if isDefinition(start) && parser.IsField(start, "name", node) {
		start = start.Parent()
	}
	var chain []string
	for p := start; p != nil; p = p.Parent() {
		if isDefinition(p) {
			chain = append(chain, unit.Text(p.ChildByFieldName("name")))
		}
	}
	mod, ok := n.ModuleName(unit.Path)
	if !ok {
		return naming.Unsolved()
	}
	for i := len(chain) - 1; i >= 0; i-- {
		mod = mod.Append(chain[i])
	}
	return mod.Append(ident)
}

// selfClass returns the class definition when node is the attribute of
// "p.x" and p is the instance parameter of a method of that class.
func (n *Namer) selfClass(unit *parser.Unit, node *sitter.Node) *sitter.Node {
	parent := node.Parent()
	if parent == nil || parent.Kind() != "attribute" || !parser.IsField(parent, "attribute", node) {
		return nil
	}
	object := parent.ChildByFieldName("object")
	if object == nil || object.Kind() != "identifier" {
		return nil
	}
	table := n.tables.TableOf(unit)
	cls := table.MethodClassForSelf(table.ScopeOf(object), unit.Text(object))
	if cls == nil {
		return nil
	}
	return cls.Node
}

// DeclarationName names an oracle candidate. Located candidates are named
// from their source; the rest from their dotted full name.
func (n *Namer) DeclarationName(d ports.Declaration) (naming.QualifiedName, bool) {
	if d.HasLocation() {
		name := n.NameOf(d.Unit, d.Node)
		return name, !name.IsUnsolved()
	}
	if d.Kind == ports.DeclModule && d.ModulePath != "" {
		if name, ok := n.ModuleName(d.ModulePath); ok {
			return name, true
		}
	}
	full := d.FullName
	if full == "" {
		full = d.Name
	}
	name, ok := naming.ParseDotted(full)
	if !ok {
		return naming.QualifiedName{}, false
	}
	if d.Kind != ports.DeclModule && (d.ModuleName == naming.BuiltinsModule || d.ModuleName == "__builtin__") {
		return naming.New(naming.BuiltinsModule).Concat(name), true
	}
	return name, true
}

// LocalName is the identity of a local symbol: the display name of the
// function enclosing the declaration, or of fallback, joined with the
// identifier.
func (n *Namer) LocalName(d ports.Declaration, fallback string) string {
	ident := d.Unit.Text(d.Node)
	scopeName := fallback
	if fn := parser.Ancestor(d.Node, "function_definition"); fn != nil {
		if name := n.NameOf(d.Unit, fn.ChildByFieldName("name")); !name.IsUnsolved() {
			scopeName = name.Display()
		}
	}
	return scopeName + "." + ident
}

func isDefinition(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	k := n.Kind()
	return k == "class_definition" || k == "function_definition"
}

// isMethodDefinition reports whether def is a function defined directly in
// a class body.
func isMethodDefinition(def *sitter.Node) bool {
	if def == nil || def.Kind() != "function_definition" {
		return false
	}
	p := def.Parent()
	if p != nil && p.Kind() == "decorated_definition" {
		p = p.Parent()
	}
	return p != nil && p.Kind() == "block" && p.Parent() != nil && p.Parent().Kind() == "class_definition"
}
