// Package oracle is a best-effort static name resolver for Python. Given a
// name use it returns the declarations the name may refer to, following
// imports, attribute access on inferred values, super() proxies and
// call-site parameter inference.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/errors"
	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/scope"
)

const maxDepth = 24

// Oracle answers name resolution queries against a Workspace. Queries are
// serialized; results are cached for the lifetime of the oracle.
type Oracle struct {
	ws *Workspace

	mu     sync.Mutex
	depth  int
	cuts   int
	active map[string]bool
	decls  map[string][]ports.Declaration
	values map[string][]value
	mros   map[string][]classRef
}

func New(ws *Workspace) *Oracle {
	return &Oracle{
		ws:     ws,
		active: make(map[string]bool),
		decls:  make(map[string][]ports.Declaration),
		values: make(map[string][]value),
		mros:   make(map[string][]classRef),
	}
}

func (o *Oracle) Workspace() *Workspace {
	return o.ws
}

// Resolve returns the declarations the identifier node refers to. Binding
// occurrences resolve to themselves; imports are followed to their target.
func (o *Oracle) Resolve(ctx context.Context, unit *parser.Unit, node *sitter.Node) ([]ports.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if unit == nil || node == nil {
		return nil, errors.New(errors.CodeValidationError, "resolve requires a unit and a node")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	mod := o.ws.ModuleOf(unit)
	return o.gotoName(mod, node), nil
}

// OverridesOf returns the nearest definitions of the same name in the
// method resolution order after the class defining nameNode.
func (o *Oracle) OverridesOf(ctx context.Context, unit *parser.Unit, nameNode *sitter.Node) ([]ports.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if unit == nil || nameNode == nil {
		return nil, errors.New(errors.CodeValidationError, "overrides require a unit and a name node")
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	mod := o.ws.ModuleOf(unit)
	b := mod.Table().BindingAt(nameNode)
	if b == nil || b.Kind != scope.BindFunction || b.Scope.Kind != scope.ClassScope {
		return nil, nil
	}
	mro := o.mro(classRef{mod: mod, scope: b.Scope})
	for _, c := range mro[1:] {
		if bs := c.scope.Local(b.Name); len(bs) > 0 {
			var out []ports.Declaration
			for _, other := range bs {
				out = append(out, o.bindingDecls(c.mod, other)...)
			}
			return dedupeDecls(out), nil
		}
	}
	return nil, nil
}

// guard runs fn once per key at a time and caches results computed
// without hitting a cycle or the depth limit.
func guard[T any](o *Oracle, cache map[string][]T, key string, fn func() []T) []T {
	if cached, ok := cache[key]; ok {
		return cached
	}
	if o.active[key] || o.depth >= maxDepth {
		if o.depth >= maxDepth {
			slog.Debug("inference depth limit reached", "key", key)
		}
		o.cuts++
		return nil
	}
	o.active[key] = true
	o.depth++
	cutsBefore := o.cuts
	out := fn()
	o.depth--
	delete(o.active, key)
	if o.cuts == cutsBefore {
		cache[key] = out
	}
	return out
}

func nodeKey(prefix string, mod *Module, n *sitter.Node) string {
	return fmt.Sprintf("%s:%s@%d:%d:%s", prefix, mod.Path, n.StartByte(), n.EndByte(), n.Kind())
}

func (o *Oracle) gotoName(mod *Module, node *sitter.Node) []ports.Declaration {
	return guard(o, o.decls, nodeKey("goto", mod, node), func() []ports.Declaration {
		table := mod.Table()
		if table == nil {
			return nil
		}
		if stmt := parser.Ancestor(node, "import_statement", "import_from_statement"); stmt != nil {
			return o.gotoImport(mod, stmt, node)
		}
		if b := table.BindingAt(node); b != nil {
			return o.bindingDecls(mod, b)
		}
		name := mod.Unit.Text(node)
		if parent := node.Parent(); parent != nil {
			switch {
			case parent.Kind() == "attribute" && parser.IsField(parent, "attribute", node):
				return o.memberDecls(o.infer(mod, parent.ChildByFieldName("object")), name)
			case parent.Kind() == "keyword_argument" && parser.IsField(parent, "name", node):
				return nil
			}
		}
		return o.lookupDecls(mod, table.ScopeOf(node), name)
	})
}

func (o *Oracle) lookupDecls(mod *Module, s *scope.Scope, name string) []ports.Declaration {
	table := mod.Table()
	if bs := table.Lookup(s, name); len(bs) > 0 {
		var out []ports.Declaration
		for _, b := range bs {
			out = append(out, o.bindingDecls(mod, b)...)
		}
		return dedupeDecls(out)
	}
	for _, star := range table.Root.Stars {
		base := o.ws.ImportRelative(mod, star.Level, star.Module)
		if base == nil || base.External {
			continue
		}
		if out := o.moduleMemberDecls(base, name); len(out) > 0 {
			return out
		}
	}
	if d, ok := Builtin(name); ok {
		return []ports.Declaration{d}
	}
	return nil
}

func (o *Oracle) gotoImport(mod *Module, stmt, node *sitter.Node) []ports.Declaration {
	table := mod.Table()
	unit := mod.Unit

	if stmt.Kind() == "import_from_statement" {
		moduleNode := stmt.ChildByFieldName("module_name")
		level, parts := scope.ModulePath(unit, moduleNode)
		if parser.Contains(moduleNode, node) {
			i := identIndex(moduleNode, node)
			if i < 0 {
				return nil
			}
			return moduleDecls(o.ws.ImportRelative(mod, level, parts[:i+1]))
		}
		if b := table.BindingAt(node); b != nil {
			return o.bindingDecls(mod, b)
		}
		base := o.ws.ImportRelative(mod, level, parts)
		if base == nil {
			return nil
		}
		return o.moduleMemberDecls(base, unit.Text(node))
	}

	if b := table.BindingAt(node); b != nil && b.Import != nil && b.Import.Alias {
		return o.bindingDecls(mod, b)
	}
	dotted := parser.Ancestor(node, "dotted_name")
	if dotted == nil {
		return nil
	}
	parts := scope.DottedParts(unit, dotted)
	i := identIndex(dotted, node)
	if i < 0 {
		return nil
	}
	return moduleDecls(o.ws.Import(parts[:i+1]))
}

// identIndex returns the position of ident among the identifiers of a
// dotted_name or relative_import.
func identIndex(container, ident *sitter.Node) int {
	if container.Kind() == "relative_import" {
		container = parser.ChildOfKind(container, "dotted_name")
	}
	if container == nil {
		return -1
	}
	if container.Kind() == "identifier" {
		if parser.SameNode(container, ident) {
			return 0
		}
		return -1
	}
	i := 0
	for _, c := range parser.NamedChildren(container) {
		if c.Kind() != "identifier" {
			continue
		}
		if parser.SameNode(c, ident) {
			return i
		}
		i++
	}
	return -1
}

func (o *Oracle) bindingDecls(mod *Module, b *scope.Binding) []ports.Declaration {
	switch b.Kind {
	case scope.BindClass:
		return []ports.Declaration{Located(ports.DeclClass, mod, b.Node)}
	case scope.BindFunction:
		return []ports.Declaration{Located(ports.DeclFunction, mod, b.Node)}
	case scope.BindParam:
		return []ports.Declaration{Located(ports.DeclParam, mod, b.Node)}
	case scope.BindImport:
		return o.importDecls(mod, b.Import)
	default:
		return []ports.Declaration{Located(ports.DeclStatement, mod, b.Node)}
	}
}

func (o *Oracle) importDecls(mod *Module, ref *scope.ImportRef) []ports.Declaration {
	if ref.Member == "" {
		return moduleDecls(o.ws.Import(ref.Module))
	}
	base := o.ws.ImportRelative(mod, ref.Level, ref.Module)
	if base == nil {
		return nil
	}
	return o.moduleMemberDecls(base, ref.Member)
}

func (o *Oracle) moduleMemberDecls(m *Module, name string) []ports.Declaration {
	if m.External {
		return []ports.Declaration{External(m.Name+"."+name, m.Name)}
	}
	return guard(o, o.decls, "member-decls:"+m.Path+":"+name, func() []ports.Declaration {
		if t := m.Table(); t != nil {
			if bs := t.Root.Local(name); len(bs) > 0 {
				var out []ports.Declaration
				for _, b := range bs {
					out = append(out, o.bindingDecls(m, b)...)
				}
				return dedupeDecls(out)
			}
			for _, star := range t.Root.Stars {
				base := o.ws.ImportRelative(m, star.Level, star.Module)
				if base == nil || base.External {
					continue
				}
				if out := o.moduleMemberDecls(base, name); len(out) > 0 {
					return out
				}
			}
		}
		return moduleDecls(o.ws.Submodule(m, name))
	})
}

func (o *Oracle) memberDecls(objects []value, name string) []ports.Declaration {
	var out []ports.Declaration
	for _, v := range objects {
		switch v.kind {
		case moduleValue:
			out = append(out, o.moduleMemberDecls(v.module, name)...)
		case externalValue:
			out = append(out, External(v.full+"."+name, rootModule(v.full)))
		default:
			for _, m := range o.classMembers(v, name) {
				out = append(out, o.bindingDecls(m.mod, m.binding)...)
			}
		}
	}
	return dedupeDecls(out)
}

// Located builds the declaration of a name node inside mod.
func Located(kind ports.DeclarationKind, mod *Module, nameNode *sitter.Node) ports.Declaration {
	span := mod.Unit.Span(nameNode)
	name := mod.Unit.Text(nameNode)
	full := name
	if mod.Name != "" {
		full = mod.Name + "." + name
	}
	return ports.Declaration{
		Kind:       kind,
		Name:       name,
		Line:       span.StartLine,
		Column:     span.StartColumn,
		ModulePath: mod.Path,
		ModuleName: mod.Name,
		FullName:   full,
		Node:       nameNode,
		Unit:       mod.Unit,
	}
}

func moduleDecls(m *Module) []ports.Declaration {
	if m == nil {
		return nil
	}
	name := m.Name
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	path := m.Path
	if m.External {
		path = ""
	}
	return []ports.Declaration{{
		Kind:       ports.DeclModule,
		Name:       name,
		ModulePath: path,
		ModuleName: m.Name,
		FullName:   m.Name,
		Unit:       m.Unit,
	}}
}

// Builtin returns the declaration of a builtins-module name.
func Builtin(name string) (ports.Declaration, bool) {
	kind, ok := pythonBuiltins[name]
	if !ok {
		return ports.Declaration{}, false
	}
	d := ports.Declaration{Name: name, ModuleName: "builtins", FullName: name}
	switch kind {
	case builtinClass:
		d.Kind = ports.DeclClass
	case builtinFunction:
		d.Kind = ports.DeclFunction
	default:
		d.Kind = ports.DeclInstance
	}
	return d, true
}

// External declares an object of a module with no source, such as a
// standard library module.
func External(full, module string) ports.Declaration {
	name := full
	if i := strings.LastIndex(full, "."); i >= 0 {
		name = full[i+1:]
	}
	return ports.Declaration{Kind: ports.DeclInstance, Name: name, ModuleName: module, FullName: full}
}

func rootModule(full string) string {
	if i := strings.Index(full, "."); i >= 0 {
		return full[:i]
	}
	return full
}

func dedupeDecls(decls []ports.Declaration) []ports.Declaration {
	if len(decls) < 2 {
		return decls
	}
	seen := make(map[string]bool, len(decls))
	out := decls[:0:0]
	for _, d := range decls {
		k := fmt.Sprintf("%d|%s|%d|%d|%s", d.Kind, d.ModulePath, d.Line, d.Column, d.FullName)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}
	return out
}
