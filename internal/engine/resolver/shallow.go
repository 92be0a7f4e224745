package resolver

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/errors"
	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/oracle"
	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/scope"
)

// Shallow resolves names from the scope table of the file being indexed.
// Imported modules are located on the search roots but never parsed, so
// names imported from them come back as instances without a location.
type Shallow struct {
	ws *oracle.Workspace
}

func NewShallow(ws *oracle.Workspace) *Shallow {
	return &Shallow{ws: ws}
}

func (s *Shallow) Resolve(ctx context.Context, unit *parser.Unit, node *sitter.Node) ([]ports.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if unit == nil || node == nil {
		return nil, errors.New(errors.CodeValidationError, "resolve requires a unit and a node")
	}
	mod := s.ws.ModuleOf(unit)
	table := mod.Table()

	if stmt := parser.Ancestor(node, "import_statement", "import_from_statement"); stmt != nil {
		return s.resolveImport(mod, stmt, node), nil
	}
	if b := table.BindingAt(node); b != nil {
		return s.bindingDecls(mod, b), nil
	}
	name := unit.Text(node)
	if parent := node.Parent(); parent != nil {
		switch {
		case parent.Kind() == "attribute" && parser.IsField(parent, "attribute", node):
			return s.memberDecls(mod, parent.ChildByFieldName("object"), name), nil
		case parent.Kind() == "keyword_argument" && parser.IsField(parent, "name", node):
			return nil, nil
		}
	}
	if bs := table.Lookup(table.ScopeOf(node), name); len(bs) > 0 {
		return s.bindingsDecls(mod, bs), nil
	}
	if d, ok := oracle.Builtin(name); ok {
		return []ports.Declaration{d}, nil
	}
	return nil, nil
}

func (s *Shallow) bindingsDecls(mod *oracle.Module, bs []*scope.Binding) []ports.Declaration {
	var out []ports.Declaration
	for _, b := range bs {
		out = append(out, s.bindingDecls(mod, b)...)
	}
	return dedupe(out)
}

func (s *Shallow) bindingDecls(mod *oracle.Module, b *scope.Binding) []ports.Declaration {
	switch b.Kind {
	case scope.BindClass:
		return []ports.Declaration{oracle.Located(ports.DeclClass, mod, b.Node)}
	case scope.BindFunction:
		return []ports.Declaration{oracle.Located(ports.DeclFunction, mod, b.Node)}
	case scope.BindParam:
		return []ports.Declaration{oracle.Located(ports.DeclParam, mod, b.Node)}
	case scope.BindImport:
		if d, ok := s.importDecl(mod, b.Import); ok {
			return []ports.Declaration{d}
		}
		return nil
	default:
		return []ports.Declaration{oracle.Located(ports.DeclStatement, mod, b.Node)}
	}
}

func (s *Shallow) importDecl(mod *oracle.Module, ref *scope.ImportRef) (ports.Declaration, bool) {
	if ref.Member == "" {
		return s.moduleDecl(mod, 0, ref.Module)
	}
	base, ok := s.moduleDecl(mod, ref.Level, ref.Module)
	if !ok {
		return ports.Declaration{}, false
	}
	return oracle.External(base.FullName+"."+ref.Member, base.FullName), true
}

// moduleDecl declares the module at parts when it exists on the search
// roots, relative to mod for level > 0, or in the standard library.
func (s *Shallow) moduleDecl(mod *oracle.Module, level int, parts []string) (ports.Declaration, bool) {
	path, ok := s.ws.LocateRelative(mod.Path, level, parts)
	if !ok {
		return ports.Declaration{}, false
	}
	full := strings.Join(parts, ".")
	if level > 0 {
		name, ok := naming.ModuleNameFromPath(path, s.ws.Roots())
		if !ok {
			return ports.Declaration{}, false
		}
		full = name.Display()
	}
	if full == "" {
		return ports.Declaration{}, false
	}
	short := full
	if i := strings.LastIndex(full, "."); i >= 0 {
		short = full[i+1:]
	}
	return ports.Declaration{
		Kind:       ports.DeclModule,
		Name:       short,
		ModulePath: path,
		ModuleName: full,
		FullName:   full,
	}, true
}

func (s *Shallow) resolveImport(mod *oracle.Module, stmt, node *sitter.Node) []ports.Declaration {
	unit := mod.Unit
	table := mod.Table()

	if stmt.Kind() == "import_from_statement" {
		moduleNode := stmt.ChildByFieldName("module_name")
		level, parts := scope.ModulePath(unit, moduleNode)
		if parser.Contains(moduleNode, node) {
			i := identIndex(moduleNode, node)
			if i < 0 {
				return nil
			}
			return single(s.moduleDecl(mod, level, parts[:i+1]))
		}
		if b := table.BindingAt(node); b != nil {
			return s.bindingDecls(mod, b)
		}
		// the imported name of "from m import x as y"
		base, ok := s.moduleDecl(mod, level, parts)
		if !ok {
			return nil
		}
		return []ports.Declaration{oracle.External(base.FullName+"."+unit.Text(node), base.FullName)}
	}

	if b := table.BindingAt(node); b != nil && b.Import != nil && b.Import.Alias {
		return s.bindingDecls(mod, b)
	}
	dotted := parser.Ancestor(node, "dotted_name")
	if dotted == nil {
		return nil
	}
	i := identIndex(dotted, node)
	if i < 0 {
		return nil
	}
	return single(s.moduleDecl(mod, 0, scope.DottedParts(unit, dotted)[:i+1]))
}

// memberDecls handles "obj.name" where obj is an instance parameter, a
// class of this file, or a dotted path rooted at an import.
func (s *Shallow) memberDecls(mod *oracle.Module, object *sitter.Node, name string) []ports.Declaration {
	table := mod.Table()
	chain, ok := identChain(mod.Unit, object)
	if !ok {
		return nil
	}
	at := table.ScopeOf(object)
	root := chain[0]

	if len(chain) == 1 {
		if cls := table.MethodClassForSelf(at, root); cls != nil {
			return s.classMember(mod, cls, name, true)
		}
	}
	var out []ports.Declaration
	for _, b := range table.Lookup(at, root) {
		switch b.Kind {
		case scope.BindClass:
			if len(chain) == 1 {
				out = append(out, s.classMember(mod, table.ScopeFor(b.Def), name, false)...)
			}
		case scope.BindImport:
			base, ok := s.importDecl(mod, b.Import)
			if !ok {
				continue
			}
			full := strings.Join(append(append([]string{base.FullName}, chain[1:]...), name), ".")
			out = append(out, oracle.External(full, topModule(base.FullName)))
		}
	}
	return dedupe(out)
}

func (s *Shallow) classMember(mod *oracle.Module, cls *scope.Scope, name string, instance bool) []ports.Declaration {
	if cls == nil {
		return nil
	}
	bs := cls.Local(name)
	if len(bs) == 0 && instance {
		bs = cls.InstanceAttrs(name)
	}
	return s.bindingsDecls(mod, bs)
}

// identChain flattens a dotted attribute expression such as a.b.c into its
// identifiers.
func identChain(unit *parser.Unit, n *sitter.Node) ([]string, bool) {
	switch {
	case n == nil:
		return nil, false
	case n.Kind() == "identifier":
		return []string{unit.Text(n)}, true
	case n.Kind() == "attribute":
		head, ok := identChain(unit, n.ChildByFieldName("object"))
		if !ok {
			return nil, false
		}
		attr := n.ChildByFieldName("attribute")
		if attr == nil {
			return nil, false
		}
		return append(head, unit.Text(attr)), true
	default:
		return nil, false
	}
}

func identIndex(container, ident *sitter.Node) int {
	if container.Kind() == "relative_import" {
		container = parser.ChildOfKind(container, "dotted_name")
	}
	if container == nil {
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

func single(d ports.Declaration, ok bool) []ports.Declaration {
	if !ok {
		return nil
	}
	return []ports.Declaration{d}
}

func topModule(full string) string {
	if i := strings.Index(full, "."); i >= 0 {
		return full[:i]
	}
	return full
}

func dedupe(decls []ports.Declaration) []ports.Declaration {
	if len(decls) < 2 {
		return decls
	}
	seen := make(map[string]bool, len(decls))
	out := decls[:0:0]
	for _, d := range decls {
		k := fmt.Sprintf("%d|%s|%d|%d|%s", d.Kind, d.ModulePath, d.Line, d.Column, d.FullName)
		if !seen[k] {
			seen[k] = true
			out = append(out, d)
		}
	}
	return out
}
