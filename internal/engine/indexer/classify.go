package indexer

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/scope"
)

// classifyName resolves one identifier and records what it refers to.
// Names nobody could resolve become an unsolved usage of the current
// context.
func (s *Session) classifyName(node *sitter.Node) {
	top := s.stack.Top()
	if top == nil {
		return
	}
	s.visit = make(map[string]bool)
	span := s.unit.Span(node)

	var decls []ports.Declaration
	err := safely(func() error {
		var rerr error
		decls, rerr = s.resolver.Resolve(s.ctx, s.unit, node)
		return rerr
	})
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		s.log.Debug("name resolution failed",
			"path", s.unit.Path, "symbol", s.unit.Text(node), "range", span.String(), "error", err)
		s.unsolved(top, ports.RefUsage, span)
		return
	}

	solved := false
	for _, d := range decls {
		var ok, stop bool
		err := safely(func() error {
			ok, stop = s.classifyDeclaration(node, d)
			return nil
		})
		if err != nil {
			s.log.Debug("classification failed",
				"path", s.unit.Path, "symbol", s.unit.Text(node), "range", span.String(), "error", err)
			continue
		}
		if stop {
			return
		}
		solved = solved || ok
	}
	if !solved {
		s.unsolved(top, ports.RefUsage, span)
	}
}

// classifyDeclaration records node as a use of d and reports whether d
// accounted for the name. stop is set when node is the definition of a
// class or function, which the traversal records on its own.
func (s *Session) classifyDeclaration(node *sitter.Node, d ports.Declaration) (ok, stop bool) {
	switch d.Kind {
	case ports.DeclInstance:
		if d.HasLocation() {
			return false, false
		}
		return s.recordInstance(node, d), false
	case ports.DeclModule:
		return s.recordModule(node, d), false
	case ports.DeclClass, ports.DeclFunction:
		if d.SameSite(s.unit, node) {
			return true, true
		}
		if d.Kind == ports.DeclClass {
			return s.recordClass(node, d), false
		}
		return s.recordFunction(node, d), false
	case ports.DeclParam:
		if !d.HasLocation() {
			return false, false
		}
		s.recordLocal(node, d)
		return true, false
	case ports.DeclStatement:
		if !d.HasLocation() {
			return false, false
		}
		return s.recordStatement(node, d), false
	default:
		return false, false
	}
}

func (s *Session) recordInstance(node *sitter.Node, d ports.Declaration) bool {
	name, ok := s.names.DeclarationName(d)
	if !ok {
		return false
	}
	id := s.sink.RecordSymbol(name)
	s.sink.RecordSymbolKind(id, ports.SymbolGlobalVariable)
	kind := ports.RefUsage
	if parser.Ancestor(node, "import_from_statement") != nil {
		kind = ports.RefImport
	}
	s.reference(id, kind, node)
	return true
}

func (s *Session) recordModule(node *sitter.Node, d ports.Declaration) bool {
	name, ok := s.names.DeclarationName(d)
	if !ok {
		return false
	}
	id := s.sink.RecordSymbol(name)
	s.sink.RecordSymbolKind(id, ports.SymbolModule)
	if isQualifier(node) {
		s.qualifier(id, node)
		return true
	}
	kind := ports.RefUsage
	if parser.Ancestor(node, "import_statement") != nil {
		kind = ports.RefImport
	}
	s.reference(id, kind, node)
	return true
}

func (s *Session) recordClass(node *sitter.Node, d ports.Declaration) bool {
	name, ok := s.names.DeclarationName(d)
	if !ok {
		return false
	}
	id := s.sink.RecordSymbol(name)
	s.sink.RecordSymbolKind(id, ports.SymbolClass)
	if isQualifier(node) {
		s.qualifier(id, node)
		return true
	}
	kind := ports.RefTypeUsage
	switch {
	case inBaseList(node):
		kind = ports.RefInheritance
	case parser.Ancestor(node, "import_from_statement") != nil:
		kind = ports.RefImport
	}
	s.reference(id, kind, node)

	if kind == ports.RefTypeUsage && isCall(node) {
		ctor := s.sink.RecordSymbol(name.Append("__init__"))
		s.sink.RecordSymbolKind(ctor, ports.SymbolMethod)
		s.reference(ctor, ports.RefCall, node)
	}
	return true
}

// recordFunction records calls and imports of a function. Other uses, such
// as passing a function around, carry no edge.
func (s *Session) recordFunction(node *sitter.Node, d ports.Declaration) bool {
	name, ok := s.names.DeclarationName(d)
	if !ok {
		return false
	}
	id := s.sink.RecordSymbol(name)
	s.sink.RecordSymbolKind(id, functionKind(d))
	switch {
	case isCall(node):
		s.reference(id, ports.RefCall, node)
	case parser.Ancestor(node, "import_from_statement") != nil:
		s.reference(id, ports.RefImport, node)
	}
	return true
}

func functionKind(d ports.Declaration) ports.SymbolKind {
	if d.HasLocation() && isMethodDefinition(d.Node.Parent()) {
		return ports.SymbolMethod
	}
	return ports.SymbolFunction
}

// recordStatement classifies a variable: module-level names are globals,
// class-body names are static fields, names bound through a method's
// instance parameter are instance fields, everything else is local.
func (s *Session) recordStatement(node *sitter.Node, d ports.Declaration) bool {
	def := d.Node
	table := s.tables.TableOf(d.Unit)
	isDef := d.SameSite(s.unit, node)

	var (
		symbolKind ports.SymbolKind
		refKind    ports.ReferenceKind
		explicit   bool
	)
	switch owner := parser.Ancestor(def, "class_definition", "function_definition"); {
	case owner == nil:
		symbolKind = ports.SymbolGlobalVariable
		switch {
		case isDef:
			explicit = true
		case parser.Ancestor(node, "import_from_statement") != nil:
			refKind = ports.RefImport
		default:
			refKind = ports.RefUsage
		}
	case owner.Kind() == "class_definition":
		if sc := table.ScopeOf(def); sc != nil && sc.Kind == scope.ClassScope && parser.SameNode(sc.Node, owner) {
			if isDef {
				symbolKind, explicit = ports.SymbolField, true
			} else {
				refKind = ports.RefUsage
			}
		}
	default:
		if isInstanceAttribute(d.Unit, table, def) {
			refKind = ports.RefUsage
			if isDef {
				symbolKind, explicit = ports.SymbolField, true
			}
		}
	}

	if symbolKind == 0 && refKind == 0 {
		s.recordLocal(node, d)
		return true
	}

	name := s.names.NameOf(d.Unit, def)
	if name.IsUnsolved() {
		return false
	}
	id := s.sink.RecordSymbol(name)
	if symbolKind != 0 {
		s.sink.RecordSymbolKind(id, symbolKind)
	}
	if explicit {
		s.define(id, node)
	}
	if refKind != 0 && !explicit {
		s.reference(id, refKind, node)
	}
	return true
}

// isInstanceAttribute reports whether name is the attribute of "p.name"
// where p is the instance parameter of a method.
func isInstanceAttribute(unit *parser.Unit, table *scope.Table, name *sitter.Node) bool {
	parent := name.Parent()
	if parent == nil || parent.Kind() != "attribute" || !parser.IsField(parent, "attribute", name) {
		return false
	}
	object := parent.ChildByFieldName("object")
	if object == nil || object.Kind() != "identifier" {
		return false
	}
	return table.MethodClassForSelf(table.ScopeOf(object), unit.Text(object)) != nil
}

func (s *Session) recordLocal(node *sitter.Node, d ports.Declaration) {
	top := s.stack.Top()
	name := s.names.LocalName(d, top.Display)
	if !s.once("local|" + name + s.unit.Span(node).String()) {
		return
	}
	id := s.sink.RecordLocalSymbol(name)
	s.sink.RecordLocalSymbolLocation(id, s.rangeOf(node))
	top.Locals[s.unit.Text(node)] = true
}

// recordOverrides links a method to the methods it overrides. Failures
// only cost the edges.
func (s *Session) recordOverrides(method ports.ID, nameNode *sitter.Node) {
	if s.overrides == nil {
		return
	}
	bestEffort(s.log, "override detection", func() error {
		decls, err := s.overrides.OverridesOf(s.ctx, s.unit, nameNode)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		for _, d := range decls {
			if !d.HasLocation() || d.SameSite(s.unit, nameNode) {
				continue
			}
			name, ok := s.names.DeclarationName(d)
			if !ok || seen[name.Serialize()] {
				continue
			}
			seen[name.Serialize()] = true
			target := s.sink.RecordSymbol(name)
			ref := s.sink.RecordReference(method, target, ports.RefOverride)
			s.sink.RecordReferenceLocation(ref, s.rangeOf(nameNode))
			s.stats.References++
		}
		return nil
	})
}

func (s *Session) reference(target ports.ID, kind ports.ReferenceKind, node *sitter.Node) {
	r := s.rangeOf(node)
	if !s.once(referenceKey(target, kind, r)) {
		return
	}
	ref := s.sink.RecordReference(s.stack.Top().ID, target, kind)
	s.sink.RecordReferenceLocation(ref, r)
	s.stats.References++
}

func (s *Session) qualifier(target ports.ID, node *sitter.Node) {
	r := s.rangeOf(node)
	if !s.once(referenceKey(target, 0, r)) {
		return
	}
	s.sink.RecordQualifierLocation(target, r)
}

func (s *Session) define(id ports.ID, node *sitter.Node) {
	s.sink.RecordSymbolDefinitionKind(id, ports.DefinitionExplicit)
	s.sink.RecordSymbolLocation(id, s.rangeOf(node))
	s.stats.Symbols++
}

func (s *Session) unsolved(top *Frame, kind ports.ReferenceKind, span parser.Span) {
	s.sink.RecordUnsolvedReference(top.ID, kind, ports.RangeOf(s.fileID, span))
	s.stats.Unsolved++
}

// once reports whether key is new within the current name visit.
func (s *Session) once(key string) bool {
	if s.visit == nil {
		return true
	}
	if s.visit[key] {
		return false
	}
	s.visit[key] = true
	return true
}

func (s *Session) rangeOf(node *sitter.Node) ports.SourceRange {
	return ports.RangeOf(s.fileID, s.unit.Span(node))
}

func referenceKey(target ports.ID, kind ports.ReferenceKind, r ports.SourceRange) string {
	return fmt.Sprintf("ref|%d|%d|%s", target, kind, r)
}

// isQualifier reports whether node is directly followed by a '.'.
func isQualifier(node *sitter.Node) bool {
	next := parser.NextLeaf(node)
	return next != nil && next.Kind() == "."
}

// callee returns the attribute expression when node is its attribute
// field, and node otherwise.
func callee(node *sitter.Node) *sitter.Node {
	if p := node.Parent(); p != nil && p.Kind() == "attribute" && parser.IsField(p, "attribute", node) {
		return p
	}
	return node
}

func isCall(node *sitter.Node) bool {
	target := callee(node)
	p := target.Parent()
	return p != nil && p.Kind() == "call" && parser.IsField(p, "function", target)
}

// inBaseList reports whether node is a positional base of a class.
func inBaseList(node *sitter.Node) bool {
	target := callee(node)
	list := target.Parent()
	if list == nil || list.Kind() != "argument_list" {
		return false
	}
	class := list.Parent()
	return class != nil && class.Kind() == "class_definition" && parser.IsField(class, "superclasses", list)
}
