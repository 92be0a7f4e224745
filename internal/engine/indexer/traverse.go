package indexer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/parser"
)

// cancelCheckEvery is the number of nodes visited between context checks.
const cancelCheckEvery = 256

func (s *Session) walk() {
	engine := parser.NewExtractorEngine(map[string]parser.NodeHandler{
		"class_definition":        s.enterClass,
		"function_definition":     s.enterFunction,
		"identifier":              s.enterIdentifier,
		"import_statement":        s.enterImport,
		"import_from_statement":   s.enterImport,
		"future_import_statement": skip,
		"keyword_argument":        s.enterKeywordArgument,
		"keyword_pattern":         s.enterKeywordArgument,
		"string":                  s.enterString,
		"ERROR":                   s.enterError,
	}, map[string]parser.NodeHandler{
		"class_definition":    s.exitDefinition,
		"function_definition": s.exitDefinition,
	})
	engine.EnterAny = s.enterAny
	engine.Walk(&parser.WalkContext{Unit: s.unit}, s.unit.Root())
}

func skip(*parser.WalkContext, *sitter.Node) bool {
	return true
}

// enterAny stops the walk once the context is cancelled and reports
// tokens the parser had to invent.
func (s *Session) enterAny(_ *parser.WalkContext, node *sitter.Node) bool {
	if s.err != nil {
		return true
	}
	s.nodes++
	if s.nodes%cancelCheckEvery == 0 {
		if err := s.ctx.Err(); err != nil {
			s.err = err
			return true
		}
	}
	if node.IsMissing() {
		if parser.Ancestor(node, "ERROR") == nil {
			at := nextToken(node)
			if at == nil {
				at = node
			}
			s.recordSyntaxError(at)
		}
		return true
	}
	return false
}

func (s *Session) enterClass(ctx *parser.WalkContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := s.names.NameOf(s.unit, nameNode)
	id := s.sink.RecordSymbol(name)
	s.sink.RecordSymbolKind(id, ports.SymbolClass)
	s.define(id, nameNode)
	s.sink.RecordSymbolScopeLocation(id, s.rangeOf(node))
	s.stack.Push(newFrame(id, FrameClass, name, node))

	ctx.Descend(
		node.ChildByFieldName("type_parameters"),
		node.ChildByFieldName("superclasses"),
		node.ChildByFieldName("body"),
	)
	return true
}

// enterFunction pushes the function frame, then visits parameter names
// before defaults, annotations and the body.
func (s *Session) enterFunction(ctx *parser.WalkContext, node *sitter.Node) bool {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return false
	}
	name := s.names.NameOf(s.unit, nameNode)
	kind, frameKind := ports.SymbolFunction, FrameFunction
	method := isMethodDefinition(node)
	if method {
		kind, frameKind = ports.SymbolMethod, FrameMethod
	}

	id := s.sink.RecordSymbol(name)
	s.sink.RecordSymbolKind(id, kind)
	s.define(id, nameNode)
	s.sink.RecordSymbolScopeLocation(id, s.rangeOf(node))
	params := node.ChildByFieldName("parameters")
	last := node.ChildByFieldName("return_type")
	if last == nil {
		last = params
	}
	s.sink.RecordSymbolSignatureLocation(id, ports.RangeOf(s.fileID, s.unit.SpanBetween(node.Child(0), last)))

	frame := newFrame(id, frameKind, name, node)
	if sc := s.table.ScopeFor(node); sc != nil {
		frame.SelfParam = sc.SelfParam
	}
	s.stack.Push(frame)
	if method {
		s.recordOverrides(id, nameNode)
	}

	names, rest := splitParameters(params)
	visit := append(names, rest...)
	visit = append(visit,
		node.ChildByFieldName("type_parameters"),
		node.ChildByFieldName("return_type"),
		node.ChildByFieldName("body"),
	)
	ctx.Descend(visit...)
	return true
}

// splitParameters separates the names a parameter list binds from its
// annotations and default values.
func splitParameters(params *sitter.Node) (names, rest []*sitter.Node) {
	for _, p := range parser.NamedChildren(params) {
		switch p.Kind() {
		case "identifier", "tuple_pattern":
			names = append(names, p)
		case "list_splat_pattern", "dictionary_splat_pattern":
			names = append(names, splatName(p))
		case "typed_parameter":
			if first := p.NamedChild(0); first != nil {
				names = append(names, splatName(first))
			}
			rest = append(rest, p.ChildByFieldName("type"))
		case "default_parameter", "typed_default_parameter":
			names = append(names, p.ChildByFieldName("name"))
			rest = append(rest, p.ChildByFieldName("type"), p.ChildByFieldName("value"))
		}
	}
	return names, rest
}

func splatName(n *sitter.Node) *sitter.Node {
	switch n.Kind() {
	case "list_splat_pattern", "dictionary_splat_pattern":
		if id := parser.ChildOfKind(n, "identifier"); id != nil {
			return id
		}
	}
	return n
}

func (s *Session) exitDefinition(_ *parser.WalkContext, node *sitter.Node) bool {
	s.stack.PopIfAnchor(node)
	return false
}

func (s *Session) enterIdentifier(_ *parser.WalkContext, node *sitter.Node) bool {
	s.classifyName(node)
	return true
}

func (s *Session) enterImport(_ *parser.WalkContext, node *sitter.Node) bool {
	s.checkImports(node)
	return false
}

// enterKeywordArgument skips the keyword of "f(x=1)" and "case P(x=1)".
func (s *Session) enterKeywordArgument(ctx *parser.WalkContext, node *sitter.Node) bool {
	children := parser.Children(node)
	if len(children) > 0 && children[0].Kind() == "identifier" {
		children = children[1:]
	}
	ctx.Descend(children...)
	return true
}

func (s *Session) enterString(_ *parser.WalkContext, node *sitter.Node) bool {
	if span := s.unit.Span(node); span.MultiLine() {
		s.sink.RecordAtomicSourceRange(ports.RangeOf(s.fileID, span))
	}
	return false
}

// enterError reports an ERROR node at the token the parser failed on.
// Errors nested in another ERROR were already reported.
func (s *Session) enterError(_ *parser.WalkContext, node *sitter.Node) bool {
	if parser.Ancestor(node, "ERROR") != nil {
		return false
	}
	s.recordSyntaxError(syntaxErrorAt(node))
	return false
}
