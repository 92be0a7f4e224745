package scope

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/engine/parser"
)

var comprehensionKinds = []string{
	"list_comprehension",
	"set_comprehension",
	"dictionary_comprehension",
	"generator_expression",
}

type nodeKey struct {
	start, end uint
	kind       string
}

func keyOf(n *sitter.Node) nodeKey {
	return nodeKey{start: n.StartByte(), end: n.EndByte(), kind: n.Kind()}
}

// Table is the scope analysis of one unit. It is immutable once built.
type Table struct {
	Unit *parser.Unit
	Root *Scope

	scopes map[nodeKey]*Scope
	sites  map[uint]*Binding
	calls  []*sitter.Node
}

type builder struct {
	table *Table
	stack []*Scope
}

// Build analyses unit. It never fails; syntax errors leave gaps in the tables.
func Build(unit *parser.Unit) *Table {
	root := unit.Root()
	t := &Table{
		Unit:   unit,
		scopes: make(map[nodeKey]*Scope),
		sites:  make(map[uint]*Binding),
	}
	t.Root = newScope(ModuleScope, root, nil)
	if root == nil {
		return t
	}
	t.scopes[keyOf(root)] = t.Root

	b := &builder{table: t, stack: []*Scope{t.Root}}
	enter := map[string]parser.NodeHandler{
		"class_definition":     b.enterClass,
		"function_definition":  b.enterFunction,
		"lambda":               b.enterLambda,
		"assignment":           b.assignment,
		"augmented_assignment": b.augmentedAssignment,
		"for_statement":        b.forTargets,
		"for_in_clause":        b.forTargets,
		"as_pattern":           b.asPattern,
		"named_expression":     b.namedExpression,
		"global_statement":     b.declare,
		"nonlocal_statement":   b.declare,
		"import_statement":     b.importStatement,
		"import_from_statement": b.importFrom,
		"call": func(ctx *parser.WalkContext, node *sitter.Node) bool {
			t.calls = append(t.calls, node)
			return false
		},
	}
	exit := map[string]parser.NodeHandler{
		"class_definition":    b.pop,
		"function_definition": b.pop,
		"lambda":              b.pop,
	}
	for _, kind := range comprehensionKinds {
		enter[kind] = b.enterComprehension
		exit[kind] = b.pop
	}

	parser.NewExtractorEngine(enter, exit).Walk(&parser.WalkContext{Unit: unit}, root)
	return t
}

func (b *builder) top() *Scope {
	return b.stack[len(b.stack)-1]
}

func (b *builder) push(s *Scope) {
	b.table.scopes[keyOf(s.Node)] = s
	b.stack = append(b.stack, s)
}

func (b *builder) pop(ctx *parser.WalkContext, node *sitter.Node) bool {
	if len(b.stack) > 1 && parser.SameNode(b.top().Node, node) {
		b.stack = b.stack[:len(b.stack)-1]
	}
	return false
}

func (b *builder) text(n *sitter.Node) string {
	return b.table.Unit.Text(n)
}

func decoratorsOf(def *sitter.Node) []*sitter.Node {
	parent := def.Parent()
	if parent == nil || parent.Kind() != "decorated_definition" {
		return nil
	}
	var out []*sitter.Node
	for _, c := range parser.Children(parent) {
		if c.Kind() != "decorator" {
			continue
		}
		if expr := c.NamedChild(0); expr != nil {
			out = append(out, expr)
		}
	}
	return out
}

func (b *builder) enterClass(ctx *parser.WalkContext, node *sitter.Node) bool {
	name := node.ChildByFieldName("name")
	cur := b.top()
	s := newScope(ClassScope, node, cur)
	s.Decorators = decoratorsOf(node)
	if name != nil {
		s.Name = b.text(name)
		b.bindName(cur, name, &Binding{Kind: BindClass, Def: node})
	}
	b.push(s)
	return false
}

func (b *builder) enterFunction(ctx *parser.WalkContext, node *sitter.Node) bool {
	name := node.ChildByFieldName("name")
	cur := b.top()
	s := newScope(FunctionScope, node, cur)
	s.Decorators = decoratorsOf(node)
	if name != nil {
		s.Name = b.text(name)
		b.bindName(cur, name, &Binding{Kind: BindFunction, Def: node})
	}
	b.bindParams(s, node.ChildByFieldName("parameters"))
	if s.IsMethod() && !s.HasDecorator(b.table.Unit, "staticmethod") {
		for _, p := range s.Params {
			if p.ParamIndex == 0 {
				s.SelfParam = p.Name
				break
			}
		}
	}
	b.push(s)
	return false
}

func (b *builder) enterLambda(ctx *parser.WalkContext, node *sitter.Node) bool {
	s := newScope(LambdaScope, node, b.top())
	b.bindParams(s, node.ChildByFieldName("parameters"))
	b.push(s)
	return false
}

func (b *builder) enterComprehension(ctx *parser.WalkContext, node *sitter.Node) bool {
	b.push(newScope(ComprehensionScope, node, b.top()))
	return false
}

func (b *builder) bindParams(s *Scope, params *sitter.Node) {
	if params == nil {
		return
	}
	index := 0
	keywordOnly := false
	add := func(ident, typ, value *sitter.Node, variadic bool) {
		if ident == nil || ident.Kind() != "identifier" {
			return
		}
		p := &Binding{Kind: BindParam, Def: params, Type: typ, Value: value, ParamIndex: -1}
		if !variadic && !keywordOnly {
			p.ParamIndex = index
			index++
		}
		b.bindName(s, ident, p)
		s.Params = append(s.Params, p)
	}

	for _, p := range parser.NamedChildren(params) {
		switch p.Kind() {
		case "identifier":
			add(p, nil, nil, false)
		case "typed_parameter":
			inner := p.NamedChild(0)
			typ := p.ChildByFieldName("type")
			if inner == nil {
				continue
			}
			switch inner.Kind() {
			case "identifier":
				add(inner, typ, nil, false)
			case "list_splat_pattern":
				add(inner.NamedChild(0), typ, nil, true)
				keywordOnly = true
			case "dictionary_splat_pattern":
				add(inner.NamedChild(0), typ, nil, true)
			}
		case "default_parameter", "typed_default_parameter":
			add(p.ChildByFieldName("name"), p.ChildByFieldName("type"), p.ChildByFieldName("value"), false)
		case "list_splat_pattern":
			add(p.NamedChild(0), nil, nil, true)
			keywordOnly = true
		case "dictionary_splat_pattern":
			add(p.NamedChild(0), nil, nil, true)
		case "keyword_separator":
			keywordOnly = true
		}
	}
}

// bindName records a binding of ident in s, honouring global and nonlocal
// declarations made earlier in s.
func (b *builder) bindName(s *Scope, ident *sitter.Node, binding *Binding) {
	name := b.text(ident)
	if name == "" {
		return
	}
	target := s
	if s.Globals[name] {
		target = b.table.Root
	} else if s.Nonlocals[name] {
		target = nonlocalTarget(s, name)
	}
	binding.Name = name
	binding.Node = ident
	if binding.Kind != BindParam {
		binding.ParamIndex = -1
	}
	target.add(binding)
	b.table.sites[ident.StartByte()] = binding
}

func nonlocalTarget(s *Scope, name string) *Scope {
	var fallback *Scope
	for p := s.Parent; p != nil; p = p.Parent {
		if p.Kind != FunctionScope && p.Kind != LambdaScope {
			continue
		}
		if fallback == nil {
			fallback = p
		}
		if len(p.Local(name)) > 0 {
			return p
		}
	}
	if fallback == nil {
		return s
	}
	return fallback
}

func (b *builder) bindTargets(target, value, typ, def *sitter.Node, unpacked bool) {
	if target == nil {
		return
	}
	switch target.Kind() {
	case "identifier":
		b.bindName(b.top(), target, &Binding{Kind: BindAssign, Def: def, Value: value, Type: typ, Unpacked: unpacked})
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list", "expression_list", "as_pattern_target":
		for _, c := range parser.NamedChildren(target) {
			b.bindTargets(c, nil, nil, def, unpacked || target.Kind() != "as_pattern_target")
		}
	case "parenthesized_expression", "list_splat_pattern", "list_splat":
		b.bindTargets(target.NamedChild(0), value, typ, def, true)
	case "attribute":
		b.bindAttribute(target, value, typ, def)
	}
}

func (b *builder) bindAttribute(target, value, typ, def *sitter.Node) {
	object := target.ChildByFieldName("object")
	attr := target.ChildByFieldName("attribute")
	if object == nil || attr == nil || object.Kind() != "identifier" {
		return
	}
	class := b.table.MethodClassForSelf(b.top(), b.text(object))
	if class == nil {
		return
	}
	binding := &Binding{Name: b.text(attr), Kind: BindAssign, Node: attr, Def: def, Value: value, Type: typ, ParamIndex: -1}
	class.addInstanceAttr(binding)
	b.table.sites[attr.StartByte()] = binding
}

func (b *builder) assignment(ctx *parser.WalkContext, node *sitter.Node) bool {
	value := node.ChildByFieldName("right")
	for value != nil && value.Kind() == "assignment" {
		value = value.ChildByFieldName("right")
	}
	b.bindTargets(node.ChildByFieldName("left"), value, node.ChildByFieldName("type"), node, false)
	return false
}

func (b *builder) augmentedAssignment(ctx *parser.WalkContext, node *sitter.Node) bool {
	b.bindTargets(node.ChildByFieldName("left"), nil, nil, node, false)
	return false
}

func (b *builder) forTargets(ctx *parser.WalkContext, node *sitter.Node) bool {
	b.bindTargets(node.ChildByFieldName("left"), nil, nil, node, true)
	return false
}

func (b *builder) asPattern(ctx *parser.WalkContext, node *sitter.Node) bool {
	alias := node.ChildByFieldName("alias")
	if alias == nil {
		return false
	}
	var typ *sitter.Node
	if parent := node.Parent(); parent != nil && strings.HasPrefix(parent.Kind(), "except") {
		typ = node.NamedChild(0)
	}
	for _, c := range parser.NamedChildren(alias) {
		if c.Kind() == "identifier" {
			b.bindName(b.top(), c, &Binding{Kind: BindAssign, Def: node, Type: typ})
			continue
		}
		b.bindTargets(c, nil, nil, node, true)
	}
	return false
}

func (b *builder) namedExpression(ctx *parser.WalkContext, node *sitter.Node) bool {
	name := node.ChildByFieldName("name")
	if name == nil {
		return false
	}
	s := b.top()
	for s.Kind == ComprehensionScope && s.Parent != nil {
		s = s.Parent
	}
	b.bindName(s, name, &Binding{Kind: BindAssign, Def: node, Value: node.ChildByFieldName("value")})
	return false
}

func (b *builder) declare(ctx *parser.WalkContext, node *sitter.Node) bool {
	s := b.top()
	for _, c := range parser.NamedChildren(node) {
		if c.Kind() != "identifier" {
			continue
		}
		if node.Kind() == "global_statement" {
			s.Globals[b.text(c)] = true
		} else {
			s.Nonlocals[b.text(c)] = true
		}
	}
	return false
}

func (b *builder) importStatement(ctx *parser.WalkContext, node *sitter.Node) bool {
	s := b.top()
	for _, c := range parser.NamedChildren(node) {
		switch c.Kind() {
		case "dotted_name":
			parts := b.dottedParts(c)
			first := c.NamedChild(0)
			if len(parts) == 0 || first == nil {
				continue
			}
			b.bindName(s, first, &Binding{Kind: BindImport, Def: node, Import: &ImportRef{Module: parts[:1]}})
		case "aliased_import":
			alias := c.ChildByFieldName("alias")
			parts := b.dottedParts(c.ChildByFieldName("name"))
			if alias == nil || len(parts) == 0 {
				continue
			}
			b.bindName(s, alias, &Binding{Kind: BindImport, Def: node, Import: &ImportRef{Module: parts, Alias: true}})
		}
	}
	return false
}

func (b *builder) importFrom(ctx *parser.WalkContext, node *sitter.Node) bool {
	s := b.top()
	moduleNode := node.ChildByFieldName("module_name")
	level, parts := ModulePath(b.table.Unit, moduleNode)

	for _, c := range parser.NamedChildren(node) {
		if parser.SameNode(c, moduleNode) {
			continue
		}
		switch c.Kind() {
		case "dotted_name":
			first := c.NamedChild(0)
			if first == nil {
				continue
			}
			b.bindName(s, first, &Binding{Kind: BindImport, Def: node, Import: &ImportRef{Module: parts, Level: level, Member: b.text(first)}})
		case "aliased_import":
			alias := c.ChildByFieldName("alias")
			name := c.ChildByFieldName("name")
			if alias == nil || name == nil {
				continue
			}
			b.bindName(s, alias, &Binding{Kind: BindImport, Def: node, Import: &ImportRef{Module: parts, Level: level, Member: b.text(name), Alias: true}})
		case "wildcard_import":
			s.Stars = append(s.Stars, &ImportRef{Module: parts, Level: level})
		}
	}
	return false
}

func (b *builder) dottedParts(n *sitter.Node) []string {
	return DottedParts(b.table.Unit, n)
}

// DottedParts returns the identifier texts of a dotted_name (or a lone identifier).
func DottedParts(unit *parser.Unit, n *sitter.Node) []string {
	if n == nil {
		return nil
	}
	if n.Kind() == "identifier" {
		return []string{unit.Text(n)}
	}
	var parts []string
	for _, c := range parser.NamedChildren(n) {
		if c.Kind() == "identifier" {
			parts = append(parts, unit.Text(c))
		}
	}
	return parts
}

// ModulePath splits an import module node, dotted_name or relative_import,
// into its relative level and dotted parts.
func ModulePath(unit *parser.Unit, n *sitter.Node) (int, []string) {
	if n == nil {
		return 0, nil
	}
	if n.Kind() != "relative_import" {
		return 0, DottedParts(unit, n)
	}
	level := 0
	var parts []string
	for _, c := range parser.NamedChildren(n) {
		switch c.Kind() {
		case "import_prefix":
			level = strings.Count(unit.Text(c), ".")
		case "dotted_name":
			parts = DottedParts(unit, c)
		}
	}
	return level, parts
}
