package oracle

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/scope"
)

var literalTypes = map[string]string{
	"string":                   "str",
	"concatenated_string":      "str",
	"integer":                  "int",
	"float":                    "float",
	"true":                     "bool",
	"false":                    "bool",
	"list":                     "list",
	"list_comprehension":       "list",
	"dictionary":               "dict",
	"dictionary_comprehension": "dict",
	"set":                      "set",
	"set_comprehension":        "set",
	"tuple":                    "tuple",
}

// infer returns the values expr may evaluate to.
func (o *Oracle) infer(mod *Module, expr *sitter.Node) []value {
	if expr == nil || mod.Unit == nil {
		return nil
	}
	return guard(o, o.values, nodeKey("infer", mod, expr), func() []value {
		return dedupe(o.inferNode(mod, expr))
	})
}

func (o *Oracle) inferNode(mod *Module, expr *sitter.Node) []value {
	unit := mod.Unit
	switch expr.Kind() {
	case "identifier":
		return o.inferName(mod, expr)
	case "attribute":
		return o.memberValues(o.infer(mod, expr.ChildByFieldName("object")), unit.Text(expr.ChildByFieldName("attribute")))
	case "call":
		return o.inferCall(mod, expr)
	case "parenthesized_expression", "await":
		return o.infer(mod, expr.NamedChild(0))
	case "conditional_expression":
		return append(o.infer(mod, expr.NamedChild(0)), o.infer(mod, expr.NamedChild(2))...)
	case "boolean_operator":
		return append(o.infer(mod, expr.ChildByFieldName("left")), o.infer(mod, expr.ChildByFieldName("right"))...)
	case "type":
		return o.infer(mod, expr.NamedChild(0))
	case "generic_type", "subscript":
		// List[int] and friends: the container is what we can name
		return o.infer(mod, expr.NamedChild(0))
	}
	if full, ok := literalTypes[expr.Kind()]; ok {
		return []value{{kind: builtinValue, builtin: builtinInstance, full: full}}
	}
	return nil
}

func (o *Oracle) inferName(mod *Module, ident *sitter.Node) []value {
	table := mod.Table()
	if b := table.BindingAt(ident); b != nil {
		return o.bindingValues(mod, b)
	}
	name := mod.Unit.Text(ident)
	if bs := table.Lookup(table.ScopeOf(ident), name); len(bs) > 0 {
		var out []value
		for _, b := range bs {
			out = append(out, o.bindingValues(mod, b)...)
		}
		return out
	}
	for _, star := range table.Root.Stars {
		base := o.ws.ImportRelative(mod, star.Level, star.Module)
		if base == nil || base.External {
			continue
		}
		if out := o.moduleMemberValues(base, name); len(out) > 0 {
			return out
		}
	}
	if kind, ok := pythonBuiltins[name]; ok {
		return []value{{kind: builtinValue, builtin: kind, full: name}}
	}
	return nil
}

func (o *Oracle) bindingValues(mod *Module, b *scope.Binding) []value {
	table := mod.Table()
	switch b.Kind {
	case scope.BindClass:
		return []value{{kind: classValue, ref: classRef{mod: mod, scope: table.ScopeFor(b.Def)}}}
	case scope.BindFunction:
		return []value{{kind: functionValue, ref: classRef{mod: mod, scope: table.ScopeFor(b.Def)}}}
	case scope.BindImport:
		return o.importValues(mod, b.Import)
	case scope.BindParam:
		return o.paramValues(mod, b)
	}
	var out []value
	if b.Value != nil && !b.Unpacked {
		out = append(out, o.infer(mod, b.Value)...)
	}
	if b.Type != nil {
		out = append(out, instancesOf(o.infer(mod, b.Type))...)
	}
	return out
}

func (o *Oracle) importValues(mod *Module, ref *scope.ImportRef) []value {
	if ref.Member == "" {
		if m := o.ws.Import(ref.Module); m != nil {
			return []value{moduleOrExternal(m)}
		}
		return nil
	}
	base := o.ws.ImportRelative(mod, ref.Level, ref.Module)
	if base == nil {
		return nil
	}
	return o.moduleMemberValues(base, ref.Member)
}

func moduleOrExternal(m *Module) value {
	if m.External {
		return value{kind: externalValue, full: m.Name}
	}
	return value{kind: moduleValue, module: m}
}

func (o *Oracle) moduleMemberValues(m *Module, name string) []value {
	if m.External {
		return []value{{kind: externalValue, full: m.Name + "." + name}}
	}
	return guard(o, o.values, "member-values:"+m.Path+":"+name, func() []value {
		if t := m.Table(); t != nil {
			if bs := t.Root.Local(name); len(bs) > 0 {
				var out []value
				for _, b := range bs {
					out = append(out, o.bindingValues(m, b)...)
				}
				return dedupe(out)
			}
			for _, star := range t.Root.Stars {
				base := o.ws.ImportRelative(m, star.Level, star.Module)
				if base == nil || base.External {
					continue
				}
				if out := o.moduleMemberValues(base, name); len(out) > 0 {
					return out
				}
			}
		}
		if sub := o.ws.Submodule(m, name); sub != nil {
			return []value{moduleOrExternal(sub)}
		}
		return nil
	})
}

func (o *Oracle) memberValues(objects []value, name string) []value {
	var out []value
	for _, v := range objects {
		switch v.kind {
		case moduleValue:
			out = append(out, o.moduleMemberValues(v.module, name)...)
		case externalValue:
			out = append(out, value{kind: externalValue, full: v.full + "." + name})
		case classValue, instanceValue, superValue:
			for _, m := range o.classMembers(v, name) {
				vals := o.bindingValues(m.mod, m.binding)
				if v.kind != classValue && m.binding.Kind == scope.BindFunction && len(vals) > 0 {
					if fn := vals[0].ref.scope; fn != nil && fn.HasDecorator(m.mod.Unit, "property") {
						vals = o.returnValues(m.mod, fn)
					}
				}
				out = append(out, vals...)
			}
		}
	}
	return out
}

func (o *Oracle) inferCall(mod *Module, call *sitter.Node) []value {
	callee := call.ChildByFieldName("function")
	var out []value
	for _, v := range o.infer(mod, callee) {
		switch v.kind {
		case classValue:
			out = append(out, value{kind: instanceValue, ref: v.ref})
		case functionValue:
			out = append(out, o.returnValues(v.ref.mod, v.ref.scope)...)
		case builtinValue:
			if v.builtin != builtinClass {
				continue
			}
			if v.full == "super" {
				out = append(out, o.superValues(mod, call)...)
				continue
			}
			out = append(out, value{kind: builtinValue, builtin: builtinInstance, full: v.full})
		}
	}
	return out
}

// superValues builds the proxy for super() and super(C, obj).
func (o *Oracle) superValues(mod *Module, call *sitter.Node) []value {
	args := positionalArgs(call)
	if len(args) == 0 {
		table := mod.Table()
		for s := table.ScopeOf(call); s != nil; s = s.Parent {
			if s.IsMethod() {
				c := classRef{mod: mod, scope: s.Parent}
				return []value{{kind: superValue, ref: c, from: c}}
			}
		}
		return nil
	}

	var out []value
	for _, from := range o.infer(mod, args[0]) {
		if from.kind != classValue {
			continue
		}
		instanceClass := from.ref
		if len(args) > 1 {
			for _, obj := range o.infer(mod, args[1]) {
				if obj.kind == instanceValue || obj.kind == classValue {
					instanceClass = obj.ref
					break
				}
			}
		}
		out = append(out, value{kind: superValue, ref: instanceClass, from: from.ref})
	}
	return out
}

func positionalArgs(call *sitter.Node) []*sitter.Node {
	return positionalArgsOf(call.ChildByFieldName("arguments"))
}

func positionalArgsOf(args *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, a := range parser.NamedChildren(args) {
		switch a.Kind() {
		case "keyword_argument", "list_splat", "dictionary_splat", "comment":
			continue
		}
		out = append(out, a)
	}
	return out
}

// returnValues infers what calling fn produces: its return expressions,
// or its return annotation when none can be inferred.
func (o *Oracle) returnValues(mod *Module, fn *scope.Scope) []value {
	if fn == nil || fn.Kind != scope.FunctionScope {
		return nil
	}
	var returns []*sitter.Node
	engine := parser.NewExtractorEngine(map[string]parser.NodeHandler{
		"function_definition": skipNested,
		"class_definition":    skipNested,
		"lambda":              skipNested,
		"return_statement": func(ctx *parser.WalkContext, node *sitter.Node) bool {
			returns = append(returns, node)
			return true
		},
	}, nil)
	engine.Walk(&parser.WalkContext{Unit: mod.Unit}, fn.Node.ChildByFieldName("body"))

	var out []value
	for _, r := range returns {
		out = append(out, o.infer(mod, r.NamedChild(0))...)
	}
	if len(out) == 0 {
		out = instancesOf(o.infer(mod, fn.Node.ChildByFieldName("return_type")))
	}
	return out
}

func skipNested(ctx *parser.WalkContext, node *sitter.Node) bool {
	return true
}

// paramValues infers a parameter: the first parameter of a method is its
// class instance, annotated parameters are instances of their annotation,
// anything else is taken from defaults and call sites.
func (o *Oracle) paramValues(mod *Module, p *scope.Binding) []value {
	fn := p.Scope
	if fn.IsMethod() && p.ParamIndex == 0 && fn.SelfParam == p.Name {
		c := classRef{mod: mod, scope: fn.Parent}
		if fn.HasDecorator(mod.Unit, "classmethod") {
			return []value{{kind: classValue, ref: c}}
		}
		return []value{{kind: instanceValue, ref: c}}
	}
	if p.Type != nil {
		if out := instancesOf(o.infer(mod, p.Type)); len(out) > 0 {
			return out
		}
	}
	var out []value
	if p.Value != nil {
		out = append(out, o.infer(mod, p.Value)...)
	}
	return append(out, o.callSiteValues(mod, fn, p)...)
}

// callSiteValues collects the arguments passed for p at every call of fn
// in fn's own module.
func (o *Oracle) callSiteValues(mod *Module, fn *scope.Scope, p *scope.Binding) []value {
	if fn.Kind != scope.FunctionScope || fn.Name == "" {
		return nil
	}
	unit := mod.Unit
	var out []value
	for _, call := range mod.Table().Calls() {
		callee := call.ChildByFieldName("function")
		last := callee
		if callee != nil && callee.Kind() == "attribute" {
			last = callee.ChildByFieldName("attribute")
		}
		if last == nil || unit.Text(last) != fn.Name {
			continue
		}
		if !o.calls(mod, callee, fn) {
			continue
		}

		index := p.ParamIndex
		if o.boundCall(mod, callee, fn) {
			index--
		}
		position := 0
		for _, a := range parser.NamedChildren(call.ChildByFieldName("arguments")) {
			switch a.Kind() {
			case "keyword_argument":
				if unit.Text(a.ChildByFieldName("name")) == p.Name {
					out = append(out, o.infer(mod, a.ChildByFieldName("value"))...)
				}
			case "list_splat", "dictionary_splat", "comment":
			default:
				if index >= 0 && position == index {
					out = append(out, o.infer(mod, a)...)
				}
				position++
			}
		}
	}
	return out
}

func (o *Oracle) calls(mod *Module, callee *sitter.Node, fn *scope.Scope) bool {
	for _, v := range o.infer(mod, callee) {
		if v.kind == functionValue && v.ref.scope == fn {
			return true
		}
	}
	return false
}

// boundCall reports whether callee passes its receiver as fn's first
// parameter.
func (o *Oracle) boundCall(mod *Module, callee *sitter.Node, fn *scope.Scope) bool {
	if callee.Kind() != "attribute" || !fn.IsMethod() || fn.SelfParam == "" {
		return false
	}
	classmethod := fn.HasDecorator(mod.Unit, "classmethod")
	for _, v := range o.infer(mod, callee.ChildByFieldName("object")) {
		switch v.kind {
		case instanceValue, superValue:
			return true
		case classValue:
			if classmethod {
				return true
			}
		}
	}
	return false
}
