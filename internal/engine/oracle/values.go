package oracle

import (
	"fmt"

	"pyindexer/internal/engine/scope"
)

type valueKind int

const (
	moduleValue valueKind = iota
	classValue
	instanceValue
	functionValue
	superValue
	builtinValue
	externalValue
)

// classRef names a class or function scope together with its module.
type classRef struct {
	mod   *Module
	scope *scope.Scope
}

func (c classRef) same(other classRef) bool {
	return c.scope == other.scope
}

func (c classRef) key() string {
	if c.scope == nil || c.scope.Node == nil {
		return "nil"
	}
	return fmt.Sprintf("%s@%d:%d", c.mod.Path, c.scope.Node.StartByte(), c.scope.Node.EndByte())
}

// value is an inferred runtime object.
type value struct {
	kind valueKind

	module *Module
	// ref is the class (classValue, instanceValue, superValue's instance
	// class) or the function (functionValue).
	ref classRef
	// from is the class super() was called in.
	from classRef

	// full is the dotted name of builtin and external values; builtin
	// marks which builtin entity it is.
	full    string
	builtin builtinKind
}

func (v value) key() string {
	switch v.kind {
	case moduleValue:
		return "module:" + v.module.Name + ":" + v.module.Path
	case builtinValue:
		return fmt.Sprintf("builtin:%d:%s", v.builtin, v.full)
	case externalValue:
		return "external:" + v.full
	case superValue:
		return fmt.Sprintf("super:%s:%s", v.ref.key(), v.from.key())
	default:
		return fmt.Sprintf("%d:%s", v.kind, v.ref.key())
	}
}

func appendUnique(dst []value, seen map[string]bool, vals ...value) []value {
	for _, v := range vals {
		k := v.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		dst = append(dst, v)
	}
	return dst
}

func dedupe(vals []value) []value {
	if len(vals) < 2 {
		return vals
	}
	return appendUnique(nil, make(map[string]bool, len(vals)), vals...)
}

// instancesOf turns annotation or callee values into the objects they
// produce.
func instancesOf(vals []value) []value {
	var out []value
	for _, v := range vals {
		switch v.kind {
		case classValue:
			out = append(out, value{kind: instanceValue, ref: v.ref})
		case builtinValue:
			if v.builtin == builtinClass {
				out = append(out, value{kind: builtinValue, builtin: builtinInstance, full: v.full})
			}
		case externalValue:
			out = append(out, v)
		}
	}
	return dedupe(out)
}
