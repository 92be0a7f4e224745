package oracle

import (
	"pyindexer/internal/engine/scope"
)

type member struct {
	mod     *Module
	binding *scope.Binding
}

// classMembers finds name on a class, instance or super proxy. Class body
// bindings win over instance attributes; the first class in the method
// resolution order that has either provides all of its bindings.
func (o *Oracle) classMembers(v value, name string) []member {
	if v.ref.scope == nil {
		return nil
	}
	mro := o.mro(v.ref)
	start := 0
	if v.kind == superValue {
		start = 1
		for i, c := range mro {
			if c.same(v.from) {
				start = i + 1
				break
			}
		}
	}
	if start >= len(mro) {
		return nil
	}
	collect := func(lookup func(*scope.Scope) []*scope.Binding) []member {
		for _, c := range mro[start:] {
			bs := lookup(c.scope)
			if len(bs) == 0 {
				continue
			}
			out := make([]member, 0, len(bs))
			for _, b := range bs {
				out = append(out, member{mod: c.mod, binding: b})
			}
			return out
		}
		return nil
	}
	if out := collect(func(s *scope.Scope) []*scope.Binding { return s.Local(name) }); len(out) > 0 {
		return out
	}
	if v.kind == classValue {
		return nil
	}
	return collect(func(s *scope.Scope) []*scope.Binding { return s.InstanceAttrs(name) })
}

// mro linearizes the class hierarchy of c with C3, falling back to a
// depth-first, left-to-right order when the hierarchy is inconsistent.
// Bases that cannot be inferred to source classes are left out.
func (o *Oracle) mro(c classRef) []classRef {
	out := guard(o, o.mros, "mro:"+c.key(), func() []classRef {
		bases := o.bases(c)
		seqs := make([][]classRef, 0, len(bases)+2)
		seqs = append(seqs, []classRef{c})
		for _, b := range bases {
			seqs = append(seqs, o.mro(b))
		}
		seqs = append(seqs, bases)
		if merged, ok := c3(seqs); ok {
			return merged
		}
		return depthFirst(c, o)
	})
	if len(out) == 0 {
		return []classRef{c}
	}
	return out
}

func (o *Oracle) bases(c classRef) []classRef {
	supers := c.scope.Node.ChildByFieldName("superclasses")
	if supers == nil {
		return nil
	}
	var out []classRef
	for _, arg := range positionalArgsOf(supers) {
		for _, v := range o.infer(c.mod, arg) {
			if v.kind != classValue || v.ref.scope == nil {
				continue
			}
			dup := false
			for _, have := range out {
				if have.same(v.ref) {
					dup = true
					break
				}
			}
			if !dup && !v.ref.same(c) {
				out = append(out, v.ref)
			}
		}
	}
	return out
}

func c3(seqs [][]classRef) ([]classRef, bool) {
	var out []classRef
	for {
		live := seqs[:0:0]
		for _, s := range seqs {
			if len(s) > 0 {
				live = append(live, s)
			}
		}
		if len(live) == 0 {
			return out, true
		}

		var head *classRef
		for _, s := range live {
			candidate := s[0]
			if !inTail(candidate, live) {
				head = &candidate
				break
			}
		}
		if head == nil {
			return nil, false
		}
		out = append(out, *head)
		for i, s := range live {
			if s[0].same(*head) {
				live[i] = s[1:]
			}
		}
		seqs = live
	}
}

func inTail(c classRef, seqs [][]classRef) bool {
	for _, s := range seqs {
		for _, other := range s[1:] {
			if other.same(c) {
				return true
			}
		}
	}
	return false
}

func depthFirst(c classRef, o *Oracle) []classRef {
	var out []classRef
	var visit func(classRef)
	visit = func(cur classRef) {
		for _, have := range out {
			if have.same(cur) {
				return
			}
		}
		out = append(out, cur)
		for _, b := range o.bases(cur) {
			visit(b)
		}
	}
	visit(c)
	return out
}
