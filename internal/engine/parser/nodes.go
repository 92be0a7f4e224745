package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// SameNode compares node identity, not structure.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.Id() == b.Id() && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// Ancestor returns the nearest strict ancestor whose kind is one of kinds.
func Ancestor(node *sitter.Node, kinds ...string) *sitter.Node {
	if node == nil {
		return nil
	}
	for p := node.Parent(); p != nil; p = p.Parent() {
		for _, k := range kinds {
			if p.Kind() == k {
				return p
			}
		}
	}
	return nil
}

// IsField reports whether child is the node stored under field in parent.
func IsField(parent *sitter.Node, field string, child *sitter.Node) bool {
	if parent == nil || child == nil {
		return false
	}
	return SameNode(parent.ChildByFieldName(field), child)
}

func Children(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.ChildCount())
	for i := uint(0); i < node.ChildCount(); i++ {
		if c := node.Child(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := uint(0); i < node.NamedChildCount(); i++ {
		if c := node.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func ChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	for _, c := range Children(node) {
		if c.Kind() == kind {
			return c
		}
	}
	return nil
}

// FirstLeaf descends through first children to a token.
func FirstLeaf(node *sitter.Node) *sitter.Node {
	for node != nil && node.ChildCount() > 0 {
		node = node.Child(0)
	}
	return node
}

// LastLeaf descends through last children to a token.
func LastLeaf(node *sitter.Node) *sitter.Node {
	for node != nil && node.ChildCount() > 0 {
		node = node.Child(node.ChildCount() - 1)
	}
	return node
}

// NextLeaf returns the token following node in source order, skipping
// zero-width tokens. Comments are tokens too.
func NextLeaf(node *sitter.Node) *sitter.Node {
	for cur := node; cur != nil; cur = cur.Parent() {
		for sib := cur.NextSibling(); sib != nil; sib = sib.NextSibling() {
			if sib.StartByte() == sib.EndByte() {
				continue
			}
			leaf := FirstLeaf(sib)
			if leaf != nil && leaf.StartByte() != leaf.EndByte() {
				return leaf
			}
		}
	}
	return nil
}

// Contains reports whether inner lies within outer's byte range.
func Contains(outer, inner *sitter.Node) bool {
	if outer == nil || inner == nil {
		return false
	}
	return outer.StartByte() <= inner.StartByte() && inner.EndByte() <= outer.EndByte()
}
