package indexer

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/engine/parser"
)

// errorTokenType names characters the lexer could not match.
const errorTokenType = "ERRORTOKEN"

// syntaxErrorAt returns the token a parse failure is reported at. An ERROR
// node either wraps stray tokens, reported at the first of them, or a
// construct the parser could not finish, reported at the first token that
// does not continue it: "def f()" followed by "pass" fails at "pass".
func syntaxErrorAt(node *sitter.Node) *sitter.Node {
	children := parser.Children(node)
	if len(children) == 0 {
		return node
	}
	first := children[0]
	if first.IsError() {
		return syntaxErrorAt(first)
	}
	if isStray(first) {
		return parser.FirstLeaf(first)
	}
	for _, c := range children[1:] {
		if c.IsError() {
			return syntaxErrorAt(c)
		}
		if startsStatement(c) {
			return parser.FirstLeaf(c)
		}
	}
	if next := nextToken(node); next != nil {
		return next
	}
	return parser.LastLeaf(node)
}

// isStray reports punctuation that cannot begin a construct, such as a
// closing bracket.
func isStray(n *sitter.Node) bool {
	if n.IsNamed() {
		return false
	}
	kind := n.Kind()
	if kind == "" {
		return true
	}
	for _, r := range kind {
		if !(r == '_' || r >= 'a' && r <= 'z') {
			return true
		}
	}
	return false
}

func startsStatement(n *sitter.Node) bool {
	switch kind := n.Kind(); kind {
	case "block", "function_definition", "class_definition", "decorated_definition", "decorator":
		return true
	default:
		return strings.HasSuffix(kind, "_statement")
	}
}

// nextToken is the first non-comment token after node.
func nextToken(node *sitter.Node) *sitter.Node {
	next := parser.NextLeaf(node)
	for next != nil && next.Kind() == "comment" {
		next = parser.NextLeaf(next)
	}
	return next
}

// recordSyntaxError records one error per offending token.
func (s *Session) recordSyntaxError(at *sitter.Node) {
	if s.reported == nil {
		s.reported = make(map[uint]bool)
	}
	if s.reported[at.StartByte()] {
		return
	}
	s.reported[at.StartByte()] = true
	s.recordError(unexpectedToken(at), at)
}

func unexpectedToken(n *sitter.Node) string {
	kind := n.Kind()
	if n.IsError() && n.ChildCount() == 0 {
		kind = errorTokenType
	}
	return fmt.Sprintf("Unexpected token of type %q encountered.", kind)
}
