package parser

import (
	"fmt"
	"sort"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Span is a 1-based source range. StartColumn is the column of the first
// character, EndColumn the column of the last one; columns count code points.
type Span struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func (s Span) String() string {
	return fmt.Sprintf("[%d:%d|%d:%d]", s.StartLine, s.StartColumn, s.EndLine, s.EndColumn)
}

func (s Span) MultiLine() bool {
	return s.StartLine != s.EndLine
}

// Unit is one parsed source file. The tree is read-only after parsing and
// may be shared between goroutines.
type Unit struct {
	Path   string
	Source []byte
	Tree   *sitter.Tree
	Hash   uint64

	lineStarts []int
}

func NewUnit(path string, source []byte, tree *sitter.Tree) *Unit {
	starts := []int{0}
	for i, b := range source {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Unit{
		Path:       path,
		Source:     source,
		Tree:       tree,
		Hash:       xxhash.Sum64(source),
		lineStarts: starts,
	}
}

func (u *Unit) Root() *sitter.Node {
	if u == nil || u.Tree == nil {
		return nil
	}
	return u.Tree.RootNode()
}

func (u *Unit) Close() {
	if u != nil && u.Tree != nil {
		u.Tree.Close()
		u.Tree = nil
	}
}

func (u *Unit) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	start, end := int(node.StartByte()), int(node.EndByte())
	if start < 0 || end > len(u.Source) || start > end {
		return ""
	}
	return string(u.Source[start:end])
}

// Position converts a byte offset to a 1-based line and 0-based code point column.
func (u *Unit) Position(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(u.Source) {
		offset = len(u.Source)
	}
	idx := sort.Search(len(u.lineStarts), func(i int) bool { return u.lineStarts[i] > offset }) - 1
	if idx < 0 {
		idx = 0
	}
	lineStart := u.lineStarts[idx]
	return idx + 1, utf8.RuneCount(u.Source[lineStart:offset])
}

// Span returns the source range of node. Zero-width nodes get EndColumn ==
// StartColumn so the range stays well-formed.
func (u *Unit) Span(node *sitter.Node) Span {
	if node == nil {
		return Span{}
	}
	sl, sc := u.Position(int(node.StartByte()))
	el, ec := u.Position(int(node.EndByte()))
	span := Span{StartLine: sl, StartColumn: sc + 1, EndLine: el, EndColumn: ec}
	if node.StartByte() == node.EndByte() {
		span.EndColumn = span.StartColumn
	}
	return span
}

// SpanBetween covers from the start of first to the end of last.
func (u *Unit) SpanBetween(first, last *sitter.Node) Span {
	if first == nil {
		return u.Span(last)
	}
	if last == nil {
		return u.Span(first)
	}
	start := u.Span(first)
	end := u.Span(last)
	return Span{StartLine: start.StartLine, StartColumn: start.StartColumn, EndLine: end.EndLine, EndColumn: end.EndColumn}
}
