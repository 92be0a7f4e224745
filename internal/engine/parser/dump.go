package parser

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

const dumpIndent = "| "

// Dump writes one line per node, indented by depth, with the token text of
// leaves and the source range of every node.
func Dump(w io.Writer, unit *Unit) error {
	var werr error
	engine := NewExtractorEngine(nil, nil)
	engine.EnterAny = func(ctx *WalkContext, node *sitter.Node) bool {
		if werr != nil {
			return true
		}
		var b strings.Builder
		b.WriteString("AST: ")
		b.WriteString(strings.Repeat(dumpIndent, ctx.Depth))
		b.WriteString(node.Kind())
		if node.IsMissing() {
			b.WriteString(" (missing)")
		} else if node.ChildCount() == 0 {
			b.WriteString(" (")
			b.WriteString(strconv.Quote(ctx.Unit.Text(node)))
			b.WriteString(")")
		}
		b.WriteByte(' ')
		b.WriteString(ctx.Unit.Span(node).String())
		_, werr = fmt.Fprintln(w, b.String())
		return false
	}
	engine.Walk(&WalkContext{Unit: unit}, unit.Root())
	return werr
}
