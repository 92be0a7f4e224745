package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
)

// NodeHandler processes a node on entry or exit. On entry, returning true
// tells the engine the handler took care of the children.
type NodeHandler func(ctx *WalkContext, node *sitter.Node) bool

// WalkContext carries per-walk state shared by all handlers.
type WalkContext struct {
	Unit  *Unit
	Depth int

	descend []*sitter.Node
	custom  bool
}

// Descend replaces generic child iteration for the current node with the
// given nodes, visited in order. Nil entries are ignored.
func (c *WalkContext) Descend(nodes ...*sitter.Node) {
	c.custom = true
	for _, n := range nodes {
		if n != nil {
			c.descend = append(c.descend, n)
		}
	}
}

func (c *WalkContext) reset() {
	c.descend = c.descend[:0]
	c.custom = false
}

// ExtractorEngine walks a syntax tree and dispatches handlers by node kind.
// The walk uses an explicit work stack so deeply nested expressions cannot
// exhaust the goroutine stack.
type ExtractorEngine struct {
	enter    map[string]NodeHandler
	exit     map[string]NodeHandler
	EnterAny NodeHandler
	ExitAny  NodeHandler
}

func NewExtractorEngine(enter, exit map[string]NodeHandler) *ExtractorEngine {
	if enter == nil {
		enter = map[string]NodeHandler{}
	}
	if exit == nil {
		exit = map[string]NodeHandler{}
	}
	return &ExtractorEngine{enter: enter, exit: exit}
}

type walkItem struct {
	node  *sitter.Node
	depth int
	exit  bool
}

func (e *ExtractorEngine) Walk(ctx *WalkContext, root *sitter.Node) {
	if root == nil {
		return
	}

	stack := []walkItem{{node: root}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := item.node
		ctx.Depth = item.depth

		if item.exit {
			if handler, ok := e.exit[node.Kind()]; ok {
				handler(ctx, node)
			}
			if e.ExitAny != nil {
				e.ExitAny(ctx, node)
			}
			continue
		}

		ctx.reset()
		stop := false
		if e.EnterAny != nil && e.EnterAny(ctx, node) {
			stop = true
		}
		if !stop {
			if handler, ok := e.enter[node.Kind()]; ok {
				stop = handler(ctx, node)
			}
		}

		stack = append(stack, walkItem{node: node, depth: item.depth, exit: true})

		if ctx.custom {
			for i := len(ctx.descend) - 1; i >= 0; i-- {
				stack = append(stack, walkItem{node: ctx.descend[i], depth: item.depth + 1})
			}
			continue
		}
		if stop {
			continue
		}
		for i := int(node.ChildCount()) - 1; i >= 0; i-- {
			child := node.Child(uint(i))
			if child == nil {
				continue
			}
			stack = append(stack, walkItem{node: child, depth: item.depth + 1})
		}
	}
}
