package indexer

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/parser"
)

type FrameKind int

const (
	FrameFile FrameKind = iota
	FrameModule
	FrameClass
	FrameFunction
	FrameMethod
)

func (k FrameKind) String() string {
	switch k {
	case FrameFile:
		return "file"
	case FrameModule:
		return "module"
	case FrameClass:
		return "class"
	case FrameFunction:
		return "function"
	default:
		return "method"
	}
}

// Frame is one enclosing scope of the traversal. File and Module frames
// have no anchor.
type Frame struct {
	ID        ports.ID
	Kind      FrameKind
	Name      naming.QualifiedName
	Display   string
	Anchor    *sitter.Node
	SelfParam string
	Locals    map[string]bool
}

func newFrame(id ports.ID, kind FrameKind, name naming.QualifiedName, anchor *sitter.Node) *Frame {
	return &Frame{
		ID:      id,
		Kind:    kind,
		Name:    name,
		Display: name.Display(),
		Anchor:  anchor,
		Locals:  make(map[string]bool),
	}
}

// ContextStack tracks the chain of enclosing scopes of one traversal. It is
// owned by a single session and is not safe for concurrent use.
type ContextStack struct {
	frames []*Frame
}

func (c *ContextStack) Push(f *Frame) {
	c.frames = append(c.frames, f)
}

// PopIfAnchor pops the top frame only when it was pushed for exactly node.
func (c *ContextStack) PopIfAnchor(node *sitter.Node) bool {
	top := c.Top()
	if top == nil || top.Anchor == nil || !parser.SameNode(top.Anchor, node) {
		return false
	}
	c.frames = c.frames[:len(c.frames)-1]
	return true
}

func (c *ContextStack) Top() *Frame {
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}
