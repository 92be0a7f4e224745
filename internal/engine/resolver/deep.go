// Package resolver holds the two name resolution strategies of the
// indexer: a deep one backed by the workspace oracle and a shallow one that
// only reads the scope table of the file being indexed.
package resolver

import (
	"context"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/oracle"
	"pyindexer/internal/engine/parser"
)

var (
	_ ports.Resolver         = (*Deep)(nil)
	_ ports.OverrideResolver = (*Deep)(nil)
	_ ports.Resolver         = (*Shallow)(nil)
)

// Deep follows imports across the workspace and infers values through
// calls, attributes and super().
type Deep struct {
	oracle *oracle.Oracle
}

func NewDeep(o *oracle.Oracle) *Deep {
	return &Deep{oracle: o}
}

func (d *Deep) Resolve(ctx context.Context, unit *parser.Unit, node *sitter.Node) ([]ports.Declaration, error) {
	return d.oracle.Resolve(ctx, unit, node)
}

func (d *Deep) OverridesOf(ctx context.Context, unit *parser.Unit, nameNode *sitter.Node) ([]ports.Declaration, error) {
	return d.oracle.OverridesOf(ctx, unit, nameNode)
}
