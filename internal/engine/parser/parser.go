// # internal/engine/parser/parser.go
package parser

import (
	"fmt"
	"os"
	"time"

	"pyindexer/internal/core/errors"
	"pyindexer/internal/shared/observability"
)

type Parser struct {
	loader *GrammarLoader
	pool   *ParserPool
}

func NewParser(loader *GrammarLoader) *Parser {
	return &Parser{
		loader: loader,
		pool:   NewParserPool(loader.Language()),
	}
}

func (p *Parser) IsSupportedPath(path string) bool {
	return p.loader.IsSupportedPath(path)
}

func (p *Parser) SupportedExtensions() []string {
	return p.loader.SupportedExtensions()
}

func (p *Parser) Pool() *ParserPool {
	return p.pool
}

// ParseFile reads and parses a file from disk.
func (p *Parser) ParseFile(path string) (*Unit, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.AddContext(errors.Wrap(err, errors.CodeNotFound, "read source file"), errors.CtxPath, path)
	}
	return p.Parse(path, content)
}

// Parse builds a Unit from in-memory content. The returned unit owns the
// tree; callers release it with Close.
func (p *Parser) Parse(path string, content []byte) (*Unit, error) {
	start := time.Now()
	defer func() {
		observability.ParsingDuration.WithLabelValues(LanguagePython).Observe(time.Since(start).Seconds())
	}()

	sp := p.pool.Get()
	defer p.pool.Put(sp)

	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.AddContext(
			errors.New(errors.CodeParse, fmt.Sprintf("tree-sitter produced no tree for %d bytes", len(content))),
			errors.CtxPath, path,
		)
	}
	return NewUnit(path, content, tree), nil
}
