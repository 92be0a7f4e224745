package parser

import (
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ParserPool hands out Python parsers to indexing workers and to the oracle
// when it loads an imported module. A parser is held for one file and then
// returned. Safe for concurrent use.
type ParserPool struct {
	lang   *sitter.Language
	idle   sync.Pool
	mu     sync.Mutex
	leased map[*sitter.Parser]time.Time
}

func NewParserPool(lang *sitter.Language) *ParserPool {
	p := &ParserPool{
		lang:   lang,
		leased: make(map[*sitter.Parser]time.Time),
	}
	p.idle.New = func() any {
		sp := sitter.NewParser()
		_ = sp.SetLanguage(lang)
		return sp
	}
	return p
}

// Get leases a parser set to the Python grammar.
func (p *ParserPool) Get() *sitter.Parser {
	sp := p.idle.Get().(*sitter.Parser)
	_ = sp.SetLanguage(p.lang)

	p.mu.Lock()
	p.leased[sp] = time.Now()
	p.mu.Unlock()
	return sp
}

// Put ends the lease on sp. sp must not be used afterwards.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}
	p.mu.Lock()
	delete(p.leased, sp)
	p.mu.Unlock()

	sp.Reset()
	p.idle.Put(sp)
}

// Leases reports how many parsers are out and how long the oldest one has
// been held.
func (p *ParserPool) Leases() (count int, oldest time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for _, since := range p.leased {
		if held := now.Sub(since); held > oldest {
			oldest = held
		}
	}
	return len(p.leased), oldest
}
