// # internal/engine/parser/pool_test.go
package parser

import (
	"sync"
	"testing"
)

func TestParserPool_GetPut(t *testing.T) {
	pool := NewParserPool(NewGrammarLoader().Language())

	sp := pool.Get()
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}
	if n, _ := pool.Leases(); n != 1 {
		t.Fatalf("expected one lease, got %d", n)
	}
	pool.Put(sp)
	if n, oldest := pool.Leases(); n != 0 || oldest != 0 {
		t.Fatalf("expected no leases after Put, got %d held %s", n, oldest)
	}
}

func TestParserPool_PutNil(t *testing.T) {
	pool := NewParserPool(NewGrammarLoader().Language())
	pool.Put(nil)
}

func TestParserPool_ParsesPython(t *testing.T) {
	pool := NewParserPool(NewGrammarLoader().Language())

	sp := pool.Get()
	defer pool.Put(sp)

	tree := sp.Parse([]byte("def main():\n    return 1\n"), nil)
	if tree == nil {
		t.Fatal("expected a tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.Kind() != "module" {
		t.Fatalf("expected module root, got %s", root.Kind())
	}
	if root.HasError() {
		t.Fatal("expected a clean parse")
	}
}

func TestParserPool_Concurrent(t *testing.T) {
	pool := NewParserPool(NewGrammarLoader().Language())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sp := pool.Get()
			defer pool.Put(sp)
			tree := sp.Parse([]byte("x = 1\n"), nil)
			if tree == nil {
				t.Error("expected a tree")
				return
			}
			tree.Close()
		}()
	}
	wg.Wait()

	if n, _ := pool.Leases(); n != 0 {
		t.Fatalf("expected all parsers returned, got %d leased", n)
	}
}
