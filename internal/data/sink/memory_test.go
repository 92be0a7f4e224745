package sink

import (
	"context"
	"reflect"
	"testing"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/naming"
)

func TestMemory_Renderings(t *testing.T) {
	m := NewMemory()
	if err := m.Begin(context.Background()); err != nil {
		t.Fatalf("begin: %v", err)
	}
	file := m.RecordFile("/src/pkg/mod.py")
	at := func(sl, sc, el, ec int) ports.SourceRange {
		return ports.SourceRange{FileID: file, StartLine: sl, StartColumn: sc, EndLine: el, EndColumn: ec}
	}

	foo := m.RecordSymbol(naming.New("pkg", "mod", "Foo"))
	m.RecordSymbolKind(foo, ports.SymbolClass)
	m.RecordSymbolDefinitionKind(foo, ports.DefinitionExplicit)
	m.RecordSymbolLocation(foo, at(1, 7, 1, 9))
	m.RecordSymbolScopeLocation(foo, at(1, 1, 2, 12))

	main := m.RecordSymbol(naming.New("pkg", "mod", "main"))
	m.RecordSymbolKind(main, ports.SymbolFunction)
	ref := m.RecordReference(main, foo, ports.RefTypeUsage)
	if again := m.RecordReference(main, foo, ports.RefTypeUsage); again != ref {
		t.Fatalf("expected deduplicated reference id %d, got %d", ref, again)
	}
	m.RecordReferenceLocation(ref, at(5, 5, 5, 7))
	m.RecordReferenceLocation(ref, at(4, 5, 4, 7))
	m.RecordReferenceLocation(ref, at(4, 5, 4, 7))
	m.RecordUnsolvedReference(main, ports.RefUsage, at(6, 5, 6, 9))
	m.RecordQualifierLocation(foo, at(7, 5, 7, 7))

	x := m.RecordLocalSymbol("pkg.mod.main.x")
	m.RecordLocalSymbolLocation(x, at(3, 5, 3, 5))
	m.RecordAtomicSourceRange(at(8, 1, 10, 3))
	m.RecordError("boom", true, at(9, 1, 9, 1))

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"symbols", m.Symbols(), []string{
			"CLASS EXPLICIT pkg.mod.Foo @[1:7|1:9] scope [1:1|2:12]",
			"FUNCTION NON-INDEXED pkg.mod.main",
		}},
		{"references", m.References(), []string{
			"TYPE_USAGE pkg.mod.main -> pkg.mod.Foo @[4:5|4:7] [5:5|5:7]",
		}},
		{"unsolved", m.Unsolved(), []string{"USAGE pkg.mod.main @[6:5|6:9]"}},
		{"qualifiers", m.Qualifiers(), []string{"pkg.mod.Foo @[7:5|7:7]"}},
		{"locals", m.LocalSymbols(), []string{"pkg.mod.main.x @[3:5|3:5]"}},
		{"atomic", m.AtomicRanges(), []string{"[8:1|10:3]"}},
		{"errors", m.Errors(), []string{"FATAL [9:1|9:1] boom"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !reflect.DeepEqual(tt.got, tt.want) {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}

	if got := m.NameOf(file); got != "/src/pkg/mod.py" {
		t.Fatalf("expected file path for file id, got %q", got)
	}
	if refs := m.ReferencesTo("pkg.mod.Foo"); len(refs) != 1 || refs[0].Context != main {
		t.Fatalf("expected one reference from main, got %+v", refs)
	}
}

func TestMemory_RollbackDiscardsRecords(t *testing.T) {
	m := NewMemory()
	m.RecordSymbol(naming.New("a"))
	if err := m.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if got := m.Symbols(); len(got) != 0 {
		t.Fatalf("expected no symbols after rollback, got %v", got)
	}
	if _, ok := m.Symbol("a"); ok {
		t.Fatal("expected symbol lookup to miss after rollback")
	}
}

func TestMemory_BeginHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewMemory().Begin(ctx); err == nil {
		t.Fatal("expected cancelled context to fail begin")
	}
}
