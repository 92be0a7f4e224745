// Package sink holds ports.Sink implementations: an in-process recorder
// used by tests and dry runs, and a SQLite store.
package sink

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/naming"
)

var (
	_ ports.Sink = (*Memory)(nil)
	_ ports.Sink = (*SQLite)(nil)
)

type FileRecord struct {
	ID       ports.ID
	Path     string
	Language string
	Digest   uint64
}

type SymbolRecord struct {
	ID         ports.ID
	Name       naming.QualifiedName
	Kind       ports.SymbolKind
	Definition ports.DefinitionKind
	Locations  []ports.SourceRange
	Scopes     []ports.SourceRange
	Signatures []ports.SourceRange
}

type ReferenceRecord struct {
	ID        ports.ID
	Context   ports.ID
	Target    ports.ID
	Kind      ports.ReferenceKind
	Locations []ports.SourceRange
}

type LocalRecord struct {
	ID        ports.ID
	Name      string
	Locations []ports.SourceRange
}

type UnsolvedRecord struct {
	Context ports.ID
	Kind    ports.ReferenceKind
	Range   ports.SourceRange
}

type ErrorRecord struct {
	Message string
	Fatal   bool
	Range   ports.SourceRange
}

type refKey struct {
	context, target ports.ID
	kind            ports.ReferenceKind
}

// Memory records everything in process. Files, symbols, references and
// local symbols share one ID space. Rollback discards every record.
type Memory struct {
	mu sync.Mutex

	nextID     ports.ID
	files      map[ports.ID]*FileRecord
	filePaths  map[string]ports.ID
	symbols    map[ports.ID]*SymbolRecord
	symbolKeys map[string]ports.ID
	refs       map[ports.ID]*ReferenceRecord
	refKeys    map[refKey]ports.ID
	locals     map[ports.ID]*LocalRecord
	localNames map[string]ports.ID
	qualifiers map[ports.ID][]ports.SourceRange
	unsolved   []UnsolvedRecord
	atomic     []ports.SourceRange
	errors     []ErrorRecord
}

func NewMemory() *Memory {
	m := &Memory{}
	m.reset()
	return m
}

func (m *Memory) reset() {
	m.nextID = 0
	m.files = make(map[ports.ID]*FileRecord)
	m.filePaths = make(map[string]ports.ID)
	m.symbols = make(map[ports.ID]*SymbolRecord)
	m.symbolKeys = make(map[string]ports.ID)
	m.refs = make(map[ports.ID]*ReferenceRecord)
	m.refKeys = make(map[refKey]ports.ID)
	m.locals = make(map[ports.ID]*LocalRecord)
	m.localNames = make(map[string]ports.ID)
	m.qualifiers = make(map[ports.ID][]ports.SourceRange)
	m.unsolved = nil
	m.atomic = nil
	m.errors = nil
}

func (m *Memory) next() ports.ID {
	m.nextID++
	return m.nextID
}

func (m *Memory) Begin(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Commit() error {
	return nil
}

func (m *Memory) Rollback() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
	return nil
}

func (m *Memory) Err() error {
	return nil
}

func (m *Memory) RecordFile(path string) ports.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.filePaths[path]; ok {
		return id
	}
	id := m.next()
	m.files[id] = &FileRecord{ID: id, Path: path}
	m.filePaths[path] = id
	return id
}

func (m *Memory) RecordFileLanguage(file ports.ID, language string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f := m.files[file]; f != nil {
		f.Language = language
	}
}

func (m *Memory) RecordFileDigest(file ports.ID, digest uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f := m.files[file]; f != nil {
		f.Digest = digest
	}
}

func (m *Memory) RecordSymbol(name naming.QualifiedName) ports.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := name.Serialize()
	if id, ok := m.symbolKeys[key]; ok {
		return id
	}
	id := m.next()
	m.symbols[id] = &SymbolRecord{ID: id, Name: name}
	m.symbolKeys[key] = id
	return id
}

func (m *Memory) withSymbol(id ports.ID, fn func(*SymbolRecord)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s := m.symbols[id]; s != nil {
		fn(s)
	}
}

func (m *Memory) RecordSymbolKind(symbol ports.ID, kind ports.SymbolKind) {
	m.withSymbol(symbol, func(s *SymbolRecord) { s.Kind = kind })
}

// RecordSymbolDefinitionKind never downgrades an explicit definition.
func (m *Memory) RecordSymbolDefinitionKind(symbol ports.ID, kind ports.DefinitionKind) {
	m.withSymbol(symbol, func(s *SymbolRecord) {
		if kind > s.Definition {
			s.Definition = kind
		}
	})
}

func (m *Memory) RecordSymbolLocation(symbol ports.ID, r ports.SourceRange) {
	m.withSymbol(symbol, func(s *SymbolRecord) { s.Locations = appendRange(s.Locations, r) })
}

func (m *Memory) RecordSymbolScopeLocation(symbol ports.ID, r ports.SourceRange) {
	m.withSymbol(symbol, func(s *SymbolRecord) { s.Scopes = appendRange(s.Scopes, r) })
}

func (m *Memory) RecordSymbolSignatureLocation(symbol ports.ID, r ports.SourceRange) {
	m.withSymbol(symbol, func(s *SymbolRecord) { s.Signatures = appendRange(s.Signatures, r) })
}

func (m *Memory) RecordReference(context, target ports.ID, kind ports.ReferenceKind) ports.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := refKey{context: context, target: target, kind: kind}
	if id, ok := m.refKeys[key]; ok {
		return id
	}
	id := m.next()
	m.refs[id] = &ReferenceRecord{ID: id, Context: context, Target: target, Kind: kind}
	m.refKeys[key] = id
	return id
}

func (m *Memory) RecordReferenceLocation(reference ports.ID, r ports.SourceRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ref := m.refs[reference]; ref != nil {
		ref.Locations = appendRange(ref.Locations, r)
	}
}

func (m *Memory) RecordUnsolvedReference(context ports.ID, kind ports.ReferenceKind, r ports.SourceRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsolved = append(m.unsolved, UnsolvedRecord{Context: context, Kind: kind, Range: r})
}

func (m *Memory) RecordQualifierLocation(symbol ports.ID, r ports.SourceRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.qualifiers[symbol] = appendRange(m.qualifiers[symbol], r)
}

func (m *Memory) RecordLocalSymbol(name string) ports.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.localNames[name]; ok {
		return id
	}
	id := m.next()
	m.locals[id] = &LocalRecord{ID: id, Name: name}
	m.localNames[name] = id
	return id
}

func (m *Memory) RecordLocalSymbolLocation(local ports.ID, r ports.SourceRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l := m.locals[local]; l != nil {
		l.Locations = appendRange(l.Locations, r)
	}
}

func (m *Memory) RecordAtomicSourceRange(r ports.SourceRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.atomic = appendRange(m.atomic, r)
}

func (m *Memory) RecordError(message string, fatal bool, r ports.SourceRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, ErrorRecord{Message: message, Fatal: fatal, Range: r})
}

func appendRange(rs []ports.SourceRange, r ports.SourceRange) []ports.SourceRange {
	for _, have := range rs {
		if have == r {
			return rs
		}
	}
	return append(rs, r)
}

// Symbol looks a symbol up by its display name.
func (m *Memory) Symbol(display string) (SymbolRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.symbols {
		if s.Name.Display() == display {
			return *s, true
		}
	}
	return SymbolRecord{}, false
}

// ReferencesTo returns the references whose target displays as display.
func (m *Memory) ReferencesTo(display string) []ReferenceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ReferenceRecord
	for _, r := range m.refs {
		if m.nameOf(r.Target) == display {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) Files() []FileRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]FileRecord, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NameOf renders the file path, symbol name or local name behind id.
func (m *Memory) NameOf(id ports.ID) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nameOf(id)
}

func (m *Memory) nameOf(id ports.ID) string {
	if f := m.files[id]; f != nil {
		return f.Path
	}
	if s := m.symbols[id]; s != nil {
		return s.Name.Display()
	}
	if l := m.locals[id]; l != nil {
		return l.Name
	}
	return fmt.Sprintf("#%d", id)
}

// Symbols renders one line per symbol:
// "CLASS EXPLICIT pkg.Foo @[1:7|1:9] scope [1:1|3:12]".
func (m *Memory) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.symbols))
	for _, s := range m.symbols {
		line := fmt.Sprintf("%s %s %s", s.Kind, s.Definition, s.Name.Display())
		if len(s.Locations) > 0 {
			line += " @" + joinRanges(s.Locations)
		}
		if len(s.Scopes) > 0 {
			line += " scope " + joinRanges(s.Scopes)
		}
		if len(s.Signatures) > 0 {
			line += " signature " + joinRanges(s.Signatures)
		}
		out = append(out, line)
	}
	sort.Strings(out)
	return out
}

// References renders "CALL pkg.main -> pkg.foo @[3:5|3:7]".
func (m *Memory) References() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.refs))
	for _, r := range m.refs {
		out = append(out, fmt.Sprintf("%s %s -> %s @%s",
			r.Kind, m.nameOf(r.Context), m.nameOf(r.Target), joinRanges(r.Locations)))
	}
	sort.Strings(out)
	return out
}

// LocalSymbols renders "pkg.main.x @[2:5|2:5] [3:9|3:9]".
func (m *Memory) LocalSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.locals))
	for _, l := range m.locals {
		out = append(out, l.Name+" @"+joinRanges(l.Locations))
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Qualifiers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.qualifiers))
	for id, rs := range m.qualifiers {
		out = append(out, m.nameOf(id)+" @"+joinRanges(rs))
	}
	sort.Strings(out)
	return out
}

// Unsolved renders "USAGE pkg.main @[4:5|4:9]".
func (m *Memory) Unsolved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.unsolved))
	for _, u := range m.unsolved {
		out = append(out, fmt.Sprintf("%s %s @%s", u.Kind, m.nameOf(u.Context), u.Range))
	}
	sort.Strings(out)
	return out
}

func (m *Memory) AtomicRanges() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.atomic))
	for _, r := range m.atomic {
		out = append(out, r.String())
	}
	sort.Strings(out)
	return out
}

// Errors renders "[2:1|2:1] message", prefixed with "FATAL " when fatal.
func (m *Memory) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.errors))
	for _, e := range m.errors {
		line := e.Range.String() + " " + e.Message
		if e.Fatal {
			line = "FATAL " + line
		}
		out = append(out, line)
	}
	sort.Strings(out)
	return out
}

func joinRanges(rs []ports.SourceRange) string {
	sorted := append([]ports.SourceRange(nil), rs...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.StartColumn < b.StartColumn
	})
	parts := make([]string, len(sorted))
	for i, r := range sorted {
		parts[i] = r.String()
	}
	return strings.Join(parts, " ")
}
