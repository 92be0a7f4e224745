package ports

import (
	"context"
	"fmt"

	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/parser"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// ID is a sink-assigned identifier for files, symbols, references and
// local symbols. Zero means "not recorded".
type ID int64

// SourceRange is a 1-based range inside one recorded file.
type SourceRange struct {
	FileID      ID
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

func RangeOf(file ID, span parser.Span) SourceRange {
	return SourceRange{
		FileID:      file,
		StartLine:   span.StartLine,
		StartColumn: span.StartColumn,
		EndLine:     span.EndLine,
		EndColumn:   span.EndColumn,
	}
}

func (r SourceRange) String() string {
	return fmt.Sprintf("[%d:%d|%d:%d]", r.StartLine, r.StartColumn, r.EndLine, r.EndColumn)
}

type DeclarationKind int

const (
	DeclOther DeclarationKind = iota
	DeclModule
	DeclClass
	DeclFunction
	DeclInstance
	DeclParam
	DeclStatement
)

func (k DeclarationKind) String() string {
	switch k {
	case DeclModule:
		return "module"
	case DeclClass:
		return "class"
	case DeclFunction:
		return "function"
	case DeclInstance:
		return "instance"
	case DeclParam:
		return "param"
	case DeclStatement:
		return "statement"
	default:
		return "other"
	}
}

type SymbolKind int

const (
	SymbolModule SymbolKind = iota + 1
	SymbolClass
	SymbolFunction
	SymbolMethod
	SymbolField
	SymbolGlobalVariable
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolModule:
		return "MODULE"
	case SymbolClass:
		return "CLASS"
	case SymbolFunction:
		return "FUNCTION"
	case SymbolMethod:
		return "METHOD"
	case SymbolField:
		return "FIELD"
	case SymbolGlobalVariable:
		return "GLOBAL_VARIABLE"
	default:
		return "SYMBOL"
	}
}

type DefinitionKind int

const (
	DefinitionNone DefinitionKind = iota
	DefinitionExplicit
)

func (k DefinitionKind) String() string {
	if k == DefinitionExplicit {
		return "EXPLICIT"
	}
	return "NON-INDEXED"
}

type ReferenceKind int

const (
	RefUsage ReferenceKind = iota + 1
	RefCall
	RefTypeUsage
	RefInheritance
	RefImport
	RefOverride
)

func (k ReferenceKind) String() string {
	switch k {
	case RefUsage:
		return "USAGE"
	case RefCall:
		return "CALL"
	case RefTypeUsage:
		return "TYPE_USAGE"
	case RefInheritance:
		return "INHERITANCE"
	case RefImport:
		return "IMPORT"
	case RefOverride:
		return "OVERRIDE"
	default:
		return "REFERENCE"
	}
}

// Declaration is one candidate site a name use may refer to. Line and Column
// are zero for built-in or external declarations, which are identified by
// FullName instead.
type Declaration struct {
	Kind       DeclarationKind
	Name       string
	Line       int
	Column     int
	ModulePath string
	ModuleName string
	FullName   string

	// Node is the declaring name node inside Unit.
	Node *sitter.Node
	Unit *parser.Unit
}

func (d Declaration) HasLocation() bool {
	return d.Line > 0 && d.Column > 0 && d.Node != nil && d.Unit != nil
}

// SameSite reports whether the declaration's name node is exactly node.
func (d Declaration) SameSite(unit *parser.Unit, node *sitter.Node) bool {
	if !d.HasLocation() || d.Unit != unit || node == nil {
		return false
	}
	return d.Node.StartByte() == node.StartByte() && d.Node.EndByte() == node.EndByte()
}

func (d Declaration) String() string {
	if d.HasLocation() {
		return fmt.Sprintf("%s %s at %s:%d:%d", d.Kind, d.Name, d.ModulePath, d.Line, d.Column)
	}
	return fmt.Sprintf("%s %s (%s)", d.Kind, d.Name, d.FullName)
}

// Resolver maps a name use to candidate declarations. Implementations must
// be safe to call repeatedly for the same node.
type Resolver interface {
	Resolve(ctx context.Context, unit *parser.Unit, node *sitter.Node) ([]Declaration, error)
}

// OverrideResolver is an optional Resolver capability: given the name node
// of a method definition, it returns the methods it overrides.
type OverrideResolver interface {
	OverridesOf(ctx context.Context, unit *parser.Unit, nameNode *sitter.Node) ([]Declaration, error)
}

// Sink persists indexing records. Recording methods never return errors;
// the first failure is kept and reported by Err, and later writes become
// no-ops. Implementations serialize concurrent callers.
type Sink interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error
	Err() error

	RecordFile(path string) ID
	RecordFileLanguage(file ID, language string)
	RecordFileDigest(file ID, digest uint64)

	RecordSymbol(name naming.QualifiedName) ID
	RecordSymbolKind(symbol ID, kind SymbolKind)
	RecordSymbolDefinitionKind(symbol ID, kind DefinitionKind)
	RecordSymbolLocation(symbol ID, r SourceRange)
	RecordSymbolScopeLocation(symbol ID, r SourceRange)
	RecordSymbolSignatureLocation(symbol ID, r SourceRange)

	RecordReference(context, target ID, kind ReferenceKind) ID
	RecordReferenceLocation(reference ID, r SourceRange)
	RecordUnsolvedReference(context ID, kind ReferenceKind, r SourceRange)
	RecordQualifierLocation(symbol ID, r SourceRange)

	RecordLocalSymbol(name string) ID
	RecordLocalSymbolLocation(local ID, r SourceRange)

	RecordAtomicSourceRange(r SourceRange)
	RecordError(message string, fatal bool, r SourceRange)
}
