package indexer

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"pyindexer/internal/core/ports"
	"pyindexer/internal/engine/parser"
)

// checkImports records one error per imported name nobody can resolve.
// Within a dotted path only the first failing segment is reported; a
// failing source module of "from m import x" hides the imported names.
func (s *Session) checkImports(stmt *sitter.Node) {
	switch stmt.Kind() {
	case "import_statement":
		for _, c := range parser.NamedChildren(stmt) {
			s.checkImportedPath(importedPath(c))
		}
	case "import_from_statement":
		if !s.checkImportedPath(stmt.ChildByFieldName("module_name")) {
			return
		}
		afterImport := false
		for _, c := range parser.Children(stmt) {
			if c.Kind() == "import" {
				afterImport = true
				continue
			}
			if afterImport && c.IsNamed() {
				s.checkImportedPath(importedPath(c))
			}
		}
	}
}

// importedPath strips the alias of "a.b as c" and "x as y".
func importedPath(n *sitter.Node) *sitter.Node {
	if n != nil && n.Kind() == "aliased_import" {
		return n.ChildByFieldName("name")
	}
	return n
}

// checkImportedPath resolves the identifiers of a dotted path in order and
// reports false at the first one that does not resolve.
func (s *Session) checkImportedPath(path *sitter.Node) bool {
	if path == nil {
		return true
	}
	if path.Kind() == "relative_import" {
		path = parser.ChildOfKind(path, "dotted_name")
		if path == nil {
			return true
		}
	}
	var idents []*sitter.Node
	switch path.Kind() {
	case "identifier":
		idents = []*sitter.Node{path}
	case "dotted_name":
		for _, c := range parser.NamedChildren(path) {
			if c.Kind() == "identifier" {
				idents = append(idents, c)
			}
		}
	default:
		return true
	}
	for _, ident := range idents {
		if s.resolves(ident) {
			continue
		}
		msg := fmt.Sprintf("Imported symbol named %q has not been found.", s.unit.Text(ident))
		s.recordError(msg, ident)
		return false
	}
	return true
}

func (s *Session) resolves(ident *sitter.Node) bool {
	var decls []ports.Declaration
	err := safely(func() error {
		var rerr error
		decls, rerr = s.resolver.Resolve(s.ctx, s.unit, ident)
		return rerr
	})
	if err != nil {
		s.log.Debug("import resolution failed", "path", s.unit.Path, "symbol", s.unit.Text(ident), "error", err)
		return false
	}
	return len(decls) > 0
}

func (s *Session) recordError(message string, node *sitter.Node) {
	s.sink.RecordError(message, false, s.rangeOf(node))
	s.stats.Errors++
}
