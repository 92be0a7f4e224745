// # internal/engine/parser/loader.go
package parser

import (
	"path/filepath"
	"sort"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

const LanguagePython = "python"

// GrammarLoader owns the Python grammar and the file extensions it serves.
type GrammarLoader struct {
	language   *sitter.Language
	extensions map[string]bool
}

func NewGrammarLoader(extraExtensions ...string) *GrammarLoader {
	gl := &GrammarLoader{
		language:   sitter.NewLanguage(tree_sitter_python.Language()),
		extensions: map[string]bool{".py": true, ".pyi": true},
	}
	for _, ext := range extraExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		gl.extensions[ext] = true
	}
	return gl
}

func (gl *GrammarLoader) Language() *sitter.Language {
	return gl.language
}

func (gl *GrammarLoader) SupportedExtensions() []string {
	out := make([]string, 0, len(gl.extensions))
	for ext := range gl.extensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func (gl *GrammarLoader) IsSupportedPath(path string) bool {
	return gl.extensions[strings.ToLower(filepath.Ext(path))]
}
