package oracle

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pyindexer/internal/engine/naming"
	"pyindexer/internal/engine/parser"
	"pyindexer/internal/engine/scope"
)

var initFiles = []string{"__init__.py", "__init__.pyi"}

// Module is a Python module known to the workspace. A module either has a
// parsed Unit, is a namespace package directory, or is External: a
// standard library module with no source on the search roots.
type Module struct {
	Name     string
	Path     string
	Dir      string // package directory, empty for plain modules
	Unit     *parser.Unit
	External bool

	owned     bool
	tableOnce sync.Once
	table     *scope.Table
}

func (m *Module) IsPackage() bool {
	return m.Dir != ""
}

// Table returns the scope table of the module, built on first use. Modules
// without source return nil.
func (m *Module) Table() *scope.Table {
	if m.Unit == nil {
		return nil
	}
	m.tableOnce.Do(func() {
		m.table = scope.Build(m.Unit)
	})
	return m.table
}

// Workspace loads Python modules from search roots and caches them for
// the lifetime of one indexing run. It is safe for concurrent use.
type Workspace struct {
	parser *parser.Parser

	mu     sync.Mutex
	roots  []string
	byPath map[string]*Module
	byName map[string]*Module
}

func NewWorkspace(p *parser.Parser, roots ...string) *Workspace {
	ws := &Workspace{
		parser: p,
		byPath: make(map[string]*Module),
		byName: make(map[string]*Module),
	}
	ws.AddRoots(roots...)
	return ws
}

// AddRoots appends search roots, skipping duplicates. Earlier roots win
// when several contain the same module.
func (ws *Workspace) AddRoots(roots ...string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for _, r := range roots {
		if strings.TrimSpace(r) == "" {
			continue
		}
		if abs, err := filepath.Abs(r); err == nil {
			r = abs
		}
		dup := false
		for _, have := range ws.roots {
			if have == r {
				dup = true
				break
			}
		}
		if !dup {
			ws.roots = append(ws.roots, r)
			// cached negative lookups may now succeed
			for name, m := range ws.byName {
				if m == nil {
					delete(ws.byName, name)
				}
			}
		}
	}
}

func (ws *Workspace) Roots() []string {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	out := make([]string, len(ws.roots))
	copy(out, ws.roots)
	return out
}

// Open parses a file from disk and registers it. Opening the same path
// twice returns the cached module.
func (ws *Workspace) Open(path string) (*Module, error) {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if m := ws.cached(path); m != nil {
		return m, nil
	}
	unit, err := ws.parser.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return ws.register(unit, true), nil
}

// OpenSource registers in-memory content under path.
func (ws *Workspace) OpenSource(path string, content []byte) (*Module, error) {
	unit, err := ws.parser.Parse(path, content)
	if err != nil {
		return nil, err
	}
	return ws.register(unit, true), nil
}

// ModuleOf returns the module holding unit, registering it if needed. The
// workspace does not take ownership of units registered this way.
func (ws *Workspace) ModuleOf(unit *parser.Unit) *Module {
	m := ws.cached(unit.Path)
	if m == nil {
		return ws.register(unit, false)
	}
	if m.Unit == unit {
		return m
	}
	// another tree of the same file is cached; keep node identities apart
	return &Module{Name: m.Name, Path: unit.Path, Dir: m.Dir, Unit: unit}
}

func (ws *Workspace) cached(path string) *Module {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.byPath[path]
}

func (ws *Workspace) register(unit *parser.Unit, owned bool) *Module {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if m, ok := ws.byPath[unit.Path]; ok && m.Unit != nil {
		if owned && m.Unit != unit {
			unit.Close()
		}
		return m
	}
	m := &Module{Path: unit.Path, Unit: unit, owned: owned}
	if name, ok := naming.ModuleNameFromPath(unit.Path, ws.roots); ok {
		m.Name = name.Display()
	}
	if base := filepath.Base(unit.Path); base == "__init__.py" || base == "__init__.pyi" {
		m.Dir = filepath.Dir(unit.Path)
	}
	ws.byPath[unit.Path] = m
	if m.Name != "" {
		if _, ok := ws.byName[m.Name]; !ok || ws.byName[m.Name] == nil {
			ws.byName[m.Name] = m
		}
	}
	return m
}

// Import resolves an absolute dotted module path. Standard library
// modules without source come back as External modules; unknown modules
// return nil.
func (ws *Workspace) Import(parts []string) *Module {
	if len(parts) == 0 {
		return nil
	}
	name := strings.Join(parts, ".")
	ws.mu.Lock()
	m, ok := ws.byName[name]
	roots := append([]string(nil), ws.roots...)
	ws.mu.Unlock()
	if ok {
		return m
	}

	for _, root := range roots {
		if m = ws.locate(root, parts); m != nil {
			break
		}
	}
	if m == nil && IsStdlib(parts[0]) {
		m = &Module{Name: name, External: true}
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()
	if prev, ok := ws.byName[name]; ok && prev != nil {
		return prev
	}
	ws.byName[name] = m
	return m
}

// ImportRelative resolves "from <level dots><parts> import ..." written in
// from. Level 1 is the directory of from.
func (ws *Workspace) ImportRelative(from *Module, level int, parts []string) *Module {
	if level == 0 {
		return ws.Import(parts)
	}
	if from == nil {
		return nil
	}
	dir := relativeBase(from.Path, level)
	if dir == "" {
		return nil
	}
	return ws.locate(dir, parts)
}

// Submodule finds name inside package m.
func (ws *Workspace) Submodule(m *Module, name string) *Module {
	if m == nil {
		return nil
	}
	if m.External {
		return &Module{Name: m.Name + "." + name, External: true}
	}
	if !m.IsPackage() {
		return nil
	}
	if m.Name != "" {
		if sub := ws.Import(append(strings.Split(m.Name, "."), name)); sub != nil {
			return sub
		}
	}
	return ws.locate(m.Dir, []string{name})
}

// Locate finds the source file or namespace directory of an absolute
// module path without parsing it. Standard library modules with no
// source report an empty path.
func (ws *Workspace) Locate(parts []string) (string, bool) {
	if len(parts) == 0 {
		return "", false
	}
	for _, root := range ws.Roots() {
		if path, ok := findModule(root, parts); ok {
			return path, true
		}
	}
	if IsStdlib(parts[0]) {
		return "", true
	}
	return "", false
}

// LocateRelative is Locate for "from <level dots><parts> import ..."
// written in the file at from.
func (ws *Workspace) LocateRelative(from string, level int, parts []string) (string, bool) {
	if level == 0 {
		return ws.Locate(parts)
	}
	dir := relativeBase(from, level)
	if dir == "" {
		return "", false
	}
	return findModule(dir, parts)
}

func relativeBase(from string, level int) string {
	if from == "" {
		return ""
	}
	dir := filepath.Dir(from)
	if from == naming.VirtualFile {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		dir = wd
	}
	for i := 1; i < level; i++ {
		dir = filepath.Dir(dir)
	}
	return dir
}

// findModule returns the file of dir/parts (module, stub or package
// __init__) or the directory of a namespace package.
func findModule(dir string, parts []string) (string, bool) {
	base := filepath.Join(append([]string{dir}, parts...)...)
	if len(parts) > 0 {
		for _, ext := range []string{".py", ".pyi"} {
			if isFile(base + ext) {
				return base + ext, true
			}
		}
	}
	for _, init := range initFiles {
		if p := filepath.Join(base, init); isFile(p) {
			return p, true
		}
	}
	if info, err := os.Stat(base); err == nil && info.IsDir() {
		return base, true
	}
	return "", false
}

func (ws *Workspace) locate(dir string, parts []string) *Module {
	path, ok := findModule(dir, parts)
	if !ok {
		return nil
	}
	if isFile(path) {
		return ws.load(path)
	}
	return ws.namespace(path)
}

func (ws *Workspace) namespace(dir string) *Module {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if m, ok := ws.byPath[dir]; ok {
		return m
	}
	m := &Module{Path: dir, Dir: dir}
	if name, ok := naming.ModuleNameFromPath(dir, ws.roots); ok {
		m.Name = name.Display()
	}
	ws.byPath[dir] = m
	return m
}

func (ws *Workspace) load(path string) *Module {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	if m := ws.cached(path); m != nil {
		return m
	}
	m, err := ws.Open(path)
	if err != nil {
		return nil
	}
	return m
}

// Close releases every unit the workspace parsed itself.
func (ws *Workspace) Close() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	for path, m := range ws.byPath {
		if m.owned && m.Unit != nil {
			m.Unit.Close()
		}
		delete(ws.byPath, path)
	}
	ws.byName = make(map[string]*Module)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// TableOf returns the scope table of unit, registering it when unknown.
func (ws *Workspace) TableOf(unit *parser.Unit) *scope.Table {
	return ws.ModuleOf(unit).Table()
}
