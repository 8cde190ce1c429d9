package indexer

import (
	"path"
	"sort"
	"strings"
	"sync"
)

// DepGraph tracks which files import which, by normalized import key.
// Import statements rarely name a file path directly (Python modules,
// JS specifiers, Go packages), so both sides are reduced to a common
// key space: a changed file is matched against the keys its own path
// satisfies.
type DepGraph struct {
	mu      sync.RWMutex
	forward map[string]map[string]bool // file -> import keys it declares
	reverse map[string]map[string]bool // import key -> files declaring it
}

func NewDepGraph() *DepGraph {
	return &DepGraph{
		forward: make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

// SetImports replaces a file's declared imports.
func (g *DepGraph) SetImports(filePath string, imports []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.removeLocked(filePath)

	keys := make(map[string]bool)
	for _, imp := range imports {
		for _, key := range importKeys(imp) {
			keys[key] = true
		}
	}
	if len(keys) == 0 {
		return
	}

	g.forward[filePath] = keys
	for key := range keys {
		if g.reverse[key] == nil {
			g.reverse[key] = make(map[string]bool)
		}
		g.reverse[key][filePath] = true
	}
}

// RemoveFile drops a file from both directions of the graph.
func (g *DepGraph) RemoveFile(filePath string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.removeLocked(filePath)
}

func (g *DepGraph) removeLocked(filePath string) {
	for key := range g.forward[filePath] {
		delete(g.reverse[key], filePath)
		if len(g.reverse[key]) == 0 {
			delete(g.reverse, key)
		}
	}
	delete(g.forward, filePath)
}

// Dependents returns the files whose imports resolve to changedPath
// (one hop). The changed file itself is never included.
func (g *DepGraph) Dependents(changedPath string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := make(map[string]bool)
	for _, key := range pathKeys(changedPath) {
		for file := range g.reverse[key] {
			if file != changedPath {
				seen[file] = true
			}
		}
	}

	out := make([]string, 0, len(seen))
	for file := range seen {
		out = append(out, file)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of files with recorded imports.
func (g *DepGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.forward)
}

// pathKeys lists the import keys a file path can satisfy: its
// extension-less path in slash and dot form, its directory, and its
// base name.
func pathKeys(filePath string) []string {
	noExt := strings.TrimSuffix(filePath, path.Ext(filePath))
	noExt = strings.TrimPrefix(noExt, "./")

	keys := []string{
		noExt,
		strings.ReplaceAll(noExt, "/", "."),
		path.Base(noExt),
	}
	if dir := path.Dir(noExt); dir != "." && dir != "/" {
		keys = append(keys, dir, strings.ReplaceAll(dir, "/", "."))
	}
	return dedupeKeys(keys)
}

// importKeys normalizes one import specifier into the shared key
// space. Relative prefixes and quotes are stripped; both the full
// specifier and its last segment are kept so "pkg/util" matches both
// "pkg/util" and "util".
func importKeys(imp string) []string {
	s := strings.Trim(strings.TrimSpace(imp), `"'`)
	if s == "" {
		return nil
	}
	for strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		s = strings.TrimPrefix(s, "./")
		s = strings.TrimPrefix(s, "../")
	}
	s = strings.TrimSuffix(s, "/")
	if s == "" {
		return nil
	}

	slash := strings.ReplaceAll(s, ".", "/")
	keys := []string{s, slash}

	if i := strings.LastIndexAny(s, "./"); i >= 0 && i+1 < len(s) {
		keys = append(keys, s[i+1:])
	}
	return dedupeKeys(keys)
}

func dedupeKeys(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}
