package indexer

import (
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the workspace-specific ignore file, layered on top
// of any .gitignore files found in the project tree.
const IgnoreFileName = ".crossgrepignore"

// nestedMatcher holds a gitignore matcher and the directory its
// patterns are relative to.
type nestedMatcher struct {
	matcher *ignore.GitIgnore
	baseDir string // relative to project root, "" for the root file
}

// IgnoreMatcher answers "should this path be indexed" for one project
// root. It layers config ignore patterns, every .gitignore in the
// tree, and optional .crossgrepignore files.
type IgnoreMatcher struct {
	projectRoot string
	matchers    []nestedMatcher
	extraDirs   []string
}

// NewIgnoreMatcher walks the project once to collect ignore files.
// extraIgnore comes from the workspace config and matches directory or
// file base names anywhere in the tree.
func NewIgnoreMatcher(projectRoot string, extraIgnore []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{
		projectRoot: projectRoot,
		extraDirs:   extraIgnore,
	}

	err := filepath.Walk(projectRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}

		if info.IsDir() {
			base := filepath.Base(path)
			for _, dir := range extraIgnore {
				if base == dir {
					return filepath.SkipDir
				}
			}
			return nil
		}

		base := filepath.Base(path)
		if base != ".gitignore" && base != IgnoreFileName {
			return nil
		}

		gi, err := ignore.CompileIgnoreFile(path)
		if err != nil {
			return nil // Skip invalid ignore files
		}

		relDir, err := filepath.Rel(projectRoot, filepath.Dir(path))
		if err != nil {
			return nil
		}
		if relDir == "." {
			relDir = ""
		}

		m.matchers = append(m.matchers, nestedMatcher{matcher: gi, baseDir: relDir})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ShouldIgnore reports whether a root-relative path is excluded from
// indexing and watching.
func (m *IgnoreMatcher) ShouldIgnore(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	for _, part := range strings.Split(relPath, "/") {
		for _, dir := range m.extraDirs {
			if part == dir {
				return true
			}
		}
	}

	for _, nm := range m.matchers {
		scoped := relPath
		if nm.baseDir != "" {
			base := filepath.ToSlash(nm.baseDir) + "/"
			if !strings.HasPrefix(relPath, base) {
				continue
			}
			scoped = strings.TrimPrefix(relPath, base)
		}
		if nm.matcher.MatchesPath(scoped) {
			return true
		}
	}

	return false
}

// ShouldSkipDir reports whether a whole directory subtree can be
// skipped during walks.
func (m *IgnoreMatcher) ShouldSkipDir(relPath string) bool {
	if relPath == "" || relPath == "." {
		return false
	}
	return m.ShouldIgnore(relPath)
}
