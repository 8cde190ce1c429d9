package indexer

import (
	"os"
	"path/filepath"

	"github.com/crossgrep/crossgrep/internal/fileutil"
)

// ScannedFile is one indexable file found on disk. Content is loaded
// eagerly; the scanner only runs over supported source files.
type ScannedFile struct {
	Path     string // relative to the project root
	AbsPath  string
	Language string
	Hash     string
	ModTime  int64
	Size     int64
	Content  []byte
}

// Scanner walks a project root and returns every supported,
// non-ignored file.
type Scanner struct {
	root   string
	ignore *IgnoreMatcher
}

func NewScanner(root string, ignore *IgnoreMatcher) *Scanner {
	return &Scanner{root: root, ignore: ignore}
}

func (s *Scanner) Scan() ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}

		relPath, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}

		if info.IsDir() {
			if s.ignore.ShouldSkipDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.ignore.ShouldIgnore(relPath) {
			return nil
		}
		if !fileutil.IsSupportedFile(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil // Skip unreadable files
		}

		files = append(files, ScannedFile{
			Path:     filepath.ToSlash(relPath),
			AbsPath:  path,
			Language: fileutil.DetectLanguage(path),
			Hash:     fileutil.HashBytes(content),
			ModTime:  info.ModTime().Unix(),
			Size:     info.Size(),
			Content:  content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
