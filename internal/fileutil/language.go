package fileutil

import (
	"path/filepath"
	"strings"
)

// extensionLanguages maps file extensions to language names used in
// vector payloads and embedding prefixes.
var extensionLanguages = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".php":   "php",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cc":    "cpp",
	".cs":    "csharp",
	".kt":    "kotlin",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".md":    "markdown",
}

// DetectLanguage returns the language for a file path based on its
// extension, or "" when the extension is not recognized.
func DetectLanguage(path string) string {
	return extensionLanguages[strings.ToLower(filepath.Ext(path))]
}

// IsSupportedFile reports whether the file extension is one we index.
func IsSupportedFile(path string) bool {
	_, ok := extensionLanguages[strings.ToLower(filepath.Ext(path))]
	return ok
}
