// Package parser turns file content into symbol and import records.
// The core only consumes Imports (dependency graph) and Language
// (vector payloads); everything else is carried for callers.
package parser

import "context"

// Symbol is a single extracted definition.
type Symbol struct {
	Name      string `json:"name"`
	Kind      string `json:"kind"` // function, method, class, type
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line,omitempty"`
}

// FileInfo is the result of parsing one file.
type FileInfo struct {
	Path         string   `json:"path"`
	Language     string   `json:"language"`
	Symbols      []Symbol `json:"symbols,omitempty"`
	Classes      []string `json:"classes,omitempty"`
	Imports      []string `json:"imports,omitempty"`
	ParseSuccess bool     `json:"parse_success"`
}

// Parser extracts symbols and imports from source content. A failed
// parse returns FileInfo with ParseSuccess=false rather than an error;
// errors are reserved for I/O-level problems. Callers must treat a
// failed parse as "skip this file's imports this cycle" and still index
// the raw text.
type Parser interface {
	Parse(ctx context.Context, path string, content []byte) (*FileInfo, error)
	SupportedLanguages() []string
	Mode() string
}
