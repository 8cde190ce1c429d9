//go:build !treesitter

package parser

import "fmt"

// NewTreeSitterParser is unavailable without the treesitter build tag.
// Build with -tags treesitter to enable AST-based parsing.
func NewTreeSitterParser() (Parser, error) {
	return nil, fmt.Errorf("built without tree-sitter support (rebuild with -tags treesitter)")
}
