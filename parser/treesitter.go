//go:build treesitter

package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/crossgrep/crossgrep/internal/fileutil"
)

// TreeSitterParser implements Parser using tree-sitter AST parsing.
type TreeSitterParser struct {
	parsers map[string]*sitter.Parser
}

// NewTreeSitterParser creates an AST-based parser.
func NewTreeSitterParser() (*TreeSitterParser, error) {
	p := &TreeSitterParser{
		parsers: make(map[string]*sitter.Parser),
	}

	languages := map[string]*sitter.Language{
		".go":  golang.GetLanguage(),
		".js":  javascript.GetLanguage(),
		".jsx": javascript.GetLanguage(),
		".ts":  typescript.GetLanguage(),
		".tsx": typescript.GetLanguage(),
		".py":  python.GetLanguage(),
	}

	for extension, lang := range languages {
		parser := sitter.NewParser()
		parser.SetLanguage(lang)
		p.parsers[extension] = parser
	}

	return p, nil
}

// Mode returns the extraction mode.
func (p *TreeSitterParser) Mode() string {
	return "precise"
}

// SupportedLanguages returns the file extensions this parser handles.
func (p *TreeSitterParser) SupportedLanguages() []string {
	langs := make([]string, 0, len(p.parsers))
	for ext := range p.parsers {
		langs = append(langs, ext)
	}
	return langs
}

// Parse parses the file and walks the AST for imports and symbols.
func (p *TreeSitterParser) Parse(ctx context.Context, path string, content []byte) (*FileInfo, error) {
	info := &FileInfo{
		Path:     path,
		Language: fileutil.DetectLanguage(path),
	}

	ext := strings.ToLower(filepath.Ext(path))
	tsParser, ok := p.parsers[ext]
	if !ok {
		return info, nil
	}

	tree, err := tsParser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		// Partial trees still yield usable imports; mark the parse failed
		// so the indexer keeps the previous dependency entries.
		info.ParseSuccess = false
		return info, nil
	}

	p.walk(root, content, ext, info)
	info.Imports = dedupe(info.Imports)
	info.Classes = dedupe(info.Classes)
	info.ParseSuccess = true
	return info, nil
}

func (p *TreeSitterParser) walk(node *sitter.Node, content []byte, ext string, info *FileInfo) {
	nodeType := node.Type()

	switch ext {
	case ".go":
		p.extractGo(node, nodeType, content, info)
	case ".js", ".jsx", ".ts", ".tsx":
		p.extractJS(node, nodeType, content, info)
	case ".py":
		p.extractPython(node, nodeType, content, info)
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		p.walk(node.Child(i), content, ext, info)
	}
}

func (p *TreeSitterParser) extractGo(node *sitter.Node, nodeType string, content []byte, info *FileInfo) {
	switch nodeType {
	case "import_spec":
		if pathNode := node.ChildByFieldName("path"); pathNode != nil {
			info.Imports = append(info.Imports, strings.Trim(pathNode.Content(content), `"`))
		}
	case "function_declaration", "method_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			info.Symbols = append(info.Symbols, Symbol{
				Name:      nameNode.Content(content),
				Kind:      "function",
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
		}
	case "type_declaration":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			spec := node.NamedChild(i)
			if spec.Type() != "type_spec" {
				continue
			}
			if nameNode := spec.ChildByFieldName("name"); nameNode != nil {
				name := nameNode.Content(content)
				info.Symbols = append(info.Symbols, Symbol{
					Name:      name,
					Kind:      "type",
					StartLine: int(node.StartPoint().Row) + 1,
					EndLine:   int(node.EndPoint().Row) + 1,
				})
				if typeNode := spec.ChildByFieldName("type"); typeNode != nil && typeNode.Type() == "struct_type" {
					info.Classes = append(info.Classes, name)
				}
			}
		}
	}
}

func (p *TreeSitterParser) extractJS(node *sitter.Node, nodeType string, content []byte, info *FileInfo) {
	switch nodeType {
	case "import_statement":
		if srcNode := node.ChildByFieldName("source"); srcNode != nil {
			info.Imports = append(info.Imports, strings.Trim(srcNode.Content(content), `'"`))
		}
	case "function_declaration", "generator_function_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			info.Symbols = append(info.Symbols, Symbol{
				Name:      nameNode.Content(content),
				Kind:      "function",
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
		}
	case "class_declaration":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(content)
			info.Symbols = append(info.Symbols, Symbol{
				Name:      name,
				Kind:      "class",
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
			info.Classes = append(info.Classes, name)
		}
	}
}

func (p *TreeSitterParser) extractPython(node *sitter.Node, nodeType string, content []byte, info *FileInfo) {
	switch nodeType {
	case "import_statement":
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == "dotted_name" || child.Type() == "aliased_import" {
				name := child.Content(content)
				if child.Type() == "aliased_import" {
					if dotted := child.ChildByFieldName("name"); dotted != nil {
						name = dotted.Content(content)
					}
				}
				info.Imports = append(info.Imports, name)
			}
		}
	case "import_from_statement":
		if moduleNode := node.ChildByFieldName("module_name"); moduleNode != nil {
			info.Imports = append(info.Imports, moduleNode.Content(content))
		}
	case "function_definition":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			info.Symbols = append(info.Symbols, Symbol{
				Name:      nameNode.Content(content),
				Kind:      "function",
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
		}
	case "class_definition":
		if nameNode := node.ChildByFieldName("name"); nameNode != nil {
			name := nameNode.Content(content)
			info.Symbols = append(info.Symbols, Symbol{
				Name:      name,
				Kind:      "class",
				StartLine: int(node.StartPoint().Row) + 1,
				EndLine:   int(node.EndPoint().Row) + 1,
			})
			info.Classes = append(info.Classes, name)
		}
	}
}
