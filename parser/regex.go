package parser

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/crossgrep/crossgrep/internal/fileutil"
)

// RegexParser extracts imports and coarse symbol definitions with
// line-oriented regular expressions. It trades precision for zero
// native dependencies; build with -tags treesitter for AST parsing.
type RegexParser struct{}

// NewRegexParser creates the default parser.
func NewRegexParser() *RegexParser {
	return &RegexParser{}
}

// Mode returns the extraction mode.
func (p *RegexParser) Mode() string {
	return "fast"
}

// SupportedLanguages returns the file extensions this parser handles.
func (p *RegexParser) SupportedLanguages() []string {
	return []string{".go", ".py", ".js", ".jsx", ".ts", ".tsx", ".java", ".rb", ".rs", ".php"}
}

var (
	// import "x" / import x "y" inside an import block or standalone
	goImportRe = regexp.MustCompile(`^\s*(?:import\s+)?(?:[A-Za-z_.]+\s+)?"([^"]+)"`)
	goFuncRe   = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?([A-Za-z_][A-Za-z0-9_]*)\s*[\[(]`)
	goTypeRe   = regexp.MustCompile(`^type\s+([A-Za-z_][A-Za-z0-9_]*)\s+(struct|interface)`)

	pyImportRe     = regexp.MustCompile(`^\s*import\s+([A-Za-z_][A-Za-z0-9_.]*)`)
	pyFromImportRe = regexp.MustCompile(`^\s*from\s+(\.*[A-Za-z_][A-Za-z0-9_.]*)\s+import`)
	pyDefRe        = regexp.MustCompile(`^\s*(?:async\s+)?def\s+([A-Za-z_][A-Za-z0-9_]*)`)
	pyClassRe      = regexp.MustCompile(`^\s*class\s+([A-Za-z_][A-Za-z0-9_]*)`)

	jsImportRe  = regexp.MustCompile(`(?:import\s+.*?from\s+|import\s+|require\s*\(\s*)['"]([^'"]+)['"]`)
	jsFuncRe    = regexp.MustCompile(`(?:^|\s)function\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsClassRe   = regexp.MustCompile(`(?:^|\s)class\s+([A-Za-z_$][A-Za-z0-9_$]*)`)
	jsConstFnRe = regexp.MustCompile(`^\s*(?:export\s+)?const\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*=\s*(?:async\s+)?(?:\(|function)`)

	javaImportRe = regexp.MustCompile(`^\s*import\s+(?:static\s+)?([A-Za-z_][A-Za-z0-9_.]*)\s*;`)
	javaClassRe  = regexp.MustCompile(`(?:class|interface|enum)\s+([A-Za-z_][A-Za-z0-9_]*)`)

	rbRequireRe = regexp.MustCompile(`^\s*require(?:_relative)?\s+['"]([^'"]+)['"]`)
	rbDefRe     = regexp.MustCompile(`^\s*def\s+([A-Za-z_][A-Za-z0-9_?!]*)`)
	rbClassRe   = regexp.MustCompile(`^\s*(?:class|module)\s+([A-Z][A-Za-z0-9_]*)`)

	rsUseRe  = regexp.MustCompile(`^\s*use\s+([A-Za-z_][A-Za-z0-9_:]*)`)
	rsFnRe   = regexp.MustCompile(`^\s*(?:pub\s+)?(?:async\s+)?fn\s+([A-Za-z_][A-Za-z0-9_]*)`)
	rsTypeRe = regexp.MustCompile(`^\s*(?:pub\s+)?(?:struct|enum|trait)\s+([A-Za-z_][A-Za-z0-9_]*)`)

	phpUseRe   = regexp.MustCompile(`^\s*use\s+([A-Za-z_\\][A-Za-z0-9_\\]*)\s*;`)
	phpFuncRe  = regexp.MustCompile(`function\s+([A-Za-z_][A-Za-z0-9_]*)`)
	phpClassRe = regexp.MustCompile(`^\s*(?:abstract\s+|final\s+)?class\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// Parse extracts imports and symbols line by line.
func (p *RegexParser) Parse(_ context.Context, path string, content []byte) (*FileInfo, error) {
	info := &FileInfo{
		Path:     path,
		Language: fileutil.DetectLanguage(path),
	}

	ext := strings.ToLower(filepath.Ext(path))
	supported := false
	for _, s := range p.SupportedLanguages() {
		if s == ext {
			supported = true
			break
		}
	}
	if !supported {
		return info, nil
	}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		lineNum := i + 1
		switch ext {
		case ".go":
			p.parseGoLine(line, lineNum, info)
		case ".py":
			p.parsePythonLine(line, lineNum, info)
		case ".js", ".jsx", ".ts", ".tsx":
			p.parseJSLine(line, lineNum, info)
		case ".java":
			p.parseJavaLine(line, lineNum, info)
		case ".rb":
			p.parseRubyLine(line, lineNum, info)
		case ".rs":
			p.parseRustLine(line, lineNum, info)
		case ".php":
			p.parsePHPLine(line, lineNum, info)
		}
	}

	info.Imports = dedupe(info.Imports)
	info.Classes = dedupe(info.Classes)
	info.ParseSuccess = true
	return info, nil
}

func (p *RegexParser) parseGoLine(line string, lineNum int, info *FileInfo) {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "//") {
		return
	}
	if m := goImportRe.FindStringSubmatch(line); m != nil && !strings.HasPrefix(trimmed, "func") {
		info.Imports = append(info.Imports, m[1])
	}
	if m := goFuncRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "function", StartLine: lineNum})
	}
	if m := goTypeRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "type", StartLine: lineNum})
		if m[2] == "struct" {
			info.Classes = append(info.Classes, m[1])
		}
	}
}

func (p *RegexParser) parsePythonLine(line string, lineNum int, info *FileInfo) {
	if m := pyFromImportRe.FindStringSubmatch(line); m != nil {
		info.Imports = append(info.Imports, m[1])
	} else if m := pyImportRe.FindStringSubmatch(line); m != nil {
		info.Imports = append(info.Imports, m[1])
	}
	if m := pyDefRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "function", StartLine: lineNum})
	}
	if m := pyClassRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "class", StartLine: lineNum})
		info.Classes = append(info.Classes, m[1])
	}
}

func (p *RegexParser) parseJSLine(line string, lineNum int, info *FileInfo) {
	if m := jsImportRe.FindStringSubmatch(line); m != nil {
		info.Imports = append(info.Imports, m[1])
	}
	if m := jsFuncRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "function", StartLine: lineNum})
	}
	if m := jsConstFnRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "function", StartLine: lineNum})
	}
	if m := jsClassRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "class", StartLine: lineNum})
		info.Classes = append(info.Classes, m[1])
	}
}

func (p *RegexParser) parseJavaLine(line string, lineNum int, info *FileInfo) {
	if m := javaImportRe.FindStringSubmatch(line); m != nil {
		info.Imports = append(info.Imports, m[1])
	}
	if m := javaClassRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "class", StartLine: lineNum})
		info.Classes = append(info.Classes, m[1])
	}
}

func (p *RegexParser) parseRubyLine(line string, lineNum int, info *FileInfo) {
	if m := rbRequireRe.FindStringSubmatch(line); m != nil {
		info.Imports = append(info.Imports, m[1])
	}
	if m := rbDefRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "function", StartLine: lineNum})
	}
	if m := rbClassRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "class", StartLine: lineNum})
		info.Classes = append(info.Classes, m[1])
	}
}

func (p *RegexParser) parseRustLine(line string, lineNum int, info *FileInfo) {
	if m := rsUseRe.FindStringSubmatch(line); m != nil {
		info.Imports = append(info.Imports, strings.ReplaceAll(m[1], "::", "."))
	}
	if m := rsFnRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "function", StartLine: lineNum})
	}
	if m := rsTypeRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "type", StartLine: lineNum})
	}
}

func (p *RegexParser) parsePHPLine(line string, lineNum int, info *FileInfo) {
	if m := phpUseRe.FindStringSubmatch(line); m != nil {
		info.Imports = append(info.Imports, strings.ReplaceAll(m[1], `\`, "."))
	}
	if m := phpFuncRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "function", StartLine: lineNum})
	}
	if m := phpClassRe.FindStringSubmatch(line); m != nil {
		info.Symbols = append(info.Symbols, Symbol{Name: m[1], Kind: "class", StartLine: lineNum})
		info.Classes = append(info.Classes, m[1])
	}
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
