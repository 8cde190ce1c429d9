// Package config loads and validates the workspace configuration file
// (crossgrep.yaml). Validation is fatal: a workspace that fails any
// check never reaches indexing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crossgrep/crossgrep/internal/fileutil"
	"github.com/crossgrep/crossgrep/relgraph"
)

const (
	WorkspaceFileName = "crossgrep.yaml"

	DefaultDebounceMs     = 500
	DefaultBatchSize      = 32
	DefaultBatchWindowMs  = 500
	DefaultStormThreshold = 10
)

// Workspace is the root configuration document.
type Workspace struct {
	Version       int                  `yaml:"version"`
	Name          string               `yaml:"name,omitempty"`
	Embedder      EmbedderConfig       `yaml:"embedder"`
	Store         StoreConfig          `yaml:"store"`
	Indexing      IndexingConfig       `yaml:"indexing"`
	Projects      []ProjectConfig      `yaml:"projects"`
	Relationships []RelationshipConfig `yaml:"relationships,omitempty"`
}

type EmbedderConfig struct {
	Provider   string `yaml:"provider"` // ollama | openai | local
	Model      string `yaml:"model,omitempty"`
	Endpoint   string `yaml:"endpoint,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	Dimensions *int   `yaml:"dimensions,omitempty"`
}

// GetDimensions returns the configured dimensions or the provider's
// native default.
func (e *EmbedderConfig) GetDimensions() int {
	if e.Dimensions != nil {
		return *e.Dimensions
	}
	switch e.Provider {
	case "openai":
		return 1536
	case "local":
		return 256
	default:
		return 768
	}
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // memory | qdrant | postgres
	Qdrant   QdrantConfig   `yaml:"qdrant,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

type QdrantConfig struct {
	Endpoint string `yaml:"endpoint"`           // e.g. "localhost"
	Port     int    `yaml:"port,omitempty"`     // gRPC port, default 6334
	APIKey   string `yaml:"api_key,omitempty"`  // for Qdrant Cloud
	UseTLS   bool   `yaml:"use_tls,omitempty"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type IndexingConfig struct {
	DebounceMs     int      `yaml:"debounce_ms"`
	BatchSize      int      `yaml:"batch_size"`
	BatchWindowMs  int      `yaml:"batch_window_ms"`
	StormThreshold int      `yaml:"storm_threshold"`
	ParserMode     string   `yaml:"parser_mode,omitempty"` // fast | precise
	Ignore         []string `yaml:"ignore,omitempty"`
}

// ProjectConfig declares one project root inside the workspace.
type ProjectConfig struct {
	ID           string               `yaml:"id"`
	Name         string               `yaml:"name,omitempty"`
	Path         string               `yaml:"path"`
	Type         string               `yaml:"type,omitempty"` // service | library | frontend | tool
	Languages    []string             `yaml:"languages,omitempty"`
	Framework    string               `yaml:"framework,omitempty"`
	Priority     string               `yaml:"priority,omitempty"` // critical|high|medium|normal|low
	Dependencies []string             `yaml:"dependencies,omitempty"`
	Indexing     ProjectIndexingFlags `yaml:"indexing,omitempty"`
}

type ProjectIndexingFlags struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// IndexingEnabled defaults to true when unset.
func (p *ProjectConfig) IndexingEnabled() bool {
	return p.Indexing.Enabled == nil || *p.Indexing.Enabled
}

// RelationshipConfig declares a typed edge between two projects.
type RelationshipConfig struct {
	From        string  `yaml:"from"`
	To          string  `yaml:"to"`
	Type        string  `yaml:"type"`
	Weight      float64 `yaml:"weight,omitempty"`
	Description string  `yaml:"description,omitempty"`
}

// DefaultWorkspace returns a minimal single-project workspace rooted at
// the current directory.
func DefaultWorkspace() *Workspace {
	return &Workspace{
		Version: 1,
		Embedder: EmbedderConfig{
			Provider: "ollama",
			Model:    "nomic-embed-text",
			Endpoint: "http://localhost:11434",
		},
		Store: StoreConfig{
			Backend: "memory",
		},
		Indexing: IndexingConfig{
			DebounceMs:     DefaultDebounceMs,
			BatchSize:      DefaultBatchSize,
			BatchWindowMs:  DefaultBatchWindowMs,
			StormThreshold: DefaultStormThreshold,
			ParserMode:     "fast",
			Ignore: []string{
				".git",
				"node_modules",
				"vendor",
				"dist",
				"bin",
				"__pycache__",
				".venv",
				"venv",
				"target",
				".idea",
				".vscode",
			},
		},
		Projects: []ProjectConfig{
			{ID: "main", Name: "Main", Path: ".", Priority: "normal"},
		},
	}
}

// LoadWorkspace reads and parses a workspace file, applies defaults,
// and resolves project paths against the file's directory. It does NOT
// validate; callers decide when validation is fatal.
func LoadWorkspace(path string) (*Workspace, error) {
	if lockFile, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0644); err == nil {
		defer lockFile.Close()
		if err := fileutil.FlockShared(lockFile, false); err == nil {
			defer fileutil.Funlock(lockFile)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace file: %w", err)
	}

	var ws Workspace
	if err := yaml.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace file: %w", err)
	}

	ws.applyDefaults()

	absDir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace directory: %w", err)
	}
	ws.ResolvePaths(absDir)

	return &ws, nil
}

// applyDefaults fills in missing values so older workspace files keep
// working after new fields are added.
func (w *Workspace) applyDefaults() {
	if w.Version == 0 {
		w.Version = 1
	}

	if w.Embedder.Provider == "" {
		w.Embedder.Provider = "ollama"
	}
	if w.Embedder.Endpoint == "" {
		switch w.Embedder.Provider {
		case "ollama":
			w.Embedder.Endpoint = "http://localhost:11434"
		case "openai":
			w.Embedder.Endpoint = "https://api.openai.com/v1"
		}
	}

	if w.Store.Backend == "" {
		w.Store.Backend = "memory"
	}
	if w.Store.Backend == "qdrant" {
		if w.Store.Qdrant.Endpoint == "" {
			w.Store.Qdrant.Endpoint = "localhost"
		}
		if w.Store.Qdrant.Port == 0 {
			w.Store.Qdrant.Port = 6334
		}
	}

	if w.Indexing.DebounceMs <= 0 {
		w.Indexing.DebounceMs = DefaultDebounceMs
	}
	if w.Indexing.BatchSize <= 0 {
		w.Indexing.BatchSize = DefaultBatchSize
	}
	if w.Indexing.BatchWindowMs <= 0 {
		w.Indexing.BatchWindowMs = DefaultBatchWindowMs
	}
	if w.Indexing.StormThreshold <= 0 {
		w.Indexing.StormThreshold = DefaultStormThreshold
	}
	if w.Indexing.ParserMode == "" {
		w.Indexing.ParserMode = "fast"
	}
	if w.Indexing.Ignore == nil {
		w.Indexing.Ignore = DefaultWorkspace().Indexing.Ignore
	}

	for i := range w.Projects {
		if w.Projects[i].Name == "" {
			w.Projects[i].Name = w.Projects[i].ID
		}
		if w.Projects[i].Priority == "" {
			w.Projects[i].Priority = "normal"
		}
	}
}

// ResolvePaths makes every project path absolute relative to baseDir.
func (w *Workspace) ResolvePaths(baseDir string) {
	for i := range w.Projects {
		if !filepath.IsAbs(w.Projects[i].Path) {
			w.Projects[i].Path = filepath.Join(baseDir, w.Projects[i].Path)
		}
	}
}

// Validate checks the whole document. Any error here aborts startup
// before indexing begins.
func (w *Workspace) Validate() error {
	if len(w.Projects) == 0 {
		return fmt.Errorf("workspace declares no projects")
	}

	// Build a relationship graph as validation: it enforces id format,
	// duplicates, dangling endpoints, and dependency cycles in one pass.
	g := relgraph.NewGraph()

	for i := range w.Projects {
		p := &w.Projects[i]
		if p.Path == "" {
			return fmt.Errorf("project %q has no path", p.ID)
		}
		if !isValidPriority(p.Priority) {
			return fmt.Errorf("project %q has invalid priority %q", p.ID, p.Priority)
		}
		if info, err := os.Stat(p.Path); err != nil || !info.IsDir() {
			return fmt.Errorf("project %q path %s is not a directory", p.ID, p.Path)
		}
		if err := g.AddProject(&relgraph.Project{ID: p.ID, Name: p.Name, Path: p.Path}); err != nil {
			return fmt.Errorf("invalid project list: %w", err)
		}
	}

	for i := range w.Projects {
		p := &w.Projects[i]
		for _, dep := range p.Dependencies {
			err := g.AddRelationship(&relgraph.Relationship{
				From: p.ID,
				To:   dep,
				Type: relgraph.RelationDependency,
			})
			if err != nil {
				return fmt.Errorf("project %q dependency %q: %w", p.ID, dep, err)
			}
		}
	}

	for _, r := range w.Relationships {
		if !relgraph.ValidRelationType(relgraph.RelationType(r.Type)) {
			return fmt.Errorf("relationship %s->%s has unknown type %q", r.From, r.To, r.Type)
		}
		err := g.AddRelationship(&relgraph.Relationship{
			From:        r.From,
			To:          r.To,
			Type:        relgraph.RelationType(r.Type),
			Weight:      r.Weight,
			Description: r.Description,
		})
		if err != nil {
			return fmt.Errorf("relationship %s->%s: %w", r.From, r.To, err)
		}
	}

	switch w.Store.Backend {
	case "memory", "qdrant":
	case "postgres":
		if w.Store.Postgres.DSN == "" {
			return fmt.Errorf("postgres backend requires a DSN")
		}
	default:
		return fmt.Errorf("unknown store backend: %s", w.Store.Backend)
	}

	switch w.Indexing.ParserMode {
	case "fast", "precise":
	default:
		return fmt.Errorf("unknown parser mode: %s", w.Indexing.ParserMode)
	}

	return nil
}

func isValidPriority(p string) bool {
	switch strings.ToLower(p) {
	case "critical", "high", "medium", "normal", "low":
		return true
	}
	return false
}

// Save writes the workspace document atomically.
func (w *Workspace) Save(path string) error {
	data, err := yaml.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	if err := fileutil.EnsureParentDir(path); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	// Serialize concurrent writers on a sidecar lock; a failed lock
	// degrades to an unguarded (still atomic) replace.
	if lockFile, err := os.OpenFile(path+".lock", os.O_CREATE|os.O_RDWR, 0644); err == nil {
		defer lockFile.Close()
		if err := fileutil.FlockExclusive(lockFile, false); err == nil {
			defer fileutil.Funlock(lockFile)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write workspace file: %w", err)
	}
	if err := fileutil.ReplaceFileAtomically(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace workspace file: %w", err)
	}
	return nil
}
