package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeWorkspaceFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, WorkspaceFileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func mkProjectDir(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, name), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWorkspaceAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	mkProjectDir(t, dir, "backend")

	path := writeWorkspaceFile(t, dir, `
version: 1
projects:
  - id: backend
    path: ./backend
`)

	ws, err := LoadWorkspace(path)
	if err != nil {
		t.Fatalf("LoadWorkspace failed: %v", err)
	}

	if ws.Embedder.Provider != "ollama" || ws.Embedder.Endpoint != "http://localhost:11434" {
		t.Errorf("embedder defaults not applied: %+v", ws.Embedder)
	}
	if ws.Store.Backend != "memory" {
		t.Errorf("store backend = %s, want memory", ws.Store.Backend)
	}
	if ws.Indexing.DebounceMs != DefaultDebounceMs ||
		ws.Indexing.BatchSize != DefaultBatchSize ||
		ws.Indexing.StormThreshold != DefaultStormThreshold {
		t.Errorf("indexing defaults not applied: %+v", ws.Indexing)
	}
	if ws.Indexing.ParserMode != "fast" {
		t.Errorf("parser mode = %s, want fast", ws.Indexing.ParserMode)
	}

	p := ws.Projects[0]
	if p.Name != "backend" || p.Priority != "normal" {
		t.Errorf("project defaults not applied: %+v", p)
	}
	if !filepath.IsAbs(p.Path) {
		t.Errorf("project path not resolved: %s", p.Path)
	}
	if !p.IndexingEnabled() {
		t.Error("indexing not enabled by default")
	}

	if err := ws.Validate(); err != nil {
		t.Errorf("minimal workspace failed validation: %v", err)
	}
}

func TestQdrantDefaults(t *testing.T) {
	dir := t.TempDir()
	mkProjectDir(t, dir, "p")

	path := writeWorkspaceFile(t, dir, `
store:
  backend: qdrant
projects:
  - id: p
    path: ./p
`)

	ws, err := LoadWorkspace(path)
	if err != nil {
		t.Fatal(err)
	}
	if ws.Store.Qdrant.Endpoint != "localhost" || ws.Store.Qdrant.Port != 6334 {
		t.Errorf("qdrant defaults not applied: %+v", ws.Store.Qdrant)
	}
}

func TestValidateErrors(t *testing.T) {
	dir := t.TempDir()
	mkProjectDir(t, dir, "a")
	mkProjectDir(t, dir, "b")

	base := func() *Workspace {
		ws := &Workspace{
			Version: 1,
			Projects: []ProjectConfig{
				{ID: "a", Path: filepath.Join(dir, "a")},
				{ID: "b", Path: filepath.Join(dir, "b")},
			},
		}
		ws.applyDefaults()
		return ws
	}

	cases := []struct {
		name    string
		mutate  func(*Workspace)
		wantErr string
	}{
		{
			"no projects",
			func(ws *Workspace) { ws.Projects = nil },
			"no projects",
		},
		{
			"duplicate id",
			func(ws *Workspace) { ws.Projects[1].ID = "a" },
			"invalid project list",
		},
		{
			"bad id format",
			func(ws *Workspace) { ws.Projects[0].ID = "has-dash" },
			"invalid project list",
		},
		{
			"missing path",
			func(ws *Workspace) { ws.Projects[0].Path = "" },
			"has no path",
		},
		{
			"path not a directory",
			func(ws *Workspace) { ws.Projects[0].Path = filepath.Join(dir, "nope") },
			"not a directory",
		},
		{
			"bad priority",
			func(ws *Workspace) { ws.Projects[0].Priority = "urgent" },
			"invalid priority",
		},
		{
			"dangling dependency",
			func(ws *Workspace) { ws.Projects[0].Dependencies = []string{"ghost"} },
			`dependency "ghost"`,
		},
		{
			"dependency cycle",
			func(ws *Workspace) {
				ws.Projects[0].Dependencies = []string{"b"}
				ws.Projects[1].Dependencies = []string{"a"}
			},
			"dependency cycle",
		},
		{
			"unknown relationship type",
			func(ws *Workspace) {
				ws.Relationships = []RelationshipConfig{{From: "a", To: "b", Type: "friends"}}
			},
			"unknown type",
		},
		{
			"relationship to missing project",
			func(ws *Workspace) {
				ws.Relationships = []RelationshipConfig{{From: "a", To: "ghost", Type: "api_client"}}
			},
			"a->ghost",
		},
		{
			"postgres without dsn",
			func(ws *Workspace) { ws.Store.Backend = "postgres" },
			"requires a DSN",
		},
		{
			"unknown backend",
			func(ws *Workspace) { ws.Store.Backend = "redis" },
			"unknown store backend",
		},
		{
			"unknown parser mode",
			func(ws *Workspace) { ws.Indexing.ParserMode = "magic" },
			"unknown parser mode",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := base()
			tc.mutate(ws)
			err := ws.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid workspace")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestGetDimensions(t *testing.T) {
	cases := []struct {
		provider string
		want     int
	}{
		{"ollama", 768},
		{"openai", 1536},
		{"local", 256},
	}
	for _, tc := range cases {
		e := EmbedderConfig{Provider: tc.provider}
		if got := e.GetDimensions(); got != tc.want {
			t.Errorf("GetDimensions(%s) = %d, want %d", tc.provider, got, tc.want)
		}
	}

	dims := 384
	e := EmbedderConfig{Provider: "openai", Dimensions: &dims}
	if got := e.GetDimensions(); got != 384 {
		t.Errorf("explicit dimensions ignored: %d", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	mkProjectDir(t, dir, "svc")

	ws := DefaultWorkspace()
	ws.Name = "demo"
	ws.Projects = []ProjectConfig{
		{ID: "svc", Name: "Service", Path: filepath.Join(dir, "svc"), Priority: "high", Dependencies: nil},
	}
	path := filepath.Join(dir, WorkspaceFileName)
	if err := ws.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadWorkspace(path)
	if err != nil {
		t.Fatalf("LoadWorkspace failed: %v", err)
	}
	if loaded.Name != "demo" {
		t.Errorf("Name = %s, want demo", loaded.Name)
	}
	if len(loaded.Projects) != 1 || loaded.Projects[0].Priority != "high" {
		t.Errorf("projects not preserved: %+v", loaded.Projects)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("round-tripped workspace failed validation: %v", err)
	}
}
