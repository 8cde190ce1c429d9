// Package workspace wires the multi-project machinery together: one
// relationship graph, one vector store, one embedder, and a per-project
// indexer + watcher pair. Cross-project search and ranking live here.
package workspace

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crossgrep/crossgrep/config"
	"github.com/crossgrep/crossgrep/embedder"
	"github.com/crossgrep/crossgrep/indexer"
	"github.com/crossgrep/crossgrep/parser"
	"github.com/crossgrep/crossgrep/relgraph"
	"github.com/crossgrep/crossgrep/store"
	"github.com/crossgrep/crossgrep/watcher"
)

// Status is the lifecycle state of one project inside the workspace.
type Status string

const (
	StatusPending      Status = "pending"
	StatusInitializing Status = "initializing"
	StatusIndexing     Status = "indexing"
	StatusReady        Status = "ready"
	StatusFailed       Status = "failed"
)

// boostFactor is the base relationship multiplier handed to
// relgraph.BoostFactors for query-time ranking.
const boostFactor = 1.5

// Scope selects which projects a search fans out to.
type Scope string

const (
	ScopeProject      Scope = "project"
	ScopeDependencies Scope = "dependencies"
	ScopeRelated      Scope = "related"
	ScopeWorkspace    Scope = "workspace"
)

type SearchRequest struct {
	Query         string
	Scope         Scope
	OriginProject string
	Limit         int
	Threshold     float32
}

// ProjectState is the mutable status record for one project.
type ProjectState struct {
	Status      Status              `json:"status"`
	Error       string              `json:"error,omitempty"`
	LastIndexed time.Time           `json:"last_indexed,omitempty"`
	LastStats   *indexer.IndexStats `json:"last_stats,omitempty"`
}

// Manager owns the workspace: graph, store, embedder, and the
// per-project indexing machinery. All state is instance-scoped; two
// managers never share anything.
type Manager struct {
	cfg      *config.Workspace
	graph    *relgraph.Graph
	store    store.MultiStore
	embedder embedder.Embedder
	parser   parser.Parser

	mu         sync.Mutex
	indexers   map[string]*indexer.Indexer
	ignores    map[string]*indexer.IgnoreMatcher
	watchers   map[string]*watcher.Watcher
	changeChs  map[string]chan indexer.Change
	statuses   map[string]*ProjectState
	priorities map[string]string

	watchCancel context.CancelFunc
	wg          sync.WaitGroup
}

// NewManager builds a manager from a validated workspace config. The
// store backend, embedder provider, and parser mode all come from the
// config; project dependencies become DEPENDENCY edges in the graph.
func NewManager(ctx context.Context, cfg *config.Workspace) (*Manager, error) {
	st, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromConfig(cfg.Embedder)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	p := newParser(cfg.Indexing.ParserMode)

	m := &Manager{
		cfg:        cfg,
		graph:      relgraph.NewGraph(relgraph.WithBackend(relgraph.NewGonumBackend())),
		store:      st,
		embedder:   emb,
		parser:     p,
		indexers:   make(map[string]*indexer.Indexer),
		ignores:    make(map[string]*indexer.IgnoreMatcher),
		watchers:   make(map[string]*watcher.Watcher),
		changeChs:  make(map[string]chan indexer.Change),
		statuses:   make(map[string]*ProjectState),
		priorities: make(map[string]string),
	}

	for i := range cfg.Projects {
		pc := &cfg.Projects[i]
		err := m.graph.AddProject(&relgraph.Project{
			ID:        pc.ID,
			Name:      pc.Name,
			Path:      pc.Path,
			Type:      pc.Type,
			Languages: pc.Languages,
			Framework: pc.Framework,
			Priority:  pc.Priority,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to register project %s: %w", pc.ID, err)
		}
		m.statuses[pc.ID] = &ProjectState{Status: StatusPending}
		m.priorities[pc.ID] = pc.Priority
	}

	for i := range cfg.Projects {
		pc := &cfg.Projects[i]
		for _, dep := range pc.Dependencies {
			err := m.graph.AddRelationship(&relgraph.Relationship{
				From: pc.ID,
				To:   dep,
				Type: relgraph.RelationDependency,
			})
			if err != nil {
				st.Close()
				return nil, fmt.Errorf("failed to register dependency %s->%s: %w", pc.ID, dep, err)
			}
		}
	}

	for _, rc := range cfg.Relationships {
		err := m.graph.AddRelationship(&relgraph.Relationship{
			From:        rc.From,
			To:          rc.To,
			Type:        relgraph.RelationType(rc.Type),
			Weight:      rc.Weight,
			Description: rc.Description,
		})
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to register relationship %s->%s: %w", rc.From, rc.To, err)
		}
	}

	return m, nil
}

func newStore(ctx context.Context, cfg *config.Workspace) (store.MultiStore, error) {
	switch cfg.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "qdrant":
		return store.NewQdrantStore(store.QdrantConfig{
			Endpoint: cfg.Store.Qdrant.Endpoint,
			Port:     cfg.Store.Qdrant.Port,
			UseTLS:   cfg.Store.Qdrant.UseTLS,
			APIKey:   cfg.Store.Qdrant.APIKey,
		})
	case "postgres":
		return store.NewPostgresStore(ctx, cfg.Store.Postgres.DSN)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}

func newParser(mode string) parser.Parser {
	if mode == "precise" {
		p, err := parser.NewTreeSitterParser()
		if err == nil {
			return p
		}
		log.Printf("Precise parser unavailable (%v), falling back to fast mode", err)
	}
	return parser.NewRegexParser()
}

// Graph exposes the relationship graph for queries and export.
func (m *Manager) Graph() *relgraph.Graph {
	return m.graph
}

// Initialize prepares every indexing-enabled project concurrently:
// collection, ignore matcher, indexer, then a full index. One failing
// project never aborts the others; the returned map holds per-project
// errors and is empty on full success.
func (m *Manager) Initialize(ctx context.Context) map[string]error {
	failures := make(map[string]error)
	var failMu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)

	for i := range m.cfg.Projects {
		pc := &m.cfg.Projects[i]
		if !pc.IndexingEnabled() {
			continue
		}

		g.Go(func() error {
			if err := m.initProject(gCtx, pc); err != nil {
				m.setStatus(pc.ID, StatusFailed, err)
				failMu.Lock()
				failures[pc.ID] = err
				failMu.Unlock()
				log.Printf("Failed to initialize project %s: %v", pc.ID, err)
			}
			return nil
		})
	}

	g.Wait()
	return failures
}

func (m *Manager) initProject(ctx context.Context, pc *config.ProjectConfig) error {
	m.setStatus(pc.ID, StatusInitializing, nil)

	if err := m.store.EnsureCollection(ctx, pc.ID, m.embedder.Dimensions(), false); err != nil {
		return fmt.Errorf("failed to ensure collection: %w", err)
	}

	ignore, err := indexer.NewIgnoreMatcher(pc.Path, m.cfg.Indexing.Ignore)
	if err != nil {
		return fmt.Errorf("failed to build ignore matcher: %w", err)
	}

	idx := indexer.NewIndexer(
		pc.ID, pc.Name, pc.Path,
		m.store, m.embedder, m.parser, ignore,
		m.cfg.Indexing.BatchSize, m.cfg.Indexing.BatchWindowMs,
	)

	m.mu.Lock()
	m.indexers[pc.ID] = idx
	m.ignores[pc.ID] = ignore
	m.mu.Unlock()

	m.setStatus(pc.ID, StatusIndexing, nil)
	stats, err := idx.IndexAll(ctx, false)
	if err != nil {
		return fmt.Errorf("initial index failed: %w", err)
	}

	m.finishIndex(pc.ID, stats)
	return nil
}

// IndexAllProjects re-runs a full index on every initialized project.
func (m *Manager) IndexAllProjects(ctx context.Context, force bool) (map[string]*indexer.IndexStats, error) {
	m.mu.Lock()
	indexers := make(map[string]*indexer.Indexer, len(m.indexers))
	for id, idx := range m.indexers {
		indexers[id] = idx
	}
	m.mu.Unlock()

	results := make(map[string]*indexer.IndexStats, len(indexers))
	var resultMu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for id, idx := range indexers {
		g.Go(func() error {
			m.setStatus(id, StatusIndexing, nil)
			stats, err := idx.IndexAll(gCtx, force)
			if err != nil {
				m.setStatus(id, StatusFailed, err)
				log.Printf("Failed to index project %s: %v", id, err)
				return nil
			}
			m.finishIndex(id, stats)
			resultMu.Lock()
			results[id] = stats
			resultMu.Unlock()
			return nil
		})
	}
	g.Wait()
	return results, nil
}

// ReloadProject rebuilds one project's ignore matcher and indexer and
// forces a full re-index, e.g. after large on-disk changes.
func (m *Manager) ReloadProject(ctx context.Context, id string) (*indexer.IndexStats, error) {
	var pc *config.ProjectConfig
	for i := range m.cfg.Projects {
		if m.cfg.Projects[i].ID == id {
			pc = &m.cfg.Projects[i]
			break
		}
	}
	if pc == nil {
		return nil, fmt.Errorf("project %q not found", id)
	}

	m.setStatus(id, StatusInitializing, nil)

	ignore, err := indexer.NewIgnoreMatcher(pc.Path, m.cfg.Indexing.Ignore)
	if err != nil {
		m.setStatus(id, StatusFailed, err)
		return nil, fmt.Errorf("failed to build ignore matcher: %w", err)
	}

	idx := indexer.NewIndexer(
		pc.ID, pc.Name, pc.Path,
		m.store, m.embedder, m.parser, ignore,
		m.cfg.Indexing.BatchSize, m.cfg.Indexing.BatchWindowMs,
	)

	m.mu.Lock()
	m.indexers[id] = idx
	m.ignores[id] = ignore
	m.mu.Unlock()

	m.setStatus(id, StatusIndexing, nil)
	stats, err := idx.IndexAll(ctx, true)
	if err != nil {
		m.setStatus(id, StatusFailed, err)
		return nil, err
	}
	m.finishIndex(id, stats)
	return stats, nil
}

// WatchAll starts a watcher and an indexing loop for every initialized
// project. Events flow watcher -> change router -> per-project batch
// loop; the router also forwards forced changes to dependent projects
// whose files import the changed one.
func (m *Manager) WatchAll(ctx context.Context) error {
	watchCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if m.watchCancel != nil {
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("watchers already running")
	}
	m.watchCancel = cancel

	type entry struct {
		id     string
		idx    *indexer.Indexer
		ignore *indexer.IgnoreMatcher
		path   string
	}
	var entries []entry
	for i := range m.cfg.Projects {
		pc := &m.cfg.Projects[i]
		idx, ok := m.indexers[pc.ID]
		if !ok {
			continue
		}
		entries = append(entries, entry{id: pc.ID, idx: idx, ignore: m.ignores[pc.ID], path: pc.Path})
		// Register every channel before the first watcher starts so
		// cross-project forwards never race project startup order.
		m.changeChs[pc.ID] = make(chan indexer.Change, 100)
	}
	m.mu.Unlock()

	for _, e := range entries {
		w, err := watcher.NewWatcher(e.path, e.ignore,
			m.cfg.Indexing.DebounceMs, m.cfg.Indexing.StormThreshold)
		if err != nil {
			m.Stop()
			return fmt.Errorf("failed to create watcher for %s: %w", e.id, err)
		}
		if err := w.Start(watchCtx); err != nil {
			w.Close()
			m.Stop()
			return fmt.Errorf("failed to start watcher for %s: %w", e.id, err)
		}

		m.mu.Lock()
		m.watchers[e.id] = w
		changes := m.changeChs[e.id]
		m.mu.Unlock()

		m.wg.Add(2)
		go func(id string, w *watcher.Watcher) {
			defer m.wg.Done()
			for {
				select {
				case <-watchCtx.Done():
					return
				case event, ok := <-w.Events():
					if !ok {
						return
					}
					m.routeChange(watchCtx, id, indexer.Change{
						Path:    event.Path,
						Deleted: event.Type == watcher.EventDelete || event.Type == watcher.EventMove,
					})
				}
			}
		}(e.id, w)

		go func(idx *indexer.Indexer) {
			defer m.wg.Done()
			idx.Run(watchCtx, changes)
		}(e.idx)
	}

	return nil
}

// routeChange delivers a change to its own project's indexing loop,
// then forwards a forced re-index to every dependent project file that
// imports the changed one.
func (m *Manager) routeChange(ctx context.Context, projectID string, change indexer.Change) {
	m.sendChange(ctx, projectID, change)
	for depID, forwarded := range m.dependentChanges(projectID, change) {
		for _, c := range forwarded {
			m.sendChange(ctx, depID, c)
		}
	}
}

// dependentChanges maps a change in one project to forced changes in
// the projects depending on it: for each dependent project, its file
// dependency graph names the files whose imports resolve to the
// changed path.
func (m *Manager) dependentChanges(projectID string, change indexer.Change) map[string][]indexer.Change {
	out := make(map[string][]indexer.Change)
	for _, depID := range m.graph.Dependents(projectID) {
		m.mu.Lock()
		idx, ok := m.indexers[depID]
		m.mu.Unlock()
		if !ok {
			continue
		}
		for _, file := range idx.DepGraph().Dependents(change.Path) {
			out[depID] = append(out[depID], indexer.Change{Path: file, Forced: true})
		}
	}
	return out
}

func (m *Manager) sendChange(ctx context.Context, projectID string, change indexer.Change) {
	m.mu.Lock()
	ch, ok := m.changeChs[projectID]
	m.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- change:
	case <-ctx.Done():
	}
}

// Stop halts all watchers and indexing loops. Safe to call twice.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.watchCancel
	m.watchCancel = nil
	watchers := m.watchers
	m.watchers = make(map[string]*watcher.Watcher)
	m.changeChs = make(map[string]chan indexer.Change)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for id, w := range watchers {
		if err := w.Close(); err != nil {
			log.Printf("Failed to close watcher for %s: %v", id, err)
		}
	}
	m.wg.Wait()
}

// Close stops everything and releases the store and embedder.
func (m *Manager) Close() error {
	m.Stop()
	if err := m.embedder.Close(); err != nil {
		log.Printf("Failed to close embedder: %v", err)
	}
	return m.store.Close()
}

// Search embeds the query once, fans out to the projects selected by
// the scope, and ranks the merged hits.
func (m *Manager) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}
	if req.Scope == "" {
		req.Scope = ScopeWorkspace
	}

	projectIDs, err := m.resolveScope(req.Scope, req.OriginProject)
	if err != nil {
		return nil, err
	}
	if len(projectIDs) == 0 {
		return nil, nil
	}

	vector, err := m.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := store.SearchWorkspace(ctx, m.store, vector, projectIDs, req.Limit, req.Threshold)
	if err != nil {
		return nil, err
	}

	var boosts map[string]float64
	if req.OriginProject != "" {
		boosts = m.graph.BoostFactors(req.OriginProject, boostFactor)
	}

	return rankHits(hits, req.Query, m.priorities, boosts, req.Limit), nil
}

// resolveScope maps a scope + origin to the concrete project id list.
func (m *Manager) resolveScope(scope Scope, origin string) ([]string, error) {
	needsOrigin := scope == ScopeProject || scope == ScopeDependencies || scope == ScopeRelated
	if needsOrigin {
		if origin == "" {
			return nil, fmt.Errorf("scope %q requires an origin project", scope)
		}
		if _, ok := m.graph.GetProject(origin); !ok {
			return nil, fmt.Errorf("origin project %q not found", origin)
		}
	}

	switch scope {
	case ScopeProject:
		return []string{origin}, nil

	case ScopeDependencies:
		ids := []string{origin}
		ids = append(ids, m.graph.Dependencies(origin, 2)...)
		return ids, nil

	case ScopeRelated:
		seen := map[string]bool{origin: true}
		ids := []string{origin}
		for _, r := range m.graph.RelationshipsFrom(origin) {
			if !seen[r.To] {
				seen[r.To] = true
				ids = append(ids, r.To)
			}
		}
		for _, r := range m.graph.RelationshipsTo(origin) {
			if !seen[r.From] {
				seen[r.From] = true
				ids = append(ids, r.From)
			}
		}
		return ids, nil

	case ScopeWorkspace:
		projects := m.graph.ListProjects()
		ids := make([]string, 0, len(projects))
		for _, p := range projects {
			ids = append(ids, p.ID)
		}
		return ids, nil

	default:
		return nil, fmt.Errorf("unknown scope %q", scope)
	}
}

// ProjectStatuses returns a snapshot of every project's state.
func (m *Manager) ProjectStatuses() map[string]ProjectState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ProjectState, len(m.statuses))
	for id, state := range m.statuses {
		out[id] = *state
	}
	return out
}

func (m *Manager) setStatus(id string, status Status, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.statuses[id]
	if !ok {
		state = &ProjectState{}
		m.statuses[id] = state
	}
	state.Status = status
	state.Error = ""
	if err != nil {
		state.Error = err.Error()
	}
}

func (m *Manager) finishIndex(id string, stats *indexer.IndexStats) {
	m.mu.Lock()
	state, ok := m.statuses[id]
	if !ok {
		state = &ProjectState{}
		m.statuses[id] = state
	}
	state.Status = StatusReady
	state.Error = ""
	state.LastIndexed = time.Now()
	state.LastStats = stats
	m.mu.Unlock()

	if err := m.graph.UpdateProject(id, func(p *relgraph.Project) {
		p.Indexed = true
	}); err != nil {
		log.Printf("Failed to mark project %s indexed: %v", id, err)
	}
}
