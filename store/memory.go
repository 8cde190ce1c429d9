package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// memoryCollection is one project's in-memory point set.
type memoryCollection struct {
	dimension int
	points    map[string]Point // id -> point
}

// MemoryStore keeps every collection in process memory with exact
// cosine-similarity search. It is the default backend for tests and
// small local workspaces; nothing survives a restart, which matches
// the rebuild-from-scratch bootstrap behavior.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*memoryCollection),
	}
}

func (s *MemoryStore) EnsureCollection(ctx context.Context, projectID string, dimension int, recreate bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.collections[projectID]
	if ok {
		if existing.dimension == dimension {
			return nil
		}
		if !recreate {
			return fmt.Errorf("collection for %s has dimension %d, want %d: %w",
				projectID, existing.dimension, dimension, ErrDimensionMismatch)
		}
	}

	s.collections[projectID] = &memoryCollection{
		dimension: dimension,
		points:    make(map[string]Point),
	}
	return nil
}

func (s *MemoryStore) DeleteCollection(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[projectID]; !ok {
		return fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}
	delete(s.collections, projectID)
	return nil
}

func (s *MemoryStore) GetCollectionInfo(ctx context.Context, projectID string) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}
	return &CollectionInfo{
		ProjectID: projectID,
		Dimension: col.dimension,
		Points:    uint64(len(col.points)),
	}, nil
}

func (s *MemoryStore) UpsertBatch(ctx context.Context, projectID string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}
	for _, p := range points {
		col.points[p.ID] = p
	}
	return nil
}

func (s *MemoryStore) DeleteByFile(ctx context.Context, projectID, filePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[projectID]
	if !ok {
		return fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}
	for id, p := range col.points {
		if p.Payload.FilePath == filePath {
			delete(col.points, id)
		}
	}
	return nil
}

func (s *MemoryStore) SearchProject(ctx context.Context, projectID string, vector []float32, limit int, threshold float32, filter *Filter) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}

	hits := make([]SearchHit, 0, len(col.points))
	for _, p := range col.points {
		if !MatchesFilter(p.Payload, filter) {
			continue
		}
		score := cosineSimilarity(vector, p.Vector)
		if score < threshold {
			continue
		}
		hits = append(hits, SearchHit{ID: p.ID, Score: score, Payload: p.Payload})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Payload.FilePath < hits[j].Payload.FilePath
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *MemoryStore) Scroll(ctx context.Context, projectID string, offset string, limit int) ([]Point, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, ok := s.collections[projectID]
	if !ok {
		return nil, "", fmt.Errorf("project %s: %w", projectID, ErrCollectionNotFound)
	}
	if limit <= 0 {
		limit = 100
	}

	ids := make([]string, 0, len(col.points))
	for id := range col.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if offset != "" {
		start = sort.SearchStrings(ids, offset)
		if start < len(ids) && ids[start] == offset {
			start++
		}
	}

	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}

	points := make([]Point, 0, end-start)
	for _, id := range ids[start:end] {
		points = append(points, col.points[id])
	}

	next := ""
	if end < len(ids) && len(points) > 0 {
		next = points[len(points)-1].ID
	}
	return points, next, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// cosineSimilarity computes the cosine of the angle between two
// vectors; zero-length input yields 0.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
