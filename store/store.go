// Package store provides the multi-root vector store: one isolated
// collection per project, per-project nearest-neighbor search, and
// workspace-wide fan-out with raw-score merging.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrDimensionMismatch is returned by EnsureCollection when an
	// existing collection has a different vector dimension and the
	// caller did not opt into destructive recreation.
	ErrDimensionMismatch = errors.New("collection dimension mismatch")

	// ErrCollectionNotFound is returned when a project has no collection.
	ErrCollectionNotFound = errors.New("collection not found")
)

// pointNamespace is the fixed UUIDv5 namespace for content-addressed
// point ids. Changing it invalidates every existing collection.
var pointNamespace = uuid.MustParse("5c1f3b8a-9d24-4e0b-8f4d-2a6b7c9e1d03")

// PointID derives the deterministic id for a (file path, chunk index)
// pair. Re-indexing identical content re-derives the same id, so
// upserts overwrite in place.
func PointID(filePath string, chunkIndex int) string {
	return uuid.NewSHA1(pointNamespace, []byte(fmt.Sprintf("%s:%d", filePath, chunkIndex))).String()
}

// Payload is the metadata stored beside each vector.
type Payload struct {
	ProjectID   string            `json:"project_id"`
	ProjectName string            `json:"project_name"`
	FilePath    string            `json:"file_path"`
	Language    string            `json:"language,omitempty"`
	ChunkIndex  int               `json:"chunk_index"`
	Content     string            `json:"content,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Point is one embedding plus its payload under a deterministic id.
type Point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload Payload   `json:"payload"`
}

// SearchHit is a raw similarity match from one collection.
type SearchHit struct {
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
	Payload Payload `json:"payload"`
}

// Filter narrows a search by payload metadata.
type Filter struct {
	Language   string
	PathPrefix string
}

// CollectionInfo describes one project collection.
type CollectionInfo struct {
	ProjectID string `json:"project_id"`
	Dimension int    `json:"dimension"`
	Points    uint64 `json:"points"`
}

// MultiStore is the storage backend interface. Implementations keep one
// isolated collection per project and must honor deterministic point
// ids so re-upserts overwrite rather than duplicate.
type MultiStore interface {
	// EnsureCollection creates the project collection if absent. An
	// existing collection with a different dimension yields
	// ErrDimensionMismatch unless recreate is true, in which case it is
	// dropped and recreated (destructive, caller's choice).
	EnsureCollection(ctx context.Context, projectID string, dimension int, recreate bool) error

	DeleteCollection(ctx context.Context, projectID string) error
	GetCollectionInfo(ctx context.Context, projectID string) (*CollectionInfo, error)

	UpsertBatch(ctx context.Context, projectID string, points []Point) error
	DeleteByFile(ctx context.Context, projectID, filePath string) error

	SearchProject(ctx context.Context, projectID string, vector []float32, limit int, threshold float32, filter *Filter) ([]SearchHit, error)

	// Scroll pages through a collection for migration. An empty offset
	// starts from the beginning; the returned offset is "" when done.
	Scroll(ctx context.Context, projectID string, offset string, limit int) ([]Point, string, error)

	Close() error
}

const (
	// minPerProject keeps fan-out from starving any single project when
	// the total limit is spread across many collections.
	minPerProject = 3

	// projectSearchTimeout bounds each per-project read at the storage
	// client boundary.
	projectSearchTimeout = 10 * time.Second
)

// SearchWorkspace fans a query vector out to every listed project,
// merges the hits, and returns them sorted by raw score descending.
// A failing project is logged and skipped so the rest still answer.
func SearchWorkspace(ctx context.Context, st MultiStore, vector []float32, projectIDs []string, limit int, threshold float32) ([]SearchHit, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	perProject := limit / len(projectIDs)
	if perProject < minPerProject {
		perProject = minPerProject
	}

	results := make([][]SearchHit, len(projectIDs))
	g, gCtx := errgroup.WithContext(ctx)

	for i, projectID := range projectIDs {
		g.Go(func() error {
			searchCtx, cancel := context.WithTimeout(gCtx, projectSearchTimeout)
			defer cancel()

			hits, err := st.SearchProject(searchCtx, projectID, vector, perProject, threshold, nil)
			if err != nil {
				log.Printf("Warning: search failed for project %s: %v", projectID, err)
				return nil
			}
			results[i] = hits
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []SearchHit
	for _, hits := range results {
		merged = append(merged, hits...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Payload.FilePath < merged[j].Payload.FilePath
	})

	return merged, nil
}

// MatchesFilter reports whether a payload passes a metadata filter.
// Shared by backends that filter client-side.
func MatchesFilter(p Payload, f *Filter) bool {
	if f == nil {
		return true
	}
	if f.Language != "" && p.Language != f.Language {
		return false
	}
	if f.PathPrefix != "" && !strings.HasPrefix(p.FilePath, f.PathPrefix) {
		return false
	}
	return true
}
