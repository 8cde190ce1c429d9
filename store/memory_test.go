package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func mustEnsure(t *testing.T, s MultiStore, projectID string, dim int) {
	t.Helper()
	if err := s.EnsureCollection(context.Background(), projectID, dim, false); err != nil {
		t.Fatalf("EnsureCollection(%s) failed: %v", projectID, err)
	}
}

func testPoint(filePath string, chunkIndex int, vector []float32) Point {
	return Point{
		ID:     PointID(filePath, chunkIndex),
		Vector: vector,
		Payload: Payload{
			ProjectID:  "p1",
			FilePath:   filePath,
			ChunkIndex: chunkIndex,
			Content:    "content of " + filePath,
		},
	}
}

func TestPointIDDeterministic(t *testing.T) {
	a := PointID("src/main.go", 0)
	b := PointID("src/main.go", 0)
	if a != b {
		t.Errorf("same input produced different ids: %s vs %s", a, b)
	}
	if PointID("src/main.go", 1) == a {
		t.Error("different chunk index produced the same id")
	}
	if PointID("src/other.go", 0) == a {
		t.Error("different path produced the same id")
	}
}

func TestEnsureCollectionDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustEnsure(t, s, "p1", 4)

	if err := s.UpsertBatch(ctx, "p1", []Point{testPoint("a.go", 0, []float32{1, 0, 0, 0})}); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	err := s.EnsureCollection(ctx, "p1", 8, false)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("err = %v, want ErrDimensionMismatch", err)
	}

	// The mismatch must not have touched existing data.
	info, err := s.GetCollectionInfo(ctx, "p1")
	if err != nil {
		t.Fatalf("GetCollectionInfo failed: %v", err)
	}
	if info.Dimension != 4 || info.Points != 1 {
		t.Errorf("collection mutated on mismatch: %+v", info)
	}

	// Recreate is an explicit opt-in and wipes the collection.
	if err := s.EnsureCollection(ctx, "p1", 8, true); err != nil {
		t.Fatalf("recreate failed: %v", err)
	}
	info, _ = s.GetCollectionInfo(ctx, "p1")
	if info.Dimension != 8 || info.Points != 0 {
		t.Errorf("recreate did not reset the collection: %+v", info)
	}
}

func TestUpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustEnsure(t, s, "p1", 2)

	p := testPoint("a.go", 0, []float32{1, 0})
	s.UpsertBatch(ctx, "p1", []Point{p})
	p.Vector = []float32{0, 1}
	s.UpsertBatch(ctx, "p1", []Point{p})

	info, _ := s.GetCollectionInfo(ctx, "p1")
	if info.Points != 1 {
		t.Errorf("re-upsert duplicated the point: %d points", info.Points)
	}
}

func TestDeleteByFile(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustEnsure(t, s, "p1", 2)

	s.UpsertBatch(ctx, "p1", []Point{
		testPoint("a.go", 0, []float32{1, 0}),
		testPoint("a.go", 1, []float32{1, 0}),
		testPoint("b.go", 0, []float32{0, 1}),
	})

	if err := s.DeleteByFile(ctx, "p1", "a.go"); err != nil {
		t.Fatalf("DeleteByFile failed: %v", err)
	}

	info, _ := s.GetCollectionInfo(ctx, "p1")
	if info.Points != 1 {
		t.Errorf("got %d points after delete, want 1", info.Points)
	}
}

func TestSearchProjectThresholdAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustEnsure(t, s, "p1", 2)

	s.UpsertBatch(ctx, "p1", []Point{
		testPoint("exact.go", 0, []float32{1, 0}),
		testPoint("close.go", 0, []float32{0.9, 0.1}),
		testPoint("far.go", 0, []float32{0, 1}),
	})

	hits, err := s.SearchProject(ctx, "p1", []float32{1, 0}, 10, 0.5, nil)
	if err != nil {
		t.Fatalf("SearchProject failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 (threshold should drop far.go)", len(hits))
	}
	if hits[0].Payload.FilePath != "exact.go" {
		t.Errorf("best hit = %s, want exact.go", hits[0].Payload.FilePath)
	}
	if hits[0].Score <= hits[1].Score {
		t.Error("hits not sorted by score descending")
	}
}

func TestSearchProjectFilter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustEnsure(t, s, "p1", 2)

	points := []Point{
		testPoint("src/a.go", 0, []float32{1, 0}),
		testPoint("src/b.py", 0, []float32{1, 0}),
		testPoint("lib/c.go", 0, []float32{1, 0}),
	}
	points[0].Payload.Language = "go"
	points[1].Payload.Language = "python"
	points[2].Payload.Language = "go"
	s.UpsertBatch(ctx, "p1", points)

	hits, _ := s.SearchProject(ctx, "p1", []float32{1, 0}, 10, 0, &Filter{Language: "go"})
	if len(hits) != 2 {
		t.Errorf("language filter: got %d hits, want 2", len(hits))
	}

	hits, _ = s.SearchProject(ctx, "p1", []float32{1, 0}, 10, 0, &Filter{PathPrefix: "src/"})
	if len(hits) != 2 {
		t.Errorf("path prefix filter: got %d hits, want 2", len(hits))
	}

	hits, _ = s.SearchProject(ctx, "p1", []float32{1, 0}, 10, 0, &Filter{Language: "go", PathPrefix: "src/"})
	if len(hits) != 1 || hits[0].Payload.FilePath != "src/a.go" {
		t.Errorf("combined filter: got %v", hits)
	}
}

func TestSearchMissingCollection(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.SearchProject(context.Background(), "nope", []float32{1}, 10, 0, nil)
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("err = %v, want ErrCollectionNotFound", err)
	}
}

func TestScrollPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustEnsure(t, s, "p1", 2)

	var points []Point
	for i := 0; i < 7; i++ {
		points = append(points, testPoint(fmt.Sprintf("f%d.go", i), 0, []float32{1, 0}))
	}
	s.UpsertBatch(ctx, "p1", points)

	seen := make(map[string]bool)
	offset := ""
	for {
		page, next, err := s.Scroll(ctx, "p1", offset, 3)
		if err != nil {
			t.Fatalf("Scroll failed: %v", err)
		}
		for _, p := range page {
			if seen[p.ID] {
				t.Errorf("point %s returned twice", p.ID)
			}
			seen[p.ID] = true
		}
		if next == "" {
			break
		}
		offset = next
	}

	if len(seen) != 7 {
		t.Errorf("scrolled %d points, want 7", len(seen))
	}
}

func TestSearchWorkspaceFanOut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	// 5 projects, limit 10: naive split would be 2 per project, but
	// the floor keeps each project at 3.
	var projectIDs []string
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("p%d", i)
		projectIDs = append(projectIDs, id)
		mustEnsure(t, s, id, 2)

		var points []Point
		for j := 0; j < 4; j++ {
			p := testPoint(fmt.Sprintf("f%d.go", j), 0, []float32{1, 0})
			p.Payload.ProjectID = id
			points = append(points, p)
		}
		s.UpsertBatch(ctx, id, points)
	}

	hits, err := SearchWorkspace(ctx, s, []float32{1, 0}, projectIDs, 10, 0)
	if err != nil {
		t.Fatalf("SearchWorkspace failed: %v", err)
	}

	perProject := make(map[string]int)
	for _, h := range hits {
		perProject[h.Payload.ProjectID]++
	}
	for _, id := range projectIDs {
		if perProject[id] != 3 {
			t.Errorf("project %s contributed %d hits, want floor of 3", id, perProject[id])
		}
	}
}

func TestSearchWorkspaceSkipsFailingProject(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	mustEnsure(t, s, "good", 2)
	s.UpsertBatch(ctx, "good", []Point{testPoint("a.go", 0, []float32{1, 0})})

	// "missing" has no collection; its failure must not sink the search.
	hits, err := SearchWorkspace(ctx, s, []float32{1, 0}, []string{"good", "missing"}, 10, 0)
	if err != nil {
		t.Fatalf("SearchWorkspace failed: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits, want 1 from the healthy project", len(hits))
	}
}

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
		{"length mismatch", []float32{1}, []float32{1, 0}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if diff := got - tc.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosineSimilarity = %v, want %v", got, tc.want)
			}
		})
	}
}
