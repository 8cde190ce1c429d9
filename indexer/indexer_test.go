package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/crossgrep/crossgrep/embedder"
	"github.com/crossgrep/crossgrep/parser"
	"github.com/crossgrep/crossgrep/store"
)

const testDimensions = 64

func writeFile(t *testing.T, root, relPath, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newTestIndexer(t *testing.T, root string) (*Indexer, *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	st := store.NewMemoryStore()
	if err := st.EnsureCollection(ctx, "proj", testDimensions, false); err != nil {
		t.Fatal(err)
	}

	ignore, err := NewIgnoreMatcher(root, nil)
	if err != nil {
		t.Fatal(err)
	}

	emb := embedder.NewLocalEmbedder(embedder.WithLocalDimensions(testDimensions))
	idx := NewIndexer("proj", "Project", root, st, emb, parser.NewRegexParser(), ignore, 32, 500)
	return idx, st
}

func collectionPoints(t *testing.T, st *store.MemoryStore, projectID string) []store.Point {
	t.Helper()
	var all []store.Point
	offset := ""
	for {
		page, next, err := st.Scroll(context.Background(), projectID, offset, 100)
		if err != nil {
			t.Fatalf("Scroll failed: %v", err)
		}
		all = append(all, page...)
		if next == "" {
			return all
		}
		offset = next
	}
}

func pointsForFile(points []store.Point, path string) []store.Point {
	var out []store.Point
	for _, p := range points {
		if p.Payload.FilePath == path {
			out = append(out, p)
		}
	}
	return out
}

func TestIndexAllBootstrap(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.py", "import utils\n\ndef main():\n    pass\n")
	writeFile(t, root, "utils.py", "def helper():\n    return 1\n")
	writeFile(t, root, "README.txt", "not code")

	idx, st := newTestIndexer(t, root)

	stats, err := idx.IndexAll(context.Background(), false)
	if err != nil {
		t.Fatalf("IndexAll failed: %v", err)
	}
	if stats.FilesIndexed != 2 {
		t.Errorf("FilesIndexed = %d, want 2", stats.FilesIndexed)
	}
	if stats.ChunksCreated < 2 {
		t.Errorf("ChunksCreated = %d, want at least one per file", stats.ChunksCreated)
	}

	points := collectionPoints(t, st, "proj")
	if len(pointsForFile(points, "main.py")) == 0 {
		t.Error("main.py has no points")
	}
	for _, p := range points {
		if p.Payload.ProjectID != "proj" || p.Payload.ProjectName != "Project" {
			t.Errorf("payload project fields wrong: %+v", p.Payload)
		}
		if p.Payload.Metadata["mtime"] == "" || p.Payload.Metadata["start_line"] == "" {
			t.Errorf("payload metadata incomplete: %v", p.Payload.Metadata)
		}
	}

	// The import edge from main.py to utils.py is in the dep graph.
	dependents := idx.DepGraph().Dependents("utils.py")
	if len(dependents) != 1 || dependents[0] != "main.py" {
		t.Errorf("Dependents(utils.py) = %v, want [main.py]", dependents)
	}
}

func TestIndexAllSkipsUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")
	writeFile(t, root, "b.py", "def b():\n    pass\n")

	idx, _ := newTestIndexer(t, root)
	ctx := context.Background()

	if _, err := idx.IndexAll(ctx, false); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.IndexAll(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 0 || stats.FilesSkipped != 2 {
		t.Errorf("second run indexed %d, skipped %d; want 0/2", stats.FilesIndexed, stats.FilesSkipped)
	}

	// Force re-indexes everything regardless of state.
	stats, err = idx.IndexAll(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesIndexed != 2 {
		t.Errorf("forced run indexed %d, want 2", stats.FilesIndexed)
	}
}

func TestIndexAllRemovesVanishedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.py", "def keep():\n    pass\n")
	writeFile(t, root, "gone.py", "def gone():\n    pass\n")

	idx, st := newTestIndexer(t, root)
	ctx := context.Background()

	if _, err := idx.IndexAll(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "gone.py")); err != nil {
		t.Fatal(err)
	}

	stats, err := idx.IndexAll(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if stats.FilesRemoved != 1 {
		t.Errorf("FilesRemoved = %d, want 1", stats.FilesRemoved)
	}

	points := collectionPoints(t, st, "proj")
	if got := pointsForFile(points, "gone.py"); len(got) != 0 {
		t.Errorf("points for removed file survived: %d", len(got))
	}
	if got := pointsForFile(points, "keep.py"); len(got) == 0 {
		t.Error("points for surviving file were lost")
	}
}

func TestProcessBatchChangeAndSkip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")

	idx, _ := newTestIndexer(t, root)
	ctx := context.Background()
	if _, err := idx.IndexAll(ctx, false); err != nil {
		t.Fatal(err)
	}

	// Event without a content change is skipped.
	stats := idx.processBatch(ctx, []Change{{Path: "a.py"}})
	if stats.FilesIndexed != 0 || stats.FilesSkipped != 1 {
		t.Errorf("unchanged file: indexed %d, skipped %d; want 0/1", stats.FilesIndexed, stats.FilesSkipped)
	}

	// An edit triggers a re-index even when mtime resolution hides it.
	time.Sleep(10 * time.Millisecond)
	writeFile(t, root, "a.py", "def a():\n    return 2\n")
	stats = idx.processBatch(ctx, []Change{{Path: "a.py"}})
	if stats.FilesIndexed != 1 {
		t.Errorf("changed file: FilesIndexed = %d, want 1", stats.FilesIndexed)
	}
}

func TestProcessBatchForcedReindexesUnchanged(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.py", "def a():\n    pass\n")

	idx, _ := newTestIndexer(t, root)
	ctx := context.Background()
	if _, err := idx.IndexAll(ctx, false); err != nil {
		t.Fatal(err)
	}

	// A forwarded change carries Forced and bypasses the unchanged check.
	stats := idx.processBatch(ctx, []Change{{Path: "a.py", Forced: true}})
	if stats.FilesIndexed != 1 || stats.FilesSkipped != 0 {
		t.Errorf("forced change: indexed %d, skipped %d; want 1/0", stats.FilesIndexed, stats.FilesSkipped)
	}
}

func TestProcessBatchExpandsDependents(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app/main.py", "from app.utils import helper\n")
	writeFile(t, root, "app/utils.py", "def helper():\n    return 1\n")

	idx, _ := newTestIndexer(t, root)
	ctx := context.Background()
	if _, err := idx.IndexAll(ctx, false); err != nil {
		t.Fatal(err)
	}

	time.Sleep(10 * time.Millisecond)
	writeFile(t, root, "app/utils.py", "def helper():\n    return 2\n")

	stats := idx.processBatch(ctx, []Change{{Path: "app/utils.py"}})
	if stats.FilesIndexed != 1 {
		t.Errorf("FilesIndexed = %d, want 1 (the changed file)", stats.FilesIndexed)
	}
	if stats.FilesExpanded != 1 {
		t.Errorf("FilesExpanded = %d, want 1 (the importer)", stats.FilesExpanded)
	}
}

func TestProcessBatchRemovesDeletedFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "dead.py", "def dead():\n    pass\n")

	idx, st := newTestIndexer(t, root)
	ctx := context.Background()
	if _, err := idx.IndexAll(ctx, false); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, "dead.py")); err != nil {
		t.Fatal(err)
	}

	stats := idx.processBatch(ctx, []Change{{Path: "dead.py", Deleted: true}})
	if stats.FilesRemoved != 1 {
		t.Errorf("FilesRemoved = %d, want 1", stats.FilesRemoved)
	}
	if got := pointsForFile(collectionPoints(t, st, "proj"), "dead.py"); len(got) != 0 {
		t.Errorf("points survived removal: %d", len(got))
	}

	// A stale delete for an unknown path is a no-op.
	stats = idx.processBatch(ctx, []Change{{Path: "never-seen.py", Deleted: true}})
	if stats.FilesRemoved != 0 {
		t.Errorf("unknown path removed: %d", stats.FilesRemoved)
	}
}

func TestReindexClearsStaleChunks(t *testing.T) {
	root := t.TempDir()

	// 200 lines yields three 80/10 chunks; the shrunken file yields one.
	long := ""
	for i := 0; i < 200; i++ {
		long += "def f():\n"
	}
	writeFile(t, root, "big.py", long)

	idx, st := newTestIndexer(t, root)
	ctx := context.Background()
	if _, err := idx.IndexAll(ctx, false); err != nil {
		t.Fatal(err)
	}

	before := pointsForFile(collectionPoints(t, st, "proj"), "big.py")
	if len(before) < 2 {
		t.Fatalf("expected multiple chunks before shrink, got %d", len(before))
	}

	time.Sleep(10 * time.Millisecond)
	writeFile(t, root, "big.py", "def f():\n    pass\n")
	if stats := idx.processBatch(ctx, []Change{{Path: "big.py"}}); stats.FilesIndexed != 1 {
		t.Fatalf("shrunken file not re-indexed: %+v", stats)
	}

	after := pointsForFile(collectionPoints(t, st, "proj"), "big.py")
	if len(after) != 1 {
		t.Errorf("got %d chunks after shrink, want 1 (stale chunks must be cleared)", len(after))
	}
}

func TestDrainBatchRespectsWindow(t *testing.T) {
	root := t.TempDir()
	idx, _ := newTestIndexer(t, root)
	idx.batchWindow = 50 * time.Millisecond

	changes := make(chan Change, 4)
	changes <- Change{Path: "a.py"}
	changes <- Change{Path: "b.py"}

	batch, ok := idx.drainBatch(context.Background(), changes)
	if !ok {
		t.Fatal("drainBatch reported shutdown")
	}
	if len(batch) != 2 {
		t.Errorf("batch size = %d, want 2", len(batch))
	}
}

func TestDrainBatchStopsOnContext(t *testing.T) {
	root := t.TempDir()
	idx, _ := newTestIndexer(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := idx.drainBatch(ctx, make(chan Change)); ok {
		t.Error("drainBatch kept going after context cancellation")
	}
}
