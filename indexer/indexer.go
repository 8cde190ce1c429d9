// Package indexer keeps one project's vector collection in sync with
// its files: full scans for bootstrap, and a batched incremental loop
// fed by change events. The loop also maintains the file dependency
// graph so a change to a file re-indexes its direct importers.
package indexer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/crossgrep/crossgrep/embedder"
	"github.com/crossgrep/crossgrep/internal/fileutil"
	"github.com/crossgrep/crossgrep/parser"
	"github.com/crossgrep/crossgrep/store"
)

// Change is one file-level change notification. Deleted is advisory;
// the loop re-checks the filesystem before acting. Forced changes skip
// the unchanged-content check, re-indexing a file whose own bytes did
// not move because something it imports did.
type Change struct {
	Path    string // relative to the project root
	Deleted bool
	Forced  bool
}

// FileState is the indexed snapshot of one file. The indexer loop is
// the sole writer.
type FileState struct {
	ModTime int64
	Hash    string
}

type IndexStats struct {
	FilesIndexed  int
	FilesSkipped  int
	FilesRemoved  int
	FilesExpanded int
	ChunksCreated int
	Duration      time.Duration
}

type Indexer struct {
	projectID   string
	projectName string
	root        string
	store       store.MultiStore
	embedder    embedder.Embedder
	parser      parser.Parser
	chunker     *Chunker
	scanner     *Scanner
	deps        *DepGraph
	batchSize   int
	batchWindow time.Duration

	state map[string]FileState
}

func NewIndexer(
	projectID, projectName, root string,
	st store.MultiStore,
	emb embedder.Embedder,
	p parser.Parser,
	ignore *IgnoreMatcher,
	batchSize, batchWindowMs int,
) *Indexer {
	if batchSize <= 0 {
		batchSize = 32
	}
	if batchWindowMs <= 0 {
		batchWindowMs = 500
	}

	return &Indexer{
		projectID:   projectID,
		projectName: projectName,
		root:        root,
		store:       st,
		embedder:    emb,
		parser:      p,
		chunker:     NewChunker(0, 0),
		scanner:     NewScanner(root, ignore),
		deps:        NewDepGraph(),
		batchSize:   batchSize,
		batchWindow: time.Duration(batchWindowMs) * time.Millisecond,
		state:       make(map[string]FileState),
	}
}

// DepGraph exposes the file dependency graph for diagnostics.
func (idx *Indexer) DepGraph() *DepGraph {
	return idx.deps
}

// IndexAll re-synchronizes the whole project: every changed file on
// disk is re-indexed and files that vanished since the last state are
// removed. FileState is in-memory only, so a fresh process treats
// everything as changed.
func (idx *Indexer) IndexAll(ctx context.Context, force bool) (*IndexStats, error) {
	start := time.Now()
	stats := &IndexStats{}

	files, err := idx.scanner.Scan()
	if err != nil {
		return nil, fmt.Errorf("failed to scan files: %w", err)
	}

	onDisk := make(map[string]bool, len(files))
	var toIndex []ScannedFile
	for _, file := range files {
		onDisk[file.Path] = true
		prev, ok := idx.state[file.Path]
		if !force && ok && prev.Hash == file.Hash {
			stats.FilesSkipped++
			continue
		}
		toIndex = append(toIndex, file)
	}

	for path := range idx.state {
		if onDisk[path] {
			continue
		}
		if err := idx.removeFile(ctx, path); err != nil {
			log.Printf("Failed to remove %s: %v", path, err)
			continue
		}
		stats.FilesRemoved++
	}

	for batchStart := 0; batchStart < len(toIndex); batchStart += idx.batchSize {
		end := batchStart + idx.batchSize
		if end > len(toIndex) {
			end = len(toIndex)
		}
		indexed, chunks := idx.indexFiles(ctx, toIndex[batchStart:end])
		stats.FilesIndexed += indexed
		stats.ChunksCreated += chunks
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// Run consumes change events until the context ends. The first event
// of a batch blocks, then the batch drains until batchSize events or
// batchWindow elapses, whichever comes first.
func (idx *Indexer) Run(ctx context.Context, changes <-chan Change) {
	for {
		batch, ok := idx.drainBatch(ctx, changes)
		if !ok {
			return
		}
		if stats := idx.processBatch(ctx, batch); stats != nil {
			log.Printf("[%s] indexed %d, expanded %d, removed %d, skipped %d (%d chunks, %v)",
				idx.projectID, stats.FilesIndexed, stats.FilesExpanded,
				stats.FilesRemoved, stats.FilesSkipped, stats.ChunksCreated, stats.Duration)
		}
	}
}

func (idx *Indexer) drainBatch(ctx context.Context, changes <-chan Change) ([]Change, bool) {
	var batch []Change

	select {
	case <-ctx.Done():
		return nil, false
	case change, ok := <-changes:
		if !ok {
			return nil, false
		}
		batch = append(batch, change)
	}

	window := time.NewTimer(idx.batchWindow)
	defer window.Stop()

	for len(batch) < idx.batchSize {
		select {
		case <-ctx.Done():
			return batch, len(batch) > 0
		case <-window.C:
			return batch, true
		case change, ok := <-changes:
			if !ok {
				return batch, len(batch) > 0
			}
			batch = append(batch, change)
		}
	}
	return batch, true
}

// processBatch runs one resolve/expand/remove/reindex cycle.
func (idx *Indexer) processBatch(ctx context.Context, batch []Change) *IndexStats {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	stats := &IndexStats{}

	// Last event per path wins.
	latest := make(map[string]Change, len(batch))
	for _, change := range batch {
		latest[change.Path] = change
	}

	var removals []string
	changed := make(map[string]ScannedFile)

	for path, change := range latest {
		file, ok := idx.resolve(path)
		if !ok {
			if _, known := idx.state[path]; known {
				removals = append(removals, path)
			}
			continue
		}
		if prev, known := idx.state[path]; known && !change.Forced &&
			prev.Hash == file.Hash && prev.ModTime == file.ModTime {
			stats.FilesSkipped++
			continue
		}
		changed[path] = file
	}

	// Expand to one-hop dependents of each confirmed change. Dependents
	// re-embed against the changed file's new content even though their
	// own bytes did not move.
	for path := range changed {
		for _, dependent := range idx.deps.Dependents(path) {
			if _, already := changed[dependent]; already {
				continue
			}
			file, ok := idx.resolve(dependent)
			if !ok {
				continue
			}
			changed[dependent] = file
			stats.FilesExpanded++
		}
	}

	sort.Strings(removals)
	for _, path := range removals {
		if err := idx.removeFile(ctx, path); err != nil {
			log.Printf("Failed to remove %s: %v", path, err)
			continue
		}
		stats.FilesRemoved++
	}

	files := make([]ScannedFile, 0, len(changed))
	for _, file := range changed {
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	indexed, chunks := idx.indexFiles(ctx, files)
	stats.FilesIndexed = indexed - stats.FilesExpanded
	if stats.FilesIndexed < 0 {
		stats.FilesIndexed = 0
	}
	stats.ChunksCreated = chunks
	stats.Duration = time.Since(start)
	return stats
}

// resolve loads the current on-disk state of one relative path. A
// false return means the file is gone or unreadable.
func (idx *Indexer) resolve(relPath string) (ScannedFile, bool) {
	absPath := filepath.Join(idx.root, filepath.FromSlash(relPath))

	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return ScannedFile{}, false
	}
	if !fileutil.IsSupportedFile(absPath) {
		return ScannedFile{}, false
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return ScannedFile{}, false
	}

	return ScannedFile{
		Path:     relPath,
		AbsPath:  absPath,
		Language: fileutil.DetectLanguage(absPath),
		Hash:     fileutil.HashBytes(content),
		ModTime:  info.ModTime().Unix(),
		Size:     info.Size(),
		Content:  content,
	}, true
}

// indexFiles re-indexes a set of files with one batched embed call and
// one batched upsert. Per-file failures are logged and skipped.
func (idx *Indexer) indexFiles(ctx context.Context, files []ScannedFile) (indexed, chunksCreated int) {
	if len(files) == 0 {
		return 0, 0
	}

	type pendingChunk struct {
		file  ScannedFile
		chunk Chunk
	}

	var texts []string
	var pending []pendingChunk
	parsed := make(map[string]*parser.FileInfo, len(files))

	for _, file := range files {
		info, err := idx.parser.Parse(ctx, file.Path, file.Content)
		if err != nil {
			log.Printf("Failed to parse %s: %v", file.Path, err)
		} else {
			parsed[file.Path] = info
		}

		for _, chunk := range idx.chunker.Chunk(string(file.Content)) {
			texts = append(texts, fmt.Sprintf("%s // %s\n%s", file.Language, file.Path, chunk.Content))
			pending = append(pending, pendingChunk{file: file, chunk: chunk})
		}
	}

	if len(texts) == 0 {
		// Nothing embeddable, but state and imports still advance.
		for _, file := range files {
			idx.commitFile(file, parsed[file.Path])
			indexed++
		}
		return indexed, 0
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		log.Printf("[%s] failed to embed batch of %d chunks: %v", idx.projectID, len(texts), err)
		return 0, 0
	}

	points := make(map[string][]store.Point, len(files))
	for i, pc := range pending {
		if vectors[i] == nil {
			log.Printf("Warning: no embedding for %s chunk %d, skipping", pc.file.Path, pc.chunk.Index)
			continue
		}
		points[pc.file.Path] = append(points[pc.file.Path], store.Point{
			ID:     store.PointID(pc.file.Path, pc.chunk.Index),
			Vector: vectors[i],
			Payload: store.Payload{
				ProjectID:   idx.projectID,
				ProjectName: idx.projectName,
				FilePath:    pc.file.Path,
				Language:    pc.file.Language,
				ChunkIndex:  pc.chunk.Index,
				Content:     pc.chunk.Content,
				Metadata: map[string]string{
					"mtime":      strconv.FormatInt(pc.file.ModTime, 10),
					"start_line": strconv.Itoa(pc.chunk.StartLine),
					"end_line":   strconv.Itoa(pc.chunk.EndLine),
				},
			},
		})
	}

	var upsert []store.Point
	for _, file := range files {
		filePoints, ok := points[file.Path]
		if !ok {
			// No embeddable chunks; the file still counts as indexed so
			// an unchanged re-event is a no-op.
			idx.commitFile(file, parsed[file.Path])
			indexed++
			continue
		}
		// Stale chunks past the new chunk count would otherwise survive
		// the upsert, since point ids are (path, index) addressed.
		if err := idx.store.DeleteByFile(ctx, idx.projectID, file.Path); err != nil {
			log.Printf("Failed to clear old points for %s: %v", file.Path, err)
			continue
		}
		upsert = append(upsert, filePoints...)
		idx.commitFile(file, parsed[file.Path])
		indexed++
		chunksCreated += len(filePoints)
	}

	if len(upsert) == 0 {
		return indexed, chunksCreated
	}
	if err := idx.store.UpsertBatch(ctx, idx.projectID, upsert); err != nil {
		log.Printf("[%s] failed to upsert %d points: %v", idx.projectID, len(upsert), err)
		return 0, 0
	}
	return indexed, chunksCreated
}

// commitFile records a file's new state and refreshes its imports in
// the dependency graph. A failed parse leaves the previous imports in
// place for this cycle.
func (idx *Indexer) commitFile(file ScannedFile, info *parser.FileInfo) {
	idx.state[file.Path] = FileState{ModTime: file.ModTime, Hash: file.Hash}
	if info != nil && info.ParseSuccess {
		idx.deps.SetImports(file.Path, info.Imports)
	}
}

func (idx *Indexer) removeFile(ctx context.Context, path string) error {
	if err := idx.store.DeleteByFile(ctx, idx.projectID, path); err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	delete(idx.state, path)
	idx.deps.RemoveFile(path)
	return nil
}
