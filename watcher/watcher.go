// Package watcher detects file changes under a project root and emits
// debounced, enriched events. Each path debounces independently so a
// save storm on one file never delays events for another.
package watcher

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/crossgrep/crossgrep/indexer"
	"github.com/crossgrep/crossgrep/internal/fileutil"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventMove
)

// FileEvent is one debounced change. Hash and size are best-effort
// enrichment; they are zero for deletes and unreadable files.
type FileEvent struct {
	Type        EventType
	Path        string // relative to the project root
	Timestamp   time.Time
	Language    string
	ContentHash string
	Size        int64
	Debounced   bool // true when earlier events on this path were collapsed
}

// stormWindow is the sliding window for storm detection; more than
// stormThreshold events on one path inside it extends the debounce
// delay by stormFactor until the path goes quiet.
const (
	stormWindow = time.Second
	stormFactor = 4
)

// debounceState tracks the in-flight debounce for a single path.
type debounceState struct {
	lastEvent FileEvent
	count     int
	windowAt  time.Time
	timer     *time.Timer
}

type Watcher struct {
	root           string
	watcher        *fsnotify.Watcher
	ignore         *indexer.IgnoreMatcher
	debounce       time.Duration
	stormThreshold int
	events         chan FileEvent
	done           chan struct{}
	closeOnce      sync.Once

	mu      sync.Mutex
	pending map[string]*debounceState
}

func NewWatcher(root string, ignore *indexer.IgnoreMatcher, debounceMs, stormThreshold int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounceMs <= 0 {
		debounceMs = 500
	}
	if stormThreshold <= 0 {
		stormThreshold = 10
	}

	return &Watcher{
		root:           root,
		watcher:        fsw,
		ignore:         ignore,
		debounce:       time.Duration(debounceMs) * time.Millisecond,
		stormThreshold: stormThreshold,
		events:         make(chan FileEvent, 100),
		done:           make(chan struct{}),
		pending:        make(map[string]*debounceState),
	}, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)

	return nil
}

func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)

		w.mu.Lock()
		for _, state := range w.pending {
			if state.timer != nil {
				state.timer.Stop()
			}
		}
		w.pending = make(map[string]*debounceState)
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip inaccessible paths
		}
		if !info.IsDir() {
			return nil
		}

		relPath, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		if w.ignore.ShouldSkipDir(relPath) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			log.Printf("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		return
	}

	if strings.HasPrefix(filepath.Base(relPath), ".") {
		return
	}
	if w.ignore.ShouldIgnore(relPath) {
		return
	}

	if !fileutil.IsSupportedFile(event.Name) {
		// A new directory needs watching even though it is not a
		// supported file itself.
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := w.addRecursive(event.Name); err != nil {
					log.Printf("Failed to add new directory %s: %v", event.Name, err)
				}
			}
		}
		return
	}

	var evType EventType
	switch {
	case event.Has(fsnotify.Create):
		evType = EventCreate
	case event.Has(fsnotify.Write):
		evType = EventModify
	case event.Has(fsnotify.Remove):
		evType = EventDelete
	case event.Has(fsnotify.Rename):
		// The old path is gone; a create for the new path follows.
		evType = EventMove
	default:
		return
	}

	w.debounceEvent(w.enrich(FileEvent{
		Type:      evType,
		Path:      relPath,
		Timestamp: time.Now(),
	}))
}

// enrich fills in language, content hash, and size where the file is
// still readable. Failures leave the fields zero; indexing re-reads
// the file anyway.
func (w *Watcher) enrich(event FileEvent) FileEvent {
	event.Language = fileutil.DetectLanguage(event.Path)

	if event.Type == EventDelete || event.Type == EventMove {
		return event
	}

	absPath := filepath.Join(w.root, event.Path)
	if info, err := os.Stat(absPath); err == nil {
		event.Size = info.Size()
	}
	if hash, err := fileutil.HashFile(absPath); err == nil {
		event.ContentHash = hash
	}
	return event
}

func (w *Watcher) debounceEvent(event FileEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	state, ok := w.pending[event.Path]
	if !ok {
		state = &debounceState{windowAt: event.Timestamp}
		w.pending[event.Path] = state
	}

	// Last event per path wins: a delete followed by a quick re-create
	// collapses to the create, never to a stale delete.
	if state.timer != nil {
		state.timer.Stop()
		event.Debounced = true
	}

	if event.Timestamp.Sub(state.windowAt) > stormWindow {
		state.windowAt = event.Timestamp
		state.count = 0
	}
	state.count++

	delay := w.debounce
	if state.count > w.stormThreshold {
		delay *= stormFactor
	}

	state.lastEvent = event
	path := event.Path
	state.timer = time.AfterFunc(delay, func() {
		w.flush(path)
	})
}

// flush delivers the final event of a burst for one path.
func (w *Watcher) flush(path string) {
	w.mu.Lock()
	state, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	event := state.lastEvent
	w.mu.Unlock()

	select {
	case <-w.done:
		return
	default:
	}

	select {
	case w.events <- event:
	default:
		log.Printf("Event channel full, dropping event for %s", event.Path)
	}
}

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "CREATE"
	case EventModify:
		return "MODIFY"
	case EventDelete:
		return "DELETE"
	case EventMove:
		return "MOVE"
	default:
		return "UNKNOWN"
	}
}
