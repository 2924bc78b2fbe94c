// Package watcher watches a document, its variable files and its image
// directories, and delivers debounced batches saying which of them changed.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/logging"
)

// Role says what a watched path feeds into.
type Role int

const (
	RoleDocument Role = iota
	RoleVariables
	RoleImage
)

// String returns the string representation of the Role
func (r Role) String() string {
	switch r {
	case RoleDocument:
		return "document"
	case RoleVariables:
		return "variables"
	case RoleImage:
		return "image"
	default:
		return "unknown"
	}
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent is one change to a watched path.
type ChangeEvent struct {
	Type    EventType
	Role    Role
	Path    string
	ModTime time.Time
}

// Batch is a debounced group of changes.
type Batch struct {
	Events    []ChangeEvent
	Document  bool
	Variables bool
	Images    bool
}

func newBatch(events []ChangeEvent) Batch {
	b := Batch{Events: events}
	for _, e := range events {
		switch e.Role {
		case RoleDocument:
			b.Document = true
		case RoleVariables:
			b.Variables = true
		case RoleImage:
			b.Images = true
		}
	}
	return b
}

// BatchHandler reacts to a batch.
type BatchHandler func(Batch) error

// FileWatcher watches the inputs of one document. fsnotify loses a file when
// editors replace it on save, so parent directories are watched and events
// are narrowed to the registered paths.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger

	mutex     sync.RWMutex
	files     map[string]Role
	imageDirs map[string]bool
	watched   map[string]bool
	handlers  []BatchHandler
}

// NewFileWatcher creates a watcher that waits debounceDelay of quiet before
// delivering a batch.
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &FileWatcher{
		watcher:   watcher,
		debouncer: NewDebouncer(debounceDelay),
		logger:    logging.OrNop(logger).WithComponent("watcher"),
		files:     make(map[string]Role),
		imageDirs: make(map[string]bool),
		watched:   make(map[string]bool),
	}, nil
}

// OnChange registers a batch handler.
func (fw *FileWatcher) OnChange(handler BatchHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// WatchDocument watches the document file.
func (fw *FileWatcher) WatchDocument(path string) error {
	return fw.watchFiles(RoleDocument, path)
}

// WatchVariables watches variable files.
func (fw *FileWatcher) WatchVariables(paths ...string) error {
	return fw.watchFiles(RoleVariables, paths...)
}

// WatchImages watches image files directly inside dirs.
func (fw *FileWatcher) WatchImages(dirs ...string) error {
	for _, dir := range dirs {
		clean, err := cleanPath(dir)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if err := fw.addDir(clean); err != nil {
			return err
		}
		fw.mutex.Lock()
		fw.imageDirs[clean] = true
		fw.mutex.Unlock()
	}
	return nil
}

func (fw *FileWatcher) watchFiles(role Role, paths ...string) error {
	for _, p := range paths {
		clean, err := cleanPath(p)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if err := fw.addDir(filepath.Dir(clean)); err != nil {
			return err
		}
		fw.mutex.Lock()
		fw.files[clean] = role
		fw.mutex.Unlock()
	}
	return nil
}

func (fw *FileWatcher) addDir(dir string) error {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	if fw.watched[dir] {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	fw.watched[dir] = true
	return nil
}

// roleOf reports the role of path, if it is one of the watched inputs. A
// registered file wins over an image directory holding it.
func (fw *FileWatcher) roleOf(path string) (Role, bool) {
	clean, err := cleanPath(path)
	if err != nil || !NoHiddenFilter(clean) || !NoGitFilter(clean) {
		return 0, false
	}

	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	if role, ok := fw.files[clean]; ok {
		return role, true
	}
	if fw.imageDirs[filepath.Dir(clean)] && images.IsImageFile(clean) {
		return RoleImage, true
	}
	return 0, false
}

// cleanPath returns the absolute, cleaned form of path.
func cleanPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	return absPath, nil
}

// Start starts the file watcher
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources
func (fw *FileWatcher) Stop() error {
	fw.debouncer.Stop()
	return fw.watcher.Close()
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}
	role, ok := fw.roleOf(event.Name)
	if !ok {
		return
	}

	var modTime time.Time
	if info, err := os.Stat(event.Name); err == nil {
		modTime = info.ModTime()
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventTypeCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventTypeModified
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		eventType = EventTypeDeleted
	case event.Op&fsnotify.Rename == fsnotify.Rename:
		eventType = EventTypeRenamed
	default:
		eventType = EventTypeModified
	}

	fw.debouncer.Add(ChangeEvent{
		Type:    eventType,
		Role:    role,
		Path:    event.Name,
		ModTime: modTime,
	})
}

func (fw *FileWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-fw.debouncer.output:
			fw.mutex.RLock()
			handlers := fw.handlers
			fw.mutex.RUnlock()

			batch := newBatch(events)
			fw.logger.Debug(ctx, "file changes",
				"count", len(events),
				"document", batch.Document,
				"variables", batch.Variables,
				"images", batch.Images)
			for _, handler := range handlers {
				if err := handler(batch); err != nil {
					fw.logger.Error(ctx, err, "file watcher handler failed")
				}
			}
		}
	}
}

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	mutex   sync.Mutex
}

// NewDebouncer returns a debouncer that emits a batch once delay has passed
// without a new event.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, 100),
		output: make(chan []ChangeEvent, 10),
	}
}

// Add queues an event without blocking. Events are dropped while the queue
// is full.
func (d *Debouncer) Add(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
	}
}

// Output delivers debounced batches.
func (d *Debouncer) Output() <-chan []ChangeEvent {
	return d.output
}

// Stop cancels a pending flush.
func (d *Debouncer) Stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.addEvent(event)
		}
	}
}

func (d *Debouncer) addEvent(event ChangeEvent) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = append(d.pending, event)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if len(d.pending) == 0 {
		return
	}

	// Last event per path wins.
	latest := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		latest[event.Path] = event
	}
	events := make([]ChangeEvent, 0, len(latest))
	for _, event := range latest {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
	default:
	}
	d.pending = d.pending[:0]
}

// NoHiddenFilter rejects dotfiles and editor swap files.
func NoHiddenFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".swp")
}

// NoGitFilter rejects anything under a .git directory.
func NoGitFilter(path string) bool {
	slashed := filepath.ToSlash(path)
	return filepath.Base(path) != ".git" && !strings.HasPrefix(slashed, ".git/") && !strings.Contains(slashed, "/.git/")
}
