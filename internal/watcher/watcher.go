// Package watcher wraps fsnotify with recursive directory watching, path
// filters and debouncing of bursts of changes.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/manuscript/internal/errors"
	"github.com/conneroisu/manuscript/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when a watcher is created with a
// non-positive delay.
const DefaultDebounce = 100 * time.Millisecond

// FileWatcher watches directory trees and hands debounced batches of changes
// to its handlers.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	filters   []FileFilter
	handlers  []ChangeHandler
	recursive map[string]struct{}
	logger    logging.Logger
	mutex     sync.RWMutex
	stopOnce  sync.Once
	stopErr   error
}

// ChangeEvent represents a file change event
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
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

// FileFilter reports whether a change to path should be delivered.
type FileFilter func(path string) bool

// ChangeHandler handles a debounced batch of changes.
type ChangeHandler func(events []ChangeEvent) error

// Debouncer groups rapid file changes together
type Debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	timer   *time.Timer
	pending []ChangeEvent
	stopped bool
	mutex   sync.Mutex
}

// NewFileWatcher creates a new file watcher.
func NewFileWatcher(debounceDelay time.Duration, logger logging.Logger) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeFileOperation, "creating file watcher")
	}
	if debounceDelay <= 0 {
		debounceDelay = DefaultDebounce
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &FileWatcher{
		watcher:   watcher,
		debouncer: newDebouncer(debounceDelay),
		filters:   make([]FileFilter, 0),
		handlers:  make([]ChangeHandler, 0),
		recursive: make(map[string]struct{}),
		logger:    logger.WithComponent("watcher"),
	}, nil
}

func newDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		delay:   delay,
		events:  make(chan ChangeEvent, 256),
		output:  make(chan []ChangeEvent, 16),
		pending: make([]ChangeEvent, 0),
	}
}

// AddFilter adds a file filter. A change is delivered only if every filter accepts it.
func (fw *FileWatcher) AddFilter(filter FileFilter) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.filters = append(fw.filters, filter)
}

// AddHandler adds a change handler
func (fw *FileWatcher) AddHandler(handler ChangeHandler) {
	fw.mutex.Lock()
	defer fw.mutex.Unlock()
	fw.handlers = append(fw.handlers, handler)
}

// AddPath watches a single file or directory (non-recursively).
func (fw *FileWatcher) AddPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.FileOperationError("watch", path, err)
	}
	if err := fw.watcher.Add(abs); err != nil {
		return errors.FileOperationError("watch", abs, err)
	}
	return nil
}

// AddRecursive watches root and every directory below it. Directories
// created later under root are picked up as they appear.
func (fw *FileWatcher) AddRecursive(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return errors.FileOperationError("watch", root, err)
	}

	fw.mutex.Lock()
	fw.recursive[abs] = struct{}{}
	fw.mutex.Unlock()

	return fw.addTree(abs)
}

func (fw *FileWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return errors.FileOperationError("watch", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return errors.FileOperationError("watch", path, err)
		}
		return nil
	})
}

func (fw *FileWatcher) underRecursiveRoot(path string) bool {
	fw.mutex.RLock()
	defer fw.mutex.RUnlock()
	for root := range fw.recursive {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Start begins delivering events. The watcher is stopped when ctx is done.
func (fw *FileWatcher) Start(ctx context.Context) error {
	go fw.debouncer.start(ctx)
	go fw.processEvents(ctx)
	go fw.watchLoop(ctx)
	return nil
}

// Stop stops the file watcher and cleans up resources. It is safe to call
// more than once.
func (fw *FileWatcher) Stop() error {
	fw.stopOnce.Do(func() {
		fw.debouncer.stop()
		fw.stopErr = fw.watcher.Close()
	})
	return fw.stopErr
}

func (fw *FileWatcher) watchLoop(ctx context.Context) {
	defer func() { _ = fw.Stop() }()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (fw *FileWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	// new directories under a recursive root are watched, not reported
	if event.Has(fsnotify.Create) && statErr == nil && info.IsDir() {
		if fw.underRecursiveRoot(event.Name) {
			if err := fw.addTree(event.Name); err != nil {
				fw.logger.Warn(ctx, err, "Failed to watch new directory", "path", event.Name)
			}
		}
		return
	}

	fw.mutex.RLock()
	filters := fw.filters
	fw.mutex.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	if statErr == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventTypeCreated
	case event.Has(fsnotify.Write):
		eventType = EventTypeModified
	case event.Has(fsnotify.Remove):
		eventType = EventTypeDeleted
	case event.Has(fsnotify.Rename):
		eventType = EventTypeRenamed
	default:
		// chmod only
		return
	}

	changeEvent := ChangeEvent{
		Type:    eventType,
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	}

	select {
	case fw.debouncer.events <- changeEvent:
	default:
		fw.logger.Warn(ctx, nil, "Dropping file event, debouncer is full", "path", event.Name)
	}
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

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					fw.logger.Error(ctx, err, "File watcher handler failed", "events", len(events))
				}
			}
		}
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

func (d *Debouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *Debouncer) flush() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	// last event per path wins
	eventMap := make(map[string]ChangeEvent, len(d.pending))
	for _, event := range d.pending {
		eventMap[event.Path] = event
	}

	events := make([]ChangeEvent, 0, len(eventMap))
	for _, event := range eventMap {
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Path < events[j].Path })

	select {
	case d.output <- events:
		d.pending = d.pending[:0]
	default:
		// the consumer is behind; keep the merged batch and retry
		d.pending = append(d.pending[:0], events...)
		d.timer = time.AfterFunc(d.delay, d.flush)
	}
}

// ExtensionFilter accepts paths whose extension is one of exts (".md", ".css").
func ExtensionFilter(exts ...string) FileFilter {
	set := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return func(path string) bool {
		_, ok := set[strings.ToLower(filepath.Ext(path))]
		return ok
	}
}

// BaseNameFilter accepts paths whose base name is exactly name.
func BaseNameFilter(name string) FileFilter {
	return func(path string) bool {
		return filepath.Base(path) == name
	}
}

// NoHiddenFilter rejects dotfiles and editor swap files.
func NoHiddenFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".swp")
}

// NoGitFilter rejects .git directories and anything inside them.
func NoGitFilter(path string) bool {
	slashed := filepath.ToSlash(path)
	return filepath.Base(path) != ".git" && !strings.HasPrefix(slashed, ".git/") && !strings.Contains(slashed, "/.git/")
}
