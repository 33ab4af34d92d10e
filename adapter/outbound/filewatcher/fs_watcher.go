package filewatcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"

	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

const defaultBuffer = 256

// Options controls which files are reported and how bursts are coalesced.
type Options struct {
	Include  []string
	Ignore   []string
	Debounce time.Duration
	Buffer   int
	Logger   outbound.Logger
}

type FsWatcher struct {
	watcher     *fsnotify.Watcher
	matcher     *pathMatcher
	logger      outbound.Logger
	debounce    time.Duration
	events      chan outbound.FileChangeEvent
	errors      chan error
	fired       chan firedChange
	pending     map[string]*pendingChange // owned by the run goroutine
	seq         uint64
	watchedDirs map[string]bool
	root        string
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	running     bool
	stopped     bool
	closed      chan struct{}
}

type pendingChange struct {
	kind  outbound.ChangeKind
	seq   uint64
	timer *time.Timer
}

type firedChange struct {
	rel string
	seq uint64
}

func NewFSWatcher(opts Options) (outbound.FileWatcher, error) {
	matcher, err := newPathMatcher(opts.Include, opts.Ignore)
	if err != nil {
		return nil, err
	}

	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultBuffer
	}

	fsWatcher, err := fsnotify.NewBufferedWatcher(uint(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = outbound.NopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &FsWatcher{
		watcher:     fsWatcher,
		matcher:     matcher,
		logger:      logger,
		debounce:    opts.Debounce,
		events:      make(chan outbound.FileChangeEvent, buffer),
		errors:      make(chan error, 16),
		fired:       make(chan firedChange, buffer),
		pending:     make(map[string]*pendingChange),
		watchedDirs: make(map[string]bool),
		ctx:         ctx,
		cancel:      cancel,
		closed:      make(chan struct{}),
	}, nil
}

// Watch reports every matching file under root as ChangeAdd, then
// ChangeScanComplete, then live changes. Cancelling ctx stops event delivery.
func (fw *FsWatcher) Watch(ctx context.Context, root string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return errors.New("watcher already stopped")
	}
	if fw.running {
		return fmt.Errorf("watcher already running on %s", fw.root)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to get absolute path for %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", absRoot)
	}

	if err := fw.watcher.Add(absRoot); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", absRoot, err)
	}
	fw.watchedDirs[absRoot] = true
	fw.root = absRoot
	fw.running = true

	context.AfterFunc(ctx, fw.cancel)
	go fw.run()

	return nil
}

func (fw *FsWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	running := fw.running
	fw.running = false
	fw.cancel()
	fw.mu.Unlock()

	err := fw.watcher.Close()

	// wait for the run goroutine before closing its output
	if running {
		<-fw.closed
	}
	close(fw.events)
	close(fw.errors)

	if err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

func (fw *FsWatcher) Events() <-chan outbound.FileChangeEvent {
	return fw.events
}

func (fw *FsWatcher) Errors() <-chan error {
	return fw.errors
}

func (fw *FsWatcher) IsWatching() bool {
	fw.mu.RLock()
	defer fw.mu.RUnlock()
	return fw.running
}

func (fw *FsWatcher) GetWatchedPaths() []string {
	fw.mu.RLock()
	defer fw.mu.RUnlock()

	paths := make([]string, 0, len(fw.watchedDirs))
	for path := range fw.watchedDirs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (fw *FsWatcher) run() {
	defer close(fw.closed)

	if !fw.scan(fw.root, fw.sendAdd) {
		return
	}
	if !fw.send(outbound.FileChangeEvent{Kind: outbound.ChangeScanComplete}) {
		return
	}
	fw.logger.Debug("Initial scan complete", "root", fw.root, "directories", len(fw.GetWatchedPaths()))

	for {
		select {
		case <-fw.ctx.Done():
			fw.stopTimers()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if !fw.handleEvent(event) {
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			if !fw.sendError(err) {
				return
			}

		case f := <-fw.fired:
			if !fw.flush(f) {
				return
			}
		}
	}
}

// scan watches every directory under dir and reports matching files in
// lexical order. It returns false once the watcher is stopping.
func (fw *FsWatcher) scan(dir string, report func(rel string) bool) bool {
	var mu sync.Mutex
	var files []string

	conf := &fastwalk.Config{Follow: false}
	err := fastwalk.Walk(conf, dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := fw.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			fw.logger.Debug("Skipping unreadable path", "path", path, "error", err)
			return nil
		}

		rel, ok := fw.rel(path)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if path != dir && fw.matcher.SkipDir(rel) {
				return fs.SkipDir
			}
			if err := fw.addWatch(path); err != nil {
				fw.logger.Warn("Failed to watch directory", "path", path, "error", err)
			}
			return nil
		}

		if !d.Type().IsRegular() || !fw.matcher.Match(rel) {
			return nil
		}
		mu.Lock()
		files = append(files, rel)
		mu.Unlock()
		return nil
	})
	if fw.ctx.Err() != nil {
		return false
	}
	if err != nil {
		fw.logger.Warn("Scan incomplete", "dir", dir, "error", err)
	}

	sort.Strings(files)
	for _, rel := range files {
		if !report(rel) {
			return false
		}
	}
	return true
}

// handleEvent converts an fsnotify event; it returns false once the watcher
// is stopping.
func (fw *FsWatcher) handleEvent(event fsnotify.Event) bool {
	if event.Name == fw.root && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		return fw.sendError(fmt.Errorf("source directory %s was removed", fw.root))
	}

	rel, ok := fw.rel(event.Name)
	if !ok {
		return true
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if fw.matcher.SkipDir(rel) {
				return true
			}
			// files may land in a new directory before its watch exists
			return fw.scan(event.Name, fw.queueAdd)
		}
	}

	if (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && fw.forgetDir(event.Name) {
		return true
	}

	if !fw.matcher.Match(rel) {
		return true
	}

	var kind outbound.ChangeKind
	switch {
	case event.Has(fsnotify.Create):
		kind = outbound.ChangeAdd
	case event.Has(fsnotify.Write):
		kind = outbound.ChangeModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// rename is reported as removal; the new name triggers a create
		kind = outbound.ChangeRemove
	default:
		return true
	}

	return fw.queue(rel, kind)
}

func (fw *FsWatcher) sendAdd(rel string) bool {
	return fw.send(outbound.FileChangeEvent{RelPath: rel, Kind: outbound.ChangeAdd})
}

func (fw *FsWatcher) queueAdd(rel string) bool {
	return fw.queue(rel, outbound.ChangeAdd)
}

// queue applies per-path debouncing; notifications for one path inside the
// window collapse into one.
func (fw *FsWatcher) queue(rel string, kind outbound.ChangeKind) bool {
	if fw.debounce <= 0 {
		return fw.send(outbound.FileChangeEvent{RelPath: rel, Kind: kind})
	}

	p, exists := fw.pending[rel]
	if exists {
		p.timer.Stop()
		p.kind = mergeKinds(p.kind, kind)
	} else {
		p = &pendingChange{kind: kind}
		fw.pending[rel] = p
	}

	fw.seq++
	p.seq = fw.seq
	f := firedChange{rel: rel, seq: p.seq}
	p.timer = time.AfterFunc(fw.debounce, func() {
		select {
		case fw.fired <- f:
		case <-fw.ctx.Done():
		}
	})
	return true
}

func (fw *FsWatcher) flush(f firedChange) bool {
	p, exists := fw.pending[f.rel]
	if !exists || p.seq != f.seq {
		return true
	}
	delete(fw.pending, f.rel)
	return fw.send(outbound.FileChangeEvent{RelPath: f.rel, Kind: p.kind})
}

func mergeKinds(prev, next outbound.ChangeKind) outbound.ChangeKind {
	switch {
	case next == outbound.ChangeRemove:
		return outbound.ChangeRemove
	case prev == outbound.ChangeRemove:
		// removed then recreated: the destination still exists
		return outbound.ChangeModify
	case prev == outbound.ChangeAdd:
		return outbound.ChangeAdd
	default:
		return next
	}
}

func (fw *FsWatcher) stopTimers() {
	for rel, p := range fw.pending {
		p.timer.Stop()
		delete(fw.pending, rel)
	}
}

func (fw *FsWatcher) send(event outbound.FileChangeEvent) bool {
	select {
	case fw.events <- event:
		return true
	case <-fw.ctx.Done():
		return false
	}
}

func (fw *FsWatcher) sendError(err error) bool {
	select {
	case fw.errors <- err:
		return true
	case <-fw.ctx.Done():
		return false
	}
}

func (fw *FsWatcher) addWatch(dir string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.watchedDirs[dir] {
		return nil
	}
	if err := fw.watcher.Add(dir); err != nil {
		return err
	}
	fw.watchedDirs[dir] = true
	return nil
}

// forgetDir drops dir and everything below it; it reports whether dir was
// a watched directory.
func (fw *FsWatcher) forgetDir(dir string) bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if !fw.watchedDirs[dir] {
		return false
	}
	prefix := dir + string(filepath.Separator)
	for path := range fw.watchedDirs {
		if path == dir || strings.HasPrefix(path, prefix) {
			_ = fw.watcher.Remove(path)
			delete(fw.watchedDirs, path)
		}
	}
	fw.logger.Debug("Stopped watching removed directory", "path", dir)
	return true
}

// rel returns the slash-separated path of p below the root.
func (fw *FsWatcher) rel(p string) (string, bool) {
	rel, err := filepath.Rel(fw.root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}
