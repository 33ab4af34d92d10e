package service

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

// fakeWatcher is driven by the test through emit and fail.
type fakeWatcher struct {
	events   chan outbound.FileChangeEvent
	errs     chan error
	stopCh   chan struct{}
	watchErr error

	mu       sync.Mutex
	root     string
	watching bool
	stopped  bool
	stops    int
}

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		events: make(chan outbound.FileChangeEvent, 64),
		errs:   make(chan error, 4),
		stopCh: make(chan struct{}),
	}
}

func (w *fakeWatcher) Watch(ctx context.Context, root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watchErr != nil {
		return w.watchErr
	}
	w.root = root
	w.watching = true
	return nil
}

func (w *fakeWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stops++
	if !w.stopped {
		w.stopped = true
		w.watching = false
		close(w.stopCh)
	}
	return nil
}

func (w *fakeWatcher) Events() <-chan outbound.FileChangeEvent { return w.events }
func (w *fakeWatcher) Errors() <-chan error                    { return w.errs }

func (w *fakeWatcher) IsWatching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *fakeWatcher) GetWatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.root == "" {
		return nil
	}
	return []string{w.root}
}

func (w *fakeWatcher) emit(kind outbound.ChangeKind, rel string) {
	select {
	case w.events <- outbound.FileChangeEvent{RelPath: rel, Kind: kind}:
	case <-w.stopCh:
	}
}

func (w *fakeWatcher) scan(rels ...string) {
	for _, rel := range rels {
		w.emit(outbound.ChangeAdd, rel)
	}
	w.emit(outbound.ChangeScanComplete, "")
}

func (w *fakeWatcher) fail(err error) {
	w.errs <- err
}

func (w *fakeWatcher) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopped
}

// memStore is an in-memory ArtifactStore keyed by absolute path.
type memStore struct {
	mu        sync.Mutex
	files     map[string][]byte
	dirs      map[string]int
	writes    []string
	writeErr  map[string]error
	removeErr map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		files:     make(map[string][]byte),
		dirs:      make(map[string]int),
		writeErr:  make(map[string]error),
		removeErr: make(map[string]error),
	}
}

func (s *memStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

func (s *memStore) WriteFile(ctx context.Context, path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writeErr[path]; err != nil {
		return err
	}
	s.files[path] = append([]byte(nil), data...)
	s.writes = append(s.writes, path)
	return nil
}

func (s *memStore) EnsureDir(ctx context.Context, dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[dir]++
	return nil
}

func (s *memStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.removeErr[path]; err != nil {
		return err
	}
	delete(s.files, path)
	return nil
}

func (s *memStore) put(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = []byte(content)
}

func (s *memStore) get(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path]
	return string(data), ok
}

func (s *memStore) failWrites(path string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.writeErr, path)
		return
	}
	s.writeErr[path] = err
}

func (s *memStore) writeOrder() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.writes...)
}

// minifyFunc adapts a function to outbound.Minifier.
type minifyFunc func(ctx context.Context, req outbound.MinifyRequest) (*outbound.MinifyResult, error)

func (f minifyFunc) Minify(ctx context.Context, req outbound.MinifyRequest) (*outbound.MinifyResult, error) {
	return f(ctx, req)
}

var errSyntax = errors.New("unexpected token")

// fakeMinify strips spaces and rejects sources mentioning "syntax error".
func fakeMinify(ctx context.Context, req outbound.MinifyRequest) (*outbound.MinifyResult, error) {
	src := string(req.Source)
	if strings.Contains(src, "syntax error") {
		return nil, errSyntax
	}
	res := &outbound.MinifyResult{Code: []byte(strings.ReplaceAll(src, " ", ""))}
	if req.SourceMap {
		res.Map = []byte(`{"version":3,"file":"` + req.OutputName + `","sources":["` + req.SourceName + `"]}`)
	}
	return res, nil
}

type MockMinifier struct {
	mock.Mock
}

func (m *MockMinifier) Minify(ctx context.Context, req outbound.MinifyRequest) (*outbound.MinifyResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbound.MinifyResult), args.Error(1)
}

const (
	testSrc  = "/src"
	testDest = "/dest"
)

func srcPath(rel string) string  { return filepath.Join(filepath.FromSlash(testSrc), filepath.FromSlash(rel)) }
func destPath(rel string) string { return filepath.Join(filepath.FromSlash(testDest), filepath.FromSlash(rel)) }

type harness struct {
	session *Session
	watcher *fakeWatcher
	store   *memStore
}

func newHarness(t *testing.T, opts model.WatchOptions, minifier outbound.Minifier) *harness {
	t.Helper()
	if minifier == nil {
		minifier = minifyFunc(fakeMinify)
	}
	h := &harness{watcher: newFakeWatcher(), store: newMemStore()}

	session, err := NewSession(filepath.FromSlash(testSrc), filepath.FromSlash(testDest), opts, SessionDeps{
		Watcher:  h.watcher,
		Minifier: minifier,
		Store:    h.store,
	})
	require.NoError(t, err)
	h.session = session
	t.Cleanup(func() { session.Close() })
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	require.NoError(t, h.session.Start(context.Background()))
}

func (h *harness) next(t *testing.T) model.WatchEvent {
	t.Helper()
	select {
	case ev, ok := <-h.session.Events():
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for an event")
		return model.WatchEvent{}
	}
}

func (h *harness) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case ev, ok := <-h.session.Events():
		if ok {
			t.Fatalf("unexpected event %s for %q: %v", ev.Kind, ev.Path, ev.Err)
		}
	case <-time.After(wait):
	}
}

func (h *harness) expectClosed(t *testing.T) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-h.session.Events():
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("event stream was not closed")
		}
	}
}
