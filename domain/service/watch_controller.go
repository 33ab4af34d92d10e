package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

// SessionDeps are the outbound adapters a session drives.
type SessionDeps struct {
	Watcher  outbound.FileWatcher
	Minifier outbound.Minifier
	Store    outbound.ArtifactStore
	Logger   outbound.Logger
}

// Session keeps a destination directory in sync with the minified scripts of
// a source directory.
//
// A session is created with NewSession and started with Start. Every file
// present at start is built before EventReady is emitted; later changes emit
// EventSuccess, EventFailure, EventDelete or EventError. Jobs for one path
// run in arrival order, so a removal that arrives while the same path is
// building runs after that build and the destination ends up removed.
type Session struct {
	id       string
	srcDir   string
	destDir  string
	opts     model.WatchOptions
	watcher  outbound.FileWatcher
	pipeline *BuildPipeline
	logger   outbound.Logger
	jobs     *pathDispatcher

	events   chan model.WatchEvent
	ready    chan struct{}
	done     chan struct{}
	loopDone chan struct{}
	isReady  atomic.Bool
	dropped  atomic.Uint64

	// emitMu serializes sends on events against closing it.
	emitMu       sync.Mutex
	eventsClosed bool

	mu        sync.Mutex
	started   bool
	closed    bool
	err       error
	closeErr  error
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	stopAfter func() bool

	closeOnce sync.Once
}

func NewSession(srcDir, destDir string, opts model.WatchOptions, deps SessionDeps) (*Session, error) {
	if deps.Watcher == nil || deps.Minifier == nil || deps.Store == nil {
		return nil, fmt.Errorf("%w: watcher, minifier and store are required", model.ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if samePath(srcDir, destDir) && opts.Rename.Apply("script.js") == "script.js" {
		return nil, fmt.Errorf("%w: rename rule would overwrite sources in %s", model.ErrInvalidOptions, srcDir)
	}

	logger := deps.Logger
	if logger == nil {
		logger = outbound.NopLogger()
	}

	opts = opts.Clone()
	buffer := opts.EventBuffer
	if buffer == 0 {
		buffer = model.DefaultEventBuffer
	}

	return &Session{
		id:       uuid.NewString(),
		srcDir:   srcDir,
		destDir:  destDir,
		opts:     opts,
		watcher:  deps.Watcher,
		pipeline: NewBuildPipeline(srcDir, destDir, opts, deps.Minifier, deps.Store, logger),
		logger:   logger,
		jobs:     newPathDispatcher(),
		events:   make(chan model.WatchEvent, buffer),
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}, nil
}

// Start begins watching. Cancelling ctx closes the session.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ErrSessionClosed
	}
	if s.started {
		return fmt.Errorf("session %s already started", s.id)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("Starting watch session",
		"session", s.id, "src", s.srcDir, "dest", s.destDir,
		"persistent", s.opts.Persistent, "delete", s.opts.Delete)

	if err := s.watcher.Watch(s.ctx, s.srcDir); err != nil {
		s.cancel()
		s.logger.Error("Failed to start watcher", "session", s.id, "src", s.srcDir, "error", err)
		return fmt.Errorf("%w: %s: %w", model.ErrWatch, s.srcDir, err)
	}

	s.started = true
	s.startedAt = time.Now()
	s.stopAfter = context.AfterFunc(ctx, func() { s.Close() })
	go s.run()
	return nil
}

func (s *Session) ID() string      { return s.id }
func (s *Session) SrcDir() string  { return s.srcDir }
func (s *Session) DestDir() string { return s.destDir }
func (s *Session) IsReady() bool   { return s.isReady.Load() }

func (s *Session) Options() model.WatchOptions { return s.opts.Clone() }

func (s *Session) Events() <-chan model.WatchEvent { return s.events }

func (s *Session) Ready() <-chan struct{} { return s.ready }

// StartedAt is the zero time until Start succeeds.
func (s *Session) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// DroppedEvents counts initial-scan errors discarded because Events was full.
func (s *Session) DroppedEvents() uint64 { return s.dropped.Load() }

func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the watch and closes Events. Builds already running finish
// their I/O but emit nothing. Close is idempotent.
func (s *Session) Close() error {
	s.shutdown(nil)

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.loopDone
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeErr
}

// Handle dispatches events to h until the session ends or ctx is done.
func (s *Session) Handle(ctx context.Context, h EventHandlers) error {
	ForwardEvents(ctx, s.events, h)
	return s.Err()
}

func (s *Session) shutdown(cause error) {
	s.closeOnce.Do(func() {
		// done first: an emitter blocked on a full channel holds emitMu.
		close(s.done)

		s.mu.Lock()
		s.closed = true
		started := s.started
		cancel := s.cancel
		stopAfter := s.stopAfter
		s.mu.Unlock()

		if stopAfter != nil {
			stopAfter()
		}
		if cancel != nil {
			cancel()
		}

		var stopErr error
		if started {
			stopErr = s.watcher.Stop()
		}

		s.emitMu.Lock()
		s.eventsClosed = true
		close(s.events)
		s.emitMu.Unlock()

		s.mu.Lock()
		if cause != nil && s.err == nil {
			s.err = cause
		}
		s.closeErr = stopErr
		s.mu.Unlock()

		s.logger.Info("Watch session closed", "session", s.id, "pendingPaths", s.jobs.Busy())
	})
}

func (s *Session) run() {
	defer close(s.loopDone)

	var initial sync.WaitGroup
	var deferred []outbound.FileChangeEvent
	scanning := true
	changes := s.watcher.Events()
	errs := s.watcher.Errors()

	for {
		select {
		case <-s.done:
			return

		case change, ok := <-changes:
			if !ok {
				s.shutdown(nil)
				return
			}

			if !scanning {
				s.dispatch(change)
				continue
			}

			switch change.Kind {
			case outbound.ChangeAdd:
				s.buildInitial(&initial, change.RelPath)
			case outbound.ChangeScanComplete:
				if !s.awaitInitial(&initial) {
					return
				}
				scanning = false
				s.markReady()
				if !s.opts.Persistent {
					s.shutdown(nil)
					return
				}
				for _, pending := range deferred {
					s.dispatch(pending)
				}
				deferred = nil
			default:
				deferred = append(deferred, change)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.fail(err)
			return
		}
	}
}

func (s *Session) buildInitial(initial *sync.WaitGroup, relPath string) {
	initial.Add(1)
	s.jobs.Submit(relPath, func() {
		defer initial.Done()
		outcome := s.pipeline.Build(context.WithoutCancel(s.ctx), relPath)
		switch {
		case outcome.Succeeded():
			s.logger.Debug("Initial build succeeded", "session", s.id, "path", relPath, "duration", outcome.Duration)
		case errors.Is(outcome.Err, model.ErrWrite):
			s.logger.Error("Initial build could not be written", "session", s.id, "path", relPath, "error", outcome.Err)
			// readiness must not wait on a consumer that only waits for Ready
			if !s.tryEmit(model.EventError, relPath, outcome.Err) {
				s.dropped.Add(1)
				s.logger.Warn("Event buffer full, dropping initial error", "session", s.id, "path", relPath)
			}
		default:
			s.logger.Warn("Initial build failed", "session", s.id, "path", relPath, "error", outcome.Err)
		}
	})
}

// awaitInitial returns false if the session closed first.
func (s *Session) awaitInitial(initial *sync.WaitGroup) bool {
	finished := make(chan struct{})
	go func() {
		initial.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) markReady() {
	s.isReady.Store(true)
	close(s.ready)
	s.logger.Info("Initial build complete", "session", s.id, "src", s.srcDir)
	s.emit(model.EventReady, "", nil)
}

func (s *Session) dispatch(change outbound.FileChangeEvent) {
	relPath := change.RelPath
	switch change.Kind {
	case outbound.ChangeAdd, outbound.ChangeModify:
		s.logger.Debug("Source changed", "session", s.id, "path", relPath, "kind", change.Kind)
		s.jobs.Submit(relPath, func() { s.build(relPath) })
	case outbound.ChangeRemove:
		if !s.opts.Delete {
			s.logger.Debug("Source removed, keeping destination", "session", s.id, "path", relPath)
			return
		}
		s.jobs.Submit(relPath, func() { s.remove(relPath) })
	}
}

func (s *Session) build(relPath string) {
	outcome := s.pipeline.Build(context.WithoutCancel(s.ctx), relPath)
	switch {
	case outcome.Succeeded():
		s.logger.Info("Build succeeded", "session", s.id, "path", relPath,
			"bytes", outcome.Bytes, "duration", outcome.Duration)
		s.emit(model.EventSuccess, relPath, nil)
	case errors.Is(outcome.Err, model.ErrWrite):
		s.logger.Error("Build could not be written", "session", s.id, "path", relPath, "error", outcome.Err)
		s.emit(model.EventError, relPath, outcome.Err)
	default:
		s.logger.Warn("Build failed", "session", s.id, "path", relPath, "error", outcome.Err)
		s.emit(model.EventFailure, relPath, outcome.Err)
	}
}

func (s *Session) remove(relPath string) {
	if err := s.pipeline.Remove(context.WithoutCancel(s.ctx), relPath); err != nil {
		s.logger.Error("Failed to remove destination", "session", s.id, "path", relPath, "error", err)
		s.emit(model.EventError, relPath, err)
		return
	}
	s.logger.Info("Destination removed", "session", s.id, "path", relPath)
	s.emit(model.EventDelete, relPath, nil)
}

// fail reports a watch error and ends the session.
func (s *Session) fail(err error) {
	cause := fmt.Errorf("%w: %w", model.ErrWatch, err)
	s.logger.Error("Watcher failed, closing session", "session", s.id, "error", err)
	s.emit(model.EventError, "", cause)
	s.shutdown(cause)
}

func (s *Session) emit(kind model.EventKind, relPath string, err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.eventsClosed {
		return
	}
	select {
	case s.events <- model.WatchEvent{Kind: kind, Path: relPath, Err: err, Time: time.Now()}:
	case <-s.done:
	}
}

// tryEmit sends without waiting and reports whether the event was queued.
func (s *Session) tryEmit(kind model.EventKind, relPath string, err error) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if s.eventsClosed {
		return false
	}
	select {
	case s.events <- model.WatchEvent{Kind: kind, Path: relPath, Err: err, Time: time.Now()}:
		return true
	default:
		return false
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}
