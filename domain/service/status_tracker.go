package service

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/inbound"
)

// StatusTracker records the outcome of every session event and serves them
// through inbound.StatusService.
type StatusTracker struct {
	session inbound.WatchSession
	started time.Time

	mu      sync.RWMutex
	readyAt *time.Time
	counts  struct {
		successes, failures, deletes, errors uint64
	}
	files map[string]model.FileStatus
}

// NewStatusTracker tracks the outcomes published for session. Register the
// returned value as an event sink.
func NewStatusTracker(session inbound.WatchSession) *StatusTracker {
	return &StatusTracker{
		session: session,
		started: time.Now(),
		files:   make(map[string]model.FileStatus),
	}
}

var _ inbound.StatusService = (*StatusTracker)(nil)

func (s *StatusTracker) Publish(event model.WatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := event.Time
	if at.IsZero() {
		at = time.Now()
	}

	var state string
	switch event.Kind {
	case model.EventReady:
		s.readyAt = &at
		return
	case model.EventSuccess:
		s.counts.successes++
		state = "built"
	case model.EventFailure:
		s.counts.failures++
		state = "failed"
	case model.EventDelete:
		s.counts.deletes++
		state = "deleted"
	case model.EventError:
		s.counts.errors++
		state = "error"
	default:
		return
	}

	if event.Path == "" {
		return
	}
	status := model.FileStatus{
		Path:      filepath.ToSlash(event.Path),
		State:     state,
		UpdatedAt: at,
	}
	if event.Err != nil {
		status.Error = event.Err.Error()
	}
	s.files[status.Path] = status
}

func (s *StatusTracker) GetStatus(ctx context.Context) *model.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &model.SessionStatus{
		SessionID: s.session.ID(),
		SrcDir:    s.session.SrcDir(),
		DestDir:   s.session.DestDir(),
		Ready:     s.session.IsReady(),
		StartedAt: s.started,
		ReadyAt:   s.readyAt,
		Successes: s.counts.successes,
		Failures:  s.counts.failures,
		Deletes:   s.counts.deletes,
		Errors:    s.counts.errors,
	}
}

func (s *StatusTracker) GetFiles(ctx context.Context) []model.FileStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]model.FileStatus, 0, len(s.files))
	for _, status := range s.files {
		files = append(files, status)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

func (s *StatusTracker) GetFile(ctx context.Context, relPath string) (*model.FileStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.files[filepath.ToSlash(relPath)]
	if !ok {
		return nil, false
	}
	return &status, true
}
