package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoWatchMin/domain/model"
)

type stubSession struct {
	ready bool
}

func (s *stubSession) ID() string                      { return "session-1" }
func (s *stubSession) SrcDir() string                  { return "src" }
func (s *stubSession) DestDir() string                 { return "dist" }
func (s *stubSession) Events() <-chan model.WatchEvent { return nil }
func (s *stubSession) Ready() <-chan struct{}          { return nil }
func (s *stubSession) IsReady() bool                   { return s.ready }
func (s *stubSession) Err() error                      { return nil }
func (s *stubSession) Close() error                    { return nil }

func TestStatusTracker_Counts(t *testing.T) {
	session := &stubSession{}
	tracker := NewStatusTracker(session)
	ctx := context.Background()

	status := tracker.GetStatus(ctx)
	assert.Equal(t, "session-1", status.SessionID)
	assert.Equal(t, "src", status.SrcDir)
	assert.Equal(t, "dist", status.DestDir)
	assert.False(t, status.Ready)
	assert.Nil(t, status.ReadyAt)

	readyAt := time.Now()
	session.ready = true
	tracker.Publish(model.WatchEvent{Kind: model.EventReady, Time: readyAt})
	tracker.Publish(model.WatchEvent{Kind: model.EventSuccess, Path: "a.js"})
	tracker.Publish(model.WatchEvent{Kind: model.EventSuccess, Path: "b.js"})
	tracker.Publish(model.WatchEvent{Kind: model.EventFailure, Path: "c.js", Err: errors.New("boom")})
	tracker.Publish(model.WatchEvent{Kind: model.EventDelete, Path: "b.js"})
	tracker.Publish(model.WatchEvent{Kind: model.EventError, Err: errors.New("watch failed")})

	status = tracker.GetStatus(ctx)
	assert.True(t, status.Ready)
	require.NotNil(t, status.ReadyAt)
	assert.True(t, readyAt.Equal(*status.ReadyAt))
	assert.Equal(t, uint64(2), status.Successes)
	assert.Equal(t, uint64(1), status.Failures)
	assert.Equal(t, uint64(1), status.Deletes)
	assert.Equal(t, uint64(1), status.Errors)
}

func TestStatusTracker_Files(t *testing.T) {
	tracker := NewStatusTracker(&stubSession{})
	ctx := context.Background()

	tracker.Publish(model.WatchEvent{Kind: model.EventSuccess, Path: "lib/b.js"})
	tracker.Publish(model.WatchEvent{Kind: model.EventSuccess, Path: "a.js"})
	tracker.Publish(model.WatchEvent{Kind: model.EventFailure, Path: "a.js", Err: errors.New("unexpected token")})
	tracker.Publish(model.WatchEvent{Kind: model.EventError, Err: errors.New("session wide")})

	files := tracker.GetFiles(ctx)
	require.Len(t, files, 2)
	assert.Equal(t, "a.js", files[0].Path)
	assert.Equal(t, "failed", files[0].State)
	assert.Equal(t, "unexpected token", files[0].Error)
	assert.False(t, files[0].UpdatedAt.IsZero())
	assert.Equal(t, "lib/b.js", files[1].Path)
	assert.Equal(t, "built", files[1].State)

	status, ok := tracker.GetFile(ctx, "lib/b.js")
	require.True(t, ok)
	assert.Equal(t, "built", status.State)

	_, ok = tracker.GetFile(ctx, "missing.js")
	assert.False(t, ok)
}

func TestForwardEvents(t *testing.T) {
	events := make(chan model.WatchEvent, 4)
	events <- model.WatchEvent{Kind: model.EventReady}
	events <- model.WatchEvent{Kind: model.EventSuccess, Path: "a.js"}
	events <- model.WatchEvent{Kind: model.EventDelete, Path: "a.js"}
	close(events)

	tracker := NewStatusTracker(&stubSession{})
	var seen []string
	handlers := EventHandlers{
		OnReady:   func() { seen = append(seen, "ready") },
		OnSuccess: func(p string) { seen = append(seen, "success:"+p) },
		OnDelete:  func(p string) { seen = append(seen, "delete:"+p) },
	}

	ForwardEvents(context.Background(), events, handlers, tracker)

	assert.Equal(t, []string{"ready", "success:a.js", "delete:a.js"}, seen)
	status := tracker.GetStatus(context.Background())
	assert.Equal(t, uint64(1), status.Successes)
	assert.Equal(t, uint64(1), status.Deletes)
}

func TestForwardEvents_StopsOnContext(t *testing.T) {
	events := make(chan model.WatchEvent)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		ForwardEvents(ctx, events, EventHandlers{})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ForwardEvents ignored cancellation")
	}
}

func TestEventHandlers_NilCallbacks(t *testing.T) {
	assert.NotPanics(t, func() {
		EventHandlers{}.Publish(model.WatchEvent{Kind: model.EventFailure, Path: "a.js"})
		EventHandlers{}.Publish(model.WatchEvent{Kind: model.EventError})
	})
}
