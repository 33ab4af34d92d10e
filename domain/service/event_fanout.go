package service

import (
	"context"

	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

// EventHandlers maps each session event to a typed callback. Nil callbacks
// are skipped.
type EventHandlers struct {
	OnReady   func()
	OnSuccess func(relPath string)
	OnFailure func(relPath string, err error)
	OnDelete  func(relPath string)
	OnError   func(relPath string, err error)
}

// Publish implements outbound.EventSink.
func (h EventHandlers) Publish(event model.WatchEvent) {
	switch event.Kind {
	case model.EventReady:
		if h.OnReady != nil {
			h.OnReady()
		}
	case model.EventSuccess:
		if h.OnSuccess != nil {
			h.OnSuccess(event.Path)
		}
	case model.EventFailure:
		if h.OnFailure != nil {
			h.OnFailure(event.Path, event.Err)
		}
	case model.EventDelete:
		if h.OnDelete != nil {
			h.OnDelete(event.Path)
		}
	case model.EventError:
		if h.OnError != nil {
			h.OnError(event.Path, event.Err)
		}
	}
}

// ForwardEvents copies events to every sink, in order, until the channel is
// closed or ctx is done.
func ForwardEvents(ctx context.Context, events <-chan model.WatchEvent, sinks ...outbound.EventSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			for _, sink := range sinks {
				sink.Publish(event)
			}
		}
	}
}
