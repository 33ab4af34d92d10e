package outbound

import "github.com/ajkula/GoWatchMin/domain/model"

// EventSink receives session events, e.g. status tracking or live reload.
type EventSink interface {
	Publish(event model.WatchEvent)
}
