package inbound

import (
	"context"

	"github.com/ajkula/GoWatchMin/domain/model"
)

// WatchSession is a running source-to-destination minification watch.
type WatchSession interface {
	// ID identifies the session in logs
	ID() string

	SrcDir() string
	DestDir() string

	// Events delivers lifecycle events; closed when the session ends
	Events() <-chan model.WatchEvent

	// Ready is closed once the initial build has completed
	Ready() <-chan struct{}

	IsReady() bool

	// Err reports the fatal error that ended the session, if any
	Err() error

	Close() error
}

// StatusService exposes session state to inbound adapters.
type StatusService interface {
	GetStatus(ctx context.Context) *model.SessionStatus
	GetFiles(ctx context.Context) []model.FileStatus
	GetFile(ctx context.Context, relPath string) (*model.FileStatus, bool)
}
