package outbound

import (
	"context"
)

// ChangeKind is the type of a file system notification.
type ChangeKind int

const (
	ChangeAdd ChangeKind = iota
	ChangeModify
	ChangeRemove
	// ChangeScanComplete is sent once, after every file present when Watch
	// was called has been reported as ChangeAdd.
	ChangeScanComplete
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdd:
		return "add"
	case ChangeModify:
		return "modify"
	case ChangeRemove:
		return "remove"
	case ChangeScanComplete:
		return "scan-complete"
	default:
		return "unknown"
	}
}

// represents a file system change event
type FileChangeEvent struct {
	RelPath string     `json:"relPath"` // path relative to the watched root, empty for ChangeScanComplete
	Kind    ChangeKind `json:"kind"`
}

// defines operations for monitoring a source tree for changes
type FileWatcher interface {
	// scans root, then monitors it recursively for changes
	Watch(ctx context.Context, root string) error

	// stops watching and releases resources; Events and Errors are closed afterwards
	Stop() error

	// returns a channel for receiving file change events
	Events() <-chan FileChangeEvent

	// returns a channel for receiving file watcher errors
	Errors() <-chan error

	// returns true if the watcher is currently monitoring files
	IsWatching() bool

	// returns a list of currently watched directories
	GetWatchedPaths() []string
}
