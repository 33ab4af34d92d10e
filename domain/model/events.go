package model

import (
	"encoding/json"
	"time"
)

// EventKind enumerates the session lifecycle events.
type EventKind int

const (
	EventReady EventKind = iota
	EventSuccess
	EventFailure
	EventDelete
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventSuccess:
		return "success"
	case EventFailure:
		return "failure"
	case EventDelete:
		return "delete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// WatchEvent is delivered to session consumers. Path is relative to the
// source root and empty for Ready and for session-wide errors.
type WatchEvent struct {
	Kind EventKind
	Path string
	Err  error
	Time time.Time
}

func (e WatchEvent) MarshalJSON() ([]byte, error) {
	payload := struct {
		Type  string    `json:"type"`
		Path  string    `json:"path,omitempty"`
		Error string    `json:"error,omitempty"`
		Time  time.Time `json:"time"`
	}{
		Type: e.Kind.String(),
		Path: e.Path,
		Time: e.Time,
	}
	if e.Err != nil {
		payload.Error = e.Err.Error()
	}
	return json.Marshal(payload)
}

// SessionStatus is a point-in-time summary of a session.
type SessionStatus struct {
	SessionID string     `json:"sessionId"`
	SrcDir    string     `json:"srcDir"`
	DestDir   string     `json:"destDir"`
	Ready     bool       `json:"ready"`
	StartedAt time.Time  `json:"startedAt"`
	ReadyAt   *time.Time `json:"readyAt,omitempty"`
	Successes uint64     `json:"successes"`
	Failures  uint64     `json:"failures"`
	Deletes   uint64     `json:"deletes"`
	Errors    uint64     `json:"errors"`
}

// FileStatus is the last known outcome for one relative path.
type FileStatus struct {
	Path      string    `json:"path"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}
