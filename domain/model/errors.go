package model

import (
	"errors"
	"fmt"
)

var (
	ErrRead           = errors.New("source read failed")
	ErrMinify         = errors.New("minification failed")
	ErrWrite          = errors.New("destination write failed")
	ErrRemove         = errors.New("destination removal failed")
	ErrWatch          = errors.New("watch failed")
	ErrSessionClosed  = errors.New("session closed")
	ErrInvalidOptions = errors.New("invalid watch options")
)

// BuildError ties a per-file failure to its relative path. Kind is one of the
// sentinels above so callers can branch with errors.Is.
type BuildError struct {
	Kind error
	Path string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v: %s", e.Kind, e.Path)
	}
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *BuildError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}
