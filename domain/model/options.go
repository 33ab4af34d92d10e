package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultDebounce    = 50 * time.Millisecond
	DefaultEventBuffer = 64
)

// RenameRule derives an output filename from an input filename.
//
// The name is split into directory, base and extension; Basename and Extname
// replace their part when set, Prefix and Suffix wrap the base, and Append is
// added after the extension. Dirname, when set, replaces the directory.
//
// Rules that map two different inputs to the same output (a fixed Basename, for
// instance) are the caller's responsibility: the last build wins.
type RenameRule struct {
	Dirname  string `yaml:"dirname,omitempty" json:"dirname,omitempty"`
	Prefix   string `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Basename string `yaml:"basename,omitempty" json:"basename,omitempty"`
	Suffix   string `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	Extname  string `yaml:"extname,omitempty" json:"extname,omitempty"`
	Append   string `yaml:"append,omitempty" json:"append,omitempty"`
}

// DefaultRenameRule inserts ".min" before the extension.
func DefaultRenameRule() RenameRule {
	return RenameRule{Suffix: ".min"}
}

// DefaultSourceMapRule appends ".map" to the minified filename.
func DefaultSourceMapRule() RenameRule {
	return RenameRule{Append: ".map"}
}

func (r RenameRule) IsZero() bool {
	return r == RenameRule{}
}

// Apply renames relPath. The result keeps the OS separator of the input.
func (r RenameRule) Apply(relPath string) string {
	dir, file := filepath.Split(relPath)
	ext := filepath.Ext(file)
	base := strings.TrimSuffix(file, ext)

	if r.Basename != "" {
		base = r.Basename
	}
	if r.Extname != "" {
		ext = r.Extname
	}
	name := r.Prefix + base + r.Suffix + ext + r.Append

	if r.Dirname != "" {
		return filepath.Join(filepath.FromSlash(r.Dirname), name)
	}
	return filepath.Join(dir, name)
}

func (r RenameRule) validate(field string) error {
	for name, part := range map[string]string{
		"prefix":   r.Prefix,
		"basename": r.Basename,
		"suffix":   r.Suffix,
		"extname":  r.Extname,
		"append":   r.Append,
	} {
		if strings.ContainsAny(part, `/\`) {
			return fmt.Errorf("%w: %s.%s must not contain a path separator", ErrInvalidOptions, field, name)
		}
	}
	if r.Dirname != "" {
		clean := filepath.Clean(filepath.FromSlash(r.Dirname))
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			return fmt.Errorf("%w: %s.dirname must stay inside the destination", ErrInvalidOptions, field)
		}
	}
	return nil
}

// WatchOptions is the validated configuration of a watch session.
type WatchOptions struct {
	// Persistent keeps the watch running after the initial build.
	Persistent bool
	// Delete mirrors source removals to the destination.
	Delete bool
	// Rename derives the minified filename.
	Rename RenameRule
	// SourceMap enables source maps when non-nil; the rule is applied to the
	// minified filename.
	SourceMap *RenameRule
	// Include and Ignore are glob patterns over slash-separated relative paths.
	Include []string
	Ignore  []string
	// Debounce coalesces bursts of notifications for one path.
	Debounce time.Duration
	// EventBuffer is the capacity of the session event channel.
	EventBuffer int
	// Minifier is forwarded verbatim to the minifier backend.
	Minifier map[string]any
}

func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		Persistent:  true,
		Delete:      true,
		Rename:      DefaultRenameRule(),
		Include:     []string{"*.js", "**/*.js"},
		Debounce:    DefaultDebounce,
		EventBuffer: DefaultEventBuffer,
	}
}

func (o WatchOptions) Validate() error {
	if err := o.Rename.validate("rename"); err != nil {
		return err
	}
	if len(o.Include) == 0 {
		return fmt.Errorf("%w: at least one include pattern is required", ErrInvalidOptions)
	}
	if o.Debounce < 0 {
		return fmt.Errorf("%w: negative debounce %s", ErrInvalidOptions, o.Debounce)
	}
	if o.EventBuffer < 0 {
		return fmt.Errorf("%w: negative event buffer %d", ErrInvalidOptions, o.EventBuffer)
	}
	if o.SourceMap != nil {
		if err := o.SourceMap.validate("sourceMap"); err != nil {
			return err
		}
		minified := o.Rename.Apply("script.js")
		if o.SourceMap.Apply(minified) == minified {
			return fmt.Errorf("%w: source map rule would overwrite the minified file", ErrInvalidOptions)
		}
	}
	return nil
}

// Clone returns a deep copy so a session can hold options nobody else mutates.
func (o WatchOptions) Clone() WatchOptions {
	c := o
	c.Include = append([]string(nil), o.Include...)
	c.Ignore = append([]string(nil), o.Ignore...)
	if o.SourceMap != nil {
		rule := *o.SourceMap
		c.SourceMap = &rule
	}
	if o.Minifier != nil {
		c.Minifier = make(map[string]any, len(o.Minifier))
		for k, v := range o.Minifier {
			c.Minifier[k] = v
		}
	}
	return c
}
