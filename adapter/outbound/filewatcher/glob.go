package filewatcher

import (
	"fmt"
	"path"

	"github.com/gobwas/glob"
)

// pathMatcher filters slash-separated relative paths.
type pathMatcher struct {
	include []glob.Glob
	ignore  []glob.Glob
}

func newPathMatcher(include, ignore []string) (*pathMatcher, error) {
	m := &pathMatcher{}
	for _, pattern := range include {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
		m.include = append(m.include, g)
	}
	for _, pattern := range ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		m.ignore = append(m.ignore, g)
	}
	return m, nil
}

// Match reports whether a file should be reported.
func (m *pathMatcher) Match(rel string) bool {
	if m.ignored(rel) {
		return false
	}
	for _, g := range m.include {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// SkipDir reports whether a directory is excluded as a whole, either by a
// pattern naming it or one covering everything below it ("vendor/**").
func (m *pathMatcher) SkipDir(rel string) bool {
	if rel == "." || rel == "" {
		return false
	}
	return m.ignored(rel) || m.ignored(path.Clean(rel)+"/")
}

func (m *pathMatcher) ignored(rel string) bool {
	for _, g := range m.ignore {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
