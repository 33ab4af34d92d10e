// Package gowatchmin keeps a directory of minified scripts in sync with a
// source directory.
//
//	session, err := gowatchmin.CreateWatcher(ctx, "src", "dist", gowatchmin.DefaultOptions(), nil)
//	if err != nil {
//		return err
//	}
//	defer session.Close()
//	<-session.Ready()
package gowatchmin

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/ajkula/GoWatchMin/adapter/outbound/filewatcher"
	"github.com/ajkula/GoWatchMin/adapter/outbound/minifier"
	"github.com/ajkula/GoWatchMin/adapter/outbound/storage"
	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
	"github.com/ajkula/GoWatchMin/domain/service"
)

type (
	Options       = model.WatchOptions
	RenameRule    = model.RenameRule
	Event         = model.WatchEvent
	EventHandlers = service.EventHandlers
	Session       = service.Session
)

func DefaultOptions() Options {
	return model.DefaultWatchOptions()
}

// CreateWatcher starts a session minifying srcDir into destDir with the
// fsnotify watcher, the esbuild minifier and the local filesystem. A nil
// logger discards logs. Cancelling ctx closes the session.
func CreateWatcher(ctx context.Context, srcDir, destDir string, opts Options, logger outbound.Logger) (*Session, error) {
	if logger == nil {
		logger = outbound.NopLogger()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	opts = opts.Clone()
	if patterns := overlapIgnores(srcDir, destDir, opts); len(patterns) > 0 {
		logger.Debug("Destination overlaps the source, ignoring outputs", "patterns", patterns)
		opts.Ignore = append(opts.Ignore, patterns...)
	}

	watcher, err := filewatcher.NewFSWatcher(filewatcher.Options{
		Include:  opts.Include,
		Ignore:   opts.Ignore,
		Debounce: opts.Debounce,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidOptions, err)
	}

	store := storage.NewFSStore(logger)
	session, err := service.NewSession(srcDir, destDir, opts, service.SessionDeps{
		Watcher:  watcher,
		Minifier: minifier.NewEsbuildMinifier(),
		Store:    store,
		Logger:   logger,
	})
	if err != nil {
		watcher.Stop()
		return nil, err
	}

	if err := store.EnsureDir(ctx, destDir); err != nil {
		watcher.Stop()
		return nil, fmt.Errorf("%w: %s: %w", model.ErrWrite, destDir, err)
	}

	if err := session.Start(ctx); err != nil {
		watcher.Stop()
		return nil, err
	}
	return session, nil
}

// overlapIgnores returns the ignore patterns that keep written artifacts from
// being picked up as sources. A destination below srcDir is ignored whole; a
// destination equal to srcDir ignores every name the rename rules produce.
func overlapIgnores(srcDir, destDir string, opts Options) []string {
	src, err := filepath.Abs(srcDir)
	if err != nil {
		return nil
	}
	dest, err := filepath.Abs(destDir)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(src, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}
	if rel != "." {
		return []string{glob.QuoteMeta(filepath.ToSlash(rel)) + "/**"}
	}
	return outputPatterns(opts)
}

// outputPatterns matches the minified files and source maps the rules can
// write, relative to the destination root.
func outputPatterns(opts Options) []string {
	base, ext := namePattern(opts.Rename, "*", ".*")
	patterns := dirPatterns(opts.Rename.Dirname, base+ext)

	if opts.SourceMap != nil {
		mapBase, mapExt := namePattern(*opts.SourceMap, base, ext)
		dir := opts.SourceMap.Dirname
		if dir == "" {
			dir = opts.Rename.Dirname
		}
		patterns = append(patterns, dirPatterns(dir, mapBase+mapExt)...)
	}
	return patterns
}

// namePattern applies rule to a filename given as base and extension globs.
func namePattern(rule RenameRule, base, ext string) (string, string) {
	if rule.Basename != "" {
		base = glob.QuoteMeta(rule.Basename)
	}
	if rule.Extname != "" {
		ext = glob.QuoteMeta(rule.Extname)
	}
	base = glob.QuoteMeta(rule.Prefix) + base + glob.QuoteMeta(rule.Suffix)
	if rule.Append != "" {
		return base + ext, glob.QuoteMeta(rule.Append)
	}
	return base, ext
}

func dirPatterns(dirname, name string) []string {
	if dirname == "" {
		return []string{name, "**/" + name}
	}
	dir := filepath.ToSlash(filepath.Clean(filepath.FromSlash(dirname)))
	return []string{glob.QuoteMeta(dir) + "/" + name}
}
