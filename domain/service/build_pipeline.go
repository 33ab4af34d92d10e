package service

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

// BuildPipeline minifies one source file into its destination artifacts.
type BuildPipeline struct {
	srcDir   string
	destDir  string
	opts     model.WatchOptions
	minifier outbound.Minifier
	store    outbound.ArtifactStore
	logger   outbound.Logger
}

func NewBuildPipeline(
	srcDir, destDir string,
	opts model.WatchOptions,
	minifier outbound.Minifier,
	store outbound.ArtifactStore,
	logger outbound.Logger,
) *BuildPipeline {
	if logger == nil {
		logger = outbound.NopLogger()
	}
	return &BuildPipeline{
		srcDir:   srcDir,
		destDir:  destDir,
		opts:     opts,
		minifier: minifier,
		store:    store,
		logger:   logger,
	}
}

// Task derives the paths for relPath.
func (p *BuildPipeline) Task(relPath string) model.FileTask {
	return model.NewFileTask(p.srcDir, p.destDir, relPath, p.opts)
}

// Build reads, minifies and writes one file. Read and minify failures leave
// the destination untouched; a write failure is reported with model.ErrWrite.
func (p *BuildPipeline) Build(ctx context.Context, relPath string) (outcome model.BuildOutcome) {
	start := time.Now()
	task := p.Task(relPath)
	outcome.Task = task
	defer func() {
		outcome.Duration = time.Since(start)
	}()

	source, err := p.store.ReadFile(ctx, task.SourcePath)
	if err != nil {
		outcome.Err = &model.BuildError{Kind: model.ErrRead, Path: task.RelPath, Err: err}
		return outcome
	}

	result, err := p.minifier.Minify(ctx, outbound.MinifyRequest{
		Source:       source,
		SourceName:   filepath.ToSlash(task.RelPath),
		OutputName:   filepath.Base(task.DestPath),
		SourceMap:    task.HasSourceMap(),
		SourceMapURL: task.SourceMapURL(),
		Options:      p.opts.Minifier,
	})
	if err != nil {
		outcome.Err = &model.BuildError{Kind: model.ErrMinify, Path: task.RelPath, Err: err}
		return outcome
	}

	if err := p.write(ctx, task, result); err != nil {
		outcome.Err = &model.BuildError{Kind: model.ErrWrite, Path: task.RelPath, Err: err}
		return outcome
	}

	outcome.Bytes = len(result.Code)
	p.logger.Debug("Built file",
		"path", task.RelPath,
		"dest", task.DestPath,
		"sourceBytes", len(source),
		"minifiedBytes", len(result.Code))
	return outcome
}

// write stores the map before the code so a reader following the code's
// sourceMappingURL finds a map at least as new.
func (p *BuildPipeline) write(ctx context.Context, task model.FileTask, result *outbound.MinifyResult) error {
	if task.HasSourceMap() && len(result.Map) > 0 {
		if err := p.store.EnsureDir(ctx, filepath.Dir(task.SourceMapPath)); err != nil {
			return err
		}
		if err := p.store.WriteFile(ctx, task.SourceMapPath, result.Map); err != nil {
			return err
		}
	}

	if err := p.store.EnsureDir(ctx, filepath.Dir(task.DestPath)); err != nil {
		return err
	}
	return p.store.WriteFile(ctx, task.DestPath, result.Code)
}

// Remove deletes the destination artifacts derived from relPath.
func (p *BuildPipeline) Remove(ctx context.Context, relPath string) error {
	task := p.Task(relPath)

	var errs []error
	if err := p.store.Remove(ctx, task.DestPath); err != nil {
		errs = append(errs, err)
	}
	if task.HasSourceMap() {
		if err := p.store.Remove(ctx, task.SourceMapPath); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return &model.BuildError{Kind: model.ErrRemove, Path: task.RelPath, Err: errors.Join(errs...)}
	}

	p.logger.Debug("Removed file", "path", task.RelPath, "dest", task.DestPath)
	return nil
}
