package model

import (
	"path/filepath"
	"time"
)

// FileTask is one build attempt for one source file.
type FileTask struct {
	RelPath       string
	SourcePath    string
	DestPath      string
	SourceMapPath string
}

// NewFileTask derives every path of a task from the relative source path.
func NewFileTask(srcDir, destDir, relPath string, opts WatchOptions) FileTask {
	relPath = filepath.Clean(filepath.FromSlash(relPath))
	destRel := opts.Rename.Apply(relPath)

	task := FileTask{
		RelPath:    relPath,
		SourcePath: filepath.Join(srcDir, relPath),
		DestPath:   filepath.Join(destDir, destRel),
	}
	if opts.SourceMap != nil {
		task.SourceMapPath = filepath.Join(destDir, opts.SourceMap.Apply(destRel))
	}
	return task
}

func (t FileTask) HasSourceMap() bool {
	return t.SourceMapPath != ""
}

// SourceMapURL is the map location relative to the minified file.
func (t FileTask) SourceMapURL() string {
	if !t.HasSourceMap() {
		return ""
	}
	rel, err := filepath.Rel(filepath.Dir(t.DestPath), t.SourceMapPath)
	if err != nil {
		return filepath.Base(t.SourceMapPath)
	}
	return filepath.ToSlash(rel)
}

// BuildOutcome is the result of running one FileTask through the pipeline.
type BuildOutcome struct {
	Task     FileTask
	Err      error
	Bytes    int
	Duration time.Duration
}

func (o BuildOutcome) Succeeded() bool {
	return o.Err == nil
}
