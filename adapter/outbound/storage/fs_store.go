package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FSStore writes artifacts to the local filesystem. Writes go through a
// temporary file in the target directory and a rename, so readers never
// observe a partially written artifact.
type FSStore struct {
	logger outbound.Logger
	mkdirs singleflight.Group
}

func NewFSStore(logger outbound.Logger) *FSStore {
	if logger == nil {
		logger = outbound.NopLogger()
	}
	return &FSStore{logger: logger}
}

var _ outbound.ArtifactStore = (*FSStore)(nil)

func (s *FSStore) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

// EnsureDir creates dir and its parents. Concurrent calls for one directory
// share a single MkdirAll.
func (s *FSStore) EnsureDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err, _ := s.mkdirs.Do(dir, func() (any, error) {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				return nil, fmt.Errorf("%s exists and is not a directory", dir)
			}
			return nil, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return nil, err
		}
		s.logger.Debug("Created directory", "path", dir)
		return nil, nil
	})
	return err
}

func (s *FSStore) WriteFile(ctx context.Context, path string, data []byte) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			if rmErr := os.Remove(tmpPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.logger.Warn("Failed to remove temporary file", "path", tmpPath, "error", rmErr)
			}
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpPath, filePerm); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return err
	}
	return nil
}

// Remove deletes path. A missing file is not an error.
func (s *FSStore) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
