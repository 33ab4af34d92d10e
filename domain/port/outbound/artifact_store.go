package outbound

import "context"

// ArtifactStore is the file I/O used by the build pipeline.
type ArtifactStore interface {
	// reads a whole source file
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// replaces path with data so readers never observe a partial file
	WriteFile(ctx context.Context, path string, data []byte) error

	// creates dir and its parents if absent
	EnsureDir(ctx context.Context, dir string) error

	// removes path; a missing file is not an error
	Remove(ctx context.Context, path string) error
}
