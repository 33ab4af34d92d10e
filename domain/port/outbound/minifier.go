package outbound

import "context"

// MinifyRequest is one source text to minify.
type MinifyRequest struct {
	Source []byte
	// SourceName is the slash-separated relative source path, listed in the
	// map's sources.
	SourceName string
	// OutputName is the minified file's base name, recorded as the map's file.
	OutputName string
	// SourceMap requests a source map.
	SourceMap bool
	// SourceMapURL, when set with SourceMap, is referenced from the code.
	SourceMapURL string
	// Options are backend specific.
	Options map[string]any
}

type MinifyResult struct {
	Code []byte
	Map  []byte
}

// Minifier turns source text into smaller, equivalent text.
type Minifier interface {
	Minify(ctx context.Context, req MinifyRequest) (*MinifyResult, error)
}
