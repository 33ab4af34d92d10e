package minifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"gopkg.in/yaml.v3"

	"github.com/ajkula/GoWatchMin/domain/port/outbound"
)

// Options understood by the esbuild backend. Unset booleans default to true
// for the three minification passes.
type Options struct {
	Whitespace     *bool    `yaml:"whitespace"`
	Identifiers    *bool    `yaml:"identifiers"`
	Syntax         *bool    `yaml:"syntax"`
	Target         string   `yaml:"target"`
	Format         string   `yaml:"format"`
	KeepNames      bool     `yaml:"keepNames"`
	LegalComments  string   `yaml:"legalComments"`
	Charset        string   `yaml:"charset"`
	Drop           []string `yaml:"drop"`
	SourcesContent *bool    `yaml:"sourcesContent"`
}

// SyntaxError carries esbuild's diagnostics for a rejected input.
type SyntaxError struct {
	Messages []api.Message
}

func (e *SyntaxError) Error() string {
	if len(e.Messages) == 0 {
		return "esbuild rejected the input"
	}
	msg := e.Messages[0]
	text := msg.Text
	if loc := msg.Location; loc != nil {
		text = fmt.Sprintf("%s:%d:%d: %s", loc.File, loc.Line, loc.Column, msg.Text)
	}
	if extra := len(e.Messages) - 1; extra > 0 {
		text = fmt.Sprintf("%s (and %d more)", text, extra)
	}
	return text
}

type EsbuildMinifier struct{}

func NewEsbuildMinifier() outbound.Minifier {
	return &EsbuildMinifier{}
}

func (m *EsbuildMinifier) Minify(ctx context.Context, req outbound.MinifyRequest) (*outbound.MinifyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := DecodeOptions(req.Options)
	if err != nil {
		return nil, err
	}
	transform, err := opts.transformOptions(req)
	if err != nil {
		return nil, err
	}

	result := api.Transform(string(req.Source), transform)
	if len(result.Errors) > 0 {
		return nil, &SyntaxError{Messages: result.Errors}
	}

	out := &outbound.MinifyResult{Code: result.Code}
	if req.SourceMap {
		out.Map, err = rewriteSourceMap(result.Map, req.OutputName)
		if err != nil {
			return nil, err
		}
		if req.SourceMapURL != "" {
			out.Code = appendSourceMappingURL(out.Code, req.SourceMapURL)
		}
	}
	return out, nil
}

// DecodeOptions converts the opaque passthrough map into Options.
func DecodeOptions(raw map[string]any) (Options, error) {
	var opts Options
	if len(raw) == 0 {
		return opts, nil
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return opts, fmt.Errorf("failed to encode minifier options: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return opts, fmt.Errorf("invalid minifier options: %w", err)
	}
	return opts, nil
}

func (o Options) transformOptions(req outbound.MinifyRequest) (api.TransformOptions, error) {
	target, err := parseTarget(o.Target)
	if err != nil {
		return api.TransformOptions{}, err
	}
	format, err := parseFormat(o.Format)
	if err != nil {
		return api.TransformOptions{}, err
	}
	legal, err := parseLegalComments(o.LegalComments)
	if err != nil {
		return api.TransformOptions{}, err
	}

	var drop api.Drop
	for _, d := range o.Drop {
		switch strings.ToLower(d) {
		case "console":
			drop |= api.DropConsole
		case "debugger":
			drop |= api.DropDebugger
		default:
			return api.TransformOptions{}, fmt.Errorf("invalid drop value: %s", d)
		}
	}

	transform := api.TransformOptions{
		Loader:            loaderFor(req.SourceName),
		Sourcefile:        req.SourceName,
		Target:            target,
		Format:            format,
		MinifyWhitespace:  enabled(o.Whitespace),
		MinifyIdentifiers: enabled(o.Identifiers),
		MinifySyntax:      enabled(o.Syntax),
		KeepNames:         o.KeepNames,
		LegalComments:     legal,
		Drop:              drop,
		Sourcemap:         api.SourceMapNone,
	}
	if strings.EqualFold(o.Charset, "utf8") {
		transform.Charset = api.CharsetUTF8
	}
	if req.SourceMap {
		transform.Sourcemap = api.SourceMapExternal
		if enabled(o.SourcesContent) {
			transform.SourcesContent = api.SourcesContentInclude
		} else {
			transform.SourcesContent = api.SourcesContentExclude
		}
	}
	return transform, nil
}

func enabled(flag *bool) bool {
	return flag == nil || *flag
}

func loaderFor(name string) api.Loader {
	switch strings.ToLower(path.Ext(name)) {
	case ".jsx":
		return api.LoaderJSX
	case ".ts", ".mts", ".cts":
		return api.LoaderTS
	case ".tsx":
		return api.LoaderTSX
	default:
		return api.LoaderJS
	}
}

func parseTarget(target string) (api.Target, error) {
	switch strings.ToLower(target) {
	case "":
		return api.DefaultTarget, nil
	case "esnext":
		return api.ESNext, nil
	case "es5":
		return api.ES5, nil
	case "es2015", "es6":
		return api.ES2015, nil
	case "es2016":
		return api.ES2016, nil
	case "es2017":
		return api.ES2017, nil
	case "es2018":
		return api.ES2018, nil
	case "es2019":
		return api.ES2019, nil
	case "es2020":
		return api.ES2020, nil
	case "es2021":
		return api.ES2021, nil
	case "es2022":
		return api.ES2022, nil
	default:
		return api.DefaultTarget, fmt.Errorf("invalid target: %s", target)
	}
}

func parseFormat(format string) (api.Format, error) {
	switch strings.ToLower(format) {
	case "":
		return api.FormatDefault, nil
	case "iife":
		return api.FormatIIFE, nil
	case "cjs", "commonjs":
		return api.FormatCommonJS, nil
	case "esm":
		return api.FormatESModule, nil
	default:
		return api.FormatDefault, fmt.Errorf("invalid format: %s", format)
	}
}

func parseLegalComments(mode string) (api.LegalComments, error) {
	switch strings.ToLower(mode) {
	case "":
		return api.LegalCommentsDefault, nil
	case "none":
		return api.LegalCommentsNone, nil
	case "inline":
		return api.LegalCommentsInline, nil
	case "eof":
		return api.LegalCommentsEndOfFile, nil
	default:
		return api.LegalCommentsDefault, fmt.Errorf("invalid legalComments: %s", mode)
	}
}

type sourceMap struct {
	Version        int       `json:"version"`
	File           string    `json:"file"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Mappings       string    `json:"mappings"`
	Names          []string  `json:"names"`
}

// rewriteSourceMap records the minified file's base name as the map's file.
func rewriteSourceMap(raw []byte, file string) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("esbuild returned no source map")
	}

	var sm sourceMap
	if err := json.Unmarshal(raw, &sm); err != nil {
		return nil, fmt.Errorf("failed to parse source map: %w", err)
	}
	sm.File = file
	if sm.Sources == nil {
		sm.Sources = []string{}
	}
	if sm.Names == nil {
		sm.Names = []string{}
	}

	data, err := json.Marshal(sm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode source map: %w", err)
	}
	return append(data, '\n'), nil
}

func appendSourceMappingURL(code []byte, url string) []byte {
	out := make([]byte, 0, len(code)+len(url)+24)
	out = append(out, code...)
	if len(out) > 0 && out[len(out)-1] != '\n' {
		out = append(out, '\n')
	}
	out = append(out, "//# sourceMappingURL="...)
	out = append(out, url...)
	return append(out, '\n')
}
