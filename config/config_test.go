package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoWatchMin/domain/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.General.LogLevel)
	assert.True(t, cfg.Watch.Persistent)
	assert.True(t, cfg.Watch.Delete)
	assert.Equal(t, []string{"*.js", "**/*.js"}, cfg.Watch.Include)
	assert.Equal(t, model.DefaultDebounce, cfg.Watch.Debounce)
	assert.False(t, cfg.HTTP.Enabled)
	assert.Equal(t, 35729, cfg.HTTP.Port)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.NoError(t, Validate(cfg))
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gowatchmin.yaml")

	cfg := DefaultConfig()
	cfg.Watch.Delete = false
	cfg.Watch.Ignore = []string{"vendor/**"}
	cfg.Watch.Debounce = 200 * time.Millisecond
	cfg.Output.Rename = &model.RenameRule{Prefix: "min-"}
	cfg.Output.SourceMap = &model.RenameRule{Extname: ".js.map"}
	cfg.Minifier = map[string]any{"target": "es2019"}

	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, loaded.Watch.Delete)
	assert.Equal(t, []string{"vendor/**"}, loaded.Watch.Ignore)
	assert.Equal(t, 200*time.Millisecond, loaded.Watch.Debounce)
	assert.Equal(t, &model.RenameRule{Prefix: "min-"}, loaded.Output.Rename)
	assert.Equal(t, &model.RenameRule{Extname: ".js.map"}, loaded.Output.SourceMap)
	assert.Equal(t, "es2019", loaded.Minifier["target"])
}

func TestSaveConfig_SingleLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gowatchmin.yaml")
	cfg := DefaultConfig()
	cfg.General.LogLevel = "debug"
	require.NoError(t, SaveConfig(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "logLevel: debug")
	assert.NotContains(t, string(data), " level:", "the log level lives in general.logLevel only")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", loaded.General.LogLevel)
}

func TestLoadConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gowatchmin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("watch:\n  persistent: false\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.False(t, cfg.Watch.Persistent)
	assert.True(t, cfg.Watch.Delete)
	assert.Equal(t, model.DefaultEventBuffer, cfg.Watch.EventBuffer)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadConfig_RelativeLogFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gowatchmin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  output: file\n  filePath: logs/watch.log\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(abs, "logs", "watch.log"), cfg.Logging.FilePath)
}

func TestLoadConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("watch: [not, a, map"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("output:\n  rename:\n    prefix: a/b\n"), 0o644))
	_, err = LoadConfig(invalid)
	assert.ErrorIs(t, err, model.ErrInvalidOptions)
}

func TestWatchOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts := cfg.WatchOptions()
	assert.Equal(t, model.DefaultWatchOptions().Rename, opts.Rename)
	assert.Nil(t, opts.SourceMap)
	assert.Nil(t, opts.Minifier)

	cfg.Output.SourceMap = &model.RenameRule{}
	cfg.Minifier = map[string]any{"keepNames": true}
	opts = cfg.WatchOptions()
	require.NotNil(t, opts.SourceMap)
	assert.Equal(t, model.DefaultSourceMapRule(), *opts.SourceMap)

	// the options own their copies
	opts.Minifier["keepNames"] = false
	opts.Include[0] = "*.ts"
	assert.Equal(t, true, cfg.Minifier["keepNames"])
	assert.Equal(t, "*.js", cfg.Watch.Include[0])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.General.LogLevel = "verbose" }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"log output", func(c *Config) { c.Logging.Output = "syslog" }},
		{"file output without path", func(c *Config) { c.Logging.Output = "file" }},
		{"channel size", func(c *Config) { c.Logging.ChannelSize = 0 }},
		{"http port", func(c *Config) { c.HTTP.Enabled = true; c.HTTP.Port = 70000 }},
		{"rename separator", func(c *Config) { c.Output.Rename = &model.RenameRule{Suffix: "a/b"} }},
		{"negative debounce", func(c *Config) { c.Watch.Debounce = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	cfg := DefaultConfig()
	cfg.HTTP.Port = 0
	assert.NoError(t, Validate(cfg), "port is only checked when HTTP is enabled")
}
