package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/GoWatchMin/config"
	"github.com/ajkula/GoWatchMin/domain/model"
)

func parseFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "gowatchmin"}
	registerFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestApplyFlags_Defaults(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, applyFlags(parseFlags(t), cfg))

	opts := cfg.WatchOptions()
	assert.True(t, opts.Persistent)
	assert.True(t, opts.Delete)
	assert.Nil(t, opts.SourceMap)
	assert.Equal(t, model.DefaultRenameRule(), opts.Rename)
	assert.False(t, cfg.HTTP.Enabled)
}

func TestApplyFlags_Overrides(t *testing.T) {
	cfg := config.DefaultConfig()
	cmd := parseFlags(t,
		"--once", "--no-delete", "--source-map",
		"--prefix", "min-", "--suffix", "", "--extname", ".mjs",
		"--log-level", "debug", "--http",
	)
	require.NoError(t, applyFlags(cmd, cfg))

	opts := cfg.WatchOptions()
	assert.False(t, opts.Persistent)
	assert.False(t, opts.Delete)
	require.NotNil(t, opts.SourceMap)
	assert.Equal(t, model.DefaultSourceMapRule(), *opts.SourceMap)
	assert.Equal(t, model.RenameRule{Prefix: "min-", Extname: ".mjs"}, opts.Rename)
	assert.Equal(t, "debug", cfg.General.LogLevel)
	assert.True(t, cfg.HTTP.Enabled)
}

func TestApplyFlags_KeepsConfiguredRules(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Output.Rename = &model.RenameRule{Dirname: "min", Suffix: ".min"}
	cfg.Output.SourceMap = &model.RenameRule{Extname: ".js.map"}

	require.NoError(t, applyFlags(parseFlags(t, "--source-map", "--prefix", "x-"), cfg))

	assert.Equal(t, model.RenameRule{Dirname: "min", Prefix: "x-", Suffix: ".min"}, *cfg.Output.Rename)
	assert.Equal(t, model.RenameRule{Extname: ".js.map"}, *cfg.Output.SourceMap)
}

func TestApplyFlags_Invalid(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Error(t, applyFlags(parseFlags(t, "--log-level", "verbose"), cfg))

	cfg = config.DefaultConfig()
	assert.ErrorIs(t, applyFlags(parseFlags(t, "--prefix", "a/b"), cfg), model.ErrInvalidOptions)
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing default file falls back to defaults", func(t *testing.T) {
		cfg, err := loadConfig(filepath.Join(dir, defaultConfigPath), false)
		require.NoError(t, err)
		assert.Equal(t, config.DefaultConfig(), cfg)
	})

	t.Run("missing explicit file is an error", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(dir, "other.yaml"), true)
		assert.Error(t, err)
	})

	t.Run("existing file is loaded", func(t *testing.T) {
		path := filepath.Join(dir, "watch.yaml")
		require.NoError(t, os.WriteFile(path, []byte("watch:\n  delete: false\n"), 0o644))

		cfg, err := loadConfig(path, false)
		require.NoError(t, err)
		assert.False(t, cfg.Watch.Delete)
		assert.True(t, cfg.Watch.Persistent)
	})
}

func TestRun_RequiresTwoArgs(t *testing.T) {
	cmd := parseFlags(t)
	assert.Error(t, run(cmd, []string{"src"}))
}

func TestRun_GenerateConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gen", "gowatchmin.yaml")
	cmd := parseFlags(t, "--generate-config", "--config", path)

	require.NoError(t, run(cmd, nil))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Watch, cfg.Watch)
}

func TestRun_Once(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.js"), []byte("var x = 10"), 0o644))

	cmd := parseFlags(t, "--once", "--config", filepath.Join(src, "absent.yaml"))
	// the explicit config path must exist
	assert.Error(t, run(cmd, []string{src, dest}))

	cmd = parseFlags(t, "--once", "--log-level", "error")
	require.NoError(t, run(cmd, []string{src, dest}))

	data, err := os.ReadFile(filepath.Join(dest, "app.min.js"))
	require.NoError(t, err)
	assert.Equal(t, "var x=10;\n", string(data))
}
