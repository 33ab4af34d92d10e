package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ajkula/GoWatchMin/domain/model"
	"gopkg.in/yaml.v3"
)

// Config holds the watcher configuration
type Config struct {
	// General configuration
	General struct {
		// LogLevel is the logging level
		LogLevel string `yaml:"logLevel"`

		// Development enables development mode
		Development bool `yaml:"development"`
	} `yaml:"general"`

	// Watch configuration
	Watch struct {
		// Persistent keeps watching after the initial build
		Persistent bool `yaml:"persistent"`

		// Delete mirrors source removals to the destination
		Delete bool `yaml:"delete"`

		// Include lists the glob patterns of files to minify
		Include []string `yaml:"include"`

		// Ignore lists glob patterns excluded from the watch
		Ignore []string `yaml:"ignore"`

		// Debounce is the coalescing window for change notifications
		Debounce time.Duration `yaml:"debounce"`

		// EventBuffer is the capacity of the session event channel
		EventBuffer int `yaml:"eventBuffer"`
	} `yaml:"watch"`

	// Output naming
	Output struct {
		// Rename derives the minified filename; nil means ".min" before the extension
		Rename *model.RenameRule `yaml:"rename,omitempty"`

		// SourceMap enables source maps; an empty rule appends ".map"
		SourceMap *model.RenameRule `yaml:"sourceMap,omitempty"`
	} `yaml:"output"`

	// Minifier holds backend specific options, passed through verbatim
	Minifier map[string]any `yaml:"minifier,omitempty"`

	// HTTP status server configuration
	HTTP struct {
		// Enabled enables the HTTP server
		Enabled bool `yaml:"enabled"`

		// Address to bind the HTTP server
		Address string `yaml:"address"`

		// Port to bind the HTTP server
		Port int `yaml:"port"`

		// LiveReload enables the event websocket
		LiveReload bool `yaml:"liveReload"`
	} `yaml:"http"`

	Logging struct {
		ChannelSize int    `yaml:"channelSize"`
		Format      string `yaml:"format"` // "json", "text"
		Output      string `yaml:"output"` // "stdout", "stderr", "file"
		FilePath    string `yaml:"filePath"`
		MaxSizeMB   int    `yaml:"maxSizeMB"`
		MaxBackups  int    `yaml:"maxBackups"`
		MaxAgeDays  int    `yaml:"maxAgeDays"`
		Compress    bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	c := &Config{}

	// General configuration
	c.General.LogLevel = "info"
	c.General.Development = false

	// Watch configuration
	defaults := model.DefaultWatchOptions()
	c.Watch.Persistent = defaults.Persistent
	c.Watch.Delete = defaults.Delete
	c.Watch.Include = defaults.Include
	c.Watch.Ignore = []string{}
	c.Watch.Debounce = defaults.Debounce
	c.Watch.EventBuffer = defaults.EventBuffer

	// HTTP server configuration
	c.HTTP.Enabled = false
	c.HTTP.Address = "127.0.0.1"
	c.HTTP.Port = 35729
	c.HTTP.LiveReload = true

	// Logging configuration defaults
	c.Logging.ChannelSize = 1000
	c.Logging.Format = "text"
	c.Logging.Output = "stderr"
	c.Logging.FilePath = ""
	c.Logging.MaxSizeMB = 10
	c.Logging.MaxBackups = 3
	c.Logging.MaxAgeDays = 28
	c.Logging.Compress = false

	return c
}

// LoadConfig loads the configuration from a file
func LoadConfig(path string) (*Config, error) {
	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start from the defaults so omitted keys keep them
	config := DefaultConfig()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Log files are relative to the config file
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		dir, err := filepath.Abs(filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		config.Logging.FilePath = filepath.Join(dir, config.Logging.FilePath)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, path string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// Create parent directory if necessary
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// WatchOptions converts the watch and output sections into session options.
func (c *Config) WatchOptions() model.WatchOptions {
	opts := model.DefaultWatchOptions()
	opts.Persistent = c.Watch.Persistent
	opts.Delete = c.Watch.Delete
	if len(c.Watch.Include) > 0 {
		opts.Include = append([]string(nil), c.Watch.Include...)
	}
	opts.Ignore = append([]string(nil), c.Watch.Ignore...)
	opts.Debounce = c.Watch.Debounce
	opts.EventBuffer = c.Watch.EventBuffer

	if c.Output.Rename != nil {
		opts.Rename = *c.Output.Rename
	}
	if c.Output.SourceMap != nil {
		rule := *c.Output.SourceMap
		if rule.IsZero() {
			rule = model.DefaultSourceMapRule()
		}
		opts.SourceMap = &rule
	}

	if len(c.Minifier) > 0 {
		opts.Minifier = make(map[string]any, len(c.Minifier))
		for k, v := range c.Minifier {
			opts.Minifier[k] = v
		}
	}
	return opts
}

// Validate checks the configuration and the session options built from it
func Validate(config *Config) error {
	// Check the log level
	logLevel := strings.ToLower(config.General.LogLevel)
	if logLevel != "debug" && logLevel != "info" && logLevel != "warn" && logLevel != "error" {
		return fmt.Errorf("invalid log level: %s", config.General.LogLevel)
	}

	switch strings.ToLower(config.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	switch strings.ToLower(config.Logging.Output) {
	case "stdout", "stderr":
	case "file":
		if config.Logging.FilePath == "" {
			return fmt.Errorf("log output is file but no filePath is set")
		}
	default:
		return fmt.Errorf("invalid log output: %s", config.Logging.Output)
	}

	if config.Logging.ChannelSize < 1 {
		return fmt.Errorf("invalid logging channel size: %d", config.Logging.ChannelSize)
	}

	// check ports
	if config.HTTP.Enabled && (config.HTTP.Port < 1 || config.HTTP.Port > 65535) {
		return fmt.Errorf("invalid HTTP port: %d", config.HTTP.Port)
	}

	// Check the session options built from this config
	opts := config.WatchOptions()
	if err := opts.Validate(); err != nil {
		return err
	}

	return nil
}
