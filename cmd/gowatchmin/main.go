package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"

	gowatchmin "github.com/ajkula/GoWatchMin"
	"github.com/ajkula/GoWatchMin/adapter/inbound/rest"
	"github.com/ajkula/GoWatchMin/adapter/inbound/websocket"
	"github.com/ajkula/GoWatchMin/adapter/outbound/logging"
	"github.com/ajkula/GoWatchMin/config"
	"github.com/ajkula/GoWatchMin/domain/model"
	"github.com/ajkula/GoWatchMin/domain/port/outbound"
	"github.com/ajkula/GoWatchMin/domain/service"
)

const defaultConfigPath = "gowatchmin.yaml"

var rootCmd = &cobra.Command{
	Use:   "gowatchmin [src] [dest]",
	Short: "Keep a directory of minified scripts in sync with its sources",
	Long: `Minify every script below src into dest, then keep dest up to date
while files under src are added, changed or removed.

Example usage:
  gowatchmin src dist                        # watch src, write src/app.js to dist/app.min.js
  gowatchmin src dist --once                 # build once and exit
  gowatchmin src dist --source-map           # also write dist/app.min.js.map
  gowatchmin src dist --http                 # serve status and live events on :35729
  gowatchmin --generate-config --config gowatchmin.yaml`,
	Args:          cobra.MaximumNArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	registerFlags(rootCmd)
}

func registerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("config", "c", defaultConfigPath, "Path to configuration file")
	flags.Bool("generate-config", false, "Generate default configuration file")
	flags.BoolP("version", "v", false, "Show version information")
	flags.Bool("once", false, "Build once and exit instead of watching")
	flags.Bool("no-delete", false, "Keep minified files when their source is removed")
	flags.Bool("source-map", false, "Write a source map next to each minified file")
	flags.String("prefix", "", "Prefix added to minified filenames")
	flags.String("suffix", "", "Suffix inserted before the extension (default \".min\")")
	flags.String("extname", "", "Replace the extension of minified filenames")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Bool("http", false, "Serve session status and live events over HTTP")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
		fmt.Printf("gowatchmin %s\n", gowatchmin.GetVersion())
		return nil
	}

	configPath, _ := cmd.Flags().GetString("config")
	if generate, _ := cmd.Flags().GetBool("generate-config"); generate {
		if err := config.SaveConfig(config.DefaultConfig(), configPath); err != nil {
			return fmt.Errorf("generating config file: %w", err)
		}
		fmt.Printf("Default configuration file generated at: %s\n", configPath)
		return nil
	}

	if len(args) != 2 {
		return fmt.Errorf("expected a source and a destination directory, got %d argument(s)", len(args))
	}

	cfg, err := loadConfig(configPath, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	logger := logging.NewSlogAdapter(cfg)
	defer logger.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return watch(ctx, cfg, args[0], args[1], logger)
}

// loadConfig reads path, falling back to the defaults when the default file
// is absent.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return config.DefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if once, _ := flags.GetBool("once"); once {
		cfg.Watch.Persistent = false
	}
	if noDelete, _ := flags.GetBool("no-delete"); noDelete {
		cfg.Watch.Delete = false
	}
	if sourceMap, _ := flags.GetBool("source-map"); sourceMap && cfg.Output.SourceMap == nil {
		rule := model.DefaultSourceMapRule()
		cfg.Output.SourceMap = &rule
	}

	if flags.Changed("prefix") || flags.Changed("suffix") || flags.Changed("extname") {
		rule := model.DefaultRenameRule()
		if cfg.Output.Rename != nil {
			rule = *cfg.Output.Rename
		}
		if flags.Changed("prefix") {
			rule.Prefix, _ = flags.GetString("prefix")
		}
		if flags.Changed("suffix") {
			rule.Suffix, _ = flags.GetString("suffix")
		}
		if flags.Changed("extname") {
			rule.Extname, _ = flags.GetString("extname")
		}
		cfg.Output.Rename = &rule
	}

	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		cfg.General.LogLevel = level
	}
	if enableHTTP, _ := flags.GetBool("http"); enableHTTP {
		cfg.HTTP.Enabled = true
	}

	return config.Validate(cfg)
}

func watch(ctx context.Context, cfg *config.Config, srcDir, destDir string, logger model.Logger) error {
	session, err := gowatchmin.CreateWatcher(ctx, srcDir, destDir, cfg.WatchOptions(), logger)
	if err != nil {
		return err
	}
	defer session.Close()

	tracker := service.NewStatusTracker(session)
	sinks := []outbound.EventSink{consoleSink(logger), tracker}

	if cfg.HTTP.Enabled {
		router := mux.NewRouter()
		rest.NewHandler(tracker, logger, gowatchmin.GetVersion()).SetupRoutes(router)

		if cfg.HTTP.LiveReload {
			wsHandler := websocket.NewHandler(logger)
			router.HandleFunc("/api/ws/events", wsHandler.HandleConnection)
			sinks = append(sinks, wsHandler)
			defer wsHandler.Cleanup()
		}

		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				logger.Debug("Request", "method", r.Method, "path", r.URL.Path)
				next.ServeHTTP(w, r)
			})
		})

		httpAddr := fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)
		server := &http.Server{
			Addr:         httpAddr,
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "address", httpAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "error", err)
			}
		}()

		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("HTTP server shutdown failed", "error", err)
			}
		}()
	}

	service.ForwardEvents(ctx, session.Events(), sinks...)

	if ctx.Err() != nil {
		logger.Info("Received signal, shutting down")
	}
	if err := session.Close(); err != nil {
		return err
	}
	return session.Err()
}

// consoleSink logs each session event.
func consoleSink(logger outbound.Logger) service.EventHandlers {
	return service.EventHandlers{
		OnReady: func() {
			logger.Info("Initial build complete")
		},
		OnSuccess: func(relPath string) {
			logger.Info("Minified", "path", relPath)
		},
		OnFailure: func(relPath string, err error) {
			logger.Warn("Minify failed", "path", relPath, "error", err)
		},
		OnDelete: func(relPath string) {
			logger.Info("Deleted", "path", relPath)
		},
		OnError: func(relPath string, err error) {
			logger.Error("Watch error", "path", relPath, "error", err)
		},
	}
}
