package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ajkula/GoWatchMin/config"
	"github.com/ajkula/GoWatchMin/domain/model"
)

type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// represents a single log entry to be processed asynchronously
type LogMessage struct {
	Level LogLevel
	Msg   string
	Args  []any
	Time  time.Time
}

// implements the Logger interface using Go's structured logging (slog)
// with asynchronous processing so builds never wait on log I/O
type SlogAdapter struct {
	logger    *slog.Logger
	config    *config.Config
	logChan   chan LogMessage
	ctx       context.Context
	cancel    context.CancelFunc
	slogLevel *slog.LevelVar
	output    io.Writer
	drained   chan struct{}
	dropped   atomic.Uint64
	mu        sync.Mutex
}

func NewSlogAdapter(cfg *config.Config) model.Logger {
	return newSlogAdapter(cfg, openOutput(cfg))
}

func newSlogAdapter(cfg *config.Config, out io.Writer) *SlogAdapter {
	ctx, cancel := context.WithCancel(context.Background())

	levelVar := &slog.LevelVar{}
	levelVar.Set(parseSlogLevel(cfg.General.LogLevel))

	handlerOpts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: cfg.General.Development,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Logging.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	size := cfg.Logging.ChannelSize
	if size < 1 {
		size = 1
	}

	adapter := &SlogAdapter{
		logger:    slog.New(handler),
		config:    cfg,
		logChan:   make(chan LogMessage, size),
		ctx:       ctx,
		cancel:    cancel,
		slogLevel: levelVar,
		output:    out,
		drained:   make(chan struct{}),
	}

	go adapter.processLogs()

	return adapter
}

// picks the writer named by the logging section; rotation is handled by lumberjack
func openOutput(cfg *config.Config) io.Writer {
	switch strings.ToLower(cfg.Logging.Output) {
	case "stdout":
		return os.Stdout
	case "file":
		if cfg.Logging.FilePath != "" {
			return &lumberjack.Logger{
				Filename:   cfg.Logging.FilePath,
				MaxSize:    cfg.Logging.MaxSizeMB,
				MaxBackups: cfg.Logging.MaxBackups,
				MaxAge:     cfg.Logging.MaxAgeDays,
				Compress:   cfg.Logging.Compress,
			}
		}
		return os.Stderr
	default:
		return os.Stderr
	}
}

// updates the configured level and the slog level dynamically
func (s *SlogAdapter) UpdateLevel(logLvl string) {
	normalizedLevel := strings.ToLower(logLvl)

	s.mu.Lock()
	s.config.General.LogLevel = normalizedLevel
	s.mu.Unlock()

	s.slogLevel.Set(parseSlogLevel(normalizedLevel))

	s.Info("Logger level updated dynamically", "new_level", normalizedLevel)
}

// Dropped reports how many messages were discarded because the channel was full.
func (s *SlogAdapter) Dropped() uint64 {
	return s.dropped.Load()
}

// handles messages asynchronously
func (s *SlogAdapter) processLogs() {
	defer close(s.drained)

	for {
		select {
		case msg := <-s.logChan:
			s.writeLog(msg)
		case <-s.ctx.Done():
			for {
				select {
				case msg := <-s.logChan:
					s.writeLog(msg)
				default:
					return
				}
			}
		}
	}
}

// converts string level to slog.Level
func parseSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// performs the logging operation, keeping the time the message was emitted
func (s *SlogAdapter) writeLog(msg LogMessage) {
	var level slog.Level
	switch msg.Level {
	case LevelError:
		level = slog.LevelError
	case LevelWarn:
		level = slog.LevelWarn
	case LevelInfo:
		level = slog.LevelInfo
	default:
		level = slog.LevelDebug
	}

	handler := s.logger.Handler()
	if !handler.Enabled(context.Background(), level) {
		return
	}
	record := slog.NewRecord(msg.Time, level, msg.Msg, 0)
	record.Add(msg.Args...)
	_ = handler.Handle(context.Background(), record)
}

func (s *SlogAdapter) sendLog(level LogLevel, msg string, args ...any) {
	if s.ctx.Err() != nil {
		return
	}
	select {
	case s.logChan <- LogMessage{
		Level: level,
		Msg:   msg,
		Args:  args,
		Time:  time.Now(),
	}:
	default:
		s.dropped.Add(1)
	}
}

func (s *SlogAdapter) shouldLog(level LogLevel) bool {
	switch s.slogLevel.Level() {
	case slog.LevelError:
		return level == LevelError
	case slog.LevelWarn:
		return level <= LevelWarn
	case slog.LevelInfo:
		return level <= LevelInfo
	case slog.LevelDebug:
		return level <= LevelDebug
	default:
		return level == LevelError
	}
}

func (s *SlogAdapter) Error(msg string, args ...any) {
	if !s.shouldLog(LevelError) {
		return
	}
	s.sendLog(LevelError, msg, args...)
}

func (s *SlogAdapter) Warn(msg string, args ...any) {
	if !s.shouldLog(LevelWarn) {
		return
	}
	s.sendLog(LevelWarn, msg, args...)
}

func (s *SlogAdapter) Info(msg string, args ...any) {
	if !s.shouldLog(LevelInfo) {
		return
	}
	s.sendLog(LevelInfo, msg, args...)
}

func (s *SlogAdapter) Debug(msg string, args ...any) {
	if !s.shouldLog(LevelDebug) {
		return
	}
	s.sendLog(LevelDebug, msg, args...)
}

// Shutdown flushes queued messages and closes a file output.
func (s *SlogAdapter) Shutdown() {
	s.cancel()
	<-s.drained

	if closer, ok := s.output.(*lumberjack.Logger); ok {
		_ = closer.Close()
	}
}
