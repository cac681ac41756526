package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelFatal
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}

// ParseLogLevel maps a config value to a level. Unknown values fall back to info.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	case "fatal":
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

// Logger interface defines the logging contract
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})

	SetLevel(level LogLevel)
	SetOutput(w io.Writer)
	SetFormat(format LogFormat)

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// LogFormat represents the log output format
type LogFormat int

const (
	LogFormatText LogFormat = iota
	LogFormatJSON
	LogFormatCompact
)

// ParseLogFormat maps a config value to a format.
func ParseLogFormat(s string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return LogFormatJSON
	case "compact":
		return LogFormatCompact
	default:
		return LogFormatText
	}
}

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level       LogLevel
	Format      LogFormat
	Output      io.Writer
	FilePath    string
	EnableColor bool
}

// DefaultLoggerConfig returns a default logger configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:       LogLevelInfo,
		Format:      LogFormatText,
		Output:      os.Stderr,
		EnableColor: true,
	}
}

// ExtractorLogger is a Logger backed by zerolog. The log file, when set,
// always receives JSON lines.
type ExtractorLogger struct {
	config *LoggerConfig
	zl     zerolog.Logger
	fields map[string]interface{}
	file   *os.File
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config *LoggerConfig) (*ExtractorLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.Output == nil {
		config.Output = os.Stderr
	}

	logger := &ExtractorLogger{
		config: config,
		fields: make(map[string]interface{}),
	}

	if config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		logger.file = file
	}

	logger.rebuild()
	return logger, nil
}

func (l *ExtractorLogger) rebuild() {
	var w io.Writer
	switch l.config.Format {
	case LogFormatJSON:
		w = l.config.Output
	case LogFormatCompact:
		w = zerolog.ConsoleWriter{
			Out:        l.config.Output,
			NoColor:    !l.config.EnableColor,
			TimeFormat: "15:04:05",
		}
	default:
		w = zerolog.ConsoleWriter{
			Out:        l.config.Output,
			NoColor:    !l.config.EnableColor,
			TimeFormat: "2006-01-02 15:04:05",
		}
	}

	if l.file != nil {
		w = zerolog.MultiLevelWriter(w, l.file)
	}

	ctx := zerolog.New(w).Level(l.config.Level.zerolog()).With().Timestamp()
	if len(l.fields) > 0 {
		ctx = ctx.Fields(l.fields)
	}
	l.zl = ctx.Logger()
}

func (l *ExtractorLogger) emit(e *zerolog.Event, msg string, args ...interface{}) {
	if e == nil {
		return
	}
	if len(args) > 0 {
		e.Msgf(msg, args...)
		return
	}
	e.Msg(msg)
}

// Debug logs a debug message
func (l *ExtractorLogger) Debug(msg string, args ...interface{}) {
	l.emit(l.zl.Debug(), msg, args...)
}

// Info logs an info message
func (l *ExtractorLogger) Info(msg string, args ...interface{}) {
	l.emit(l.zl.Info(), msg, args...)
}

// Warn logs a warning message
func (l *ExtractorLogger) Warn(msg string, args ...interface{}) {
	l.emit(l.zl.Warn(), msg, args...)
}

// Error logs an error message
func (l *ExtractorLogger) Error(msg string, args ...interface{}) {
	l.emit(l.zl.Error(), msg, args...)
}

// Fatal logs a fatal message and exits
func (l *ExtractorLogger) Fatal(msg string, args ...interface{}) {
	l.emit(l.zl.WithLevel(zerolog.FatalLevel), msg, args...)
	l.Close()
	os.Exit(1)
}

// SetLevel sets the logging level
func (l *ExtractorLogger) SetLevel(level LogLevel) {
	l.config.Level = level
	l.zl = l.zl.Level(level.zerolog())
}

// SetOutput sets the output writer
func (l *ExtractorLogger) SetOutput(w io.Writer) {
	l.config.Output = w
	l.rebuild()
}

// SetFormat sets the log format
func (l *ExtractorLogger) SetFormat(format LogFormat) {
	l.config.Format = format
	l.rebuild()
}

// WithField returns a logger with an additional field
func (l *ExtractorLogger) WithField(key string, value interface{}) Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a logger with additional fields
func (l *ExtractorLogger) WithFields(fields map[string]interface{}) Logger {
	cfg := *l.config
	child := &ExtractorLogger{
		config: &cfg,
		fields: make(map[string]interface{}, len(l.fields)+len(fields)),
		file:   l.file,
	}
	for k, v := range l.fields {
		child.fields[k] = v
	}
	for k, v := range fields {
		child.fields[k] = v
	}
	child.rebuild()
	return child
}

// Close closes the logger and any open files
func (l *ExtractorLogger) Close() error {
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Global logger instance
var globalLogger Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(config *LoggerConfig) (*ExtractorLogger, error) {
	logger, err := NewLogger(config)
	if err != nil {
		return nil, err
	}
	globalLogger = logger
	return logger, nil
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() Logger {
	if globalLogger == nil {
		logger, _ := NewLogger(DefaultLoggerConfig())
		globalLogger = logger
	}
	return globalLogger
}

// Convenience functions for global logger
func Debug(msg string, args ...interface{}) {
	GetGlobalLogger().Debug(msg, args...)
}

func Info(msg string, args ...interface{}) {
	GetGlobalLogger().Info(msg, args...)
}

func Warn(msg string, args ...interface{}) {
	GetGlobalLogger().Warn(msg, args...)
}

func Error(msg string, args ...interface{}) {
	GetGlobalLogger().Error(msg, args...)
}
