package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process logger. It embeds zerolog.Logger and owns the log
// file, if any.
type Logger struct {
	zerolog.Logger
	file     *os.File
	redactor *Redactor
}

// Config holds logger configuration
type Config struct {
	Level     string    // debug, info, warn, error
	File      string    // log file path, appended to
	Console   bool      // write to Output
	Pretty    bool      // human readable console lines
	Redaction bool      // mask secrets before anything is written
	Output    io.Writer // console destination, defaults to stderr
}

// New builds a logger from cfg and installs it as the global zerolog logger.
// Unknown or empty levels fall back to info.
func New(cfg Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	console := cfg.Output
	if console == nil {
		console = os.Stderr
	}

	var sinks []io.Writer
	if cfg.Console {
		sinks = append(sinks, consoleSink(console, cfg.Pretty))
	}

	var file *os.File
	if cfg.File != "" {
		file, err = openLogFile(cfg.File)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
	}

	var w io.Writer
	switch len(sinks) {
	case 0:
		w = console
	case 1:
		w = sinks[0]
	default:
		w = zerolog.MultiLevelWriter(sinks...)
	}

	var redactor *Redactor
	if cfg.Redaction {
		redactor = NewRedactor()
		w = redactor.Wrap(w)
	}

	zl := zerolog.New(w).Level(level).With().Timestamp().Logger()
	log.Logger = zl

	return &Logger{Logger: zl, file: file, redactor: redactor}, nil
}

func consoleSink(out io.Writer, pretty bool) io.Writer {
	if !pretty {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Component returns a child logger tagged with the component name
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}

// GetZerolog returns the underlying zerolog.Logger
func (l *Logger) GetZerolog() zerolog.Logger {
	return l.Logger
}

// DefaultConfig returns default logger configuration
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Console:   true,
		Pretty:    true,
		Redaction: true,
	}
}
