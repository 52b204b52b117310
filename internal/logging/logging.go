// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the optional log file.
const (
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
)

// Options selects level and destination of the logger.
type Options struct {
	Level   string
	Verbose bool   // forces debug, overriding Level
	File    string // when set, JSON lines also go to a rotated file
}

// ParseLevel maps a config level name to a slog.Level. Unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger writing to w and, if opts.File is set, to a
// rotating log file. The returned closer releases the file.
func New(w io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	level := ParseLevel(opts.Level)
	if opts.Verbose {
		level = slog.LevelDebug
	}
	if w == nil {
		w = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		fileLog := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    logMaxSize,
			MaxBackups: logMaxBackup,
			MaxAge:     logMaxAge,
		}
		// Fail early on an unwritable path instead of on the first record.
		if _, err := fileLog.Write(nil); err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		w = io.MultiWriter(w, fileLog)
		closer = fileLog
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(w io.Writer, opts Options) (io.Closer, error) {
	logger, closer, err := New(w, opts)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
