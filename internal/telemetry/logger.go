package telemetry

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	// Level is one of debug, info, warn or error.
	Level string
	// File enables a rotating log file next to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// SetupLogger installs a JSON slog logger as the default logger. The returned closer releases the
// log file, if any.
func SetupLogger(c LogConfig) (io.Closer, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(c.Level))); err != nil && c.Level != "" {
		return nil, fmt.Errorf("log level %q: %w", c.Level, err)
	}

	var (
		w      io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if c.File != "" {
		lj := &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			Compress:   true,
		}
		w = io.MultiWriter(os.Stdout, lj)
		closer = lj
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))

	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
