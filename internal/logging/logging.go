// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"shadowdeck/internal/paths"
)

const timeFormat = "2006-01-02 15:04:05.000"

// level is shared by every handler created here so it can change at runtime,
// for example when the debug flag is toggled.
var level = new(slog.LevelVar)

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// SetLevel changes the level of all loggers created by Setup.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the current level.
func Level() slog.Level {
	return level.Level()
}

// Setup installs a tint handler writing to w as the default logger. Color is
// used only when w is a terminal.
func Setup(w io.Writer, l slog.Level) *slog.Logger {
	level.Set(l)

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}

	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    noColor,
	}))
	slog.SetDefault(logger)
	return logger
}

// SetupFile logs to name inside the cache directory, for modes where the
// terminal is owned by the UI. The returned closer closes the file.
func SetupFile(name string, l slog.Level) (*slog.Logger, io.Closer, error) {
	dir, err := paths.CacheDir()
	if err != nil {
		return nil, nil, err
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	paths.ChownToRealUser(path)

	fmt.Fprintf(f, "\n--- %s ---\n", time.Now().Format(time.RFC3339))
	return Setup(f, l), f, nil
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
