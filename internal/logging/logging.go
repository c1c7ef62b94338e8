// Package logging builds the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for the optional log file.
const (
	defaultMaxSizeMB  = 50
	defaultMaxFiles   = 5
	defaultMaxAgeDays = 14
)

// Config describes the logger: level name, "json" or "text", and an
// optional rotating log file written alongside stderr.
type Config struct {
	Level      string
	Format     string
	FilePath   string
	MaxSizeMB  int
	MaxFiles   int
	MaxAgeDays int
}

// Manager owns the log file, if any.
type Manager struct {
	mu     sync.Mutex
	closer io.Closer
}

// NewManager returns a Manager and the logger built from cfg. Logs go to
// stderr so stdout stays free for command output. An unknown level falls
// back to info.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	return newManager(cfg, os.Stderr)
}

func newManager(cfg Config, console io.Writer) (*Manager, *slog.Logger) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	w := console
	m := &Manager{}
	if cfg.FilePath != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    positive(cfg.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: positive(cfg.MaxFiles, defaultMaxFiles),
			MaxAge:     positive(cfg.MaxAgeDays, defaultMaxAgeDays),
			Compress:   true,
		}
		w = io.MultiWriter(console, file)
		m.closer = file
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return m, slog.New(h)
}

// Close releases the log file. Calling it again is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	return err
}

// ParseLevel accepts debug, info, warn or error in any case. The empty
// string is info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
