package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// LogFileName is the log file inside the configured log_dir.
const LogFileName = "medrx.log"

// rxHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<sessionID>\t<message>\t<key=value ...>
//
// Records below level are dropped.
type rxHandler struct {
	w         io.Writer
	sessionID string
	level     slog.Level
	attrs     []slog.Attr
}

func (h *rxHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *rxHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	if _, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level, h.sessionID, r.Message); err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err := fmt.Fprintln(h.w)
	return err
}

func (h *rxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &rxHandler{
		w:         h.w,
		sessionID: h.sessionID,
		level:     h.level,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *rxHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to logDir/medrx.log and to
// stderr. Debug records are kept only when verbose is set.
func newLogger(logDir, sessionID string, verbose bool) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(logDir, LogFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := &rxHandler{w: io.MultiWriter(f, os.Stderr), sessionID: sessionID, level: level}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the rx.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
