// Package eventlog turns lifecycle and message events into structured
// records. The console sink renders human-readable lines; an optional file
// sink appends one JSON object per record (JSON Lines), each independently
// parseable, with fields ts, level, msg and meta.
package eventlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// New builds the event logger: a text handler on console plus, when savePath
// is non-empty, an append-only JSONL handler on that file. The returned
// closer flushes and closes the file sink.
func New(console io.Writer, savePath string, level slog.Level) (*slog.Logger, func() error, error) {
	handlers := []slog.Handler{newConsoleHandler(console, level)}
	closer := func() error { return nil }

	if savePath != "" {
		f, err := os.OpenFile(savePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open session log %s: %w", savePath, err)
		}
		handlers = append(handlers, newJSONLHandler(f, level))
		closer = f.Close
	}

	return slog.New(fanout(handlers)), closer, nil
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fanout replicates each record to every sink.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
