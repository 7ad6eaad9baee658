package eventlog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"
)

// jsonlHandler appends one JSON object per record: {"ts","level","msg","meta"}.
// The file stays valid JSON Lines whatever happens to neighbouring records.
type jsonlHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
	group string
}

type jsonlRecord struct {
	TS    string         `json:"ts"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Meta  map[string]any `json:"meta,omitempty"`
}

func newJSONLHandler(w io.Writer, level slog.Level) *jsonlHandler {
	return &jsonlHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *jsonlHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *jsonlHandler) Handle(_ context.Context, r slog.Record) error {
	rec := jsonlRecord{
		TS:    r.Time.UTC().Format(time.RFC3339),
		Level: r.Level.String(),
		Msg:   r.Message,
	}

	addAttr := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		if a.Equal(slog.Attr{}) {
			return
		}
		if rec.Meta == nil {
			rec.Meta = make(map[string]any)
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		rec.Meta[key] = a.Value.Any()
	}
	for _, a := range h.attrs {
		addAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		addAttr(a)
		return true
	})

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(data)
	return err
}

func (h *jsonlHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := *h
	out.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &out
}

func (h *jsonlHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	out := *h
	if h.group != "" {
		out.group = h.group + "." + name
	} else {
		out.group = name
	}
	return &out
}
