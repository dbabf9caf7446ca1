package telemetry

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// SlogHandler fans every record out to a text handler (the console, or a
// host's stderr) and, for INFO and above, into the bounded Event log via
// Record.
type SlogHandler struct {
	textHandler slog.Handler
	group       string
}

// NewSlogHandler wraps a slog.TextHandler writing to w.
func NewSlogHandler(w io.Writer, opts *slog.HandlerOptions) *SlogHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &SlogHandler{textHandler: slog.NewTextHandler(w, opts)}
}

// Enabled reports whether the handler handles records at the given level.
func (h *SlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.textHandler.Enabled(ctx, level)
}

// Handle writes r to the console and, at INFO or above, records it.
func (h *SlogHandler) Handle(ctx context.Context, r slog.Record) error {
	err := h.textHandler.Handle(ctx, r)
	if r.Level >= slog.LevelInfo {
		Record(slogLevelToSeverity(r.Level), buildTelemetryMessage(h.group, r))
	}
	return err
}

// WithAttrs returns a new Handler with the given attributes added.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SlogHandler{
		textHandler: h.textHandler.WithAttrs(attrs),
		group:       h.group,
	}
}

// WithGroup returns a new Handler with the given group name.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	newGroup := name
	if h.group != "" {
		newGroup = h.group + "." + name
	}
	return &SlogHandler{
		textHandler: h.textHandler.WithGroup(name),
		group:       newGroup,
	}
}

func slogLevelToSeverity(level slog.Level) uint8 {
	switch {
	case level >= slog.LevelError:
		return SeverityError
	case level >= slog.LevelWarn:
		return SeverityWarn
	case level >= slog.LevelInfo:
		return SeverityInfo
	default:
		return SeverityDebug
	}
}

// buildTelemetryMessage renders "group:msg key=val key2=val2" from the
// record's own message and attributes. Attributes added through WithAttrs,
// and the console line's time and level fields, are not included.
func buildTelemetryMessage(group string, r slog.Record) string {
	var b strings.Builder
	if group != "" {
		b.WriteString(group)
		b.WriteByte(':')
	}
	b.WriteString(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
		return true
	})
	return b.String()
}
