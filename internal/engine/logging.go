package engine

import (
	"context"
	"log/slog"
)

// levelHandler gates records at the namespace log level and hands the rest
// to the process handler, whose own level it replaces.
type levelHandler struct {
	next  slog.Handler
	level slog.Leveler
}

func newLevelHandler(next slog.Handler, level slog.Leveler) *levelHandler {
	if lh, ok := next.(*levelHandler); ok {
		next = lh.next
	}
	return &levelHandler{next: next, level: level}
}

func (h *levelHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.next.Handle(ctx, r)
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{next: h.next.WithGroup(name), level: h.level}
}
