package logging

import (
	"context"
	"log/slog"
	"strconv"
)

// hubHandler mirrors every record into a StreamHub as a LogEvent.
type hubHandler struct {
	hub    *StreamHub
	level  *slog.LevelVar
	attrs  []slog.Attr
	groups []string
}

func newHubHandler(hub *StreamHub, lvl *slog.LevelVar) slog.Handler {
	return &hubHandler{hub: hub, level: lvl}
}

func (h *hubHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *hubHandler) Handle(_ context.Context, record slog.Record) error {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     levelLabel(record.Level),
		Message:   record.Message,
	}

	kvs := make([]kv, 0, record.NumAttrs()+len(h.attrs))
	for _, attr := range h.attrs {
		appendAttr(&kvs, h.groups, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		appendAttr(&kvs, h.groups, attr)
		return true
	})

	for _, pair := range kvs {
		switch pair.key {
		case FieldComponent:
			evt.Component = pair.value
		case FieldItemID:
			evt.ItemID = pair.value
		case FieldStage:
			evt.Stage = pair.value
		case FieldWorkerID:
			if id, err := strconv.Atoi(pair.value); err == nil {
				evt.WorkerID = id
			}
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string, len(kvs))
			}
			evt.Fields[pair.key] = pair.value
		}
	}

	h.hub.Publish(evt)
	return nil
}

func (h *hubHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &hubHandler{
		hub:    h.hub,
		level:  h.level,
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *hubHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &hubHandler{
		hub:    h.hub,
		level:  h.level,
		attrs:  append([]slog.Attr(nil), h.attrs...),
		groups: append(append([]string(nil), h.groups...), name),
	}
}

// fanoutHandler forwards records to every wrapped handler.
type fanoutHandler struct {
	handlers []slog.Handler
}

func newFanoutHandler(handlers ...slog.Handler) slog.Handler {
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
