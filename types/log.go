package types

import (
	"context"
	"fmt"
	"log/slog"
)

// slogValue wraps a Value as a slog.LogValuer to not render type-set strings
// unless they definitely need to be logged
func slogValue(v Value) slog.LogValuer {
	return valueLogValuer{v}
}

type valueLogValuer struct{ Value }

func (l valueLogValuer) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("str", l.Value.String()),
		slog.String("hash", fmt.Sprintf("%x", l.Value.Hash())),
	)
}

// ValueSlogHandler is a slog.Handler capable of lazy-printing type-sets
func ValueSlogHandler(underlying slog.Handler) slog.Handler {
	return &valueLogHandler{underlying: underlying}
}

type valueLogHandler struct {
	underlying slog.Handler
}

func (l *valueLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return l.underlying.Enabled(ctx, level)
}

func (l *valueLogHandler) Handle(ctx context.Context, record slog.Record) error {
	newRecord := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	// for each attr, wrap it in slogValue if it is an Any holding a Value
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Value.Kind() == slog.KindAny {
			if value, isValue := attr.Value.Any().(Value); isValue {
				newRecord.Add(attr.Key, slogValue(value))
				return true
			}
		}
		newRecord.Add(attr)
		return true
	})
	return l.underlying.Handle(ctx, newRecord)
}

func (l *valueLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	for i, attr := range attrs {
		if attr.Value.Kind() == slog.KindAny {
			if value, isValue := attr.Value.Any().(Value); isValue {
				attr.Value = slog.AnyValue(slogValue(value))
				attrs[i] = attr
			}
		}
	}
	return ValueSlogHandler(l.underlying.WithAttrs(attrs))
}

func (l *valueLogHandler) WithGroup(name string) slog.Handler {
	return ValueSlogHandler(l.underlying.WithGroup(name))
}
