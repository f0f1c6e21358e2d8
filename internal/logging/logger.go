// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/pterm/pterm"
)

// ParseLevel maps a config level name to a pterm level.
func ParseLevel(s string) (pterm.LogLevel, error) {
	switch s {
	case "debug":
		return pterm.LogLevelDebug, nil
	case "", "info":
		return pterm.LogLevelInfo, nil
	case "warn":
		return pterm.LogLevelWarn, nil
	case "error":
		return pterm.LogLevelError, nil
	default:
		return pterm.LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// NewLogger returns a slog.Logger that writes through pterm to w. Attribute
// values are masked before they are printed.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	pl := pterm.DefaultLogger.
		WithLevel(lvl).
		WithWriter(w).
		WithTime(false)
	return slog.New(&maskingHandler{Handler: pterm.NewSlogHandler(pl)}), nil
}

// maskingHandler scrubs secrets out of messages and string attributes.
type maskingHandler struct {
	slog.Handler
}

func (h *maskingHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, Mask(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(maskAttr(a))
		return true
	})
	return h.Handler.Handle(ctx, out)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &maskingHandler{Handler: h.Handler.WithAttrs(masked)}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{Handler: h.Handler.WithGroup(name)}
}

func maskAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, Mask(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, Mask(err.Error()))
		}
	}
	return slog.Attr{Key: a.Key, Value: v}
}
