// Package logger provides slog loggers with a small colored text handler.
// Warnings render yellow, errors red, and messages about persisting or
// exporting graph data render green so they stand out in long runs.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// greenKeywords highlight storage and export activity.
var greenKeywords = []string{"persist", "export", "saved", "written"}

// NewDefaultLogger creates a colored text logger writing to stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return slog.New(NewColorHandler(os.Stderr, level))
}

// NewLogger creates a logger for the given level and format. Format "json"
// uses the standard JSON handler; anything else gets the colored text
// handler.
func NewLogger(level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(NewColorHandler(os.Stderr, level))
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ColorHandler is a slog.Handler that writes single-line colored records.
type ColorHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Level
	attrs []slog.Attr
	group string
}

// NewColorHandler creates a ColorHandler writing to w.
func NewColorHandler(w io.Writer, level slog.Level) *ColorHandler {
	return &ColorHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *ColorHandler) Handle(_ context.Context, record slog.Record) error {
	color := ""
	switch {
	case record.Level >= slog.LevelError:
		color = colorRed
	case record.Level >= slog.LevelWarn:
		color = colorYellow
	default:
		lower := strings.ToLower(record.Message)
		for _, kw := range greenKeywords {
			if strings.Contains(lower, kw) {
				color = colorGreen
				break
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(record.Time.Format(time.RFC3339))
	sb.WriteByte(' ')
	sb.WriteString(record.Level.String())
	sb.WriteByte(' ')
	if color != "" {
		sb.WriteString(color)
	}
	sb.WriteString(record.Message)
	if color != "" {
		sb.WriteString(colorReset)
	}

	writeAttr := func(a slog.Attr) {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *ColorHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}
