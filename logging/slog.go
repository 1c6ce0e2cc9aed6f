// Package logging adapts log/slog to the auth.Logger interface.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Options selects the slog handler.
type Options struct {
	// Format is "json" or "text".
	Format string
	// Level is "debug", "info", "warn" or "error".
	Level  string
	Writer io.Writer
}

type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{l: l}
}

// New builds a SlogLogger writing to opts.Writer, stdout by default.
func New(opts Options) *SlogLogger {
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}

	hopts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var h slog.Handler
	if strings.EqualFold(opts.Format, "json") {
		h = slog.NewJSONHandler(w, hopts)
	} else {
		h = slog.NewTextHandler(w, hopts)
	}

	return NewSlogLogger(slog.New(h))
}

// Default wraps slog.Default.
func Default() *SlogLogger {
	return NewSlogLogger(slog.Default())
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
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

func (s *SlogLogger) Debug(msg string, args ...any) {
	s.l.Debug(msg, expand(args)...)
}

func (s *SlogLogger) Info(msg string, args ...any) {
	s.l.Info(msg, expand(args)...)
}

func (s *SlogLogger) Warn(msg string, args ...any) {
	s.l.Warn(msg, expand(args)...)
}

func (s *SlogLogger) Error(msg string, args ...any) {
	s.l.Error(msg, expand(args)...)
}

// With returns a child logger that always includes the given key/value pairs.
func (s *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{l: s.l.With(expand(args)...)}
}

// Slog exposes the wrapped logger.
func (s *SlogLogger) Slog() *slog.Logger {
	return s.l
}

// expand turns rich errors into attribute groups so category and text
// code are searchable.
func expand(args []any) []any {
	out := make([]any, 0, len(args))

	for i := 0; i < len(args); i++ {
		key, isKey := args[i].(string)
		if !isKey || i+1 >= len(args) {
			out = append(out, args[i])
			continue
		}

		if richErr, ok := args[i+1].(*goerrors.Error); ok && richErr != nil {
			out = append(out, slog.Group(key,
				slog.String("message", richErr.Error()),
				slog.String("category", fmt.Sprint(richErr.Category)),
				slog.String("text_code", richErr.TextCode),
				slog.Int("code", richErr.Code),
			))
		} else {
			out = append(out, key, args[i+1])
		}
		i++
	}

	return out
}
