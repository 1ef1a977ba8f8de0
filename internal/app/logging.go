package app

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/dshills/jsinspect/internal/integration/inspector/console"
	"github.com/dshills/jsinspect/internal/renderer/logview"
)

// ParseLogLevel parses a level name. Unknown names select info.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// newLogger builds the text logger all components share.
func newLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)}))
}

// switchWriter lets log output move to the log view and back.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// viewWriter appends each written log record to a log view.
type viewWriter struct {
	view *logview.View
}

func (v viewWriter) Write(p []byte) (int, error) {
	for _, line := range bytes.Split(bytes.TrimRight(p, "\n"), []byte("\n")) {
		v.view.Append(console.Line{
			Text:  string(line),
			Level: console.LevelDebug,
			Style: console.StyleFor(console.LevelDebug),
		})
	}
	return len(p), nil
}
