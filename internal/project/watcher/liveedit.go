package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dshills/jsinspect/internal/integration/inspector"
	"github.com/dshills/jsinspect/internal/integration/inspector/cdp"
	"github.com/dshills/jsinspect/internal/integration/inspector/scripts"
)

// Editor applies new source text to the loaded script matching filename.
// *inspector.Session implements it.
type Editor interface {
	ApplyEdit(ctx context.Context, filename, source string, cb cdp.Callback) (*scripts.Record, error)
}

// Result reports the outcome of one live edit.
type Result struct {
	// Path is the file that changed, relative to the project root.
	Path string

	// Sent is true when the edit reached the remote and Err is its reply.
	Sent bool

	// Err is nil when the remote accepted the new source.
	Err error
}

// LiveEditor forwards saved files to an Editor.
type LiveEditor struct {
	editor   Editor
	root     string
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
	onResult func(Result)
}

// LiveEditOption configures a LiveEditor.
type LiveEditOption func(*LiveEditor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LiveEditOption {
	return func(le *LiveEditor) {
		le.logger = logger
	}
}

// WithResultHandler sets a function called with every edit outcome.
// It may be called from the watcher goroutine or the session's receive loop.
func WithResultHandler(fn func(Result)) LiveEditOption {
	return func(le *LiveEditor) {
		le.onResult = fn
	}
}

// WithReadFile replaces os.ReadFile.
func WithReadFile(fn func(string) ([]byte, error)) LiveEditOption {
	return func(le *LiveEditor) {
		le.readFile = fn
	}
}

// NewLiveEditor creates a LiveEditor for files under root.
func NewLiveEditor(editor Editor, root string, opts ...LiveEditOption) *LiveEditor {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	le := &LiveEditor{
		editor:   editor,
		root:     root,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		readFile: os.ReadFile,
		onResult: func(Result) {},
	}
	for _, opt := range opts {
		opt(le)
	}
	return le
}

// Run applies edits for events from w until ctx is done or w's channels close.
func (le *LiveEditor) Run(ctx context.Context, w Watcher) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events():
			if !ok {
				return nil
			}
			le.Handle(ctx, event)
		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			le.logger.Warn("watch error", "error", err)
		}
	}
}

// Handle applies a single event. Only writes and creations of readable files
// produce edits.
func (le *LiveEditor) Handle(ctx context.Context, event Event) {
	if !event.Op.Has(OpWrite) && !event.Op.Has(OpCreate) {
		return
	}

	data, err := le.readFile(event.Path)
	if err != nil {
		le.logger.Debug("skipping unreadable file", "path", event.Path, "error", err)
		return
	}

	rel := le.relative(event.Path)
	rec, err := le.editor.ApplyEdit(ctx, rel, string(data), func(_ json.RawMessage, err error) {
		if err != nil {
			le.logger.Warn("live edit rejected", "path", rel, "error", err)
		} else {
			le.logger.Info("live edit applied", "path", rel)
		}
		le.onResult(Result{Path: rel, Sent: true, Err: err})
	})
	if err != nil {
		if errors.Is(err, inspector.ErrNoMatchingScript) {
			le.logger.Info("no loaded script matches saved file", "path", rel)
		} else {
			le.logger.Warn("live edit failed", "path", rel, "error", err)
		}
		le.onResult(Result{Path: rel, Err: err})
		return
	}
	le.logger.Debug("live edit sent", "path", rel, "script", rec.ID)
}

// relative returns path relative to the root in slash form, or the base name
// when path lies outside the root.
func (le *LiveEditor) relative(path string) string {
	rel, err := filepath.Rel(le.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
