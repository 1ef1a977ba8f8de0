// Package app wires configuration, the inspector session, console output and
// live editing into the jsinspect command.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/jsinspect/internal/config"
	"github.com/dshills/jsinspect/internal/integration/inspector"
	"github.com/dshills/jsinspect/internal/integration/inspector/console"
	"github.com/dshills/jsinspect/internal/integration/inspector/scripts"
	"github.com/dshills/jsinspect/internal/plugin/lua"
	"github.com/dshills/jsinspect/internal/project/watcher"
	"github.com/dshills/jsinspect/internal/renderer/logview"
)

// Options configures the application. Zero values leave the configured
// setting unchanged.
type Options struct {
	// ConfigPath is the path to the configuration file.
	ConfigPath string

	Host         string
	Port         int
	Root         string
	Target       string
	LogLevel     string
	FilterScript string

	// Watch enables live editing of saved files.
	Watch bool

	// TUI renders console output in a scrolling terminal view.
	TUI bool

	// Stdout receives console lines; Stderr receives logs. Default to os.Stdout/os.Stderr.
	Stdout io.Writer
	Stderr io.Writer

	// Screen is used for the TUI; nil creates a terminal screen.
	Screen tcell.Screen

	// SessionOptions are appended to the session's options.
	SessionOptions []inspector.Option

	// Environ supplies environment variables; nil uses os.Environ.
	Environ func() []string
}

// Application is one jsinspect run.
type Application struct {
	opts   Options
	config config.Config
	logger *slog.Logger
	logOut *switchWriter

	session *inspector.Session
	filter  *lua.Filter

	mu      sync.Mutex
	screen  tcell.Screen
	view    *logview.View
	watcher watcher.Watcher

	// scriptSettle is how long script registration must be quiet before
	// Locate queries the registry.
	scriptSettle time.Duration

	shutdownOnce sync.Once
}

// New creates an Application from opts.
func New(opts Options) (*Application, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	app := &Application{
		opts:         opts,
		scriptSettle: 250 * time.Millisecond,
	}
	if err := app.bootstrap(); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap resolves configuration and creates the long-lived components.
func (app *Application) bootstrap() error {
	cfg, err := config.Load(config.Options{Path: app.opts.ConfigPath, Environ: app.opts.Environ})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, app.opts)
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.config = cfg

	app.logOut = &switchWriter{w: app.opts.Stderr}
	app.logger = newLogger(app.logOut, cfg.Logging.Level)

	sessionOpts := append([]inspector.Option{inspector.WithLogger(app.logger)}, app.opts.SessionOptions...)
	app.session = inspector.NewSession(cfg.Session(), sessionOpts...)

	if cfg.Console.FilterScript != "" {
		f, err := lua.NewFilter(cfg.Console.FilterScript, lua.WithLogger(app.logger))
		if err != nil {
			return err
		}
		app.filter = f
	}
	return nil
}

// applyOverrides applies command-line values on top of the loaded configuration.
func applyOverrides(cfg *config.Config, opts Options) {
	if opts.Host != "" {
		cfg.Remote.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Remote.Port = opts.Port
	}
	if opts.Target != "" {
		cfg.Remote.Target = opts.Target
	}
	if opts.Root != "" {
		cfg.Project.Root = opts.Root
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if opts.FilterScript != "" {
		cfg.Console.FilterScript = opts.FilterScript
	}
	if opts.Watch {
		cfg.Watch.Enabled = true
	}
}

// Config returns the resolved configuration.
func (app *Application) Config() config.Config {
	return app.config
}

// Session returns the inspector session.
func (app *Application) Session() *inspector.Session {
	return app.session
}

// Run connects and streams console output until ctx is done, the user quits
// the TUI, or the connection drops.
func (app *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	disconnected := make(chan error, 1)
	app.session.SetHandlers(inspector.Handlers{
		OnConsole: app.emit,
		OnScriptParsed: func(rec *scripts.Record) {
			app.logger.Debug("script parsed", "id", rec.ID, "url", rec.URL)
		},
		OnDisconnected: func(err error) {
			select {
			case disconnected <- err:
			default:
			}
		},
	})

	if app.opts.TUI {
		if err := app.startTUI(); err != nil {
			return err
		}
	}

	if err := app.session.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	target := app.session.Target()
	app.setStatus(fmt.Sprintf("%s  %s", target.Title, target.URL))

	if app.config.Watch.Enabled {
		if err := app.startWatcher(ctx); err != nil {
			return err
		}
	}

	app.mu.Lock()
	view := app.view
	app.mu.Unlock()

	if view != nil {
		go func() {
			select {
			case err := <-disconnected:
				app.setStatus(fmt.Sprintf("disconnected: %v", err))
			case <-ctx.Done():
			}
		}()
		if err := view.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-disconnected:
		return fmt.Errorf("%w: %v", ErrDisconnected, err)
	}
}

// emit filters a console line and writes it to the view or stdout.
// It runs on the session's receive goroutine.
func (app *Application) emit(line console.Line) {
	if app.filter != nil {
		var keep bool
		if line, keep = app.filter.Apply(line); !keep {
			return
		}
	}
	app.write(line)
}

// notice reports a jsinspect message alongside console output, unfiltered.
func (app *Application) notice(level, text string) {
	app.write(console.Line{Text: "jsinspect: " + text, Level: level, Style: console.StyleFor(level)})
}

func (app *Application) write(line console.Line) {
	app.mu.Lock()
	view := app.view
	app.mu.Unlock()

	if view != nil {
		view.Append(line)
		return
	}
	fmt.Fprintln(app.opts.Stdout, line.Text)
}

func (app *Application) setStatus(status string) {
	app.mu.Lock()
	view := app.view
	app.mu.Unlock()

	if view != nil {
		view.SetStatus(status)
	}
}

// startTUI initializes the screen and routes logs into the view.
func (app *Application) startTUI() error {
	screen := app.opts.Screen
	if screen == nil {
		s, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("create terminal: %w", err)
		}
		screen = s
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}

	view := logview.New(screen)
	app.mu.Lock()
	app.screen = screen
	app.view = view
	app.mu.Unlock()

	app.logOut.Set(viewWriter{view: view})
	view.SetStatus("connecting...")
	return nil
}

// startWatcher watches the project root and applies saved files as live edits.
func (app *Application) startWatcher(ctx context.Context) error {
	cfg := app.config.Watch
	w, err := watcher.New(
		watcher.WithDebounceDelay(time.Duration(cfg.DebounceMS)*time.Millisecond),
		watcher.WithIgnorePatterns(cfg.Ignore),
	)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	root := app.config.Project.Root
	if err := w.WatchRecursive(root); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", root, err)
	}

	app.mu.Lock()
	app.watcher = w
	app.mu.Unlock()

	editor := watcher.NewLiveEditor(app.session, root,
		watcher.WithLogger(app.logger),
		watcher.WithResultHandler(app.reportEdit),
	)
	go func() {
		if err := editor.Run(ctx, w); err != nil && !errors.Is(err, context.Canceled) {
			app.logger.Warn("live edit stopped", "error", err)
		}
	}()

	app.logger.Info("watching for changes", "root", root)
	return nil
}

func (app *Application) reportEdit(r watcher.Result) {
	switch {
	case r.Err == nil:
		app.notice(console.LevelInfo, "applied "+r.Path)
	case errors.Is(r.Err, inspector.ErrNoMatchingScript):
		app.notice(console.LevelWarning, "no loaded script for "+r.Path)
	default:
		app.notice(console.LevelError, fmt.Sprintf("edit of %s failed: %v", r.Path, r.Err))
	}
}

// Shutdown releases all resources. It is safe to call more than once.
func (app *Application) Shutdown() {
	app.shutdownOnce.Do(func() {
		app.mu.Lock()
		w := app.watcher
		screen := app.screen
		app.view = nil
		app.mu.Unlock()

		if w != nil {
			w.Close()
		}
		if err := app.session.Disconnect(); err != nil {
			app.logger.Debug("disconnect", "error", err)
		}
		if screen != nil {
			screen.Fini()
			app.logOut.Set(app.opts.Stderr)
		}
		if app.filter != nil {
			app.filter.Close()
		}
	})
}
