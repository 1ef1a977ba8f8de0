// Package main is the entry point for jsinspect.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dshills/jsinspect/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// oneShotTimeout bounds -eval, -reload, -list and -locate.
const oneShotTimeout = 15 * time.Second

type command struct {
	eval   string
	reload bool
	list   bool
	locate string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, cmd := parseFlags()

	application, err := app.New(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer application.Shutdown()

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, application, cmd); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, application *app.Application, cmd command) error {
	oneShot := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, oneShotTimeout)
	}

	switch {
	case cmd.list:
		ctx, cancel := oneShot()
		defer cancel()
		return application.ListTargets(ctx, os.Stdout)
	case cmd.eval != "":
		ctx, cancel := oneShot()
		defer cancel()
		return application.Evaluate(ctx, cmd.eval, os.Stdout)
	case cmd.reload:
		ctx, cancel := oneShot()
		defer cancel()
		return application.Reload(ctx)
	case cmd.locate != "":
		ctx, cancel := oneShot()
		defer cancel()
		return application.Locate(ctx, cmd.locate, os.Stdout)
	default:
		return application.Run(ctx)
	}
}

func parseFlags() (app.Options, command) {
	var opts app.Options
	var cmd command
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.Host, "host", "", "Remote debugging host (default 127.0.0.1)")
	flag.IntVar(&opts.Port, "port", 0, "Remote debugging port (default 9222)")
	flag.IntVar(&opts.Port, "p", 0, "Remote debugging port (shorthand)")
	flag.StringVar(&opts.Target, "target", "", "Attach to the page whose URL or title contains this text")
	flag.StringVar(&opts.Target, "t", "", "Target page filter (shorthand)")
	flag.StringVar(&opts.Root, "root", "", "Project root that source-map paths resolve against")
	flag.StringVar(&opts.Root, "r", "", "Project root (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.FilterScript, "filter", "", "Lua script defining filter(level, text, url)")
	flag.BoolVar(&opts.Watch, "watch", false, "Apply saved files to loaded scripts")
	flag.BoolVar(&opts.Watch, "w", false, "Apply saved files to loaded scripts (shorthand)")
	flag.BoolVar(&opts.TUI, "tui", false, "Show console output in a scrolling terminal view")
	flag.StringVar(&cmd.eval, "eval", "", "Evaluate an expression in the page and exit")
	flag.BoolVar(&cmd.reload, "reload", false, "Reload the page and exit")
	flag.BoolVar(&cmd.list, "list", false, "List debuggable pages and exit")
	flag.StringVar(&cmd.locate, "locate", "", "Print the generated position of file:line[:column] and exit")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "jsinspect - console and live edit for remote JavaScript pages\n\n")
		fmt.Fprintf(os.Stderr, "Usage: jsinspect [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  jsinspect                          Stream console output of the first page\n")
		fmt.Fprintf(os.Stderr, "  jsinspect -t localhost:3000 -w     Attach to a page and live edit on save\n")
		fmt.Fprintf(os.Stderr, "  jsinspect -eval 'document.title'   Evaluate an expression\n")
		fmt.Fprintf(os.Stderr, "  jsinspect -locate src/app.ts:12:5  Find generated code for a source line\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("jsinspect %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	if flag.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "Error: unexpected arguments: %v\n", flag.Args())
		flag.Usage()
		os.Exit(2)
	}

	return opts, cmd
}
