package app

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tidwall/pretty"

	"github.com/dshills/jsinspect/internal/integration/inspector/cdp"
	"github.com/dshills/jsinspect/internal/integration/inspector/discovery"
)

// ListTargets writes the usable pages at the configured endpoint.
func (app *Application) ListTargets(ctx context.Context, w io.Writer) error {
	client := discovery.NewClient(app.config.Remote.Host, app.config.Remote.Port, nil)
	pages, err := client.Pages(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tURL")
	for _, p := range pages {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Title, p.URL)
	}
	return tw.Flush()
}

// Evaluate evaluates expression in the page and writes the result.
func (app *Application) Evaluate(ctx context.Context, expression string, w io.Writer) error {
	type outcome struct {
		res cdp.EvaluateResult
		err error
	}
	ch := make(chan outcome, 1)

	_, err := app.session.Evaluate(ctx, expression, func(res cdp.EvaluateResult, err error) {
		ch <- outcome{res, err}
	})
	if err != nil {
		return err
	}

	select {
	case o := <-ch:
		if o.err != nil {
			return o.err
		}
		if o.res.WasThrown {
			return fmt.Errorf("%w: %s", ErrEvaluationThrew, FormatRemoteObject(o.res.Result))
		}
		_, err := fmt.Fprintln(w, FormatRemoteObject(o.res.Result))
		return err
	case <-app.session.Done():
		return ErrDisconnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FormatRemoteObject renders an evaluation result: by-value results as
// indented JSON, others by description or type.
func FormatRemoteObject(obj cdp.RemoteObject) string {
	if len(obj.Value) > 0 {
		return strings.TrimRight(string(pretty.Pretty(obj.Value)), "\n")
	}
	if obj.Description != "" {
		return obj.Description
	}
	return obj.Type
}

// Reload reloads the page bypassing the cache.
func (app *Application) Reload(ctx context.Context) error {
	return app.session.Reload(ctx)
}

// Locate writes the generated position of an original source location given
// as file:line[:column], 1-based.
func (app *Application) Locate(ctx context.Context, arg string, w io.Writer) error {
	file, line, column, err := ParseLocation(arg)
	if err != nil {
		return err
	}

	if err := app.session.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	app.waitForScripts(ctx)

	rec, pos, err := app.session.ScriptForOriginal(file, line-1, column-1)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s:%d:%d\tscript %s\n", pos.Source, pos.Line+1, pos.Column+1, rec.ID)
	return err
}

// waitForScripts returns once no script has been parsed for scriptSettle.
// Scripts already loaded in the page are reported right after Debugger.enable.
func (app *Application) waitForScripts(ctx context.Context) {
	registry := app.session.Registry()
	ticker := time.NewTicker(app.scriptSettle / 5)
	defer ticker.Stop()

	last := registry.Len()
	quietSince := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n := registry.Len()
			if n != last {
				last = n
				quietSince = time.Now()
				continue
			}
			if time.Since(quietSince) >= app.scriptSettle {
				return
			}
		}
	}
}

// ParseLocation splits file:line[:column]. Column defaults to 1.
func ParseLocation(arg string) (file string, line, column int, err error) {
	parts := strings.Split(arg, ":")
	nums := make([]int, 0, 2)
	for len(parts) > 1 && len(nums) < 2 {
		n, convErr := strconv.Atoi(parts[len(parts)-1])
		if convErr != nil {
			break
		}
		nums = append([]int{n}, nums...)
		parts = parts[:len(parts)-1]
	}

	file = strings.Join(parts, ":")
	if file == "" || len(nums) == 0 {
		return "", 0, 0, fmt.Errorf("%w: %q, want file:line[:column]", ErrInvalidLocation, arg)
	}
	line, column = nums[0], 1
	if len(nums) == 2 {
		column = nums[1]
	}
	if line < 1 || column < 1 {
		return "", 0, 0, fmt.Errorf("%w: %q, line and column start at 1", ErrInvalidLocation, arg)
	}
	return file, line, column, nil
}
