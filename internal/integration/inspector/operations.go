package inspector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dshills/jsinspect/internal/integration/inspector/cdp"
	"github.com/dshills/jsinspect/internal/integration/inspector/scripts"
	"github.com/dshills/jsinspect/internal/integration/inspector/sourcemap"
)

// Evaluate runs expression in the page and passes the by-value result to cb.
func (s *Session) Evaluate(ctx context.Context, expression string, cb func(cdp.EvaluateResult, error)) (int64, error) {
	var callback cdp.Callback
	if cb != nil {
		callback = func(result json.RawMessage, err error) {
			if err != nil {
				cb(cdp.EvaluateResult{}, err)
				return
			}
			var res cdp.EvaluateResult
			if err := json.Unmarshal(result, &res); err != nil {
				cb(cdp.EvaluateResult{}, fmt.Errorf("decode evaluate result: %w", err))
				return
			}
			cb(res, nil)
		}
	}

	return s.Call(ctx, cdp.MethodRuntimeEvaluate, cdp.EvaluateParams{
		Expression:    expression,
		ReturnByValue: true,
	}, callback)
}

// SetScriptSource replaces the source of a parsed script.
func (s *Session) SetScriptSource(ctx context.Context, scriptID, source string, cb cdp.Callback) (int64, error) {
	return s.Call(ctx, cdp.MethodDebuggerSetScriptSource, cdp.SetScriptSourceParams{
		ScriptID:     scriptID,
		ScriptSource: source,
	}, cb)
}

// Reload reloads the page, bypassing the cache.
func (s *Session) Reload(ctx context.Context) error {
	_, err := s.Call(ctx, cdp.MethodPageReload, cdp.ReloadParams{IgnoreCache: true}, nil)
	return err
}

// ApplyEdit pushes source as the new content of the script whose URL ends
// with filename. If no script matches, nothing is sent and the error wraps
// ErrNoMatchingScript.
func (s *Session) ApplyEdit(ctx context.Context, filename, source string, cb cdp.Callback) (*scripts.Record, error) {
	rec, ok := s.registry.FindByFilename(filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingScript, filename)
	}

	if _, err := s.SetScriptSource(ctx, rec.ID, source, cb); err != nil {
		return nil, fmt.Errorf("apply edit to %s: %w", rec.URL, err)
	}
	s.logger.Info("applied edit", "file", filename, "script", rec.URL)
	return rec, nil
}

// ScriptForOriginal finds the parsed script generated from an original source
// file and the generated position of line and column (both 0-based) in it.
// path may be absolute or relative to the project root. The most recently
// parsed script wins when several maps contain the source.
func (s *Session) ScriptForOriginal(path string, line, column int) (*scripts.Record, sourcemap.Position, error) {
	source := s.relativeSource(path)

	recs := s.registry.Records()
	for i := len(recs) - 1; i >= 0; i-- {
		rec := recs[i]
		m := s.gateway.Resolve(rec.SourceMap)
		if m == nil {
			continue
		}
		if pos, ok := m.GeneratedPositionFor(source, line, column); ok {
			pos.Source = rec.URL
			return rec, pos, nil
		}
	}

	return nil, sourcemap.Position{}, fmt.Errorf("%w: %s:%d:%d", ErrNoGeneratedPosition, source, line, column)
}
