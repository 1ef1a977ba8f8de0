// Package console turns console notifications into display lines, reporting
// locations against original sources where a source map is available.
package console

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/tidwall/gjson"

	"github.com/dshills/jsinspect/internal/integration/inspector/cdp"
	"github.com/dshills/jsinspect/internal/integration/inspector/scripts"
	"github.com/dshills/jsinspect/internal/integration/inspector/sourcemap"
)

// Location is where a console message was emitted.
type Location struct {
	URL    string
	Line   int
	Column int
}

// Line is one formatted console line.
type Line struct {
	Text     string
	Level    string
	Location *Location
	Style    tcell.Style
}

// ScriptLookup finds the script a stack frame belongs to.
type ScriptLookup interface {
	FindByID(id string) (*scripts.Record, bool)
}

// MapResolver turns a script's source-map ref into a parsed map.
type MapResolver interface {
	Resolve(ref *sourcemap.Ref) *sourcemap.Map
}

// Formatter formats console messages. It keeps no state of its own.
type Formatter struct {
	scripts ScriptLookup
	maps    MapResolver
}

// NewFormatter creates a formatter backed by a script registry and a source-map gateway.
func NewFormatter(scripts ScriptLookup, maps MapResolver) *Formatter {
	return &Formatter{scripts: scripts, maps: maps}
}

// Format produces the display line for msg:
//
//	<level>: <parameters>\t<url> (line: L column: C)
func (f *Formatter) Format(msg cdp.ConsoleMessage) Line {
	var b strings.Builder
	b.WriteString(msg.Level)
	b.WriteString(": ")
	b.WriteString(JoinParameters(msg))

	loc := f.locate(msg)
	if loc != nil {
		fmt.Fprintf(&b, "\t%s (line: %d column: %d)", loc.URL, loc.Line, loc.Column)
	}

	return Line{
		Text:     b.String(),
		Level:    msg.Level,
		Location: loc,
		Style:    StyleFor(msg.Level),
	}
}

// locate picks the display location: the first stack frame, translated through
// its script's source map when possible.
func (f *Formatter) locate(msg cdp.ConsoleMessage) *Location {
	if msg.Stack == nil || len(msg.Stack.CallFrames) == 0 {
		if msg.URL == "" {
			return nil
		}
		return &Location{URL: msg.URL, Line: msg.Line, Column: msg.Column}
	}

	frame := msg.Stack.CallFrames[0]
	raw := &Location{URL: frame.URL, Line: frame.LineNumber, Column: frame.ColumnNumber}
	if raw.URL == "" {
		raw.URL = msg.URL
	}

	if f.scripts == nil {
		return raw
	}
	rec, ok := f.scripts.FindByID(frame.ScriptID)
	if !ok {
		return raw
	}
	raw.URL = rec.URL

	if f.maps == nil {
		return raw
	}
	m := f.maps.Resolve(rec.SourceMap)
	if m == nil {
		return raw
	}

	// Frame columns are 1-based; map columns are 0-based.
	pos, ok := m.OriginalPositionFor(frame.LineNumber, frame.ColumnNumber-1)
	if !ok {
		return raw
	}
	return &Location{URL: pos.Source, Line: pos.Line, Column: pos.Column}
}

// JoinParameters renders each console parameter and joins them with a space.
// A message without parameters falls back to its text.
func JoinParameters(msg cdp.ConsoleMessage) string {
	if len(msg.Parameters) == 0 {
		return msg.Text
	}

	parts := make([]string, len(msg.Parameters))
	for i, p := range msg.Parameters {
		parts[i] = renderParameter(p)
	}
	return strings.Join(parts, " ")
}

// renderParameter renders a parameter as text. Parameters are either plain JSON
// values or remote objects; strings are shown without quotes.
func renderParameter(raw json.RawMessage) string {
	return renderValue(gjson.ParseBytes(raw))
}

func renderValue(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	if v.IsObject() {
		if typ := v.Get("type").String(); typ != "" {
			if val := v.Get("value"); val.Exists() {
				return renderValue(val)
			}
			if desc := v.Get("description").String(); desc != "" {
				return desc
			}
			return typ
		}
	}
	return v.Raw
}
