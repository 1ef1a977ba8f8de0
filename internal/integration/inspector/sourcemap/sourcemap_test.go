package sourcemap

import (
	"errors"
	"testing"
)

// One mapping on generated line 1: column 5 -> a.js line 1 column 4.
const roundTripMap = `{
	"version": 3,
	"file": "out.js",
	"sources": ["a.js"],
	"names": [],
	"mappings": ";KACI"
}`

func mustParse(t *testing.T, data string) *Map {
	t.Helper()
	m, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return m
}

func TestRoundTrip(t *testing.T) {
	m := mustParse(t, roundTripMap)

	orig, ok := m.OriginalPositionFor(1, 5)
	if !ok {
		t.Fatal("OriginalPositionFor(1, 5) found nothing")
	}
	if orig.Source != "a.js" || orig.Line != 1 || orig.Column != 4 {
		t.Errorf("OriginalPositionFor(1, 5) = %+v, want a.js:1:4", orig)
	}

	gen, ok := m.GeneratedPositionFor("a.js", 1, 4)
	if !ok {
		t.Fatal("GeneratedPositionFor(a.js, 1, 4) found nothing")
	}
	if gen.Line != 1 || gen.Column != 5 {
		t.Errorf("GeneratedPositionFor(a.js, 1, 4) = %+v, want 1:5", gen)
	}
}

func TestOriginalPositionNearestPreceding(t *testing.T) {
	// Line 0: col 0 -> a.js 0:0, col 10 -> a.js 2:3 (name "foo").
	m := mustParse(t, `{
		"version": 3,
		"sources": ["a.js"],
		"names": ["foo"],
		"mappings": "AAAA,UAEGA"
	}`)

	tests := []struct {
		name       string
		line, col  int
		wantOK     bool
		wantLine   int
		wantColumn int
		wantName   string
	}{
		{"exact first", 0, 0, true, 0, 0, ""},
		{"between", 0, 7, true, 0, 0, ""},
		{"exact second", 0, 10, true, 2, 3, "foo"},
		{"past last", 0, 99, true, 2, 3, "foo"},
		{"no such line", 1, 0, false, 0, 0, ""},
		{"negative line", -1, 0, false, 0, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos, ok := m.OriginalPositionFor(tt.line, tt.col)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if pos.Line != tt.wantLine || pos.Column != tt.wantColumn || pos.Name != tt.wantName {
				t.Errorf("pos = %+v", pos)
			}
		})
	}
}

func TestOriginalPositionBeforeFirstSegment(t *testing.T) {
	// Line 0: first segment at column 4.
	m := mustParse(t, `{"version":3,"sources":["a.js"],"names":[],"mappings":"IAAA"}`)
	if _, ok := m.OriginalPositionFor(0, 2); ok {
		t.Error("position before the first segment must not map")
	}
}

func TestOriginalPositionUnmappedSegment(t *testing.T) {
	// Line 0: col 0 -> a.js 0:0, col 5 has no source.
	m := mustParse(t, `{"version":3,"sources":["a.js"],"names":[],"mappings":"AAAA,K"}`)
	if _, ok := m.OriginalPositionFor(0, 6); ok {
		t.Error("segment without a source must not map")
	}
}

func TestSourceRoot(t *testing.T) {
	m := mustParse(t, `{"version":3,"sourceRoot":"webpack:///src/","sources":["app.js"],"names":[],"mappings":"AAAA"}`)

	pos, ok := m.OriginalPositionFor(0, 0)
	if !ok {
		t.Fatal("no mapping")
	}
	if pos.Source != "webpack:///src/app.js" {
		t.Errorf("Source = %q", pos.Source)
	}

	if _, ok := m.GeneratedPositionFor("src/app.js", 0, 0); !ok {
		t.Error("GeneratedPositionFor with a trailing path did not match")
	}
	if _, ok := m.GeneratedPositionFor("app.js", 0, 0); !ok {
		t.Error("GeneratedPositionFor with a file name did not match")
	}
	if _, ok := m.GeneratedPositionFor("pp.js", 0, 0); ok {
		t.Error("partial file name must not match")
	}
}

func TestGeneratedPositionUnknownSource(t *testing.T) {
	m := mustParse(t, roundTripMap)
	if _, ok := m.GeneratedPositionFor("b.js", 1, 4); ok {
		t.Error("unknown source must not map")
	}
	if _, ok := m.GeneratedPositionFor("a.js", 7, 0); ok {
		t.Error("unknown line must not map")
	}
	if m.HasSource("b.js") || !m.HasSource("a.js") {
		t.Error("HasSource mismatch")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"not json", `{`, nil},
		{"version 2", `{"version":2,"sources":[],"mappings":""}`, ErrUnsupportedVersion},
		{"index map", `{"version":3,"sections":[{"offset":{"line":0,"column":0}}]}`, ErrIndexMap},
		{"bad base64", `{"version":3,"sources":["a.js"],"mappings":"A!AA"}`, nil},
		{"truncated", `{"version":3,"sources":["a.js"],"mappings":"g"}`, nil},
		{"two fields", `{"version":3,"sources":["a.js"],"mappings":"AA"}`, nil},
		{"source out of range", `{"version":3,"sources":["a.js"],"mappings":"ACAA"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseXSSIPrefix(t *testing.T) {
	if _, err := Parse([]byte(")]}'" + roundTripMap)); err != nil {
		t.Errorf("Parse with XSSI prefix: %v", err)
	}
}

func TestDecodeVLQ(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"A", 0},
		{"C", 1},
		{"D", -1},
		{"K", 5},
		{"U", 10},
		{"gB", 16},
		{"hB", -16},
	}

	for _, tt := range tests {
		got, next, err := decodeVLQ(tt.in, 0)
		if err != nil {
			t.Errorf("decodeVLQ(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("decodeVLQ(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if next != len(tt.in) {
			t.Errorf("decodeVLQ(%q) consumed %d, want %d", tt.in, next, len(tt.in))
		}
	}
}
