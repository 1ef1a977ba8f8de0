package lua

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/jsinspect/internal/integration/inspector/console"
)

const testFilter = `
function filter(level, text, url)
    if level == "debug" then
        return false
    end
    if url == "vendor.js" then
        return true
    end
    if string.find(text, "secret") then
        return (string.gsub(text, "secret", "***"))
    end
end
`

func TestFilterApply(t *testing.T) {
	f, err := NewFilterFromString(testFilter)
	if err != nil {
		t.Fatalf("NewFilterFromString() error = %v", err)
	}
	defer f.Close()

	tests := []struct {
		name     string
		line     console.Line
		wantKeep bool
		wantText string
	}{
		{
			name:     "dropped by level",
			line:     console.Line{Level: "debug", Text: "debug: noise"},
			wantKeep: false,
			wantText: "debug: noise",
		},
		{
			name:     "kept explicitly",
			line:     console.Line{Level: "log", Text: "log: secret", Location: &console.Location{URL: "vendor.js"}},
			wantKeep: true,
			wantText: "log: secret",
		},
		{
			name:     "rewritten",
			line:     console.Line{Level: "log", Text: "log: secret value"},
			wantKeep: true,
			wantText: "log: *** value",
		},
		{
			name:     "nil result keeps line",
			line:     console.Line{Level: "error", Text: "error: boom"},
			wantKeep: true,
			wantText: "error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, keep := f.Apply(tt.line)
			if keep != tt.wantKeep {
				t.Errorf("keep = %v, want %v", keep, tt.wantKeep)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if got.Level != tt.line.Level {
				t.Errorf("Level = %q, want %q", got.Level, tt.line.Level)
			}
		})
	}
}

func TestFilterScriptErrorKeepsLine(t *testing.T) {
	f, err := NewFilterFromString(`function filter(level, text, url) error("bad") end`)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	line := console.Line{Level: "log", Text: "log: hi"}
	got, keep := f.Apply(line)
	if !keep || got.Text != line.Text {
		t.Errorf("Apply() = %+v, %v; want line kept unchanged", got, keep)
	}
}

func TestFilterMissingFunction(t *testing.T) {
	_, err := NewFilterFromString(`x = 1`)
	if !errors.Is(err, ErrNoFilterFunction) {
		t.Errorf("error = %v, want ErrNoFilterFunction", err)
	}
}

func TestNewFilterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filter.lua")
	if err := os.WriteFile(path, []byte(testFilter), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := NewFilter(path)
	if err != nil {
		t.Fatalf("NewFilter() error = %v", err)
	}
	defer f.Close()

	if _, keep := f.Apply(console.Line{Level: "debug"}); keep {
		t.Error("debug line should be dropped")
	}

	if _, err := NewFilter(filepath.Join(t.TempDir(), "missing.lua")); err == nil {
		t.Error("NewFilter(missing) should fail")
	}
}
