package scripts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/jsinspect/internal/integration/inspector/sourcemap"
)

// stubMaps records the URLs it was asked about and returns unresolved refs.
type stubMaps struct {
	urls []string
}

func (s *stubMaps) LazyFrom(u string) *sourcemap.Ref {
	s.urls = append(s.urls, u)
	return sourcemap.Unresolved("/maps/" + u)
}

func TestOnScriptParsedReplacesSameURL(t *testing.T) {
	r := NewRegistry(&stubMaps{})

	r.OnScriptParsed(Parsed{ID: "1", URL: "http://x/app.js", SourceMapURL: "app.js.map"})
	second := r.OnScriptParsed(Parsed{ID: "2", URL: "http://x/app.js", SourceMapURL: "app2.js.map"})

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}

	rec, ok := r.FindByFilename("app.js")
	if !ok {
		t.Fatal("FindByFilename found nothing")
	}
	if rec != second || rec.ID != "2" {
		t.Errorf("record = %+v, want id 2", rec)
	}
	if rec.SourceMap.Path() != "/maps/http://x/app2.js.map" {
		t.Errorf("source map path = %q", rec.SourceMap.Path())
	}

	if _, ok := r.FindByID("1"); ok {
		t.Error("old id still indexed")
	}
	if got, ok := r.FindByID("2"); !ok || got != second {
		t.Error("new id not indexed")
	}
}

func TestOnScriptParsedDrops(t *testing.T) {
	maps := &stubMaps{}
	r := NewRegistry(maps)

	tests := []struct {
		name string
		meta Parsed
	}{
		{"content script", Parsed{ID: "1", URL: "chrome-extension://x/c.js", IsContentScript: true}},
		{"empty url", Parsed{ID: "2", URL: ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := r.Len()
			if rec := r.OnScriptParsed(tt.meta); rec != nil {
				t.Errorf("OnScriptParsed returned %+v, want nil", rec)
			}
			if r.Len() != before {
				t.Errorf("Len() = %d, want %d", r.Len(), before)
			}
		})
	}

	if len(maps.urls) != 0 {
		t.Errorf("dropped scripts consulted the gateway: %v", maps.urls)
	}
}

func TestOnScriptParsedWithoutSourceMap(t *testing.T) {
	maps := &stubMaps{}
	r := NewRegistry(maps)

	rec := r.OnScriptParsed(Parsed{ID: "1", URL: "http://x/plain.js"})
	if rec.SourceMap.State() != sourcemap.StateAbsent {
		t.Errorf("state = %v, want absent", rec.SourceMap.State())
	}
	if len(maps.urls) != 0 {
		t.Error("gateway consulted for a script without sourceMapURL")
	}
}

func TestOnScriptParsedWithGateway(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "js"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "js", "app.js.map"), []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(sourcemap.NewGateway(root))
	rec := r.OnScriptParsed(Parsed{ID: "9", URL: "http://localhost:8080/js/app.js", SourceMapURL: "app.js.map"})

	if rec.SourceMap.State() != sourcemap.StateUnresolved {
		t.Errorf("state = %v, want unresolved", rec.SourceMap.State())
	}
}

func TestRemove(t *testing.T) {
	r := NewRegistry(nil)
	rec := r.OnScriptParsed(Parsed{ID: "1", URL: "http://x/a.js"})

	if !r.Remove(rec) {
		t.Error("Remove reported missing record")
	}
	if r.Remove(rec) {
		t.Error("second Remove reported success")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, ok := r.FindByID("1"); ok {
		t.Error("removed record still found by id")
	}
	if r.Remove(nil) {
		t.Error("Remove(nil) reported success")
	}
}

func TestRemoveStaleRecord(t *testing.T) {
	r := NewRegistry(nil)
	old := r.OnScriptParsed(Parsed{ID: "1", URL: "http://x/a.js"})
	r.OnScriptParsed(Parsed{ID: "2", URL: "http://x/a.js"})

	if r.Remove(old) {
		t.Error("Remove of a replaced record must not evict its successor")
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestFindByID(t *testing.T) {
	r := NewRegistry(nil)
	r.OnScriptParsed(Parsed{ID: "7", URL: "http://x/a.js"})

	if rec, ok := r.FindByID("7"); !ok || rec.URL != "http://x/a.js" {
		t.Errorf("FindByID(7) = %+v, %v", rec, ok)
	}
	if _, ok := r.FindByID("8"); ok {
		t.Error("FindByID(8) found a record")
	}
}

func TestFindByFilename(t *testing.T) {
	r := NewRegistry(nil)
	r.OnScriptParsed(Parsed{ID: "1", URL: "http://x/lib/util.js"})
	r.OnScriptParsed(Parsed{ID: "2", URL: "http://x/app.js"})

	rec, ok := r.FindByFilename("app.js")
	if !ok || rec.ID != "2" {
		t.Errorf("FindByFilename(app.js) = %+v, %v", rec, ok)
	}
	if _, ok := r.FindByFilename("main.js"); ok {
		t.Error("FindByFilename(main.js) found a record")
	}
	if _, ok := r.FindByFilename(""); ok {
		t.Error("FindByFilename(\"\") found a record")
	}
}

func TestFindByFilenameAmbiguous(t *testing.T) {
	r := NewRegistry(nil)
	r.OnScriptParsed(Parsed{ID: "1", URL: "http://x/a/index.js"})
	r.OnScriptParsed(Parsed{ID: "2", URL: "http://x/b/index.js"})

	rec, ok := r.FindByFilename("index.js")
	if !ok {
		t.Fatal("FindByFilename found nothing")
	}
	if rec.URL != "http://x/a/index.js" && rec.URL != "http://x/b/index.js" {
		t.Errorf("FindByFilename returned non-matching %q", rec.URL)
	}
}

func TestClearAndRecords(t *testing.T) {
	r := NewRegistry(nil)
	r.OnScriptParsed(Parsed{ID: "1", URL: "http://x/a.js"})
	r.OnScriptParsed(Parsed{ID: "2", URL: "http://x/b.js"})

	recs := r.Records()
	if len(recs) != 2 || recs[0].ID != "1" || recs[1].ID != "2" {
		t.Errorf("Records() = %+v", recs)
	}

	r.Clear()
	if r.Len() != 0 || len(r.Records()) != 0 {
		t.Error("Clear left records behind")
	}
}
