package sourcemap

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLazyFrom(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "js", "app.js.map"), roundTripMap)
	if err := os.MkdirAll(filepath.Join(root, "dir.map"), 0755); err != nil {
		t.Fatal(err)
	}

	g := NewGateway(root)

	tests := []struct {
		name      string
		url       string
		wantState State
	}{
		{"http url", "http://localhost:8080/js/app.js.map", StateUnresolved},
		{"url with query", "http://localhost:8080/js/app.js.map?v=3", StateUnresolved},
		{"absolute path", "/js/app.js.map", StateUnresolved},
		{"relative path", "js/app.js.map", StateUnresolved},
		{"missing file", "http://localhost:8080/js/other.js.map", StateAbsent},
		{"directory", "/dir.map", StateAbsent},
		{"empty", "", StateAbsent},
		{"data url", "data:application/json;base64,e30=", StateAbsent},
		{"escapes root", "../../etc/passwd", StateAbsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := g.LazyFrom(tt.url)
			if ref.State() != tt.wantState {
				t.Errorf("LazyFrom(%q) state = %v, want %v", tt.url, ref.State(), tt.wantState)
			}
		})
	}

	if g.Parses() != 0 {
		t.Errorf("LazyFrom read %d files, want 0", g.Parses())
	}
}

func TestResolveParsesOnce(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js.map"), roundTripMap)

	g := NewGateway(root)
	ref := g.LazyFrom("/app.js.map")
	if ref.State() != StateUnresolved {
		t.Fatalf("state = %v, want unresolved", ref.State())
	}

	m1 := g.Resolve(ref)
	m2 := g.Resolve(ref)
	if m1 == nil {
		t.Fatal("Resolve returned nil")
	}
	if m1 != m2 {
		t.Error("second Resolve returned a different map")
	}
	if ref.State() != StateResolved {
		t.Errorf("state = %v, want resolved", ref.State())
	}
	if g.Parses() != 1 {
		t.Errorf("Parses() = %d, want 1", g.Parses())
	}
}

func TestResolveConcurrent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "app.js.map"), roundTripMap)

	g := NewGateway(root)
	ref := g.LazyFrom("/app.js.map")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Resolve(ref) == nil {
				t.Error("Resolve returned nil")
			}
		}()
	}
	wg.Wait()

	if g.Parses() != 1 {
		t.Errorf("Parses() = %d, want 1", g.Parses())
	}
}

func TestResolveUnparsableBecomesAbsent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "bad.js.map"), "not a source map")

	g := NewGateway(root)
	ref := g.LazyFrom("/bad.js.map")

	if m := g.Resolve(ref); m != nil {
		t.Error("Resolve of an unparsable file returned a map")
	}
	if ref.State() != StateAbsent {
		t.Errorf("state = %v, want absent", ref.State())
	}
	g.Resolve(ref)
	if g.Parses() != 1 {
		t.Errorf("Parses() = %d, want 1", g.Parses())
	}
}

func TestResolveAbsentAndResolved(t *testing.T) {
	g := NewGateway(t.TempDir())

	if g.Resolve(Absent()) != nil {
		t.Error("Resolve(Absent) returned a map")
	}
	if g.Resolve(nil) != nil {
		t.Error("Resolve(nil) returned a map")
	}

	m := mustParse(t, roundTripMap)
	if g.Resolve(Resolved(m)) != m {
		t.Error("Resolve(Resolved) did not return the same map")
	}
	if Resolved(nil).State() != StateAbsent {
		t.Error("Resolved(nil) must be absent")
	}
	if g.Parses() != 0 {
		t.Errorf("Parses() = %d, want 0", g.Parses())
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		script, mapURL, want string
	}{
		{"http://localhost/js/app.js", "app.js.map", "http://localhost/js/app.js.map"},
		{"http://localhost/js/app.js", "/maps/app.js.map", "http://localhost/maps/app.js.map"},
		{"http://localhost/js/app.js", "http://cdn/app.js.map", "http://cdn/app.js.map"},
		{"http://localhost/js/app.js", "", ""},
		{"http://localhost/js/app.js", "data:application/json,{}", "data:application/json,{}"},
	}

	for _, tt := range tests {
		if got := ResolveURL(tt.script, tt.mapURL); got != tt.want {
			t.Errorf("ResolveURL(%q, %q) = %q, want %q", tt.script, tt.mapURL, got, tt.want)
		}
	}
}
