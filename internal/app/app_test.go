package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dshills/jsinspect/internal/integration/inspector"
	"github.com/dshills/jsinspect/internal/integration/inspector/cdp"
	"github.com/dshills/jsinspect/internal/integration/inspector/discovery"
)

// fakeRemote answers every request, with canned results per method, and
// pushes notifications once the debugger is enabled.
type fakeRemote struct {
	mu       sync.Mutex
	methods  []string
	results  map[string]string
	onEnable []string

	in        chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		results: make(map[string]string),
		in:      make(chan []byte, 64),
		closed:  make(chan struct{}),
	}
}

func (f *fakeRemote) Send(data []byte) error {
	var req cdp.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	f.mu.Lock()
	f.methods = append(f.methods, req.Method)
	result, ok := f.results[req.Method]
	notes := f.onEnable
	f.mu.Unlock()

	if !ok {
		result = "{}"
	}
	f.in <- []byte(fmt.Sprintf(`{"id":%d,"result":%s}`, req.ID, result))
	if req.Method == cdp.MethodDebuggerEnable {
		for _, n := range notes {
			f.in <- []byte(n)
		}
	}
	return nil
}

func (f *fakeRemote) Receive() ([]byte, error) {
	select {
	case data := <-f.in:
		return data, nil
	case <-f.closed:
		return nil, cdp.ErrTransportClosed
	}
}

func (f *fakeRemote) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeRemote) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.methods...)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func noEnv() []string { return nil }

func newTestApp(t *testing.T, remote *fakeRemote, opts Options) (*Application, *syncBuffer) {
	t.Helper()

	out := &syncBuffer{}
	opts.Stdout = out
	opts.Stderr = &syncBuffer{}
	opts.Environ = noEnv
	if opts.ConfigPath == "" {
		// Keep a developer's own config file out of the test.
		opts.ConfigPath = filepath.Join(t.TempDir(), "empty.toml")
		if err := os.WriteFile(opts.ConfigPath, nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	opts.SessionOptions = append(opts.SessionOptions,
		inspector.WithDialer(func(context.Context, string) (cdp.Transport, error) {
			return remote, nil
		}),
		inspector.WithTargetFinder(func(context.Context) (discovery.Target, error) {
			return discovery.Target{
				ID:                   "page-1",
				Type:                 "page",
				Title:                "App",
				URL:                  "http://localhost:3000/",
				WebSocketDebuggerURL: "ws://127.0.0.1:9222/devtools/page/page-1",
			}, nil
		}),
	)

	app, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(app.Shutdown)
	return app, out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func consoleNote(level, text string) string {
	return fmt.Sprintf(`{"method":"Console.messageAdded","params":{"message":{"source":"console-api","level":%q,"text":%q}}}`, level, text)
}

func TestNewAppliesOverrides(t *testing.T) {
	app, _ := newTestApp(t, newFakeRemote(), Options{
		Host:     "10.0.0.2",
		Port:     9333,
		Root:     "/srv/app",
		Target:   "localhost:3000",
		LogLevel: "debug",
		Watch:    true,
	})

	cfg := app.Config()
	if cfg.Remote.Host != "10.0.0.2" || cfg.Remote.Port != 9333 || cfg.Remote.Target != "localhost:3000" {
		t.Errorf("Remote = %+v", cfg.Remote)
	}
	if cfg.Project.Root != "/srv/app" || cfg.Logging.Level != "debug" || !cfg.Watch.Enabled {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(Options{LogLevel: "loud", Environ: noEnv, Stdout: &syncBuffer{}, Stderr: &syncBuffer{}})
	if err == nil {
		t.Fatal("New() should reject an invalid log level")
	}

	_, err = New(Options{
		FilterScript: filepath.Join(t.TempDir(), "missing.lua"),
		Environ:      noEnv,
		Stdout:       &syncBuffer{},
		Stderr:       &syncBuffer{},
	})
	if err == nil {
		t.Fatal("New() should fail when the filter script is missing")
	}
}

func TestRunStreamsFilteredConsole(t *testing.T) {
	filter := filepath.Join(t.TempDir(), "filter.lua")
	script := `function filter(level, text, url) if level == "debug" then return false end end`
	if err := os.WriteFile(filter, []byte(script), 0644); err != nil {
		t.Fatal(err)
	}

	remote := newFakeRemote()
	remote.onEnable = []string{
		consoleNote("debug", "noise"),
		consoleNote("log", "hello"),
	}
	app, out := newTestApp(t, remote, Options{FilterScript: filter})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	waitFor(t, "console output", func() bool { return strings.Contains(out.String(), "log: hello") })
	if strings.Contains(out.String(), "noise") {
		t.Errorf("filtered line printed: %q", out.String())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunReportsDisconnect(t *testing.T) {
	remote := newFakeRemote()
	app, _ := newTestApp(t, remote, Options{})

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	waitFor(t, "connection", app.Session().IsConnected)
	remote.Close()

	select {
	case err := <-done:
		if !errors.Is(err, ErrDisconnected) {
			t.Errorf("Run() = %v, want ErrDisconnected", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the connection dropped")
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		want    string
		wantErr error
	}{
		{
			name:   "object value",
			result: `{"result":{"type":"object","value":{"a":1}}}`,
			want:   `"a": 1`,
		},
		{
			name:   "number value",
			result: `{"result":{"type":"number","value":42,"description":"42"}}`,
			want:   "42",
		},
		{
			name:   "undefined",
			result: `{"result":{"type":"undefined"}}`,
			want:   "undefined",
		},
		{
			name:    "thrown",
			result:  `{"result":{"type":"object","description":"ReferenceError: x is not defined"},"wasThrown":true}`,
			wantErr: ErrEvaluationThrew,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newFakeRemote()
			remote.results[cdp.MethodRuntimeEvaluate] = tt.result
			app, _ := newTestApp(t, remote, Options{})

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			var out bytes.Buffer
			err := app.Evaluate(ctx, "x", &out)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Evaluate() = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Evaluate() = %v", err)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Errorf("output = %q, want %q", out.String(), tt.want)
			}
		})
	}
}

func TestEvaluateProtocolError(t *testing.T) {
	remote := newFakeRemote()
	app, _ := newTestApp(t, remote, Options{})

	// Replace the canned reply with an error reply.
	remote.results[cdp.MethodRuntimeEvaluate] = `null,"error":{"code":-32000,"message":"Cannot find context"}`

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var perr *cdp.ProtocolError
	if err := app.Evaluate(ctx, "x", &bytes.Buffer{}); !errors.As(err, &perr) {
		t.Errorf("Evaluate() = %v, want *cdp.ProtocolError", err)
	}
}

func TestReload(t *testing.T) {
	remote := newFakeRemote()
	app, _ := newTestApp(t, remote, Options{})

	if err := app.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() = %v", err)
	}
	methods := remote.sent()
	if methods[len(methods)-1] != cdp.MethodPageReload {
		t.Errorf("methods = %v, want Page.reload last", methods)
	}
}

func TestLocate(t *testing.T) {
	root := t.TempDir()
	sourceMap := `{"version":3,"file":"app.min.js","sources":["a.js"],"names":[],"mappings":";KACI"}`
	if err := os.WriteFile(filepath.Join(root, "app.min.js.map"), []byte(sourceMap), 0644); err != nil {
		t.Fatal(err)
	}

	remote := newFakeRemote()
	remote.onEnable = []string{
		`{"method":"Debugger.scriptParsed","params":{"scriptId":"11","url":"http://localhost:3000/app.min.js","sourceMapURL":"app.min.js.map"}}`,
	}
	app, _ := newTestApp(t, remote, Options{Root: root})
	app.scriptSettle = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	if err := app.Locate(ctx, "a.js:2:5", &out); err != nil {
		t.Fatalf("Locate() = %v", err)
	}
	if want := "http://localhost:3000/app.min.js:2:6\tscript 11\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}

	if err := app.Locate(ctx, "b.js:1", &out); !errors.Is(err, inspector.ErrNoGeneratedPosition) {
		t.Errorf("Locate(unknown) = %v, want ErrNoGeneratedPosition", err)
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		arg      string
		file      string
		line, col int
		wantErr   bool
	}{
		{arg: "src/app.ts:10:4", file: "src/app.ts", line: 10, col: 4},
		{arg: "src/app.ts:10", file: "src/app.ts", line: 10, col: 1},
		{arg: `C:\src\app.ts:3:2`, file: `C:\src\app.ts`, line: 3, col: 2},
		{arg: "src/app.ts", wantErr: true},
		{arg: ":1:2", wantErr: true},
		{arg: "app.ts:0:1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			file, line, col, err := ParseLocation(tt.arg)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidLocation) {
					t.Errorf("ParseLocation() error = %v, want ErrInvalidLocation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLocation() error = %v", err)
			}
			if file != tt.file || line != tt.line || col != tt.col {
				t.Errorf("ParseLocation() = %q, %d, %d", file, line, col)
			}
		})
	}
}

func TestListTargets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"id":"bg","type":"service_worker","title":"SW","url":"http://localhost/sw.js"},
			{"id":"p1","type":"page","title":"App","url":"http://localhost:3000/","webSocketDebuggerUrl":"ws://x/p1"}
		]`)
	}))
	defer srv.Close()

	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	app, _ := newTestApp(t, newFakeRemote(), Options{Host: host, Port: port})

	var out bytes.Buffer
	if err := app.ListTargets(context.Background(), &out); err != nil {
		t.Fatalf("ListTargets() = %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q, want header and one page", out.String())
	}
	if fields := strings.Fields(lines[1]); len(fields) != 3 || fields[0] != "p1" || fields[2] != "http://localhost:3000/" {
		t.Errorf("page row = %q", lines[1])
	}
}
