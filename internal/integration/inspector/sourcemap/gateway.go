// Package sourcemap maps generated script locations back to original sources.
//
// The Gateway hands out lazy references when a script is parsed and only reads
// and decodes the map file the first time a location has to be translated.
package sourcemap

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

// State is the resolution state of a Ref.
type State int

const (
	// StateUnresolved means a local map file exists but has not been parsed.
	StateUnresolved State = iota
	// StateAbsent means there is no usable map.
	StateAbsent
	// StateResolved means the map has been parsed.
	StateResolved
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateAbsent:
		return "absent"
	case StateResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Ref is a script's handle on its source map. It moves from Unresolved to
// Resolved (or Absent, if the file cannot be parsed) at most once.
type Ref struct {
	mu    sync.Mutex
	state State
	path  string
	m     *Map
}

// Unresolved returns a ref to a map file that has not been read yet.
func Unresolved(path string) *Ref {
	return &Ref{state: StateUnresolved, path: path}
}

// Absent returns a ref with no map.
func Absent() *Ref {
	return &Ref{state: StateAbsent}
}

// Resolved returns a ref holding an already parsed map.
func Resolved(m *Map) *Ref {
	if m == nil {
		return Absent()
	}
	return &Ref{state: StateResolved, m: m}
}

// State returns the current state.
func (r *Ref) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Path returns the local file path, empty for Absent refs.
func (r *Ref) Path() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.path
}

// Gateway resolves source-map URLs against a local project root.
type Gateway struct {
	root     string
	logger   *slog.Logger
	readFile func(string) ([]byte, error)
	parses   atomic.Int64
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the gateway logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

// WithReadFile replaces the function used to read map files.
func WithReadFile(fn func(string) ([]byte, error)) Option {
	return func(g *Gateway) {
		g.readFile = fn
	}
}

// NewGateway creates a gateway that maps URL paths onto root.
func NewGateway(root string, opts ...Option) *Gateway {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	g := &Gateway{
		root:     root,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		readFile: os.ReadFile,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Root returns the project root.
func (g *Gateway) Root() string {
	return g.root
}

// Parses returns how many times the gateway has read a map file for parsing.
func (g *Gateway) Parses() int64 {
	return g.parses.Load()
}

// LazyFrom returns an Unresolved ref when sourceMapURL names an existing file
// under the project root, and an Absent ref otherwise. The file is not read.
func (g *Gateway) LazyFrom(sourceMapURL string) *Ref {
	local, ok := g.LocalPath(sourceMapURL)
	if !ok {
		return Absent()
	}

	info, err := os.Stat(local)
	if err != nil || !info.Mode().IsRegular() {
		return Absent()
	}
	return Unresolved(local)
}

// LocalPath maps a URL or URL path onto the project root. It fails for empty
// and data: URLs and for paths that would escape the root.
func (g *Gateway) LocalPath(rawURL string) (string, bool) {
	if rawURL == "" || strings.HasPrefix(rawURL, "data:") {
		return "", false
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	if p == "" {
		return "", false
	}

	local := filepath.Join(g.root, filepath.FromSlash(p))
	rel, err := filepath.Rel(g.root, local)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return local, true
}

// Resolve returns the parsed map for ref, parsing it on first use. It returns
// nil for Absent refs and for map files that cannot be read or parsed; such a
// ref becomes Absent so the file is not tried again.
func (g *Gateway) Resolve(ref *Ref) *Map {
	if ref == nil {
		return nil
	}

	ref.mu.Lock()
	defer ref.mu.Unlock()

	switch ref.state {
	case StateResolved:
		return ref.m
	case StateAbsent:
		return nil
	}

	g.parses.Add(1)
	data, err := g.readFile(ref.path)
	if err != nil {
		g.logger.Debug("source map unreadable", "path", ref.path, "error", err)
		ref.state = StateAbsent
		return nil
	}

	m, err := Parse(data)
	if err != nil {
		g.logger.Debug("source map unparsable", "path", ref.path, "error", err)
		ref.state = StateAbsent
		return nil
	}

	ref.state = StateResolved
	ref.m = m
	return m
}

// ResolveURL resolves a sourceMappingURL against the URL of the script that
// declared it. Absolute map URLs are returned unchanged.
func ResolveURL(scriptURL, sourceMapURL string) string {
	if sourceMapURL == "" || strings.HasPrefix(sourceMapURL, "data:") {
		return sourceMapURL
	}
	base, err := url.Parse(scriptURL)
	if err != nil {
		return sourceMapURL
	}
	ref, err := url.Parse(sourceMapURL)
	if err != nil {
		return sourceMapURL
	}
	return base.ResolveReference(ref).String()
}
