package inspector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/jsinspect/internal/integration/inspector/cdp"
	"github.com/dshills/jsinspect/internal/integration/inspector/console"
	"github.com/dshills/jsinspect/internal/integration/inspector/discovery"
	"github.com/dshills/jsinspect/internal/integration/inspector/scripts"
	"github.com/dshills/jsinspect/internal/integration/inspector/sourcemap"
)

// Config configures a session.
type Config struct {
	// Host is the remote debugging host.
	Host string

	// Port is the remote debugging port.
	Port int

	// ProjectRoot is the local directory that source-map URL paths map onto.
	ProjectRoot string

	// Target selects the page whose URL or title contains this text.
	// Empty selects the first page.
	Target string
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Host:        "127.0.0.1",
		Port:        9222,
		ProjectRoot: ".",
	}
}

// Handlers contains callbacks for session events. They run on the session's
// receive goroutine.
type Handlers struct {
	// OnConsole is called with each formatted console line.
	OnConsole func(line console.Line)

	// OnScriptParsed is called after a script is added to the registry.
	OnScriptParsed func(rec *scripts.Record)

	// OnDisconnected is called when the transport drops without Disconnect.
	OnDisconnected func(err error)
}

// TargetFinder picks the page to attach to.
type TargetFinder func(ctx context.Context) (discovery.Target, error)

// Session is one connection to a remote page. It owns the request id counter,
// pending callbacks and the script registry.
type Session struct {
	id     uuid.UUID
	config Config
	logger *slog.Logger

	findTarget TargetFinder
	dial       cdp.Dialer

	correlator *cdp.Correlator
	router     *cdp.Router
	registry   *scripts.Registry
	gateway    *sourcemap.Gateway
	formatter  *console.Formatter

	// connectMu serializes Connect so concurrent auto-connecting calls dial once.
	connectMu sync.Mutex

	mu        sync.Mutex
	transport cdp.Transport
	target    discovery.Target
	loopDone  chan struct{}

	handlers   Handlers
	handlersMu sync.RWMutex
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(dial cdp.Dialer) Option {
	return func(s *Session) {
		s.dial = dial
	}
}

// WithTargetFinder replaces HTTP discovery.
func WithTargetFinder(find TargetFinder) Option {
	return func(s *Session) {
		s.findTarget = find
	}
}

// NewSession creates a disconnected session.
func NewSession(config Config, opts ...Option) *Session {
	s := &Session{
		id:     uuid.New(),
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dial:   cdp.DialWebSocket,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id.String())

	if s.findTarget == nil {
		client := discovery.NewClient(config.Host, config.Port, nil)
		selectTarget := discovery.SelectMatching(config.Target)
		s.findTarget = func(ctx context.Context) (discovery.Target, error) {
			pages, err := client.Pages(ctx)
			if err != nil {
				return discovery.Target{}, err
			}
			return selectTarget(pages)
		}
	}

	s.gateway = sourcemap.NewGateway(config.ProjectRoot, sourcemap.WithLogger(s.logger))
	s.registry = scripts.NewRegistry(s.gateway)
	s.formatter = console.NewFormatter(s.registry, s.gateway)
	s.correlator = cdp.NewCorrelator(nil)
	s.router = cdp.NewRouter(s.correlator, cdp.WithRouterLogger(s.logger))

	s.router.Handle(cdp.KindScriptParsed, s.onScriptParsed)
	s.router.Handle(cdp.KindMessageAdded, s.onMessageAdded)
	s.router.Handle(cdp.KindMessageRepeatCountUpdated, func(json.RawMessage) {})
	s.router.Handle(cdp.KindGlobalObjectCleared, s.onGlobalObjectCleared)
	s.router.Handle(cdp.KindDetached, s.onDetached)

	return s
}

// ID returns the session identifier used in log records.
func (s *Session) ID() string {
	return s.id.String()
}

// SetHandlers sets the session event handlers.
func (s *Session) SetHandlers(handlers Handlers) {
	s.handlersMu.Lock()
	s.handlers = handlers
	s.handlersMu.Unlock()
}

func (s *Session) getHandlers() Handlers {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers
}

// Registry returns the session's script registry.
func (s *Session) Registry() *scripts.Registry {
	return s.registry
}

// Gateway returns the session's source-map gateway.
func (s *Session) Gateway() *sourcemap.Gateway {
	return s.gateway
}

// Correlator returns the session's RPC correlator.
func (s *Session) Correlator() *cdp.Correlator {
	return s.correlator
}

// Target returns the page the session is attached to.
func (s *Session) Target() discovery.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// IsConnected reports whether the transport is open.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport != nil
}

// Connect discovers a target, opens the transport and enables console and
// debugger notifications. It is a no-op when already connected.
func (s *Session) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	if s.IsConnected() {
		return nil
	}

	target, err := s.findTarget(ctx)
	if err != nil {
		return fmt.Errorf("find target: %w", err)
	}

	tr, err := s.dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", target.URL, err)
	}

	// Callbacks left by a dropped connection can never be answered.
	if n := s.correlator.Purge(); n > 0 {
		s.logger.Debug("dropped stale callbacks", "count", n)
	}

	done := make(chan struct{})
	s.mu.Lock()
	s.transport = tr
	s.target = target
	s.loopDone = done
	s.mu.Unlock()
	s.correlator.SetSender(tr)

	go s.receiveLoop(tr, done)

	s.logger.Info("connected", "target", target.URL, "title", target.Title)

	if err := s.bootstrap(); err != nil {
		s.Disconnect()
		return err
	}
	return nil
}

// bootstrap sends the fixed enable sequence without waiting for replies.
func (s *Session) bootstrap() error {
	calls := []struct {
		method string
		params any
	}{
		{cdp.MethodConsoleEnable, nil},
		{cdp.MethodDebuggerEnable, nil},
		{cdp.MethodNetworkSetCacheDisabled, cdp.SetCacheDisabledParams{CacheDisabled: true}},
	}

	for _, c := range calls {
		if _, err := s.correlator.Call(c.method, c.params, nil); err != nil {
			return fmt.Errorf("bootstrap: %w", err)
		}
	}
	return nil
}

// Disconnect closes the transport, clears the script registry and drops
// pending callbacks. Request ids keep increasing across reconnects.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	tr := s.transport
	s.transport = nil
	s.mu.Unlock()
	s.correlator.SetSender(nil)

	s.registry.Clear()
	if n := s.correlator.Purge(); n > 0 {
		s.logger.Debug("dropped pending callbacks", "count", n)
	}

	if tr == nil {
		return nil
	}
	s.logger.Info("disconnected")
	return tr.Close()
}

// Done returns a channel closed when the current receive loop exits, or nil
// if the session never connected.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopDone
}

// receiveLoop feeds frames to the router in arrival order until the transport fails.
func (s *Session) receiveLoop(tr cdp.Transport, done chan struct{}) {
	defer close(done)

	for {
		data, err := tr.Receive()
		if !s.isCurrent(tr) {
			return
		}
		if err != nil {
			s.transportDropped(tr, err)
			return
		}

		if err := s.router.OnMessage(data); err != nil {
			s.logger.Warn("discarding inbound frame", "error", err)
		}
	}
}

func (s *Session) isCurrent(tr cdp.Transport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transport == tr
}

// transportDropped marks the session closed after an unrequested disconnect.
// Pending callbacks stay registered until Disconnect or the next Connect.
func (s *Session) transportDropped(tr cdp.Transport, err error) {
	s.mu.Lock()
	if s.transport != tr {
		s.mu.Unlock()
		return
	}
	s.transport = nil
	s.mu.Unlock()
	s.correlator.SetSender(nil)
	tr.Close()

	s.logger.Warn("connection lost", "error", err)
	if h := s.getHandlers().OnDisconnected; h != nil {
		h(err)
	}
}

// Call sends an RPC, connecting first if needed. cb, if non-nil, runs once
// when the reply arrives. Call does not wait for the reply.
func (s *Session) Call(ctx context.Context, method string, params any, cb cdp.Callback) (int64, error) {
	if !s.IsConnected() {
		if err := s.Connect(ctx); err != nil {
			return 0, err
		}
	}
	return s.correlator.Call(method, params, cb)
}

// Notification handlers

func (s *Session) onScriptParsed(params json.RawMessage) {
	var p cdp.ScriptParsedParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Warn("bad scriptParsed params", "error", err)
		return
	}

	rec := s.registry.OnScriptParsed(scripts.Parsed{
		ID:              p.ScriptID,
		URL:             p.URL,
		IsContentScript: p.IsContentScript,
		SourceMapURL:    p.SourceMapURL,
	})
	if rec == nil {
		return
	}

	s.logger.Debug("script parsed", "id", rec.ID, "url", rec.URL, "sourceMap", rec.SourceMap.State())
	if h := s.getHandlers().OnScriptParsed; h != nil {
		h(rec)
	}
}

func (s *Session) onMessageAdded(params json.RawMessage) {
	var p cdp.MessageAddedParams
	if err := json.Unmarshal(params, &p); err != nil {
		s.logger.Warn("bad messageAdded params", "error", err)
		return
	}

	line := s.formatter.Format(p.Message)
	if h := s.getHandlers().OnConsole; h != nil {
		h(line)
	}
}

func (s *Session) onGlobalObjectCleared(json.RawMessage) {
	s.logger.Debug("global object cleared", "scripts", s.registry.Len())
	s.registry.Clear()
}

func (s *Session) onDetached(params json.RawMessage) {
	var p cdp.DetachedParams
	_ = json.Unmarshal(params, &p)
	s.logger.Warn("inspector detached", "reason", p.Reason)

	s.mu.Lock()
	tr := s.transport
	s.mu.Unlock()
	if tr != nil {
		// The receive loop sees the closed transport and reports the drop.
		tr.Close()
	}
}

// relativeSource turns a local file path into a path relative to the project
// root, in slash form, for matching against source-map sources.
func (s *Session) relativeSource(path string) string {
	if filepath.IsAbs(path) {
		if rel, err := filepath.Rel(s.gateway.Root(), path); err == nil && !strings.HasPrefix(rel, "..") {
			path = rel
		}
	}
	return filepath.ToSlash(path)
}
