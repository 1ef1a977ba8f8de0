package cdp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
)

// NotificationHandler handles the params of one notification kind.
type NotificationHandler func(params json.RawMessage)

// Router classifies inbound frames and hands them to notification handlers or
// the correlator. It is not safe for concurrent OnMessage calls; frames must be
// fed in receipt order from a single goroutine.
type Router struct {
	correlator *Correlator
	handlers   map[NotificationKind]NotificationHandler
	logger     *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouterLogger sets the logger used for ignored and unknown notifications.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a router that resolves replies through correlator.
func NewRouter(correlator *Correlator, opts ...RouterOption) *Router {
	r := &Router{
		correlator: correlator,
		handlers:   make(map[NotificationKind]NotificationHandler),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers the handler for a notification kind, replacing any previous one.
func (r *Router) Handle(kind NotificationKind, h NotificationHandler) {
	r.handlers[kind] = h
}

// OnMessage decodes one frame and dispatches it. Unknown notifications and
// replies to unknown ids are not errors. A frame that does not decode, or has
// neither method nor id, returns an error wrapping ErrMalformedMessage.
func (r *Router) OnMessage(raw []byte) error {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case msg.IsNotification():
		r.notify(msg.Method, msg.Params)
	case msg.IsReply():
		if !r.correlator.Dispatch(*msg.ID, msg.Result, msg.Error) {
			r.logger.Debug("reply without pending call", "id", *msg.ID)
		}
	default:
		return fmt.Errorf("%w: neither method nor id", ErrMalformedMessage)
	}
	return nil
}

func (r *Router) notify(method string, params json.RawMessage) {
	kind := ParseKind(method)
	h, ok := r.handlers[kind]
	if !ok || kind == KindUnknown {
		r.logger.Debug("ignoring notification", "method", method)
		return
	}
	h(params)
}
