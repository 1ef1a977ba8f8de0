package cdp

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Callback receives the result of a single RPC call. err is a *ProtocolError
// when the remote side rejected the call.
type Callback func(result json.RawMessage, err error)

// Sender hands an encoded frame to the transport.
type Sender interface {
	Send(data []byte) error
}

// Correlator assigns request ids and pairs replies with one-shot callbacks.
type Correlator struct {
	sender Sender

	mu      sync.Mutex
	next    int64
	pending map[int64]Callback
}

// NewCorrelator creates a correlator that writes requests to sender.
func NewCorrelator(sender Sender) *Correlator {
	return &Correlator{
		sender:  sender,
		pending: make(map[int64]Callback),
	}
}

// SetSender replaces the transport used for outbound frames.
// The id counter and pending table are kept.
func (c *Correlator) SetSender(sender Sender) {
	c.mu.Lock()
	c.sender = sender
	c.mu.Unlock()
}

// NextID returns the next request id. Ids start at 0 and are never reused.
func (c *Correlator) NextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextLocked()
}

func (c *Correlator) nextLocked() int64 {
	id := c.next
	c.next++
	return id
}

// Call sends method with params and registers cb for the reply, if cb is non-nil.
// It returns as soon as the frame is handed to the transport.
func (c *Correlator) Call(method string, params any, cb Callback) (int64, error) {
	c.mu.Lock()
	id := c.nextLocked()
	sender := c.sender
	if cb != nil {
		c.pending[id] = cb
	}
	c.mu.Unlock()

	data, err := json.Marshal(Request{ID: id, Method: method, Params: params})
	if err != nil {
		c.forget(id)
		return id, fmt.Errorf("marshal %s request: %w", method, err)
	}

	if sender == nil {
		c.forget(id)
		return id, ErrNotConnected
	}

	if err := sender.Send(data); err != nil {
		c.forget(id)
		return id, fmt.Errorf("send %s request: %w", method, err)
	}

	return id, nil
}

func (c *Correlator) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Dispatch delivers a reply to the callback registered for id. The callback is
// removed before it runs, so a duplicate reply is dropped. Dispatch reports
// whether a callback was found.
func (c *Correlator) Dispatch(id int64, result json.RawMessage, replyErr *ProtocolError) bool {
	c.mu.Lock()
	cb, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	// A nil *ProtocolError must not reach cb as a non-nil error.
	if replyErr != nil {
		cb(result, replyErr)
	} else {
		cb(result, nil)
	}
	return true
}

// Purge drops every pending callback without invoking it and returns how many
// were dropped.
func (c *Correlator) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.pending)
	c.pending = make(map[int64]Callback)
	return n
}

// Pending returns the number of calls awaiting a reply.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
