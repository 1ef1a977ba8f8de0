package cdp

import "errors"

// Errors returned by the protocol layer.
var (
	// ErrNotConnected is returned when a call is made without a transport.
	ErrNotConnected = errors.New("not connected")

	// ErrMalformedMessage is returned for frames that are not valid JSON or
	// carry neither a method nor an id.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrTransportClosed is returned by a transport after Close.
	ErrTransportClosed = errors.New("transport closed")
)
