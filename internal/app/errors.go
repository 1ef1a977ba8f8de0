package app

import "errors"

// Application errors.
var (
	// ErrDisconnected is returned by Run when the remote connection drops.
	ErrDisconnected = errors.New("remote connection lost")

	// ErrEvaluationThrew is returned when an evaluated expression throws.
	ErrEvaluationThrew = errors.New("evaluation threw")

	// ErrInvalidLocation indicates a malformed file:line[:column] argument.
	ErrInvalidLocation = errors.New("invalid location")
)
