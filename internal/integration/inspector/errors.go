package inspector

import "errors"

// Errors returned by Session operations.
var (
	// ErrNoMatchingScript is returned when an edit names a file that no parsed
	// script corresponds to. Nothing is sent to the runtime.
	ErrNoMatchingScript = errors.New("no script matches file")

	// ErrNoGeneratedPosition is returned when no source map maps an original
	// location onto a parsed script.
	ErrNoGeneratedPosition = errors.New("no generated position for original location")
)
