package output

import "errors"

var (
	// ErrPermissionDenied is returned when the host refuses input injection.
	ErrPermissionDenied = errors.New("input injection permission denied")
	// ErrEventCreationFailed is returned when a synthetic event could not be
	// constructed or written.
	ErrEventCreationFailed = errors.New("event creation failed")
	// ErrPositionOutOfBounds is returned for absolute mouse moves when the
	// primary display bounds are unknown; positions outside known bounds are
	// clamped.
	ErrPositionOutOfBounds = errors.New("position out of bounds")
)
