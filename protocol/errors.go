package protocol

import "errors"

var (
	// ErrInvalidReportSize is returned when a report is shorter than the
	// protocol's minimum.
	ErrInvalidReportSize = errors.New("invalid report size")
	// ErrInitScriptFailed is returned when an init script step exhausts its
	// retries.
	ErrInitScriptFailed = errors.New("init script failed")
	// ErrUnsupportedDevice is returned when a device offers no usable
	// endpoint layout for its protocol.
	ErrUnsupportedDevice = errors.New("unsupported device")
)
