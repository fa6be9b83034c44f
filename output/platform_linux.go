//go:build linux

package output

import "log/slog"

// NewPlatform returns the host synthesizer for this platform.
func NewPlatform(cfg UinputConfig, logger *slog.Logger) (Synthesizer, error) {
	return NewUinput(cfg, logger), nil
}
