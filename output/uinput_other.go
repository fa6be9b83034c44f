//go:build !linux

package output

import (
	"fmt"
	"log/slog"
	"runtime"
)

// UinputConfig configures the Linux uinput synthesizer. On other platforms it
// exists so command flags keep their shape.
type UinputConfig struct {
	Name                      string
	ScreenWidth, ScreenHeight int
	ScrollSensitivity         float64
}

// NewPlatform returns the host synthesizer for this platform.
func NewPlatform(cfg UinputConfig, logger *slog.Logger) (Synthesizer, error) {
	return nil, fmt.Errorf("no output synthesizer for %s", runtime.GOOS)
}
