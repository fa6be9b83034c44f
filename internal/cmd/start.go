// Package cmd implements the CLI commands.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/HIDRA/coordinator"
	"github.com/Alia5/HIDRA/internal/configpaths"
	"github.com/Alia5/HIDRA/internal/log"
	"github.com/Alia5/HIDRA/internal/profilestore"
	"github.com/Alia5/HIDRA/manager"
	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/processor"
	"github.com/Alia5/HIDRA/transport"
	"github.com/Alia5/HIDRA/virtualpad"
)

// Start runs the driver until interrupted.
type Start struct {
	HotplugPeriod    time.Duration `help:"Bus re-scan period for hot-plug detection" default:"2s" env:"HIDRA_HOTPLUG_PERIOD"`
	ReadTimeout      time.Duration `help:"Per-read interrupt timeout" default:"500ms"`
	StallTimeout     time.Duration `help:"Silence duration that counts as a stall" default:"5s"`
	WatchdogInterval time.Duration `help:"Stall check period" default:"1s"`
	LibusbDebug      int           `help:"libusb debug level (0-4)" default:"0"`

	LeftDeadzone    float32 `help:"Left stick deadzone radius" default:"0.2395"`
	RightDeadzone   float32 `help:"Right stick deadzone radius" default:"0.2652"`
	TriggerDeadzone float32 `help:"Trigger deadzone" default:"0"`

	UinputName        string  `help:"Name of the uinput output device" default:"hidra virtual input"`
	ScreenWidth       int     `help:"Primary display width for absolute mouse moves" default:"1920"`
	ScreenHeight      int     `help:"Primary display height for absolute mouse moves" default:"1080"`
	ScrollSensitivity float64 `help:"Scroll delta multiplier" default:"1.0"`

	VirtualPad        bool   `help:"Expose a virtual HID gamepad over USB/IP" default:"false"`
	VirtualPadAddr    string `help:"USB/IP listen address for the virtual gamepad" default:":3240"`
	VirtualPadVendor  uint16 `help:"Vendor id of the virtual gamepad" default:"4660"`
	VirtualPadProduct uint16 `help:"Product id of the virtual gamepad" default:"22136"`
}

// Run is called by kong when the start command is executed.
func (s *Start) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.StartDriver(ctx, logger, rawLogger)
}

// StartDriver wires transport, store, output and coordinator and blocks
// until ctx is cancelled.
func (s *Start) StartDriver(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	profilesDir, err := configpaths.ProfilesDir()
	if err != nil {
		return err
	}
	store, err := profilestore.New(profilesDir)
	if err != nil {
		return err
	}

	synth, err := output.NewPlatform(output.UinputConfig{
		Name:              s.UinputName,
		ScreenWidth:       s.ScreenWidth,
		ScreenHeight:      s.ScreenHeight,
		ScrollSensitivity: s.ScrollSensitivity,
	}, logger)
	if err != nil {
		return err
	}
	defer synth.Close()

	bus := transport.NewUSB(transport.Config{
		HotplugPeriod: s.HotplugPeriod,
		DebugLevel:    s.LibusbDebug,
	}, logger, rawLogger)
	defer bus.Close()

	var pad *virtualpad.Service
	if s.VirtualPad {
		pad = virtualpad.NewService(virtualpad.ServerConfig{Addr: s.VirtualPadAddr}, logger, rawLogger)
	}

	mgrCfg := manager.DefaultConfig()
	mgrCfg.ReadTimeout = s.ReadTimeout
	mgrCfg.StallTimeout = s.StallTimeout
	mgrCfg.WatchdogInterval = s.WatchdogInterval
	mgrCfg.Processor = processor.Config{
		LeftStickDeadzone:  s.LeftDeadzone,
		RightStickDeadzone: s.RightDeadzone,
		TriggerDeadzone:    s.TriggerDeadzone,
	}

	coord := coordinator.New(bus, store, synth, pad, coordinator.Config{
		Manager:           mgrCfg,
		VirtualPadAddr:    s.VirtualPadAddr,
		VirtualPadVendor:  s.VirtualPadVendor,
		VirtualPadProduct: s.VirtualPadProduct,
	}, logger)
	store.OnSaved = coord.OnProfileSaved

	logger.Info("hidra starting", "profiles", profilesDir, "virtualPad", s.VirtualPad)
	return coord.Run(ctx)
}
