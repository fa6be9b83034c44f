package cmd

import (
	"fmt"
	"log/slog"

	"github.com/Alia5/HIDRA/internal/configpaths"
	"github.com/Alia5/HIDRA/internal/log"
	"github.com/Alia5/HIDRA/internal/profilestore"
	"github.com/Alia5/HIDRA/protocol"
	"github.com/Alia5/HIDRA/transport"
)

// ListDevices enumerates attached controllers with their detected protocol.
type ListDevices struct {
	LibusbDebug int `help:"libusb debug level (0-4)" default:"0"`
}

func (l *ListDevices) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	bus := transport.NewUSB(transport.Config{DebugLevel: l.LibusbDebug}, logger, rawLogger)
	defer bus.Close()

	descs, err := bus.Enumerate()
	if err != nil {
		return err
	}

	count := 0
	for _, d := range descs {
		kind := protocol.Detect(d.Identity, d)
		if kind == protocol.GenericHid && !looksLikeController(d) {
			continue
		}
		count++
		fmt.Printf("%s  bus %d addr %d  %-8s  %s\n",
			d.Identity, d.Identity.Bus, d.Identity.Address, kind, d.Product)
	}
	if count == 0 {
		fmt.Println("no controllers found")
	}
	return nil
}

// looksLikeController filters the enumeration to devices with an interrupt-in
// endpoint, the minimum a pollable controller needs.
func looksLikeController(d transport.DeviceDescriptor) bool {
	for _, intf := range d.Interfaces {
		if _, ok := intf.FirstEndpoint(transport.DirIn, transport.TransferInterrupt); ok {
			return true
		}
	}
	return false
}

// Status prints the configuration location, stored profiles and device
// count.
type Status struct{}

func (s *Status) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	dir, err := configpaths.ProfilesDir()
	if err != nil {
		return err
	}
	fmt.Printf("profiles: %s\n", dir)

	store, err := profilestore.New(dir)
	if err != nil {
		return err
	}
	profiles, err := store.LoadAll()
	if err != nil {
		fmt.Printf("profile store: unusable (%v)\n", err)
	} else {
		fmt.Printf("profile count: %d\n", len(profiles))
		for _, p := range profiles {
			target := "any device"
			if p.DeviceID != nil {
				target = fmt.Sprintf("%04x:%04x", p.DeviceID.VendorID, p.DeviceID.ProductID)
			}
			fmt.Printf("  %-20s %d mappings, %s\n", p.Name, len(p.Mappings), target)
		}
	}

	bus := transport.NewUSB(transport.Config{}, logger, rawLogger)
	defer bus.Close()
	descs, err := bus.Enumerate()
	if err != nil {
		fmt.Printf("usb: enumeration failed (%v)\n", err)
		return nil
	}
	controllers := 0
	for _, d := range descs {
		if protocol.Detect(d.Identity, d) != protocol.GenericHid || looksLikeController(d) {
			controllers++
		}
	}
	fmt.Printf("usb devices: %d (%d controller candidates)\n", len(descs), controllers)
	return nil
}
