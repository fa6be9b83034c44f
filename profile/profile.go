// Package profile defines button-mapping profiles and the store interface the
// core consumes. The on-disk format belongs to the store implementation.
package profile

import (
	"fmt"

	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/transport"
)

// CurrentVersion is the profile schema version written by this build.
const CurrentVersion = 1

// ButtonMapping binds one controller input identifier to a host key chord.
// A KeyCode of 0 means unmapped: the input produces no output.
type ButtonMapping struct {
	Button   string          `yaml:"button" json:"button"`
	KeyCode  uint16          `yaml:"keyCode" json:"keyCode"`
	Modifier output.Modifier `yaml:"modifier,omitempty" json:"modifier,omitempty"`
}

// Profile is a named set of button mappings, optionally bound to a device
// identity. A nil DeviceID makes the profile a wildcard.
type Profile struct {
	Name     string                    `yaml:"name" json:"name"`
	DeviceID *transport.DeviceIdentity `yaml:"deviceId,omitempty" json:"deviceId,omitempty"`
	Mappings []ButtonMapping           `yaml:"buttonMappings" json:"buttonMappings"`
	Version  int                       `yaml:"version" json:"version"`
}

// Validate checks the profile invariants: a supported version and unique
// button identifiers.
func (p *Profile) Validate() error {
	if p.Version > CurrentVersion {
		return fmt.Errorf("%w: profile %q has version %d", ErrUnsupportedVersion, p.Name, p.Version)
	}
	seen := make(map[string]struct{}, len(p.Mappings))
	for _, m := range p.Mappings {
		if m.Button == "" {
			return fmt.Errorf("%w: empty button identifier in profile %q", ErrInvalidMapping, p.Name)
		}
		if _, dup := seen[m.Button]; dup {
			return fmt.Errorf("%w: duplicate mapping for %q in profile %q", ErrInvalidMapping, m.Button, p.Name)
		}
		seen[m.Button] = struct{}{}
	}
	return nil
}

// Matches reports whether the profile applies to the given identity.
// A wildcard profile matches everything; a bound profile matches on
// vendor/product equality.
func (p *Profile) Matches(id transport.DeviceIdentity) bool {
	if p.DeviceID == nil {
		return true
	}
	return p.DeviceID.VendorID == id.VendorID && p.DeviceID.ProductID == id.ProductID
}

// Mapping returns the mapping for the given button identifier, if present.
func (p *Profile) Mapping(button string) (ButtonMapping, bool) {
	for _, m := range p.Mappings {
		if m.Button == button {
			return m, true
		}
	}
	return ButtonMapping{}, false
}

// SetMapping inserts or replaces the mapping for a button identifier.
func (p *Profile) SetMapping(m ButtonMapping) {
	for i := range p.Mappings {
		if p.Mappings[i].Button == m.Button {
			p.Mappings[i] = m
			return
		}
	}
	p.Mappings = append(p.Mappings, m)
}

// DefaultName is the name of the profile created when no profile exists.
const DefaultName = "default"

// Default returns the built-in wildcard profile: d-pad on the arrow keys,
// A on enter, B on escape. Key codes are host key codes.
func Default() Profile {
	return Profile{
		Name:    DefaultName,
		Version: CurrentVersion,
		Mappings: []ButtonMapping{
			{Button: "DPadUp", KeyCode: 103},
			{Button: "DPadDown", KeyCode: 108},
			{Button: "DPadLeft", KeyCode: 105},
			{Button: "DPadRight", KeyCode: 106},
			{Button: "A", KeyCode: 28},
			{Button: "B", KeyCode: 1},
		},
	}
}
