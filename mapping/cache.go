// Package mapping matches parsed input events against the active profile and
// drives held-key press/release deltas on the output synthesizer.
package mapping

import "github.com/Alia5/HIDRA/profile"

// Cache is the per-session lookup from button identifier to mapping, rebuilt
// whenever the session's active profile changes.
type Cache map[string]profile.ButtonMapping

// BuildCache derives the lookup from a profile. Later duplicates are ignored;
// profile validation rejects them before they get here.
func BuildCache(p profile.Profile) Cache {
	c := make(Cache, len(p.Mappings))
	for _, m := range p.Mappings {
		if _, dup := c[m.Button]; dup {
			continue
		}
		c[m.Button] = m
	}
	return c
}

// Synthetic identifiers driven by d-pad and hat events.
const (
	IdentDPadUp    = "DPadUp"
	IdentDPadDown  = "DPadDown"
	IdentDPadLeft  = "DPadLeft"
	IdentDPadRight = "DPadRight"
)
