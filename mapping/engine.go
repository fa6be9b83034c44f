package mapping

import (
	"errors"
	"log/slog"

	"github.com/Alia5/HIDRA/input"
	"github.com/Alia5/HIDRA/output"
	"github.com/Alia5/HIDRA/profile"
)

// axisPressThreshold is the deflection at which an analog channel drives a
// mapped key.
const axisPressThreshold = 0.5

// Engine translates one session's input events into key presses and
// releases. It is owned by the session's read loop and is not safe for
// concurrent use; profile updates arrive through the same goroutine.
type Engine struct {
	synth  output.Synthesizer
	logger *slog.Logger

	cache Cache
	held  *output.HeldKeySet
	// pressed is the logical state of every identifier currently driven.
	pressed map[string]bool
	// reapply re-presses held identifiers on the next report after a
	// profile swap.
	reapply bool

	permDenied bool
}

// NewEngine builds an engine with an empty profile. Nothing is emitted until
// SetProfile installs mappings.
func NewEngine(synth output.Synthesizer, logger *slog.Logger) *Engine {
	return &Engine{
		synth:   synth,
		logger:  logger,
		cache:   Cache{},
		held:    output.NewHeldKeySet(),
		pressed: make(map[string]bool),
	}
}

// SetProfile swaps the active profile: every held key is released, the cache
// is rebuilt, and identifiers that are still physically pressed re-press
// their new mapping on the next report. No key is left stuck across the
// change.
func (e *Engine) SetProfile(p profile.Profile) {
	for _, c := range e.held.Drain() {
		e.keyUp(c)
	}
	e.cache = BuildCache(p)
	e.reapply = true
	e.logger.Debug("profile applied", "profile", p.Name, "mappings", len(e.cache))
}

// HeldCount returns the number of currently held chords.
func (e *Engine) HeldCount() int { return e.held.Len() }

// ReleaseAll releases every held key, e.g. on session teardown.
func (e *Engine) ReleaseAll() {
	for _, c := range e.held.Drain() {
		e.keyUp(c)
	}
	for id := range e.pressed {
		delete(e.pressed, id)
	}
}

// transition is one identifier state change derived from an event batch.
type transition struct {
	ident   string
	pressed bool
}

// Handle processes the events of one parsed report. Within the batch,
// releases are emitted before presses so a rotating chord never holds two
// conflicting modifiers at once.
func (e *Engine) Handle(events []input.Event) {
	var releases, presses []transition
	touched := make(map[string]struct{})

	add := func(ident string, pressed bool) {
		touched[ident] = struct{}{}
		if e.pressed[ident] == pressed {
			return
		}
		e.pressed[ident] = pressed
		if pressed {
			presses = append(presses, transition{ident, true})
		} else {
			releases = append(releases, transition{ident, false})
		}
	}

	for _, ev := range events {
		switch ev.Type {
		case input.EventButtonPress:
			add(ev.Button.String(), true)
		case input.EventButtonRelease:
			add(ev.Button.String(), false)
		case input.EventAxisMove:
			base := ev.Axis.String()
			add(base, ev.Value > axisPressThreshold || ev.Value < -axisPressThreshold)
			add(base+"+", ev.Value > axisPressThreshold)
			add(base+"-", ev.Value < -axisPressThreshold)
		case input.EventTriggerMove:
			add(ev.Axis.String(), ev.Value > axisPressThreshold)
		case input.EventDPadMove:
			add(IdentDPadLeft, ev.DPadX < 0)
			add(IdentDPadRight, ev.DPadX > 0)
			add(IdentDPadUp, ev.DPadY < 0)
			add(IdentDPadDown, ev.DPadY > 0)
		case input.EventHatSwitch:
			up, right, down, left := hatQuadrants(ev.Hat)
			add(IdentDPadUp, up)
			add(IdentDPadRight, right)
			add(IdentDPadDown, down)
			add(IdentDPadLeft, left)
		}
	}

	if e.reapply {
		// After a profile swap, identifiers that are still physically pressed
		// and untouched by this report re-press their new mapping. The held
		// set was drained during the swap, so the KeyDown goes through.
		e.reapply = false
		for ident, on := range e.pressed {
			if _, seen := touched[ident]; on && !seen {
				presses = append(presses, transition{ident: ident, pressed: true})
			}
		}
	}

	for _, t := range releases {
		e.release(t.ident)
	}
	for _, t := range presses {
		e.press(t.ident)
	}
}

func (e *Engine) press(ident string) {
	m, ok := e.cache[ident]
	if !ok || m.KeyCode == 0 {
		return
	}
	c := output.Chord{Code: m.KeyCode, Modifier: m.Modifier}
	if !e.held.Add(c) {
		// Already held by another identifier; KeyDown is emitted once.
		return
	}
	if err := e.synth.KeyDown(c.Code, c.Modifier); err != nil {
		e.outputError(err)
	}
}

func (e *Engine) release(ident string) {
	m, ok := e.cache[ident]
	if !ok || m.KeyCode == 0 {
		return
	}
	c := output.Chord{Code: m.KeyCode, Modifier: m.Modifier}
	if !e.held.Remove(c) {
		return
	}
	e.keyUp(c)
}

func (e *Engine) keyUp(c output.Chord) {
	if err := e.synth.KeyUp(c.Code, c.Modifier); err != nil {
		e.outputError(err)
	}
}

// outputError logs a permission denial once per session; everything else is
// logged at debug because a stream of failing reports would flood the log.
func (e *Engine) outputError(err error) {
	if errors.Is(err, output.ErrPermissionDenied) {
		if !e.permDenied {
			e.permDenied = true
			e.logger.Error("output suppressed: input injection not permitted", "error", err)
		}
		return
	}
	e.logger.Debug("output failed", "error", err)
}

// hatQuadrants expands a hat angle into the four d-pad directions, with
// diagonals pressing both neighbours.
func hatQuadrants(angle uint16) (up, right, down, left bool) {
	if angle == input.HatNeutral {
		return false, false, false, false
	}
	a := angle % 360
	up = a >= 315 || a <= 45
	right = a >= 45 && a <= 135
	down = a >= 135 && a <= 225
	left = a >= 225 && a <= 315
	return up, right, down, left
}
