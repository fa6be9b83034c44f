// Package processor applies calibration, deadzones and re-emission hysteresis
// to parsed axis and trigger events.
package processor

import (
	"math"

	"github.com/Alia5/HIDRA/input"
)

// Default deadzone radii.
const (
	DefaultLeftStickDeadzone  = 0.2395
	DefaultRightStickDeadzone = 0.2652
	DefaultTriggerDeadzone    = 0.0
)

// emitThreshold suppresses events whose post-processed value moved less than
// this from the last emitted value.
const emitThreshold = 0.001

// Calibration maps the raw range of one axis onto [-1,1] around its measured
// center.
type Calibration struct {
	Min    int16 `yaml:"min" json:"min"`
	Max    int16 `yaml:"max" json:"max"`
	Center int16 `yaml:"center" json:"center"`
}

// Config holds deadzone radii and optional per-axis calibration.
type Config struct {
	LeftStickDeadzone  float32
	RightStickDeadzone float32
	TriggerDeadzone    float32
	Calibrations       map[input.AxisID]Calibration
}

// DefaultConfig returns the stock deadzones with no calibration.
func DefaultConfig() Config {
	return Config{
		LeftStickDeadzone:  DefaultLeftStickDeadzone,
		RightStickDeadzone: DefaultRightStickDeadzone,
		TriggerDeadzone:    DefaultTriggerDeadzone,
	}
}

// Processor transforms axis and trigger events. Button, d-pad and hat events
// pass through untouched. A Processor belongs to one device session and is
// not safe for concurrent use.
type Processor struct {
	cfg Config
	// axes holds the latest post-calibration value of each stick axis, so
	// the radial deadzone can pair X with Y.
	axes map[input.AxisID]float32
	// emitted holds the last value forwarded per channel.
	emitted map[input.AxisID]float32
}

func New(cfg Config) *Processor {
	return &Processor{
		cfg:     cfg,
		axes:    make(map[input.AxisID]float32),
		emitted: make(map[input.AxisID]float32),
	}
}

// Process transforms one event. Events whose post-processed value did not
// move past the hysteresis threshold are dropped.
func (p *Processor) Process(ev input.Event) []input.Event {
	switch ev.Type {
	case input.EventAxisMove:
		return p.processAxis(ev)
	case input.EventTriggerMove:
		return p.processTrigger(ev)
	default:
		return []input.Event{ev}
	}
}

func (p *Processor) processAxis(ev input.Event) []input.Event {
	value := p.calibrate(ev.Axis, ev.Raw, ev.Value)
	p.axes[ev.Axis] = value

	pair, ok := ev.Axis.Pair()
	if !ok {
		// Not a stick axis: single-axis deadzone.
		out := axialDeadzone(value, p.deadzoneFor(ev.Axis))
		return p.emit(ev, out)
	}

	// Radial deadzone across the stick pair: the magnitude uses both axes,
	// the event only carries its own channel.
	d := p.deadzoneFor(ev.Axis)
	out, _ := radialDeadzone(p.axes[ev.Axis], p.axes[pair], d)
	return p.emit(ev, out)
}

func (p *Processor) processTrigger(ev input.Event) []input.Event {
	value := axialDeadzone01(ev.Value, p.cfg.TriggerDeadzone)
	last, seen := p.emitted[ev.Axis]
	if seen && abs32(value-last) <= emitThreshold {
		return nil
	}
	if !seen && value == 0 {
		return nil
	}
	p.emitted[ev.Axis] = value
	ev.Value = value
	ev.Pressed = value >= input.TriggerPressThreshold
	return []input.Event{ev}
}

// emit forwards ev with the post-processed value if it moved past the
// hysteresis threshold.
func (p *Processor) emit(ev input.Event, value float32) []input.Event {
	last, seen := p.emitted[ev.Axis]
	if seen && abs32(value-last) <= emitThreshold {
		return nil
	}
	if !seen && value == 0 {
		// Nothing has been emitted for this channel and it is still at rest.
		return nil
	}
	p.emitted[ev.Axis] = value
	ev.Value = value
	return []input.Event{ev}
}

// calibrate maps the raw value through the axis calibration, or passes the
// parser's normalization through when none is configured.
func (p *Processor) calibrate(axis input.AxisID, raw int16, normalized float32) float32 {
	cal, ok := p.cfg.Calibrations[axis]
	if !ok {
		return normalized
	}
	switch {
	case raw >= cal.Center:
		span := float32(cal.Max - cal.Center)
		if span <= 0 {
			return 0
		}
		return clamp(float32(raw-cal.Center)/span, -1, 1)
	default:
		span := float32(cal.Center - cal.Min)
		if span <= 0 {
			return 0
		}
		return clamp(-float32(cal.Center-raw)/span, -1, 1)
	}
}

func (p *Processor) deadzoneFor(axis input.AxisID) float32 {
	switch axis {
	case input.AxisLStickX, input.AxisLStickY:
		return p.cfg.LeftStickDeadzone
	case input.AxisRStickX, input.AxisRStickY:
		return p.cfg.RightStickDeadzone
	default:
		return p.cfg.TriggerDeadzone
	}
}

// radialDeadzone applies a circular deadzone of radius d to the stick vector
// (x, y) and rescales the remaining range to full deflection.
func radialDeadzone(x, y, d float32) (float32, float32) {
	m := float32(math.Hypot(float64(x), float64(y)))
	if m <= d {
		return 0, 0
	}
	scale := (m - d) / (1 - d) / m
	return clamp(x*scale, -1, 1), clamp(y*scale, -1, 1)
}

// axialDeadzone is the single-axis fallback for unpaired [-1,1] channels.
func axialDeadzone(v, d float32) float32 {
	if abs32(v) <= d {
		return 0
	}
	out := (abs32(v) - d) / (1 - d)
	if v < 0 {
		out = -out
	}
	return clamp(out, -1, 1)
}

// axialDeadzone01 is the trigger form on [0,1].
func axialDeadzone01(v, d float32) float32 {
	if v <= d {
		return 0
	}
	if d >= 1 {
		return 0
	}
	return clamp((v-d)/(1-d), 0, 1)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
