// Package hid builds HID report descriptors from typed items, so device
// definitions read like the descriptor listings they are transcribed from.
package hid

import "bytes"

// Main item flags.
const (
	MainData  = 0x00
	MainConst = 0x01
	MainVar   = 0x02
	MainArray = 0x00
	MainAbs   = 0x00
	MainRel   = 0x04
)

// Collection kinds.
const (
	CollectionPhysical    = 0x00
	CollectionApplication = 0x01
	CollectionLogical     = 0x02
)

// Usage pages.
const (
	UsagePageGenericDesktop = 0x01
	UsagePageSimulation     = 0x02
	UsagePageKeyboard       = 0x07
	UsagePageLED            = 0x08
	UsagePageButton         = 0x09
	UsagePageConsumer       = 0x0c
	UsagePagePID            = 0x0f
)

// Generic desktop usages.
const (
	UsagePointer  = 0x01
	UsageMouse    = 0x02
	UsageJoystick = 0x04
	UsageGamePad  = 0x05
	UsageKeyboard = 0x06
	UsageX        = 0x30
	UsageY        = 0x31
	UsageZ        = 0x32
	UsageRx       = 0x33
	UsageRy       = 0x34
	UsageRz       = 0x35
	UsageWheel    = 0x38
	UsageHat      = 0x39
)

// Item is one report descriptor item.
type Item interface {
	encode(b *bytes.Buffer)
}

// Report is an ordered list of items.
type Report struct {
	Items []Item
}

// Bytes encodes the report descriptor.
func (r Report) Bytes() []byte {
	var b bytes.Buffer
	for _, it := range r.Items {
		it.encode(&b)
	}
	return b.Bytes()
}

// Length returns the encoded descriptor length.
func (r Report) Length() int { return len(r.Bytes()) }

// emit writes an item with the shortest encoding of value. tag carries the
// tag and type bits; the size bits are filled in here.
func emit(b *bytes.Buffer, tag byte, value int32, signed bool) {
	switch {
	case value == 0:
		b.WriteByte(tag | 0x01)
		b.WriteByte(0)
	case fitsByte(value, signed):
		b.WriteByte(tag | 0x01)
		b.WriteByte(byte(value))
	case fitsShort(value, signed):
		b.WriteByte(tag | 0x02)
		b.WriteByte(byte(value))
		b.WriteByte(byte(value >> 8))
	default:
		b.WriteByte(tag | 0x03)
		b.WriteByte(byte(value))
		b.WriteByte(byte(value >> 8))
		b.WriteByte(byte(value >> 16))
		b.WriteByte(byte(value >> 24))
	}
}

func fitsByte(v int32, signed bool) bool {
	if signed {
		return v >= -128 && v <= 127
	}
	return v >= 0 && v <= 0xff
}

func fitsShort(v int32, signed bool) bool {
	if signed {
		return v >= -32768 && v <= 32767
	}
	return v >= 0 && v <= 0xffff
}

type UsagePage struct{ Page int32 }

func (i UsagePage) encode(b *bytes.Buffer) { emit(b, 0x04, i.Page, false) }

type Usage struct{ Usage int32 }

func (i Usage) encode(b *bytes.Buffer) { emit(b, 0x08, i.Usage, false) }

type UsageMinimum struct{ Min int32 }

func (i UsageMinimum) encode(b *bytes.Buffer) { emit(b, 0x18, i.Min, false) }

type UsageMaximum struct{ Max int32 }

func (i UsageMaximum) encode(b *bytes.Buffer) { emit(b, 0x28, i.Max, false) }

type LogicalMinimum struct{ Min int32 }

func (i LogicalMinimum) encode(b *bytes.Buffer) { emit(b, 0x14, i.Min, true) }

type LogicalMaximum struct{ Max int32 }

func (i LogicalMaximum) encode(b *bytes.Buffer) { emit(b, 0x24, i.Max, true) }

type PhysicalMinimum struct{ Min int32 }

func (i PhysicalMinimum) encode(b *bytes.Buffer) { emit(b, 0x34, i.Min, true) }

type PhysicalMaximum struct{ Max int32 }

func (i PhysicalMaximum) encode(b *bytes.Buffer) { emit(b, 0x44, i.Max, true) }

type ReportSize struct{ Bits int32 }

func (i ReportSize) encode(b *bytes.Buffer) { emit(b, 0x74, i.Bits, false) }

type ReportCount struct{ Count int32 }

func (i ReportCount) encode(b *bytes.Buffer) { emit(b, 0x94, i.Count, false) }

type ReportID struct{ ID int32 }

func (i ReportID) encode(b *bytes.Buffer) { emit(b, 0x84, i.ID, false) }

type Input struct{ Flags int32 }

func (i Input) encode(b *bytes.Buffer) { emit(b, 0x80, i.Flags, false) }

type Output struct{ Flags int32 }

func (i Output) encode(b *bytes.Buffer) { emit(b, 0x90, i.Flags, false) }

type Feature struct{ Flags int32 }

func (i Feature) encode(b *bytes.Buffer) { emit(b, 0xb0, i.Flags, false) }

// Collection nests its items between a collection item and end collection.
type Collection struct {
	Kind  int32
	Items []Item
}

func (i Collection) encode(b *bytes.Buffer) {
	emit(b, 0xa0, i.Kind, false)
	for _, it := range i.Items {
		it.encode(b)
	}
	b.WriteByte(0xc0) // End Collection
}
