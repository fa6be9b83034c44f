// Package hiddesc interprets USB HID report descriptors and parses input
// reports through the field layout they describe.
package hiddesc

import (
	"errors"
	"fmt"
)

// Item prefix layout: bits 0-1 size, bits 2-3 type, bits 4-7 tag.
const (
	itemTypeMain   = 0
	itemTypeGlobal = 1
	itemTypeLocal  = 2
)

// Main item tags.
const (
	tagInput         = 0x8
	tagOutput        = 0x9
	tagFeature       = 0xb
	tagCollection    = 0xa
	tagEndCollection = 0xc
)

// Global item tags.
const (
	tagUsagePage   = 0x0
	tagLogicalMin  = 0x1
	tagLogicalMax  = 0x2
	tagReportSize  = 0x7
	tagReportID    = 0x8
	tagReportCount = 0x9
	tagPush        = 0xa
	tagPop         = 0xb
)

// Local item tags.
const (
	tagUsage    = 0x0
	tagUsageMin = 0x1
	tagUsageMax = 0x2
)

// Input item flag bits.
const (
	flagConstant = 0x01
	flagVariable = 0x02
)

// Usage pages.
const (
	PageGenericDesktop = 0x01
	PageSimulation     = 0x02
	PageButton         = 0x09
)

// Generic desktop usages.
const (
	UsageX   = 0x30
	UsageY   = 0x31
	UsageZ   = 0x32
	UsageRx  = 0x33
	UsageRy  = 0x34
	UsageRz  = 0x35
	UsageHat = 0x39
)

// ErrMalformedDescriptor is returned for truncated or inconsistent report
// descriptors.
var ErrMalformedDescriptor = errors.New("malformed report descriptor")

// Field is one input field of a report: where its bits live and how to
// interpret them.
type Field struct {
	UsagePage  uint16
	Usage      uint16
	ReportID   uint8
	BitOffset  int
	BitLength  int
	LogicalMin int32
	LogicalMax int32
	IsSigned   bool
	IsConstant bool
}

type globalState struct {
	usagePage   uint16
	logicalMin  int32
	logicalMax  int32
	reportSize  int
	reportCount int
	reportID    uint8
}

// ParseDescriptor walks the descriptor's global/local/main items and returns
// the input field layout. Output and feature items advance no input offsets
// and are skipped.
func ParseDescriptor(desc []byte) ([]Field, error) {
	var (
		fields  []Field
		g       globalState
		stack   []globalState
		usages  []uint32
		usaMin  uint32
		usaMax  uint32
		hasMin  bool
		cursors = map[uint8]int{} // report ID -> bit cursor
	)

	clearLocals := func() {
		usages = usages[:0]
		usaMin, usaMax, hasMin = 0, 0, false
	}

	for i := 0; i < len(desc); {
		prefix := desc[i]
		if prefix == 0xfe { // long item: skip
			if i+2 >= len(desc) {
				return nil, fmt.Errorf("%w: truncated long item", ErrMalformedDescriptor)
			}
			i += 3 + int(desc[i+1])
			continue
		}
		size := int(prefix & 0x03)
		if size == 3 {
			size = 4
		}
		typ := int(prefix>>2) & 0x03
		tag := int(prefix >> 4)
		i++
		if i+size > len(desc) {
			return nil, fmt.Errorf("%w: truncated item", ErrMalformedDescriptor)
		}
		data := desc[i : i+size]
		i += size

		uval := readUnsigned(data)
		sval := readSigned(data)

		switch typ {
		case itemTypeGlobal:
			switch tag {
			case tagUsagePage:
				g.usagePage = uint16(uval)
			case tagLogicalMin:
				g.logicalMin = sval
			case tagLogicalMax:
				g.logicalMax = sval
			case tagReportSize:
				g.reportSize = int(uval)
			case tagReportID:
				g.reportID = uint8(uval)
			case tagReportCount:
				g.reportCount = int(uval)
			case tagPush:
				stack = append(stack, g)
			case tagPop:
				if len(stack) == 0 {
					return nil, fmt.Errorf("%w: pop without push", ErrMalformedDescriptor)
				}
				g = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
		case itemTypeLocal:
			switch tag {
			case tagUsage:
				usages = append(usages, uval)
			case tagUsageMin:
				usaMin = uval
				hasMin = true
			case tagUsageMax:
				usaMax = uval
			}
		case itemTypeMain:
			switch tag {
			case tagInput:
				fields = append(fields, inputFields(g, uval, usages, usaMin, usaMax, hasMin, cursors)...)
			case tagOutput, tagFeature, tagCollection, tagEndCollection:
				// No input bits.
			}
			clearLocals()
		}
	}
	return fields, nil
}

// inputFields expands one Input main item into reportCount fields and
// advances the bit cursor of its report ID.
func inputFields(g globalState, flags uint32, usages []uint32, usaMin, usaMax uint32, hasMin bool, cursors map[uint8]int) []Field {
	out := make([]Field, 0, g.reportCount)
	cursor := cursors[g.reportID]
	for n := 0; n < g.reportCount; n++ {
		f := Field{
			UsagePage:  g.usagePage,
			ReportID:   g.reportID,
			BitOffset:  cursor,
			BitLength:  g.reportSize,
			LogicalMin: g.logicalMin,
			LogicalMax: g.logicalMax,
			IsSigned:   g.logicalMin < 0,
			IsConstant: flags&flagConstant != 0,
		}
		switch {
		case f.IsConstant:
			// Padding: no usage.
		case n < len(usages):
			page, usage := splitUsage(usages[n])
			if page != 0 {
				f.UsagePage = page
			}
			f.Usage = usage
		case hasMin:
			u := usaMin + uint32(n-len(usages))
			if usaMax != 0 && u > usaMax {
				u = usaMax
			}
			page, usage := splitUsage(u)
			if page != 0 {
				f.UsagePage = page
			}
			f.Usage = usage
		case len(usages) > 0:
			// Fewer usages than fields: repeat the last one.
			page, usage := splitUsage(usages[len(usages)-1])
			if page != 0 {
				f.UsagePage = page
			}
			f.Usage = usage
		}
		out = append(out, f)
		cursor += g.reportSize
	}
	cursors[g.reportID] = cursor
	return out
}

// splitUsage separates an extended (32-bit) usage into page and ID.
func splitUsage(u uint32) (page uint16, usage uint16) {
	return uint16(u >> 16), uint16(u)
}

func readUnsigned(data []byte) uint32 {
	var v uint32
	for i := len(data) - 1; i >= 0; i-- {
		v = v<<8 | uint32(data[i])
	}
	return v
}

func readSigned(data []byte) int32 {
	if len(data) == 0 {
		return 0
	}
	v := readUnsigned(data)
	bits := uint(len(data) * 8)
	if bits < 32 && v&(1<<(bits-1)) != 0 {
		v |= ^uint32(0) << bits
	}
	return int32(v)
}
