// Package hid builds HID Report Descriptors from a small declarative item
// list instead of hand-assembled opcode bytes.
package hid

// Item marshals one HID Report Descriptor item (a main, global, or local
// tag followed by its data bytes).
type Item interface {
	bytes() []byte
}

// Report is an ordered list of HID Report Descriptor items.
type Report struct {
	Items []Item
}

// Bytes concatenates every item's encoded bytes into the full report
// descriptor.
func (r Report) Bytes() []byte {
	var out []byte
	for _, it := range r.Items {
		out = append(out, it.bytes()...)
	}
	return out
}

func shortItem(tag byte, data ...byte) []byte {
	switch len(data) {
	case 0:
		return []byte{tag}
	case 1:
		return []byte{tag | 0x01, data[0]}
	case 2:
		return []byte{tag | 0x02, data[0], data[1]}
	default:
		return []byte{tag | 0x03, data[0], data[1], data[2], data[3]}
	}
}

func encodeU16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

// Usage page constants used by common HID devices (HID Usage Tables 1.12).
const (
	UsagePageGenericDesktop = 0x01
	UsagePageKeyboard       = 0x07
	UsagePageLEDs           = 0x08
	UsagePageButton         = 0x09
)

// Generic desktop usage IDs.
const (
	UsageMouse    = 0x02
	UsageKeyboard = 0x06
)

// Collection kinds.
const (
	CollectionPhysical   = 0x00
	CollectionApplication = 0x01
	CollectionLogical    = 0x02
)

// Main item data flags (Input/Output/Feature), HID spec 6.2.2.5.
const (
	MainData     = 0x00
	MainConst    = 0x01
	MainArray    = 0x00
	MainVar      = 0x02
	MainAbs      = 0x00
	MainRelative = 0x04
)

type UsagePage struct{ Page uint16 }

func (u UsagePage) bytes() []byte {
	if u.Page <= 0xff {
		return shortItem(0x04, byte(u.Page))
	}
	return shortItem(0x04, byte(u.Page), byte(u.Page>>8))
}

type Usage struct{ Usage uint16 }

func (u Usage) bytes() []byte {
	if u.Usage <= 0xff {
		return shortItem(0x08, byte(u.Usage))
	}
	return shortItem(0x08, byte(u.Usage), byte(u.Usage>>8))
}

type UsageMinimum struct{ Min uint16 }

func (u UsageMinimum) bytes() []byte { return shortItem(0x18, byte(u.Min), byte(u.Min>>8)) }

type UsageMaximum struct{ Max uint16 }

func (u UsageMaximum) bytes() []byte { return shortItem(0x28, byte(u.Max), byte(u.Max>>8)) }

type LogicalMinimum struct{ Min int32 }

func (l LogicalMinimum) bytes() []byte { return shortItem(0x14, byte(l.Min)) }

type LogicalMaximum struct{ Max int32 }

func (l LogicalMaximum) bytes() []byte {
	if l.Max > 0xff {
		b := encodeU16(uint16(l.Max))
		return shortItem(0x24, b[0], b[1])
	}
	return shortItem(0x24, byte(l.Max))
}

type ReportSize struct{ Bits uint8 }

func (r ReportSize) bytes() []byte { return shortItem(0x74, r.Bits) }

type ReportCount struct{ Count uint16 }

func (r ReportCount) bytes() []byte {
	if r.Count > 0xff {
		b := encodeU16(r.Count)
		return shortItem(0x94, b[0], b[1])
	}
	return shortItem(0x94, byte(r.Count))
}

type ReportID struct{ ID uint8 }

func (r ReportID) bytes() []byte { return shortItem(0x84, r.ID) }

type Input struct{ Flags uint8 }

func (i Input) bytes() []byte { return shortItem(0x80, i.Flags) }

type Output struct{ Flags uint8 }

func (o Output) bytes() []byte { return shortItem(0x90, o.Flags) }

type Feature struct{ Flags uint8 }

func (f Feature) bytes() []byte { return shortItem(0xb0, f.Flags) }

type Collection struct {
	Kind  uint8
	Items []Item
}

func (c Collection) bytes() []byte {
	out := shortItem(0xa0, c.Kind)
	for _, it := range c.Items {
		out = append(out, it.bytes()...)
	}
	return append(out, 0xc0) // End Collection, no data
}
