// Package cdc holds CDC-ACM class descriptor layouts and the line-coding
// wire format used by the CDC-ACM interface handler.
package cdc

// Functional descriptor subtypes (CDC 1.2 spec table 13).
const (
	DescSubtypeHeader         = 0x00
	DescSubtypeCallManagement = 0x01
	DescSubtypeACM            = 0x02
	DescSubtypeUnion          = 0x06
)

const descTypeCSInterface = 0x24

// Class-specific requests (CDC 1.2 spec table 13, subset implemented here).
const (
	ReqSetLineCoding       = 0x20
	ReqGetLineCoding       = 0x21
	ReqSetControlLineState = 0x22
	ReqSendBreak           = 0x23
)

// HeaderDescriptor is the 5-byte Header Functional Descriptor.
type HeaderDescriptor struct {
	BcdCDC uint16
}

func (h HeaderDescriptor) Bytes() []byte {
	return []byte{5, descTypeCSInterface, DescSubtypeHeader, byte(h.BcdCDC), byte(h.BcdCDC >> 8)}
}

// CallManagementDescriptor is the 5-byte Call Management Functional Descriptor.
type CallManagementDescriptor struct {
	BmCapabilities uint8
	DataInterface  uint8
}

func (c CallManagementDescriptor) Bytes() []byte {
	return []byte{5, descTypeCSInterface, DescSubtypeCallManagement, c.BmCapabilities, c.DataInterface}
}

// ACMDescriptor is the 4-byte Abstract Control Management Functional Descriptor.
type ACMDescriptor struct {
	BmCapabilities uint8
}

func (a ACMDescriptor) Bytes() []byte {
	return []byte{4, descTypeCSInterface, DescSubtypeACM, a.BmCapabilities}
}

// UnionDescriptor is the 5-byte Union Functional Descriptor (one subordinate).
type UnionDescriptor struct {
	MasterInterface      uint8
	SubordinateInterface uint8
}

func (u UnionDescriptor) Bytes() []byte {
	return []byte{5, descTypeCSInterface, DescSubtypeUnion, u.MasterInterface, u.SubordinateInterface}
}

// Parity values used in LineCoding.
const (
	ParityNone = 0
	ParityOdd  = 1
	ParityEven = 2
)

// Stop-bit values used in LineCoding.
const (
	StopBits1   = 0
	StopBits1_5 = 1
	StopBits2   = 2
)

// LineCoding is the 7-byte SET/GET_LINE_CODING payload.
type LineCoding struct {
	DTERate       uint32
	CharFormat    uint8
	ParityType    uint8
	DataBits      uint8
}

// DefaultLineCoding is 9600 baud, 8 data bits, no parity, 1 stop bit.
var DefaultLineCoding = LineCoding{
	DTERate:    9600,
	CharFormat: StopBits1,
	ParityType: ParityNone,
	DataBits:   8,
}

func (l LineCoding) Bytes() []byte {
	b := make([]byte, 7)
	b[0] = byte(l.DTERate)
	b[1] = byte(l.DTERate >> 8)
	b[2] = byte(l.DTERate >> 16)
	b[3] = byte(l.DTERate >> 24)
	b[4] = l.CharFormat
	b[5] = l.ParityType
	b[6] = l.DataBits
	return b
}

// ParseLineCoding decodes a 7-byte SET_LINE_CODING payload.
func ParseLineCoding(b []byte) LineCoding {
	return LineCoding{
		DTERate:    uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24,
		CharFormat: b[4],
		ParityType: b[5],
		DataBits:   b[6],
	}
}

// Control line state bits (SET_CONTROL_LINE_STATE wValue).
const (
	ControlLineDTR = 0x01
	ControlLineRTS = 0x02
)
