// Package usbip implements the USB/IP wire protocol: the management
// opcodes used to list and import exported devices, and the URB
// submit/unlink commands exchanged once a device has been attached.
// Every multi-byte field on the wire is big-endian; USB descriptor bytes
// carried inside a payload are little-endian and are never touched here.
package usbip

import (
	"encoding/binary"
	"io"
)

const (
	Version = 0x0111

	OpReqDevlist = 0x8005
	OpRepDevlist = 0x0005
	OpReqImport  = 0x8003
	OpRepImport  = 0x0003

	CmdSubmitCode = 0x00000001
	CmdUnlinkCode = 0x00000002
	RetSubmitCode = 0x00000003
	RetUnlinkCode = 0x00000004

	DirOut = 0x00000000
	DirIn  = 0x00000001
)

// MgmtHeader is the 8-byte header shared by OP_REQ/OP_REP management commands.
type MgmtHeader struct {
	Version uint16
	Command uint16
	Status  uint32
}

func (h *MgmtHeader) Write(w io.Writer) error {
	var buf [8]byte
	binary.BigEndian.PutUint16(buf[0:2], h.Version)
	binary.BigEndian.PutUint16(buf[2:4], h.Command)
	binary.BigEndian.PutUint32(buf[4:8], h.Status)
	_, err := w.Write(buf[:])
	return err
}

func ReadMgmtHeader(r io.Reader) (MgmtHeader, error) {
	var buf [8]byte
	if err := ReadExactly(r, buf[:]); err != nil {
		return MgmtHeader{}, err
	}
	return MgmtHeader{
		Version: binary.BigEndian.Uint16(buf[0:2]),
		Command: binary.BigEndian.Uint16(buf[2:4]),
		Status:  binary.BigEndian.Uint32(buf[4:8]),
	}, nil
}

// DevListReplyHeader follows MgmtHeader in an OP_REP_DEVLIST reply.
type DevListReplyHeader struct {
	NDevices uint32
}

func (d *DevListReplyHeader) Write(w io.Writer) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[0:4], d.NDevices)
	_, err := w.Write(buf[:])
	return err
}

// ExportMeta carries the USB/IP bus identity of one exported device.
type ExportMeta struct {
	Path     [256]byte
	USBBusId [32]byte
	BusId    uint32
	DevId    uint32
}

// PutFixedString copies s into dst, zero-padding (or truncating) to len(dst).
func PutFixedString(dst []byte, s string) {
	n := copy(dst, []byte(s))
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// ExportedDevice is the 312-byte device record used by both devlist and
// import replies, plus the per-interface triples devlist appends.
type ExportedDevice struct {
	ExportMeta
	Speed uint32

	IDVendor            uint16
	IDProduct           uint16
	BcdDevice           uint16
	BDeviceClass        uint8
	BDeviceSubClass     uint8
	BDeviceProtocol     uint8
	BConfigurationValue uint8
	BNumConfigurations  uint8
	BNumInterfaces      uint8

	Interfaces []InterfaceDesc
}

// InterfaceDesc is one 4-byte interface triple (class, subclass, protocol, pad).
type InterfaceDesc struct {
	Class    uint8
	SubClass uint8
	Protocol uint8
}

func (d *ExportedDevice) writeRecord(w io.Writer) error {
	if _, err := w.Write(d.Path[:]); err != nil {
		return err
	}
	if _, err := w.Write(d.USBBusId[:]); err != nil {
		return err
	}
	fields := []any{d.BusId, d.DevId, d.Speed, d.IDVendor, d.IDProduct, d.BcdDevice}
	for _, f := range fields {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte{
		d.BDeviceClass,
		d.BDeviceSubClass,
		d.BDeviceProtocol,
		d.BConfigurationValue,
		d.BNumConfigurations,
		d.BNumInterfaces,
	})
	return err
}

// WriteDevlist writes the device record followed by its interface triples.
func (d *ExportedDevice) WriteDevlist(w io.Writer) error {
	if err := d.writeRecord(w); err != nil {
		return err
	}
	for _, iface := range d.Interfaces {
		if _, err := w.Write([]byte{iface.Class, iface.SubClass, iface.Protocol, 0}); err != nil {
			return err
		}
	}
	return nil
}

// WriteImport writes the device record only, no interface triples.
func (d *ExportedDevice) WriteImport(w io.Writer) error {
	return d.writeRecord(w)
}

// HeaderBasic is common to CMD_SUBMIT/RET_SUBMIT/CMD_UNLINK/RET_UNLINK.
type HeaderBasic struct {
	Command uint32
	Seqnum  uint32
	Devid   uint32
	Dir     uint32
	Ep      uint32
}

func (h *HeaderBasic) write(w io.Writer) error {
	for _, f := range []uint32{h.Command, h.Seqnum, h.Devid, h.Dir, h.Ep} {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	return nil
}

func readHeaderBasic(buf []byte) HeaderBasic {
	return HeaderBasic{
		Command: binary.BigEndian.Uint32(buf[0:4]),
		Seqnum:  binary.BigEndian.Uint32(buf[4:8]),
		Devid:   binary.BigEndian.Uint32(buf[8:12]),
		Dir:     binary.BigEndian.Uint32(buf[12:16]),
		Ep:      binary.BigEndian.Uint32(buf[16:20]),
	}
}

// CmdSubmit is the 48-byte USBIP_CMD_SUBMIT header.
type CmdSubmit struct {
	Basic             HeaderBasic
	TransferFlags     uint32
	TransferBufferLen uint32
	StartFrame        uint32
	NumberOfPackets   uint32
	Interval          uint32
	Setup             [8]byte
}

const HeaderSize = 0x30

func (c *CmdSubmit) Write(w io.Writer) error {
	if err := c.Basic.write(w); err != nil {
		return err
	}
	for _, f := range []uint32{c.TransferFlags, c.TransferBufferLen, c.StartFrame, c.NumberOfPackets, c.Interval} {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	_, err := w.Write(c.Setup[:])
	return err
}

// ParseCmdSubmit decodes a 48-byte USBIP_CMD_SUBMIT header already read off the wire.
func ParseCmdSubmit(buf []byte) CmdSubmit {
	var c CmdSubmit
	c.Basic = readHeaderBasic(buf)
	c.TransferFlags = binary.BigEndian.Uint32(buf[20:24])
	c.TransferBufferLen = binary.BigEndian.Uint32(buf[24:28])
	c.StartFrame = binary.BigEndian.Uint32(buf[28:32])
	c.NumberOfPackets = binary.BigEndian.Uint32(buf[32:36])
	c.Interval = binary.BigEndian.Uint32(buf[36:40])
	copy(c.Setup[:], buf[40:48])
	return c
}

// RetSubmit is the 48-byte USBIP_RET_SUBMIT header (payload follows).
type RetSubmit struct {
	Basic           HeaderBasic
	Status          int32
	ActualLength    uint32
	StartFrame      uint32
	NumberOfPackets uint32
	ErrorCount      uint32
	Padding         [8]byte
}

func (r *RetSubmit) Write(w io.Writer) error {
	if err := r.Basic.write(w); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, r.Status); err != nil {
		return err
	}
	for _, f := range []uint32{r.ActualLength, r.StartFrame, r.NumberOfPackets, r.ErrorCount} {
		if err := binary.Write(w, binary.BigEndian, f); err != nil {
			return err
		}
	}
	_, err := w.Write(r.Padding[:])
	return err
}

// CmdUnlink is the 48-byte USBIP_CMD_UNLINK header.
type CmdUnlink struct {
	Basic        HeaderBasic
	UnlinkSeqnum uint32
	Padding      [24]byte
}

func (c *CmdUnlink) Write(w io.Writer) error {
	if err := c.Basic.write(w); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, c.UnlinkSeqnum); err != nil {
		return err
	}
	_, err := w.Write(c.Padding[:])
	return err
}

// ParseCmdUnlink decodes a 48-byte USBIP_CMD_UNLINK header already read off the wire.
func ParseCmdUnlink(buf []byte) CmdUnlink {
	var c CmdUnlink
	c.Basic = readHeaderBasic(buf)
	c.UnlinkSeqnum = binary.BigEndian.Uint32(buf[20:24])
	copy(c.Padding[:], buf[24:48])
	return c
}

// RetUnlink is the 48-byte USBIP_RET_UNLINK header.
type RetUnlink struct {
	Basic   HeaderBasic
	Status  int32
	Padding [24]byte
}

func (r *RetUnlink) Write(w io.Writer) error {
	if err := r.Basic.write(w); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, r.Status); err != nil {
		return err
	}
	_, err := w.Write(r.Padding[:])
	return err
}

// ReadExactly fills buf completely or returns the first error encountered,
// including io.EOF if the peer closed before any bytes arrived.
func ReadExactly(r io.Reader, buf []byte) error {
	_, err := io.ReadFull(r, buf)
	return err
}
