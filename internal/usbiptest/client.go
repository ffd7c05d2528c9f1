// Package usbiptest is a minimal USB/IP client used by integration tests
// to drive a usbip.Server over a real TCP connection the way a kernel
// vhci driver would.
package usbiptest

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/usbipgo/usbipd/usbip"
)

// Client is a bare-bones USB/IP client for tests.
type Client struct {
	addr string
	seq  uint32
}

func New(addr string) *Client { return &Client{addr: addr} }

func (c *Client) nextSeq() uint32 { return atomic.AddUint32(&c.seq, 1) }

// Device mirrors the fields of one OP_REP_DEVLIST/OP_REP_IMPORT record.
type Device struct {
	Path, BusID                                                 string
	BusNum, DevNum, Speed                                       uint32
	IDVendor, IDProduct, BcdDevice                              uint16
	Class, SubClass, Protocol, ConfigVal, NumConfigs, NumIfaces uint8
	Interfaces                                                  []usbip.InterfaceDesc
}

// ListDevices performs OP_REQ_DEVLIST and returns the exported device list.
func (c *Client) ListDevices() ([]Device, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	hdr := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqDevlist}
	if err := hdr.Write(conn); err != nil {
		return nil, err
	}

	reply, err := usbip.ReadMgmtHeader(conn)
	if err != nil {
		return nil, err
	}
	if reply.Command != usbip.OpRepDevlist {
		return nil, fmt.Errorf("unexpected reply command %#x", reply.Command)
	}

	var countBuf [4]byte
	if err := usbip.ReadExactly(conn, countBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(countBuf[:])

	devices := make([]Device, 0, n)
	for i := uint32(0); i < n; i++ {
		d, err := readDeviceRecord(conn, true)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// ImportResult is the outcome of a successful OP_REQ_IMPORT.
type ImportResult struct {
	Conn     net.Conn
	Exported Device
}

// AttachDevice performs OP_REQ_IMPORT and, on success, leaves the
// connection open and ready for CMD_SUBMIT traffic.
func (c *Client) AttachDevice(busID string) (*ImportResult, error) {
	conn, err := net.Dial("tcp", c.addr)
	if err != nil {
		return nil, err
	}

	hdr := usbip.MgmtHeader{Version: usbip.Version, Command: usbip.OpReqImport}
	if err := hdr.Write(conn); err != nil {
		conn.Close()
		return nil, err
	}
	var busIDBuf [32]byte
	usbip.PutFixedString(busIDBuf[:], busID)
	if _, err := conn.Write(busIDBuf[:]); err != nil {
		conn.Close()
		return nil, err
	}

	reply, err := usbip.ReadMgmtHeader(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if reply.Status != 0 {
		conn.Close()
		return nil, fmt.Errorf("import failed: status %d", reply.Status)
	}

	dev, err := readDeviceRecord(conn, false)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &ImportResult{Conn: conn, Exported: dev}, nil
}

func readDeviceRecord(r net.Conn, withInterfaces bool) (Device, error) {
	var buf [312]byte
	if err := usbip.ReadExactly(r, buf[:]); err != nil {
		return Device{}, err
	}
	d := Device{
		Path:      trimZero(buf[0:256]),
		BusID:     trimZero(buf[256:288]),
		BusNum:    binary.BigEndian.Uint32(buf[288:292]),
		DevNum:    binary.BigEndian.Uint32(buf[292:296]),
		Speed:     binary.BigEndian.Uint32(buf[296:300]),
		IDVendor:  binary.BigEndian.Uint16(buf[300:302]),
		IDProduct: binary.BigEndian.Uint16(buf[302:304]),
		BcdDevice: binary.BigEndian.Uint16(buf[304:306]),
		Class:     buf[306],
		SubClass:  buf[307],
		Protocol:  buf[308],
		ConfigVal: buf[309],
		NumConfigs: buf[310],
		NumIfaces: buf[311],
	}
	if withInterfaces {
		for i := uint8(0); i < d.NumIfaces; i++ {
			var ifaceBuf [4]byte
			if err := usbip.ReadExactly(r, ifaceBuf[:]); err != nil {
				return Device{}, err
			}
			d.Interfaces = append(d.Interfaces, usbip.InterfaceDesc{
				Class: ifaceBuf[0], SubClass: ifaceBuf[1], Protocol: ifaceBuf[2],
			})
		}
	}
	return d, nil
}

func trimZero(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Submit sends a CMD_SUBMIT and returns the RET_SUBMIT status and payload.
func (c *Client) Submit(conn net.Conn, devID uint32, in bool, ep uint8, out []byte, setup [8]byte) (int32, []byte, error) {
	dir := uint32(usbip.DirOut)
	if in {
		dir = usbip.DirIn
	}
	cmd := usbip.CmdSubmit{
		Basic: usbip.HeaderBasic{
			Command: usbip.CmdSubmitCode,
			Seqnum:  c.nextSeq(),
			Devid:   devID,
			Dir:     dir,
			Ep:      uint32(ep),
		},
		TransferBufferLen: uint32(len(out)),
		Setup:             setup,
	}
	if in {
		cmd.TransferBufferLen = 1024
	}
	if err := cmd.Write(conn); err != nil {
		return 0, nil, err
	}
	if !in {
		if _, err := conn.Write(out); err != nil {
			return 0, nil, err
		}
	}

	var hdrBuf [usbip.HeaderSize]byte
	if err := usbip.ReadExactly(conn, hdrBuf[:]); err != nil {
		return 0, nil, err
	}
	status := int32(binary.BigEndian.Uint32(hdrBuf[20:24]))
	actualLen := binary.BigEndian.Uint32(hdrBuf[24:28])

	var payload []byte
	if actualLen > 0 {
		payload = make([]byte, actualLen)
		if err := usbip.ReadExactly(conn, payload); err != nil {
			return 0, nil, err
		}
	}
	return status, payload, nil
}
