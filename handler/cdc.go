package handler

import (
	"sync"

	"github.com/usbipgo/usbipd/usb"
	"github.com/usbipgo/usbipd/usb/cdc"
)

// CDCACM services a CDC-ACM (virtual serial port) interface: line coding,
// control line state and break requests on endpoint 0, and a byte FIFO
// for the bulk data endpoints.
type CDCACM struct {
	mu              sync.Mutex
	lineCoding      cdc.LineCoding
	controlLineIn   uint16
	rxQueue         []byte // host-to-device bytes, read back via Read
	txPending       [][]byte
	onLineCoding    func(cdc.LineCoding)
	onControlLine   func(dtr, rts bool)
}

func NewCDCACM() *CDCACM {
	return &CDCACM{lineCoding: cdc.DefaultLineCoding}
}

// OnLineCodingChange registers a callback invoked whenever the host sets
// a new line coding (baud/parity/stop bits/data bits).
func (c *CDCACM) OnLineCodingChange(f func(cdc.LineCoding)) { c.onLineCoding = f }

// OnControlLineChange registers a callback invoked whenever the host
// changes DTR/RTS state.
func (c *CDCACM) OnControlLineChange(f func(dtr, rts bool)) { c.onControlLine = f }

// Write queues bytes to be delivered to the host on the next bulk-IN poll.
func (c *CDCACM) Write(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.txPending = append(c.txPending, append([]byte(nil), data...))
}

// Read drains bytes the host has written (bulk-OUT), FIFO order.
func (c *CDCACM) Read(max int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.rxQueue) == 0 {
		return nil
	}
	if max > len(c.rxQueue) {
		max = len(c.rxQueue)
	}
	out := c.rxQueue[:max]
	c.rxQueue = c.rxQueue[max:]
	return out
}

func (c *CDCACM) HandleURB(iface *usb.InterfaceConfig, ep uint8, setup usb.Setup, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ep == 0 {
		switch setup.BRequest {
		case cdc.ReqSetLineCoding:
			if len(payload) >= 7 {
				c.lineCoding = cdc.ParseLineCoding(payload)
				if c.onLineCoding != nil {
					c.onLineCoding(c.lineCoding)
				}
			}
			return nil, nil
		case cdc.ReqGetLineCoding:
			return c.lineCoding.Bytes(), nil
		case cdc.ReqSetControlLineState:
			c.controlLineIn = setup.WValue
			if c.onControlLine != nil {
				c.onControlLine(setup.WValue&cdc.ControlLineDTR != 0, setup.WValue&cdc.ControlLineRTS != 0)
			}
			return nil, nil
		case cdc.ReqSendBreak:
			return nil, nil
		default:
			return nil, nil
		}
	}

	// Data interface: bulk IN drains queued host-bound bytes, bulk OUT
	// appends to the receive queue for Read to drain.
	if ep&0x80 != 0 {
		// The control interface's interrupt-IN notification endpoint
		// carries no serial data.
		if iface != nil && iface.Descriptor.BInterfaceClass == 0x02 {
			return nil, nil
		}
		if len(c.txPending) == 0 {
			return nil, nil
		}
		r := c.txPending[0]
		c.txPending = c.txPending[1:]
		return r, nil
	}
	c.rxQueue = append(c.rxQueue, payload...)
	return nil, nil
}

// ClassSpecificDescriptor returns the concatenated Header, Call
// Management, ACM and Union functional descriptors for this interface,
// assuming a two-interface (control + data) CDC-ACM configuration where
// the control interface is this one and the data interface follows it.
func (c *CDCACM) ClassSpecificDescriptor() []byte {
	var out []byte
	out = append(out, cdc.HeaderDescriptor{BcdCDC: 0x0110}.Bytes()...)
	out = append(out, cdc.CallManagementDescriptor{BmCapabilities: 0x00, DataInterface: 1}.Bytes()...)
	out = append(out, cdc.ACMDescriptor{BmCapabilities: 0x02}.Bytes()...)
	out = append(out, cdc.UnionDescriptor{MasterInterface: 0, SubordinateInterface: 1}.Bytes()...)
	return out
}
