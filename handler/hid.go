// Package handler implements the reference usb.Handler variants: a
// generic HID interface, CDC-ACM, and a libusb-backed host pass-through.
package handler

import (
	"sync"

	"github.com/usbipgo/usbipd/device"
	"github.com/usbipgo/usbipd/usb"
)

// HID request codes (HID 1.11 spec section 7.2), beyond the standard
// GET_DESCRIPTOR already handled by the dispatcher.
const (
	ReqGetReport   = 0x01
	ReqSetIdle     = 0x0a
	ReqSetProtocol = 0x0b
)

// HID services a generic HID interface: GET_REPORT/SET_IDLE/SET_PROTOCOL
// on endpoint 0, and a FIFO of pending input reports served on the
// interrupt-IN endpoint (oldest first, empty if none queued).
type HID struct {
	mu         sync.Mutex
	idleRate   uint8
	protocol   uint8
	pending    [][]byte
	lastReport []byte
	onOutput   func([]byte)
}

func NewHID() *HID {
	return &HID{protocol: 1} // report protocol, not boot protocol
}

// QueueReport builds and appends a report to be delivered on the next
// interrupt-IN poll.
func (h *HID) QueueReport(r device.ReportBuilder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	report := r.BuildReport()
	h.pending = append(h.pending, report)
	h.lastReport = report
}

// OnOutputReport registers a callback invoked with the payload of every
// OUT report received on the interrupt-OUT endpoint (e.g. keyboard LEDs).
func (h *HID) OnOutputReport(f func([]byte)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onOutput = f
}

func (h *HID) HandleURB(iface *usb.InterfaceConfig, ep uint8, setup usb.Setup, payload []byte) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ep == 0 {
		switch setup.BRequest {
		case ReqGetReport:
			// Returns the last built report as a snapshot; unlike the
			// interrupt-IN pipe, it never drains the pending FIFO.
			return h.lastReport, nil
		case ReqSetIdle:
			h.idleRate = uint8(setup.WValue >> 8)
			return nil, nil
		case ReqSetProtocol:
			h.protocol = uint8(setup.WValue)
			return nil, nil
		default:
			return nil, nil
		}
	}

	if ep&0x80 == 0 {
		if h.onOutput != nil {
			h.onOutput(payload)
		}
		return nil, nil
	}

	// Interrupt-IN report pipe: deliver the oldest queued report, or an
	// empty transfer if nothing is pending.
	if len(h.pending) == 0 {
		return nil, nil
	}
	r := h.pending[0]
	h.pending = h.pending[1:]
	return r, nil
}

// ClassSpecificDescriptor is unused for HID: the HID functional
// descriptor is carried on InterfaceConfig.HID, not here.
func (h *HID) ClassSpecificDescriptor() []byte { return nil }
