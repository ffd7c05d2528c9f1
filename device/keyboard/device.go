// Package keyboard is a reference HID keyboard device: full N-key
// rollover input reports and host-driven LED state, wired onto the
// generic handler.HID implementation of usb.Handler.
package keyboard

import (
	"sync"

	"github.com/usbipgo/usbipd/handler"
	"github.com/usbipgo/usbipd/registry"
	"github.com/usbipgo/usbipd/usb"
	"github.com/usbipgo/usbipd/usb/hid"
)

// Keyboard owns the current input state and reports host LED changes
// through an optional callback.
type Keyboard struct {
	hid *handler.HID

	mu          sync.Mutex
	state       InputState
	ledState    uint8
	ledCallback func(LEDState)
}

// Options overrides the default descriptor's identity fields.
type Options struct {
	BusNum    uint32
	DevNum    uint32
	IDVendor  uint16
	IDProduct uint16
}

// New builds a keyboard device and the registry.Spec that exports it.
func New(o Options) (*Keyboard, registry.Spec) {
	k := &Keyboard{hid: handler.NewHID()}
	k.hid.OnOutputReport(k.handleLEDReport)

	if o.IDVendor == 0 {
		o.IDVendor = 0x2e8a
	}
	if o.IDProduct == 0 {
		o.IDProduct = 0x0010
	}
	if o.BusNum == 0 {
		o.BusNum = 1
	}
	if o.DevNum == 0 {
		o.DevNum = 1
	}

	desc := buildDescriptor(o.IDVendor, o.IDProduct, k.hid)
	return k, registry.Spec{BusNum: o.BusNum, DevNum: o.DevNum, Descriptor: desc}
}

// SetLEDCallback registers a callback invoked whenever the host changes
// NumLock/CapsLock/ScrollLock/Compose/Kana state.
func (k *Keyboard) SetLEDCallback(f func(LEDState)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.ledCallback = f
}

// LEDState returns the most recently reported LED state.
func (k *Keyboard) LEDState() LEDState {
	k.mu.Lock()
	defer k.mu.Unlock()
	var ls LEDState
	_ = ls.UnmarshalBinary([]byte{k.ledState})
	return ls
}

// Press marks a key pressed or released and queues an updated input
// report for delivery on the next interrupt-IN poll.
func (k *Keyboard) Press(code uint8, pressed bool) {
	k.mu.Lock()
	k.state.SetKey(code, pressed)
	snapshot := k.state
	k.mu.Unlock()
	k.hid.QueueReport(&snapshot)
}

// SetModifiers overwrites the modifier byte and queues an updated report.
func (k *Keyboard) SetModifiers(mods uint8) {
	k.mu.Lock()
	k.state.Modifiers = mods
	snapshot := k.state
	k.mu.Unlock()
	k.hid.QueueReport(&snapshot)
}

func (k *Keyboard) handleLEDReport(payload []byte) {
	if len(payload) < 1 {
		return
	}
	k.mu.Lock()
	k.ledState = payload[0]
	cb := k.ledCallback
	k.mu.Unlock()
	if cb != nil {
		var ls LEDState
		_ = ls.UnmarshalBinary(payload)
		cb(ls)
	}
}

var reportDescriptor = hid.Report{
	Items: []hid.Item{
		hid.UsagePage{Page: hid.UsagePageGenericDesktop},
		hid.Usage{Usage: hid.UsageKeyboard},
		hid.Collection{
			Kind: hid.CollectionApplication,
			Items: []hid.Item{
				// Modifiers: 8 single-bit flags, LeftCtrl..RightGUI.
				hid.UsagePage{Page: hid.UsagePageKeyboard},
				hid.UsageMinimum{Min: 0xe0},
				hid.UsageMaximum{Max: 0xe7},
				hid.LogicalMinimum{Min: 0},
				hid.LogicalMaximum{Max: 1},
				hid.ReportSize{Bits: 1},
				hid.ReportCount{Count: 8},
				hid.Input{Flags: hid.MainData | hid.MainVar | hid.MainAbs},

				// Reserved byte.
				hid.ReportSize{Bits: 8},
				hid.ReportCount{Count: 1},
				hid.Input{Flags: hid.MainConst},

				// Key bitmap: 256 usage codes, one bit each.
				hid.UsagePage{Page: hid.UsagePageKeyboard},
				hid.UsageMinimum{Min: 0x00},
				hid.UsageMaximum{Max: 0xff},
				hid.LogicalMinimum{Min: 0},
				hid.LogicalMaximum{Max: 1},
				hid.ReportSize{Bits: 1},
				hid.ReportCount{Count: 256},
				hid.Input{Flags: hid.MainData | hid.MainVar | hid.MainAbs},

				// LED output: NumLock..Kana, padded to a full byte.
				hid.UsagePage{Page: hid.UsagePageLEDs},
				hid.UsageMinimum{Min: 0x01},
				hid.UsageMaximum{Max: 0x05},
				hid.LogicalMinimum{Min: 0},
				hid.LogicalMaximum{Max: 1},
				hid.ReportSize{Bits: 1},
				hid.ReportCount{Count: 5},
				hid.Output{Flags: hid.MainData | hid.MainVar | hid.MainAbs},
				hid.ReportSize{Bits: 3},
				hid.ReportCount{Count: 1},
				hid.Output{Flags: hid.MainConst},
			},
		},
	},
}

func buildDescriptor(idVendor, idProduct uint16, h *handler.HID) usb.Descriptor {
	report := reportDescriptor.Bytes()
	return usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BMaxPacketSize0:    0x40,
			IDVendor:           idVendor,
			IDProduct:          idProduct,
			BcdDevice:          0x0100,
			IManufacturer:      1,
			IProduct:           2,
			ISerialNumber:      3,
			BNumConfigurations: 1,
			Speed:              usb.SpeedFull,
		},
		Interfaces: []usb.InterfaceConfig{
			{
				Descriptor: usb.InterfaceDescriptor{
					BInterfaceNumber:   0,
					BNumEndpoints:      2,
					BInterfaceClass:    0x03, // HID
					BInterfaceSubClass: 0x00,
					BInterfaceProtocol: 0x01, // keyboard; subclass 0 declares no boot interface, and reports keep the 34-byte layout
				},
				HID: &usb.HIDFunction{
					BcdHID:       0x0111,
					BCountryCode: 0,
					Report:       report,
				},
				Endpoints: []usb.EndpointDescriptor{
					{BEndpointAddress: 0x81, BmAttributes: 0x03, WMaxPacketSize: 64, BInterval: 5},
					{BEndpointAddress: 0x01, BmAttributes: 0x03, WMaxPacketSize: 8, BInterval: 5},
				},
				Handler:             h,
				OwnsClassDescriptor: true,
			},
		},
		Strings: map[uint8]string{
			1: "usbipd",
			2: "USB/IP Keyboard",
			3: "0001",
		},
	}
}
