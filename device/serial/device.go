// Package serial is a reference CDC-ACM device: a two-interface virtual
// serial port (control + data) backed by handler.CDCACM.
package serial

import (
	"github.com/usbipgo/usbipd/handler"
	"github.com/usbipgo/usbipd/registry"
	"github.com/usbipgo/usbipd/usb"
	"github.com/usbipgo/usbipd/usb/cdc"
)

// Port wraps the CDC-ACM handler with a convenience API for an embedding
// program to push bytes to the host and drain bytes the host sent.
type Port struct {
	acm *handler.CDCACM
}

type Options struct {
	BusNum    uint32
	DevNum    uint32
	IDVendor  uint16
	IDProduct uint16
}

// New builds a serial port device and the registry.Spec that exports it.
func New(o Options) (*Port, registry.Spec) {
	acm := handler.NewCDCACM()
	p := &Port{acm: acm}

	if o.IDVendor == 0 {
		o.IDVendor = 0x2e8a
	}
	if o.IDProduct == 0 {
		o.IDProduct = 0x0011
	}
	if o.BusNum == 0 {
		o.BusNum = 1
	}
	if o.DevNum == 0 {
		o.DevNum = 2
	}

	desc := buildDescriptor(o.IDVendor, o.IDProduct, acm)
	return p, registry.Spec{BusNum: o.BusNum, DevNum: o.DevNum, Descriptor: desc}
}

// Write queues bytes for delivery to the host on the next bulk-IN poll.
func (p *Port) Write(data []byte) { p.acm.Write(data) }

// Read drains up to max bytes the host has written.
func (p *Port) Read(max int) []byte { return p.acm.Read(max) }

// OnLineCodingChange registers a callback for SET_LINE_CODING requests.
func (p *Port) OnLineCodingChange(f func(cdc.LineCoding)) { p.acm.OnLineCodingChange(f) }

// OnControlLineChange registers a callback for SET_CONTROL_LINE_STATE requests.
func (p *Port) OnControlLineChange(f func(dtr, rts bool)) { p.acm.OnControlLineChange(f) }

func buildDescriptor(idVendor, idProduct uint16, acm *handler.CDCACM) usb.Descriptor {
	return usb.Descriptor{
		Device: usb.DeviceDescriptor{
			BcdUSB:             0x0200,
			BDeviceClass:       0x02, // Communications Device Class
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
					BNumEndpoints:      1,
					BInterfaceClass:    0x02, // CDC Control
					BInterfaceSubClass: 0x02, // ACM
					BInterfaceProtocol: 0x01, // AT commands (unused, but conventional)
				},
				Endpoints: []usb.EndpointDescriptor{
					{BEndpointAddress: 0x83, BmAttributes: 0x03, WMaxPacketSize: 16, BInterval: 10}, // notification
				},
				Handler:             acm,
				OwnsClassDescriptor: true, // Header/CallManagement/ACM/Union belong to the control interface
			},
			{
				Descriptor: usb.InterfaceDescriptor{
					BInterfaceNumber:   1,
					BNumEndpoints:      2,
					BInterfaceClass:    0x0a, // CDC Data
					BInterfaceSubClass: 0x00,
					BInterfaceProtocol: 0x00,
				},
				Endpoints: []usb.EndpointDescriptor{
					{BEndpointAddress: 0x82, BmAttributes: 0x02, WMaxPacketSize: 64},
					{BEndpointAddress: 0x02, BmAttributes: 0x02, WMaxPacketSize: 64},
				},
				Handler: acm,
			},
		},
		Strings: map[uint8]string{
			1: "usbipd",
			2: "USB/IP Serial",
			3: "0002",
		},
	}
}
