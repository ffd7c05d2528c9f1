// Package registry builds the immutable, in-memory set of devices a
// server exports. The registry is assembled once at startup from
// configuration and never mutated afterward: no hot-plug, no dynamic
// bus allocation.
package registry

import (
	"fmt"

	"github.com/usbipgo/usbipd/usb"
	"github.com/usbipgo/usbipd/usbip"
)

// Spec describes one device to export, as loaded from configuration.
type Spec struct {
	BusNum     uint32
	DevNum     uint32
	Descriptor usb.Descriptor
}

// Registry is the read-only collection of exported devices, indexed both
// by USB/IP bus id string ("1-1") and by the numeric devid used once a
// client has imported a device.
type Registry struct {
	devices []*usb.Device
	byBusID map[string]*usb.Device
	byDevID map[uint32]*usb.Device
}

// Build constructs a Registry from specs. Order is preserved in All().
func Build(specs []Spec) *Registry {
	r := &Registry{
		byBusID: make(map[string]*usb.Device),
		byDevID: make(map[uint32]*usb.Device),
	}
	for _, s := range specs {
		busID := fmt.Sprintf("%d-%d", s.BusNum, s.DevNum)
		devID := s.BusNum<<16 | s.DevNum
		dev := &usb.Device{
			BusID:       busID,
			DeviceID:    devID,
			ConfigValue: 1,
			Descriptor:  s.Descriptor,
		}
		for i := range dev.Descriptor.Interfaces {
			iface := &dev.Descriptor.Interfaces[i]
			if iface.Handler == nil || !iface.OwnsClassDescriptor {
				continue
			}
			if cs := iface.Handler.ClassSpecificDescriptor(); len(cs) > 0 {
				iface.ClassDescriptors = append(iface.ClassDescriptors, usb.ClassSpecificDescriptor{Bytes: cs})
			}
		}
		r.devices = append(r.devices, dev)
		r.byBusID[busID] = dev
		r.byDevID[devID] = dev
	}
	return r
}

// All returns every exported device, in registration order.
func (r *Registry) All() []*usb.Device { return r.devices }

// ByBusID looks up a device by its USB/IP bus id string (e.g. "1-1"),
// matching the OP_REQ_IMPORT request's busid field.
func (r *Registry) ByBusID(busID string) (*usb.Device, bool) {
	d, ok := r.byBusID[busID]
	return d, ok
}

// ByDevID looks up a device by its numeric devid, matching
// USBIP_CMD_SUBMIT's devid field once a client has attached.
func (r *Registry) ByDevID(devID uint32) (*usb.Device, bool) {
	d, ok := r.byDevID[devID]
	return d, ok
}

// ExportedDevice builds the wire-format record for dev, suitable for
// both OP_REP_DEVLIST and OP_REP_IMPORT (WriteDevlist/WriteImport pick
// which trailing fields to emit).
func ExportedDevice(dev *usb.Device) usbip.ExportedDevice {
	busNum := dev.DeviceID >> 16
	devNum := dev.DeviceID & 0xffff

	e := usbip.ExportedDevice{
		Speed:               dev.Descriptor.Device.Speed,
		IDVendor:            dev.Descriptor.Device.IDVendor,
		IDProduct:           dev.Descriptor.Device.IDProduct,
		BcdDevice:           dev.Descriptor.Device.BcdDevice,
		BDeviceClass:        dev.Descriptor.Device.BDeviceClass,
		BDeviceSubClass:     dev.Descriptor.Device.BDeviceSubClass,
		BDeviceProtocol:     dev.Descriptor.Device.BDeviceProtocol,
		BConfigurationValue: dev.ConfigValue,
		BNumConfigurations:  dev.Descriptor.Device.BNumConfigurations,
		BNumInterfaces:      uint8(len(dev.Descriptor.Interfaces)),
	}
	e.BusId = busNum
	e.DevId = devNum
	usbip.PutFixedString(e.USBBusId[:], dev.BusID)
	usbip.PutFixedString(e.Path[:], fmt.Sprintf("/sys/devices/usbip/%s", dev.BusID))

	for _, iface := range dev.Descriptor.Interfaces {
		e.Interfaces = append(e.Interfaces, usbip.InterfaceDesc{
			Class:    iface.Descriptor.BInterfaceClass,
			SubClass: iface.Descriptor.BInterfaceSubClass,
			Protocol: iface.Descriptor.BInterfaceProtocol,
		})
	}
	return e
}
