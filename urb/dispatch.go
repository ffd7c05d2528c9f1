// Package urb implements the URB dispatch engine: given a decoded
// USBIP_CMD_SUBMIT, it either services endpoint 0 standard control
// requests itself or forwards to the owning interface's Handler.
package urb

import (
	"github.com/usbipgo/usbipd/usb"
)

// Request is one decoded URB ready for dispatch.
type Request struct {
	Endpoint uint8 // standard endpoint number, without direction bit
	In       bool  // true if the data stage is device-to-host
	Setup    usb.Setup
	Payload  []byte // OUT payload, nil for IN transfers
}

// Dispatch routes req to device's endpoint-0 control logic or to the
// interface handler owning the addressed endpoint, and returns the
// response payload that belongs in the RET_SUBMIT reply.
func Dispatch(dev *usb.Device, req Request) ([]byte, error) {
	if req.Endpoint == 0 {
		return dispatchControl(dev, req)
	}

	// real_ep = ep | 0x80 only for IN transfers; an OUT submit to an
	// endpoint number is read literally. A direction=OUT submit
	// targeting what is only ever wired as an IN endpoint (e.g. an
	// interrupt-IN report pipe) is a protocol violation rather than a
	// silently-accepted no-op, since no real device would see it.
	addr := req.Endpoint
	if req.In {
		addr |= 0x80
	}

	iface := dev.InterfaceForEndpoint(addr)
	if iface == nil {
		return nil, usb.NewError(usb.KindUnknownEndpoint, "no interface owns endpoint", nil)
	}
	resp, err := iface.Handler.HandleURB(iface, addr, req.Setup, req.Payload)
	if err != nil {
		return nil, usb.NewError(usb.KindHandlerError, "handler failed", err)
	}
	return resp, nil
}

func dispatchControl(dev *usb.Device, req Request) ([]byte, error) {
	s := req.Setup

	if s.RequestType() == usb.RequestTypeStandard {
		switch s.BRequest {
		case usb.ReqGetDescriptor:
			return getDescriptor(dev, s)
		case usb.ReqSetConfiguration:
			return nil, nil
		case usb.ReqGetConfiguration:
			return []byte{dev.ConfigValue}, nil
		case usb.ReqSetInterface, usb.ReqSetAddress,
			usb.ReqClearFeature, usb.ReqSetFeature:
			return nil, nil
		case usb.ReqGetStatus:
			return []byte{0, 0}, nil
		}
	}

	// Class/vendor requests, and any standard request not already
	// serviced above, fall through to the owning interface's handler
	// when addressed to an interface or one of its endpoints.
	var iface *usb.InterfaceConfig
	switch s.Recipient() {
	case usb.RecipientInterface:
		iface = dev.Interface(uint8(s.WIndex))
	case usb.RecipientEndpoint:
		iface = dev.InterfaceForEndpoint(uint8(s.WIndex))
	}
	if iface != nil && iface.Handler != nil {
		resp, err := iface.Handler.HandleURB(iface, 0, s, req.Payload)
		if err != nil {
			return nil, usb.NewError(usb.KindHandlerError, "handler failed", err)
		}
		return resp, nil
	}

	return nil, usb.NewError(usb.KindHandlerError, "unhandled control request", nil)
}

func getDescriptor(dev *usb.Device, s usb.Setup) ([]byte, error) {
	descType := uint8(s.WValue >> 8)
	descIndex := uint8(s.WValue)

	var full []byte
	switch {
	case s.Recipient() == usb.RecipientDevice && descType == usb.DescTypeDevice:
		full = dev.Descriptor.Device.Bytes()
	case s.Recipient() == usb.RecipientDevice && descType == usb.DescTypeConfiguration:
		full = dev.ConfigurationDescriptor()
	case s.Recipient() == usb.RecipientDevice && descType == usb.DescTypeString && descIndex == 0:
		// Index 0 is the LANGID array, not text; we only ever advertise
		// U.S. English (0x0409).
		full = []byte{4, usb.DescTypeString, 0x09, 0x04}
	case s.Recipient() == usb.RecipientDevice && descType == usb.DescTypeString:
		str, ok := dev.Descriptor.Strings[descIndex]
		if !ok {
			return nil, usb.NewError(usb.KindHandlerError, "unknown string index", nil)
		}
		full = usb.EncodeStringDescriptor(str)
	case s.Recipient() == usb.RecipientInterface && (descType == usb.DescTypeHID || descType == usb.DescTypeHIDReport):
		iface := dev.Interface(uint8(s.WIndex))
		if iface == nil {
			return nil, usb.NewError(usb.KindHandlerError, "unknown interface", nil)
		}
		if descType == usb.DescTypeHIDReport && iface.HID != nil {
			full = iface.HID.Report
		} else if descType == usb.DescTypeHID && iface.HID != nil {
			full = iface.HID.Bytes()
		} else if iface.Handler != nil {
			full = iface.Handler.ClassSpecificDescriptor()
		}
	}

	if full == nil {
		return nil, usb.NewError(usb.KindHandlerError, "unsupported descriptor request", nil)
	}
	if int(s.WLength) < len(full) {
		full = full[:s.WLength]
	}
	return full, nil
}
