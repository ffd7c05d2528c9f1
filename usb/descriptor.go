package usb

import "bytes"

// Descriptor types (USB 2.0 spec table 9-5), plus the class descriptor
// types handlers attach to an interface (HID descriptor, HID report).
const (
	DescTypeDevice        = 0x01
	DescTypeConfiguration = 0x02
	DescTypeString        = 0x03
	DescTypeInterface     = 0x04
	DescTypeEndpoint      = 0x05
	DescTypeHID           = 0x21
	DescTypeHIDReport     = 0x22
)

// DeviceDescriptor is the 18-byte standard device descriptor.
type DeviceDescriptor struct {
	BcdUSB             uint16
	BDeviceClass       uint8
	BDeviceSubClass    uint8
	BDeviceProtocol    uint8
	BMaxPacketSize0    uint8
	IDVendor           uint16
	IDProduct          uint16
	BcdDevice          uint16
	IManufacturer      uint8
	IProduct           uint8
	ISerialNumber      uint8
	BNumConfigurations uint8

	// Speed encodes the emulated link speed reported over USB/IP
	// (low=1, full=2, high=3, super=5, super+=6); not part of the
	// descriptor itself but carried alongside it for convenience.
	Speed uint32
}

func (d DeviceDescriptor) Bytes() []byte {
	b := make([]byte, 18)
	b[0] = 18
	b[1] = DescTypeDevice
	putU16(b[2:4], d.BcdUSB)
	b[4] = d.BDeviceClass
	b[5] = d.BDeviceSubClass
	b[6] = d.BDeviceProtocol
	b[7] = d.BMaxPacketSize0
	putU16(b[8:10], d.IDVendor)
	putU16(b[10:12], d.IDProduct)
	putU16(b[12:14], d.BcdDevice)
	b[14] = d.IManufacturer
	b[15] = d.IProduct
	b[16] = d.ISerialNumber
	b[17] = d.BNumConfigurations
	return b
}

// InterfaceDescriptor is the 9-byte standard interface descriptor.
type InterfaceDescriptor struct {
	BInterfaceNumber   uint8
	BAlternateSetting  uint8
	BNumEndpoints      uint8
	BInterfaceClass    uint8
	BInterfaceSubClass uint8
	BInterfaceProtocol uint8
	IInterface         uint8
}

func (d InterfaceDescriptor) Bytes() []byte {
	return []byte{
		9, DescTypeInterface,
		d.BInterfaceNumber, d.BAlternateSetting, d.BNumEndpoints,
		d.BInterfaceClass, d.BInterfaceSubClass, d.BInterfaceProtocol,
		d.IInterface,
	}
}

// EndpointDescriptor is the 7-byte standard endpoint descriptor.
type EndpointDescriptor struct {
	BEndpointAddress uint8
	BmAttributes     uint8
	WMaxPacketSize   uint16
	BInterval        uint8
}

func (d EndpointDescriptor) Bytes() []byte {
	b := make([]byte, 7)
	b[0] = 7
	b[1] = DescTypeEndpoint
	b[2] = d.BEndpointAddress
	b[3] = d.BmAttributes
	putU16(b[4:6], d.WMaxPacketSize)
	b[6] = d.BInterval
	return b
}

// ClassSpecificDescriptor is an opaque, already-encoded descriptor a
// handler attaches after the interface descriptor in a configuration
// descriptor (CDC functional descriptors, HID descriptors, vendor blobs).
type ClassSpecificDescriptor struct {
	Bytes []byte
}

// HIDFunction describes the HID descriptor and report descriptor attached
// to a HID interface.
type HIDFunction struct {
	BcdHID       uint16
	BCountryCode uint8
	Report       []byte
}

// Bytes returns the 9-byte HID descriptor (a single report-descriptor
// sub-descriptor, the common case for simple HID devices).
func (h HIDFunction) Bytes() []byte {
	b := make([]byte, 9)
	b[0] = 9
	b[1] = DescTypeHID
	putU16(b[2:4], h.BcdHID)
	b[4] = h.BCountryCode
	b[5] = 1 // bNumDescriptors
	b[6] = DescTypeHIDReport
	putU16(b[7:9], uint16(len(h.Report)))
	return b
}

// InterfaceConfig bundles one interface's descriptor, endpoints and any
// class-specific descriptors, and the handler that will service it.
type InterfaceConfig struct {
	Descriptor       InterfaceDescriptor
	Endpoints        []EndpointDescriptor
	HID              *HIDFunction
	ClassDescriptors []ClassSpecificDescriptor
	Handler          Handler

	// OwnsClassDescriptor marks the interface that should receive its
	// Handler's ClassSpecificDescriptor() bytes, for handlers shared
	// across multiple interfaces (e.g. one CDC-ACM handler servicing
	// both the control and data interface) where only one of them is
	// the functional-descriptor's actual owner.
	OwnsClassDescriptor bool
}

// Descriptor is the full set of descriptors synthesized for one emulated
// device: the device descriptor, its interfaces, and its string table.
type Descriptor struct {
	Device     DeviceDescriptor
	Interfaces []InterfaceConfig
	Strings    map[uint8]string
}

// BuildConfigurationDescriptor concatenates the 9-byte configuration
// header with each interface's descriptor, HID descriptor (if any),
// class-specific descriptors and endpoint descriptors, patching
// wTotalLength once the full length is known.
func (d Descriptor) BuildConfigurationDescriptor(configValue uint8) []byte {
	var buf bytes.Buffer

	numEndpoints := 0
	for _, iface := range d.Interfaces {
		numEndpoints += len(iface.Endpoints)
	}

	header := make([]byte, 9)
	header[0] = 9
	header[1] = DescTypeConfiguration
	// wTotalLength patched below
	header[4] = uint8(len(d.Interfaces))
	header[5] = configValue
	header[6] = 0 // iConfiguration
	header[7] = 0x80
	header[8] = 50 // bMaxPower, 100mA
	buf.Write(header)

	for _, iface := range d.Interfaces {
		buf.Write(iface.Descriptor.Bytes())
		if iface.HID != nil {
			buf.Write(iface.HID.Bytes())
		}
		for _, cd := range iface.ClassDescriptors {
			buf.Write(cd.Bytes)
		}
		for _, ep := range iface.Endpoints {
			buf.Write(ep.Bytes())
		}
	}

	out := buf.Bytes()
	putU16(out[2:4], uint16(len(out)))
	return out
}

// EncodeStringDescriptor encodes s as a UTF-16LE USB string descriptor.
func EncodeStringDescriptor(s string) []byte {
	runes := []rune(s)
	b := make([]byte, 2+2*len(runes))
	for i, r := range runes {
		putU16(b[2+2*i:4+2*i], uint16(r))
	}
	b[0] = uint8(len(b))
	b[1] = DescTypeString
	return b
}

func putU16(dst []byte, v uint16) {
	dst[0] = uint8(v)
	dst[1] = uint8(v >> 8)
}
