package usb

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeviceDescriptorBytes(t *testing.T) {
	d := DeviceDescriptor{
		BcdUSB:             0x0200,
		BMaxPacketSize0:    0x40,
		IDVendor:           0x2e8a,
		IDProduct:          0x0010,
		BcdDevice:          0x0100,
		IManufacturer:      1,
		IProduct:           2,
		ISerialNumber:      3,
		BNumConfigurations: 1,
	}
	b := d.Bytes()
	assert.Len(t, b, 18)
	assert.Equal(t, uint8(18), b[0])
	assert.Equal(t, uint8(DescTypeDevice), b[1])
	assert.Equal(t, uint16(0x0200), binary.LittleEndian.Uint16(b[2:4]))
	assert.Equal(t, uint16(0x2e8a), binary.LittleEndian.Uint16(b[8:10]))
	assert.Equal(t, uint8(1), b[17])
}

func TestBuildConfigurationDescriptorPatchesLength(t *testing.T) {
	desc := Descriptor{
		Interfaces: []InterfaceConfig{
			{
				Descriptor: InterfaceDescriptor{BNumEndpoints: 1, BInterfaceClass: 0x03},
				Endpoints:  []EndpointDescriptor{{BEndpointAddress: 0x81, WMaxPacketSize: 8}},
			},
		},
	}
	cfg := desc.BuildConfigurationDescriptor(1)

	wantLen := 9 + 9 + 7 // config header + interface + one endpoint
	assert.Len(t, cfg, wantLen)
	assert.Equal(t, uint16(wantLen), binary.LittleEndian.Uint16(cfg[2:4]))
	assert.Equal(t, uint8(1), cfg[4]) // bNumInterfaces
}

func TestEncodeStringDescriptor(t *testing.T) {
	b := EncodeStringDescriptor("AB")
	assert.Equal(t, uint8(6), b[0]) // 2 header + 2*2 chars
	assert.Equal(t, uint8(DescTypeString), b[1])
	assert.Equal(t, uint16('A'), binary.LittleEndian.Uint16(b[2:4]))
	assert.Equal(t, uint16('B'), binary.LittleEndian.Uint16(b[4:6]))
}

func TestHIDFunctionBytes(t *testing.T) {
	h := HIDFunction{BcdHID: 0x0111, Report: make([]byte, 40)}
	b := h.Bytes()
	assert.Len(t, b, 9)
	assert.Equal(t, uint8(DescTypeHID), b[1])
	assert.Equal(t, uint16(40), binary.LittleEndian.Uint16(b[7:9]))
}
