package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbipgo/usbipd/usb"
)

func TestBuildIndexesByBusIDAndDevID(t *testing.T) {
	reg := Build([]Spec{
		{BusNum: 1, DevNum: 1, Descriptor: usb.Descriptor{Device: usb.DeviceDescriptor{IDVendor: 0x1111}}},
		{BusNum: 1, DevNum: 2, Descriptor: usb.Descriptor{Device: usb.DeviceDescriptor{IDVendor: 0x2222}}},
	})

	require.Len(t, reg.All(), 2)

	dev, ok := reg.ByBusID("1-2")
	require.True(t, ok)
	assert.Equal(t, uint16(0x2222), dev.Descriptor.Device.IDVendor)

	dev, ok = reg.ByDevID(1<<16 | 1)
	require.True(t, ok)
	assert.Equal(t, uint16(0x1111), dev.Descriptor.Device.IDVendor)

	_, ok = reg.ByBusID("9-9")
	assert.False(t, ok)
}

func TestExportedDeviceCarriesInterfaceTriples(t *testing.T) {
	reg := Build([]Spec{
		{BusNum: 2, DevNum: 5, Descriptor: usb.Descriptor{
			Interfaces: []usb.InterfaceConfig{
				{Descriptor: usb.InterfaceDescriptor{BInterfaceClass: 0x03, BInterfaceSubClass: 0x01, BInterfaceProtocol: 0x02}},
			},
		}},
	})
	dev, _ := reg.ByBusID("2-5")
	rec := ExportedDevice(dev)
	assert.Equal(t, uint32(2), rec.BusId)
	assert.Equal(t, uint32(5), rec.DevId)
	require.Len(t, rec.Interfaces, 1)
	assert.Equal(t, uint8(0x03), rec.Interfaces[0].Class)
}

func TestBuildAttachesHandlerClassSpecificDescriptor(t *testing.T) {
	h := &classDescHandler{bytes: []byte{0xde, 0xad}}
	reg := Build([]Spec{
		{BusNum: 1, DevNum: 1, Descriptor: usb.Descriptor{
			Interfaces: []usb.InterfaceConfig{{Handler: h, OwnsClassDescriptor: true}},
		}},
	})
	dev, _ := reg.ByBusID("1-1")
	require.Len(t, dev.Descriptor.Interfaces[0].ClassDescriptors, 1)
	assert.Equal(t, []byte{0xde, 0xad}, dev.Descriptor.Interfaces[0].ClassDescriptors[0].Bytes)
}

func TestBuildDoesNotDuplicateClassDescriptorAcrossSharedHandler(t *testing.T) {
	h := &classDescHandler{bytes: []byte{0xde, 0xad}}
	reg := Build([]Spec{
		{BusNum: 1, DevNum: 1, Descriptor: usb.Descriptor{
			Interfaces: []usb.InterfaceConfig{
				{Handler: h, OwnsClassDescriptor: true}, // control interface
				{Handler: h},                            // data interface, same handler
			},
		}},
	})
	dev, _ := reg.ByBusID("1-1")
	require.Len(t, dev.Descriptor.Interfaces[0].ClassDescriptors, 1)
	assert.Empty(t, dev.Descriptor.Interfaces[1].ClassDescriptors)
}

type classDescHandler struct{ bytes []byte }

func (c *classDescHandler) HandleURB(*usb.InterfaceConfig, uint8, usb.Setup, []byte) ([]byte, error) {
	return nil, nil
}
func (c *classDescHandler) ClassSpecificDescriptor() []byte { return c.bytes }
