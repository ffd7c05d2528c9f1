package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbipgo/usbipd/usb"
)

func TestPressQueuesReportWithKeyBitSet(t *testing.T) {
	k, spec := New(Options{})
	assert.Equal(t, uint16(0x2e8a), spec.Descriptor.Device.IDVendor)

	k.Press(0x04, true) // 'a'

	report, err := k.hid.HandleURB(nil, 0x81, usb.Setup{}, nil)
	require.NoError(t, err)
	require.Len(t, report, 34)
	assert.Equal(t, uint8(1<<(0x04%8)), report[2+0x04/8]&(1<<(0x04%8)))
}

func TestSetModifiersQueuesReport(t *testing.T) {
	k, _ := New(Options{})
	k.SetModifiers(0x02) // left shift

	report, err := k.hid.HandleURB(nil, 0x81, usb.Setup{}, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0x02), report[0])
}

func TestLEDReportInvokesCallback(t *testing.T) {
	k, _ := New(Options{})
	var got LEDState
	k.SetLEDCallback(func(ls LEDState) { got = ls })

	_, err := k.hid.HandleURB(nil, 0x01, usb.Setup{}, []byte{LEDCapsLock})
	require.NoError(t, err)
	assert.True(t, got.CapsLock)
	assert.False(t, got.NumLock)
	assert.True(t, k.LEDState().CapsLock)
}
