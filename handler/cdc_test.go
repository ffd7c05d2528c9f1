package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbipgo/usbipd/usb"
	"github.com/usbipgo/usbipd/usb/cdc"
)

func TestCDCACMDefaultLineCoding(t *testing.T) {
	c := NewCDCACM()
	getLineCoding := usb.ParseSetup([8]byte{0xa1, cdc.ReqGetLineCoding, 0, 0, 0, 0, 0x07, 0x00})

	resp, err := c.HandleURB(nil, 0, getLineCoding, nil)
	require.NoError(t, err)
	assert.Equal(t, cdc.DefaultLineCoding.Bytes(), resp)
}

func TestCDCACMSetLineCoding(t *testing.T) {
	c := NewCDCACM()
	var gotCoding cdc.LineCoding
	c.OnLineCodingChange(func(lc cdc.LineCoding) { gotCoding = lc })

	newCoding := cdc.LineCoding{DTERate: 115200, CharFormat: cdc.StopBits1, ParityType: cdc.ParityNone, DataBits: 8}
	setLineCoding := usb.ParseSetup([8]byte{0x21, cdc.ReqSetLineCoding, 0, 0, 0, 0, 0x07, 0x00})

	_, err := c.HandleURB(nil, 0, setLineCoding, newCoding.Bytes())
	require.NoError(t, err)
	assert.Equal(t, newCoding, gotCoding)
}

func TestCDCACMControlLineState(t *testing.T) {
	c := NewCDCACM()
	var dtrSeen, rtsSeen bool
	c.OnControlLineChange(func(dtr, rts bool) { dtrSeen, rtsSeen = dtr, rts })

	setControlLine := usb.ParseSetup([8]byte{0x21, cdc.ReqSetControlLineState, 0x03, 0x00, 0, 0, 0, 0})
	_, err := c.HandleURB(nil, 0, setControlLine, nil)
	require.NoError(t, err)
	assert.True(t, dtrSeen)
	assert.True(t, rtsSeen)
}

func TestCDCACMBulkDataLoop(t *testing.T) {
	c := NewCDCACM()
	c.Write([]byte("hello"))

	resp, err := c.HandleURB(nil, 0x82, usb.Setup{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), resp)

	_, err = c.HandleURB(nil, 0x02, usb.Setup{}, []byte("world"))
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), c.Read(16))
}

func TestCDCACMClassSpecificDescriptor(t *testing.T) {
	c := NewCDCACM()
	b := c.ClassSpecificDescriptor()
	assert.Equal(t, 5+5+4+5, len(b))
	assert.Equal(t, uint8(0x24), b[1]) // CS_INTERFACE
}
