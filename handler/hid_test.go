package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usbipgo/usbipd/usb"
)

type fixedReport struct{ b []byte }

func (f fixedReport) BuildReport() []byte { return f.b }

func TestHIDInterruptInDeliversQueuedReportsFIFO(t *testing.T) {
	h := NewHID()
	h.QueueReport(fixedReport{[]byte{1, 2}})
	h.QueueReport(fixedReport{[]byte{3, 4}})

	r1, err := h.HandleURB(nil, 0x81, usb.Setup{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, r1)

	r2, err := h.HandleURB(nil, 0x81, usb.Setup{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, r2)

	r3, err := h.HandleURB(nil, 0x81, usb.Setup{}, nil)
	require.NoError(t, err)
	assert.Empty(t, r3)
}

func TestHIDSetIdleAndSetProtocol(t *testing.T) {
	h := NewHID()

	setIdle := usb.ParseSetup([8]byte{0x21, ReqSetIdle, 0x00, 0x05, 0x00, 0x00, 0x00, 0x00})
	_, err := h.HandleURB(nil, 0, setIdle, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), h.idleRate)

	setProto := usb.ParseSetup([8]byte{0x21, ReqSetProtocol, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00})
	_, err = h.HandleURB(nil, 0, setProto, nil)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), h.protocol)
}

func TestHIDGetReportReturnsSnapshotWithoutDrainingFIFO(t *testing.T) {
	h := NewHID()
	h.QueueReport(fixedReport{[]byte{1, 2}})
	h.QueueReport(fixedReport{[]byte{3, 4}})

	getReport := usb.ParseSetup([8]byte{0xa1, ReqGetReport, 0, 0, 0, 0, 0, 0})
	resp, err := h.HandleURB(nil, 0, getReport, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, resp) // last queued report, not the FIFO head

	resp, err = h.HandleURB(nil, 0, getReport, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 4}, resp) // GET_REPORT never drains

	r1, err := h.HandleURB(nil, 0x81, usb.Setup{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2}, r1) // interrupt-IN FIFO is untouched by GET_REPORT
}

func TestHIDOutputReportInvokesCallback(t *testing.T) {
	h := NewHID()
	var got []byte
	h.OnOutputReport(func(b []byte) { got = b })

	_, err := h.HandleURB(nil, 0x01, usb.Setup{}, []byte{0x05})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, got)
}
