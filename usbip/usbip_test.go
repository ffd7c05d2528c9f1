package usbip

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMgmtHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := MgmtHeader{Version: Version, Command: OpReqDevlist, Status: 0}
	require.NoError(t, h.Write(&buf))

	got, err := ReadMgmtHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestExportedDeviceWriteDevlist(t *testing.T) {
	d := ExportedDevice{
		Speed:               SpeedTestHigh,
		IDVendor:            0x2e8a,
		IDProduct:           0x0010,
		BDeviceClass:        0x00,
		BConfigurationValue: 1,
		BNumConfigurations:  1,
		BNumInterfaces:      1,
		Interfaces: []InterfaceDesc{
			{Class: 0x03, SubClass: 0x00, Protocol: 0x00},
		},
	}
	PutFixedString(d.USBBusId[:], "1-1")

	var buf bytes.Buffer
	require.NoError(t, d.WriteDevlist(&buf))

	// 256 + 32 + 4 + 4 + 4 + 2 + 2 + 2 + 6 + 4(interface triple) = 316
	assert.Equal(t, 316, buf.Len())
	assert.Equal(t, []byte("1-1\x00"), buf.Bytes()[256:260])
}

func TestCmdSubmitParseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	c := CmdSubmit{
		Basic: HeaderBasic{Command: CmdSubmitCode, Seqnum: 7, Devid: 0x00010001, Dir: DirIn, Ep: 1},
		TransferBufferLen: 64,
		Setup:             [8]byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x40, 0x00},
	}
	require.NoError(t, c.Write(&buf))
	require.Equal(t, HeaderSize, buf.Len())

	got := ParseCmdSubmit(buf.Bytes())
	assert.Equal(t, c.Basic, got.Basic)
	assert.Equal(t, c.TransferBufferLen, got.TransferBufferLen)
	assert.Equal(t, c.Setup, got.Setup)
}

func TestCmdUnlinkParse(t *testing.T) {
	var buf bytes.Buffer
	c := CmdUnlink{Basic: HeaderBasic{Command: CmdUnlinkCode, Seqnum: 3, Devid: 1, Ep: 0}, UnlinkSeqnum: 2}
	require.NoError(t, c.Write(&buf))

	got := ParseCmdUnlink(buf.Bytes())
	assert.Equal(t, c.Basic, got.Basic)
	assert.Equal(t, c.UnlinkSeqnum, got.UnlinkSeqnum)
}

const SpeedTestHigh = 3
