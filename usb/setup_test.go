package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSetupClassification(t *testing.T) {
	cases := []struct {
		name          string
		raw           [8]byte
		wantDir       Direction
		wantReqType   RequestType
		wantRecipient Recipient
	}{
		{
			name:          "GET_DESCRIPTOR device-to-host standard device",
			raw:           [8]byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00},
			wantDir:       DirectionIn,
			wantReqType:   RequestTypeStandard,
			wantRecipient: RecipientDevice,
		},
		{
			name:          "SET_LINE_CODING host-to-device class interface",
			raw:           [8]byte{0x21, 0x20, 0x00, 0x00, 0x00, 0x00, 0x07, 0x00},
			wantDir:       DirectionOut,
			wantReqType:   RequestTypeClass,
			wantRecipient: RecipientInterface,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := ParseSetup(tc.raw)
			assert.Equal(t, tc.wantDir, s.Direction())
			assert.Equal(t, tc.wantReqType, s.RequestType())
			assert.Equal(t, tc.wantRecipient, s.Recipient())
		})
	}
}

func TestParseSetupFieldOrder(t *testing.T) {
	s := ParseSetup([8]byte{0x80, 0x06, 0x34, 0x12, 0x78, 0x56, 0x0a, 0x00})
	assert.Equal(t, uint16(0x1234), s.WValue)
	assert.Equal(t, uint16(0x5678), s.WIndex)
	assert.Equal(t, uint16(0x000a), s.WLength)
}
