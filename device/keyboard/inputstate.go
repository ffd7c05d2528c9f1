package keyboard

import "io"

// InputState is the keyboard state used to build an input report, using a
// 256-bit bitmap so every simultaneously pressed key (full N-key
// rollover) survives the trip, not just the first six non-modifiers.
type InputState struct {
	Modifiers uint8
	KeyBitmap [32]uint8
}

// SetKey marks a HID keyboard usage code as pressed or released.
func (s *InputState) SetKey(code uint8, pressed bool) {
	byteIdx := code / 8
	bit := uint8(1) << (code % 8)
	if pressed {
		s.KeyBitmap[byteIdx] |= bit
	} else {
		s.KeyBitmap[byteIdx] &^= bit
	}
}

// BuildReport encodes the state into the 34-byte HID keyboard input
// report: modifiers, one reserved byte, then the 256-bit key bitmap.
func (s *InputState) BuildReport() []byte {
	b := make([]byte, 34)
	b[0] = s.Modifiers
	copy(b[2:34], s.KeyBitmap[:])
	return b
}

// LEDState is the host-controlled LED state decoded from the
// interrupt-OUT report.
type LEDState struct {
	NumLock    bool
	CapsLock   bool
	ScrollLock bool
	Compose    bool
	Kana       bool
}

// UnmarshalBinary decodes the 1-byte LED bitmask the host writes.
func (ls *LEDState) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return io.ErrUnexpectedEOF
	}
	b := data[0]
	ls.NumLock = b&LEDNumLock != 0
	ls.CapsLock = b&LEDCapsLock != 0
	ls.ScrollLock = b&LEDScrollLock != 0
	ls.Compose = b&LEDCompose != 0
	ls.Kana = b&LEDKana != 0
	return nil
}
