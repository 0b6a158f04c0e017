package model

import (
	"github.com/pkg/errors"
)

// BurstCode is the fixed-length binary flicker pattern of a single target,
// one bit per display frame. Immutable once parsed.
type BurstCode struct {
	bits []uint8
}

// ParseBurstCode parses a "0"/"1" string into a BurstCode. Any other rune is
// a configuration error.
func ParseBurstCode(s string) (BurstCode, error) {
	if len(s) == 0 {
		return BurstCode{}, errors.New("burst code must not be empty")
	}
	bits := make([]uint8, len(s))
	for i, r := range s {
		switch r {
		case '0':
			bits[i] = 0
		case '1':
			bits[i] = 1
		default:
			return BurstCode{}, errors.Errorf("burst code contains non-binary symbol %q at position %d", r, i)
		}
	}
	return BurstCode{bits: bits}, nil
}

// Len returns the number of frames in the code.
func (c BurstCode) Len() int {
	return len(c.bits)
}

// Bit returns the bit flashed at frame position i. The position is taken
// modulo the code length so callers may pass a running frame counter.
func (c BurstCode) Bit(i int) int {
	if len(c.bits) == 0 {
		return 0
	}
	return int(c.bits[i%len(c.bits)])
}

func (c BurstCode) String() string {
	buf := make([]byte, len(c.bits))
	for i, b := range c.bits {
		buf[i] = '0' + b
	}
	return string(buf)
}
