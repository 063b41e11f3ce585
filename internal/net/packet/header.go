package packet

import (
	"encoding/binary"
	"fmt"
)

// HeaderSize is the size of the per-packet header inside a frame:
// [u16 LE opcode][u8 encrypted flag].
const HeaderSize = 3

// Header precedes every packet body.
type Header struct {
	Opcode    uint16
	Encrypted bool
}

// ParseHeader splits a frame payload into its header and body.
func ParseHeader(payload []byte) (Header, []byte, error) {
	if len(payload) < HeaderSize {
		return Header{}, nil, fmt.Errorf("%w: frame of %d bytes has no header", ErrMalformed, len(payload))
	}
	h := Header{Opcode: binary.LittleEndian.Uint16(payload[0:2])}
	switch payload[2] {
	case 0:
	case 1:
		h.Encrypted = true
	default:
		return Header{}, nil, fmt.Errorf("%w: bad encrypted flag %d", ErrMalformed, payload[2])
	}
	return h, payload[HeaderSize:], nil
}

// AppendHeader writes h followed by body into a new frame payload.
func AppendHeader(h Header, body []byte) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(body))
	binary.LittleEndian.PutUint16(out[0:2], h.Opcode)
	if h.Encrypted {
		out[2] = 1
	}
	return append(out, body...)
}
