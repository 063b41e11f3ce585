package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	frameHeaderSize = 2
	// MaxPayloadSize is the largest payload a single frame can carry.
	MaxPayloadSize = 0xFFFF - frameHeaderSize
)

// ErrFrameTooLarge is returned by WriteFrame when data does not fit in one frame.
var ErrFrameTooLarge = errors.New("frame too large")

// ReadFrame reads one packet frame from r.
// Wire format: [2 bytes LE: total length including header][payload].
// Returns the payload bytes (without the 2-byte length header).
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	totalLen := int(binary.LittleEndian.Uint16(header[:]))
	payloadLen := totalLen - frameHeaderSize
	if payloadLen <= 0 {
		return nil, fmt.Errorf("invalid frame length: %d", totalLen)
	}

	payload := make([]byte, payloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("read frame payload (%d bytes): %w", payloadLen, err)
	}
	return payload, nil
}

// WriteFrame writes one packet frame to w.
// Header and payload go out in a single Write call so a tiny header is never
// sent as its own segment.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return errors.New("write frame: empty payload")
	}
	if len(data) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}
	totalLen := len(data) + frameHeaderSize
	frame := make([]byte, totalLen)
	binary.LittleEndian.PutUint16(frame[0:2], uint16(totalLen))
	copy(frame[2:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}
