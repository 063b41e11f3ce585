package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformed is the root of every decode failure. The dispatcher treats it
// as a protocol violation.
var ErrMalformed = errors.New("malformed packet")

// Reader decodes little-endian packet fields. The first failure sticks: later
// reads return zero values and Err reports the original problem, so decoders
// can read a whole packet and check once.
type Reader struct {
	data []byte
	off  int
	err  error
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.fail(fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrMalformed, n, r.off, len(r.data)-r.off))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// ReadC reads one byte.
func (r *Reader) ReadC() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// ReadH reads a uint16.
func (r *Reader) ReadH() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// ReadD reads a uint32. Callers convert to int32 for signed fields.
func (r *Reader) ReadD() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// ReadBytes reads exactly n raw bytes. The returned slice aliases the packet buffer.
func (r *Reader) ReadBytes(n int) []byte {
	return r.take(n)
}

// ReadS reads a u16-length-prefixed UTF-8 string of at most maxLen bytes.
func (r *Reader) ReadS(maxLen int) string {
	n := int(r.ReadH())
	if r.err != nil {
		return ""
	}
	if n > maxLen {
		r.fail(fmt.Errorf("%w: string of %d bytes exceeds limit %d", ErrMalformed, n, maxLen))
		return ""
	}
	b := r.take(n)
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.fail(fmt.Errorf("%w: string is not valid utf-8", ErrMalformed))
		return ""
	}
	return string(b)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.off }

// Err returns the first decode error, if any.
func (r *Reader) Err() error { return r.err }
