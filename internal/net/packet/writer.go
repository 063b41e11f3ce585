package packet

import "encoding/binary"

// Writer encodes little-endian packet fields into a growing buffer.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

// WriteC appends one byte.
func (w *Writer) WriteC(v byte) { w.buf = append(w.buf, v) }

// WriteH appends a uint16.
func (w *Writer) WriteH(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

// WriteD appends a uint32.
func (w *Writer) WriteD(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

// WriteBytes appends raw bytes without a length prefix.
func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

// WriteS appends a u16-length-prefixed string. Strings longer than 65535
// bytes are truncated; callers keep messages far below that.
func (w *Writer) WriteS(s string) {
	if len(s) > 0xFFFF {
		s = s[:0xFFFF]
	}
	w.WriteH(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte { return w.buf }
