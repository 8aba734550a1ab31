package wire

import (
	"encoding/binary"
	"math"
)

// Writer appends little-endian values to a growing buffer. It is the
// inverse of Reader.
type Writer struct {
	buf []byte
}

func (w *Writer) PutUint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) PutFloat32(v float32) {
	w.PutUint32(math.Float32bits(v))
}

func (w *Writer) PutFloat32s(values ...float32) {
	for _, v := range values {
		w.PutFloat32(v)
	}
}

func (w *Writer) PutUint32s(values []uint32) {
	for _, v := range values {
		w.PutUint32(v)
	}
}

func (w *Writer) PutUint16s(values []uint16) {
	for _, v := range values {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	}
}

// PutString writes a uint32 length prefix followed by the raw bytes of s.
func (w *Writer) PutString(s string) {
	w.PutUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func (w *Writer) PutBytes(b []byte) {
	w.buf = append(w.buf, b...)
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) Len() int {
	return len(w.buf)
}
