package wire

import (
	"encoding/binary"
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

// ErrTypeTruncated is the error type returned when a read goes past the end
// of the buffer or a declared count cannot fit in what remains.
const ErrTypeTruncated = "wire_truncated"

// Reader is a sequential little-endian cursor over a byte slice. Every read
// is bounds checked.
type Reader struct {
	data   []byte
	offset int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.offset
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.offset
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, errors.New("unexpected end of data").
			WithType(ErrTypeTruncated).
			WithTag("offset", r.offset).
			WithTag("want", n).
			WithTag("remaining", r.Remaining())
	}

	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Float32s reads n consecutive float32 values.
func (r *Reader) Float32s(n int) ([]float32, error) {
	if err := r.check(n, 4); err != nil {
		return nil, err
	}

	values := make([]float32, n)
	for i := range values {
		values[i], _ = r.Float32()
	}
	return values, nil
}

// Count reads a uint32 element count and makes sure that count elements of
// elemSize bytes can still be read. It protects allocations sized from
// untrusted counts.
func (r *Reader) Count(elemSize int) (int, error) {
	offset := r.offset

	n, err := r.Uint32()
	if err != nil {
		return 0, err
	}

	if err := r.check(int(n), elemSize); err != nil {
		return 0, errors.New("count exceeds remaining data").
			WithType(ErrTypeTruncated).
			WithTag("offset", offset).
			WithTag("count", n).
			Wrap(err)
	}
	return int(n), nil
}

func (r *Reader) check(n, elemSize int) error {
	if elemSize <= 0 {
		elemSize = 1
	}

	if n < 0 || uint64(n)*uint64(elemSize) > uint64(r.Remaining()) {
		return errors.New("unexpected end of data").
			WithType(ErrTypeTruncated).
			WithTag("offset", r.offset).
			WithTag("want", uint64(n)*uint64(elemSize)).
			WithTag("remaining", r.Remaining())
	}
	return nil
}

// Uint32s reads n consecutive uint32 values.
func (r *Reader) Uint32s(n int) ([]uint32, error) {
	b, err := r.take(n * 4)
	if err != nil {
		return nil, err
	}

	values := make([]uint32, n)
	for i := range values {
		values[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return values, nil
}

// Uint16s reads n consecutive uint16 values.
func (r *Reader) Uint16s(n int) ([]uint16, error) {
	b, err := r.take(n * 2)
	if err != nil {
		return nil, err
	}

	values := make([]uint16, n)
	for i := range values {
		values[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return values, nil
}

// Bytes reads n raw bytes. The returned slice aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	return r.take(n)
}

// String reads a uint32 length-prefixed string that is not null terminated.
func (r *Reader) String() (string, error) {
	n, err := r.Count(1)
	if err != nil {
		return "", err
	}

	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Skip discards n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n)
	return err
}

// Peek returns the next n bytes without consuming them. ok is false when
// fewer than n bytes remain.
func (r *Reader) Peek(n int) ([]byte, bool) {
	if n > r.Remaining() {
		return nil, false
	}
	return r.data[r.offset : r.offset+n], true
}
