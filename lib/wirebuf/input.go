package wirebuf

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lni/dragonboat/v4/logger"
)

// Logger for the wire buffers
var Logger = logger.GetLogger("wirebuf")

// --------------------------------------------------------------------------
// InputBuffer
// --------------------------------------------------------------------------

// InputBuffer parses a received packet. Errors are sticky: the first failed
// read marks the buffer and every later accessor returns zero values, so
// handlers can parse a whole request and check the error once at the end.
type InputBuffer struct {
	buf    []byte
	cursor int
	err    error
}

// NewInputBuffer wraps a received packet for parsing
func NewInputBuffer(data []byte) *InputBuffer {
	return &InputBuffer{buf: data}
}

// GetError returns the sticky parse error, if any
func (b *InputBuffer) GetError() error { return b.err }

// SetError marks the buffer failed; the first error wins
func (b *InputBuffer) SetError(err error) {
	if b.err == nil {
		b.err = err
	}
}

// HasBytes reports whether n more bytes can be read
func (b *InputBuffer) HasBytes(n int) bool {
	return n >= 0 && b.cursor+n <= len(b.buf)
}

// Remaining returns the number of unread bytes
func (b *InputBuffer) Remaining() int { return len(b.buf) - b.cursor }

// take validates and consumes n bytes; it returns nil after any failure
func (b *InputBuffer) take(n int) []byte {
	if b.err != nil {
		return nil
	}
	if !b.HasBytes(n) {
		b.err = fmt.Errorf("unexpected end of packet: need %d bytes at offset %d of %d", n, b.cursor, len(b.buf))
		return nil
	}
	p := b.buf[b.cursor : b.cursor+n]
	b.cursor += n
	return p
}

// GetByte reads one raw byte
func (b *InputBuffer) GetByte() byte {
	p := b.take(1)
	if p == nil {
		return 0
	}
	return p[0]
}

// GetWord reads a 16-bit value in network order
func (b *InputBuffer) GetWord() uint16 {
	p := b.take(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

// GetInt reads a signed 32-bit value in network order
func (b *InputBuffer) GetInt() int32 {
	return int32(b.GetDword())
}

// GetDword reads a 32-bit value in network order
func (b *InputBuffer) GetDword() uint32 {
	p := b.take(4)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

// GetLSBDword reads a 32-bit value in little-endian order
func (b *InputBuffer) GetLSBDword() uint32 {
	p := b.take(4)
	if p == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(p)
}

// GetUint64 reads a 64-bit value sent as high dword then low dword
func (b *InputBuffer) GetUint64() uint64 {
	hi := b.GetDword()
	lo := b.GetDword()
	return uint64(hi)<<32 | uint64(lo)
}

// GetFloat reads an IEEE-754 float from its 32-bit network-order pattern
func (b *InputBuffer) GetFloat() float32 {
	return math.Float32frombits(b.GetDword())
}

// GetString reads a length-prefixed string. A negative or oversized length
// marks the buffer failed instead of allocating.
func (b *InputBuffer) GetString() string {
	n := b.GetInt()
	if b.err != nil {
		return ""
	}
	if n < 0 || int(n) > b.Remaining() {
		b.SetError(fmt.Errorf("bad string length %d with %d bytes left", n, b.Remaining()))
		return ""
	}
	return string(b.take(int(n)))
}

// GetStringInto reads a length-prefixed string appending its bytes to into,
// reusing the caller's capacity across packets
func (b *InputBuffer) GetStringInto(into []byte) []byte {
	n := b.GetInt()
	if b.err != nil {
		return into
	}
	if n < 0 || int(n) > b.Remaining() {
		b.SetError(fmt.Errorf("bad string length %d with %d bytes left", n, b.Remaining()))
		return into
	}
	return append(into, b.take(int(n))...)
}

// GetBytes reads n raw bytes into a fresh slice
func (b *InputBuffer) GetBytes(n int) []byte {
	p := b.take(n)
	if p == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, p)
	return out
}

// GetBytesZerocopy reads n raw bytes aliasing the packet; the slice is valid
// only while the packet itself is
func (b *InputBuffer) GetBytesZerocopy(n int) []byte {
	return b.take(n)
}

// GetDwords reads a dword-counted dword array, bounding the count so a
// corrupt packet cannot trigger a huge allocation
func (b *InputBuffer) GetDwords(maxCount int) []uint32 {
	n := b.GetInt()
	if b.err != nil {
		return nil
	}
	if n < 0 || int(n) > maxCount || !b.HasBytes(int(n)*4) {
		b.SetError(fmt.Errorf("bad dword array length %d (max %d, %d bytes left)", n, maxCount, b.Remaining()))
		return nil
	}
	out := make([]uint32, n)
	for i := range out {
		out[i] = b.GetDword()
	}
	return out
}

// GetQwords reads a dword-counted qword array with the same bounding
func (b *InputBuffer) GetQwords(maxCount int) []uint64 {
	n := b.GetInt()
	if b.err != nil {
		return nil
	}
	if n < 0 || int(n) > maxCount || !b.HasBytes(int(n)*8) {
		b.SetError(fmt.Errorf("bad qword array length %d (max %d, %d bytes left)", n, maxCount, b.Remaining()))
		return nil
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = b.GetUint64()
	}
	return out
}
