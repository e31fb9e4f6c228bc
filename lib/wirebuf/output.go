// Package wirebuf implements the binary API wire format: growable output
// buffers with deferred length slots, chunked vectored output, bounds-checked
// input parsing, and the socket-backed variants used by connection workers.
//
// The wire integer order is big-endian; the few little-endian fields of the
// MySQL surface go through the explicit LSB accessors.
package wirebuf

import (
	"encoding/binary"
	"math"
	"net"
)

// defaultOutSize is the pre-reserved output capacity; most replies fit
// without reallocating
const defaultOutSize = 8192

// maxIOVecs bounds one vectored write, matching the usual kernel IOV_MAX
const maxIOVecs = 1024

// --------------------------------------------------------------------------
// OutputBuffer
// --------------------------------------------------------------------------

// OutputBuffer accumulates reply bytes in memory
type OutputBuffer struct {
	buf []byte
}

// NewOutputBuffer creates a buffer with the standard pre-reserved capacity
func NewOutputBuffer() *OutputBuffer {
	return &OutputBuffer{buf: make([]byte, 0, defaultOutSize)}
}

// Len returns the number of buffered bytes
func (b *OutputBuffer) Len() int { return len(b.buf) }

// Bytes returns the buffered bytes; valid until the next Send
func (b *OutputBuffer) Bytes() []byte { return b.buf }

// Reset drops the buffered bytes, keeping the capacity
func (b *OutputBuffer) Reset() { b.buf = b.buf[:0] }

// SendByte appends one raw byte
func (b *OutputBuffer) SendByte(v byte) {
	b.buf = append(b.buf, v)
}

// SendWord appends a 16-bit value in network order
func (b *OutputBuffer) SendWord(v uint16) {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
}

// SendInt appends a signed 32-bit value in network order
func (b *OutputBuffer) SendInt(v int32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v))
}

// SendDword appends a 32-bit value in network order
func (b *OutputBuffer) SendDword(v uint32) {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
}

// SendLSBDword appends a 32-bit value in little-endian order; only the
// MySQL-flavored fields use this
func (b *OutputBuffer) SendLSBDword(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

// SendUint64 appends a 64-bit value as high dword then low dword
func (b *OutputBuffer) SendUint64(v uint64) {
	b.SendDword(uint32(v >> 32))
	b.SendDword(uint32(v))
}

// SendFloat appends an IEEE-754 float as its 32-bit pattern in network order
func (b *OutputBuffer) SendFloat(v float32) {
	b.SendDword(math.Float32bits(v))
}

// SendAsDword clamps a 64-bit value into the unsigned 32-bit range and
// appends it; legacy protocol fields carry dwords only
func (b *OutputBuffer) SendAsDword(v int64) {
	switch {
	case v < 0:
		b.SendDword(0)
	case v > math.MaxUint32:
		b.SendDword(math.MaxUint32)
	default:
		b.SendDword(uint32(v))
	}
}

// SendString appends a length-prefixed string: signed 32-bit length in
// network order, then the bytes
func (b *OutputBuffer) SendString(s string) {
	b.SendInt(int32(len(s)))
	b.buf = append(b.buf, s...)
}

// SendBytes appends raw bytes without a length prefix
func (b *OutputBuffer) SendBytes(p []byte) {
	b.buf = append(b.buf, p...)
}

// WriteByte makes the buffer usable as an io.ByteWriter
func (b *OutputBuffer) WriteByte(v byte) error {
	b.SendByte(v)
	return nil
}

// Write makes the buffer usable as an io.Writer
func (b *OutputBuffer) Write(p []byte) (int, error) {
	b.SendBytes(p)
	return len(p), nil
}

// --------------------------------------------------------------------------
// CachedOutputBuffer
// --------------------------------------------------------------------------

// CachedOutputBuffer extends OutputBuffer with deferred length slots: a
// handler reserves a dword, emits a variable-size body, and the commit
// backpatches the body length. Slots nest and commit innermost-first.
type CachedOutputBuffer struct {
	OutputBuffer
	slots []int
}

// NewCachedOutputBuffer creates an empty buffer with length-slot support
func NewCachedOutputBuffer() *CachedOutputBuffer {
	return &CachedOutputBuffer{
		OutputBuffer: OutputBuffer{buf: make([]byte, 0, defaultOutSize)},
	}
}

// StartMeasureLength reserves a length slot at the current position and
// returns its token for the matching commit
func (b *CachedOutputBuffer) StartMeasureLength() int {
	pos := len(b.buf)
	b.SendDword(0)
	b.slots = append(b.slots, pos)
	return pos
}

// CommitMeasuredLength closes the innermost open slot, writing the number of
// bytes emitted after it. Pass token -1 to skip the pairing check; anything
// else must match the innermost slot.
func (b *CachedOutputBuffer) CommitMeasuredLength(token int) {
	if len(b.slots) == 0 {
		Logger.Errorf("length commit with no open slot (token %d)", token)
		return
	}

	pos := b.slots[len(b.slots)-1]
	if token != -1 && token != pos {
		Logger.Errorf("mismatched length commit: token %d, innermost slot %d", token, pos)
		return
	}

	b.slots = b.slots[:len(b.slots)-1]
	binary.BigEndian.PutUint32(b.buf[pos:], uint32(len(b.buf)-pos-4))
}

// CommitAllMeasuredLengths closes every open slot, innermost first
func (b *CachedOutputBuffer) CommitAllMeasuredLengths() {
	for len(b.slots) > 0 {
		b.CommitMeasuredLength(-1)
	}
}

// --------------------------------------------------------------------------
// SmartOutputBuffer
// --------------------------------------------------------------------------

// SmartOutputBuffer accumulates a reply as a list of sealed chunks so that
// large multi-part replies go out in one vectored write without copying
// everything into a single contiguous buffer.
type SmartOutputBuffer struct {
	CachedOutputBuffer
	chunks net.Buffers
}

// NewSmartOutputBuffer creates an empty chunked buffer
func NewSmartOutputBuffer() *SmartOutputBuffer {
	return &SmartOutputBuffer{
		CachedOutputBuffer: CachedOutputBuffer{
			OutputBuffer: OutputBuffer{buf: make([]byte, 0, defaultOutSize)},
		},
	}
}

// StartNewChunk closes all open length slots and seals the bytes written so
// far; subsequent sends go into a fresh chunk
func (b *SmartOutputBuffer) StartNewChunk() {
	b.CommitAllMeasuredLengths()
	if len(b.buf) > 0 {
		b.chunks = append(b.chunks, b.buf)
		b.buf = make([]byte, 0, defaultOutSize)
	}
}

// Len returns the total number of buffered bytes across all chunks
func (b *SmartOutputBuffer) Len() int {
	total := len(b.buf)
	for _, c := range b.chunks {
		total += len(c)
	}
	return total
}

// Buffers seals the tail and returns the chunk list ready for a vectored
// write; chunk counts above the iovec limit are coalesced pairwise
func (b *SmartOutputBuffer) Buffers() net.Buffers {
	b.StartNewChunk()

	for len(b.chunks) > maxIOVecs {
		merged := make(net.Buffers, 0, (len(b.chunks)+1)/2)
		for i := 0; i < len(b.chunks); i += 2 {
			if i+1 < len(b.chunks) {
				merged = append(merged, append(b.chunks[i], b.chunks[i+1]...))
			} else {
				merged = append(merged, b.chunks[i])
			}
		}
		b.chunks = merged
	}

	out := b.chunks
	b.chunks = nil
	return out
}

// Reset drops all chunks, buffered bytes and open slots
func (b *SmartOutputBuffer) Reset() {
	b.chunks = nil
	b.slots = b.slots[:0]
	b.OutputBuffer.Reset()
}
