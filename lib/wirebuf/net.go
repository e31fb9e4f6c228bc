package wirebuf

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ValentinKolb/ftsd/lib/sockio"
)

// DefaultMaxPacket bounds one request packet unless configured otherwise
const DefaultMaxPacket = 8 << 20

// --------------------------------------------------------------------------
// NetOutputBuffer
// --------------------------------------------------------------------------

// NetOutputBuffer is a CachedOutputBuffer bound to a socket. Errors are
// sticky: after a failed flush the buffer silently drops everything, so
// handlers can keep emitting without checking every call.
type NetOutputBuffer struct {
	CachedOutputBuffer

	fd      int
	timeout time.Duration
	err     error
}

// NewNetOutputBuffer binds an output buffer to a non-blocking socket fd
func NewNetOutputBuffer(fd int, timeout time.Duration) *NetOutputBuffer {
	return &NetOutputBuffer{
		CachedOutputBuffer: CachedOutputBuffer{
			OutputBuffer: OutputBuffer{buf: make([]byte, 0, defaultOutSize)},
		},
		fd:      fd,
		timeout: timeout,
	}
}

// GetError returns the sticky write error, if any
func (b *NetOutputBuffer) GetError() error { return b.err }

// Flush writes all buffered bytes to the socket. Interrupted writes are
// retried; a full socket buffer waits for writability up to the write
// timeout. After any error the buffer goes dark.
func (b *NetOutputBuffer) Flush() error {
	if b.err != nil {
		b.Reset()
		return b.err
	}

	b.CommitAllMeasuredLengths()

	data := b.buf
	deadline := time.Now().Add(b.timeout)

	for len(data) > 0 {
		n, err := unix.Write(b.fd, data)
		if n > 0 {
			data = data[n:]
			continue
		}

		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			left := time.Until(deadline)
			if left <= 0 {
				b.err = fmt.Errorf("flush: %w", unix.ETIMEDOUT)
				b.Reset()
				return b.err
			}
			ready, werr := sockio.Wait(b.fd, left, true)
			if werr != nil {
				b.err = fmt.Errorf("flush wait: %v", werr)
				b.Reset()
				return b.err
			}
			if ready == 0 {
				b.err = fmt.Errorf("flush: %w", unix.ETIMEDOUT)
				b.Reset()
				return b.err
			}
		default:
			if err == nil {
				err = unix.ECONNRESET
			}
			b.err = fmt.Errorf("flush: %w", err)
			b.Reset()
			return b.err
		}
	}

	b.Reset()
	return nil
}

// --------------------------------------------------------------------------
// NetInputBuffer
// --------------------------------------------------------------------------

// NetInputBuffer reads request packets from a socket into an InputBuffer.
// The read error is sticky; an interrupt (clean shutdown mid-read) is
// tracked separately so the caller can tell the two apart.
type NetInputBuffer struct {
	InputBuffer

	fd          int
	maxPacket   int
	interrupted bool
}

// NewNetInputBuffer binds an input buffer to a non-blocking socket fd
func NewNetInputBuffer(fd, maxPacket int) *NetInputBuffer {
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacket
	}
	return &NetInputBuffer{fd: fd, maxPacket: maxPacket}
}

// Interrupted reports whether the last ReadFrom was cut short by shutdown
func (b *NetInputBuffer) Interrupted() bool { return b.interrupted }

// ReadFrom pulls exactly length bytes from the socket and rewinds the parse
// cursor to the packet start. With appendData the bytes extend the current
// packet instead of replacing it (the MySQL surface reassembles split
// packets this way). intr allows a clean interrupt before any progress.
func (b *NetInputBuffer) ReadFrom(length int, timeout time.Duration, intr, appendData bool) bool {
	b.interrupted = false

	if length < 0 || length > b.maxPacket {
		b.SetError(fmt.Errorf("bad packet length %d (max %d)", length, b.maxPacket))
		return false
	}
	if b.err != nil {
		return false
	}

	tail := 0
	if appendData {
		tail = len(b.buf)
	}

	if cap(b.buf) < tail+length {
		grown := make([]byte, tail, tail+length)
		copy(grown, b.buf[:tail])
		b.buf = grown
	}
	b.buf = b.buf[:tail+length]
	b.cursor = 0

	if length == 0 {
		return true
	}

	n, err := sockio.Read(b.fd, b.buf[tail:], timeout, intr)
	if err != nil {
		b.buf = b.buf[:tail]
		if sockio.IsInterrupted(err) {
			b.interrupted = true
			return false
		}
		b.SetError(fmt.Errorf("failed to read %d bytes: %v", length, err))
		return false
	}
	if n != length {
		b.buf = b.buf[:tail+n]
		b.SetError(fmt.Errorf("short read: %d of %d bytes", n, length))
		return false
	}

	return true
}
