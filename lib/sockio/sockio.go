// Package sockio provides the low-level socket read primitives of the
// daemon: a single-descriptor readiness wait, a blocking read with timeout
// and cooperative-shutdown handling, and an opportunistic fast read for the
// common case where the kernel already buffered the data.
//
// All primitives work on raw descriptors in non-blocking mode. Errors are
// reported as unix errno values so callers can distinguish timeout, reset
// and interruption without string matching.
package sockio

import (
	"errors"
	"syscall"
	"time"

	"github.com/ValentinKolb/ftsd/lib/shutdown"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sys/unix"
)

var Logger = logger.GetLogger("sockio")

// --------------------------------------------------------------------------
// Descriptor helpers
// --------------------------------------------------------------------------

// FD extracts the underlying descriptor of a connection. The descriptor
// stays owned by the connection; it is only valid while the connection
// remains open.
func FD(c syscall.Conn) (int, error) {
	raw, err := c.SyscallConn()
	if err != nil {
		return -1, err
	}

	fd := -1
	if err := raw.Control(func(f uintptr) { fd = int(f) }); err != nil {
		return -1, err
	}
	return fd, nil
}

// SetNonblock switches a descriptor to non-blocking mode
func SetNonblock(fd int) error {
	return unix.SetNonblock(fd, true)
}

// --------------------------------------------------------------------------
// Readiness wait
// --------------------------------------------------------------------------

// Wait blocks until the descriptor is readable (or writable when writable is
// set), up to the given timeout. Returns 1 on readiness, 0 on timeout; any
// poll failure is returned as the error. Only one descriptor is ever
// involved, so plain poll beats epoll/kqueue here.
func Wait(fd int, timeout time.Duration, writable bool) (int, error) {
	events := int16(unix.POLLIN)
	if writable {
		events = unix.POLLOUT
	}

	pfd := []unix.PollFd{{Fd: int32(fd), Events: events}}
	n, err := unix.Poll(pfd, int(timeout.Milliseconds()))
	if err != nil {
		return -1, err
	}
	return n, nil
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// recvChunk tries to receive whatever the kernel has buffered, without
// waiting. Returns the byte count; 0 means the peer closed the connection.
func recvChunk(fd int, buf []byte) (int, error) {
	return unix.Read(fd, buf)
}

// Read fills buf completely, waiting up to timeout (floored at one second,
// like the daemon always did). The semantics around signals are deliberate:
//
//   - an EINTR from poll or recv is ignored and the loop retried, unless the
//     process shutdown flag is set AND intr is true, in which case the read
//     aborts with EINTR;
//   - once any bytes have arrived, intr is cleared so a second signal cannot
//     truncate a message mid-read;
//   - a zero-byte recv reports ECONNRESET;
//   - running out of time reports ETIMEDOUT.
func Read(fd int, buf []byte, timeout time.Duration, intr bool) (int, error) {
	if timeout < time.Second {
		timeout = time.Second
	}
	deadline := time.Now().Add(timeout)

	total := 0
	for total < len(buf) {
		left := time.Until(deadline)
		if left <= 0 {
			return total, unix.ETIMEDOUT
		}

		// wait until there is data
		ready, err := Wait(fd, left, false)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				if !(shutdown.Requested() && intr) {
					continue
				}
				Logger.Debugf("Read: poll interrupted by shutdown, fd=%d", fd)
				return total, unix.EINTR
			}
			return total, err
		}
		if ready == 0 {
			return total, unix.ETIMEDOUT
		}

		n, err := recvChunk(fd, buf[total:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				if !(shutdown.Requested() && intr) {
					continue
				}
				Logger.Debugf("Read: recv interrupted by shutdown, fd=%d", fd)
				return total, unix.EINTR
			}
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				continue // raced with another reader, re-poll
			}
			return total, err
		}
		if n == 0 {
			return total, unix.ECONNRESET
		}

		total += n

		// avoid partial buffer loss in case of a signal during the 2nd read
		intr = false
	}

	return total, nil
}

// ReadFast first issues a non-blocking receive without any wait; when the
// kernel already buffered the whole request this returns immediately.
// Otherwise it falls through to the regular timeout loop for the remainder.
func ReadFast(fd int, buf []byte, timeout time.Duration) (int, error) {
	got, err := recvChunk(fd, buf)
	switch {
	case err != nil:
		if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			return 0, err
		}
		got = 0
	case got == 0:
		return 0, unix.ECONNRESET
	case got == len(buf):
		return got, nil
	}

	n, err := Read(fd, buf[got:], timeout, false)
	return got + n, err
}

// --------------------------------------------------------------------------
// Error classification
// --------------------------------------------------------------------------

// IsTimeout reports whether a read failed because the deadline passed
func IsTimeout(err error) bool {
	return errors.Is(err, unix.ETIMEDOUT)
}

// IsReset reports whether the peer closed the connection
func IsReset(err error) bool {
	return errors.Is(err, unix.ECONNRESET)
}

// IsInterrupted reports whether a read was cut short by shutdown
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}
