package sockio

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// pair creates a connected non-blocking socket pair for loopback tests
func pair(t *testing.T) (int, int) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := SetNonblock(fd); err != nil {
			t.Fatalf("nonblock: %v", err)
		}
	}
	t.Cleanup(func() {
		unix.Close(fds[0])
		unix.Close(fds[1])
	})
	return fds[0], fds[1]
}

// TestReadComplete verifies a full read across two writes
func TestReadComplete(t *testing.T) {
	rd, wr := pair(t)

	go func() {
		unix.Write(wr, []byte("hello "))
		time.Sleep(20 * time.Millisecond)
		unix.Write(wr, []byte("world"))
	}()

	buf := make([]byte, 11)
	n, err := Read(rd, buf, 2*time.Second, false)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if n != len(buf) || string(buf) != "hello world" {
		t.Errorf("got %d bytes %q", n, buf[:n])
	}
}

// TestReadTimeout verifies that a silent peer yields ETIMEDOUT
func TestReadTimeout(t *testing.T) {
	rd, _ := pair(t)

	buf := make([]byte, 4)
	_, err := Read(rd, buf, time.Second, false)
	if !IsTimeout(err) {
		t.Errorf("expected timeout, got %v", err)
	}
}

// TestReadPeerClose verifies that EOF maps to ECONNRESET
func TestReadPeerClose(t *testing.T) {
	rd, wr := pair(t)
	unix.Close(wr)

	buf := make([]byte, 4)
	_, err := Read(rd, buf, time.Second, false)
	if !IsReset(err) {
		t.Errorf("expected reset, got %v", err)
	}
}

// TestReadFastBuffered verifies the no-wait path when data is already queued
func TestReadFastBuffered(t *testing.T) {
	rd, wr := pair(t)

	if _, err := unix.Write(wr, []byte("abcd")); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, 4)
	n, err := ReadFast(rd, buf, time.Second)
	if err != nil || n != 4 || string(buf) != "abcd" {
		t.Errorf("ReadFast: n=%d err=%v buf=%q", n, err, buf)
	}
}

// TestReadFastPartial verifies the fall-through to the timeout loop
func TestReadFastPartial(t *testing.T) {
	rd, wr := pair(t)

	unix.Write(wr, []byte("ab"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		unix.Write(wr, []byte("cd"))
	}()

	buf := make([]byte, 4)
	n, err := ReadFast(rd, buf, 2*time.Second)
	if err != nil || n != 4 || string(buf) != "abcd" {
		t.Errorf("ReadFast: n=%d err=%v buf=%q", n, err, buf)
	}
}

// TestWait verifies the three-way result of the readiness wait
func TestWait(t *testing.T) {
	rd, wr := pair(t)

	ready, err := Wait(rd, 50*time.Millisecond, false)
	if err != nil || ready != 0 {
		t.Errorf("expected timeout from idle socket, got ready=%d err=%v", ready, err)
	}

	unix.Write(wr, []byte("x"))
	ready, err = Wait(rd, time.Second, false)
	if err != nil || ready != 1 {
		t.Errorf("expected readiness, got ready=%d err=%v", ready, err)
	}

	// the write side of a fresh pair is immediately writable
	ready, err = Wait(wr, time.Second, true)
	if err != nil || ready != 1 {
		t.Errorf("expected writability, got ready=%d err=%v", ready, err)
	}
}
