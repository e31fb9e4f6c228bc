// Package shutdown owns the process-wide termination state of the daemon:
// a single flag raised by the platform signal handler, and a registry of
// callbacks that are drained exactly once when the daemon goes down.
//
// The flag is consulted by every interruptible socket read (see lib/sockio),
// so raising it unblocks connection workers that are waiting for client data.
package shutdown

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("shutdown")

// --------------------------------------------------------------------------
// Process-wide shutdown flag
// --------------------------------------------------------------------------

var requested atomic.Bool

// Request raises the process-wide shutdown flag. Safe to call more than once.
func Request() {
	requested.Store(true)
}

// Requested reports whether shutdown has been requested
func Requested() bool {
	return requested.Load()
}

// ResetForTest clears the flag so tests can exercise interruptible reads
// without poisoning each other
func ResetForTest() {
	requested.Store(false)
}

// --------------------------------------------------------------------------
// Shutdown callback registry
// --------------------------------------------------------------------------

// Handler is a nullary callback invoked during daemon teardown
type Handler func()

// Cookie is the opaque registration handle returned by Register. It allows
// O(1) removal of the callback before the chain fires.
type Cookie *list.Element

var (
	cbGuard sync.RWMutex
	cbList  = list.New()
)

// Register appends a handler to the shutdown chain and returns a cookie
// for later removal. Handlers fire in registration order (FIFO).
func Register(fn Handler) Cookie {
	cbGuard.Lock()
	defer cbGuard.Unlock()
	return Cookie(cbList.PushBack(fn))
}

// Unregister removes a previously registered handler by its cookie.
// A nil cookie and a cookie that was already removed are both no-ops.
func Unregister(c Cookie) {
	if c == nil {
		return
	}

	cbGuard.Lock()
	defer cbGuard.Unlock()

	if cbList.Len() == 0 {
		return
	}

	// Remove is a no-op for elements that no longer belong to the list,
	// which guards against double-unregister by a stale cookie
	cbList.Remove((*list.Element)(c))
}

// Fire drains the chain in registration order. Each handler runs exactly
// once; the registry lock is not held during the call itself, so a handler
// may register or unregister unrelated handlers from another goroutine.
//
// Fire is intended to be called a single time, right after the shutdown
// flag has been raised.
func Fire() {
	for {
		cbGuard.Lock()
		front := cbList.Front()
		if front == nil {
			cbGuard.Unlock()
			return
		}
		fn := cbList.Remove(front).(Handler)
		cbGuard.Unlock()

		fn()
	}
}

// PendingForTest returns the number of registered handlers
func PendingForTest() int {
	cbGuard.RLock()
	defer cbGuard.RUnlock()
	return cbList.Len()
}
