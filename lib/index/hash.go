package index

import (
	"sort"
	"sync"
)

// Refcounted is the contract for values held by a GuardedHash. The hash owns
// one reference per stored value and hands out an extra reference on Get.
type Refcounted interface {
	AddRef()
	Release()
}

// AddOrReplaceHook observes every AddOrReplace; the registry uses it to keep
// derived state (e.g. the distributed-index watchlist) in sync
type AddOrReplaceHook func(value Refcounted, key string)

// --------------------------------------------------------------------------
// GuardedHash
// --------------------------------------------------------------------------

// GuardedHash is a name-keyed map of refcounted entries guarded by a single
// reader-writer lock. Values may be nil: a nil entry reserves a name (an
// index known from config but not yet loaded).
//
// A plain map under sync.RWMutex is used instead of a concurrent map because
// the iterators must pin the whole table for their lifetime, which a
// per-entry-atomic map cannot express.
type GuardedHash struct {
	mu      sync.RWMutex
	entries map[string]Refcounted
	hook    AddOrReplaceHook
}

// NewGuardedHash creates an empty hash
func NewGuardedHash() *GuardedHash {
	return &GuardedHash{entries: make(map[string]Refcounted)}
}

// SetAddOrReplaceHook installs the observer invoked (under the exclusive
// lock) by every AddOrReplace
func (h *GuardedHash) SetAddOrReplaceHook(hook AddOrReplaceHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hook = hook
}

// AddUniq inserts the value only if the key is absent, taking one reference
// on success. Checking and inserting happen under one lock acquisition, so
// two racing AddUniq calls for the same key admit exactly one.
func (h *GuardedHash) AddUniq(value Refcounted, key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[key]; ok {
		return false
	}
	if value != nil {
		value.AddRef()
	}
	h.entries[key] = value
	return true
}

// AddOrReplace inserts the value, releasing whatever the key held before,
// and notifies the hook
func (h *GuardedHash) AddOrReplace(value Refcounted, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.addOrReplaceLocked(value, key)
}

func (h *GuardedHash) addOrReplaceLocked(value Refcounted, key string) {
	if value != nil {
		value.AddRef()
	}
	if old, ok := h.entries[key]; ok && old != nil {
		old.Release()
	}
	h.entries[key] = value

	if h.hook != nil {
		h.hook(value, key)
	}
}

// Delete removes the key, releasing its value; it reports whether the key
// existed
func (h *GuardedHash) Delete(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	old, ok := h.entries[key]
	if !ok {
		return false
	}
	if old != nil {
		old.Release()
	}
	delete(h.entries, key)
	return true
}

// DeleteIfNull removes the key only while it still holds a nil placeholder
func (h *GuardedHash) DeleteIfNull(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	old, ok := h.entries[key]
	if !ok || old != nil {
		return false
	}
	delete(h.entries, key)
	return true
}

// Len returns the number of entries, nil placeholders included
func (h *GuardedHash) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Contains reports whether the key exists, even as a nil placeholder
func (h *GuardedHash) Contains(key string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.entries[key]
	return ok
}

// Get returns the value with an extra reference, or nil if the key is absent
// or holds a placeholder. The caller owns the returned reference.
func (h *GuardedHash) Get(key string) Refcounted {
	h.mu.RLock()
	defer h.mu.RUnlock()

	value, ok := h.entries[key]
	if !ok || value == nil {
		return nil
	}
	value.AddRef()
	return value
}

// TryAddThenGet inserts the value if the key is absent and returns whatever
// the key holds afterwards, referenced for the caller. Both steps happen
// under one lock acquisition.
func (h *GuardedHash) TryAddThenGet(value Refcounted, key string) Refcounted {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.entries[key]; !ok {
		if value != nil {
			value.AddRef()
		}
		h.entries[key] = value
	}

	current := h.entries[key]
	if current != nil {
		current.AddRef()
	}
	return current
}

// ReleaseAndClear drops every entry, releasing the hash's reference on each
func (h *GuardedHash) ReleaseAndClear() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for key, value := range h.entries {
		if value != nil {
			value.Release()
		}
		delete(h.entries, key)
	}
}

// --------------------------------------------------------------------------
// Iterators
// --------------------------------------------------------------------------

// Iter walks the hash under the shared lock; no entry can be added or
// removed while an Iter is open. Close it promptly.
type Iter struct {
	hash *GuardedHash
	keys []string
	pos  int
}

// RIter opens a shared-locked iterator over a stable key snapshot
func (h *GuardedHash) RIter() *Iter {
	h.mu.RLock()
	return &Iter{hash: h, keys: h.sortedKeysLocked(), pos: -1}
}

// Next advances to the next entry; it returns false past the end
func (it *Iter) Next() bool {
	it.pos++
	return it.pos < len(it.keys)
}

// Key returns the current entry's name
func (it *Iter) Key() string { return it.keys[it.pos] }

// Value returns the current entry's value without taking a reference; it is
// valid while the iterator stays open. May be nil for placeholders.
func (it *Iter) Value() Refcounted { return it.hash.entries[it.keys[it.pos]] }

// Close releases the shared lock
func (it *Iter) Close() {
	it.hash.mu.RUnlock()
	it.hash = nil
}

// WIter walks the hash under the exclusive lock and additionally allows
// deleting the current entry
type WIter struct {
	hash    *GuardedHash
	keys    []string
	pos     int
	deleted bool
}

// WIter opens an exclusively-locked iterator over a stable key snapshot
func (h *GuardedHash) WIter() *WIter {
	h.mu.Lock()
	return &WIter{hash: h, keys: h.sortedKeysLocked(), pos: -1}
}

// Next advances to the next entry; it returns false past the end
func (it *WIter) Next() bool {
	it.pos++
	it.deleted = false
	return it.pos < len(it.keys)
}

// Key returns the current entry's name
func (it *WIter) Key() string { return it.keys[it.pos] }

// Value returns the current entry's value without taking a reference
func (it *WIter) Value() Refcounted {
	if it.deleted {
		return nil
	}
	return it.hash.entries[it.keys[it.pos]]
}

// Delete removes the current entry, releasing the hash's reference
func (it *WIter) Delete() {
	if it.deleted {
		return
	}
	key := it.keys[it.pos]
	if value := it.hash.entries[key]; value != nil {
		value.Release()
	}
	delete(it.hash.entries, key)
	it.deleted = true
}

// Close releases the exclusive lock
func (it *WIter) Close() {
	it.hash.mu.Unlock()
	it.hash = nil
}

// sortedKeysLocked snapshots the keys in lexical order for deterministic
// iteration; callers hold the lock
func (h *GuardedHash) sortedKeysLocked() []string {
	keys := make([]string, 0, len(h.entries))
	for key := range h.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
