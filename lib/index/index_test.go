package index

import (
	"sync"
	"testing"
)

// fakeHandle counts Close calls
type fakeHandle struct {
	closed int
}

func (f *fakeHandle) Close() error {
	f.closed++
	return nil
}

// --------------------------------------------------------------------------
// Type classification
// --------------------------------------------------------------------------

func TestTypeOfConfig(t *testing.T) {
	cases := map[string]Type{
		"":            TypePlain,
		"plain":       TypePlain,
		"rt":          TypeRT,
		"percolate":   TypePercolate,
		"template":    TypeTemplate,
		"distributed": TypeDistributed,
		"bogus":       TypeError,
	}
	for in, want := range cases {
		if got := TypeOfConfig(in); got != want {
			t.Errorf("TypeOfConfig(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTypeClassifiers(t *testing.T) {
	cases := []struct {
		typ        Type
		mutable    bool
		selectable bool
		fullText   bool
	}{
		{TypePlain, false, true, true},
		{TypeTemplate, false, false, false},
		{TypeRT, true, true, true},
		{TypePercolate, true, true, false},
		{TypeDistributed, false, true, true},
		{TypeError, false, false, false},
	}
	for _, c := range cases {
		if got := c.typ.IsMutable(); got != c.mutable {
			t.Errorf("%v.IsMutable() = %v", c.typ, got)
		}
		if got := c.typ.IsSelectable(); got != c.selectable {
			t.Errorf("%v.IsSelectable() = %v", c.typ, got)
		}
		if got := c.typ.IsFullText(); got != c.fullText {
			t.Errorf("%v.IsFullText() = %v", c.typ, got)
		}
	}
}

func TestIsCluster(t *testing.T) {
	d := ServedDesc{Type: TypeRT}
	if d.IsCluster() {
		t.Error("plain rt index reported as cluster-managed")
	}
	d.Cluster = "posts"
	if !d.IsCluster() {
		t.Error("index with cluster name not reported as cluster-managed")
	}
	d = ServedDesc{Type: TypeRT, FromJSON: true}
	if !d.IsCluster() {
		t.Error("JSON-created index not reported as cluster-managed")
	}
}

// --------------------------------------------------------------------------
// ServedIndex lifecycle
// --------------------------------------------------------------------------

func TestServedIndexRelease(t *testing.T) {
	handle := &fakeHandle{}

	var unlinked []string
	origUnlink := unlinkIndexFiles
	unlinkIndexFiles = func(path string) { unlinked = append(unlinked, path) }
	defer func() { unlinkIndexFiles = origUnlink }()

	s := NewServedIndex(ServedDesc{
		Index:     handle,
		Type:      TypeRT,
		IndexPath: "/data/posts",
		Unlink:    "/data/posts.old",
	})

	s.AddRef()
	s.Release()
	if handle.closed != 0 {
		t.Fatal("handle closed while references remain")
	}

	s.Release()
	if handle.closed != 1 {
		t.Fatalf("handle closed %d times, want 1", handle.closed)
	}
	if len(unlinked) != 1 || unlinked[0] != "/data/posts.old" {
		t.Fatalf("pending unlink not executed: %v", unlinked)
	}
}

func TestScopedAccessors(t *testing.T) {
	s := NewServedIndex(ServedDesc{Type: TypeRT, IndexPath: "/data/posts"})

	r := s.ReadLocked()
	if s.Refs() != 2 {
		t.Errorf("read view should pin a reference, refs = %d", s.Refs())
	}
	if r.Desc().IndexPath != "/data/posts" {
		t.Errorf("unexpected path %q", r.Desc().IndexPath)
	}
	r.Unlock()

	w := s.WriteLocked()
	w.Desc().NewPath = "/data/posts.new"
	w.Unlock()

	if s.Refs() != 1 {
		t.Errorf("views leaked references, refs = %d", s.Refs())
	}

	r = s.ReadLocked()
	if r.Desc().NewPath != "/data/posts.new" {
		t.Error("write through the exclusive view not visible")
	}
	r.Unlock()

	s.Release()
}

// --------------------------------------------------------------------------
// GuardedHash
// --------------------------------------------------------------------------

func TestAddUniqIsAtomic(t *testing.T) {
	h := NewGuardedHash()

	const workers = 16
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewServedIndex(ServedDesc{Type: TypeRT})
			if h.AddUniq(s, "posts") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			s.Release()
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("%d concurrent AddUniq calls won, want exactly 1", wins)
	}
	if h.Len() != 1 {
		t.Fatalf("hash holds %d entries, want 1", h.Len())
	}
	h.ReleaseAndClear()
}

func TestAddOrReplaceReleasesOld(t *testing.T) {
	h := NewGuardedHash()

	oldHandle := &fakeHandle{}
	old := NewServedIndex(ServedDesc{Index: oldHandle, Type: TypeRT})
	h.AddOrReplace(old, "posts")
	old.Release() // hash now holds the only reference

	var hookKey string
	h.SetAddOrReplaceHook(func(_ Refcounted, key string) { hookKey = key })

	next := NewServedIndex(ServedDesc{Type: TypeRT})
	h.AddOrReplace(next, "posts")
	next.Release()

	if oldHandle.closed != 1 {
		t.Error("replaced entry was not destroyed")
	}
	if hookKey != "posts" {
		t.Errorf("hook saw key %q", hookKey)
	}
	h.ReleaseAndClear()
}

func TestNilPlaceholders(t *testing.T) {
	h := NewGuardedHash()

	if !h.AddUniq(nil, "pending") {
		t.Fatal("placeholder insert failed")
	}
	if !h.Contains("pending") {
		t.Error("placeholder not visible to Contains")
	}
	if h.Get("pending") != nil {
		t.Error("Get returned a value for a placeholder")
	}
	if !h.DeleteIfNull("pending") {
		t.Error("DeleteIfNull refused a placeholder")
	}

	s := NewServedIndex(ServedDesc{Type: TypeRT})
	h.AddUniq(s, "posts")
	if h.DeleteIfNull("posts") {
		t.Error("DeleteIfNull removed a real entry")
	}
	h.ReleaseAndClear()
	s.Release()
}

func TestTryAddThenGet(t *testing.T) {
	h := NewGuardedHash()

	first := NewServedIndex(ServedDesc{Type: TypeRT})
	got := h.TryAddThenGet(first, "posts")
	if got != Refcounted(first) {
		t.Fatal("first TryAddThenGet should return the inserted value")
	}
	got.Release()

	second := NewServedIndex(ServedDesc{Type: TypePercolate})
	got = h.TryAddThenGet(second, "posts")
	if got != Refcounted(first) {
		t.Fatal("second TryAddThenGet should return the existing value")
	}
	got.Release()

	second.Release()
	first.Release()
	h.ReleaseAndClear()
}

func TestIteratorsSeeConsistentSnapshot(t *testing.T) {
	h := NewGuardedHash()
	for _, name := range []string{"a", "b", "c"} {
		s := NewServedIndex(ServedDesc{Type: TypeRT, IndexPath: "/data/" + name})
		h.AddUniq(s, name)
		s.Release()
	}

	it := h.RIter()
	var seen []string
	for it.Next() {
		seen = append(seen, it.Key())
		if it.Value() == nil {
			t.Errorf("entry %q unexpectedly nil", it.Key())
		}
	}
	it.Close()

	if len(seen) != 3 || seen[0] != "a" || seen[1] != "b" || seen[2] != "c" {
		t.Fatalf("iteration saw %v", seen)
	}
	h.ReleaseAndClear()
}

func TestExclusiveIteratorDelete(t *testing.T) {
	h := NewGuardedHash()
	handles := map[string]*fakeHandle{}
	for _, name := range []string{"keep", "drop"} {
		handle := &fakeHandle{}
		handles[name] = handle
		s := NewServedIndex(ServedDesc{Index: handle, Type: TypeRT})
		h.AddUniq(s, name)
		s.Release()
	}

	it := h.WIter()
	for it.Next() {
		if it.Key() == "drop" {
			it.Delete()
			if it.Value() != nil {
				t.Error("deleted entry still visible through the iterator")
			}
		}
	}
	it.Close()

	if h.Contains("drop") {
		t.Error("deleted entry still in the hash")
	}
	if handles["drop"].closed != 1 {
		t.Error("deleted entry was not destroyed")
	}
	if !h.Contains("keep") {
		t.Error("unrelated entry vanished")
	}
	h.ReleaseAndClear()
	if handles["keep"].closed != 1 {
		t.Error("ReleaseAndClear did not destroy the remaining entry")
	}
}
