package index

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/ftsd/lib/stats"
	"github.com/lni/dragonboat/v4/logger"
)

// Logger for the index registry
var Logger = logger.GetLogger("index")

// unlinkIndexFiles removes all files belonging to an index path prefix; it is
// a variable so tests can intercept the removal
var unlinkIndexFiles = func(path string) {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		Logger.Warningf("unlink %s: %v", path, err)
		return
	}
	for _, f := range matches {
		if err := os.Remove(f); err != nil {
			Logger.Warningf("unlink %s: %v", f, err)
		}
	}
}

// --------------------------------------------------------------------------
// Handle
// --------------------------------------------------------------------------

// Handle is the engine-side handle of a loaded index. The registry owns the
// handle and closes it when the last reference to the descriptor is dropped.
type Handle interface {
	Close() error
}

// --------------------------------------------------------------------------
// ServedDesc
// --------------------------------------------------------------------------

// ServedDesc describes one served index: the engine handle plus everything
// the daemon needs to rotate, replicate and schedule it
type ServedDesc struct {
	// Index is the engine handle; nil for disabled or distributed entries
	Index Handle

	Type Type

	// IndexPath is the current on-disk path; NewPath is set while a
	// rotation is staged
	IndexPath string
	NewPath   string

	// Unlink, when set, names an index path whose files are removed once
	// the descriptor is destroyed
	Unlink string

	// Preopen requests opening index files at load instead of first use
	Preopen bool

	// OnlyNew marks an index found in config but not yet on disk; it is
	// served after the first successful rotation
	OnlyNew bool

	ExpandKeywords KeywordExpansion

	// GlobalIDFPath points at the shared IDF file, if any
	GlobalIDFPath string

	// Mass is the relative weight used to order rotations, heaviest first
	Mass int64

	// RotationPriority breaks mass ties during mass rotations
	RotationPriority int

	// KilllistTargets names the indexes this index's kill-list applies to
	KilllistTargets []string

	// Cluster is the replication cluster the index belongs to, if any
	Cluster string

	// FromJSON marks an index created via the HTTP JSON surface
	FromJSON bool

	FileAccess FileAccessSettings
}

// IsMutable reports whether the described index accepts writes
func (d *ServedDesc) IsMutable() bool { return d.Type.IsMutable() }

// IsSelectable reports whether the described index answers SELECT
func (d *ServedDesc) IsSelectable() bool { return d.Type.IsSelectable() }

// IsFullText reports whether the described index supports full-text queries
func (d *ServedDesc) IsFullText() bool { return d.Type.IsFullText() }

// IsCluster reports whether the index is managed by replication: either it
// belongs to a cluster or it was created through the JSON surface
func (d *ServedDesc) IsCluster() bool { return d.FromJSON || d.Cluster != "" }

// --------------------------------------------------------------------------
// ServedIndex
// --------------------------------------------------------------------------

// ServedIndex is the refcounted, lock-guarded registry entry for one index.
// The embedded stats aggregate is updated lock-free relative to the
// descriptor lock; descriptor access goes through the scoped accessors.
type ServedIndex struct {
	*stats.ServedStats

	refs atomic.Int32

	mu sync.RWMutex
	// mutable index types need writer priority so a rotation cannot be
	// starved by a stream of readers; sync.RWMutex already blocks new
	// readers once a writer waits, so the flag is informational
	writerPriority bool

	desc ServedDesc
}

// NewServedIndex wraps a descriptor into a registry entry holding one
// reference on behalf of the caller
func NewServedIndex(desc ServedDesc) *ServedIndex {
	s := &ServedIndex{
		ServedStats:    stats.NewServedStats(),
		writerPriority: desc.Type.IsMutable(),
		desc:           desc,
	}
	s.refs.Store(1)
	return s
}

// AddRef takes one reference
func (s *ServedIndex) AddRef() {
	s.refs.Add(1)
}

// Release drops one reference; the last release closes the engine handle and
// removes any pending unlink path
func (s *ServedIndex) Release() {
	if s.refs.Add(-1) != 0 {
		return
	}

	if s.desc.Index != nil {
		if err := s.desc.Index.Close(); err != nil {
			Logger.Warningf("closing index %s: %v", s.desc.IndexPath, err)
		}
		s.desc.Index = nil
	}
	if s.desc.Unlink != "" {
		unlinkIndexFiles(s.desc.Unlink)
		s.desc.Unlink = ""
	}
}

// Refs returns the current reference count
func (s *ServedIndex) Refs() int32 { return s.refs.Load() }

// ReadLocked takes a reference and the shared descriptor lock. The returned
// view must be Unlock()ed; the descriptor must not be mutated through it.
func (s *ServedIndex) ReadLocked() *DescRead {
	s.AddRef()
	s.mu.RLock()
	return &DescRead{owner: s}
}

// WriteLocked takes a reference and the exclusive descriptor lock
func (s *ServedIndex) WriteLocked() *DescWrite {
	s.AddRef()
	s.mu.Lock()
	return &DescWrite{owner: s}
}

// DescRead is a shared-locked view of a descriptor
type DescRead struct {
	owner *ServedIndex
}

// Desc returns the descriptor; valid until Unlock
func (r *DescRead) Desc() *ServedDesc { return &r.owner.desc }

// Stats returns the owning entry's statistics aggregate
func (r *DescRead) Stats() *stats.ServedStats { return r.owner.ServedStats }

// Unlock releases the lock and the reference taken by ReadLocked
func (r *DescRead) Unlock() {
	r.owner.mu.RUnlock()
	r.owner.Release()
	r.owner = nil
}

// DescWrite is an exclusively-locked view of a descriptor
type DescWrite struct {
	owner *ServedIndex
}

// Desc returns the descriptor for mutation; valid until Unlock
func (w *DescWrite) Desc() *ServedDesc { return &w.owner.desc }

// Unlock releases the lock and the reference taken by WriteLocked
func (w *DescWrite) Unlock() {
	w.owner.mu.Unlock()
	w.owner.Release()
	w.owner = nil
}
