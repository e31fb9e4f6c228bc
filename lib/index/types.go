// Package index owns the daemon's registry of served indexes: the
// per-index descriptor with its reader-writer lock and reference count,
// and the name-keyed guarded hash that all connection workers share.
package index

// --------------------------------------------------------------------------
// Index type tags
// --------------------------------------------------------------------------

// Type tags every served index with its engine flavor
type Type int

const (
	TypePlain Type = iota
	TypeTemplate
	TypeRT
	TypePercolate
	TypeDistributed
	TypeError
)

var typeNames = [...]string{
	"plain",
	"template",
	"rt",
	"percolate",
	"distributed",
	"invalid",
}

func (t Type) String() string {
	if t < TypePlain || t > TypeError {
		return typeNames[TypeError]
	}
	return typeNames[t]
}

// TypeOfConfig maps the textual index type from a config section to its tag.
// An empty string means plain; anything unknown is an error tag.
func TypeOfConfig(s string) Type {
	switch s {
	case "distributed":
		return TypeDistributed
	case "rt":
		return TypeRT
	case "percolate":
		return TypePercolate
	case "template":
		return TypeTemplate
	case "", "plain":
		return TypePlain
	default:
		return TypeError
	}
}

// IsMutable reports whether the index accepts inserts/replaces; mutable
// indexes get a writer-priority descriptor lock so rotations cannot starve.
func (t Type) IsMutable() bool {
	return t == TypeRT || t == TypePercolate
}

// IsSelectable reports whether the index supports SELECT (at least full-scan)
func (t Type) IsSelectable() bool {
	return t.IsFullText() || t == TypePercolate
}

// IsFullText reports whether the index supports full-text searching
func (t Type) IsFullText() bool {
	return t == TypePlain || t == TypeRT || t == TypeDistributed
}

// --------------------------------------------------------------------------
// Registry add results
// --------------------------------------------------------------------------

// AddResult is the outcome of configuring an index into the registry
type AddResult int

const (
	AddError       AddResult = iota // not added: config or engine error
	AddDisabled                     // registered but not yet loaded (prealloc pending)
	AddDistributed                  // added as a distributed index
	AddServed                       // added and immediately queryable
)

// --------------------------------------------------------------------------
// Keyword expansion policy
// --------------------------------------------------------------------------

// KeywordExpansion selects how query keywords are expanded for this index
type KeywordExpansion int

const (
	ExpandDisabled KeywordExpansion = 0
	ExpandExact    KeywordExpansion = 1 << 0
	ExpandStar     KeywordExpansion = 1 << 1
	ExpandAll      KeywordExpansion = ExpandExact | ExpandStar
)

// --------------------------------------------------------------------------
// File access settings
// --------------------------------------------------------------------------

// FileAccess selects how one class of index files is mapped or read
type FileAccess int

const (
	AccessSeek FileAccess = iota
	AccessMmap
	AccessMmapPreread
	AccessMlock
	AccessUnknown
)

// FileAccessSettings carries the per-file-class access modes and the read
// buffer sizes the engine should use for this index
type FileAccessSettings struct {
	Attr    FileAccess
	Blob    FileAccess
	Doclist FileAccess
	Hitlist FileAccess

	ReadBufferDocList int
	ReadBufferHitList int
}
