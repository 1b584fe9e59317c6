package store

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Entry is a versioned value held in the store.
//
// Entries are immutable. An update is a new entry that replaces the old
// one as a whole if it wins conflict resolution; entries are never mutated
// in place.
type Entry struct {
	Key string `json:"key" codec:"key"`

	Value []byte `json:"value" codec:"value"`

	// CreatedAt is the wall clock time the entry was created by the
	// writing node, in Unix milliseconds. It is the version used for
	// last-write-wins conflict resolution.
	CreatedAt int64 `json:"created_at" codec:"created_at"`

	// TTL is the duration in milliseconds after CreatedAt at which the
	// entry expires, or 0 if the entry never expires.
	TTL int64 `json:"ttl,omitempty" codec:"ttl"`
}

// Expired returns whether the entry has expired at time t. An entry with
// TTL T expires exactly at CreatedAt+T.
func (e *Entry) Expired(t time.Time) bool {
	if e.TTL == 0 {
		return false
	}
	return e.CreatedAt+e.TTL <= t.UnixMilli()
}

// Supersedes returns whether e wins conflict resolution against other.
//
// The entry with the larger creation timestamp wins. Ties are broken by a
// total order over the value bytes, so both sides of an exchange resolve
// the same conflict to the same entry. An entry never supersedes an
// identical entry, which makes merging idempotent.
func (e *Entry) Supersedes(other Entry) bool {
	if e.CreatedAt != other.CreatedAt {
		return e.CreatedAt > other.CreatedAt
	}
	return bytes.Compare(e.Value, other.Value) > 0
}

// hash returns a digest of the entry key and version. Values are excluded
// so the store hash only changes when an entry is replaced.
func (e *Entry) hash() uint64 {
	var d xxhash.Digest
	_, _ = d.WriteString(e.Key)

	var version [8]byte
	binary.LittleEndian.PutUint64(version[:], uint64(e.CreatedAt))
	_, _ = d.Write(version[:])

	return d.Sum64()
}
