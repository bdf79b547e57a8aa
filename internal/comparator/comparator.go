// Package comparator implements the user-key and internal-key orderings
// from spec §3 and the index-builder support spec.md's §4.1 and §9 call
// for: a named, pluggable comparator capability object exposing
// FindShortestSeparator / FindShortSuccessor, grounded in
// original_source/table/column_table_builder.cc's ShortenedIndexBuilder,
// which calls exactly these two methods when building the sparse index.
package comparator

import (
	"bytes"

	"github.com/vidardb/vidardb-engine/internal/keys"
)

// UserComparator is the pluggable total order over user keys, identified
// by its Name (spec §9: "comparators ... are specified by their
// identifying name string"). The table properties block records the
// InternalKeyComparator's name rather than this one, and table readers
// do not check it on open.
type UserComparator interface {
	Name() string
	Compare(a, b []byte) int

	// FindShortestSeparator may shorten start in place (by truncating,
	// never by lengthening past the original) to any string s such that
	// start <= s < limit, to keep index keys small.
	FindShortestSeparator(start []byte, limit []byte) []byte

	// FindShortSuccessor returns a short string >= key, used for the
	// final block's index entry where there is no next key to bound against.
	FindShortSuccessor(key []byte) []byte
}

// Bytewise is the default byte-lexicographic comparator.
type Bytewise struct{}

func (Bytewise) Name() string { return "vidardb.BytewiseComparator" }

func (Bytewise) Compare(a, b []byte) int { return bytes.Compare(a, b) }

func (Bytewise) FindShortestSeparator(start []byte, limit []byte) []byte {
	minLen := len(start)
	if len(limit) < minLen {
		minLen = len(limit)
	}
	diffIdx := 0
	for diffIdx < minLen && start[diffIdx] == limit[diffIdx] {
		diffIdx++
	}
	if diffIdx >= minLen {
		// One is a prefix of the other; no shortening possible.
		return start
	}
	diffByte := start[diffIdx]
	if diffByte < 0xff && diffByte+1 < limit[diffIdx] {
		shortened := append([]byte{}, start[:diffIdx+1]...)
		shortened[diffIdx]++
		if bytes.Compare(shortened, limit) < 0 {
			return shortened
		}
	}
	return start
}

func (Bytewise) FindShortSuccessor(key []byte) []byte {
	for i := 0; i < len(key); i++ {
		if key[i] != 0xff {
			successor := append([]byte{}, key[:i+1]...)
			successor[i]++
			return successor
		}
	}
	// key is all 0xff bytes; no short successor exists, keep as-is.
	return key
}

// InternalKeyComparator lifts a UserComparator to the internal-key order
// from spec §3: user key ascending, ties broken by descending sequence
// number, then descending value type.
type InternalKeyComparator struct {
	User UserComparator
}

func NewInternalKeyComparator(user UserComparator) *InternalKeyComparator {
	return &InternalKeyComparator{User: user}
}

func (c *InternalKeyComparator) Name() string { return "vidardb.InternalKeyComparator" }

func (c *InternalKeyComparator) Compare(a, b []byte) int {
	aUser, aTrailer := keys.Split(a)
	bUser, bTrailer := keys.Split(b)
	if cmp := c.User.Compare(aUser, bUser); cmp != 0 {
		return cmp
	}
	switch {
	case aTrailer > bTrailer:
		return -1
	case aTrailer < bTrailer:
		return 1
	default:
		return 0
	}
}

// FindShortestSeparator operates on the user-key portion only and then
// reattaches a trailer with the maximal sequence number (and TypeValue);
// the shortened user key is strictly below limit's, so it still sorts
// before every key in the next block.
func (c *InternalKeyComparator) FindShortestSeparator(start []byte, limit []byte) []byte {
	startUser, _ := keys.Split(start)
	limitUser, _ := keys.Split(limit)
	shortened := c.User.FindShortestSeparator(append([]byte{}, startUser...), limitUser)
	if len(shortened) < len(startUser) && c.User.Compare(startUser, shortened) < 0 {
		return keys.Append(nil, shortened, keys.MaxSequenceNumber, keys.TypeValue)
	}
	return start
}

func (c *InternalKeyComparator) FindShortSuccessor(key []byte) []byte {
	userKey, _ := keys.Split(key)
	shortened := c.User.FindShortSuccessor(append([]byte{}, userKey...))
	if len(shortened) < len(userKey) && c.User.Compare(userKey, shortened) < 0 {
		return keys.Append(nil, shortened, keys.MaxSequenceNumber, keys.TypeValue)
	}
	return key
}
