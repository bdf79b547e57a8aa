// Package keys implements the internal-key encoding from spec §3/§6:
// user_key || 8-byte trailer, where the trailer packs a 56-bit sequence
// number and an 8-bit value type, little-endian. Ordering is user-key
// ascending, ties broken by descending sequence, then descending type.
//
// Grounded in the teacher's utils.KeyWithTS/ParseKey/ParseTimeStamp
// (And-fish-kvDB/utils/key.go), generalized from a fixed big-endian
// "reverse timestamp" trick to the spec's explicit little-endian
// (sequence<<8|type) trailer, which is decoded numerically rather than
// compared byte-wise — exactly how RocksDB-family internal keys work.
package keys

import (
	"encoding/binary"

	"github.com/vidardb/vidardb-engine/errs"
)

// ValueType tags what an internal key's payload means.
type ValueType uint8

const (
	TypeDeletion       ValueType = 0
	TypeValue          ValueType = 1
	TypeSingleDeletion ValueType = 2

	// maxKnownValueType bounds what §9's "corrupt type" quirk considers
	// legitimate; anything beyond this is a corrupt key by definition.
	maxKnownValueType = TypeSingleDeletion
)

// TrailerSize is the fixed width of the internal-key trailer.
const TrailerSize = 8

// MaxSequenceNumber is the largest representable 56-bit sequence number.
const MaxSequenceNumber = (uint64(1) << 56) - 1

// ValidValueType reports whether vt is one of the three known types.
func ValidValueType(vt ValueType) bool {
	return vt <= maxKnownValueType
}

// PackTrailer encodes (sequence, valueType) into the 8-byte trailer.
func PackTrailer(seq uint64, vt ValueType) uint64 {
	return seq<<8 | uint64(vt)
}

// UnpackTrailer splits a packed trailer back into sequence and type.
func UnpackTrailer(trailer uint64) (seq uint64, vt ValueType) {
	return trailer >> 8, ValueType(trailer & 0xff)
}

// Append builds an internal key by appending the trailer to userKey.
func Append(dst []byte, userKey []byte, seq uint64, vt ValueType) []byte {
	dst = append(dst[:0], userKey...)
	var buf [TrailerSize]byte
	binary.LittleEndian.PutUint64(buf[:], PackTrailer(seq, vt))
	return append(dst, buf[:]...)
}

// Make is the allocating convenience form of Append.
func Make(userKey []byte, seq uint64, vt ValueType) []byte {
	return Append(make([]byte, 0, len(userKey)+TrailerSize), userKey, seq, vt)
}

// Split decomposes an internal key into its user key and trailer.
// The caller must ensure len(ik) >= TrailerSize; corrupt short keys are
// reported by the caller's validation layer (table reader / compaction),
// not here, since Split has no error return in the hot read path.
func Split(ik []byte) (userKey []byte, trailer uint64) {
	n := len(ik) - TrailerSize
	return ik[:n], binary.LittleEndian.Uint64(ik[n:])
}

// UserKey strips the trailer from an internal key.
func UserKey(ik []byte) []byte {
	return ik[:len(ik)-TrailerSize]
}

// Sequence extracts the sequence number from an internal key.
func Sequence(ik []byte) uint64 {
	_, trailer := Split(ik)
	seq, _ := UnpackTrailer(trailer)
	return seq
}

// Type extracts the value type from an internal key.
func Type(ik []byte) ValueType {
	_, trailer := Split(ik)
	_, vt := UnpackTrailer(trailer)
	return vt
}

// Valid reports whether ik is long enough to hold a trailer.
func Valid(ik []byte) bool {
	return len(ik) >= TrailerSize
}

// ErrCorruptKey is returned when an internal key is too short to carry a
// trailer, or carries an unrecognized value type.
var ErrCorruptKey = errs.New(errs.KindCorruption, "corrupt internal key")
