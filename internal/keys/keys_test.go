package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendSplitRoundTrip(t *testing.T) {
	ik := Make([]byte("hello"), 42, TypeValue)

	uk, trailer := Split(ik)
	assert.Equal(t, "hello", string(uk))

	seq, vt := UnpackTrailer(trailer)
	assert.EqualValues(t, 42, seq)
	assert.Equal(t, TypeValue, vt)
}

func TestUserKeyStripsTrailer(t *testing.T) {
	ik := Make([]byte("world"), 7, TypeDeletion)
	assert.Equal(t, "world", string(UserKey(ik)))
}

func TestSequenceAndType(t *testing.T) {
	ik := Make([]byte("k"), 100, TypeSingleDeletion)
	assert.EqualValues(t, 100, Sequence(ik))
	assert.Equal(t, TypeSingleDeletion, Type(ik))
}

func TestValidValueType(t *testing.T) {
	assert.True(t, ValidValueType(TypeDeletion))
	assert.True(t, ValidValueType(TypeValue))
	assert.True(t, ValidValueType(TypeSingleDeletion))
	assert.False(t, ValidValueType(ValueType(3)))
	assert.False(t, ValidValueType(ValueType(255)))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Make([]byte("k"), 1, TypeValue)))
	assert.False(t, Valid([]byte("short")))
}

func TestMaxSequenceNumberFitsTrailer(t *testing.T) {
	ik := Make([]byte("k"), MaxSequenceNumber, TypeValue)
	seq := Sequence(ik)
	assert.Equal(t, MaxSequenceNumber, seq)
}
