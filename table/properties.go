package table

import (
	"encoding/binary"

	"github.com/vidardb/vidardb-engine/errs"
)

// Properties mirrors the control block that original_source attaches to
// every finished table (num entries, raw sizes, the comparator and
// splitter names needed to reopen the file correctly). Persisted
// positionally, without field names: the numeric fields as uvarints in a
// fixed order, followed by the names as length-prefixed strings.
type Properties struct {
	NumEntries        uint64
	RawKeySize        uint64
	RawValueSize      uint64
	DataSize          uint64
	IndexSize         uint64
	ColumnCount       uint64
	DataBlockCount    uint64
	ColumnFamilyID    uint64
	ColumnFamilyName  string
	ComparatorName    string
	SplitterName      string
	CompressionName   string
	FixedKeyLen       uint64
}

func putUvarint(dst []byte, v uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	return append(dst, buf[:n]...)
}

func putString(dst []byte, s string) []byte {
	dst = putUvarint(dst, uint64(len(s)))
	return append(dst, s...)
}

func getUvarint(src []byte) (uint64, []byte, error) {
	v, n := binary.Uvarint(src)
	if n <= 0 {
		return 0, nil, errs.New(errs.KindCorruption, "truncated varint in properties block")
	}
	return v, src[n:], nil
}

func getString(src []byte) (string, []byte, error) {
	n, rest, err := getUvarint(src)
	if err != nil {
		return "", nil, err
	}
	if uint64(len(rest)) < n {
		return "", nil, errs.New(errs.KindCorruption, "truncated string in properties block")
	}
	return string(rest[:n]), rest[n:], nil
}

func (p Properties) Encode() []byte {
	var buf []byte
	buf = putUvarint(buf, p.NumEntries)
	buf = putUvarint(buf, p.RawKeySize)
	buf = putUvarint(buf, p.RawValueSize)
	buf = putUvarint(buf, p.DataSize)
	buf = putUvarint(buf, p.IndexSize)
	buf = putUvarint(buf, p.ColumnCount)
	buf = putUvarint(buf, p.FixedKeyLen)
	buf = putUvarint(buf, p.DataBlockCount)
	buf = putUvarint(buf, p.ColumnFamilyID)
	buf = putString(buf, p.ComparatorName)
	buf = putString(buf, p.SplitterName)
	buf = putString(buf, p.CompressionName)
	buf = putString(buf, p.ColumnFamilyName)
	return buf
}

func DecodeProperties(data []byte) (Properties, error) {
	var p Properties
	var err error
	rest := data
	if p.NumEntries, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.RawKeySize, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.RawValueSize, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.DataSize, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.IndexSize, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.ColumnCount, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.FixedKeyLen, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.DataBlockCount, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.ColumnFamilyID, rest, err = getUvarint(rest); err != nil {
		return p, err
	}
	if p.ComparatorName, rest, err = getString(rest); err != nil {
		return p, err
	}
	if p.SplitterName, rest, err = getString(rest); err != nil {
		return p, err
	}
	if p.CompressionName, rest, err = getString(rest); err != nil {
		return p, err
	}
	if p.ColumnFamilyName, _, err = getString(rest); err != nil {
		return p, err
	}
	return p, nil
}
