// Package crc implements the masked CRC32C checksum used to frame every
// on-disk block, grounded in the teacher's utils.CastagnoliCrcTable
// (And-fish-kvDB/utils/const.go) and spec §6's exact masking formula.
// Masking (rather than a raw CRC) guards against accidentally computing
// the checksum of the checksum field itself when blocks are chained.
package crc

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

const maskDelta = 0xa282ead8

// Value computes the unmasked CRC32C of data.
func Value(data []byte) uint32 {
	return crc32.Checksum(data, table)
}

// Extend computes the unmasked CRC32C of data, continuing from an
// existing running checksum crc (used to checksum a payload followed by
// its type byte without concatenating them first).
func Extend(crc uint32, data []byte) uint32 {
	return crc32.Update(crc, table, data)
}

// Mask transforms a raw CRC so it is unlikely to collide with a CRC of
// the masked value itself, per spec §6: ((crc>>15)|(crc<<17)) + delta.
func Mask(crc uint32) uint32 {
	return ((crc >> 15) | (crc << 17)) + maskDelta
}

// Unmask inverts Mask.
func Unmask(masked uint32) uint32 {
	rot := masked - maskDelta
	return (rot >> 17) | (rot << 15)
}
