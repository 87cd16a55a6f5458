package base

import "hash/crc32"

// Package-level Castagnoli table, shared by the WAL record writer/reader and
// the sstable block trailer, per spec §4.1: CRC-32C with a mask applied
// before a CRC is ever written to storage.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// CRC is a CRC-32C checksum.
type CRC uint32

// NewCRC returns the CRC-32C checksum of b.
func NewCRC(b []byte) CRC {
	return CRC(crc32.Checksum(b, castagnoliTable))
}

// Update returns the CRC-32C checksum of the concatenation of the data
// already summarized by c and b.
func (c CRC) Update(b []byte) CRC {
	return CRC(crc32.Update(uint32(c), castagnoliTable, b))
}

// Value returns the unmasked, raw checksum value.
func (c CRC) Value() uint32 { return uint32(c) }

// Mask returns a masked checksum value, ready to be written to storage. A
// checksum must never protect a range of bytes that contains its own
// unmasked value, so the value is rotated and offset before being persisted;
// the inverse (Unmask) must be applied before the value is compared again.
func (c CRC) Mask() uint32 {
	x := uint32(c)
	return ((x >> 15) | (x << 17)) + 0xa282ead8
}

// Unmask reverses Mask, recovering the raw CRC-32C value that was written to
// storage as maskedCRC.
func Unmask(maskedCRC uint32) CRC {
	x := maskedCRC - 0xa282ead8
	return CRC((x >> 17) | (x << 15))
}
