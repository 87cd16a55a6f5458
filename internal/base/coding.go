package base

import "encoding/binary"

// This file holds the fixed-width and varint coding primitives shared by the
// WAL record format, the sorted-file block format, and the manifest's
// version-edit encoding. It mirrors the coding conventions used throughout
// pebble's on-disk formats (record.go, sstable/block.go, internal/manifest).

// FixedUint32 and FixedUint64 are little-endian fixed-width integers.

// PutUint32 encodes v into buf[:4] little-endian.
func PutUint32(buf []byte, v uint32) { binary.LittleEndian.PutUint32(buf, v) }

// DecodeUint32 decodes a little-endian uint32 from the front of buf.
func DecodeUint32(buf []byte) uint32 { return binary.LittleEndian.Uint32(buf) }

// PutUint64 encodes v into buf[:8] little-endian.
func PutUint64(buf []byte, v uint64) { binary.LittleEndian.PutUint64(buf, v) }

// DecodeUint64 decodes a little-endian uint64 from the front of buf.
func DecodeUint64(buf []byte) uint64 { return binary.LittleEndian.Uint64(buf) }

// PutUvarint appends a varint-encoded u to dst and returns the result.
func PutUvarint(dst []byte, u uint64) []byte {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], u)
	return append(dst, buf[:n]...)
}

// PutUvarint32 appends a varint-encoded u to dst and returns the result.
func PutUvarint32(dst []byte, u uint32) []byte {
	return PutUvarint(dst, uint64(u))
}

// Uvarint decodes a varint-encoded uint64 from the front of buf, returning
// the value and the number of bytes consumed (0 on error).
func Uvarint(buf []byte) (uint64, int) {
	return binary.Uvarint(buf)
}

// PutLengthPrefixedBytes appends a varint32 length followed by the raw bytes
// of s to dst and returns the result.
func PutLengthPrefixedBytes(dst []byte, s []byte) []byte {
	dst = PutUvarint32(dst, uint32(len(s)))
	return append(dst, s...)
}

// GetLengthPrefixedBytes decodes a varint32-length-prefixed byte string from
// the front of buf, returning the string and the remainder of buf.
func GetLengthPrefixedBytes(buf []byte) (s, rest []byte, ok bool) {
	u, n := binary.Uvarint(buf)
	if n <= 0 {
		return nil, buf, false
	}
	buf = buf[n:]
	if uint64(len(buf)) < u {
		return nil, buf, false
	}
	return buf[:u], buf[u:], true
}
