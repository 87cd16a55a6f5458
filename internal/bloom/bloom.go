// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package bloom implements the per-sorted-file Bloom filter of spec §4.2: a
// bit array built from a key set, consulted to skip data blocks and to
// decide when a tombstone is safe to drop during compaction.
package bloom

import "github.com/cespare/xxhash/v2"

// hash32 is the "32-bit key hash" black-box dependency of spec §4.1,
// implemented on top of the xxhash/v2 domain dependency rather than a
// hand-rolled FNV/Murmur variant.
func hash32(key []byte) uint32 {
	return uint32(xxhash.Sum64(key))
}

// CreateFilter builds a Bloom filter over keys, targeting bitsPerKey bits of
// filter per key (spec §4.2). The returned slice is the filter's on-disk
// form: m/8 data bytes rounded up to a byte boundary (minimum 64 bits),
// followed by one trailing byte recording the number of hash probes k.
func CreateFilter(keys [][]byte, bitsPerKey int) []byte {
	k := numProbes(bitsPerKey)

	bits := len(keys) * bitsPerKey
	if bits < 64 {
		bits = 64
	}
	bytes := (bits + 7) / 8
	bits = bytes * 8

	filter := make([]byte, bytes+1)
	for _, key := range keys {
		h := hash32(key)
		delta := rot17(h)
		for i := 0; i < k; i++ {
			bitpos := h % uint32(bits)
			filter[bitpos/8] |= 1 << (bitpos % 8)
			h += delta
		}
	}
	filter[bytes] = byte(k)
	return filter
}

// MayMatch conservatively tests whether key might be a member of the set
// that CreateFilter was built from. It never returns false for a key that
// was in the set (spec P7); it may return true for a key that was not
// (false positive).
func MayMatch(filter, key []byte) bool {
	n := len(filter)
	if n < 2 {
		return false
	}
	bytes := n - 1
	k := int(filter[bytes])
	if k > 30 {
		// Reserved for future encodings; a filter we don't understand is
		// treated as matching everything, matching classic LevelDB behavior.
		return true
	}
	bits := uint32(bytes * 8)

	h := hash32(key)
	delta := rot17(h)
	for i := 0; i < k; i++ {
		bitpos := h % bits
		if filter[bitpos/8]&(1<<(bitpos%8)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

// numProbes derives k = round(bitsPerKey * ln2), clamped to [1, 30] (spec
// §4.2).
func numProbes(bitsPerKey int) int {
	k := int(float64(bitsPerKey)*0.69314718055994530942 /* ln 2 */ + 0.5)
	if k < 1 {
		k = 1
	}
	if k > 30 {
		k = 30
	}
	return k
}

// rot17 rotates h left by 17 bits, the double-hashing step h_i = h + i*rot17(h)
// of spec §4.2.
func rot17(h uint32) uint32 {
	return (h << 17) | (h >> 15)
}
