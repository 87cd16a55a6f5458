// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"encoding/binary"
	"fmt"
)

// SeqNum is the monotonically increasing 56-bit write counter of spec §3.
// Sequence number 0 is reserved; the first applied write is assigned 1.
type SeqNum uint64

// SeqNumMax is the largest representable sequence number: 2^56-1.
const SeqNumMax SeqNum = 1<<56 - 1

func (s SeqNum) String() string { return fmt.Sprintf("%d", uint64(s)) }

// InternalKeyKind is the op-type occupying the low byte of the trailer:
// spec §3 "one of {value, deletion}".
type InternalKeyKind uint8

const (
	// InternalKeyKindDelete marks a tombstone for a user key.
	InternalKeyKindDelete InternalKeyKind = 0
	// InternalKeyKindSet stores a value for a user key.
	InternalKeyKindSet InternalKeyKind = 1
	// InternalKeyKindMax sorts less than or equal to any valid kind; used to
	// build a lookup key that should match any kind of entry for a user key
	// (spec §4.12 db.Get: "bound to a snapshot sequence").
	InternalKeyKindMax InternalKeyKind = 1
	// InternalKeyKindInvalid marks a corrupt or zero-value internal key.
	InternalKeyKindInvalid InternalKeyKind = 0xff
)

func (k InternalKeyKind) String() string {
	switch k {
	case InternalKeyKindDelete:
		return "DEL"
	case InternalKeyKindSet:
		return "SET"
	default:
		return fmt.Sprintf("UNKNOWN:%d", uint8(k))
	}
}

// InternalKeyTrailer is the packed (seq<<8 | kind) 64-bit word appended to
// every user key (spec §3 "Internal key").
type InternalKeyTrailer uint64

// MakeTrailer packs a sequence number and kind into a trailer.
func MakeTrailer(seq SeqNum, kind InternalKeyKind) InternalKeyTrailer {
	return InternalKeyTrailer(uint64(seq)<<8 | uint64(kind))
}

// SeqNum extracts the sequence number from a trailer.
func (t InternalKeyTrailer) SeqNum() SeqNum { return SeqNum(t >> 8) }

// Kind extracts the op-type from a trailer.
func (t InternalKeyTrailer) Kind() InternalKeyKind { return InternalKeyKind(t & 0xff) }

// InternalKeyTrailerLen is the fixed size, in bytes, of an encoded trailer.
const InternalKeyTrailerLen = 8

// InternalKey is a decoded (user key, trailer) pair: spec §3's "internal
// key" entity, used in memory once a key has been pulled off the wire. Its
// Encode method produces the on-disk representation of spec §4.5:
// user_key || le_fixed64((seq<<8)|kind).
type InternalKey struct {
	UserKey []byte
	Trailer InternalKeyTrailer
}

// MakeInternalKey returns the InternalKey for (userKey, seq, kind).
func MakeInternalKey(userKey []byte, seq SeqNum, kind InternalKeyKind) InternalKey {
	return InternalKey{UserKey: userKey, Trailer: MakeTrailer(seq, kind)}
}

// SeqNum returns the key's sequence number.
func (k InternalKey) SeqNum() SeqNum { return k.Trailer.SeqNum() }

// Kind returns the key's op-type.
func (k InternalKey) Kind() InternalKeyKind { return k.Trailer.Kind() }

// Size returns the length of k's on-disk encoding.
func (k InternalKey) Size() int { return len(k.UserKey) + InternalKeyTrailerLen }

// Encode writes k's on-disk form into buf, which must have length k.Size().
func (k InternalKey) Encode(buf []byte) {
	n := copy(buf, k.UserKey)
	binary.LittleEndian.PutUint64(buf[n:], uint64(k.Trailer))
}

// EncodeAppend appends k's on-disk form to dst and returns the result.
func (k InternalKey) EncodeAppend(dst []byte) []byte {
	n := len(dst)
	dst = append(dst, make([]byte, k.Size())...)
	k.Encode(dst[n:])
	return dst
}

// DecodeInternalKey decodes an on-disk internal key. The returned key
// aliases b.
func DecodeInternalKey(b []byte) InternalKey {
	n := len(b) - InternalKeyTrailerLen
	if n < 0 {
		return InternalKey{Trailer: InternalKeyTrailer(InternalKeyKindInvalid)}
	}
	return InternalKey{
		UserKey: b[:n:n],
		Trailer: InternalKeyTrailer(binary.LittleEndian.Uint64(b[n:])),
	}
}

// Valid reports whether the key decoded successfully.
func (k InternalKey) Valid() bool { return k.Kind() != InternalKeyKindInvalid || k.UserKey != nil }

// Clone returns a deep copy of k.
func (k InternalKey) Clone() InternalKey {
	if len(k.UserKey) == 0 {
		return InternalKey{Trailer: k.Trailer}
	}
	u := make([]byte, len(k.UserKey))
	copy(u, k.UserKey)
	return InternalKey{UserKey: u, Trailer: k.Trailer}
}

func (k InternalKey) String() string {
	return fmt.Sprintf("%s#%d,%s", FormatBytes(k.UserKey), k.SeqNum(), k.Kind())
}

// InternalCompare implements the internal-key total order of spec §4.5: user
// parts compare via userCmp ascending; on a tie, trailers compare as
// unsigned integers but the result is NEGATED, so a larger (seq<<8|kind) --
// i.e. a newer entry -- sorts first.
func InternalCompare(userCmp Compare, a, b InternalKey) int {
	if c := userCmp(a.UserKey, b.UserKey); c != 0 {
		return c
	}
	if a.Trailer == b.Trailer {
		return 0
	}
	if a.Trailer > b.Trailer {
		return -1
	}
	return 1
}

// InternalComparer adapts a user Comparer into a Comparer over the encoded
// (user_key||trailer) byte strings stored in the memtable skiplist and
// sstable blocks. find_shortest_separator / find_short_successor are
// deliberately no-ops here (spec §4.5): shortening an internal key would
// corrupt its sequence trailer, since the trailer is not a suffix that
// Separator/Successor know how to preserve.
func InternalComparer(userCmp *Comparer) *Comparer {
	compare := func(a, b []byte) int {
		return InternalCompare(userCmp.Compare, DecodeInternalKey(a), DecodeInternalKey(b))
	}
	return &Comparer{
		Compare: compare,
		Equal: func(a, b []byte) bool {
			return compare(a, b) == 0
		},
		Separator: func(dst, a, _ []byte) []byte { return append(dst, a...) },
		Successor: func(dst, a []byte) []byte { return append(dst, a...) },
		Name:      "internal." + userCmp.Name,
	}
}
