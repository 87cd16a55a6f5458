// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"github.com/lsmkv/lsmkv/internal/base"
)

// SeqNum exports the base.SeqNum type.
type SeqNum = base.SeqNum

// InternalKeyKind exports the base.InternalKeyKind type.
type InternalKeyKind = base.InternalKeyKind

// These constants are part of the on-disk format (spec §3) and must not
// change.
const (
	InternalKeyKindDelete  = base.InternalKeyKindDelete
	InternalKeyKindSet     = base.InternalKeyKindSet
	InternalKeyKindMax     = base.InternalKeyKindMax
	InternalKeyKindInvalid = base.InternalKeyKindInvalid
)

// InternalKeyTrailer exports the base.InternalKeyTrailer type.
type InternalKeyTrailer = base.InternalKeyTrailer

// InternalKey exports the base.InternalKey type.
type InternalKey = base.InternalKey

// MakeInternalKey constructs an internal key from a user key, sequence
// number, and kind (spec §4.5).
func MakeInternalKey(userKey []byte, seqNum SeqNum, kind InternalKeyKind) InternalKey {
	return base.MakeInternalKey(userKey, seqNum, kind)
}

// IsCorruptionError reports whether err indicates on-disk corruption (spec
// §7).
func IsCorruptionError(err error) bool {
	return base.IsCorruptionError(err)
}

// Sentinel errors of spec §7.
var (
	ErrNotFound        = base.ErrNotFound
	ErrClosed          = base.ErrClosed
	ErrNotSupported    = base.ErrNotSupported
	ErrInvalidArgument = base.ErrInvalidArgument
)
