// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
)

var errCorruptBatch = errors.New("lsmkv: corrupt WAL batch record")

// batchHeaderLen is the fixed-size count prefix of a WAL record (spec
// §4.12 "Builds a single WAL record with layout fixed32 count || ...").
const batchHeaderLen = 4

// batchEntryHeaderLen is the fixed portion of each packed entry: an
// 8-byte sequence number plus a 1-byte kind.
const batchEntryHeaderLen = 9

// There is no public multi-operation Batch type (spec §6 "Public
// operations": open, put, delete, get, new_iterator, destroy -- nothing
// else). batchBuilder instead assembles the single WAL record a
// group-commit leader writes for the run of Put/Delete requests it
// collected off the writer FIFO.
type batchBuilder struct {
	buf   []byte
	count uint32
}

func newBatchBuilder() *batchBuilder {
	return &batchBuilder{buf: make([]byte, batchHeaderLen)}
}

// put appends one packed entry: fixed64 sequence || u8 kind || lp key ||
// lp value. value is an empty length-prefixed string for a delete.
func (b *batchBuilder) put(seq base.SeqNum, kind base.InternalKeyKind, key, value []byte) {
	var hdr [batchEntryHeaderLen]byte
	binary.LittleEndian.PutUint64(hdr[:8], uint64(seq))
	hdr[8] = byte(kind)
	b.buf = append(b.buf, hdr[:]...)
	b.buf = base.PutLengthPrefixedBytes(b.buf, key)
	b.buf = base.PutLengthPrefixedBytes(b.buf, value)
	b.count++
}

// finish writes the final entry count into the reserved header and
// returns the complete record.
func (b *batchBuilder) finish() []byte {
	binary.LittleEndian.PutUint32(b.buf[:batchHeaderLen], b.count)
	return b.buf
}

func (b *batchBuilder) empty() bool { return b.count == 0 }

// batchReader decodes a WAL record produced by batchBuilder, used both to
// apply a freshly-written record to the memtable and to replay a record
// found in a log file during recover (spec §4.9 "recover").
type batchReader struct {
	data  []byte
	count uint32
}

// newBatchReader validates record's header and returns a reader
// positioned at its first entry.
func newBatchReader(record []byte) (*batchReader, error) {
	if len(record) < batchHeaderLen {
		return nil, base.NewCorruptionError(errCorruptBatch)
	}
	count := binary.LittleEndian.Uint32(record[:batchHeaderLen])
	return &batchReader{data: record[batchHeaderLen:], count: count}, nil
}

// next returns the next packed entry, or ok=false once every entry parsed
// by count has been consumed.
func (r *batchReader) next() (seq base.SeqNum, kind base.InternalKeyKind, key, value []byte, ok bool, err error) {
	if r.count == 0 {
		return 0, 0, nil, nil, false, nil
	}
	if len(r.data) < batchEntryHeaderLen {
		return 0, 0, nil, nil, false, base.NewCorruptionError(errCorruptBatch)
	}
	seq = base.SeqNum(binary.LittleEndian.Uint64(r.data[:8]))
	kind = base.InternalKeyKind(r.data[8])
	r.data = r.data[batchEntryHeaderLen:]

	var ok2 bool
	key, r.data, ok2 = base.GetLengthPrefixedBytes(r.data)
	if !ok2 {
		return 0, 0, nil, nil, false, base.NewCorruptionError(errCorruptBatch)
	}
	value, r.data, ok2 = base.GetLengthPrefixedBytes(r.data)
	if !ok2 {
		return 0, 0, nil, nil, false, base.NewCorruptionError(errCorruptBatch)
	}
	r.count--
	return seq, kind, key, value, true, nil
}
