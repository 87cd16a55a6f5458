// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
)

// blockWriter accumulates entries into a single prefix-compressed data or
// index block (spec §4.8 "Data block"):
//
//	For each entry: varint32(shared_bytes) || varint32(non_shared_bytes) ||
//	varint32(value_len) || non_shared_key_bytes || value
//
// Every restartInterval-th entry restarts the prefix (shared_bytes = 0) so
// that a reader can binary-search the restart points without decoding every
// entry in between.
type blockWriter struct {
	restartInterval int
	buf             []byte
	restarts        []uint32
	counter         int
	curKey          []byte
	curValue        []byte
	prevKey         []byte
}

func newBlockWriter(restartInterval int) *blockWriter {
	return &blockWriter{restartInterval: restartInterval}
}

// add appends an entry. Keys must be added in ascending order.
func (w *blockWriter) add(key, value []byte) {
	shared := 0
	if w.counter < w.restartInterval {
		shared = base.SharedPrefixLen(w.prevKey, key)
	} else {
		w.restarts = append(w.restarts, uint32(len(w.buf)))
		w.counter = 0
	}
	nonShared := key[shared:]

	w.buf = base.PutUvarint32(w.buf, uint32(shared))
	w.buf = base.PutUvarint32(w.buf, uint32(len(nonShared)))
	w.buf = base.PutUvarint32(w.buf, uint32(len(value)))
	w.buf = append(w.buf, nonShared...)
	w.buf = append(w.buf, value...)

	w.prevKey = append(w.prevKey[:0], key...)
	w.counter++
}

func (w *blockWriter) empty() bool { return len(w.buf) == 0 }

// finish appends the restart point array and its count, completing the
// block body (the 5-byte trailer is added separately by the table writer).
func (w *blockWriter) finish() []byte {
	if len(w.restarts) == 0 || w.restarts[0] != 0 {
		w.restarts = append([]uint32{0}, w.restarts...)
	}
	for _, r := range w.restarts {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, r)
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(w.restarts)))
	return w.buf
}

func (w *blockWriter) reset() {
	w.buf = w.buf[:0]
	w.restarts = w.restarts[:0]
	w.counter = 0
	w.prevKey = w.prevKey[:0]
}

// blockIter walks the entries of a decoded block body in ascending key
// order, supporting both linear Next/Prev and restart-point-assisted
// SeekGE (spec §4.8: "a reader binary-searches the restart point array,
// then scans linearly from there").
type blockIter struct {
	data     []byte
	restarts []byte
	numRestarts int

	offset   int
	nextOffset int
	key      []byte
	value    []byte
	valid    bool
}

func newBlockIter(block []byte) (*blockIter, error) {
	if len(block) < 4 {
		return nil, errors.New("lsmkv: block too short")
	}
	numRestarts := int(binary.LittleEndian.Uint32(block[len(block)-4:]))
	if numRestarts == 0 {
		return nil, errors.New("lsmkv: block has no restart points")
	}
	restartsStart := len(block) - 4 - numRestarts*4
	if restartsStart < 0 {
		return nil, errors.New("lsmkv: corrupt block restart array")
	}
	return &blockIter{
		data:        block[:restartsStart],
		restarts:    block[restartsStart : len(block)-4],
		numRestarts: numRestarts,
	}, nil
}

func (i *blockIter) restartPoint(idx int) uint32 {
	return binary.LittleEndian.Uint32(i.restarts[idx*4:])
}

// readEntryAt decodes the entry at byte offset off, given the key that
// prefix-compression is relative to (empty at a restart point).
func (i *blockIter) readEntryAt(off int, basePrefix []byte) (key, value []byte, next int, ok bool) {
	if off >= len(i.data) {
		return nil, nil, 0, false
	}
	p := i.data[off:]
	shared, n1 := base.Uvarint(p)
	p = p[n1:]
	nonShared, n2 := base.Uvarint(p)
	p = p[n2:]
	valueLen, n3 := base.Uvarint(p)
	p = p[n3:]

	key = make([]byte, 0, shared+nonShared)
	key = append(key, basePrefix[:shared]...)
	key = append(key, p[:nonShared]...)
	p = p[nonShared:]
	value = p[:valueLen]

	next = off + n1 + n2 + n3 + int(nonShared) + int(valueLen)
	return key, value, next, true
}

func (i *blockIter) First() {
	i.seekToRestart(0)
	i.Next()
}

func (i *blockIter) seekToRestart(idx int) {
	i.nextOffset = int(i.restartPoint(idx))
	i.key = i.key[:0]
}

// SeekGE positions the iterator at the first entry whose key is >= target
// under cmp.
func (i *blockIter) SeekGE(cmp base.Compare, target []byte) {
	lo, hi := 0, i.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		k, _, _, ok := i.readEntryAt(int(i.restartPoint(mid)), nil)
		if ok && cmp(k, target) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	i.seekToRestart(lo)
	for i.Next(); i.valid; i.Next() {
		if cmp(i.key, target) >= 0 {
			return
		}
	}
}

func (i *blockIter) Next() {
	key, value, next, ok := i.readEntryAt(i.nextOffset, i.key)
	if !ok {
		i.valid = false
		return
	}
	i.key, i.value, i.offset, i.nextOffset, i.valid = key, value, i.nextOffset, next, true
}

// Prev steps backward by locating the restart point at or before the
// current entry and re-scanning forward, the same approach the block
// format's binary-searchable restart array is designed for (spec §4.8).
func (i *blockIter) Prev() {
	if !i.valid {
		return
	}
	target := i.offset
	lo, hi := 0, i.numRestarts-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if int(i.restartPoint(mid)) < target {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	i.seekToRestart(lo)
	var lastKey, lastValue []byte
	lastOffset := -1
	for i.Next(); i.valid && i.offset < target; i.Next() {
		lastKey, lastValue, lastOffset = i.key, i.value, i.offset
	}
	if lastOffset < 0 {
		i.valid = false
		return
	}
	i.key, i.value, i.offset, i.valid = lastKey, lastValue, lastOffset, true
}

func (i *blockIter) Valid() bool   { return i.valid }
func (i *blockIter) Key() []byte   { return i.key }
func (i *blockIter) Value() []byte { return i.value }
