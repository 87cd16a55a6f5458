// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"sync/atomic"

	"github.com/lsmkv/lsmkv/internal/arenaskl"
	"github.com/lsmkv/lsmkv/internal/base"
)

// memTableNodeOverhead approximates a skiplist node's non-key footprint
// (tower links, bookkeeping), charged against write_buffer_size alongside
// the record bytes themselves (spec §4.6: "atomically adds the record size
// plus a constant node overhead to the memory-usage counter").
const memTableNodeOverhead = 40

// memTable wraps a concurrent skiplist keyed by a packed record (spec §4.6):
//
//	varint32(internal_key_len) || internal_key || varint32(value_len) || value
//
// The skiplist's own ordering only ever needs to compare these packed
// records, which memTableComparer does by decoding just enough of each side
// to run the internal-key comparator.
type memTable struct {
	cmp       base.Compare
	skl       *arenaskl.Skiplist
	memSize   int64 // atomic
	refs      int32 // atomic
	logNumber base.FileNum
}

func newMemTable(cmp base.Compare, arenaSize uint32, logNumber base.FileNum) *memTable {
	m := &memTable{cmp: cmp, logNumber: logNumber, refs: 1}
	m.skl = arenaskl.NewSkiplist(arenaskl.NewArena(arenaSize), m.compareRecords)
	return m
}

// ref/unref implement spec §4.6's reference counting: "the last unref
// deleting both the memtable and the heap-allocated records it owns" -- in
// this Go port, "deleting the records" just means letting the arena (and
// this memTable) become garbage once the last reference drops.
func (m *memTable) ref()   { atomic.AddInt32(&m.refs, 1) }
func (m *memTable) unref() { atomic.AddInt32(&m.refs, -1) }

// approximateMemoryUsage returns the write_buffer_size-comparable size of
// the table (spec §4.6, §4.12's make_room_for_write).
func (m *memTable) approximateMemoryUsage() int64 {
	return atomic.LoadInt64(&m.memSize)
}

// add packs (internalKey, value) into a single record and inserts it into
// the skiplist (spec §4.6: add(seq, type, user_key, value)).
func (m *memTable) add(ikey base.InternalKey, value []byte) error {
	record := encodeMemTableRecord(ikey, value)
	if err := m.skl.Add(record); err != nil {
		return err
	}
	atomic.AddInt64(&m.memSize, int64(len(record)+memTableNodeOverhead))
	return nil
}

// get implements spec §4.6's get(LookupKey): seeks to the packed form of
// (user_key, seq, InternalKeyKindMax), the smallest record whose user key
// equals userKey and whose (seq, kind) trailer is <= the lookup key's
// (larger trailers sort first per the internal comparator, so SeekGE lands
// on the newest visible entry as of seq).
func (m *memTable) get(userKey []byte, seq base.SeqNum) (value []byte, found bool) {
	lookupKey := base.MakeInternalKey(userKey, seq, base.InternalKeyKindMax)
	target := encodeMemTableRecord(lookupKey, nil)

	it := m.skl.NewIter()
	it.SeekGE(target)
	if !it.Valid() {
		return nil, false
	}

	gotKey, gotValue := decodeMemTableRecord(it.Key())
	if m.cmp(gotKey.UserKey, userKey) != 0 {
		return nil, false
	}
	switch gotKey.Kind() {
	case base.InternalKeyKindSet:
		return gotValue, true
	case base.InternalKeyKindDelete:
		return nil, true // "found" a tombstone: caller reports not-found
	default:
		return nil, false
	}
}

// newIter returns an iterator over packed records in ascending internal-key
// order (spec §4.6: "new_iterator() yields internal-key/value pairs").
func (m *memTable) newIter() *memTableIterator {
	it := m.skl.NewIter()
	return &memTableIterator{iter: it}
}

func (m *memTable) compareRecords(a, b []byte) int {
	ka, _ := decodeMemTableRecord(a)
	kb, _ := decodeMemTableRecord(b)
	return base.InternalCompare(m.cmp, ka, kb)
}

func encodeMemTableRecord(ikey base.InternalKey, value []byte) []byte {
	keySize := ikey.Size()
	buf := make([]byte, 0, 5+keySize+5+len(value))
	buf = base.PutUvarint32(buf, uint32(keySize))
	n := len(buf)
	buf = append(buf, make([]byte, keySize)...)
	ikey.Encode(buf[n:])
	buf = base.PutLengthPrefixedBytes(buf, value)
	return buf
}

func decodeMemTableRecord(record []byte) (base.InternalKey, []byte) {
	keyLen, n := base.Uvarint(record)
	record = record[n:]
	ikey := base.DecodeInternalKey(record[:keyLen])
	record = record[keyLen:]
	value, _, _ := base.GetLengthPrefixedBytes(record)
	return ikey, value
}

// memTableIterator walks a memTable's packed records in ascending
// internal-key order, presenting them as decoded (InternalKey, value) pairs.
type memTableIterator struct {
	iter arenaskl.Iterator
}

func (it *memTableIterator) First() { it.iter.First() }
func (it *memTableIterator) Last()  { it.iter.Last() }
func (it *memTableIterator) Next()  { it.iter.Next() }
func (it *memTableIterator) Prev()  { it.iter.Prev() }
func (it *memTableIterator) Valid() bool { return it.iter.Valid() }

func (it *memTableIterator) SeekGE(ikey base.InternalKey) {
	it.iter.SeekGE(encodeMemTableRecord(ikey, nil))
}

func (it *memTableIterator) Key() base.InternalKey {
	k, _ := decodeMemTableRecord(it.iter.Key())
	return k
}

func (it *memTableIterator) Value() []byte {
	_, v := decodeMemTableRecord(it.iter.Key())
	return v
}
