// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/cache"
	"github.com/lsmkv/lsmkv/sstable"
)

// internalIterator is the shape shared by memTableIterator and
// sstable.Iterator: enough for mergingIter to walk any of them without
// caring which kind of source it is (spec §4.12 "new_iterator": "a
// forward merging iterator over [mem.iter, imm.iter, *version's
// iterators]").
type internalIterator interface {
	First()
	Next()
	SeekGE(base.InternalKey)
	Valid() bool
	Key() base.InternalKey
	Value() []byte
}

// mergingIter walks n internalIterators as one, in ascending internal-key
// order. Ties (equal user key) are broken by the trailer ordering each
// source already provides, since InternalCompare sorts a newer trailer
// before an older one; mergingIter only needs to pick, at each step, the
// minimum among its positioned sources. The source list is short (a
// memtable or two plus one iterator per on-disk table touched by the
// scan), so a linear scan per step is simpler than a heap and plenty fast.
type mergingIter struct {
	ucmp  base.Compare
	iters []internalIterator
	key   base.InternalKey
	value []byte
	valid bool
}

func newMergingIter(ucmp base.Compare, iters ...internalIterator) *mergingIter {
	return &mergingIter{ucmp: ucmp, iters: iters}
}

func (m *mergingIter) First() {
	for _, it := range m.iters {
		it.First()
	}
	m.findSmallest()
}

// SeekGE positions every source at its first entry >= target, then
// recomputes the minimum.
func (m *mergingIter) SeekGE(target base.InternalKey) {
	for _, it := range m.iters {
		it.SeekGE(target)
	}
	m.findSmallest()
}

func (m *mergingIter) findSmallest() {
	m.valid = false
	for _, it := range m.iters {
		if !it.Valid() {
			continue
		}
		if !m.valid || base.InternalCompare(m.ucmp, it.Key(), m.key) < 0 {
			m.key, m.value, m.valid = it.Key(), it.Value(), true
		}
	}
}

// Next advances every source currently positioned at m.key, then
// recomputes the new minimum.
func (m *mergingIter) Next() {
	cur := m.key
	for _, it := range m.iters {
		if it.Valid() && base.InternalCompare(m.ucmp, it.Key(), cur) == 0 {
			it.Next()
		}
	}
	m.findSmallest()
}

func (m *mergingIter) Valid() bool            { return m.valid }
func (m *mergingIter) Key() base.InternalKey { return m.key }
func (m *mergingIter) Value() []byte          { return m.value }

// sstableIter adapts *sstable.Iterator to internalIterator (its First,
// Next, SeekGE, Valid, Key and Value already match); Iterator.Error reads
// its Error.
type sstableIter struct{ *sstable.Iterator }

// Iterator is the user-facing cursor of spec §4.12 "new_iterator": a
// merged, newest-visible-per-user-key view over the memtables and sorted
// files as of its construction time. It never observes later writes,
// flushes, or compactions (spec §4.12 "Iterator stability").
type Iterator struct {
	db          *DB
	ucmp        base.Compare
	merge       *mergingIter
	snapshotSeq base.SeqNum

	key   []byte
	value []byte
	valid bool
	err   error

	mem, imm *memTable
	v        *version
	handles  []*cache.Handle
	closed   bool
}

// newIterator snapshots (mem, imm, current version) under d.mu, refs each,
// and builds the merging iterator over them (spec §4.12 "new_iterator").
// snapshotSeq is the sequence number the result is bound to.
func (d *DB) newIterator(snapshotSeq base.SeqNum) *Iterator {
	d.mu.Lock()
	mem, imm, v := d.mu.mem, d.mu.imm, d.mu.versions.currentVersion()
	mem.ref()
	if imm != nil {
		imm.ref()
	}
	v.ref()
	tc := d.tableCache
	d.mu.Unlock()

	it := &Iterator{
		db:          d,
		ucmp:        d.opts.Comparer.Compare,
		snapshotSeq: snapshotSeq,
		mem:         mem,
		imm:         imm,
		v:           v,
	}

	var iters []internalIterator
	iters = append(iters, mem.newIter())
	if imm != nil {
		iters = append(iters, imm.newIter())
	}
	for _, files := range v.files {
		for _, f := range files {
			h, err := tc.findNode(f.fileNum)
			if err != nil {
				it.err = err
				continue
			}
			r := h.Value().(*sstable.Reader)
			sit, err := r.NewIter()
			if err != nil {
				h.Release()
				it.err = err
				continue
			}
			it.handles = append(it.handles, h)
			iters = append(iters, &sstableIter{sit})
		}
	}
	it.merge = newMergingIter(it.ucmp, iters...)
	return it
}

// advanceToVisible positions the Iterator at the next merged entry that is
// visible as of snapshotSeq and not a tombstone, per spec §4.12's
// wrapper: "walks entries with equal user key skipping older sequences,
// stopping at the newest visible: if it is a value, expose it; if it is a
// deletion, skip to the next user key".
func (it *Iterator) advanceToVisible() {
	for it.merge.Valid() {
		k := it.merge.Key()
		if k.SeqNum() > it.snapshotSeq {
			it.merge.Next()
			continue
		}
		if k.Kind() == base.InternalKeyKindDelete {
			ukey := append([]byte(nil), k.UserKey...)
			for it.merge.Valid() && it.ucmp(it.merge.Key().UserKey, ukey) == 0 {
				it.merge.Next()
			}
			continue
		}
		it.key = append(it.key[:0], k.UserKey...)
		it.value = append(it.value[:0], it.merge.Value()...)
		it.valid = true
		return
	}
	it.valid = false
}

// First positions the Iterator at the smallest visible key.
func (it *Iterator) First() {
	it.merge.First()
	it.advanceToVisible()
}

// SeekGE positions the Iterator at the smallest visible key >= key (spec
// §7 supplemented iterator seeking, grounded in the teacher's db_iter.go
// SeekGE). Every source iterator supports SeekGE directly, so this costs
// one seek per source rather than a scan from the beginning.
func (it *Iterator) SeekGE(key []byte) {
	target := base.MakeInternalKey(key, base.SeqNumMax, base.InternalKeyKindMax)
	it.merge.SeekGE(target)
	it.advanceToVisible()
}

// SeekLT positions the Iterator at the largest visible key < key (spec §7
// supplemented iterator seeking). This engine's block and memtable
// iterators are forward-only, so unlike SeekGE this walks from the
// beginning, remembering the last visible entry short of key; callers
// doing repeated backward seeks over a large keyspace should prefer a
// forward scan instead.
func (it *Iterator) SeekLT(key []byte) {
	it.First()
	var lastKey, lastValue []byte
	found := false
	for it.valid && it.ucmp(it.key, key) < 0 {
		found = true
		lastKey = append(lastKey[:0], it.key...)
		lastValue = append(lastValue[:0], it.value...)
		it.Next()
	}
	it.valid = found
	if found {
		it.key = lastKey
		it.value = lastValue
	}
}

// Next advances past the current user key's remaining (older) entries and
// positions at the next visible key.
func (it *Iterator) Next() {
	if !it.valid {
		return
	}
	cur := it.key
	for it.merge.Valid() && it.ucmp(it.merge.Key().UserKey, cur) == 0 {
		it.merge.Next()
	}
	it.advanceToVisible()
}

// Valid reports whether the Iterator is positioned at an entry.
func (it *Iterator) Valid() bool { return it.valid }

// Key returns the current entry's user key. The slice is invalidated by
// the next call to Next or Close.
func (it *Iterator) Key() []byte { return it.key }

// Value returns the current entry's value. The slice is invalidated by
// the next call to Next or Close.
func (it *Iterator) Value() []byte { return it.value }

// Error returns the first error met while building or positioning the
// Iterator: a sorted file that could not be opened, or a failed block read
// in one of the sorted-file sources.
func (it *Iterator) Error() error {
	if it.err == nil {
		for _, src := range it.merge.iters {
			if s, ok := src.(*sstableIter); ok && s.Error() != nil {
				it.err = s.Error()
				break
			}
		}
	}
	return it.err
}

// Close releases the Iterator's pins on the memtables and version it
// snapshotted. It must be called exactly once.
func (it *Iterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	it.db.mu.Lock()
	defer it.db.mu.Unlock()
	it.mem.unref()
	if it.imm != nil {
		it.imm.unref()
	}
	it.v.unref()
	for _, h := range it.handles {
		h.Release()
	}
	return it.err
}
