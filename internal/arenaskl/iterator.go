/*
 * Copyright 2017 Dgraph Labs, Inc. and Contributors
 * Modifications copyright (C) 2017 Andy Kimball and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package arenaskl

// Iterator walks a Skiplist's keys in ascending order (spec §4.4:
// "seek/seek_first/seek_last/next/prev/valid/key"). The zero Iterator is not
// usable; obtain one from Skiplist.NewIter. It is safe to copy an Iterator
// by value.
type Iterator struct {
	list *Skiplist
	nd   *node
}

// NewIter returns an Iterator positioned before the first entry.
func (s *Skiplist) NewIter() Iterator {
	return Iterator{list: s, nd: s.head}
}

// Valid reports whether the iterator is positioned at an entry (as opposed
// to the head/tail sentinel).
func (it *Iterator) Valid() bool {
	return it.nd != nil && it.nd != it.list.head && it.nd != it.list.tail
}

// Key returns the key at the iterator's current position. Only valid when
// Valid() is true; the returned slice aliases the arena and must not be
// retained past the skiplist's lifetime.
func (it *Iterator) Key() []byte {
	return it.nd.getKey(it.list.arena)
}

// Next advances to the next-larger key.
func (it *Iterator) Next() {
	it.nd = it.list.getNext(it.nd, 0)
}

// Prev moves to the next-smaller key.
func (it *Iterator) Prev() {
	it.nd = it.list.getPrev(it.nd, 0)
}

// First positions the iterator at the smallest key.
func (it *Iterator) First() {
	it.nd = it.list.getNext(it.list.head, 0)
}

// Last positions the iterator at the largest key.
func (it *Iterator) Last() {
	it.nd = it.list.getPrev(it.list.tail, 0)
}

// SeekGE positions the iterator at the smallest key >= target.
func (it *Iterator) SeekGE(target []byte) {
	_, next, _ := it.list.findSpliceForLevel(target, 0, it.list.head)
	it.nd = next
}

// SeekLE positions the iterator at the largest key <= target.
func (it *Iterator) SeekLE(target []byte) {
	prev, next, found := it.list.findSpliceForLevel(target, 0, it.list.head)
	if found {
		it.nd = next
		return
	}
	it.nd = prev
	if it.nd == it.list.head {
		it.nd = it.list.tail
	}
}
