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

// Package arenaskl implements the concurrent skiplist of spec §4.4: a
// probabilistic ordered structure over opaque byte-string keys, backed by a
// fixed-size bump-allocated arena so that nodes are never individually freed
// and readers never race with a deallocation.
package arenaskl

import (
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// ErrArenaFull is returned by Alloc when the arena has no room left.
var ErrArenaFull = errors.New("lsmkv: arena full")

const align4 = 3

// Arena is a lock-free bump allocator. Nothing allocated from an Arena is
// ever freed individually; the whole buffer is reclaimed at once when the
// owning memtable is unreferenced.
type Arena struct {
	n   uint32
	buf []byte
}

// NewArena allocates a new arena of the given size.
func NewArena(size uint32) *Arena {
	// Position 0 is never handed out so that offset 0 can serve as a nil
	// pointer.
	return &Arena{n: 1, buf: make([]byte, size)}
}

// Size returns the number of bytes allocated so far (including padding).
func (a *Arena) Size() uint32 {
	s := atomic.LoadUint32(&a.n)
	if s > uint32(len(a.buf)) {
		return uint32(len(a.buf))
	}
	return s
}

// Capacity returns the arena's total size.
func (a *Arena) Capacity() uint32 {
	return uint32(len(a.buf))
}

// alloc reserves size bytes aligned to align+1 and returns their offset.
func (a *Arena) alloc(size, align uint32) (uint32, error) {
	padded := size + align

	newSize := atomic.AddUint32(&a.n, padded)
	if int(newSize) > len(a.buf) {
		return 0, ErrArenaFull
	}

	offset := (newSize - padded + align) &^ align
	return offset, nil
}

func (a *Arena) getBytes(offset, size uint32) []byte {
	if offset == 0 {
		return nil
	}
	return a.buf[offset : offset+size : offset+size]
}

func (a *Arena) getPointer(offset uint32) unsafe.Pointer {
	if offset == 0 {
		return nil
	}
	return unsafe.Pointer(&a.buf[offset])
}

func (a *Arena) getPointerOffset(ptr unsafe.Pointer) uint32 {
	if ptr == nil {
		return 0
	}
	return uint32(uintptr(ptr) - uintptr(unsafe.Pointer(&a.buf[0])))
}
