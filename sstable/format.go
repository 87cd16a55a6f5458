// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package sstable implements the sorted-file format of spec §4.8: an
// immutable, internal-key-ordered run of entries backed by prefix-compressed
// data blocks, an index block, a Bloom filter block, and a fixed footer.
package sstable

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
)

// magic is the 64-bit value every well-formed sorted file ends with (spec
// §4.8 "Footer": "a fixed 64-bit magic number 0xdb4775248b80fb57").
const magic uint64 = 0xdb4775248b80fb57

// maxHandleEncodingLength bounds a varint-encoded blockHandle: two uvarints,
// each at most 10 bytes for a 64-bit value.
const maxHandleEncodingLength = 20

// footerLength is "2 * max_handle_encoding_length + 8 = 48 bytes" (spec
// §4.8).
const footerLength = 2*maxHandleEncodingLength + 8

// compressionType tags a block's trailer with the codec used, or none.
type compressionType byte

const (
	noCompression   compressionType = 0
	snappyCompressed compressionType = 1
	zstdCompressed   compressionType = 2
)

// blockTrailerLen is "a 5-byte trailer: 1-byte compression type, then masked
// CRC-32C" (spec §4.8).
const blockTrailerLen = 5

// blockHandle locates a block within the file: a byte offset and length,
// excluding the block's own trailer.
type blockHandle struct {
	offset, length uint64
}

func (h blockHandle) encode(dst []byte) []byte {
	dst = base.PutUvarint(dst, h.offset)
	dst = base.PutUvarint(dst, h.length)
	return dst
}

func decodeBlockHandle(src []byte) (blockHandle, int, error) {
	offset, n := base.Uvarint(src)
	if n <= 0 {
		return blockHandle{}, 0, errors.New("lsmkv: corrupt block handle")
	}
	length, m := base.Uvarint(src[n:])
	if m <= 0 {
		return blockHandle{}, 0, errors.New("lsmkv: corrupt block handle")
	}
	return blockHandle{offset: offset, length: length}, n + m, nil
}

// footer is the trailing 48 bytes of every sorted file (spec §4.8
// "Footer").
type footer struct {
	metaindex blockHandle
	index     blockHandle
}

func (f footer) encode() []byte {
	buf := make([]byte, footerLength)
	n := 0
	n += copy(buf[n:], f.metaindex.encode(nil))
	// Pad the metaindex handle's slot out to maxHandleEncodingLength so the
	// index handle always starts at a fixed offset.
	n = maxHandleEncodingLength
	n += copy(buf[n:], f.index.encode(nil))
	binary.LittleEndian.PutUint64(buf[footerLength-8:], magic)
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != footerLength {
		return footer{}, errors.New("lsmkv: invalid footer length")
	}
	if binary.LittleEndian.Uint64(buf[footerLength-8:]) != magic {
		return footer{}, base.NewCorruptionError(errors.New("invalid table magic number"))
	}
	metaindex, _, err := decodeBlockHandle(buf[:maxHandleEncodingLength])
	if err != nil {
		return footer{}, base.NewCorruptionError(err)
	}
	index, _, err := decodeBlockHandle(buf[maxHandleEncodingLength:])
	if err != nil {
		return footer{}, base.NewCorruptionError(err)
	}
	return footer{metaindex: metaindex, index: index}, nil
}
