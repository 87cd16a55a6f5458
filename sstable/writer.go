// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package sstable

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
	"github.com/golang/snappy"
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/bloom"
)

// WriterOptions configures a Builder. Compression and filter policy are
// per-file choices (spec §4.8 "Builder contract").
type WriterOptions struct {
	Comparer        *base.Comparer
	BlockSize       int
	BlockRestartInterval int
	Compression     Compression
	FilterBitsPerKey int
}

// Compression names the block codec recorded in a block's trailer (spec
// §4.8 "Data block": "1-byte compression type").
type Compression int

const (
	NoCompression Compression = iota
	SnappyCompression
	ZstdCompression
)

// Builder assembles a sorted file from internal keys added in strictly
// ascending order (spec §4.8 "Builder contract": "Add(internal_key, value)
// ... Finish() ... Abandon()").
type Builder struct {
	w   io.Writer
	opts WriterOptions
	cmp base.Compare
	// indexKeyComparer builds separator/successor keys for the index block.
	// It wraps the user comparer with InternalComparer's no-op
	// Separator/Successor, since shortening an encoded internal key would
	// corrupt its sequence trailer (spec §4.5).
	indexKeyComparer *base.Comparer

	offset int64
	dataBlock  *blockWriter
	indexBlock *blockWriter

	pendingHandle    blockHandle
	havePendingIndex bool
	lastKey          []byte

	filterKeys [][]byte

	closed bool
	err    error

	numEntries int
}

// NewBuilder returns a Builder that writes a new sorted file to w.
func NewBuilder(w io.Writer, opts WriterOptions) *Builder {
	if opts.BlockSize == 0 {
		opts.BlockSize = 4 << 10
	}
	if opts.BlockRestartInterval == 0 {
		opts.BlockRestartInterval = 16
	}
	if opts.Comparer == nil {
		opts.Comparer = base.DefaultComparer
	}
	if opts.FilterBitsPerKey == 0 {
		opts.FilterBitsPerKey = 10
	}
	return &Builder{
		w:                w,
		opts:             opts,
		cmp:              opts.Comparer.Compare,
		indexKeyComparer: base.InternalComparer(opts.Comparer),
		dataBlock:        newBlockWriter(opts.BlockRestartInterval),
		indexBlock:       newBlockWriter(1), // every index entry is a restart point
	}
}

// Add appends (ikey, value) to the file being built. ikey's encoded form
// (user_key || trailer) must be strictly greater than the previously added
// key under the internal-key order.
func (b *Builder) Add(ikey base.InternalKey, value []byte) error {
	if b.closed {
		return errors.New("lsmkv: Add called after Finish/Abandon")
	}
	key := ikey.EncodeAppend(nil)
	if b.lastKey != nil && base.InternalCompare(b.cmp, base.DecodeInternalKey(b.lastKey), base.DecodeInternalKey(key)) >= 0 {
		return errors.New("lsmkv: keys added to a Builder must be in strictly increasing order")
	}

	if b.havePendingIndex {
		b.addIndexEntry(key)
	}

	b.dataBlock.add(key, value)
	b.filterKeys = append(b.filterKeys, ikey.UserKey)
	b.lastKey = append(b.lastKey[:0], key...)
	b.numEntries++

	if len(b.dataBlock.buf) >= b.opts.BlockSize {
		if err := b.flushDataBlock(); err != nil {
			return err
		}
	}
	return nil
}

// addIndexEntry writes the deferred index entry for the block that just
// closed, using the shortest separator between its last key and nextKey
// (spec §4.8 "Index block": "constructed via find_shortest_separator").
func (b *Builder) addIndexEntry(nextKey []byte) {
	sep := b.indexKeyComparer.Separator(nil, b.lastKey, nextKey)
	h := b.pendingHandle.encode(nil)
	b.indexBlock.add(sep, h)
	b.havePendingIndex = false
}

func (b *Builder) flushDataBlock() error {
	if b.dataBlock.empty() {
		return nil
	}
	handle, err := b.writeBlock(b.dataBlock.finish())
	if err != nil {
		return err
	}
	b.pendingHandle = handle
	b.havePendingIndex = true
	b.dataBlock.reset()
	return nil
}

// writeBlock compresses (if configured), appends the 5-byte trailer, and
// writes the block, returning its handle.
func (b *Builder) writeBlock(raw []byte) (blockHandle, error) {
	payload := raw
	ctype := noCompression
	switch b.opts.Compression {
	case SnappyCompression:
		compressed := snappy.Encode(nil, raw)
		if len(compressed) < len(raw) {
			payload, ctype = compressed, snappyCompressed
		}
	case ZstdCompression:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return blockHandle{}, err
		}
		compressed := enc.EncodeAll(raw, nil)
		enc.Close()
		if len(compressed) < len(raw) {
			payload, ctype = compressed, zstdCompressed
		}
	}

	trailer := make([]byte, blockTrailerLen)
	trailer[0] = byte(ctype)
	checksum := base.NewCRC(trailer[:1]).Update(payload)
	base.PutUint32(trailer[1:], checksum.Mask())

	handle := blockHandle{offset: uint64(b.offset), length: uint64(len(payload))}
	if _, err := b.w.Write(payload); err != nil {
		return blockHandle{}, err
	}
	if _, err := b.w.Write(trailer); err != nil {
		return blockHandle{}, err
	}
	b.offset += int64(len(payload) + blockTrailerLen)
	return handle, nil
}

// Finish flushes any buffered data, writes the filter, index, and
// metaindex blocks, and appends the footer (spec §4.8 "Footer").
func (b *Builder) Finish() error {
	if b.closed {
		return b.err
	}
	b.closed = true

	if err := b.flushDataBlock(); err != nil {
		b.err = err
		return err
	}
	if b.havePendingIndex {
		// Final block: no upper neighbor, so use Successor (spec §4.8: "the
		// final entry uses find_short_successor").
		sep := b.indexKeyComparer.Successor(nil, b.lastKey)
		h := b.pendingHandle.encode(nil)
		b.indexBlock.add(sep, h)
		b.havePendingIndex = false
	}

	var filterHandle blockHandle
	haveFilter := len(b.filterKeys) > 0
	if haveFilter {
		filter := bloom.CreateFilter(b.filterKeys, b.opts.FilterBitsPerKey)
		var err error
		filterHandle, err = b.writeBlock(filter)
		if err != nil {
			b.err = err
			return err
		}
	}

	metaindex := newBlockWriter(1)
	if haveFilter {
		metaindex.add([]byte("filter.rocksdb.BuiltinBloomFilter"), filterHandle.encode(nil))
	}
	metaindexHandle, err := b.writeBlock(metaindex.finish())
	if err != nil {
		b.err = err
		return err
	}

	indexHandle, err := b.writeBlock(b.indexBlock.finish())
	if err != nil {
		b.err = err
		return err
	}

	f := footer{metaindex: metaindexHandle, index: indexHandle}
	if _, err := b.w.Write(f.encode()); err != nil {
		b.err = err
		return err
	}
	return nil
}

// Abandon discards the Builder without writing a footer, leaving whatever
// bytes have already been flushed as an incomplete, unusable file (spec
// §4.8: "Abandon() discards without writing a footer").
func (b *Builder) Abandon() {
	b.closed = true
}

// EntryCount returns the number of entries added so far.
func (b *Builder) EntryCount() int { return b.numEntries }

// Size estimates the number of bytes written so far, including the
// currently buffered (not yet flushed) data block. Compaction output
// sealing compares this against max_file_size (spec §4.11).
func (b *Builder) Size() int64 {
	return b.offset + int64(len(b.dataBlock.buf))
}
