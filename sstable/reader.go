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

// ReaderOptions mirrors the subset of WriterOptions a Reader needs to
// interpret a file: the comparer it was built with and whether to
// recompute block checksums on every read (spec §4.8 "verify_checksums").
type ReaderOptions struct {
	Comparer        *base.Comparer
	VerifyChecksums bool
}

// readerSource is the random-access file a Reader opens. *os.File and
// vfs.File both satisfy it.
type readerSource interface {
	io.ReaderAt
	Size() (int64, error)
}

// Reader opens a sorted file, holding its index and filter blocks
// resident in memory (spec §4.8 "Reader holds the index block and, if
// present, the filter block resident in memory").
type Reader struct {
	src  readerSource
	opts ReaderOptions
	cmp  base.Compare

	index  []byte
	filter []byte
}

// NewReader opens and validates the footer, index, and filter blocks of
// the sorted file backed by src.
func NewReader(src readerSource, opts ReaderOptions) (*Reader, error) {
	if opts.Comparer == nil {
		opts.Comparer = base.DefaultComparer
	}
	size, err := src.Size()
	if err != nil {
		return nil, err
	}
	if size < footerLength {
		return nil, base.NewCorruptionError(errors.New("file too small to contain a footer"))
	}

	footerBuf := make([]byte, footerLength)
	if _, err := src.ReadAt(footerBuf, size-footerLength); err != nil {
		return nil, err
	}
	f, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	r := &Reader{src: src, opts: opts, cmp: opts.Comparer.Compare}

	r.index, err = r.readBlock(f.index)
	if err != nil {
		return nil, errors.Wrap(err, "lsmkv: reading index block")
	}

	metaindex, err := r.readBlock(f.metaindex)
	if err != nil {
		return nil, errors.Wrap(err, "lsmkv: reading metaindex block")
	}
	mi, err := newBlockIter(metaindex)
	if err != nil {
		return nil, err
	}
	for mi.First(); mi.Valid(); mi.Next() {
		if string(mi.Key()) == "filter.rocksdb.BuiltinBloomFilter" {
			fh, _, err := decodeBlockHandle(mi.Value())
			if err != nil {
				return nil, err
			}
			r.filter, err = r.readBlock(fh)
			if err != nil {
				return nil, errors.Wrap(err, "lsmkv: reading filter block")
			}
		}
	}

	return r, nil
}

// readBlock reads, checksum-verifies, and decompresses the block at h.
func (r *Reader) readBlock(h blockHandle) ([]byte, error) {
	buf := make([]byte, h.length+blockTrailerLen)
	if _, err := r.src.ReadAt(buf, int64(h.offset)); err != nil {
		return nil, err
	}
	payload := buf[:h.length]
	trailer := buf[h.length:]

	if r.opts.VerifyChecksums {
		want := base.Unmask(base.DecodeUint32(trailer[1:]))
		got := base.NewCRC(trailer[:1]).Update(payload)
		if got != want {
			return nil, base.NewCorruptionError(errors.New("block checksum mismatch"))
		}
	}

	switch compressionType(trailer[0]) {
	case noCompression:
		return payload, nil
	case snappyCompressed:
		n, err := snappy.DecodedLen(payload)
		if err != nil {
			return nil, base.NewCorruptionError(err)
		}
		decoded := make([]byte, n)
		decoded, err = snappy.Decode(decoded, payload)
		if err != nil {
			return nil, base.NewCorruptionError(err)
		}
		return decoded, nil
	case zstdCompressed:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		decoded, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, base.NewCorruptionError(err)
		}
		return decoded, nil
	default:
		return nil, base.NewCorruptionError(errors.New("unknown block compression type"))
	}
}

// MayContain reports whether userKey could be present in the file,
// consulting the resident Bloom filter when one exists (spec §4.8/§4.2
// "Reader.InternalGet consults the filter before touching a data block").
func (r *Reader) MayContain(userKey []byte) bool {
	if r.filter == nil {
		return true
	}
	return bloom.MayMatch(r.filter, userKey)
}

// InternalGet looks up the first entry with the given user key whose
// sequence number is visible, invoking saver with the matched internal
// key and value. It returns (false, nil) on a definitive miss.
func (r *Reader) InternalGet(userKey []byte, seq base.SeqNum, saver func(ikey base.InternalKey, value []byte)) (bool, error) {
	if !r.MayContain(userKey) {
		return false, nil
	}

	target := base.MakeInternalKey(userKey, seq, base.InternalKeyKindMax).EncodeAppend(nil)

	ii, err := newBlockIter(r.index)
	if err != nil {
		return false, err
	}
	icmp := func(a, b []byte) int { return base.InternalCompare(r.cmp, base.DecodeInternalKey(a), base.DecodeInternalKey(b)) }
	ii.SeekGE(icmp, target)
	if !ii.Valid() {
		return false, nil
	}
	handle, _, err := decodeBlockHandle(ii.Value())
	if err != nil {
		return false, err
	}
	data, err := r.readBlock(handle)
	if err != nil {
		return false, err
	}
	di, err := newBlockIter(data)
	if err != nil {
		return false, err
	}
	di.SeekGE(icmp, target)
	if !di.Valid() {
		return false, nil
	}
	gotKey := base.DecodeInternalKey(di.Key())
	if !r.opts.Comparer.Equal(gotKey.UserKey, userKey) {
		return false, nil
	}
	saver(gotKey, di.Value())
	return true, nil
}

// NewIter returns a two-level iterator over every entry in the file in
// ascending internal-key order (spec §4.8: used by compaction and range
// scans).
func (r *Reader) NewIter() (*Iterator, error) {
	ii, err := newBlockIter(r.index)
	if err != nil {
		return nil, err
	}
	return &Iterator{r: r, topLevel: ii}, nil
}

// Iterator is the two-level (index, then data) iterator of spec §4.8.
type Iterator struct {
	r        *Reader
	topLevel *blockIter
	data     *blockIter
	err      error
}

func (it *Iterator) loadDataBlock() bool {
	if !it.topLevel.Valid() {
		it.data = nil
		return false
	}
	handle, _, err := decodeBlockHandle(it.topLevel.Value())
	if err != nil {
		it.err = err
		return false
	}
	block, err := it.r.readBlock(handle)
	if err != nil {
		it.err = err
		return false
	}
	it.data, err = newBlockIter(block)
	if err != nil {
		it.err = err
		return false
	}
	return true
}

func (it *Iterator) First() {
	it.topLevel.First()
	if it.loadDataBlock() {
		it.data.First()
		if !it.data.Valid() {
			it.nextBlock()
		}
	}
}

func (it *Iterator) nextBlock() {
	for {
		it.topLevel.Next()
		if !it.loadDataBlock() {
			return
		}
		it.data.First()
		if it.data.Valid() {
			return
		}
	}
}

func (it *Iterator) Next() {
	if it.data == nil {
		return
	}
	it.data.Next()
	if !it.data.Valid() {
		it.nextBlock()
	}
}

func (it *Iterator) SeekGE(target base.InternalKey) {
	enc := target.EncodeAppend(nil)
	icmp := func(a, b []byte) int { return base.InternalCompare(it.r.cmp, base.DecodeInternalKey(a), base.DecodeInternalKey(b)) }
	it.topLevel.SeekGE(icmp, enc)
	if !it.loadDataBlock() {
		return
	}
	it.data.SeekGE(icmp, enc)
	if !it.data.Valid() {
		it.nextBlock()
	}
}

func (it *Iterator) Valid() bool { return it.data != nil && it.data.Valid() }
func (it *Iterator) Error() error { return it.err }

func (it *Iterator) Key() base.InternalKey {
	return base.DecodeInternalKey(it.data.Key())
}

func (it *Iterator) Value() []byte { return it.data.Value() }
