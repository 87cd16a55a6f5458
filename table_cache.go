// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/cache"
	"github.com/lsmkv/lsmkv/sstable"
	"github.com/lsmkv/lsmkv/vfs"
)

// tableCache is an LRU of opened sstable.Readers, keyed by file number
// (spec §4.8/§4.10: "a table cache of open sstable readers ... a reader
// already open when a compaction begins must remain usable by any
// in-flight iterator until that iterator is closed, even if the cache
// evicts its entry in the meantime"). It is built directly on
// internal/cache's shard-locked, refcounted LRU: a cache Handle IS that
// survival guarantee, since Release (not eviction) is what actually
// closes the underlying file.
type tableCache struct {
	cache *cache.Cache
	dbNum uint64

	mu struct {
		sync.Mutex
		fs      vfs.FS
		dirname string
		opts    sstable.ReaderOptions
	}
}

func newTableCache(c *cache.Cache, dbNum uint64, fs vfs.FS, dirname string, opts sstable.ReaderOptions) *tableCache {
	t := &tableCache{cache: c, dbNum: dbNum}
	t.mu.fs = fs
	t.mu.dirname = dirname
	t.mu.opts = opts
	return t
}

func (t *tableCache) cacheKey(fileNum base.FileNum) string {
	return fmt.Sprintf("table/%d/%d", t.dbNum, fileNum)
}

// findNode returns a cache Handle pinning an open *sstable.Reader for
// fileNum, opening and inserting one on a miss. The caller must Release
// the handle once done with the reader.
func (t *tableCache) findNode(fileNum base.FileNum) (*cache.Handle, error) {
	key := t.cacheKey(fileNum)
	if h := t.cache.Lookup(key); h != nil {
		return h, nil
	}

	t.mu.Lock()
	fs, dirname, opts := t.mu.fs, t.mu.dirname, t.mu.opts
	t.mu.Unlock()

	filename := base.MakeFilename(dirname, base.FileTypeTable, fileNum)
	f, err := fs.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "lsmkv: opening table %s", filename)
	}
	size, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := sstable.NewReader(fileReaderSource{f, size.Size()}, opts)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "lsmkv: opening table %s", filename)
	}

	deleter := func(string, interface{}) {
		_ = f.Close()
	}
	return t.cache.Insert(key, r, 1, deleter), nil
}

// withReader runs fn with the sstable.Reader for fileNum, holding the
// cache handle for the duration of the call.
func (t *tableCache) withReader(fileNum base.FileNum, fn func(*sstable.Reader) error) error {
	h, err := t.findNode(fileNum)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h.Value().(*sstable.Reader))
}

// evict drops fileNum's cached reader, e.g. once a compaction has
// rewritten it away (spec §4.10: "Evict(fileNumber)").
func (t *tableCache) evict(fileNum base.FileNum) {
	t.cache.Erase(t.cacheKey(fileNum))
}

// fileReaderSource adapts a vfs.File plus its known size into the
// io.ReaderAt-based source sstable.Reader expects.
type fileReaderSource struct {
	vfs.File
	size int64
}

func (f fileReaderSource) Size() (int64, error) { return f.size, nil }
