// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"io"
	"sync"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/record"
	"github.com/lsmkv/lsmkv/vfs"
)

// DB is an embedded, persistent, ordered key-value store backed by an
// in-memory memtable and a multi-level tree of on-disk sorted files (spec
// §1 Overview). The zero value is not usable; construct one with Open.
type DB struct {
	dirname string
	opts    *Options
	ucmp    base.Compare

	dataDir  vfs.File
	fileLock io.Closer

	tableCache *tableCache

	closeWG sync.WaitGroup

	mu struct {
		sync.Mutex

		// mem is the active memtable every Put/Delete applies to. imm is the
		// previous mem, immutable and awaiting flush, or nil (spec §4.6 "one
		// mutable and zero-or-one immutable memtable").
		mem *memTable
		imm *memTable

		versions *versionSet

		log struct {
			number base.FileNum
			file   vfs.File
			writer *record.Writer
		}

		// writers is the group-commit FIFO of spec §4.12: the head is the
		// leader, everyone else waits to be promoted or to be told they're done.
		writers writerQueue

		// pendingOutputs holds the file numbers of tables currently being
		// written by a flush or compaction, kept alive against
		// deleteObsoleteFiles even though they aren't yet in any version (spec
		// §4.10 "delete_obsolete_files").
		pendingOutputs map[base.FileNum]struct{}

		// bgErr is set the first time a WAL write, flush, or compaction fails
		// durably; once set the engine is read-only (spec §7 "the engine
		// becomes read-only").
		bgErr error

		shuttingDown bool
		closed       bool

		// Lifetime counters surfaced by Metrics (spec §6 "Metrics").
		flushCount              int64
		compactionCount         int64
		compactionBytesIn       uint64
		compactionBytesWritten  uint64

		// bgCond is waited on by make_room_for_write (stalled on L0 growth or
		// an already-pending imm) and by the background worker (idle, nothing
		// to flush or compact). Broadcast whenever either condition might have
		// changed.
		bgCond sync.Cond
	}
}

// sync reports whether opts requests a durable write, treating a nil
// *WriteOptions as the default (no forced sync).
func (opts *WriteOptions) sync() bool {
	return opts != nil && opts.Sync
}

// Put sets the value for the given key (spec §4.12 "put"), persisting it
// through a single engine mutex and the group-commit pipeline before
// returning.
func (d *DB) Put(key, value []byte, opts *WriteOptions) error {
	if len(key) == 0 {
		return base.ErrInvalidArgument
	}
	return d.commitWrite(base.InternalKeyKindSet, key, value, opts.sync())
}

// Delete removes the value for the given key, if any, by appending a
// tombstone (spec §4.12 "delete").
func (d *DB) Delete(key []byte, opts *WriteOptions) error {
	if len(key) == 0 {
		return base.ErrInvalidArgument
	}
	return d.commitWrite(base.InternalKeyKindDelete, key, nil, opts.sync())
}

// Get returns the value for the given key, or ErrNotFound (spec §4.12
// "get"). The snapshot is the memtables and version current at the moment
// Get is called, released again before it returns.
func (d *DB) Get(key []byte) ([]byte, error) {
	d.mu.Lock()
	mem, imm, v := d.mu.mem, d.mu.imm, d.mu.versions.currentVersion()
	mem.ref()
	if imm != nil {
		imm.ref()
	}
	v.ref()
	seq := d.mu.versions.lastSequence
	tc := d.tableCache
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		mem.unref()
		if imm != nil {
			imm.unref()
		}
		v.unref()
		d.mu.Unlock()
	}()

	if value, found := mem.get(key, seq); found {
		if value == nil {
			return nil, base.ErrNotFound
		}
		return value, nil
	}
	if imm != nil {
		if value, found := imm.get(key, seq); found {
			if value == nil {
				return nil, base.ErrNotFound
			}
			return value, nil
		}
	}

	ikey := base.MakeInternalKey(key, seq, base.InternalKeyKindMax)
	value, found, err := v.get(ikey, tc, d.ucmp)
	if err != nil {
		return nil, err
	}
	if !found || value == nil {
		return nil, base.ErrNotFound
	}
	return value, nil
}

// NewIter returns an Iterator over the database's state as of the moment
// NewIter is called (spec §4.12 "new_iterator"). The caller must Close it.
func (d *DB) NewIter() *Iterator {
	d.mu.Lock()
	seq := d.mu.versions.lastSequence
	d.mu.Unlock()
	return d.newIterator(seq)
}

// Close shuts down the background worker and releases the engine's
// resources (spec §5 "cancellation": "shutting_down set, background
// worker woken/joined"). No further calls may be made on d once Close
// returns.
func (d *DB) Close() error {
	d.mu.Lock()
	if d.mu.closed {
		d.mu.Unlock()
		return base.ErrClosed
	}
	d.mu.closed = true
	d.mu.shuttingDown = true
	d.mu.bgCond.Broadcast()
	d.mu.Unlock()

	d.closeWG.Wait()

	d.mu.Lock()
	err := d.mu.versions.close()
	if d.mu.log.file != nil {
		if closeErr := d.mu.log.file.Close(); err == nil {
			err = closeErr
		}
	}
	d.mu.Unlock()

	if d.dataDir != nil {
		if closeErr := d.dataDir.Close(); err == nil {
			err = closeErr
		}
	}
	if d.fileLock != nil {
		if closeErr := d.fileLock.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
