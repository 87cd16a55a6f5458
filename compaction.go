// Copyright 2013 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/cache"
	"github.com/lsmkv/lsmkv/sstable"
	"github.com/lsmkv/lsmkv/vfs"
)

// backgroundWorker is the engine's single background thread (spec §5: "a
// single background thread performs flush and compaction work"). It holds
// d.mu for the whole loop except during flush/compaction I/O, and exits
// once shuttingDown is observed (spec §5 "cancellation").
func (d *DB) backgroundWorker() {
	defer d.closeWG.Done()

	d.mu.Lock()
	defer d.mu.Unlock()
	for {
		if d.mu.shuttingDown {
			return
		}
		if d.mu.bgErr != nil {
			d.mu.bgCond.Wait()
			continue
		}
		if d.mu.imm != nil {
			d.flushMemTable()
			continue
		}
		if c := pickCompaction(d.mu.versions); c != nil {
			d.runCompaction(c)
			continue
		}
		d.mu.bgCond.Wait()
	}
}

// flushMemTable writes d.mu.imm to a new level-0 sorted file and journals
// the edit (spec §4.11 "flush"). d.mu is held on entry and is dropped
// during the file build.
func (d *DB) flushMemTable() {
	imm := d.mu.imm
	fileNum := d.mu.versions.nextFileNum()
	d.mu.pendingOutputs[fileNum] = struct{}{}
	logNum := d.mu.log.number
	d.mu.Unlock()

	meta, err := d.buildTableFromMemTable(fileNum, imm)

	d.mu.Lock()
	delete(d.mu.pendingOutputs, fileNum)
	if err != nil {
		// The sorted-file build failed: imm stays in place and a background
		// error is set, so the engine is read-only until reopened (spec §7
		// "flush failures are fatal-until-reopen").
		d.mu.bgErr = err
		if d.opts.EventListener.FlushEnd != nil {
			d.opts.EventListener.FlushEnd(FlushInfo{Err: err})
		}
		return
	}

	ve := &versionEdit{
		logNumber: logNum,
		newFiles:  []newFileEntry{{level: 0, meta: meta}},
	}
	if err := d.mu.versions.logAndApply(ve); err != nil {
		d.mu.bgErr = err
		if d.opts.EventListener.FlushEnd != nil {
			d.opts.EventListener.FlushEnd(FlushInfo{Err: err})
		}
		return
	}

	d.mu.imm.unref()
	d.mu.imm = nil
	d.mu.flushCount++
	d.deleteObsoleteFilesLocked()
	if d.opts.EventListener.FlushEnd != nil {
		d.opts.EventListener.FlushEnd(FlushInfo{Output: fileNum})
	}
	d.mu.bgCond.Broadcast()
}

// buildTableFromMemTable writes every entry of mem to a new sorted file
// named fileNum, returning its metadata. It does not acquire d.mu:
// flushMemTable calls it with d.mu dropped, Open's log replay with d.mu held.
func (d *DB) buildTableFromMemTable(fileNum base.FileNum, mem *memTable) (fileMetadata, error) {
	filename := base.MakeFilename(d.dirname, base.FileTypeTable, fileNum)
	f, err := d.opts.FS.Create(filename)
	if err != nil {
		return fileMetadata{}, err
	}

	w := sstable.NewBuilder(f, d.writerOptions())
	it := mem.newIter()
	var smallest, largest base.InternalKey
	first := true
	for it.First(); it.Valid(); it.Next() {
		k := it.Key()
		if err := w.Add(k, it.Value()); err != nil {
			w.Abandon()
			f.Close()
			d.opts.FS.Remove(filename)
			return fileMetadata{}, err
		}
		if first {
			smallest = k.Clone()
			first = false
		}
		largest = k.Clone()
	}
	if err := w.Finish(); err != nil {
		f.Close()
		d.opts.FS.Remove(filename)
		return fileMetadata{}, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fileMetadata{}, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return fileMetadata{}, err
	}
	size := uint64(stat.Size())
	if err := f.Close(); err != nil {
		return fileMetadata{}, err
	}
	return fileMetadata{fileNum: fileNum, size: size, smallest: smallest, largest: largest}, nil
}

// writerOptions translates Options into the sstable.Builder's own option
// struct (spec §4.8 "Builder contract").
func (d *DB) writerOptions() sstable.WriterOptions {
	return sstable.WriterOptions{
		Comparer:             d.opts.Comparer,
		BlockSize:            d.opts.BlockSize,
		BlockRestartInterval: d.opts.BlockRestartInterval,
		Compression:          sstable.Compression(d.opts.Compression),
		FilterBitsPerKey:     d.opts.BloomBitsPerKey,
	}
}

// runCompaction executes c, either as a trivial move (spec §4.11
// "is_trivial_move") or as a full merge of c.inputs[0] and c.inputs[1]
// into one or more level+1 files (spec §4.12 "do_compaction_work"). d.mu
// is held on entry and is dropped for the bulk of a non-trivial merge.
func (d *DB) runCompaction(c *compaction) {
	if c.isTrivialMove() {
		meta := c.inputs[0][0]
		ve := &versionEdit{
			deletedFiles: map[deletedFileEntry]bool{
				{level: c.level, fileNum: meta.fileNum}: true,
			},
			newFiles: []newFileEntry{{level: c.level + 1, meta: meta}},
		}
		if err := d.mu.versions.logAndApply(ve); err != nil {
			d.mu.bgErr = err
			if d.opts.EventListener.CompactionEnd != nil {
				d.opts.EventListener.CompactionEnd(CompactionInfo{Level: c.level, Output: c.level + 1, Err: err})
			}
			return
		}
		d.mu.compactionCount++
		if d.opts.EventListener.CompactionEnd != nil {
			d.opts.EventListener.CompactionEnd(CompactionInfo{Level: c.level, Output: c.level + 1})
		}
		d.mu.bgCond.Broadcast()
		return
	}

	smallestSnapshot := d.mu.versions.lastSequence
	tc := d.tableCache
	for _, f := range c.inputs[0] {
		d.mu.compactionBytesIn += f.size
	}
	for _, f := range c.inputs[1] {
		d.mu.compactionBytesIn += f.size
	}

	var pendingOutputs []base.FileNum
	d.mu.Unlock()
	ve, err := d.doCompactionWork(c, smallestSnapshot, tc, &pendingOutputs)
	d.mu.Lock()

	for _, fileNum := range pendingOutputs {
		delete(d.mu.pendingOutputs, fileNum)
	}
	if err != nil {
		// A failed compaction discards its in-progress outputs; they were
		// never referenced by any versionEdit, so leaving them unlinked on
		// disk is safe (spec §7 "compaction failures are ... safely
		// discardable").
		d.mu.bgErr = err
		if d.opts.EventListener.CompactionEnd != nil {
			d.opts.EventListener.CompactionEnd(CompactionInfo{Level: c.level, Output: c.level + 1, Err: err})
		}
		return
	}
	if err := d.mu.versions.logAndApply(ve); err != nil {
		d.mu.bgErr = err
		if d.opts.EventListener.CompactionEnd != nil {
			d.opts.EventListener.CompactionEnd(CompactionInfo{Level: c.level, Output: c.level + 1, Err: err})
		}
		return
	}
	d.mu.compactionCount++
	for _, nf := range ve.newFiles {
		d.mu.compactionBytesWritten += nf.meta.size
	}
	d.cleanupCompaction(c)
	d.deleteObsoleteFilesLocked()
	if d.opts.EventListener.CompactionEnd != nil {
		d.opts.EventListener.CompactionEnd(CompactionInfo{Level: c.level, Output: c.level + 1})
	}
	d.mu.bgCond.Broadcast()
}

// doCompactionWork merges c.inputs[0] and c.inputs[1] in internal-key
// order, dropping entries obsoleted by smallestSnapshot or canceled
// tombstones, and writes one or more level+1 sorted files (spec §4.12
// "do_compaction_work"). d.mu must NOT be held, except briefly to
// allocate each output file's number.
func (d *DB) doCompactionWork(
	c *compaction, smallestSnapshot base.SeqNum, tc *tableCache, pendingOutputs *[]base.FileNum,
) (*versionEdit, error) {
	iter, handles, err := d.compactionIter(tc, c)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, h := range handles {
			h.Release()
		}
	}()

	ve := &versionEdit{deletedFiles: map[deletedFileEntry]bool{}}
	for i := 0; i < 2; i++ {
		for _, f := range c.inputs[i] {
			ve.deletedFiles[deletedFileEntry{level: c.level + i, fileNum: f.fileNum}] = true
		}
	}

	var (
		fileNum           base.FileNum
		filename          string
		file              vfs.File
		w                 *sstable.Builder
		smallest, largest base.InternalKey
	)

	finishOutput := func() error {
		if w == nil {
			return nil
		}
		if err := w.Finish(); err != nil {
			return err
		}
		if err := file.Sync(); err != nil {
			return err
		}
		stat, err := file.Stat()
		if err != nil {
			return err
		}
		if err := file.Close(); err != nil {
			return err
		}
		ve.newFiles = append(ve.newFiles, newFileEntry{
			level: c.level + 1,
			meta:  fileMetadata{fileNum: fileNum, size: uint64(stat.Size()), smallest: smallest, largest: largest},
		})
		w = nil
		return nil
	}

	var hasCurrentUkey bool
	var currentUkey []byte
	lastSeqNumForKey := base.SeqNumMax

	for iter.First(); iter.Valid(); iter.Next() {
		ikey := iter.Key()
		ukey := ikey.UserKey

		if !hasCurrentUkey || d.ucmp(currentUkey, ukey) != 0 {
			currentUkey = append(currentUkey[:0], ukey...)
			hasCurrentUkey = true
			lastSeqNumForKey = base.SeqNumMax
		}

		drop := false
		switch {
		case lastSeqNumForKey <= smallestSnapshot:
			// An earlier (newer-sequence) occurrence of this user key already
			// survived past smallestSnapshot, so no live reader can still
			// observe this older one (spec §4.12: "drop if
			// last_sequence_for_key <= smallest_snapshot").
			drop = true
		case ikey.Kind() == base.InternalKeyKindDelete &&
			ikey.SeqNum() <= smallestSnapshot &&
			c.isBaseLevelForKey(d.ucmp, ukey) &&
			d.outputLevelMayNotContain(c.inputs[1], ukey):
			drop = true
		}
		lastSeqNumForKey = ikey.SeqNum()
		if drop {
			continue
		}

		if w == nil {
			d.mu.Lock()
			fileNum = d.mu.versions.nextFileNum()
			d.mu.pendingOutputs[fileNum] = struct{}{}
			*pendingOutputs = append(*pendingOutputs, fileNum)
			d.mu.Unlock()

			filename = base.MakeFilename(d.dirname, base.FileTypeTable, fileNum)
			file, err = d.opts.FS.Create(filename)
			if err != nil {
				return nil, err
			}
			w = sstable.NewBuilder(file, d.writerOptions())
			smallest = ikey.Clone()
		}
		largest = ikey.Clone()
		if err := w.Add(ikey, iter.Value()); err != nil {
			return nil, err
		}

		if c.shouldStopBefore(d.ucmp, ikey) || w.Size() >= int64(d.opts.MaxFileSize) {
			if err := finishOutput(); err != nil {
				return nil, err
			}
		}
	}

	if err := finishOutput(); err != nil {
		return nil, err
	}
	return ve, nil
}

// outputLevelMayNotContain reports whether every one of the level+1 input
// files' Bloom filters report that ukey is definitely absent, meaning a
// still-visible deletion tombstone for ukey is not masking a value one
// level down and can be dropped for good (spec §4.12: "every output-level
// input file's bloom filter reports may-not-match").
func (d *DB) outputLevelMayNotContain(files []fileMetadata, ukey []byte) bool {
	for _, f := range files {
		mayContain := true
		err := d.tableCache.withReader(f.fileNum, func(r *sstable.Reader) error {
			mayContain = r.MayContain(ukey)
			return nil
		})
		if err != nil || mayContain {
			return false
		}
	}
	return true
}

// compactionIter returns a merging iterator over every file named in
// c.inputs[0] and c.inputs[1], along with the cache handles pinning their
// readers open; the caller must Release each handle once done.
func (d *DB) compactionIter(tc *tableCache, c *compaction) (*mergingIter, []*cache.Handle, error) {
	var iters []internalIterator
	var handles []*cache.Handle
	release := func() {
		for _, h := range handles {
			h.Release()
		}
	}
	for i := 0; i < 2; i++ {
		for _, f := range c.inputs[i] {
			h, err := tc.findNode(f.fileNum)
			if err != nil {
				release()
				return nil, nil, err
			}
			handles = append(handles, h)
			r := h.Value().(*sstable.Reader)
			sit, err := r.NewIter()
			if err != nil {
				release()
				return nil, nil, err
			}
			iters = append(iters, &sstableIter{sit})
		}
	}
	return newMergingIter(d.ucmp, iters...), handles, nil
}

// cleanupCompaction evicts c's input files from the table cache now that
// they are superseded by c's outputs (spec §4.10 "cleanup_compaction").
func (d *DB) cleanupCompaction(c *compaction) {
	for i := 0; i < 2; i++ {
		for _, f := range c.inputs[i] {
			d.tableCache.evict(f.fileNum)
		}
	}
}

// deleteObsoleteFilesLocked removes log, table, and manifest files no
// longer referenced by the current version or any pending output (spec
// §4.10 "delete_obsolete_files"). d.mu is held on entry; it is dropped
// while listing and removing files and re-acquired before returning.
func (d *DB) deleteObsoleteFilesLocked() {
	live := make(map[base.FileNum]struct{}, len(d.mu.pendingOutputs))
	for fileNum := range d.mu.pendingOutputs {
		live[fileNum] = struct{}{}
	}
	d.mu.versions.addLiveFileNums(live)
	logNumber := d.mu.versions.logNumber
	manifestFileNumber := d.mu.versions.manifestFileNumber

	d.mu.Unlock()
	defer d.mu.Lock()

	list, err := d.opts.FS.List(d.dirname)
	if err != nil {
		return
	}
	for _, filename := range list {
		fileType, fileNum, ok := base.ParseFilename(filename)
		if !ok {
			continue
		}
		var keep bool
		switch fileType {
		case base.FileTypeLog:
			keep = fileNum >= logNumber
		case base.FileTypeManifest:
			keep = fileNum >= manifestFileNumber
		case base.FileTypeTable:
			_, keep = live[fileNum]
		default:
			keep = true
		}
		if keep {
			continue
		}
		if fileType == base.FileTypeTable {
			d.tableCache.evict(fileNum)
		}
		_ = d.opts.FS.Remove(d.opts.FS.PathJoin(d.dirname, filename))
	}
}
