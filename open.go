// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"io"
	"os"
	"sort"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/cache"
	"github.com/lsmkv/lsmkv/internal/record"
	"github.com/lsmkv/lsmkv/sstable"
	"github.com/lsmkv/lsmkv/vfs"
)

// dbNumAlloc namespaces table-cache keys across every *DB sharing a block
// cache in this process, mirroring the teacher's own dbNumAlloc -- without
// it, two engines opened against the same Options.cache would collide on
// identical file numbers.
var dbNumAlloc uint64

// Open opens (creating if necessary) the database at dirname (spec §4.9
// "open"). The returned *DB must eventually be closed with Close.
func Open(dirname string, opts *Options) (*DB, error) {
	opts = opts.EnsureDefaults()
	fs := opts.FS

	if err := fs.MkdirAll(dirname, 0755); err != nil {
		return nil, err
	}

	d := &DB{
		dirname: dirname,
		opts:    opts,
		ucmp:    opts.Comparer.Compare,
	}
	d.mu.bgCond.L = &d.mu.Mutex
	d.mu.pendingOutputs = make(map[base.FileNum]struct{})
	d.mu.versions = newVersionSet(dirname, fs, d.ucmp)

	d.mu.Lock()
	defer d.mu.Unlock()

	fileLock, err := fs.Lock(base.MakeFilename(dirname, base.FileTypeLock, 0))
	if err != nil {
		return nil, err
	}
	closeOnErr := func(extra io.Closer) {
		fileLock.Close()
		if extra != nil {
			extra.Close()
		}
	}

	currentName := base.MakeFilename(dirname, base.FileTypeCurrent, 0)
	_, statErr := fs.Stat(currentName)
	switch {
	case statErr == nil:
		if opts.ErrorIfExists {
			closeOnErr(nil)
			return nil, errors.Wrapf(base.ErrInvalidArgument, "lsmkv: database %q already exists", dirname)
		}
	case os.IsNotExist(statErr):
		if !opts.CreateIfMissing {
			closeOnErr(nil)
			return nil, errors.Newf("lsmkv: database %q does not exist and CreateIfMissing is false", dirname)
		}
		if err := createDB(dirname, fs, opts.Comparer.Name, d.mu.versions); err != nil {
			closeOnErr(nil)
			return nil, err
		}
	default:
		closeOnErr(nil)
		return nil, errors.Wrapf(statErr, "lsmkv: database %q", dirname)
	}

	if err := d.mu.versions.recover(opts.Comparer.Name); err != nil {
		closeOnErr(nil)
		return nil, err
	}

	dbNum := atomic.AddUint64(&dbNumAlloc, 1)
	readerOpts := sstable.ReaderOptions{Comparer: opts.Comparer, VerifyChecksums: opts.ParanoidChecks}
	blockCache := opts.cache
	if blockCache == nil {
		blockCache = cache.New(8 << 20)
	}
	d.tableCache = newTableCache(blockCache, dbNum, fs, dirname, readerOpts)

	ve := &versionEdit{comparatorName: opts.Comparer.Name, deletedFiles: map[deletedFileEntry]bool{}}
	list, err := fs.List(dirname)
	if err != nil {
		closeOnErr(nil)
		return nil, err
	}
	type logFile struct {
		num  base.FileNum
		name string
	}
	var logFiles []logFile
	for _, name := range list {
		ft, num, ok := base.ParseFilename(name)
		if ok && ft == base.FileTypeLog &&
			(num >= d.mu.versions.logNumber || num == d.mu.versions.prevLogNumber) {
			logFiles = append(logFiles, logFile{num, name})
		}
	}
	sort.Slice(logFiles, func(i, j int) bool { return logFiles[i].num < logFiles[j].num })

	for _, lf := range logFiles {
		maxSeq, err := d.replayLogFile(ve, fs, fs.PathJoin(dirname, lf.name))
		if err != nil {
			closeOnErr(nil)
			return nil, err
		}
		d.mu.versions.markFileNumUsed(lf.num)
		if d.mu.versions.lastSequence < maxSeq {
			d.mu.versions.lastSequence = maxSeq
		}
	}

	ve.logNumber = d.mu.versions.nextFileNum()
	newLogFile, err := fs.Create(base.MakeFilename(dirname, base.FileTypeLog, ve.logNumber))
	if err != nil {
		closeOnErr(nil)
		return nil, err
	}
	d.mu.log.number = ve.logNumber
	d.mu.log.file = newLogFile
	d.mu.log.writer = record.NewWriter(newLogFile)

	d.mu.mem = newMemTable(d.ucmp, uint32(2*opts.WriteBufferSize), ve.logNumber)

	if err := d.mu.versions.logAndApply(ve); err != nil {
		closeOnErr(newLogFile)
		return nil, err
	}
	if opts.EventListener.ManifestCreated != nil {
		opts.EventListener.ManifestCreated(ManifestCreateInfo{FileNum: d.mu.versions.manifestFileNumber})
	}

	dataDir, err := fs.OpenDir(dirname)
	if err != nil {
		closeOnErr(nil)
		return nil, err
	}
	d.dataDir = dataDir
	d.fileLock = fileLock

	d.deleteObsoleteFilesLocked()

	d.closeWG.Add(1)
	go d.backgroundWorker()

	return d, nil
}

// createDB writes the very first MANIFEST and points CURRENT at it (spec
// §4.9: a freshly created database starts from an empty version).
func createDB(dirname string, fs vfs.FS, comparatorName string, vs *versionSet) error {
	const firstManifestFileNum = 1
	vs.nextFileNumber = firstManifestFileNum + 1

	filename := base.MakeFilename(dirname, base.FileTypeManifest, firstManifestFileNum)
	f, err := fs.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "lsmkv: creating manifest %s", filename)
	}

	ve := &versionEdit{comparatorName: comparatorName, nextFileNumber: vs.nextFileNumber}
	w := record.NewWriter(f)
	var buf recordBuffer
	if err := ve.encode(&buf); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteRecord(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	if err := w.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return setCurrentFile(dirname, fs, firstManifestFileNum)
}

// replayLogFile replays every batch record in filename into a fresh
// memtable, recording a new level-0 file in ve if the log held any entries
// (spec §4.9 "recover": "logs newer than the manifest's are replayed").
// d.mu is held on entry and stays held throughout, including the level-0
// write.
func (d *DB) replayLogFile(ve *versionEdit, fs vfs.FS, filename string) (maxSeq base.SeqNum, err error) {
	file, err := fs.Open(filename)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var mem *memTable
	rr := record.NewReader(file)
	var scratch []byte
	for {
		rec, err := rr.Next(scratch)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		br, err := newBatchReader(rec)
		if err != nil {
			return 0, err
		}
		if mem == nil {
			mem = newMemTable(d.ucmp, uint32(2*d.opts.WriteBufferSize), 0)
		}
		for {
			seq, kind, key, value, ok, err := br.next()
			if err != nil {
				return 0, err
			}
			if !ok {
				break
			}
			ikey := base.MakeInternalKey(append([]byte(nil), key...), seq, kind)
			if err := mem.add(ikey, append([]byte(nil), value...)); err != nil {
				return 0, err
			}
			if maxSeq < seq {
				maxSeq = seq
			}
		}
	}

	if mem != nil {
		fileNum := d.mu.versions.nextFileNum()
		meta, err := d.buildTableFromMemTable(fileNum, mem)
		if err != nil {
			return 0, err
		}
		ve.newFiles = append(ve.newFiles, newFileEntry{level: 0, meta: meta})
	}
	return maxSeq, nil
}

// Destroy removes every file belonging to the database at dirname (spec
// §6 "destroy"). The database must not be open in this or any other
// process.
func Destroy(dirname string, fs vfs.FS) error {
	if fs == nil {
		fs = vfs.Default
	}
	list, err := fs.List(dirname)
	if err != nil {
		return err
	}
	for _, name := range list {
		if _, _, ok := base.ParseFilename(name); !ok {
			continue
		}
		if err := fs.Remove(fs.PathJoin(dirname, name)); err != nil {
			return err
		}
	}
	return fs.Remove(dirname)
}
