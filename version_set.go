// Copyright 2012 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/record"
	"github.com/lsmkv/lsmkv/vfs"
)

// versionSet tracks the single mutable "current" version plus the
// persistent counters and compaction pointers that accompany it, all
// journaled to the MANIFEST (spec §4.9/§4.10 "Version set"). Every method
// assumes the caller already holds the owning DB's mutex: a versionSet has
// no locking of its own, exactly as the engine mutex of spec §4.12 is
// described as covering "every durable and in-memory structure".
type versionSet struct {
	dirname string
	fs      vfs.FS
	ucmp    base.Compare
	icmpCmp base.Compare // internal-key compare, derived from ucmp

	nextFileNumber     base.FileNum
	logNumber          base.FileNum
	prevLogNumber      base.FileNum
	lastSequence       base.SeqNum
	manifestFileNumber base.FileNum

	manifestFile   vfs.File
	manifest       *record.Writer
	compactPointer [numLevels]base.InternalKey

	// dummyVersion anchors the circular list of versions; current is
	// whichever version currently follows it.
	dummyVersion version
	current      *version
}

func newVersionSet(dirname string, fs vfs.FS, ucmp base.Compare) *versionSet {
	vs := &versionSet{dirname: dirname, fs: fs, ucmp: ucmp}
	vs.icmpCmp = func(a, b []byte) int {
		return base.InternalCompare(ucmp, base.DecodeInternalKey(a), base.DecodeInternalKey(b))
	}
	vs.dummyVersion.prev = &vs.dummyVersion
	vs.dummyVersion.next = &vs.dummyVersion
	return vs
}

// currentVersion returns the version installed by the most recent
// logAndApply call.
func (vs *versionSet) currentVersion() *version { return vs.current }

// nextFileNum allocates and returns the next unused file number (spec §4.9
// "next_file_number").
func (vs *versionSet) nextFileNum() base.FileNum {
	n := vs.nextFileNumber
	vs.nextFileNumber++
	return n
}

// markFileNumUsed ensures fileNum will never be handed out by nextFileNum,
// used when replaying log files discovered on disk whose names embed a
// file number (spec §4.9 "recover").
func (vs *versionSet) markFileNumUsed(fileNum base.FileNum) {
	if vs.nextFileNumber <= fileNum {
		vs.nextFileNumber = fileNum + 1
	}
}

// addLiveFileNums adds to m the file number of every table referenced by
// any version still linked into the list: the current one and any older
// one an iterator or Get still holds (spec §4.10 "delete_obsolete_files").
func (vs *versionSet) addLiveFileNums(m map[base.FileNum]struct{}) {
	for v := vs.dummyVersion.next; v != &vs.dummyVersion; v = v.next {
		for _, files := range v.files {
			for _, f := range files {
				m[f.fileNum] = struct{}{}
			}
		}
	}
}

// append installs v as the current version and takes the versionSet's
// reference on it, dropping that reference from the version it replaces;
// the replaced version is unlinked once no iterator or Get still holds it.
func (vs *versionSet) append(v *version) {
	old := vs.current
	if old != nil {
		v.prev = vs.dummyVersion.prev
		v.next = &vs.dummyVersion
		v.prev.next = v
		vs.dummyVersion.prev = v
	} else {
		v.prev = &vs.dummyVersion
		v.next = &vs.dummyVersion
		vs.dummyVersion.prev = v
		vs.dummyVersion.next = v
	}
	vs.current = v
	v.ref()
	if old != nil {
		old.unref()
	}
}

// buildVersion derives a new version from base by applying ve's new and
// deleted files (spec §4.9 "apply"), re-sorting each touched level and
// refreshing the compaction score.
func buildVersion(base_ *version, ve *versionEdit, ucmp base.Compare) *version {
	v := &version{}
	for level := range v.files {
		for _, f := range base_.files[level] {
			if ve.deletedFiles[deletedFileEntry{level, f.fileNum}] {
				continue
			}
			v.files[level] = append(v.files[level], f)
		}
	}
	for _, nf := range ve.newFiles {
		v.files[nf.level] = append(v.files[nf.level], nf.meta)
	}
	for level := range v.files {
		if level == 0 {
			sort.Sort(byFileNum(v.files[level]))
		} else {
			sort.Sort(bySmallest{v.files[level], ucmp})
		}
	}
	v.updateCompactionScore()
	return v
}

// logAndApply applies ve to the current version, appends ve to the
// manifest (creating one first if none is open), and installs the result
// as current (spec §4.9 "log_and_apply"). The caller fills in whichever of
// ve's delta fields changed; when a fresh manifest is created, its
// snapshot edit takes the comparator name from ve.comparatorName.
func (vs *versionSet) logAndApply(ve *versionEdit) error {
	if ve.logNumber != 0 {
		vs.logNumber = ve.logNumber
	}
	if ve.prevLogNumber != 0 {
		vs.prevLogNumber = ve.prevLogNumber
	}
	if ve.nextFileNumber != 0 && ve.nextFileNumber > vs.nextFileNumber {
		vs.nextFileNumber = ve.nextFileNumber
	}
	if ve.lastSequence != 0 {
		vs.lastSequence = ve.lastSequence
	}
	for _, cp := range ve.compactPointers {
		vs.compactPointer[cp.level] = cp.key
	}

	base_ := &vs.dummyVersion
	if vs.current != nil {
		base_ = vs.current
	}
	v := buildVersion(base_, ve, vs.ucmp)
	if err := v.checkOrdering(vs.ucmp); err != nil {
		return err
	}

	if vs.manifest == nil {
		if err := vs.createManifest(ve.comparatorName); err != nil {
			return err
		}
	}
	if err := vs.writeManifestEdit(ve); err != nil {
		return err
	}

	vs.append(v)
	return nil
}

// createManifest opens a brand new MANIFEST-NNNNNN file, writes a base
// edit recording the comparator name and current counters, and points
// CURRENT at it (spec §4.9 "manifest rollover").
func (vs *versionSet) createManifest(comparatorName string) error {
	fileNum := vs.nextFileNum()
	filename := base.MakeFilename(vs.dirname, base.FileTypeManifest, fileNum)
	f, err := vs.fs.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "lsmkv: creating manifest %s", filename)
	}

	snapshot := &versionEdit{
		comparatorName: comparatorName,
		nextFileNumber: vs.nextFileNumber,
		lastSequence:   vs.lastSequence,
		logNumber:      vs.logNumber,
		prevLogNumber:  vs.prevLogNumber,
	}
	if vs.current != nil {
		for level, files := range vs.current.files {
			for _, f := range files {
				snapshot.newFiles = append(snapshot.newFiles, newFileEntry{level: level, meta: f})
			}
		}
	}
	for level, key := range vs.compactPointer {
		if key.UserKey != nil {
			snapshot.compactPointers = append(snapshot.compactPointers, compactPointerEntry{level, key})
		}
	}

	w := record.NewWriter(f)
	var buf recordBuffer
	if err := snapshot.encode(&buf); err != nil {
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

	if vs.manifestFile != nil {
		vs.manifestFile.Close()
	}
	vs.manifestFile = f
	vs.manifest = w
	vs.manifestFileNumber = fileNum
	return setCurrentFile(vs.dirname, vs.fs, fileNum)
}

func (vs *versionSet) writeManifestEdit(ve *versionEdit) error {
	var buf recordBuffer
	if err := ve.encode(&buf); err != nil {
		return err
	}
	if err := vs.manifest.WriteRecord(buf.Bytes()); err != nil {
		return err
	}
	return vs.manifest.Sync()
}

// close releases the open manifest file, if any.
func (vs *versionSet) close() error {
	if vs.manifestFile == nil {
		return nil
	}
	err := vs.manifestFile.Close()
	vs.manifestFile = nil
	vs.manifest = nil
	return err
}

// recover reconstructs a versionSet from the CURRENT file and the
// manifest it names, replaying every versionEdit in order (spec §4.9
// "recover"). comparerName is checked against each edit's recorded
// comparatorName; a mismatch is an invalid-argument error, since the
// on-disk key order would otherwise be silently reinterpreted.
func (vs *versionSet) recover(comparerName string) error {
	currentName := base.MakeFilename(vs.dirname, base.FileTypeCurrent, 0)
	current, err := vs.fs.Open(currentName)
	if err != nil {
		return errors.Wrapf(err, "lsmkv: opening CURRENT")
	}
	defer current.Close()
	stat, err := current.Stat()
	if err != nil {
		return err
	}
	n := stat.Size()
	if n == 0 || n > 4096 {
		return base.ErrInvalidArgument
	}
	b := make([]byte, n)
	if _, err := current.ReadAt(b, 0); err != nil {
		return err
	}
	if b[n-1] != '\n' {
		return errors.New("lsmkv: CURRENT file is malformed")
	}
	manifestName := vs.fs.PathJoin(vs.dirname, string(b[:n-1]))

	manifest, err := vs.fs.Open(manifestName)
	if err != nil {
		return errors.Wrapf(err, "lsmkv: opening manifest %s", manifestName)
	}
	defer manifest.Close()

	v := &version{}
	rr := record.NewReader(manifest)
	var scratch []byte
	for {
		r, err := rr.Next(scratch)
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		var ve versionEdit
		if err := ve.decode(&byteSliceReader{r}); err != nil {
			return err
		}
		if ve.comparatorName != "" && ve.comparatorName != comparerName {
			return errors.Wrapf(base.ErrInvalidArgument,
				"lsmkv: comparer %q does not match the database's %q", comparerName, ve.comparatorName)
		}
		if ve.logNumber != 0 {
			vs.logNumber = ve.logNumber
		}
		if ve.prevLogNumber != 0 {
			vs.prevLogNumber = ve.prevLogNumber
		}
		if ve.nextFileNumber != 0 && ve.nextFileNumber > vs.nextFileNumber {
			vs.nextFileNumber = ve.nextFileNumber
		}
		if ve.lastSequence != 0 {
			vs.lastSequence = ve.lastSequence
		}
		for _, cp := range ve.compactPointers {
			vs.compactPointer[cp.level] = cp.key
		}
		v = buildVersion(v, &ve, vs.ucmp)
	}
	if err := v.checkOrdering(vs.ucmp); err != nil {
		return err
	}
	vs.append(v)

	_, manifestFileNum, ok := base.ParseFilename(vs.fs.PathBase(manifestName))
	if !ok {
		return errors.New("lsmkv: malformed manifest filename")
	}
	vs.manifestFileNumber = manifestFileNum
	vs.markFileNumUsed(manifestFileNum)
	return nil
}

// setCurrentFile atomically points CURRENT at MANIFEST-fileNum: the new
// contents are written to a temp file and renamed into place (spec §4.9
// "CURRENT is rewritten via write-to-temp-then-rename, never in place").
func setCurrentFile(dirname string, fs vfs.FS, fileNum base.FileNum) error {
	manifestBase := fs.PathBase(base.MakeFilename(dirname, base.FileTypeManifest, fileNum))
	tmpName := base.MakeFilename(dirname, base.FileTypeCurrent, 0) + ".dbtmp"
	f, err := fs.Create(tmpName)
	if err != nil {
		return err
	}
	if _, err := f.Write([]byte(manifestBase + "\n")); err != nil {
		f.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		fs.Remove(tmpName)
		return err
	}
	if err := f.Close(); err != nil {
		fs.Remove(tmpName)
		return err
	}
	return fs.Rename(tmpName, base.MakeFilename(dirname, base.FileTypeCurrent, 0))
}

// recordBuffer is the minimal io.Writer versionEdit.encode needs, kept
// separate from bytes.Buffer only so byteSliceReader below can sit next to
// it for symmetry when decoding a manifest record.
type recordBuffer struct {
	data []byte
}

func (b *recordBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *recordBuffer) Bytes() []byte { return b.data }

// byteSliceReader adapts a single in-memory record payload (as returned by
// record.Reader.Next) into the byteReader versionEdit.decode expects.
type byteSliceReader struct {
	b []byte
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

func (r *byteSliceReader) ReadByte() (byte, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	c := r.b[0]
	r.b = r.b[1:]
	return c, nil
}
