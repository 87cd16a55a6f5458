// Copyright 2012 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package base

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// FileNum is a database-wide unique file number: spec §3 "File metadata
// holds ... number", §6 "NNNNNN = 6-digit zero-padded decimal file number".
type FileNum uint64

// FileType enumerates the kinds of files that live in a database directory
// (spec §6).
type FileType int

const (
	// FileTypeLog is a WAL file: NNNNNN.log.
	FileTypeLog FileType = iota
	// FileTypeLock is the directory lock file: LOCK.
	FileTypeLock
	// FileTypeTable is an immutable sorted file: NNNNNN.sst.
	FileTypeTable
	// FileTypeManifest is a version-edit log: MANIFEST-NNNNNN.
	FileTypeManifest
	// FileTypeCurrent names the active manifest: CURRENT.
	FileTypeCurrent
)

// MakeFilename returns the name of the file of the given type and number,
// joined onto dirname.
func MakeFilename(dirname string, fileType FileType, fileNum FileNum) string {
	switch fileType {
	case FileTypeLog:
		return filepath.Join(dirname, fmt.Sprintf("%06d.log", fileNum))
	case FileTypeLock:
		return filepath.Join(dirname, "LOCK")
	case FileTypeTable:
		return filepath.Join(dirname, fmt.Sprintf("%06d.sst", fileNum))
	case FileTypeManifest:
		return filepath.Join(dirname, fmt.Sprintf("MANIFEST-%06d", fileNum))
	case FileTypeCurrent:
		return filepath.Join(dirname, "CURRENT")
	}
	panic("lsmkv: unknown file type")
}

// ParseFilename parses filename (the base name, not a full path) produced by
// MakeFilename, reporting the file's type and number. ok is false if
// filename does not match any recognized pattern.
func ParseFilename(filename string) (fileType FileType, fileNum FileNum, ok bool) {
	switch {
	case filename == "CURRENT":
		return FileTypeCurrent, 0, true
	case filename == "LOCK":
		return FileTypeLock, 0, true
	case strings.HasPrefix(filename, "MANIFEST-"):
		u, err := strconv.ParseUint(filename[len("MANIFEST-"):], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return FileTypeManifest, FileNum(u), true
	case strings.HasSuffix(filename, ".log"):
		u, err := strconv.ParseUint(filename[:len(filename)-len(".log")], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return FileTypeLog, FileNum(u), true
	case strings.HasSuffix(filename, ".sst"):
		u, err := strconv.ParseUint(filename[:len(filename)-len(".sst")], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return FileTypeTable, FileNum(u), true
	}
	return 0, 0, false
}
