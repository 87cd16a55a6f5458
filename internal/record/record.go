// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package record implements the write-ahead log framing of spec §4.7: a
// sequence of length-prefixed, CRC-protected records. It is shared by the
// engine's per-write WAL and by the manifest log, whose payloads are
// serialized version edits (spec §4.7: "The manifest file is a WAL with
// identical framing").
package record

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
)

// MaxRecordLen is the largest payload a single record frame can carry (spec
// §4.7: "Max payload 65535 bytes").
const MaxRecordLen = 1<<16 - 1

// headerLen is the fixed frame header: masked_crc32c(4) || length(2) ||
// type(1).
const headerLen = 4 + 2 + 1

// recordType identifies the payload framing. Only fullRecordType is
// produced or accepted; any other byte on read is corruption (spec §4.7:
// "Single record type ('full') is supported; any other type is treated as
// corruption").
type recordType byte

const fullRecordType recordType = 1

// ErrCorrupt is returned by Reader.Next when a frame fails its CRC or type
// check. It is distinguishable from io.EOF, which signals a clean end of
// log (spec §4.7: "distinguishable from EOF").
var ErrCorrupt = errors.New("lsmkv: corrupt WAL record")

// SyncCloser is the write side of the host filesystem primitive a Writer
// flushes onto. Sync must force the written bytes to durable storage (spec
// §4.7: "the layer must expose a real flush-to-storage primitive; using
// only a buffered flush is a spec violation") -- an *os.File satisfies this
// directly since its Sync method calls fsync(2).
type SyncCloser interface {
	io.Writer
	Sync() error
}

// Writer appends records to the framed log (spec §4.7's "add"/"sync").
type Writer struct {
	w   SyncCloser
	buf [headerLen]byte
}

// NewWriter returns a Writer that appends frames to w.
func NewWriter(w SyncCloser) *Writer {
	return &Writer{w: w}
}

// WriteRecord appends record as a single full-type frame (spec §4.7:
// "add(record) appends and flushes to the host write layer"). record must
// be at most MaxRecordLen bytes.
func (w *Writer) WriteRecord(record []byte) error {
	if len(record) > MaxRecordLen {
		return errors.Newf("lsmkv: record of %d bytes exceeds the %d byte limit", len(record), MaxRecordLen)
	}

	binary.LittleEndian.PutUint16(w.buf[4:6], uint16(len(record)))
	w.buf[6] = byte(fullRecordType)

	checksum := base.NewCRC(w.buf[4:7]).Update(record)
	binary.LittleEndian.PutUint32(w.buf[0:4], checksum.Mask())

	if _, err := w.w.Write(w.buf[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(record); err != nil {
		return err
	}
	return nil
}

// Sync forces all previously written records to durable storage (spec
// §4.7: "sync additionally forces durability").
func (w *Writer) Sync() error {
	return w.w.Sync()
}

// Reader reads back the frames written by a Writer (spec §4.7's
// "read_next").
type Reader struct {
	r   io.Reader
	buf [headerLen]byte
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next record's payload, reusing scratch's backing array
// when it has enough capacity. io.EOF signals a clean end of log; any other
// error (including ErrCorrupt) means the tail of the log could not be read
// and must be treated per spec §4.7/§7 as corruption, not silently
// truncated.
func (r *Reader) Next(scratch []byte) ([]byte, error) {
	if _, err := io.ReadFull(r.r, r.buf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, ErrCorrupt
		}
		return nil, err
	}

	length := int(binary.LittleEndian.Uint16(r.buf[4:6]))
	typ := recordType(r.buf[6])
	if typ != fullRecordType {
		return nil, ErrCorrupt
	}

	if scratch == nil || cap(scratch) < length {
		scratch = make([]byte, length)
	}
	payload := scratch[:length]
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrCorrupt
		}
		return nil, err
	}

	wantCRC := base.Unmask(binary.LittleEndian.Uint32(r.buf[0:4]))
	gotCRC := base.NewCRC(r.buf[4:7]).Update(payload)
	if gotCRC != wantCRC {
		return nil, ErrCorrupt
	}

	return payload, nil
}
