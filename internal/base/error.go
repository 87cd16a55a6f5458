// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"github.com/cockroachdb/errors"
)

// Sentinel errors for the error kinds of spec §7: ok is the absence of an
// error, not-found/corruption/io-error/invalid-argument/not-supported map to
// these vars (io-error is whatever the underlying vfs.FS returns, wrapped).
var (
	// ErrNotFound means that a Get call did not find the requested key. It is
	// not an engine error (spec §7): callers compare with errors.Is.
	ErrNotFound = errors.New("lsmkv: not found")

	// ErrClosed is returned by any operation performed on a closed engine.
	ErrClosed = errors.New("lsmkv: closed")

	// ErrNotSupported is returned for option combinations or operations this
	// engine intentionally declines to implement (spec §1 Non-goals).
	ErrNotSupported = errors.New("lsmkv: not supported")

	// ErrInvalidArgument mirrors spec §7 invalid-argument: bad Options, a
	// directory conflict on Open, or a comparator mismatch on reopen.
	ErrInvalidArgument = errors.New("lsmkv: invalid argument")
)

// CorruptionError wraps the cause of a detected on-disk corruption: a CRC
// mismatch, bad magic number, or malformed manifest entry (spec §4.7, §4.8,
// §7). It is never masked as a not-found.
type CorruptionError struct {
	cause error
}

// NewCorruptionError wraps err (or a message, via errors.Newf at the call
// site) as a corruption error.
func NewCorruptionError(err error) error {
	return &CorruptionError{cause: err}
}

func (e *CorruptionError) Error() string { return "lsmkv: corruption: " + e.cause.Error() }

// Unwrap allows errors.Is/As to see through to the underlying cause.
func (e *CorruptionError) Unwrap() error { return e.cause }

// IsCorruptionError reports whether err is (or wraps) a CorruptionError.
func IsCorruptionError(err error) bool {
	var c *CorruptionError
	return errors.As(err, &c)
}
