// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/cache"
	"github.com/lsmkv/lsmkv/vfs"
)

// Compile-time constants of spec §6.
const (
	numLevels = 7

	l0CompactionTrigger = 4
	l0SlowdownTrigger   = 8
	l0StopTrigger       = 12
)

// Compression identifies a block compression codec (spec §6: "compression:
// {none, zstd}").
type Compression int

const (
	NoCompression Compression = iota
	SnappyCompression
	ZstdCompression
)

// Logger is the destination for the engine's diagnostic output.
type Logger = base.Logger

// Comparer defines the total order over user keys. The zero value is not
// usable; use DefaultComparer.
type Comparer = base.Comparer

// DefaultComparer orders keys lexicographically, as bytes.Compare does.
var DefaultComparer = base.DefaultComparer

// Options configures an engine (spec §6 "Configuration"). The zero value is
// not directly usable: call EnsureDefaults (Open does this automatically)
// before passing an Options to Open.
type Options struct {
	// FS is the filesystem the engine reads and writes through. Defaults to
	// vfs.Default, the operating system's filesystem.
	FS vfs.FS

	// Comparer orders user keys. Its Name is persisted into the manifest; a
	// reopen with a differently-named comparer fails with ErrInvalidArgument
	// (spec §6).
	Comparer *Comparer

	// Logger defaults to base.DefaultLogger. The engine does not write to it
	// directly; MakeLoggingEventListener builds an EventListener that does.
	Logger Logger

	// EventListener receives lifecycle notifications (flush/compaction end,
	// manifest rotation). The zero value wires up no callbacks.
	EventListener EventListener

	// CreateIfMissing creates the database directory if it does not exist.
	// Defaults to true.
	CreateIfMissing bool

	// ErrorIfExists causes Open to fail with ErrInvalidArgument if a
	// database already exists in the directory (its CURRENT file is
	// present); an existing directory without CURRENT does not count.
	ErrorIfExists bool

	// WriteBufferSize is the memtable rotation threshold in bytes. Default 4
	// MiB.
	WriteBufferSize int

	// MaxFileSize bounds a compaction output file's size in bytes. Default 2
	// MiB.
	MaxFileSize int

	// BlockSize is the target uncompressed size of a data block. Default 4
	// KiB.
	BlockSize int

	// BlockRestartInterval is the number of entries between prefix-compression
	// restart points within a block. Default 16.
	BlockRestartInterval int

	// Compression selects the sstable block codec. Default NoCompression.
	Compression Compression

	// BloomBitsPerKey sizes the per-file Bloom filter. Zero selects the
	// default of 10; every file gets a filter, as no value disables it.
	BloomBitsPerKey int

	// BlockCacheCapacity is the capacity of the cache of open sstable
	// readers. Each reader is charged 1, so this bounds the number of cached
	// readers, not bytes; sstable blocks are not cached. Zero selects the
	// default of 8<<20; no value disables the cache.
	BlockCacheCapacity int

	// MaxOpenFiles defaults to 1000 but is not consulted: the reader cache
	// is sized by BlockCacheCapacity alone.
	MaxOpenFiles int

	// ParanoidChecks verifies the CRC of every block read. When false, block
	// CRCs are not checked.
	ParanoidChecks bool

	cache *cache.Cache
}

// WriteOptions governs a single Put/Delete call (spec §6 "Write options").
type WriteOptions struct {
	// Sync forces the WAL record covering this write to durable storage
	// before the call returns.
	Sync bool
}

// IterOptions names the per-iterator read options (spec §6 "Read
// options"). NewIter takes no options, so neither field has any effect.
type IterOptions struct {
	// VerifyChecksums names per-iterator block CRC verification.
	VerifyChecksums bool
	// FillCache names whether an iterator's reads may populate a cache.
	FillCache bool
}

// EnsureDefaults fills zero-valued fields with their documented defaults. It
// is idempotent and safe to call on a nil receiver, returning a new Options.
func (o *Options) EnsureDefaults() *Options {
	if o == nil {
		o = &Options{}
	}
	if o.FS == nil {
		o.FS = vfs.Default
	}
	if o.Comparer == nil {
		o.Comparer = DefaultComparer
	}
	if o.Logger == nil {
		o.Logger = base.DefaultLogger{}
	}
	if o.WriteBufferSize <= 0 {
		o.WriteBufferSize = 4 << 20
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = 2 << 20
	}
	if o.BlockSize <= 0 {
		o.BlockSize = 4 << 10
	}
	if o.BlockRestartInterval <= 0 {
		o.BlockRestartInterval = 16
	}
	if o.BloomBitsPerKey == 0 {
		o.BloomBitsPerKey = 10
	}
	if o.BlockCacheCapacity == 0 {
		o.BlockCacheCapacity = 8 << 20
	}
	if o.MaxOpenFiles == 0 {
		o.MaxOpenFiles = 1000
	}
	if !o.CreateIfMissing && !o.ErrorIfExists {
		o.CreateIfMissing = true
	}
	if o.cache == nil && o.BlockCacheCapacity > 0 {
		o.cache = cache.New(o.BlockCacheCapacity)
	}
	return o
}

func (o *Options) internalComparer() *Comparer {
	return base.InternalComparer(o.Comparer)
}
