// Copyright 2011 The LevelDB-Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package record

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSyncCloser struct {
	bytes.Buffer
	synced bool
}

func (f *fakeSyncCloser) Sync() error {
	f.synced = true
	return nil
}

func TestWriteReadRoundTrip(t *testing.T) {
	var buf fakeSyncCloser
	w := NewWriter(&buf)
	records := [][]byte{[]byte("hello"), []byte(""), []byte("world")}
	for _, r := range records {
		require.NoError(t, w.WriteRecord(r))
	}
	require.NoError(t, w.Sync())
	require.True(t, buf.synced)

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for _, want := range records {
		got, err := r.Next(nil)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := r.Next(nil)
	require.Equal(t, io.EOF, err)
}

func TestCorruptCRCDetected(t *testing.T) {
	var buf fakeSyncCloser
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecord([]byte("hello")))

	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xff // flip a payload byte

	r := NewReader(bytes.NewReader(corrupted))
	_, err := r.Next(nil)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestShortReadIsCorruption(t *testing.T) {
	var buf fakeSyncCloser
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecord([]byte("hello world")))

	truncated := buf.Bytes()[:len(buf.Bytes())-3]
	r := NewReader(bytes.NewReader(truncated))
	_, err := r.Next(nil)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestUnknownTypeIsCorruption(t *testing.T) {
	var buf fakeSyncCloser
	w := NewWriter(&buf)
	require.NoError(t, w.WriteRecord([]byte("hello")))

	b := buf.Bytes()
	b[6] = 99 // stomp the type byte

	r := NewReader(bytes.NewReader(b))
	_, err := r.Next(nil)
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestRecordTooLarge(t *testing.T) {
	var buf fakeSyncCloser
	w := NewWriter(&buf)
	err := w.WriteRecord(make([]byte, MaxRecordLen+1))
	require.Error(t, err)
}
