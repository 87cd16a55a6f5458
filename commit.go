// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"sync"
	"time"

	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/lsmkv/lsmkv/internal/record"
)

// maxBatchBytes caps the cumulative key+value bytes a single group-commit
// leader will assemble into one WAL record before handing the rest of the
// FIFO to the next leader (spec §4.12 "assembles a batch from the FIFO
// head until cumulative key_size+value_size exceeds 1 MiB").
const maxBatchBytes = 1 << 20

// writer is one pending Put/Delete request sitting in the group-commit
// FIFO (spec §4.12 "Writer record {op_type, key, value, sync?, done?,
// status}").
type writer struct {
	kind  base.InternalKeyKind
	key   []byte
	value []byte
	sync  bool

	cond sync.Cond
	done bool
	err  error
}

// writerQueue is the FIFO of spec §4.12: "head writer is leader, others
// wait on their own condition variable until done or promoted to head."
type writerQueue struct {
	q []*writer
}

func (wq *writerQueue) push(w *writer) { wq.q = append(wq.q, w) }

func (wq *writerQueue) front() *writer {
	if len(wq.q) == 0 {
		return nil
	}
	return wq.q[0]
}

func (wq *writerQueue) pop() { wq.q = wq.q[1:] }

func (wq *writerQueue) empty() bool { return len(wq.q) == 0 }

// commitWrite enqueues one Put/Delete, waits to become the FIFO head if it
// is not already, runs the group-commit leader protocol once it is, and
// returns this writer's own outcome (spec §4.12 "group commit").
func (d *DB) commitWrite(kind base.InternalKeyKind, key, value []byte, sync bool) error {
	w := &writer{kind: kind, key: key, value: value, sync: sync}

	d.mu.Lock()
	w.cond.L = &d.mu.Mutex
	wasEmpty := d.mu.writers.empty()
	d.mu.writers.push(w)

	if !wasEmpty {
		for !w.done && d.mu.writers.front() != w {
			w.cond.Wait()
		}
	}

	if !w.done {
		d.runLeader()
	}
	d.mu.Unlock()
	return w.err
}

// runLeader performs the leader's half of spec §4.12's group commit: it is
// called with the calling writer at the head of the FIFO and d.mu held.
// make_room_for_write runs first; then a batch is assembled and written as
// a single WAL record, applied to the active memtable, and every covered
// writer is released.
func (d *DB) runLeader() {
	if err := d.makeRoomForWrite(false); err != nil {
		d.finishBatch([]*writer{d.mu.writers.front()}, err)
		return
	}

	baseSeq := d.mu.versions.lastSequence + 1
	group, record_, needSync := d.collectBatch(baseSeq)

	logWriter := d.mu.log.writer
	d.mu.Unlock()
	err := logWriter.WriteRecord(record_)
	if err == nil && needSync {
		err = logWriter.Sync()
	}
	d.mu.Lock()

	if err != nil {
		d.mu.bgErr = err
		d.finishBatch(group, err)
		return
	}

	mem := d.mu.mem
	seq := baseSeq
	for _, w := range group {
		ikey := base.MakeInternalKey(w.key, seq, w.kind)
		if addErr := mem.add(ikey, w.value); addErr != nil {
			err = addErr
			break
		}
		seq++
	}
	d.mu.versions.lastSequence = seq - 1

	d.finishBatch(group, err)
}

// collectBatch takes writers from the FIFO head, in enqueue order, building
// one packed WAL record until doing so would exceed maxBatchBytes; the
// batch always contains at least its leader (spec §4.12: "batch always
// non-empty"). The writers stay queued, leader at the head, until
// finishBatch pops them.
func (d *DB) collectBatch(baseSeq base.SeqNum) (group []*writer, rec []byte, needSync bool) {
	b := newBatchBuilder()
	seq := baseSeq
	var size int
	for _, w := range d.mu.writers.q {
		entrySize := len(w.key) + len(w.value)
		if len(group) > 0 && size+entrySize > maxBatchBytes {
			break
		}
		b.put(seq, w.kind, w.key, w.value)
		if w.sync {
			needSync = true
		}
		group = append(group, w)
		size += entrySize
		seq++
	}
	return group, b.finish(), needSync
}

// finishBatch marks every writer in group done with err, wakes each one,
// and promotes the new FIFO head (if any) to leader (spec §4.12: "pops the
// batch from the FIFO, sets each follower's status/done, signals them,
// signals the new head if the FIFO is non-empty").
func (d *DB) finishBatch(group []*writer, err error) {
	for _, w := range group {
		d.mu.writers.pop()
		w.err = err
		w.done = true
		w.cond.Signal()
	}
	if next := d.mu.writers.front(); next != nil {
		next.cond.Signal()
	}
}

// makeRoomForWrite ensures the active memtable has room for a new write,
// stalling against L0 growth and rotating the memtable and WAL when
// necessary (spec §4.12 "make_room_for_write"). d.mu must be held; it may
// be dropped and re-acquired while this waits or sleeps.
func (d *DB) makeRoomForWrite(force bool) error {
	allowDelay := true
	for {
		switch {
		case d.mu.bgErr != nil:
			return d.mu.bgErr

		case allowDelay && len(d.mu.versions.currentVersion().files[0]) >= l0SlowdownTrigger:
			// Slow the writer down once, without forcing it to wait for a
			// background worker that might not even be behind (spec §4.12:
			// "drop the mutex for about one millisecond, then retry once
			// without applying the delay again").
			allowDelay = false
			d.mu.Unlock()
			time.Sleep(time.Millisecond)
			d.mu.Lock()

		case !force && d.mu.mem.approximateMemoryUsage() <= int64(d.opts.WriteBufferSize):
			return nil

		case d.mu.imm != nil:
			d.mu.bgCond.Wait()

		case len(d.mu.versions.currentVersion().files[0]) >= l0StopTrigger:
			d.mu.bgCond.Wait()

		default:
			newLogNum := d.mu.versions.nextFileNum()
			newLogName := base.MakeFilename(d.dirname, base.FileTypeLog, newLogNum)
			logFile, err := d.opts.FS.Create(newLogName)
			if err != nil {
				return err
			}
			if d.dataDir != nil {
				if err := d.dataDir.Sync(); err != nil {
					logFile.Close()
					return err
				}
			}
			if d.mu.log.file != nil {
				d.mu.log.file.Close()
			}
			d.mu.log.number = newLogNum
			d.mu.log.file = logFile
			d.mu.log.writer = record.NewWriter(logFile)

			d.mu.imm = d.mu.mem
			d.mu.mem = newMemTable(d.ucmp, uint32(2*d.opts.WriteBufferSize), newLogNum)
			force = false
			d.maybeScheduleFlush()
		}
	}
}

// maybeScheduleFlush and maybeScheduleCompaction both just wake the single
// background worker (spec §5: "A single background thread performs flush
// and compaction work"); it re-evaluates what there is to do on every
// wakeup rather than tracking separate scheduling flags.
func (d *DB) maybeScheduleFlush()      { d.mu.bgCond.Broadcast() }
func (d *DB) maybeScheduleCompaction() { d.mu.bgCond.Broadcast() }
