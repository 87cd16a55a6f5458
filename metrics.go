// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package lsmkv

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// LevelMetrics holds per-level metrics: file count, total size, and the
// level's compaction score (spec §6 "Metrics").
type LevelMetrics struct {
	NumFiles int64
	Size     uint64
	Score    float64
}

// format writes one "level file size score" row into buf.
func (m *LevelMetrics) format(buf *bytes.Buffer, level int) {
	fmt.Fprintf(buf, "%5d %6d %8d %7.2f\n", level, m.NumFiles, m.Size, m.Score)
}

// Metrics is a point-in-time snapshot of engine state (spec §6 DOMAIN
// STACK "Metrics()"), covering the memtable, every level of the tree, the
// background worker's lifetime counters, and the size and hit rate of the
// cache of open sstable readers.
type Metrics struct {
	MemTableSize uint64

	Levels [numLevels]LevelMetrics

	Compactions struct {
		Count       int64
		BytesIn     uint64
		BytesWritten uint64
	}

	Flushes int64

	Cache struct {
		Size    int64
		HitRate float64
	}
}

// String renders the metrics as a fixed-width table, in the teacher's
// level/files/size/score style (spec §6).
func (m *Metrics) String() string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "memtable: %d bytes\n", m.MemTableSize)
	fmt.Fprintf(&buf, "level files     size   score\n")
	for level := range m.Levels {
		m.Levels[level].format(&buf, level)
	}
	fmt.Fprintf(&buf, "compactions: %d, bytes_in %d, bytes_written %d\n",
		m.Compactions.Count, m.Compactions.BytesIn, m.Compactions.BytesWritten)
	fmt.Fprintf(&buf, "flushes: %d\n", m.Flushes)
	fmt.Fprintf(&buf, "cache: %d readers, %.2f%% hit rate\n", m.Cache.Size, m.Cache.HitRate*100)
	return buf.String()
}

// Metrics takes a consistent snapshot of the engine's current state. It
// briefly holds d.mu.
func (d *DB) Metrics() *Metrics {
	d.mu.Lock()
	m := &Metrics{}
	m.MemTableSize = uint64(d.mu.mem.approximateMemoryUsage())
	if d.mu.imm != nil {
		m.MemTableSize += uint64(d.mu.imm.approximateMemoryUsage())
	}
	v := d.mu.versions.currentVersion()
	for level, files := range v.files {
		lm := &m.Levels[level]
		lm.NumFiles = int64(len(files))
		for _, f := range files {
			lm.Size += uint64(f.size)
		}
		lm.Score = v.levelScore(level)
	}
	m.Compactions.Count = d.mu.compactionCount
	m.Compactions.BytesIn = d.mu.compactionBytesIn
	m.Compactions.BytesWritten = d.mu.compactionBytesWritten
	m.Flushes = d.mu.flushCount
	d.mu.Unlock()

	if bc := d.opts.cache; bc != nil {
		m.Cache.Size = int64(bc.TotalCharge())
		m.Cache.HitRate = bc.HitRate()
	}
	return m
}

// metricsCollector adapts DB.Metrics to prometheus.Collector (spec §6
// DOMAIN STACK: "a prometheus.Collector adapter"), so an engine can be
// registered directly with a prometheus.Registry.
type metricsCollector struct {
	d *DB

	memTableSize     *prometheus.Desc
	levelFiles       *prometheus.Desc
	levelSize        *prometheus.Desc
	levelScore       *prometheus.Desc
	compactionCount  *prometheus.Desc
	compactionBytes  *prometheus.Desc
	flushCount       *prometheus.Desc
	cacheSize        *prometheus.Desc
	cacheHitRate     *prometheus.Desc
}

// NewPrometheusCollector returns a prometheus.Collector reporting d's
// metrics under the lsmkv_ namespace.
func NewPrometheusCollector(d *DB) prometheus.Collector {
	return &metricsCollector{
		d:               d,
		memTableSize:    prometheus.NewDesc("lsmkv_memtable_bytes", "Total bytes held in the mutable and immutable memtables.", nil, nil),
		levelFiles:      prometheus.NewDesc("lsmkv_level_files", "Number of sorted files in a level.", []string{"level"}, nil),
		levelSize:       prometheus.NewDesc("lsmkv_level_bytes", "Total size in bytes of a level.", []string{"level"}, nil),
		levelScore:      prometheus.NewDesc("lsmkv_level_score", "Compaction score of a level.", []string{"level"}, nil),
		compactionCount: prometheus.NewDesc("lsmkv_compactions_total", "Number of compactions run.", nil, nil),
		compactionBytes: prometheus.NewDesc("lsmkv_compaction_bytes", "Bytes moved by compactions.", []string{"direction"}, nil),
		flushCount:      prometheus.NewDesc("lsmkv_flushes_total", "Number of memtable flushes run.", nil, nil),
		cacheSize:       prometheus.NewDesc("lsmkv_cache_bytes", "Total charge currently held in the sstable reader cache (one per open reader).", nil, nil),
		cacheHitRate:    prometheus.NewDesc("lsmkv_cache_hit_rate", "Sstable reader cache lookup hit rate since open.", nil, nil),
	}
}

func (c *metricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.memTableSize
	ch <- c.levelFiles
	ch <- c.levelSize
	ch <- c.levelScore
	ch <- c.compactionCount
	ch <- c.compactionBytes
	ch <- c.flushCount
	ch <- c.cacheSize
	ch <- c.cacheHitRate
}

func (c *metricsCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.d.Metrics()
	ch <- prometheus.MustNewConstMetric(c.memTableSize, prometheus.GaugeValue, float64(m.MemTableSize))
	for level := range m.Levels {
		lvl := fmt.Sprintf("%d", level)
		ch <- prometheus.MustNewConstMetric(c.levelFiles, prometheus.GaugeValue, float64(m.Levels[level].NumFiles), lvl)
		ch <- prometheus.MustNewConstMetric(c.levelSize, prometheus.GaugeValue, float64(m.Levels[level].Size), lvl)
		ch <- prometheus.MustNewConstMetric(c.levelScore, prometheus.GaugeValue, m.Levels[level].Score, lvl)
	}
	ch <- prometheus.MustNewConstMetric(c.compactionCount, prometheus.CounterValue, float64(m.Compactions.Count))
	ch <- prometheus.MustNewConstMetric(c.compactionBytes, prometheus.CounterValue, float64(m.Compactions.BytesIn), "in")
	ch <- prometheus.MustNewConstMetric(c.compactionBytes, prometheus.CounterValue, float64(m.Compactions.BytesWritten), "written")
	ch <- prometheus.MustNewConstMetric(c.flushCount, prometheus.CounterValue, float64(m.Flushes))
	ch <- prometheus.MustNewConstMetric(c.cacheSize, prometheus.GaugeValue, float64(m.Cache.Size))
	ch <- prometheus.MustNewConstMetric(c.cacheHitRate, prometheus.GaugeValue, m.Cache.HitRate)
}
