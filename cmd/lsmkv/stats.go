// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats <dir>",
	Short: "plot per-level file sizes",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	d, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	m := d.Metrics()
	sizes := make([]float64, len(m.Levels))
	for level, lm := range m.Levels {
		sizes[level] = float64(lm.Size)
	}

	fmt.Println(asciigraph.Plot(sizes,
		asciigraph.Caption("bytes per level"),
		asciigraph.Height(10),
	))
	fmt.Printf("memtable: %d bytes, cache: %d readers (%.1f%% hit rate)\n",
		m.MemTableSize, m.Cache.Size, m.Cache.HitRate*100)
	return nil
}
