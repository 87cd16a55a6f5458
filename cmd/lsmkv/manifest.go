// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var manifestCmd = &cobra.Command{
	Use:   "manifest <dir>",
	Short: "print the current version's per-level file layout",
	Args:  cobra.ExactArgs(1),
	RunE:  runManifest,
}

func runManifest(cmd *cobra.Command, args []string) error {
	d, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	m := d.Metrics()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"level", "files", "size", "score"})
	for level, lm := range m.Levels {
		table.Append([]string{
			fmt.Sprintf("%d", level),
			fmt.Sprintf("%d", lm.NumFiles),
			fmt.Sprintf("%d", lm.Size),
			fmt.Sprintf("%.2f", lm.Score),
		})
	}
	table.Render()
	return nil
}
