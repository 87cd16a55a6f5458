// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scanStart string
var scanLimit int

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "print key/value pairs in sorted order",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanStart, "start", "", "first key to scan from (inclusive)")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "maximum number of rows to print (0 means unlimited)")
}

func runScan(cmd *cobra.Command, args []string) error {
	d, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	it := d.NewIter()
	defer it.Close()

	if scanStart != "" {
		it.SeekGE([]byte(scanStart))
	} else {
		it.First()
	}

	n := 0
	for ; it.Valid(); it.Next() {
		if scanLimit > 0 && n >= scanLimit {
			break
		}
		fmt.Printf("%s -> %s\n", it.Key(), it.Value())
		n++
	}
	return it.Error()
}
