// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"github.com/lsmkv/lsmkv"
	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <dir> <key> <value>",
	Short: "set the value for a key",
	Args:  cobra.ExactArgs(3),
	RunE:  runPut,
}

func runPut(cmd *cobra.Command, args []string) error {
	d, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Put([]byte(args[1]), []byte(args[2]), &lsmkv.WriteOptions{Sync: syncWrites})
}
