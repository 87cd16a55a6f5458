// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/lsmkv/lsmkv/internal/base"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <dir> <key>",
	Short: "fetch the value for a key",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	d, err := openDB(args[0])
	if err != nil {
		return err
	}
	defer d.Close()

	value, err := d.Get([]byte(args[1]))
	if errors.Is(err, base.ErrNotFound) {
		return errors.Newf("%s: not found", args[1])
	}
	if err != nil {
		return err
	}
	fmt.Println(string(value))
	return nil
}
