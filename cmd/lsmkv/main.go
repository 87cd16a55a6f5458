// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Command lsmkv is a small introspection and scripting tool for databases
// built with the lsmkv package.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var syncWrites bool

var rootCmd = &cobra.Command{
	Use:   "lsmkv [command] (flags)",
	Short: "lsmkv database introspection tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		getCmd,
		putCmd,
		deleteCmd,
		scanCmd,
		manifestCmd,
		statsCmd,
	)

	for _, cmd := range []*cobra.Command{putCmd, deleteCmd} {
		cmd.Flags().BoolVar(&syncWrites, "sync", false, "sync the WAL before returning")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
