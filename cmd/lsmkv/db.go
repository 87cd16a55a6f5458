// Copyright 2018 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package main

import (
	"github.com/lsmkv/lsmkv"
)

func openDB(dir string) (*lsmkv.DB, error) {
	return lsmkv.Open(dir, &lsmkv.Options{})
}
