// Copyright 2025 The MarioServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Command mariosearch runs one-shot suggestion, resolution, ranking and
// spelling queries against a snapshot, and converts snapshot files.
package main

import (
	"os"

	"github.com/charmbracelet/log"
)

func main() {
	if err := Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
