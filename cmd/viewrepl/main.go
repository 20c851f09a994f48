// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// viewrepl inspects, reads, writes and mounts the views a replication
// descriptor declares.
package main

import (
	"fmt"
	"os"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/commands"
)

func main() {
	if err := run(); err != nil {
		// Commands that print their own report (like digest --expect)
		// return an error carrying the exit code; don't add an
		// "error:" line for those.
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return commands.Root().Execute(os.Args[1:])
}
