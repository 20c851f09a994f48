// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands builds the viewrepl command tree.
//
// Every command that touches views loads a config (from --config or
// VIEWREPL_CONFIG, falling back to the built-in defaults), parses the
// descriptor it names and opens the replicas through a file store.
// --descriptor overrides the descriptor path so that a config file is
// optional for one-off use.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
	"github.com/bureau-foundation/viewrepl/lib/version"
)

// streams are the standard streams commands read and write. Tests
// substitute buffers.
type streams struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// Root builds and returns the complete viewrepl command tree bound to
// the process's standard streams.
func Root() *cli.Command {
	return newRoot(streams{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr})
}

func newRoot(s streams) *cli.Command {
	return &cli.Command{
		Name: "viewrepl",
		Description: `viewrepl: logical-array replication and layout transforms.

A descriptor declares views over replica files, the arrays, tuples and
scalars each view is made of, and how blocks replicate into other views
through affine index transforms. Writing a view fans the bytes out to
every destination; reading an unmaterialized view assembles it from
the views it sources from.`,
		HelpOutput: s.stderr,
		Subcommands: []*cli.Command{
			inspectCommand(s),
			dotCommand(s),
			readCommand(s),
			writeCommand(s),
			digestCommand(s),
			convertCommand(s),
			mountCommand(s),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(args []string) error {
					fmt.Fprintf(s.stdout, "viewrepl %s\n", version.Full())
					return nil
				},
			},
		},
	}
}
