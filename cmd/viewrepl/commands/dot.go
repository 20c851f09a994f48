// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
)

func dotCommand(s streams) *cli.Command {
	var flags setFlags

	return &cli.Command{
		Name:    "dot",
		Summary: "Render the block graph as Graphviz DOT",
		Description: `Print the block graph of a descriptor in Graphviz DOT syntax. Views
are clusters; ownership edges are solid, destinations dashed and
sources dotted. Replicas are not opened.`,
		Usage: "viewrepl dot [flags]",
		Examples: []cli.Example{
			{
				Description: "Render a descriptor to SVG",
				Command:     "viewrepl dot -d grid.jsonc | dot -Tsvg > grid.svg",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("dot", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			sess, err := flags.loadGraph(s)
			if err != nil {
				return err
			}
			return sess.graph.WriteDot(s.stdout)
		},
	}
}
