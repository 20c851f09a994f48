// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
	"github.com/bureau-foundation/viewrepl/lib/viewset"
)

func inspectCommand(s streams) *cli.Command {
	var flags setFlags

	return &cli.Command{
		Name:    "inspect",
		Summary: "List the views, replicas and replication fan-out of a descriptor",
		Description: `Open the view set a descriptor declares and print one line per view:
its replica and offset, size, element order, flags, default view and
how many destinations its blocks replicate into.

Opening the set creates and grows missing replica files, exactly as
any other command that reads or writes views does.`,
		Usage: "viewrepl inspect [flags]",
		Examples: []cli.Example{
			{
				Description: "Inspect the descriptor named in the config",
				Command:     "viewrepl inspect --config viewrepl.yaml",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
			flags.register(flagSet)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			sess, err := flags.open(s)
			if err != nil {
				return err
			}
			defer sess.Close()

			g := sess.graph
			fmt.Fprintf(s.stdout, "view set %s: %d replicas, %d views, %d blocks\n\n",
				sess.set.ID(), len(g.Replicas()), len(g.Views()), len(g.Blocks()))

			tw := tabwriter.NewWriter(s.stdout, 2, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "VIEW\tREPLICA\tOFFSET\tSIZE\tORDER\tFLAGS\tDEFAULT\tDESTS")
			for _, f := range sess.set.Files() {
				v := f.View()
				replica := "-"
				if v.Materialized() {
					replica = g.Replica(v.Replica).Name
				}
				fallback := "-"
				if d, ok := sess.set.Default(f); ok {
					fallback = d.Name()
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%d\n",
					v.Name, replica, v.Offset, humanize.IBytes(uint64(f.Size())),
					v.Order, viewFlags(v.Flags), fallback, destCount(g, v))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			stats := sess.set.Stats()
			fmt.Fprintf(s.stdout, "\nscheduler: %s tasks submitted, %s failed\n",
				humanize.Comma(int64(stats.Submitted)), humanize.Comma(int64(stats.Failed)))
			return nil
		},
	}
}

func viewFlags(flags viewset.ViewFlags) string {
	var names []string
	if flags&viewset.Synchronous != 0 {
		names = append(names, "sync")
	}
	if flags&viewset.Readonly != 0 {
		names = append(names, "readonly")
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

// destCount counts the destinations of the view's top-level blocks.
func destCount(g *viewset.Graph, v *viewset.View) int {
	count := 0
	for _, id := range v.Blocks {
		count += len(g.Block(id).Dests)
	}
	return count
}
