// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
	"github.com/bureau-foundation/viewrepl/lib/digest"
	"github.com/bureau-foundation/viewrepl/lib/viewset"
)

func digestCommand(s streams) *cli.Command {
	var (
		flags  setFlags
		expect string
		short  bool
		jobs   int
	)

	return &cli.Command{
		Name:    "digest",
		Summary: "Print keyed BLAKE3 digests of views",
		Description: `Digest the named views, or every view when none are named, and print
one "<digest>  <view>" line each. An unmaterialized view that reads a
replica back in the source's layout digests equal to the source once
replication has converged.

With --expect, exactly one view is digested and the command exits 1
when its digest differs.`,
		Usage: "viewrepl digest [flags] [view...]",
		Examples: []cli.Example{
			{
				Description: "Check that the read-back view matches the source",
				Command:     "viewrepl digest -d grid.jsonc grid readback",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("digest", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&expect, "expect", "", "expected hex digest of the single named view")
			flagSet.BoolVar(&short, "short", false, "print abbreviated digests")
			flagSet.IntVar(&jobs, "jobs", runtime.GOMAXPROCS(0), "views digested concurrently")
			return flagSet
		},
		Run: func(args []string) error {
			var want digest.Hash
			if expect != "" {
				if len(args) != 1 {
					return fmt.Errorf("--expect needs exactly one view name")
				}
				parsed, err := digest.ParseHash(expect)
				if err != nil {
					return fmt.Errorf("--expect: %w", err)
				}
				want = parsed
			}

			sess, err := flags.open(s)
			if err != nil {
				return err
			}
			defer sess.Close()

			files := sess.set.Files()
			if len(args) > 0 {
				files = make([]*viewset.File, 0, len(args))
				for _, name := range args {
					f, err := sess.file(name)
					if err != nil {
						return err
					}
					files = append(files, f)
				}
			}

			// Views are digested concurrently and reported in order.
			hashes := make([]digest.Hash, len(files))
			var group errgroup.Group
			group.SetLimit(max(jobs, 1))
			for i, f := range files {
				group.Go(func() error {
					hash, err := digest.Sum(f, f.Size())
					if err != nil {
						return fmt.Errorf("digesting view %q: %w", f.Name(), err)
					}
					hashes[i] = hash
					return nil
				})
			}
			if err := group.Wait(); err != nil {
				return err
			}

			for i, f := range files {
				text := hashes[i].String()
				if short {
					text = hashes[i].Short()
				}
				fmt.Fprintf(s.stdout, "%s  %s\n", text, f.Name())
			}
			if expect != "" && hashes[0] != want {
				fmt.Fprintf(s.stderr, "digest mismatch for %s: expected %s\n", files[0].Name(), want)
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
