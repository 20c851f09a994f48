// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
)

// ioPieceSize bounds the bytes moved per ReadAt call of "viewrepl
// read".
const ioPieceSize = 1 << 20

func readCommand(s streams) *cli.Command {
	var (
		flags  setFlags
		offset int64
		length int64
		force  bool
	)

	return &cli.Command{
		Name:    "read",
		Summary: "Copy bytes of a view to stdout",
		Description: `Read a byte range of a view and write it to stdout. Unmaterialized
views are assembled from the views they source from, so reading one
shows the bytes as its layout presents them.

The output is binary. It is refused when stdout is a terminal unless
--force is given.`,
		Usage: "viewrepl read [flags] <view>",
		Examples: []cli.Example{
			{
				Description: "Dump the first KiB of the transposed view",
				Command:     "viewrepl read -d grid.jsonc --length 1024 transposed | xxd",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("read", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.Int64Var(&offset, "offset", 0, "byte offset in the view")
			flagSet.Int64Var(&length, "length", -1, "bytes to read (default: to the end of the view)")
			flagSet.BoolVar(&force, "force", false, "write binary output even to a terminal")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one view name, got %d arguments", len(args))
			}
			if offset < 0 {
				return fmt.Errorf("--offset must not be negative")
			}
			if !force && cli.IsTerminal(s.stdout) {
				return fmt.Errorf("refusing to write binary data to a terminal; redirect stdout or pass --force")
			}

			sess, err := flags.open(s)
			if err != nil {
				return err
			}
			defer sess.Close()
			f, err := sess.file(args[0])
			if err != nil {
				return err
			}

			end := f.Size()
			if length >= 0 {
				end = min(end, offset+length)
			}
			buffer := make([]byte, min(max(end-offset, 0), ioPieceSize))
			for position := offset; position < end; {
				piece := buffer[:min(end-position, ioPieceSize)]
				n, err := f.ReadAt(piece, position)
				if n > 0 {
					if _, writeErr := s.stdout.Write(piece[:n]); writeErr != nil {
						return writeErr
					}
					position += int64(n)
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func writeCommand(s streams) *cli.Command {
	var (
		flags  setFlags
		offset int64
	)

	return &cli.Command{
		Name:    "write",
		Summary: "Write stdin or a file into a view and replicate it",
		Description: `Write bytes into a view at --offset and replicate them to every
destination of the blocks they touch. Input comes from the file named
after the view, or stdin when there is none. Bytes past the end of the
view are dropped with a warning.

The command waits for every queued replication task and commits every
replica to stable storage before it exits, so asynchronous views are
consistent on exit. Replication failures make the command fail.`,
		Usage: "viewrepl write [flags] <view> [file]",
		Examples: []cli.Example{
			{
				Description: "Fill a view from a file",
				Command:     "viewrepl write -d grid.jsonc grid data.bin",
			},
			{
				Description: "Patch eight bytes at offset 64",
				Command:     "printf 'ABCDEFGH' | viewrepl write -d grid.jsonc --offset 64 grid",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("write", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.Int64Var(&offset, "offset", 0, "byte offset in the view")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return fmt.Errorf("expected a view name and an optional input file")
			}
			var data []byte
			var err error
			if len(args) == 2 {
				data, err = os.ReadFile(args[1])
			} else {
				data, err = io.ReadAll(s.stdin)
			}
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			sess, err := flags.open(s)
			if err != nil {
				return err
			}
			f, err := sess.file(args[0])
			if err != nil {
				sess.Close()
				return err
			}

			n, err := f.WriteAt(data, offset)
			if err != nil {
				sess.Close()
				return err
			}
			if n < len(data) {
				sess.logger.Warn("input truncated at the end of the view",
					"view", f.Name(),
					"written", n,
					"dropped", len(data)-n,
				)
			}

			// Close drains queued replication before the failure
			// count is final.
			if err := sess.Close(); err != nil {
				return err
			}
			if stats := sess.set.Stats(); stats.Failed > 0 {
				return fmt.Errorf("%d of %d replication tasks failed", stats.Failed, stats.Submitted)
			}
			sess.logger.Info("view written",
				"view", f.Name(),
				"offset", offset,
				"size", humanize.IBytes(uint64(n)),
			)
			return nil
		},
	}
}
