// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
	"github.com/bureau-foundation/viewrepl/lib/codec"
	"github.com/bureau-foundation/viewrepl/lib/descriptor"
)

func convertCommand(s streams) *cli.Command {
	var (
		to          string
		compression string
		check       bool
	)

	return &cli.Command{
		Name:    "convert",
		Summary: "Convert a descriptor between JSONC and the binary frame",
		Description: `Read a descriptor in either form and write it as a binary frame (the
default), as indented JSON, or as the CBOR diagnostic notation of the
frame payload (--to diag). "-" names stdin or stdout.

Frames hold the CBOR encoding of the descriptor, compressed with
--compression (none, lz4 or zstd). Incompressible payloads are stored
uncompressed whatever the flag says.

With --check the descriptor is also built into a block graph, so that a
converted file is known to load.`,
		Usage: "viewrepl convert [flags] <input> <output>",
		Examples: []cli.Example{
			{
				Description: "Compile a hand-written descriptor into a zstd frame",
				Command:     "viewrepl convert --check grid.jsonc grid.vrsd",
			},
			{
				Description: "Print a frame as JSON",
				Command:     "viewrepl convert --to json grid.vrsd -",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("convert", pflag.ContinueOnError)
			flagSet.StringVar(&to, "to", "frame", "output form: frame, json or diag")
			flagSet.StringVar(&compression, "compression", "zstd", "frame compression: none, lz4 or zstd")
			flagSet.BoolVar(&check, "check", false, "build the block graph before writing")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 2 {
				return fmt.Errorf("expected an input and an output path")
			}
			tag, err := descriptor.ParseCompressionTag(compression)
			if err != nil {
				return err
			}

			var data []byte
			if args[0] == "-" {
				data, err = io.ReadAll(s.stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			document, err := descriptor.Parse(data)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if check {
				// Replica paths are only resolved, never opened.
				if _, err := descriptor.Build(document, ""); err != nil {
					return fmt.Errorf("%s: %w", args[0], err)
				}
			}

			var output []byte
			switch to {
			case "frame":
				if args[1] == "-" && cli.IsTerminal(s.stdout) {
					return fmt.Errorf("refusing to write a binary frame to a terminal")
				}
				output, err = descriptor.Encode(document, tag)
			case "json":
				output, err = descriptor.EncodeJSON(document)
			case "diag":
				output, err = diagnose(document)
			default:
				return fmt.Errorf("--to must be frame, json or diag, got %q", to)
			}
			if err != nil {
				return err
			}

			if args[1] == "-" {
				_, err = s.stdout.Write(output)
				return err
			}
			if err := os.WriteFile(args[1], output, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", args[1], err)
			}
			if to == "frame" {
				stored, _ := descriptor.FrameCompression(output)
				fmt.Fprintf(s.stderr, "wrote %s: %d bytes, %s\n", args[1], len(output), stored)
			}
			return nil
		},
	}
}

// diagnose renders the CBOR payload a frame would carry in RFC 8949
// diagnostic notation.
func diagnose(document *descriptor.Document) ([]byte, error) {
	payload, err := codec.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}
	text, err := codec.Diagnose(payload)
	if err != nil {
		return nil, err
	}
	return []byte(text + "\n"), nil
}
