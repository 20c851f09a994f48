// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
	"github.com/bureau-foundation/viewrepl/lib/viewfs"
)

func mountCommand(s streams) *cli.Command {
	var (
		flags      setFlags
		mountpoint string
		allowOther bool
	)

	return &cli.Command{
		Name:    "mount",
		Summary: "Serve every view as a file in a FUSE directory",
		Description: `Mount a directory holding one regular file per view and serve it until
interrupted. Writing a file replicates the bytes exactly as "viewrepl
write" does; reading an unmaterialized view assembles it on demand.
Readonly views appear with mode 0444.

The mountpoint comes from --mountpoint or mount.mountpoint in the
config. On SIGINT or SIGTERM the directory is unmounted and queued
replication drains before the replicas are closed.`,
		Usage: "viewrepl mount [flags]",
		Examples: []cli.Example{
			{
				Description: "Serve the views of a descriptor under /mnt/views",
				Command:     "viewrepl mount -d grid.jsonc --mountpoint /mnt/views",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("mount", pflag.ContinueOnError)
			flags.register(flagSet)
			flagSet.StringVar(&mountpoint, "mountpoint", "", "directory to mount on (default: mount.mountpoint)")
			flagSet.BoolVar(&allowOther, "allow-other", false, "let other users access the mount")
			return flagSet
		},
		Run: func(args []string) (err error) {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			sess, err := flags.open(s)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := sess.Close(); err == nil {
					err = closeErr
				}
			}()

			options := viewfs.Options{
				Mountpoint: sess.config.Mount.Mountpoint,
				Set:        sess.set,
				AllowOther: sess.config.Mount.AllowOther || allowOther,
				Logger:     sess.logger,
			}
			if mountpoint != "" {
				options.Mountpoint = mountpoint
			}
			if options.Mountpoint == "" {
				return fmt.Errorf("no mountpoint: pass --mountpoint or set mount.mountpoint")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			server, err := viewfs.Mount(options)
			if err != nil {
				return err
			}
			defer func() {
				if err := server.Unmount(); err != nil {
					sess.logger.Error("failed to unmount FUSE filesystem", "error", err)
				} else {
					sess.logger.Info("FUSE filesystem unmounted", "mountpoint", options.Mountpoint)
				}
			}()

			<-ctx.Done()
			sess.logger.Info("shutting down", "cause", context.Cause(ctx))
			return nil
		},
	}
}
