// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package viewfs presents the views of a ViewSet as regular files in a
// FUSE directory. Reading a file reads the view; writing a file writes
// the view and replicates the bytes to every destination, exactly as
// File.WriteAt does.
package viewfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/bureau-foundation/viewrepl/lib/viewset"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the views appear. It is
	// created if it does not exist.
	Mountpoint string

	// Set provides the views. The caller keeps ownership and closes it
	// after unmounting.
	Set *viewset.ViewSet

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives I/O failures. If nil, errors go to stderr.
	Logger *slog.Logger
}

// Mount mounts the view directory at the configured mountpoint. The
// caller must call Unmount on the returned Server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Set == nil {
		return nil, fmt.Errorf("view set is required")
	}
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &rootNode{options: &options}

	// Views change behind the kernel's back whenever another view
	// replicates into them, so attributes are cached briefly and file
	// contents not at all (see Open).
	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "viewrepl-" + options.Set.ID(),
			Name:       "viewrepl",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("view filesystem mounted",
		"mountpoint", options.Mountpoint,
		"views", len(options.Set.Files()),
	)
	return server, nil
}

// rootNode is the mount root. It holds one file per view.
type rootNode struct {
	gofuse.Inode
	options *Options
}

var _ gofuse.InodeEmbedder = (*rootNode)(nil)
var _ gofuse.NodeOnAdder = (*rootNode)(nil)

func (r *rootNode) OnAdd(ctx context.Context) {
	for _, file := range r.options.Set.Files() {
		child := r.NewPersistentInode(ctx, &viewNode{options: r.options, file: file},
			gofuse.StableAttr{Mode: syscall.S_IFREG})
		r.AddChild(file.Name(), child, true)
	}
}

// viewNode is one view presented as a fixed-size regular file.
type viewNode struct {
	gofuse.Inode
	options *Options
	file    *viewset.File
}

var _ gofuse.InodeEmbedder = (*viewNode)(nil)
var _ gofuse.NodeGetattrer = (*viewNode)(nil)
var _ gofuse.NodeSetattrer = (*viewNode)(nil)
var _ gofuse.NodeOpener = (*viewNode)(nil)
var _ gofuse.NodeReader = (*viewNode)(nil)
var _ gofuse.NodeWriter = (*viewNode)(nil)
var _ gofuse.NodeFsyncer = (*viewNode)(nil)

func (v *viewNode) mode() uint32 {
	if v.file.Readonly() {
		return syscall.S_IFREG | 0o444
	}
	return syscall.S_IFREG | 0o644
}

func (v *viewNode) fillAttr(out *fuse.AttrOut) {
	out.Mode = v.mode()
	out.Size = uint64(v.file.Size())
	out.Blocks = (out.Size + 511) / 512
	out.Blksize = 65536
}

func (v *viewNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	v.fillAttr(out)
	return 0
}

// Setattr accepts truncation only to the current size: views have a
// fixed size derived from their blocks.
func (v *viewNode) Setattr(_ context.Context, _ gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if v.file.Readonly() {
			return syscall.EROFS
		}
		if size != uint64(v.file.Size()) {
			return syscall.EINVAL
		}
	}
	v.fillAttr(out)
	return 0
}

func (v *viewNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 && v.file.Readonly() {
		return nil, 0, syscall.EROFS
	}
	// Direct I/O bypasses the page cache, which cannot see
	// replication into this view from other views.
	return nil, fuse.FOPEN_DIRECT_IO, 0
}

func (v *viewNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n, err := v.file.ReadAt(dest, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, v.errno("read", off, err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (v *viewNode) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n, err := v.file.WriteAt(data, off)
	if err != nil {
		return 0, v.errno("write", off, err)
	}
	return uint32(n), 0
}

func (v *viewNode) Fsync(ctx context.Context, f gofuse.FileHandle, flags uint32) syscall.Errno {
	if err := v.options.Set.Sync(); err != nil {
		return v.errno("fsync", 0, err)
	}
	return 0
}

// errno maps an engine error to the errno reported to the caller.
// Unexpected failures are logged since the errno loses their detail.
func (v *viewNode) errno(op string, off int64, err error) syscall.Errno {
	switch {
	case errors.Is(err, viewset.ErrOutOfRange):
		return syscall.EINVAL
	case errors.Is(err, viewset.ErrReadOnly):
		return syscall.EROFS
	}
	v.options.Logger.Error("view I/O failed",
		"op", op,
		"view", v.file.Name(),
		"offset", off,
		"error", err,
	)
	return syscall.EIO
}
