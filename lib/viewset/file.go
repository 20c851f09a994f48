// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"fmt"
	"io"
	"sort"

	"github.com/bureau-foundation/viewrepl/lib/scheduler"
)

// File presents one view as a flat, fixed-size byte range. It
// implements io.ReaderAt and io.WriterAt and is safe for concurrent
// use.
type File struct {
	set  *ViewSet
	view *View
}

// Name returns the view name.
func (f *File) Name() string { return f.view.Name }

// Size returns the view size in bytes.
func (f *File) Size() int64 { return f.view.size }

// View returns the underlying view record.
func (f *File) View() *View { return f.view }

// Readonly reports whether client writes are rejected.
func (f *File) Readonly() bool { return f.view.Flags&Readonly != 0 }

// searchStart returns the index of the top-level block containing off.
// An offset on a block boundary selects the block starting there.
func (f *File) searchStart(off int64) int {
	blocks := f.view.Blocks
	g := f.set.graph
	i := sort.Search(len(blocks), func(i int) bool {
		return g.Block(blocks[i]).Offset > off
	})
	return max(i-1, 0)
}

// ReadAt reads len(p) bytes at off. A read reaching past the end of the
// view returns the available bytes and io.EOF.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	s := f.set
	if s.closed.Load() {
		return 0, ErrClosed
	}
	v := f.view
	if off < 0 {
		return 0, &Fault{Op: "read", View: v.Name, Offset: off, Kind: ErrOutOfRange}
	}
	if off >= v.size {
		return 0, io.EOF
	}
	n := min(int64(len(p)), v.size-off)
	if err := f.read(p[:n], off); err != nil {
		return 0, err
	}
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

func (f *File) read(buf []byte, off int64) error {
	s := f.set
	v := f.view
	if v.Materialized() {
		_, err := s.readReplica(v, buf, off)
		return err
	}
	i := f.searchStart(off)
	for position := int64(0); position < int64(len(buf)); {
		if i >= len(v.Blocks) {
			return &Fault{Op: "read", View: v.Name, Offset: off + position, Kind: ErrNoProgress}
		}
		b := s.graph.Block(v.Blocks[i])
		at := off + position
		part := min(int64(len(buf))-position, b.End()-at)
		n, err := s.read(b, buf[position:position+part], at, b.Offset)
		if err != nil {
			return err
		}
		if n <= 0 {
			return s.fault("read", b, at, ErrNoProgress, nil)
		}
		position += int64(n)
		if at+int64(n) >= b.End() {
			i++
		}
	}
	return nil
}

// WriteAt writes p at off. Data reaching past the end of the view is
// dropped and the accepted count returned.
//
// Ranges touching blocks with destinations are replicated in chunks on
// the scheduler. The write waits for the chunks when the view is
// synchronous or has no replica of its own; otherwise it returns after
// the write-through and replication failures are only logged.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	s := f.set
	if s.closed.Load() {
		return 0, ErrClosed
	}
	v := f.view
	if f.Readonly() {
		return 0, &Fault{Op: "write", View: v.Name, Offset: off, Kind: ErrReadOnly}
	}
	if off < 0 || off > v.size {
		return 0, &Fault{Op: "write", View: v.Name, Offset: off, Kind: ErrOutOfRange,
			Err: fmt.Errorf("view size is %d", v.size)}
	}
	data := p[:min(int64(len(p)), v.size-off)]
	if len(data) == 0 {
		return 0, nil
	}

	if !f.replicates(off, off+int64(len(data))) {
		if !v.Materialized() {
			return 0, &Fault{Op: "write", View: v.Name, Offset: off, Kind: ErrNoProgress,
				Err: fmt.Errorf("view has no replica and no destinations in range")}
		}
		return f.writeThrough(data, off)
	}

	synchronous := v.Flags&Synchronous != 0 || !v.Materialized()
	group := s.scheduler.NewGroup(v.Name)
	dispatchErr := f.dispatch(group, data, off, synchronous)

	n := len(data)
	var writeErr error
	if dispatchErr == nil && v.Materialized() {
		n, writeErr = f.writeThrough(data, off)
	}
	if synchronous {
		if err := group.Wait(); err != nil {
			return 0, err
		}
	}
	if dispatchErr != nil {
		return 0, dispatchErr
	}
	return n, writeErr
}

func (f *File) writeThrough(data []byte, off int64) (int, error) {
	n, err := f.set.writeReplica(f.view, data, off)
	if err != nil {
		return n, err
	}
	if f.set.syncWrites {
		if err := f.set.handles[f.view.Replica-1].Sync(); err != nil {
			return n, &Fault{Op: "sync", View: f.view.Name, Offset: off, Kind: ErrStorageFault, Err: err}
		}
	}
	return n, nil
}

// replicates reports whether any top-level block intersecting
// [start, end) has destinations.
func (f *File) replicates(start, end int64) bool {
	g := f.set.graph
	for i := f.searchStart(start); i < len(f.view.Blocks); i++ {
		b := g.Block(f.view.Blocks[i])
		if b.Offset >= end {
			break
		}
		if len(b.Dests) > 0 {
			return true
		}
	}
	return false
}

// dispatch splits data into chunks and submits one replication task
// per chunk, in offset order. Asynchronous chunks copy their bytes
// because the caller may reuse p as soon as WriteAt returns.
func (f *File) dispatch(group *scheduler.Group, data []byte, off int64, synchronous bool) error {
	end := off + int64(len(data))
	for start := off; start < end; {
		stop, err := f.chunkEnd(start, end)
		if err != nil {
			return err
		}
		chunk := data[start-off : stop-off]
		if !synchronous {
			chunk = append([]byte(nil), chunk...)
		}
		at := start
		if err := group.Go(func() error { return f.replicateRange(chunk, at) }); err != nil {
			return &Fault{Op: "write", View: f.view.Name, Offset: at, Kind: ErrNoProgress, Err: err}
		}
		start = stop
	}
	return nil
}

// chunkEnd returns where the chunk beginning at start ends. A chunk
// stops at the data end when that is within the chunk size; otherwise
// at the start of the block holding the limit, or for arrays at the
// start of the element holding it.
func (f *File) chunkEnd(start, end int64) (int64, error) {
	limit := start + f.set.chunkSize
	if limit >= end {
		return end, nil
	}
	b := f.set.graph.Block(f.view.Blocks[f.searchStart(limit)])
	stop := b.Offset
	if b.Kind == KindArray {
		stop += (limit - b.Offset) / b.ElemSize * b.ElemSize
	}
	if stop <= start {
		return 0, &Fault{Op: "write", View: f.view.Name, Block: b.ID, Offset: start, Kind: ErrNoProgress,
			Err: fmt.Errorf("chunk size %d cannot advance past %d", f.set.chunkSize, start)}
	}
	return stop, nil
}

// replicateRange is the body of one chunk task: it replicates data at
// view offset off through every top-level block it covers.
func (f *File) replicateRange(data []byte, off int64) error {
	s := f.set
	for i := f.searchStart(off); len(data) > 0 && i < len(f.view.Blocks); i++ {
		b := s.graph.Block(f.view.Blocks[i])
		n := min(int64(len(data)), b.End()-off)
		consumed, err := s.replicate(b, data[:n], off, b.Offset)
		if err != nil {
			return err
		}
		if int64(consumed) != n {
			return s.fault("replicate", b, off, ErrNoProgress,
				fmt.Errorf("consumed %d of %d bytes", consumed, n))
		}
		off += n
		data = data[n:]
	}
	if len(data) > 0 {
		return &Fault{Op: "replicate", View: f.view.Name, Offset: off, Kind: ErrNoProgress}
	}
	return nil
}
