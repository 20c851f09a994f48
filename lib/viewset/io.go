// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"fmt"
	"io"
)

func (s *ViewSet) fault(op string, b *Block, off int64, kind, err error) *Fault {
	return &Fault{
		Op:     op,
		View:   s.graph.View(b.View).Name,
		Block:  b.ID,
		Offset: off,
		Kind:   kind,
		Err:    err,
	}
}

// readReplica reads buf from the replica of materialized view v at
// view offset off.
func (s *ViewSet) readReplica(v *View, buf []byte, off int64) (int, error) {
	n, err := s.handles[v.Replica-1].ReadAt(buf, v.Offset+off)
	if n == len(buf) {
		return n, nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return n, &Fault{Op: "read", View: v.Name, Offset: off, Kind: ErrStorageFault, Err: err}
	}
	return n, &Fault{Op: "read", View: v.Name, Offset: off, Kind: ErrShortIO,
		Err: fmt.Errorf("read %d of %d bytes", n, len(buf))}
}

// writeReplica writes data to the replica of materialized view v at
// view offset off.
func (s *ViewSet) writeReplica(v *View, data []byte, off int64) (int, error) {
	n, err := s.handles[v.Replica-1].WriteAt(data, v.Offset+off)
	if err != nil {
		return n, &Fault{Op: "write", View: v.Name, Offset: off, Kind: ErrStorageFault, Err: err}
	}
	if n != len(data) {
		return n, &Fault{Op: "write", View: v.Name, Offset: off, Kind: ErrShortIO,
			Err: fmt.Errorf("wrote %d of %d bytes", n, len(data))}
	}
	return n, nil
}

// readFull reads exactly len(buf) bytes of block b.
func (s *ViewSet) readFull(b *Block, buf []byte, off, base int64) error {
	n, err := s.read(b, buf, off, base)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return s.fault("read", b, off, ErrShortIO, fmt.Errorf("read %d of %d bytes", n, len(buf)))
	}
	return nil
}
