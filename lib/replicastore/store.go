// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replicastore

import (
	"errors"
	"io"
)

// Handle is an open replica. Implementations must allow concurrent
// calls to ReadAt and WriteAt.
type Handle interface {
	io.ReaderAt
	io.WriterAt

	// Sync commits written data to stable storage.
	Sync() error

	// Close releases the handle. Calls after Close fail.
	Close() error
}

// Store opens replicas. size is the number of bytes the view set will
// address in the replica; stores grow smaller replicas to that size
// and leave larger ones untouched.
type Store interface {
	Open(path string, size int64) (Handle, error)
}

// errHandleClosed is returned by every handle operation after Close.
var errHandleClosed = errors.New("replicastore: handle is closed")
