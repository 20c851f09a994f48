// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package replicastore

import (
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// FileStore opens replicas as regular files.
type FileStore struct {
	// Mode is the permission used when a replica file is created.
	// Zero selects 0o644.
	Mode uint32
}

// Open opens or creates the replica file at path and grows it to at
// least size bytes.
func (s FileStore) Open(path string, size int64) (Handle, error) {
	if size < 0 {
		return nil, fmt.Errorf("replica size must not be negative, got %d", size)
	}
	mode := s.Mode
	if mode == 0 {
		mode = 0o644
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, mode)
	if err != nil {
		return nil, fmt.Errorf("opening replica %s: %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stating replica %s: %w", path, err)
	}
	if stat.Mode&unix.S_IFMT != unix.S_IFREG {
		unix.Close(fd)
		return nil, fmt.Errorf("replica %s is not a regular file", path)
	}
	if stat.Size < size {
		if err := unix.Ftruncate(fd, size); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("growing replica %s to %d bytes: %w", path, size, err)
		}
	}

	return &fileHandle{fd: fd, path: path}, nil
}

type fileHandle struct {
	mu     sync.RWMutex
	fd     int
	path   string
	closed bool
}

// ReadAt issues a single pread. Reading at or past the end of the file
// returns io.EOF with the bytes that were available.
func (h *fileHandle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, errHandleClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Pread(h.fd, p, off)
	if err != nil {
		return 0, fmt.Errorf("pread %s at %d: %w", h.path, off, err)
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt issues a single pwrite.
func (h *fileHandle) WriteAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, errHandleClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Pwrite(h.fd, p, off)
	if err != nil {
		return 0, fmt.Errorf("pwrite %s at %d: %w", h.path, off, err)
	}
	return n, nil
}

func (h *fileHandle) Sync() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return errHandleClosed
	}
	if err := unix.Fsync(h.fd); err != nil {
		return fmt.Errorf("fsync %s: %w", h.path, err)
	}
	return nil
}

func (h *fileHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	if err := unix.Close(h.fd); err != nil {
		return fmt.Errorf("closing replica %s: %w", h.path, err)
	}
	return nil
}
