// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package replicastore

import (
	"fmt"
	"io"
	"sync"
)

// MemoryStore keeps replicas in memory, keyed by path. Opening the
// same path twice yields handles onto the same bytes, so a test can
// inspect a replica after the view set that wrote it is closed.
type MemoryStore struct {
	mu       sync.Mutex
	replicas map[string]*memoryReplica
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{replicas: make(map[string]*memoryReplica)}
}

type memoryReplica struct {
	mu   sync.RWMutex
	data []byte
}

// Open returns a handle on the replica at path, creating or growing it
// to size bytes.
func (s *MemoryStore) Open(path string, size int64) (Handle, error) {
	if size < 0 {
		return nil, fmt.Errorf("replica size must not be negative, got %d", size)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	replica, ok := s.replicas[path]
	if !ok {
		replica = &memoryReplica{}
		s.replicas[path] = replica
	}
	replica.mu.Lock()
	if int64(len(replica.data)) < size {
		replica.data = append(replica.data, make([]byte, size-int64(len(replica.data)))...)
	}
	replica.mu.Unlock()
	return &memoryHandle{replica: replica}, nil
}

// Bytes returns a copy of the replica at path, or nil if it was never
// opened.
func (s *MemoryStore) Bytes(path string) []byte {
	s.mu.Lock()
	replica, ok := s.replicas[path]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	replica.mu.RLock()
	defer replica.mu.RUnlock()
	return append([]byte(nil), replica.data...)
}

type memoryHandle struct {
	replica *memoryReplica
	closed  bool
	mu      sync.RWMutex
}

func (h *memoryHandle) ReadAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, errHandleClosed
	}
	h.replica.mu.RLock()
	defer h.replica.mu.RUnlock()
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	if off >= int64(len(h.replica.data)) {
		return 0, io.EOF
	}
	n := copy(p, h.replica.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt grows the replica when writing past its end, like a sparse
// file.
func (h *memoryHandle) WriteAt(p []byte, off int64) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return 0, errHandleClosed
	}
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d", off)
	}
	h.replica.mu.Lock()
	defer h.replica.mu.Unlock()
	if end := off + int64(len(p)); end > int64(len(h.replica.data)) {
		h.replica.data = append(h.replica.data, make([]byte, end-int64(len(h.replica.data)))...)
	}
	return copy(h.replica.data[off:], p), nil
}

func (h *memoryHandle) Sync() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return errHandleClosed
	}
	return nil
}

func (h *memoryHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
