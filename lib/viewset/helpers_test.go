// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"sync"
	"testing"

	"github.com/bureau-foundation/viewrepl/lib/replicastore"
	"github.com/bureau-foundation/viewrepl/lib/scheduler"
)

func mustBuild(t *testing.T, b *Builder) *Graph {
	t.Helper()
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func openSet(t *testing.T, g *Graph, options Options) *ViewSet {
	t.Helper()
	if options.Store == nil {
		options.Store = replicastore.NewMemoryStore()
	}
	if options.Logger == nil {
		options.Logger = scheduler.Discard()
	}
	s, err := Open(g, options)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustFile(t *testing.T, s *ViewSet, name string) *File {
	t.Helper()
	f, ok := s.File(name)
	if !ok {
		t.Fatalf("view %q not found", name)
	}
	return f
}

func mustWrite(t *testing.T, f *File, data []byte, off int64) {
	t.Helper()
	n, err := f.WriteAt(data, off)
	if err != nil {
		t.Fatalf("WriteAt(%s, %d bytes at %d): %v", f.Name(), len(data), off, err)
	}
	if n != len(data) {
		t.Fatalf("WriteAt(%s) accepted %d of %d bytes", f.Name(), n, len(data))
	}
}

func mustRead(t *testing.T, f *File, n int, off int64) []byte {
	t.Helper()
	buf := make([]byte, n)
	got, err := f.ReadAt(buf, off)
	if err != nil {
		t.Fatalf("ReadAt(%s, %d bytes at %d): %v", f.Name(), n, off, err)
	}
	if got != n {
		t.Fatalf("ReadAt(%s) returned %d of %d bytes", f.Name(), got, n)
	}
	return buf
}

// faultyStore wraps a MemoryStore and misbehaves on chosen replicas.
type faultyStore struct {
	*replicastore.MemoryStore

	mu          sync.Mutex
	writeErrors map[string]error
	shortWrites map[string]bool
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: replicastore.NewMemoryStore(),
		writeErrors: make(map[string]error),
		shortWrites: make(map[string]bool),
	}
}

func (s *faultyStore) Open(path string, size int64) (replicastore.Handle, error) {
	handle, err := s.MemoryStore.Open(path, size)
	if err != nil {
		return nil, err
	}
	return &faultyHandle{Handle: handle, store: s, path: path}, nil
}

type faultyHandle struct {
	replicastore.Handle
	store *faultyStore
	path  string
}

func (h *faultyHandle) WriteAt(p []byte, off int64) (int, error) {
	h.store.mu.Lock()
	err := h.store.writeErrors[h.path]
	short := h.store.shortWrites[h.path]
	h.store.mu.Unlock()
	if err != nil {
		return 0, err
	}
	if short && len(p) > 1 {
		return h.Handle.WriteAt(p[:len(p)-1], off)
	}
	return h.Handle.WriteAt(p, off)
}

var errDiskFull = errors.New("disk full")
