// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/bureau-foundation/viewrepl/lib/clock"
	"github.com/bureau-foundation/viewrepl/lib/replicastore"
	"github.com/bureau-foundation/viewrepl/lib/scheduler"
)

const (
	// DefaultChunkSize bounds the bytes handled by one replication
	// task.
	DefaultChunkSize = 64 << 20

	// DefaultScratchSize bounds the per-destination buffer of the
	// sequential fast path.
	DefaultScratchSize = 1 << 20
)

// Options configures a ViewSet.
type Options struct {
	// Store opens the replicas. Required.
	Store replicastore.Store

	// Workers and QueueDepth size the replication scheduler. Zero
	// selects the scheduler defaults.
	Workers    int
	QueueDepth int

	// ChunkSize is the largest range one replication task covers.
	// Zero selects DefaultChunkSize.
	ChunkSize int64

	// ScratchSize bounds the buffers of batched element transforms.
	// Zero selects DefaultScratchSize.
	ScratchSize int64

	// SyncWrites commits every write-through to stable storage before
	// the write returns.
	SyncWrites bool

	// Logger receives asynchronous replication failures. Nil selects
	// a text logger on stderr at Error level.
	Logger *slog.Logger

	// Clock measures replication task durations. Nil selects the real
	// clock.
	Clock clock.Clock
}

// ViewSet executes reads and writes against a Graph. It owns the
// replica handles and the replication scheduler.
type ViewSet struct {
	graph     *Graph
	id        string
	handles   []replicastore.Handle
	scheduler *scheduler.Scheduler
	logger    *slog.Logger

	chunkSize   int64
	scratchSize int64
	syncWrites  bool

	// perElementOnly disables the sequential fast paths. Tests use it
	// to compare both paths on the same graph.
	perElementOnly bool

	files  []*File
	closed atomic.Bool
}

// Open opens every replica of graph and starts the replication
// scheduler. Each replica is grown to cover the largest view placed
// in it.
func Open(graph *Graph, options Options) (*ViewSet, error) {
	if options.Store == nil {
		return nil, errors.New("viewset: options.Store is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	s := &ViewSet{
		graph:       graph,
		id:          uuid.NewString(),
		logger:      logger,
		chunkSize:   options.ChunkSize,
		scratchSize: options.ScratchSize,
		syncWrites:  options.SyncWrites,
	}
	if s.chunkSize <= 0 {
		s.chunkSize = DefaultChunkSize
	}
	if s.scratchSize <= 0 {
		s.scratchSize = DefaultScratchSize
	}
	s.logger = s.logger.With("view_set", s.id)

	extent := make([]int64, len(graph.replicas))
	for _, v := range graph.views {
		if v.Materialized() {
			extent[v.Replica-1] = max(extent[v.Replica-1], v.Offset+v.size)
		}
	}
	for i, r := range graph.replicas {
		handle, err := options.Store.Open(r.Path, extent[i])
		if err != nil {
			s.closeHandles()
			return nil, fmt.Errorf("opening replica %q: %w", r.Name, err)
		}
		s.handles = append(s.handles, handle)
	}

	s.scheduler = scheduler.New(scheduler.Options{
		Workers:    options.Workers,
		QueueDepth: options.QueueDepth,
		Logger:     s.logger,
		Clock:      options.Clock,
	})

	s.files = make([]*File, len(graph.views))
	for i := range graph.views {
		s.files[i] = &File{set: s, view: &graph.views[i]}
	}
	return s, nil
}

// ID returns the random identifier of this opened view set, used to
// correlate log lines.
func (s *ViewSet) ID() string { return s.id }

// Graph returns the graph the set executes.
func (s *ViewSet) Graph() *Graph { return s.graph }

// File returns the view called name.
func (s *ViewSet) File(name string) (*File, bool) {
	v, ok := s.graph.Lookup(name)
	if !ok {
		return nil, false
	}
	return s.files[v.ID-1], true
}

// Files returns one File per view, in view order.
func (s *ViewSet) Files() []*File { return s.files }

// Default returns the fallback view configured for f, if any.
func (s *ViewSet) Default(f *File) (*File, bool) {
	if f.view.Default == 0 {
		return nil, false
	}
	return s.files[f.view.Default-1], true
}

// Stats reports the replication scheduler counters.
func (s *ViewSet) Stats() scheduler.Stats { return s.scheduler.Stats() }

// Sync waits for every dispatched replication task and then commits
// all replicas to stable storage.
func (s *ViewSet) Sync() error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.scheduler.Flush()
	var errs []error
	for i, handle := range s.handles {
		if err := handle.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("syncing replica %q: %w", s.graph.replicas[i].Name, err))
		}
	}
	return errors.Join(errs...)
}

// Close drains the replication scheduler, then syncs and closes every
// replica. Writes issued after Close fail with ErrClosed.
func (s *ViewSet) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.scheduler.Close()
	stats := s.scheduler.Stats()
	s.logger.Debug("view set closed",
		"tasks", stats.Completed,
		"failed", stats.Failed,
		"busy", stats.Busy,
	)
	var errs []error
	for i, handle := range s.handles {
		if err := handle.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("syncing replica %q: %w", s.graph.replicas[i].Name, err))
		}
	}
	if err := s.closeHandles(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeHandles closes every replica handle. The slice itself stays in
// place: I/O that raced past the closed check reaches a closed handle
// and fails with a storage fault instead of indexing a nil slice.
func (s *ViewSet) closeHandles() error {
	var errs []error
	for i, handle := range s.handles {
		if err := handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing replica %q: %w", s.graph.replicas[i].Name, err))
		}
	}
	return errors.Join(errs...)
}
