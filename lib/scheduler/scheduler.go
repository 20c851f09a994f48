// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/bureau-foundation/viewrepl/lib/clock"
)

// ErrClosed is returned when submitting to a closed scheduler.
var ErrClosed = errors.New("scheduler: closed")

// Options configures a Scheduler.
type Options struct {
	// Workers is the number of concurrent tasks. Zero selects
	// GOMAXPROCS.
	Workers int

	// QueueDepth bounds the number of submitted tasks waiting for a
	// worker. Zero selects four per worker.
	QueueDepth int

	// Logger receives task failures. Nil discards below Error level and
	// writes errors to stderr.
	Logger *slog.Logger

	// Clock measures task run time. Nil selects the real clock.
	Clock clock.Clock
}

// Stats is a snapshot of scheduler counters.
type Stats struct {
	Submitted uint64
	Completed uint64
	Failed    uint64

	// Busy is the total time workers spent running tasks.
	Busy time.Duration
}

// Scheduler is a bounded pool of workers executing submitted tasks.
type Scheduler struct {
	logger *slog.Logger
	clock  clock.Clock

	// submitMu guards the queue against being closed while a
	// submitter is sending on it.
	submitMu sync.RWMutex
	closed   bool
	queue    chan task

	workers sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
	idle    *sync.Cond
	pending int
}

type task struct {
	group *Group
	label string
	run   func() error
}

// New starts a Scheduler with the given options.
func New(options Options) *Scheduler {
	workers := options.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	depth := options.QueueDepth
	if depth <= 0 {
		depth = 4 * workers
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}
	now := options.Clock
	if now == nil {
		now = clock.Real()
	}

	s := &Scheduler{
		logger: logger,
		clock:  now,
		queue:  make(chan task, depth),
	}
	s.idle = sync.NewCond(&s.statsMu)
	s.workers.Add(workers)
	for range workers {
		go s.work()
	}
	return s
}

// Discard returns a logger that drops everything. Tests that provoke
// failures on purpose pass it to keep output clean.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *Scheduler) work() {
	defer s.workers.Done()
	for t := range s.queue {
		s.execute(t)
	}
}

func (s *Scheduler) execute(t task) {
	start := s.clock.Now()
	err := runTask(t.run)
	elapsed := clock.Since(s.clock, start)

	if err != nil {
		s.logger.Error("replication task failed",
			"group", t.group.label,
			"task", t.label,
			"duration", elapsed,
			"error", err,
		)
	}

	s.statsMu.Lock()
	s.stats.Completed++
	s.stats.Busy += elapsed
	if err != nil {
		s.stats.Failed++
	}
	s.pending--
	if s.pending == 0 {
		s.idle.Broadcast()
	}
	s.statsMu.Unlock()

	t.group.finish(err)
}

// runTask converts a panicking task into an error so that one broken
// task cannot take down the worker and leave its group waiting.
func runTask(run func() error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Value: recovered}
		}
	}()
	return run()
}

// PanicError reports a task that panicked.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return "scheduler: task panicked: " + formatValue(e.Value)
}

func formatValue(v any) string {
	switch value := v.(type) {
	case error:
		return value.Error()
	case string:
		return value
	default:
		return slog.AnyValue(v).String()
	}
}

func (s *Scheduler) submit(t task) error {
	s.submitMu.RLock()
	defer s.submitMu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	s.statsMu.Lock()
	s.stats.Submitted++
	s.pending++
	s.statsMu.Unlock()
	s.queue <- t
	return nil
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.stats
}

// Flush blocks until every task submitted so far, and any submitted
// while waiting, has finished.
func (s *Scheduler) Flush() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	for s.pending > 0 {
		s.idle.Wait()
	}
}

// Close stops accepting tasks, runs every queued task to completion
// and waits for the workers to exit. Calling Close more than once is
// harmless.
func (s *Scheduler) Close() error {
	s.submitMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.submitMu.Unlock()
	s.workers.Wait()
	return nil
}
