// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/viewrepl/lib/clock"
	"github.com/bureau-foundation/viewrepl/lib/testutil"
)

func TestGroupWaitCollectsFirstError(t *testing.T) {
	s := New(Options{Workers: 4, Logger: Discard()})
	defer s.Close()

	first := errors.New("first")
	group := s.NewGroup("write")
	var ran atomic.Int32
	for i := range 20 {
		err := group.Go(func() error {
			ran.Add(1)
			if i == 7 {
				return first
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Go: %v", err)
		}
	}
	if err := group.Wait(); !errors.Is(err, first) {
		t.Fatalf("expected first error, got %v", err)
	}
	if ran.Load() != 20 {
		t.Errorf("expected 20 tasks to run, got %d", ran.Load())
	}

	stats := s.Stats()
	if stats.Submitted != 20 || stats.Completed != 20 || stats.Failed != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestGroupWaitEmpty(t *testing.T) {
	s := New(Options{Workers: 1})
	defer s.Close()
	if err := s.NewGroup("empty").Wait(); err != nil {
		t.Errorf("expected nil from empty group, got %v", err)
	}
}

func TestCloseDrainsQueuedTasks(t *testing.T) {
	s := New(Options{Workers: 1, QueueDepth: 16, Logger: Discard()})

	release := make(chan struct{})
	started := make(chan struct{})
	var completed atomic.Int32
	group := s.NewGroup("drain")

	if err := group.Go(func() error {
		close(started)
		<-release
		completed.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Go: %v", err)
	}
	testutil.RequireClosed(t, started, 5*time.Second, "first task started")

	for range 10 {
		if err := group.Go(func() error {
			completed.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}

	closed := make(chan struct{})
	go func() {
		s.Close()
		close(closed)
	}()

	// Close must wait for the blocked task and everything behind it.
	select {
	case <-closed:
		t.Fatal("Close returned while tasks were still queued")
	case <-time.After(50 * time.Millisecond): //nolint:realclock verifying Close blocks
	}
	close(release)
	testutil.RequireClosed(t, closed, 5*time.Second, "scheduler closed")

	if completed.Load() != 11 {
		t.Errorf("expected 11 completed tasks after Close, got %d", completed.Load())
	}
	if err := group.Go(func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
	if err := group.Wait(); err != nil {
		t.Errorf("rejected submission must not leave the group waiting: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestFlush(t *testing.T) {
	s := New(Options{Workers: 2})
	defer s.Close()

	var mu sync.Mutex
	var order []int
	for i := range 8 {
		if err := s.NewGroup("flush").Go(func() error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		}); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}
	s.Flush()
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 8 {
		t.Errorf("expected 8 tasks finished after Flush, got %d", len(order))
	}
}

func TestFailuresAreLogged(t *testing.T) {
	var output bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&output, nil))
	s := New(Options{Workers: 1, Logger: logger})

	group := s.NewGroup("view grid")
	group.Go(func() error { return errors.New("disk on fire") })
	group.Wait()
	s.Close()

	logged := output.String()
	for _, want := range []string{"replication task failed", "view grid#1", "disk on fire"} {
		if !strings.Contains(logged, want) {
			t.Errorf("log output missing %q:\n%s", want, logged)
		}
	}
}

func TestPanicBecomesError(t *testing.T) {
	s := New(Options{Workers: 1, Logger: Discard()})
	defer s.Close()

	group := s.NewGroup("panic")
	group.Go(func() error { panic("boom") })
	err := group.Wait()
	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("expected *PanicError, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected panic value in message, got %q", err.Error())
	}
}

func TestBusyTimeUsesClock(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	fake.AutoAdvance(time.Millisecond)
	s := New(Options{Workers: 1, Clock: fake})

	group := s.NewGroup("timed")
	for range 3 {
		group.Go(func() error { return nil })
	}
	group.Wait()
	s.Close()

	if busy := s.Stats().Busy; busy != 3*time.Millisecond {
		t.Errorf("expected 3ms busy, got %v", busy)
	}
}

func TestWorkersRunConcurrently(t *testing.T) {
	s := New(Options{Workers: 2, Logger: Discard()})
	defer s.Close()

	entered := make(chan int)
	release := make(chan struct{})
	group := s.NewGroup("pair")
	for i := range 2 {
		if err := group.Go(func() error {
			entered <- i
			<-release
			return nil
		}); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}

	seen := map[int]bool{}
	for range 2 {
		seen[testutil.RequireReceive(t, entered, 5*time.Second, "both tasks running at once")] = true
	}
	close(release)
	if err := group.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !seen[0] || !seen[1] {
		t.Errorf("expected both tasks to start, saw %v", seen)
	}
}
