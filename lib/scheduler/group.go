// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"strconv"
	"sync"
)

// Group tracks the tasks dispatched for one unit of work, typically one
// client write. It is safe for concurrent use.
type Group struct {
	scheduler *Scheduler
	label     string

	mu         sync.Mutex
	done       *sync.Cond
	dispatched int
	completed  int
	err        error
}

// NewGroup returns an empty Group whose failures are logged under
// label.
func (s *Scheduler) NewGroup(label string) *Group {
	g := &Group{scheduler: s, label: label}
	g.done = sync.NewCond(&g.mu)
	return g
}

// Go submits run to the scheduler as part of the group. It blocks while
// the scheduler queue is full and returns ErrClosed if the scheduler
// has been closed, in which case run is not executed.
func (g *Group) Go(run func() error) error {
	g.mu.Lock()
	g.dispatched++
	label := g.label + "#" + strconv.Itoa(g.dispatched)
	g.mu.Unlock()

	if err := g.scheduler.submit(task{group: g, label: label, run: run}); err != nil {
		g.finish(nil)
		return err
	}
	return nil
}

func (g *Group) finish(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed++
	if err != nil && g.err == nil {
		g.err = err
	}
	if g.completed == g.dispatched {
		g.done.Broadcast()
	}
}

// Wait blocks until every task dispatched so far has finished and
// returns the first error any of them reported.
func (g *Group) Wait() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.completed < g.dispatched {
		g.done.Wait()
	}
	return g.err
}

// Err returns the first error recorded so far without waiting.
func (g *Group) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}
