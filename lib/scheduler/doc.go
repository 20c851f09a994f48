// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scheduler runs replication chunk tasks on a bounded worker
// pool.
//
// A Scheduler is an explicit object owned by a view set; there is no
// package-level queue. Submissions go into a bounded channel and block
// when it is full, which throttles writers that outpace the replicas.
//
// Tasks are grouped: a Group collects the tasks dispatched for one
// client write, counts completions (failed tasks count too, so waiters
// never deadlock) and keeps the first error. Synchronous writers call
// Group.Wait; asynchronous writers drop the Group and rely on the
// scheduler to log failures and count them in Stats.
//
// Close refuses further submissions, lets the workers drain every
// queued task and returns when they have exited. A view set closes its
// scheduler before it closes any replica.
package scheduler
