// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package replicastore provides the positioned I/O capability that
// view sets use to reach their replicas. A Store opens a replica by
// path and returns a Handle supporting concurrent ReadAt and WriteAt
// at independent offsets; there is no shared cursor.
//
// Handles perform exactly one read or write system call per request.
// A short count is returned to the caller unchanged so that the engine
// can report it as a fault instead of silently retrying.
//
// FileStore is the production implementation on top of pread(2) and
// pwrite(2). MemoryStore keeps replicas in process memory for tests.
package replicastore
