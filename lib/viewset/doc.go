// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package viewset executes reads and writes against a graph of views,
// blocks and replicas.
//
// A view is a named byte array built from top-level blocks. Each block
// is a scalar, an array of an element block, or a tuple of field
// blocks. A view bound to a replica is materialized: its bytes live in
// the replica at the view's offset. An unmaterialized view has no
// bytes of its own; every read is synthesized from the Source of its
// blocks through an index transform.
//
// Blocks carry destinations. A write to a block with destinations is
// copied into each destination block, which may be an array of another
// shape, dimension order or element layout in another replica. Array
// destinations map source element coordinates through one layout.Expr
// per destination coordinate; elements whose mapping leaves a remainder
// are not part of that destination. Replication is a single hop: data
// written into a destination is not replicated further.
//
// The graph is built once with a Builder, validated, and never
// changed. Records reference each other by ID into the graph's arenas.
//
// # Frames
//
// Top-level blocks and the fields of top-level tuples carry offsets
// relative to the start of the view. Array element blocks start at
// zero, and their fields are relative to the element. The engine
// passes a base offset alongside every absolute offset so that a block
// nested in an element resolves against the element being copied.
//
// # Writes
//
// File.WriteAt splits a write touching replicated blocks into chunks
// of at most Options.ChunkSize bytes, cut on element boundaries, and
// runs each chunk on the replication scheduler. Synchronous views (and
// views without a replica, which would otherwise commit nothing before
// returning) wait for every chunk and report the first failure.
// Asynchronous views return after writing through to their own
// replica; later chunk failures are logged and counted in Stats.
//
// ViewSet.Close drains every outstanding chunk before closing the
// replicas.
package viewset
