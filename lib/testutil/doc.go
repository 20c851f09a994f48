// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for viewrepl packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that tests
// waiting on worker goroutines do not hang forever when a worker is
// wedged. These are the only place in the test suite where real
// wall-clock timeouts are used.
//
// [Pattern] produces deterministic byte sequences for replication
// tests, and [RequireBytes] compares buffers by first difference.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
