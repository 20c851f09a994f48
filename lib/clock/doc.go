// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source.
//
// Components that measure durations (the replication scheduler's busy
// time, task latency in logs) accept a Clock instead of calling
// time.Now directly. Production code passes Real(); tests pass Fake()
// and move time forward explicitly with Advance, so that reported
// durations are exact.
package clock
