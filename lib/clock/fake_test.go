// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeAdvance(t *testing.T) {
	c := Fake(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Fatalf("expected %v, got %v", epoch, got)
	}
	c.Advance(3 * time.Second)
	if got := Since(c, epoch); got != 3*time.Second {
		t.Errorf("expected 3s since epoch, got %v", got)
	}
}

func TestFakeAutoAdvance(t *testing.T) {
	c := Fake(epoch)
	c.AutoAdvance(time.Millisecond)
	start := c.Now()
	if got := Since(c, start); got != time.Millisecond {
		t.Errorf("expected one step between reads, got %v", got)
	}
}

func TestReal(t *testing.T) {
	c := Real()
	start := c.Now()
	if Since(c, start) < 0 {
		t.Error("real clock went backwards")
	}
}
