// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

// Pattern returns n bytes counting up from seed and wrapping at 256.
// Pattern(4000, 0) is the incrementing sequence used by the fan-out
// scenario tests.
func Pattern(n int, seed byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = seed + byte(i)
	}
	return out
}
