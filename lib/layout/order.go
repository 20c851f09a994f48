// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import "fmt"

// Order is the convention for flattening a coordinate vector into a
// linear element index.
type Order uint8

const (
	// RowMajor varies the first dimension slowest (C order).
	RowMajor Order = 1

	// RowMinor varies the first dimension fastest (Fortran order).
	RowMinor Order = 2
)

// String returns the descriptor spelling of the order.
func (o Order) String() string {
	switch o {
	case RowMajor:
		return "row-major"
	case RowMinor:
		return "row-minor"
	default:
		return fmt.Sprintf("order(%d)", uint8(o))
	}
}

// Valid reports whether o is one of the defined orders.
func (o Order) Valid() bool {
	return o == RowMajor || o == RowMinor
}

// ParseOrder converts a descriptor spelling back into an Order. The
// empty string selects RowMajor.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "row-major", "":
		return RowMajor, nil
	case "row-minor":
		return RowMinor, nil
	default:
		return 0, fmt.Errorf("unknown element order %q (expected row-major or row-minor)", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Order) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid element order %d", uint8(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Order) UnmarshalText(text []byte) error {
	parsed, err := ParseOrder(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Slowest returns the position of the dimension that varies slowest
// under o for an array of ndim dimensions.
func (o Order) Slowest(ndim int) int {
	if o == RowMinor {
		return ndim - 1
	}
	return 0
}

// Flatten combines the coordinate vector idx into a linear index for
// an array with the given extents. idx and dims must have equal length
// and every coordinate must be within its extent.
func Flatten(order Order, dims, idx []int64) int64 {
	var n int64
	if order == RowMinor {
		for i := len(dims) - 1; i >= 0; i-- {
			n = n*dims[i] + idx[i]
		}
		return n
	}
	for i := range dims {
		n = n*dims[i] + idx[i]
	}
	return n
}

// Unflatten is the inverse of Flatten: it decomposes n into idx, which
// must have the same length as dims.
func Unflatten(order Order, n int64, dims, idx []int64) {
	if order == RowMinor {
		for i := range dims {
			idx[i] = n % dims[i]
			n /= dims[i]
		}
		return
	}
	for i := len(dims) - 1; i >= 0; i-- {
		idx[i] = n % dims[i]
		n /= dims[i]
	}
}

// Count returns the number of elements in an array with the given
// extents, or false if the product overflows int64 or any extent is
// not positive.
func Count(dims []int64) (int64, bool) {
	count := int64(1)
	for _, d := range dims {
		if d <= 0 {
			return 0, false
		}
		product, ok := mul(count, d)
		if !ok {
			return 0, false
		}
		count = product
	}
	return count, true
}
