// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import "fmt"

// Shape describes the index space of one array: its extents and the
// order its elements are laid out in.
type Shape struct {
	Dims  []int64
	Order Order
}

// Count returns the number of elements in the shape. The shape must
// have been validated; an invalid shape yields 0.
func (s Shape) Count() int64 {
	count, _ := Count(s.Dims)
	return count
}

// Mapping projects linear element indexes of a source array onto
// linear element indexes of a destination array, one Expr per
// destination coordinate. An empty Exprs list is the identity.
//
// A Mapping reuses internal coordinate vectors between calls and is
// not safe for concurrent use.
type Mapping struct {
	source Shape
	dest   Shape
	exprs  []Expr

	sourceIndex []int64
	destIndex   []int64
}

// NewMapping compiles exprs between the source and destination shapes.
// It rejects expression lists that do not have one entry per
// destination dimension or that address a missing source coordinate.
func NewMapping(source Shape, exprs []Expr, dest Shape) (*Mapping, error) {
	if len(exprs) == 0 {
		if len(source.Dims) != len(dest.Dims) {
			return nil, fmt.Errorf("identity mapping between %d and %d dimensions", len(source.Dims), len(dest.Dims))
		}
		exprs = IdentityExprs(len(dest.Dims))
	}
	if len(exprs) != len(dest.Dims) {
		return nil, fmt.Errorf("mapping has %d expressions for %d destination dimensions", len(exprs), len(dest.Dims))
	}
	for i, e := range exprs {
		if e.X < 0 || e.X >= len(source.Dims) {
			return nil, fmt.Errorf("expression %d reads source coordinate %d of %d", i, e.X, len(source.Dims))
		}
	}
	return &Mapping{
		source:      source,
		dest:        dest,
		exprs:       exprs,
		sourceIndex: make([]int64, len(source.Dims)),
		destIndex:   make([]int64, len(dest.Dims)),
	}, nil
}

// Map returns the destination element index for source element n, or
// false when the element does not project into the destination: some
// expression leaves a remainder or lands outside the destination
// extent.
func (m *Mapping) Map(n int64) (int64, bool) {
	Unflatten(m.source.Order, n, m.source.Dims, m.sourceIndex)
	for i, e := range m.exprs {
		q, ok := e.Map(m.sourceIndex[e.X])
		if !ok || q < 0 || q >= m.dest.Dims[i] {
			return 0, false
		}
		m.destIndex[i] = q
	}
	return Flatten(m.dest.Order, m.dest.Dims, m.destIndex), true
}

// Sequential reports whether consecutive source elements land on
// consecutive destination elements, so that a run of source elements
// can be moved as one block. When it does, source element n maps to
// destination element n+shift for every n that maps at all.
//
// The test requires equal dimension counts and orders, X == i,
// C == 0 and A*D == 1 for every expression, and additionally equal
// extents and B == 0 on every dimension but the slowest varying one.
// Without the extra condition a unit-scale mapping can still reorder
// rows, and a batched copy would disagree with the per-element result.
func (m *Mapping) Sequential() (shift int64, ok bool) {
	ndim := len(m.source.Dims)
	if ndim != len(m.dest.Dims) || m.source.Order != m.dest.Order {
		return 0, false
	}
	slowest := m.source.Order.Slowest(ndim)
	for i, e := range m.exprs {
		if e.X != i || e.C != 0 || e.A*e.D != 1 {
			return 0, false
		}
		if i != slowest && (e.B != 0 || m.source.Dims[i] != m.dest.Dims[i]) {
			return 0, false
		}
	}
	// A and D are both 1 or both -1, so the slowest coordinate moves by
	// B/D exactly.
	e := m.exprs[slowest]
	stride := int64(1)
	for i := range m.dest.Dims {
		if i != slowest {
			stride *= m.dest.Dims[i]
		}
	}
	return (e.B / e.D) * stride, true
}
