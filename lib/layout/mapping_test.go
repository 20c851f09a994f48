// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import "testing"

func mustMapping(t *testing.T, source Shape, exprs []Expr, dest Shape) *Mapping {
	t.Helper()
	m, err := NewMapping(source, exprs, dest)
	if err != nil {
		t.Fatalf("NewMapping: %v", err)
	}
	return m
}

func TestMappingTranspose(t *testing.T) {
	source := Shape{Dims: []int64{2, 3}, Order: RowMajor}
	dest := Shape{Dims: []int64{3, 2}, Order: RowMajor}
	m := mustMapping(t, source, []Expr{Identity(1), Identity(0)}, dest)

	// Source (i, j) at 3i+j lands on destination (j, i) at 2j+i.
	for i := int64(0); i < 2; i++ {
		for j := int64(0); j < 3; j++ {
			got, ok := m.Map(3*i + j)
			if !ok {
				t.Fatalf("(%d, %d) did not map", i, j)
			}
			if want := 2*j + i; got != want {
				t.Errorf("(%d, %d) mapped to %d, expected %d", i, j, got, want)
			}
		}
	}
	if _, ok := m.Sequential(); ok {
		t.Error("transpose must not qualify for the sequential path")
	}
}

func TestMappingSkipsUnmapped(t *testing.T) {
	source := Shape{Dims: []int64{10}, Order: RowMajor}
	dest := Shape{Dims: []int64{4}, Order: RowMajor}
	// Every other element, and only the first eight.
	m := mustMapping(t, source, []Expr{{A: 1, D: 2}}, dest)

	var mapped []int64
	for n := int64(0); n < 10; n++ {
		if dn, ok := m.Map(n); ok {
			mapped = append(mapped, n, dn)
		}
	}
	want := []int64{0, 0, 2, 1, 4, 2, 6, 3}
	if len(mapped) != len(want) {
		t.Fatalf("mapped pairs %v, expected %v", mapped, want)
	}
	for i := range want {
		if mapped[i] != want[i] {
			t.Fatalf("mapped pairs %v, expected %v", mapped, want)
		}
	}
}

func TestMappingSequential(t *testing.T) {
	tests := []struct {
		name      string
		source    Shape
		exprs     []Expr
		dest      Shape
		wantShift int64
		wantOK    bool
	}{
		{
			name:   "identity",
			source: Shape{Dims: []int64{4, 5}, Order: RowMajor},
			dest:   Shape{Dims: []int64{4, 5}, Order: RowMajor},
			wantOK: true,
		},
		{
			name:      "row offset",
			source:    Shape{Dims: []int64{4, 5}, Order: RowMajor},
			exprs:     []Expr{{A: 1, B: 2, D: 1}, Identity(1)},
			dest:      Shape{Dims: []int64{8, 5}, Order: RowMajor},
			wantShift: 10,
			wantOK:    true,
		},
		{
			name:      "row-minor offset on last dimension",
			source:    Shape{Dims: []int64{5, 4}, Order: RowMinor},
			exprs:     []Expr{Identity(0), {A: 1, B: 1, D: 1}},
			dest:      Shape{Dims: []int64{5, 6}, Order: RowMinor},
			wantShift: 5,
			wantOK:    true,
		},
		{
			name:   "column offset reorders",
			source: Shape{Dims: []int64{4, 5}, Order: RowMajor},
			exprs:  []Expr{Identity(0), {A: 1, B: 1, D: 1}},
			dest:   Shape{Dims: []int64{4, 6}, Order: RowMajor},
		},
		{
			name:   "different row width",
			source: Shape{Dims: []int64{4, 5}, Order: RowMajor},
			dest:   Shape{Dims: []int64{4, 6}, Order: RowMajor},
		},
		{
			name:   "order mismatch",
			source: Shape{Dims: []int64{4, 5}, Order: RowMajor},
			dest:   Shape{Dims: []int64{4, 5}, Order: RowMinor},
		},
		{
			name:   "scaled",
			source: Shape{Dims: []int64{8}, Order: RowMajor},
			exprs:  []Expr{{A: 1, D: 2}},
			dest:   Shape{Dims: []int64{4}, Order: RowMajor},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := mustMapping(t, test.source, test.exprs, test.dest)
			shift, ok := m.Sequential()
			if ok != test.wantOK || shift != test.wantShift {
				t.Fatalf("Sequential() = %d, %v; expected %d, %v", shift, ok, test.wantShift, test.wantOK)
			}
			if !ok {
				return
			}
			// The shortcut must agree with per-element mapping.
			for n := int64(0); n < test.source.Count(); n++ {
				dn, mapped := m.Map(n)
				if mapped && dn != n+shift {
					t.Fatalf("element %d maps to %d, sequential shift predicts %d", n, dn, n+shift)
				}
			}
		})
	}
}

func TestNewMappingRejects(t *testing.T) {
	source := Shape{Dims: []int64{4}, Order: RowMajor}
	if _, err := NewMapping(source, nil, Shape{Dims: []int64{2, 2}, Order: RowMajor}); err == nil {
		t.Error("expected identity between different ranks to fail")
	}
	if _, err := NewMapping(source, []Expr{Identity(1)}, Shape{Dims: []int64{4}, Order: RowMajor}); err == nil {
		t.Error("expected out-of-range source coordinate to fail")
	}
	if _, err := NewMapping(source, []Expr{Identity(0), Identity(0)}, Shape{Dims: []int64{4}, Order: RowMajor}); err == nil {
		t.Error("expected expression count mismatch to fail")
	}
}
