// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"math"
	"testing"
)

func TestEvalEuclidean(t *testing.T) {
	exprs := []Expr{
		Identity(0),
		{A: 3, B: -7, C: 0, D: 4},
		{A: -5, B: 2, C: 0, D: -3},
		{A: 1, B: 0, C: 1, D: 1},
		{A: 2, B: 1, C: -1, D: 9},
	}
	for _, e := range exprs {
		for x := int64(-20); x <= 20; x++ {
			den := e.C*x + e.D
			if den == 0 {
				continue
			}
			q, r := e.Eval(x)
			if e.A*x+e.B != q*den+r {
				t.Fatalf("%s at x=%d: %d != %d*%d + %d", e, x, e.A*x+e.B, q, den, r)
			}
			abs := den
			if abs < 0 {
				abs = -abs
			}
			if r < 0 || r >= abs {
				t.Fatalf("%s at x=%d: remainder %d outside [0, %d)", e, x, r, abs)
			}
		}
	}
}

func TestEvalNegativeInputs(t *testing.T) {
	tests := []struct {
		expr  Expr
		x     int64
		wantQ int64
		wantR int64
	}{
		{Expr{A: 1, D: 2}, -3, -2, 1},
		{Expr{A: 1, D: -2}, -3, 2, 1},
		{Expr{A: 1, D: -2}, 3, -1, 1},
		{Expr{A: 1, D: 2}, -4, -2, 0},
	}
	for _, test := range tests {
		q, r := test.expr.Eval(test.x)
		if q != test.wantQ || r != test.wantR {
			t.Errorf("%s at x=%d: got (%d, %d), expected (%d, %d)", test.expr, test.x, q, r, test.wantQ, test.wantR)
		}
	}
}

func TestMap(t *testing.T) {
	tests := []struct {
		name   string
		expr   Expr
		x      int64
		want   int64
		wantOK bool
	}{
		{"identity", Identity(0), 5, 5, true},
		{"halve even", Expr{A: 1, D: 2}, 6, 3, true},
		{"halve odd", Expr{A: 1, D: 2}, 7, 0, false},
		{"reverse", Expr{A: -1, B: 9, D: 1}, 2, 7, true},
		{"zero denominator", Expr{A: 1, C: 1, D: -3}, 3, 0, false},
		{"overflow", Expr{A: math.MaxInt64, D: 1}, 2, 0, false},
		{"negative exact", Expr{A: 1, B: -10, D: 5}, 0, -2, true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok := test.expr.Map(test.x)
			if ok != test.wantOK || (ok && got != test.want) {
				t.Errorf("Map(%d) = %d, %v; expected %d, %v", test.x, got, ok, test.want, test.wantOK)
			}
		})
	}
}

func TestDenominatorVanishes(t *testing.T) {
	tests := []struct {
		expr   Expr
		extent int64
		want   bool
	}{
		{Identity(0), 10, false},
		{Expr{A: 1}, 10, true},
		{Expr{A: 1, C: 1, D: -3}, 10, true},
		{Expr{A: 1, C: 1, D: -3}, 3, false},
		{Expr{A: 1, C: 2, D: -3}, 10, false},
		{Expr{A: 1, C: -1, D: 4}, 10, true},
	}
	for _, test := range tests {
		if got := test.expr.DenominatorVanishes(test.extent); got != test.want {
			t.Errorf("%s over [0, %d): got %v, expected %v", test.expr, test.extent, got, test.want)
		}
	}
}
