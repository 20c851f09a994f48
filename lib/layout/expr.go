// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"fmt"
	"math"
)

// Expr projects coordinate X of a source index vector onto one
// destination coordinate: q = (A*x+B) / (C*x+D).
type Expr struct {
	A int64 `json:"a"`
	B int64 `json:"b"`
	C int64 `json:"c"`
	D int64 `json:"d"`
	X int   `json:"x"`
}

// Identity returns the expression mapping source coordinate x onto
// itself.
func Identity(x int) Expr {
	return Expr{A: 1, D: 1, X: x}
}

// IdentityExprs returns one identity expression per dimension.
func IdentityExprs(ndim int) []Expr {
	exprs := make([]Expr, ndim)
	for i := range exprs {
		exprs[i] = Identity(i)
	}
	return exprs
}

func (e Expr) String() string {
	return fmt.Sprintf("(%d*x%d%+d)/(%d*x%d%+d)", e.A, e.X, e.B, e.C, e.X, e.D)
}

// Eval computes quotient and remainder of (A*x+B) / (C*x+D) using
// Euclidean division: the remainder is always in [0, |C*x+D|), also
// for negative numerators or denominators. The denominator must be
// nonzero; Map is the checked variant. Arithmetic wraps on overflow.
func (e Expr) Eval(x int64) (q, r int64) {
	num := e.A*x + e.B
	den := e.C*x + e.D
	q, r = num/den, num%den
	if r < 0 {
		if den > 0 {
			q--
			r += den
		} else {
			q++
			r -= den
		}
	}
	return q, r
}

// Map returns the destination coordinate for x, or false when x does
// not project: the denominator is zero, the division leaves a
// remainder, or an intermediate product overflows int64.
func (e Expr) Map(x int64) (int64, bool) {
	ax, ok := mul(e.A, x)
	if !ok {
		return 0, false
	}
	num, ok := add(ax, e.B)
	if !ok {
		return 0, false
	}
	cx, ok := mul(e.C, x)
	if !ok {
		return 0, false
	}
	den, ok := add(cx, e.D)
	if !ok || den == 0 {
		return 0, false
	}
	if den == -1 && num == math.MinInt64 {
		return 0, false
	}
	if num%den != 0 {
		return 0, false
	}
	return num / den, true
}

// DenominatorVanishes reports whether C*x+D is zero for some x in
// [0, extent).
func (e Expr) DenominatorVanishes(extent int64) bool {
	if e.C == 0 {
		return e.D == 0
	}
	if e.D%e.C != 0 {
		return false
	}
	root := -e.D / e.C
	return root >= 0 && root < extent
}

func mul(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	product := a * b
	if product/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return product, true
}

func add(a, b int64) (int64, bool) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, false
	}
	return sum, true
}
