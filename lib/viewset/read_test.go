// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"bytes"
	"errors"
	"testing"

	"github.com/bureau-foundation/viewrepl/lib/layout"
	"github.com/bureau-foundation/viewrepl/lib/testutil"
)

// sourcedGraph builds a materialized view P holding a 4x5 array of
// 2-byte elements and an unmaterialized view U reading its array from
// P through exprs with the given extents.
func sourcedGraph(t *testing.T, dims []int64, exprs []layout.Expr, order layout.Order) *Graph {
	t.Helper()
	b := NewBuilder()
	r := b.AddReplica("primary", "primary")
	p := b.AddView(View{Name: "P", Replica: r})
	source := b.AppendArray(p, []int64{4, 5}, b.Scalar(p, 2))
	u := b.AddView(View{Name: "U", Order: order})
	derived := b.AppendArray(u, dims, b.Scalar(u, 2))
	b.SetSource(derived, Dest{Exprs: exprs, Target: source})
	return mustBuild(t, b)
}

func TestReadTransposed(t *testing.T) {
	g := sourcedGraph(t, []int64{5, 4}, []layout.Expr{layout.Identity(1), layout.Identity(0)}, 0)
	s := openSet(t, g, Options{})
	mustWrite(t, mustFile(t, s, "P"), testutil.Pattern(40, 0), 0)

	// U(i, j) = P(j, i); P(j, i) holds bytes 2*(5j+i) and 2*(5j+i)+1.
	want := make([]byte, 0, 40)
	for i := range 5 {
		for j := range 4 {
			n := byte(2 * (5*j + i))
			want = append(want, n, n+1)
		}
	}
	u := mustFile(t, s, "U")
	testutil.RequireBytes(t, mustRead(t, u, 40, 0), want, "transposed read")

	// Unaligned windows must agree with the full read.
	for off := int64(0); off < 40; off += 3 {
		n := min(7, 40-off)
		testutil.RequireBytes(t, mustRead(t, u, int(n), off), want[off:off+n], "window at %d", off)
	}
}

func TestReadOrderConversion(t *testing.T) {
	// Same extents and identity expressions, but U is row-minor: U's
	// linear element k = i + 4j reads P(i, j) at 5i + j.
	g := sourcedGraph(t, []int64{4, 5}, layout.IdentityExprs(2), layout.RowMinor)
	s := openSet(t, g, Options{})
	mustWrite(t, mustFile(t, s, "P"), testutil.Pattern(40, 0), 0)

	want := make([]byte, 0, 40)
	for j := range 5 {
		for i := range 4 {
			n := byte(2 * (5*i + j))
			want = append(want, n, n+1)
		}
	}
	testutil.RequireBytes(t, mustRead(t, mustFile(t, s, "U"), 40, 0), want, "row-minor read")
}

func TestReadMappingFault(t *testing.T) {
	// U has more rows than P; rows 4 and 5 have no counterpart.
	g := sourcedGraph(t, []int64{6, 5}, layout.IdentityExprs(2), 0)
	s := openSet(t, g, Options{})
	mustWrite(t, mustFile(t, s, "P"), testutil.Pattern(40, 0), 0)
	u := mustFile(t, s, "U")

	testutil.RequireBytes(t, mustRead(t, u, 40, 0), testutil.Pattern(40, 0), "mapped rows")
	if _, err := u.ReadAt(make([]byte, 4), 38); !errors.Is(err, ErrMappingFault) {
		t.Errorf("expected ErrMappingFault reading an unmapped element, got %v", err)
	}
}

func TestReadSequentialMatchesPerElement(t *testing.T) {
	// Row shift: U row i reads P row i+1.
	exprs := []layout.Expr{{A: 1, B: 1, D: 1}, layout.Identity(1)}
	read := func(perElement bool) []byte {
		g := sourcedGraph(t, []int64{3, 5}, exprs, 0)
		s := openSet(t, g, Options{ScratchSize: 6})
		s.perElementOnly = perElement
		mustWrite(t, mustFile(t, s, "P"), testutil.Pattern(40, 0), 0)
		u := mustFile(t, s, "U")
		out := make([]byte, 0, 30)
		for off := int64(0); off < 30; off += 7 {
			out = append(out, mustRead(t, u, int(min(7, 30-off)), off)...)
		}
		return out
	}
	batched := read(false)
	testutil.RequireBytes(t, batched, read(true), "batched and per-element reads")
	testutil.RequireBytes(t, batched, testutil.Pattern(30, 10), "shifted rows")
}

func TestReadChainAndTuple(t *testing.T) {
	b := NewBuilder()
	r := b.AddReplica("primary", "primary")
	p := b.AddView(View{Name: "P", Replica: r})
	pScalar := b.AppendScalar(p, 3)
	pTuple := b.AppendTuple(p, b.Scalar(p, 2), b.Scalar(p, 4))
	pArray := b.AppendArray(p, []int64{6}, b.Scalar(p, 1))

	u := b.AddView(View{Name: "U"})
	uScalar := b.AppendScalar(u, 3)
	uTuple := b.AppendTuple(u, b.Scalar(u, 2), b.Scalar(u, 4))
	uArray := b.AppendArray(u, []int64{3}, b.Scalar(u, 1))
	b.SetSource(uScalar, Dest{Target: pScalar})
	b.SetSource(uTuple, Dest{Target: pTuple})
	// Every other element, reversed.
	b.SetSource(uArray, Dest{Exprs: []layout.Expr{{A: -2, B: 5, D: 1}}, Target: pArray})

	// W reads its array from U, which itself reads from P.
	w := b.AddView(View{Name: "W"})
	wArray := b.AppendArray(w, []int64{3}, b.Scalar(w, 1))
	b.SetSource(wArray, Dest{Exprs: layout.IdentityExprs(1), Target: uArray})

	s := openSet(t, mustBuild(t, b), Options{})
	mustWrite(t, mustFile(t, s, "P"), []byte{
		1, 2, 3, // scalar
		4, 5, 6, 7, 8, 9, // tuple
		10, 11, 12, 13, 14, 15, // array
	}, 0)

	testutil.RequireBytes(t, mustRead(t, mustFile(t, s, "U"), 12, 0),
		[]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 15, 13, 11}, "derived view")
	testutil.RequireBytes(t, mustRead(t, mustFile(t, s, "U"), 3, 4),
		[]byte{5, 6, 7}, "tuple window")
	testutil.RequireBytes(t, mustRead(t, mustFile(t, s, "W"), 3, 0),
		[]byte{15, 13, 11}, "two-level source chain")
}

func TestReadWithoutSource(t *testing.T) {
	b := NewBuilder()
	u := b.AddView(View{Name: "U"})
	b.AppendScalar(u, 4)
	s := openSet(t, mustBuild(t, b), Options{})
	if _, err := mustFile(t, s, "U").ReadAt(make([]byte, 4), 0); !errors.Is(err, ErrMappingFault) {
		t.Errorf("expected ErrMappingFault, got %v", err)
	}
}

func TestReadTupleThroughConnector(t *testing.T) {
	b := NewBuilder()
	r := b.AddReplica("primary", "primary")
	p := b.AddView(View{Name: "P", Replica: r})
	pTuple := b.AppendTuple(p, b.Scalar(p, 2), b.Scalar(p, 4))

	u := b.AddView(View{Name: "U"})
	uB, uA := b.Scalar(u, 4), b.Scalar(u, 2)
	uTuple := b.AppendTuple(u, uB, uA)

	// The connector has P's field layout and says where each field
	// lands in U.
	cA, cB := b.Scalar(u, 2), b.Scalar(u, 4)
	connector := b.Tuple(u, cA, cB)
	b.AddDest(cA, Dest{Target: uA})
	b.AddDest(cB, Dest{Target: uB})
	b.SetSource(uTuple, Dest{Target: pTuple, Element: connector})

	s := openSet(t, mustBuild(t, b), Options{})
	mustWrite(t, mustFile(t, s, "P"), []byte{1, 2, 3, 4, 5, 6}, 0)
	testutil.RequireBytes(t, mustRead(t, mustFile(t, s, "U"), 6, 0), []byte{3, 4, 5, 6, 1, 2}, "reordered through connector")
}

func TestReadWidenedElementIgnoresBuffer(t *testing.T) {
	// U widens P's 2-byte elements to 4 bytes. The upper half of each
	// U element has no source bytes and must read as zero.
	b := NewBuilder()
	r := b.AddReplica("primary", "primary")
	p := b.AddView(View{Name: "P", Replica: r})
	source := b.AppendArray(p, []int64{4}, b.Scalar(p, 2))
	u := b.AddView(View{Name: "U"})
	derived := b.AppendArray(u, []int64{4}, b.Scalar(u, 4))
	b.SetSource(derived, Dest{Exprs: layout.IdentityExprs(1), Target: source})
	s := openSet(t, mustBuild(t, b), Options{})
	mustWrite(t, mustFile(t, s, "P"), testutil.Pattern(8, 0), 0)

	want := []byte{0, 1, 0, 0, 2, 3, 0, 0, 4, 5, 0, 0, 6, 7, 0, 0}
	f := mustFile(t, s, "U")
	tests := []struct {
		name string
		off  int64
		n    int
	}{
		{"aligned", 0, 16},
		{"aligned element", 4, 4},
		{"unaligned start", 1, 15},
		{"unaligned end", 0, 14},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf := bytes.Repeat([]byte{0xff}, test.n)
			got, err := f.ReadAt(buf, test.off)
			if err != nil || got != test.n {
				t.Fatalf("ReadAt(%d bytes at %d) = (%d, %v)", test.n, test.off, got, err)
			}
			testutil.RequireBytes(t, buf, want[test.off:test.off+int64(test.n)], "widened read")
		})
	}
}
