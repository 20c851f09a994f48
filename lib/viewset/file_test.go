// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/bureau-foundation/viewrepl/lib/testutil"
)

// mixedView builds a materialized view of a scalar, an array of tuples
// and a trailing scalar: 5 + 10*6 + 3 = 68 bytes.
func mixedView(flags ViewFlags) *Builder {
	b := NewBuilder()
	r := b.AddReplica("primary", "primary")
	v := b.AddView(View{Name: "mixed", Replica: r, Flags: flags})
	b.AppendScalar(v, 5)
	b.AppendArray(v, []int64{10}, b.Tuple(v, b.Scalar(v, 2), b.Scalar(v, 4)))
	b.AppendScalar(v, 3)
	return b
}

func TestMaterializedRoundTrip(t *testing.T) {
	s := openSet(t, mustBuild(t, mixedView(0)), Options{})
	f := mustFile(t, s, "mixed")
	if f.Size() != 68 {
		t.Fatalf("expected size 68, got %d", f.Size())
	}

	random := rand.New(rand.NewPCG(1, 2))
	shadow := make([]byte, f.Size())
	for range 200 {
		off := random.Int64N(f.Size())
		n := 1 + random.Int64N(f.Size()-off)
		data := make([]byte, n)
		for i := range data {
			data[i] = byte(random.Uint32())
		}
		mustWrite(t, f, data, off)
		copy(shadow[off:], data)

		testutil.RequireBytes(t, mustRead(t, f, int(n), off), data, "read back %d bytes at %d", n, off)
	}
	testutil.RequireBytes(t, mustRead(t, f, len(shadow), 0), shadow, "full view")
}

func TestSearchStart(t *testing.T) {
	s := openSet(t, mustBuild(t, mixedView(0)), Options{})
	f := mustFile(t, s, "mixed")

	tests := []struct {
		offset int64
		want   int
	}{
		{0, 0},
		{4, 0},
		{5, 1},
		{6, 1},
		{64, 1},
		{65, 2},
		{67, 2},
		{500, 2},
	}
	for _, test := range tests {
		if got := f.searchStart(test.offset); got != test.want {
			t.Errorf("searchStart(%d) = %d, expected %d", test.offset, got, test.want)
		}
	}
}

func TestRangeHandling(t *testing.T) {
	s := openSet(t, mustBuild(t, mixedView(0)), Options{})
	f := mustFile(t, s, "mixed")

	if _, err := f.ReadAt(make([]byte, 4), -1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("negative read offset: expected ErrOutOfRange, got %v", err)
	}
	if n, err := f.ReadAt(make([]byte, 4), 68); n != 0 || err != io.EOF {
		t.Errorf("read at end: expected 0, io.EOF; got %d, %v", n, err)
	}
	if n, err := f.ReadAt(make([]byte, 10), 60); n != 8 || err != io.EOF {
		t.Errorf("read across end: expected 8, io.EOF; got %d, %v", n, err)
	}
	if _, err := f.WriteAt([]byte{1}, 69); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("write past end: expected ErrOutOfRange, got %v", err)
	}
	if n, err := f.WriteAt([]byte{1, 2, 3, 4}, 66); n != 2 || err != nil {
		t.Errorf("write across end: expected 2, nil; got %d, %v", n, err)
	}
	if n, err := f.WriteAt([]byte{1}, 68); n != 0 || err != nil {
		t.Errorf("write at end: expected 0, nil; got %d, %v", n, err)
	}
}

func TestReadonlyView(t *testing.T) {
	s := openSet(t, mustBuild(t, mixedView(Readonly)), Options{})
	f := mustFile(t, s, "mixed")
	if !f.Readonly() {
		t.Fatal("expected readonly view")
	}
	if _, err := f.WriteAt([]byte{1}, 0); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	mustRead(t, f, 68, 0)
}

func TestClosedSet(t *testing.T) {
	g := mustBuild(t, mixedView(0))
	s := openSet(t, g, Options{})
	f := mustFile(t, s, "mixed")
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := f.WriteAt([]byte{1}, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("write after close: expected ErrClosed, got %v", err)
	}
	if _, err := f.ReadAt(make([]byte, 1), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("read after close: expected ErrClosed, got %v", err)
	}
	if err := s.Sync(); !errors.Is(err, ErrClosed) {
		t.Errorf("sync after close: expected ErrClosed, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSyncWrites(t *testing.T) {
	s := openSet(t, mustBuild(t, mixedView(0)), Options{SyncWrites: true})
	f := mustFile(t, s, "mixed")
	mustWrite(t, f, testutil.Pattern(68, 3), 0)
	testutil.RequireBytes(t, mustRead(t, f, 68, 0), testutil.Pattern(68, 3))
}

func TestFaultMessage(t *testing.T) {
	err := &Fault{Op: "read", View: "grid", Block: 3, Offset: 40, Kind: ErrMappingFault, Err: errNoSource}
	want := "read grid block 3 at 40: viewset: element does not map: block has no source"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
	if !errors.Is(err, ErrMappingFault) || !errors.Is(err, errNoSource) {
		t.Error("Fault must unwrap to both its kind and its cause")
	}
}
