// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bureau-foundation/viewrepl/lib/layout"
	"github.com/bureau-foundation/viewrepl/lib/replicastore"
	"github.com/bureau-foundation/viewrepl/lib/scheduler"
	"github.com/bureau-foundation/viewrepl/lib/testutil"
	"github.com/bureau-foundation/viewrepl/lib/viewset"
)

// mirrorDescriptor is a primary view of 4x3 two-byte elements
// replicated transposed into a secondary view, with an unmaterialized
// view reading the secondary back in primary order.
const mirrorDescriptor = `{
	// Hand-written descriptors may carry comments.
	"version": 1,
	"replicas": [
		{"name": "primary", "path": "primary.bin"},
		{"name": "secondary", "path": "/abs/secondary.bin"},
	],
	"views": [
		{"name": "V", "replica": "primary", "synchronous": true, "blocks": [2]},
		{"name": "T", "replica": "secondary", "order": "row-minor", "blocks": [4], "readonly": true},
		{"name": "U", "default": "V", "blocks": [6]},
	],
	"blocks": [
		{"id": 1, "kind": "scalar", "view": "V", "offset": 0, "size": 2},
		{"id": 2, "kind": "array", "view": "V", "offset": 0, "dims": [4, 3], "elem": 1,
		 "dests": [{"target": 4, "exprs": [{"a": 1, "d": 1, "x": 1}, {"a": 1, "d": 1, "x": 0}]}]},
		{"id": 3, "kind": "scalar", "view": "T", "offset": 0, "size": 2},
		{"id": 4, "kind": "array", "view": "T", "offset": 0, "dims": [3, 4], "elem": 3},
		/* U reads T back through the inverse transform. */
		{"id": 5, "kind": "scalar", "view": "U", "offset": 0, "size": 2},
		{"id": 6, "kind": "array", "view": "U", "offset": 0, "dims": [4, 3], "elem": 5,
		 "source": {"target": 4, "exprs": [{"a": 1, "d": 1, "x": 1}, {"a": 1, "d": 1, "x": 0}]}},
	],
}`

func mustParseBuild(t *testing.T, data []byte, root string) *viewset.Graph {
	t.Helper()
	document, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	g, err := Build(document, root)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestBuildMirror(t *testing.T) {
	g := mustParseBuild(t, []byte(mirrorDescriptor), "/data")

	if got := g.Replica(1).Path; got != filepath.Join("/data", "primary.bin") {
		t.Errorf("relative replica path resolved to %q", got)
	}
	if got := g.Replica(2).Path; got != "/abs/secondary.bin" {
		t.Errorf("absolute replica path changed to %q", got)
	}
	array := g.Block(2)
	if array.Size != 24 || array.ElemSize != 2 || array.ElemCount != 12 {
		t.Errorf("derived array geometry is wrong: %+v", array)
	}
	transposed, _ := g.Lookup("T")
	if transposed.Order != layout.RowMinor || transposed.Flags&viewset.Readonly == 0 {
		t.Errorf("view T record is wrong: %+v", transposed)
	}
	derived, _ := g.Lookup("U")
	if derived.Materialized() || derived.Default != 1 {
		t.Errorf("view U record is wrong: %+v", derived)
	}

	store := replicastore.NewMemoryStore()
	s, err := viewset.Open(g, viewset.Options{Store: store, Logger: scheduler.Discard()})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	primary, _ := s.File("V")
	pattern := testutil.Pattern(24, 1)
	if _, err := primary.WriteAt(pattern, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	u, _ := s.File("U")
	got := make([]byte, 24)
	if _, err := u.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	testutil.RequireBytes(t, got, pattern, "round trip through transposed replica")
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name       string
		descriptor string
		want       []string
	}{
		{
			name:       "version",
			descriptor: `{"version": 2, "views": [], "blocks": []}`,
			want:       []string{"unsupported descriptor version 2"},
		},
		{
			name: "unknown names",
			descriptor: `{"version": 1,
				"views": [{"name": "V", "replica": "nowhere", "default": "W", "blocks": [1]}],
				"blocks": [{"id": 1, "kind": "scalar", "view": "X", "offset": 0, "size": 4}]}`,
			want: []string{`unknown replica "nowhere"`, `unknown view "W"`, `block 1 references unknown view "X"`},
		},
		{
			name: "ids out of order",
			descriptor: `{"version": 1,
				"views": [{"name": "V", "blocks": [2]}],
				"blocks": [{"id": 2, "kind": "scalar", "view": "V", "offset": 0, "size": 4}]}`,
			want: []string{"block at position 1 has ID 2"},
		},
		{
			name: "unknown kind",
			descriptor: `{"version": 1,
				"views": [{"name": "V", "blocks": [1]}],
				"blocks": [{"id": 1, "kind": "union", "view": "V", "offset": 0}]}`,
			want: []string{`unknown block kind "union"`},
		},
		{
			name: "graph validation",
			descriptor: `{"version": 1,
				"views": [{"name": "V", "blocks": [1]}],
				"blocks": [{"id": 1, "kind": "tuple", "view": "V", "offset": 0, "fields": [1]}]}`,
			want: []string{"owned by block 1"},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			document, err := Parse([]byte(test.descriptor))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			_, err = Build(document, "")
			if err == nil {
				t.Fatal("expected an error")
			}
			for _, want := range test.want {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q does not mention %q", err, want)
				}
			}
		})
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`{"version": 1, "views": [], "blocks": [], "replica": []}`))
	if err == nil || !strings.Contains(err.Error(), "unknown field") {
		t.Errorf("expected unknown field error, got %v", err)
	}
	if _, err := Parse([]byte(`{"version": 1} {}`)); err == nil {
		t.Error("expected trailing data to be rejected")
	}
}

// largeDocument returns a repetitive document that compresses well.
func largeDocument() *Document {
	document := &Document{Version: CurrentVersion}
	document.Replicas = []Replica{{Name: "primary", Path: "primary.bin"}}
	for i := range 200 {
		name := fmt.Sprintf("view-%03d", i)
		id := uint32(i + 1)
		document.Views = append(document.Views, View{Name: name, Replica: "primary", Offset: int64(i) * 8, Order: layout.RowMajor, Blocks: []uint32{id}})
		document.Blocks = append(document.Blocks, Block{ID: id, Kind: "scalar", View: name, Size: 8})
	}
	return document
}

func TestFrameRoundTrip(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			original := largeDocument()
			frame, err := Encode(original, tag)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got, ok := FrameCompression(frame); !ok || got != tag {
				t.Errorf("frame compression is %v (ok %v), expected %v", got, ok, tag)
			}
			decoded, err := Parse(frame)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			again, err := Encode(decoded, CompressionNone)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			reference, _ := Encode(original, CompressionNone)
			if !bytes.Equal(again, reference) {
				t.Error("decoded document does not re-encode to the same bytes")
			}
			if _, err := Build(decoded, t.TempDir()); err != nil {
				t.Errorf("Build: %v", err)
			}
		})
	}
}

func TestFrameFallsBackWhenIncompressible(t *testing.T) {
	frame, err := Encode(&Document{Version: CurrentVersion}, CompressionZstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if tag, _ := FrameCompression(frame); tag != CompressionNone {
		t.Errorf("tiny payload stored with %v", tag)
	}
}

func TestFrameCorruption(t *testing.T) {
	frame, err := Encode(largeDocument(), CompressionLZ4)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tests := map[string][]byte{
		"truncated header":  frame[:4],
		"truncated payload": frame[:len(frame)/2],
		"unknown tag":       append(append([]byte{}, frame[:4]...), append([]byte{9}, frame[5:]...)...),
		"oversized length":  append([]byte("VRSD\x00"), 0xff, 0xff, 0xff, 0xff, 0x7f),
	}
	for name, data := range tests {
		if _, err := Parse(data); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestCompressionTagNames(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil || parsed != tag {
			t.Errorf("ParseCompressionTag(%q) = %v, %v", tag.String(), parsed, err)
		}
	}
	if _, err := ParseCompressionTag("brotli"); err == nil {
		t.Error("expected an error for an unknown tag")
	}
}

func TestFromGraphRoundTrip(t *testing.T) {
	root := "/data"
	g := mustParseBuild(t, []byte(mirrorDescriptor), root)
	document := FromGraph(g, root)
	if document.Replicas[0].Path != "primary.bin" {
		t.Errorf("path under root not made relative: %q", document.Replicas[0].Path)
	}

	text, err := EncodeJSON(document)
	if err != nil {
		t.Fatalf("EncodeJSON: %v", err)
	}
	rebuilt := mustParseBuild(t, text, root)

	var before, after strings.Builder
	if err := g.WriteDot(&before); err != nil {
		t.Fatal(err)
	}
	if err := rebuilt.WriteDot(&after); err != nil {
		t.Fatal(err)
	}
	if before.String() != after.String() {
		t.Errorf("graph changed through export:\n%s\nvs\n%s", before.String(), after.String())
	}
}
