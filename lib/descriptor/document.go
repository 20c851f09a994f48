// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import "github.com/bureau-foundation/viewrepl/lib/layout"

// CurrentVersion is the only descriptor version this package reads
// and writes.
const CurrentVersion = 1

// Document is a whole view-set descriptor. The json tags also name the
// CBOR fields of binary frames.
type Document struct {
	Version  int       `json:"version"`
	Replicas []Replica `json:"replicas,omitempty"`
	Views    []View    `json:"views"`
	Blocks   []Block   `json:"blocks"`
}

// Replica names a backing file. Relative paths are resolved against
// the root passed to Build.
type Replica struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// View is a logical byte array. Replica is empty for unmaterialized
// views.
type View struct {
	Name        string       `json:"name"`
	Replica     string       `json:"replica,omitempty"`
	Offset      int64        `json:"offset,omitempty"`
	Order       layout.Order `json:"order,omitempty"`
	Synchronous bool         `json:"synchronous,omitempty"`
	Readonly    bool         `json:"readonly,omitempty"`
	Default     string       `json:"default,omitempty"`
	Blocks      []uint32     `json:"blocks"`
}

// Block is one node of the layout graph, referencing other blocks by
// ID.
type Block struct {
	ID     uint32 `json:"id"`
	Kind   string `json:"kind"`
	View   string `json:"view"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size,omitempty"`

	Dims   []int64  `json:"dims,omitempty"`
	Elem   uint32   `json:"elem,omitempty"`
	Fields []uint32 `json:"fields,omitempty"`

	Dests  []Dest `json:"dests,omitempty"`
	Source *Dest  `json:"source,omitempty"`
}

// Dest is an index-transformed copy (or, as a Source, read) of a block.
type Dest struct {
	Target  uint32        `json:"target"`
	Element uint32        `json:"element,omitempty"`
	Exprs   []layout.Expr `json:"exprs,omitempty"`
}
