// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/viewrepl/lib/layout"
)

// Builder assembles a Graph. Records can be added verbatim (AddView,
// AddBlock), as the descriptor importer does, or laid out with the
// helpers: Scalar, Array and Tuple create detached layouts at offset
// zero, and Append places a detached layout at the end of a view.
//
// Helper misuse is recorded and reported by Build, so call sites can
// chain helpers without checking each result.
type Builder struct {
	replicas []Replica
	views    []View
	blocks   []Block
	errs     []error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// AddReplica registers a replica and returns its ID.
func (b *Builder) AddReplica(name, path string) ReplicaID {
	id := ReplicaID(len(b.replicas) + 1)
	b.replicas = append(b.replicas, Replica{ID: id, Name: name, Path: path})
	return id
}

// AddView registers a view record. A zero ID is assigned the next
// position; a nonzero ID must equal it. A zero Order selects
// RowMajor. Blocks listed in the record stay attached in that order.
func (b *Builder) AddView(v View) ViewID {
	id := ViewID(len(b.views) + 1)
	if v.ID != 0 && v.ID != id {
		b.fail("view %q has ID %d, expected %d", v.Name, v.ID, id)
	}
	v.ID = id
	if v.Order == 0 {
		v.Order = layout.RowMajor
	}
	v.Blocks = slices.Clone(v.Blocks)
	b.views = append(b.views, v)
	return id
}

// AddBlock registers a block record verbatim, with the same ID rule
// as AddView. The block is not attached to its view's top level.
func (b *Builder) AddBlock(blk Block) BlockID {
	id := BlockID(len(b.blocks) + 1)
	if blk.ID != 0 && blk.ID != id {
		b.fail("block has ID %d, expected %d", blk.ID, id)
	}
	blk.ID = id
	blk.Dims = slices.Clone(blk.Dims)
	blk.Fields = slices.Clone(blk.Fields)
	blk.Dests = slices.Clone(blk.Dests)
	b.blocks = append(b.blocks, blk)
	return id
}

func (b *Builder) block(id BlockID) *Block {
	if id == 0 || int(id) > len(b.blocks) {
		return nil
	}
	return &b.blocks[id-1]
}

func (b *Builder) view(id ViewID) *View {
	if id == 0 || int(id) > len(b.views) {
		return nil
	}
	return &b.views[id-1]
}

// Scalar creates a detached scalar of size bytes.
func (b *Builder) Scalar(view ViewID, size int64) BlockID {
	return b.AddBlock(Block{Kind: KindScalar, View: view, Size: size})
}

// Array creates a detached array of elem with the given extents.
func (b *Builder) Array(view ViewID, dims []int64, elem BlockID) BlockID {
	e := b.block(elem)
	if e == nil {
		b.fail("array element %d does not exist", elem)
		return b.AddBlock(Block{Kind: KindArray, View: view, Dims: dims})
	}
	count, ok := layout.Count(dims)
	if !ok {
		b.fail("array extents %v are not positive or overflow", dims)
	}
	return b.AddBlock(Block{
		Kind:      KindArray,
		View:      view,
		Size:      count * e.Size,
		Dims:      dims,
		ElemSize:  e.Size,
		ElemCount: count,
		Elem:      elem,
	})
}

// Tuple creates a detached tuple laying fields out contiguously in
// order. The fields must be detached.
func (b *Builder) Tuple(view ViewID, fields ...BlockID) BlockID {
	var size int64
	for _, field := range fields {
		f := b.block(field)
		if f == nil {
			b.fail("tuple field %d does not exist", field)
			continue
		}
		b.shift(field, size-f.Offset)
		size += f.Size
	}
	return b.AddBlock(Block{Kind: KindTuple, View: view, Size: size, Fields: fields})
}

// shift moves a block and, for tuples, its fields. Array elements keep
// their own frame.
func (b *Builder) shift(id BlockID, delta int64) {
	blk := b.block(id)
	if blk == nil || delta == 0 {
		return
	}
	blk.Offset += delta
	if blk.Kind == KindTuple {
		for _, field := range blk.Fields {
			b.shift(field, delta)
		}
	}
}

// Append places a detached block at the end of view and attaches it to
// the view's top level.
func (b *Builder) Append(view ViewID, id BlockID) BlockID {
	v := b.view(view)
	blk := b.block(id)
	if v == nil || blk == nil {
		b.fail("cannot append block %d to view %d", id, view)
		return id
	}
	var end int64
	if n := len(v.Blocks); n > 0 {
		if last := b.block(v.Blocks[n-1]); last != nil {
			end = last.End()
		}
	}
	b.shift(id, end-blk.Offset)
	v.Blocks = append(v.Blocks, id)
	return id
}

// AppendScalar appends a scalar of size bytes to view.
func (b *Builder) AppendScalar(view ViewID, size int64) BlockID {
	return b.Append(view, b.Scalar(view, size))
}

// AppendArray appends an array of elem to view.
func (b *Builder) AppendArray(view ViewID, dims []int64, elem BlockID) BlockID {
	return b.Append(view, b.Array(view, dims, elem))
}

// AppendTuple appends a tuple of fields to view.
func (b *Builder) AppendTuple(view ViewID, fields ...BlockID) BlockID {
	return b.Append(view, b.Tuple(view, fields...))
}

// AddDest registers d as a destination of block src.
func (b *Builder) AddDest(src BlockID, d Dest) {
	blk := b.block(src)
	if blk == nil {
		b.fail("destination source block %d does not exist", src)
		return
	}
	d.Exprs = slices.Clone(d.Exprs)
	blk.Dests = append(blk.Dests, d)
}

// SetSource sets where an unmaterialized view reads block id from.
func (b *Builder) SetSource(id BlockID, d Dest) {
	blk := b.block(id)
	if blk == nil {
		b.fail("source block %d does not exist", id)
		return
	}
	d.Exprs = slices.Clone(d.Exprs)
	blk.Source = d
}

// Build validates the records and returns the immutable Graph. Every
// problem found is reported, joined into one error.
func (b *Builder) Build() (*Graph, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	g := &Graph{
		replicas: slices.Clone(b.replicas),
		views:    slices.Clone(b.views),
		blocks:   slices.Clone(b.blocks),
	}
	for i := range g.views {
		g.views[i].Blocks = slices.Clone(g.views[i].Blocks)
	}
	for i := range g.blocks {
		blk := &g.blocks[i]
		blk.Dims = slices.Clone(blk.Dims)
		blk.Fields = slices.Clone(blk.Fields)
		blk.Dests = slices.Clone(blk.Dests)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}
