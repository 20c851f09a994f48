// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"fmt"
	"sync"

	"github.com/bureau-foundation/viewrepl/lib/layout"
)

// ReplicaID, ViewID and BlockID index the graph arenas. IDs start at 1;
// the zero value means "none".
type (
	ReplicaID uint32
	ViewID    uint32
	BlockID   uint32
)

// Kind tags the variant of a Block.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindArray
	KindTuple
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindTuple:
		return "tuple"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind converts a descriptor spelling into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "scalar":
		return KindScalar, nil
	case "array":
		return KindArray, nil
	case "tuple":
		return KindTuple, nil
	default:
		return 0, fmt.Errorf("unknown block kind %q", s)
	}
}

// ViewFlags modify how a view handles writes.
type ViewFlags uint8

const (
	// Synchronous makes writes wait for every replication task.
	Synchronous ViewFlags = 1 << iota

	// Readonly rejects client writes. Replication into the view still
	// happens.
	Readonly
)

// Replica is a physical backing store.
type Replica struct {
	ID   ReplicaID
	Name string
	Path string
}

// View is a named logical byte array made of top-level blocks.
type View struct {
	ID      ViewID
	Name    string
	Flags   ViewFlags
	Replica ReplicaID // zero for unmaterialized views
	Offset  int64     // byte offset of the view within its replica
	Order   layout.Order
	Default ViewID
	Blocks  []BlockID

	size int64
}

// Size returns the sum of the view's top-level block sizes.
func (v *View) Size() int64 { return v.size }

// Materialized reports whether the view is backed by a replica.
func (v *View) Materialized() bool { return v.Replica != 0 }

// Dest describes one index-transformed copy of a block.
//
// Target is the destination block. For arrays, Exprs map source
// coordinates to Target coordinates and Element names a connector
// block: it has the source element layout, and its own Dests describe
// how one source element lands in one Target element. Scalar and tuple
// Dests leave Exprs empty; for tuples Element optionally names a
// connector whose field Dests select the destination fields.
type Dest struct {
	Exprs   []layout.Expr
	Target  BlockID
	Element BlockID
}

// Block is one node of the layout graph. Which fields are meaningful
// depends on Kind.
type Block struct {
	ID     BlockID
	Kind   Kind
	View   ViewID
	Offset int64
	Size   int64

	// Source describes where an unmaterialized view reads the block
	// from. Target is zero when the block has no source.
	Source Dest

	// Dests receive a copy of every write to the block.
	Dests []Dest

	// Array only.
	Dims      []int64
	ElemSize  int64
	ElemCount int64
	Elem      BlockID

	// Tuple only.
	Fields []BlockID

	// inElement is set for blocks inside an array element. Their
	// offsets are relative to the start of the element.
	inElement bool

	// detached is set for element connectors and their descendants.
	// They describe layouts only and hold no bytes of their own.
	detached bool
}

// End returns the offset just past the block.
func (b *Block) End() int64 { return b.Offset + b.Size }

// Graph is an immutable, validated arena of replicas, views and blocks.
type Graph struct {
	replicas []Replica
	views    []View
	blocks   []Block
	byName   map[string]ViewID

	// parent is the tuple or array owning each block, indexed by
	// BlockID-1.
	parent []BlockID

	// pairs caches field pairings between tuples, keyed by
	// [2]BlockID{source, destination}.
	pairs sync.Map
}

// Replica returns the replica with the given ID.
func (g *Graph) Replica(id ReplicaID) *Replica { return &g.replicas[id-1] }

// View returns the view with the given ID.
func (g *Graph) View(id ViewID) *View { return &g.views[id-1] }

// Block returns the block with the given ID.
func (g *Graph) Block(id BlockID) *Block { return &g.blocks[id-1] }

// Replicas returns the replica arena. The slice must not be modified.
func (g *Graph) Replicas() []Replica { return g.replicas }

// Views returns the view arena. The slice must not be modified.
func (g *Graph) Views() []View { return g.views }

// Blocks returns the block arena. The slice must not be modified.
func (g *Graph) Blocks() []Block { return g.blocks }

// Lookup finds a view by name.
func (g *Graph) Lookup(name string) (*View, bool) {
	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.View(id), true
}

// shape returns the index space of an array block. Arrays take the
// element order of their view.
func (g *Graph) shape(b *Block) layout.Shape {
	return layout.Shape{Dims: b.Dims, Order: g.View(b.View).Order}
}

// mapping compiles the index transform of an array Dest.
func (g *Graph) mapping(b *Block, d Dest) (*layout.Mapping, error) {
	return layout.NewMapping(g.shape(b), d.Exprs, g.shape(g.Block(d.Target)))
}

// elementDest finds the Dest of connector that targets target. When the
// connector has none, the identity Dest is returned.
func elementDest(connector *Block, target BlockID) Dest {
	for _, d := range connector.Dests {
		if d.Target == target {
			return d
		}
	}
	return Dest{Target: target}
}

// connector returns the block whose layout describes one source
// element of an array Dest, or the tuple-level connector of a tuple
// Dest. It falls back to fallback when the Dest names none.
func (g *Graph) connector(d Dest, fallback BlockID) *Block {
	if d.Element != 0 {
		return g.Block(d.Element)
	}
	return g.Block(fallback)
}
