// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/bureau-foundation/viewrepl/lib/layout"
)

// validate checks the structural invariants of a freshly built graph
// and derives view sizes, block frames and the parent index.
func (g *Graph) validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	validBlock := func(id BlockID) bool { return id != 0 && int(id) <= len(g.blocks) }
	validView := func(id ViewID) bool { return id != 0 && int(id) <= len(g.views) }

	for i, r := range g.replicas {
		if r.ID != ReplicaID(i+1) {
			fail("replica %q has ID %d at position %d", r.Name, r.ID, i+1)
		}
		if r.Path == "" {
			fail("replica %q has no path", r.Name)
		}
	}

	g.byName = make(map[string]ViewID, len(g.views))
	for i := range g.views {
		v := &g.views[i]
		if v.Name == "" {
			fail("view %d has no name", v.ID)
		} else if _, exists := g.byName[v.Name]; exists {
			fail("duplicate view name %q", v.Name)
		}
		g.byName[v.Name] = v.ID
		if v.Replica != 0 && int(v.Replica) > len(g.replicas) {
			fail("view %q references missing replica %d", v.Name, v.Replica)
		}
		if v.Offset < 0 {
			fail("view %q has negative replica offset %d", v.Name, v.Offset)
		}
		if !v.Order.Valid() {
			fail("view %q has invalid element order %d", v.Name, v.Order)
		}
		if v.Default != 0 && !validView(v.Default) {
			fail("view %q references missing default view %d", v.Name, v.Default)
		}
	}

	// Structural references must resolve before anything walks them.
	for i := range g.blocks {
		blk := &g.blocks[i]
		if !validView(blk.View) {
			fail("block %d references missing view %d", blk.ID, blk.View)
		}
		if blk.Kind == KindArray && !validBlock(blk.Elem) {
			fail("array block %d references missing element %d", blk.ID, blk.Elem)
		}
		for _, field := range blk.Fields {
			if !validBlock(field) {
				fail("tuple block %d references missing field %d", blk.ID, field)
			}
		}
		for _, d := range append(slices.Clone(blk.Dests), blk.Source) {
			if d.Target != 0 && !validBlock(d.Target) {
				fail("block %d references missing destination %d", blk.ID, d.Target)
			}
			if d.Element != 0 && !validBlock(d.Element) {
				fail("block %d references missing element connector %d", blk.ID, d.Element)
			}
		}
	}
	for _, v := range g.views {
		for _, id := range v.Blocks {
			if !validBlock(id) {
				fail("view %q references missing block %d", v.Name, id)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	errs = append(errs, g.validateOwnership()...)
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for i := range g.blocks {
		errs = append(errs, g.validateBlock(&g.blocks[i])...)
	}
	for i := range g.views {
		errs = append(errs, g.validateView(&g.views[i])...)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for i := range g.blocks {
		errs = append(errs, g.validateDests(&g.blocks[i])...)
	}
	if err := g.checkSourceCycles(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateOwnership records each block's parent, rejects blocks with
// two owners and ownership cycles, and marks blocks living inside an
// array element.
func (g *Graph) validateOwnership() []error {
	var errs []error
	g.parent = make([]BlockID, len(g.blocks))
	topLevel := make([]bool, len(g.blocks))

	claim := func(child, owner BlockID) {
		switch {
		case topLevel[child-1]:
			errs = append(errs, fmt.Errorf("block %d is owned by block %d and also listed at view top level", child, owner))
		case g.parent[child-1] != 0:
			errs = append(errs, fmt.Errorf("block %d is owned by both block %d and block %d", child, g.parent[child-1], owner))
		default:
			g.parent[child-1] = owner
		}
	}
	for _, v := range g.views {
		for _, id := range v.Blocks {
			if topLevel[id-1] {
				errs = append(errs, fmt.Errorf("block %d is listed at top level twice", id))
			}
			topLevel[id-1] = true
		}
	}
	for i := range g.blocks {
		blk := &g.blocks[i]
		switch blk.Kind {
		case KindArray:
			claim(blk.Elem, blk.ID)
		case KindTuple:
			for _, field := range blk.Fields {
				claim(field, blk.ID)
			}
		}
	}
	for _, v := range g.views {
		for _, id := range v.Blocks {
			if g.parent[id-1] != 0 {
				errs = append(errs, fmt.Errorf("block %d is owned by block %d and also listed at view top level", id, g.parent[id-1]))
			}
		}
	}
	if len(errs) > 0 {
		return errs
	}

	// With at most one parent per block, a cycle is a parent chain
	// longer than the arena.
	for i := range g.blocks {
		id := BlockID(i + 1)
		for steps := 0; g.parent[id-1] != 0; steps++ {
			if steps > len(g.blocks) {
				return []error{fmt.Errorf("block %d is part of an ownership cycle", i+1)}
			}
			id = g.parent[id-1]
		}
	}

	// A block is view-framed when its root is listed at a view's top
	// level and no array lies between them. Unowned blocks that are not
	// at top level are element connectors.
	for i := range g.blocks {
		id := BlockID(i + 1)
		root := id
		inElement := false
		for parent := g.parent[id-1]; parent != 0; parent = g.parent[parent-1] {
			if g.Block(parent).Kind == KindArray {
				inElement = true
			}
			root = parent
		}
		detached := !topLevel[root-1]
		g.blocks[i].inElement = inElement || detached
		g.blocks[i].detached = detached
	}
	return nil
}

func (g *Graph) validateBlock(blk *Block) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("block %d (%s): %s", blk.ID, blk.Kind, fmt.Sprintf(format, args...)))
	}

	switch blk.Kind {
	case KindScalar:
		if blk.Size <= 0 {
			fail("size %d is not positive", blk.Size)
		}
		if len(blk.Dims) > 0 || len(blk.Fields) > 0 || blk.Elem != 0 {
			fail("scalar carries array or tuple structure")
		}
	case KindArray:
		elem := g.Block(blk.Elem)
		count, ok := layout.Count(blk.Dims)
		switch {
		case len(blk.Dims) == 0:
			fail("array has no dimensions")
		case !ok:
			fail("extents %v are not positive or overflow", blk.Dims)
		case blk.ElemCount != count:
			fail("element count %d does not match extents %v", blk.ElemCount, blk.Dims)
		case blk.ElemSize != elem.Size:
			fail("element size %d does not match element block size %d", blk.ElemSize, elem.Size)
		case blk.ElemSize <= 0 || count > (1<<62)/blk.ElemSize:
			fail("element size %d times count %d overflows", blk.ElemSize, count)
		case blk.Size != count*blk.ElemSize:
			fail("size %d is not %d elements of %d bytes", blk.Size, count, blk.ElemSize)
		}
		if elem.Offset != 0 {
			fail("element block %d starts at %d, expected 0", elem.ID, elem.Offset)
		}
		if elem.View != blk.View {
			fail("element block %d belongs to view %d", elem.ID, elem.View)
		}
		if len(blk.Fields) > 0 {
			fail("array carries tuple fields")
		}
	case KindTuple:
		if len(blk.Fields) == 0 {
			fail("tuple has no fields")
		}
		position := blk.Offset
		for _, id := range blk.Fields {
			field := g.Block(id)
			if field.Offset != position {
				fail("field %d starts at %d, expected %d", id, field.Offset, position)
			}
			if field.View != blk.View {
				fail("field %d belongs to view %d", id, field.View)
			}
			position += field.Size
		}
		if blk.Size != position-blk.Offset {
			fail("size %d is not the sum of its fields %d", blk.Size, position-blk.Offset)
		}
		if len(blk.Dims) > 0 || blk.Elem != 0 {
			fail("tuple carries array structure")
		}
	default:
		fail("unknown kind")
	}
	if blk.Offset < 0 {
		fail("negative offset %d", blk.Offset)
	}
	return errs
}

func (g *Graph) validateView(v *View) []error {
	var errs []error
	var position int64
	for _, id := range v.Blocks {
		blk := g.Block(id)
		if blk.View != v.ID {
			errs = append(errs, fmt.Errorf("view %q lists block %d of view %d", v.Name, id, blk.View))
		}
		if blk.Offset != position {
			errs = append(errs, fmt.Errorf("view %q: block %d starts at %d, expected %d", v.Name, id, blk.Offset, position))
		}
		position = blk.Offset + blk.Size
	}
	v.size = position
	return errs
}

func (g *Graph) validateDests(blk *Block) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("block %d (%s): %s", blk.ID, blk.Kind, fmt.Sprintf(format, args...)))
	}

	for _, d := range blk.Dests {
		if d.Target == 0 {
			fail("destination has no target")
			continue
		}
		target := g.Block(d.Target)
		// Connector Dests only pair layouts; the bytes never move
		// through them on their own.
		if !blk.detached {
			if !g.View(target.View).Materialized() {
				fail("destination block %d belongs to unmaterialized view %q", target.ID, g.View(target.View).Name)
			}
			if target.inElement != blk.inElement {
				fail("destination block %d is in a different frame", target.ID)
			}
		}
		if err := g.checkDest(blk, d); err != nil {
			fail("destination block %d: %v", target.ID, err)
		}
	}

	if blk.Kind == KindTuple && len(blk.Dests) == 0 && !blk.detached {
		for _, id := range blk.Fields {
			if len(g.Block(id).Dests) > 0 {
				fail("field %d has destinations but the tuple has none", id)
				break
			}
		}
	}

	if blk.Source.Target != 0 {
		source := g.Block(blk.Source.Target)
		if source.inElement || blk.inElement {
			fail("source block %d must be at view level", source.ID)
		} else if err := g.checkDest(blk, blk.Source); err != nil {
			fail("source block %d: %v", source.ID, err)
		}
	}
	return errs
}

// checkDest validates the shape compatibility of d as seen from blk.
// For Dests the connector has blk's element layout; for Sources it
// has the source element layout. Both are the element of whichever
// side of the mapping the connector replaces, so it is compared
// against both and must match one.
func (g *Graph) checkDest(blk *Block, d Dest) error {
	target := g.Block(d.Target)
	if target.Kind != blk.Kind {
		return fmt.Errorf("kind %s does not match %s", target.Kind, blk.Kind)
	}
	switch blk.Kind {
	case KindScalar:
		if len(d.Exprs) > 0 || d.Element != 0 {
			return errors.New("scalar mapping carries expressions or an element connector")
		}
	case KindTuple:
		if len(d.Exprs) > 0 {
			return errors.New("tuple mapping carries expressions")
		}
		if d.Element != 0 {
			connector := g.Block(d.Element)
			if connector.Kind != KindTuple {
				return fmt.Errorf("connector %d is a %s, expected a tuple", connector.ID, connector.Kind)
			}
		}
	case KindArray:
		if _, err := g.mapping(blk, d); err != nil {
			return err
		}
		for _, e := range d.Exprs {
			if e.DenominatorVanishes(blk.Dims[e.X]) {
				return fmt.Errorf("expression %s divides by zero within extent %d", e, blk.Dims[e.X])
			}
		}
		if d.Element != 0 {
			connector := g.Block(d.Element)
			if !g.connectorMatches(connector, g.Block(blk.Elem)) && !g.connectorMatches(connector, g.Block(target.Elem)) {
				return fmt.Errorf("connector %d (%s, %d bytes) matches neither element layout", connector.ID, connector.Kind, connector.Size)
			}
		}
	}
	return nil
}

func (g *Graph) connectorMatches(connector, elem *Block) bool {
	return connector.Kind == elem.Kind && connector.Size == elem.Size
}

// checkSourceCycles rejects Source chains that loop through
// unmaterialized views, which would make reads recurse forever.
func (g *Graph) checkSourceCycles() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]uint8, len(g.blocks))
	var visit func(id BlockID) error
	visit = func(id BlockID) error {
		switch state[id-1] {
		case visiting:
			return fmt.Errorf("block %d reads from itself through its source chain", id)
		case done:
			return nil
		}
		state[id-1] = visiting
		blk := g.Block(id)
		if next := blk.Source.Target; next != 0 && !g.View(blk.View).Materialized() {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[id-1] = done
		return nil
	}
	for i := range g.blocks {
		if err := visit(BlockID(i + 1)); err != nil {
			return err
		}
	}
	return nil
}
