// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import "fmt"

// write is the block-level write entry. With writeThrough the data
// goes to the replica of b's view first, if it has one; a failure, or
// a caller that did not ask for replication, ends the write there.
// With doReplicate the data is then propagated to b's destinations.
func (s *ViewSet) write(b *Block, data []byte, off, base int64, writeThrough, doReplicate bool) (int, error) {
	v := s.graph.View(b.View)
	if writeThrough && v.Materialized() {
		n, err := s.writeReplica(v, data, off)
		if err != nil || !doReplicate {
			return n, err
		}
	}
	if !doReplicate {
		return len(data), nil
	}
	return s.replicate(b, data, off, base)
}

// replicate propagates data, written to block b at off, to every
// destination of b. base is the offset of b in the caller's frame.
// Destination blocks receive the data exactly once: their own
// destinations are not followed.
func (s *ViewSet) replicate(b *Block, data []byte, off, base int64) (int, error) {
	for _, d := range b.Dests {
		if err := s.replicateTo(b, d, data, off, base); err != nil {
			return 0, err
		}
	}
	return len(data), nil
}

// replicateTo propagates data into the single destination d.
//
// Offsets are frame-relative: base-b.Offset is where b's frame starts
// in absolute view coordinates. Inside an array element that frame is
// the destination element, which is why the target's absolute offset
// is the frame start plus its own offset.
func (s *ViewSet) replicateTo(b *Block, d Dest, data []byte, off, base int64) error {
	g := s.graph
	target := g.Block(d.Target)
	frame := base - b.Offset
	rel := off - base

	switch b.Kind {
	case KindScalar:
		if rel >= target.Size {
			return nil
		}
		n := min(int64(len(data)), target.Size-rel)
		targetBase := frame + target.Offset
		_, err := s.write(target, data[:n], targetBase+rel, targetBase, true, false)
		return err

	case KindTuple:
		end := rel + int64(len(data))
		for _, pair := range g.fieldPairs(b, target) {
			field := pair.field
			start := field.Offset - b.Offset
			lo, hi := max(rel, start), min(end, start+field.Size)
			if lo >= hi {
				continue
			}
			fieldBase := frame + field.Offset
			if err := s.replicateTo(field, pair.dest, data[lo-rel:hi-rel], fieldBase+lo-start, fieldBase); err != nil {
				return err
			}
		}
		return nil

	case KindArray:
		return s.replicateArray(b, d, data, off, base)
	}
	return s.fault("replicate", b, off, ErrMappingFault, errUnknownKind)
}

// replicateArray splits the range into a partial head element, whole
// middle elements and a partial tail element. Elements that do not map
// into the destination are skipped.
func (s *ViewSet) replicateArray(b *Block, d Dest, data []byte, off, base int64) error {
	g := s.graph
	target := g.Block(d.Target)
	mapping, err := g.mapping(b, d)
	if err != nil {
		return s.fault("replicate", b, off, ErrMappingFault, err)
	}
	connector := g.connector(d, b.Elem)
	elemDest := elementDest(connector, target.Elem)
	targetStart := base - b.Offset + target.Offset
	size := b.ElemSize

	element := func(k int64, part []byte, within int64) error {
		dn, ok := mapping.Map(k)
		if !ok {
			return nil
		}
		start := targetStart + dn*target.ElemSize
		return s.replicateTo(connector, elemDest, part, start+within, start)
	}

	position := off - base
	rest := data
	if within := position % size; within != 0 {
		n := min(size-within, int64(len(rest)))
		if err := element(position/size, rest[:n], within); err != nil {
			return err
		}
		position += n
		rest = rest[n:]
	}

	if whole := int64(len(rest)) / size; whole > 0 {
		first := position / size
		done := false
		if !s.perElementOnly {
			if shift, ok := mapping.Sequential(); ok && mapsRun(mapping, first, whole, shift) {
				if err := s.scatterSequential(b, target, connector, elemDest, rest[:whole*size], targetStart, first+shift, whole); err != nil {
					return err
				}
				done = true
			}
		}
		if !done {
			for k := range whole {
				if err := element(first+k, rest[k*size:(k+1)*size], 0); err != nil {
					return err
				}
			}
		}
		position += whole * size
		rest = rest[whole*size:]
	}

	if len(rest) > 0 {
		return element(position/size, rest, 0)
	}
	return nil
}

// scatterSequential transforms a run of whole source elements into the
// contiguous destination run starting at element targetFirst, one
// scratch-sized batch at a time. When the transform does not cover the
// whole destination element, each batch is read back first so that
// untouched destination bytes survive.
func (s *ViewSet) scatterSequential(b, target, connector *Block, elemDest Dest, data []byte, targetStart, targetFirst, count int64) error {
	readBack := target.ElemSize > b.ElemSize || !s.graph.covers(connector, elemDest)
	perBatch := max(1, s.scratchSize/target.ElemSize)
	batch := make([]byte, min(count, perBatch)*target.ElemSize)

	for done := int64(0); done < count; {
		n := min(count-done, perBatch)
		chunk := batch[:n*target.ElemSize]
		position := targetStart + (targetFirst+done)*target.ElemSize
		if readBack {
			if err := s.readFull(target, chunk, position, targetStart); err != nil {
				return fmt.Errorf("reading back destination before widening write: %w", err)
			}
		}
		if err := s.transform(connector, elemDest, data[done*b.ElemSize:(done+n)*b.ElemSize], chunk, n); err != nil {
			return err
		}
		if _, err := s.write(target, chunk, position, targetStart, true, false); err != nil {
			return err
		}
		done += n
	}
	return nil
}
