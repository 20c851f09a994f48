// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/viewrepl/lib/layout"
)

var (
	errNoSource    = errors.New("block has no source")
	errUnknownKind = errors.New("block has an unknown kind")
)

// read fills buf with the bytes of block b at offset off. base is the
// offset of b in the caller's frame, so off-base is the position within
// the block. It returns the number of bytes produced.
func (s *ViewSet) read(b *Block, buf []byte, off, base int64) (int, error) {
	v := s.graph.View(b.View)
	if v.Materialized() {
		return s.readReplica(v, buf, off)
	}
	if b.Source.Target == 0 {
		return 0, s.fault("read", b, off, ErrMappingFault, errNoSource)
	}
	switch b.Kind {
	case KindScalar:
		return s.readScalar(b, buf, off, base)
	case KindArray:
		return s.readArray(b, buf, off, base)
	case KindTuple:
		return s.readTuple(b, buf, off, base)
	}
	return 0, s.fault("read", b, off, ErrMappingFault, errUnknownKind)
}

func (s *ViewSet) readScalar(b *Block, buf []byte, off, base int64) (int, error) {
	source := s.graph.Block(b.Source.Target)
	rel := off - base
	n := min(int64(len(buf)), b.Size-rel)
	if n <= 0 {
		return 0, s.fault("read", b, off, ErrOutOfRange, nil)
	}
	// A narrower source leaves the rest of the scalar zero.
	available := min(n, max(0, source.Size-rel))
	if available > 0 {
		if err := s.readFull(source, buf[:available], source.Offset+rel, source.Offset); err != nil {
			return 0, err
		}
	}
	clear(buf[available:n])
	return int(n), nil
}

func (s *ViewSet) readTuple(b *Block, buf []byte, off, base int64) (int, error) {
	g := s.graph
	source := g.Block(b.Source.Target)
	rel := off - base
	n := min(int64(len(buf)), b.Size-rel)
	if n <= 0 {
		return 0, s.fault("read", b, off, ErrOutOfRange, nil)
	}

	in := make([]byte, source.Size)
	if err := s.readFull(source, in, source.Offset, source.Offset); err != nil {
		return 0, err
	}
	out := make([]byte, b.Size)
	connector := g.connector(b.Source, source.ID)
	if err := s.transform(connector, Dest{Target: b.ID}, in, out, 1); err != nil {
		return 0, err
	}
	copy(buf[:n], out[rel:])
	return int(n), nil
}

func (s *ViewSet) readArray(b *Block, buf []byte, off, base int64) (int, error) {
	rel := off - base
	n := min(int64(len(buf)), b.Size-rel)
	if rel < 0 || n <= 0 {
		return 0, s.fault("read", b, off, ErrOutOfRange, nil)
	}

	size := b.ElemSize
	first := rel / size
	last := (rel + n + size - 1) / size
	// Bytes the element transform does not cover read as zero, whatever
	// the caller's buffer held.
	out := buf[:n]
	unaligned := rel%size != 0 || n%size != 0
	if unaligned {
		out = make([]byte, (last-first)*size)
	} else {
		clear(out)
	}
	if err := s.gather(b, out, first, last-first); err != nil {
		return 0, err
	}
	if unaligned {
		copy(buf[:n], out[rel-first*size:])
	}
	return int(n), nil
}

// gather fills out with count elements of array b starting at element
// first, each read from the source array through the index transform.
func (s *ViewSet) gather(b *Block, out []byte, first, count int64) error {
	g := s.graph
	source := g.Block(b.Source.Target)
	mapping, err := g.mapping(b, b.Source)
	if err != nil {
		return s.fault("read", b, b.Offset+first*b.ElemSize, ErrMappingFault, err)
	}
	connector := g.connector(b.Source, source.Elem)
	elemDest := elementDest(connector, b.Elem)

	if !s.perElementOnly {
		if shift, ok := mapping.Sequential(); ok && mapsRun(mapping, first, count, shift) {
			return s.gatherSequential(b, source, connector, elemDest, out, first+shift, count)
		}
	}

	elem := make([]byte, source.ElemSize)
	for k := range count {
		dn, ok := mapping.Map(first + k)
		if !ok {
			return s.fault("read", b, b.Offset+(first+k)*b.ElemSize, ErrMappingFault,
				fmt.Errorf("element %d has no counterpart in block %d", first+k, source.ID))
		}
		if err := s.readFull(source, elem, source.Offset+dn*source.ElemSize, source.Offset); err != nil {
			return err
		}
		if err := s.transform(connector, elemDest, elem, out[k*b.ElemSize:(k+1)*b.ElemSize], 1); err != nil {
			return err
		}
	}
	return nil
}

// gatherSequential reads the contiguous source run starting at element
// sourceFirst in scratch-sized batches.
func (s *ViewSet) gatherSequential(b, source, connector *Block, elemDest Dest, out []byte, sourceFirst, count int64) error {
	perBatch := max(1, s.scratchSize/source.ElemSize)
	batch := make([]byte, min(count, perBatch)*source.ElemSize)
	for done := int64(0); done < count; {
		chunk := batch[:min(count-done, perBatch)*source.ElemSize]
		position := source.Offset + (sourceFirst+done)*source.ElemSize
		n, err := s.read(source, chunk, position, source.Offset)
		if err != nil {
			return err
		}
		whole := int64(n) / source.ElemSize
		if whole == 0 {
			return s.fault("read", source, position, ErrShortIO,
				fmt.Errorf("read %d bytes, less than one %d-byte element", n, source.ElemSize))
		}
		if err := s.transform(connector, elemDest, chunk[:whole*source.ElemSize],
			out[done*b.ElemSize:(done+whole)*b.ElemSize], whole); err != nil {
			return err
		}
		done += whole
	}
	return nil
}

// mapsRun reports whether the first and last element of a run map
// where a sequential shift predicts. Since the fast dimensions are
// identical, every element in between then maps too.
func mapsRun(m *layout.Mapping, first, count, shift int64) bool {
	if count <= 0 {
		return false
	}
	head, ok := m.Map(first)
	if !ok || head != first+shift {
		return false
	}
	tail, ok := m.Map(first + count - 1)
	return ok && tail == first+count-1+shift
}
