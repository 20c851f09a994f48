// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import "slices"

// transform re-expresses count consecutive elements laid out as src in
// the layout of d.Target. in holds count*src.Size bytes and out
// count*target.Size bytes. Destination bytes that no source byte maps
// to are left as they are.
func (s *ViewSet) transform(src *Block, d Dest, in, out []byte, count int64) error {
	g := s.graph
	dst := g.Block(d.Target)
	switch src.Kind {
	case KindScalar:
		if src.Size == dst.Size {
			copy(out[:count*dst.Size], in[:count*src.Size])
			return nil
		}
		width := min(src.Size, dst.Size)
		for k := range count {
			copy(out[k*dst.Size:k*dst.Size+width], in[k*src.Size:k*src.Size+width])
		}
		return nil

	case KindArray:
		mapping, err := g.mapping(src, d)
		if err != nil {
			return s.fault("transform", src, 0, ErrMappingFault, err)
		}
		connector := g.connector(d, src.Elem)
		elemDest := elementDest(connector, dst.Elem)
		for k := range count {
			for n := range src.ElemCount {
				dn, ok := mapping.Map(n)
				if !ok {
					continue
				}
				from := k*src.Size + n*src.ElemSize
				to := k*dst.Size + dn*dst.ElemSize
				if err := s.transform(connector, elemDest, in[from:from+src.ElemSize], out[to:to+dst.ElemSize], 1); err != nil {
					return err
				}
			}
		}
		return nil

	case KindTuple:
		pairs := g.fieldPairs(src, dst)
		for k := range count {
			for _, pair := range pairs {
				target := g.Block(pair.dest.Target)
				from := k*src.Size + pair.field.Offset - src.Offset
				to := k*dst.Size + target.Offset - dst.Offset
				if err := s.transform(pair.field, pair.dest, in[from:from+pair.field.Size], out[to:to+target.Size], 1); err != nil {
					return err
				}
			}
		}
		return nil
	}
	return s.fault("transform", src, 0, ErrMappingFault, errUnknownKind)
}

// fieldPair is a source tuple field and the Dest carrying it into a
// field of the destination tuple.
type fieldPair struct {
	field *Block
	dest  Dest
}

// fieldPairs matches the fields of tuple src against the fields of
// tuple dst. A source field matches a destination field when one of
// its Dests targets it; each destination field is claimed by the first
// source field that targets it. When no field matches at all and both
// tuples have the same layout, fields pair up by position.
func (g *Graph) fieldPairs(src, dst *Block) []fieldPair {
	key := [2]BlockID{src.ID, dst.ID}
	if cached, ok := g.pairs.Load(key); ok {
		return cached.([]fieldPair)
	}

	var pairs []fieldPair
	claimed := make(map[BlockID]bool)
	for _, id := range src.Fields {
		field := g.Block(id)
		for _, d := range field.Dests {
			if g.parent[d.Target-1] == dst.ID && !claimed[d.Target] {
				claimed[d.Target] = true
				pairs = append(pairs, fieldPair{field: field, dest: d})
				break
			}
		}
	}
	if len(pairs) == 0 && g.sameLayout(src, dst) {
		for i, id := range src.Fields {
			pairs = append(pairs, fieldPair{field: g.Block(id), dest: Dest{Target: dst.Fields[i]}})
		}
	}

	g.pairs.Store(key, pairs)
	return pairs
}

// sameLayout reports whether a and b have identical structure.
func (g *Graph) sameLayout(a, b *Block) bool {
	if a.Kind != b.Kind || a.Size != b.Size {
		return false
	}
	switch a.Kind {
	case KindArray:
		return slices.Equal(a.Dims, b.Dims) && g.sameLayout(g.Block(a.Elem), g.Block(b.Elem))
	case KindTuple:
		if len(a.Fields) != len(b.Fields) {
			return false
		}
		for i := range a.Fields {
			if !g.sameLayout(g.Block(a.Fields[i]), g.Block(b.Fields[i])) {
				return false
			}
		}
	}
	return true
}

// covers reports whether transforming src through d writes every byte
// of one destination element. When it does not, batched writes must
// read the destination back first.
func (g *Graph) covers(src *Block, d Dest) bool {
	dst := g.Block(d.Target)
	switch src.Kind {
	case KindScalar:
		return dst.Size <= src.Size
	case KindTuple:
		pairs := g.fieldPairs(src, dst)
		if len(pairs) != len(dst.Fields) {
			return false
		}
		for _, pair := range pairs {
			if !g.covers(pair.field, pair.dest) {
				return false
			}
		}
		return true
	case KindArray:
		mapping, err := g.mapping(src, d)
		if err != nil || src.ElemCount != dst.ElemCount {
			return false
		}
		if shift, ok := mapping.Sequential(); !ok || shift != 0 {
			return false
		}
		connector := g.connector(d, src.Elem)
		return g.covers(connector, elementDest(connector, dst.Elem))
	}
	return false
}
