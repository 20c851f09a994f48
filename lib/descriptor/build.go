// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bureau-foundation/viewrepl/lib/layout"
	"github.com/bureau-foundation/viewrepl/lib/viewset"
)

// Build translates document into a validated graph. Relative replica
// paths are resolved against root. Name and ID resolution problems are
// reported together; structural problems are reported by the graph
// validation that follows.
func Build(document *Document, root string) (*viewset.Graph, error) {
	if document.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported descriptor version %d (expected %d)", document.Version, CurrentVersion)
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	b := viewset.NewBuilder()

	replicas := make(map[string]viewset.ReplicaID, len(document.Replicas))
	for _, r := range document.Replicas {
		if _, exists := replicas[r.Name]; exists {
			fail("duplicate replica name %q", r.Name)
			continue
		}
		path := r.Path
		if path != "" && !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		replicas[r.Name] = b.AddReplica(r.Name, path)
	}

	views := make(map[string]viewset.ViewID, len(document.Views))
	for i, v := range document.Views {
		if _, exists := views[v.Name]; !exists {
			views[v.Name] = viewset.ViewID(i + 1)
		}
	}
	lookupView := func(name, context string) viewset.ViewID {
		id, ok := views[name]
		if !ok {
			fail("%s references unknown view %q", context, name)
		}
		return id
	}

	for i, v := range document.Views {
		record := viewset.View{
			ID:     viewset.ViewID(i + 1),
			Name:   v.Name,
			Offset: v.Offset,
			Order:  v.Order,
			Blocks: blockIDs(v.Blocks),
		}
		if v.Replica != "" {
			id, ok := replicas[v.Replica]
			if !ok {
				fail("view %q references unknown replica %q", v.Name, v.Replica)
			}
			record.Replica = id
		}
		if v.Default != "" {
			record.Default = lookupView(v.Default, fmt.Sprintf("view %q default", v.Name))
		}
		if v.Synchronous {
			record.Flags |= viewset.Synchronous
		}
		if v.Readonly {
			record.Flags |= viewset.Readonly
		}
		b.AddView(record)
	}

	sizes := newSizer(document.Blocks)
	for i, blk := range document.Blocks {
		if blk.ID != uint32(i+1) {
			fail("block at position %d has ID %d", i+1, blk.ID)
			continue
		}
		kind, err := viewset.ParseKind(blk.Kind)
		if err != nil {
			fail("block %d: %v", blk.ID, err)
			continue
		}
		record := viewset.Block{
			ID:     viewset.BlockID(blk.ID),
			Kind:   kind,
			View:   lookupView(blk.View, fmt.Sprintf("block %d", blk.ID)),
			Offset: blk.Offset,
			Size:   sizes.size(blk.ID),
			Dims:   blk.Dims,
			Elem:   viewset.BlockID(blk.Elem),
			Fields: blockIDs(blk.Fields),
		}
		if kind == viewset.KindArray {
			record.ElemSize = sizes.size(blk.Elem)
			record.ElemCount, _ = layout.Count(blk.Dims)
		}
		for _, d := range blk.Dests {
			record.Dests = append(record.Dests, graphDest(d))
		}
		if blk.Source != nil {
			record.Source = graphDest(*blk.Source)
		}
		b.AddBlock(record)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return b.Build()
}

func blockIDs(ids []uint32) []viewset.BlockID {
	out := make([]viewset.BlockID, len(ids))
	for i, id := range ids {
		out[i] = viewset.BlockID(id)
	}
	return out
}

func graphDest(d Dest) viewset.Dest {
	return viewset.Dest{
		Exprs:   slices.Clone(d.Exprs),
		Target:  viewset.BlockID(d.Target),
		Element: viewset.BlockID(d.Element),
	}
}

// sizer derives omitted array and tuple sizes from their elements and
// fields. References it cannot follow yield zero; graph validation
// reports them.
type sizer struct {
	blocks []Block
	memo   map[uint32]int64
	active map[uint32]bool
}

func newSizer(blocks []Block) *sizer {
	return &sizer{blocks: blocks, memo: make(map[uint32]int64), active: make(map[uint32]bool)}
}

func (s *sizer) size(id uint32) int64 {
	if id == 0 || int(id) > len(s.blocks) || s.active[id] {
		return 0
	}
	if size, ok := s.memo[id]; ok {
		return size
	}
	blk := s.blocks[id-1]
	size := blk.Size
	if size == 0 {
		s.active[id] = true
		switch blk.Kind {
		case "array":
			count, ok := layout.Count(blk.Dims)
			elem := s.size(blk.Elem)
			if ok && elem > 0 && count <= (1<<62)/elem {
				size = count * elem
			}
		case "tuple":
			for _, field := range blk.Fields {
				size += s.size(field)
			}
		}
		delete(s.active, id)
	}
	s.memo[id] = size
	return size
}

// FromGraph renders g as a document. Replica paths below root are
// written relative to it.
func FromGraph(g *viewset.Graph, root string) *Document {
	document := &Document{Version: CurrentVersion}
	for _, r := range g.Replicas() {
		path := r.Path
		if root != "" {
			if relative, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(relative, "..") {
				path = relative
			}
		}
		document.Replicas = append(document.Replicas, Replica{Name: r.Name, Path: path})
	}
	for _, v := range g.Views() {
		record := View{
			Name:        v.Name,
			Offset:      v.Offset,
			Order:       v.Order,
			Synchronous: v.Flags&viewset.Synchronous != 0,
			Readonly:    v.Flags&viewset.Readonly != 0,
		}
		if v.Materialized() {
			record.Replica = g.Replica(v.Replica).Name
		}
		if v.Default != 0 {
			record.Default = g.View(v.Default).Name
		}
		for _, id := range v.Blocks {
			record.Blocks = append(record.Blocks, uint32(id))
		}
		document.Views = append(document.Views, record)
	}
	for _, blk := range g.Blocks() {
		record := Block{
			ID:     uint32(blk.ID),
			Kind:   blk.Kind.String(),
			View:   g.View(blk.View).Name,
			Offset: blk.Offset,
			Size:   blk.Size,
			Dims:   slices.Clone(blk.Dims),
			Elem:   uint32(blk.Elem),
		}
		for _, id := range blk.Fields {
			record.Fields = append(record.Fields, uint32(id))
		}
		for _, d := range blk.Dests {
			record.Dests = append(record.Dests, documentDest(d))
		}
		if blk.Source.Target != 0 {
			source := documentDest(blk.Source)
			record.Source = &source
		}
		document.Blocks = append(document.Blocks, record)
	}
	return document
}

func documentDest(d viewset.Dest) Dest {
	return Dest{
		Target:  uint32(d.Target),
		Element: uint32(d.Element),
		Exprs:   slices.Clone(d.Exprs),
	}
}
