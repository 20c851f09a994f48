// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"bufio"
	"fmt"
	"io"
)

// WriteDot renders the graph in Graphviz DOT syntax. Each view is a
// cluster of its blocks. Ownership edges are solid, destination edges
// dashed and source edges dotted; element connectors are drawn with a
// dashed outline.
func (g *Graph) WriteDot(w io.Writer) error {
	out := bufio.NewWriter(w)
	fmt.Fprintln(out, "digraph viewset {")
	fmt.Fprintln(out, "\trankdir=LR;")
	fmt.Fprintln(out, "\tnode [shape=record, fontname=monospace];")

	for _, v := range g.views {
		fmt.Fprintf(out, "\tsubgraph cluster_view%d {\n", v.ID)
		label := v.Name
		if v.Materialized() {
			label += " @ " + g.Replica(v.Replica).Name
		} else {
			label += " (unmaterialized)"
		}
		fmt.Fprintf(out, "\t\tlabel=%q;\n", label)
		for _, blk := range g.blocks {
			if blk.View != v.ID {
				continue
			}
			style := ""
			if blk.detached && g.parent[blk.ID-1] == 0 {
				style = ", style=dashed"
			}
			fmt.Fprintf(out, "\t\tblock%d [label=%q%s];\n", blk.ID, g.blockLabel(&blk), style)
		}
		fmt.Fprintln(out, "\t}")
	}

	for _, blk := range g.blocks {
		switch blk.Kind {
		case KindArray:
			fmt.Fprintf(out, "\tblock%d -> block%d [label=\"el\"];\n", blk.ID, blk.Elem)
		case KindTuple:
			for i, field := range blk.Fields {
				fmt.Fprintf(out, "\tblock%d -> block%d [label=\"f%d\"];\n", blk.ID, field, i)
			}
		}
		for i, d := range blk.Dests {
			fmt.Fprintf(out, "\tblock%d -> block%d [style=dashed, label=%q];\n", blk.ID, d.Target, destLabel(i, d))
			if d.Element != 0 {
				fmt.Fprintf(out, "\tblock%d -> block%d [style=dashed, color=gray];\n", blk.ID, d.Element)
			}
		}
		if blk.Source.Target != 0 {
			fmt.Fprintf(out, "\tblock%d -> block%d [style=dotted, label=\"src\"];\n", blk.ID, blk.Source.Target)
			if blk.Source.Element != 0 {
				fmt.Fprintf(out, "\tblock%d -> block%d [style=dotted, color=gray];\n", blk.ID, blk.Source.Element)
			}
		}
	}
	fmt.Fprintln(out, "}")
	return out.Flush()
}

func (g *Graph) blockLabel(blk *Block) string {
	switch blk.Kind {
	case KindArray:
		return fmt.Sprintf("A %d|@%d|%v x %d", blk.ID, blk.Offset, blk.Dims, blk.ElemSize)
	case KindTuple:
		return fmt.Sprintf("T %d|@%d|%d fields", blk.ID, blk.Offset, len(blk.Fields))
	default:
		return fmt.Sprintf("S %d|@%d|%d bytes", blk.ID, blk.Offset, blk.Size)
	}
}

func destLabel(i int, d Dest) string {
	if len(d.Exprs) == 0 {
		return fmt.Sprintf("dest%d", i)
	}
	label := fmt.Sprintf("dest%d", i)
	for _, e := range d.Exprs {
		label += " " + e.String()
	}
	return label
}
