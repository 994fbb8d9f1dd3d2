// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/util/graph"
	"github.com/xlab/treeprint"
)

type memoFmtCtx struct {
	buf       strings.Builder
	numbering map[int]int
}

// FormatMemo returns the sets of the last run, with the best plan of every
// set and required traits costed during plan selection. Sets are numbered
// G1..GN from the root down.
func (o *Optimizer) FormatMemo() string {
	if o.root == nil {
		return "memo (empty)\n"
	}
	f := &memoFmtCtx{numbering: make(map[int]int)}
	ordering := o.sortSets()
	for i, s := range ordering {
		f.numbering[s.id] = i + 1
	}

	members := 0
	for _, s := range ordering {
		members += len(s.live())
	}
	tp := treeprint.NewWithRoot(fmt.Sprintf("memo (%d sets, %d members)", len(ordering), members))
	for _, s := range ordering {
		f.buf.Reset()
		for i, mem := range s.live() {
			if i > 0 {
				f.buf.WriteByte(' ')
			}
			o.formatMember(f, mem)
		}
		child := tp.AddBranch(fmt.Sprintf("G%d: %s", f.numbering[s.id], f.buf.String()))
		o.formatBestPlans(f, child, s)
	}
	return tp.String()
}

// sortSets orders the live sets from the root down to the leaves. Sets that
// are part of a cycle follow in id order.
func (o *Optimizer) sortSets() []*memoSet {
	root := o.root.find()
	g := graph.NewDirectedGraph[*memoSet]()
	g.AddVertex(root)
	live := o.mem.liveSets()
	for _, s := range live {
		g.AddVertex(s)
	}
	for _, s := range live {
		for _, mem := range s.live() {
			for i := 0; i < mem.node.InputCount(); i++ {
				in := o.mem.set(mem.node.Input(i).(*rel.Subset).SetID)
				if in != s {
					// Adding an existing edge is a no-op.
					_, _ = g.AddEdge(s, in)
				}
			}
		}
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		done := make(map[*memoSet]bool, len(order))
		for _, s := range order {
			done[s] = true
		}
		for _, s := range live {
			if !done[s] {
				order = append(order, s)
			}
		}
	}
	return order
}

func (o *Optimizer) formatMember(f *memoFmtCtx, mem *member) {
	fmt.Fprintf(&f.buf, "(%s", rel.Describe(mem.node))
	for i := 0; i < mem.node.InputCount(); i++ {
		in := o.mem.set(mem.node.Input(i).(*rel.Subset).SetID)
		fmt.Fprintf(&f.buf, " G%d", f.numbering[in.id])
	}
	f.buf.WriteString(")")
}

func (o *Optimizer) formatBestPlans(f *memoFmtCtx, tp treeprint.Tree, s *memoSet) {
	for _, state := range o.state.sortedStates() {
		if state.set != s || state.best == nil {
			continue
		}
		f.buf.Reset()
		fmt.Fprintf(&f.buf, "(%s", rel.Describe(state.op))
		for _, c := range state.children {
			fmt.Fprintf(&f.buf, " G%d=%q", f.numbering[c.set.find().id], c.required.String())
		}
		f.buf.WriteString(")")
		child := tp.AddBranch(fmt.Sprintf("%q", state.required.String()))
		child.AddNode("best: " + f.buf.String())
		child.AddNode("cost: " + state.cost.String())
	}
}
