// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
)

// termWriter collects the key=[value] parameters of a node.
type termWriter struct {
	items []string
}

func (w *termWriter) item(key string, value interface{}) {
	w.items = append(w.items, fmt.Sprintf("%s=[%v]", key, value))
}

func (w *termWriter) itemIf(key string, value interface{}, cond bool) {
	if cond {
		w.item(key, value)
	}
}

// Name returns the name of n in plan text: its convention followed by its
// kind, e.g. LogicalFilter or EnumerableHashJoin.
func Name(n Node) string {
	kind := n.Op().String()
	if j, ok := n.(*Join); ok {
		kind = j.Algorithm.String()
	}
	if s, ok := n.(*Subset); ok {
		return fmt.Sprintf("Subset#%d", s.SetID)
	}
	switch c := n.Traits().Convention; c {
	case props.AnyConvention:
		return kind
	default:
		return c.String() + kind
	}
}

// Describe returns the plan text line of n without its inputs, e.g.
// LogicalFilter(condition=[=($1, 1)]).
func Describe(n Node) string {
	var w termWriter
	n.terms(&w)
	if len(w.items) == 0 {
		return Name(n)
	}
	return Name(n) + "(" + strings.Join(w.items, ", ") + ")"
}

// Digest returns a canonical text of the whole tree rooted at n. Two trees
// with the same digest are structurally identical.
func Digest(n Node) string {
	var b strings.Builder
	writeDigest(&b, n)
	return b.String()
}

func writeDigest(b *strings.Builder, n Node) {
	b.WriteString(Describe(n))
	if n.Op() == opt.SubsetOp {
		b.WriteByte('.')
		b.WriteString(n.Traits().String())
	}
	if n.InputCount() == 0 {
		return
	}
	b.WriteString("{")
	for i := 0; i < n.InputCount(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		writeDigest(b, n.Input(i))
	}
	b.WriteString("}")
}

// ExplainOptions control the plan text produced by ExplainWith.
type ExplainOptions struct {
	// RowType appends the row type of each node.
	RowType bool
	// Traits appends the trait set of each node.
	Traits bool
	// Annotate, if set, returns extra text for a node, such as an estimated
	// row count or cost. It is appended after a colon.
	Annotate func(n Node) string
}

// Explain returns the plan text of the tree rooted at n: one line per node,
// indented by two spaces per level.
func Explain(n Node) string {
	return ExplainWith(n, ExplainOptions{})
}

// ExplainWith is like Explain with extra annotations.
func ExplainWith(n Node, opts ExplainOptions) string {
	var b strings.Builder
	explain(&b, n, 0, &opts)
	return b.String()
}

func explain(b *strings.Builder, n Node, depth int, opts *ExplainOptions) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
	b.WriteString(Describe(n))
	if opts.Traits {
		fmt.Fprintf(b, " traits=[%s]", n.Traits())
	}
	if opts.RowType {
		fmt.Fprintf(b, " rowType=[%s]", n.RowType())
	}
	if opts.Annotate != nil {
		if a := opts.Annotate(n); a != "" {
			b.WriteString(": ")
			b.WriteString(a)
		}
	}
	b.WriteByte('\n')
	for i := 0; i < n.InputCount(); i++ {
		explain(b, n.Input(i), depth+1, opts)
	}
}
