// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/util/graph"
)

// ColumnOrigin is a table column that an output column is computed from.
type ColumnOrigin struct {
	Table  cat.DataSourceName
	Column int
	Name   string
	// Derived is true if the output column is computed from the table column
	// rather than copied from it.
	Derived bool
}

func (o ColumnOrigin) String() string {
	s := originName(o)
	if o.Derived {
		s += " (derived)"
	}
	return s
}

// ColumnOrigins returns the table columns that the col-th column of n is
// copied or computed from. Columns produced by Values have no origin.
func (q *Query) ColumnOrigins(n rel.Node, col int) []ColumnOrigin {
	return memoize(q, n, columnOriginsFact, strconv.Itoa(col), func() []ColumnOrigin {
		return q.buildColumnOrigins(n, col)
	})
}

func (q *Query) buildColumnOrigins(n rel.Node, col int) []ColumnOrigin {
	var res []ColumnOrigin
	add := func(origins []ColumnOrigin, derived bool) {
		for _, o := range origins {
			o.Derived = o.Derived || derived
			dup := false
			for _, e := range res {
				if e.Table.Equals(o.Table) && e.Column == o.Column && e.Derived == o.Derived {
					dup = true
					break
				}
			}
			if !dup {
				res = append(res, o)
			}
		}
	}
	fromRefs := func(in rel.Node, e scalar.Expr, derived bool) {
		scalar.InputRefs(e).ForEach(func(ord int) {
			add(q.ColumnOrigins(in, ord), derived)
		})
	}

	switch t := n.(type) {
	case *rel.Scan:
		ord := t.ProjectedColumn(col)
		res = append(res, ColumnOrigin{Table: t.Table.Name(), Column: ord, Name: t.Table.Column(ord).ColName()})

	case *rel.Filter, *rel.Sort, *rel.Exchange, *rel.SortExchange:
		add(q.ColumnOrigins(n.Input(0), col), false)

	case *rel.Project:
		e := t.Exprs[col]
		_, isRef := e.(*scalar.InputRef)
		fromRefs(t.In, e, !isRef)

	case *rel.Join:
		leftCount := t.Left.RowType().FieldCount()
		if col < leftCount {
			add(q.ColumnOrigins(t.Left, col), false)
		} else {
			add(q.ColumnOrigins(t.Right, col-leftCount), false)
		}

	case *rel.MultiJoin:
		for _, in := range t.Ins {
			if n := in.RowType().FieldCount(); col >= n {
				col -= n
				continue
			}
			add(q.ColumnOrigins(in, col), false)
			break
		}

	case *rel.Correlate:
		leftCount := t.Left.RowType().FieldCount()
		if col < leftCount {
			add(q.ColumnOrigins(t.Left, col), false)
		} else {
			add(q.ColumnOrigins(t.Right, col-leftCount), false)
		}

	case *rel.Aggregate:
		groups := t.GroupSet.Ordered()
		if col < len(groups) {
			add(q.ColumnOrigins(t.In, groups[col]), false)
			break
		}
		for _, arg := range t.Calls[col-len(groups)].Args {
			add(q.ColumnOrigins(t.In, arg), true)
		}

	case *rel.SetOp:
		for _, in := range t.Ins {
			add(q.ColumnOrigins(in, col), false)
		}

	case *rel.Subset:
		return firstMember(q, t, func(m rel.Node) []ColumnOrigin {
			return q.ColumnOrigins(m, col)
		})
	}
	return res
}

// LineageEdge is the attribute of an edge of a lineage graph: "copy" or
// "derived".
type LineageEdge string

const (
	// CopyEdge connects a table column to an output column with the same
	// values.
	CopyEdge LineageEdge = "copy"
	// DerivedEdge connects a table column to an output column computed from
	// it.
	DerivedEdge LineageEdge = "derived"
)

// Lineage returns a graph from table columns to the output columns of n.
// Table columns are named like [sales, emp].ename and output columns by
// their name in the row type of n. Output columns appear first, in order,
// followed by table columns sorted by name.
func (q *Query) Lineage(n rel.Node) *graph.AttributedDirectedGraph[string, LineageEdge] {
	g := graph.NewAttributedDirectedGraph[string, LineageEdge]()
	row := n.RowType()
	type edge struct {
		src, dst string
		attr     LineageEdge
	}
	var edges []edge
	var tables []string
	seen := make(map[string]struct{})
	for i := 0; i < row.FieldCount(); i++ {
		out := row.Field(i).Name
		g.AddVertex(out)
		for _, o := range q.ColumnOrigins(n, i) {
			src := originName(o)
			if _, ok := seen[src]; !ok {
				seen[src] = struct{}{}
				tables = append(tables, src)
			}
			attr := CopyEdge
			if o.Derived {
				attr = DerivedEdge
			}
			edges = append(edges, edge{src: src, dst: out, attr: attr})
		}
	}
	sort.Strings(tables)
	for _, v := range tables {
		g.AddVertex(v)
	}
	for _, e := range edges {
		if _, err := g.AddEdge(e.src, e.dst, e.attr); err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "building lineage"))
		}
	}
	return g
}

func originName(o ColumnOrigin) string {
	return fmt.Sprintf("%s.%s", o.Table, o.Name)
}
