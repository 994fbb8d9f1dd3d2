// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// Collations returns the orderings that the rows of n are known to have.
// The result does not contain duplicates or the empty collation.
func (q *Query) Collations(n rel.Node) []props.Collation {
	return memoize(q, n, collationsFact, "", func() []props.Collation {
		return q.buildCollations(n)
	})
}

func (q *Query) buildCollations(n rel.Node) []props.Collation {
	var res []props.Collation
	add := func(c props.Collation) {
		if c.Any() {
			return
		}
		for _, e := range res {
			if e.Equals(c) {
				return
			}
		}
		res = append(res, c)
	}

	switch t := n.(type) {
	case *rel.Scan:
		m := scanMapping(t)
		for _, c := range t.Table.Collations() {
			add(c.Remap(m))
		}

	case *rel.Values:
		if len(t.Tuples) <= 1 {
			// A single row is ordered on every column.
			add(props.Asc(opt.ColSetRange(0, t.RowType().FieldCount()).Ordered()...))
		}

	case *rel.Filter:
		for _, c := range q.Collations(t.In) {
			add(c)
		}

	case *rel.Exchange:
		// Gathering to a single node preserves the order of the stream.
		if t.Distribution.Type == props.Singleton {
			for _, c := range q.Collations(t.In) {
				add(c)
			}
		}

	case *rel.Project:
		m := projectMapping(t)
		for _, c := range q.Collations(t.In) {
			add(c.Remap(m))
		}

	case *rel.Sort:
		add(t.Collation)

	case *rel.SortExchange:
		add(t.Collation)

	case *rel.Join:
		if (t.Algorithm == rel.NestedLoopAlgorithm || t.Algorithm == rel.BatchNestedLoopAlgorithm) &&
			!t.Type.GeneratesNullsOnLeft() {
			for _, c := range q.Collations(t.Left) {
				add(c)
			}
		}

	case *rel.Correlate:
		for _, c := range q.Collations(t.Left) {
			add(c)
		}

	case *rel.Subset:
		q.forEachMember(t, func(m rel.Node) {
			for _, c := range q.Collations(m) {
				add(c)
			}
		})
	}
	add(n.Traits().Collation)
	return res
}

// Distribution returns how the rows of n are distributed.
func (q *Query) Distribution(n rel.Node) props.Distribution {
	return memoize(q, n, distributionFact, "", func() props.Distribution {
		switch t := n.(type) {
		case *rel.Values:
			return props.Distribution{Type: props.BroadcastDistributed}
		case *rel.Subset:
			return firstMember(q, t, func(m rel.Node) props.Distribution {
				return q.Distribution(m)
			})
		case *rel.Filter, *rel.Sort:
			return q.Distribution(n.Input(0))
		case *rel.Project:
			return q.Distribution(t.In).Remap(projectMapping(t))
		}
		return n.Traits().Distribution
	})
}

// UniqueKeys returns the sets of columns of n whose values are unique. An
// empty key means that n produces at most one row.
func (q *Query) UniqueKeys(n rel.Node) []opt.ColSet {
	return memoize(q, n, uniqueKeysFact, "", func() []opt.ColSet {
		return q.buildUniqueKeys(n)
	})
}

func (q *Query) buildUniqueKeys(n rel.Node) []opt.ColSet {
	var res []opt.ColSet
	add := func(k opt.ColSet) {
		for _, e := range res {
			if e.Equals(k) {
				return
			}
		}
		res = append(res, k)
	}
	addMapped := func(keys []opt.ColSet, m opt.Mapping) {
		for _, k := range keys {
			if mapped, ok := mapKey(k, m); ok {
				add(mapped)
			}
		}
	}

	switch t := n.(type) {
	case *rel.Scan:
		addMapped(t.Table.Keys(), scanMapping(t))

	case *rel.Values:
		if len(t.Tuples) <= 1 {
			add(opt.ColSet{})
		}

	case *rel.Filter, *rel.Sort, *rel.Exchange, *rel.SortExchange:
		for _, k := range q.UniqueKeys(n.Input(0)) {
			add(k)
		}

	case *rel.Project:
		addMapped(q.UniqueKeys(t.In), projectMapping(t))

	case *rel.Join:
		leftKeys := q.UniqueKeys(t.Left)
		if !t.Type.ProjectsRight() {
			for _, k := range leftKeys {
				add(k)
			}
			break
		}
		leftCount := t.Left.RowType().FieldCount()
		for _, lk := range leftKeys {
			for _, rk := range q.UniqueKeys(t.Right) {
				add(lk.Union(rk.Shift(leftCount)))
			}
		}

	case *rel.Correlate:
		if !t.Type.ProjectsRight() {
			for _, k := range q.UniqueKeys(t.Left) {
				add(k)
			}
		}

	case *rel.Aggregate:
		if t.IsSimple() {
			add(opt.ColSetRange(0, t.GroupCount()))
		}

	case *rel.SetOp:
		if !t.All {
			add(opt.ColSetRange(0, t.RowType().FieldCount()))
		}
		if t.Operator == opt.MinusOp {
			for _, k := range q.UniqueKeys(t.Ins[0]) {
				add(k)
			}
		}

	case *rel.Subset:
		return firstMember(q, t, q.UniqueKeys)
	}
	return res
}

// AreColumnsUnique returns true if no two rows of n have the same values in
// cols.
func (q *Query) AreColumnsUnique(n rel.Node, cols opt.ColSet) bool {
	for _, k := range q.UniqueKeys(n) {
		if k.SubsetOf(cols) {
			return true
		}
	}
	return false
}

// mapKey renumbers a key through m; it fails if a key column is not mapped.
func mapKey(k opt.ColSet, m opt.Mapping) (opt.ColSet, bool) {
	var res opt.ColSet
	ok := true
	k.ForEach(func(ord int) {
		t := m.TargetOpt(ord)
		if t < 0 {
			ok = false
			return
		}
		res.Add(t)
	})
	return res, ok
}

// scanMapping maps the table columns to the output columns of s.
func scanMapping(s *rel.Scan) opt.Mapping {
	tableCount := cat.RowType(s.Table).FieldCount()
	if s.Projects == nil {
		return opt.IdentityMapping(tableCount)
	}
	m := opt.NewMapping(tableCount, len(s.Projects))
	for i, p := range s.Projects {
		if m.TargetOpt(p) < 0 {
			m.Set(p, i)
		}
	}
	return m
}

// projectMapping maps the input columns of p that are projected as plain
// references to their first output position.
func projectMapping(p *rel.Project) opt.Mapping {
	m := opt.NewMapping(p.In.RowType().FieldCount(), len(p.Exprs))
	for i, e := range p.Exprs {
		if ref, ok := e.(*scalar.InputRef); ok && m.TargetOpt(ref.Index) < 0 {
			m.Set(ref.Index, i)
		}
	}
	return m
}
