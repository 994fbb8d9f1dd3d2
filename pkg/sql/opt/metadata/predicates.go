// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// PulledUpPredicates returns the predicates that hold for every row produced
// by n, over the columns of n. They are derived from filter and join
// conditions, table check constraints and constant projections below n.
func (q *Query) PulledUpPredicates(n rel.Node) []scalar.Expr {
	return memoize(q, n, pulledUpPredicatesFact, "", func() []scalar.Expr {
		return q.buildPredicates(n, false /* all */)
	})
}

// AllPredicates is like PulledUpPredicates, but also returns the equalities
// between the columns computed by projections and their definitions, e.g.
// =($2, HILBERT($0, $1)), and the conditions of outer joins. The returned
// equalities between a column and its definition only hold for rows in
// which the definition is evaluated.
func (q *Query) AllPredicates(n rel.Node) []scalar.Expr {
	return memoize(q, n, allPredicatesFact, "", func() []scalar.Expr {
		return q.buildPredicates(n, true /* all */)
	})
}

// ConstantMap returns the columns of n that are known to equal a non-null
// literal in every row.
func (q *Query) ConstantMap(n rel.Node) map[int]*scalar.Literal {
	res := make(map[int]*scalar.Literal)
	for _, p := range q.PulledUpPredicates(n) {
		if col, lit, ok := constantEquality(p); ok {
			res[col] = lit
		}
	}
	return res
}

// constantEquality matches =($i, literal) and =(literal, $i).
func constantEquality(p scalar.Expr) (int, *scalar.Literal, bool) {
	if p.Op() != opt.EqOp {
		return 0, nil, false
	}
	a, b := p.Child(0), p.Child(1)
	if _, ok := a.(*scalar.Literal); ok {
		a, b = b, a
	}
	ref, ok := a.(*scalar.InputRef)
	if !ok {
		return 0, nil, false
	}
	lit, ok := b.(*scalar.Literal)
	if !ok || lit.IsNull() {
		return 0, nil, false
	}
	return ref.Index, lit, true
}

// predicateList accumulates distinct predicates in insertion order.
type predicateList struct {
	preds []scalar.Expr
	seen  map[string]struct{}
}

func (l *predicateList) add(preds ...scalar.Expr) {
	for _, p := range preds {
		for _, c := range scalar.Conjunctions(p) {
			d := c.Digest()
			if _, ok := l.seen[d]; ok {
				continue
			}
			if l.seen == nil {
				l.seen = make(map[string]struct{})
			}
			l.seen[d] = struct{}{}
			l.preds = append(l.preds, c)
		}
	}
}

// addRemapped adds the predicates that only reference mapped columns,
// renumbered through m.
func (l *predicateList) addRemapped(preds []scalar.Expr, m opt.Mapping) {
	for _, p := range preds {
		if res, ok := scalar.Remap(p, m); ok {
			l.add(res)
		}
	}
}

func digestSet(preds []scalar.Expr) map[string]struct{} {
	res := make(map[string]struct{}, len(preds))
	for _, p := range preds {
		res[p.Digest()] = struct{}{}
	}
	return res
}

func (q *Query) predicates(n rel.Node, all bool) []scalar.Expr {
	if all {
		return q.AllPredicates(n)
	}
	return q.PulledUpPredicates(n)
}

func (q *Query) buildPredicates(n rel.Node, all bool) []scalar.Expr {
	var l predicateList
	switch t := n.(type) {
	case *rel.Scan:
		q.buildScanPredicates(t, &l)

	case *rel.Values:
		buildValuesPredicates(t, &l)

	case *rel.Filter:
		l.add(q.predicates(t.In, all)...)
		l.add(t.Condition)

	case *rel.Project:
		m := projectMapping(t)
		l.addRemapped(q.predicates(t.In, all), m)
		for i, e := range t.Exprs {
			switch e := e.(type) {
			case *scalar.Literal:
				if !e.IsNull() {
					l.add(scalar.Eq(scalar.NewInputRef(i, e.Type()), e))
				}
			case *scalar.Call:
				if !all {
					continue
				}
				if def, ok := scalar.Remap(e, m); ok {
					l.add(scalar.Eq(scalar.NewInputRef(i, e.Type()), def))
				}
			}
		}

	case *rel.Join:
		leftCount := t.Left.RowType().FieldCount()
		if !t.Type.GeneratesNullsOnLeft() {
			l.add(q.predicates(t.Left, all)...)
		}
		if t.Type.ProjectsRight() && !t.Type.GeneratesNullsOnRight() {
			l.add(scalar.ShiftAll(q.predicates(t.Right, all), leftCount)...)
		}
		if t.Type == rel.InnerJoin || (all && t.Type.ProjectsRight()) {
			l.add(t.Condition)
		}

	case *rel.Correlate:
		l.add(q.predicates(t.Left, all)...)
		if t.Type == rel.InnerJoin {
			leftCount := t.Left.RowType().FieldCount()
			for _, p := range q.predicates(t.Right, all) {
				if !scalar.Contains(p, opt.CorrelVariableOp) {
					l.add(scalar.Shift(p, leftCount))
				}
			}
		}

	case *rel.Aggregate:
		if t.IsSimple() {
			m := opt.NewMapping(t.In.RowType().FieldCount(), t.RowType().FieldCount())
			i := 0
			t.GroupSet.ForEach(func(ord int) {
				m.Set(ord, i)
				i++
			})
			l.addRemapped(q.predicates(t.In, all), m)
		}

	case *rel.SetOp:
		switch t.Operator {
		case opt.UnionOp:
			common := q.predicates(t.Ins[0], all)
			for _, in := range t.Ins[1:] {
				other := digestSet(q.predicates(in, all))
				var keep []scalar.Expr
				for _, p := range common {
					if _, ok := other[p.Digest()]; ok {
						keep = append(keep, p)
					}
				}
				common = keep
			}
			l.add(common...)
		case opt.IntersectOp:
			for _, in := range t.Ins {
				l.add(q.predicates(in, all)...)
			}
		default:
			l.add(q.predicates(t.Ins[0], all)...)
		}

	case *rel.Sort, *rel.Exchange, *rel.SortExchange:
		l.add(q.predicates(n.Input(0), all)...)

	case *rel.Subset:
		return firstMember(q, t, func(m rel.Node) []scalar.Expr {
			return q.predicates(m, all)
		})
	}
	return l.preds
}

func (q *Query) buildScanPredicates(s *rel.Scan, l *predicateList) {
	m := scanMapping(s)
	l.addRemapped(s.Table.CheckConstraints(), m)
	l.addRemapped(s.Filters, m)
}

// buildValuesPredicates adds =($i, literal) for every column that has the
// same non-null value in every tuple.
func buildValuesPredicates(v *rel.Values, l *predicateList) {
	if len(v.Tuples) == 0 {
		return
	}
	for col := 0; col < v.RowType().FieldCount(); col++ {
		first := v.Tuples[0][col]
		if first.IsNull() {
			continue
		}
		constant := true
		for _, tuple := range v.Tuples[1:] {
			if !scalar.Equal(tuple[col], first) {
				constant = false
				break
			}
		}
		if constant {
			l.add(scalar.Eq(scalar.RefTo(v.RowType(), col), first))
		}
	}
}
