// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata

import (
	"math"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// Selectivity guesses for predicates on which nothing is known.
const (
	equalitySelectivity   = 0.15
	comparisonSelectivity = 0.5
	isNotNullSelectivity  = 0.9
	unknownSelectivity    = 0.25

	// groupRowCountRatio is the fraction of input rows assumed to be distinct
	// group keys.
	groupRowCountRatio = 0.1
	// distinctSetOpRatio is the fraction of rows assumed to remain after
	// removing duplicates from a union.
	distinctSetOpRatio = 0.5
)

// RowCount returns the estimated number of rows produced by n.
func (q *Query) RowCount(n rel.Node) float64 {
	return memoize(q, n, rowCountFact, "", func() float64 {
		return q.buildRowCount(n)
	})
}

func (q *Query) buildRowCount(n rel.Node) float64 {
	switch t := n.(type) {
	case *rel.Scan:
		rows := t.Table.RowCount()
		if rows < 0 {
			rows = q.defaultRowCount
		}
		if len(t.Filters) > 0 {
			rows *= GuessSelectivity(scalar.And(t.Filters...))
		}
		return rows

	case *rel.Values:
		return float64(len(t.Tuples))

	case *rel.Filter:
		return q.RowCount(t.In) * q.Selectivity(t.In, t.Condition)

	case *rel.Project, *rel.Exchange, *rel.SortExchange:
		return q.RowCount(n.Input(0))

	case *rel.Join:
		left, right := q.RowCount(t.Left), q.RowCount(t.Right)
		sel := GuessSelectivity(t.Condition)
		switch t.Type {
		case rel.SemiJoin:
			return left * sel
		case rel.AntiJoin:
			return left * (1 - sel)
		}
		inner := left * right * sel
		switch t.Type {
		case rel.LeftJoin:
			return math.Max(inner, left)
		case rel.RightJoin:
			return math.Max(inner, right)
		case rel.FullJoin:
			return math.Max(inner, math.Max(left, right))
		}
		return inner

	case *rel.MultiJoin:
		rows := q.RowCount(t.Ins[0])
		for i, in := range t.Ins[1:] {
			right := q.RowCount(in)
			if t.JoinTypes[i+1] == rel.LeftJoin {
				rows = math.Max(rows*right*GuessSelectivity(t.OuterJoinConditions[i+1]), rows)
			} else {
				rows *= right
			}
		}
		rows *= GuessSelectivity(t.JoinFilter)
		if t.FullOuter {
			rows = math.Max(rows, math.Max(q.RowCount(t.Ins[0]), q.RowCount(t.Ins[1])))
		}
		return rows * GuessSelectivity(t.PostJoinFilter)

	case *rel.Correlate:
		left := q.RowCount(t.Left)
		switch t.Type {
		case rel.SemiJoin, rel.AntiJoin:
			return left * comparisonSelectivity
		case rel.LeftJoin:
			return math.Max(left, left*q.RowCount(t.Right))
		}
		return left * q.RowCount(t.Right)

	case *rel.Aggregate:
		if t.GroupSet.Empty() {
			return math.Max(1, float64(len(t.GroupSets)))
		}
		rows := math.Max(1, q.RowCount(t.In)*groupRowCountRatio)
		if t.GroupSets != nil {
			rows *= float64(len(t.GroupSets))
		}
		return rows

	case *rel.SetOp:
		switch t.Operator {
		case opt.UnionOp:
			var sum float64
			for _, in := range t.Ins {
				sum += q.RowCount(in)
			}
			if !t.All {
				sum *= distinctSetOpRatio
			}
			return sum
		case opt.IntersectOp:
			rows := math.Inf(1)
			for _, in := range t.Ins {
				rows = math.Min(rows, q.RowCount(in))
			}
			return rows
		default:
			return q.RowCount(t.Ins[0])
		}

	case *rel.Sort:
		rows := math.Max(0, q.RowCount(t.In)-float64(t.Offset))
		if t.Fetch >= 0 {
			rows = math.Min(rows, float64(t.Fetch))
		}
		return rows

	case *rel.Subset:
		rows := math.Inf(1)
		q.forEachMember(t, func(m rel.Node) {
			rows = math.Min(rows, q.RowCount(m))
		})
		if math.IsInf(rows, 1) {
			return q.defaultRowCount
		}
		return rows
	}

	if n.InputCount() > 0 {
		return q.RowCount(n.Input(0))
	}
	return q.defaultRowCount
}

// Selectivity returns the estimated fraction of the rows of n for which pred
// holds. Conjunctions already known to hold for n (see PulledUpPredicates)
// do not reduce the estimate. A nil predicate has selectivity 1.
func (q *Query) Selectivity(n rel.Node, pred scalar.Expr) float64 {
	if pred == nil {
		return 1
	}
	return memoize(q, n, selectivityFact, pred.Digest(), func() float64 {
		known := digestSet(q.PulledUpPredicates(n))
		sel := 1.0
		for _, c := range scalar.Conjunctions(pred) {
			if _, ok := known[c.Digest()]; ok {
				continue
			}
			sel *= GuessSelectivity(c)
		}
		return sel
	})
}

// GuessSelectivity estimates the selectivity of a predicate from its shape
// alone: 0.15 for an equality, 0.5 for other comparisons, 0.9 for IS NOT
// NULL and 0.25 for anything else. Conjunctions multiply, and a disjunction
// of predicates with selectivities s1..sn has selectivity 1-(1-s1)...(1-sn).
func GuessSelectivity(pred scalar.Expr) float64 {
	switch {
	case scalar.IsTrue(pred):
		return 1
	case scalar.IsFalse(pred):
		return 0
	}
	switch pred.Op() {
	case opt.AndOp:
		sel := 1.0
		for _, c := range scalar.Conjunctions(pred) {
			sel *= GuessSelectivity(c)
		}
		return sel
	case opt.OrOp:
		none := 1.0
		for _, d := range scalar.Disjunctions(pred) {
			none *= 1 - GuessSelectivity(d)
		}
		return 1 - none
	case opt.EqOp:
		return equalitySelectivity
	case opt.IsNotNullOp:
		return isNotNullSelectivity
	}
	if pred.Op().IsComparison() {
		return comparisonSelectivity
	}
	return unknownSelectivity
}
