// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// JoinFilters is the classification of conjunctions evaluated on the output
// of a join.
type JoinFilters struct {
	// Left holds the conjunctions that can be evaluated below the join on its
	// left input, in left ordinals.
	Left []scalar.Expr
	// Right holds the conjunctions that can be evaluated below the join on
	// its right input, in right ordinals.
	Right []scalar.Expr
	// Join holds the conjunctions that become part of the join condition.
	Join []scalar.Expr
	// Above holds the conjunctions that must stay above the join.
	Above []scalar.Expr
}

// Pushed returns true if some conjunction moved below the join.
func (f *JoinFilters) Pushed() bool {
	return len(f.Left) > 0 || len(f.Right) > 0
}

// SplitFilters classifies the conjunctions of filters, which reference the
// output columns of a join of the given type. A conjunction moves to an input
// if it only references the columns of that input and the join does not
// generate nulls for it. Otherwise it becomes part of the join condition if
// intoJoin is set and the join is an inner join, and stays above the join if
// not.
func SplitFilters(
	filters []scalar.Expr, joinType rel.JoinType, leftCount, rightCount int, intoJoin bool,
) JoinFilters {
	leftCols := opt.ColSetRange(0, leftCount)
	var rightCols opt.ColSet
	if joinType.ProjectsRight() {
		rightCols = opt.ColSetRange(leftCount, leftCount+rightCount)
	}
	pushLeft := !joinType.GeneratesNullsOnLeft()
	pushRight := joinType.ProjectsRight() && !joinType.GeneratesNullsOnRight()

	var res JoinFilters
	for _, f := range filters {
		switch {
		case pushLeft && PushableOnto(f, leftCols):
			res.Left = append(res.Left, f)
		case pushRight && !rightCols.Empty() && PushableOnto(f, rightCols):
			res.Right = append(res.Right, scalar.Shift(f, -leftCount))
		case intoJoin && joinType == rel.InnerJoin:
			res.Join = append(res.Join, f)
		default:
			res.Above = append(res.Above, f)
		}
	}
	return res
}

// PushableOnto returns true if pred can be evaluated on an input that
// produces the given columns: it only references those columns. Correlation
// variables are bound outside of the input and do not prevent a push.
func PushableOnto(pred scalar.Expr, cols opt.ColSet) bool {
	return scalar.InputRefs(pred).SubsetOf(cols)
}
