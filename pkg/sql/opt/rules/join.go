// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rules

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/norm"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// FilterIntoJoin pushes the conjunctions of a filter above a join into the
// inputs of the join, or into its condition for inner joins. The conjunctions
// of an inner join condition that reference a single input are pushed too.
// Nothing is pushed to an input for which the join generates nulls.
func FilterIntoJoin() rule.Rule {
	operand := logical(rule.Match(opt.FilterOp)).OneInput(logical(rule.Match(opt.JoinOp)))
	return rule.New("FilterIntoJoin", operand, func(c *rule.Call) error {
		filter, join := c.Rel(0).(*rel.Filter), c.Rel(1).(*rel.Join)
		leftCount := join.Left.RowType().FieldCount()
		rightCount := join.Right.RowType().FieldCount()

		aboveConjs := scalar.Conjunctions(filter.Condition)
		split := norm.SplitFilters(aboveConjs, join.Type, leftCount, rightCount, true /* intoJoin */)
		joinConds := scalar.Conjunctions(join.Condition)
		if join.Type == rel.InnerJoin {
			// Conditions of an inner join are filters too.
			cond := norm.SplitFilters(joinConds, join.Type, leftCount, rightCount, true /* intoJoin */)
			split.Left = append(split.Left, cond.Left...)
			split.Right = append(split.Right, cond.Right...)
			joinConds = append(cond.Join, split.Join...)
		} else {
			joinConds = append(joinConds, split.Join...)
		}
		if !split.Pushed() && len(split.Above) == len(aboveConjs) {
			return nil
		}

		left, err := filterIfAny(join.Left, split.Left)
		if err != nil {
			return err
		}
		right, err := filterIfAny(join.Right, split.Right)
		if err != nil {
			return err
		}
		newJoin, err := rel.NewJoinWithSpec(join.Traits(), left, right, scalar.And(joinConds...), join.Spec())
		if err != nil {
			return err
		}
		res, err := filterIfAny(newJoin, split.Above)
		return transformTo(c, res, err)
	})
}

// filterIfAny returns a filter of the conjunctions over input, or input if
// there are none.
func filterIfAny(input rel.Node, conjs []scalar.Expr) (rel.Node, error) {
	if len(conjs) == 0 {
		return input, nil
	}
	cond := scalar.And(conjs...)
	if scalar.IsTrue(cond) {
		return input, nil
	}
	return rel.NewFilter(input, cond)
}

// JoinExtractFilter turns an inner join into a cartesian product with a
// filter on top.
func JoinExtractFilter() rule.Rule {
	operand := logical(rule.Match(opt.JoinOp)).WithPredicate(func(n rel.Node) bool {
		j := n.(*rel.Join)
		return j.Type == rel.InnerJoin && !scalar.IsTrue(j.Condition)
	})
	return rule.New("JoinExtractFilter", operand, func(c *rule.Call) error {
		join := c.Rel(0).(*rel.Join)
		product, err := join.WithCondition(scalar.True)
		if err != nil {
			return err
		}
		res, err := rel.NewFilter(product, join.Condition)
		return transformTo(c, res, err)
	})
}

// JoinCommuteConfig holds the options of JoinCommute.
type JoinCommuteConfig struct {
	// SwapOuter also swaps the inputs of left and right outer joins. It is
	// off by default.
	SwapOuter bool
}

// JoinCommute swaps the inputs of a join and restores the original column
// order with a projection on top.
func JoinCommute(cfg JoinCommuteConfig) rule.Rule {
	operand := logical(rule.Match(opt.JoinOp)).WithPredicate(func(n rel.Node) bool {
		switch n.(*rel.Join).Type {
		case rel.InnerJoin, rel.FullJoin:
			return true
		case rel.LeftJoin, rel.RightJoin:
			return cfg.SwapOuter
		}
		return false
	})
	return rule.New("JoinCommute", operand, func(c *rule.Call) error {
		join := c.Rel(0).(*rel.Join)
		leftCount := join.Left.RowType().FieldCount()
		rightCount := join.Right.RowType().FieldCount()

		// Left field i moves to rightCount+i, right field leftCount+j to j.
		m := opt.NewMapping(leftCount+rightCount, leftCount+rightCount)
		for i := 0; i < leftCount; i++ {
			m.Set(i, rightCount+i)
		}
		for j := 0; j < rightCount; j++ {
			m.Set(leftCount+j, j)
		}
		spec := join.Spec()
		switch spec.Type {
		case rel.LeftJoin:
			spec.Type = rel.RightJoin
		case rel.RightJoin:
			spec.Type = rel.LeftJoin
		}
		swapped, err := rel.NewJoinWithSpec(
			join.Traits(), join.Right, join.Left, scalar.MustRemap(join.Condition, m), spec,
		)
		if err != nil {
			return err
		}

		exprs := make([]scalar.Expr, leftCount+rightCount)
		for i := range exprs {
			exprs[i] = scalar.RefTo(swapped.RowType(), m.Target(i))
		}
		res, err := rel.NewProject(swapped, exprs, join.RowType().FieldNames())
		return transformTo(c, res, err)
	})
}
