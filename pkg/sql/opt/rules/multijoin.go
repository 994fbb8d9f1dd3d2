// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rules

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// MultiJoin returns the rules that flatten trees of joins into multi-joins,
// ahead of join ordering. They are not part of the default sets and are
// meant for a bottom-up heuristic phase.
func MultiJoin() *rule.Set {
	return rule.MustNewSet(multiJoinRules()...)
}

func multiJoinRules() []rule.Rule {
	return []rule.Rule{
		JoinToMultiJoin(),
		FilterMultiJoinMerge(),
		ProjectMultiJoinMerge(),
	}
}

// JoinToMultiJoin turns a join into a multi-join. Inputs that are
// multi-joins themselves are flattened into the result, unless they are on
// the null-generating side of the join or contain outer joins.
//
// The condition of an inner or full join goes to the join filter. The
// condition of a left join is attached to its right input, and the condition
// of a right join to its left input.
func JoinToMultiJoin() rule.Rule {
	operand := logical(rule.Match(opt.JoinOp)).WithPredicate(func(n rel.Node) bool {
		return n.(*rel.Join).Type.ProjectsRight()
	}).Inputs(rule.MatchAny(), rule.MatchAny())
	return rule.New("JoinToMultiJoin", operand, func(c *rule.Call) error {
		join := c.Rel(0).(*rel.Join)
		left, right := c.Rel(1), c.Rel(2)

		var inputs []rel.Node
		var joinFilters, postFilters []scalar.Expr
		spec := rel.MultiJoinSpec{FullOuter: join.Type == rel.FullJoin}
		add := func(in rel.Node, nullGenerating bool, shift int) {
			mj, ok := in.(*rel.MultiJoin)
			if !ok || nullGenerating || mj.FullOuter || mj.ContainsOuter() {
				inputs = append(inputs, in)
				spec.JoinTypes = append(spec.JoinTypes, rel.InnerJoin)
				spec.OuterJoinConditions = append(spec.OuterJoinConditions, nil)
				spec.ProjFields = append(spec.ProjFields, nil)
				return
			}
			inputs = append(inputs, mj.Ins...)
			spec.JoinTypes = append(spec.JoinTypes, mj.JoinTypes...)
			spec.OuterJoinConditions = append(spec.OuterJoinConditions, mj.OuterJoinConditions...)
			spec.ProjFields = append(spec.ProjFields, mj.ProjFields...)
			joinFilters = append(joinFilters, scalar.Shift(mj.JoinFilter, shift))
			postFilters = append(postFilters, scalar.Shift(mj.PostJoinFilter, shift))
		}
		add(left, join.Type.GeneratesNullsOnLeft(), 0)
		add(right, join.Type.GeneratesNullsOnRight(), left.RowType().FieldCount())

		switch join.Type {
		case rel.LeftJoin:
			last := len(inputs) - 1
			spec.JoinTypes[last] = rel.LeftJoin
			spec.OuterJoinConditions[last] = join.Condition
		case rel.RightJoin:
			spec.JoinTypes[0] = rel.LeftJoin
			spec.OuterJoinConditions[0] = join.Condition
		default:
			joinFilters = append([]scalar.Expr{join.Condition}, joinFilters...)
		}
		spec.JoinFilter = scalar.And(joinFilters...)
		spec.PostJoinFilter = scalar.And(postFilters...)
		res, err := rel.NewMultiJoin(inputs, join.RowType(), spec)
		return transformTo(c, res, err)
	})
}

// FilterMultiJoinMerge moves a filter above a multi-join into its post-join
// filter. A full multi-join is left alone.
func FilterMultiJoinMerge() rule.Rule {
	operand := logical(rule.Match(opt.FilterOp)).OneInput(
		logical(rule.Match(opt.MultiJoinOp)).WithPredicate(func(n rel.Node) bool {
			return !n.(*rel.MultiJoin).FullOuter
		}))
	return rule.New("FilterMultiJoinMerge", operand, func(c *rule.Call) error {
		filter, mj := c.Rel(0).(*rel.Filter), c.Rel(1).(*rel.MultiJoin)
		spec := mj.Spec()
		spec.PostJoinFilter = scalar.And(filter.Condition, mj.PostJoinFilter)
		res, err := mj.WithSpec(spec)
		return transformTo(c, res, err)
	})
}

// ProjectMultiJoinMerge records in a multi-join the fields of each input
// that are used above it: by the projection on top, or by the post-join
// filter. The projection is kept.
func ProjectMultiJoinMerge() rule.Rule {
	operand := logical(rule.Match(opt.ProjectOp)).OneInput(
		logical(rule.Match(opt.MultiJoinOp)).WithPredicate(func(n rel.Node) bool {
			for _, f := range n.(*rel.MultiJoin).ProjFields {
				if f == nil {
					return true
				}
			}
			return false
		}))
	return rule.New("ProjectMultiJoinMerge", operand, func(c *rule.Call) error {
		project, mj := c.Rel(0).(*rel.Project), c.Rel(1).(*rel.MultiJoin)
		used := scalar.InputRefs(project.Exprs...)
		used.UnionWith(scalar.InputRefs(mj.PostJoinFilter))

		spec := mj.Spec()
		spec.ProjFields = make([]*opt.ColSet, len(mj.Ins))
		for i, in := range mj.Ins {
			off := mj.InputOffset(i)
			fields := used.Intersection(opt.ColSetRange(off, off+in.RowType().FieldCount())).Shift(-off)
			spec.ProjFields[i] = &fields
		}
		newMJ, err := mj.WithSpec(spec)
		if err != nil {
			return err
		}
		return c.TransformTo(project.Copy(project.Traits(), []rel.Node{newMJ}))
	})
}
