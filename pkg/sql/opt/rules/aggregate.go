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

// FilterAggregateTranspose pushes the conjunctions of a filter that only
// reference group columns below the aggregate. Conjunctions over aggregate
// results stay above it.
func FilterAggregateTranspose() rule.Rule {
	operand := logical(rule.Match(opt.FilterOp)).OneInput(logical(rule.Match(opt.AggregateOp)))
	return rule.New("FilterAggregateTranspose", operand, func(c *rule.Call) error {
		filter, agg := c.Rel(0).(*rel.Filter), c.Rel(1).(*rel.Aggregate)
		groupCount := agg.GroupCount()
		if groupCount == 0 {
			// A filter below a global aggregate would change the result of an
			// empty input.
			return nil
		}
		groupCols := opt.ColSetRange(0, groupCount)

		// Output group column j is input column groupOrds[j].
		groupOrds := agg.GroupSet.Ordered()
		m := opt.NewMapping(agg.RowType().FieldCount(), agg.In.RowType().FieldCount())
		for j, ord := range groupOrds {
			m.Set(j, ord)
		}

		var pushed, remaining []scalar.Expr
		for _, conj := range scalar.Conjunctions(filter.Condition) {
			refs := scalar.InputRefs(conj)
			if !refs.SubsetOf(groupCols) || !inEveryGroupingSet(agg, m.MapColSet(refs)) {
				remaining = append(remaining, conj)
				continue
			}
			pushed = append(pushed, scalar.MustRemap(conj, m))
		}
		if len(pushed) == 0 {
			return nil
		}

		below, err := rel.NewFilter(agg.In, scalar.And(pushed...))
		if err != nil {
			return err
		}
		var res rel.Node = agg.Copy(agg.Traits(), []rel.Node{below})
		if len(remaining) > 0 {
			if res, err = rel.NewFilter(res, scalar.And(remaining...)); err != nil {
				return err
			}
		}
		return c.TransformTo(res)
	})
}

// inEveryGroupingSet returns true if every grouping set of the aggregate
// contains the input columns. A row of a grouping set that lacks a column has
// NULL in it, so a filter on the column cannot be evaluated below.
func inEveryGroupingSet(agg *rel.Aggregate, inputCols opt.ColSet) bool {
	for _, gs := range agg.GroupSets {
		if !inputCols.SubsetOf(gs) {
			return false
		}
	}
	return true
}

// Variants of AggregateUnionAggregate, by the position of the bottom
// aggregate among the inputs of the union.
const (
	aggOnFirstInput  = "first-input-agg"
	aggOnSecondInput = "second-input-agg"
	aggOnEitherInput = "either-input-agg"
)

// AggregateUnionAggregateFirst matches a distinct aggregate over a UNION ALL
// whose first input is a distinct aggregate.
func AggregateUnionAggregateFirst() rule.Rule {
	return aggregateUnionAggregate(aggOnFirstInput,
		logical(rule.Match(opt.AggregateOp)), rule.MatchAny())
}

// AggregateUnionAggregateSecond matches a distinct aggregate over a UNION ALL
// whose second input is a distinct aggregate.
func AggregateUnionAggregateSecond() rule.Rule {
	return aggregateUnionAggregate(aggOnSecondInput,
		rule.MatchAny(), logical(rule.Match(opt.AggregateOp)))
}

// AggregateUnionAggregateEither matches a distinct aggregate over a UNION ALL
// with a distinct aggregate as either input. It binds every pair of union
// inputs, so the planners see a quadratic number of matches.
func AggregateUnionAggregateEither() rule.Rule {
	return aggregateUnionAggregate(aggOnEitherInput, rule.MatchAny(), rule.MatchAny())
}

// aggregateUnionAggregate removes the bottom aggregate of
//
//	Aggregate(Union ALL(Aggregate(x), y))
//
// when both aggregates only remove duplicates: the top aggregate removes the
// duplicates that the bottom one would.
func aggregateUnionAggregate(variant string, first, second *rule.Operand) rule.Rule {
	unionAll := logical(rule.Match(opt.UnionOp)).WithPredicate(func(n rel.Node) bool {
		return n.(*rel.SetOp).All
	})
	operand := logical(rule.Match(opt.AggregateOp)).WithPredicate(func(n rel.Node) bool {
		return n.(*rel.Aggregate).IsSimple()
	}).OneInput(unionAll.Inputs(first.AnyInputs(), second.AnyInputs()))

	return rule.New("AggregateUnionAggregate:"+variant, operand, func(c *rule.Call) error {
		top, union := c.Rel(0).(*rel.Aggregate), c.Rel(1).(*rel.SetOp)
		inputs := []rel.Node{c.Rel(2), c.Rel(3)}
		var bottom *rel.Aggregate
		if a, ok := c.Rel(3).(*rel.Aggregate); ok {
			bottom = a
			inputs[1] = nil
		} else if a, ok := c.Rel(2).(*rel.Aggregate); ok {
			bottom = a
			inputs[0] = nil
		} else {
			return nil
		}
		if len(top.Calls) > 0 || len(bottom.Calls) > 0 || !bottom.IsSimple() {
			return nil
		}

		in, err := distinctInput(bottom)
		if err != nil {
			return err
		}
		for i := range inputs {
			if inputs[i] == nil {
				inputs[i] = in
			}
		}
		u, err := rel.NewUnion(inputs, true /* all */)
		if err != nil {
			return err
		}
		renamed, err := rel.Rename(u, union.RowType().FieldNames())
		if err != nil {
			return err
		}
		res, err := rel.NewAggregate(renamed, top.GroupSet, nil /* groupSets */, top.Calls)
		return transformTo(c, res, err)
	})
}

// distinctInput returns the input of a distinct aggregate reduced to the
// group columns.
func distinctInput(agg *rel.Aggregate) (rel.Node, error) {
	inCount := agg.In.RowType().FieldCount()
	if agg.GroupSet.Equals(opt.ColSetRange(0, inCount)) {
		return agg.In, nil
	}
	exprs := make([]scalar.Expr, 0, agg.GroupCount())
	agg.GroupSet.ForEach(func(ord int) {
		exprs = append(exprs, scalar.RefTo(agg.In.RowType(), ord))
	})
	return rel.NewProject(agg.In, exprs, agg.RowType().FieldNames())
}
