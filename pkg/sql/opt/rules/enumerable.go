// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rules

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

func enumerableRules() []rule.Rule {
	return []rule.Rule{
		EnumerableConverter("EnumerableTableScanRule", opt.ScanOp),
		EnumerableConverter("EnumerableValuesRule", opt.ValuesOp),
		EnumerableConverter("EnumerableFilterRule", opt.FilterOp),
		EnumerableConverter("EnumerableProjectRule", opt.ProjectOp),
		EnumerableConverter("EnumerableCorrelateRule", opt.CorrelateOp),
		EnumerableConverter("EnumerableAggregateRule", opt.AggregateOp),
		EnumerableConverter("EnumerableUnionRule", opt.UnionOp),
		EnumerableConverter("EnumerableIntersectRule", opt.IntersectOp),
		EnumerableConverter("EnumerableMinusRule", opt.MinusOp),
		EnumerableConverter("EnumerableSortRule", opt.SortOp),
		EnumerableConverter("EnumerableExchangeRule", opt.ExchangeOp),
		EnumerableConverter("EnumerableSortExchangeRule", opt.SortExchangeOp),
		EnumerableHashJoin(),
		EnumerableNestedLoopJoin(),
	}
}

// EnumerableConverter returns a rule that implements logical expressions of
// the given kind by the Enumerable expression of the same kind, over inputs
// converted to the Enumerable convention.
func EnumerableConverter(name string, op opt.Operator) rule.Rule {
	return rule.New(name, logical(rule.Match(op)), func(c *rule.Call) error {
		n := c.Rel(0)
		inputs := make([]rel.Node, n.InputCount())
		for i := range inputs {
			inputs[i] = c.Convert(n.Input(i), props.EnumerableConvention)
		}
		return c.TransformTo(n.Copy(n.Traits().WithConvention(props.EnumerableConvention), inputs))
	})
}

// EnumerableHashJoin implements joins whose condition has at least one
// equality between a left and a right column by a hash join. The other
// conjunctions of the condition are evaluated on the matched pairs.
func EnumerableHashJoin() rule.Rule {
	operand := logical(rule.Match(opt.JoinOp)).WithPredicate(func(n rel.Node) bool {
		j := n.(*rel.Join)
		return hasEquiCondition(j.Condition, j.Left.RowType().FieldCount())
	})
	return rule.New("EnumerableHashJoinRule", operand, func(c *rule.Call) error {
		return implementJoin(c, rel.HashJoinAlgorithm)
	})
}

// EnumerableNestedLoopJoin implements any join by a nested loop.
func EnumerableNestedLoopJoin() rule.Rule {
	return rule.New("EnumerableNestedLoopJoinRule", logical(rule.Match(opt.JoinOp)), func(c *rule.Call) error {
		return implementJoin(c, rel.NestedLoopAlgorithm)
	})
}

func implementJoin(c *rule.Call, algorithm rel.JoinAlgorithm) error {
	join := c.Rel(0).(*rel.Join)
	spec := join.Spec()
	spec.Algorithm = algorithm
	res, err := rel.NewJoinWithSpec(
		props.Enumerable(),
		c.Convert(join.Left, props.EnumerableConvention),
		c.Convert(join.Right, props.EnumerableConvention),
		join.Condition,
		spec,
	)
	return transformTo(c, res, err)
}

// hasEquiCondition returns true if a conjunction of cond is an equality
// between a column of the left input and a column of the right input.
func hasEquiCondition(cond scalar.Expr, leftCount int) bool {
	for _, conj := range scalar.Conjunctions(cond) {
		if conj.Op() != opt.EqOp {
			continue
		}
		a, okA := conj.Child(0).(*scalar.InputRef)
		b, okB := conj.Child(1).(*scalar.InputRef)
		if !okA || !okB {
			continue
		}
		if (a.Index < leftCount) != (b.Index < leftCount) {
			return true
		}
	}
	return false
}

// BatchNestedLoopJoinConfig holds the options of
// EnumerableBatchNestedLoopJoin.
type BatchNestedLoopJoinConfig struct {
	// BatchSize is the number of left rows evaluated by each scan of the
	// right input. Zero means 100.
	BatchSize int
}

// DefaultBatchNestedLoopJoinConfig returns the default options of
// EnumerableBatchNestedLoopJoin.
func DefaultBatchNestedLoopJoinConfig() BatchNestedLoopJoinConfig {
	return BatchNestedLoopJoinConfig{BatchSize: 100}
}

// EnumerableBatchNestedLoopJoin implements inner, left, semi and anti joins
// by a batched nested loop. The right input is filtered once per batch of
// left rows: each row of the batch is bound to its own correlation id, and
// the filter keeps the right rows that match any of them.
//
// The rule is not part of the default sets.
func EnumerableBatchNestedLoopJoin(cfg BatchNestedLoopJoinConfig) rule.Rule {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchNestedLoopJoinConfig().BatchSize
	}
	operand := logical(rule.Match(opt.JoinOp)).WithPredicate(func(n rel.Node) bool {
		switch n.(*rel.Join).Type {
		case rel.InnerJoin, rel.LeftJoin, rel.SemiJoin, rel.AntiJoin:
			return true
		}
		return false
	})
	return rule.New("EnumerableBatchNestedLoopJoinRule", operand, func(c *rule.Call) error {
		join := c.Rel(0).(*rel.Join)
		leftType := join.Left.RowType()
		leftCount := leftType.FieldCount()
		record := types.MakeRecord(leftType)

		ids := make([]opt.CorrelationID, cfg.BatchSize)
		for i := range ids {
			ids[i] = c.NewCorrelationID()
		}

		var required opt.ColSet
		bind := func(id opt.CorrelationID) scalar.Expr {
			row := &scalar.CorrelVariable{ID: id, Typ: record}
			var replace scalar.ReplaceFunc
			replace = func(e scalar.Expr) scalar.Expr {
				if ref, ok := e.(*scalar.InputRef); ok {
					if ref.Index < leftCount {
						required.Add(ref.Index)
						return &scalar.FieldAccess{Input: row, Field: ref.Index}
					}
					return scalar.NewInputRef(ref.Index-leftCount, ref.Typ)
				}
				return scalar.ReplaceChildren(e, replace)
			}
			return replace(join.Condition)
		}
		disjuncts := make([]scalar.Expr, len(ids))
		for i, id := range ids {
			disjuncts[i] = bind(id)
		}
		filtered, err := rel.NewFilter(join.Right, scalar.Or(disjuncts...))
		if err != nil {
			return err
		}

		res, err := rel.NewJoinWithSpec(
			props.Enumerable(),
			c.Convert(join.Left, props.EnumerableConvention),
			c.Convert(filtered, props.EnumerableConvention),
			join.Condition,
			rel.JoinSpec{
				Type:            join.Type,
				Algorithm:       rel.BatchNestedLoopAlgorithm,
				CorrelationIDs:  ids,
				RequiredColumns: required,
			},
		)
		return transformTo(c, res, err)
	})
}
