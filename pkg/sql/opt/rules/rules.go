// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package rules contains the transformation rules fired by the planners:
// logical rewrites that keep the convention of the expressions they match,
// and implementation rules that convert logical expressions into the
// Enumerable convention.
//
// Rules are values built by constructor functions. Rules that take options
// are built from a plain config struct; the Default*Config functions return
// the documented defaults. The set constructors return new immutable sets on
// every call, so callers can compose them freely.
package rules

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
)

// Logical returns the logical rewrite rules.
func Logical() *rule.Set {
	return rule.MustNewSet(logicalRules()...)
}

func logicalRules() []rule.Rule {
	return []rule.Rule{
		ProjectRemove(),
		FilterRemoveTrue(),
		FilterMerge(),
		ProjectMerge(),
		FilterProjectTranspose(),
		FilterAggregateTranspose(),
		FilterIntoJoin(),
		JoinExtractFilter(),
		JoinCommute(JoinCommuteConfig{}),
		AggregateUnionAggregateFirst(),
		AggregateUnionAggregateSecond(),
		AggregateUnionAggregateEither(),
		FilterTableScan(),
		ProjectTableScan(),
		SortRemove(),
		SortExchangeRemoveConstantKeys(),
		FilterHilbert(DefaultFilterHilbertConfig()),
	}
}

// Heuristic returns the logical rules that converge when applied to a fixed
// point: Logical without the rules that rewrite an expression back and forth.
func Heuristic() *rule.Set {
	var res []rule.Rule
	for _, r := range logicalRules() {
		switch r.Name() {
		case "JoinCommute", "JoinExtractFilter":
			continue
		}
		res = append(res, r)
	}
	return rule.MustNewSet(res...)
}

// Enumerable returns the implementation rules, without the batched
// nested-loop join.
func Enumerable() *rule.Set {
	return rule.MustNewSet(enumerableRules()...)
}

// Default returns the logical rules followed by the implementation rules. It
// is the rule set of the cost-based planner.
func Default() *rule.Set {
	return rule.MustNewSet(append(logicalRules(), enumerableRules()...)...)
}

// All returns every rule, with default options. It is the set that rule
// names given on the command line are selected from.
func All() *rule.Set {
	rules := append(logicalRules(), enumerableRules()...)
	rules = append(rules, EnumerableBatchNestedLoopJoin(DefaultBatchNestedLoopJoinConfig()))
	rules = append(rules, multiJoinRules()...)
	return rule.MustNewSet(rules...)
}

// transformTo registers the result of a rule, or returns the error of
// building it.
func transformTo(c *rule.Call, n rel.Node, err error) error {
	if err != nil {
		return err
	}
	return c.TransformTo(n)
}

// logical returns an operand that matches logical expressions of the given
// kind.
func logical(o *rule.Operand) *rule.Operand {
	return o.WithConvention(props.LogicalConvention)
}
