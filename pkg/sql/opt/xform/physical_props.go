// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// hasPhysicalRequirement returns true if required asks for a collation or a
// distribution.
func hasPhysicalRequirement(required props.TraitSet) bool {
	return !required.Collation.Any() || required.Distribution.Type != props.AnyDistributed
}

// canProvideConvention returns true if the member can be part of a plan with
// the required convention.
func canProvideConvention(n rel.Node, required props.TraitSet) bool {
	return required.Convention == props.AnyConvention || n.Traits().Convention == required.Convention
}

// buildChildTraits returns the traits required of the nth input of parent
// when parent must provide required. The child keeps the convention of the
// subset it references. Operators that do not change the order or the
// placement of rows pass the requirement through to their input; the plan
// built from the children is checked against required afterwards, so a
// requirement that cannot be passed through is simply dropped here and
// provided by an enforcer on top of the parent.
//
// Some operators, like Filter and Project, do not provide a collation or a
// distribution themselves but "pass through" the requirement to their input.
func buildChildTraits(parent rel.Node, required props.TraitSet, nth int) props.TraitSet {
	res := props.TraitSet{Convention: parent.Input(nth).Traits().Convention}
	if !hasPhysicalRequirement(required) {
		return res
	}

	switch t := parent.(type) {
	case *rel.Filter:
		res.Collation = required.Collation
		res.Distribution = required.Distribution

	case *rel.Project:
		// Output ordinals that are plain input references map back to the
		// input.
		m := opt.NewMapping(len(t.Exprs), t.In.RowType().FieldCount())
		for i, e := range t.Exprs {
			if ref, ok := e.(*scalar.InputRef); ok {
				m.Set(i, ref.Index)
			}
		}
		if c := required.Collation.Remap(m); len(c) == len(required.Collation) {
			res.Collation = c
		}
		res.Distribution = required.Distribution.Remap(m)

	case *rel.Sort:
		// The sort provides its own collation.
		res.Distribution = required.Distribution

	case *rel.Join:
		if nth == 0 && streamsLeft(t) && leftOnly(required.Collation, t.Left.RowType().FieldCount()) {
			res.Collation = required.Collation
		}

	case *rel.Correlate:
		if nth == 0 && leftOnly(required.Collation, t.Left.RowType().FieldCount()) {
			res.Collation = required.Collation
			res.Distribution = required.Distribution
		}
	}
	return res
}

// streamsLeft returns true if the join produces its rows in the order of its
// left input.
func streamsLeft(j *rel.Join) bool {
	switch j.Algorithm {
	case rel.NestedLoopAlgorithm, rel.BatchNestedLoopAlgorithm:
		return !j.Type.GeneratesNullsOnLeft()
	}
	return false
}

func leftOnly(c props.Collation, leftCount int) bool {
	for _, f := range c {
		if f.Field >= leftCount {
			return false
		}
	}
	return true
}

// buildEnforcer returns an expression on top of plan that provides the
// collation and distribution of required. The enforcer has the convention of
// plan.
func buildEnforcer(plan rel.Node, required props.TraitSet) (rel.Node, error) {
	needCollation := !required.Collation.Any() && !plan.Traits().Collation.Satisfies(required.Collation)
	needDistribution := required.Distribution.Type != props.AnyDistributed &&
		!plan.Traits().Distribution.Satisfies(required.Distribution)

	var enforcer rel.Node
	var err error
	switch {
	case needCollation && needDistribution:
		enforcer, err = rel.NewSortExchange(plan, required.Distribution, required.Collation)
	case needDistribution:
		enforcer, err = rel.NewExchange(plan, required.Distribution)
		if err == nil && !required.Collation.Any() {
			// An exchange loses the input order.
			enforcer, err = rel.NewSortExchange(plan, required.Distribution, required.Collation)
		}
	case needCollation:
		enforcer, err = rel.NewSort(plan, required.Collation)
	default:
		return plan, nil
	}
	if err != nil {
		return nil, err
	}
	return rel.Convert(enforcer, plan.Traits().Convention), nil
}
