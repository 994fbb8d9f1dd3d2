// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// AggregateCall is one aggregate function computed by an Aggregate.
type AggregateCall struct {
	Func     opt.Operator
	Distinct bool
	// Args are input column ordinals.
	Args []int
	Name string
	Type *types.T
}

// NewAggregateCall returns a call of fn over the given input columns,
// deriving its type. hasEmptyGroup must be true when the aggregate can
// produce a row for an empty input (no group columns, or an empty grouping
// set), in which case the result is nullable.
func NewAggregateCall(
	fn opt.Operator,
	distinct bool,
	args []int,
	name string,
	input *types.RowType,
	hasEmptyGroup bool,
) (AggregateCall, error) {
	if !fn.IsAggregate() {
		return AggregateCall{}, opt.Validationf("%s is not an aggregate function", fn)
	}
	if err := checkOrdinals("aggregate argument", args, input.FieldCount()); err != nil {
		return AggregateCall{}, err
	}
	var typ *types.T
	switch fn {
	case opt.CountOp:
		if len(args) > 1 {
			return AggregateCall{}, opt.Validationf("COUNT takes at most one argument")
		}
		typ = types.Int
	default:
		if len(args) != 1 {
			return AggregateCall{}, opt.Validationf("%s takes one argument", fn)
		}
		argType := input.Field(args[0]).Type
		if fn != opt.MinOp && fn != opt.MaxOp && !argType.IsNumeric() {
			return AggregateCall{}, opt.Validationf("%s requires a numeric argument, got %s", fn, argType.SQLString())
		}
		typ = argType.WithNullable(argType.Nullable || hasEmptyGroup)
	}
	return AggregateCall{Func: fn, Distinct: distinct, Args: args, Name: name, Type: typ}, nil
}

// String formats the call as COUNT(DISTINCT $1).
func (c AggregateCall) String() string {
	var b strings.Builder
	b.WriteString(c.Func.String())
	b.WriteByte('(')
	if c.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, a := range c.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "$%d", a)
	}
	b.WriteByte(')')
	return b.String()
}

// Remap returns the call with its arguments renumbered.
func (c AggregateCall) Remap(m opt.Mapping) AggregateCall {
	args := make([]int, len(c.Args))
	for i, a := range c.Args {
		args[i] = m.Target(a)
	}
	c.Args = args
	return c
}

// Aggregate groups the rows of its input and computes aggregate functions
// per group. The output has the group columns, in ordinal order, followed by
// one column per call.
type Aggregate struct {
	base
	In       Node
	GroupSet opt.ColSet
	// GroupSets is nil for a simple GROUP BY; otherwise every element is a
	// subset of GroupSet.
	GroupSets []opt.ColSet
	Calls     []AggregateCall
}

var _ Node = &Aggregate{}

// NewAggregate returns a logical aggregate.
func NewAggregate(
	input Node, groupSet opt.ColSet, groupSets []opt.ColSet, calls []AggregateCall,
) (*Aggregate, error) {
	return newAggregate(props.Logical(), input, groupSet, groupSets, calls)
}

func newAggregate(
	traits props.TraitSet,
	input Node,
	groupSet opt.ColSet,
	groupSets []opt.ColSet,
	calls []AggregateCall,
) (*Aggregate, error) {
	in := input.RowType()
	if err := checkOrdinals("group column", groupSet.Ordered(), in.FieldCount()); err != nil {
		return nil, err
	}
	for _, gs := range groupSets {
		if !gs.SubsetOf(groupSet) {
			return nil, opt.Validationf("grouping set %s is not a subset of the group set %s", gs, groupSet)
		}
	}
	if len(groupSets) == 1 && groupSets[0].Equals(groupSet) {
		groupSets = nil
	}
	var names []string
	var typs []*types.T
	groupSet.ForEach(func(ord int) {
		f := in.Field(ord)
		names = append(names, f.Name)
		// With grouping sets, a group column is null in the groups that do not
		// include it.
		typs = append(typs, f.Type.WithNullable(f.Type.Nullable || groupSets != nil))
	})
	for i, c := range calls {
		if err := checkOrdinals("aggregate argument", c.Args, in.FieldCount()); err != nil {
			return nil, err
		}
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("$f%d", groupSet.Len()+i)
		}
		names = append(names, name)
		typs = append(typs, c.Type)
	}
	traits.Collation = nil
	traits.Distribution = props.Distribution{}
	return &Aggregate{
		base:      base{traits: traits, rowType: types.MakeRowType(types.UniquifyNames(names), typs)},
		In:        input,
		GroupSet:  groupSet,
		GroupSets: groupSets,
		Calls:     calls,
	}, nil
}

// Op is part of the Node interface.
func (a *Aggregate) Op() opt.Operator { return opt.AggregateOp }

// InputCount is part of the Node interface.
func (a *Aggregate) InputCount() int { return 1 }

// Input is part of the Node interface.
func (a *Aggregate) Input(i int) Node { return a.In }

// Copy is part of the Node interface.
func (a *Aggregate) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(a.Op(), inputs, 1)
	return must(newAggregate(traits, inputs[0], a.GroupSet, a.GroupSets, a.Calls))
}

// IsSimple returns true if the aggregate has no grouping sets.
func (a *Aggregate) IsSimple() bool { return a.GroupSets == nil }

// GroupCount returns the number of group columns.
func (a *Aggregate) GroupCount() int { return a.GroupSet.Len() }

func (a *Aggregate) terms(w *termWriter) {
	w.item("group", a.GroupSet)
	if a.GroupSets != nil {
		sets := make([]string, len(a.GroupSets))
		for i, gs := range a.GroupSets {
			sets[i] = gs.String()
		}
		w.item("groups", "["+strings.Join(sets, ", ")+"]")
	}
	for i, c := range a.Calls {
		w.item(a.rowType.Field(a.GroupCount()+i).Name, c)
	}
}
