// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// SetOp is a UNION, INTERSECT or MINUS of two or more inputs. Without All,
// duplicate rows are removed.
type SetOp struct {
	base
	Operator opt.Operator
	Ins      []Node
	All      bool
}

var _ Node = &SetOp{}

// NewUnion returns a logical union.
func NewUnion(inputs []Node, all bool) (*SetOp, error) {
	return NewSetOp(props.Logical(), opt.UnionOp, inputs, all)
}

// NewIntersect returns a logical intersect.
func NewIntersect(inputs []Node, all bool) (*SetOp, error) {
	return NewSetOp(props.Logical(), opt.IntersectOp, inputs, all)
}

// NewMinus returns a logical minus.
func NewMinus(inputs []Node, all bool) (*SetOp, error) {
	return NewSetOp(props.Logical(), opt.MinusOp, inputs, all)
}

// NewSetOp returns a set operation. The inputs must have the same number of
// fields, with pairwise compatible types. The output takes the names of the
// first input and the least restrictive type of each column.
func NewSetOp(traits props.TraitSet, op opt.Operator, inputs []Node, all bool) (*SetOp, error) {
	if !op.IsSetOp() {
		return nil, errors.AssertionFailedf("%s is not a set operation", op)
	}
	if len(inputs) < 2 {
		return nil, opt.Validationf("%s requires at least two inputs, got %d", op, len(inputs))
	}
	first := inputs[0].RowType()
	typs := make([]*types.T, first.FieldCount())
	for i := range inputs[1:] {
		if n := inputs[i+1].RowType().FieldCount(); n != first.FieldCount() {
			return nil, opt.Validationf("%s input %d has %d fields, expected %d", op, i+1, n, first.FieldCount())
		}
	}
	for col := range typs {
		colTypes := make([]*types.T, len(inputs))
		for i, in := range inputs {
			colTypes[i] = in.RowType().Field(col).Type
		}
		typ, ok := types.LeastRestrictive(colTypes...)
		if !ok {
			return nil, opt.Validationf("%s column %d has incompatible types %v", op, col, colTypes)
		}
		typs[col] = typ
	}
	traits.Collation = nil
	traits.Distribution = props.Distribution{}
	return &SetOp{
		base:     base{traits: traits, rowType: types.MakeRowType(first.FieldNames(), typs)},
		Operator: op,
		Ins:      inputs,
		All:      all,
	}, nil
}

// Op is part of the Node interface.
func (s *SetOp) Op() opt.Operator { return s.Operator }

// InputCount is part of the Node interface.
func (s *SetOp) InputCount() int { return len(s.Ins) }

// Input is part of the Node interface.
func (s *SetOp) Input(i int) Node { return s.Ins[i] }

// Copy is part of the Node interface. Unlike other kinds, a set operation
// can be copied with a different number of inputs.
func (s *SetOp) Copy(traits props.TraitSet, inputs []Node) Node {
	return must(NewSetOp(traits, s.Operator, inputs, s.All))
}

func (s *SetOp) terms(w *termWriter) {
	w.item("all", s.All)
}
