// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"strings"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// MultiJoin is a flattened tree of joins over any number of inputs. All of
// its conditions reference the fields of the inputs as one concatenated row.
//
// JoinFilter holds the conditions of the inner joins. An input that is the
// null-generating side of an outer join has join type LeftJoin and carries
// that join's condition in OuterJoinConditions; every other input has join
// type InnerJoin and no outer condition. A multi-join is only built from
// logical joins and is never implemented directly.
type MultiJoin struct {
	base
	Ins        []Node
	JoinFilter scalar.Expr
	// FullOuter is set when the multi-join stands for a single full join of
	// its two inputs.
	FullOuter           bool
	OuterJoinConditions []scalar.Expr
	JoinTypes           []JoinType
	// ProjFields holds, for each input, the fields used above the
	// multi-join. A nil entry stands for all fields.
	ProjFields []*opt.ColSet
	// PostJoinFilter applies to the output of all the joins. It is TRUE when
	// there is none.
	PostJoinFilter scalar.Expr
}

var _ Node = &MultiJoin{}

// MultiJoinSpec holds the parameters of a multi-join. Nil per-input slices
// default to inner joins without outer conditions that use all fields.
type MultiJoinSpec struct {
	JoinFilter          scalar.Expr
	FullOuter           bool
	OuterJoinConditions []scalar.Expr
	JoinTypes           []JoinType
	ProjFields          []*opt.ColSet
	PostJoinFilter      scalar.Expr
}

// NewMultiJoin returns a logical multi-join of the inputs. The row type is
// the one of the joins the multi-join replaces: it has the fields of all
// inputs, possibly made nullable by outer joins.
func NewMultiJoin(inputs []Node, rowType *types.RowType, spec MultiJoinSpec) (*MultiJoin, error) {
	return newMultiJoin(props.Logical(), inputs, rowType, spec)
}

func newMultiJoin(
	traits props.TraitSet, inputs []Node, rowType *types.RowType, spec MultiJoinSpec,
) (*MultiJoin, error) {
	if len(inputs) < 2 {
		return nil, opt.Validationf("multi-join requires at least two inputs, got %d", len(inputs))
	}
	row := inputs[0].RowType()
	for _, in := range inputs[1:] {
		row = concatRowType(row, in.RowType())
	}
	if !rowType.EquivalentTypes(row) {
		return nil, opt.Validationf("multi-join row type %s does not match its inputs %s", rowType, row)
	}
	if spec.FullOuter && len(inputs) != 2 {
		return nil, opt.Validationf("full multi-join requires two inputs, got %d", len(inputs))
	}
	if spec.JoinFilter == nil {
		spec.JoinFilter = scalar.MakeBool(true)
	}
	if spec.PostJoinFilter == nil {
		spec.PostJoinFilter = scalar.MakeBool(true)
	}
	for _, cond := range []scalar.Expr{spec.JoinFilter, spec.PostJoinFilter} {
		if err := checkCondition(cond, row); err != nil {
			return nil, err
		}
	}
	if spec.JoinTypes == nil {
		spec.JoinTypes = make([]JoinType, len(inputs))
	}
	if spec.OuterJoinConditions == nil {
		spec.OuterJoinConditions = make([]scalar.Expr, len(inputs))
	}
	if spec.ProjFields == nil {
		spec.ProjFields = make([]*opt.ColSet, len(inputs))
	}
	if len(spec.JoinTypes) != len(inputs) || len(spec.OuterJoinConditions) != len(inputs) ||
		len(spec.ProjFields) != len(inputs) {
		return nil, opt.Validationf("multi-join has %d inputs but %d join types, %d outer conditions and %d field sets",
			len(inputs), len(spec.JoinTypes), len(spec.OuterJoinConditions), len(spec.ProjFields))
	}
	for i, in := range inputs {
		switch spec.JoinTypes[i] {
		case InnerJoin:
			if spec.OuterJoinConditions[i] != nil {
				return nil, opt.Validationf("multi-join input %d is inner joined but has an outer condition", i)
			}
		case LeftJoin:
			if spec.OuterJoinConditions[i] == nil {
				return nil, opt.Validationf("multi-join input %d is outer joined without a condition", i)
			}
			if err := checkCondition(spec.OuterJoinConditions[i], row); err != nil {
				return nil, err
			}
		default:
			return nil, opt.Validationf("multi-join input %d has unsupported join type %s", i, spec.JoinTypes[i])
		}
		if f := spec.ProjFields[i]; f != nil {
			if err := checkOrdinals("multi-join field", f.Ordered(), in.RowType().FieldCount()); err != nil {
				return nil, err
			}
		}
	}
	traits.Collation = nil
	traits.Distribution = props.Distribution{}
	return &MultiJoin{
		base:                base{traits: traits, rowType: rowType},
		Ins:                 inputs,
		JoinFilter:          spec.JoinFilter,
		FullOuter:           spec.FullOuter,
		OuterJoinConditions: spec.OuterJoinConditions,
		JoinTypes:           spec.JoinTypes,
		ProjFields:          spec.ProjFields,
		PostJoinFilter:      spec.PostJoinFilter,
	}, nil
}

// Spec returns the parameters of the multi-join.
func (j *MultiJoin) Spec() MultiJoinSpec {
	return MultiJoinSpec{
		JoinFilter:          j.JoinFilter,
		FullOuter:           j.FullOuter,
		OuterJoinConditions: j.OuterJoinConditions,
		JoinTypes:           j.JoinTypes,
		ProjFields:          j.ProjFields,
		PostJoinFilter:      j.PostJoinFilter,
	}
}

// WithSpec returns the multi-join with the same inputs and new parameters.
func (j *MultiJoin) WithSpec(spec MultiJoinSpec) (*MultiJoin, error) {
	return newMultiJoin(j.traits, j.Ins, j.rowType, spec)
}

// ContainsOuter returns true if some input is outer joined.
func (j *MultiJoin) ContainsOuter() bool {
	for _, t := range j.JoinTypes {
		if t != InnerJoin {
			return true
		}
	}
	return false
}

// InputOffset returns the position of the first field of input i in the
// concatenated row.
func (j *MultiJoin) InputOffset(i int) int {
	off := 0
	for _, in := range j.Ins[:i] {
		off += in.RowType().FieldCount()
	}
	return off
}

// Op is part of the Node interface.
func (j *MultiJoin) Op() opt.Operator { return opt.MultiJoinOp }

// InputCount is part of the Node interface.
func (j *MultiJoin) InputCount() int { return len(j.Ins) }

// Input is part of the Node interface.
func (j *MultiJoin) Input(i int) Node { return j.Ins[i] }

// Copy is part of the Node interface.
func (j *MultiJoin) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(j.Op(), inputs, len(j.Ins))
	return must(newMultiJoin(traits, inputs, j.rowType, j.Spec()))
}

// scalars returns the conditions of the multi-join: the join filter, the
// post-join filter, then the outer condition of each outer joined input.
func (j *MultiJoin) scalars() []scalar.Expr {
	res := []scalar.Expr{j.JoinFilter, j.PostJoinFilter}
	for _, c := range j.OuterJoinConditions {
		if c != nil {
			res = append(res, c)
		}
	}
	return res
}

// withScalars is the inverse of scalars.
func (j *MultiJoin) withScalars(exprs []scalar.Expr) (*MultiJoin, error) {
	spec := j.Spec()
	spec.JoinFilter, spec.PostJoinFilter = exprs[0], exprs[1]
	exprs = exprs[2:]
	spec.OuterJoinConditions = make([]scalar.Expr, len(j.OuterJoinConditions))
	for i, c := range j.OuterJoinConditions {
		if c != nil {
			spec.OuterJoinConditions[i], exprs = exprs[0], exprs[1:]
		}
	}
	return j.WithSpec(spec)
}

func (j *MultiJoin) terms(w *termWriter) {
	typs := make([]string, len(j.JoinTypes))
	conds := make([]string, len(j.OuterJoinConditions))
	fields := make([]string, len(j.ProjFields))
	for i := range j.Ins {
		typs[i] = strings.ToUpper(j.JoinTypes[i].String())
		conds[i] = "NULL"
		if c := j.OuterJoinConditions[i]; c != nil {
			conds[i] = c.String()
		}
		fields[i] = "ALL"
		if f := j.ProjFields[i]; f != nil {
			fields[i] = f.String()
		}
	}
	w.item("joinFilter", j.JoinFilter)
	w.item("isFullOuterJoin", j.FullOuter)
	w.item("joinTypes", "["+strings.Join(typs, ", ")+"]")
	w.item("outerJoinConditions", "["+strings.Join(conds, ", ")+"]")
	w.item("projFields", "["+strings.Join(fields, ", ")+"]")
	w.itemIf("postJoinFilter", j.PostJoinFilter, !scalar.IsTrue(j.PostJoinFilter))
}
