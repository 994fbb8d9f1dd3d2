// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package scalar defines the scalar expressions that appear inside relational
// operators: filter conditions, projections, join conditions and aggregate
// arguments. Expressions are immutable and are compared by their digest, a
// canonical text rendering such as =($1, 1).
package scalar

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// Expr is a scalar expression.
type Expr interface {
	// Op returns the operator of the expression.
	Op() opt.Operator

	// Type returns the type of the value produced by the expression.
	Type() *types.T

	// ChildCount returns the number of operands.
	ChildCount() int

	// Child returns the i-th operand.
	Child(i int) Expr

	// Digest returns the canonical text of the expression. Two expressions
	// with the same digest are interchangeable.
	Digest() string

	String() string
}

// InputRef refers to a column of the input row by ordinal.
type InputRef struct {
	Index int
	Typ   *types.T
}

var _ Expr = &InputRef{}

// NewInputRef returns a reference to the given input column.
func NewInputRef(index int, typ *types.T) *InputRef {
	return &InputRef{Index: index, Typ: typ}
}

// RefTo returns a reference to the given field of a row type.
func RefTo(row *types.RowType, index int) *InputRef {
	return &InputRef{Index: index, Typ: row.Field(index).Type}
}

// Op is part of the Expr interface.
func (e *InputRef) Op() opt.Operator { return opt.InputRefOp }

// Type is part of the Expr interface.
func (e *InputRef) Type() *types.T { return e.Typ }

// ChildCount is part of the Expr interface.
func (e *InputRef) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (e *InputRef) Child(i int) Expr { panic(errors.AssertionFailedf("InputRef has no children")) }

// Digest is part of the Expr interface.
func (e *InputRef) Digest() string { return "$" + strconv.Itoa(e.Index) }

func (e *InputRef) String() string { return e.Digest() }

// CorrelVariable refers to the outer row bound by a correlation id. Its type
// is a record of the outer row's fields.
type CorrelVariable struct {
	ID  opt.CorrelationID
	Typ *types.T
}

var _ Expr = &CorrelVariable{}

// Op is part of the Expr interface.
func (e *CorrelVariable) Op() opt.Operator { return opt.CorrelVariableOp }

// Type is part of the Expr interface.
func (e *CorrelVariable) Type() *types.T { return e.Typ }

// ChildCount is part of the Expr interface.
func (e *CorrelVariable) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (e *CorrelVariable) Child(i int) Expr {
	panic(errors.AssertionFailedf("CorrelVariable has no children"))
}

// Digest is part of the Expr interface.
func (e *CorrelVariable) Digest() string { return e.ID.String() }

func (e *CorrelVariable) String() string { return e.Digest() }

// FieldAccess reads a field of a record-typed expression, in practice of a
// correlation variable.
type FieldAccess struct {
	Input Expr
	Field int
}

var _ Expr = &FieldAccess{}

// NewFieldAccess returns an access to the named field of a record
// expression.
func NewFieldAccess(input Expr, name string) (*FieldAccess, error) {
	row := input.Type().Row
	if row == nil {
		return nil, opt.Validationf("field access %s.%s on a non-record type", input, name)
	}
	idx := row.FieldIndex(name)
	if idx < 0 {
		return nil, opt.Validationf("field %s not found in %s", name, row)
	}
	return &FieldAccess{Input: input, Field: idx}, nil
}

// Name returns the name of the accessed field.
func (e *FieldAccess) Name() string { return e.Input.Type().Row.Field(e.Field).Name }

// Op is part of the Expr interface.
func (e *FieldAccess) Op() opt.Operator { return opt.FieldAccessOp }

// Type is part of the Expr interface.
func (e *FieldAccess) Type() *types.T { return e.Input.Type().Row.Field(e.Field).Type }

// ChildCount is part of the Expr interface.
func (e *FieldAccess) ChildCount() int { return 1 }

// Child is part of the Expr interface.
func (e *FieldAccess) Child(i int) Expr { return e.Input }

// Digest is part of the Expr interface.
func (e *FieldAccess) Digest() string { return e.Input.Digest() + "." + e.Name() }

func (e *FieldAccess) String() string { return e.Digest() }

// LocalRef refers to an entry of the expression list of a Program.
type LocalRef struct {
	Index int
	Typ   *types.T
}

var _ Expr = &LocalRef{}

// Op is part of the Expr interface.
func (e *LocalRef) Op() opt.Operator { return opt.LocalRefOp }

// Type is part of the Expr interface.
func (e *LocalRef) Type() *types.T { return e.Typ }

// ChildCount is part of the Expr interface.
func (e *LocalRef) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (e *LocalRef) Child(i int) Expr { panic(errors.AssertionFailedf("LocalRef has no children")) }

// Digest is part of the Expr interface.
func (e *LocalRef) Digest() string { return "$t" + strconv.Itoa(e.Index) }

func (e *LocalRef) String() string { return e.Digest() }

// Call applies an operator to operands.
type Call struct {
	Operator opt.Operator
	Operands []Expr
	Typ      *types.T
}

var _ Expr = &Call{}

// Op is part of the Expr interface.
func (e *Call) Op() opt.Operator { return e.Operator }

// Type is part of the Expr interface.
func (e *Call) Type() *types.T { return e.Typ }

// ChildCount is part of the Expr interface.
func (e *Call) ChildCount() int { return len(e.Operands) }

// Child is part of the Expr interface.
func (e *Call) Child(i int) Expr { return e.Operands[i] }

// Digest is part of the Expr interface.
func (e *Call) Digest() string {
	var b strings.Builder
	b.WriteString(e.Operator.String())
	b.WriteByte('(')
	for i, o := range e.Operands {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(o.Digest())
	}
	b.WriteByte(')')
	if e.Operator == opt.CastOp {
		b.WriteByte(':')
		b.WriteString(e.Typ.String())
	}
	return b.String()
}

func (e *Call) String() string { return e.Digest() }

// Equal returns true if the expressions have the same digest.
func Equal(a, b Expr) bool {
	if a == b {
		return true
	}
	return a.Digest() == b.Digest()
}

// Digests returns the digests of a list of expressions.
func Digests(exprs []Expr) []string {
	res := make([]string, len(exprs))
	for i, e := range exprs {
		res[i] = e.Digest()
	}
	return res
}
