// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// arity is the number of operands accepted by a call operator. max < 0
// means no upper bound.
type arity struct{ min, max int }

var callArity = map[opt.Operator]arity{
	opt.AndOp:        {2, -1},
	opt.OrOp:         {2, -1},
	opt.NotOp:        {1, 1},
	opt.EqOp:         {2, 2},
	opt.NeOp:         {2, 2},
	opt.LtOp:         {2, 2},
	opt.LeOp:         {2, 2},
	opt.GtOp:         {2, 2},
	opt.GeOp:         {2, 2},
	opt.IsNullOp:     {1, 1},
	opt.IsNotNullOp:  {1, 1},
	opt.PlusOp:       {2, 2},
	opt.SubtractOp:   {2, 2},
	opt.MultOp:       {2, 2},
	opt.DivOp:        {2, 2},
	opt.UnaryMinusOp: {1, 1},
	opt.CastOp:       {1, 1},
	opt.STPointOp:    {2, 2},
	opt.STDWithinOp:  {3, 3},
	opt.HilbertOp:    {1, 2},
}

// NewCall returns a call of op over the operands, deriving its type. CAST
// calls must be built with NewCast.
func NewCall(op opt.Operator, operands ...Expr) (*Call, error) {
	a, ok := callArity[op]
	if !ok || op == opt.CastOp {
		return nil, opt.Validationf("%s is not a call operator", op)
	}
	if len(operands) < a.min || (a.max >= 0 && len(operands) > a.max) {
		return nil, opt.Validationf("wrong number of operands for %s: %d", op, len(operands))
	}
	typ, err := inferType(op, operands)
	if err != nil {
		return nil, err
	}
	return &Call{Operator: op, Operands: operands, Typ: typ}, nil
}

// MakeCall is like NewCall but panics with an assertion error if the call is
// not valid. It is meant for rules that build calls from operands known to
// be well typed.
func MakeCall(op opt.Operator, operands ...Expr) *Call {
	c, err := NewCall(op, operands...)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "building %s", op))
	}
	return c
}

// NewCast returns a CAST of e to typ.
func NewCast(e Expr, typ *types.T) *Call {
	return &Call{Operator: opt.CastOp, Operands: []Expr{e}, Typ: typ}
}

func anyNullable(operands []Expr) bool {
	for _, o := range operands {
		if o.Type().Nullable {
			return true
		}
	}
	return false
}

func inferType(op opt.Operator, operands []Expr) (*types.T, error) {
	nullable := anyNullable(operands)
	switch op {
	case opt.AndOp, opt.OrOp, opt.NotOp:
		for _, o := range operands {
			if f := o.Type().Family; f != types.BoolFamily && f != types.UnknownFamily {
				return nil, opt.Validationf("operand %s of %s is not boolean", o, op)
			}
		}
		return types.Bool.WithNullable(nullable), nil

	case opt.EqOp, opt.NeOp, opt.LtOp, opt.LeOp, opt.GtOp, opt.GeOp:
		if _, ok := types.LeastRestrictive(operands[0].Type(), operands[1].Type()); !ok {
			return nil, opt.Validationf("cannot compare %s and %s",
				operands[0].Type().SQLString(), operands[1].Type().SQLString())
		}
		return types.Bool.WithNullable(nullable), nil

	case opt.IsNullOp, opt.IsNotNullOp:
		return types.Bool, nil

	case opt.PlusOp, opt.SubtractOp, opt.MultOp, opt.DivOp, opt.UnaryMinusOp:
		typs := make([]*types.T, len(operands))
		for i, o := range operands {
			typs[i] = o.Type()
		}
		typ, ok := types.LeastRestrictive(typs...)
		if !ok || !(typ.IsNumeric() || typ.Family == types.UnknownFamily) {
			return nil, opt.Validationf("%s requires numeric operands", op)
		}
		return typ, nil

	case opt.STPointOp:
		for _, o := range operands {
			if !o.Type().IsNumeric() && o.Type().Family != types.UnknownFamily {
				return nil, opt.Validationf("%s requires numeric operands", op)
			}
		}
		return types.Geometry.WithNullable(nullable), nil

	case opt.STDWithinOp:
		if operands[0].Type().Family != types.GeometryFamily ||
			operands[1].Type().Family != types.GeometryFamily ||
			!operands[2].Type().IsNumeric() {
			return nil, opt.Validationf("%s requires (GEOMETRY, GEOMETRY, numeric) operands", op)
		}
		return types.Bool.WithNullable(nullable), nil

	case opt.HilbertOp:
		if len(operands) == 1 {
			if operands[0].Type().Family != types.GeometryFamily {
				return nil, opt.Validationf("%s of a single operand requires a GEOMETRY", op)
			}
		} else {
			for _, o := range operands {
				if !o.Type().IsNumeric() {
					return nil, opt.Validationf("%s requires numeric operands", op)
				}
			}
		}
		return types.Int.WithNullable(nullable), nil
	}
	return nil, errors.AssertionFailedf("no type inference for %s", op)
}

// And returns the conjunction of the given expressions. Nested ANDs are
// flattened, TRUE operands and duplicates are dropped, and a FALSE operand
// makes the whole conjunction FALSE. The conjunction of nothing is TRUE.
func And(exprs ...Expr) Expr {
	return compose(opt.AndOp, exprs)
}

// Or returns the disjunction of the given expressions, with the same
// simplifications as And. The disjunction of nothing is FALSE.
func Or(exprs ...Expr) Expr {
	return compose(opt.OrOp, exprs)
}

func compose(op opt.Operator, exprs []Expr) Expr {
	identity, absorbing := True, False
	if op == opt.OrOp {
		identity, absorbing = False, True
	}
	var flat []Expr
	seen := make(map[string]struct{})
	var add func(e Expr) bool
	add = func(e Expr) bool {
		if e.Op() == op {
			for _, o := range e.(*Call).Operands {
				if !add(o) {
					return false
				}
			}
			return true
		}
		if Equal(e, absorbing) {
			return false
		}
		if Equal(e, identity) {
			return true
		}
		d := e.Digest()
		if _, ok := seen[d]; ok {
			return true
		}
		seen[d] = struct{}{}
		flat = append(flat, e)
		return true
	}
	for _, e := range exprs {
		if !add(e) {
			return absorbing
		}
	}
	switch len(flat) {
	case 0:
		return identity
	case 1:
		return flat[0]
	}
	return MakeCall(op, flat...)
}

// Not returns the negation of e. Comparisons are negated in place and double
// negations are removed.
func Not(e Expr) Expr {
	switch {
	case IsTrue(e):
		return False
	case IsFalse(e):
		return True
	}
	if c, ok := e.(*Call); ok {
		if c.Operator == opt.NotOp {
			return c.Operands[0]
		}
		if neg, ok := c.Operator.Negate(); ok {
			return &Call{Operator: neg, Operands: c.Operands, Typ: c.Typ}
		}
	}
	return MakeCall(opt.NotOp, e)
}

// Conjunctions splits e into the operands of its top-level AND. TRUE yields
// no conjunctions.
func Conjunctions(e Expr) []Expr {
	return decompose(opt.AndOp, e, True)
}

// Disjunctions splits e into the operands of its top-level OR. FALSE yields
// no disjunctions.
func Disjunctions(e Expr) []Expr {
	return decompose(opt.OrOp, e, False)
}

func decompose(op opt.Operator, e Expr, identity Expr) []Expr {
	var res []Expr
	var walk func(e Expr)
	walk = func(e Expr) {
		if e.Op() == op {
			for _, o := range e.(*Call).Operands {
				walk(o)
			}
			return
		}
		if !Equal(e, identity) {
			res = append(res, e)
		}
	}
	walk(e)
	return res
}

// Eq returns =(left, right).
func Eq(left, right Expr) Expr { return MakeCall(opt.EqOp, left, right) }
