// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// Literal is a constant. Value holds nil for NULL, a bool, an *apd.Decimal
// for INTEGER and DECIMAL, a float64 for DOUBLE, or a string for VARCHAR.
type Literal struct {
	Value interface{}
	Typ   *types.T
}

var _ Expr = &Literal{}

// Commonly used literals.
var (
	True  = &Literal{Value: true, Typ: types.Bool}
	False = &Literal{Value: false, Typ: types.Bool}
)

// MakeBool returns the TRUE or FALSE literal.
func MakeBool(b bool) *Literal {
	if b {
		return True
	}
	return False
}

// MakeInt returns an INTEGER literal.
func MakeInt(i int64) *Literal {
	return &Literal{Value: apd.New(i, 0), Typ: types.Int}
}

// MakeDecimal returns a DECIMAL literal. Integral values with a zero exponent
// are typed INTEGER.
func MakeDecimal(d *apd.Decimal) *Literal {
	typ := types.Decimal
	if d.Exponent == 0 && d.Form == apd.Finite {
		typ = types.Int
	}
	return &Literal{Value: d, Typ: typ}
}

// MakeFloat returns a DOUBLE literal.
func MakeFloat(f float64) *Literal {
	return &Literal{Value: f, Typ: types.Float}
}

// MakeString returns a VARCHAR literal.
func MakeString(s string) *Literal {
	return &Literal{Value: s, Typ: types.String}
}

// MakeNull returns a NULL literal of the given type.
func MakeNull(typ *types.T) *Literal {
	return &Literal{Typ: typ.WithNullable(true)}
}

// IsNull returns true for the NULL literal.
func (e *Literal) IsNull() bool { return e.Value == nil }

// Op is part of the Expr interface.
func (e *Literal) Op() opt.Operator { return opt.LiteralOp }

// Type is part of the Expr interface.
func (e *Literal) Type() *types.T { return e.Typ }

// ChildCount is part of the Expr interface.
func (e *Literal) ChildCount() int { return 0 }

// Child is part of the Expr interface.
func (e *Literal) Child(i int) Expr { panic(errors.AssertionFailedf("Literal has no children")) }

// Digest is part of the Expr interface. NULL is printed with its type, as in
// null:INTEGER, strings are quoted, and floats use an exponent, as in 1.5E0,
// so that every digest parses back to the same literal.
func (e *Literal) Digest() string {
	switch v := e.Value.(type) {
	case nil:
		return "null:" + e.Typ.SQLString()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case *apd.Decimal:
		return v.Text('f')
	case float64:
		return formatFloat(v)
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	panic(errors.AssertionFailedf("unexpected literal value %T", e.Value))
}

func (e *Literal) String() string { return e.Digest() }

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	s := strconv.FormatFloat(f, 'E', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "E")
	n, _ := strconv.Atoi(exp)
	return mantissa + "E" + strconv.Itoa(n)
}

// IsTrue returns true if e is the TRUE literal.
func IsTrue(e Expr) bool {
	l, ok := e.(*Literal)
	return ok && l.Value == true
}

// IsFalse returns true if e is the FALSE literal.
func IsFalse(e Expr) bool {
	l, ok := e.(*Literal)
	return ok && l.Value == false
}

// IsNullLiteral returns true if e is a NULL literal.
func IsNullLiteral(e Expr) bool {
	l, ok := e.(*Literal)
	return ok && l.IsNull()
}

// NumericValue returns the value of a numeric literal as a float64. A unary
// minus over a numeric literal is folded.
func NumericValue(e Expr) (float64, bool) {
	switch t := e.(type) {
	case *Literal:
		switch v := t.Value.(type) {
		case *apd.Decimal:
			f, err := v.Float64()
			return f, err == nil
		case float64:
			return v, true
		}
	case *Call:
		if t.Operator == opt.UnaryMinusOp {
			if f, ok := NumericValue(t.Operands[0]); ok {
				return -f, true
			}
		}
	}
	return 0, false
}
