// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// ReplaceFunc is the callback function passed to ReplaceChildren. It is
// called with each child of the expression being rebuilt and returns the
// replacement. To keep walking the tree, the function calls ReplaceChildren
// itself:
//
//	var replace ReplaceFunc
//	replace = func(e Expr) Expr {
//	  if ref, ok := e.(*InputRef); ok {
//	    return NewInputRef(ref.Index+1, ref.Typ)
//	  }
//	  return ReplaceChildren(e, replace)
//	}
//	replace(root)
type ReplaceFunc func(e Expr) Expr

// ReplaceChildren returns e with each child replaced by replace(child). If no
// child changes, e itself is returned.
func ReplaceChildren(e Expr, replace ReplaceFunc) Expr {
	switch t := e.(type) {
	case *Call:
		var operands []Expr
		for i, o := range t.Operands {
			n := replace(o)
			if n != o && operands == nil {
				operands = make([]Expr, len(t.Operands))
				copy(operands, t.Operands[:i])
			}
			if operands != nil {
				operands[i] = n
			}
		}
		if operands == nil {
			return e
		}
		if t.Operator == opt.CastOp {
			return NewCast(operands[0], t.Typ)
		}
		c, err := NewCall(t.Operator, operands...)
		if err != nil {
			panic(errors.NewAssertionErrorWithWrappedErrf(err, "rebuilding %s", t))
		}
		return c

	case *FieldAccess:
		n := replace(t.Input)
		if n == t.Input {
			return e
		}
		return &FieldAccess{Input: n, Field: t.Field}
	}
	return e
}

// Walk calls fn on e and its descendants in pre-order. Children of an
// expression are skipped when fn returns false.
func Walk(e Expr, fn func(e Expr) bool) {
	if !fn(e) {
		return
	}
	for i, n := 0, e.ChildCount(); i < n; i++ {
		Walk(e.Child(i), fn)
	}
}

// Contains returns true if e has a sub-expression with the given operator.
func Contains(e Expr, op opt.Operator) bool {
	found := false
	Walk(e, func(e Expr) bool {
		if e.Op() == op {
			found = true
		}
		return !found
	})
	return found
}

// InputRefs returns the ordinals of the input columns referenced by the
// expressions.
func InputRefs(exprs ...Expr) opt.ColSet {
	var cols opt.ColSet
	for _, e := range exprs {
		Walk(e, func(e Expr) bool {
			if ref, ok := e.(*InputRef); ok {
				cols.Add(ref.Index)
			}
			return true
		})
	}
	return cols
}

// CorrelationIDs returns the sorted, distinct correlation ids referenced by
// the expressions.
func CorrelationIDs(exprs ...Expr) []opt.CorrelationID {
	seen := make(map[opt.CorrelationID]struct{})
	var ids []opt.CorrelationID
	for _, e := range exprs {
		Walk(e, func(e Expr) bool {
			if v, ok := e.(*CorrelVariable); ok {
				if _, ok := seen[v.ID]; !ok {
					seen[v.ID] = struct{}{}
					ids = append(ids, v.ID)
				}
			}
			return true
		})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Shift adds delta to every input reference.
func Shift(e Expr, delta int) Expr {
	return ShiftFrom(e, 0, delta)
}

// ShiftFrom adds delta to every input reference whose ordinal is at least
// start.
func ShiftFrom(e Expr, start, delta int) Expr {
	if delta == 0 {
		return e
	}
	var replace ReplaceFunc
	replace = func(e Expr) Expr {
		if ref, ok := e.(*InputRef); ok {
			if ref.Index >= start {
				return NewInputRef(ref.Index+delta, ref.Typ)
			}
			return e
		}
		return ReplaceChildren(e, replace)
	}
	return replace(e)
}

// ShiftAll applies Shift to each expression.
func ShiftAll(exprs []Expr, delta int) []Expr {
	res := make([]Expr, len(exprs))
	for i := range exprs {
		res[i] = Shift(exprs[i], delta)
	}
	return res
}

// Remap renumbers the input references of e through the mapping. It returns
// false if e references a column that the mapping does not map.
func Remap(e Expr, m opt.Mapping) (Expr, bool) {
	ok := true
	var replace ReplaceFunc
	replace = func(e Expr) Expr {
		if ref, isRef := e.(*InputRef); isRef {
			t := m.TargetOpt(ref.Index)
			if t < 0 {
				ok = false
				return e
			}
			if t == ref.Index {
				return e
			}
			return NewInputRef(t, ref.Typ)
		}
		return ReplaceChildren(e, replace)
	}
	res := replace(e)
	return res, ok
}

// MustRemap is like Remap but panics with an assertion error if a referenced
// column is not mapped.
func MustRemap(e Expr, m opt.Mapping) Expr {
	res, ok := Remap(e, m)
	if !ok {
		panic(errors.AssertionFailedf("%s references a column not in %s", e, m))
	}
	return res
}

// Substitute replaces each input reference $i of e with exprs[i].
func Substitute(e Expr, exprs []Expr) Expr {
	var replace ReplaceFunc
	replace = func(e Expr) Expr {
		if ref, ok := e.(*InputRef); ok {
			return exprs[ref.Index]
		}
		return ReplaceChildren(e, replace)
	}
	return replace(e)
}

// IsIdentity returns true if exprs are the references $0, $1, ... to every
// field of the input row type, in order.
func IsIdentity(exprs []Expr, input *types.RowType) bool {
	if len(exprs) != input.FieldCount() {
		return false
	}
	for i, e := range exprs {
		ref, ok := e.(*InputRef)
		if !ok || ref.Index != i {
			return false
		}
	}
	return true
}

// ValidateRefs checks that every input reference of e is below fieldCount
// and has a type equivalent to the referenced field. Local references are
// not allowed.
func ValidateRefs(e Expr, input *types.RowType) error {
	var err error
	Walk(e, func(e Expr) bool {
		if err != nil {
			return false
		}
		switch t := e.(type) {
		case *InputRef:
			if t.Index < 0 || t.Index >= input.FieldCount() {
				err = opt.Validationf("input reference %s out of range: the input has %d fields",
					t, input.FieldCount())
			} else if f := input.Field(t.Index).Type; !f.Equivalent(t.Typ) &&
				f.Family != types.UnknownFamily && t.Typ.Family != types.UnknownFamily {
				err = opt.Validationf("input reference %s has type %s, but the field has type %s",
					t, t.Typ.SQLString(), f.SQLString())
			}
		case *LocalRef:
			err = opt.Validationf("local reference %s outside of a program", t)
		}
		return true
	})
	return err
}
