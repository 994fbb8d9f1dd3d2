// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestOperator(t *testing.T) {
	defer leaktest.AfterTest(t)()

	for op := UnknownOp + 1; op < NumOperators; op++ {
		require.NotEmpty(t, op.String(), "operator %d has no name", op)
		classes := 0
		for _, b := range []bool{op.IsRelational(), op.IsScalar(), op.IsAggregate()} {
			if b {
				classes++
			}
		}
		require.Equal(t, 1, classes, "operator %s", op)
	}

	require.True(t, EqOp.IsComparison())
	require.False(t, PlusOp.IsComparison())
	require.True(t, PlusOp.IsBinaryArithmetic())
	require.False(t, UnaryMinusOp.IsBinaryArithmetic())
	require.True(t, MinusOp.IsSetOp())

	rev, ok := LtOp.Reverse()
	require.True(t, ok)
	require.Equal(t, GtOp, rev)
	neg, ok := LeOp.Negate()
	require.True(t, ok)
	require.Equal(t, GtOp, neg)
	_, ok = AndOp.Reverse()
	require.False(t, ok)

	op, ok := ParseCallOperator("st_dwithin", 3)
	require.True(t, ok)
	require.Equal(t, STDWithinOp, op)
	op, ok = ParseCallOperator("-", 1)
	require.True(t, ok)
	require.Equal(t, UnaryMinusOp, op)
	op, ok = ParseCallOperator("-", 2)
	require.True(t, ok)
	require.Equal(t, SubtractOp, op)
	op, ok = ParseCallOperator("IS NOT NULL", 1)
	require.True(t, ok)
	require.Equal(t, IsNotNullOp, op)
	_, ok = ParseCallOperator("COUNT", 1)
	require.False(t, ok)

	op, ok = ParseAggregate("sum")
	require.True(t, ok)
	require.Equal(t, SumOp, op)
}

func TestMapping(t *testing.T) {
	defer leaktest.AfterTest(t)()

	m := MappingFromColSet(4, MakeColSet(1, 3))
	require.Equal(t, "[1->0, 3->1] (4 sources, 2 targets)", m.String())
	require.Equal(t, -1, m.TargetOpt(0))
	require.Equal(t, 1, m.Target(3))
	require.Equal(t, 3, m.SourceOpt(1))
	require.False(t, m.IsIdentity())
	require.Equal(t, "{0, 1}", m.MapColSet(MakeColSet(0, 1, 3)).String())
	require.True(t, IdentityMapping(3).IsIdentity())

	next := NewMapping(2, 1)
	next.Set(1, 0)
	composed := m.Compose(next)
	require.Equal(t, "[3->0] (4 sources, 1 targets)", composed.String())

	require.Panics(t, func() { m.Target(0) })
}

func TestCorrelationID(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var g CorrelationIDGenerator
	require.Equal(t, CorrelationID(0), g.Next())
	g.Reserve(4)
	require.Equal(t, "$cor5", g.Next().String())

	id, err := ParseCorrelationID("$cor12")
	require.NoError(t, err)
	require.Equal(t, CorrelationID(12), id)
	_, err = ParseCorrelationID("cor1")
	require.Error(t, err)
}

func TestValidationf(t *testing.T) {
	defer leaktest.AfterTest(t)()

	err := Validationf("bad input %d", 3)
	require.True(t, errors.Is(err, ErrValidation))
	require.EqualError(t, err, "bad input 3")
}

func TestCatchOptimizerError(t *testing.T) {
	defer leaktest.AfterTest(t)()

	catch := func(fn func()) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = CatchOptimizerError(r)
			}
		}()
		fn()
		return nil
	}

	require.NoError(t, catch(func() {}))
	require.EqualError(t, catch(func() { panic(fmt.Errorf("boom")) }), "boom")

	err := catch(func() {
		var s []int
		_ = s[3]
	})
	require.Error(t, err)
	require.True(t, errors.HasAssertionFailure(err))

	require.Panics(t, func() { _ = catch(func() { panic("not an error") }) })
}
