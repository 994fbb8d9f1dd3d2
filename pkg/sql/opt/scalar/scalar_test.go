// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"testing"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/types"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

var testRow = types.MakeRowType(
	[]string{"a", "b", "c", "d"},
	[]*types.T{types.Int, types.Int.WithNullable(true), types.String, types.Float},
)

func ref(i int) *InputRef { return RefTo(testRow, i) }

func TestDigest(t *testing.T) {
	defer leaktest.AfterTest(t)()

	d, _, err := apd.NewFromString("2.50")
	require.NoError(t, err)

	testCases := []struct {
		e        Expr
		expected string
	}{
		{e: ref(1), expected: "$1"},
		{e: MakeInt(-3), expected: "-3"},
		{e: MakeDecimal(d), expected: "2.50"},
		{e: MakeFloat(1.5), expected: "1.5E0"},
		{e: MakeFloat(1200), expected: "1.2E3"},
		{e: MakeString("it's"), expected: "'it''s'"},
		{e: MakeNull(types.Int), expected: "null:INTEGER"},
		{e: True, expected: "true"},
		{e: Eq(ref(1), MakeInt(1)), expected: "=($1, 1)"},
		{e: MakeCall(opt.IsNotNullOp, ref(1)), expected: "IS NOT NULL($1)"},
		{e: NewCast(ref(0), types.Float), expected: "CAST($0):DOUBLE NOT NULL"},
		{
			e:        MakeCall(opt.STPointOp, ref(3), MakeInt(2)),
			expected: "ST_POINT($3, 2)",
		},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, tc.e.Digest())
	}

	require.Equal(t, types.IntFamily, MakeDecimal(apd.New(7, 0)).Typ.Family)
	require.Equal(t, types.DecimalFamily, MakeDecimal(d).Typ.Family)
}

func TestCallTyping(t *testing.T) {
	defer leaktest.AfterTest(t)()

	c, err := NewCall(opt.PlusOp, ref(0), ref(3))
	require.NoError(t, err)
	require.Equal(t, "DOUBLE NOT NULL", c.Type().String())

	c, err = NewCall(opt.EqOp, ref(1), MakeInt(1))
	require.NoError(t, err)
	require.Equal(t, "BOOLEAN", c.Type().String())

	_, err = NewCall(opt.EqOp, ref(0), ref(2))
	require.True(t, errors.Is(err, opt.ErrValidation))
	require.EqualError(t, err, "cannot compare INTEGER and VARCHAR")

	_, err = NewCall(opt.AndOp, ref(0), True)
	require.EqualError(t, err, "operand $0 of AND is not boolean")

	_, err = NewCall(opt.NotOp)
	require.EqualError(t, err, "wrong number of operands for NOT: 0")

	_, err = NewCall(opt.CountOp, ref(0))
	require.EqualError(t, err, "COUNT is not a call operator")
}

func TestAndOr(t *testing.T) {
	defer leaktest.AfterTest(t)()

	p := Eq(ref(0), MakeInt(1))
	q := MakeCall(opt.IsNotNullOp, ref(1))
	r := MakeCall(opt.LtOp, ref(3), MakeFloat(2))

	require.Equal(t, "true", And().Digest())
	require.Equal(t, "false", Or().Digest())
	require.Equal(t, p.Digest(), And(p, True).Digest())
	require.Equal(t, "false", And(p, False).Digest())
	require.Equal(t, "true", Or(p, True).Digest())
	require.Equal(t,
		"AND(=($0, 1), IS NOT NULL($1), <($3, 2E0))",
		And(And(p, q), True, r, p).Digest(),
	)
	require.Equal(t, "OR(=($0, 1), IS NOT NULL($1))", Or(p, Or(q, False)).Digest())

	require.Len(t, Conjunctions(And(p, And(q, r))), 3)
	require.Empty(t, Conjunctions(True))
	require.Len(t, Conjunctions(p), 1)
	require.Len(t, Disjunctions(Or(p, q)), 2)

	require.Equal(t, "<>($0, 1)", Not(p).Digest())
	require.Equal(t, "IS NULL($1)", Not(q).Digest())
	require.Equal(t, p.Digest(), Not(MakeCall(opt.NotOp, p)).Digest())
	require.Equal(t, "false", Not(True).Digest())
}

func TestRewrites(t *testing.T) {
	defer leaktest.AfterTest(t)()

	e := And(Eq(ref(0), MakeInt(1)), MakeCall(opt.GtOp, ref(3), ref(1)))
	require.Equal(t, "{0, 1, 3}", InputRefs(e).String())

	require.Equal(t, "AND(=($2, 1), >($5, $3))", Shift(e, 2).Digest())
	require.Equal(t, "AND(=($0, 1), >($13, $11))", ShiftFrom(e, 1, 10).Digest())
	require.Same(t, e, Shift(e, 0))

	m := opt.MappingFromColSet(4, opt.MakeColSet(0, 1, 3))
	remapped, ok := Remap(e, m)
	require.True(t, ok)
	require.Equal(t, "AND(=($0, 1), >($2, $1))", remapped.Digest())

	_, ok = Remap(e, opt.MappingFromColSet(4, opt.MakeColSet(0)))
	require.False(t, ok)

	// Unchanged sub-trees are shared.
	lit := Eq(ref(0), MakeInt(1))
	shifted := ShiftFrom(And(lit, MakeCall(opt.IsNullOp, ref(2))), 2, 1)
	require.Same(t, lit, shifted.Child(0))

	sub := Substitute(Eq(ref(1), MakeInt(1)), []Expr{ref(2), MakeCall(opt.PlusOp, ref(0), MakeInt(1))})
	require.Equal(t, "=(+($0, 1), 1)", sub.Digest())

	require.True(t, Contains(e, opt.GtOp))
	require.False(t, Contains(e, opt.HilbertOp))

	require.True(t, IsIdentity([]Expr{ref(0), ref(1), ref(2), ref(3)}, testRow))
	require.False(t, IsIdentity([]Expr{ref(0), ref(1), ref(3), ref(2)}, testRow))
	require.False(t, IsIdentity([]Expr{ref(0)}, testRow))

	v, ok := NumericValue(MakeCall(opt.UnaryMinusOp, MakeInt(5)))
	require.True(t, ok)
	require.Equal(t, -5.0, v)
	_, ok = NumericValue(MakeString("5"))
	require.False(t, ok)
}

func TestCorrelation(t *testing.T) {
	defer leaktest.AfterTest(t)()

	outer := types.MakeRecord(types.MakeRowType([]string{"deptno", "name"}, []*types.T{types.Int, types.String}))
	cor1 := &CorrelVariable{ID: 1, Typ: outer}
	cor0 := &CorrelVariable{ID: 0, Typ: outer}

	fa, err := NewFieldAccess(cor1, "deptno")
	require.NoError(t, err)
	require.Equal(t, "$cor1.deptno", fa.Digest())
	require.Equal(t, types.Int, fa.Type())

	_, err = NewFieldAccess(cor1, "salary")
	require.EqualError(t, err, "field salary not found in RecordType(INTEGER NOT NULL deptno, VARCHAR NOT NULL name)")
	_, err = NewFieldAccess(ref(0), "x")
	require.Error(t, err)

	fb, err := NewFieldAccess(cor0, "name")
	require.NoError(t, err)
	e := And(Eq(ref(0), fa), Eq(ref(2), fb), Eq(ref(1), fa))
	require.Equal(t, []opt.CorrelationID{0, 1}, CorrelationIDs(e))
}

func TestValidateRefs(t *testing.T) {
	defer leaktest.AfterTest(t)()

	require.NoError(t, ValidateRefs(Eq(ref(0), MakeInt(1)), testRow))

	err := ValidateRefs(Eq(NewInputRef(7, types.Int), MakeInt(1)), testRow)
	require.True(t, errors.Is(err, opt.ErrValidation))
	require.EqualError(t, err, "input reference $7 out of range: the input has 4 fields")

	err = ValidateRefs(NewInputRef(2, types.Int), testRow)
	require.EqualError(t, err, "input reference $2 has type INTEGER, but the field has type VARCHAR")

	err = ValidateRefs(&LocalRef{Index: 0, Typ: types.Int}, testRow)
	require.EqualError(t, err, "local reference $t0 outside of a program")
}

func TestProgram(t *testing.T) {
	defer leaktest.AfterTest(t)()

	sum := MakeCall(opt.PlusOp, ref(0), ref(1))
	projections := []Expr{
		MakeCall(opt.MultOp, sum, sum),
		sum,
		ref(2),
	}
	p := NewProgram(testRow, projections)
	require.Equal(t, `$t0 = $0
$t1 = $1
$t2 = $2
$t3 = $3
$t4 = +($t0, $t1)
$t5 = *($t4, $t4)
projects: [$t5, $t4, $t2]`, p.String())
	require.Equal(t, 1, p.SharedCount())
	require.Equal(t, Digests(projections), Digests(p.ExpandProjects()))

	require.Equal(t, 0, NewProgram(testRow, []Expr{sum, ref(3)}).SharedCount())
}
