// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

type fakeColumn struct {
	name string
	typ  *types.T
}

func (c fakeColumn) ColName() string { return c.name }
func (c fakeColumn) DatumType() *types.T { return c.typ }

type fakeTable struct {
	name       cat.DataSourceName
	cols       []fakeColumn
	collations []props.Collation
	filterable bool
}

func (t *fakeTable) Name() cat.DataSourceName { return t.name }
func (t *fakeTable) ColumnCount() int { return len(t.cols) }
func (t *fakeTable) Column(i int) cat.Column { return t.cols[i] }
func (t *fakeTable) RowCount() float64 { return 100 }
func (t *fakeTable) Keys() []opt.ColSet { return nil }
func (t *fakeTable) Collations() []props.Collation { return t.collations }
func (t *fakeTable) Distribution() props.Distribution { return props.Distribution{} }
func (t *fakeTable) CheckConstraints() []scalar.Expr { return nil }
func (t *fakeTable) Filterable() bool { return t.filterable }

var emp = &fakeTable{
	name: cat.DataSourceName{"sales", "emp"},
	cols: []fakeColumn{
		{"empno", types.Int},
		{"ename", types.String.WithNullable(true)},
		{"deptno", types.Int},
	},
	collations: []props.Collation{props.Asc(0)},
	filterable: true,
}

var dept = &fakeTable{
	name: cat.DataSourceName{"sales", "dept"},
	cols: []fakeColumn{
		{"deptno", types.Int},
		{"name", types.String},
	},
}

func requireValidation(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.Is(err, opt.ErrValidation), "%v", err)
	require.EqualError(t, err, msg)
}

func TestScan(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewScan(emp)
	require.Equal(t, "LogicalTableScan(table=[[sales, emp]])\n", Explain(s))
	require.Equal(t, "RecordType(INTEGER NOT NULL empno, VARCHAR ename, INTEGER NOT NULL deptno)", s.RowType().String())
	require.Equal(t, "[0]", s.Traits().Collation.String())

	cond := scalar.Eq(scalar.RefTo(s.RowType(), 2), scalar.MakeInt(10))
	fs, err := NewFilteredScan(props.Logical(), emp, []int{2, 0}, []scalar.Expr{cond})
	require.NoError(t, err)
	require.Equal(t, "LogicalTableScan(table=[[sales, emp]], filters=[[=($2, 10)]], projects=[[2, 0]])", Describe(fs))
	require.Equal(t, []string{"deptno", "empno"}, fs.RowType().FieldNames())
	// The table collation on column 0 is now on the second column.
	require.Equal(t, "[1]", fs.Traits().Collation.String())

	fs, err = NewFilteredScan(props.Logical(), emp, []int{2}, nil)
	require.NoError(t, err)
	require.True(t, fs.Traits().Collation.Any())

	_, err = NewFilteredScan(props.Logical(), dept, []int{0}, nil)
	requireValidation(t, err, "table [sales, dept] cannot evaluate filters or projections")
	_, err = NewFilteredScan(props.Logical(), emp, []int{3}, nil)
	requireValidation(t, err, "projected column ordinal 3 out of range: the input has 3 fields")
}

func TestValues(t *testing.T) {
	defer leaktest.AfterTest(t)()

	rowType := types.MakeRowType([]string{"a", "b"}, []*types.T{types.Int, types.String.WithNullable(true)})
	v, err := NewValues(rowType, [][]*scalar.Literal{
		{scalar.MakeInt(1), scalar.MakeString("x")},
		{scalar.MakeInt(2), scalar.MakeNull(types.String)},
	})
	require.NoError(t, err)
	require.Equal(t, "LogicalValues(tuples=[[{ 1, 'x' }, { 2, null:VARCHAR }]])", Describe(v))

	_, err = NewValues(rowType, [][]*scalar.Literal{{scalar.MakeInt(1)}})
	requireValidation(t, err, "tuple 0 has 1 values, expected 2")
	_, err = NewValues(rowType, [][]*scalar.Literal{{scalar.MakeNull(types.Int), scalar.MakeString("x")}})
	requireValidation(t, err, "NULL in non-nullable field a")
	_, err = NewValues(rowType, [][]*scalar.Literal{{scalar.MakeString("1"), scalar.MakeString("x")}})
	requireValidation(t, err, "value '1' does not match the type INTEGER of field a")
}

func TestFilterProject(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewScan(emp)
	row := s.RowType()
	f, err := NewFilter(s, scalar.Eq(scalar.RefTo(row, 2), scalar.MakeInt(1)))
	require.NoError(t, err)
	require.Equal(t, "[0]", f.Traits().Collation.String())

	_, err = NewFilter(s, scalar.RefTo(row, 0))
	requireValidation(t, err, "condition $0 is not boolean")
	_, err = NewFilter(s, scalar.Eq(scalar.NewInputRef(5, types.Int), scalar.MakeInt(1)))
	requireValidation(t, err, "input reference $5 out of range: the input has 3 fields")

	p, err := NewProject(f, []scalar.Expr{
		scalar.RefTo(row, 2),
		scalar.RefTo(row, 0),
		scalar.MakeCall(opt.PlusOp, scalar.RefTo(row, 0), scalar.MakeInt(1)),
		scalar.RefTo(row, 2),
	}, []string{"deptno", "empno", "", "deptno"})
	require.NoError(t, err)
	require.Equal(t, []string{"deptno", "empno", "$f2", "deptno0"}, p.RowType().FieldNames())
	// The input collation on $0 is now on column 1.
	require.Equal(t, "[1]", p.Traits().Collation.String())
	require.False(t, p.IsIdentity())

	require.Equal(t, `LogicalProject(deptno=[$2], empno=[$0], $f2=[+($0, 1)], deptno0=[$2])
  LogicalFilter(condition=[=($2, 1)])
    LogicalTableScan(table=[[sales, emp]])
`, Explain(p))

	id, err := NewIdentityProject(s, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"$f0", "$f1", "$f2"}, id.RowType().FieldNames())
	require.False(t, id.IsIdentity())
	id, err = NewIdentityProject(s, row.FieldNames())
	require.NoError(t, err)
	require.True(t, id.IsIdentity())

	_, err = NewProject(s, []scalar.Expr{scalar.RefTo(row, 0)}, []string{"a", "b"})
	requireValidation(t, err, "project has 1 expressions but 2 names")
}

func TestJoin(t *testing.T) {
	defer leaktest.AfterTest(t)()

	e, d := NewScan(emp), NewScan(dept)
	all := concatRowType(e.RowType(), d.RowType())
	cond := scalar.Eq(scalar.RefTo(all, 2), scalar.RefTo(all, 3))

	j, err := NewJoin(e, d, cond, LeftJoin)
	require.NoError(t, err)
	require.Equal(t,
		"RecordType(INTEGER NOT NULL empno, VARCHAR ename, INTEGER NOT NULL deptno, INTEGER deptno0, VARCHAR name)",
		j.RowType().String())
	require.Equal(t, "LogicalJoin(condition=[=($2, $3)], joinType=[left])", Describe(j))

	semi, err := NewJoin(e, d, cond, SemiJoin)
	require.NoError(t, err)
	require.Equal(t, 3, semi.RowType().FieldCount())

	full, err := NewJoin(e, d, cond, FullJoin)
	require.NoError(t, err)
	require.True(t, full.RowType().Field(0).Type.Nullable)

	_, err = NewJoin(e, d, scalar.Eq(scalar.NewInputRef(5, types.Int), scalar.MakeInt(1)), InnerJoin)
	requireValidation(t, err, "input reference $5 out of range: the input has 5 fields")

	hash, err := NewJoinWithSpec(props.Enumerable(), e, d, cond, JoinSpec{Type: InnerJoin, Algorithm: HashJoinAlgorithm})
	require.NoError(t, err)
	require.Equal(t, "EnumerableHashJoin(condition=[=($2, $3)], joinType=[inner])", Describe(hash))

	bnl, err := NewJoinWithSpec(props.Enumerable(), e, d, cond, JoinSpec{
		Type:            InnerJoin,
		Algorithm:       BatchNestedLoopAlgorithm,
		CorrelationIDs:  []opt.CorrelationID{0, 1},
		RequiredColumns: opt.MakeColSet(2),
	})
	require.NoError(t, err)
	require.Equal(t,
		"EnumerableBatchNestedLoopJoin(condition=[=($2, $3)], joinType=[inner], variablesSet=[[$cor0, $cor1]], requiredColumns=[{2}])",
		Describe(bnl))
	require.Equal(t, "[0]", bnl.Traits().Collation.String())

	_, err = NewJoinWithSpec(props.Enumerable(), e, d, cond, JoinSpec{
		Type: FullJoin, Algorithm: BatchNestedLoopAlgorithm, CorrelationIDs: []opt.CorrelationID{0},
	})
	requireValidation(t, err, "batched nested-loop join does not support full joins")
}

func TestCorrelate(t *testing.T) {
	defer leaktest.AfterTest(t)()

	d, e := NewScan(dept), NewScan(emp)
	outer := types.MakeRecord(d.RowType())
	fa, err := scalar.NewFieldAccess(&scalar.CorrelVariable{ID: 0, Typ: outer}, "deptno")
	require.NoError(t, err)
	right, err := NewFilter(e, scalar.Eq(scalar.RefTo(e.RowType(), 2), fa))
	require.NoError(t, err)

	c, err := NewCorrelate(d, right, 0, opt.MakeColSet(0), InnerJoin)
	require.NoError(t, err)
	require.Equal(t, `LogicalCorrelate(correlation=[$cor0], joinType=[inner], requiredColumns=[{0}])
  LogicalTableScan(table=[[sales, dept]])
  LogicalFilter(condition=[=($2, $cor0.deptno)])
    LogicalTableScan(table=[[sales, emp]])
`, Explain(c))
	require.Equal(t, 5, c.RowType().FieldCount())

	_, err = NewCorrelate(d, right, 0, opt.MakeColSet(0), FullJoin)
	requireValidation(t, err, "correlate does not support full joins")
	_, err = NewCorrelate(d, right, 0, opt.MakeColSet(4), InnerJoin)
	requireValidation(t, err, "required column ordinal 4 out of range: the input has 2 fields")
}

func TestMultiJoin(t *testing.T) {
	defer leaktest.AfterTest(t)()

	e, d := NewScan(emp), NewScan(dept)
	j, err := NewJoin(e, d, scalar.MakeBool(true), LeftJoin)
	require.NoError(t, err)
	all := concatRowType(e.RowType(), d.RowType())
	cond := scalar.Eq(scalar.RefTo(all, 2), scalar.RefTo(all, 3))

	mj, err := NewMultiJoin([]Node{e, d}, j.RowType(), MultiJoinSpec{
		JoinTypes:           []JoinType{InnerJoin, LeftJoin},
		OuterJoinConditions: []scalar.Expr{nil, cond},
	})
	require.NoError(t, err)
	require.Equal(t,
		"LogicalMultiJoin(joinFilter=[true], isFullOuterJoin=[false], joinTypes=[[INNER, LEFT]], outerJoinConditions=[[NULL, =($2, $3)]], projFields=[[ALL, ALL]])",
		Describe(mj))
	require.True(t, mj.ContainsOuter())
	require.Equal(t, 3, mj.InputOffset(1))
	require.Len(t, Scalars(mj), 3)

	swapped := ReplaceScalars(mj, func(x scalar.Expr) scalar.Expr {
		if x.Op() == opt.EqOp {
			return scalar.Eq(x.Child(1), x.Child(0))
		}
		return x
	}).(*MultiJoin)
	require.Equal(t, "=($3, $2)", swapped.OuterJoinConditions[1].String())
	require.Nil(t, swapped.OuterJoinConditions[0])
	require.True(t, scalar.IsTrue(swapped.JoinFilter))

	_, err = NewMultiJoin([]Node{e}, e.RowType(), MultiJoinSpec{})
	requireValidation(t, err, "multi-join requires at least two inputs, got 1")
	_, err = NewMultiJoin([]Node{e, d}, e.RowType(), MultiJoinSpec{})
	require.True(t, errors.Is(err, opt.ErrValidation), "%v", err)
	_, err = NewMultiJoin([]Node{e, d}, j.RowType(), MultiJoinSpec{JoinTypes: []JoinType{InnerJoin, LeftJoin}})
	requireValidation(t, err, "multi-join input 1 is outer joined without a condition")
	_, err = NewMultiJoin([]Node{e, d}, j.RowType(), MultiJoinSpec{JoinTypes: []JoinType{InnerJoin, SemiJoin}})
	requireValidation(t, err, "multi-join input 1 has unsupported join type semi")
	fields := opt.MakeColSet(2)
	_, err = NewMultiJoin([]Node{e, d}, j.RowType(), MultiJoinSpec{ProjFields: []*opt.ColSet{nil, &fields}})
	requireValidation(t, err, "multi-join field ordinal 2 out of range: the input has 2 fields")
}

func TestAggregate(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewScan(emp)
	count, err := NewAggregateCall(opt.CountOp, false, nil, "c", s.RowType(), false)
	require.NoError(t, err)
	sum, err := NewAggregateCall(opt.SumOp, true, []int{0}, "", s.RowType(), false)
	require.NoError(t, err)

	a, err := NewAggregate(s, opt.MakeColSet(2), nil, []AggregateCall{count, sum})
	require.NoError(t, err)
	require.Equal(t, "LogicalAggregate(group=[{2}], c=[COUNT()], $f2=[SUM(DISTINCT $0)])", Describe(a))
	require.Equal(t,
		"RecordType(INTEGER NOT NULL deptno, INTEGER NOT NULL c, INTEGER NOT NULL $f2)",
		a.RowType().String())
	require.True(t, a.IsSimple())

	global, err := NewAggregateCall(opt.MaxOp, false, []int{1}, "m", s.RowType(), true)
	require.NoError(t, err)
	require.True(t, global.Type.Nullable)

	gs, err := NewAggregate(s, opt.MakeColSet(0, 2), []opt.ColSet{opt.MakeColSet(0, 2), opt.MakeColSet()}, nil)
	require.NoError(t, err)
	require.Equal(t, "LogicalAggregate(group=[{0, 2}], groups=[[{0, 2}, {}]])", Describe(gs))
	require.True(t, gs.RowType().Field(0).Type.Nullable)

	_, err = NewAggregate(s, opt.MakeColSet(0), []opt.ColSet{opt.MakeColSet(1)}, nil)
	requireValidation(t, err, "grouping set {1} is not a subset of the group set {0}")
	_, err = NewAggregateCall(opt.SumOp, false, []int{1}, "s", s.RowType(), false)
	requireValidation(t, err, "SUM requires a numeric argument, got VARCHAR")
	_, err = NewAggregateCall(opt.EqOp, false, nil, "s", s.RowType(), false)
	requireValidation(t, err, "= is not an aggregate function")
}

func TestSetOp(t *testing.T) {
	defer leaktest.AfterTest(t)()

	rt := func(typ *types.T) *types.RowType {
		return types.MakeRowType([]string{"x"}, []*types.T{typ})
	}
	v1, err := NewValues(rt(types.Int), [][]*scalar.Literal{{scalar.MakeInt(1)}})
	require.NoError(t, err)
	v2, err := NewValues(rt(types.Float.WithNullable(true)), nil)
	require.NoError(t, err)

	u, err := NewUnion([]Node{v1, v2}, true)
	require.NoError(t, err)
	require.Equal(t, "RecordType(DOUBLE x)", u.RowType().String())
	require.Equal(t, "LogicalUnion(all=[true])", Describe(u))

	_, err = NewUnion([]Node{v1}, true)
	requireValidation(t, err, "Union requires at least two inputs, got 1")

	s := NewScan(emp)
	_, err = NewIntersect([]Node{v1, s}, false)
	requireValidation(t, err, "Intersect input 1 has 3 fields, expected 1")

	v3, err := NewValues(rt(types.String), nil)
	require.NoError(t, err)
	_, err = NewMinus([]Node{v1, v3}, false)
	requireValidation(t, err, "Minus column 0 has incompatible types [INTEGER NOT NULL VARCHAR NOT NULL]")

	three := u.Copy(u.Traits(), []Node{v1, v2, v1})
	require.Equal(t, 3, three.InputCount())
}

func TestSortExchange(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewScan(dept)
	sort, err := NewLimit(s, props.Collation{{Field: 1, Direction: props.Descending}, {Field: 0}}, 2, 10)
	require.NoError(t, err)
	require.Equal(t, "LogicalSort(sort0=[$1], sort1=[$0], dir0=[DESC], dir1=[ASC], offset=[2], fetch=[10])", Describe(sort))
	require.Equal(t, "[1 DESC, 0]", sort.Traits().Collation.String())
	require.True(t, sort.HasLimit())

	_, err = NewSort(s, props.Asc(2))
	requireValidation(t, err, "sort key ordinal 2 out of range: the input has 2 fields")

	ex, err := NewExchange(sort, props.Hash(0))
	require.NoError(t, err)
	require.Equal(t, "LogicalExchange(distribution=[hash[0]])", Describe(ex))
	require.True(t, ex.Traits().Collation.Any())

	se, err := NewSortExchange(s, props.Distribution{Type: props.Singleton}, props.Asc(1))
	require.NoError(t, err)
	require.Equal(t, "LogicalSortExchange(distribution=[single], collation=[[1]])", Describe(se))
	require.Equal(t, "Logical.[1].single", se.Traits().String())
}

func TestReplace(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewScan(emp)
	row := s.RowType()
	f, err := NewFilter(s, scalar.Eq(scalar.RefTo(row, 2), scalar.MakeInt(1)))
	require.NoError(t, err)
	p, err := NewProject(f, []scalar.Expr{scalar.RefTo(row, 0)}, []string{"empno"})
	require.NoError(t, err)

	// Unhandled kinds are rebuilt with their inputs rewritten.
	res := Replace(p, func(n Node) (Node, bool) {
		if flt, ok := n.(*Filter); ok {
			return flt.In, true
		}
		return nil, false
	})
	require.Equal(t, "LogicalProject(empno=[$0])\n  LogicalTableScan(table=[[sales, emp]])\n", Explain(res))

	// A rewrite that changes nothing returns the same tree.
	same := Replace(p, func(n Node) (Node, bool) { return nil, false })
	require.Same(t, p, same)

	shifted := ReplaceScalars(f, func(e scalar.Expr) scalar.Expr {
		return scalar.Eq(scalar.RefTo(row, 0), scalar.MakeInt(7))
	})
	require.Equal(t, "LogicalFilter(condition=[=($0, 7)])", Describe(shifted))
	require.Same(t, s, shifted.Input(0))

	enumerable := Convert(f, props.EnumerableConvention)
	require.Equal(t, "EnumerableFilter(condition=[=($2, 1)])", Describe(enumerable))
	require.Same(t, f, Convert(f, props.LogicalConvention))

	var kinds []string
	Walk(p, func(n Node) bool {
		kinds = append(kinds, n.Op().String())
		return true
	})
	require.Equal(t, []string{"Project", "Filter", "TableScan"}, kinds)

	require.Equal(t,
		"LogicalProject(empno=[$0]){LogicalFilter(condition=[=($2, 1)]){LogicalTableScan(table=[[sales, emp]])}}",
		Digest(p))

	sub := NewSubset(4, row, props.Enumerable())
	require.Equal(t, "Subset#4.Enumerable.[].any", Digest(sub))
}

func TestExplainOptions(t *testing.T) {
	defer leaktest.AfterTest(t)()

	s := NewScan(dept)
	out := ExplainWith(s, ExplainOptions{
		RowType:  true,
		Traits:   true,
		Annotate: func(n Node) string { return "rowcount = 100.0" },
	})
	require.Equal(t,
		"LogicalTableScan(table=[[sales, dept]]) traits=[Logical.[].any] rowType=[RecordType(INTEGER NOT NULL deptno, VARCHAR NOT NULL name)]: rowcount = 100.0\n",
		out)
}
