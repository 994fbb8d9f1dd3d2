// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/norm"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/relopt/pkg/sql/types"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/google/go-cmp/cmp"
	"github.com/kr/pretty"
	"github.com/stretchr/testify/require"
)

func TestTrim(t *testing.T) {
	defer leaktest.AfterTest(t)()

	testCases := []struct {
		name string
		plan string
		exp  string
	}{
		{
			// Only empno is needed above the filter, which needs deptno: the
			// inner projection becomes a narrowed scan.
			name: "filter-over-project",
			plan: `
project:
  exprs: [$0]
  input:
    filter:
      condition: "=($2, 10)"
      input:
        project:
          exprs: [$0, $1, $5]
          input: {scan: emp}
`,
			exp: `LogicalProject(empno=[$0])
  LogicalFilter(condition=[=($1, 10)])
    LogicalTableScan(table=[[sales, emp]], projects=[[0, 5]])
`,
		},
		{
			name: "aggregate-unused-calls",
			plan: `
project:
  exprs: [$0]
  input:
    aggregate:
      group: [5]
      calls: ["COUNT() AS c", "SUM($4) AS s"]
      input: {scan: emp}
`,
			exp: `LogicalAggregate(group=[{0}])
  LogicalTableScan(table=[[sales, emp]], projects=[[5]])
`,
		},
		{
			// dept cannot narrow its scan, so each union input gets a
			// projection.
			name: "union-all",
			plan: `
project:
  exprs: [$1]
  input:
    union:
      all: true
      inputs: [{scan: dept}, {scan: dept}]
`,
			exp: `LogicalUnion(all=[true])
  LogicalProject(name=[$1])
    LogicalTableScan(table=[[sales, dept]])
  LogicalProject(name=[$1])
    LogicalTableScan(table=[[sales, dept]])
`,
		},
		{
			name: "union-distinct",
			plan: `
project:
  exprs: [$1]
  input:
    union:
      inputs: [{scan: dept}, {scan: dept}]
`,
			exp: `LogicalProject(name=[$1])
  LogicalUnion(all=[false])
    LogicalTableScan(table=[[sales, dept]])
    LogicalTableScan(table=[[sales, dept]])
`,
		},
		{
			name: "correlate",
			plan: `
project:
  exprs: [$1, $7]
  input:
    correlate:
      id: 0
      left: {scan: emp}
      right:
        filter:
          condition: "=($0, $cor0.deptno)"
          input: {scan: dept}
`,
			exp: `LogicalProject(ename=[$0], name=[$3])
  LogicalCorrelate(correlation=[$cor0], joinType=[inner], requiredColumns=[{1}])
    LogicalTableScan(table=[[sales, emp]], projects=[[1, 5]])
    LogicalFilter(condition=[=($0, $cor0.deptno)])
      LogicalTableScan(table=[[sales, dept]])
`,
		},
		{
			name: "join",
			plan: `
project:
  exprs: [$1, $7]
  input:
    join:
      condition: "=($5, $6)"
      left: {scan: emp}
      right: {scan: dept}
`,
			exp: `LogicalProject(ename=[$0], name=[$3])
  LogicalJoin(condition=[=($1, $2)], joinType=[inner])
    LogicalTableScan(table=[[sales, emp]], projects=[[1, 5]])
    LogicalTableScan(table=[[sales, dept]])
`,
		},
		{
			name: "sort-key",
			plan: `
project:
  exprs: [$1]
  input:
    sort:
      collation: [2]
      input: {scan: emp}
`,
			exp: `LogicalProject(ename=[$0])
  LogicalSort(sort0=[$1], dir0=[ASC])
    LogicalTableScan(table=[[sales, emp]], projects=[[1, 2]])
`,
		},
		{
			name: "nothing-to-trim",
			plan: `
filter:
  condition: "=($1, 'x')"
  input: {scan: dept}
`,
			exp: `LogicalFilter(condition=[=($1, 'x')])
  LogicalTableScan(table=[[sales, dept]])
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := testutils.BuildSamplePlan(t, tc.plan)
			res, err := norm.NewTrimmer().Trim(root)
			require.NoError(t, err)
			require.Equal(t, tc.exp, rel.Explain(res))
			require.True(t, res.RowType().Equals(root.RowType()))
		})
	}
}

func TestTrimNoNarrowScans(t *testing.T) {
	defer leaktest.AfterTest(t)()

	root := testutils.BuildSamplePlan(t, `
project:
  exprs: [$0]
  input:
    filter:
      condition: "=($5, 10)"
      input: {scan: emp}
`)
	res, err := norm.NewTrimmerWithConfig(norm.TrimmerConfig{}).Trim(root)
	require.NoError(t, err)
	require.Same(t, root, res)
}

func TestTrimFields(t *testing.T) {
	defer leaktest.AfterTest(t)()

	root := testutils.BuildSamplePlan(t, `
project:
  exprs: [$0, $1, $5]
  input: {scan: emp}
`)
	res, err := norm.NewTrimmer().TrimFields(root, opt.MakeColSet(0, 2))
	require.NoError(t, err)
	require.Equal(t, "LogicalTableScan(table=[[sales, emp]], projects=[[0, 5]])\n", rel.Explain(res.Node))
	require.Equal(t, 0, res.Mapping.TargetOpt(0))
	require.Equal(t, -1, res.Mapping.TargetOpt(1))
	require.Equal(t, 1, res.Mapping.TargetOpt(2))

	// An empty set keeps the first column.
	res, err = norm.NewTrimmer().TrimFields(root, opt.ColSet{})
	require.NoError(t, err)
	require.Equal(t, "LogicalTableScan(table=[[sales, emp]], projects=[[0]])\n", rel.Explain(res.Node))

	_, err = norm.NewTrimmer().TrimFields(root, opt.MakeColSet(3))
	require.True(t, errors.Is(err, opt.ErrValidation))
}

func TestTrimFieldsNarrowsRoot(t *testing.T) {
	defer leaktest.AfterTest(t)()

	testCases := []struct {
		name    string
		plan    string
		exp     string
		targets []int
	}{
		{
			name: "filter-over-scan",
			plan: `
filter:
  condition: ">($5, 0)"
  input: {scan: emp}
`,
			exp: `LogicalProject(empno=[$0])
  LogicalFilter(condition=[>($1, 0)])
    LogicalTableScan(table=[[sales, emp]], projects=[[0, 5]])
`,
			targets: []int{0, -1, -1, -1, -1, -1},
		},
		{
			name: "filter-over-project",
			plan: `
filter:
  condition: "=($2, 10)"
  input:
    project:
      exprs: [$0, $1, $5]
      input: {scan: emp}
`,
			exp: `LogicalProject(empno=[$0])
  LogicalFilter(condition=[=($1, 10)])
    LogicalTableScan(table=[[sales, emp]], projects=[[0, 5]])
`,
			targets: []int{0, -1, -1},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			root := testutils.BuildSamplePlan(t, tc.plan)
			res, err := norm.NewTrimmer().TrimFields(root, opt.MakeColSet(0))
			require.NoError(t, err)
			require.Equal(t, tc.exp, rel.Explain(res.Node))
			require.Equal(t, []string{"empno"}, res.Node.RowType().FieldNames())

			targets := make([]int, root.RowType().FieldCount())
			for i := range targets {
				targets[i] = res.Mapping.TargetOpt(i)
			}
			if diff := pretty.Diff(tc.targets, targets); len(diff) > 0 {
				t.Fatalf("unexpected mapping %s:\n%s", res.Mapping, strings.Join(diff, "\n"))
			}
		})
	}
}

func TestDeduplicateCorrelateVariables(t *testing.T) {
	defer leaktest.AfterTest(t)()

	catalog := testcat.NewWithSampleTables()
	emp, dept := catalog.Table("emp"), catalog.Table("dept")
	record := types.MakeRecord(cat.RowType(emp))
	access := func(id opt.CorrelationID, field int) scalar.Expr {
		return &scalar.FieldAccess{Input: &scalar.CorrelVariable{ID: id, Typ: record}, Field: field}
	}
	deptType := cat.RowType(dept)
	cond := scalar.And(
		scalar.Eq(scalar.RefTo(deptType, 0), access(1, 5)),
		scalar.Eq(scalar.RefTo(deptType, 1), access(2, 1)),
		scalar.Eq(scalar.RefTo(deptType, 0), access(3, 0)),
	)
	f, err := rel.NewFilter(rel.NewScan(dept), cond)
	require.NoError(t, err)

	res := norm.DeduplicateCorrelateVariables(f, 1, []opt.CorrelationID{2})
	require.Equal(t,
		"LogicalFilter(condition=[AND(=($0, $cor1.deptno), =($1, $cor1.ename), =($0, $cor3.empno))])",
		rel.Describe(res))

	require.Same(t, f, norm.DeduplicateCorrelateVariables(f, 1, nil))
	require.Same(t, f, norm.DeduplicateCorrelateVariables(f, 5, []opt.CorrelationID{6}))
}

func TestSplitFilters(t *testing.T) {
	defer leaktest.AfterTest(t)()

	catalog := testcat.NewWithSampleTables()
	j, err := rel.NewJoin(
		rel.NewScan(catalog.Table("emp")), rel.NewScan(catalog.Table("dept")), scalar.True, rel.InnerJoin,
	)
	require.NoError(t, err)
	filters := testutils.BuildFilters(t, j.RowType(), "=($5, 10)", "=($7, 'x')", "=($5, $6)")

	type split struct {
		Left, Right, Join, Above []string
	}

	testCases := []struct {
		joinType rel.JoinType
		intoJoin bool
		left     []string
		right    []string
		join     []string
		above    []string
	}{
		{joinType: rel.InnerJoin, intoJoin: true,
			left: []string{"=($5, 10)"}, right: []string{"=($1, 'x')"}, join: []string{"=($5, $6)"}},
		{joinType: rel.InnerJoin, intoJoin: false,
			left: []string{"=($5, 10)"}, right: []string{"=($1, 'x')"}, above: []string{"=($5, $6)"}},
		{joinType: rel.LeftJoin, intoJoin: true,
			left: []string{"=($5, 10)"}, above: []string{"=($7, 'x')", "=($5, $6)"}},
		{joinType: rel.RightJoin, intoJoin: true,
			right: []string{"=($1, 'x')"}, above: []string{"=($5, 10)", "=($5, $6)"}},
		{joinType: rel.FullJoin, intoJoin: true,
			above: []string{"=($5, 10)", "=($7, 'x')", "=($5, $6)"}},
	}
	for _, tc := range testCases {
		t.Run(tc.joinType.String(), func(t *testing.T) {
			res := norm.SplitFilters(filters, tc.joinType, 6, 2, tc.intoJoin)
			exp := split{Left: tc.left, Right: tc.right, Join: tc.join, Above: tc.above}
			got := split{
				Left: digests(res.Left), Right: digests(res.Right),
				Join: digests(res.Join), Above: digests(res.Above),
			}
			if diff := cmp.Diff(exp, got); diff != "" {
				t.Errorf("unexpected split (-want +got):\n%s", diff)
			}
			require.Equal(t, len(tc.left)+len(tc.right) > 0, res.Pushed())
		})
	}

	require.True(t, norm.PushableOnto(filters[0], opt.ColSetRange(0, 6)))
	require.False(t, norm.PushableOnto(filters[2], opt.ColSetRange(0, 6)))
}

func digests(exprs []scalar.Expr) []string {
	if len(exprs) == 0 {
		return nil
	}
	return scalar.Digests(exprs)
}
