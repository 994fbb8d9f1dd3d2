// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package metadata_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/metadata"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestRowCount(t *testing.T) {
	defer leaktest.AfterTest(t)()

	testCases := []struct {
		plan string
		rows float64
	}{
		{plan: "scan: emp", rows: 14},
		// The equality is guessed at 15%.
		{plan: `filter: {condition: "=($5, 10)", input: {scan: emp}}`, rows: 14 * 0.15},
		// The check constraint of emp already implies the condition.
		{plan: `filter: {condition: ">($4, 0)", input: {scan: emp}}`, rows: 14},
		{plan: `filter: {condition: "OR(=($5, 10), =($5, 20))", input: {scan: emp}}`, rows: 14 * (1 - 0.85*0.85)},
		{plan: `join: {condition: "=($5, $6)", left: {scan: emp}, right: {scan: dept}}`, rows: 14 * 4 * 0.15},
		{plan: `join: {type: left, condition: "false", left: {scan: emp}, right: {scan: dept}}`, rows: 14},
		{plan: `join: {type: anti, condition: "=($5, $6)", left: {scan: emp}, right: {scan: dept}}`, rows: 14 * 0.85},
		{plan: `aggregate: {group: [5], input: {scan: emp}}`, rows: 1.4},
		{plan: `aggregate: {calls: ["COUNT()"], input: {scan: emp}}`, rows: 1},
		{plan: `union: {all: true, inputs: [{project: {exprs: [$1], input: {scan: emp}}}, {project: {exprs: [$0], input: {scan: bonus}}}]}`, rows: 24},
		{plan: `union: {inputs: [{project: {exprs: [$1], input: {scan: emp}}}, {project: {exprs: [$0], input: {scan: bonus}}}]}`, rows: 12},
		{plan: `sort: {fetch: 10, offset: 2, input: {scan: emp}}`, rows: 10},
		{plan: `sort: {fetch: 10, input: {scan: dept}}`, rows: 4},
		{plan: `values: {columns: [a INT], tuples: ["{ 1 }", "{ 2 }", "{ 3 }"]}`, rows: 3},
	}
	for _, tt := range testCases {
		t.Run(tt.plan, func(t *testing.T) {
			q := metadata.NewQuery()
			require.InDelta(t, tt.rows, q.RowCount(testutils.BuildSamplePlan(t, tt.plan)), 1e-9)
		})
	}
}

func TestRowCountCache(t *testing.T) {
	defer leaktest.AfterTest(t)()

	n := testutils.BuildSamplePlan(t, `filter: {condition: "=($5, 10)", input: {scan: emp}}`)
	q := metadata.NewQuery()
	q.RowCount(n)
	hits, misses := q.CacheStats()
	q.RowCount(n)
	hits2, misses2 := q.CacheStats()
	require.Equal(t, hits+1, hits2)
	require.Equal(t, misses, misses2)

	q.Invalidate(n)
	q.RowCount(n)
	_, misses3 := q.CacheStats()
	require.Equal(t, misses2+1, misses3)
}

func digests(exprs []scalar.Expr) []string {
	res := scalar.Digests(exprs)
	if res == nil {
		res = []string{}
	}
	return res
}

func TestPredicates(t *testing.T) {
	defer leaktest.AfterTest(t)()

	q := metadata.NewQuery()
	n := testutils.BuildSamplePlan(t, `
project:
  exprs: [$5, "1", "+($4, 1)"]
  names: [d, one, raise]
  input:
    filter:
      condition: "=($5, 10)"
      input: {scan: emp}
`)
	require.Equal(t, []string{">($4, 0)", "=($5, 10)"}, digests(q.PulledUpPredicates(n.Input(0))))
	require.Equal(t, []string{"=($0, 10)", "=($1, 1)"}, digests(q.PulledUpPredicates(n)))
	consts := q.ConstantMap(n)
	require.Len(t, consts, 2)
	require.Equal(t, "10", consts[0].Digest())
	require.Equal(t, "1", consts[1].Digest())

	// The definition of a computed column is only returned by AllPredicates.
	places := testutils.BuildSamplePlan(t, `project: {exprs: [$2, $3, "HILBERT($2, $3)"], input: {scan: places}}`)
	require.Empty(t, q.PulledUpPredicates(places))
	require.Equal(t, []string{"=($2, HILBERT($0, $1))"}, digests(q.AllPredicates(places)))
	require.Equal(t, []string{"=($4, HILBERT($2, $3))"}, digests(q.PulledUpPredicates(places.Input(0))))

	join := testutils.BuildSamplePlan(t, `
join:
  condition: "=($5, $6)"
  left: {filter: {condition: "=($2, 'CLERK')", input: {scan: emp}}}
  right: {filter: {condition: "=($1, 'SALES')", input: {scan: dept}}}
`)
	require.Equal(t,
		[]string{">($4, 0)", "=($2, 'CLERK')", "=($7, 'SALES')", "=($5, $6)"},
		digests(q.PulledUpPredicates(join)))

	// A left join pads the right side with nulls, so neither the right
	// predicates nor the condition hold for every row.
	left := testutils.BuildSamplePlan(t, `
join:
  type: left
  condition: "=($5, $6)"
  left: {scan: emp}
  right: {filter: {condition: "=($1, 'SALES')", input: {scan: dept}}}
`)
	require.Equal(t, []string{">($4, 0)"}, digests(q.PulledUpPredicates(left)))
	require.Equal(t, []string{">($4, 0)", "=($5, $6)"}, digests(q.AllPredicates(left)))

	agg := testutils.BuildSamplePlan(t, `
aggregate:
  group: [2, 5]
  calls: ["MAX($4)"]
  input: {filter: {condition: "AND(=($5, 10), >($4, 1000))", input: {scan: emp}}}
`)
	require.Equal(t, []string{"=($1, 10)"}, digests(q.PulledUpPredicates(agg)))

	union := testutils.BuildSamplePlan(t, `
union:
  all: true
  inputs:
    - filter: {condition: "AND(=($0, 1), =($1, 'x'))", input: {scan: dept}}
    - filter: {condition: "=($0, 1)", input: {scan: dept}}
`)
	require.Equal(t, []string{"=($0, 1)"}, digests(q.PulledUpPredicates(union)))

	values := testutils.BuildSamplePlan(t, `values: {columns: [a INT, b INT], tuples: ["{ 1, 2 }", "{ 1, 3 }"]}`)
	require.Equal(t, []string{"=($0, 1)"}, digests(q.PulledUpPredicates(values)))
}

func TestCollationsAndDistribution(t *testing.T) {
	defer leaktest.AfterTest(t)()

	q := metadata.NewQuery()
	collations := func(n rel.Node) []string {
		var res []string
		for _, c := range q.Collations(n) {
			res = append(res, c.String())
		}
		return res
	}

	require.Equal(t, []string{"[0]"}, collations(testutils.BuildSamplePlan(t, "scan: emp")))
	require.Equal(t, []string{"[1]"}, collations(testutils.BuildSamplePlan(t, `project: {exprs: [$5, $0], input: {scan: emp}}`)))
	require.Empty(t, collations(testutils.BuildSamplePlan(t, `project: {exprs: [$5], input: {scan: emp}}`)))
	require.Equal(t, []string{"[0]"}, collations(testutils.BuildSamplePlan(t, `filter: {condition: "=($5, 10)", input: {scan: emp}}`)))
	require.Equal(t, []string{"[1 DESC]"}, collations(testutils.BuildSamplePlan(t, `sort: {collation: [1 DESC], input: {scan: dept}}`)))
	require.Empty(t, collations(testutils.BuildSamplePlan(t, `exchange: {distribution: "hash[0]", input: {scan: emp}}`)))
	require.Equal(t, []string{"[0]"}, collations(testutils.BuildSamplePlan(t, `exchange: {distribution: single, input: {scan: emp}}`)))
	require.Equal(t, []string{"[0, 1]"}, collations(testutils.BuildSamplePlan(t, `values: {columns: [a INT, b INT], tuples: ["{ 1, 2 }"]}`)))

	require.Equal(t, "hash[0]", q.Distribution(testutils.BuildSamplePlan(t, "scan: places")).String())
	require.Equal(t, "hash[1]", q.Distribution(testutils.BuildSamplePlan(t, `project: {exprs: [$1, $0], input: {scan: places}}`)).String())
	require.Equal(t, "broadcast", q.Distribution(testutils.BuildSamplePlan(t, `values: {columns: [a INT], tuples: ["{ 1 }"]}`)).String())
	require.Equal(t, props.AnyDistributed, q.Distribution(testutils.BuildSamplePlan(t, "scan: emp")).Type)
}

func TestUniqueKeys(t *testing.T) {
	defer leaktest.AfterTest(t)()

	q := metadata.NewQuery()
	keys := func(n rel.Node) []string {
		var res []string
		for _, k := range q.UniqueKeys(n) {
			res = append(res, k.String())
		}
		return res
	}

	emp := testutils.BuildSamplePlan(t, "scan: emp")
	require.Equal(t, []string{"{0}"}, keys(emp))
	require.True(t, q.AreColumnsUnique(emp, opt.MakeColSet(0, 1)))
	require.False(t, q.AreColumnsUnique(emp, opt.MakeColSet(1)))

	require.Empty(t, keys(testutils.BuildSamplePlan(t, `project: {exprs: [$1], input: {scan: emp}}`)))
	require.Equal(t, []string{"{1}"}, keys(testutils.BuildSamplePlan(t, `project: {exprs: [$1, $0], input: {scan: emp}}`)))
	require.Equal(t, []string{"{0, 6}"}, keys(testutils.BuildSamplePlan(t, `join: {condition: "=($5, $6)", left: {scan: emp}, right: {scan: dept}}`)))
	require.Equal(t, []string{"{0}"}, keys(testutils.BuildSamplePlan(t, `join: {type: semi, condition: "=($5, $6)", left: {scan: emp}, right: {scan: dept}}`)))
	require.Equal(t, []string{"{0}"}, keys(testutils.BuildSamplePlan(t, `aggregate: {group: [5], calls: ["COUNT()"], input: {scan: emp}}`)))
	require.Equal(t, []string{"{}"}, keys(testutils.BuildSamplePlan(t, `aggregate: {calls: ["COUNT()"], input: {scan: emp}}`)))
	require.Equal(t, []string{"{0, 1}"}, keys(testutils.BuildSamplePlan(t, `union: {inputs: [{scan: dept}, {scan: dept}]}`)))
}

func TestColumnOriginsAndLineage(t *testing.T) {
	defer leaktest.AfterTest(t)()

	q := metadata.NewQuery()
	n := testutils.BuildSamplePlan(t, `
project:
  exprs: [$1, "+($4, 1)", "1"]
  names: [ename, raise, one]
  input: {scan: emp}
`)
	origins := func(col int) []string {
		var res []string
		for _, o := range q.ColumnOrigins(n, col) {
			res = append(res, o.String())
		}
		return res
	}
	require.Equal(t, []string{"[sales, emp].ename"}, origins(0))
	require.Equal(t, []string{"[sales, emp].sal (derived)"}, origins(1))
	require.Empty(t, origins(2))

	g := q.Lineage(n)
	require.Equal(t,
		[]string{"ename", "raise", "one", "[sales, emp].ename", "[sales, emp].sal"},
		g.Vertices())
	var edges []string
	for _, e := range g.AllEdges() {
		edges = append(edges, e.String())
	}
	require.Equal(t, []string{
		"([sales, emp].ename, ename, copy)",
		"([sales, emp].sal, raise, derived)",
	}, edges)

	union := testutils.BuildSamplePlan(t, `
union:
  all: true
  inputs:
    - project: {exprs: [$1], input: {scan: emp}}
    - project: {exprs: [$0], input: {scan: bonus}}
`)
	var names []string
	for _, o := range q.ColumnOrigins(union, 0) {
		names = append(names, o.String())
	}
	require.Equal(t, []string{"[sales, emp].ename", "[sales, bonus].ename"}, names)
}

func TestMultiJoin(t *testing.T) {
	defer leaktest.AfterTest(t)()

	joins := testutils.BuildSamplePlan(t, `
join:
  condition: "true"
  left:
    join: {condition: "true", left: {scan: emp}, right: {scan: dept}}
  right: {scan: bonus}
`)
	inputs := []rel.Node{joins.Input(0).Input(0), joins.Input(0).Input(1), joins.Input(1)}
	eq := func(a, b int) scalar.Expr {
		return scalar.Eq(scalar.RefTo(joins.RowType(), a), scalar.RefTo(joins.RowType(), b))
	}

	inner, err := rel.NewMultiJoin(inputs, joins.RowType(), rel.MultiJoinSpec{JoinFilter: eq(5, 6)})
	require.NoError(t, err)
	q := metadata.NewQuery()
	require.InDelta(t, 14*4*10*0.15, q.RowCount(inner), 1e-9)

	// An outer joined input without matches keeps the rows of the others.
	outer, err := rel.NewMultiJoin(inputs, joins.RowType(), rel.MultiJoinSpec{
		JoinFilter:          eq(5, 6),
		JoinTypes:           []rel.JoinType{rel.InnerJoin, rel.InnerJoin, rel.LeftJoin},
		OuterJoinConditions: []scalar.Expr{nil, nil, scalar.MakeBool(false)},
	})
	require.NoError(t, err)
	require.InDelta(t, 14*4*0.15, q.RowCount(outer), 1e-9)

	for col, exp := range map[int]string{1: "[sales, emp].ename", 7: "[sales, dept].name", 8: "[sales, bonus].ename"} {
		var names []string
		for _, o := range q.ColumnOrigins(outer, col) {
			names = append(names, o.String())
		}
		require.Equal(t, []string{exp}, names, "column %d", col)
	}
}

// resolver maps the subsets of a test to their members.
type resolver map[int][]rel.Node

func (r resolver) SubsetMembers(s *rel.Subset) []rel.Node { return r[s.SetID] }

func TestSubsetCycles(t *testing.T) {
	defer leaktest.AfterTest(t)()

	dept := testutils.BuildSamplePlan(t, "scan: dept")
	subset := rel.NewSubset(1, dept.RowType(), props.Logical())
	cond := testutils.BuildScalar(t, dept.RowType(), "=($0, 1)")
	loop, err := rel.NewFilter(subset, cond)
	require.NoError(t, err)

	// The filter member depends on the subset itself; the scan member gives
	// the answer.
	q := metadata.NewQuery(metadata.WithSubsetResolver(resolver{1: {loop, dept}}))
	require.Equal(t, float64(4), q.RowCount(subset))
	require.Equal(t, float64(4)*0.15, q.RowCount(loop))

	// With no other member, the cycle is reported.
	q = metadata.NewQuery(metadata.WithSubsetResolver(resolver{1: {loop}}))
	var caught error
	func() {
		defer func() {
			if r := recover(); r != nil {
				caught = opt.CatchOptimizerError(r)
			}
		}()
		q.RowCount(subset)
	}()
	require.Error(t, caught)
	require.True(t, metadata.IsCycleError(caught), "%v", caught)
	require.True(t, errors.HasAssertionFailure(caught))

	// Without a resolver, facts of subsets cannot be computed.
	require.Panics(t, func() { metadata.NewQuery().RowCount(subset) })
}
