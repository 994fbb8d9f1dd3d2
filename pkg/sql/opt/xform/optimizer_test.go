// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rules"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils"
	"github.com/cockroachdb/relopt/pkg/sql/opt/xform"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/cockroachdb/relopt/pkg/util/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const joinPlan = `
join:
  condition: "=($5, $6)"
  left: {scan: emp}
  right: {scan: dept}
`

func TestOptimize(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	o := xform.New(rules.Default(), xform.DefaultConfig())
	require.Equal(t, "memo (empty)\n", o.FormatMemo())

	root := testutils.BuildSamplePlan(t, joinPlan)
	res, err := o.Optimize(context.Background(), root, props.Enumerable())
	require.NoError(t, err)
	plan := rel.Explain(res)
	require.Contains(t, plan, "EnumerableHashJoin(")
	require.NotContains(t, plan, "Logical")
	require.True(t, res.RowType().Equals(root.RowType()))

	require.Greater(t, o.Iterations(), 0)
	require.Greater(t, o.SetCount(), 2)
	require.Greater(t, o.Stats().Attempts("EnumerableHashJoinRule"), 0)
	require.Greater(t, o.Stats().Attempts("EnumerableTableScanRule"), 0)

	memo := o.FormatMemo()
	require.True(t, strings.HasPrefix(memo, "memo ("), memo)
	require.Contains(t, memo, "G1:")
}

func TestOptimizeDeterministic(t *testing.T) {
	defer leaktest.AfterTest(t)()

	run := func() (string, string) {
		o := xform.New(rules.Default(), xform.DefaultConfig())
		res, err := o.Optimize(context.Background(), testutils.BuildSamplePlan(t, joinPlan), props.Enumerable())
		require.NoError(t, err)
		return rel.Explain(res), o.FormatMemo()
	}
	plan, memo := run()
	for i := 0; i < 5; i++ {
		p, m := run()
		require.Equal(t, plan, p)
		require.Equal(t, memo, m)
	}
}

func TestOptimizeEnforcesCollation(t *testing.T) {
	defer leaktest.AfterTest(t)()

	o := xform.New(rules.Default(), xform.DefaultConfig())
	res, err := o.Optimize(context.Background(), testutils.BuildSamplePlan(t, `scan: dept`),
		props.Enumerable().WithCollation(props.Asc(1)))
	require.NoError(t, err)
	require.Equal(t, `EnumerableSort(sort0=[$1], dir0=[ASC])
  EnumerableTableScan(table=[[sales, dept]])
`, rel.Explain(res))
}

func TestOptimizeErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()

	t.Run("no-plan", func(t *testing.T) {
		// Nothing implements the logical expressions.
		o := xform.New(rules.Logical(), xform.DefaultConfig())
		_, err := o.Optimize(context.Background(), testutils.BuildSamplePlan(t, joinPlan), props.Enumerable())
		require.Error(t, err)
		require.True(t, errors.Is(err, xform.ErrNoPlanFound), "%+v", err)
	})

	t.Run("invalid-traits", func(t *testing.T) {
		o := xform.New(rules.Default(), xform.DefaultConfig())
		_, err := o.Optimize(context.Background(), testutils.BuildSamplePlan(t, `scan: dept`),
			props.Enumerable().WithCollation(props.Asc(5)))
		require.Error(t, err)
		require.True(t, errors.Is(err, opt.ErrValidation), "%+v", err)
	})

	t.Run("rule-error", func(t *testing.T) {
		failing := rule.New("Failing", rule.Match(opt.ScanOp), func(c *rule.Call) error {
			return errors.New("boom")
		})
		o := xform.New(rule.MustNewSet(failing), xform.DefaultConfig())
		_, err := o.Optimize(context.Background(), testutils.BuildSamplePlan(t, `scan: dept`), props.Enumerable())
		require.Error(t, err)
		require.Contains(t, err.Error(), "rule Failing")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		o := xform.New(rules.Default(), xform.DefaultConfig())
		_, err := o.Optimize(ctx, testutils.BuildSamplePlan(t, joinPlan), props.Enumerable())
		require.Error(t, err)
		require.True(t, errors.Is(err, context.Canceled), "%+v", err)
	})
}

func TestMaxIterations(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	cfg := xform.DefaultConfig()
	cfg.MaxIterations = 1
	o := xform.New(rules.Default(), cfg)
	// The original logical expression provides the logical convention, so a
	// plan is found whatever the budget.
	root := testutils.BuildSamplePlan(t, joinPlan)
	res, err := o.Optimize(context.Background(), root, props.Logical())
	require.NoError(t, err)
	require.Equal(t, 1, o.Iterations())
	require.Equal(t, props.LogicalConvention, res.Traits().Convention)
}

func TestMetrics(t *testing.T) {
	defer leaktest.AfterTest(t)()

	m := rule.NewMetrics()
	require.NoError(t, m.Register(prometheus.NewRegistry()))
	cfg := xform.DefaultConfig()
	cfg.Metrics = m
	o := xform.New(rules.Default(), cfg)
	_, err := o.Optimize(context.Background(), testutils.BuildSamplePlan(t, `scan: dept`), props.Enumerable())
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Attempts.WithLabelValues("EnumerableTableScanRule")))
	require.Greater(t, testutil.ToFloat64(m.Registered), 0.0)
}
