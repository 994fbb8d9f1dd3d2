// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opttester_test

import (
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils/opttester"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/cockroachdb/relopt/pkg/util/log"
	"github.com/stretchr/testify/require"
)

const joinPlan = `
join:
  condition: "=($5, $6)"
  left: {scan: emp}
  right: {scan: dept}
`

func TestOptTester(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	datadriven.Walk(t, "testdata", func(t *testing.T, path string) {
		catalog := testcat.NewWithSampleTables()
		datadriven.RunTest(t, path, func(t *testing.T, d *datadriven.TestData) string {
			tester := opttester.New(catalog, d.Input)
			return tester.RunCommand(t, d)
		})
	})
}

func TestMemo(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tester := opttester.New(testcat.NewWithSampleTables(), joinPlan)
	memo, err := tester.Memo()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(memo, "memo ("), memo)
	require.Contains(t, memo, "G1:")
	require.Contains(t, memo, "EnumerableHashJoin")
}

func TestRuleStats(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tester := opttester.New(testcat.NewWithSampleTables(), joinPlan)
	tester.Flags.Planner = "volcano"
	stats, err := tester.RuleStats()
	require.NoError(t, err)
	require.Contains(t, stats, "EnumerableHashJoinRule")
	require.Contains(t, stats, "Total")

	tester = opttester.New(testcat.NewWithSampleTables(), `
filter:
  condition: "=($1, 10)"
  input:
    project:
      exprs: [$0, $5]
      input: {scan: emp}
`)
	stats, err = tester.RuleStats()
	require.NoError(t, err)
	require.Contains(t, stats, "FilterProjectTranspose")
}

func TestLineageDot(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tester := opttester.New(testcat.NewWithSampleTables(), joinPlan)
	tester.Flags.Dot = true
	out, err := tester.Lineage()
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "digraph"), out)
	require.Contains(t, out, "[sales, dept].name")
}

func TestUnknownRule(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tester := opttester.New(testcat.NewWithSampleTables(), joinPlan)
	tester.Flags.Rules = []string{"NoSuchRule"}
	_, _, err := tester.Heuristic()
	require.Error(t, err)
}
