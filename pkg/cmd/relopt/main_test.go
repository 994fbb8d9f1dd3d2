// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/cockroachdb/relopt/pkg/util/log"
	"github.com/stretchr/testify/require"
)

const filterProject = `
filter:
  condition: "=($1, 10)"
  input:
    project:
      exprs: [$0, $5]
      input: {scan: emp}
`

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExplain(t *testing.T) {
	defer leaktest.AfterTest(t)()

	out, err := run(t, "explain", writeFile(t, "plan.yaml", filterProject))
	require.NoError(t, err)
	require.Equal(t, `LogicalFilter(condition=[=($1, 10)])
  LogicalProject(empno=[$0], deptno=[$5])
    LogicalTableScan(table=[[sales, emp]])
`, out)

	out, err = run(t, "explain", "--costs", writeFile(t, "plan.yaml", `scan: dept`))
	require.NoError(t, err)
	require.Contains(t, out, "LogicalTableScan(table=[[sales, dept]]): rows=")
}

func TestOpt(t *testing.T) {
	defer leaktest.AfterTest(t)()
	defer log.Scope(t).Close(t)

	plan := writeFile(t, "plan.yaml", filterProject)

	out, err := run(t, "opt", "--planner=hep", "--rules=FilterProjectTranspose,FilterTableScan", plan)
	require.NoError(t, err)
	require.Equal(t, `LogicalProject(empno=[$0], deptno=[$5])
  LogicalTableScan(table=[[sales, emp]], filters=[[=($5, 10)]])
`, out)

	out, err = run(t, "opt", "--rule-stats", "--verbosity=1", plan)
	require.NoError(t, err)
	require.Contains(t, out, "EnumerableTableScan")
	require.NotContains(t, out, "LogicalFilter")
	require.Contains(t, out, "Attempts")
	require.Contains(t, out, "Total")

	_, err = run(t, "opt", "--planner=cascades", plan)
	require.ErrorContains(t, err, "unknown planner")

	_, err = run(t, "opt", "--rules=NoSuchRule", plan)
	require.Error(t, err)
}

func TestMemo(t *testing.T) {
	defer leaktest.AfterTest(t)()

	out, err := run(t, "memo", writeFile(t, "plan.yaml", `scan: dept`))
	require.NoError(t, err)
	require.Contains(t, out, "memo (")
	require.Contains(t, out, "G1:")
}

func TestTrim(t *testing.T) {
	defer leaktest.AfterTest(t)()

	plan := writeFile(t, "plan.yaml", `
project:
  exprs: [$1]
  input:
    filter:
      condition: "=($0, 10)"
      input: {scan: dept}
`)
	out, err := run(t, "trim", plan)
	require.NoError(t, err)
	require.Contains(t, out, "LogicalTableScan(table=[[sales, dept]]")

	_, err = run(t, "trim", "--fields=0", plan)
	require.NoError(t, err)
}

func TestLineage(t *testing.T) {
	defer leaktest.AfterTest(t)()

	plan := writeFile(t, "plan.yaml", `
aggregate:
  group: [0]
  calls: ["COUNT() AS c"]
  input: {scan: dept}
`)
	out, err := run(t, "lineage", plan)
	require.NoError(t, err)
	require.Equal(t, "deptno: [sales, dept].deptno\nc: none\n", out)

	out, err = run(t, "lineage", "--dot", plan)
	require.NoError(t, err)
	require.Contains(t, out, "digraph")
}

func TestDDL(t *testing.T) {
	defer leaktest.AfterTest(t)()

	ddl := writeFile(t, "schema.sql", `
CREATE TABLE t (a INT PRIMARY KEY, b STRING);
CREATE TABLE u (c INT);
`)
	out, err := run(t, "explain", "--ddl", ddl, writeFile(t, "plan.yaml", `scan: t`))
	require.NoError(t, err)
	require.Equal(t, "LogicalTableScan(table=[[sales, t]])\n", out)

	_, err = run(t, "explain", writeFile(t, "plan.yaml", `scan: t`))
	require.Error(t, err)
}
