// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestExecuteDDL(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tc := testcat.New()
	_, err := tc.ExecuteDDL(`CREATE TABLE t (
		a INT PRIMARY KEY,
		b VARCHAR,
		c DOUBLE NOT NULL,
		UNIQUE (b, c),
		CHECK (IS NOT NULL($1))
	) WITH (rows = 10, filterable, collation = [0, 2 DESC], distribution = hash[0])`)
	require.NoError(t, err)

	out, err := tc.ExecuteDDL("SHOW TABLE t")
	require.NoError(t, err)
	require.Equal(t, `[sales, t]
├── a INTEGER NOT NULL
├── b VARCHAR
├── c DOUBLE NOT NULL
├── UNIQUE (a)
├── UNIQUE (b, c)
├── CHECK (IS NOT NULL($1))
├── rows: 10
├── collation: [0, 2 DESC]
├── distribution: hash[0]
└── filterable
`, out)

	tab, err := tc.ResolveTable(context.Background(), cat.DataSourceName{"t"})
	require.NoError(t, err)
	require.Equal(t, "[sales, t]", tab.Name().String())
	require.Equal(t, 3, tab.ColumnCount())
	require.Equal(t, float64(10), tab.RowCount())
	require.True(t, tab.Filterable())

	_, err = tc.ExecuteDDL("CREATE TABLE t (x INT)")
	require.EqualError(t, err, "table [sales, t] already exists")

	_, err = tc.ExecuteDDL("DROP TABLE sales.t")
	require.NoError(t, err)
	_, err = tc.ResolveTable(context.Background(), cat.DataSourceName{"sales", "t"})
	require.EqualError(t, err, "table [sales, t] does not exist")
	_, err = tc.ExecuteDDL("DROP TABLE t")
	require.EqualError(t, err, "table [sales, t] does not exist")
}

func TestExecuteDDLErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tc := testcat.New()
	testCases := []struct {
		sql string
		err string
	}{
		{sql: "SELECT 1", err: "unsupported statement: SELECT 1"},
		{sql: "CREATE TABLE t (a INT, a INT)", err: "column a specified more than once"},
		{sql: "CREATE TABLE t (a BLOB)", err: `column a: unknown type "blob"`},
		{sql: "CREATE TABLE t (a INT, UNIQUE (b))", err: "column b does not exist in [sales, t]"},
		{sql: "CREATE TABLE t (a INT) WITH (size = 3)", err: "unknown table option size"},
		{sql: "CREATE TABLE t (a INT) WITH (collation = [1])", err: "collation key 1 out of range"},
		{sql: "CREATE TABLE t (a INT, CHECK (+($0, 1)))", err: "check constraint +($0, 1) is not boolean"},
		{sql: "CREATE TABLE t (a INT", err: `unbalanced parentheses in "(a INT"`},
	}
	for _, tt := range testCases {
		t.Run(tt.sql, func(t *testing.T) {
			_, err := tc.ExecuteDDL(tt.sql)
			require.EqualError(t, err, tt.err)
		})
	}
	require.Empty(t, tc.Tables())
}

func TestSampleTables(t *testing.T) {
	defer leaktest.AfterTest(t)()

	tc := testcat.NewWithSampleTables()
	var names []string
	for _, tab := range tc.Tables() {
		names = append(names, tab.Name().String())
	}
	require.Equal(t, []string{"[sales, emp]", "[sales, dept]", "[sales, bonus]", "[sales, places]"}, names)

	places := tc.Table("places")
	require.Equal(t, 4, places.FindOrdinal("h"))
	require.Len(t, places.Checks, 1)
	require.Equal(t, "=($4, HILBERT($2, $3))", places.Checks[0].Digest())

	// Catalogs do not share tables.
	tc.Table("emp").Rows = 1
	require.Equal(t, float64(14), testcat.NewWithSampleTables().Table("emp").RowCount())
}
