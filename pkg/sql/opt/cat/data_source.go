// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cat

import (
	"strings"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// DataSourceName is the qualified name of a table, e.g. [sales, emp].
type DataSourceName []string

// String formats the name as [sales, emp].
func (n DataSourceName) String() string {
	return "[" + strings.Join(n, ", ") + "]"
}

// Equals returns true if both names have the same parts.
func (n DataSourceName) Equals(o DataSourceName) bool {
	if len(n) != len(o) {
		return false
	}
	for i := range n {
		if n[i] != o[i] {
			return false
		}
	}
	return true
}

// Column is a column of a table.
type Column interface {
	// ColName returns the name of the column.
	ColName() string

	// DatumType returns the type of the column values, including its
	// nullability.
	DatumType() *types.T
}

// Table is a table in the catalog. Tables are immutable for the duration of
// a planning run.
type Table interface {
	// Name returns the qualified name of the table.
	Name() DataSourceName

	// ColumnCount returns the number of columns of the table.
	ColumnCount() int

	// Column returns the i-th column.
	Column(i int) Column

	// RowCount returns the estimated number of rows, or a negative number if
	// unknown.
	RowCount() float64

	// Keys returns the sets of columns whose values are unique in the table.
	Keys() []opt.ColSet

	// Collations returns the orderings in which the rows are stored.
	Collations() []props.Collation

	// Distribution returns how the rows are distributed.
	Distribution() props.Distribution

	// CheckConstraints returns predicates that hold for every row of the
	// table. They reference the table columns by ordinal.
	CheckConstraints() []scalar.Expr

	// Filterable returns true if scans of the table can evaluate filters
	// and projections themselves.
	Filterable() bool
}

// RowType returns the row type of all columns of the table.
func RowType(t Table) *types.RowType {
	names := make([]string, t.ColumnCount())
	typs := make([]*types.T, t.ColumnCount())
	for i := range names {
		c := t.Column(i)
		names[i], typs[i] = c.ColName(), c.DatumType()
	}
	return types.MakeRowType(names, typs)
}
