// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package testcat implements an in-memory catalog for optimizer tests. Tables
// are created with Go code or with a small CREATE TABLE dialect (see
// ExecuteDDL).
package testcat

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
	"github.com/xlab/treeprint"
)

// defaultSchema qualifies table names given without a schema.
const defaultSchema = "sales"

// Catalog implements the cat.Catalog interface for testing purposes.
type Catalog struct {
	// tables is kept in creation order.
	tables []*Table
}

var _ cat.Catalog = &Catalog{}

// New creates a new empty instance of the test catalog.
func New() *Catalog {
	return &Catalog{}
}

// ResolveTable is part of the cat.Catalog interface. Names with a single
// part are qualified with the default schema.
func (tc *Catalog) ResolveTable(_ context.Context, name cat.DataSourceName) (cat.Table, error) {
	name = qualify(name)
	if tab := tc.find(name); tab != nil {
		return tab, nil
	}
	return nil, errors.Newf("table %s does not exist", name)
}

func qualify(name cat.DataSourceName) cat.DataSourceName {
	if len(name) == 1 {
		return cat.DataSourceName{defaultSchema, name[0]}
	}
	return name
}

// ParseName splits a dotted table name such as sales.emp.
func ParseName(s string) cat.DataSourceName {
	return qualify(strings.Split(strings.TrimSpace(s), "."))
}

func (tc *Catalog) find(name cat.DataSourceName) *Table {
	for _, tab := range tc.tables {
		if tab.TabName.Equals(name) {
			return tab
		}
	}
	return nil
}

// Table returns the test table that was previously added with the given
// dotted name. It panics if there is no such table.
func (tc *Catalog) Table(name string) *Table {
	tab := tc.find(ParseName(name))
	if tab == nil {
		panic(errors.AssertionFailedf("table %s does not exist", name))
	}
	return tab
}

// Tables returns the tables in creation order.
func (tc *Catalog) Tables() []*Table {
	return tc.tables
}

// AddTable adds the given test table to the catalog. It panics if a table
// with the same name exists.
func (tc *Catalog) AddTable(tab *Table) *Table {
	tab.TabName = qualify(tab.TabName)
	if tc.find(tab.TabName) != nil {
		panic(errors.AssertionFailedf("table %s already exists", tab.TabName))
	}
	tc.tables = append(tc.tables, tab)
	return tab
}

// DropTable removes a table and returns false if it did not exist.
func (tc *Catalog) DropTable(name cat.DataSourceName) bool {
	name = qualify(name)
	for i, tab := range tc.tables {
		if tab.TabName.Equals(name) {
			tc.tables = append(tc.tables[:i:i], tc.tables[i+1:]...)
			return true
		}
	}
	return false
}

// Column implements the cat.Column interface for testing purposes.
type Column struct {
	Name string
	Type *types.T
}

var _ cat.Column = &Column{}

// ColName is part of the cat.Column interface.
func (c *Column) ColName() string { return c.Name }

// DatumType is part of the cat.Column interface.
func (c *Column) DatumType() *types.T { return c.Type }

// Table implements the cat.Table interface for testing purposes.
type Table struct {
	TabName cat.DataSourceName
	Columns []*Column
	// Rows is the estimated row count, or -1 if unknown.
	Rows         float64
	KeySets      []opt.ColSet
	Orderings    []props.Collation
	Dist         props.Distribution
	Checks       []scalar.Expr
	IsFilterable bool
}

var _ cat.Table = &Table{}

// NewTable returns a table with an unknown row count.
func NewTable(name string, cols ...*Column) *Table {
	return &Table{TabName: ParseName(name), Columns: cols, Rows: -1}
}

// Name is part of the cat.Table interface.
func (tt *Table) Name() cat.DataSourceName { return tt.TabName }

// ColumnCount is part of the cat.Table interface.
func (tt *Table) ColumnCount() int { return len(tt.Columns) }

// Column is part of the cat.Table interface.
func (tt *Table) Column(i int) cat.Column { return tt.Columns[i] }

// RowCount is part of the cat.Table interface.
func (tt *Table) RowCount() float64 { return tt.Rows }

// Keys is part of the cat.Table interface.
func (tt *Table) Keys() []opt.ColSet { return tt.KeySets }

// Collations is part of the cat.Table interface.
func (tt *Table) Collations() []props.Collation { return tt.Orderings }

// Distribution is part of the cat.Table interface.
func (tt *Table) Distribution() props.Distribution { return tt.Dist }

// CheckConstraints is part of the cat.Table interface.
func (tt *Table) CheckConstraints() []scalar.Expr { return tt.Checks }

// Filterable is part of the cat.Table interface.
func (tt *Table) Filterable() bool { return tt.IsFilterable }

// FindOrdinal returns the ordinal of the column with the given name. It
// panics if there is no such column.
func (tt *Table) FindOrdinal(name string) int {
	for i, col := range tt.Columns {
		if col.Name == name {
			return i
		}
	}
	panic(errors.AssertionFailedf("cannot find column %q in table %s", name, tt.TabName))
}

// String formats the table as a tree, for SHOW TABLE.
func (tt *Table) String() string {
	tp := treeprint.NewWithRoot(tt.TabName.String())
	for _, col := range tt.Columns {
		tp.AddNode(fmt.Sprintf("%s %s", col.Name, col.Type))
	}
	for _, k := range tt.KeySets {
		names := make([]string, 0, k.Len())
		k.ForEach(func(ord int) { names = append(names, tt.Columns[ord].Name) })
		tp.AddNode(fmt.Sprintf("UNIQUE (%s)", strings.Join(names, ", ")))
	}
	for _, c := range tt.Checks {
		tp.AddNode(fmt.Sprintf("CHECK (%s)", c))
	}
	if tt.Rows >= 0 {
		tp.AddNode(fmt.Sprintf("rows: %g", tt.Rows))
	}
	for _, c := range tt.Orderings {
		tp.AddNode(fmt.Sprintf("collation: %s", c))
	}
	if tt.Dist.Type != props.AnyDistributed {
		tp.AddNode(fmt.Sprintf("distribution: %s", tt.Dist))
	}
	if tt.IsFilterable {
		tp.AddNode("filterable")
	}
	return tp.String()
}
