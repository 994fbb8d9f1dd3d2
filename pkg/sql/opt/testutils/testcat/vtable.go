// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import "fmt"

// salesSchema defines the tables of the sales schema, which tests and the
// relopt command can load with NewWithSampleTables.
var salesSchema = []string{
	`CREATE TABLE emp (
		empno INT PRIMARY KEY,
		ename VARCHAR NOT NULL,
		job VARCHAR,
		mgr INT,
		sal DECIMAL NOT NULL,
		deptno INT NOT NULL,
		CHECK (>($4, 0))
	) WITH (rows = 14, filterable, collation = [0])`,

	`CREATE TABLE dept (
		deptno INT PRIMARY KEY,
		name VARCHAR NOT NULL
	) WITH (rows = 4)`,

	`CREATE TABLE bonus (
		ename VARCHAR,
		job VARCHAR,
		sal DECIMAL,
		comm DECIMAL
	) WITH (rows = 10)`,

	// h is the index of (lon, lat) on the Hilbert curve.
	`CREATE TABLE places (
		id INT PRIMARY KEY,
		name VARCHAR,
		lon DOUBLE NOT NULL,
		lat DOUBLE NOT NULL,
		h INT NOT NULL,
		CHECK (=($4, HILBERT($2, $3)))
	) WITH (rows = 1000, distribution = hash[0])`,
}

var sampleTables []*Table

func init() {
	// Parse the sample tables once, so that a bad definition fails every
	// test that links the package.
	for _, ddl := range salesSchema {
		tab, err := parseCreateTable(ddl)
		if err != nil {
			panic(fmt.Sprintf("error initializing sample tables: %s", err))
		}
		sampleTables = append(sampleTables, tab)
	}
}

// NewWithSampleTables creates a test catalog holding the tables of the sales
// schema: emp, dept, bonus and places.
func NewWithSampleTables() *Catalog {
	tc := New()
	for _, tab := range sampleTables {
		tc.AddTable(tab.copy())
	}
	return tc
}

// copy returns a copy of the table that can be changed without affecting
// other catalogs.
func (tt *Table) copy() *Table {
	c := *tt
	c.Columns = make([]*Column, len(tt.Columns))
	for i, col := range tt.Columns {
		colCopy := *col
		c.Columns[i] = &colCopy
	}
	c.KeySets = append(c.KeySets[:0:0], tt.KeySets...)
	c.Orderings = append(c.Orderings[:0:0], tt.Orderings...)
	c.Checks = append(c.Checks[:0:0], tt.Checks...)
	return &c
}
