// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package testutils contains helpers shared by the optimizer tests.
package testutils

import (
	"context"
	"testing"

	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/optbuilder"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// BuildPlan builds the given YAML plan against the catalog and returns its
// root.
func BuildPlan(t testing.TB, catalog cat.Catalog, plan string) rel.Node {
	t.Helper()
	root, err := optbuilder.New(context.Background(), catalog).Build([]byte(plan))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return root
}

// BuildSamplePlan builds the plan against the sample tables of testcat.
func BuildSamplePlan(t testing.TB, plan string) rel.Node {
	t.Helper()
	return BuildPlan(t, testcat.NewWithSampleTables(), plan)
}

// BuildScalar builds the given input string as a scalar expression over the
// fields of row.
func BuildScalar(t testing.TB, row *types.RowType, input string) scalar.Expr {
	t.Helper()
	e, err := optbuilder.ParseScalar(input, row)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	return e
}

// BuildFilters builds each input string as a scalar expression and returns
// the conjuncts of all of them.
func BuildFilters(t testing.TB, row *types.RowType, inputs ...string) []scalar.Expr {
	t.Helper()
	var filters []scalar.Expr
	for _, input := range inputs {
		filters = append(filters, scalar.Conjunctions(BuildScalar(t, row, input))...)
	}
	return filters
}
