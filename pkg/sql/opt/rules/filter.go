// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rules

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// FilterRemoveTrue removes a filter whose condition is TRUE.
func FilterRemoveTrue() rule.Rule {
	operand := logical(rule.Match(opt.FilterOp)).WithPredicate(func(n rel.Node) bool {
		return scalar.IsTrue(n.(*rel.Filter).Condition)
	})
	return rule.New("FilterRemoveTrue", operand, func(c *rule.Call) error {
		return c.TransformTo(c.Rel(0).(*rel.Filter).In)
	})
}

// FilterMerge combines two stacked filters into one whose condition is the
// conjunction of both.
func FilterMerge() rule.Rule {
	operand := logical(rule.Match(opt.FilterOp)).OneInput(logical(rule.Match(opt.FilterOp)))
	return rule.New("FilterMerge", operand, func(c *rule.Call) error {
		top, bottom := c.Rel(0).(*rel.Filter), c.Rel(1).(*rel.Filter)
		f, err := rel.NewFilter(bottom.In, scalar.And(bottom.Condition, top.Condition))
		return transformTo(c, f, err)
	})
}

// FilterProjectTranspose pushes a filter below a projection, substituting
// the projected expressions into the condition.
func FilterProjectTranspose() rule.Rule {
	operand := logical(rule.Match(opt.FilterOp)).OneInput(logical(rule.Match(opt.ProjectOp)))
	return rule.New("FilterProjectTranspose", operand, func(c *rule.Call) error {
		filter, project := c.Rel(0).(*rel.Filter), c.Rel(1).(*rel.Project)
		f, err := rel.NewFilter(project.In, scalar.Substitute(filter.Condition, project.Exprs))
		if err != nil {
			return err
		}
		p, err := rel.NewProject(f, project.Exprs, project.RowType().FieldNames())
		return transformTo(c, p, err)
	})
}

// FilterTableScan pushes the conjunctions of a filter into the scan of a
// filterable table. The pushed conditions reference table columns.
func FilterTableScan() rule.Rule {
	operand := logical(rule.Match(opt.FilterOp)).WithPredicate(func(n rel.Node) bool {
		cond := n.(*rel.Filter).Condition
		return !scalar.IsTrue(cond) && len(scalar.CorrelationIDs(cond)) == 0
	}).OneInput(logical(rule.Match(opt.ScanOp)).WithPredicate(func(n rel.Node) bool {
		return n.(*rel.Scan).Table.Filterable()
	}).NoInputs())

	return rule.New("FilterTableScan", operand, func(c *rule.Call) error {
		filter, scan := c.Rel(0).(*rel.Filter), c.Rel(1).(*rel.Scan)
		tableCount := scan.Table.ColumnCount()
		m := opt.NewMapping(scan.RowType().FieldCount(), tableCount)
		for i := 0; i < scan.RowType().FieldCount(); i++ {
			m.Set(i, scan.ProjectedColumn(i))
		}
		filters := append([]scalar.Expr(nil), scan.Filters...)
		for _, conj := range scalar.Conjunctions(filter.Condition) {
			filters = append(filters, scalar.MustRemap(conj, m))
		}
		res, err := rel.NewFilteredScan(scan.Traits(), scan.Table, scan.Projects, filters)
		return transformTo(c, res, err)
	})
}
