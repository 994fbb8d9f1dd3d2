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

// ProjectRemove removes a projection that returns every input column in
// order, under the names of the input. The removed projection is pruned.
func ProjectRemove() rule.Rule {
	operand := logical(rule.Match(opt.ProjectOp)).WithPredicate(func(n rel.Node) bool {
		p := n.(*rel.Project)
		return scalar.IsIdentity(p.Exprs, p.In.RowType()) &&
			sameNames(p.RowType().FieldNames(), p.In.RowType().FieldNames())
	})
	return rule.NewAutoPruning("ProjectRemove", operand, func(c *rule.Call) error {
		return c.TransformTo(c.Rel(0).(*rel.Project).In)
	})
}

// ProjectMerge merges two stacked projections into one, substituting the
// expressions of the bottom projection into those of the top one.
func ProjectMerge() rule.Rule {
	operand := logical(rule.Match(opt.ProjectOp)).OneInput(logical(rule.Match(opt.ProjectOp)))
	return rule.New("ProjectMerge", operand, func(c *rule.Call) error {
		top, bottom := c.Rel(0).(*rel.Project), c.Rel(1).(*rel.Project)
		exprs := make([]scalar.Expr, len(top.Exprs))
		for i, e := range top.Exprs {
			exprs[i] = scalar.Substitute(e, bottom.Exprs)
		}
		p, err := rel.NewProject(bottom.In, exprs, top.RowType().FieldNames())
		return transformTo(c, p, err)
	})
}

// ProjectTableScan pushes a projection of plain column references into the
// scan of a filterable table.
func ProjectTableScan() rule.Rule {
	operand := logical(rule.Match(opt.ProjectOp)).WithPredicate(func(n rel.Node) bool {
		for _, e := range n.(*rel.Project).Exprs {
			if e.Op() != opt.InputRefOp {
				return false
			}
		}
		return true
	}).OneInput(logical(rule.Match(opt.ScanOp)).WithPredicate(func(n rel.Node) bool {
		return n.(*rel.Scan).Table.Filterable()
	}).NoInputs())

	return rule.New("ProjectTableScan", operand, func(c *rule.Call) error {
		p, scan := c.Rel(0).(*rel.Project), c.Rel(1).(*rel.Scan)
		if scalar.IsIdentity(p.Exprs, scan.RowType()) {
			return nil
		}
		var seen opt.ColSet
		projects := make([]int, len(p.Exprs))
		for i, e := range p.Exprs {
			ord := scan.ProjectedColumn(e.(*scalar.InputRef).Index)
			if seen.Contains(ord) {
				return nil
			}
			seen.Add(ord)
			projects[i] = ord
		}
		res, err := rel.NewFilteredScan(scan.Traits(), scan.Table, projects, scan.Filters)
		if err != nil {
			return err
		}
		// The scan names its fields after the table columns.
		if !sameNames(res.RowType().FieldNames(), p.RowType().FieldNames()) {
			return nil
		}
		return c.TransformTo(res)
	})
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
