// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"math"

	"github.com/cockroachdb/relopt/pkg/sql/opt/metadata"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
)

// Coster estimates the cost of one expression, excluding the cost of its
// inputs. Inputs may be subsets; their row counts are available through md.
type Coster interface {
	ComputeCost(n rel.Node, md *metadata.Query) Cost
}

const (
	// cpuCostFactor is the cost of evaluating one expression on one row,
	// relative to producing a row.
	cpuCostFactor = 0.1

	// hashBuildFactor is the extra cost per row of the hashed input of a hash
	// join.
	hashBuildFactor = 1.5

	// distinctFactor is the extra cost of removing duplicates in a set
	// operation.
	distinctFactor = 1.5
)

// DefaultCoster costs expressions by kind and, for joins, by algorithm. It
// ignores the convention, so logical and physical expressions of the same
// kind cost the same.
type DefaultCoster struct{}

var _ Coster = DefaultCoster{}

// ComputeCost is part of the Coster interface.
func (DefaultCoster) ComputeCost(n rel.Node, md *metadata.Query) Cost {
	rows := md.RowCount(n)
	var c Cost
	switch t := n.(type) {
	case *rel.Subset:
		return Cost{}

	case *rel.Scan:
		tableRows := t.Table.RowCount()
		if tableRows < 0 {
			tableRows = rows
		}
		width := 1.0
		if t.Projects != nil {
			if all := t.Table.ColumnCount(); all > 0 {
				width = float64(len(t.Projects)) / float64(all)
			}
		}
		c.IO = tableRows * width
		c.CPU = tableRows * float64(len(t.Filters)) * cpuCostFactor

	case *rel.Values:
		c.CPU = rows * cpuCostFactor

	case *rel.Filter:
		c.CPU = md.RowCount(t.In) * cpuCostFactor

	case *rel.Project:
		c.CPU = md.RowCount(t.In) * float64(len(t.Exprs)) * cpuCostFactor

	case *rel.Join:
		left, right := md.RowCount(t.Left), md.RowCount(t.Right)
		switch t.Algorithm {
		case rel.HashJoinAlgorithm:
			c.CPU = left + right*hashBuildFactor
		case rel.BatchNestedLoopAlgorithm:
			batches := math.Ceil(left / float64(len(t.CorrelationIDs)))
			c.CPU = left + batches*right
		default:
			c.CPU = left * right
		}

	case *rel.Correlate:
		c.CPU = md.RowCount(t.Left) * md.RowCount(t.Right)

	case *rel.Aggregate:
		c.CPU = md.RowCount(t.In) * float64(1+len(t.Calls)) * cpuCostFactor

	case *rel.SetOp:
		for _, in := range t.Ins {
			c.CPU += md.RowCount(in) * cpuCostFactor
		}
		if !t.All {
			c.CPU *= distinctFactor
		}

	case *rel.Sort:
		if len(t.Collation) > 0 {
			c.CPU = sortCost(md.RowCount(t.In))
		}

	case *rel.Exchange:
		c.IO = rows

	case *rel.SortExchange:
		c.IO = rows
		c.CPU = sortCost(rows)
	}
	c.Rows = rows
	return c
}

func sortCost(rows float64) float64 {
	return rows * math.Log2(math.Max(rows, 2)) * cpuCostFactor
}

// TreeCost returns the cost of a plan tree: the sum of the costs of its
// nodes.
func TreeCost(coster Coster, md *metadata.Query, n rel.Node) Cost {
	c := coster.ComputeCost(n, md)
	for i := 0; i < n.InputCount(); i++ {
		c.Add(TreeCost(coster, md, n.Input(i)))
	}
	return c
}
