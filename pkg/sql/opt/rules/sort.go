// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rules

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
)

// SortRemove removes a sort without offset or limit whose input is already
// sorted on its collation.
func SortRemove() rule.Rule {
	operand := logical(rule.Match(opt.SortOp)).WithPredicate(func(n rel.Node) bool {
		return !n.(*rel.Sort).HasLimit()
	})
	return rule.New("SortRemove", operand, func(c *rule.Call) error {
		sort := c.Rel(0).(*rel.Sort)
		if !sort.Collation.Any() && !sortedOn(c, sort.In, sort.Collation) {
			return nil
		}
		return c.TransformTo(sort.In)
	})
}

func sortedOn(c *rule.Call, n rel.Node, collation props.Collation) bool {
	for _, have := range c.Metadata().Collations(n) {
		if have.Satisfies(collation) {
			return true
		}
	}
	return false
}

// SortExchangeRemoveConstantKeys removes the distribution and sort keys of a
// sort-exchange that are constant in its input. A hash distribution without
// keys left becomes a singleton. The original sort-exchange is pruned.
func SortExchangeRemoveConstantKeys() rule.Rule {
	operand := logical(rule.Match(opt.SortExchangeOp))
	return rule.New("SortExchangeRemoveConstantKeys", operand, func(c *rule.Call) error {
		se := c.Rel(0).(*rel.SortExchange)
		constants := c.Metadata().ConstantMap(se.In)
		if len(constants) == 0 {
			return nil
		}

		distribution := se.Distribution
		if distribution.Type == props.HashDistributed {
			var keys []int
			for _, k := range distribution.Keys {
				if _, ok := constants[k]; !ok {
					keys = append(keys, k)
				}
			}
			if len(keys) != len(distribution.Keys) {
				if len(keys) == 0 {
					distribution = props.Distribution{Type: props.Singleton}
				} else {
					distribution = props.Hash(keys...)
				}
			}
		}
		var collation props.Collation
		for _, fc := range se.Collation {
			if _, ok := constants[fc.Field]; !ok {
				collation = append(collation, fc)
			}
		}
		if distribution.Equals(se.Distribution) && len(collation) == len(se.Collation) {
			return nil
		}

		res, err := rel.NewSortExchange(se.In, distribution, collation)
		if err != nil {
			return err
		}
		if err := c.TransformTo(res); err != nil {
			return err
		}
		c.Prune(se)
		return nil
	})
}
