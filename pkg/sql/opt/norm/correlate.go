// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// DeduplicateCorrelateVariables rewrites the references to the alternate
// correlation ids in the tree rooted at root into references to canonical.
// Decorrelation can bind the same row to several ids; after the rewrite a
// single correlate binds all of them. The variables keep their type.
func DeduplicateCorrelateVariables(
	root rel.Node, canonical opt.CorrelationID, alternates []opt.CorrelationID,
) rel.Node {
	if len(alternates) == 0 {
		return root
	}
	isAlternate := make(map[opt.CorrelationID]struct{}, len(alternates))
	for _, id := range alternates {
		if id != canonical {
			isAlternate[id] = struct{}{}
		}
	}
	var replaceExpr scalar.ReplaceFunc
	replaceExpr = func(e scalar.Expr) scalar.Expr {
		if v, ok := e.(*scalar.CorrelVariable); ok {
			if _, ok := isAlternate[v.ID]; ok {
				return &scalar.CorrelVariable{ID: canonical, Typ: v.Typ}
			}
			return e
		}
		return scalar.ReplaceChildren(e, replaceExpr)
	}
	var replace rel.ReplaceFunc
	replace = func(n rel.Node) rel.Node {
		return rel.ReplaceScalars(rel.ReplaceChildren(n, replace), replaceExpr)
	}
	return replace(root)
}
