// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// ReplaceFunc returns the replacement of a node.
type ReplaceFunc func(n Node) Node

// ReplaceChildren returns n with each input replaced by replace(input). If no
// input changes, n itself is returned.
func ReplaceChildren(n Node, replace ReplaceFunc) Node {
	var inputs []Node
	for i, c := 0, n.InputCount(); i < c; i++ {
		in := n.Input(i)
		res := replace(in)
		if res != in && inputs == nil {
			inputs = Inputs(n)
		}
		if inputs != nil {
			inputs[i] = res
		}
	}
	if inputs == nil {
		return n
	}
	return n.Copy(n.Traits(), inputs)
}

// Visitor handles some node kinds of a tree rewrite. It returns the
// replacement of n and true, or false to let Replace rebuild n with rewritten
// inputs. A visitor that handles a node is responsible for rewriting its
// inputs, usually by calling Replace on them.
type Visitor func(n Node) (Node, bool)

// Replace rewrites the tree rooted at n top-down. Nodes not handled by v are
// rebuilt with their inputs rewritten.
func Replace(n Node, v Visitor) Node {
	if res, ok := v(n); ok {
		return res
	}
	return ReplaceChildren(n, func(in Node) Node { return Replace(in, v) })
}

// Walk calls fn on n and its descendants in pre-order. The inputs of a node
// are skipped when fn returns false.
func Walk(n Node, fn func(n Node) bool) {
	if !fn(n) {
		return
	}
	for i := 0; i < n.InputCount(); i++ {
		Walk(n.Input(i), fn)
	}
}

// CorrelationIDs returns the correlation ids bound or referenced in the tree
// rooted at n, in pre-order, possibly with duplicates.
func CorrelationIDs(n Node) []opt.CorrelationID {
	var res []opt.CorrelationID
	Walk(n, func(n Node) bool {
		switch t := n.(type) {
		case *Correlate:
			res = append(res, t.ID)
		case *Join:
			res = append(res, t.CorrelationIDs...)
		}
		res = append(res, scalar.CorrelationIDs(Scalars(n)...)...)
		return true
	})
	return res
}

// Scalars returns the scalar expressions of n: conditions, projections and
// pushed scan filters. The conditions of a multi-join come in this order:
// join filter, post-join filter, then the outer conditions.
func Scalars(n Node) []scalar.Expr {
	switch t := n.(type) {
	case *Filter:
		return []scalar.Expr{t.Condition}
	case *Project:
		return t.Exprs
	case *Join:
		return []scalar.Expr{t.Condition}
	case *Scan:
		return t.Filters
	case *MultiJoin:
		return t.scalars()
	}
	return nil
}

// ReplaceScalars returns n with replace applied to each of its scalar
// expressions. If no expression changes, n itself is returned. The inputs
// are not visited.
func ReplaceScalars(n Node, replace scalar.ReplaceFunc) Node {
	exprs := Scalars(n)
	var changed []scalar.Expr
	for i, e := range exprs {
		res := replace(e)
		if res != e && changed == nil {
			changed = make([]scalar.Expr, len(exprs))
			copy(changed, exprs)
		}
		if changed != nil {
			changed[i] = res
		}
	}
	if changed == nil {
		return n
	}
	var res Node
	var err error
	switch t := n.(type) {
	case *Filter:
		res, err = t.WithCondition(changed[0])
	case *Project:
		res, err = newProject(t.traits, t.In, changed, t.rowType.FieldNames())
	case *Join:
		res, err = t.WithCondition(changed[0])
	case *Scan:
		res, err = NewFilteredScan(t.traits, t.Table, t.Projects, changed)
	case *MultiJoin:
		res, err = t.withScalars(changed)
	default:
		err = errors.AssertionFailedf("unexpected scalars in %s", n.Op())
	}
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "replacing expressions of %s", n.Op()))
	}
	return res
}
