// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rules

import (
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/geo/hilbert"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/twpayne/go-geom"
)

// FilterHilbertConfig holds the options of FilterHilbert.
type FilterHilbertConfig struct {
	// Order is the order of the Hilbert curve that the indexed column was
	// computed with. Zero means 8.
	Order int
	// MaxRanges bounds the number of ranges in a generated predicate. Zero
	// means no bound.
	MaxRanges int
}

// DefaultFilterHilbertConfig returns the default options of FilterHilbert.
func DefaultFilterHilbertConfig() FilterHilbertConfig {
	return FilterHilbertConfig{Order: 8}
}

// FilterHilbert adds a range predicate on a column holding the Hilbert index
// of a point before each distance predicate on that point. Given the column
// definition
//
//	$h = HILBERT($x, $y)
//
// the conjunction
//
//	ST_DWITHIN(ST_POINT(10, 20), ST_POINT($x, $y), 5)
//
// is preceded by the ranges of the curve that cover the square of side 10
// around (10, 20):
//
//	OR(AND(>=($h, lo1), <=($h, hi1)), AND(>=($h, lo2), <=($h, hi2)), ...)
//
// The range predicate may let through points farther than the distance, but
// never rejects a point within it. The distance predicate is kept.
func FilterHilbert(cfg FilterHilbertConfig) rule.Rule {
	if cfg.Order == 0 {
		cfg.Order = DefaultFilterHilbertConfig().Order
	}
	curve, err := hilbert.NewCurve(cfg.Order)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "FilterHilbert"))
	}
	hints := hilbert.RangeHints{MaxRanges: cfg.MaxRanges}

	operand := logical(rule.Match(opt.FilterOp)).WithPredicate(func(n rel.Node) bool {
		cond := n.(*rel.Filter).Condition
		return scalar.Contains(cond, opt.STDWithinOp) && !scalar.Contains(cond, opt.HilbertOp)
	})
	return rule.New("FilterHilbert", operand, func(c *rule.Call) error {
		filter := c.Rel(0).(*rel.Filter)
		conjs := scalar.Conjunctions(filter.Condition)
		initial := len(conjs)
		for _, pred := range c.Metadata().AllPredicates(filter.In) {
			ref, def, ok := hilbertDefinition(pred)
			if !ok || scalar.InputRefs(conjs...).Contains(ref.Index) {
				// A conjunction that references the column probably comes from
				// an earlier firing.
				continue
			}
			for i := 0; i < len(conjs); i++ {
				center, distance, ok := dwithinConstantPoint(conjs[i], def)
				if !ok {
					continue
				}
				p := hilbertPredicate(curve, hints, ref, center, distance)
				if i > 0 && scalar.Equal(conjs[i-1], p) {
					continue
				}
				conjs = slices.Insert(conjs, i, p)
				i++
			}
		}
		if len(conjs) == initial {
			return nil
		}
		// The conjunctions are combined as they are: And would fold a FALSE
		// predicate into the whole condition.
		res, err := rel.NewFilter(filter.In, scalar.MakeCall(opt.AndOp, conjs...))
		return transformTo(c, res, err)
	})
}

// hilbertDefinition matches =($h, HILBERT(...)).
func hilbertDefinition(pred scalar.Expr) (*scalar.InputRef, *scalar.Call, bool) {
	if pred.Op() != opt.EqOp {
		return nil, nil, false
	}
	ref, ok := pred.Child(0).(*scalar.InputRef)
	if !ok || pred.Child(1).Op() != opt.HilbertOp {
		return nil, nil, false
	}
	return ref, pred.Child(1).(*scalar.Call), true
}

// dwithinConstantPoint matches
//
//	ST_DWITHIN(ST_POINT(x, y), ST_POINT(<operands of def>), distance)
//
// where x, y and distance are numeric literals.
func dwithinConstantPoint(conj scalar.Expr, def *scalar.Call) (*geom.Point, float64, bool) {
	if conj.Op() != opt.STDWithinOp {
		return nil, 0, false
	}
	p0, p1 := conj.Child(0), conj.Child(1)
	if p0.Op() != opt.STPointOp || p1.Op() != opt.STPointOp {
		return nil, 0, false
	}
	distance, ok := scalar.NumericValue(conj.Child(2))
	if !ok {
		return nil, 0, false
	}
	x, okX := scalar.NumericValue(p0.Child(0))
	y, okY := scalar.NumericValue(p0.Child(1))
	if !okX || !okY || !sameOperands(p1.(*scalar.Call).Operands, def.Operands) {
		return nil, 0, false
	}
	return geom.NewPointFlat(geom.XY, []float64{x, y}), distance, true
}

func sameOperands(a, b []scalar.Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !scalar.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// hilbertPredicate returns the range predicate on ref for the points within
// distance of center: FALSE for a negative distance, an equality for a zero
// distance and a disjunction of ranges otherwise.
func hilbertPredicate(
	curve hilbert.Curve,
	hints hilbert.RangeHints,
	ref *scalar.InputRef,
	center *geom.Point,
	distance float64,
) scalar.Expr {
	switch {
	case distance < 0:
		return scalar.False
	case distance == 0:
		index := curve.ToIndex(center.X(), center.Y())
		return scalar.MakeCall(opt.EqOp, ref, scalar.MakeInt(index))
	}
	ranges := curve.WithinRanges(center, distance, hints)
	disjuncts := make([]scalar.Expr, len(ranges))
	for i, r := range ranges {
		disjuncts[i] = scalar.MakeCall(opt.AndOp,
			scalar.MakeCall(opt.GeOp, ref, scalar.MakeInt(r.Lo)),
			scalar.MakeCall(opt.LeOp, ref, scalar.MakeInt(r.Hi)),
		)
	}
	return scalar.Or(disjuncts...)
}
