// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"fmt"
	"math"
)

// Weights of the cost components in Total.
const (
	RowWeight = 1.0
	IOWeight  = 4.0
)

// Cost is the estimated cost of executing an expression. Costs of a plan add
// up over its nodes.
type Cost struct {
	Rows float64
	CPU  float64
	IO   float64
}

// MaxCost is the cost of a plan that cannot be executed.
var MaxCost = Cost{Rows: math.Inf(+1), CPU: math.Inf(+1), IO: math.Inf(+1)}

// Total returns the weighted sum of the components.
func (c Cost) Total() float64 {
	return c.Rows*RowWeight + c.CPU + c.IO*IOWeight
}

// Less returns true if c is cheaper than other. Totals are compared first;
// totals that are equal within a small relative error are broken by rows,
// then CPU, then IO, with the same tolerance. Equal costs are not less than
// each other, so the first of two equal candidates is kept.
func (c Cost) Less(other Cost) bool {
	for _, p := range [...][2]float64{
		{c.Total(), other.Total()},
		{c.Rows, other.Rows},
		{c.CPU, other.CPU},
		{c.IO, other.IO},
	} {
		if approxLess(p[0], p[1]) {
			return true
		}
		if approxLess(p[1], p[0]) {
			return false
		}
	}
	return false
}

// approxLess returns true if a is less than b by more than a small relative
// error.
func approxLess(a, b float64) bool {
	// Two plans with the same cost can have slightly different floating point
	// results (e.g. same subcomponents being added in different order). So we
	// treat plans with very similar cost as equal.
	//
	// We use "units of least precision" for similarity: this is the number of
	// representable floating point numbers in-between the two values. This is
	// better than a fixed epsilon because the allowed error is proportional to
	// the magnitude of the numbers. Because the mantissa is in the low bits, we
	// can just use the bit representations as integers.
	const ulpTolerance = 1000
	if a < 0 || b < 0 {
		return a < b
	}
	return math.Float64bits(a)+ulpTolerance <= math.Float64bits(b)
}

// Add adds the components of other to c.
func (c *Cost) Add(other Cost) {
	c.Rows += other.Rows
	c.CPU += other.CPU
	c.IO += other.IO
}

// Plus returns the sum of c and other.
func (c Cost) Plus(other Cost) Cost {
	c.Add(other)
	return c
}

// IsInfinite returns true for MaxCost and other unusable costs.
func (c Cost) IsInfinite() bool {
	return math.IsInf(c.Total(), +1) || math.IsNaN(c.Total())
}

func (c Cost) String() string {
	if c.IsInfinite() {
		return "{inf}"
	}
	return fmt.Sprintf("{%.6g rows, %.6g cpu, %.6g io}", c.Rows, c.CPU, c.IO)
}
