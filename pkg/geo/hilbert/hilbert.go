// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package hilbert maps longitude/latitude pairs onto a two-dimensional Hilbert
// curve and computes the curve ranges that cover a bounding box. Points that
// are close on the plane tend to be close on the curve, which lets a single
// integer column stand in for a spatial index.
package hilbert

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
	"github.com/google/btree"
	"github.com/twpayne/go-geom"
)

// MaxOrder is the largest supported curve order. Indexes of an order-n curve
// need 2n bits.
const MaxOrder = 31

// Curve is a Hilbert curve over the domain longitude [-180, 180] by latitude
// [-90, 90], divided into 2^order cells along each axis.
type Curve struct {
	order      int
	resolution int64
}

// NewCurve returns the curve of the given order.
func NewCurve(order int) (Curve, error) {
	if order < 1 || order > MaxOrder {
		return Curve{}, errors.Newf("hilbert curve order must be in [1, %d], got %d", MaxOrder, order)
	}
	return Curve{order: order, resolution: int64(1) << uint(order)}, nil
}

// Order returns the order the curve was built with.
func (c Curve) Order() int { return c.order }

// Resolution returns the number of cells along each axis.
func (c Curve) Resolution() int64 { return c.resolution }

// Range is an inclusive range of curve indexes.
type Range struct {
	Lo, Hi int64
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Lo, r.Hi)
}

// RangeHints tune range computation.
type RangeHints struct {
	// MaxRanges bounds the number of returned ranges. When the exact cover
	// needs more, the ranges separated by the smallest gaps are merged. Zero
	// means no bound.
	MaxRanges int
}

func (c Curve) normalizeX(x float64) int64 {
	return c.clamp(int64((x + 180) * float64(c.resolution-1) / 360))
}

func (c Curve) normalizeY(y float64) int64 {
	return c.clamp(int64((y + 90) * float64(c.resolution-1) / 180))
}

func (c Curve) clamp(v int64) int64 {
	if v < 0 {
		return 0
	}
	if v >= c.resolution {
		return c.resolution - 1
	}
	return v
}

// ToIndex returns the index of the cell containing the point (x, y), where x
// is a longitude and y a latitude. Coordinates outside the domain are clamped.
func (c Curve) ToIndex(x, y float64) int64 {
	return xy2d(c.resolution, c.normalizeX(x), c.normalizeY(y))
}

// ToRanges returns the sorted, disjoint curve ranges whose cells cover the
// box [xMin, xMax] by [yMin, yMax]. The cover never misses a cell touched by
// the box, so filtering on the ranges has no false negatives.
func (c Curve) ToRanges(xMin, yMin, xMax, yMax float64, hints RangeHints) []Range {
	if xMin > xMax || yMin > yMax || math.IsNaN(xMin+yMin+xMax+yMax) {
		return nil
	}
	query := r2.Rect{
		X: r1.Interval{Lo: float64(c.normalizeX(xMin)), Hi: float64(c.normalizeX(xMax))},
		Y: r1.Interval{Lo: float64(c.normalizeY(yMin)), Hi: float64(c.normalizeY(yMax))},
	}
	var ranges []Range
	c.cover(query, 0 /* start */, c.resolution, &ranges)
	if hints.MaxRanges > 0 && len(ranges) > hints.MaxRanges {
		ranges = mergeSmallestGaps(ranges, hints.MaxRanges)
	}
	return ranges
}

// BoundsRanges returns the ranges covering a two-dimensional bounding box.
func (c Curve) BoundsRanges(b *geom.Bounds, hints RangeHints) []Range {
	if b.IsEmpty() {
		return nil
	}
	return c.ToRanges(b.Min(0), b.Min(1), b.Max(0), b.Max(1), hints)
}

// WithinRanges returns the ranges covering the points whose coordinates are
// each within distance of those of p. A negative distance covers nothing.
func (c Curve) WithinRanges(p *geom.Point, distance float64, hints RangeHints) []Range {
	if distance < 0 {
		return nil
	}
	b := geom.NewBounds(geom.XY).Extend(p)
	b.SetCoords(
		geom.Coord{b.Min(0) - distance, b.Min(1) - distance},
		geom.Coord{b.Max(0) + distance, b.Max(1) + distance},
	)
	return c.BoundsRanges(b, hints)
}

// cover appends the ranges of the aligned side-by-side square whose curve
// positions start at start. Squares of the curve at every level are aligned
// to multiples of their side, so the square can be recovered from the
// position of its first cell.
func (c Curve) cover(query r2.Rect, start, side int64, ranges *[]Range) {
	x, y := d2xy(c.resolution, start)
	x0, y0 := x&^(side-1), y&^(side-1)
	square := r2.Rect{
		X: r1.Interval{Lo: float64(x0), Hi: float64(x0 + side - 1)},
		Y: r1.Interval{Lo: float64(y0), Hi: float64(y0 + side - 1)},
	}
	if !query.Intersects(square) {
		return
	}
	if query.Contains(square) {
		appendRange(ranges, Range{Lo: start, Hi: start + side*side - 1})
		return
	}
	half := side / 2
	quarter := half * half
	for i := int64(0); i < 4; i++ {
		c.cover(query, start+i*quarter, half, ranges)
	}
}

func appendRange(ranges *[]Range, r Range) {
	if n := len(*ranges); n > 0 && (*ranges)[n-1].Hi+1 == r.Lo {
		(*ranges)[n-1].Hi = r.Hi
		return
	}
	*ranges = append(*ranges, r)
}

// gap is the space between ranges[i] and ranges[i+1].
type gap struct {
	size int64
	i    int
}

func (g gap) Less(than btree.Item) bool {
	o := than.(gap)
	if g.size != o.size {
		return g.size < o.size
	}
	return g.i < o.i
}

// mergeSmallestGaps closes the smallest gaps between consecutive ranges until
// at most max ranges remain. The result still covers every original range.
func mergeSmallestGaps(ranges []Range, max int) []Range {
	gaps := btree.New(8 /* degree */)
	for i := 0; i+1 < len(ranges); i++ {
		gaps.ReplaceOrInsert(gap{size: ranges[i+1].Lo - ranges[i].Hi - 1, i: i})
	}
	closed := make([]bool, len(ranges))
	for n := len(ranges); n > max; n-- {
		g := gaps.DeleteMin().(gap)
		closed[g.i] = true
	}
	res := make([]Range, 0, max)
	cur := ranges[0]
	for i := 1; i < len(ranges); i++ {
		if closed[i-1] {
			cur.Hi = ranges[i].Hi
			continue
		}
		res = append(res, cur)
		cur = ranges[i]
	}
	return append(res, cur)
}

// xy2d converts cell coordinates to a position along the curve.
func xy2d(n, x, y int64) int64 {
	var d int64
	for s := n / 2; s > 0; s /= 2 {
		var rx, ry int64
		if x&s > 0 {
			rx = 1
		}
		if y&s > 0 {
			ry = 1
		}
		d += s * s * ((3 * rx) ^ ry)
		x, y = rot(n, x, y, rx, ry)
	}
	return d
}

// d2xy converts a position along the curve to cell coordinates.
func d2xy(n, d int64) (x, y int64) {
	t := d
	for s := int64(1); s < n; s *= 2 {
		rx := 1 & (t / 2)
		ry := 1 & (t ^ rx)
		x, y = rot(s, x, y, rx, ry)
		x += s * rx
		y += s * ry
		t /= 4
	}
	return x, y
}

// rot rotates and flips a quadrant so that the sub-curve has the right
// orientation.
func rot(n, x, y, rx, ry int64) (int64, int64) {
	if ry == 0 {
		if rx == 1 {
			x = n - 1 - x
			y = n - 1 - y
		}
		x, y = y, x
	}
	return x, y
}
