// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package hilbert

import (
	"testing"

	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestCurveOrder2(t *testing.T) {
	defer leaktest.AfterTest(t)()

	// The order-2 curve visits the 4x4 grid in this order.
	expected := [][2]int64{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 2}, {0, 3}, {1, 3}, {1, 2},
		{2, 2}, {2, 3}, {3, 3}, {3, 2}, {3, 1}, {2, 1}, {2, 0}, {3, 0},
	}
	for d, xy := range expected {
		x, y := d2xy(4, int64(d))
		require.Equal(t, xy, [2]int64{x, y}, "position %d", d)
		require.Equal(t, int64(d), xy2d(4, xy[0], xy[1]))
	}
}

func TestRoundTrip(t *testing.T) {
	defer leaktest.AfterTest(t)()

	const n = 256
	for d := int64(0); d < n*n; d++ {
		x, y := d2xy(n, d)
		require.Equal(t, d, xy2d(n, x, y))
	}
}

func TestToIndex(t *testing.T) {
	defer leaktest.AfterTest(t)()

	c, err := NewCurve(8)
	require.NoError(t, err)
	require.Equal(t, int64(256), c.Resolution())
	require.Equal(t, int64(33139), c.ToIndex(10, 20))

	// Out of domain points are clamped to the border cells.
	require.Equal(t, c.ToIndex(-180, -90), c.ToIndex(-500, -500))
	require.Equal(t, int64(0), c.ToIndex(-180, -90))

	_, err = NewCurve(0)
	require.Error(t, err)
	_, err = NewCurve(MaxOrder + 1)
	require.Error(t, err)
}

func TestToRanges(t *testing.T) {
	defer leaktest.AfterTest(t)()

	c, err := NewCurve(8)
	require.NoError(t, err)

	ranges := c.ToRanges(5, 15, 15, 25, RangeHints{})
	require.Equal(t, []Range{
		{33056, 33072}, {33075, 33077}, {33093, 33094}, {33097, 33098},
		{33114, 33116}, {33119, 33156}, {33159, 33160}, {33163, 33177},
		{33181, 33182}, {33234, 33245}, {36450, 36450}, {36454, 36461},
		{36498, 36509}, {36515, 36517},
	}, ranges)

	// Every cell of the box must be covered.
	covered := func(d int64, rs []Range) bool {
		for _, r := range rs {
			if r.Lo <= d && d <= r.Hi {
				return true
			}
		}
		return false
	}
	for x := c.normalizeX(5); x <= c.normalizeX(15); x++ {
		for y := c.normalizeY(15); y <= c.normalizeY(25); y++ {
			require.True(t, covered(xy2d(c.resolution, x, y), ranges))
		}
	}

	// Limiting the number of ranges coarsens the cover but keeps it complete.
	limited := c.ToRanges(5, 15, 15, 25, RangeHints{MaxRanges: 3})
	require.Len(t, limited, 3)
	for i := 1; i < len(limited); i++ {
		require.Less(t, limited[i-1].Hi+1, limited[i].Lo)
	}
	for _, r := range ranges {
		require.True(t, covered(r.Lo, limited))
		require.True(t, covered(r.Hi, limited))
	}

	// A single point maps to a single cell.
	require.Equal(t, []Range{{33139, 33139}}, c.ToRanges(10, 20, 10, 20, RangeHints{}))

	// The whole domain is one range.
	require.Equal(t, []Range{{0, 256*256 - 1}}, c.ToRanges(-180, -90, 180, 90, RangeHints{}))

	require.Empty(t, c.ToRanges(10, 20, 5, 20, RangeHints{}))

	// The same cover from a point and a distance.
	center := geom.NewPointFlat(geom.XY, []float64{10, 20})
	require.Equal(t, ranges, c.WithinRanges(center, 5, RangeHints{}))
	require.Equal(t, []Range{{33139, 33139}}, c.WithinRanges(center, 0, RangeHints{}))
	require.Empty(t, c.WithinRanges(center, -1, RangeHints{}))
	require.Empty(t, c.BoundsRanges(geom.NewBounds(geom.XY), RangeHints{}))
}
