// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"testing"

	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestColSet(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var empty ColSet
	require.True(t, empty.Empty())
	require.Equal(t, 0, empty.Len())
	require.Equal(t, "{}", empty.String())
	require.Equal(t, -1, empty.Max())

	s := MakeColSet(5, 0, 2)
	require.Equal(t, "{0, 2, 5}", s.String())
	require.Equal(t, []int{0, 2, 5}, s.Ordered())
	require.True(t, s.Contains(2))
	require.False(t, s.Contains(3))
	require.False(t, s.Contains(-1))
	require.Equal(t, 5, s.Max())

	next, ok := s.Next(3)
	require.True(t, ok)
	require.Equal(t, 5, next)
	_, ok = s.Next(6)
	require.False(t, ok)

	// Copies do not share mutations.
	c := s
	c.Add(7)
	c.Remove(0)
	require.Equal(t, "{0, 2, 5}", s.String())
	require.Equal(t, "{2, 5, 7}", c.String())

	c.UnionWith(MakeColSet(1))
	require.Equal(t, "{1, 2, 5, 7}", c.String())
	require.Equal(t, "{0, 2, 5}", s.String())

	require.Equal(t, "{0, 1, 2, 5, 7}", s.Union(c).String())
	require.Equal(t, "{2, 5}", s.Intersection(c).String())
	require.Equal(t, "{0}", s.Difference(c).String())
	require.True(t, s.Intersects(c))
	require.False(t, s.Intersects(MakeColSet(100)))

	require.True(t, MakeColSet(2, 5).SubsetOf(s))
	require.True(t, empty.SubsetOf(s))
	require.False(t, s.SubsetOf(MakeColSet(2, 5)))

	// Equality ignores the capacity of the underlying bits.
	wide := MakeColSet(0, 2, 5, 200)
	wide.Remove(200)
	require.True(t, wide.Equals(s))
	require.True(t, empty.Equals(MakeColSet()))

	require.Equal(t, "{1, 3}", MakeColSet(0, 2, 4).Shift(-1).String())
	require.Equal(t, "{3, 4, 5}", ColSetRange(3, 6).String())
	require.True(t, ColSetRange(3, 3).Empty())
}
