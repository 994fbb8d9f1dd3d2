// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"testing"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/util/leaktest"
	"github.com/stretchr/testify/require"
)

func TestCollation(t *testing.T) {
	defer leaktest.AfterTest(t)()

	c, err := ParseCollation("[0, 2 DESC, 1 asc]")
	require.NoError(t, err)
	require.Equal(t, "[0, 2 DESC, 1]", c.String())
	require.Equal(t, []int{0, 2, 1}, c.Keys())
	require.Equal(t, "{0, 1, 2}", c.ColSet().String())

	require.True(t, c.Satisfies(nil))
	require.True(t, c.Satisfies(Collation{{Field: 0}, {Field: 2, Direction: Descending}}))
	require.False(t, c.Satisfies(Asc(0, 2)))
	require.False(t, Asc(0).Satisfies(Asc(0, 1)))

	m := opt.NewMapping(3, 2)
	m.Set(0, 1)
	m.Set(2, 0)
	require.Equal(t, "[1, 0 DESC]", c.Remap(m).String())
	require.Equal(t, "[3, 5 DESC, 4]", c.Shift(3).String())

	empty, err := ParseCollation("[]")
	require.NoError(t, err)
	require.True(t, empty.Any())

	_, err = ParseCollation("[0 UP]")
	require.EqualError(t, err, `invalid sort direction "UP"`)
}

func TestDistribution(t *testing.T) {
	defer leaktest.AfterTest(t)()

	testCases := []struct {
		d, required string
		expected    bool
	}{
		{d: "single", required: "any", expected: true},
		{d: "single", required: "single", expected: true},
		{d: "hash[0]", required: "random", expected: true},
		{d: "hash[0]", required: "hash[0]", expected: true},
		{d: "hash[0]", required: "hash[1]", expected: false},
		{d: "single", required: "hash[0]", expected: false},
		{d: "broadcast", required: "random", expected: false},
	}
	for _, tc := range testCases {
		d, err := ParseDistribution(tc.d)
		require.NoError(t, err)
		required, err := ParseDistribution(tc.required)
		require.NoError(t, err)
		require.Equal(t, tc.expected, d.Satisfies(required), "%s satisfies %s", tc.d, tc.required)
		require.Equal(t, tc.d, d.String())
	}

	_, err := ParseDistribution("hash")
	require.EqualError(t, err, "distribution hash requires keys")
	_, err = ParseDistribution("single[0]")
	require.EqualError(t, err, "distribution single does not take keys")

	m := opt.NewMapping(2, 1)
	m.Set(1, 0)
	require.Equal(t, "hash[0]", Hash(1).Remap(m).String())
	require.Equal(t, "any", Hash(0).Remap(m).String())
}

func TestTraitSet(t *testing.T) {
	defer leaktest.AfterTest(t)()

	sorted := Enumerable().WithCollation(Asc(1)).WithDistribution(Distribution{Type: Singleton})
	require.Equal(t, "Enumerable.[1].single", sorted.String())

	require.True(t, sorted.Satisfies(TraitSet{}))
	require.True(t, sorted.Satisfies(Enumerable()))
	require.False(t, sorted.Satisfies(Logical()))
	require.False(t, Enumerable().Satisfies(sorted))
	require.True(t, sorted.Equals(sorted.WithCollation(Asc(1))))

	conv, err := ParseConvention("enumerable")
	require.NoError(t, err)
	require.Equal(t, EnumerableConvention, conv)
}
