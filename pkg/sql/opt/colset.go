// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"strconv"
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// ColSet is a set of column ordinals. The zero value is the empty set.
//
// ColSet has value semantics: the mutating methods copy the underlying bits
// before changing them, so a ColSet can be freely copied and shared.
type ColSet struct {
	set *bitset.BitSet
}

var emptyBits = bitset.New(0)

// MakeColSet returns a set initialized with the given ordinals.
func MakeColSet(ords ...int) ColSet {
	var s ColSet
	if len(ords) == 0 {
		return s
	}
	s.set = bitset.New(0)
	for _, o := range ords {
		s.set.Set(uint(o))
	}
	return s
}

// ColSetRange returns the set [lo, hi).
func ColSetRange(lo, hi int) ColSet {
	var s ColSet
	if lo >= hi {
		return s
	}
	s.set = bitset.New(uint(hi))
	for i := lo; i < hi; i++ {
		s.set.Set(uint(i))
	}
	return s
}

func (s ColSet) bits() *bitset.BitSet {
	if s.set == nil {
		return emptyBits
	}
	return s.set
}

func (s *ColSet) writable() *bitset.BitSet {
	if s.set == nil {
		s.set = bitset.New(0)
	} else {
		s.set = s.set.Clone()
	}
	return s.set
}

// Add adds an ordinal to the set.
func (s *ColSet) Add(ord int) {
	if ord < 0 {
		panic("negative column ordinal")
	}
	if s.Contains(ord) {
		return
	}
	s.writable().Set(uint(ord))
}

// Remove removes an ordinal from the set.
func (s *ColSet) Remove(ord int) {
	if !s.Contains(ord) {
		return
	}
	s.writable().Clear(uint(ord))
}

// UnionWith adds all ordinals of rhs to the set.
func (s *ColSet) UnionWith(rhs ColSet) {
	if rhs.SubsetOf(*s) {
		return
	}
	s.set = s.bits().Union(rhs.bits())
}

// Contains returns true if the set contains ord.
func (s ColSet) Contains(ord int) bool {
	return ord >= 0 && s.bits().Test(uint(ord))
}

// Len returns the number of ordinals in the set.
func (s ColSet) Len() int { return int(s.bits().Count()) }

// Empty returns true if the set is empty.
func (s ColSet) Empty() bool { return s.bits().None() }

// Next returns the smallest ordinal >= start in the set.
func (s ColSet) Next(start int) (int, bool) {
	if start < 0 {
		start = 0
	}
	n, ok := s.bits().NextSet(uint(start))
	return int(n), ok
}

// ForEach calls fn for each ordinal in increasing order.
func (s ColSet) ForEach(fn func(ord int)) {
	b := s.bits()
	for i, ok := b.NextSet(0); ok; i, ok = b.NextSet(i + 1) {
		fn(int(i))
	}
}

// Ordered returns the ordinals in increasing order.
func (s ColSet) Ordered() []int {
	res := make([]int, 0, s.Len())
	s.ForEach(func(ord int) { res = append(res, ord) })
	return res
}

// Union returns the union of the two sets.
func (s ColSet) Union(rhs ColSet) ColSet {
	return ColSet{set: s.bits().Union(rhs.bits())}
}

// Intersection returns the ordinals present in both sets.
func (s ColSet) Intersection(rhs ColSet) ColSet {
	return ColSet{set: s.bits().Intersection(rhs.bits())}
}

// Difference returns the ordinals of s that are not in rhs.
func (s ColSet) Difference(rhs ColSet) ColSet {
	return ColSet{set: s.bits().Difference(rhs.bits())}
}

// Intersects returns true if the sets have an ordinal in common.
func (s ColSet) Intersects(rhs ColSet) bool {
	return s.bits().IntersectionCardinality(rhs.bits()) > 0
}

// SubsetOf returns true if every ordinal of s is in rhs.
func (s ColSet) SubsetOf(rhs ColSet) bool {
	return rhs.bits().IsSuperSet(s.bits())
}

// Equals returns true if the sets contain the same ordinals.
func (s ColSet) Equals(rhs ColSet) bool {
	return s.Len() == rhs.Len() && s.SubsetOf(rhs)
}

// Shift returns the set with delta added to every ordinal. Ordinals that
// become negative are dropped.
func (s ColSet) Shift(delta int) ColSet {
	var res ColSet
	s.ForEach(func(ord int) {
		if ord+delta >= 0 {
			res.Add(ord + delta)
		}
	})
	return res
}

// Max returns the largest ordinal in the set, or -1 if the set is empty.
func (s ColSet) Max() int {
	max := -1
	s.ForEach(func(ord int) { max = ord })
	return max
}

// String formats the set as {0, 2, 5}.
func (s ColSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	s.ForEach(func(ord int) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(strconv.Itoa(ord))
	})
	b.WriteByte('}')
	return b.String()
}
