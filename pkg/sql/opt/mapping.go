// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Mapping is a partial function from source column ordinals to target column
// ordinals. It describes how the columns of an expression are renumbered by a
// rewrite that drops columns.
type Mapping struct {
	targets     []int
	targetCount int
}

// NewMapping returns a mapping of sourceCount columns where no source is
// mapped yet.
func NewMapping(sourceCount, targetCount int) Mapping {
	targets := make([]int, sourceCount)
	for i := range targets {
		targets[i] = -1
	}
	return Mapping{targets: targets, targetCount: targetCount}
}

// IdentityMapping maps each of the n columns to itself.
func IdentityMapping(n int) Mapping {
	m := NewMapping(n, n)
	for i := range m.targets {
		m.targets[i] = i
	}
	return m
}

// MappingFromColSet maps the ordinals of cols, in increasing order, onto
// 0, 1, 2, ... . Other sources are unmapped.
func MappingFromColSet(sourceCount int, cols ColSet) Mapping {
	m := NewMapping(sourceCount, cols.Len())
	t := 0
	cols.ForEach(func(ord int) {
		m.targets[ord] = t
		t++
	})
	return m
}

// Set maps source to target.
func (m Mapping) Set(source, target int) {
	if target < 0 || target >= m.targetCount {
		panic(errors.AssertionFailedf("target %d out of range [0, %d)", target, m.targetCount))
	}
	m.targets[source] = target
}

// SourceCount returns the number of source columns.
func (m Mapping) SourceCount() int { return len(m.targets) }

// TargetCount returns the number of target columns.
func (m Mapping) TargetCount() int { return m.targetCount }

// TargetOpt returns the target of source, or -1 if source is not mapped.
func (m Mapping) TargetOpt(source int) int {
	if source < 0 || source >= len(m.targets) {
		return -1
	}
	return m.targets[source]
}

// Target returns the target of source and panics if it is not mapped.
func (m Mapping) Target(source int) int {
	t := m.TargetOpt(source)
	if t < 0 {
		panic(errors.AssertionFailedf("source column %d is not mapped", source))
	}
	return t
}

// SourceOpt returns the first source mapped to target, or -1.
func (m Mapping) SourceOpt(target int) int {
	for s, t := range m.targets {
		if t == target {
			return s
		}
	}
	return -1
}

// IsIdentity returns true if every source maps to itself and there are as
// many sources as targets.
func (m Mapping) IsIdentity() bool {
	if len(m.targets) != m.targetCount {
		return false
	}
	for s, t := range m.targets {
		if s != t {
			return false
		}
	}
	return true
}

// MapColSet returns the targets of the mapped ordinals of cols.
func (m Mapping) MapColSet(cols ColSet) ColSet {
	var res ColSet
	cols.ForEach(func(ord int) {
		if t := m.TargetOpt(ord); t >= 0 {
			res.Add(t)
		}
	})
	return res
}

// Compose returns the mapping that applies m and then next.
func (m Mapping) Compose(next Mapping) Mapping {
	res := NewMapping(len(m.targets), next.targetCount)
	for s, t := range m.targets {
		if t >= 0 {
			res.targets[s] = next.TargetOpt(t)
		}
	}
	return res
}

// String formats the mapping as [0->1, 2->0] with the source and target
// counts.
func (m Mapping) String() string {
	var b strings.Builder
	b.WriteByte('[')
	first := true
	for s, t := range m.targets {
		if t < 0 {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%d->%d", s, t)
	}
	fmt.Fprintf(&b, "] (%d sources, %d targets)", len(m.targets), m.targetCount)
	return b.String()
}
