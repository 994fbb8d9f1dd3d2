// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package props defines the physical properties (traits) of relational
// expressions: calling convention, collation and distribution.
package props

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Convention is the calling convention of a relational expression. Logical
// expressions cannot be executed; the planners convert them to an
// executable convention.
type Convention uint8

const (
	// AnyConvention is only used in requirements and means that any
	// convention is acceptable.
	AnyConvention Convention = iota
	// LogicalConvention is the convention of expressions built by the
	// converter and of logical rewrites.
	LogicalConvention
	// EnumerableConvention is the executable, row-at-a-time convention.
	EnumerableConvention
)

var conventionNames = [...]string{
	AnyConvention:        "Any",
	LogicalConvention:    "Logical",
	EnumerableConvention: "Enumerable",
}

func (c Convention) String() string { return conventionNames[c] }

// ParseConvention parses the name of a convention, ignoring case.
func ParseConvention(s string) (Convention, error) {
	for i, n := range conventionNames {
		if strings.EqualFold(n, s) {
			return Convention(i), nil
		}
	}
	return AnyConvention, errors.Newf("unknown convention %q", s)
}

// TraitSet is the set of physical properties of an expression. When used as a
// requirement, the zero values of each trait mean "no requirement".
type TraitSet struct {
	Convention   Convention
	Collation    Collation
	Distribution Distribution
}

// Logical returns the traits of an unsorted logical expression.
func Logical() TraitSet {
	return TraitSet{Convention: LogicalConvention}
}

// Enumerable returns the traits of an unsorted enumerable expression.
func Enumerable() TraitSet {
	return TraitSet{Convention: EnumerableConvention}
}

// WithConvention returns a copy of the trait set with the given convention.
func (t TraitSet) WithConvention(c Convention) TraitSet {
	t.Convention = c
	return t
}

// WithCollation returns a copy of the trait set with the given collation.
func (t TraitSet) WithCollation(c Collation) TraitSet {
	t.Collation = c
	return t
}

// WithDistribution returns a copy of the trait set with the given
// distribution.
func (t TraitSet) WithDistribution(d Distribution) TraitSet {
	t.Distribution = d
	return t
}

// Equals returns true if all traits are equal.
func (t TraitSet) Equals(o TraitSet) bool {
	return t.Convention == o.Convention &&
		t.Collation.Equals(o.Collation) &&
		t.Distribution.Equals(o.Distribution)
}

// Satisfies returns true if an expression with traits t meets required.
func (t TraitSet) Satisfies(required TraitSet) bool {
	if required.Convention != AnyConvention && required.Convention != t.Convention {
		return false
	}
	return t.Collation.Satisfies(required.Collation) &&
		t.Distribution.Satisfies(required.Distribution)
}

// String formats the trait set as Enumerable.[0 DESC].single.
func (t TraitSet) String() string {
	return t.Convention.String() + "." + t.Collation.String() + "." + t.Distribution.String()
}
