// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package metadata derives facts about relational expressions: estimated row
// counts, predicates known to hold, orderings, distribution, keys and column
// lineage. Facts are computed lazily and memoized per expression by a Query,
// which rules and cost models share during one planning run.
//
// A Query is not safe for concurrent use. Facts of an expression depend on the
// expressions below it, so a Query must be cleared, or the affected entries
// invalidated, when the members of a planner equivalence set change.
package metadata

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
)

type fact uint8

const (
	rowCountFact fact = iota
	selectivityFact
	pulledUpPredicatesFact
	allPredicatesFact
	collationsFact
	distributionFact
	uniqueKeysFact
	columnOriginsFact
)

var factNames = [...]string{
	rowCountFact:           "RowCount",
	selectivityFact:        "Selectivity",
	pulledUpPredicatesFact: "PulledUpPredicates",
	allPredicatesFact:      "AllPredicates",
	collationsFact:         "Collations",
	distributionFact:       "Distribution",
	uniqueKeysFact:         "UniqueKeys",
	columnOriginsFact:      "ColumnOrigins",
}

func (f fact) String() string { return factNames[f] }

type cacheKey struct {
	node rel.Node
	fact fact
	arg  string
}

// SubsetResolver returns the members of the equivalence set referenced by a
// subset. The cost-based planner implements it so that facts can be derived
// for expressions whose inputs are subsets.
type SubsetResolver interface {
	// SubsetMembers returns the live members of the set of s in registration
	// order.
	SubsetMembers(s *rel.Subset) []rel.Node
}

// CycleError is raised when computing a fact of an expression requires the
// same fact of the same expression. It is raised as a panic wrapped in an
// assertion error; planners recover it and return it.
type CycleError struct {
	Fact string
	Node string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected while computing %s of %s", e.Fact, e.Node)
}

// Option configures a Query.
type Option func(q *Query)

// WithSubsetResolver lets the query answer facts for subsets.
func WithSubsetResolver(r SubsetResolver) Option {
	return func(q *Query) { q.resolver = r }
}

// WithDefaultRowCount sets the row count assumed for tables whose row count
// is unknown. The default is 100.
func WithDefaultRowCount(rows float64) Option {
	return func(q *Query) { q.defaultRowCount = rows }
}

// Query computes and memoizes metadata facts.
type Query struct {
	resolver        SubsetResolver
	defaultRowCount float64

	cache  map[cacheKey]interface{}
	active map[cacheKey]struct{}

	// hits and misses count cache lookups, for diagnostics.
	hits, misses int
}

// NewQuery returns an empty query.
func NewQuery(opts ...Option) *Query {
	q := &Query{defaultRowCount: 100}
	for _, o := range opts {
		o(q)
	}
	q.Clear()
	return q
}

// Clear drops every memoized fact.
func (q *Query) Clear() {
	q.cache = make(map[cacheKey]interface{})
	q.active = make(map[cacheKey]struct{})
}

// Invalidate drops the memoized facts of n.
func (q *Query) Invalidate(n rel.Node) {
	for k := range q.cache {
		if k.node == n {
			delete(q.cache, k)
		}
	}
}

// CacheStats returns the number of memoized lookups that were served from
// the cache, and the number that were computed.
func (q *Query) CacheStats() (hits, misses int) {
	return q.hits, q.misses
}

// memoize returns the cached fact for (n, f, arg), computing it with compute
// on a miss. It panics with a CycleError if the fact is already being
// computed further up the stack.
func memoize[T any](q *Query, n rel.Node, f fact, arg string, compute func() T) T {
	k := cacheKey{node: n, fact: f, arg: arg}
	if v, ok := q.cache[k]; ok {
		q.hits++
		return v.(T)
	}
	if _, ok := q.active[k]; ok {
		// The CycleError must remain visible as the cause for IsCycleError.
		panic(errors.WithAssertionFailure(errors.Wrap(
			&CycleError{Fact: f.String(), Node: rel.Describe(n)}, "metadata")))
	}
	q.misses++
	q.active[k] = struct{}{}
	defer delete(q.active, k)
	v := compute()
	q.cache[k] = v
	return v
}

// IsCycleError returns true if err was caused by a metadata cycle.
func IsCycleError(err error) bool {
	return errors.HasType(err, (*CycleError)(nil))
}

// members returns the members of the set of s.
func (q *Query) members(s *rel.Subset) []rel.Node {
	if q.resolver == nil {
		panic(errors.AssertionFailedf("no subset resolver to compute metadata of %s", rel.Describe(s)))
	}
	return q.resolver.SubsetMembers(s)
}

// forEachMember calls fn for each member of the set of s. Members whose facts
// depend on themselves are skipped; if every member is skipped the cycle is
// raised again.
func (q *Query) forEachMember(s *rel.Subset, fn func(m rel.Node)) {
	var cycle interface{}
	ok := false
	for _, m := range q.members(s) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					if err, isErr := r.(error); isErr && IsCycleError(err) {
						cycle = r
						return
					}
					panic(r)
				}
			}()
			fn(m)
			ok = true
		}()
	}
	if !ok && cycle != nil {
		panic(cycle)
	}
}

// firstMember returns fn of the first member of the set of s whose facts do
// not depend on themselves, or the zero value for an empty set.
func firstMember[T any](q *Query, s *rel.Subset, fn func(m rel.Node) T) T {
	var res T
	done := false
	q.forEachMember(s, func(m rel.Node) {
		if !done {
			res = fn(m)
			done = true
		}
	})
	return res
}
