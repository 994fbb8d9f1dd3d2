// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"sort"

	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
)

// optState contains all the relevant information about the states of the
// different sets during plan selection. It is discarded whenever the memo
// changes.
type optState struct {
	stateMap   map[groupStateKey]*groupState
	stateAlloc groupStateAlloc
}

func (o *optState) init() {
	o.stateMap = make(map[groupStateKey]*groupState)
	o.stateAlloc = groupStateAlloc{}
}

// groupStateKey associates groupState with a set that is being optimized with
// respect to a set of required traits.
type groupStateKey struct {
	set      int
	required string
}

func makeGroupStateKey(set *memoSet, required props.TraitSet) groupStateKey {
	return groupStateKey{set: set.id, required: required.String()}
}

// lookupOptState looks up the state associated with the given set and
// traits. If no state exists yet, then lookupOptState returns nil.
func (o *optState) lookupOptState(set *memoSet, required props.TraitSet) *groupState {
	return o.stateMap[makeGroupStateKey(set, required)]
}

// ensureOptState looks up the state associated with the given set and traits.
// If none is associated yet, then ensureOptState allocates new state and
// returns it.
func (o *optState) ensureOptState(set *memoSet, required props.TraitSet) *groupState {
	key := makeGroupStateKey(set, required)
	state, ok := o.stateMap[key]
	if !ok {
		state = o.stateAlloc.allocate()
		state.set = set
		state.required = required
		o.stateMap[key] = state
	}
	return state
}

// ratchetCost checks whether the cost of the candidate is lower than the cost
// of the existing best plan of the set. If so, then the candidate becomes the
// new lowest cost plan.
func (o *optState) ratchetCost(state *groupState, c candidate) bool {
	if state.best == nil || c.cost.Less(state.cost) {
		state.best = c.plan
		state.cost = c.cost
		state.op = c.op
		state.children = c.children
		return true
	}
	return false
}

// sortedStates returns the states ordered by set id and required traits.
func (o *optState) sortedStates() []*groupState {
	res := make([]*groupState, 0, len(o.stateMap))
	for _, s := range o.stateMap {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].set.id != res[j].set.id {
			return res[i].set.id < res[j].set.id
		}
		return res[i].required.String() < res[j].required.String()
	})
	return res
}

// candidate is a plan for a set together with the expression at its root and
// the requirements passed to its inputs.
type candidate struct {
	plan     rel.Node
	cost     Cost
	op       rel.Node
	children []childRequirement
}

type childRequirement struct {
	set      *memoSet
	required props.TraitSet
}

// groupState is temporary storage that's associated with each set that's
// optimized (or same set with different required traits).
type groupState struct {
	set *memoSet

	// best is the lowest cost plan of the set for the required traits, or nil
	// if none was found.
	best rel.Node

	// required is the set of traits that must be provided by the lowest cost
	// plan. A plan that cannot provide these traits cannot be the best plan,
	// no matter how low its cost.
	required props.TraitSet

	// cost is the estimated execution cost of best.
	cost Cost

	// op is the member or enforcer at the root of best, with its inputs still
	// referencing sets, and children are the requirements passed to the
	// inputs. They are only used to format the memo.
	op       rel.Node
	children []childRequirement

	// inProgress is set while the members of the set are being costed. A set
	// that is reached again through a cycle has no plan for that path.
	inProgress bool

	// fullyOptimized is set to true once the lowest cost plan has been found
	// for the set, with respect to the required traits.
	fullyOptimized bool
}

// groupStateAlloc allocates pages of groupState structs. This is preferable to
// a slice of groupState structs because pointers are not invalidated when a
// resize occurs, and because there's no need to retain a stable index.
type groupStateAlloc struct {
	page []groupState
}

// allocate returns a pointer to a new, empty groupState struct. The pointer is
// stable, meaning that its location won't change as other groupState structs
// are allocated.
func (a *groupStateAlloc) allocate() *groupState {
	if len(a.page) == 0 {
		a.page = make([]groupState, 8)
	}
	state := &a.page[0]
	a.page = a.page[1:]
	return state
}
