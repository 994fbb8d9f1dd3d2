// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/util/log"
)

// bestPlan returns the cheapest plan of the root set.
func (o *Optimizer) bestPlan() (rel.Node, error) {
	o.prepareMetadata()
	o.state.init()
	state := o.optimizeSet(o.root, o.required)
	if state.best == nil {
		return nil, o.noPlanFoundError()
	}
	log.VEventf(o.ctx, 1, "best plan cost: %s", state.cost)
	return state.best, nil
}

// optimizeSet finds the lowest cost plan of the set that provides the
// required traits. Results are memoized per set and traits. A set reached
// again while it is being optimized, through a member that references its own
// set, yields no plan on that path.
func (o *Optimizer) optimizeSet(set *memoSet, required props.TraitSet) *groupState {
	set = set.find()
	state := o.state.ensureOptState(set, required)
	if state.fullyOptimized || state.inProgress {
		return state
	}
	state.inProgress = true
	defer func() {
		state.inProgress = false
		state.fullyOptimized = true
	}()

	for _, mem := range set.members {
		if mem.dup {
			continue
		}
		if c, ok := o.optimizeMember(mem, required); ok {
			o.state.ratchetCost(state, c)
		}
	}

	if hasPhysicalRequirement(required) {
		// Any plan of the set can be sorted or redistributed by an enforcer.
		base := props.TraitSet{Convention: required.Convention}
		inner := o.optimizeSet(set, base)
		if inner.best != nil {
			if c, ok := o.enforce(set, inner, required); ok {
				o.state.ratchetCost(state, c)
			}
		}
	}
	return state
}

// optimizeMember builds the cheapest plan rooted at the member. It returns
// false if the member cannot provide the required traits, or if one of its
// inputs has no plan.
func (o *Optimizer) optimizeMember(mem *member, required props.TraitSet) (candidate, bool) {
	n := mem.node
	if !canProvideConvention(n, required) {
		return candidate{}, false
	}
	c := candidate{op: n, cost: o.cfg.Coster.ComputeCost(n, o.md)}
	inputs := make([]rel.Node, n.InputCount())
	for i := range inputs {
		sub := n.Input(i).(*rel.Subset)
		childRequired := buildChildTraits(n, required, i)
		child := o.optimizeSet(o.mem.set(sub.SetID), childRequired)
		if child.best == nil {
			return candidate{}, false
		}
		inputs[i] = child.best
		c.cost.Add(child.cost)
		c.children = append(c.children, childRequirement{set: child.set, required: childRequired})
	}
	c.plan = n
	if len(inputs) > 0 {
		c.plan = n.Copy(n.Traits(), inputs)
	}
	if !c.plan.Traits().Satisfies(required) {
		return candidate{}, false
	}
	return c, true
}

// enforce places an enforcer on top of the best plan of inner.
func (o *Optimizer) enforce(
	set *memoSet, inner *groupState, required props.TraitSet,
) (candidate, bool) {
	plan, err := buildEnforcer(inner.best, required)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "enforcing %s on G%d", required, set.id))
	}
	if plan == inner.best || !plan.Traits().Satisfies(required) {
		return candidate{}, false
	}
	c := candidate{
		plan:     plan,
		op:       plan,
		cost:     o.cfg.Coster.ComputeCost(plan, o.md).Plus(inner.cost),
		children: []childRequirement{{set: set, required: inner.required}},
	}
	return c, true
}

// noPlanFoundError describes the root set and every set for which no plan
// was found.
func (o *Optimizer) noPlanFoundError() error {
	root := o.root.find()
	var missing []string
	for _, s := range o.state.sortedStates() {
		if s.best == nil {
			missing = append(missing, fmt.Sprintf("G%d %s", s.set.id, s.required))
		}
	}
	err := errors.Newf("no plan found for G%d with traits %s: %s",
		root.id, o.required, rel.Describe(root.origin))
	err = errors.WithDetailf(err, "sets without a plan: %s", strings.Join(missing, ", "))
	err = errors.WithDetailf(err, "original expression:\n%s", rel.Explain(root.origin))
	return errors.Mark(err, ErrNoPlanFound)
}
