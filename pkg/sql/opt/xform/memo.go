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
)

// memo holds the equivalence sets of one planning run. Every expression is
// registered once: its inputs are replaced with subsets of their sets, and
// the resulting member is identified by a key made of its description and
// the ids of its input sets. Registering an expression whose key already
// exists returns the existing set, merging it with the target set if they
// differ.
type memo struct {
	sets    []*memoSet
	members []*member
	byKey   map[string]*member
	byNode  map[rel.Node]*member
	subsets map[subsetKey]*rel.Subset

	// changed is set whenever members are added or sets merged, and reset by
	// the optimizer once it has cleared its metadata.
	changed bool

	// onRegister is called for every new member.
	onRegister func(m *member)
	// onMerge is called with the surviving set after two sets are merged.
	onMerge func(winner, loser *memoSet)
}

type subsetKey struct {
	set  int
	conv props.Convention
}

func (m *memo) init() {
	*m = memo{
		byKey:      make(map[string]*member),
		byNode:     make(map[rel.Node]*member),
		subsets:    make(map[subsetKey]*rel.Subset),
		onRegister: m.onRegister,
		onMerge:    m.onMerge,
	}
}

// set returns the set with the given id, following merges.
func (m *memo) set(id int) *memoSet {
	if id < 1 || id > len(m.sets) {
		panic(errors.AssertionFailedf("unknown set %d", id))
	}
	return m.sets[id-1].find()
}

// liveSets returns the sets that were not merged into another set, in id
// order.
func (m *memo) liveSets() []*memoSet {
	var res []*memoSet
	for _, s := range m.sets {
		if s.mergedInto == nil {
			res = append(res, s)
		}
	}
	return res
}

// subset returns the reference to the members of s with the given
// convention.
func (m *memo) subset(s *memoSet, conv props.Convention) *rel.Subset {
	s = s.find()
	k := subsetKey{set: s.id, conv: conv}
	if sub, ok := m.subsets[k]; ok {
		return sub
	}
	sub := rel.NewSubset(s.id, s.rowType, props.TraitSet{Convention: conv})
	m.subsets[k] = sub
	return sub
}

// key returns the identity of a member node: its description followed by the
// current set of each input.
func (m *memo) key(n rel.Node) string {
	var b strings.Builder
	b.WriteString(rel.Describe(n))
	for i := 0; i < n.InputCount(); i++ {
		sub, ok := n.Input(i).(*rel.Subset)
		if !ok {
			panic(errors.AssertionFailedf("member %s has a non-subset input", rel.Name(n)))
		}
		fmt.Fprintf(&b, " G%d.%s", m.set(sub.SetID).id, sub.Traits().Convention)
	}
	return b.String()
}

// register adds n and its inputs to the memo and returns the set of n. If
// target is not nil, n is known to be equivalent to the members of target
// and the returned set is target or a set it was merged with.
func (m *memo) register(n rel.Node, target *memoSet) *memoSet {
	if target != nil {
		target = target.find()
	}
	if sub, ok := n.(*rel.Subset); ok {
		return m.mergeInto(target, m.set(sub.SetID))
	}
	if existing, ok := m.byNode[n]; ok {
		return m.mergeInto(target, existing.set.find())
	}

	canonical := n
	if n.InputCount() > 0 {
		inputs := make([]rel.Node, n.InputCount())
		for i := range inputs {
			in := n.Input(i)
			inputs[i] = m.subset(m.register(in, nil), in.Traits().Convention)
		}
		canonical = n.Copy(n.Traits(), inputs)
		if target != nil {
			// Registering the inputs may have merged the target.
			target = target.find()
		}
	}

	key := m.key(canonical)
	if existing, ok := m.byKey[key]; ok {
		return m.mergeInto(target, existing.set.find())
	}

	set := target
	if set == nil {
		set = &memoSet{id: len(m.sets) + 1, rowType: n.RowType(), origin: n}
		m.sets = append(m.sets, set)
	}
	mem := &member{id: len(m.members) + 1, node: canonical, set: set, key: key}
	m.members = append(m.members, mem)
	set.members = append(set.members, mem)
	for i := 0; i < canonical.InputCount(); i++ {
		in := m.set(canonical.Input(i).(*rel.Subset).SetID)
		in.parents = append(in.parents, mem)
	}
	m.byKey[key] = mem
	m.byNode[canonical] = mem
	m.changed = true
	if m.onRegister != nil {
		m.onRegister(mem)
	}
	return set.find()
}

// mergeInto merges s into target if target is set, and returns the
// surviving set.
func (m *memo) mergeInto(target, s *memoSet) *memoSet {
	if target == nil || target.find() == s.find() {
		return s.find()
	}
	return m.merge(target, s)
}

// merge merges two equivalent sets. The set with the smaller id survives.
// Members whose inputs referenced either set are re-keyed; when a re-keyed
// member becomes identical to a member of another set, those sets are
// merged too.
func (m *memo) merge(a, b *memoSet) *memoSet {
	pending := [][2]*memoSet{{a, b}}
	for len(pending) > 0 {
		x, y := pending[0][0].find(), pending[0][1].find()
		pending = pending[1:]
		if x == y {
			continue
		}
		if y.id < x.id {
			x, y = y, x
		}
		x.absorb(y)
		m.changed = true

		for _, p := range x.parents {
			if p.dup {
				continue
			}
			newKey := m.key(p.node)
			if newKey == p.key {
				continue
			}
			if m.byKey[p.key] == p {
				delete(m.byKey, p.key)
			}
			p.key = newKey
			other, ok := m.byKey[newKey]
			if !ok || other == p {
				m.byKey[newKey] = p
				continue
			}
			// p is now the same expression as other.
			p.dup = true
			if other.set.find() != p.set.find() {
				pending = append(pending, [2]*memoSet{other.set, p.set})
			}
		}
		if m.onMerge != nil {
			m.onMerge(x, y)
		}
	}
	return a.find()
}

// subsetMembers returns the live member nodes of the set of s.
func (m *memo) subsetMembers(s *rel.Subset) []rel.Node {
	set := m.set(s.SetID)
	res := make([]rel.Node, 0, len(set.members))
	for _, mem := range set.members {
		if !mem.dup {
			res = append(res, mem.node)
		}
	}
	return res
}

// memberOf returns the member of a node bound by a rule.
func (m *memo) memberOf(n rel.Node) (*member, bool) {
	mem, ok := m.byNode[n]
	return mem, ok
}
