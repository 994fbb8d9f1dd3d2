// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
)

// Set is an immutable, ordered collection of rules with unique names. It is
// safe to share a Set between concurrent planning runs.
type Set struct {
	rules  []Rule
	byName map[string]int
	// byOp lists, per operator, the indexes of the rules whose root operand
	// can match an expression of that operator, in registration order.
	byOp [opt.NumOperators][]int
}

// NewSet returns a set of the given rules, in order. It fails if two rules
// share a name or if an operand tree is malformed.
func NewSet(rules ...Rule) (*Set, error) {
	s := &Set{
		rules:  make([]Rule, 0, len(rules)),
		byName: make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		name := r.Name()
		if name == "" {
			return nil, errors.New("rule without a name")
		}
		if _, ok := s.byName[name]; ok {
			return nil, errors.Newf("duplicate rule %s", name)
		}
		if err := r.Operand().validate(); err != nil {
			return nil, errors.Wrapf(err, "rule %s", name)
		}
		idx := len(s.rules)
		s.byName[name] = idx
		s.rules = append(s.rules, r)
		for op := opt.Operator(1); op < opt.NumOperators; op++ {
			if !op.IsRelational() {
				continue
			}
			if root := r.Operand().Op; root == opt.UnknownOp || root == op {
				s.byOp[op] = append(s.byOp[op], idx)
			}
		}
	}
	return s, nil
}

// MustNewSet is like NewSet but panics on error. It is meant for static rule
// lists.
func MustNewSet(rules ...Rule) *Set {
	s, err := NewSet(rules...)
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "building rule set"))
	}
	return s
}

// Len returns the number of rules.
func (s *Set) Len() int { return len(s.rules) }

// Rules returns the rules in registration order.
func (s *Set) Rules() []Rule {
	res := make([]Rule, len(s.rules))
	copy(res, s.rules)
	return res
}

// Names returns the rule names in registration order.
func (s *Set) Names() []string {
	res := make([]string, len(s.rules))
	for i, r := range s.rules {
		res[i] = r.Name()
	}
	return res
}

// Lookup returns the rule with the given name.
func (s *Set) Lookup(name string) (Rule, bool) {
	idx, ok := s.byName[name]
	if !ok {
		return nil, false
	}
	return s.rules[idx], true
}

// ForOperator returns the rules whose root operand can match an expression
// of the given operator, in registration order.
func (s *Set) ForOperator(op opt.Operator) []Rule {
	if op >= opt.NumOperators {
		return nil
	}
	idxs := s.byOp[op]
	res := make([]Rule, len(idxs))
	for i, idx := range idxs {
		res[i] = s.rules[idx]
	}
	return res
}

// Select returns the set of rules named in names, in the order of s. A name
// also selects every variant of the rule, so AggregateUnionAggregate selects
// AggregateUnionAggregate:first-input-agg.
func (s *Set) Select(names ...string) (*Set, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		found := false
		for _, r := range s.rules {
			if matchesName(r.Name(), n) {
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Newf("unknown rule %s", n)
		}
		want[n] = true
	}
	var res []Rule
	for _, r := range s.rules {
		for n := range want {
			if matchesName(r.Name(), n) {
				res = append(res, r)
				break
			}
		}
	}
	return NewSet(res...)
}

// Union returns the rules of s followed by the rules of o that s does not
// have.
func (s *Set) Union(o *Set) (*Set, error) {
	res := s.Rules()
	for _, r := range o.rules {
		if _, ok := s.byName[r.Name()]; !ok {
			res = append(res, r)
		}
	}
	return NewSet(res...)
}

func matchesName(ruleName, name string) bool {
	return ruleName == name || strings.HasPrefix(ruleName, name+":")
}
