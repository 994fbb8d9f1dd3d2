// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package rule is the rule engine shared by the heuristic and cost-based
// planners. A Rule pairs an operand tree, which selects the expressions it
// applies to, with an OnMatch function that registers equivalent
// alternatives through a Call. Rules are grouped into immutable Sets that
// planning runs share.
//
// A rule declines a match by returning nil from OnMatch without calling
// TransformTo. Returning an error, or panicking, aborts the planning run: a
// failing rule indicates a bug that must not be hidden by skipping the rule.
package rule

// Rule is a transformation applied by the planners.
type Rule interface {
	// Name identifies the rule in a Set, in diagnostics and in the no-refire
	// bookkeeping of the planners. Variants of a rule are named
	// Rule:variant.
	Name() string

	// Operand returns the pattern that bound expressions match.
	Operand() *Operand

	// OnMatch is called once per binding. It calls TransformTo zero or more
	// times.
	OnMatch(c *Call) error
}

// Matcher is implemented by rules that check a binding before OnMatch is
// called, e.g. conditions that span several bound nodes.
type Matcher interface {
	// Matches returns false to decline the binding.
	Matches(c *Call) bool
}

// AutoPruner is implemented by rules whose results always replace the
// expression they were matched on. The cost-based planner prunes the root of
// such a binding after a transformation.
type AutoPruner interface {
	AutoPruneOld() bool
}

// funcRule is a Rule implemented by a function.
type funcRule struct {
	name    string
	operand *Operand
	onMatch func(c *Call) error
}

// New returns a rule that calls onMatch for each binding of operand.
func New(name string, operand *Operand, onMatch func(c *Call) error) Rule {
	return &funcRule{name: name, operand: operand, onMatch: onMatch}
}

func (r *funcRule) Name() string { return r.name }

func (r *funcRule) Operand() *Operand { return r.operand }

func (r *funcRule) OnMatch(c *Call) error { return r.onMatch(c) }

func (r *funcRule) String() string { return r.name }

// NewAutoPruning is like New, but the returned rule is an AutoPruner.
func NewAutoPruning(name string, operand *Operand, onMatch func(c *Call) error) Rule {
	return &autoPruningRule{funcRule{name: name, operand: operand, onMatch: onMatch}}
}

type autoPruningRule struct {
	funcRule
}

var _ AutoPruner = &autoPruningRule{}

func (r *autoPruningRule) AutoPruneOld() bool { return true }

// autoPruning returns true if r prunes its matched root after transforming.
func autoPruning(r Rule) bool {
	p, ok := r.(AutoPruner)
	return ok && p.AutoPruneOld()
}
