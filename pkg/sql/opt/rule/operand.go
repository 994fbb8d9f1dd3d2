// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
)

// ChildPolicy says how an operand constrains the inputs of the nodes it
// matches.
type ChildPolicy uint8

const (
	// AnyInputs matches nodes with any inputs. The inputs are not bound.
	AnyInputs ChildPolicy = iota
	// NoInputs matches leaf nodes only.
	NoInputs
	// ExactInputs matches nodes with one input per child operand, each
	// matching its operand.
	ExactInputs
)

// Operand is a pattern over a tree of relational expressions. A rule fires
// for each binding of its operand tree: the list of nodes matched by the
// operands in pre-order.
//
// Operands are immutable once built; the With and Inputs methods return
// copies.
type Operand struct {
	// Op is the kind of the matched nodes, or opt.UnknownOp to match any
	// kind.
	Op opt.Operator
	// Convention, if not AnyConvention, is the required convention of the
	// matched nodes.
	Convention props.Convention
	// Predicate, if set, must return true for the matched nodes. It is
	// evaluated before the inputs are bound.
	Predicate func(n rel.Node) bool
	// Policy constrains the inputs of the matched nodes.
	Policy ChildPolicy
	// Children are the operands of the inputs when Policy is ExactInputs.
	Children []*Operand
}

// Match returns an operand matching nodes of the given kind with any inputs.
func Match(op opt.Operator) *Operand {
	return &Operand{Op: op}
}

// MatchAny returns an operand matching any node with any inputs.
func MatchAny() *Operand {
	return &Operand{Op: opt.UnknownOp}
}

func (o *Operand) copy() *Operand {
	c := *o
	return &c
}

// WithConvention returns a copy of o that only matches nodes with the given
// convention.
func (o *Operand) WithConvention(c props.Convention) *Operand {
	res := o.copy()
	res.Convention = c
	return res
}

// WithPredicate returns a copy of o that only matches nodes for which fn
// returns true. Predicates of o are kept.
func (o *Operand) WithPredicate(fn func(n rel.Node) bool) *Operand {
	res := o.copy()
	if prev := o.Predicate; prev != nil {
		res.Predicate = func(n rel.Node) bool { return prev(n) && fn(n) }
	} else {
		res.Predicate = fn
	}
	return res
}

// AnyInputs returns a copy of o that matches nodes with any inputs.
func (o *Operand) AnyInputs() *Operand {
	res := o.copy()
	res.Policy, res.Children = AnyInputs, nil
	return res
}

// NoInputs returns a copy of o that matches leaf nodes.
func (o *Operand) NoInputs() *Operand {
	res := o.copy()
	res.Policy, res.Children = NoInputs, nil
	return res
}

// OneInput returns a copy of o that matches nodes with a single input
// matching child.
func (o *Operand) OneInput(child *Operand) *Operand {
	return o.Inputs(child)
}

// Inputs returns a copy of o that matches nodes whose inputs match the given
// operands, in order.
func (o *Operand) Inputs(children ...*Operand) *Operand {
	res := o.copy()
	res.Policy, res.Children = ExactInputs, children
	return res
}

// Matches returns true if n matches the operand, regardless of its inputs.
func (o *Operand) Matches(n rel.Node) bool {
	if o.Op != opt.UnknownOp && n.Op() != o.Op {
		return false
	}
	if o.Convention != props.AnyConvention && n.Traits().Convention != o.Convention {
		return false
	}
	return o.Predicate == nil || o.Predicate(n)
}

// Count returns the number of operands in the tree rooted at o, which is the
// length of its bindings.
func (o *Operand) Count() int {
	n := 1
	for _, c := range o.Children {
		n += c.Count()
	}
	return n
}

// Depth returns the number of levels of the tree rooted at o.
func (o *Operand) Depth() int {
	d := 0
	for _, c := range o.Children {
		if cd := c.Depth(); cd > d {
			d = cd
		}
	}
	return d + 1
}

// validate checks that the operand tree is well formed.
func (o *Operand) validate() error {
	if o == nil {
		return errors.New("nil operand")
	}
	if o.Op != opt.UnknownOp && !o.Op.IsRelational() {
		return errors.Newf("%s is not a relational operator", o.Op)
	}
	if o.Policy != ExactInputs && len(o.Children) > 0 {
		return errors.Newf("operand %s has children but does not bind its inputs", o)
	}
	for _, c := range o.Children {
		if err := c.validate(); err != nil {
			return err
		}
	}
	return nil
}

// String formats the operand tree as Filter(Project(*)).
func (o *Operand) String() string {
	var b strings.Builder
	o.format(&b)
	return b.String()
}

func (o *Operand) format(b *strings.Builder) {
	if o.Op == opt.UnknownOp {
		b.WriteString("Any")
	} else {
		b.WriteString(o.Op.String())
	}
	if o.Convention != props.AnyConvention {
		b.WriteByte(':')
		b.WriteString(o.Convention.String())
	}
	switch o.Policy {
	case NoInputs:
		b.WriteString("()")
	case ExactInputs:
		b.WriteByte('(')
		for i, c := range o.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.format(b)
		}
		b.WriteByte(')')
	default:
		b.WriteString("(*)")
	}
}

// Expander returns the candidate nodes for an input of a bound node. The
// heuristic planner returns the input itself; the cost-based planner returns
// the live members of the equivalence set that the input refers to.
type Expander func(input rel.Node) []rel.Node

// Identity is the Expander of plain trees.
func Identity(input rel.Node) []rel.Node {
	return []rel.Node{input}
}

// Bind returns every binding of the operand tree o rooted at n. Each binding
// lists the matched nodes in operand pre-order.
func Bind(o *Operand, n rel.Node, expand Expander) [][]rel.Node {
	if !o.Matches(n) {
		return nil
	}
	switch o.Policy {
	case NoInputs:
		if n.InputCount() != 0 {
			return nil
		}
		return [][]rel.Node{{n}}
	case ExactInputs:
		if n.InputCount() != len(o.Children) {
			return nil
		}
	default:
		return [][]rel.Node{{n}}
	}

	res := [][]rel.Node{{n}}
	for i, child := range o.Children {
		var childBindings [][]rel.Node
		for _, cand := range expand(n.Input(i)) {
			childBindings = append(childBindings, Bind(child, cand, expand)...)
		}
		if len(childBindings) == 0 {
			return nil
		}
		// Cross product of the bindings so far with those of this input.
		next := make([][]rel.Node, 0, len(res)*len(childBindings))
		for _, prefix := range res {
			for _, cb := range childBindings {
				b := make([]rel.Node, 0, len(prefix)+len(cb))
				b = append(append(b, prefix...), cb...)
				next = append(next, b)
			}
		}
		res = next
	}
	return res
}
