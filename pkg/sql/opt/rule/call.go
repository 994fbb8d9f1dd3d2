// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rule

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/metadata"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/types"
	"github.com/cockroachdb/relopt/pkg/util/log"
)

// Host is the planner side of a Call.
type Host interface {
	// Convert returns an expression equivalent to n with the given
	// convention. The cost-based planner returns a subset of the set of n;
	// the heuristic planner rebuilds n.
	Convert(n rel.Node, c props.Convention) rel.Node

	// Prune marks n as no longer eligible as the root of a binding.
	Prune(n rel.Node)

	// NewCorrelationID returns a correlation id unused in the run.
	NewCorrelationID() opt.CorrelationID
}

// Call is one firing of a rule on one binding.
type Call struct {
	ctx     context.Context
	rule    Rule
	rels    []rel.Node
	md      *metadata.Query
	host    Host
	results []rel.Node
}

// NewCall returns a call of r on the nodes of a binding, in operand
// pre-order.
func NewCall(
	ctx context.Context, r Rule, rels []rel.Node, md *metadata.Query, host Host,
) *Call {
	return &Call{ctx: ctx, rule: r, rels: rels, md: md, host: host}
}

// Rule returns the rule being fired.
func (c *Call) Rule() Rule { return c.rule }

// Rel returns the node bound to the i-th operand in pre-order. Rel(0) is the
// root of the binding.
func (c *Call) Rel(i int) rel.Node { return c.rels[i] }

// Rels returns the bound nodes in operand pre-order.
func (c *Call) Rels() []rel.Node { return c.rels }

// Metadata returns the metadata query of the run.
func (c *Call) Metadata() *metadata.Query { return c.md }

// Context returns the context of the run.
func (c *Call) Context() context.Context { return c.ctx }

// Results returns the expressions passed to TransformTo.
func (c *Call) Results() []rel.Node { return c.results }

// TransformTo registers n as equivalent to the root of the binding. The row
// type of n must have the field names and the types of the root's row type.
// Nullability may differ.
func (c *Call) TransformTo(n rel.Node) error {
	root := c.rels[0]
	if !n.RowType().EquivalentTypes(root.RowType()) || !sameFieldNames(n.RowType(), root.RowType()) {
		return errors.WithDetailf(
			errors.AssertionFailedf("transformation changes the row type of %s", rel.Name(root)),
			"original: %s\nnew: %s", root.RowType(), n.RowType(),
		)
	}
	log.VEventf(c.ctx, 3, "%s: %s => %s", c.rule.Name(), rel.Describe(root), rel.Describe(n))
	c.results = append(c.results, n)
	return nil
}

// Prune marks n, usually the root of the binding, as obsolete: it is no
// longer considered as the root of a binding.
func (c *Call) Prune(n rel.Node) {
	c.host.Prune(n)
}

// Convert returns an expression equivalent to n with the given convention.
func (c *Call) Convert(n rel.Node, conv props.Convention) rel.Node {
	if n.Traits().Convention == conv {
		return n
	}
	return c.host.Convert(n, conv)
}

// NewCorrelationID returns a fresh correlation id.
func (c *Call) NewCorrelationID() opt.CorrelationID {
	return c.host.NewCorrelationID()
}

// Fire runs the rule of c: the Matcher check, if any, then OnMatch. It
// returns true if the rule ran. Errors and panics raised by the rule are
// returned wrapped with the rule name.
func Fire(c *Call) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(opt.CatchOptimizerError(r), "rule %s", c.rule.Name())
		}
	}()
	if m, ok := c.rule.(Matcher); ok && !m.Matches(c) {
		return false, nil
	}
	if log.V(2) {
		log.VEventf(c.ctx, 2, "firing %s on %s", c.rule.Name(), rel.Describe(c.rels[0]))
	}
	if err := c.rule.OnMatch(c); err != nil {
		return true, errors.Wrapf(err, "rule %s", c.rule.Name())
	}
	return true, nil
}

// AutoPruneOld returns true if the root of the binding is pruned after the
// call transformed it.
func (c *Call) AutoPruneOld() bool {
	return autoPruning(c.rule)
}

func sameFieldNames(a, b *types.RowType) bool {
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name {
			return false
		}
	}
	return true
}
