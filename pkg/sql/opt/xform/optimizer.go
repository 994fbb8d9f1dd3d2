// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package xform implements the cost-based planner. Expressions are registered
// in a memo of equivalence sets; rules are fired on bindings of set members
// until no new bindings remain or a budget is exhausted, and the cheapest
// plan that provides the required traits is then extracted from the memo.
package xform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/metadata"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/util/log"
	"github.com/gammazero/deque"
)

// ErrNoPlanFound is the mark of errors returned when no member of a set can
// provide the required traits.
var ErrNoPlanFound = errors.New("no plan found")

var budgetWarning = log.Every(10 * time.Second)

// Config holds the options of the optimizer.
type Config struct {
	// MaxIterations bounds the number of rule firings. Zero means no bound.
	MaxIterations int

	// ImprovementWindow is the number of firings after which the cost of the
	// best plan is checked. Zero disables the check.
	ImprovementWindow int

	// MinImprovement is the relative cost reduction that the best plan must
	// achieve over each window for planning to go on.
	MinImprovement float64

	// Coster estimates costs. It defaults to DefaultCoster.
	Coster Coster

	// Metrics, if set, record the activity of the optimizer.
	Metrics *rule.Metrics
}

// DefaultConfig returns the configuration used by the command line tool and
// the tests.
func DefaultConfig() Config {
	return Config{
		MaxIterations:  opt.DefaultMaxIterations,
		MinImprovement: opt.DefaultMinImprovement,
		Coster:         DefaultCoster{},
	}
}

// Optimizer is the cost-based planner. An Optimizer can be reused for several
// runs but is not safe for concurrent use.
type Optimizer struct {
	rules    *rule.Set
	cfg      Config
	maxDepth int

	ctx      context.Context
	mem      memo
	md       *metadata.Query
	queue    deque.Deque[match]
	fired    map[string]struct{}
	ids      opt.CorrelationIDGenerator
	stats    rule.Stats
	state    optState
	root     *memoSet
	required props.TraitSet

	iterations int
	lastCost   Cost
	haveCost   bool
}

var _ rule.Host = &Optimizer{}
var _ metadata.SubsetResolver = &Optimizer{}

// match is a binding of a rule waiting to be fired.
type match struct {
	rule    rule.Rule
	members []*member
}

// New returns an optimizer that fires the given rules.
func New(rules *rule.Set, cfg Config) *Optimizer {
	if cfg.Coster == nil {
		cfg.Coster = DefaultCoster{}
	}
	o := &Optimizer{rules: rules, cfg: cfg}
	for _, r := range rules.Rules() {
		if d := r.Operand().Depth(); d > o.maxDepth {
			o.maxDepth = d
		}
	}
	return o
}

func (o *Optimizer) init(ctx context.Context, required props.TraitSet) {
	o.ctx = ctx
	o.mem.onRegister = o.onRegister
	o.mem.onMerge = o.onMerge
	o.mem.init()
	o.md = metadata.NewQuery(metadata.WithSubsetResolver(o))
	o.queue.Clear()
	o.fired = make(map[string]struct{})
	o.ids = opt.CorrelationIDGenerator{}
	o.stats = rule.Stats{}
	o.state.init()
	o.root = nil
	o.required = required
	o.iterations = 0
	o.haveCost = false
}

// Optimize returns the cheapest plan equivalent to root that provides the
// required traits. The plan has the row type of root, field names included.
func (o *Optimizer) Optimize(
	ctx context.Context, root rel.Node, required props.TraitSet,
) (_ rel.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
	}()
	start := time.Now()
	defer func() { o.cfg.Metrics.RecordDuration("volcano", time.Since(start)) }()

	if err := checkRequired(root, required); err != nil {
		return nil, err
	}
	ctx = logtags.AddTag(ctx, "volcano", nil)
	o.init(ctx, required)
	for _, id := range rel.CorrelationIDs(root) {
		o.ids.Reserve(id)
	}
	o.root = o.mem.register(root, nil)

	reason := "no more rule matches"
	for o.queue.Len() > 0 {
		if ctx.Err() != nil {
			reason = "context done"
			break
		}
		if o.cfg.MaxIterations > 0 && o.iterations >= o.cfg.MaxIterations {
			reason = "iteration limit reached"
			if budgetWarning.ShouldLog() {
				log.Warningf(ctx, "iteration limit %d reached with %d rule matches queued",
					o.cfg.MaxIterations, o.queue.Len())
			}
			break
		}
		if err := o.fire(o.queue.PopFront()); err != nil {
			return nil, err
		}
		if w := o.cfg.ImprovementWindow; w > 0 && o.iterations%w == 0 && !o.improving() {
			reason = "cost no longer improving"
			break
		}
	}
	log.VEventf(ctx, 1, "stopped after %d iterations: %s; %d sets, %d members",
		o.iterations, reason, len(o.mem.liveSets()), len(o.mem.members))

	plan, err := o.bestPlan()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WithSecondaryError(errors.Wrap(ctxErr, "planning interrupted"), err)
		}
		return nil, err
	}
	return rel.Rename(plan, root.RowType().FieldNames())
}

// checkRequired validates the required traits against the row type of root.
func checkRequired(root rel.Node, required props.TraitSet) error {
	n := root.RowType().FieldCount()
	for _, k := range required.Collation.Keys() {
		if k < 0 || k >= n {
			return opt.Validationf("required collation %s references a missing field", required.Collation)
		}
	}
	for _, k := range required.Distribution.Keys {
		if k < 0 || k >= n {
			return opt.Validationf("required distribution %s references a missing field", required.Distribution)
		}
	}
	return nil
}

// Stats returns the rule statistics of the last run.
func (o *Optimizer) Stats() *rule.Stats {
	return &o.stats
}

// Iterations returns the number of rule firings of the last run.
func (o *Optimizer) Iterations() int {
	return o.iterations
}

// SetCount returns the number of equivalence sets of the last run, not
// counting sets merged into others.
func (o *Optimizer) SetCount() int {
	return len(o.mem.liveSets())
}

// fire runs one match and registers its results in the set of the root.
func (o *Optimizer) fire(m match) error {
	root := m.members[0]
	if root.pruned {
		return nil
	}
	for _, mem := range m.members {
		if mem.dup {
			return nil
		}
	}
	o.prepareMetadata()
	rels := make([]rel.Node, len(m.members))
	for i, mem := range m.members {
		rels[i] = mem.node
	}
	o.iterations++
	call := rule.NewCall(o.ctx, m.rule, rels, o.md, o)
	fired, err := rule.Fire(call)
	if err != nil {
		return err
	}
	if !fired {
		return nil
	}
	name := m.rule.Name()
	results := call.Results()
	o.stats.RecordAttempt(name)
	o.stats.RecordTransforms(name, len(results))
	o.cfg.Metrics.RecordAttempt(name)
	o.cfg.Metrics.RecordTransforms(name, len(results))

	set := root.set.find()
	for _, r := range results {
		set = o.mem.register(r, set)
	}
	if len(results) > 0 && call.AutoPruneOld() {
		root.pruned = true
	}
	return nil
}

// prepareMetadata drops memoized metadata if the memo changed since it was
// computed.
func (o *Optimizer) prepareMetadata() {
	if o.mem.changed {
		o.md.Clear()
		o.mem.changed = false
		o.state.init()
	}
}

// onRegister queues the bindings of a new member: the bindings rooted at the
// member, and those of the members above it that can now reach it.
func (o *Optimizer) onRegister(mem *member) {
	o.cfg.Metrics.RecordRegistered()
	if log.V(2) {
		log.VEventf(o.ctx, 2, "registered m%d in G%d: %s", mem.id, mem.set.find().id, rel.Describe(mem.node))
	}
	o.queueMatches(mem)
	o.queueAncestors(mem.set.find(), o.maxDepth-1)
}

// onMerge queues the bindings that span the merged sets.
func (o *Optimizer) onMerge(winner, loser *memoSet) {
	o.cfg.Metrics.RecordMerge()
	log.VEventf(o.ctx, 2, "merged G%d into G%d", loser.id, winner.id)
	o.queueAncestors(winner, o.maxDepth-1)
}

func (o *Optimizer) queueMatches(root *member) {
	if root.pruned || root.dup {
		return
	}
	for _, r := range o.rules.ForOperator(root.node.Op()) {
		for _, b := range rule.Bind(r.Operand(), root.node, o.expand) {
			o.enqueue(r, b)
		}
	}
}

// queueAncestors queues the bindings rooted at the members that reference
// set, and at their own parents, up to depth levels.
func (o *Optimizer) queueAncestors(set *memoSet, depth int) {
	if depth <= 0 {
		return
	}
	parents := append([]*member(nil), set.find().parents...)
	for _, p := range parents {
		if p.dup {
			continue
		}
		o.queueMatches(p)
		o.queueAncestors(p.set.find(), depth-1)
	}
}

// expand returns the candidates for an input of a bound node: the live
// members of a subset's set.
func (o *Optimizer) expand(n rel.Node) []rel.Node {
	if s, ok := n.(*rel.Subset); ok {
		return o.mem.subsetMembers(s)
	}
	return []rel.Node{n}
}

// enqueue adds a binding to the queue unless the rule was already matched on
// the same members.
func (o *Optimizer) enqueue(r rule.Rule, nodes []rel.Node) {
	members := make([]*member, len(nodes))
	var key strings.Builder
	key.WriteString(r.Name())
	for i, n := range nodes {
		mem, ok := o.mem.memberOf(n)
		if !ok {
			panic(errors.AssertionFailedf("rule %s bound %s, which is not registered", r.Name(), rel.Describe(n)))
		}
		members[i] = mem
		fmt.Fprintf(&key, " m%d", mem.id)
	}
	k := key.String()
	if _, ok := o.fired[k]; ok {
		return
	}
	o.fired[k] = struct{}{}
	o.queue.PushBack(match{rule: r, members: members})
}

// improving computes the cost of the best plan and returns false if it did
// not improve by MinImprovement since the previous check.
func (o *Optimizer) improving() bool {
	o.prepareMetadata()
	o.state.init()
	state := o.optimizeSet(o.root, o.required)
	if state.best == nil {
		return true
	}
	cost := state.cost
	prev, had := o.lastCost, o.haveCost
	o.lastCost, o.haveCost = cost, true
	if !had || prev.IsInfinite() {
		return true
	}
	if prev.Total() <= 0 {
		return false
	}
	return (prev.Total()-cost.Total())/prev.Total() >= o.cfg.MinImprovement
}

// Convert is part of the rule.Host interface. It registers n and returns the
// subset of its set with the given convention.
func (o *Optimizer) Convert(n rel.Node, c props.Convention) rel.Node {
	return o.mem.subset(o.mem.register(n, nil), c)
}

// Prune is part of the rule.Host interface.
func (o *Optimizer) Prune(n rel.Node) {
	if mem, ok := o.mem.memberOf(n); ok {
		mem.pruned = true
	}
}

// NewCorrelationID is part of the rule.Host interface.
func (o *Optimizer) NewCorrelationID() opt.CorrelationID {
	return o.ids.Next()
}

// SubsetMembers is part of the metadata.SubsetResolver interface.
func (o *Optimizer) SubsetMembers(s *rel.Subset) []rel.Node {
	return o.mem.subsetMembers(s)
}
