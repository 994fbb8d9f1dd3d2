// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package hep implements the heuristic planner. It applies the rules of a
// program to a plain tree, replacing an expression with the result of a rule
// as soon as the rule produces one, until no rule applies anymore. Unlike the
// cost-based planner it keeps a single tree and no alternatives.
package hep

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
	"github.com/cockroachdb/relopt/pkg/sql/opt/xform"
	"github.com/cockroachdb/relopt/pkg/util/log"
	"github.com/gammazero/deque"
)

// MatchOrder is the order in which the expressions of the tree are tried as
// the root of a rule binding.
type MatchOrder uint8

const (
	// TopDown tries parents before their inputs.
	TopDown MatchOrder = iota
	// BottomUp tries inputs before their parents.
	BottomUp
)

func (o MatchOrder) String() string {
	if o == BottomUp {
		return "bottom-up"
	}
	return "top-down"
}

// Phase is a step of a program: its rules are applied until none of them
// transforms the tree, or until MatchLimit transformations were made.
type Phase struct {
	Name       string
	Rules      *rule.Set
	Order      MatchOrder
	MatchLimit int
}

// Program is the list of phases run by the planner, in order.
type Program []Phase

// NewProgram returns a program with a single top-down phase.
func NewProgram(rules *rule.Set) Program {
	return Program{{Name: "main", Rules: rules}}
}

// Config holds the options of the planner.
type Config struct {
	// MaxIterations bounds the number of rule firings over all phases. When
	// it is reached, the current tree is returned. Zero means no bound.
	MaxIterations int

	// Coster picks the cheapest result when a rule produces several. It
	// defaults to xform.DefaultCoster.
	Coster xform.Coster

	// Metrics, if set, record the activity of the planner.
	Metrics *rule.Metrics

	// OnTransform, if set, is called after each transformation with the
	// name of the rule and the trees before and after it.
	OnTransform func(ruleName string, before, after rel.Node)
}

// DefaultConfig returns the configuration used by the command line tool and
// the tests.
func DefaultConfig() Config {
	return Config{MaxIterations: opt.DefaultMaxIterations, Coster: xform.DefaultCoster{}}
}

// Planner is the heuristic planner. A Planner can be reused for several runs
// but is not safe for concurrent use.
type Planner struct {
	program Program
	cfg     Config

	ctx        context.Context
	md         *metadata.Query
	ids        opt.CorrelationIDGenerator
	fired      map[string]struct{}
	stats      rule.Stats
	iterations int
	root       rel.Node
}

var _ rule.Host = &Planner{}

// New returns a planner that runs the given program.
func New(program Program, cfg Config) *Planner {
	if cfg.Coster == nil {
		cfg.Coster = xform.DefaultCoster{}
	}
	return &Planner{program: program, cfg: cfg}
}

// errBudgetExhausted stops a run when MaxIterations is reached.
var errBudgetExhausted = errors.New("iteration limit reached")

var budgetWarning = log.Every(10 * time.Second)

// Optimize applies the program to root and returns the resulting tree, which
// has the row type of root, field names included.
func (p *Planner) Optimize(ctx context.Context, root rel.Node) (_ rel.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
	}()
	start := time.Now()
	defer func() { p.cfg.Metrics.RecordDuration("hep", time.Since(start)) }()

	p.ctx = logtags.AddTag(ctx, "hep", nil)
	p.md = metadata.NewQuery()
	p.ids = opt.CorrelationIDGenerator{}
	for _, id := range rel.CorrelationIDs(root) {
		p.ids.Reserve(id)
	}
	p.fired = make(map[string]struct{})
	p.stats = rule.Stats{}
	p.iterations = 0
	p.root = root

	for _, phase := range p.program {
		if err := p.runPhase(phase); err != nil {
			if !errors.Is(err, errBudgetExhausted) {
				return nil, err
			}
			if budgetWarning.ShouldLog() {
				log.Warningf(p.ctx, "stopped in phase %s: %v (%d)", phase.Name, err, p.cfg.MaxIterations)
			}
			break
		}
	}
	log.VEventf(p.ctx, 1, "done after %d iterations", p.iterations)
	return rel.Rename(p.root, root.RowType().FieldNames())
}

// Stats returns the rule statistics of the last run.
func (p *Planner) Stats() *rule.Stats {
	return &p.stats
}

// Iterations returns the number of rule firings of the last run.
func (p *Planner) Iterations() int {
	return p.iterations
}

func (p *Planner) runPhase(phase Phase) error {
	ctx := logtags.AddTag(p.ctx, "phase", phase.Name)
	transforms := 0
	for {
		if err := p.ctx.Err(); err != nil {
			return errors.Wrap(err, "planning interrupted")
		}
		if phase.MatchLimit > 0 && transforms >= phase.MatchLimit {
			log.VEventf(ctx, 1, "match limit %d reached", phase.MatchLimit)
			return nil
		}
		applied, err := p.applyOnce(ctx, phase)
		if err != nil || !applied {
			return err
		}
		transforms++
	}
}

// applyOnce fires the rules of the phase on the expressions of the tree, in
// the order of the phase, until one transforms the tree. It returns false
// if none did.
func (p *Planner) applyOnce(ctx context.Context, phase Phase) (bool, error) {
	for _, n := range p.order(phase.Order) {
		for _, r := range phase.Rules.ForOperator(n.Op()) {
			for _, binding := range rule.Bind(r.Operand(), n, rule.Identity) {
				res, err := p.fire(ctx, r, binding)
				if err != nil {
					return false, err
				}
				if res == nil {
					continue
				}
				before := p.root
				p.root = replaceAll(p.root, n, rel.Digest(n), res)
				if p.cfg.OnTransform != nil {
					p.cfg.OnTransform(r.Name(), before, p.root)
				}
				return true, nil
			}
		}
	}
	return false, nil
}

// order returns the expressions of the tree in match order.
func (p *Planner) order(o MatchOrder) []rel.Node {
	var res []rel.Node
	var pending deque.Deque[rel.Node]
	pending.PushBack(p.root)
	for pending.Len() > 0 {
		n := pending.PopFront()
		res = append(res, n)
		for i := 0; i < n.InputCount(); i++ {
			pending.PushBack(n.Input(i))
		}
	}
	if o == BottomUp {
		for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
			res[i], res[j] = res[j], res[i]
		}
	}
	return res
}

// fire runs a rule on a binding unless it was fired on an identical binding
// before, and returns the chosen result, if any.
func (p *Planner) fire(ctx context.Context, r rule.Rule, binding []rel.Node) (rel.Node, error) {
	var key strings.Builder
	key.WriteString(r.Name())
	for _, n := range binding {
		key.WriteString(" ")
		key.WriteString(rel.Digest(n))
	}
	k := key.String()
	if _, ok := p.fired[k]; ok {
		return nil, nil
	}
	if p.cfg.MaxIterations > 0 && p.iterations >= p.cfg.MaxIterations {
		return nil, errBudgetExhausted
	}
	p.fired[k] = struct{}{}
	p.iterations++

	call := rule.NewCall(ctx, r, binding, p.md, p)
	fired, err := rule.Fire(call)
	if err != nil || !fired {
		return nil, err
	}
	results := call.Results()
	p.stats.RecordAttempt(r.Name())
	p.stats.RecordTransforms(r.Name(), len(results))
	p.cfg.Metrics.RecordAttempt(r.Name())
	p.cfg.Metrics.RecordTransforms(r.Name(), len(results))
	if len(results) == 0 {
		return nil, nil
	}

	best := results[0]
	if len(results) > 1 {
		bestCost := xform.TreeCost(p.cfg.Coster, p.md, best)
		for _, res := range results[1:] {
			if c := xform.TreeCost(p.cfg.Coster, p.md, res); c.Less(bestCost) {
				best, bestCost = res, c
			}
		}
	}
	if log.V(2) {
		log.VEventf(ctx, 2, "%s: %s => %s", r.Name(), rel.Describe(binding[0]), rel.Describe(best))
	}
	return best, nil
}

// replaceAll returns the tree rooted at n with every expression identical to
// target replaced by repl. The ancestors of the replaced expressions are
// rebuilt. Identical subtrees count as a single expression: a rule fires once
// per digest and its result replaces every copy.
func replaceAll(n, target rel.Node, digest string, repl rel.Node) rel.Node {
	if n == target || (n.Op() == target.Op() && rel.Digest(n) == digest) {
		return repl
	}
	inputs := rel.Inputs(n)
	changed := false
	for i, in := range inputs {
		if res := replaceAll(in, target, digest, repl); res != in {
			inputs[i] = res
			changed = true
		}
	}
	if !changed {
		return n
	}
	return n.Copy(n.Traits(), inputs)
}

// Convert is part of the rule.Host interface.
func (p *Planner) Convert(n rel.Node, c props.Convention) rel.Node {
	return rel.Convert(n, c)
}

// Prune is part of the rule.Host interface. A heuristic run keeps no
// alternatives, so there is nothing to prune.
func (p *Planner) Prune(rel.Node) {}

// NewCorrelationID is part of the rule.Host interface.
func (p *Planner) NewCorrelationID() opt.CorrelationID {
	return p.ids.Next()
}

// String formats the program, one phase per line.
func (prog Program) String() string {
	var b strings.Builder
	for _, ph := range prog {
		fmt.Fprintf(&b, "%s (%s", ph.Name, ph.Order)
		if ph.MatchLimit > 0 {
			fmt.Fprintf(&b, ", limit %d", ph.MatchLimit)
		}
		fmt.Fprintf(&b, "): %s\n", strings.Join(ph.Rules.Names(), ", "))
	}
	return b.String()
}
