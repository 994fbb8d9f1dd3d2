// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package opttester runs the planners on YAML plans for datadriven tests.
package opttester

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/hep"
	"github.com/cockroachdb/relopt/pkg/sql/opt/metadata"
	"github.com/cockroachdb/relopt/pkg/sql/opt/norm"
	"github.com/cockroachdb/relopt/pkg/sql/opt/optbuilder"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rule"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rules"
	"github.com/cockroachdb/relopt/pkg/sql/opt/testutils/testcat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/xform"
	"github.com/pmezard/go-difflib/difflib"
)

// OptTester is a helper for testing the planners. It contains the
// boiler-plate code for the following useful tasks:
//   - Build a plan tree from a YAML plan
//   - Run the heuristic or the cost-based planner on it
//   - Format the memo of the cost-based planner
//   - Create a diff showing the work of the heuristic planner, step by step
//   - Trim unused fields
//   - Report the lineage of the output columns
type OptTester struct {
	Flags Flags

	catalog *testcat.Catalog
	plan    string
	ctx     context.Context

	builder strings.Builder
}

// Flags are control knobs for tests. Note that specific testcases can
// override these defaults.
type Flags struct {
	// Rules restricts the planners to the rules with these names. Names are
	// resolved among all rules; a rule name selects all its variants.
	Rules []string

	// Planner is the planner used by the rule-stats command: hep or volcano.
	Planner string

	// Required are the traits required by the cost-based planner. They
	// default to the Enumerable convention.
	Required props.TraitSet

	// MaxIterations bounds the rule firings of both planners.
	MaxIterations int

	// ExpectedRules are rules that must transform the plan for the test to
	// pass.
	ExpectedRules []string

	// UnexpectedRules are rules that must not transform the plan for the test
	// to pass.
	UnexpectedRules []string

	// Fields are the output fields kept by the trim command. All fields are
	// kept by default.
	Fields []int

	// NoNarrowScans disables scan narrowing in the trim command.
	NoNarrowScans bool

	// Dot makes the lineage command output a Graphviz graph.
	Dot bool

	// Verbose indicates whether verbose test debugging information will be
	// output to stdout when commands run.
	Verbose bool
}

// New constructs an OptTester for the given YAML plan. Tables are resolved
// in the catalog.
func New(catalog *testcat.Catalog, plan string) *OptTester {
	return &OptTester{
		catalog: catalog,
		plan:    plan,
		ctx:     context.Background(),
		Flags:   Flags{Required: props.Enumerable(), Planner: "hep"},
	}
}

// RunCommand implements the following commands:
//
//   - exec-ddl
//
//     Runs a CREATE TABLE or DROP TABLE statement on the test catalog.
//
//   - build
//
//     Builds the plan and outputs it without any transformation.
//
//   - hep [flags]
//
//     Runs the heuristic planner with the heuristic rules.
//
//   - opt [flags]
//
//     Runs the cost-based planner with the default rules and outputs the
//     cheapest plan.
//
//   - memo [flags]
//
//     Runs the cost-based planner and outputs its memo.
//
//   - optsteps [flags]
//
//     Outputs the plan after each step of the heuristic planner, as a
//     unified diff against the previous step.
//
//   - trim [flags]
//
//     Removes the fields that the plan computes but never uses.
//
//   - lineage [flags]
//
//     Outputs the table columns that each output column comes from.
//
//   - rule-stats [flags]
//
//     Runs a planner and outputs how often each rule fired.
//
// Supported flags:
//
//   - rules: the rules to run, e.g. rules=(FilterMerge,ProjectRemove).
//   - planner: the planner of rule-stats, hep or volcano.
//   - convention, collation, distribution: the traits required by opt and
//     memo, e.g. collation=(1,0 DESC) distribution=hash[0].
//   - max-iterations: the rule firing budget.
//   - expect, expect-not: fail the test if the named rules do (not)
//     transform the plan.
//   - fields: the fields kept by trim.
//   - no-narrow: disables scan narrowing in trim.
//   - format=dot: outputs the lineage as a Graphviz graph.
func (ot *OptTester) RunCommand(tb testing.TB, d *datadriven.TestData) string {
	// Allow testcases to override the flags.
	for _, a := range d.CmdArgs {
		if err := ot.Flags.Set(a); err != nil {
			d.Fatalf(tb, "%s", err)
		}
	}
	ot.Flags.Verbose = testing.Verbose()

	switch d.Cmd {
	case "exec-ddl":
		s, err := ot.catalog.ExecuteDDL(d.Input)
		if err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return s

	case "build":
		n, err := ot.Build()
		if err != nil {
			return fmt.Sprintf("error: %s\n", strings.TrimSpace(err.Error()))
		}
		return rel.Explain(n)

	case "hep":
		n, stats, err := ot.Heuristic()
		if err != nil {
			return fmt.Sprintf("error: %s\n", strings.TrimSpace(err.Error()))
		}
		if err := ot.checkRules(stats); err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return rel.Explain(n)

	case "opt":
		n, stats, err := ot.Optimize()
		if err != nil {
			return fmt.Sprintf("error: %s\n", strings.TrimSpace(err.Error()))
		}
		if err := ot.checkRules(stats); err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return rel.Explain(n)

	case "memo":
		result, err := ot.Memo()
		if err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return result

	case "optsteps":
		result, err := ot.OptSteps()
		if err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return result

	case "trim":
		n, err := ot.Trim()
		if err != nil {
			return fmt.Sprintf("error: %s\n", strings.TrimSpace(err.Error()))
		}
		return rel.Explain(n)

	case "lineage":
		result, err := ot.Lineage()
		if err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return result

	case "rule-stats":
		result, err := ot.RuleStats()
		if err != nil {
			d.Fatalf(tb, "%v", err)
		}
		return result

	default:
		d.Fatalf(tb, "unsupported command: %s", d.Cmd)
		return ""
	}
}

// Set parses an argument that refers to a flag.
// See OptTester.RunCommand for supported flags.
func (f *Flags) Set(arg datadriven.CmdArg) error {
	switch arg.Key {
	case "rules":
		if len(arg.Vals) == 0 {
			return errors.New("rules requires arguments")
		}
		f.Rules = arg.Vals

	case "planner":
		if len(arg.Vals) != 1 || (arg.Vals[0] != "hep" && arg.Vals[0] != "volcano") {
			return errors.New("planner must be hep or volcano")
		}
		f.Planner = arg.Vals[0]

	case "convention":
		if len(arg.Vals) != 1 {
			return errors.New("convention requires one argument")
		}
		c, err := props.ParseConvention(arg.Vals[0])
		if err != nil {
			return err
		}
		f.Required.Convention = c

	case "collation":
		c, err := props.ParseCollation(strings.Join(arg.Vals, ","))
		if err != nil {
			return err
		}
		f.Required.Collation = c

	case "distribution":
		if len(arg.Vals) == 0 {
			return errors.New("distribution requires an argument")
		}
		d, err := props.ParseDistribution(strings.Join(arg.Vals, ","))
		if err != nil {
			return err
		}
		f.Required.Distribution = d

	case "max-iterations":
		if len(arg.Vals) != 1 {
			return errors.New("max-iterations requires one argument")
		}
		n, err := strconv.Atoi(arg.Vals[0])
		if err != nil {
			return err
		}
		f.MaxIterations = n

	case "expect":
		f.ExpectedRules = arg.Vals

	case "expect-not":
		f.UnexpectedRules = arg.Vals

	case "fields":
		f.Fields = nil
		for _, v := range arg.Vals {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Newf("invalid field %q", v)
			}
			f.Fields = append(f.Fields, n)
		}

	case "no-narrow":
		f.NoNarrowScans = true

	case "format":
		if len(arg.Vals) != 1 || arg.Vals[0] != "dot" {
			return errors.New("the only format is dot")
		}
		f.Dot = true

	default:
		return errors.Newf("unknown argument: %s", arg.Key)
	}
	return nil
}

// Build builds the plan tree, with no transformation applied to it.
func (ot *OptTester) Build() (rel.Node, error) {
	return optbuilder.New(ot.ctx, ot.catalog).Build([]byte(ot.plan))
}

// ruleSet returns the rules named by the flags, or def if there are none.
func (ot *OptTester) ruleSet(def *rule.Set) (*rule.Set, error) {
	if len(ot.Flags.Rules) == 0 {
		return def, nil
	}
	return rules.All().Select(ot.Flags.Rules...)
}

func (ot *OptTester) makeHeuristic(onTransform func(string, rel.Node, rel.Node)) (*hep.Planner, error) {
	set, err := ot.ruleSet(rules.Heuristic())
	if err != nil {
		return nil, err
	}
	cfg := hep.DefaultConfig()
	if ot.Flags.MaxIterations > 0 {
		cfg.MaxIterations = ot.Flags.MaxIterations
	}
	cfg.OnTransform = onTransform
	return hep.New(hep.NewProgram(set), cfg), nil
}

func (ot *OptTester) makeOptimizer() (*xform.Optimizer, error) {
	set, err := ot.ruleSet(rules.Default())
	if err != nil {
		return nil, err
	}
	cfg := xform.DefaultConfig()
	if ot.Flags.MaxIterations > 0 {
		cfg.MaxIterations = ot.Flags.MaxIterations
	}
	return xform.New(set, cfg), nil
}

// Heuristic runs the heuristic planner on the plan.
func (ot *OptTester) Heuristic() (rel.Node, *rule.Stats, error) {
	root, err := ot.Build()
	if err != nil {
		return nil, nil, err
	}
	p, err := ot.makeHeuristic(nil)
	if err != nil {
		return nil, nil, err
	}
	n, err := p.Optimize(ot.ctx, root)
	return n, p.Stats(), err
}

// Optimize runs the cost-based planner on the plan. The result is the
// cheapest plan that provides the required traits.
func (ot *OptTester) Optimize() (rel.Node, *rule.Stats, error) {
	root, err := ot.Build()
	if err != nil {
		return nil, nil, err
	}
	o, err := ot.makeOptimizer()
	if err != nil {
		return nil, nil, err
	}
	n, err := o.Optimize(ot.ctx, root, ot.Flags.Required)
	return n, o.Stats(), err
}

// Memo returns a string that shows the memo built by the cost-based planner.
func (ot *OptTester) Memo() (string, error) {
	root, err := ot.Build()
	if err != nil {
		return "", err
	}
	o, err := ot.makeOptimizer()
	if err != nil {
		return "", err
	}
	if _, err := o.Optimize(ot.ctx, root, ot.Flags.Required); err != nil {
		return "", err
	}
	return o.FormatMemo(), nil
}

// Trim removes the unused fields of the plan, or keeps only the fields given
// by the flags.
func (ot *OptTester) Trim() (rel.Node, error) {
	root, err := ot.Build()
	if err != nil {
		return nil, err
	}
	cfg := norm.DefaultTrimmerConfig()
	cfg.NarrowScans = !ot.Flags.NoNarrowScans
	t := norm.NewTrimmerWithConfig(cfg)
	if ot.Flags.Fields == nil {
		return t.Trim(root)
	}
	res, err := t.TrimFields(root, opt.MakeColSet(ot.Flags.Fields...))
	if err != nil {
		return nil, err
	}
	return res.Node, nil
}

// Lineage returns the table columns of each output column of the plan, one
// output column per line.
func (ot *OptTester) Lineage() (string, error) {
	root, err := ot.Build()
	if err != nil {
		return "", err
	}
	md := metadata.NewQuery()
	if ot.Flags.Dot {
		return md.Lineage(root).Dot(func(v string) string { return v }), nil
	}
	ot.builder.Reset()
	row := root.RowType()
	for i := 0; i < row.FieldCount(); i++ {
		origins := md.ColumnOrigins(root, i)
		if len(origins) == 0 {
			ot.output("%s: none\n", row.Field(i).Name)
			continue
		}
		strs := make([]string, len(origins))
		for j, o := range origins {
			strs[j] = o.String()
		}
		ot.output("%s: %s\n", row.Field(i).Name, strings.Join(strs, ", "))
	}
	return ot.builder.String(), nil
}

// RuleStats runs the planner given by the flags and returns a table of the
// rule firings.
func (ot *OptTester) RuleStats() (string, error) {
	var stats *rule.Stats
	var err error
	if ot.Flags.Planner == "volcano" {
		_, stats, err = ot.Optimize()
	} else {
		_, stats, err = ot.Heuristic()
	}
	if err != nil {
		return "", err
	}
	return stats.String(), nil
}

// checkRules verifies the expect and expect-not flags against the rules
// that transformed the plan.
func (ot *OptTester) checkRules(stats *rule.Stats) error {
	for _, r := range ot.Flags.ExpectedRules {
		if stats.Transforms(r) == 0 {
			return errors.Newf("expected to see %s, but was not triggered", r)
		}
	}
	for _, r := range ot.Flags.UnexpectedRules {
		if stats.Transforms(r) > 0 {
			return errors.Newf("expected not to see %s, but it was triggered", r)
		}
	}
	return nil
}

// step is a transformation of the heuristic planner.
type step struct {
	rule  string
	after string
}

// OptSteps steps through the transformations performed by the heuristic
// planner, one by one. The output of each step is the whole tree after the
// transformation, diff'd against the tree before it in the standard unified
// diff format.
//
// For example, a filter over a projection of emp gives:
//
//	Initial expression
//	FilterProjectTranspose
//	Final best expression
//
// as headers, with the diff of the transposition under the second one.
func (ot *OptTester) OptSteps() (string, error) {
	root, err := ot.Build()
	if err != nil {
		return "", err
	}
	var steps []step
	p, err := ot.makeHeuristic(func(ruleName string, _, after rel.Node) {
		steps = append(steps, step{rule: ruleName, after: rel.Explain(after)})
	})
	if err != nil {
		return "", err
	}
	final, err := p.Optimize(ot.ctx, root)
	if err != nil {
		return "", err
	}

	ot.builder.Reset()
	prev := rel.Explain(root)
	ot.header("Initial expression")
	ot.indent(prev)
	for _, s := range steps {
		ot.header(s.rule)
		ot.diff(prev, s.after)
		prev = s.after
	}
	ot.header("Final best expression")
	ot.indent(rel.Explain(final))
	return ot.builder.String(), nil
}

func (ot *OptTester) header(title string) {
	ot.separator("=")
	ot.output("%s\n", title)
	ot.separator("=")
}

func (ot *OptTester) diff(before, after string) {
	if before == after {
		ot.output("  (no changes)\n")
		return
	}
	diff := difflib.UnifiedDiff{
		A:       difflib.SplitLines(before),
		B:       difflib.SplitLines(after),
		Context: 100,
	}
	text, _ := difflib.GetUnifiedDiffString(diff)
	// Skip the "@@ ... @@" header (first line).
	text = strings.SplitN(text, "\n", 2)[1]
	ot.indent(text)
}

func (ot *OptTester) output(format string, args ...interface{}) {
	fmt.Fprintf(&ot.builder, format, args...)
	if ot.Flags.Verbose {
		fmt.Printf(format, args...)
	}
}

func (ot *OptTester) separator(sep string) {
	ot.output("%s\n", strings.Repeat(sep, 80))
}

func (ot *OptTester) indent(str string) {
	str = strings.TrimRight(str, " \n\t\r")
	lines := strings.Split(str, "\n")
	for _, line := range lines {
		ot.output("  %s\n", line)
	}
}
