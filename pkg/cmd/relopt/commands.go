// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/logtags"
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
	"github.com/cockroachdb/relopt/pkg/util/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	plannerHep     = "hep"
	plannerVolcano = "volcano"
)

type cliFlags struct {
	rules         []string
	planner       string
	maxIterations int
	verbosity     int32
	ruleStats     bool
	ddl           string
	convention    string
	collation     string
	costs         bool
	fields        []int
	dot           bool
}

func (f *cliFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.rules, "rules", nil,
		"restrict planning to the named rules; a rule name selects all its variants")
	fs.StringVar(&f.planner, "planner", plannerVolcano,
		"planner used by the opt command: hep or volcano")
	fs.IntVar(&f.maxIterations, "max-iterations", 0,
		"maximum number of rule firings; 0 uses the planner default")
	fs.Int32Var(&f.verbosity, "verbosity", 0, "planner tracing verbosity")
	fs.BoolVar(&f.ruleStats, "rule-stats", false, "print a table of rule firings after planning")
	fs.StringVar(&f.ddl, "ddl", "",
		"file of CREATE TABLE statements, separated by semicolons, added to the sample catalog")
	fs.StringVar(&f.convention, "convention", "enumerable",
		"convention required from the volcano planner")
	fs.StringVar(&f.collation, "collation", "",
		"collation required from the volcano planner, e.g. \"[0, 1 DESC]\"")
	fs.BoolVar(&f.costs, "costs", false, "annotate plans with row counts and costs")
	fs.IntSliceVar(&f.fields, "fields", nil, "output fields kept by the trim command")
	fs.BoolVar(&f.dot, "dot", false, "print the lineage graph in Graphviz format")
}

func (f *cliFlags) validate() error {
	switch f.planner {
	case plannerHep, plannerVolcano:
	default:
		return errors.Newf("unknown planner %q: expected %s or %s", f.planner, plannerHep, plannerVolcano)
	}
	if f.maxIterations < 0 {
		return errors.Newf("--max-iterations must not be negative")
	}
	log.SetVerbosity(f.verbosity)
	return nil
}

func (f *cliFlags) required() (props.TraitSet, error) {
	conv, err := props.ParseConvention(f.convention)
	if err != nil {
		return props.TraitSet{}, err
	}
	coll, err := props.ParseCollation(f.collation)
	if err != nil {
		return props.TraitSet{}, err
	}
	return props.Logical().WithConvention(conv).WithCollation(coll), nil
}

func (f *cliFlags) ruleSet(def *rule.Set) (*rule.Set, error) {
	if len(f.rules) == 0 {
		return def, nil
	}
	return rules.All().Select(f.rules...)
}

// loadCatalog returns the sample catalog extended with the tables of the
// --ddl file.
func (f *cliFlags) loadCatalog() (*testcat.Catalog, error) {
	catalog := testcat.NewWithSampleTables()
	if f.ddl == "" {
		return catalog, nil
	}
	contents, err := os.ReadFile(f.ddl)
	if err != nil {
		return nil, errors.Wrap(err, "reading DDL")
	}
	for _, stmt := range strings.Split(string(contents), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := catalog.ExecuteDDL(stmt); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// buildPlan reads the plan file and builds its tree.
func (f *cliFlags) buildPlan(ctx context.Context, path string) (rel.Node, error) {
	catalog, err := f.loadCatalog()
	if err != nil {
		return nil, err
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading plan")
	}
	root, err := optbuilder.New(ctx, catalog).Build(contents)
	return root, errors.Wrapf(err, "building %s", path)
}

func (f *cliFlags) explain(root rel.Node) string {
	if !f.costs {
		return rel.Explain(root)
	}
	md := metadata.NewQuery()
	coster := xform.DefaultCoster{}
	return rel.ExplainWith(root, rel.ExplainOptions{
		Annotate: func(n rel.Node) string {
			return fmt.Sprintf("rows=%g, cost=%s", md.RowCount(n), xform.TreeCost(coster, md, n))
		},
	})
}

func (f *cliFlags) runHep(ctx context.Context, root rel.Node) (rel.Node, *rule.Stats, error) {
	set, err := f.ruleSet(rules.Heuristic())
	if err != nil {
		return nil, nil, err
	}
	cfg := hep.DefaultConfig()
	if f.maxIterations > 0 {
		cfg.MaxIterations = f.maxIterations
	}
	cfg.OnTransform = func(ruleName string, before, after rel.Node) {
		log.VEventf(ctx, 2, "%s:\n%s=>\n%s", ruleName, rel.Explain(before), rel.Explain(after))
	}
	p := hep.New(hep.NewProgram(set), cfg)
	res, err := p.Optimize(ctx, root)
	return res, p.Stats(), err
}

func (f *cliFlags) runVolcano(
	ctx context.Context, root rel.Node,
) (*xform.Optimizer, rel.Node, error) {
	set, err := f.ruleSet(rules.Default())
	if err != nil {
		return nil, nil, err
	}
	required, err := f.required()
	if err != nil {
		return nil, nil, err
	}
	cfg := xform.DefaultConfig()
	if f.maxIterations > 0 {
		cfg.MaxIterations = f.maxIterations
	}
	o := xform.New(set, cfg)
	res, err := o.Optimize(ctx, root, required)
	return o, res, err
}

func explainCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <plan.yaml>",
		Short: "print the plan tree as built, without planning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := f.buildPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), f.explain(root))
			return nil
		},
	}
}

func optCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "opt <plan.yaml>",
		Short: "plan the tree with the hep or volcano planner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := logtags.AddTag(cmd.Context(), "relopt", nil)
			root, err := f.buildPlan(ctx, args[0])
			if err != nil {
				return err
			}
			var res rel.Node
			var stats *rule.Stats
			if f.planner == plannerHep {
				res, stats, err = f.runHep(ctx, root)
			} else {
				var o *xform.Optimizer
				o, res, err = f.runVolcano(ctx, root)
				if o != nil {
					stats = o.Stats()
					log.VEventf(ctx, 1, "%d rule firings, %d equivalence sets", o.Iterations(), o.SetCount())
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), f.explain(res))
			if f.ruleStats {
				fmt.Fprintln(cmd.OutOrStdout())
				stats.Format(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func memoCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "memo <plan.yaml>",
		Short: "plan the tree with the volcano planner and print its memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := f.buildPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			o, _, err := f.runVolcano(cmd.Context(), root)
			if o == nil {
				return err
			}
			// The memo is printed even if no plan was found, since it shows
			// why.
			fmt.Fprint(cmd.OutOrStdout(), o.FormatMemo())
			return err
		},
	}
}

func trimCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "trim <plan.yaml>",
		Short: "remove the fields that the plan computes but never uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := f.buildPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t := norm.NewTrimmer()
			if f.fields == nil {
				res, err := t.Trim(root)
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), f.explain(res))
				return nil
			}
			res, err := t.TrimFields(root, opt.MakeColSet(f.fields...))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), f.explain(res.Node))
			fmt.Fprintf(cmd.OutOrStdout(), "mapping: %s\n", res.Mapping)
			return nil
		},
	}
}

func lineageCmd(f *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <plan.yaml>",
		Short: "print the table columns that each output column derives from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := f.buildPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			md := metadata.NewQuery()
			if f.dot {
				fmt.Fprint(cmd.OutOrStdout(), md.Lineage(root).Dot(func(v string) string { return v }))
				return nil
			}
			row := root.RowType()
			for i := 0; i < row.FieldCount(); i++ {
				origins := md.ColumnOrigins(root, i)
				strs := make([]string, len(origins))
				for j, o := range origins {
					strs[j] = o.String()
				}
				if len(strs) == 0 {
					strs = append(strs, "none")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", row.Field(i).Name, strings.Join(strs, ", "))
			}
			return nil
		},
	}
}
