// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package optbuilder builds relational expression trees from YAML plan
// files. Every plan node is a mapping with a single key naming the
// operator:
//
//	project:
//	  exprs: [$0, "+($2, 1)"]
//	  names: [empno, next]
//	  input:
//	    filter:
//	      condition: "=($2, 10)"
//	      input:
//	        scan: sales.emp
//
// Scalar expressions are written in digest form, as printed in plan text.
// YAML gives a special meaning to some leading characters, such as > and *,
// so expressions are best quoted. Values tuples are written as in plan text
// too:
//
//	values:
//	  columns: [a INT NOT NULL, b VARCHAR]
//	  tuples: ["{ 1, 'x' }", "{ 2, null:VARCHAR }"]
package optbuilder

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
	"gopkg.in/yaml.v3"
)

// Builder holds the context needed for building a relational expression tree
// from a plan file.
type Builder struct {
	ctx     context.Context
	catalog cat.Catalog
}

// New creates a new Builder that resolves tables in the given catalog.
func New(ctx context.Context, catalog cat.Catalog) *Builder {
	return &Builder{ctx: ctx, catalog: catalog}
}

// builderError is used to wrap errors returned by various external APIs that
// occur during the build process. It exists for us to be able to panic on
// these errors and then catch them inside Builder.Build.
type builderError struct {
	error
}

// catchBuildError converts the value recovered from a panic during the build
// into an error.
func catchBuildError(r interface{}) error {
	if bErr, ok := r.(builderError); ok {
		return bErr.error
	}
	return opt.CatchOptimizerError(r)
}

// Build parses a YAML plan and builds the relational expression tree it
// describes. Validation errors of the expressions are returned as they are,
// so that callers can test them with errors.Is(err, opt.ErrValidation).
func (b *Builder) Build(src []byte) (_ rel.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = catchBuildError(r)
		}
	}()

	var doc yaml.Node
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return nil, errors.Wrap(err, "parsing plan")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 {
		return nil, errors.New("plan must be a single YAML document")
	}
	return b.buildNode(doc.Content[0], &scope{}), nil
}

// fields are the keys of a plan node, with their values.
type fields struct {
	op     string
	node   *yaml.Node
	values map[string]*yaml.Node
	used   map[string]struct{}
}

func (b *Builder) errorf(n *yaml.Node, format string, args ...interface{}) {
	err := errors.Newf(format, args...)
	panic(builderError{errors.Wrapf(err, "line %d", n.Line)})
}

// check panics with err, annotated with the location of n.
func (b *Builder) check(n *yaml.Node, err error) {
	if err != nil {
		panic(builderError{errors.Wrapf(err, "line %d", n.Line)})
	}
}

func (b *Builder) fieldsOf(n *yaml.Node) *fields {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		b.errorf(n, "expected a mapping with a single operator key")
	}
	f := &fields{op: n.Content[0].Value, node: n.Content[1], used: make(map[string]struct{})}
	body := n.Content[1]
	if body.Kind == yaml.MappingNode {
		f.values = make(map[string]*yaml.Node, len(body.Content)/2)
		for i := 0; i < len(body.Content); i += 2 {
			f.values[body.Content[i].Value] = body.Content[i+1]
		}
	}
	return f
}

func (f *fields) get(key string) *yaml.Node {
	f.used[key] = struct{}{}
	return f.values[key]
}

func (b *Builder) required(f *fields, key string) *yaml.Node {
	v := f.get(key)
	if v == nil {
		b.errorf(f.node, "%s requires %s", f.op, key)
	}
	return v
}

// checkUnused reports keys that the operator does not take.
func (b *Builder) checkUnused(f *fields) {
	body := f.node
	if body.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i < len(body.Content); i += 2 {
		key := body.Content[i]
		if _, ok := f.used[key.Value]; !ok {
			b.errorf(key, "unknown field %s of %s", key.Value, f.op)
		}
	}
}

func (b *Builder) buildNode(n *yaml.Node, sc *scope) rel.Node {
	f := b.fieldsOf(n)
	var res rel.Node
	switch f.op {
	case "scan":
		res = b.buildScan(f)
	case "values":
		res = b.buildValues(f)
	case "filter":
		res = b.buildFilter(f, sc)
	case "project":
		res = b.buildProject(f, sc)
	case "join":
		res = b.buildJoin(f, sc)
	case "correlate":
		res = b.buildCorrelate(f, sc)
	case "aggregate":
		res = b.buildAggregate(f, sc)
	case "union", "intersect", "minus":
		res = b.buildSetOp(f, sc)
	case "sort":
		res = b.buildSort(f, sc)
	case "exchange":
		res = b.buildExchange(f, sc)
	case "sort_exchange":
		res = b.buildSortExchange(f, sc)
	default:
		b.errorf(n, "unknown operator %s", f.op)
	}
	b.checkUnused(f)
	return res
}

func (b *Builder) buildInput(f *fields, key string, sc *scope) rel.Node {
	return b.buildNode(b.required(f, key), sc)
}

func (b *Builder) resolveTable(n *yaml.Node) cat.Table {
	tab, err := b.catalog.ResolveTable(b.ctx, cat.DataSourceName(strings.Split(n.Value, ".")))
	b.check(n, err)
	return tab
}

func (b *Builder) buildScan(f *fields) rel.Node {
	if f.node.Kind == yaml.ScalarNode {
		return rel.NewScan(b.resolveTable(f.node))
	}
	tab := b.resolveTable(b.required(f, "table"))
	var projects []int
	if p := f.get("projects"); p != nil {
		projects = b.ints(p)
	}
	var filters []scalar.Expr
	if p := f.get("filters"); p != nil {
		tableScope := &scope{input: cat.RowType(tab)}
		for _, s := range b.strings(p) {
			filters = append(filters, b.scalar(p, s, tableScope))
		}
	}
	s, err := rel.NewFilteredScan(props.Logical(), tab, projects, filters)
	b.check(f.node, err)
	return s
}

func (b *Builder) buildValues(f *fields) rel.Node {
	colsNode := b.required(f, "columns")
	var names []string
	var typs []*types.T
	for _, c := range b.strings(colsNode) {
		name, typName, ok := strings.Cut(strings.TrimSpace(c), " ")
		if !ok {
			b.errorf(colsNode, "column %q must have a name and a type", c)
		}
		typ, err := types.ParseType(typName)
		b.check(colsNode, err)
		names = append(names, name)
		typs = append(typs, typ)
	}
	rowType := types.MakeRowType(names, typs)
	var tuples [][]*scalar.Literal
	if t := f.get("tuples"); t != nil {
		for _, s := range b.strings(t) {
			tuples = append(tuples, b.tuple(t, s))
		}
	}
	v, err := rel.NewValues(rowType, tuples)
	b.check(f.node, err)
	return v
}

func (b *Builder) buildFilter(f *fields, sc *scope) rel.Node {
	input := b.buildInput(f, "input", sc)
	cond := b.required(f, "condition")
	res, err := rel.NewFilter(input, b.scalar(cond, cond.Value, sc.push(input.RowType())))
	b.check(f.node, err)
	return res
}

func (b *Builder) buildProject(f *fields, sc *scope) rel.Node {
	input := b.buildInput(f, "input", sc)
	exprsNode := b.required(f, "exprs")
	inScope := sc.push(input.RowType())
	var exprs []scalar.Expr
	for _, s := range b.strings(exprsNode) {
		exprs = append(exprs, b.scalar(exprsNode, s, inScope))
	}
	var names []string
	if n := f.get("names"); n != nil {
		names = b.strings(n)
	} else {
		// References keep the name of the referenced column.
		names = make([]string, len(exprs))
		for i, e := range exprs {
			if ref, ok := e.(*scalar.InputRef); ok {
				names[i] = input.RowType().Field(ref.Index).Name
			}
		}
	}
	res, err := rel.NewProject(input, exprs, names)
	b.check(f.node, err)
	return res
}

func (b *Builder) joinType(f *fields) rel.JoinType {
	n := f.get("type")
	if n == nil {
		return rel.InnerJoin
	}
	t, err := rel.ParseJoinType(n.Value)
	b.check(n, err)
	return t
}

func (b *Builder) buildJoin(f *fields, sc *scope) rel.Node {
	left := b.buildInput(f, "left", sc)
	right := b.buildInput(f, "right", sc)
	joinType := b.joinType(f)
	cond := scalar.Expr(scalar.True)
	if c := f.get("condition"); c != nil {
		both := append(append([]types.Field(nil), left.RowType().Fields...), right.RowType().Fields...)
		cond = b.scalar(c, c.Value, sc.push(&types.RowType{Fields: both}))
	}
	res, err := rel.NewJoin(left, right, cond, joinType)
	b.check(f.node, err)
	return res
}

func (b *Builder) buildCorrelate(f *fields, sc *scope) rel.Node {
	idNode := b.required(f, "id")
	id, err := strconv.Atoi(idNode.Value)
	if err != nil || id < 0 {
		b.errorf(idNode, "invalid correlation id %q", idNode.Value)
	}
	left := b.buildInput(f, "left", sc)
	right := b.buildInput(f, "right", sc.bind(opt.CorrelationID(id), left.RowType()))
	var required opt.ColSet
	if r := f.get("required"); r != nil {
		required = opt.MakeColSet(b.ints(r)...)
	} else {
		// Default to the fields accessed through the correlation variable.
		required = correlationFields(right, opt.CorrelationID(id))
	}
	res, err := rel.NewCorrelate(left, right, opt.CorrelationID(id), required, b.joinType(f))
	b.check(f.node, err)
	return res
}

// correlationFields returns the ordinals of the fields of id accessed in the
// tree rooted at n.
func correlationFields(n rel.Node, id opt.CorrelationID) opt.ColSet {
	var res opt.ColSet
	rel.Walk(n, func(n rel.Node) bool {
		for _, e := range rel.Scalars(n) {
			scalar.Walk(e, func(e scalar.Expr) bool {
				if fa, ok := e.(*scalar.FieldAccess); ok {
					if v, ok := fa.Input.(*scalar.CorrelVariable); ok && v.ID == id {
						res.Add(fa.Field)
					}
				}
				return true
			})
		}
		return true
	})
	return res
}

func (b *Builder) buildAggregate(f *fields, sc *scope) rel.Node {
	input := b.buildInput(f, "input", sc)
	var groupSet opt.ColSet
	if g := f.get("group"); g != nil {
		groupSet = opt.MakeColSet(b.ints(g)...)
	}
	var groupSets []opt.ColSet
	hasEmptyGroup := groupSet.Empty()
	if g := f.get("groups"); g != nil {
		if g.Kind != yaml.SequenceNode {
			b.errorf(g, "groups must be a list of lists")
		}
		for _, set := range g.Content {
			gs := opt.MakeColSet(b.ints(set)...)
			hasEmptyGroup = hasEmptyGroup || gs.Empty()
			groupSets = append(groupSets, gs)
		}
	}
	var calls []rel.AggregateCall
	if c := f.get("calls"); c != nil {
		for _, s := range b.strings(c) {
			calls = append(calls, b.aggregateCall(c, s, input.RowType(), hasEmptyGroup))
		}
	}
	res, err := rel.NewAggregate(input, groupSet, groupSets, calls)
	b.check(f.node, err)
	return res
}

// aggregateCall parses calls such as SUM(DISTINCT $1) AS total.
func (b *Builder) aggregateCall(
	n *yaml.Node, s string, input *types.RowType, hasEmptyGroup bool,
) rel.AggregateCall {
	call, name := s, ""
	if i := strings.LastIndex(strings.ToUpper(s), " AS "); i >= 0 {
		call, name = s[:i], strings.TrimSpace(s[i+len(" AS "):])
	}
	call = strings.TrimSpace(call)
	open := strings.IndexByte(call, '(')
	if open < 0 || !strings.HasSuffix(call, ")") {
		b.errorf(n, "invalid aggregate call %q", s)
	}
	fn, ok := opt.ParseAggregate(strings.TrimSpace(call[:open]))
	if !ok {
		b.errorf(n, "unknown aggregate function %q", call[:open])
	}
	argList := strings.TrimSpace(call[open+1 : len(call)-1])
	distinct := false
	if rest, ok := cutPrefixFold(argList, "DISTINCT "); ok {
		distinct = true
		argList = strings.TrimSpace(rest)
	}
	var args []int
	if argList != "" {
		for _, a := range strings.Split(argList, ",") {
			ord, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(a), "$"))
			if err != nil {
				b.errorf(n, "invalid aggregate argument %q", a)
			}
			args = append(args, ord)
		}
	}
	res, err := rel.NewAggregateCall(fn, distinct, args, name, input, hasEmptyGroup)
	b.check(n, err)
	return res
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

func (b *Builder) buildSetOp(f *fields, sc *scope) rel.Node {
	insNode := b.required(f, "inputs")
	if insNode.Kind != yaml.SequenceNode {
		b.errorf(insNode, "inputs must be a list")
	}
	var inputs []rel.Node
	for _, in := range insNode.Content {
		inputs = append(inputs, b.buildNode(in, sc))
	}
	all := false
	if a := f.get("all"); a != nil {
		var err error
		all, err = strconv.ParseBool(a.Value)
		b.check(a, err)
	}
	var op opt.Operator
	switch f.op {
	case "union":
		op = opt.UnionOp
	case "intersect":
		op = opt.IntersectOp
	default:
		op = opt.MinusOp
	}
	res, err := rel.NewSetOp(props.Logical(), op, inputs, all)
	b.check(f.node, err)
	return res
}

func (b *Builder) buildSort(f *fields, sc *scope) rel.Node {
	input := b.buildInput(f, "input", sc)
	var c props.Collation
	if n := f.get("collation"); n != nil {
		c = b.collation(n)
	}
	offset, fetch := int64(0), int64(-1)
	if n := f.get("offset"); n != nil {
		offset = b.int64(n)
	}
	if n := f.get("fetch"); n != nil {
		fetch = b.int64(n)
	}
	res, err := rel.NewLimit(input, c, offset, fetch)
	b.check(f.node, err)
	return res
}

func (b *Builder) buildExchange(f *fields, sc *scope) rel.Node {
	input := b.buildInput(f, "input", sc)
	res, err := rel.NewExchange(input, b.distribution(b.required(f, "distribution")))
	b.check(f.node, err)
	return res
}

func (b *Builder) buildSortExchange(f *fields, sc *scope) rel.Node {
	input := b.buildInput(f, "input", sc)
	d := b.distribution(b.required(f, "distribution"))
	c := b.collation(b.required(f, "collation"))
	res, err := rel.NewSortExchange(input, d, c)
	b.check(f.node, err)
	return res
}

func (b *Builder) collation(n *yaml.Node) props.Collation {
	s := n.Value
	if n.Kind == yaml.SequenceNode {
		s = strings.Join(b.strings(n), ", ")
	}
	c, err := props.ParseCollation(s)
	b.check(n, err)
	return c
}

func (b *Builder) distribution(n *yaml.Node) props.Distribution {
	d, err := props.ParseDistribution(n.Value)
	b.check(n, err)
	return d
}

func (b *Builder) scalar(n *yaml.Node, s string, sc *scope) scalar.Expr {
	defer func() {
		if r := recover(); r != nil {
			if bErr, ok := r.(builderError); ok {
				panic(builderError{errors.Wrapf(bErr.error, "line %d", n.Line)})
			}
			panic(r)
		}
	}()
	return parseScalar(s, sc)
}

// tuple parses a row of literals written as in plan text: { 1, 'x' }.
func (b *Builder) tuple(n *yaml.Node, s string) []*scalar.Literal {
	defer func() {
		if r := recover(); r != nil {
			if bErr, ok := r.(builderError); ok {
				panic(builderError{errors.Wrapf(bErr.error, "line %d", n.Line)})
			}
			panic(r)
		}
	}()
	return parseTuple(s)
}

func (b *Builder) strings(n *yaml.Node) []string {
	if n.Kind != yaml.SequenceNode {
		b.errorf(n, "expected a list")
	}
	res := make([]string, len(n.Content))
	for i, c := range n.Content {
		if c.Kind != yaml.ScalarNode {
			b.errorf(c, "expected a scalar")
		}
		res[i] = c.Value
	}
	return res
}

func (b *Builder) int64(n *yaml.Node) int64 {
	v, err := strconv.ParseInt(n.Value, 10, 64)
	if err != nil || v < 0 {
		b.errorf(n, "expected a non-negative integer, found %q", n.Value)
	}
	return v
}

func (b *Builder) ints(n *yaml.Node) []int {
	strs := b.strings(n)
	res := make([]int, len(strs))
	for i, s := range strs {
		v, err := strconv.Atoi(strings.TrimPrefix(s, "$"))
		if err != nil {
			b.errorf(n, "invalid ordinal %q", s)
		}
		res[i] = v
	}
	return res
}
