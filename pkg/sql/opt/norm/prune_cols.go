// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package norm

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/rel"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// TrimmerConfig holds the options of a Trimmer.
type TrimmerConfig struct {
	// NarrowScans lets scans of filterable tables produce only the needed
	// columns. When false, scans keep all their columns and the trimming
	// stops at them.
	NarrowScans bool
}

// DefaultTrimmerConfig returns the options used by NewTrimmer.
func DefaultTrimmerConfig() TrimmerConfig {
	return TrimmerConfig{NarrowScans: true}
}

// Trimmer removes the columns that no consumer needs from a tree. Each
// expression is asked for a set of needed columns; it keeps at least those,
// asks its inputs for the columns it needs in turn, and returns the rebuilt
// expression with the mapping from its old columns to its new ones.
type Trimmer struct {
	cfg TrimmerConfig
}

// NewTrimmer returns a trimmer with the default options.
func NewTrimmer() *Trimmer {
	return NewTrimmerWithConfig(DefaultTrimmerConfig())
}

// NewTrimmerWithConfig returns a trimmer with the given options.
func NewTrimmerWithConfig(cfg TrimmerConfig) *Trimmer {
	return &Trimmer{cfg: cfg}
}

// TrimResult is a trimmed expression together with the mapping from the
// columns of the original expression to its columns. Columns that were
// dropped are not mapped.
type TrimResult struct {
	Node    rel.Node
	Mapping opt.Mapping
}

// Trim returns a tree equivalent to root, with the row type of root, whose
// inner expressions only produce the columns that are used.
func (t *Trimmer) Trim(root rel.Node) (_ rel.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
	}()
	n := root.RowType().FieldCount()
	res := t.trim(root, opt.ColSetRange(0, n))
	out := restore(res, n, root.RowType())
	return rel.Rename(out, root.RowType().FieldNames())
}

// TrimFields trims n for a consumer that only needs the given columns. The
// result has exactly the needed columns, in order, or column 0 alone if
// needed is empty; the mapping tells where each needed column went.
func (t *Trimmer) TrimFields(n rel.Node, needed opt.ColSet) (_ TrimResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = opt.CatchOptimizerError(r)
		}
	}()
	count := n.RowType().FieldCount()
	if !needed.Empty() && needed.Max() >= count {
		return TrimResult{}, opt.Validationf("needed columns %s out of range", needed)
	}
	needed = keepOne(needed)
	res := t.trim(n, needed)
	narrowed := exactly(res, needed, n.RowType())
	if narrowed == res.Node {
		return res, nil
	}
	return TrimResult{Node: narrowed, Mapping: opt.MappingFromColSet(count, needed)}, nil
}

// restore returns the node of r with exactly the first n columns of the
// original expression, in order.
func restore(r TrimResult, n int, rowType *types.RowType) rel.Node {
	if r.Mapping.IsIdentity() && r.Node.RowType().FieldCount() == n {
		return r.Node
	}
	exprs := make([]scalar.Expr, n)
	for i := range exprs {
		exprs[i] = scalar.RefTo(r.Node.RowType(), r.Mapping.Target(i))
	}
	return mustNode(rel.NewProject(r.Node, exprs, rowType.FieldNames()))
}

func mustNode[T rel.Node](n T, err error) rel.Node {
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "trimming produced an invalid expression"))
	}
	return n
}

// unchanged returns the result of an expression that keeps all its columns.
func unchanged(n rel.Node) TrimResult {
	return TrimResult{Node: n, Mapping: opt.IdentityMapping(n.RowType().FieldCount())}
}

// keepOne returns needed, or column 0 if needed is empty. An expression
// always produces at least one column.
func keepOne(needed opt.ColSet) opt.ColSet {
	if needed.Empty() {
		return opt.MakeColSet(0)
	}
	return needed
}

// withConvention returns n with the convention of orig.
func withConvention(n rel.Node, orig rel.Node) rel.Node {
	return rel.Convert(n, orig.Traits().Convention)
}

func (t *Trimmer) trim(n rel.Node, needed opt.ColSet) TrimResult {
	switch n := n.(type) {
	case *rel.Scan:
		return t.trimScan(n, needed)
	case *rel.Values:
		return t.trimValues(n, needed)
	case *rel.Filter:
		return t.trimFilter(n, needed)
	case *rel.Project:
		return t.trimProject(n, needed)
	case *rel.Join:
		return t.trimJoin(n, needed)
	case *rel.Correlate:
		return t.trimCorrelate(n, needed)
	case *rel.Aggregate:
		return t.trimAggregate(n, needed)
	case *rel.SetOp:
		return t.trimSetOp(n, needed)
	case *rel.Sort:
		return t.trimSort(n, needed)
	case *rel.Exchange:
		return t.trimExchange(n, needed)
	case *rel.SortExchange:
		return t.trimSortExchange(n, needed)
	}
	return t.trimAll(n)
}

// trimAll trims the inputs of n for all their columns.
func (t *Trimmer) trimAll(n rel.Node) TrimResult {
	res := rel.ReplaceChildren(n, func(in rel.Node) rel.Node {
		count := in.RowType().FieldCount()
		return restore(t.trim(in, opt.ColSetRange(0, count)), count, in.RowType())
	})
	return unchanged(res)
}

func (t *Trimmer) trimScan(s *rel.Scan, needed opt.ColSet) TrimResult {
	count := s.RowType().FieldCount()
	needed = keepOne(needed)
	if !t.cfg.NarrowScans || !s.Table.Filterable() || needed.Len() == count {
		return unchanged(s)
	}
	projects := make([]int, 0, needed.Len())
	needed.ForEach(func(i int) {
		projects = append(projects, s.ProjectedColumn(i))
	})
	res := mustNode(rel.NewFilteredScan(s.Traits(), s.Table, projects, s.Filters))
	return TrimResult{Node: res, Mapping: opt.MappingFromColSet(count, needed)}
}

func (t *Trimmer) trimValues(v *rel.Values, needed opt.ColSet) TrimResult {
	count := v.RowType().FieldCount()
	needed = keepOne(needed)
	if needed.Len() == count {
		return unchanged(v)
	}
	ords := needed.Ordered()
	tuples := make([][]*scalar.Literal, len(v.Tuples))
	for i, tuple := range v.Tuples {
		tuples[i] = make([]*scalar.Literal, len(ords))
		for j, o := range ords {
			tuples[i][j] = tuple[o]
		}
	}
	res := mustNode(rel.NewValues(v.RowType().Project(ords), tuples))
	return TrimResult{Node: withConvention(res, v), Mapping: opt.MappingFromColSet(count, needed)}
}

func (t *Trimmer) trimFilter(f *rel.Filter, needed opt.ColSet) TrimResult {
	in := t.trim(f.In, needed.Union(scalar.InputRefs(f.Condition)))
	if in.Node == f.In {
		return unchanged(f)
	}
	res := mustNode(rel.NewFilter(in.Node, scalar.MustRemap(f.Condition, in.Mapping)))
	return TrimResult{Node: withConvention(res, f), Mapping: in.Mapping}
}

func (t *Trimmer) trimProject(p *rel.Project, needed opt.ColSet) TrimResult {
	count := p.RowType().FieldCount()
	needed = keepOne(needed)
	var kept []scalar.Expr
	var names []string
	needed.ForEach(func(i int) {
		kept = append(kept, p.Exprs[i])
		names = append(names, p.RowType().Field(i).Name)
	})
	in := t.trim(p.In, scalar.InputRefs(kept...))
	if in.Node == p.In && len(kept) == count {
		return unchanged(p)
	}
	exprs := make([]scalar.Expr, len(kept))
	for i, e := range kept {
		exprs[i] = scalar.MustRemap(e, in.Mapping)
	}
	m := opt.MappingFromColSet(count, needed)
	if scalar.IsIdentity(exprs, in.Node.RowType()) && sameNames(in.Node.RowType().FieldNames(), names) {
		return TrimResult{Node: in.Node, Mapping: m}
	}
	res := mustNode(rel.NewProject(in.Node, exprs, names))
	return TrimResult{Node: withConvention(res, p), Mapping: m}
}

func sameNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t *Trimmer) trimJoin(j *rel.Join, needed opt.ColSet) TrimResult {
	if len(j.CorrelationIDs) > 0 {
		// The right input of a batched join refers to left columns by
		// ordinal through its correlation variables.
		return t.trimAll(j)
	}
	leftCount := j.Left.RowType().FieldCount()
	rightCount := j.Right.RowType().FieldCount()
	all := needed.Union(scalar.InputRefs(j.Condition))
	left := t.trim(j.Left, all.Intersection(opt.ColSetRange(0, leftCount)))
	right := t.trim(j.Right, all.Intersection(opt.ColSetRange(leftCount, leftCount+rightCount)).Shift(-leftCount))
	if left.Node == j.Left && right.Node == j.Right {
		return unchanged(j)
	}

	newLeftCount := left.Node.RowType().FieldCount()
	both := opt.NewMapping(leftCount+rightCount, newLeftCount+right.Node.RowType().FieldCount())
	for i := 0; i < leftCount; i++ {
		if tgt := left.Mapping.TargetOpt(i); tgt >= 0 {
			both.Set(i, tgt)
		}
	}
	for i := 0; i < rightCount; i++ {
		if tgt := right.Mapping.TargetOpt(i); tgt >= 0 {
			both.Set(leftCount+i, newLeftCount+tgt)
		}
	}
	cond := scalar.MustRemap(j.Condition, both)
	res := mustNode(rel.NewJoinWithSpec(j.Traits(), left.Node, right.Node, cond, j.Spec()))
	if !j.Type.ProjectsRight() {
		return TrimResult{Node: res, Mapping: left.Mapping}
	}
	return TrimResult{Node: res, Mapping: both}
}

func (t *Trimmer) trimCorrelate(c *rel.Correlate, needed opt.ColSet) TrimResult {
	leftCount := c.Left.RowType().FieldCount()
	rightCount := c.Right.RowType().FieldCount()
	left := t.trim(c.Left, needed.Intersection(opt.ColSetRange(0, leftCount)).Union(c.RequiredColumns))

	right := c.Right
	if left.Node != c.Left {
		right = rewriteCorrelation(c.Right, c.ID, types.MakeRecord(left.Node.RowType()), left.Mapping)
	}
	var rightNeeded opt.ColSet
	if c.Type.ProjectsRight() {
		rightNeeded = needed.Intersection(opt.ColSetRange(leftCount, leftCount+rightCount)).Shift(-leftCount)
	}
	rightRes := t.trim(right, rightNeeded)
	if left.Node == c.Left && rightRes.Node == c.Right {
		return unchanged(c)
	}
	required := left.Mapping.MapColSet(c.RequiredColumns)
	res := mustNode(c.WithRequiredColumns(left.Node, rightRes.Node, required))
	if !c.Type.ProjectsRight() {
		return TrimResult{Node: res, Mapping: left.Mapping}
	}
	newLeftCount := left.Node.RowType().FieldCount()
	both := opt.NewMapping(leftCount+rightCount, newLeftCount+rightRes.Node.RowType().FieldCount())
	for i := 0; i < leftCount; i++ {
		if tgt := left.Mapping.TargetOpt(i); tgt >= 0 {
			both.Set(i, tgt)
		}
	}
	for i := 0; i < rightCount; i++ {
		if tgt := rightRes.Mapping.TargetOpt(i); tgt >= 0 {
			both.Set(leftCount+i, newLeftCount+tgt)
		}
	}
	return TrimResult{Node: res, Mapping: both}
}

// rewriteCorrelation renumbers the field accesses of the correlation
// variable id in the tree rooted at n, after the left input it is bound to
// was trimmed.
func rewriteCorrelation(n rel.Node, id opt.CorrelationID, typ *types.T, m opt.Mapping) rel.Node {
	var replaceExpr scalar.ReplaceFunc
	replaceExpr = func(e scalar.Expr) scalar.Expr {
		if fa, ok := e.(*scalar.FieldAccess); ok {
			if v, ok := fa.Input.(*scalar.CorrelVariable); ok && v.ID == id {
				return &scalar.FieldAccess{
					Input: &scalar.CorrelVariable{ID: id, Typ: typ},
					Field: m.Target(fa.Field),
				}
			}
		}
		return scalar.ReplaceChildren(e, replaceExpr)
	}
	var replace rel.ReplaceFunc
	replace = func(n rel.Node) rel.Node {
		return rel.ReplaceScalars(rel.ReplaceChildren(n, replace), replaceExpr)
	}
	return replace(n)
}

func (t *Trimmer) trimAggregate(a *rel.Aggregate, needed opt.ColSet) TrimResult {
	count := a.RowType().FieldCount()
	groupCount := a.GroupCount()

	var calls []rel.AggregateCall
	var callOrds []int
	for i, call := range a.Calls {
		if needed.Contains(groupCount + i) {
			calls = append(calls, call)
			callOrds = append(callOrds, groupCount+i)
		}
	}
	if groupCount == 0 && len(calls) == 0 && len(a.Calls) > 0 {
		calls, callOrds = a.Calls[:1], []int{0}
	}

	inNeeded := a.GroupSet
	for _, call := range calls {
		inNeeded = inNeeded.Union(opt.MakeColSet(call.Args...))
	}
	in := t.trim(a.In, inNeeded)
	if in.Node == a.In && len(calls) == len(a.Calls) {
		return unchanged(a)
	}

	groupSet := in.Mapping.MapColSet(a.GroupSet)
	var groupSets []opt.ColSet
	if a.GroupSets != nil {
		groupSets = make([]opt.ColSet, len(a.GroupSets))
		for i, gs := range a.GroupSets {
			groupSets[i] = in.Mapping.MapColSet(gs)
		}
	}
	newCalls := make([]rel.AggregateCall, len(calls))
	for i, call := range calls {
		newCalls[i] = call.Remap(in.Mapping)
	}
	res := mustNode(rel.NewAggregate(in.Node, groupSet, groupSets, newCalls))

	m := opt.NewMapping(count, groupCount+len(newCalls))
	for i := 0; i < groupCount; i++ {
		m.Set(i, i)
	}
	for i, ord := range callOrds {
		m.Set(ord, groupCount+i)
	}
	return TrimResult{Node: withConvention(res, a), Mapping: m}
}

func (t *Trimmer) trimSetOp(s *rel.SetOp, needed opt.ColSet) TrimResult {
	count := s.RowType().FieldCount()
	if s.Op() != opt.UnionOp || !s.All {
		// Removing a column changes which rows are duplicates.
		return t.trimAll(s)
	}
	needed = keepOne(needed)
	inputs := make([]rel.Node, len(s.Ins))
	changed := false
	for i, in := range s.Ins {
		inputs[i] = exactly(t.trim(in, needed), needed, in.RowType())
		changed = changed || inputs[i] != in
	}
	if !changed {
		return unchanged(s)
	}
	res := mustNode(rel.NewSetOp(s.Traits(), s.Op(), inputs, s.All))
	renamed := mustNode(rel.Rename(res, s.RowType().Project(needed.Ordered()).FieldNames()))
	return TrimResult{Node: renamed, Mapping: opt.MappingFromColSet(count, needed)}
}

// exactly returns the node of r reduced to the needed columns of the
// original expression, in order.
func exactly(r TrimResult, needed opt.ColSet, rowType *types.RowType) rel.Node {
	ords := needed.Ordered()
	if r.Node.RowType().FieldCount() == len(ords) {
		inOrder := true
		for i, o := range ords {
			inOrder = inOrder && r.Mapping.Target(o) == i
		}
		if inOrder {
			return r.Node
		}
	}
	exprs := make([]scalar.Expr, len(ords))
	for i, o := range ords {
		exprs[i] = scalar.RefTo(r.Node.RowType(), r.Mapping.Target(o))
	}
	return mustNode(rel.NewProject(r.Node, exprs, rowType.Project(ords).FieldNames()))
}

func (t *Trimmer) trimSort(s *rel.Sort, needed opt.ColSet) TrimResult {
	in := t.trim(s.In, needed.Union(s.Collation.ColSet()))
	if in.Node == s.In {
		return unchanged(s)
	}
	res := mustNode(rel.NewLimit(in.Node, s.Collation.Remap(in.Mapping), s.Offset, s.Fetch))
	return TrimResult{Node: withConvention(res, s), Mapping: in.Mapping}
}

func distributionCols(d props.Distribution) opt.ColSet {
	return opt.MakeColSet(d.Keys...)
}

func (t *Trimmer) trimExchange(e *rel.Exchange, needed opt.ColSet) TrimResult {
	in := t.trim(e.In, needed.Union(distributionCols(e.Distribution)))
	if in.Node == e.In {
		return unchanged(e)
	}
	res := mustNode(rel.NewExchange(in.Node, e.Distribution.Remap(in.Mapping)))
	return TrimResult{Node: withConvention(res, e), Mapping: in.Mapping}
}

func (t *Trimmer) trimSortExchange(e *rel.SortExchange, needed opt.ColSet) TrimResult {
	keys := distributionCols(e.Distribution).Union(e.Collation.ColSet())
	in := t.trim(e.In, needed.Union(keys))
	if in.Node == e.In {
		return unchanged(e)
	}
	res := mustNode(rel.NewSortExchange(
		in.Node, e.Distribution.Remap(in.Mapping), e.Collation.Remap(in.Mapping),
	))
	return TrimResult{Node: withConvention(res, e), Mapping: in.Mapping}
}
