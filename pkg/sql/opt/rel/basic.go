// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"fmt"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// checkCondition validates a boolean condition over the given row type.
func checkCondition(cond scalar.Expr, input *types.RowType) error {
	if f := cond.Type().Family; f != types.BoolFamily && f != types.UnknownFamily {
		return opt.Validationf("condition %s is not boolean", cond)
	}
	return scalar.ValidateRefs(cond, input)
}

// Filter returns the input rows for which the condition is true.
type Filter struct {
	base
	In        Node
	Condition scalar.Expr
}

var _ Node = &Filter{}

// NewFilter returns a logical filter.
func NewFilter(input Node, cond scalar.Expr) (*Filter, error) {
	return newFilter(props.Logical(), input, cond)
}

func newFilter(traits props.TraitSet, input Node, cond scalar.Expr) (*Filter, error) {
	if err := checkCondition(cond, input.RowType()); err != nil {
		return nil, err
	}
	traits.Collation = input.Traits().Collation
	traits.Distribution = input.Traits().Distribution
	return &Filter{
		base:      base{traits: traits, rowType: input.RowType()},
		In:        input,
		Condition: cond,
	}, nil
}

// Op is part of the Node interface.
func (f *Filter) Op() opt.Operator { return opt.FilterOp }

// InputCount is part of the Node interface.
func (f *Filter) InputCount() int { return 1 }

// Input is part of the Node interface.
func (f *Filter) Input(i int) Node { return f.In }

// Copy is part of the Node interface.
func (f *Filter) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(f.Op(), inputs, 1)
	return must(newFilter(traits, inputs[0], f.Condition))
}

// WithCondition returns a filter with the same input and a new condition.
func (f *Filter) WithCondition(cond scalar.Expr) (*Filter, error) {
	return newFilter(f.traits, f.In, cond)
}

func (f *Filter) terms(w *termWriter) {
	w.item("condition", f.Condition)
}

// Project computes one expression per output column.
type Project struct {
	base
	In    Node
	Exprs []scalar.Expr
}

var _ Node = &Project{}

// NewProject returns a logical projection. Empty names default to $f<i>;
// duplicate names are made unique.
func NewProject(input Node, exprs []scalar.Expr, names []string) (*Project, error) {
	return newProject(props.Logical(), input, exprs, names)
}

func newProject(
	traits props.TraitSet, input Node, exprs []scalar.Expr, names []string,
) (*Project, error) {
	if names != nil && len(names) != len(exprs) {
		return nil, opt.Validationf("project has %d expressions but %d names", len(exprs), len(names))
	}
	typs := make([]*types.T, len(exprs))
	fixed := make([]string, len(exprs))
	for i, e := range exprs {
		if err := scalar.ValidateRefs(e, input.RowType()); err != nil {
			return nil, err
		}
		typs[i] = e.Type()
		if names != nil && names[i] != "" {
			fixed[i] = names[i]
		} else {
			fixed[i] = fmt.Sprintf("$f%d", i)
		}
	}

	// Plain references carry the ordering and distribution of the input.
	m := opt.NewMapping(input.RowType().FieldCount(), len(exprs))
	for i, e := range exprs {
		if ref, ok := e.(*scalar.InputRef); ok && m.TargetOpt(ref.Index) < 0 {
			m.Set(ref.Index, i)
		}
	}
	traits.Collation = input.Traits().Collation.Remap(m)
	traits.Distribution = input.Traits().Distribution.Remap(m)
	return &Project{
		base:  base{traits: traits, rowType: types.MakeRowType(types.UniquifyNames(fixed), typs)},
		In:    input,
		Exprs: exprs,
	}, nil
}

// NewIdentityProject returns a projection of the input columns with new
// names.
func NewIdentityProject(input Node, names []string) (*Project, error) {
	exprs := make([]scalar.Expr, input.RowType().FieldCount())
	for i := range exprs {
		exprs[i] = scalar.RefTo(input.RowType(), i)
	}
	return NewProject(input, exprs, names)
}

// Rename returns n if its fields have the given names, and otherwise an
// identity projection of n with those names and the convention of n.
func Rename(n Node, names []string) (Node, error) {
	current := n.RowType().FieldNames()
	same := len(current) == len(names)
	for i := 0; same && i < len(names); i++ {
		same = current[i] == names[i]
	}
	if same {
		return n, nil
	}
	exprs := make([]scalar.Expr, n.RowType().FieldCount())
	for i := range exprs {
		exprs[i] = scalar.RefTo(n.RowType(), i)
	}
	p, err := newProject(props.TraitSet{Convention: n.Traits().Convention}, n, exprs, names)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Op is part of the Node interface.
func (p *Project) Op() opt.Operator { return opt.ProjectOp }

// InputCount is part of the Node interface.
func (p *Project) InputCount() int { return 1 }

// Input is part of the Node interface.
func (p *Project) Input(i int) Node { return p.In }

// Copy is part of the Node interface.
func (p *Project) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(p.Op(), inputs, 1)
	return must(newProject(traits, inputs[0], p.Exprs, p.rowType.FieldNames()))
}

// IsIdentity returns true if the projection returns the input columns in
// order, with the same names.
func (p *Project) IsIdentity() bool {
	if !scalar.IsIdentity(p.Exprs, p.In.RowType()) {
		return false
	}
	names := p.In.RowType().FieldNames()
	for i, n := range p.rowType.FieldNames() {
		if n != names[i] {
			return false
		}
	}
	return true
}

func (p *Project) terms(w *termWriter) {
	for i, e := range p.Exprs {
		w.item(p.rowType.Field(i).Name, e)
	}
}

// Sort orders the rows of its input, and optionally skips the first Offset
// rows and returns at most Fetch rows.
type Sort struct {
	base
	In        Node
	Collation props.Collation
	Offset    int64
	// Fetch is the maximum number of rows, or -1 for no limit.
	Fetch int64
}

var _ Node = &Sort{}

// NewSort returns a logical sort without offset or limit.
func NewSort(input Node, collation props.Collation) (*Sort, error) {
	return newSort(props.Logical(), input, collation, 0 /* offset */, -1 /* fetch */)
}

// NewLimit returns a logical sort with an offset and a limit. The collation
// may be empty.
func NewLimit(input Node, collation props.Collation, offset, fetch int64) (*Sort, error) {
	return newSort(props.Logical(), input, collation, offset, fetch)
}

func newSort(
	traits props.TraitSet, input Node, collation props.Collation, offset, fetch int64,
) (*Sort, error) {
	if err := checkOrdinals("sort key", collation.Keys(), input.RowType().FieldCount()); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, opt.Validationf("negative offset %d", offset)
	}
	if fetch < -1 {
		return nil, opt.Validationf("negative fetch %d", fetch)
	}
	traits.Collation = collation
	traits.Distribution = input.Traits().Distribution
	return &Sort{
		base:      base{traits: traits, rowType: input.RowType()},
		In:        input,
		Collation: collation,
		Offset:    offset,
		Fetch:     fetch,
	}, nil
}

// Op is part of the Node interface.
func (s *Sort) Op() opt.Operator { return opt.SortOp }

// InputCount is part of the Node interface.
func (s *Sort) InputCount() int { return 1 }

// Input is part of the Node interface.
func (s *Sort) Input(i int) Node { return s.In }

// Copy is part of the Node interface.
func (s *Sort) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(s.Op(), inputs, 1)
	return must(newSort(traits, inputs[0], s.Collation, s.Offset, s.Fetch))
}

// HasLimit returns true if the sort has an offset or a fetch.
func (s *Sort) HasLimit() bool { return s.Offset > 0 || s.Fetch >= 0 }

func (s *Sort) terms(w *termWriter) {
	for i, c := range s.Collation {
		w.item(fmt.Sprintf("sort%d", i), fmt.Sprintf("$%d", c.Field))
	}
	for i, c := range s.Collation {
		w.item(fmt.Sprintf("dir%d", i), c.Direction)
	}
	w.itemIf("offset", s.Offset, s.Offset > 0)
	w.itemIf("fetch", s.Fetch, s.Fetch >= 0)
}

// Exchange redistributes the rows of its input.
type Exchange struct {
	base
	In           Node
	Distribution props.Distribution
}

var _ Node = &Exchange{}

// NewExchange returns a logical exchange.
func NewExchange(input Node, d props.Distribution) (*Exchange, error) {
	return newExchange(props.Logical(), input, d)
}

func newExchange(traits props.TraitSet, input Node, d props.Distribution) (*Exchange, error) {
	if err := checkOrdinals("distribution key", d.Keys, input.RowType().FieldCount()); err != nil {
		return nil, err
	}
	traits.Collation = nil
	traits.Distribution = d
	return &Exchange{
		base:         base{traits: traits, rowType: input.RowType()},
		In:           input,
		Distribution: d,
	}, nil
}

// Op is part of the Node interface.
func (e *Exchange) Op() opt.Operator { return opt.ExchangeOp }

// InputCount is part of the Node interface.
func (e *Exchange) InputCount() int { return 1 }

// Input is part of the Node interface.
func (e *Exchange) Input(i int) Node { return e.In }

// Copy is part of the Node interface.
func (e *Exchange) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(e.Op(), inputs, 1)
	return must(newExchange(traits, inputs[0], e.Distribution))
}

func (e *Exchange) terms(w *termWriter) {
	w.item("distribution", e.Distribution)
}

// SortExchange redistributes the rows of its input and sorts the rows
// received by each consumer.
type SortExchange struct {
	base
	In           Node
	Distribution props.Distribution
	Collation    props.Collation
}

var _ Node = &SortExchange{}

// NewSortExchange returns a logical sort-exchange.
func NewSortExchange(
	input Node, d props.Distribution, collation props.Collation,
) (*SortExchange, error) {
	return newSortExchange(props.Logical(), input, d, collation)
}

func newSortExchange(
	traits props.TraitSet, input Node, d props.Distribution, collation props.Collation,
) (*SortExchange, error) {
	n := input.RowType().FieldCount()
	if err := checkOrdinals("distribution key", d.Keys, n); err != nil {
		return nil, err
	}
	if err := checkOrdinals("sort key", collation.Keys(), n); err != nil {
		return nil, err
	}
	traits.Collation = collation
	traits.Distribution = d
	return &SortExchange{
		base:         base{traits: traits, rowType: input.RowType()},
		In:           input,
		Distribution: d,
		Collation:    collation,
	}, nil
}

// Op is part of the Node interface.
func (e *SortExchange) Op() opt.Operator { return opt.SortExchangeOp }

// InputCount is part of the Node interface.
func (e *SortExchange) InputCount() int { return 1 }

// Input is part of the Node interface.
func (e *SortExchange) Input(i int) Node { return e.In }

// Copy is part of the Node interface.
func (e *SortExchange) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(e.Op(), inputs, 1)
	return must(newSortExchange(traits, inputs[0], e.Distribution, e.Collation))
}

func (e *SortExchange) terms(w *termWriter) {
	w.item("distribution", e.Distribution)
	w.item("collation", e.Collation)
}
