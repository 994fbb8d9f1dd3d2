// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/cat"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// Scan reads the rows of a catalog table.
type Scan struct {
	base
	Table cat.Table
	// Projects are the table column ordinals produced by the scan, or nil
	// for all columns.
	Projects []int
	// Filters are conjunctions evaluated by the table itself. They reference
	// table columns by ordinal, regardless of Projects.
	Filters []scalar.Expr
}

var _ Node = &Scan{}

// NewScan returns a scan of all columns of the table.
func NewScan(table cat.Table) *Scan {
	s, err := NewFilteredScan(props.Logical(), table, nil /* projects */, nil /* filters */)
	if err != nil {
		// A scan of all columns without filters is always valid.
		panic(err)
	}
	return s
}

// NewFilteredScan returns a scan that produces the given table columns of the
// rows that pass the filters. Filters and projections other than the
// trivial ones require a filterable table.
func NewFilteredScan(
	traits props.TraitSet, table cat.Table, projects []int, filters []scalar.Expr,
) (*Scan, error) {
	tableType := cat.RowType(table)
	if (projects != nil || len(filters) > 0) && !table.Filterable() {
		return nil, opt.Validationf("table %s cannot evaluate filters or projections", table.Name())
	}
	if err := checkOrdinals("projected column", projects, tableType.FieldCount()); err != nil {
		return nil, err
	}
	for _, f := range filters {
		if err := checkCondition(f, tableType); err != nil {
			return nil, err
		}
	}
	rowType := tableType
	if projects != nil {
		rowType = tableType.Project(projects)
	}
	traits.Collation = nil
	traits.Distribution = table.Distribution()
	if colls := table.Collations(); len(colls) > 0 {
		traits.Collation = colls[0]
	}
	if projects != nil {
		m := opt.NewMapping(tableType.FieldCount(), len(projects))
		for i, p := range projects {
			if m.TargetOpt(p) < 0 {
				m.Set(p, i)
			}
		}
		traits.Collation = traits.Collation.Remap(m)
		traits.Distribution = traits.Distribution.Remap(m)
	}
	return &Scan{
		base:     base{traits: traits, rowType: rowType},
		Table:    table,
		Projects: projects,
		Filters:  filters,
	}, nil
}

// Op is part of the Node interface.
func (s *Scan) Op() opt.Operator { return opt.ScanOp }

// InputCount is part of the Node interface.
func (s *Scan) InputCount() int { return 0 }

// Input is part of the Node interface.
func (s *Scan) Input(i int) Node { panic(errors.AssertionFailedf("Scan has no inputs")) }

// Copy is part of the Node interface.
func (s *Scan) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(s.Op(), inputs, 0)
	if traits.Convention == s.traits.Convention {
		return s
	}
	return must(NewFilteredScan(traits, s.Table, s.Projects, s.Filters))
}

// ProjectedColumn returns the table column ordinal of the i-th output
// column.
func (s *Scan) ProjectedColumn(i int) int {
	if s.Projects == nil {
		return i
	}
	return s.Projects[i]
}

func (s *Scan) terms(w *termWriter) {
	w.item("table", s.Table.Name())
	if len(s.Filters) > 0 {
		w.item("filters", "["+strings.Join(scalar.Digests(s.Filters), ", ")+"]")
	}
	if s.Projects != nil {
		w.item("projects", intList(s.Projects))
	}
}

func intList(ords []int) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, o := range ords {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprint(&b, o)
	}
	b.WriteByte(']')
	return b.String()
}

// Values returns a constant list of tuples.
type Values struct {
	base
	Tuples [][]*scalar.Literal
}

var _ Node = &Values{}

// NewValues returns a Values expression. Every tuple must have one literal
// per field, of a type equivalent to the field type (or NULL for nullable
// fields).
func NewValues(rowType *types.RowType, tuples [][]*scalar.Literal) (*Values, error) {
	return newValues(props.Logical(), rowType, tuples)
}

func newValues(
	traits props.TraitSet, rowType *types.RowType, tuples [][]*scalar.Literal,
) (*Values, error) {
	for i, tuple := range tuples {
		if len(tuple) != rowType.FieldCount() {
			return nil, opt.Validationf("tuple %d has %d values, expected %d", i, len(tuple), rowType.FieldCount())
		}
		for j, l := range tuple {
			f := rowType.Field(j)
			if l.IsNull() {
				if !f.Type.Nullable {
					return nil, opt.Validationf("NULL in non-nullable field %s", f.Name)
				}
				continue
			}
			if !l.Type().Equivalent(f.Type) {
				return nil, opt.Validationf("value %s does not match the type %s of field %s",
					l, f.Type.SQLString(), f.Name)
			}
		}
	}
	traits.Collation = nil
	traits.Distribution = props.Distribution{}
	return &Values{base: base{traits: traits, rowType: rowType}, Tuples: tuples}, nil
}

// Op is part of the Node interface.
func (v *Values) Op() opt.Operator { return opt.ValuesOp }

// InputCount is part of the Node interface.
func (v *Values) InputCount() int { return 0 }

// Input is part of the Node interface.
func (v *Values) Input(i int) Node { panic(errors.AssertionFailedf("Values has no inputs")) }

// Copy is part of the Node interface.
func (v *Values) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(v.Op(), inputs, 0)
	if traits.Convention == v.traits.Convention {
		return v
	}
	return must(newValues(traits, v.rowType, v.Tuples))
}

func (v *Values) terms(w *termWriter) {
	var b strings.Builder
	b.WriteByte('[')
	for i, tuple := range v.Tuples {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("{ ")
		for j, l := range tuple {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(l.Digest())
		}
		b.WriteString(" }")
	}
	b.WriteByte(']')
	w.item("tuples", b.String())
}
