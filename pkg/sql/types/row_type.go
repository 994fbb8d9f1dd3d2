// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package types

import (
	"strconv"
	"strings"
)

// Field is one named, typed column of a row type.
type Field struct {
	Name string
	Type *T
}

// RowType is the ordered list of columns produced by a relational expression.
type RowType struct {
	Fields []Field
}

// MakeRowType builds a row type from parallel name and type slices.
func MakeRowType(names []string, typs []*T) *RowType {
	if len(names) != len(typs) {
		panic("mismatched names and types")
	}
	fields := make([]Field, len(names))
	for i := range names {
		fields[i] = Field{Name: names[i], Type: typs[i]}
	}
	return &RowType{Fields: fields}
}

// FieldCount returns the number of columns.
func (r *RowType) FieldCount() int { return len(r.Fields) }

// Field returns the i-th column.
func (r *RowType) Field(i int) Field { return r.Fields[i] }

// FieldNames returns the column names in order.
func (r *RowType) FieldNames() []string {
	names := make([]string, len(r.Fields))
	for i := range r.Fields {
		names[i] = r.Fields[i].Name
	}
	return names
}

// FieldTypes returns the column types in order.
func (r *RowType) FieldTypes() []*T {
	typs := make([]*T, len(r.Fields))
	for i := range r.Fields {
		typs[i] = r.Fields[i].Type
	}
	return typs
}

// FieldIndex returns the ordinal of the column with the given name, or -1.
func (r *RowType) FieldIndex(name string) int {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return i
		}
	}
	return -1
}

// Equals returns true if both row types have the same names and identical
// types, in the same order.
func (r *RowType) Equals(o *RowType) bool {
	if r == o {
		return true
	}
	if len(r.Fields) != len(o.Fields) {
		return false
	}
	for i := range r.Fields {
		if r.Fields[i].Name != o.Fields[i].Name || !r.Fields[i].Type.Identical(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

// EquivalentTypes returns true if both row types have the same arity and
// equivalent column types. Names and nullability are ignored.
func (r *RowType) EquivalentTypes(o *RowType) bool {
	if len(r.Fields) != len(o.Fields) {
		return false
	}
	for i := range r.Fields {
		if !r.Fields[i].Type.Equivalent(o.Fields[i].Type) {
			return false
		}
	}
	return true
}

// Project returns the row type made of the given ordinals.
func (r *RowType) Project(ordinals []int) *RowType {
	fields := make([]Field, len(ordinals))
	for i, ord := range ordinals {
		fields[i] = r.Fields[ord]
	}
	return &RowType{Fields: fields}
}

// String formats the row type as RecordType(INTEGER NOT NULL a, ...).
func (r *RowType) String() string {
	var b strings.Builder
	b.WriteString("RecordType(")
	for i := range r.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.Fields[i].Type.String())
		b.WriteByte(' ')
		b.WriteString(r.Fields[i].Name)
	}
	b.WriteByte(')')
	return b.String()
}

// UniquifyNames makes every name distinct by appending the smallest numeric
// suffix that is not taken, e.g. [a, b, a] becomes [a, b, a0].
func UniquifyNames(names []string) []string {
	used := make(map[string]struct{}, len(names))
	res := make([]string, len(names))
	for i, name := range names {
		if _, ok := used[name]; ok {
			for j := 0; ; j++ {
				candidate := name + strconv.Itoa(j)
				if _, ok := used[candidate]; !ok {
					name = candidate
					break
				}
			}
		}
		used[name] = struct{}{}
		res[i] = name
	}
	return res
}
