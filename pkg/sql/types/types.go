// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package types defines the scalar and row types that flow through the
// optimizer. Only the type information needed for plan validation and
// rendering is modeled; coercion rules are left to callers.
package types

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Family is the broad kind of a type.
type Family int

const (
	// UnknownFamily is the type of an untyped NULL.
	UnknownFamily Family = iota
	BoolFamily
	IntFamily
	DecimalFamily
	FloatFamily
	StringFamily
	GeometryFamily
	// RowFamily is a record type, used for correlation variables.
	RowFamily
)

var familyNames = [...]string{
	UnknownFamily:  "NULL",
	BoolFamily:     "BOOLEAN",
	IntFamily:      "INTEGER",
	DecimalFamily:  "DECIMAL",
	FloatFamily:    "DOUBLE",
	StringFamily:   "VARCHAR",
	GeometryFamily: "GEOMETRY",
	RowFamily:      "RecordType",
}

func (f Family) String() string { return familyNames[f] }

// T is a SQL type. Values of T are never mutated after construction; use the
// With methods to derive new ones.
type T struct {
	Family   Family
	Nullable bool
	// Row is set for RowFamily types.
	Row *RowType
}

// Commonly used non-nullable types.
var (
	Unknown  = &T{Family: UnknownFamily, Nullable: true}
	Bool     = &T{Family: BoolFamily}
	Int      = &T{Family: IntFamily}
	Decimal  = &T{Family: DecimalFamily}
	Float    = &T{Family: FloatFamily}
	String   = &T{Family: StringFamily}
	Geometry = &T{Family: GeometryFamily}
)

// MakeRecord returns a non-nullable record type with the given fields.
func MakeRecord(row *RowType) *T {
	return &T{Family: RowFamily, Row: row}
}

// WithNullable returns t with the given nullability.
func (t *T) WithNullable(nullable bool) *T {
	if t.Nullable == nullable {
		return t
	}
	c := *t
	c.Nullable = nullable
	return &c
}

// IsNumeric returns true for integer, decimal and float types.
func (t *T) IsNumeric() bool {
	switch t.Family {
	case IntFamily, DecimalFamily, FloatFamily:
		return true
	}
	return false
}

// Equivalent returns true if the two types have the same family (and, for
// records, equivalent fields). Nullability is ignored.
func (t *T) Equivalent(o *T) bool {
	if t.Family != o.Family {
		return false
	}
	if t.Family == RowFamily {
		return t.Row.EquivalentTypes(o.Row)
	}
	return true
}

// Identical returns true if the types are equivalent and have the same
// nullability.
func (t *T) Identical(o *T) bool {
	if t.Nullable != o.Nullable || t.Family != o.Family {
		return false
	}
	if t.Family == RowFamily {
		return t.Row.Equals(o.Row)
	}
	return true
}

// SQLString returns the name of the type without nullability.
func (t *T) SQLString() string {
	if t.Family == RowFamily {
		return t.Row.String()
	}
	return t.Family.String()
}

// String returns the name of the type, followed by NOT NULL if the type does
// not admit nulls.
func (t *T) String() string {
	if t.Nullable || t.Family == UnknownFamily {
		return t.SQLString()
	}
	return t.SQLString() + " NOT NULL"
}

var numericRank = map[Family]int{IntFamily: 1, DecimalFamily: 2, FloatFamily: 3}

// LeastRestrictive returns the narrowest type that every argument can be
// converted to, or false if there is none. NULL types combine with anything.
func LeastRestrictive(ts ...*T) (*T, bool) {
	var res *T
	nullable := false
	for _, t := range ts {
		nullable = nullable || t.Nullable
		if t.Family == UnknownFamily {
			continue
		}
		switch {
		case res == nil:
			res = t
		case res.Equivalent(t):
		case res.IsNumeric() && t.IsNumeric():
			if numericRank[t.Family] > numericRank[res.Family] {
				res = t
			}
		default:
			return nil, false
		}
	}
	if res == nil {
		return Unknown, true
	}
	return res.WithNullable(nullable), true
}

var typeNames = map[string]*T{
	"bool":     Bool,
	"boolean":  Bool,
	"int":      Int,
	"integer":  Int,
	"bigint":   Int,
	"decimal":  Decimal,
	"numeric":  Decimal,
	"float":    Float,
	"double":   Float,
	"real":     Float,
	"string":   String,
	"varchar":  String,
	"text":     String,
	"geometry": Geometry,
}

// ParseType parses a type name such as "int" or "varchar not null". Types are
// nullable unless NOT NULL is given.
func ParseType(s string) (*T, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	nullable := true
	if strings.HasSuffix(s, " not null") {
		nullable = false
		s = strings.TrimSpace(strings.TrimSuffix(s, " not null"))
	}
	t, ok := typeNames[s]
	if !ok {
		return nil, errors.Newf("unknown type %q", s)
	}
	return t.WithNullable(nullable), nil
}
