// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package props

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
)

// Direction is the sort direction of a collation key.
type Direction uint8

const (
	// Ascending sorts smaller values first.
	Ascending Direction = iota
	// Descending sorts larger values first.
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// FieldCollation is one key of a collation.
type FieldCollation struct {
	Field     int
	Direction Direction
}

func (f FieldCollation) String() string {
	if f.Direction == Descending {
		return strconv.Itoa(f.Field) + " DESC"
	}
	return strconv.Itoa(f.Field)
}

// Collation is the ordering of the rows of an expression. An empty collation
// means that the rows are not known to be sorted.
type Collation []FieldCollation

// Asc returns the collation that sorts ascending on the given fields.
func Asc(fields ...int) Collation {
	c := make(Collation, len(fields))
	for i, f := range fields {
		c[i] = FieldCollation{Field: f}
	}
	return c
}

// Any returns true if the collation does not constrain the order of rows.
func (c Collation) Any() bool { return len(c) == 0 }

// Keys returns the field ordinals of the collation in order.
func (c Collation) Keys() []int {
	keys := make([]int, len(c))
	for i := range c {
		keys[i] = c[i].Field
	}
	return keys
}

// ColSet returns the set of fields referenced by the collation.
func (c Collation) ColSet() opt.ColSet {
	var s opt.ColSet
	for i := range c {
		s.Add(c[i].Field)
	}
	return s
}

// Equals returns true if both collations have the same keys.
func (c Collation) Equals(o Collation) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// Satisfies returns true if rows sorted by c are also sorted by required, that
// is if required is a prefix of c.
func (c Collation) Satisfies(required Collation) bool {
	if len(required) > len(c) {
		return false
	}
	for i := range required {
		if c[i] != required[i] {
			return false
		}
	}
	return true
}

// Remap renumbers the fields of the collation. If a field is not mapped, the
// collation is truncated before it, since a prefix of a collation still
// holds.
func (c Collation) Remap(m opt.Mapping) Collation {
	var res Collation
	for i := range c {
		t := m.TargetOpt(c[i].Field)
		if t < 0 {
			break
		}
		res = append(res, FieldCollation{Field: t, Direction: c[i].Direction})
	}
	return res
}

// Shift adds delta to every field.
func (c Collation) Shift(delta int) Collation {
	if len(c) == 0 {
		return nil
	}
	res := make(Collation, len(c))
	for i := range c {
		res[i] = FieldCollation{Field: c[i].Field + delta, Direction: c[i].Direction}
	}
	return res
}

// String formats the collation as [0, 1 DESC].
func (c Collation) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := range c {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c[i].String())
	}
	b.WriteByte(']')
	return b.String()
}

// ParseCollation parses the output of Collation.String. Keys may be given with
// or without the brackets and with an explicit ASC.
func ParseCollation(s string) (Collation, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var res Collation
	for _, part := range strings.Split(s, ",") {
		fields := strings.Fields(part)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, errors.Newf("invalid collation key %q", part)
		}
		ord, err := strconv.Atoi(strings.TrimPrefix(fields[0], "$"))
		if err != nil || ord < 0 {
			return nil, errors.Newf("invalid collation key %q", part)
		}
		fc := FieldCollation{Field: ord}
		if len(fields) == 2 {
			switch strings.ToUpper(fields[1]) {
			case "ASC":
			case "DESC":
				fc.Direction = Descending
			default:
				return nil, errors.Newf("invalid sort direction %q", fields[1])
			}
		}
		res = append(res, fc)
	}
	return res, nil
}
