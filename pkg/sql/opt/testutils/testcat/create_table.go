// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package testcat

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/optbuilder"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// ExecuteDDL parses and executes a statement against the catalog. The
// supported statements are:
//
//	CREATE TABLE name (
//	  col TYPE [NOT NULL] [PRIMARY KEY | UNIQUE], ...
//	  [PRIMARY KEY (col, ...)] [UNIQUE (col, ...)] [CHECK (expr)]
//	) [WITH (rows = N, filterable, collation = [...], distribution = hash[...])]
//	DROP TABLE name
//	SHOW TABLE name
//
// CHECK expressions are written in digest form over the table columns, e.g.
// CHECK (>($0, 0)). SHOW TABLE returns the formatted table; the other
// statements return the empty string.
func (tc *Catalog) ExecuteDDL(sql string) (string, error) {
	sql = strings.TrimSuffix(strings.TrimSpace(sql), ";")
	words := strings.Fields(sql)
	if len(words) < 3 || !strings.EqualFold(words[1], "TABLE") {
		return "", errors.Newf("unsupported statement: %s", sql)
	}
	switch strings.ToUpper(words[0]) {
	case "CREATE":
		tab, err := parseCreateTable(sql)
		if err != nil {
			return "", err
		}
		if tc.find(qualify(tab.TabName)) != nil {
			return "", errors.Newf("table %s already exists", qualify(tab.TabName))
		}
		tc.AddTable(tab)
		return "", nil

	case "DROP":
		if !tc.DropTable(ParseName(words[2])) {
			return "", errors.Newf("table %s does not exist", ParseName(words[2]))
		}
		return "", nil

	case "SHOW":
		tab := tc.find(ParseName(words[2]))
		if tab == nil {
			return "", errors.Newf("table %s does not exist", ParseName(words[2]))
		}
		return tab.String(), nil
	}
	return "", errors.Newf("unsupported statement: %s", sql)
}

// parseCreateTable builds a table from a CREATE TABLE statement.
func parseCreateTable(sql string) (*Table, error) {
	open := strings.IndexByte(sql, '(')
	if open < 0 {
		return nil, errors.Newf("expected column definitions in %q", sql)
	}
	header := strings.Fields(sql[:open])
	if len(header) != 3 {
		return nil, errors.Newf("expected CREATE TABLE name in %q", sql)
	}
	body, rest, err := parenthesized(sql[open:])
	if err != nil {
		return nil, err
	}

	tab := NewTable(header[2])
	var checks []string
	for _, def := range splitTopLevel(body) {
		switch kw := constraintKeyword(def); kw {
		case "PRIMARY KEY", "UNIQUE", "CHECK":
			i := strings.IndexByte(def, '(')
			if i < 0 {
				return nil, errors.Newf("expected %s (...) in %q", kw, def)
			}
			inner, _, err := parenthesized(def[i:])
			if err != nil {
				return nil, err
			}
			if kw == "CHECK" {
				checks = append(checks, inner)
				break
			}
			key, err := tab.keyOf(splitTopLevel(inner))
			if err != nil {
				return nil, err
			}
			if kw == "PRIMARY KEY" {
				tab.setPrimaryKey(key)
			} else {
				tab.KeySets = append(tab.KeySets, key)
			}

		default:
			if err := tab.addColumn(def); err != nil {
				return nil, err
			}
		}
	}
	if len(tab.Columns) == 0 {
		return nil, errors.Newf("table %s has no columns", tab.TabName)
	}

	// Checks see every column, so they are parsed after all definitions.
	rowType := tab.rowType()
	for _, c := range checks {
		e, err := optbuilder.ParseScalar(c, rowType)
		if err != nil {
			return nil, errors.Wrapf(err, "check constraint of %s", tab.TabName)
		}
		if e.Type().Family != types.BoolFamily {
			return nil, errors.Newf("check constraint %s is not boolean", e)
		}
		tab.Checks = append(tab.Checks, e)
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return tab, nil
	}
	if !strings.HasPrefix(strings.ToUpper(rest), "WITH") {
		return nil, errors.Newf("unexpected %q after column definitions", rest)
	}
	opts, trailing, err := parenthesized(strings.TrimSpace(rest[len("WITH"):]))
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(trailing) != "" {
		return nil, errors.Newf("unexpected %q after table options", trailing)
	}
	for _, o := range splitTopLevel(opts) {
		if err := tab.setOption(o); err != nil {
			return nil, err
		}
	}
	return tab, nil
}

// constraintKeyword returns the keyword that a table constraint definition
// starts with, or "" for column definitions.
func constraintKeyword(def string) string {
	if i := strings.IndexByte(def, '('); i >= 0 {
		def = def[:i]
	}
	words := strings.Fields(strings.ToUpper(def))
	switch {
	case len(words) == 1 && (words[0] == "UNIQUE" || words[0] == "CHECK"):
		return words[0]
	case len(words) == 2 && words[0] == "PRIMARY" && words[1] == "KEY":
		return "PRIMARY KEY"
	}
	return ""
}

func (tt *Table) rowType() *types.RowType {
	names := make([]string, len(tt.Columns))
	typs := make([]*types.T, len(tt.Columns))
	for i, c := range tt.Columns {
		names[i], typs[i] = c.Name, c.Type
	}
	return types.MakeRowType(names, typs)
}

// addColumn adds a column from a definition like "ename VARCHAR NOT NULL".
func (tt *Table) addColumn(def string) error {
	words := strings.Fields(def)
	if len(words) < 2 {
		return errors.Newf("expected a column name and type in %q", def)
	}
	name := words[0]
	for _, c := range tt.Columns {
		if c.Name == name {
			return errors.Newf("column %s specified more than once", name)
		}
	}
	typeWords := words[1:]
	primary, unique := false, false
	if n := len(typeWords); n >= 2 &&
		strings.EqualFold(typeWords[n-2], "PRIMARY") && strings.EqualFold(typeWords[n-1], "KEY") {
		primary = true
		typeWords = typeWords[:n-2]
	} else if n >= 1 && strings.EqualFold(typeWords[n-1], "UNIQUE") {
		unique = true
		typeWords = typeWords[:n-1]
	}
	typ, err := types.ParseType(strings.Join(typeWords, " "))
	if err != nil {
		return errors.Wrapf(err, "column %s", name)
	}
	if primary {
		typ = typ.WithNullable(false)
	}
	tt.Columns = append(tt.Columns, &Column{Name: name, Type: typ})
	ord := len(tt.Columns) - 1
	switch {
	case primary:
		tt.setPrimaryKey(opt.MakeColSet(ord))
	case unique:
		tt.KeySets = append(tt.KeySets, opt.MakeColSet(ord))
	}
	return nil
}

// setPrimaryKey makes key the first key of the table and its columns not
// null.
func (tt *Table) setPrimaryKey(key opt.ColSet) {
	key.ForEach(func(ord int) {
		tt.Columns[ord].Type = tt.Columns[ord].Type.WithNullable(false)
	})
	tt.KeySets = append([]opt.ColSet{key}, tt.KeySets...)
}

func (tt *Table) keyOf(names []string) (opt.ColSet, error) {
	var key opt.ColSet
	for _, n := range names {
		ord := tt.rowType().FieldIndex(strings.TrimSpace(n))
		if ord < 0 {
			return opt.ColSet{}, errors.Newf("column %s does not exist in %s", n, tt.TabName)
		}
		key.Add(ord)
	}
	return key, nil
}

// setOption applies one WITH option.
func (tt *Table) setOption(o string) error {
	key, value, hasValue := strings.Cut(o, "=")
	key = strings.ToLower(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	if key == "filterable" && !hasValue {
		tt.IsFilterable = true
		return nil
	}
	if !hasValue {
		return errors.Newf("table option %s requires a value", key)
	}
	switch key {
	case "rows":
		rows, err := strconv.ParseFloat(value, 64)
		if err != nil || rows < 0 {
			return errors.Newf("invalid row count %q", value)
		}
		tt.Rows = rows

	case "collation":
		c, err := props.ParseCollation(value)
		if err != nil {
			return err
		}
		for _, k := range c.Keys() {
			if k >= len(tt.Columns) {
				return errors.Newf("collation key %d out of range", k)
			}
		}
		tt.Orderings = append(tt.Orderings, c)

	case "distribution":
		d, err := props.ParseDistribution(value)
		if err != nil {
			return err
		}
		for _, k := range d.Keys {
			if k >= len(tt.Columns) {
				return errors.Newf("distribution key %d out of range", k)
			}
		}
		tt.Dist = d

	default:
		return errors.Newf("unknown table option %s", key)
	}
	return nil
}

// parenthesized returns the text inside the parenthesis that s starts with,
// and the text after the matching closing parenthesis.
func parenthesized(s string) (inner, rest string, _ error) {
	if !strings.HasPrefix(s, "(") {
		return "", "", errors.Newf("expected ( at %q", s)
	}
	depth, quoted := 0, false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return s[1:i], s[i+1:], nil
			}
		}
	}
	return "", "", errors.Newf("unbalanced parentheses in %q", s)
}

// splitTopLevel splits s on the commas that are not nested in parentheses,
// brackets or quotes.
func splitTopLevel(s string) []string {
	var res []string
	depth, quoted, start := 0, false, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			res = append(res, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" {
		res = append(res, last)
	}
	return res
}
