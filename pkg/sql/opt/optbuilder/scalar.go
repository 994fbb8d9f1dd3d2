// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optbuilder

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// ParseScalar parses a scalar expression written in digest form, such as
// AND(=($0, 10), >($2, 1.5E0)), over the given input columns.
func ParseScalar(s string, input *types.RowType) (_ scalar.Expr, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = catchBuildError(r)
		}
	}()
	return parseScalar(s, &scope{input: input}), nil
}

// parseScalar parses s in the given scope. It panics with a builderError on
// invalid input.
func parseScalar(s string, sc *scope) scalar.Expr {
	p := scalarParser{src: s, scope: sc}
	e := p.parseExpr()
	p.skipSpace()
	if !p.eof() {
		p.errorf("unexpected %q", p.src[p.pos:])
	}
	return e
}

// parseTuple parses a list of literals such as { 1, 'x', null:INTEGER }. It
// panics with a builderError on invalid input.
func parseTuple(s string) []*scalar.Literal {
	p := scalarParser{src: s, scope: &scope{}}
	p.expect('{')
	var res []*scalar.Literal
	p.skipSpace()
	if p.peek() == '}' {
		p.pos++
	} else {
		for {
			e := p.parseExpr()
			lit, ok := e.(*scalar.Literal)
			if !ok {
				p.errorf("%s is not a literal", e)
			}
			res = append(res, lit)
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			p.expect('}')
			break
		}
	}
	p.skipSpace()
	if !p.eof() {
		p.errorf("unexpected %q", p.src[p.pos:])
	}
	return res
}

// scalarParser is a recursive descent parser of scalar digests.
type scalarParser struct {
	src   string
	pos   int
	scope *scope
}

func (p *scalarParser) errorf(format string, args ...interface{}) {
	panic(builderError{errors.Wrapf(errors.Newf(format, args...), "parsing %q", p.src)})
}

func (p *scalarParser) eof() bool { return p.pos >= len(p.src) }

func (p *scalarParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *scalarParser) skipSpace() {
	for !p.eof() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

func (p *scalarParser) expect(c byte) {
	p.skipSpace()
	if p.peek() != c {
		if p.eof() {
			p.errorf("expected %q, found end of input", c)
		}
		p.errorf("expected %q at %q", c, p.src[p.pos:])
	}
	p.pos++
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (p *scalarParser) word() string {
	start := p.pos
	for !p.eof() && (isLetter(p.src[p.pos]) || isDigit(p.src[p.pos])) {
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *scalarParser) parseExpr() scalar.Expr {
	p.skipSpace()
	c := p.peek()
	switch {
	case p.eof():
		p.errorf("unexpected end of input")
	case c == '\'':
		return p.parseString()
	case c == '$':
		return p.parseRef()
	case isDigit(c), c == '-' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1]):
		return p.parseNumber()
	case isLetter(c):
		return p.parseWord()
	case strings.IndexByte("=<>+-*/", c) >= 0:
		name := string(c)
		p.pos++
		if next := p.peek(); (c == '<' && (next == '>' || next == '=')) || (c == '>' && next == '=') {
			name += string(next)
			p.pos++
		}
		return p.parseCall(name)
	}
	p.errorf("unexpected %q", p.src[p.pos:])
	return nil
}

func (p *scalarParser) parseString() scalar.Expr {
	p.pos++
	var b strings.Builder
	for {
		if p.eof() {
			p.errorf("unterminated string")
		}
		c := p.src[p.pos]
		p.pos++
		if c == '\'' {
			if p.peek() != '\'' {
				break
			}
			p.pos++
		}
		b.WriteByte(c)
	}
	return scalar.MakeString(b.String())
}

func (p *scalarParser) parseNumber() scalar.Expr {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	isFloat := false
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case isDigit(c), c == '.':
		case c == 'E' || c == 'e':
			isFloat = true
			if next := p.pos + 1; next < len(p.src) && (p.src[next] == '-' || p.src[next] == '+') {
				p.pos++
			}
		default:
			return p.number(p.src[start:p.pos], isFloat)
		}
		p.pos++
	}
	return p.number(p.src[start:p.pos], isFloat)
}

func (p *scalarParser) number(s string, isFloat bool) scalar.Expr {
	if isFloat {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			p.errorf("invalid number %q", s)
		}
		return scalar.MakeFloat(f)
	}
	d, _, err := apd.NewFromString(s)
	if err != nil {
		p.errorf("invalid number %q", s)
	}
	return scalar.MakeDecimal(d)
}

// parseRef parses $3, $cor0 and $cor0.field.
func (p *scalarParser) parseRef() scalar.Expr {
	p.pos++
	name := p.word()
	if strings.HasPrefix(name, "cor") {
		id, err := opt.ParseCorrelationID("$" + name)
		if err != nil {
			p.errorf("%v", err)
		}
		row, ok := p.scope.resolveCorrelation(id)
		if !ok {
			p.errorf("correlation variable %s is not bound", id)
		}
		var e scalar.Expr = &scalar.CorrelVariable{ID: id, Typ: types.MakeRecord(row)}
		for p.peek() == '.' {
			p.pos++
			fa, err := scalar.NewFieldAccess(e, p.word())
			if err != nil {
				panic(builderError{err})
			}
			e = fa
		}
		return e
	}
	ord, err := strconv.Atoi(name)
	if err != nil {
		p.errorf("invalid reference $%s", name)
	}
	input := p.scope.input
	if input == nil || ord >= input.FieldCount() {
		count := 0
		if input != nil {
			count = input.FieldCount()
		}
		p.errorf("input reference $%d out of range: the input has %d fields", ord, count)
	}
	return scalar.RefTo(input, ord)
}

// parseWord parses literals spelled as words and calls of named operators,
// including IS NULL and IS NOT NULL.
func (p *scalarParser) parseWord() scalar.Expr {
	start := p.pos
	name := p.word()
	switch strings.ToLower(name) {
	case "true":
		return scalar.True
	case "false":
		return scalar.False
	case "null":
		p.expect(':')
		return scalar.MakeNull(p.parseType())
	}
	for {
		save := p.pos
		p.skipSpace()
		if !isLetter(p.peek()) {
			p.pos = save
			break
		}
		p.word()
	}
	name = strings.Join(strings.Fields(p.src[start:p.pos]), " ")
	return p.parseCall(name)
}

func (p *scalarParser) parseType() *types.T {
	p.skipSpace()
	start := p.pos
	for !p.eof() && (isLetter(p.src[p.pos]) || p.src[p.pos] == ' ') {
		p.pos++
	}
	typ, err := types.ParseType(p.src[start:p.pos])
	if err != nil {
		p.errorf("%v", err)
	}
	return typ
}

func (p *scalarParser) parseCall(name string) scalar.Expr {
	p.expect('(')
	var operands []scalar.Expr
	p.skipSpace()
	if p.peek() == ')' {
		p.pos++
	} else {
		for {
			operands = append(operands, p.parseExpr())
			p.skipSpace()
			if p.peek() == ',' {
				p.pos++
				continue
			}
			p.expect(')')
			break
		}
	}
	if strings.EqualFold(name, "CAST") {
		if len(operands) != 1 {
			p.errorf("CAST takes one operand")
		}
		p.expect(':')
		return scalar.NewCast(operands[0], p.parseType())
	}
	op, ok := opt.ParseCallOperator(name, len(operands))
	if !ok {
		p.errorf("unknown operator %s", name)
	}
	call, err := scalar.NewCall(op, operands...)
	if err != nil {
		panic(builderError{err})
	}
	return call
}
