// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package scalar

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// Program is a list of expressions evaluated once per input row, where
// common sub-expressions are computed once and shared through local
// references. The first entries are the input fields themselves.
type Program struct {
	input *types.RowType
	// Exprs are the shared expressions. The operands of each call are local
	// references to earlier entries.
	Exprs []Expr
	// Projects are the outputs of the program.
	Projects []*LocalRef

	index map[string]int
}

// NewProgram builds a program that computes each of the projections over the
// input row type.
func NewProgram(input *types.RowType, projections []Expr) *Program {
	p := &Program{input: input, index: make(map[string]int)}
	for i := 0; i < input.FieldCount(); i++ {
		p.register(RefTo(input, i))
	}
	for _, e := range projections {
		p.Projects = append(p.Projects, p.add(e))
	}
	return p
}

func (p *Program) register(e Expr) *LocalRef {
	d := e.Digest()
	if i, ok := p.index[d]; ok {
		return &LocalRef{Index: i, Typ: p.Exprs[i].Type()}
	}
	p.Exprs = append(p.Exprs, e)
	p.index[d] = len(p.Exprs) - 1
	return &LocalRef{Index: len(p.Exprs) - 1, Typ: e.Type()}
}

// add registers e and its sub-expressions, returning a reference to e.
func (p *Program) add(e Expr) *LocalRef {
	// Look the full expression up first so that repeated sub-trees are
	// found without being split again.
	if i, ok := p.index[e.Digest()]; ok {
		return &LocalRef{Index: i, Typ: p.Exprs[i].Type()}
	}
	if c, ok := e.(*Call); ok {
		operands := make([]Expr, len(c.Operands))
		for i, o := range c.Operands {
			operands[i] = p.add(o)
		}
		ref := p.register(e)
		p.Exprs[ref.Index] = &Call{Operator: c.Operator, Operands: operands, Typ: c.Typ}
		return ref
	}
	return p.register(e)
}

// Expand returns the expression referenced by ref with every local
// reference inlined.
func (p *Program) Expand(ref *LocalRef) Expr {
	e := p.Exprs[ref.Index]
	c, ok := e.(*Call)
	if !ok {
		return e
	}
	operands := make([]Expr, len(c.Operands))
	for i, o := range c.Operands {
		operands[i] = p.Expand(o.(*LocalRef))
	}
	return &Call{Operator: c.Operator, Operands: operands, Typ: c.Typ}
}

// ExpandProjects returns the expanded output expressions.
func (p *Program) ExpandProjects() []Expr {
	res := make([]Expr, len(p.Projects))
	for i, ref := range p.Projects {
		res[i] = p.Expand(ref)
	}
	return res
}

// SharedCount returns the number of computed expressions, other than input
// fields and literals, that are used more than once.
func (p *Program) SharedCount() int {
	uses := make([]int, len(p.Exprs))
	for _, e := range p.Exprs {
		if c, ok := e.(*Call); ok {
			for _, o := range c.Operands {
				uses[o.(*LocalRef).Index]++
			}
		}
	}
	for _, ref := range p.Projects {
		uses[ref.Index]++
	}
	n := 0
	for i, e := range p.Exprs {
		if _, ok := e.(*Call); ok && uses[i] > 1 {
			n++
		}
	}
	return n
}

func (p *Program) String() string {
	var b strings.Builder
	for i, e := range p.Exprs {
		fmt.Fprintf(&b, "$t%d = %s\n", i, e)
	}
	b.WriteString("projects: [")
	for i, ref := range p.Projects {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ref.Digest())
	}
	b.WriteString("]")
	return b.String()
}
