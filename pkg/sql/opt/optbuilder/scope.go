// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package optbuilder

import (
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// scope is used for the build process and maintains the columns visible to
// scalar expressions: the input columns, referenced by ordinal, and the
// correlation variables bound by enclosing correlates. Variables bound in
// the parent scope are also visible in this scope.
type scope struct {
	parent *scope
	input  *types.RowType

	// correlation is set when the scope binds a correlation variable to the
	// rows of the left input of a correlate.
	correlation struct {
		set bool
		id  opt.CorrelationID
		row *types.RowType
	}
}

// push returns a child scope over the given input.
func (s *scope) push(input *types.RowType) *scope {
	return &scope{parent: s, input: input}
}

// bind returns a child scope of s that binds id to the given row type.
func (s *scope) bind(id opt.CorrelationID, row *types.RowType) *scope {
	child := &scope{parent: s, input: s.input}
	child.correlation.set = true
	child.correlation.id = id
	child.correlation.row = row
	return child
}

// resolveCorrelation returns the row type bound to id.
func (s *scope) resolveCorrelation(id opt.CorrelationID) (*types.RowType, bool) {
	for ; s != nil; s = s.parent {
		if s.correlation.set && s.correlation.id == id {
			return s.correlation.row, true
		}
	}
	return nil, false
}
