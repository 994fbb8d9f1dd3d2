// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// Subset stands for the members of a cost-based planner equivalence set that
// have the given traits. It only appears as an input of expressions
// registered with the planner and never in a final plan.
type Subset struct {
	base
	SetID int
}

var _ Node = &Subset{}

// NewSubset returns a reference to an equivalence set.
func NewSubset(setID int, rowType *types.RowType, traits props.TraitSet) *Subset {
	return &Subset{base: base{traits: traits, rowType: rowType}, SetID: setID}
}

// Op is part of the Node interface.
func (s *Subset) Op() opt.Operator { return opt.SubsetOp }

// InputCount is part of the Node interface.
func (s *Subset) InputCount() int { return 0 }

// Input is part of the Node interface.
func (s *Subset) Input(i int) Node { panic(errors.AssertionFailedf("Subset has no inputs")) }

// Copy is part of the Node interface.
func (s *Subset) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(s.Op(), inputs, 0)
	if traits.Equals(s.traits) {
		return s
	}
	return NewSubset(s.SetID, s.rowType, traits)
}

func (s *Subset) terms(w *termWriter) {}
