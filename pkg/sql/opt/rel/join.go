// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package rel

import (
	"strings"

	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/opt/scalar"
)

// Join combines the rows of two inputs. The condition references the left
// fields as $0..$n-1 and the right fields as $n.. .
type Join struct {
	base
	Left, Right Node
	Condition   scalar.Expr
	Type        JoinType
	Algorithm   JoinAlgorithm

	// CorrelationIDs and RequiredColumns are only used by batched
	// nested-loop joins: the right input references the required left
	// columns of each row of a batch through one correlation id per row.
	CorrelationIDs  []opt.CorrelationID
	RequiredColumns opt.ColSet
}

var _ Node = &Join{}

// JoinSpec holds the parameters of a join.
type JoinSpec struct {
	Type            JoinType
	Algorithm       JoinAlgorithm
	CorrelationIDs  []opt.CorrelationID
	RequiredColumns opt.ColSet
}

// NewJoin returns a logical join.
func NewJoin(left, right Node, cond scalar.Expr, joinType JoinType) (*Join, error) {
	return NewJoinWithSpec(props.Logical(), left, right, cond, JoinSpec{Type: joinType})
}

// NewJoinWithSpec returns a join with the given traits and parameters.
func NewJoinWithSpec(
	traits props.TraitSet, left, right Node, cond scalar.Expr, spec JoinSpec,
) (*Join, error) {
	if err := checkCondition(cond, concatRowType(left.RowType(), right.RowType())); err != nil {
		return nil, err
	}
	if spec.Algorithm == BatchNestedLoopAlgorithm {
		if len(spec.CorrelationIDs) == 0 {
			return nil, opt.Validationf("batched nested-loop join requires correlation ids")
		}
		if spec.Type != InnerJoin && spec.Type != LeftJoin && spec.Type != SemiJoin && spec.Type != AntiJoin {
			return nil, opt.Validationf("batched nested-loop join does not support %s joins", spec.Type)
		}
		if err := checkOrdinals("required column", spec.RequiredColumns.Ordered(), left.RowType().FieldCount()); err != nil {
			return nil, err
		}
	} else if len(spec.CorrelationIDs) > 0 {
		return nil, opt.Validationf("only batched nested-loop joins have correlation ids")
	}
	traits.Collation = nil
	traits.Distribution = props.Distribution{}
	if spec.Algorithm == NestedLoopAlgorithm || spec.Algorithm == BatchNestedLoopAlgorithm {
		// Nested loops stream the left input.
		if !spec.Type.GeneratesNullsOnLeft() {
			traits.Collation = left.Traits().Collation
		}
	}
	return &Join{
		base:            base{traits: traits, rowType: deriveJoinRowType(left.RowType(), right.RowType(), spec.Type)},
		Left:            left,
		Right:           right,
		Condition:       cond,
		Type:            spec.Type,
		Algorithm:       spec.Algorithm,
		CorrelationIDs:  spec.CorrelationIDs,
		RequiredColumns: spec.RequiredColumns,
	}, nil
}

// Spec returns the parameters of the join.
func (j *Join) Spec() JoinSpec {
	return JoinSpec{
		Type:            j.Type,
		Algorithm:       j.Algorithm,
		CorrelationIDs:  j.CorrelationIDs,
		RequiredColumns: j.RequiredColumns,
	}
}

// Op is part of the Node interface.
func (j *Join) Op() opt.Operator { return opt.JoinOp }

// InputCount is part of the Node interface.
func (j *Join) InputCount() int { return 2 }

// Input is part of the Node interface.
func (j *Join) Input(i int) Node {
	if i == 0 {
		return j.Left
	}
	return j.Right
}

// Copy is part of the Node interface.
func (j *Join) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(j.Op(), inputs, 2)
	return must(NewJoinWithSpec(traits, inputs[0], inputs[1], j.Condition, j.Spec()))
}

// WithCondition returns the join with a new condition.
func (j *Join) WithCondition(cond scalar.Expr) (*Join, error) {
	return NewJoinWithSpec(j.traits, j.Left, j.Right, cond, j.Spec())
}

func (j *Join) terms(w *termWriter) {
	w.item("condition", j.Condition)
	w.item("joinType", j.Type)
	if len(j.CorrelationIDs) > 0 {
		ids := make([]string, len(j.CorrelationIDs))
		for i, id := range j.CorrelationIDs {
			ids[i] = id.String()
		}
		w.item("variablesSet", "["+strings.Join(ids, ", ")+"]")
		w.item("requiredColumns", j.RequiredColumns)
	}
}

// Correlate evaluates its right input once per left row, with the left row
// bound to the correlation id. The right input refers to the left row with
// correlation variables.
type Correlate struct {
	base
	Left, Right     Node
	ID              opt.CorrelationID
	RequiredColumns opt.ColSet
	Type            JoinType
}

var _ Node = &Correlate{}

// NewCorrelate returns a logical correlate. Only inner, left, semi and anti
// correlates exist.
func NewCorrelate(
	left, right Node, id opt.CorrelationID, required opt.ColSet, joinType JoinType,
) (*Correlate, error) {
	return newCorrelate(props.Logical(), left, right, id, required, joinType)
}

func newCorrelate(
	traits props.TraitSet,
	left, right Node,
	id opt.CorrelationID,
	required opt.ColSet,
	joinType JoinType,
) (*Correlate, error) {
	switch joinType {
	case InnerJoin, LeftJoin, SemiJoin, AntiJoin:
	default:
		return nil, opt.Validationf("correlate does not support %s joins", joinType)
	}
	if err := checkOrdinals("required column", required.Ordered(), left.RowType().FieldCount()); err != nil {
		return nil, err
	}
	traits.Collation = left.Traits().Collation
	traits.Distribution = left.Traits().Distribution
	return &Correlate{
		base:            base{traits: traits, rowType: deriveJoinRowType(left.RowType(), right.RowType(), joinType)},
		Left:            left,
		Right:           right,
		ID:              id,
		RequiredColumns: required,
		Type:            joinType,
	}, nil
}

// Op is part of the Node interface.
func (c *Correlate) Op() opt.Operator { return opt.CorrelateOp }

// InputCount is part of the Node interface.
func (c *Correlate) InputCount() int { return 2 }

// Input is part of the Node interface.
func (c *Correlate) Input(i int) Node {
	if i == 0 {
		return c.Left
	}
	return c.Right
}

// Copy is part of the Node interface.
func (c *Correlate) Copy(traits props.TraitSet, inputs []Node) Node {
	checkInputs(c.Op(), inputs, 2)
	return must(newCorrelate(traits, inputs[0], inputs[1], c.ID, c.RequiredColumns, c.Type))
}

// WithRequiredColumns returns the correlate with new inputs and required
// columns.
func (c *Correlate) WithRequiredColumns(left, right Node, required opt.ColSet) (*Correlate, error) {
	return newCorrelate(c.traits, left, right, c.ID, required, c.Type)
}

func (c *Correlate) terms(w *termWriter) {
	w.item("correlation", c.ID)
	w.item("joinType", c.Type)
	w.item("requiredColumns", c.RequiredColumns)
}
