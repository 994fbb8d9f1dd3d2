// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package rel defines the relational expressions manipulated by the
// optimizer. Every expression kind is a concrete struct implementing Node.
// Nodes are immutable: rewrites build new nodes, and the row type of a node is
// derived from its inputs and parameters when it is constructed.
package rel

import (
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/relopt/pkg/sql/opt"
	"github.com/cockroachdb/relopt/pkg/sql/opt/props"
	"github.com/cockroachdb/relopt/pkg/sql/types"
)

// Node is a relational expression.
type Node interface {
	// Op returns the kind of the expression.
	Op() opt.Operator

	// Traits returns the physical properties of the expression.
	Traits() props.TraitSet

	// RowType returns the names and types of the columns produced by the
	// expression.
	RowType() *types.RowType

	// InputCount returns the number of relational inputs.
	InputCount() int

	// Input returns the i-th input.
	Input(i int) Node

	// Copy returns an expression of the same kind and with the same
	// parameters over the given inputs. The convention of traits is used;
	// collation and distribution are derived again from the inputs and the
	// parameters, as is the row type. Copy panics if the inputs are not
	// compatible with the parameters.
	Copy(traits props.TraitSet, inputs []Node) Node

	// terms appends the parameters printed in plan text.
	terms(w *termWriter)
}

// Inputs returns the inputs of n.
func Inputs(n Node) []Node {
	res := make([]Node, n.InputCount())
	for i := range res {
		res[i] = n.Input(i)
	}
	return res
}

// Convert returns n with the given convention.
func Convert(n Node, c props.Convention) Node {
	if n.Traits().Convention == c {
		return n
	}
	return n.Copy(n.Traits().WithConvention(c), Inputs(n))
}

// base holds the fields shared by every node kind.
type base struct {
	traits  props.TraitSet
	rowType *types.RowType
}

// Traits is part of the Node interface.
func (b *base) Traits() props.TraitSet { return b.traits }

// RowType is part of the Node interface.
func (b *base) RowType() *types.RowType { return b.rowType }

// must panics with an assertion error if err is not nil. It is used by Copy,
// whose callers guarantee inputs with the row type of the original inputs.
func must(n Node, err error) Node {
	if err != nil {
		panic(errors.NewAssertionErrorWithWrappedErrf(err, "copying expression"))
	}
	return n
}

func checkInputs(op opt.Operator, inputs []Node, n int) {
	if len(inputs) != n {
		panic(errors.AssertionFailedf("%s expects %d inputs, got %d", op, n, len(inputs)))
	}
}

// JoinType is the kind of a join or correlate.
type JoinType uint8

const (
	// InnerJoin returns the pairs of rows for which the condition holds.
	InnerJoin JoinType = iota
	// LeftJoin also returns unmatched left rows, padded with nulls.
	LeftJoin
	// RightJoin also returns unmatched right rows, padded with nulls.
	RightJoin
	// FullJoin returns unmatched rows of both sides.
	FullJoin
	// SemiJoin returns the left rows that have a match.
	SemiJoin
	// AntiJoin returns the left rows that have no match.
	AntiJoin
)

var joinTypeNames = [...]string{
	InnerJoin: "inner",
	LeftJoin:  "left",
	RightJoin: "right",
	FullJoin:  "full",
	SemiJoin:  "semi",
	AntiJoin:  "anti",
}

func (t JoinType) String() string { return joinTypeNames[t] }

// ParseJoinType parses the name of a join type.
func ParseJoinType(s string) (JoinType, error) {
	for i, n := range joinTypeNames {
		if n == s {
			return JoinType(i), nil
		}
	}
	return InnerJoin, errors.Newf("unknown join type %q", s)
}

// ProjectsRight returns true if the output includes the right columns.
func (t JoinType) ProjectsRight() bool { return t != SemiJoin && t != AntiJoin }

// GeneratesNullsOnLeft returns true if left columns can be null-padded.
func (t JoinType) GeneratesNullsOnLeft() bool { return t == RightJoin || t == FullJoin }

// GeneratesNullsOnRight returns true if right columns can be null-padded.
func (t JoinType) GeneratesNullsOnRight() bool { return t == LeftJoin || t == FullJoin }

// JoinAlgorithm is the physical algorithm of a join. Logical joins use
// UnspecifiedAlgorithm.
type JoinAlgorithm uint8

const (
	// UnspecifiedAlgorithm is used by logical joins.
	UnspecifiedAlgorithm JoinAlgorithm = iota
	// HashJoinAlgorithm builds a hash table on the equality keys.
	HashJoinAlgorithm
	// NestedLoopAlgorithm compares every pair of rows.
	NestedLoopAlgorithm
	// BatchNestedLoopAlgorithm binds batches of left rows to correlation
	// variables and evaluates the right side once per batch.
	BatchNestedLoopAlgorithm
)

var algorithmNames = [...]string{
	UnspecifiedAlgorithm:     "Join",
	HashJoinAlgorithm:        "HashJoin",
	NestedLoopAlgorithm:      "NestedLoopJoin",
	BatchNestedLoopAlgorithm: "BatchNestedLoopJoin",
}

func (a JoinAlgorithm) String() string { return algorithmNames[a] }

// deriveJoinRowType concatenates the fields of the left and right row types,
// making outer sides nullable and names unique. Semi and anti joins only
// produce the left fields.
func deriveJoinRowType(left, right *types.RowType, joinType JoinType) *types.RowType {
	var names []string
	var typs []*types.T
	for _, f := range left.Fields {
		names = append(names, f.Name)
		typs = append(typs, f.Type.WithNullable(f.Type.Nullable || joinType.GeneratesNullsOnLeft()))
	}
	if joinType.ProjectsRight() {
		for _, f := range right.Fields {
			names = append(names, f.Name)
			typs = append(typs, f.Type.WithNullable(f.Type.Nullable || joinType.GeneratesNullsOnRight()))
		}
	}
	return types.MakeRowType(types.UniquifyNames(names), typs)
}

// concatRowType returns the fields of left followed by the fields of right,
// as seen by a join condition.
func concatRowType(left, right *types.RowType) *types.RowType {
	fields := make([]types.Field, 0, left.FieldCount()+right.FieldCount())
	fields = append(fields, left.Fields...)
	fields = append(fields, right.Fields...)
	return &types.RowType{Fields: fields}
}

func checkOrdinals(what string, ords []int, fieldCount int) error {
	for _, o := range ords {
		if o < 0 || o >= fieldCount {
			return opt.Validationf("%s ordinal %d out of range: the input has %d fields", what, o, fieldCount)
		}
	}
	return nil
}
