// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import (
	"fmt"
	"strings"
)

// Operator describes the type of operation that a relational or scalar
// expression performs.
type Operator uint16

const (
	// UnknownOp is not a valid operator.
	UnknownOp Operator = iota

	// ------------------------------------------------------------
	// Relational operators
	// ------------------------------------------------------------

	// ScanOp reads rows from a catalog table.
	ScanOp
	// ValuesOp returns a constant list of tuples.
	ValuesOp
	FilterOp
	ProjectOp
	JoinOp
	// CorrelateOp evaluates its right input once per left row, with the left
	// row bound to a correlation variable.
	CorrelateOp
	AggregateOp
	UnionOp
	IntersectOp
	MinusOp
	SortOp
	ExchangeOp
	SortExchangeOp
	// MultiJoinOp joins any number of inputs at once. It only appears in
	// logical plans, as the input of join ordering.
	MultiJoinOp
	// SubsetOp is a planner-only placeholder for an equivalence set.
	SubsetOp

	// ------------------------------------------------------------
	// Scalar leaves
	// ------------------------------------------------------------

	// InputRefOp refers to a column of the input row by ordinal.
	InputRefOp
	LiteralOp
	CorrelVariableOp
	FieldAccessOp
	// LocalRefOp refers to an entry in a shared expression list.
	LocalRefOp

	// ------------------------------------------------------------
	// Scalar calls
	// ------------------------------------------------------------

	AndOp
	OrOp
	NotOp
	EqOp
	NeOp
	LtOp
	LeOp
	GtOp
	GeOp
	IsNullOp
	IsNotNullOp
	PlusOp
	SubtractOp
	MultOp
	DivOp
	UnaryMinusOp
	CastOp
	STPointOp
	STDWithinOp
	HilbertOp

	// ------------------------------------------------------------
	// Aggregate functions
	// ------------------------------------------------------------

	CountOp
	SumOp
	MinOp
	MaxOp
	AvgOp

	// NumOperators tracks the total count of operators.
	NumOperators
)

type operatorClass uint8

const (
	relationalClass operatorClass = 1 << iota
	scalarClass
	callClass
	comparisonClass
	aggregateClass
	setOpClass
	infixClass
)

type operatorInfo struct {
	// name is used in plan text. For calls it is the symbol printed in
	// expression digests.
	name  string
	class operatorClass
}

var operatorTab = [NumOperators]operatorInfo{
	UnknownOp: {name: "unknown"},

	ScanOp:         {name: "TableScan", class: relationalClass},
	ValuesOp:       {name: "Values", class: relationalClass},
	FilterOp:       {name: "Filter", class: relationalClass},
	ProjectOp:      {name: "Project", class: relationalClass},
	JoinOp:         {name: "Join", class: relationalClass},
	CorrelateOp:    {name: "Correlate", class: relationalClass},
	AggregateOp:    {name: "Aggregate", class: relationalClass},
	UnionOp:        {name: "Union", class: relationalClass | setOpClass},
	IntersectOp:    {name: "Intersect", class: relationalClass | setOpClass},
	MinusOp:        {name: "Minus", class: relationalClass | setOpClass},
	SortOp:         {name: "Sort", class: relationalClass},
	ExchangeOp:     {name: "Exchange", class: relationalClass},
	SortExchangeOp: {name: "SortExchange", class: relationalClass},
	MultiJoinOp:    {name: "MultiJoin", class: relationalClass},
	SubsetOp:       {name: "Subset", class: relationalClass},

	InputRefOp:       {name: "InputRef", class: scalarClass},
	LiteralOp:        {name: "Literal", class: scalarClass},
	CorrelVariableOp: {name: "CorrelVariable", class: scalarClass},
	FieldAccessOp:    {name: "FieldAccess", class: scalarClass},
	LocalRefOp:       {name: "LocalRef", class: scalarClass},

	AndOp:        {name: "AND", class: scalarClass | callClass},
	OrOp:         {name: "OR", class: scalarClass | callClass},
	NotOp:        {name: "NOT", class: scalarClass | callClass},
	EqOp:         {name: "=", class: scalarClass | callClass | comparisonClass | infixClass},
	NeOp:         {name: "<>", class: scalarClass | callClass | comparisonClass | infixClass},
	LtOp:         {name: "<", class: scalarClass | callClass | comparisonClass | infixClass},
	LeOp:         {name: "<=", class: scalarClass | callClass | comparisonClass | infixClass},
	GtOp:         {name: ">", class: scalarClass | callClass | comparisonClass | infixClass},
	GeOp:         {name: ">=", class: scalarClass | callClass | comparisonClass | infixClass},
	IsNullOp:     {name: "IS NULL", class: scalarClass | callClass},
	IsNotNullOp:  {name: "IS NOT NULL", class: scalarClass | callClass},
	PlusOp:       {name: "+", class: scalarClass | callClass | infixClass},
	SubtractOp:   {name: "-", class: scalarClass | callClass | infixClass},
	MultOp:       {name: "*", class: scalarClass | callClass | infixClass},
	DivOp:        {name: "/", class: scalarClass | callClass | infixClass},
	UnaryMinusOp: {name: "-", class: scalarClass | callClass},
	CastOp:       {name: "CAST", class: scalarClass | callClass},
	STPointOp:    {name: "ST_POINT", class: scalarClass | callClass},
	STDWithinOp:  {name: "ST_DWITHIN", class: scalarClass | callClass},
	HilbertOp:    {name: "HILBERT", class: scalarClass | callClass},

	CountOp: {name: "COUNT", class: aggregateClass},
	SumOp:   {name: "SUM", class: aggregateClass},
	MinOp:   {name: "MIN", class: aggregateClass},
	MaxOp:   {name: "MAX", class: aggregateClass},
	AvgOp:   {name: "AVG", class: aggregateClass},
}

func (op Operator) String() string {
	if op >= NumOperators {
		return fmt.Sprintf("Operator(%d)", op)
	}
	return operatorTab[op].name
}

func (op Operator) is(c operatorClass) bool {
	return op < NumOperators && operatorTab[op].class&c != 0
}

// IsRelational returns true for operators of relational expressions.
func (op Operator) IsRelational() bool { return op.is(relationalClass) }

// IsScalar returns true for operators of scalar expressions.
func (op Operator) IsScalar() bool { return op.is(scalarClass) }

// IsCall returns true for scalar operators that take operands.
func (op Operator) IsCall() bool { return op.is(callClass) }

// IsComparison returns true for the binary comparison operators.
func (op Operator) IsComparison() bool { return op.is(comparisonClass) }

// IsAggregate returns true for aggregate functions.
func (op Operator) IsAggregate() bool { return op.is(aggregateClass) }

// IsSetOp returns true for UNION, INTERSECT and MINUS.
func (op Operator) IsSetOp() bool { return op.is(setOpClass) }

// IsBinaryArithmetic returns true for +, -, * and /.
func (op Operator) IsBinaryArithmetic() bool {
	return op.is(infixClass) && !op.is(comparisonClass)
}

// Reverse returns the comparison that holds when the operands are swapped,
// e.g. < becomes >. It returns false for operators that are not
// comparisons.
func (op Operator) Reverse() (Operator, bool) {
	switch op {
	case EqOp, NeOp:
		return op, true
	case LtOp:
		return GtOp, true
	case LeOp:
		return GeOp, true
	case GtOp:
		return LtOp, true
	case GeOp:
		return LeOp, true
	}
	return UnknownOp, false
}

// Negate returns the comparison that holds exactly when op does not, for
// non-null operands.
func (op Operator) Negate() (Operator, bool) {
	switch op {
	case EqOp:
		return NeOp, true
	case NeOp:
		return EqOp, true
	case LtOp:
		return GeOp, true
	case LeOp:
		return GtOp, true
	case GtOp:
		return LeOp, true
	case GeOp:
		return LtOp, true
	case IsNullOp:
		return IsNotNullOp, true
	case IsNotNullOp:
		return IsNullOp, true
	}
	return UnknownOp, false
}

// ParseCallOperator returns the call operator printed as name with the given
// number of operands. Function names are matched case-insensitively.
func ParseCallOperator(name string, arity int) (Operator, bool) {
	if name == "-" {
		if arity == 1 {
			return UnaryMinusOp, true
		}
		return SubtractOp, true
	}
	upper := strings.ToUpper(name)
	for op := AndOp; op <= HilbertOp; op++ {
		if operatorTab[op].name == upper {
			return op, true
		}
	}
	return UnknownOp, false
}

// ParseAggregate returns the aggregate function with the given name.
func ParseAggregate(name string) (Operator, bool) {
	upper := strings.ToUpper(name)
	for op := CountOp; op <= AvgOp; op++ {
		if operatorTab[op].name == upper {
			return op, true
		}
	}
	return UnknownOp, false
}
