package postgres

import (
	"errors"
	"strings"

	"github.com/datalinkhq/bqbridge/pkg/filter"
)

// errUnsupportedFilter marks predicate shapes the evaluator does not cover.
var errUnsupportedFilter = errors.New("unsupported filter shape")

// evaluate applies a decoded filter tree to a partition's leading value.
// Comparison operators expect a column on one side and a string constant on
// the other; AND/OR combine sub-results. Anything else is unsupported.
func evaluate(n filter.Node, value string) (bool, error) {
	fn, ok := n.(*filter.Func)
	if !ok {
		return false, errUnsupportedFilter
	}

	switch strings.ToLower(fn.Op) {
	case filter.OpAnd:
		if len(fn.Children) != 2 {
			return false, errUnsupportedFilter
		}
		left, err := evaluate(fn.Children[0], value)
		if err != nil {
			return false, err
		}
		right, err := evaluate(fn.Children[1], value)
		if err != nil {
			return false, err
		}
		return left && right, nil
	case filter.OpOr:
		if len(fn.Children) != 2 {
			return false, errUnsupportedFilter
		}
		left, err := evaluate(fn.Children[0], value)
		if err != nil {
			return false, err
		}
		right, err := evaluate(fn.Children[1], value)
		if err != nil {
			return false, err
		}
		return left || right, nil
	case filter.OpEqual, filter.OpNotEqual, filter.OpLess, filter.OpLessEqual, filter.OpGreater, filter.OpGreaterEqual:
		op := strings.ToLower(fn.Op)
		operand, constOnLeft, err := comparisonOperand(fn)
		if err != nil {
			return false, err
		}
		if constOnLeft {
			// 'c' < col means col > 'c'; mirror the operator so the
			// comparison always runs column-first.
			op = mirrorOp(op)
		}
		return compare(op, value, operand), nil
	default:
		return false, errUnsupportedFilter
	}
}

// comparisonOperand extracts the constant side of a column/constant
// comparison and reports whether the constant was the left operand.
func comparisonOperand(fn *filter.Func) (operand string, constOnLeft bool, err error) {
	if len(fn.Children) != 2 {
		return "", false, errUnsupportedFilter
	}
	for i, child := range fn.Children {
		c, ok := child.(*filter.Const)
		if !ok || c.Type != filter.TypeString {
			continue
		}
		if _, ok := fn.Children[1-i].(*filter.Column); !ok {
			continue
		}
		return c.Value, i == 0, nil
	}
	return "", false, errUnsupportedFilter
}

// mirrorOp flips the direction of an ordering comparison. Equality and
// inequality are symmetric.
func mirrorOp(op string) string {
	switch op {
	case filter.OpLess:
		return filter.OpGreater
	case filter.OpLessEqual:
		return filter.OpGreaterEqual
	case filter.OpGreater:
		return filter.OpLess
	case filter.OpGreaterEqual:
		return filter.OpLessEqual
	}
	return op
}

func compare(op, value, operand string) bool {
	switch op {
	case filter.OpEqual:
		return value == operand
	case filter.OpNotEqual:
		return value != operand
	case filter.OpLess:
		return value < operand
	case filter.OpLessEqual:
		return value <= operand
	case filter.OpGreater:
		return value > operand
	case filter.OpGreaterEqual:
		return value >= operand
	}
	return false
}
