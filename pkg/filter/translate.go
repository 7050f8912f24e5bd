package filter

import (
	"fmt"
	"strings"
)

// PartitionIDColumn is the warehouse's single partition-id column. Every
// column reference in a pushed-down partition filter is rewritten to it.
const PartitionIDColumn = "partition_id"

// Translate rewrites a predicate tree into the warehouse's partition-id
// dialect: column references are renamed to PartitionIDColumn, date-like
// literals lose their "-" separators ("2023-06-15" becomes "20230615"), and
// function nodes are rebuilt with translated children in order.
//
// Callers must only pass filters built over the table's single partition
// key; the rewrite renames every column unconditionally. Any node kind other
// than Func, Column, or Const fails the translation outright.
func Translate(n Node) (Node, error) {
	switch n := n.(type) {
	case *Func:
		children := make([]Node, len(n.Children))
		for i, c := range n.Children {
			tc, err := Translate(c)
			if err != nil {
				return nil, err
			}
			children[i] = tc
		}
		return &Func{Op: n.Op, Children: children}, nil
	case *Column:
		return &Column{Name: PartitionIDColumn}, nil
	case *Const:
		return &Const{Type: n.Type, Value: strings.ReplaceAll(n.Value, "-", "")}, nil
	default:
		return nil, fmt.Errorf("unexpected filter node type %T", n)
	}
}
