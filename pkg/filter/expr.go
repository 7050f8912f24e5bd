// Package filter models the partition-pruning predicate trees the query
// engine pushes down, and rewrites them into the warehouse's partition-id
// dialect. Trees are immutable: rewriting reconstructs nodes rather than
// mutating them, so translated and original trees can be compared by value.
package filter

import (
	"fmt"
	"strings"
)

// Operator names used in Func nodes. Binary comparisons and boolean
// connectives render infix; anything else renders as a function call.
const (
	OpEqual        = "="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpAnd          = "and"
	OpOr           = "or"
)

// TypeString is the declared type of string constants.
const TypeString = "string"

// Node is one node of a predicate tree. Exactly three kinds exist: Func,
// Column, and Const.
type Node interface {
	// ExprString renders the node as a SQL expression fragment.
	ExprString() string

	node()
}

// Func is a function or operator application over ordered children.
type Func struct {
	Op       string
	Children []Node
}

// Column references a column by name.
type Column struct {
	Name string
}

// Const is a typed literal value.
type Const struct {
	Type  string
	Value string
}

func (*Func) node()   {}
func (*Column) node() {}
func (*Const) node()  {}

var infixOps = map[string]bool{
	OpEqual:        true,
	OpNotEqual:     true,
	OpLess:         true,
	OpLessEqual:    true,
	OpGreater:      true,
	OpGreaterEqual: true,
	OpAnd:          true,
	OpOr:           true,
}

// ExprString renders infix for comparison and boolean operators, and
// "op(arg, ...)" for everything else.
func (f *Func) ExprString() string {
	args := make([]string, len(f.Children))
	for i, c := range f.Children {
		args[i] = c.ExprString()
	}
	if infixOps[f.Op] {
		return "(" + strings.Join(args, " "+strings.ToUpper(f.Op)+" ") + ")"
	}
	return fmt.Sprintf("%s(%s)", f.Op, strings.Join(args, ", "))
}

// ExprString renders the bare column name.
func (c *Column) ExprString() string {
	return c.Name
}

// ExprString renders string constants single-quoted and everything else raw.
func (c *Const) ExprString() string {
	if c.Type == TypeString {
		return "'" + strings.ReplaceAll(c.Value, "'", "\\'") + "'"
	}
	return c.Value
}
