package condition

import (
	"fmt"
	"strconv"
)

// Node is an element of a condition AST.
type Node interface {
	Kind() string
	String() string
}

type Number struct {
	Value any
}

func (n Number) Kind() string { return "Number" }

func (n Number) String() string { return fmt.Sprint(n.Value) }

type String struct {
	Value string
}

func (n String) Kind() string { return "String" }

func (n String) String() string { return strconv.Quote(n.Value) }

type Boolean struct {
	Value bool
}

func (n Boolean) Kind() string { return "Boolean" }

func (n Boolean) String() string { return strconv.FormatBool(n.Value) }

// Identifier references a row column, optionally qualified by a range alias.
type Identifier struct {
	Range string
	Name  string
}

func (n Identifier) Kind() string { return "Identifier" }

func (n Identifier) FullName() string {
	if n.Range == "" {
		return n.Name
	}
	return n.Range + "." + n.Name
}

func (n Identifier) String() string { return n.FullName() }

type Parameter struct {
	Name string
}

func (n Parameter) Kind() string { return "Parameter" }

func (n Parameter) String() string { return ":" + n.Name }

// Expression is a comparison: = <> != < > <= >=.
type Expression struct {
	Left     Node
	Operator string
	Right    Node
}

func (n Expression) Kind() string { return "Expression" }

func (n Expression) String() string {
	return n.Left.String() + n.Operator + n.Right.String()
}

// BinaryOperator combines two conditions with AND or OR.
type BinaryOperator struct {
	Left     Node
	Operator string
	Right    Node
}

func (n BinaryOperator) Kind() string { return "BinaryOperator" }

func (n BinaryOperator) String() string {
	return n.Left.String() + " " + n.Operator + " " + n.Right.String()
}

func And(left, right Node) BinaryOperator {
	return BinaryOperator{Left: left, Operator: "AND", Right: right}
}

func Or(left, right Node) BinaryOperator {
	return BinaryOperator{Left: left, Operator: "OR", Right: right}
}

func Compare(left Node, op string, right Node) Expression {
	return Expression{Left: left, Operator: op, Right: right}
}

// Criteria builds `alias.k=:k AND ...` over keys, in the given order. It
// returns nil for no keys.
func Criteria(alias string, keys []string) Node {
	var result Node
	for _, key := range keys {
		expr := Compare(Identifier{Range: alias, Name: key}, "=", Parameter{Name: key})
		if result == nil {
			result = expr
		} else {
			result = And(result, expr)
		}
	}
	return result
}
