package condition

import (
	"fmt"
	"strings"

	"github.com/krew-solutions/objectquel-go/objectquel/condition/operators"
)

// Evaluator evaluates condition ASTs against a row. It has no state besides
// the operator registry and may be shared.
type Evaluator struct {
	registry *operators.OperatorRegistry
}

func NewEvaluator() *Evaluator {
	return &Evaluator{registry: operators.NewDefaultRegistry()}
}

func NewEvaluatorWithRegistry(registry *operators.OperatorRegistry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Evaluate returns the value of node. Identifiers absent from row and
// parameters absent from params evaluate to nil.
func (e *Evaluator) Evaluate(node Node, row map[string]any, params map[string]any) (any, error) {
	switch n := node.(type) {
	case Number:
		return n.Value, nil
	case String:
		return n.Value, nil
	case Boolean:
		return n.Value, nil
	case Identifier:
		return row[n.FullName()], nil
	case Parameter:
		return params[n.Name], nil
	case Expression:
		op := operators.Operator(n.Operator)
		if !op.IsComparison() {
			return nil, &EvaluationError{Node: n.Kind(), Err: fmt.Errorf("%w: %q", operators.ErrUnknownOperator, n.Operator)}
		}
		return e.binary(n.Kind(), n.Left, op, n.Right, row, params)
	case BinaryOperator:
		op := operators.Operator(strings.ToUpper(n.Operator))
		if !op.IsLogical() {
			return nil, &EvaluationError{Node: n.Kind(), Err: fmt.Errorf("%w: %q", operators.ErrUnknownOperator, n.Operator)}
		}
		return e.binary(n.Kind(), n.Left, op, n.Right, row, params)
	case nil:
		return nil, &EvaluationError{Node: "<nil>", Err: fmt.Errorf("unrecognized node")}
	}
	return nil, &EvaluationError{Node: node.Kind(), Err: fmt.Errorf("unrecognized node kind %T", node)}
}

// Matches evaluates node and requires a boolean result.
func (e *Evaluator) Matches(node Node, row map[string]any, params map[string]any) (bool, error) {
	if node == nil {
		return true, nil
	}
	result, err := e.Evaluate(node, row, params)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, &EvaluationError{Node: node.Kind(), Err: fmt.Errorf("result is %T, not bool", result)}
	}
	return b, nil
}

// binary evaluates both operands before applying op; there is no short circuit.
func (e *Evaluator) binary(kind string, leftNode Node, op operators.Operator, rightNode Node, row, params map[string]any) (any, error) {
	left, err := e.Evaluate(leftNode, row, params)
	if err != nil {
		return nil, err
	}
	right, err := e.Evaluate(rightNode, row, params)
	if err != nil {
		return nil, err
	}
	result, err := e.registry.ExecBinary(left, op, right)
	if err != nil {
		return nil, &EvaluationError{Node: kind, Err: err}
	}
	return result, nil
}
