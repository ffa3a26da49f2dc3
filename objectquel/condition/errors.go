package condition

import "fmt"

// EvaluationError signals a malformed AST: an unknown node kind or operator,
// or operands the operator cannot handle.
type EvaluationError struct {
	Node string
	Err  error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("condition: cannot evaluate %s: %v", e.Node, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}
