package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/objectquel-go/objectquel/condition/operators"
)

type regex struct {
	Pattern string
}

func (n regex) Kind() string   { return "Regex" }
func (n regex) String() string { return "/" + n.Pattern + "/" }

func ageQuery() Node {
	return And(
		Compare(Number{Value: 5}, ">", Number{Value: 3}),
		Compare(Identifier{Name: "age"}, "=", Parameter{Name: "age"}),
	)
}

func TestEvaluateMixedConditions(t *testing.T) {
	e := NewEvaluator()
	params := map[string]any{"age": 30}

	result, err := e.Evaluate(ageQuery(), map[string]any{"age": 30}, params)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = e.Evaluate(ageQuery(), map[string]any{"age": 31}, params)
	require.NoError(t, err)
	assert.Equal(t, false, result)
}

func TestEvaluateLiterals(t *testing.T) {
	e := NewEvaluator()
	for _, node := range []Node{Number{Value: 1.5}, String{Value: "x"}, Boolean{Value: true}} {
		got, err := e.Evaluate(node, nil, nil)
		require.NoError(t, err)
		switch n := node.(type) {
		case Number:
			assert.Equal(t, n.Value, got)
		case String:
			assert.Equal(t, n.Value, got)
		case Boolean:
			assert.Equal(t, n.Value, got)
		}
	}
}

func TestEvaluateQualifiedIdentifier(t *testing.T) {
	e := NewEvaluator()
	row := map[string]any{"main.status": "open", "r0.status": "closed"}
	got, err := e.Evaluate(Identifier{Range: "r0", Name: "status"}, row, nil)
	require.NoError(t, err)
	assert.Equal(t, "closed", got)
}

func TestEvaluateMissingValuesAreNull(t *testing.T) {
	e := NewEvaluator()
	got, err := e.Evaluate(Identifier{Range: "main", Name: "missing"}, map[string]any{}, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = e.Evaluate(Parameter{Name: "missing"}, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	matched, err := e.Matches(Compare(Identifier{Name: "a"}, "=", Parameter{Name: "b"}), nil, nil)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateComparisonOperators(t *testing.T) {
	e := NewEvaluator()
	row := map[string]any{"qty": 10}
	cases := map[string]bool{"=": false, "<>": true, "!=": true, "<": false, ">": true, "<=": false, ">=": true}
	for op, want := range cases {
		got, err := e.Matches(Compare(Identifier{Name: "qty"}, op, Number{Value: 4}), row, nil)
		require.NoError(t, err, op)
		assert.Equal(t, want, got, op)
	}
}

func TestEvaluateLooseEquality(t *testing.T) {
	e := NewEvaluator()
	matched, err := e.Matches(Compare(Identifier{Name: "id"}, "=", String{Value: "7"}), map[string]any{"id": int64(7)}, nil)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateOrEvaluatesBothSides(t *testing.T) {
	e := NewEvaluator()
	node := Or(Boolean{Value: true}, Compare(Identifier{Name: "a"}, "LIKE", Number{Value: 1}))
	_, err := e.Evaluate(node, nil, nil)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.ErrorIs(t, err, operators.ErrUnknownOperator)
}

func TestEvaluateUnknownLogicalOperator(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Evaluate(BinaryOperator{Left: Boolean{Value: true}, Operator: "XOR", Right: Boolean{Value: false}}, nil, nil)
	assert.ErrorIs(t, err, operators.ErrUnknownOperator)

	got, err := e.Evaluate(BinaryOperator{Left: Boolean{Value: true}, Operator: "and", Right: Boolean{Value: false}}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, false, got)
}

func TestEvaluateUnknownNode(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Evaluate(regex{Pattern: "a+"}, nil, nil)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, "Regex", evalErr.Node)

	_, err = e.Evaluate(nil, nil, nil)
	assert.ErrorAs(t, err, &evalErr)
}

func TestMatchesRequiresBool(t *testing.T) {
	e := NewEvaluator()
	_, err := e.Matches(Number{Value: 1}, nil, nil)
	var evalErr *EvaluationError
	assert.ErrorAs(t, err, &evalErr)

	matched, err := e.Matches(nil, nil, nil)
	require.NoError(t, err)
	assert.True(t, matched)
}

func TestEvaluateIsDeterministic(t *testing.T) {
	e := NewEvaluator()
	row := map[string]any{"age": 30}
	params := map[string]any{"age": 30}
	first, err := e.Evaluate(ageQuery(), row, params)
	require.NoError(t, err)
	second, err := e.Evaluate(ageQuery(), row, params)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, map[string]any{"age": 30}, row)
}

func TestCriteria(t *testing.T) {
	assert.Nil(t, Criteria("main", nil))
	node := Criteria("main", []string{"id", "version"})
	assert.Equal(t, "main.id=:id AND main.version=:version", node.String())

	e := NewEvaluator()
	matched, err := e.Matches(node, map[string]any{"main.id": 1, "main.version": 2}, map[string]any{"id": 1, "version": 2})
	require.NoError(t, err)
	assert.True(t, matched)
}
