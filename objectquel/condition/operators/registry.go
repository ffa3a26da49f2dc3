package operators

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

var (
	ErrUnknownOperator     = errors.New("unknown operator")
	ErrUnsupportedOperands = errors.New("operator is not supported for operands")
)

type BinaryOp func(left, right any) (bool, error)

type binaryKey struct {
	left  reflect.Type
	op    Operator
	right reflect.Type
}

type OperatorRegistry struct {
	binary map[binaryKey]BinaryOp
}

func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{
		binary: make(map[binaryKey]BinaryOp),
	}
}

func RegisterBinary[L, R any](reg *OperatorRegistry, op Operator, fn func(L, R) (bool, error)) {
	var zeroL L
	var zeroR R
	key := binaryKey{
		left:  reflect.TypeOf(zeroL),
		op:    op.canonical(),
		right: reflect.TypeOf(zeroR),
	}
	reg.binary[key] = func(left, right any) (bool, error) {
		return fn(left.(L), right.(R))
	}
}

// ExecBinary applies op to two already evaluated operands.
//
// Operands are normalized first (ints to int64, floats to float64, pointers
// dereferenced). When the normalized types differ the comparison is loose:
// numbers and numeric strings compare numerically, booleans compare after
// boolean coercion, anything else compares as strings. NULL equals only NULL
// and is never ordered.
func (r *OperatorRegistry) ExecBinary(left any, op Operator, right any) (bool, error) {
	op = op.canonical()
	switch op {
	case OperatorAnd:
		return execLogical(op, left, right, func(l, r bool) bool { return l && r })
	case OperatorOr:
		return execLogical(op, left, right, func(l, r bool) bool { return l || r })
	}
	if !op.IsComparison() {
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
	}

	left, right = Normalize(left), Normalize(right)
	if left == nil || right == nil {
		return compareNull(op, left, right), nil
	}

	if fn, ok := r.lookupBinary(left, op, right); ok {
		return fn(left, right)
	}
	if fallback := interfaceFallback(left, op, right); fallback != nil {
		return fallback(left, right)
	}
	if l, rr, ok := coerce(left, right); ok {
		if fn, ok := r.lookupBinary(l, op, rr); ok {
			return fn(l, rr)
		}
	}
	return false, fmt.Errorf("%w: %q for %T and %T", ErrUnsupportedOperands, op, left, right)
}

func (r *OperatorRegistry) lookupBinary(left any, op Operator, right any) (BinaryOp, bool) {
	key := binaryKey{
		left:  reflect.TypeOf(left),
		op:    op,
		right: reflect.TypeOf(right),
	}
	fn, ok := r.binary[key]
	return fn, ok
}

func compareNull(op Operator, left, right any) bool {
	switch op {
	case OperatorEq:
		return left == nil && right == nil
	case OperatorNe:
		return !(left == nil && right == nil)
	}
	return false
}

// Normalize maps scalar values onto the registry's canonical types.
func Normalize(v any) any {
	v = utils.Indirect(v)
	if v == nil {
		return nil
	}
	if _, ok := v.(time.Time); ok {
		return v
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return float64(u)
		}
		return int64(u)
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

func coerce(left, right any) (any, any, bool) {
	switch l := left.(type) {
	case int64:
		switch rr := right.(type) {
		case float64:
			return float64(l), rr, true
		case string:
			if f, err := cast.ToFloat64E(rr); err == nil {
				return float64(l), f, true
			}
		case bool:
			return l != 0, rr, true
		}
	case float64:
		switch rr := right.(type) {
		case int64:
			return l, float64(rr), true
		case string:
			if f, err := cast.ToFloat64E(rr); err == nil {
				return l, f, true
			}
		case bool:
			return l != 0, rr, true
		}
	case string:
		switch right.(type) {
		case int64, float64:
			if f, err := cast.ToFloat64E(l); err == nil {
				rf, _ := cast.ToFloat64E(right)
				return f, rf, true
			}
		case bool:
			if b, err := cast.ToBoolE(l); err == nil {
				return b, right, true
			}
		}
	case bool:
		if b, err := cast.ToBoolE(right); err == nil {
			return l, b, true
		}
	}
	ls, errL := cast.ToStringE(left)
	rs, errR := cast.ToStringE(right)
	if errL != nil || errR != nil {
		return nil, nil, false
	}
	return ls, rs, true
}

func execLogical(op Operator, left, right any, fn func(l, r bool) bool) (bool, error) {
	l, err := toBool(op, left)
	if err != nil {
		return false, err
	}
	r, err := toBool(op, right)
	if err != nil {
		return false, err
	}
	return fn(l, r), nil
}

func toBool(op Operator, v any) (bool, error) {
	if v == nil {
		return false, nil
	}
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("%w: %q requires bool, got %T", ErrUnsupportedOperands, op, v)
}

func interfaceFallback(left any, op Operator, right any) BinaryOp {
	switch op {
	case OperatorEq, OperatorNe:
		l, ok := left.(EqualOperand)
		if !ok {
			return nil
		}
		return func(_, right any) (bool, error) {
			r, ok := right.(EqualOperand)
			if !ok {
				return false, fmt.Errorf("right operand %T does not implement EqualOperand", right)
			}
			if op == OperatorNe {
				return !l.Equal(r), nil
			}
			return l.Equal(r), nil
		}
	case OperatorGt:
		l, ok := left.(GreaterThanOperand)
		if !ok {
			return nil
		}
		return func(_, right any) (bool, error) {
			r, ok := right.(GreaterThanOperand)
			if !ok {
				return false, fmt.Errorf("right operand %T does not implement GreaterThanOperand", right)
			}
			return l.GreaterThan(r), nil
		}
	case OperatorGte:
		l, ok := left.(GreaterThanEqualOperand)
		if !ok {
			return nil
		}
		return func(_, right any) (bool, error) {
			r, ok := right.(GreaterThanEqualOperand)
			if !ok {
				return false, fmt.Errorf("right operand %T does not implement GreaterThanEqualOperand", right)
			}
			return l.GreaterThanEqual(r), nil
		}
	case OperatorLt:
		l, ok := left.(LessThanOperand)
		if !ok {
			return nil
		}
		return func(_, right any) (bool, error) {
			r, ok := right.(LessThanOperand)
			if !ok {
				return false, fmt.Errorf("right operand %T does not implement LessThanOperand", right)
			}
			return l.LessThan(r), nil
		}
	case OperatorLte:
		l, ok := left.(LessThanEqualOperand)
		if !ok {
			return nil
		}
		return func(_, right any) (bool, error) {
			r, ok := right.(LessThanEqualOperand)
			if !ok {
				return false, fmt.Errorf("right operand %T does not implement LessThanEqualOperand", right)
			}
			return l.LessThanEqual(r), nil
		}
	}
	return nil
}
