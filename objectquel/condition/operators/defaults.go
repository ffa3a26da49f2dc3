package operators

import (
	"cmp"
	"time"
)

func registerComparison[T cmp.Ordered](reg *OperatorRegistry) {
	RegisterBinary[T, T](reg, OperatorEq, func(a, b T) (bool, error) { return a == b, nil })
	RegisterBinary[T, T](reg, OperatorNe, func(a, b T) (bool, error) { return a != b, nil })
	RegisterBinary[T, T](reg, OperatorGt, func(a, b T) (bool, error) { return a > b, nil })
	RegisterBinary[T, T](reg, OperatorGte, func(a, b T) (bool, error) { return a >= b, nil })
	RegisterBinary[T, T](reg, OperatorLt, func(a, b T) (bool, error) { return a < b, nil })
	RegisterBinary[T, T](reg, OperatorLte, func(a, b T) (bool, error) { return a <= b, nil })
}

// NewDefaultRegistry creates a registry for the normalized scalar types the
// evaluator works with: int64, float64, string, bool and time.Time.
func NewDefaultRegistry() *OperatorRegistry {
	reg := NewOperatorRegistry()

	RegisterBinary[bool, bool](reg, OperatorEq, func(a, b bool) (bool, error) { return a == b, nil })
	RegisterBinary[bool, bool](reg, OperatorNe, func(a, b bool) (bool, error) { return a != b, nil })

	registerComparison[int64](reg)
	registerComparison[float64](reg)
	registerComparison[string](reg)

	RegisterBinary[time.Time, time.Time](reg, OperatorEq, func(a, b time.Time) (bool, error) { return a.Equal(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorNe, func(a, b time.Time) (bool, error) { return !a.Equal(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorGt, func(a, b time.Time) (bool, error) { return a.After(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorGte, func(a, b time.Time) (bool, error) { return !a.Before(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorLt, func(a, b time.Time) (bool, error) { return a.Before(b), nil })
	RegisterBinary[time.Time, time.Time](reg, OperatorLte, func(a, b time.Time) (bool, error) { return !a.After(b), nil })

	return reg
}
