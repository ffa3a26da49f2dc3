package operators

type Operator string

const (
	// Comparison

	OperatorEq    Operator = "="
	OperatorNe    Operator = "<>"
	OperatorNeAlt Operator = "!="
	OperatorGt    Operator = ">"
	OperatorLt    Operator = "<"
	OperatorGte   Operator = ">="
	OperatorLte   Operator = "<="

	// Logical operators

	OperatorAnd Operator = "AND"
	OperatorOr  Operator = "OR"
)

// IsComparison reports whether op is one of = <> != < > <= >=.
func (op Operator) IsComparison() bool {
	switch op {
	case OperatorEq, OperatorNe, OperatorNeAlt, OperatorGt, OperatorLt, OperatorGte, OperatorLte:
		return true
	}
	return false
}

func (op Operator) IsLogical() bool {
	return op == OperatorAnd || op == OperatorOr
}

// canonical folds the alternative spelling of inequality.
func (op Operator) canonical() Operator {
	if op == OperatorNeAlt {
		return OperatorNe
	}
	return op
}
