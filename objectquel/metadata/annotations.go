package metadata

import "slices"

// Annotation is a piece of declared metadata attached to a property.
type Annotation interface {
	AnnotationName() string
}

type CascadeOperation string

const (
	CascadePersist CascadeOperation = "persist"
	CascadeRemove  CascadeOperation = "remove"
)

type CascadeStrategy string

const (
	StrategyApplication CascadeStrategy = "application"
	// StrategyDatabase leaves the cascade to the storage engine (ON DELETE CASCADE).
	StrategyDatabase CascadeStrategy = "database"
)

type Cascade struct {
	Operations []CascadeOperation
	Strategy   CascadeStrategy
}

func (c Cascade) AnnotationName() string {
	return "Cascade"
}

func (c Cascade) Has(op CascadeOperation) bool {
	return slices.Contains(c.Operations, op)
}

// AppliesInApplication reports whether the cascade must be carried out by the
// unit of work rather than by the database.
func (c Cascade) AppliesInApplication() bool {
	return c.Strategy != StrategyDatabase
}

type ColumnAnnotation struct {
	Name       string
	Identifier bool
}

func (c ColumnAnnotation) AnnotationName() string {
	return "Column"
}
