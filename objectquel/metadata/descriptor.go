package metadata

import "reflect"

type RelationKind string

const (
	OneToOne  RelationKind = "OneToOne"
	ManyToOne RelationKind = "ManyToOne"
	OneToMany RelationKind = "OneToMany"
)

type FetchMode string

const (
	Eager FetchMode = "EAGER"
	Lazy  FetchMode = "LAZY"
)

type Column struct {
	Property string
	Column   string
}

// Relation describes one relationship declared on an entity property.
//
// RelationColumn is the property on the declaring entity that holds the foreign
// key value. InversedBy names the target property that key refers to and is set
// on the owning side; MappedBy is set on the inverse (non-owning) side. A
// ManyToOne may leave InversedBy empty to refer to the target identifier.
type Relation struct {
	Kind           RelationKind
	Property       string
	TargetEntity   string
	RelationColumn string
	InversedBy     string
	MappedBy       string
	Fetch          FetchMode
	Cascade        *Cascade
}

func (r Relation) AnnotationName() string {
	return string(r.Kind)
}

func (r Relation) IsLazy() bool {
	return r.Fetch == Lazy
}

// IsBidirectional reports whether a OneToOne relation declares the referenced
// property of its target.
func (r Relation) IsBidirectional() bool {
	return r.InversedBy != ""
}

func (r Relation) IsInverseSide() bool {
	return r.MappedBy != ""
}

type EntityDescriptor struct {
	Name        string
	Table       string
	Type        reflect.Type
	Identifiers []string
	Columns     []Column
	Relations   []Relation
}

// ColumnMap returns property name to column name.
func (d *EntityDescriptor) ColumnMap() map[string]string {
	result := make(map[string]string, len(d.Columns))
	for _, c := range d.Columns {
		result[c.Property] = c.Column
	}
	return result
}

func (d *EntityDescriptor) ColumnOf(property string) (string, bool) {
	for _, c := range d.Columns {
		if c.Property == property {
			return c.Column, true
		}
	}
	return "", false
}

func (d *EntityDescriptor) PropertyOf(column string) (string, bool) {
	for _, c := range d.Columns {
		if c.Column == column {
			return c.Property, true
		}
	}
	return "", false
}

func (d *EntityDescriptor) IsIdentifier(property string) bool {
	for _, id := range d.Identifiers {
		if id == property {
			return true
		}
	}
	return false
}

func (d *EntityDescriptor) RelationsOf(kind RelationKind) []Relation {
	var result []Relation
	for _, r := range d.Relations {
		if r.Kind == kind {
			result = append(result, r)
		}
	}
	return result
}
