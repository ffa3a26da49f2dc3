package metadata

import (
	"reflect"
	"strings"
)

type Named interface {
	EntityName() string
}

// Store is a cache of entity descriptors, registered once at start-up and read
// by the unit of work afterwards.
type Store struct {
	entities   map[string]*EntityDescriptor
	order      []string
	types      map[reflect.Type]string
	aliases    map[string]string
	dependents map[string][]string
}

func NewStore() *Store {
	return &Store{
		entities:   make(map[string]*EntityDescriptor),
		types:      make(map[reflect.Type]string),
		aliases:    make(map[string]string),
		dependents: make(map[string][]string),
	}
}

// Register adds the descriptor of the entity whose Go type is given by prototype.
func (s *Store) Register(prototype any, d EntityDescriptor) error {
	t := structType(reflect.TypeOf(prototype))
	if t == nil {
		return &MetadataError{Entity: d.Name, Reason: "prototype must be a struct or a pointer to struct", Err: ErrInvalidEntity}
	}
	if d.Name == "" {
		d.Name = t.Name()
	}
	if d.Table == "" {
		d.Table = strings.ToLower(d.Name)
	}
	if len(d.Identifiers) == 0 {
		return &MetadataError{Entity: d.Name, Reason: "no identifier declared", Err: ErrInvalidEntity}
	}
	for _, id := range d.Identifiers {
		if _, ok := d.ColumnOf(id); !ok {
			return &MetadataError{Entity: d.Name, Reason: "identifier " + id + " is not a column", Err: ErrInvalidEntity}
		}
	}
	if _, exists := s.entities[d.Name]; exists {
		return &MetadataError{Entity: d.Name, Reason: "already registered", Err: ErrInvalidEntity}
	}
	d.Type = t
	d.Identifiers = append([]string(nil), d.Identifiers...)
	d.Columns = append([]Column(nil), d.Columns...)
	d.Relations = append([]Relation(nil), d.Relations...)
	for i := range d.Relations {
		if d.Relations[i].Fetch == "" {
			d.Relations[i].Fetch = Eager
		}
	}
	s.entities[d.Name] = &d
	s.order = append(s.order, d.Name)
	s.types[t] = d.Name
	s.dependents = make(map[string][]string)
	return nil
}

// RegisterProxy maps a stand-in Go type (a lazy-loading placeholder) onto an
// already registered entity.
func (s *Store) RegisterProxy(prototype any, entityName string) error {
	t := structType(reflect.TypeOf(prototype))
	if t == nil {
		return &MetadataError{Entity: entityName, Reason: "proxy prototype must be a struct or a pointer to struct", Err: ErrInvalidEntity}
	}
	if _, ok := s.entities[entityName]; !ok {
		return unknownEntity(entityName)
	}
	s.types[t] = entityName
	return nil
}

func (s *Store) RegisterAlias(alias, entityName string) error {
	if _, ok := s.entities[entityName]; !ok {
		return unknownEntity(entityName)
	}
	s.aliases[alias] = entityName
	return nil
}

// NormalizeEntityName resolves aliases, pointer markers and package qualifiers
// to the canonical entity name. Unknown names are returned trimmed.
func (s *Store) NormalizeEntityName(name string) string {
	name = strings.TrimLeft(strings.TrimSpace(name), "*")
	if canonical, ok := s.aliases[name]; ok {
		return canonical
	}
	if _, ok := s.entities[name]; ok {
		return name
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		short := name[i+1:]
		if canonical, ok := s.aliases[short]; ok {
			return canonical
		}
		if _, ok := s.entities[short]; ok {
			return short
		}
	}
	return name
}

// EntityName resolves the canonical entity name of an entity instance.
func (s *Store) EntityName(entity any) (string, error) {
	if entity == nil {
		return "", unknownEntity("<nil>")
	}
	if named, ok := entity.(Named); ok {
		name := s.NormalizeEntityName(named.EntityName())
		if _, exists := s.entities[name]; exists {
			return name, nil
		}
	}
	t := structType(reflect.TypeOf(entity))
	if t != nil {
		if name, ok := s.types[t]; ok {
			return name, nil
		}
	}
	return "", unknownEntity(reflect.TypeOf(entity).String())
}

func (s *Store) Exists(entityOrName any) bool {
	_, err := s.Descriptor(entityOrName)
	return err == nil
}

// Descriptor accepts either an entity name or an entity instance.
func (s *Store) Descriptor(entityOrName any) (*EntityDescriptor, error) {
	var name string
	if str, ok := entityOrName.(string); ok {
		name = s.NormalizeEntityName(str)
	} else {
		var err error
		name, err = s.EntityName(entityOrName)
		if err != nil {
			return nil, err
		}
	}
	d, ok := s.entities[name]
	if !ok {
		return nil, unknownEntity(name)
	}
	return d, nil
}

// Entities returns the registered entity names in registration order.
func (s *Store) Entities() []string {
	return append([]string(nil), s.order...)
}

func (s *Store) IdentifierKeys(entityOrName any) ([]string, error) {
	d, err := s.Descriptor(entityOrName)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), d.Identifiers...), nil
}

func (s *Store) ManyToOneDependencies(entityOrName any) ([]Relation, error) {
	return s.dependencies(entityOrName, ManyToOne)
}

func (s *Store) OneToOneDependencies(entityOrName any) ([]Relation, error) {
	return s.dependencies(entityOrName, OneToOne)
}

func (s *Store) OneToManyDependencies(entityOrName any) ([]Relation, error) {
	return s.dependencies(entityOrName, OneToMany)
}

// dependencies returns the relations of the given kind in declaration order,
// with target names normalized. A ManyToOne without InversedBy refers to the
// single identifier of its target.
func (s *Store) dependencies(entityOrName any, kind RelationKind) ([]Relation, error) {
	d, err := s.Descriptor(entityOrName)
	if err != nil {
		return nil, err
	}
	var result []Relation
	for _, r := range d.RelationsOf(kind) {
		target := s.NormalizeEntityName(r.TargetEntity)
		if _, ok := s.entities[target]; !ok {
			return nil, &MetadataError{
				Entity: d.Name,
				Reason: "property " + r.Property + " targets " + r.TargetEntity,
				Err:    ErrUnresolvedTarget,
			}
		}
		r.TargetEntity = target
		if r.Kind == ManyToOne && r.InversedBy == "" {
			ids := s.entities[target].Identifiers
			if len(ids) != 1 {
				return nil, &MetadataError{
					Entity: d.Name,
					Reason: "property " + r.Property + " needs InversedBy, " + target + " has a composite key",
					Err:    ErrUnresolvedTarget,
				}
			}
			r.InversedBy = ids[0]
		}
		result = append(result, r)
	}
	return result, nil
}

// DependentEntities lists, in registration order, the entities declaring a
// ManyToOne or OneToOne relation that targets the given entity.
func (s *Store) DependentEntities(entityOrName any) ([]string, error) {
	d, err := s.Descriptor(entityOrName)
	if err != nil {
		return nil, err
	}
	if cached, ok := s.dependents[d.Name]; ok {
		return append([]string(nil), cached...), nil
	}
	result := []string{}
	for _, name := range s.order {
		for _, r := range s.entities[name].Relations {
			if r.Kind != ManyToOne && r.Kind != OneToOne {
				continue
			}
			if s.NormalizeEntityName(r.TargetEntity) == d.Name {
				result = append(result, name)
				break
			}
		}
	}
	s.dependents[d.Name] = result
	return append([]string(nil), result...), nil
}

// Annotations returns the declared annotations keyed by property name.
func (s *Store) Annotations(entityOrName any) (map[string][]Annotation, error) {
	d, err := s.Descriptor(entityOrName)
	if err != nil {
		return nil, err
	}
	result := make(map[string][]Annotation, len(d.Columns)+len(d.Relations))
	for _, c := range d.Columns {
		result[c.Property] = append(result[c.Property], ColumnAnnotation{
			Name:       c.Column,
			Identifier: d.IsIdentifier(c.Property),
		})
	}
	for _, r := range d.Relations {
		result[r.Property] = append(result[r.Property], r)
		if r.Cascade != nil {
			result[r.Property] = append(result[r.Property], *r.Cascade)
		}
	}
	return result, nil
}

// ClassHasAnnotation is a best-effort check; lookup failures yield false.
func (s *Store) ClassHasAnnotation(entityOrName any, annotationName string) bool {
	annotations, err := s.Annotations(entityOrName)
	if err != nil {
		return false
	}
	for _, list := range annotations {
		for _, a := range list {
			if a.AnnotationName() == annotationName {
				return true
			}
		}
	}
	return false
}

// CascadeOf finds the Cascade annotation among the annotations of a property.
func CascadeOf(annotations []Annotation) (Cascade, bool) {
	for _, a := range annotations {
		if c, ok := a.(Cascade); ok {
			return c, true
		}
	}
	return Cascade{}, false
}

func structType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return t
}
