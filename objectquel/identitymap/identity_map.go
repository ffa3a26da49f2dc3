package identitymap

import (
	"github.com/krew-solutions/objectquel-go/objectquel/serializer"
)

// IdentityMap tracks entity instances so that each row is represented by one
// object per unit of work. Objects are identified by their pointer value.
//
// It is not safe for concurrent use.
type IdentityMap struct {
	objects   map[string]map[any]struct{}
	names     map[any]string
	index     map[string]map[string]any
	snapshots map[any]serializer.Snapshot
	order     []any
}

func New() *IdentityMap {
	m := &IdentityMap{}
	m.Clear()
	return m
}

func (m *IdentityMap) Clear() {
	m.objects = make(map[string]map[any]struct{})
	m.names = make(map[any]string)
	m.index = make(map[string]map[string]any)
	m.snapshots = make(map[any]serializer.Snapshot)
	m.order = nil
}

// Add stores entity in the object table of entityName. It reports false when
// the entity is already tracked.
func (m *IdentityMap) Add(entityName string, entity any) bool {
	if _, ok := m.names[entity]; ok {
		return false
	}
	table, ok := m.objects[entityName]
	if !ok {
		table = make(map[any]struct{})
		m.objects[entityName] = table
	}
	table[entity] = struct{}{}
	m.names[entity] = entityName
	m.order = append(m.order, entity)
	return true
}

// Index points key at entity, replacing any previous index entry of entity.
func (m *IdentityMap) Index(entityName, key string, entity any) {
	idx, ok := m.index[entityName]
	if !ok {
		idx = make(map[string]any)
		m.index[entityName] = idx
	}
	for k, v := range idx {
		if v == entity && k != key {
			delete(idx, k)
		}
	}
	idx[key] = entity
}

// Get returns the entity indexed under key.
func (m *IdentityMap) Get(entityName, key string) (any, error) {
	idx, ok := m.index[entityName]
	if !ok {
		return nil, ErrKeyNotFound
	}
	entity, ok := idx[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return entity, nil
}

func (m *IdentityMap) Has(entity any) bool {
	_, ok := m.names[entity]
	return ok
}

// EntityName returns the entity name entity is tracked under.
func (m *IdentityMap) EntityName(entity any) (string, error) {
	name, ok := m.names[entity]
	if !ok {
		return "", ErrObjectNotFound
	}
	return name, nil
}

// Remove forgets entity, its index entries and its snapshot. Removing an
// untracked entity is a no-op.
func (m *IdentityMap) Remove(entity any) {
	name, ok := m.names[entity]
	if !ok {
		return
	}
	delete(m.names, entity)
	delete(m.objects[name], entity)
	if len(m.objects[name]) == 0 {
		delete(m.objects, name)
	}
	for k, v := range m.index[name] {
		if v == entity {
			delete(m.index[name], k)
		}
	}
	delete(m.snapshots, entity)
	for i, e := range m.order {
		if e == entity {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *IdentityMap) SetSnapshot(entity any, snapshot serializer.Snapshot) {
	m.snapshots[entity] = snapshot
}

func (m *IdentityMap) Snapshot(entity any) (serializer.Snapshot, bool) {
	s, ok := m.snapshots[entity]
	return s, ok
}

// Entities returns every tracked entity in insertion order.
func (m *IdentityMap) Entities() []any {
	return append([]any(nil), m.order...)
}

// EntitiesOf returns the tracked entities of one entity name in insertion order.
func (m *IdentityMap) EntitiesOf(entityName string) []any {
	var result []any
	for _, e := range m.order {
		if m.names[e] == entityName {
			result = append(result, e)
		}
	}
	return result
}

func (m *IdentityMap) Len() int {
	return len(m.order)
}
