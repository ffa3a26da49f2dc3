package entitymanager

import (
	"context"
	"reflect"
	"sort"

	"github.com/pkg/errors"

	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/property"
	"github.com/krew-solutions/objectquel-go/objectquel/proxy"
	"github.com/krew-solutions/objectquel-go/objectquel/query"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

const mainAlias = query.MainAlias

// hydrator turns "alias.property" rows into tracked entities.
type hydrator struct {
	em       *EntityManager
	store    *metadata.Store
	accessor property.Accessor
	ranges   *query.RangeBuilder
}

func newHydrator(em *EntityManager) *hydrator {
	return &hydrator{
		em:       em,
		store:    em.store,
		accessor: em.uow.Accessor(),
		ranges:   query.NewRangeBuilder(em.store),
	}
}

// hydrate materializes the main entity of every row, once per entity, along
// with the dependents of the eager ranges.
func (h *hydrator) hydrate(d *metadata.EntityDescriptor, rows []map[string]any) ([]any, error) {
	ranges, err := h.ranges.Build(d.Name)
	if err != nil {
		return nil, err
	}
	var result []any
	seen := make(map[any]struct{})
	for _, row := range rows {
		main, _, err := h.materialize(d, mainAlias, row)
		if err != nil {
			return nil, err
		}
		if main == nil {
			continue
		}
		for _, r := range ranges.All() {
			if r.Relation == nil {
				continue
			}
			if err := h.dependent(r, main, row); err != nil {
				return nil, err
			}
		}
		if _, ok := seen[main]; !ok {
			seen[main] = struct{}{}
			result = append(result, main)
		}
	}
	return result, nil
}

// dependent materializes the entity of range r and points its relation at
// main when it was not tracked before.
func (h *hydrator) dependent(r query.Range, main any, row map[string]any) error {
	d, err := h.store.Descriptor(r.Entity)
	if err != nil {
		return err
	}
	entity, created, err := h.materialize(d, r.Alias, row)
	if err != nil || !created {
		return err
	}
	if err := h.accessor.Set(entity, r.Relation.Property, main); err != nil {
		return errors.Wrapf(err, "link %s.%s", d.Name, r.Relation.Property)
	}
	return nil
}

// materialize returns the entity of alias in row: the tracked instance with
// the same primary key, or a new instance registered with the unit of work.
// It returns nil when the row holds no key for alias.
func (h *hydrator) materialize(d *metadata.EntityDescriptor, alias string, row map[string]any) (entity any, created bool, err error) {
	keys := make(map[string]any, len(d.Identifiers))
	for _, id := range d.Identifiers {
		v := row[alias+"."+id]
		if utils.IsEmptyKey(v) {
			return nil, false, nil
		}
		keys[id] = v
	}
	if tracked := h.em.uow.FindEntity(d.Name, keys); tracked != nil {
		return tracked, false, nil
	}

	entity = reflect.New(d.Type).Interface()
	for _, c := range d.Columns {
		v, ok := row[alias+"."+c.Property]
		if !ok {
			continue
		}
		if err := h.accessor.Set(entity, c.Property, v); err != nil {
			return nil, false, errors.Wrapf(err, "hydrate %s", d.Name)
		}
	}
	if err := h.installLoaders(entity, d); err != nil {
		return nil, false, err
	}
	if err := h.em.uow.PersistExisting(entity); err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

// installLoaders makes the proxy-typed relation properties of entity load
// their targets through the manager on demand.
func (h *hydrator) installLoaders(entity any, d *metadata.EntityDescriptor) error {
	relations, err := h.relations(d.Name)
	if err != nil {
		return err
	}
	for _, r := range relations {
		current, err := h.accessor.Get(entity, r.Property)
		if err != nil {
			return err
		}
		var loader any
		switch r.Kind {
		case metadata.ManyToOne, metadata.OneToOne:
			if _, ok := current.(proxy.Reference); !ok || r.IsInverseSide() {
				continue
			}
			loader, err = h.referenceLoader(entity, r)
		case metadata.OneToMany:
			if _, ok := current.(proxy.Elements); !ok {
				continue
			}
			loader, err = h.collectionLoader(entity, d, r)
		}
		if err != nil {
			return err
		}
		if loader == nil {
			continue
		}
		if err := h.accessor.Set(entity, r.Property, loader); err != nil {
			return errors.Wrapf(err, "install loader for %s.%s", d.Name, r.Property)
		}
	}
	return nil
}

func (h *hydrator) referenceLoader(entity any, r metadata.Relation) (any, error) {
	fk, err := h.accessor.Get(entity, r.RelationColumn)
	if err != nil {
		return nil, err
	}
	fk = utils.Indirect(fk)
	if utils.IsEmptyKey(fk) {
		return nil, nil
	}
	target, inversedBy := r.TargetEntity, r.InversedBy
	return proxy.Deferred(func(ctx context.Context) (any, error) {
		found, err := h.em.FindBy(ctx, target, map[string]any{inversedBy: fk})
		if err != nil || len(found) == 0 {
			return nil, err
		}
		return found[0], nil
	}), nil
}

func (h *hydrator) collectionLoader(entity any, d *metadata.EntityDescriptor, r metadata.Relation) (any, error) {
	target, err := h.store.Descriptor(r.TargetEntity)
	if err != nil {
		return nil, err
	}
	relations, err := h.relations(target.Name)
	if err != nil {
		return nil, err
	}
	owning, ok := relationOf(relations, r.MappedBy)
	if !ok {
		return nil, &metadata.MetadataError{
			Entity: d.Name,
			Reason: r.Property + " is mapped by unknown relation " + target.Name + "." + r.MappedBy,
			Err:    metadata.ErrUnresolvedTarget,
		}
	}
	key, err := h.accessor.Get(entity, owning.InversedBy)
	if err != nil {
		return nil, err
	}
	criteria := map[string]any{owning.RelationColumn: utils.Indirect(key)}
	name := target.Name
	return proxy.DeferredCollection(func(ctx context.Context) ([]any, error) {
		return h.em.FindBy(ctx, name, criteria)
	}), nil
}

// row renders the column properties of a tracked entity the way the query
// executor keys them.
func (h *hydrator) row(entity any, d *metadata.EntityDescriptor) (map[string]any, error) {
	result := make(map[string]any, len(d.Columns))
	for _, c := range d.Columns {
		v, err := h.accessor.Get(entity, c.Property)
		if err != nil {
			return nil, err
		}
		result[mainAlias+"."+c.Property] = utils.Indirect(v)
	}
	return result, nil
}

// relations returns the relations of an entity as resolved by the store,
// to-one relations first.
func (h *hydrator) relations(name string) ([]metadata.Relation, error) {
	var result []metadata.Relation
	for _, lookup := range []func(any) ([]metadata.Relation, error){
		h.store.ManyToOneDependencies,
		h.store.OneToOneDependencies,
		h.store.OneToManyDependencies,
	} {
		relations, err := lookup(name)
		if err != nil {
			return nil, err
		}
		result = append(result, relations...)
	}
	return result, nil
}

func relationOf(relations []metadata.Relation, property string) (metadata.Relation, bool) {
	for _, r := range relations {
		if r.Property == property {
			return r, true
		}
	}
	return metadata.Relation{}, false
}

func sortedCopy(keys []string) []string {
	result := append([]string(nil), keys...)
	sort.Strings(result)
	return result
}
