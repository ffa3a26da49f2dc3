package unitofwork

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/proxy"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

// CascadePersist tracks every new entity reachable from a tracked entity
// through a OneToMany collection or an inverse OneToOne relation declaring
// the persist cascade. Unloaded collections and references are skipped.
func (u *UnitOfWork) CascadePersist() error {
	for _, e := range u.identityMap.Entities() {
		if _, removed := u.removals[e]; removed {
			continue
		}
		if err := u.cascadePersist(e); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnitOfWork) cascadePersist(entity any) error {
	d, err := u.descriptorOf(entity)
	if err != nil {
		return err
	}
	oneToMany, err := u.store.OneToManyDependencies(d.Name)
	if err != nil {
		return err
	}
	for _, r := range oneToMany {
		if r.Cascade == nil || !r.Cascade.Has(metadata.CascadePersist) {
			continue
		}
		value, err := u.accessor.Get(entity, r.Property)
		if err != nil {
			return err
		}
		members, loaded := proxy.Members(value)
		if !loaded {
			continue
		}
		for _, member := range members {
			if err := u.cascadeTo(member); err != nil {
				return err
			}
		}
	}

	oneToOne, err := u.store.OneToOneDependencies(d.Name)
	if err != nil {
		return err
	}
	for _, r := range oneToOne {
		if !r.IsInverseSide() || r.Cascade == nil || !r.Cascade.Has(metadata.CascadePersist) {
			continue
		}
		value, err := u.accessor.Get(entity, r.Property)
		if err != nil {
			return err
		}
		if related, ok := proxy.Resolve(value); ok {
			if err := u.cascadeTo(related); err != nil {
				return err
			}
		}
	}
	return nil
}

func (u *UnitOfWork) cascadeTo(entity any) error {
	if !trackable(entity) || u.identityMap.Has(entity) {
		return nil
	}
	if !u.PersistNew(entity) {
		return nil
	}
	return u.cascadePersist(entity)
}

// ScheduleForDelete marks entity for deletion on the next commit, then marks
// the dependents whose relation to it cascades removal in the application.
// Dependents are the tracked ones plus those the DependentFinder returns.
// Entities are marked before recursing, so cyclic graphs terminate.
func (u *UnitOfWork) ScheduleForDelete(ctx context.Context, entity any) error {
	return u.scheduleForDelete(ctx, entity, nil)
}

func (u *UnitOfWork) scheduleForDelete(ctx context.Context, entity any, from any) error {
	if !trackable(entity) {
		return errors.Wrapf(ErrNotManaged, "%T", entity)
	}
	if _, ok := u.removals[entity]; ok {
		if from != nil {
			u.cascadedFrom[entity] = append(u.cascadedFrom[entity], from)
		}
		return nil
	}
	if !u.identityMap.Has(entity) {
		if !u.store.Exists(entity) {
			return errors.Wrapf(ErrNotManaged, "%T", entity)
		}
		if err := u.PersistExisting(entity); err != nil {
			return err
		}
		if !u.identityMap.Has(entity) {
			return errors.Wrapf(ErrNotManaged, "%T", entity)
		}
	}
	u.removals[entity] = struct{}{}
	u.removalOrder = append(u.removalOrder, entity)
	if from != nil {
		u.cascadedFrom[entity] = append(u.cascadedFrom[entity], from)
	}

	dependents, err := u.cascadeDeleteDependents(ctx, entity)
	if err != nil {
		return err
	}
	for _, dependent := range dependents {
		if err := u.scheduleForDelete(ctx, dependent, entity); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnitOfWork) cascadeDeleteDependents(ctx context.Context, entity any) ([]any, error) {
	d, err := u.descriptorOf(entity)
	if err != nil {
		return nil, err
	}
	dependentNames, err := u.store.DependentEntities(d.Name)
	if err != nil {
		return nil, err
	}

	var result []any
	seen := make(map[any]struct{})
	collect := func(e any) {
		if _, ok := seen[e]; !ok && e != entity {
			seen[e] = struct{}{}
			result = append(result, e)
		}
	}
	for _, dependentName := range dependentNames {
		dd, err := u.store.Descriptor(dependentName)
		if err != nil {
			return nil, err
		}
		relations, err := u.parentRelations(dd)
		if err != nil {
			return nil, err
		}
		annotations, err := u.store.Annotations(dependentName)
		if err != nil {
			return nil, err
		}
		for _, r := range relations {
			if r.TargetEntity != d.Name {
				continue
			}
			cascade, ok := metadata.CascadeOf(annotations[r.Property])
			if !ok || !cascade.Has(metadata.CascadeRemove) || !cascade.AppliesInApplication() {
				continue
			}
			referenced, err := u.accessor.Get(entity, r.InversedBy)
			if err != nil {
				return nil, err
			}
			referenced = utils.Indirect(referenced)

			for _, candidate := range u.identityMap.EntitiesOf(dependentName) {
				refers, err := u.refersTo(candidate, r, entity, referenced)
				if err != nil {
					return nil, err
				}
				if refers {
					collect(candidate)
				}
			}
			if u.finder == nil || utils.IsEmptyKey(referenced) {
				continue
			}
			found, err := u.finder.FindBy(ctx, dependentName, map[string]any{r.RelationColumn: referenced})
			if err != nil {
				return nil, errors.Wrapf(err, "find %s dependents of %s", dependentName, d.Name)
			}
			for _, e := range found {
				collect(e)
			}
		}
	}
	return result, nil
}

// refersTo reports whether candidate points at parent through r, either by
// holding it or by its foreign key value.
func (u *UnitOfWork) refersTo(candidate any, r metadata.Relation, parent, referenced any) (bool, error) {
	value, err := u.accessor.Get(candidate, r.Property)
	if err != nil {
		return false, err
	}
	if related, ok := proxy.Resolve(value); ok {
		return related == parent, nil
	}
	if r.RelationColumn == "" || utils.IsEmptyKey(referenced) {
		return false, nil
	}
	fk, err := u.accessor.Get(candidate, r.RelationColumn)
	if err != nil {
		return false, err
	}
	return sameKey(fk, referenced), nil
}

// sameKey compares key values loosely: 5 and int64(5) are the same key.
func sameKey(a, b any) bool {
	a, b = utils.Indirect(a), utils.Indirect(b)
	if a == nil || b == nil {
		return false
	}
	as, errA := cast.ToStringE(a)
	bs, errB := cast.ToStringE(b)
	return errA == nil && errB == nil && as == bs
}
