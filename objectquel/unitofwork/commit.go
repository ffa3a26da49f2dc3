package unitofwork

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/krew-solutions/objectquel-go/objectquel/identitymap"
	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/persister"
	"github.com/krew-solutions/objectquel-go/objectquel/proxy"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

type assignment struct {
	entity   any
	property string
	previous any
}

// commitWork collects what a commit did, to finish or undo it.
type commitWork struct {
	changed     []any
	deleted     []any
	assignments []assignment
}

// Commit writes the changes of the tracked entities, or of the given
// entities only, in one transaction. New entities reachable through persist
// cascades are tracked first. Inserts and updates run in dependency order,
// deletions after them in reverse dependency order. On failure the
// transaction is rolled back and the entities keep their tracked state.
func (u *UnitOfWork) Commit(ctx context.Context, entities ...any) error {
	if err := u.CascadePersist(); err != nil {
		return err
	}
	order, deletions, err := u.workingSet(entities)
	if err != nil {
		return err
	}
	if len(order) == 0 && len(deletions) == 0 {
		return nil
	}

	u.logger.Debug("commit started", zap.Int("entities", len(order)), zap.Int("deletions", len(deletions)))
	if err := u.session.BeginTransaction(ctx); err != nil {
		return errors.Wrap(err, "unable to start transaction")
	}

	w := &commitWork{}
	if err := u.write(order, deletions, w); err != nil {
		u.undo(w)
		if txErr := u.session.RollbackTransaction(ctx); txErr != nil {
			err = multierror.Append(err, txErr)
		}
		fields := []zap.Field{zap.Error(err)}
		var persistenceErr *PersistenceError
		if errors.As(err, &persistenceErr) {
			fields = append(fields,
				zap.String("entity", persistenceErr.Entity),
				zap.String("operation", string(persistenceErr.Operation)))
		}
		u.logger.Warn("commit rolled back", fields...)
		return err
	}
	if err := u.session.CommitTransaction(ctx); err != nil {
		u.undo(w)
		u.logger.Warn("commit failed", zap.Error(err))
		return errors.Wrap(err, "failed to commit transaction")
	}

	u.afterCommit(w)
	u.logger.Debug("commit finished", zap.Int("written", len(w.changed)), zap.Int("deleted", len(w.deleted)))
	return nil
}

func (u *UnitOfWork) workingSet(entities []any) (order, deletions []any, err error) {
	if len(entities) == 0 {
		order, err = u.ScheduleEntities()
		if err != nil {
			return nil, nil, err
		}
		deletions, err = u.deletionOrder()
		return order, deletions, err
	}

	requested := make(map[any]struct{}, len(entities))
	var candidates []any
	for _, e := range entities {
		if !trackable(e) {
			continue
		}
		if _, dup := requested[e]; dup || !u.identityMap.Has(e) {
			continue
		}
		requested[e] = struct{}{}
		if _, removed := u.removals[e]; !removed && proxy.IsInitialized(e) {
			candidates = append(candidates, e)
		}
	}
	order, err = u.schedule(candidates)
	if err != nil {
		return nil, nil, err
	}
	all, err := u.deletionOrder()
	if err != nil {
		return nil, nil, err
	}
	for _, e := range all {
		if _, ok := requested[e]; ok {
			deletions = append(deletions, e)
		}
	}
	return order, deletions, nil
}

func (u *UnitOfWork) write(order, deletions []any, w *commitWork) error {
	for _, e := range order {
		d, err := u.descriptorOf(e)
		if err != nil {
			return err
		}
		if err := u.copyParentKeys(e, d, w); err != nil {
			return err
		}
		state, err := u.state(e)
		if err != nil {
			return err
		}
		switch state {
		case StateNew:
			err = u.insert(e, d, w)
		case StateDirty:
			err = u.update(e, d, w)
		}
		if err != nil {
			return err
		}
	}
	for _, e := range deletions {
		d, err := u.descriptorOf(e)
		if err != nil {
			return err
		}
		if err := u.delete(e, d, w); err != nil {
			return err
		}
	}
	return nil
}

// copyParentKeys copies the key of every loaded parent into the foreign key
// property referencing it. Parents are written first, so generated keys are
// known by now.
func (u *UnitOfWork) copyParentKeys(entity any, d *metadata.EntityDescriptor, w *commitWork) error {
	relations, err := u.parentRelations(d)
	if err != nil {
		return err
	}
	for _, r := range relations {
		if r.RelationColumn == "" || r.InversedBy == "" {
			continue
		}
		value, err := u.accessor.Get(entity, r.Property)
		if err != nil {
			return err
		}
		parent, ok := proxy.Resolve(value)
		if !ok {
			continue
		}
		key, err := u.accessor.Get(parent, r.InversedBy)
		if err != nil {
			return err
		}
		if utils.IsEmptyKey(key) {
			continue
		}
		current, err := u.accessor.Get(entity, r.RelationColumn)
		if err != nil {
			return err
		}
		if sameKey(current, key) {
			continue
		}
		if err := u.assign(entity, r.RelationColumn, key, w); err != nil {
			return err
		}
	}
	return nil
}

func (u *UnitOfWork) insert(entity any, d *metadata.EntityDescriptor, w *commitWork) error {
	u.publish(PrePersist, d.Name, entity)
	row, err := u.serializer.Serialize(entity, d)
	if err != nil {
		return err
	}
	generated, err := u.persister.Insert(u.session, d, row)
	if err != nil {
		return &PersistenceError{Entity: d.Name, Operation: OperationInsert, Err: err}
	}
	if generated != nil && len(d.Identifiers) == 1 {
		if err := u.assign(entity, d.Identifiers[0], generated, w); err != nil {
			return &PersistenceError{Entity: d.Name, Operation: OperationInsert, Err: err}
		}
	}
	w.changed = append(w.changed, entity)
	u.publish(PostPersist, d.Name, entity)
	return nil
}

func (u *UnitOfWork) update(entity any, d *metadata.EntityDescriptor, w *commitWork) error {
	row, err := u.serializer.Serialize(entity, d)
	if err != nil {
		return err
	}
	snapshot, _ := u.identityMap.Snapshot(entity)
	if keys := persister.ChangedKeys(d, row, snapshot); len(keys) > 0 {
		return &PersistenceError{
			Entity:    d.Name,
			Operation: OperationUpdate,
			Err:       errors.Wrapf(persister.ErrPrimaryKeyChanged, "%v", keys),
		}
	}
	u.publish(PreUpdate, d.Name, entity)
	if err := u.persister.Update(u.session, d, row, snapshot); err != nil {
		return &PersistenceError{Entity: d.Name, Operation: OperationUpdate, Err: err}
	}
	w.changed = append(w.changed, entity)
	u.publish(PostUpdate, d.Name, entity)
	return nil
}

func (u *UnitOfWork) delete(entity any, d *metadata.EntityDescriptor, w *commitWork) error {
	u.publish(PreRemove, d.Name, entity)
	row, err := u.serializer.Serialize(entity, d)
	if err != nil {
		return err
	}
	if err := u.persister.Delete(u.session, d, row); err != nil {
		return &PersistenceError{Entity: d.Name, Operation: OperationDelete, Err: err}
	}
	w.deleted = append(w.deleted, entity)
	u.publish(PostRemove, d.Name, entity)
	return nil
}

func (u *UnitOfWork) assign(entity any, property string, value any, w *commitWork) error {
	previous, err := u.accessor.Get(entity, property)
	if err != nil {
		return err
	}
	if err := u.accessor.Set(entity, property, value); err != nil {
		return err
	}
	w.assignments = append(w.assignments, assignment{entity: entity, property: property, previous: previous})
	return nil
}

// undo restores the properties assigned during a failed commit, latest first.
func (u *UnitOfWork) undo(w *commitWork) {
	for i := len(w.assignments) - 1; i >= 0; i-- {
		a := w.assignments[i]
		if err := u.accessor.Set(a.entity, a.property, a.previous); err != nil {
			u.logger.Error("cannot restore property", zap.String("property", a.property), zap.Error(err))
		}
	}
}

// afterCommit re-indexes and re-snapshots the written entities and forgets
// the deleted ones.
func (u *UnitOfWork) afterCommit(w *commitWork) {
	for _, e := range w.changed {
		name, err := u.identityMap.EntityName(e)
		if err != nil {
			continue
		}
		if err := u.refresh(name, e); err != nil {
			u.logger.Error("cannot refresh entity", zap.String("entity", name), zap.Error(err))
		}
	}
	for _, e := range w.deleted {
		u.Detach(e)
	}
}

func (u *UnitOfWork) refresh(name string, entity any) error {
	d, err := u.store.Descriptor(name)
	if err != nil {
		return err
	}
	keys, err := u.serializer.PrimaryKeys(entity, d)
	if err != nil {
		return err
	}
	snapshot, err := u.serializer.Serialize(entity, d)
	if err != nil {
		return err
	}
	u.identityMap.Index(name, identitymap.CompositeKey(keys), entity)
	u.identityMap.SetSnapshot(entity, snapshot)
	return nil
}

// publish notifies lifecycle observers. Their failures are logged only.
func (u *UnitOfWork) publish(t EventType, name string, entity any) {
	err := u.events.Notify(LifecycleEvent{Type: t, EntityName: name, Entity: entity})
	if err != nil {
		u.logger.Error("lifecycle observer failed",
			zap.String("entity", name), zap.String("event", string(t)), zap.Error(err))
	}
}
