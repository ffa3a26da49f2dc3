package entitymanager

import (
	"context"
	"reflect"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/krew-solutions/objectquel-go/objectquel/condition"
	"github.com/krew-solutions/objectquel-go/objectquel/config"
	"github.com/krew-solutions/objectquel-go/objectquel/logging"
	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/session"
	"github.com/krew-solutions/objectquel-go/objectquel/unitofwork"
)

// QueryExecutor runs an ObjectQuel query. Rows are keyed "alias.property".
type QueryExecutor interface {
	Execute(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// EntityManager is the entry point of one session: it loads entities into a
// unit of work and writes them back on Flush.
//
// It is not safe for concurrent use.
type EntityManager struct {
	store     *metadata.Store
	uow       *unitofwork.UnitOfWork
	executor  QueryExecutor
	hydrator  *hydrator
	evaluator *condition.Evaluator
	logger    *zap.Logger
}

func New(store *metadata.Store, s session.TxSession, executor QueryExecutor, opts ...Option) *EntityManager {
	o := &options{
		evaluator: condition.NewEvaluator(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	uowOpts := append([]unitofwork.Option{unitofwork.WithLogger(o.logger)}, o.unitOfWork...)
	em := &EntityManager{
		store:     store,
		uow:       unitofwork.New(store, s, uowOpts...),
		executor:  executor,
		evaluator: o.evaluator,
	}
	em.logger = o.logger.With(zap.String("uow", em.uow.ID().String()))
	em.hydrator = newHydrator(em)
	em.uow.SetDependentFinder(em)
	return em
}

// Open is New with the logger built from cfg.Log. A WithLogger option still
// takes precedence.
func Open(store *metadata.Store, s session.TxSession, executor QueryExecutor, cfg config.Config, opts ...Option) (*EntityManager, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return New(store, s, executor, append([]Option{WithLogger(logger)}, opts...)...), nil
}

func (em *EntityManager) UnitOfWork() *unitofwork.UnitOfWork {
	return em.uow
}

// Persist schedules a new entity for insertion on the next Flush.
func (em *EntityManager) Persist(entity any) error {
	name, err := em.store.EntityName(entity)
	if err != nil {
		return err
	}
	if reflect.ValueOf(entity).Kind() != reflect.Ptr {
		return errors.Wrapf(unitofwork.ErrNotManaged, "%s must be passed by pointer", name)
	}
	if !em.uow.PersistNew(entity) && !em.uow.IsTracked(entity) {
		return errors.Wrapf(unitofwork.ErrIdentityConflict, "%s", name)
	}
	return nil
}

// Flush commits the pending changes, of the given entities only if any.
func (em *EntityManager) Flush(ctx context.Context, entities ...any) error {
	return em.uow.Commit(ctx, entities...)
}

// Remove schedules entity and its cascaded dependents for deletion.
func (em *EntityManager) Remove(ctx context.Context, entity any) error {
	return em.uow.ScheduleForDelete(ctx, entity)
}

func (em *EntityManager) Detach(entity any) {
	em.uow.Detach(entity)
}

func (em *EntityManager) Clear() {
	em.uow.Clear()
}

// Find returns the entity with the given primary key, from the unit of work
// when it is tracked and from the query executor otherwise.
func (em *EntityManager) Find(ctx context.Context, entityName string, primaryKeys map[string]any) (any, error) {
	d, err := em.store.Descriptor(entityName)
	if err != nil {
		return nil, err
	}
	for _, id := range d.Identifiers {
		if _, ok := primaryKeys[id]; !ok {
			return nil, errors.Wrapf(ErrIncompletePrimaryKey, "%s needs %s", d.Name, id)
		}
	}
	if tracked := em.uow.FindEntity(d.Name, primaryKeys); tracked != nil {
		return tracked, nil
	}
	q, err := em.hydrator.ranges.PrepareQuery(d.Name, d.Identifiers)
	if err != nil {
		return nil, err
	}
	found, err := em.load(ctx, d, q, d.Identifiers, primaryKeys)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s %v", d.Name, primaryKeys)
	}
	return found[0], nil
}

// FindBy returns the entities whose properties equal criteria. A criteria
// holding the full primary key of a tracked entity is answered from the unit
// of work.
func (em *EntityManager) FindBy(ctx context.Context, entityName string, criteria map[string]any) ([]any, error) {
	d, err := em.store.Descriptor(entityName)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		if _, ok := d.ColumnOf(k); !ok {
			return nil, &metadata.MetadataError{Entity: d.Name, Reason: "no column for criteria " + k, Err: metadata.ErrInvalidEntity}
		}
		keys = append(keys, k)
	}

	if tracked := em.trackedByKey(d, criteria); tracked != nil {
		row, err := em.hydrator.row(tracked, d)
		if err != nil {
			return nil, err
		}
		ok, err := em.evaluator.Matches(em.filter(keys), row, criteria)
		if err != nil || !ok {
			return nil, err
		}
		return []any{tracked}, nil
	}

	q, err := em.hydrator.ranges.PrepareCriteriaQuery(d.Name, keys)
	if err != nil {
		return nil, err
	}
	return em.load(ctx, d, q, keys, criteria)
}

func (em *EntityManager) trackedByKey(d *metadata.EntityDescriptor, criteria map[string]any) any {
	pk := make(map[string]any, len(d.Identifiers))
	for _, id := range d.Identifiers {
		v, ok := criteria[id]
		if !ok {
			return nil
		}
		pk[id] = v
	}
	return em.uow.FindEntity(d.Name, pk)
}

func (em *EntityManager) filter(keys []string) condition.Node {
	return condition.Criteria(mainAlias, sortedCopy(keys))
}

func (em *EntityManager) load(ctx context.Context, d *metadata.EntityDescriptor, q string, keys []string, params map[string]any) ([]any, error) {
	em.logger.Debug("query", zap.String("entity", d.Name), zap.String("query", q))
	rows, err := em.executor.Execute(ctx, q, params)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", d.Name)
	}
	filter := em.filter(keys)
	var matching []map[string]any
	for _, row := range rows {
		ok, err := em.evaluator.Matches(filter, row, params)
		if err != nil {
			return nil, err
		}
		if ok {
			matching = append(matching, row)
		}
	}
	return em.hydrator.hydrate(d, matching)
}

// Find is the typed form of EntityManager.Find; T is a pointer to an entity.
func Find[T any](ctx context.Context, em *EntityManager, primaryKeys map[string]any) (T, error) {
	var zero T
	name, err := entityNameOf[T](em.store)
	if err != nil {
		return zero, err
	}
	found, err := em.Find(ctx, name, primaryKeys)
	if err != nil {
		return zero, err
	}
	entity, ok := found.(T)
	if !ok {
		return zero, errors.Errorf("entitymanager: found %T, want %T", found, zero)
	}
	return entity, nil
}

// FindBy is the typed form of EntityManager.FindBy.
func FindBy[T any](ctx context.Context, em *EntityManager, criteria map[string]any) ([]T, error) {
	name, err := entityNameOf[T](em.store)
	if err != nil {
		return nil, err
	}
	found, err := em.FindBy(ctx, name, criteria)
	if err != nil {
		return nil, err
	}
	result := make([]T, 0, len(found))
	for _, e := range found {
		entity, ok := e.(T)
		if !ok {
			var zero T
			return nil, errors.Errorf("entitymanager: found %T, want %T", e, zero)
		}
		result = append(result, entity)
	}
	return result, nil
}

func entityNameOf[T any](store *metadata.Store) (string, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Ptr {
		return "", &metadata.MetadataError{Entity: t.String(), Reason: "entities are pointers", Err: metadata.ErrInvalidEntity}
	}
	return store.EntityName(reflect.New(t.Elem()).Interface())
}
