package unitofwork

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/krew-solutions/objectquel-go/objectquel/identitymap"
	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/persister"
	"github.com/krew-solutions/objectquel-go/objectquel/property"
	"github.com/krew-solutions/objectquel-go/objectquel/serializer"
	"github.com/krew-solutions/objectquel-go/objectquel/session"
	"github.com/krew-solutions/objectquel-go/objectquel/signals"
)

// UnitOfWork tracks the entities of one session and writes their changes in
// a single transaction. Entities are identified by pointer.
//
// It is not safe for concurrent use.
type UnitOfWork struct {
	id          uuid.UUID
	store       *metadata.Store
	session     session.TxSession
	accessor    property.Accessor
	serializer  *serializer.Serializer
	persister   persister.Persister
	finder      DependentFinder
	events      signals.Signal[LifecycleEvent]
	baseLogger  *zap.Logger
	logger      *zap.Logger
	identityMap *identitymap.IdentityMap
	removals    map[any]struct{}
	// removalOrder keeps the order entities were scheduled for deletion in.
	removalOrder []any
	// cascadedFrom maps an entity scheduled by cascade to the entities whose
	// deletion it was cascaded from.
	cascadedFrom map[any][]any
}

func New(store *metadata.Store, s session.TxSession, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		id:          uuid.New(),
		store:       store,
		session:     s,
		accessor:    property.NewReflectAccessor(),
		persister:   persister.NewSQLPersister(),
		events:      signals.NewSignal[LifecycleEvent](),
		baseLogger:  zap.NewNop(),
		identityMap: identitymap.New(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.serializer = serializer.NewSerializer(u.accessor)
	u.logger = u.baseLogger.With(zap.String("uow", u.id.String()))
	u.resetRemovals()
	return u
}

func (u *UnitOfWork) ID() uuid.UUID {
	return u.id
}

func (u *UnitOfWork) Store() *metadata.Store {
	return u.store
}

func (u *UnitOfWork) Session() session.TxSession {
	return u.session
}

func (u *UnitOfWork) Accessor() property.Accessor {
	return u.accessor
}

// Events is the signal lifecycle events are published on.
func (u *UnitOfWork) Events() signals.Signal[LifecycleEvent] {
	return u.events
}

// SetDependentFinder installs the finder after construction, for finders
// that need the unit of work themselves.
func (u *UnitOfWork) SetDependentFinder(finder DependentFinder) {
	u.finder = finder
}

func (u *UnitOfWork) IsTracked(entity any) bool {
	return trackable(entity) && u.identityMap.Has(entity)
}

func (u *UnitOfWork) IsScheduledForDelete(entity any) bool {
	if !trackable(entity) {
		return false
	}
	_, ok := u.removals[entity]
	return ok
}

// Entities returns every tracked entity in the order it was registered.
func (u *UnitOfWork) Entities() []any {
	return u.identityMap.Entities()
}

// PersistExisting tracks an entity loaded from the database and takes its
// snapshot. Unregistered types and tracked entities are ignored.
func (u *UnitOfWork) PersistExisting(entity any) error {
	if !trackable(entity) {
		return nil
	}
	name, err := u.store.EntityName(entity)
	if err != nil || u.identityMap.Has(entity) {
		return nil
	}
	d, err := u.store.Descriptor(name)
	if err != nil {
		return err
	}
	keys, err := u.serializer.PrimaryKeys(entity, d)
	if err != nil {
		return err
	}
	key := identitymap.CompositeKey(keys)
	if other, err := u.identityMap.Get(name, key); err == nil && other != entity {
		return errors.Wrapf(ErrIdentityConflict, "%s %s", name, key)
	}
	snapshot, err := u.serializer.Serialize(entity, d)
	if err != nil {
		return err
	}
	u.identityMap.Add(name, entity)
	u.identityMap.Index(name, key, entity)
	u.identityMap.SetSnapshot(entity, snapshot)
	return nil
}

// PersistNew tracks an entity to be inserted. Entities whose primary key is
// already set are indexed at once, the others after their insert. It
// reports false for tracked entities, unregistered types and key conflicts.
func (u *UnitOfWork) PersistNew(entity any) bool {
	if !trackable(entity) {
		return false
	}
	name, err := u.store.EntityName(entity)
	if err != nil || u.identityMap.Has(entity) {
		return false
	}
	d, err := u.store.Descriptor(name)
	if err != nil {
		return false
	}
	keys, err := u.serializer.PrimaryKeys(entity, d)
	if err != nil {
		return false
	}
	if serializer.HasEmptyKey(keys) {
		u.identityMap.Add(name, entity)
		return true
	}
	key := identitymap.CompositeKey(keys)
	if _, err := u.identityMap.Get(name, key); err == nil {
		return false
	}
	u.identityMap.Add(name, entity)
	u.identityMap.Index(name, key, entity)
	return true
}

// FindEntity returns the tracked entity with the given primary key, or nil.
func (u *UnitOfWork) FindEntity(entityName string, primaryKeys map[string]any) any {
	name := u.store.NormalizeEntityName(entityName)
	entity, err := u.identityMap.Get(name, identitymap.CompositeKey(primaryKeys))
	if err != nil {
		return nil
	}
	return entity
}

// Detach stops tracking entity and forgets its pending deletion.
func (u *UnitOfWork) Detach(entity any) {
	if !trackable(entity) {
		return
	}
	u.identityMap.Remove(entity)
	if _, ok := u.removals[entity]; ok {
		delete(u.removals, entity)
		for i, e := range u.removalOrder {
			if e == entity {
				u.removalOrder = append(u.removalOrder[:i], u.removalOrder[i+1:]...)
				break
			}
		}
	}
	delete(u.cascadedFrom, entity)
}

// Clear forgets every tracked entity, snapshot and pending deletion.
func (u *UnitOfWork) Clear() {
	u.identityMap.Clear()
	u.resetRemovals()
}

func (u *UnitOfWork) resetRemovals() {
	u.removals = make(map[any]struct{})
	u.removalOrder = nil
	u.cascadedFrom = make(map[any][]any)
}

// EntityState classifies entity from its tracked state and current values.
func (u *UnitOfWork) EntityState(entity any) DirtyState {
	state, err := u.state(entity)
	if err != nil {
		u.logger.Warn("cannot classify entity", zap.Error(err))
		return StateNotManaged
	}
	return state
}

func (u *UnitOfWork) state(entity any) (DirtyState, error) {
	if !trackable(entity) {
		return StateNotManaged, nil
	}
	name, err := u.identityMap.EntityName(entity)
	if err != nil {
		return StateNotManaged, nil
	}
	if _, ok := u.removals[entity]; ok {
		return StateDeleted, nil
	}
	snapshot, ok := u.identityMap.Snapshot(entity)
	if !ok {
		return StateNew, nil
	}
	d, err := u.store.Descriptor(name)
	if err != nil {
		return StateNotManaged, err
	}
	keys, err := u.serializer.PrimaryKeys(entity, d)
	if err != nil {
		return StateNotManaged, err
	}
	if serializer.HasEmptyKey(keys) {
		return StateNew, nil
	}
	current, err := u.serializer.Serialize(entity, d)
	if err != nil {
		return StateNotManaged, err
	}
	if current.Equal(snapshot) {
		return StateUnchanged, nil
	}
	return StateDirty, nil
}

func (u *UnitOfWork) descriptorOf(entity any) (*metadata.EntityDescriptor, error) {
	if name, err := u.identityMap.EntityName(entity); err == nil {
		return u.store.Descriptor(name)
	}
	return u.store.Descriptor(entity)
}

// parentRelations returns the relations of d whose target has to be written
// before d: ManyToOne and bidirectional OneToOne ones.
func (u *UnitOfWork) parentRelations(d *metadata.EntityDescriptor) ([]metadata.Relation, error) {
	manyToOne, err := u.store.ManyToOneDependencies(d.Name)
	if err != nil {
		return nil, err
	}
	oneToOne, err := u.store.OneToOneDependencies(d.Name)
	if err != nil {
		return nil, err
	}
	result := manyToOne
	for _, r := range oneToOne {
		if r.IsBidirectional() {
			result = append(result, r)
		}
	}
	return result, nil
}

// trackable reports whether entity can be tracked: only non-nil pointers
// have an identity.
func trackable(entity any) bool {
	if entity == nil {
		return false
	}
	v := reflect.ValueOf(entity)
	return v.Kind() == reflect.Ptr && !v.IsNil()
}
