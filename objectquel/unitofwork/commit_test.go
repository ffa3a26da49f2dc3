package unitofwork

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/krew-solutions/objectquel-go/objectquel/persister"
	"github.com/krew-solutions/objectquel-go/objectquel/proxy"
	"github.com/krew-solutions/objectquel-go/objectquel/signals"
	"github.com/krew-solutions/objectquel-go/objectquel/utils/testutils"
)

func TestCommitInsertsParentsFirstAndCopiesKeys(t *testing.T) {
	ctx := context.Background()
	u, s, p := newUnitOfWork(t)
	c := &testutils.Customer{Name: "Ann"}
	o := &testutils.Order{Customer: c, Total: 9.5}
	u.PersistNew(o)
	u.PersistNew(c)

	require.NoError(t, u.Commit(ctx))

	assert.Equal(t, []string{"insert Customer", "insert Order"}, p.Log())
	assert.Equal(t, []string{"BEGIN", "COMMIT"}, s.Calls)
	assert.Equal(t, 1, c.Id)
	assert.Equal(t, 2, o.Id)
	assert.Equal(t, 1, o.CustomerId)
	assert.Equal(t, 1, p.Operations[1].Row["customer_id"])
	assert.Same(t, o, u.FindEntity("Order", map[string]any{"Id": 2}))
	assert.Equal(t, StateUnchanged, u.EntityState(c))
	assert.Equal(t, StateUnchanged, u.EntityState(o))
}

func TestCommitWritesDirtyEntitiesOnly(t *testing.T) {
	ctx := context.Background()
	u, _, p := newUnitOfWork(t)
	ann := &testutils.Customer{Id: 1, Name: "Ann"}
	bob := &testutils.Customer{Id: 2, Name: "Bob"}
	require.NoError(t, u.PersistExisting(ann))
	require.NoError(t, u.PersistExisting(bob))

	bob.Name = "Robert"
	assert.Equal(t, StateDirty, u.EntityState(bob))
	require.NoError(t, u.Commit(ctx))
	assert.Equal(t, []string{"update Customer"}, p.Log())
	assert.Equal(t, StateUnchanged, u.EntityState(bob))

	require.NoError(t, u.Commit(ctx))
	assert.Len(t, p.Operations, 1)
}

func TestCommitWithNothingTrackedDoesNotBegin(t *testing.T) {
	u, s, _ := newUnitOfWork(t)
	require.NoError(t, u.Commit(context.Background()))
	assert.Empty(t, s.Calls)
}

func TestCommitCycleWritesNothing(t *testing.T) {
	u, s, p := newUnitOfWork(t)
	a := &testutils.Category{Name: "a"}
	b := &testutils.Category{Name: "b", Parent: a}
	a.Parent = b
	u.PersistNew(a)
	u.PersistNew(b)

	err := u.Commit(context.Background())
	var cycleErr *CycleError
	assert.ErrorAs(t, err, &cycleErr)
	assert.Empty(t, s.Calls)
	assert.Empty(t, p.Operations)
}

func TestCommitGivenEntitiesOnly(t *testing.T) {
	u, _, p := newUnitOfWork(t)
	ann := &testutils.Customer{Name: "Ann"}
	bob := &testutils.Customer{Name: "Bob"}
	u.PersistNew(ann)
	u.PersistNew(bob)

	require.NoError(t, u.Commit(context.Background(), bob, &testutils.Customer{}))
	require.Len(t, p.Operations, 1)
	assert.Equal(t, "Bob", p.Operations[0].Row["name"])
	assert.Equal(t, StateNew, u.EntityState(ann))
	assert.Equal(t, StateUnchanged, u.EntityState(bob))
}

func TestCommitRollsBackOnFailure(t *testing.T) {
	cause := errors.New("constraint violated")
	u, s, p := newUnitOfWork(t)
	p.Err["insert Order"] = cause
	c := &testutils.Customer{Name: "Ann"}
	o := &testutils.Order{Customer: c}
	u.PersistNew(c)
	u.PersistNew(o)

	err := u.Commit(context.Background())
	assert.ErrorIs(t, err, cause)
	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.Equal(t, "Order", persistenceErr.Entity)
	assert.Equal(t, OperationInsert, persistenceErr.Operation)

	assert.Equal(t, []string{"BEGIN", "ROLLBACK"}, s.Calls)
	assert.Equal(t, 0, c.Id)
	assert.Equal(t, 0, o.CustomerId)
	assert.Equal(t, StateNew, u.EntityState(c))
	assert.Nil(t, u.FindEntity("Customer", map[string]any{"Id": 1}))
}

func TestCommitReportsRollbackFailure(t *testing.T) {
	cause := errors.New("constraint violated")
	u, s, p := newUnitOfWork(t)
	p.Err["insert Customer"] = cause
	s.RollbackErr = errors.New("connection lost")
	u.PersistNew(&testutils.Customer{Name: "Ann"})

	err := u.Commit(context.Background())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, s.RollbackErr)
	var persistenceErr *PersistenceError
	assert.ErrorAs(t, err, &persistenceErr)
}

func TestCommitJoinsOuterTransaction(t *testing.T) {
	ctx := context.Background()
	u, s, p := newUnitOfWork(t)
	require.NoError(t, s.BeginTransaction(ctx))
	u.PersistNew(&testutils.Customer{Name: "Ann"})

	require.NoError(t, u.Commit(ctx))
	assert.Equal(t, []string{"BEGIN"}, s.Calls)
	assert.Equal(t, 1, s.TransactionDepth())
	assert.Len(t, p.Operations, 1)

	require.NoError(t, s.CommitTransaction(ctx))
	assert.Equal(t, []string{"BEGIN", "COMMIT"}, s.Calls)
}

func TestCommitCascadesPersist(t *testing.T) {
	u, _, p := newUnitOfWork(t)
	c := &testutils.Customer{Name: "Ann"}
	o := &testutils.Order{Customer: c}
	line := &testutils.OrderLine{Order: proxy.Loaded(o), Sku: "A-1"}
	profile := &testutils.Profile{Customer: c}
	o.Lines = proxy.NewCollection(line)
	c.Orders = []*testutils.Order{o}
	c.Profile = profile
	u.PersistNew(c)

	require.NoError(t, u.Commit(context.Background()))
	assert.Equal(t, []string{"insert Customer", "insert Order", "insert Profile", "insert OrderLine"}, p.Log())
	assert.Equal(t, c.Id, o.CustomerId)
	assert.Equal(t, c.Id, profile.CustomerId)
	assert.Equal(t, o.Id, line.OrderId)
	for _, e := range []any{c, o, line, profile} {
		assert.Equal(t, StateUnchanged, u.EntityState(e))
	}

	require.NoError(t, u.CascadePersist())
	assert.Len(t, u.Entities(), 4)
}

func TestCascadePersistSkipsUnloadedCollections(t *testing.T) {
	u, _, _ := newUnitOfWork(t)
	o := &testutils.Order{Id: 1}
	o.Lines = proxy.LazyCollection(func(context.Context) ([]*testutils.OrderLine, error) {
		t.Fatal("collection must not be loaded")
		return nil, nil
	})
	o.Lines.Add(&testutils.OrderLine{Sku: "pending"})
	require.NoError(t, u.PersistExisting(o))

	require.NoError(t, u.CascadePersist())
	assert.Len(t, u.Entities(), 1)
}

func TestCascadePersistIgnoresOwningSideOneToOne(t *testing.T) {
	u, _, _ := newUnitOfWork(t)
	c := &testutils.Customer{Name: "Ann"}
	profile := &testutils.Profile{Customer: c}
	u.PersistNew(profile)

	require.NoError(t, u.CascadePersist())
	assert.False(t, u.IsTracked(c))
}

func TestLifecycleEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	u, _, _ := newUnitOfWork(t, WithLogger(zap.New(core)))
	var events []EventType
	u.Events().Attach(func(e LifecycleEvent) error {
		events = append(events, e.Type)
		return errors.New("observer failed")
	})

	c := &testutils.Customer{Name: "Ann"}
	u.PersistNew(c)
	require.NoError(t, u.Commit(context.Background()))
	c.Name = "Bob"
	require.NoError(t, u.Commit(context.Background()))
	require.NoError(t, u.ScheduleForDelete(context.Background(), c))
	require.NoError(t, u.Commit(context.Background()))

	assert.Equal(t, []EventType{PrePersist, PostPersist, PreUpdate, PostUpdate, PreRemove, PostRemove}, events)
	failures := logs.FilterMessage("lifecycle observer failed").All()
	require.Len(t, failures, 6)
	assert.Equal(t, u.ID().String(), failures[0].ContextMap()["uow"])
	assert.Equal(t, "Customer", failures[0].ContextMap()["entity"])
	assert.Equal(t, 3, logs.FilterMessage("commit finished").Len())
}

func TestCommitOnSqlite(t *testing.T) {
	ctx := context.Background()
	s := testutils.NewSqliteSession(t, testutils.FixtureDDL...)
	u := New(testutils.NewFixtureStore(), s)
	c := &testutils.Customer{Name: "Ann"}
	o := &testutils.Order{Customer: c, Total: 9.5}
	c.Orders = []*testutils.Order{o}
	u.PersistNew(c)
	require.NoError(t, u.Commit(ctx))

	var customerId int
	require.NoError(t, s.QueryRow("SELECT customer_id FROM orders WHERE id = $1", o.Id).Scan(&customerId))
	assert.Equal(t, c.Id, customerId)

	o.Total = 12
	require.NoError(t, u.Commit(ctx))
	var total float64
	require.NoError(t, s.QueryRow("SELECT total FROM orders WHERE id = $1", o.Id).Scan(&total))
	assert.Equal(t, 12.0, total)

	require.NoError(t, u.ScheduleForDelete(ctx, c))
	assert.True(t, u.IsScheduledForDelete(o))
	require.NoError(t, u.Commit(ctx))
	var n int
	require.NoError(t, s.QueryRow("SELECT (SELECT COUNT(*) FROM orders) + (SELECT COUNT(*) FROM customers)").Scan(&n))
	assert.Equal(t, 0, n)
	assert.Empty(t, u.Entities())
}

func TestCommitRejectsChangedPrimaryKey(t *testing.T) {
	ctx := context.Background()
	s := testutils.NewSqliteSession(t, testutils.FixtureDDL...)
	u := New(testutils.NewFixtureStore(), s)
	c := &testutils.Customer{Name: "Ann"}
	u.PersistNew(c)
	require.NoError(t, u.Commit(ctx))
	oldId := c.Id

	c.Id += 100
	assert.Equal(t, StateDirty, u.EntityState(c))
	err := u.Commit(ctx)
	assert.ErrorIs(t, err, persister.ErrPrimaryKeyChanged)
	var persistenceErr *PersistenceError
	require.ErrorAs(t, err, &persistenceErr)
	assert.Equal(t, OperationUpdate, persistenceErr.Operation)

	assert.Equal(t, StateDirty, u.EntityState(c))
	assert.Same(t, c, u.FindEntity("Customer", map[string]any{"Id": oldId}))
	assert.Nil(t, u.FindEntity("Customer", map[string]any{"Id": c.Id}))
	var n int
	require.NoError(t, s.QueryRow("SELECT COUNT(*) FROM customers WHERE id = $1", oldId).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestLifecycleEventsReachEveryPublisher(t *testing.T) {
	audit := signals.NewSignal[LifecycleEvent]()
	cache := signals.NewSignal[LifecycleEvent]()
	u, _, _ := newUnitOfWork(t, WithPublisher(signals.NewCompositeSignal[LifecycleEvent](audit, cache)))
	var audited, evicted []string
	audit.Attach(func(e LifecycleEvent) error {
		audited = append(audited, string(e.Type)+" "+e.EntityName)
		return nil
	})
	cache.Attach(func(e LifecycleEvent) error {
		if e.Type == PostPersist {
			evicted = append(evicted, e.EntityName)
		}
		return nil
	})

	u.PersistNew(&testutils.Customer{Name: "Ann"})
	require.NoError(t, u.Commit(context.Background()))
	assert.Equal(t, []string{"prePersist Customer", "postPersist Customer"}, audited)
	assert.Equal(t, []string{"Customer"}, evicted)
}
