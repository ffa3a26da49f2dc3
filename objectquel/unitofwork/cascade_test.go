package unitofwork

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/proxy"
	"github.com/krew-solutions/objectquel-go/objectquel/utils/testutils"
)

type findCall struct {
	entity   string
	criteria map[string]any
}

type finderStub struct {
	calls   []findCall
	results map[string][]any
	err     error
}

func (f *finderStub) FindBy(_ context.Context, entityName string, criteria map[string]any) ([]any, error) {
	f.calls = append(f.calls, findCall{entity: entityName, criteria: criteria})
	if f.err != nil {
		return nil, f.err
	}
	return f.results[entityName], nil
}

func intPtr(v int) *int {
	return &v
}

func TestScheduleForDeleteCascadesToTrackedDependents(t *testing.T) {
	ctx := context.Background()
	u, _, p := newUnitOfWork(t)
	c := &testutils.Customer{Id: 1, Name: "Ann"}
	held := &testutils.Order{Id: 10, CustomerId: 1, Customer: c}
	byKey := &testutils.Order{Id: 11, CustomerId: 1}
	other := &testutils.Order{Id: 12, CustomerId: 2}
	line := &testutils.OrderLine{Id: 100, OrderId: 10, Order: proxy.Loaded(held)}
	profile := &testutils.Profile{Id: 7, CustomerId: 1, Customer: c}
	for _, e := range []any{c, held, byKey, other, line, profile} {
		require.NoError(t, u.PersistExisting(e))
	}

	require.NoError(t, u.ScheduleForDelete(ctx, c))
	for _, e := range []any{c, held, byKey, line} {
		assert.True(t, u.IsScheduledForDelete(e))
		assert.Equal(t, StateDeleted, u.EntityState(e))
	}
	assert.False(t, u.IsScheduledForDelete(other))
	assert.False(t, u.IsScheduledForDelete(profile))

	require.NoError(t, u.Commit(ctx))
	assert.Equal(t, []string{"delete OrderLine", "delete Order", "delete Order", "delete Customer"}, p.Log())
	assert.False(t, u.IsTracked(c))
	assert.False(t, u.IsTracked(line))
	assert.True(t, u.IsTracked(other))
	assert.True(t, u.IsTracked(profile))
}

func TestScheduleForDeleteQueriesFinder(t *testing.T) {
	ctx := context.Background()
	stored := &testutils.Order{Id: 10, CustomerId: 1}
	finder := &finderStub{results: map[string][]any{"Order": {stored}}}
	u, _, p := newUnitOfWork(t, WithDependentFinder(finder))
	c := &testutils.Customer{Id: 1, Name: "Ann"}
	require.NoError(t, u.PersistExisting(c))

	require.NoError(t, u.ScheduleForDelete(ctx, c))
	assert.True(t, u.IsTracked(stored))
	assert.True(t, u.IsScheduledForDelete(stored))
	assert.Equal(t, []findCall{
		{entity: "Order", criteria: map[string]any{"CustomerId": 1}},
		{entity: "OrderLine", criteria: map[string]any{"OrderId": 10}},
	}, finder.calls)

	require.NoError(t, u.Commit(ctx))
	assert.Equal(t, []string{"delete Order", "delete Customer"}, p.Log())
}

func TestScheduleForDeleteFinderFailure(t *testing.T) {
	cause := errors.New("connection lost")
	u, _, _ := newUnitOfWork(t, WithDependentFinder(&finderStub{err: cause}))
	c := &testutils.Customer{Id: 1}
	require.NoError(t, u.PersistExisting(c))

	assert.ErrorIs(t, u.ScheduleForDelete(context.Background(), c), cause)
}

func TestScheduleForDeleteSelfReferencing(t *testing.T) {
	ctx := context.Background()
	u, _, p := newUnitOfWork(t)
	root := &testutils.Category{Id: 1, Name: "root"}
	child := &testutils.Category{Id: 2, ParentId: intPtr(1), Parent: root, Name: "child"}
	leaf := &testutils.Category{Id: 3, ParentId: intPtr(2), Name: "leaf"}
	for _, e := range []any{leaf, child, root} {
		require.NoError(t, u.PersistExisting(e))
	}

	require.NoError(t, u.ScheduleForDelete(ctx, root))
	assert.True(t, u.IsScheduledForDelete(child))
	assert.True(t, u.IsScheduledForDelete(leaf))

	require.NoError(t, u.Commit(ctx))
	require.Len(t, p.Operations, 3)
	assert.EqualValues(t, 3, p.Operations[0].Row["id"])
	assert.EqualValues(t, 2, p.Operations[1].Row["id"])
	assert.EqualValues(t, 1, p.Operations[2].Row["id"])
}

func TestScheduleForDeleteTerminatesOnCycles(t *testing.T) {
	ctx := context.Background()
	u, _, p := newUnitOfWork(t)
	a := &testutils.Category{Id: 1, ParentId: intPtr(2), Name: "a"}
	b := &testutils.Category{Id: 2, ParentId: intPtr(1), Parent: a, Name: "b"}
	a.Parent = b
	require.NoError(t, u.PersistExisting(a))
	require.NoError(t, u.PersistExisting(b))

	require.NoError(t, u.ScheduleForDelete(ctx, a))
	assert.True(t, u.IsScheduledForDelete(a))
	assert.True(t, u.IsScheduledForDelete(b))

	require.NoError(t, u.Commit(ctx))
	assert.Equal(t, []string{"delete Category", "delete Category"}, p.Log())
	assert.EqualValues(t, 2, p.Operations[0].Row["id"])
	assert.EqualValues(t, 1, p.Operations[1].Row["id"])
	assert.Empty(t, u.Entities())
}

func TestDeletionCycleKeepsDependentsFirst(t *testing.T) {
	ctx := context.Background()
	u, _, p := newUnitOfWork(t)
	a := &testutils.Category{Id: 1, ParentId: intPtr(2), Name: "a"}
	b := &testutils.Category{Id: 2, ParentId: intPtr(1), Parent: a, Name: "b"}
	a.Parent = b
	leaf := &testutils.Category{Id: 3, ParentId: intPtr(1), Parent: a, Name: "leaf"}
	root := &testutils.Category{Id: 4, Name: "root"}
	child := &testutils.Category{Id: 5, ParentId: intPtr(4), Parent: root, Name: "child"}
	for _, e := range []any{a, b, leaf, root, child} {
		require.NoError(t, u.PersistExisting(e))
	}

	require.NoError(t, u.ScheduleForDelete(ctx, root))
	require.NoError(t, u.ScheduleForDelete(ctx, a))
	require.NoError(t, u.Commit(ctx))

	var ids []any
	for _, op := range p.Operations {
		ids = append(ids, op.Row["id"])
	}
	assert.ElementsMatch(t, []any{1, 2, 3, 4, 5}, ids)
	position := make(map[any]int, len(ids))
	for i, id := range ids {
		position[id] = i
	}
	assert.Less(t, position[5], position[4])
	assert.Less(t, position[3], position[1])
}

type folder struct {
	Id   int
	Name string
}

type document struct {
	Id       int
	FolderId int
	Folder   *folder
}

func newFolderStore(t *testing.T) *metadata.Store {
	t.Helper()
	s := metadata.NewStore()
	require.NoError(t, s.Register(&folder{}, metadata.EntityDescriptor{
		Name:        "Folder",
		Identifiers: []string{"Id"},
		Columns:     []metadata.Column{{Property: "Id", Column: "id"}, {Property: "Name", Column: "name"}},
	}))
	require.NoError(t, s.Register(&document{}, metadata.EntityDescriptor{
		Name:        "Document",
		Identifiers: []string{"Id"},
		Columns:     []metadata.Column{{Property: "Id", Column: "id"}, {Property: "FolderId", Column: "folder_id"}},
		Relations: []metadata.Relation{{
			Kind: metadata.ManyToOne, Property: "Folder", TargetEntity: "Folder", RelationColumn: "FolderId",
			Cascade: &metadata.Cascade{Operations: []metadata.CascadeOperation{metadata.CascadeRemove}},
		}},
	}))
	return s
}

func TestManyToOneWithoutInversedByUsesTargetIdentifier(t *testing.T) {
	ctx := context.Background()
	p := testutils.NewPersisterStub()
	u := New(newFolderStore(t), testutils.NewDbSessionStub(nil), WithPersister(p))
	f := &folder{Name: "inbox"}
	doc := &document{Folder: f}
	u.PersistNew(doc)
	u.PersistNew(f)

	require.NoError(t, u.Commit(ctx))
	assert.Equal(t, []string{"insert Folder", "insert Document"}, p.Log())
	assert.Equal(t, 1, f.Id)
	assert.Equal(t, f.Id, doc.FolderId)

	require.NoError(t, u.ScheduleForDelete(ctx, f))
	assert.True(t, u.IsScheduledForDelete(doc))
	require.NoError(t, u.Commit(ctx))
	assert.Equal(t, []string{"delete Document", "delete Folder"}, p.Log()[2:])
}

func TestScheduleForDeleteRegistersUntrackedEntities(t *testing.T) {
	u, _, _ := newUnitOfWork(t)
	c := &testutils.Customer{Id: 1}
	require.NoError(t, u.ScheduleForDelete(context.Background(), c))
	assert.True(t, u.IsTracked(c))
	assert.True(t, u.IsScheduledForDelete(c))
}

func TestScheduleForDeleteRejectsUnmanaged(t *testing.T) {
	u, _, _ := newUnitOfWork(t)
	ctx := context.Background()
	assert.ErrorIs(t, u.ScheduleForDelete(ctx, &unregistered{Id: 1}), ErrNotManaged)
	assert.ErrorIs(t, u.ScheduleForDelete(ctx, testutils.Customer{Id: 1}), ErrNotManaged)
	assert.ErrorIs(t, u.ScheduleForDelete(ctx, nil), ErrNotManaged)
}

func TestDetachCancelsDeletion(t *testing.T) {
	ctx := context.Background()
	u, s, p := newUnitOfWork(t)
	c := &testutils.Customer{Id: 1}
	require.NoError(t, u.ScheduleForDelete(ctx, c))
	u.Detach(c)

	assert.False(t, u.IsScheduledForDelete(c))
	require.NoError(t, u.Commit(ctx))
	assert.Empty(t, p.Operations)
	assert.Empty(t, s.Calls)
}
