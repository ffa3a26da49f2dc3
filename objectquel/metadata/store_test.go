package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customer struct {
	Id   int
	Name string
}

type order struct {
	Id         int
	CustomerId int
	Customer   *customer
}

type customerProxy struct {
	customer
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Register(&customer{}, EntityDescriptor{
		Name:        "Customer",
		Table:       "customers",
		Identifiers: []string{"Id"},
		Columns:     []Column{{"Id", "id"}, {"Name", "name"}},
		Relations: []Relation{
			{Kind: OneToMany, Property: "Orders", TargetEntity: "Order", MappedBy: "Customer"},
		},
	}))
	require.NoError(t, s.Register(&order{}, EntityDescriptor{
		Name:        "Order",
		Identifiers: []string{"Id"},
		Columns:     []Column{{"Id", "id"}, {"CustomerId", "customer_id"}},
		Relations: []Relation{
			{
				Kind:           ManyToOne,
				Property:       "Customer",
				TargetEntity:   "Customer",
				RelationColumn: "CustomerId",
				InversedBy:     "Id",
				Cascade:        &Cascade{Operations: []CascadeOperation{CascadeRemove}},
			},
		},
	}))
	return s
}

func TestRegisterDefaults(t *testing.T) {
	s := newTestStore(t)
	d, err := s.Descriptor("Order")
	require.NoError(t, err)
	assert.Equal(t, "order", d.Table)
	assert.Equal(t, Eager, d.Relations[0].Fetch)
	assert.Equal(t, map[string]string{"Id": "id", "CustomerId": "customer_id"}, d.ColumnMap())
}

func TestRegisterRejectsInvalidDescriptors(t *testing.T) {
	s := NewStore()
	err := s.Register(&customer{}, EntityDescriptor{Name: "Customer"})
	assert.ErrorIs(t, err, ErrInvalidEntity)

	err = s.Register(&customer{}, EntityDescriptor{Name: "Customer", Identifiers: []string{"Id"}})
	assert.ErrorIs(t, err, ErrInvalidEntity)

	err = s.Register(42, EntityDescriptor{Name: "Number", Identifiers: []string{"Id"}})
	assert.ErrorIs(t, err, ErrInvalidEntity)
}

func TestEntityNameResolvesTypesAndProxies(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterProxy(&customerProxy{}, "Customer"))

	name, err := s.EntityName(&order{})
	require.NoError(t, err)
	assert.Equal(t, "Order", name)

	name, err = s.EntityName(&customerProxy{})
	require.NoError(t, err)
	assert.Equal(t, "Customer", name)

	_, err = s.EntityName(&struct{ Id int }{})
	var metaErr *MetadataError
	assert.ErrorAs(t, err, &metaErr)
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestNormalizeEntityName(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.RegisterAlias("CustomerProxy", "Customer"))
	assert.Equal(t, "Customer", s.NormalizeEntityName("*models.Customer"))
	assert.Equal(t, "Customer", s.NormalizeEntityName("CustomerProxy"))
	assert.Equal(t, "Customer", s.NormalizeEntityName("proxies.CustomerProxy"))
	assert.Equal(t, "Unknown", s.NormalizeEntityName(" Unknown "))
}

func TestExists(t *testing.T) {
	s := newTestStore(t)
	assert.True(t, s.Exists("Customer"))
	assert.True(t, s.Exists(&customer{}))
	assert.False(t, s.Exists("Invoice"))
	assert.False(t, s.Exists(&struct{}{}))
}

func TestDependencies(t *testing.T) {
	s := newTestStore(t)
	manyToOne, err := s.ManyToOneDependencies("Order")
	require.NoError(t, err)
	require.Len(t, manyToOne, 1)
	assert.Equal(t, "Customer", manyToOne[0].TargetEntity)

	oneToMany, err := s.OneToManyDependencies("Customer")
	require.NoError(t, err)
	require.Len(t, oneToMany, 1)
	assert.Equal(t, "Orders", oneToMany[0].Property)

	oneToOne, err := s.OneToOneDependencies("Order")
	require.NoError(t, err)
	assert.Empty(t, oneToOne)

	dependents, err := s.DependentEntities("Customer")
	require.NoError(t, err)
	assert.Equal(t, []string{"Order"}, dependents)

	dependents, err = s.DependentEntities("Order")
	require.NoError(t, err)
	assert.Empty(t, dependents)
}

func TestUnresolvedRelationTarget(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(&order{}, EntityDescriptor{
		Name:        "Order",
		Identifiers: []string{"Id"},
		Columns:     []Column{{"Id", "id"}},
		Relations:   []Relation{{Kind: ManyToOne, Property: "Customer", TargetEntity: "Missing"}},
	}))
	_, err := s.ManyToOneDependencies("Order")
	assert.ErrorIs(t, err, ErrUnresolvedTarget)
}

func TestManyToOneRefersToTargetIdentifier(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(&order{}, EntityDescriptor{
		Name:        "Order",
		Identifiers: []string{"Id"},
		Columns:     []Column{{Property: "Id", Column: "id"}, {Property: "CustomerId", Column: "customer_id"}},
		Relations:   []Relation{{Kind: ManyToOne, Property: "Customer", TargetEntity: "Customer", RelationColumn: "CustomerId"}},
	}))
	require.NoError(t, s.Register(&customer{}, EntityDescriptor{
		Name:        "Customer",
		Identifiers: []string{"Id"},
		Columns:     []Column{{Property: "Id", Column: "id"}},
	}))

	manyToOne, err := s.ManyToOneDependencies("Order")
	require.NoError(t, err)
	require.Len(t, manyToOne, 1)
	assert.Equal(t, "Id", manyToOne[0].InversedBy)

	d, err := s.Descriptor("Order")
	require.NoError(t, err)
	assert.Empty(t, d.Relations[0].InversedBy)
}

func TestManyToOneToCompositeKeyNeedsInversedBy(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Register(&customer{}, EntityDescriptor{
		Name:        "Customer",
		Identifiers: []string{"Id", "Name"},
		Columns:     []Column{{Property: "Id", Column: "id"}, {Property: "Name", Column: "name"}},
	}))
	require.NoError(t, s.Register(&order{}, EntityDescriptor{
		Name:        "Order",
		Identifiers: []string{"Id"},
		Columns:     []Column{{Property: "Id", Column: "id"}, {Property: "CustomerId", Column: "customer_id"}},
		Relations:   []Relation{{Kind: ManyToOne, Property: "Customer", TargetEntity: "Customer", RelationColumn: "CustomerId"}},
	}))

	_, err := s.ManyToOneDependencies("Order")
	assert.ErrorIs(t, err, ErrUnresolvedTarget)
}

func TestAnnotations(t *testing.T) {
	s := newTestStore(t)
	annotations, err := s.Annotations("Order")
	require.NoError(t, err)

	cascade, ok := CascadeOf(annotations["Customer"])
	require.True(t, ok)
	assert.True(t, cascade.Has(CascadeRemove))
	assert.False(t, cascade.Has(CascadePersist))
	assert.True(t, cascade.AppliesInApplication())

	_, ok = CascadeOf(annotations["Id"])
	assert.False(t, ok)

	assert.True(t, s.ClassHasAnnotation("Order", "Cascade"))
	assert.False(t, s.ClassHasAnnotation("Customer", "Cascade"))
	assert.False(t, s.ClassHasAnnotation("Invoice", "Column"))
}
