package testutils

import (
	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/proxy"
)

type Customer struct {
	Id      int
	Name    string
	Orders  []*Order
	Profile *Profile
}

// CustomerProxy stands in for a Customer known only by its identifier.
type CustomerProxy struct {
	Customer
	proxy.Ghost
}

type Profile struct {
	Id         int
	CustomerId int
	Customer   *Customer
	Bio        string
}

type Order struct {
	Id         int
	CustomerId int
	Customer   *Customer
	Total      float64
	Lines      proxy.Collection[*OrderLine]
}

type OrderLine struct {
	Id      int
	OrderId int
	Order   proxy.Ref[*Order]
	Sku     string
}

type Category struct {
	Id       int
	ParentId *int
	Parent   *Category
	Name     string
}

// FixtureDDL creates the fixture tables on sqlite.
var FixtureDDL = []string{
	"CREATE TABLE customers (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)",
	"CREATE TABLE profiles (id INTEGER PRIMARY KEY AUTOINCREMENT, customer_id INTEGER NOT NULL REFERENCES customers (id), bio TEXT)",
	"CREATE TABLE orders (id INTEGER PRIMARY KEY AUTOINCREMENT, customer_id INTEGER NOT NULL REFERENCES customers (id), total REAL)",
	"CREATE TABLE order_lines (id INTEGER PRIMARY KEY AUTOINCREMENT, order_id INTEGER NOT NULL REFERENCES orders (id), sku TEXT)",
	"CREATE TABLE categories (id INTEGER PRIMARY KEY AUTOINCREMENT, parent_id INTEGER REFERENCES categories (id), name TEXT)",
}

// NewFixtureStore registers the fixture entities:
//
//	Customer 1--* Order 1--* OrderLine, Customer 1--1 Profile, Category *--1 Category
//
// Orders, order lines and child categories are removed with their parent by
// the application; profiles are removed by the database.
func NewFixtureStore() *metadata.Store {
	persist := &metadata.Cascade{Operations: []metadata.CascadeOperation{metadata.CascadePersist}}
	remove := &metadata.Cascade{Operations: []metadata.CascadeOperation{metadata.CascadeRemove}}
	removeInDatabase := &metadata.Cascade{
		Operations: []metadata.CascadeOperation{metadata.CascadeRemove},
		Strategy:   metadata.StrategyDatabase,
	}

	s := metadata.NewStore()
	must(s.Register(&Customer{}, metadata.EntityDescriptor{
		Name:        "Customer",
		Table:       "customers",
		Identifiers: []string{"Id"},
		Columns:     []metadata.Column{{Property: "Id", Column: "id"}, {Property: "Name", Column: "name"}},
		Relations: []metadata.Relation{
			{Kind: metadata.OneToMany, Property: "Orders", TargetEntity: "Order", MappedBy: "Customer", Cascade: persist},
			{Kind: metadata.OneToOne, Property: "Profile", TargetEntity: "Profile", MappedBy: "Customer", Cascade: persist},
		},
	}))
	must(s.RegisterProxy(&CustomerProxy{}, "Customer"))
	must(s.Register(&Profile{}, metadata.EntityDescriptor{
		Name:        "Profile",
		Table:       "profiles",
		Identifiers: []string{"Id"},
		Columns: []metadata.Column{
			{Property: "Id", Column: "id"},
			{Property: "CustomerId", Column: "customer_id"},
			{Property: "Bio", Column: "bio"},
		},
		Relations: []metadata.Relation{
			{
				Kind: metadata.OneToOne, Property: "Customer", TargetEntity: "Customer",
				RelationColumn: "CustomerId", InversedBy: "Id", Cascade: removeInDatabase,
			},
		},
	}))
	must(s.Register(&Order{}, metadata.EntityDescriptor{
		Name:        "Order",
		Table:       "orders",
		Identifiers: []string{"Id"},
		Columns: []metadata.Column{
			{Property: "Id", Column: "id"},
			{Property: "CustomerId", Column: "customer_id"},
			{Property: "Total", Column: "total"},
		},
		Relations: []metadata.Relation{
			{
				Kind: metadata.ManyToOne, Property: "Customer", TargetEntity: "Customer",
				RelationColumn: "CustomerId", InversedBy: "Id", Cascade: remove,
			},
			{Kind: metadata.OneToMany, Property: "Lines", TargetEntity: "OrderLine", MappedBy: "Order", Cascade: persist},
		},
	}))
	must(s.Register(&OrderLine{}, metadata.EntityDescriptor{
		Name:        "OrderLine",
		Table:       "order_lines",
		Identifiers: []string{"Id"},
		Columns: []metadata.Column{
			{Property: "Id", Column: "id"},
			{Property: "OrderId", Column: "order_id"},
			{Property: "Sku", Column: "sku"},
		},
		Relations: []metadata.Relation{
			{
				Kind: metadata.ManyToOne, Property: "Order", TargetEntity: "Order",
				RelationColumn: "OrderId", InversedBy: "Id", Fetch: metadata.Lazy, Cascade: remove,
			},
		},
	}))
	must(s.Register(&Category{}, metadata.EntityDescriptor{
		Name:        "Category",
		Table:       "categories",
		Identifiers: []string{"Id"},
		Columns: []metadata.Column{
			{Property: "Id", Column: "id"},
			{Property: "ParentId", Column: "parent_id"},
			{Property: "Name", Column: "name"},
		},
		Relations: []metadata.Relation{
			{
				Kind: metadata.ManyToOne, Property: "Parent", TargetEntity: "Category",
				RelationColumn: "ParentId", InversedBy: "Id", Cascade: remove,
			},
		},
	}))
	return s
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
