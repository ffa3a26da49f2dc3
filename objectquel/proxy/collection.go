package proxy

import (
	"context"
	"fmt"
)

type CollectionLoader[T any] func(ctx context.Context) ([]T, error)

// DeferredCollection is the untyped counterpart of CollectionLoader.
type DeferredCollection func(ctx context.Context) ([]any, error)

// Collection is a to-many relation value. A lazy collection stays uninitialized
// until Load is called.
type Collection[T any] struct {
	items       []T
	loader      CollectionLoader[T]
	initialized bool
}

func NewCollection[T any](items ...T) Collection[T] {
	return Collection[T]{items: items, initialized: true}
}

func LazyCollection[T any](loader CollectionLoader[T]) Collection[T] {
	return Collection[T]{loader: loader}
}

func (c Collection[T]) IsInitialized() bool {
	return c.initialized || c.loader == nil
}

func (c Collection[T]) Items() []T {
	return c.items
}

func (c Collection[T]) Len() int {
	return len(c.items)
}

// Elements returns the members as []any without loading.
func (c Collection[T]) Elements() []any {
	result := make([]any, 0, len(c.items))
	for _, item := range c.items {
		result = append(result, item)
	}
	return result
}

// Add appends item. Items added to an uninitialized collection are kept in
// memory but are not seen by cascade persist until the collection is loaded.
func (c *Collection[T]) Add(item T) {
	c.items = append(c.items, item)
}

// Load fetches the members once; items added before loading are appended after them.
func (c *Collection[T]) Load(ctx context.Context) error {
	if c.IsInitialized() {
		return nil
	}
	items, err := c.loader(ctx)
	if err != nil {
		return err
	}
	c.items = append(items, c.items...)
	c.initialized = true
	c.loader = nil
	return nil
}

// Assign replaces the collection with the given []T, or with a lazy
// collection loaded by a DeferredCollection.
func (c *Collection[T]) Assign(value any) error {
	switch v := value.(type) {
	case DeferredCollection:
		*c = LazyCollection(func(ctx context.Context) ([]T, error) {
			loaded, err := v(ctx)
			if err != nil {
				return nil, err
			}
			items := make([]T, 0, len(loaded))
			for _, e := range loaded {
				item, ok := e.(T)
				if !ok {
					var zero T
					return nil, fmt.Errorf("proxy: loaded %T, want %T", e, zero)
				}
				items = append(items, item)
			}
			return items, nil
		})
	case []T:
		*c = NewCollection(v...)
	default:
		var zero T
		return fmt.Errorf("proxy: cannot assign %T to Collection[%T]", value, zero)
	}
	return nil
}
