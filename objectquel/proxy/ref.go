package proxy

import (
	"context"
	"fmt"
)

type Loader[T any] func(ctx context.Context) (T, error)

// Deferred is an untyped loader, assigned to a Ref through property accessors
// that do not know T.
type Deferred func(ctx context.Context) (any, error)

// Ref is a to-one relation value that is either Loaded or Unloaded(loader).
// The zero Ref holds no related object and counts as initialized.
type Ref[T any] struct {
	val    T
	loader Loader[T]
	loaded bool
}

// Loaded creates a Ref holding an already materialized value.
func Loaded[T any](val T) Ref[T] {
	return Ref[T]{val: val, loaded: true}
}

// Unloaded creates a Ref that materializes its value through loader on Load.
func Unloaded[T any](loader Loader[T]) Ref[T] {
	return Ref[T]{loader: loader}
}

func (r Ref[T]) IsInitialized() bool {
	return r.loaded || r.loader == nil
}

// Get returns the value and true when the Ref is loaded.
func (r Ref[T]) Get() (T, bool) {
	if !r.loaded {
		var zero T
		return zero, false
	}
	return r.val, true
}

// UnwrapOr returns the loaded value or def.
func (r Ref[T]) UnwrapOr(def T) T {
	if r.loaded {
		return r.val
	}
	return def
}

// Unwrap returns the loaded value as any, or nil. It never triggers loading.
func (r Ref[T]) Unwrap() any {
	if !r.loaded {
		return nil
	}
	return r.val
}

// Load materializes the value once and memoizes it.
func (r *Ref[T]) Load(ctx context.Context) (T, error) {
	if r.loaded || r.loader == nil {
		return r.val, nil
	}
	val, err := r.loader(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	r.val = val
	r.loaded = true
	r.loader = nil
	return val, nil
}

func (r *Ref[T]) Set(val T) {
	r.val = val
	r.loaded = true
	r.loader = nil
}

func (r Ref[T]) String() string {
	if !r.IsInitialized() {
		return "Unloaded"
	}
	return fmt.Sprintf("Loaded(%v)", r.val)
}

// Assign stores a T as loaded, or installs a Deferred loader.
func (r *Ref[T]) Assign(value any) error {
	switch v := value.(type) {
	case Deferred:
		*r = Unloaded(func(ctx context.Context) (T, error) {
			var zero T
			loaded, err := v(ctx)
			if err != nil || loaded == nil {
				return zero, err
			}
			val, ok := loaded.(T)
			if !ok {
				return zero, fmt.Errorf("proxy: loaded %T, want %T", loaded, zero)
			}
			return val, nil
		})
	case T:
		r.Set(v)
	default:
		var zero T
		return fmt.Errorf("proxy: cannot assign %T to Ref[%T]", value, zero)
	}
	return nil
}
