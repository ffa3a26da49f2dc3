package proxy

import (
	"reflect"

	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

// Initializable is implemented by relation values and placeholder entities that
// may not have been materialized yet.
type Initializable interface {
	IsInitialized() bool
}

type Reference interface {
	Initializable
	Unwrap() any
}

type Elements interface {
	Initializable
	Elements() []any
}

// IsInitialized reports false only for values that declare themselves unloaded.
func IsInitialized(v any) bool {
	if i, ok := v.(Initializable); ok && !utils.IsNil(v) {
		return i.IsInitialized()
	}
	return true
}

// Resolve returns the related object held by a to-one relation value. The
// second result is false when the value is null or not loaded; nothing is
// ever loaded as a side effect.
func Resolve(v any) (any, bool) {
	if ref, ok := v.(Reference); ok {
		if !ref.IsInitialized() {
			return nil, false
		}
		v = ref.Unwrap()
	}
	if utils.IsNil(v) || !IsInitialized(v) {
		return nil, false
	}
	return v, true
}

// Members returns the members of a to-many relation value. The second result is
// false when the collection has not been loaded.
func Members(v any) ([]any, bool) {
	if utils.IsNil(v) {
		return nil, true
	}
	if elements, ok := v.(Elements); ok {
		if !elements.IsInitialized() {
			return nil, false
		}
		return elements.Elements(), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	result := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		result = append(result, rv.Index(i).Interface())
	}
	return result, true
}

// Ghost is embedded into entities that can exist as placeholders holding only
// their identifier until loaded.
type Ghost struct {
	unloaded bool
}

func (g *Ghost) IsInitialized() bool {
	return !g.unloaded
}

func (g *Ghost) MarkUnloaded() {
	g.unloaded = true
}

func (g *Ghost) MarkLoaded() {
	g.unloaded = false
}
