package utils

import "reflect"

// IsNil reports whether v is nil or a typed nil (pointer, map, slice, func, interface, chan).
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// IsEmptyKey reports whether v cannot identify a row: nil, a nil pointer or the
// zero value of its type.
func IsEmptyKey(v any) bool {
	if IsNil(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		return rv.Elem().IsZero()
	}
	return rv.IsZero()
}

// Indirect dereferences pointers; a nil pointer yields nil.
func Indirect(v any) any {
	if v == nil {
		return nil
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	return rv.Interface()
}
