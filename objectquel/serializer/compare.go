package serializer

import (
	"reflect"
	"time"
)

// Same is the strict comparison used for dirty checking: values of different
// types are never equal, so 5 and "5" count as a change.
func Same(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
