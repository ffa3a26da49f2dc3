package identitymap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

const (
	keySeparator   = ";"
	valueSeparator = ":"
)

// CompositeKey renders primary key values as `name:value` pairs sorted by
// name, so declaration order never changes the key. Values are stringified
// loosely: 5 and "5" give the same key.
func CompositeKey(values map[string]any) string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+valueSeparator+stringify(values[name]))
	}
	return strings.Join(parts, keySeparator)
}

func stringify(v any) string {
	v = utils.Indirect(v)
	if v == nil {
		return ""
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}
