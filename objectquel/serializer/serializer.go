package serializer

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/property"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

// Snapshot maps column names to serialized scalar values.
type Snapshot map[string]any

// Equal compares two snapshots key by key with strict typing.
func (s Snapshot) Equal(other Snapshot) bool {
	return len(s.Diff(other)) == 0 && len(s) == len(other)
}

// Diff returns, sorted, the columns of s whose value differs from other.
func (s Snapshot) Diff(other Snapshot) []string {
	var changed []string
	for column, value := range s {
		previous, ok := other[column]
		if !ok || !Same(value, previous) {
			changed = append(changed, column)
		}
	}
	sort.Strings(changed)
	return changed
}

type Serializer struct {
	accessor property.Accessor
}

func NewSerializer(accessor property.Accessor) *Serializer {
	return &Serializer{accessor: accessor}
}

// Serialize reads every mapped column of entity.
func (s *Serializer) Serialize(entity any, d *metadata.EntityDescriptor) (Snapshot, error) {
	result := make(Snapshot, len(d.Columns))
	for _, c := range d.Columns {
		value, err := s.accessor.Get(entity, c.Property)
		if err != nil {
			return nil, errors.Wrapf(err, "serialize %s", d.Name)
		}
		result[c.Column] = utils.Indirect(value)
	}
	return result, nil
}

// PrimaryKeys returns the identifier property values of entity.
func (s *Serializer) PrimaryKeys(entity any, d *metadata.EntityDescriptor) (map[string]any, error) {
	result := make(map[string]any, len(d.Identifiers))
	for _, id := range d.Identifiers {
		value, err := s.accessor.Get(entity, id)
		if err != nil {
			return nil, errors.Wrapf(err, "primary key of %s", d.Name)
		}
		result[id] = utils.Indirect(value)
	}
	return result, nil
}

// HasEmptyKey reports whether any identifier is still unset.
func HasEmptyKey(keys map[string]any) bool {
	if len(keys) == 0 {
		return true
	}
	for _, v := range keys {
		if utils.IsEmptyKey(v) {
			return true
		}
	}
	return false
}
