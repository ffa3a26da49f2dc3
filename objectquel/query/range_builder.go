package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/krew-solutions/objectquel-go/objectquel/condition"
	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
)

// MainAlias is the alias of the root range of every query.
const MainAlias = "main"

// Range is one entry of a decomposed join plan.
type Range struct {
	Alias  string
	Entity string
	// Relation is the relation of Entity through which the range is joined to
	// the main range. It is nil for the main range.
	Relation *metadata.Relation
}

// Definition renders the range in ObjectQuel syntax.
func (r Range) Definition() string {
	if r.Relation == nil {
		return fmt.Sprintf("range of %s is %s", r.Alias, r.Entity)
	}
	return fmt.Sprintf("range of %s is %s via %s.%s=%s.%s",
		r.Alias, r.Entity, r.Alias, r.Relation.RelationColumn, MainAlias, r.Relation.InversedBy)
}

// Ranges is an ordered alias to range mapping; the main range comes first.
type Ranges struct {
	items []Range
}

func (rs *Ranges) Aliases() []string {
	result := make([]string, len(rs.items))
	for i, r := range rs.items {
		result[i] = r.Alias
	}
	return result
}

func (rs *Ranges) Get(alias string) (Range, bool) {
	for _, r := range rs.items {
		if r.Alias == alias {
			return r, true
		}
	}
	return Range{}, false
}

func (rs *Ranges) All() []Range {
	return append([]Range(nil), rs.items...)
}

func (rs *Ranges) Len() int {
	return len(rs.items)
}

// Definitions returns the ObjectQuel range definitions in order.
func (rs *Ranges) Definitions() []string {
	result := make([]string, len(rs.items))
	for i, r := range rs.items {
		result[i] = r.Definition()
	}
	return result
}

// RangeBuilder decomposes a root entity and the eager relations pointing at it
// into ranges.
type RangeBuilder struct {
	store *metadata.Store
}

func NewRangeBuilder(store *metadata.Store) *RangeBuilder {
	return &RangeBuilder{store: store}
}

// Build returns the main range followed by one range per eager OneToOne or
// ManyToOne relation of a dependent entity that targets rootEntity. Aliases
// r0, r1, ... come from one counter shared by both relation kinds.
func (b *RangeBuilder) Build(rootEntity string) (*Ranges, error) {
	d, err := b.store.Descriptor(rootEntity)
	if err != nil {
		return nil, err
	}
	root := d.Name
	ranges := &Ranges{items: []Range{{Alias: MainAlias, Entity: root}}}

	dependents, err := b.store.DependentEntities(root)
	if err != nil {
		return nil, err
	}
	counter := 0
	add := func(entity string, r metadata.Relation) {
		rel := r
		ranges.items = append(ranges.items, Range{
			Alias:    fmt.Sprintf("r%d", counter),
			Entity:   entity,
			Relation: &rel,
		})
		counter++
	}
	for _, dependent := range dependents {
		oneToOne, err := b.store.OneToOneDependencies(dependent)
		if err != nil {
			return nil, err
		}
		for _, r := range oneToOne {
			if r.IsLazy() || r.IsInverseSide() || r.TargetEntity != root {
				continue
			}
			add(dependent, r)
		}
		manyToOne, err := b.store.ManyToOneDependencies(dependent)
		if err != nil {
			return nil, err
		}
		for _, r := range manyToOne {
			if r.IsLazy() || r.TargetEntity != root {
				continue
			}
			add(dependent, r)
		}
	}
	return ranges, nil
}

// PrepareQuery composes the query retrieving one rootEntity by its primary
// key together with its eager dependents.
func (b *RangeBuilder) PrepareQuery(rootEntity string, primaryKeys []string) (string, error) {
	return b.prepare(rootEntity, primaryKeys, true)
}

// PrepareCriteriaQuery composes the query retrieving every rootEntity whose
// properties equal the given criteria. Criteria names are sorted.
func (b *RangeBuilder) PrepareCriteriaQuery(rootEntity string, criteria []string) (string, error) {
	keys := append([]string(nil), criteria...)
	sort.Strings(keys)
	return b.prepare(rootEntity, keys, false)
}

func (b *RangeBuilder) prepare(rootEntity string, keys []string, unique bool) (string, error) {
	ranges, err := b.Build(rootEntity)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, def := range ranges.Definitions() {
		sb.WriteString(def)
		sb.WriteString("\n")
	}
	sb.WriteString("retrieve ")
	if unique {
		sb.WriteString("unique ")
	}
	sb.WriteString("(")
	sb.WriteString(strings.Join(ranges.Aliases(), ", "))
	sb.WriteString(")")
	if where := condition.Criteria(MainAlias, keys); where != nil {
		sb.WriteString(" where ")
		sb.WriteString(where.String())
	}
	return sb.String(), nil
}
