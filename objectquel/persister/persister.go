package persister

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/serializer"
	"github.com/krew-solutions/objectquel-go/objectquel/session"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

// ErrPrimaryKeyChanged is returned for an update whose identifier columns
// differ from the snapshot. Primary keys are immutable once written.
var ErrPrimaryKeyChanged = errors.New("persister: primary key changed")

// Persister writes one serialized entity row.
type Persister interface {
	// Insert returns the database generated key, or nil when the row carried
	// its whole primary key.
	Insert(s session.DbSession, d *metadata.EntityDescriptor, row serializer.Snapshot) (any, error)
	Update(s session.DbSession, d *metadata.EntityDescriptor, row, snapshot serializer.Snapshot) error
	Delete(s session.DbSession, d *metadata.EntityDescriptor, row serializer.Snapshot) error
}

// SQLPersister emits plain parameterized statements with $n placeholders.
type SQLPersister struct{}

func NewSQLPersister() *SQLPersister {
	return &SQLPersister{}
}

func (p *SQLPersister) Insert(s session.DbSession, d *metadata.EntityDescriptor, row serializer.Snapshot) (any, error) {
	var (
		columns   []string
		params    []any
		generated []string
	)
	for _, c := range d.Columns {
		value := row[c.Column]
		if d.IsIdentifier(c.Property) && utils.IsEmptyKey(value) {
			generated = append(generated, c.Column)
			continue
		}
		columns = append(columns, c.Column)
		params = append(params, value)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s", d.Table)
	if len(columns) == 0 {
		sb.WriteString(" DEFAULT VALUES")
	} else {
		fmt.Fprintf(&sb, " (%s) VALUES (%s)", strings.Join(columns, ", "), placeholders(1, len(columns)))
	}
	if len(generated) == 1 {
		fmt.Fprintf(&sb, " RETURNING %s", generated[0])
	}

	result, err := s.Connection().Exec(sb.String(), params...)
	if err != nil {
		return nil, errors.Wrapf(err, "insert into %s", d.Table)
	}
	if len(generated) != 1 {
		return nil, nil
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, errors.Wrapf(err, "generated key of %s", d.Table)
	}
	return id, nil
}

// Update writes the columns that differ from snapshot. Nothing is written
// when no column changed.
func (p *SQLPersister) Update(s session.DbSession, d *metadata.EntityDescriptor, row, snapshot serializer.Snapshot) error {
	if keys := ChangedKeys(d, row, snapshot); len(keys) > 0 {
		return errors.Wrapf(ErrPrimaryKeyChanged, "%s: %s", d.Table, strings.Join(keys, ", "))
	}
	changed := row.Diff(snapshot)
	var (
		sets   []string
		params []any
	)
	for _, c := range d.Columns {
		if !slices.Contains(changed, c.Column) || d.IsIdentifier(c.Property) {
			continue
		}
		params = append(params, row[c.Column])
		sets = append(sets, fmt.Sprintf("%s = $%d", c.Column, len(params)))
	}
	if len(sets) == 0 {
		return nil
	}
	where, keyParams := keyPredicate(d, row, len(params)+1)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", d.Table, strings.Join(sets, ", "), where)
	if _, err := s.Connection().Exec(query, append(params, keyParams...)...); err != nil {
		return errors.Wrapf(err, "update %s", d.Table)
	}
	return nil
}

// Delete removes the row by primary key. A row that is already gone is not
// an error.
func (p *SQLPersister) Delete(s session.DbSession, d *metadata.EntityDescriptor, row serializer.Snapshot) error {
	where, params := keyPredicate(d, row, 1)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", d.Table, where)
	if _, err := s.Connection().Exec(query, params...); err != nil {
		return errors.Wrapf(err, "delete from %s", d.Table)
	}
	return nil
}

// ChangedKeys returns the identifier columns whose value in row differs from
// snapshot. A nil snapshot changes nothing.
func ChangedKeys(d *metadata.EntityDescriptor, row, snapshot serializer.Snapshot) []string {
	if snapshot == nil {
		return nil
	}
	var result []string
	for _, id := range d.Identifiers {
		column, _ := d.ColumnOf(id)
		if !serializer.Same(row[column], snapshot[column]) {
			result = append(result, column)
		}
	}
	return result
}

func keyPredicate(d *metadata.EntityDescriptor, row serializer.Snapshot, start int) (string, []any) {
	var (
		parts  []string
		params []any
	)
	for _, id := range d.Identifiers {
		column, _ := d.ColumnOf(id)
		parts = append(parts, fmt.Sprintf("%s = $%d", column, start+len(params)))
		params = append(params, row[column])
	}
	return strings.Join(parts, " AND "), params
}

func placeholders(start, n int) string {
	result := make([]string, n)
	for i := range result {
		result[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(result, ", ")
}
