package testutils

import (
	"fmt"

	"github.com/krew-solutions/objectquel-go/objectquel/metadata"
	"github.com/krew-solutions/objectquel-go/objectquel/serializer"
	"github.com/krew-solutions/objectquel-go/objectquel/session"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

type Operation struct {
	Kind   string
	Entity string
	Row    serializer.Snapshot
}

func (o Operation) String() string {
	return o.Kind + " " + o.Entity
}

// PersisterStub records writes and hands out sequential generated keys.
type PersisterStub struct {
	Operations []Operation
	NextId     int64
	// Err fails the operation whose String() matches the key, e.g. "insert Order".
	Err map[string]error
}

func NewPersisterStub() *PersisterStub {
	return &PersisterStub{Err: make(map[string]error)}
}

// Log returns the recorded operations as "kind Entity" strings.
func (p *PersisterStub) Log() []string {
	result := make([]string, len(p.Operations))
	for i, op := range p.Operations {
		result[i] = op.String()
	}
	return result
}

func (p *PersisterStub) record(kind string, d *metadata.EntityDescriptor, row serializer.Snapshot) error {
	op := Operation{Kind: kind, Entity: d.Name, Row: row}
	if err, ok := p.Err[op.String()]; ok {
		return err
	}
	p.Operations = append(p.Operations, op)
	return nil
}

func (p *PersisterStub) Insert(_ session.DbSession, d *metadata.EntityDescriptor, row serializer.Snapshot) (any, error) {
	if err := p.record("insert", d, row); err != nil {
		return nil, err
	}
	if len(d.Identifiers) != 1 {
		return nil, nil
	}
	column, _ := d.ColumnOf(d.Identifiers[0])
	if !utils.IsEmptyKey(row[column]) {
		return nil, nil
	}
	p.NextId++
	return p.NextId, nil
}

func (p *PersisterStub) Update(_ session.DbSession, d *metadata.EntityDescriptor, row, snapshot serializer.Snapshot) error {
	if len(row.Diff(snapshot)) == 0 {
		return fmt.Errorf("update of unchanged %s", d.Name)
	}
	return p.record("update", d, row)
}

func (p *PersisterStub) Delete(_ session.DbSession, d *metadata.EntityDescriptor, row serializer.Snapshot) error {
	return p.record("delete", d, row)
}
