package unitofwork

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIdentityConflict = errors.New("unitofwork: another instance is tracked under the same primary key")
	ErrNotManaged       = errors.New("unitofwork: entity is not managed")
)

// CycleError means the relation graph of the tracked entities has a cycle, so
// no write order satisfies the foreign keys. Entities lists the entities left
// unscheduled.
type CycleError struct {
	Entities []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("unitofwork: cannot order writes, dependency cycle among %s", strings.Join(e.Entities, ", "))
}

type Operation string

const (
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// PersistenceError is a failed write of one entity.
type PersistenceError struct {
	Entity    string
	Operation Operation
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("unitofwork: %s of %s failed: %v", e.Operation, e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
