package session

import "errors"

var (
	ErrNoTransaction = errors.New("session: no active transaction")
	// ErrRollbackOnly is returned by the outermost commit after a nested
	// transaction was rolled back; the whole transaction is rolled back.
	ErrRollbackOnly = errors.New("session: transaction is marked rollback-only")
)
