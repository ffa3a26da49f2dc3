package session

// TransactionDepth does the bookkeeping of reentrant transactions for
// session adapters.
type TransactionDepth struct {
	depth        int
	rollbackOnly bool
}

// Begin enters one level and reports whether the caller has to open the
// database transaction.
func (d *TransactionDepth) Begin() bool {
	d.depth++
	return d.depth == 1
}

// Commit leaves one level. finalize is true for the outermost level, and
// rollback then tells whether the transaction has to be rolled back instead.
func (d *TransactionDepth) Commit() (finalize, rollback bool, err error) {
	if d.depth == 0 {
		return false, false, ErrNoTransaction
	}
	d.depth--
	if d.depth > 0 {
		return false, false, nil
	}
	rollback = d.rollbackOnly
	d.rollbackOnly = false
	return true, rollback, nil
}

// Rollback leaves one level. An inner rollback marks the transaction
// rollback-only; finalize is true for the outermost level.
func (d *TransactionDepth) Rollback() (finalize bool, err error) {
	if d.depth == 0 {
		return false, ErrNoTransaction
	}
	d.depth--
	if d.depth > 0 {
		d.rollbackOnly = true
		return false, nil
	}
	d.rollbackOnly = false
	return true, nil
}

func (d *TransactionDepth) Reset() {
	d.depth = 0
	d.rollbackOnly = false
}

func (d *TransactionDepth) Level() int {
	return d.depth
}

func (d *TransactionDepth) IsRollbackOnly() bool {
	return d.rollbackOnly
}
