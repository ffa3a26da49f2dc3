package result

import "errors"

func NewResult(lastInsertId, rowsAffected int64) ResultImp {
	return ResultImp{lastInsertId, rowsAffected}
}

// ResultImp is the result of a statement run through a driver that does not
// report one itself. A generated key and an affected row count are exclusive.
type ResultImp struct {
	lastInsertId int64
	rowsAffected int64
}

func (r ResultImp) LastInsertId() (int64, error) {
	if r.rowsAffected == 0 {
		return r.lastInsertId, nil
	} else {
		return 0, errors.New("LastInsertId is not supported by this driver")
	}
}

func (r ResultImp) RowsAffected() (int64, error) {
	if r.lastInsertId == 0 {
		return r.rowsAffected, nil
	} else {
		return 0, errors.New("RowsAffected is not supported by INSERT command")
	}
}
