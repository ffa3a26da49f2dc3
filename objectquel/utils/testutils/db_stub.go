package testutils

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/krew-solutions/objectquel-go/objectquel/session"
	"github.com/krew-solutions/objectquel-go/objectquel/session/result"
	"github.com/krew-solutions/objectquel-go/objectquel/signals"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

type Query struct {
	SQL    string
	Params []any
}

// NewDbSessionStub creates a transactional session that records statements
// and transaction calls instead of running them.
func NewDbSessionStub(rows *RowsStub) *DbSessionStub {
	stub := &DbSessionStub{
		Rows:           rows,
		onQueryStarted: signals.NewSignal[session.QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[session.QueryEndedEvent](),
	}
	stub.conn = &connectionStub{session: stub}
	return stub
}

type DbSessionStub struct {
	Rows         *RowsStub
	ActualQuery  string
	ActualParams []any
	Queries      []Query
	// Calls records BEGIN, COMMIT and ROLLBACK as they reach the database.
	Calls []string
	// NextInsertId is returned, then incremented, by INSERT ... RETURNING.
	NextInsertId int64
	// ExecErr fails every statement containing the key.
	ExecErr        map[string]error
	BeginErr       error
	RollbackErr    error
	depth          session.TransactionDepth
	conn           *connectionStub
	onQueryStarted signals.Signal[session.QueryStartedEvent]
	onQueryEnded   signals.Signal[session.QueryEndedEvent]
}

func (s *DbSessionStub) Context() context.Context {
	return context.Background()
}

func (s *DbSessionStub) Atomic(callback session.SessionCallback) error {
	return callback(s)
}

func (s *DbSessionStub) Connection() session.DbConnection {
	return s.conn
}

func (s *DbSessionStub) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return s.onQueryStarted
}

func (s *DbSessionStub) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return s.onQueryEnded
}

func (s *DbSessionStub) TransactionDepth() int {
	return s.depth.Level()
}

func (s *DbSessionStub) BeginTransaction(context.Context) error {
	if !s.depth.Begin() {
		return nil
	}
	if s.BeginErr != nil {
		s.depth.Reset()
		return s.BeginErr
	}
	s.Calls = append(s.Calls, "BEGIN")
	return nil
}

func (s *DbSessionStub) CommitTransaction(context.Context) error {
	finalize, rollback, err := s.depth.Commit()
	if err != nil || !finalize {
		return err
	}
	if rollback {
		s.Calls = append(s.Calls, "ROLLBACK")
		return session.ErrRollbackOnly
	}
	s.Calls = append(s.Calls, "COMMIT")
	return nil
}

func (s *DbSessionStub) RollbackTransaction(context.Context) error {
	finalize, err := s.depth.Rollback()
	if err != nil || !finalize {
		return err
	}
	s.Calls = append(s.Calls, "ROLLBACK")
	return s.RollbackErr
}

func (s *DbSessionStub) record(query string, args []any) error {
	s.ActualQuery = query
	s.ActualParams = args
	s.Queries = append(s.Queries, Query{SQL: query, Params: args})
	_ = s.onQueryStarted.Notify(session.QueryStartedEvent{Query: query, Params: args, Session: s})
	for key, err := range s.ExecErr {
		if strings.Contains(query, key) {
			return err
		}
	}
	return nil
}

type connectionStub struct {
	session *DbSessionStub
}

func (c *connectionStub) Exec(query string, args ...any) (session.Result, error) {
	if err := c.session.record(query, args); err != nil {
		return nil, err
	}
	if utils.IsAutoincrementInsertQuery(query) {
		c.session.NextInsertId++
		return result.NewResult(c.session.NextInsertId, 0), nil
	}
	return result.NewResult(0, 1), nil
}

func (c *connectionStub) Query(query string, args ...any) (session.Rows, error) {
	if err := c.session.record(query, args); err != nil {
		return nil, err
	}
	return c.session.Rows, nil
}

func (c *connectionStub) QueryRow(query string, args ...any) session.Row {
	_ = c.session.record(query, args)
	return &RowStub{rows: c.session.Rows}
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{
		rows:   rows,
		idx:    -1,
		Closed: false,
	}
}

type RowsStub struct {
	rows   [][]any
	idx    int
	Closed bool
}

func (r *RowsStub) Close() error {
	r.Closed = true
	return nil
}

func (r *RowsStub) Err() error {
	return nil
}

func (r *RowsStub) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("no current row")
	}

	row := r.rows[r.idx]
	for i, val := range row {
		if i >= len(dest) {
			break
		}

		switch d := dest[i].(type) {
		case *int:
			*d = toInt(val)
		case *int64:
			*d = toInt64(val)
		case *string:
			*d = val.(string)
		case *bool:
			*d = val.(bool)
		case *[]byte:
			*d = val.([]byte)
		case *float64:
			*d = toFloat64(val)
		case *any:
			*d = val
		case sql.Scanner:
			if err := d.Scan(val); err != nil {
				return err
			}
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

func toInt(val any) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	default:
		panic("cannot convert to int")
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		panic("cannot convert to int64")
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		panic("cannot convert to float64")
	}
}

type RowStub struct {
	rows *RowsStub
}

func (r *RowStub) Err() error {
	if r.rows == nil {
		return nil
	}
	return r.rows.Err()
}

func (r *RowStub) Scan(dest ...any) error {
	if r.rows == nil || !r.rows.Next() {
		return sql.ErrNoRows
	}
	return r.rows.Scan(dest...)
}
