package pg

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/krew-solutions/objectquel-go/objectquel/session"
	"github.com/krew-solutions/objectquel-go/objectquel/session/result"
	"github.com/krew-solutions/objectquel-go/objectquel/signals"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

// executor interface for *pgxpool.Pool, *pgxpool.Conn and pgx.Tx
type executor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// Conn is what a Session needs from pgx: *pgxpool.Pool and *pgxpool.Conn
// both qualify.
type Conn interface {
	executor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Session is a database session with reentrant transactions: statements run
// inside the open transaction, if any, and on the connection otherwise.
type Session struct {
	ctx            context.Context
	conn           Conn
	tx             pgx.Tx
	depth          session.TransactionDepth
	onQueryStarted signals.Signal[session.QueryStartedEvent]
	onQueryEnded   signals.Signal[session.QueryEndedEvent]
}

func NewSession(ctx context.Context, conn Conn) *Session {
	return &Session{
		ctx:            ctx,
		conn:           conn,
		onQueryStarted: signals.NewSignal[session.QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[session.QueryEndedEvent](),
	}
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return s.onQueryStarted
}

func (s *Session) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return s.onQueryEnded
}

func (s *Session) Connection() session.DbConnection {
	if s.tx != nil {
		return &connection{session: s, exec: s.tx}
	}
	return &connection{session: s, exec: s.conn}
}

func (s *Session) TransactionDepth() int {
	return s.depth.Level()
}

func (s *Session) BeginTransaction(ctx context.Context) error {
	if !s.depth.Begin() {
		return nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		s.depth.Reset()
		return errors.Wrap(err, "unable to start transaction")
	}
	s.tx = tx
	return nil
}

func (s *Session) CommitTransaction(ctx context.Context) error {
	finalize, rollback, err := s.depth.Commit()
	if err != nil || !finalize {
		return err
	}
	tx := s.tx
	s.tx = nil
	if rollback {
		if txErr := tx.Rollback(ctx); txErr != nil {
			return multierror.Append(session.ErrRollbackOnly, txErr)
		}
		return session.ErrRollbackOnly
	}
	if txErr := tx.Commit(ctx); txErr != nil {
		return errors.Wrap(txErr, "failed to commit transaction")
	}
	return nil
}

func (s *Session) RollbackTransaction(ctx context.Context) error {
	finalize, err := s.depth.Rollback()
	if err != nil || !finalize {
		return err
	}
	tx := s.tx
	s.tx = nil
	if txErr := tx.Rollback(ctx); txErr != nil {
		return errors.Wrap(txErr, "failed to rollback transaction")
	}
	return nil
}

// Atomic runs callback inside a transaction, joining the open one if any.
func (s *Session) Atomic(callback session.SessionCallback) error {
	if err := s.BeginTransaction(s.ctx); err != nil {
		return err
	}
	err := callback(s)
	if err != nil {
		if txErr := s.RollbackTransaction(s.ctx); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	return s.CommitTransaction(s.ctx)
}

// connection implements session.DbConnection
type connection struct {
	session *Session
	exec    executor
}

func (c *connection) Exec(query string, args ...any) (r session.Result, err error) {
	defer c.observe(query, args)(&err)
	if utils.IsAutoincrementInsertQuery(query) {
		return c.insert(query, args...)
	}

	tag, err := c.exec.Exec(c.session.ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return result.NewResult(0, tag.RowsAffected()), nil
}

func (c *connection) insert(query string, args ...any) (session.Result, error) {
	var id int64
	err := c.exec.QueryRow(c.session.ctx, query, args...).Scan(&id)
	if err != nil {
		return nil, err
	}

	return result.NewResult(id, 0), nil
}

func (c *connection) Query(query string, args ...any) (r session.Rows, err error) {
	defer c.observe(query, args)(&err)
	rows, err := c.exec.Query(c.session.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgxRows{rows}, nil
}

func (c *connection) QueryRow(query string, args ...any) session.Row {
	var err error
	defer c.observe(query, args)(&err)
	row := c.exec.QueryRow(c.session.ctx, query, args...)
	return &pgxRow{Row: row}
}

// observe publishes the query events; observer failures never fail the query.
func (c *connection) observe(query string, args []any) func(*error) {
	started := time.Now()
	_ = c.session.onQueryStarted.Notify(session.QueryStartedEvent{
		Query: query, Params: args, Session: c.session,
	})
	return func(err *error) {
		_ = c.session.onQueryEnded.Notify(session.QueryEndedEvent{
			Query: query, Params: args, Session: c.session,
			ResponseTime: time.Since(started), Err: *err,
		})
	}
}

// pgxRows closes without an error; pgx reports it through Err.
type pgxRows struct {
	pgx.Rows
}

func (r pgxRows) Close() error {
	r.Rows.Close()
	return nil
}

// pgxRow keeps the first Scan error for Err.
type pgxRow struct {
	pgx.Row
	err error
}

func (r *pgxRow) Err() error {
	return r.err
}

func (r *pgxRow) Scan(dest ...any) error {
	err := r.Row.Scan(dest...)
	if r.err == nil {
		r.err = err
	}
	return err
}
