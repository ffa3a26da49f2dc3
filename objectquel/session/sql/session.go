package sql

import (
	"context"
	"database/sql"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/krew-solutions/objectquel-go/objectquel/session"
	"github.com/krew-solutions/objectquel-go/objectquel/session/result"
	"github.com/krew-solutions/objectquel-go/objectquel/utils"
)

func NewSession(ctx context.Context, db *sql.DB) *Session {
	return &Session{
		ctx:        ctx,
		db:         db,
		dbExecutor: db,
	}
}

// Session runs statements on a *sql.DB, or on its open transaction.
// database/sql has no savepoints, so nested transactions are joined.
type Session struct {
	ctx        context.Context
	db         *sql.DB
	tx         *sql.Tx
	dbExecutor DbExecutor
	depth      session.TransactionDepth
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Connection() session.DbConnection {
	return s
}

func (s *Session) TransactionDepth() int {
	return s.depth.Level()
}

func (s *Session) BeginTransaction(ctx context.Context) error {
	if !s.depth.Begin() {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.depth.Reset()
		return errors.Wrap(err, "unable to start transaction")
	}
	s.tx = tx
	s.dbExecutor = tx
	return nil
}

func (s *Session) CommitTransaction(ctx context.Context) error {
	finalize, rollback, err := s.depth.Commit()
	if err != nil || !finalize {
		return err
	}
	tx := s.detach()
	if rollback {
		if txErr := tx.Rollback(); txErr != nil {
			return multierror.Append(session.ErrRollbackOnly, txErr)
		}
		return session.ErrRollbackOnly
	}
	if txErr := tx.Commit(); txErr != nil {
		return errors.Wrap(txErr, "failed to commit tx")
	}
	return nil
}

func (s *Session) RollbackTransaction(ctx context.Context) error {
	finalize, err := s.depth.Rollback()
	if err != nil || !finalize {
		return err
	}
	if txErr := s.detach().Rollback(); txErr != nil {
		return errors.Wrap(txErr, "failed to rollback tx")
	}
	return nil
}

func (s *Session) detach() *sql.Tx {
	tx := s.tx
	s.tx = nil
	s.dbExecutor = s.db
	return tx
}

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

func (s *Session) Exec(query string, args ...any) (session.Result, error) {
	if utils.IsAutoincrementInsertQuery(query) {
		return s.insert(query, args...)
	}
	return s.dbExecutor.ExecContext(s.ctx, query, args...)
}

func (s *Session) insert(query string, args ...any) (session.Result, error) {
	var id int64
	err := s.dbExecutor.QueryRowContext(s.ctx, query, args...).Scan(&id)
	if err != nil {
		return nil, err
	}
	return result.NewResult(id, 0), nil
}

func (s *Session) Query(query string, args ...any) (session.Rows, error) {
	rows, err := s.dbExecutor.QueryContext(s.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Session) QueryRow(query string, args ...any) session.Row {
	return s.dbExecutor.QueryRowContext(s.ctx, query, args...)
}

type DbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
