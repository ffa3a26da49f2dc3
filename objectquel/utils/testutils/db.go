package testutils

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/krew-solutions/objectquel-go/objectquel/config"
	pgsession "github.com/krew-solutions/objectquel-go/objectquel/session/pg"
	sqlsession "github.com/krew-solutions/objectquel-go/objectquel/session/sql"
)

// NewPgSessionPool connects to the database configured by the OBJECTQUEL_*
// environment. The test is skipped when OBJECTQUEL_DATABASE_DSN is not set.
func NewPgSessionPool(t *testing.T) *pgsession.SessionPool {
	t.Helper()
	if _, ok := os.LookupEnv(config.EnvPrefix + "_DATABASE_DSN"); !ok {
		t.Skip(config.EnvPrefix + "_DATABASE_DSN is not set")
	}
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	pool, err := pgsession.Open(context.Background(), cfg.Database)
	if err != nil {
		t.Fatalf("Failed to create session pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// NewSqliteSession opens a private in-memory database and runs ddl on it.
func NewSqliteSession(t *testing.T, ddl ...string) *sqlsession.Session {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	s := sqlsession.NewSession(context.Background(), db)
	for _, stmt := range ddl {
		if _, err := s.Exec(stmt); err != nil {
			t.Fatalf("Failed to run %q: %v", stmt, err)
		}
	}
	return s
}
