package storage

import (
	"context"
	"database/sql"
	"strings"

	// Register sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

type DB interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// OpenSQLite opens dsn. In-memory databases are pinned to one connection so
// every query sees the same data.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	}
	return db, nil
}

func InitSchema(ctx context.Context, db DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS analysis_runs(
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		chat_id INTEGER,
		assets TEXT NOT NULL,
		lookback_days INTEGER NOT NULL,
		ok INTEGER NOT NULL,
		error TEXT,
		duration_ms INTEGER,
		ts INTEGER NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS analysis_runs_ts ON analysis_runs(ts)`)
	return err
}
