// Package journal records action batches in SQLite (or PostgreSQL) so a
// session can be replayed later.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/0-chirag-s/sitecrafter/api"
)

// dialect holds the per-driver SQL.
type dialect struct {
	driver   string
	schema   string
	insert   string
	stream   string
	sessions string
}

var sqliteDialect = dialect{
	driver: "sqlite",
	schema: `
CREATE TABLE IF NOT EXISTS batches (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT NOT NULL,
	created INTEGER NOT NULL,
	actions JSON NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_session ON batches(session, seq);
`,
	insert:   "INSERT INTO batches (session, created, actions) VALUES (?, ?, ?) RETURNING seq",
	stream:   "SELECT seq, actions FROM batches WHERE session = ? ORDER BY seq",
	sessions: "SELECT session FROM batches GROUP BY session ORDER BY MIN(seq)",
}

var postgresDialect = dialect{
	driver: "postgres",
	schema: `
CREATE TABLE IF NOT EXISTS batches (
	seq BIGSERIAL PRIMARY KEY,
	session TEXT NOT NULL,
	created BIGINT NOT NULL,
	actions JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_batches_session ON batches(session, seq);
`,
	insert:   "INSERT INTO batches (session, created, actions) VALUES ($1, $2, $3) RETURNING seq",
	stream:   "SELECT seq, actions FROM batches WHERE session = $1 ORDER BY seq",
	sessions: "SELECT session FROM batches GROUP BY session ORDER BY MIN(seq)",
}

// Journal is an append-only store of action batches keyed by session.
type Journal struct {
	db *sql.DB
	d  dialect
}

// Open opens or creates a journal. A postgres:// or postgresql:// DSN
// selects PostgreSQL; anything else is a SQLite file path.
func Open(dsn string) (*Journal, error) {
	if isPostgresDSN(dsn) {
		return openPostgres(dsn)
	}
	return openSQLite(dsn)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func openSQLite(path string) (*Journal, error) {
	db, err := sql.Open(sqliteDialect.driver, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	return initSchema(db, sqliteDialect)
}

func openPostgres(dsn string) (*Journal, error) {
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return initSchema(db, postgresDialect)
}

func initSchema(db *sql.DB, d dialect) (*Journal, error) {
	if _, err := db.Exec(d.schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Journal{db: db, d: d}, nil
}

// Append stores batch for session and returns its sequence number.
func (j *Journal) Append(ctx context.Context, session string, batch []api.Action) (int64, error) {
	raw, err := json.Marshal(batch)
	if err != nil {
		return 0, fmt.Errorf("encode batch: %w", err)
	}
	var seq int64
	err = j.db.QueryRowContext(ctx, j.d.insert,
		session, time.Now().UnixNano(), string(raw),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("insert batch: %w", err)
	}
	return seq, nil
}

// Stream calls fn for each batch of session in append order.
// Only one decoded batch is alive at a time. fn must not call back into
// the journal: the single connection is held until Stream returns.
func (j *Journal) Stream(ctx context.Context, session string, fn func(seq int64, batch []api.Action) error) error {
	rows, err := j.db.QueryContext(ctx, j.d.stream, session)
	if err != nil {
		return fmt.Errorf("query batches: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var (
			seq int64
			raw string
		)
		if err := rows.Scan(&seq, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		var batch []api.Action
		if err := json.Unmarshal([]byte(raw), &batch); err != nil {
			return fmt.Errorf("parse batch %d: %w", seq, err)
		}
		if err := fn(seq, batch); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Sessions lists the recorded sessions, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, j.d.sessions)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
