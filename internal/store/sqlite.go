package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite stores the ledger in a single SQLite file.
// One connection is kept open, so transactions are serialized by the driver.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
// It is safe to call on an existing database.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if tx, ok := joined(ctx, s); ok {
		return fn(ctx, tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	stx := &sqliteTx{tx: tx}
	if err := fn(withTx(ctx, s, stx), stx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Get(ctx context.Context, kind Kind, addr address.Address) ([]byte, error) {
	var body []byte
	err := t.tx.QueryRowContext(ctx,
		"SELECT body FROM records WHERE kind = ? AND address = ?",
		string(kind), addr.String(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record query failed: %w", err)
	}
	return body, nil
}

func (t *sqliteTx) Insert(ctx context.Context, kind Kind, addr address.Address, body []byte) error {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO records (kind, address, body) VALUES (?, ?, ?) ON CONFLICT (kind, address) DO NOTHING",
		string(kind), addr.String(), body,
	)
	if err != nil {
		return fmt.Errorf("record insert failed: %w", err)
	}
	return requireRow(res, ErrExists)
}

func (t *sqliteTx) Update(ctx context.Context, kind Kind, addr address.Address, body []byte) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE records SET body = ?, updated_at = CURRENT_TIMESTAMP WHERE kind = ? AND address = ?",
		body, string(kind), addr.String(),
	)
	if err != nil {
		return fmt.Errorf("record update failed: %w", err)
	}
	return requireRow(res, ErrNotFound)
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func (t *sqliteTx) List(ctx context.Context, kind Kind) ([][]byte, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT body FROM records WHERE kind = ? ORDER BY address",
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("record list failed: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("record scan failed: %w", err)
		}
		out = append(out, body)
	}
	return out, rows.Err()
}

func (t *sqliteTx) AppendEvent(ctx context.Context, eventType string, timestamp int64, payload []byte) (int64, error) {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO events (type, occurred_at, payload) VALUES (?, ?, ?)",
		eventType, timestamp, payload,
	)
	if err != nil {
		return 0, fmt.Errorf("event insert failed: %w", err)
	}
	return res.LastInsertId()
}

func (t *sqliteTx) Events(ctx context.Context, after int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := t.tx.QueryContext(ctx,
		"SELECT seq, type, occurred_at, payload FROM events WHERE seq > ? ORDER BY seq LIMIT ?",
		after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("event query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload []byte
		if err := rows.Scan(&e.Seq, &e.Type, &e.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("event scan failed: %w", err)
		}
		e.Payload = payload
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *sqliteTx) Idempotency(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec := domain.IdempotencyRecord{Key: key}
	var body []byte
	err := t.tx.QueryRowContext(ctx,
		"SELECT request_hash, response_status, response_body FROM idempotency_keys WHERE key = ?",
		key,
	).Scan(&rec.RequestHash, &rec.ResponseStatus, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	rec.ResponseBody = body
	return &rec, nil
}

func (t *sqliteTx) SaveIdempotency(ctx context.Context, rec domain.IdempotencyRecord) error {
	res, err := t.tx.ExecContext(ctx,
		"INSERT INTO idempotency_keys (key, request_hash, response_status, response_body) VALUES (?, ?, ?, ?) ON CONFLICT (key) DO NOTHING",
		rec.Key, rec.RequestHash, rec.ResponseStatus, []byte(rec.ResponseBody),
	)
	if err != nil {
		return fmt.Errorf("idempotency insert failed: %w", err)
	}
	return requireRow(res, ErrExists)
}
