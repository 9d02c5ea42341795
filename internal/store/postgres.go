package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/clawledger/internal/address"
	"github.com/punchamoorthee/clawledger/internal/domain"
)

//go:embed schema_postgres.sql
var postgresSchema string

// SQLSTATE codes that mean the request lost a race and must be rejected.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// Postgres stores the ledger in PostgreSQL. Each transaction runs at REPEATABLE READ
// and locks every record it reads, so two requests touching the same vault
// serialize or one of them is rejected with domain.ErrConflict.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to apply schema: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if tx, ok := joined(ctx, p); ok {
		return fn(ctx, tx)
	}

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	ptx := &postgresTx{tx: tx}
	if err := fn(withTx(ctx, p, ptx), ptx); err != nil {
		return classifyPg(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return classifyPg(fmt.Errorf("tx commit failed: %w", err))
	}
	return nil
}

// classifyPg turns lost races into domain.ErrConflict and leaves everything else alone.
func classifyPg(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgUniqueViolation:
			return fmt.Errorf("%w: %s", domain.ErrConflict, pgErr.Message)
		}
	}
	return err
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Get(ctx context.Context, kind Kind, addr address.Address) ([]byte, error) {
	var body string
	err := t.tx.QueryRow(ctx,
		"SELECT body::text FROM records WHERE kind = $1 AND address = $2 FOR UPDATE",
		string(kind), addr.String(),
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record query failed: %w", err)
	}
	return []byte(body), nil
}

func (t *postgresTx) Insert(ctx context.Context, kind Kind, addr address.Address, body []byte) error {
	tag, err := t.tx.Exec(ctx,
		"INSERT INTO records (kind, address, body) VALUES ($1, $2, $3::jsonb) ON CONFLICT (kind, address) DO NOTHING",
		string(kind), addr.String(), string(body),
	)
	if err != nil {
		return fmt.Errorf("record insert failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrExists
	}
	return nil
}

func (t *postgresTx) Update(ctx context.Context, kind Kind, addr address.Address, body []byte) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE records SET body = $3::jsonb, updated_at = now() WHERE kind = $1 AND address = $2",
		string(kind), addr.String(), string(body),
	)
	if err != nil {
		return fmt.Errorf("record update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *postgresTx) List(ctx context.Context, kind Kind) ([][]byte, error) {
	rows, err := t.tx.Query(ctx,
		"SELECT body::text FROM records WHERE kind = $1 ORDER BY address",
		string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("record list failed: %w", err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("record scan failed: %w", err)
		}
		out = append(out, []byte(body))
	}
	return out, rows.Err()
}

func (t *postgresTx) AppendEvent(ctx context.Context, eventType string, timestamp int64, payload []byte) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx,
		"INSERT INTO events (type, occurred_at, payload) VALUES ($1, $2, $3::jsonb) RETURNING seq",
		eventType, timestamp, string(payload),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("event insert failed: %w", err)
	}
	return seq, nil
}

func (t *postgresTx) Events(ctx context.Context, after int64, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := t.tx.Query(ctx,
		"SELECT seq, type, occurred_at, payload::text FROM events WHERE seq > $1 ORDER BY seq LIMIT $2",
		after, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("event query failed: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var e domain.Event
		var payload string
		if err := rows.Scan(&e.Seq, &e.Type, &e.Timestamp, &payload); err != nil {
			return nil, fmt.Errorf("event scan failed: %w", err)
		}
		e.Payload = []byte(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *postgresTx) Idempotency(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	rec := domain.IdempotencyRecord{Key: key}
	var body string
	err := t.tx.QueryRow(ctx,
		"SELECT request_hash, response_status, response_body::text FROM idempotency_keys WHERE key = $1",
		key,
	).Scan(&rec.RequestHash, &rec.ResponseStatus, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency query failed: %w", err)
	}
	rec.ResponseBody = []byte(body)
	return &rec, nil
}

func (t *postgresTx) SaveIdempotency(ctx context.Context, rec domain.IdempotencyRecord) error {
	_, err := t.tx.Exec(ctx,
		"INSERT INTO idempotency_keys (key, request_hash, response_status, response_body) VALUES ($1, $2, $3, $4::jsonb)",
		rec.Key, rec.RequestHash, rec.ResponseStatus, string(rec.ResponseBody),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrExists
		}
		return fmt.Errorf("idempotency insert failed: %w", err)
	}
	return nil
}
