package db

import (
	"context"
	"errors"
	"fmt"

	"blood-link/internal/config"
	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/myerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id           TEXT PRIMARY KEY,
	requester_id TEXT NOT NULL,
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL,
	data         JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS requests_status_idx ON requests (status, created_at);
CREATE INDEX IF NOT EXISTS requests_requester_idx ON requests (requester_id, status);

CREATE TABLE IF NOT EXISTS tracking_sessions (
	request_id        TEXT NOT NULL,
	donor_id          TEXT NOT NULL,
	status            TEXT NOT NULL,
	tracking_deadline TIMESTAMPTZ,
	prompted_at       TIMESTAMPTZ,
	data              JSONB NOT NULL,
	PRIMARY KEY (request_id, donor_id)
);
CREATE INDEX IF NOT EXISTS tracking_due_idx ON tracking_sessions (tracking_deadline)
	WHERE status = 'open' AND prompted_at IS NULL;

CREATE TABLE IF NOT EXISTS profiles (
	user_id      TEXT PRIMARY KEY,
	is_available BOOLEAN NOT NULL DEFAULT FALSE,
	data         JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS stats (
	name  TEXT PRIMARY KEY,
	value BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS notifications (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	sent_at TIMESTAMPTZ NOT NULL,
	data    JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS notifications_user_idx ON notifications (user_id, sent_at DESC);
CREATE INDEX IF NOT EXISTS requests_donors_idx ON requests USING GIN ((data->'donors') jsonb_path_ops);
`

// Postgres error codes that mean "try again".
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

type DB struct {
	cfg   *config.DBconfig
	mylog mylogger.Logger
	pool  *pgxpool.Pool
}

// New opens a connection pool and applies the schema.
func New(ctx context.Context, dbCfg *config.DBconfig, mylog mylogger.Logger) (*DB, error) {
	return Open(ctx, dsn(dbCfg), dbCfg, mylog)
}

// Open is New with an explicit connection string; dbCfg only tunes the pool.
func Open(ctx context.Context, connString string, dbCfg *config.DBconfig, mylog mylogger.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if dbCfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(dbCfg.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	d := &DB{cfg: dbCfg, mylog: mylog, pool: pool}

	if err := d.IsAlive(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return d, nil
}

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}

// IsAlive pings the DB to verify it's responsive
func (d *DB) IsAlive(ctx context.Context) error {
	if d.pool == nil {
		return fmt.Errorf("DB is not initialized")
	}
	if err := d.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", myerrors.ErrDBConnClosed, err)
	}
	return nil
}

// inTx runs fn in a transaction and commits when it returns nil.
func (d *DB) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapError(err)
	}
	defer tx.Rollback(ctx) // Safe rollback if not committed

	if err := fn(tx); err != nil {
		return mapError(err)
	}
	return mapError(tx.Commit(ctx))
}

func dsn(cfg *config.DBconfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)
}

// mapError turns transient lock contention into a conflict the services retry.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return myerrors.Wrap(myerrors.KindConflict, err, "concurrent update, try again")
		}
	}
	return err
}
