// Package sqlite is a single node persistent store: the memory store serves reads and
// every committed record is written through to SQLite before the commit is visible.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"blood-link/internal/request-service/adapters/driven/memory"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/ports"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS requests (
	id   TEXT PRIMARY KEY,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS tracking_sessions (
	request_id TEXT NOT NULL,
	donor_id   TEXT NOT NULL,
	data       BLOB NOT NULL,
	PRIMARY KEY (request_id, donor_id)
);
CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	data    BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS stats (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	data    BLOB NOT NULL
);
`

type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

var _ ports.IStore = (*Store)(nil)

// NewStore opens (or creates) the database at path and loads every record into memory.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "bloodlink.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; SQLite serializes writes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	s := &Store{db: db, path: path}
	s.Store = memory.NewWithPersister(persister{db: db})
	if err := s.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) IsAlive(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) load() error {
	requests, err := loadJSON[model.Request](s.db, `SELECT data FROM requests`)
	if err != nil {
		return fmt.Errorf("load requests: %w", err)
	}
	sessions, err := loadJSON[model.TrackingSession](s.db, `SELECT data FROM tracking_sessions`)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	profiles, err := loadJSON[model.Profile](s.db, `SELECT data FROM profiles`)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	notifications, err := loadJSON[model.Notification](s.db, `SELECT data FROM notifications ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("load notifications: %w", err)
	}

	stats := make(map[string]int64)
	rows, err := s.db.Query(`SELECT name, value FROM stats`)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			name  string
			value int64
		)
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("scan stat: %w", err)
		}
		stats[name] = value
	}
	if err := rows.Err(); err != nil {
		return err
	}

	s.Seed(requests, sessions, profiles, stats, notifications)
	return nil
}

func loadJSON[T any](db *sql.DB, query string) ([]T, error) {
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// persister writes one record per call; the memory store only commits when it succeeds.
type persister struct {
	db *sql.DB
}

func (p persister) SaveRequest(r model.Request) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`INSERT INTO requests (id, data) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET data = excluded.data`, r.ID, data)
	return err
}

func (p persister) DeleteRequest(id string) (retErr error) {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.Exec(`DELETE FROM requests WHERE id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM tracking_sessions WHERE request_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (p persister) SaveSession(ts model.TrackingSession) error {
	data, err := json.Marshal(ts)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`INSERT INTO tracking_sessions (request_id, donor_id, data) VALUES (?, ?, ?)
		ON CONFLICT (request_id, donor_id) DO UPDATE SET data = excluded.data`, ts.RequestID, ts.DonorID, data)
	return err
}

func (p persister) SaveProfile(pr model.Profile) error {
	data, err := json.Marshal(pr)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`INSERT INTO profiles (user_id, data) VALUES (?, ?)
		ON CONFLICT (user_id) DO UPDATE SET data = excluded.data`, pr.UserID, data)
	return err
}

func (p persister) SaveStat(name string, value int64) error {
	_, err := p.db.Exec(`INSERT INTO stats (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value`, name, value)
	return err
}

func (p persister) SaveNotification(n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = p.db.Exec(`INSERT INTO notifications (id, user_id, data) VALUES (?, ?, ?)
		ON CONFLICT (id) DO NOTHING`, n.ID, n.UserID, data)
	return err
}
