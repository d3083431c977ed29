package db

import (
	"context"
	"encoding/json"
	"errors"

	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"

	"github.com/jackc/pgx/v5"
)

func (d *DB) Create(ctx context.Context, r model.Request, maxActive int) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return d.inTx(ctx, func(tx pgx.Tx) error {
		// serializes creates per requester so two concurrent posts cannot both pass the limit
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, r.RequesterID); err != nil {
			return err
		}
		if maxActive > 0 {
			var active int
			q := `SELECT COUNT(*) FROM requests WHERE requester_id = $1 AND status = 'active'`
			if err := tx.QueryRow(ctx, q, r.RequesterID).Scan(&active); err != nil {
				return err
			}
			if active >= maxActive {
				return myerrors.New(myerrors.KindRateLimit, "requester %s has %d active requests", r.RequesterID, active)
			}
		}

		q := `INSERT INTO requests (id, requester_id, status, created_at, expires_at, data)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`
		tag, err := tx.Exec(ctx, q, r.ID, r.RequesterID, string(r.Status), r.CreatedAt, r.ExpiresAt, data)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return myerrors.New(myerrors.KindConflict, "request %s already exists", r.ID)
		}
		return nil
	})
}

func (d *DB) Get(ctx context.Context, id string) (model.Request, error) {
	var data []byte
	err := d.pool.QueryRow(ctx, `SELECT data FROM requests WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Request{}, myerrors.New(myerrors.KindNotFound, "request %s not found", id)
	}
	if err != nil {
		return model.Request{}, err
	}
	var r model.Request
	if err := json.Unmarshal(data, &r); err != nil {
		return model.Request{}, err
	}
	return r, nil
}

// Update locks the row with SELECT ... FOR UPDATE for the length of fn.
func (d *DB) Update(ctx context.Context, id string, fn func(*model.Request) error) (model.Request, error) {
	var out model.Request
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		var data []byte
		err := tx.QueryRow(ctx, `SELECT data FROM requests WHERE id = $1 FOR UPDATE`, id).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return myerrors.New(myerrors.KindNotFound, "request %s not found", id)
		}
		if err != nil {
			return err
		}
		var r model.Request
		if err := json.Unmarshal(data, &r); err != nil {
			return err
		}
		if err := fn(&r); err != nil {
			return err
		}
		r.ID = id

		data, err = json.Marshal(r)
		if err != nil {
			return err
		}
		q := `UPDATE requests SET status = $2, expires_at = $3, data = $4 WHERE id = $1`
		if _, err := tx.Exec(ctx, q, id, string(r.Status), r.ExpiresAt, data); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return model.Request{}, err
	}
	return out, nil
}

func (d *DB) ListByStatus(ctx context.Context, statuses ...model.Status) ([]model.Request, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, string(s))
	}
	rows, err := d.pool.Query(ctx, `SELECT data FROM requests WHERE status = ANY($1) ORDER BY created_at`, names)
	if err != nil {
		return nil, err
	}
	return collectJSON[model.Request](rows)
}

func (d *DB) ListByRequester(ctx context.Context, requesterID string) ([]model.Request, error) {
	q := `SELECT data FROM requests WHERE requester_id = $1 ORDER BY created_at DESC, id`
	rows, err := d.pool.Query(ctx, q, requesterID)
	if err != nil {
		return nil, err
	}
	return collectJSON[model.Request](rows)
}

// ListByDonor matches on the donors array with jsonb containment.
func (d *DB) ListByDonor(ctx context.Context, donorID string) ([]model.Request, error) {
	q := `SELECT data FROM requests
		WHERE data->'donors' @> jsonb_build_array(jsonb_build_object('donor_id', $1::text))
		ORDER BY created_at DESC, id`
	rows, err := d.pool.Query(ctx, q, donorID)
	if err != nil {
		return nil, err
	}
	return collectJSON[model.Request](rows)
}

func (d *DB) CountActiveByRequester(ctx context.Context, requesterID string) (int, error) {
	var n int
	q := `SELECT COUNT(*) FROM requests WHERE requester_id = $1 AND status = 'active'`
	err := d.pool.QueryRow(ctx, q, requesterID).Scan(&n)
	return n, err
}

func (d *DB) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := d.pool.Query(ctx, `SELECT status, COUNT(*) FROM requests GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[model.Status(status)] = n
	}
	return out, rows.Err()
}

func (d *DB) Delete(ctx context.Context, id string) error {
	return d.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM requests WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return myerrors.New(myerrors.KindNotFound, "request %s not found", id)
		}
		_, err = tx.Exec(ctx, `DELETE FROM tracking_sessions WHERE request_id = $1`, id)
		return err
	})
}

// collectJSON decodes a single JSONB column from every row.
func collectJSON[T any](rows pgx.Rows) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
