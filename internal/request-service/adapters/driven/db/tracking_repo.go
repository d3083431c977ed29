package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"

	"github.com/jackc/pgx/v5"
)

func (d *DB) GetSession(ctx context.Context, requestID, donorID string) (model.TrackingSession, error) {
	var data []byte
	q := `SELECT data FROM tracking_sessions WHERE request_id = $1 AND donor_id = $2`
	err := d.pool.QueryRow(ctx, q, requestID, donorID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TrackingSession{}, myerrors.New(myerrors.KindNotFound, "no tracking session for %s/%s", requestID, donorID)
	}
	if err != nil {
		return model.TrackingSession{}, err
	}
	var s model.TrackingSession
	if err := json.Unmarshal(data, &s); err != nil {
		return model.TrackingSession{}, err
	}
	return s, nil
}

// UpdateSession inserts an open session if none exists, then locks and rewrites it.
func (d *DB) UpdateSession(ctx context.Context, requestID, donorID string, fn func(*model.TrackingSession) error) (model.TrackingSession, error) {
	fresh, err := json.Marshal(model.TrackingSession{RequestID: requestID, DonorID: donorID, Status: model.SessionOpen})
	if err != nil {
		return model.TrackingSession{}, err
	}

	var out model.TrackingSession
	err = d.inTx(ctx, func(tx pgx.Tx) error {
		insert := `INSERT INTO tracking_sessions (request_id, donor_id, status, data)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (request_id, donor_id) DO NOTHING`
		if _, err := tx.Exec(ctx, insert, requestID, donorID, string(model.SessionOpen), fresh); err != nil {
			return err
		}

		var data []byte
		sel := `SELECT data FROM tracking_sessions WHERE request_id = $1 AND donor_id = $2 FOR UPDATE`
		if err := tx.QueryRow(ctx, sel, requestID, donorID).Scan(&data); err != nil {
			return err
		}
		var s model.TrackingSession
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if err := fn(&s); err != nil {
			return err
		}
		s.RequestID, s.DonorID = requestID, donorID

		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		upd := `UPDATE tracking_sessions
			SET status = $3, tracking_deadline = $4, prompted_at = $5, data = $6
			WHERE request_id = $1 AND donor_id = $2`
		if _, err := tx.Exec(ctx, upd, requestID, donorID, string(s.Status), s.TrackingDeadline, s.PromptedAt, data); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return model.TrackingSession{}, err
	}
	return out, nil
}

func (d *DB) ListSessions(ctx context.Context, requestID string) ([]model.TrackingSession, error) {
	q := `SELECT data FROM tracking_sessions WHERE request_id = $1 ORDER BY donor_id`
	rows, err := d.pool.Query(ctx, q, requestID)
	if err != nil {
		return nil, err
	}
	return collectJSON[model.TrackingSession](rows)
}

func (d *DB) ListDueSessions(ctx context.Context, now time.Time) ([]model.TrackingSession, error) {
	q := `SELECT data FROM tracking_sessions
		WHERE status = 'open' AND prompted_at IS NULL AND tracking_deadline <= $1
		ORDER BY tracking_deadline`
	rows, err := d.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	return collectJSON[model.TrackingSession](rows)
}
