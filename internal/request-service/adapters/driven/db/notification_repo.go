package db

import (
	"context"
	"encoding/json"

	"blood-link/internal/request-service/core/domain/model"
)

func (d *DB) AppendNotification(ctx context.Context, n model.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	q := `INSERT INTO notifications (id, user_id, sent_at, data) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	_, err = d.pool.Exec(ctx, q, n.ID, n.UserID, n.SentAt, data)
	return mapError(err)
}

// ListNotifications returns every entry when limit is not positive.
func (d *DB) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	q := `SELECT data FROM notifications WHERE user_id = $1 ORDER BY sent_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := d.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collectJSON[model.Notification](rows)
}
