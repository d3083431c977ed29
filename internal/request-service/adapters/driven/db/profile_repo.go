package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"

	"github.com/jackc/pgx/v5"
)

var _ ports.IStore = (*DB)(nil)

func (d *DB) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	var data []byte
	err := d.pool.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id = $1`, userID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Profile{}, myerrors.New(myerrors.KindNotFound, "profile %s not found", userID)
	}
	if err != nil {
		return model.Profile{}, err
	}
	var p model.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Profile{}, err
	}
	return p, nil
}

// UpsertProfile writes the owner fields and keeps the donation history already stored.
func (d *DB) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	return d.updateProfile(ctx, p.UserID, true, func(cur *model.Profile) {
		lastDonation, count := cur.LastDonationDate, cur.DonationCount
		*cur = p
		cur.LastDonationDate, cur.DonationCount = lastDonation, count
	})
}

func (d *DB) ListAvailableDonors(ctx context.Context) ([]model.Profile, error) {
	rows, err := d.pool.Query(ctx, `SELECT data FROM profiles WHERE is_available ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return collectJSON[model.Profile](rows)
}

func (d *DB) RecordDonation(ctx context.Context, userID string, at time.Time) error {
	_, err := d.updateProfile(ctx, userID, false, func(cur *model.Profile) {
		t := at
		cur.LastDonationDate = &t
	})
	return err
}

func (d *DB) IncrementDonationCount(ctx context.Context, donorID string) error {
	_, err := d.updateProfile(ctx, donorID, false, func(cur *model.Profile) {
		cur.DonationCount++
	})
	return err
}

func (d *DB) IncrementGlobalStat(ctx context.Context, name string) error {
	q := `INSERT INTO stats (name, value) VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET value = stats.value + 1`
	_, err := d.pool.Exec(ctx, q, name)
	return mapError(err)
}

func (d *DB) GlobalStat(ctx context.Context, name string) (int64, error) {
	var v int64
	err := d.pool.QueryRow(ctx, `SELECT value FROM stats WHERE name = $1`, name).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return v, err
}

func (d *DB) updateProfile(ctx context.Context, userID string, create bool, fn func(*model.Profile)) (model.Profile, error) {
	var out model.Profile
	err := d.inTx(ctx, func(tx pgx.Tx) error {
		var (
			cur  model.Profile
			data []byte
		)
		err := tx.QueryRow(ctx, `SELECT data FROM profiles WHERE user_id = $1 FOR UPDATE`, userID).Scan(&data)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			if !create {
				return myerrors.New(myerrors.KindNotFound, "profile %s not found", userID)
			}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(data, &cur); err != nil {
				return err
			}
		}

		fn(&cur)
		cur.UserID = userID
		data, err = json.Marshal(cur)
		if err != nil {
			return err
		}
		q := `INSERT INTO profiles (user_id, is_available, data) VALUES ($1, $2, $3)
			ON CONFLICT (user_id) DO UPDATE SET is_available = EXCLUDED.is_available, data = EXCLUDED.data`
		if _, err := tx.Exec(ctx, q, userID, cur.IsAvailable, data); err != nil {
			return err
		}
		out = cur
		return nil
	})
	if err != nil {
		return model.Profile{}, err
	}
	return out, nil
}
