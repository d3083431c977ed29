package ports

import (
	"context"
	"time"

	"blood-link/internal/request-service/core/domain/model"
)

// IRequestRepo stores blood requests. Update is linearizable per request id:
// fn sees the latest committed record and its mutation is committed atomically.
// A non-nil error from fn aborts the write and is returned unchanged.
type IRequestRepo interface {
	// Create inserts r unless the requester already has maxActive active requests,
	// in which case nothing is written and a rate limit error is returned.
	Create(ctx context.Context, r model.Request, maxActive int) error
	Get(ctx context.Context, id string) (model.Request, error)
	Update(ctx context.Context, id string, fn func(*model.Request) error) (model.Request, error)
	ListByStatus(ctx context.Context, statuses ...model.Status) ([]model.Request, error)
	CountActiveByRequester(ctx context.Context, requesterID string) (int, error)
	// CountByStatus omits statuses with no requests.
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	// ListByRequester and ListByDonor return the newest requests first.
	ListByRequester(ctx context.Context, requesterID string) ([]model.Request, error)
	// ListByDonor returns requests whose donors include donorID, in any status.
	ListByDonor(ctx context.Context, donorID string) ([]model.Request, error)
	Delete(ctx context.Context, id string) error
}

// ITrackingRepo stores tracking sessions keyed by (request id, donor id).
// Update passes a fresh open session to fn when none exists yet.
type ITrackingRepo interface {
	GetSession(ctx context.Context, requestID, donorID string) (model.TrackingSession, error)
	UpdateSession(ctx context.Context, requestID, donorID string, fn func(*model.TrackingSession) error) (model.TrackingSession, error)
	ListSessions(ctx context.Context, requestID string) ([]model.TrackingSession, error)
	// ListDueSessions returns open, not yet prompted sessions whose deadline is at or before now.
	ListDueSessions(ctx context.Context, now time.Time) ([]model.TrackingSession, error)
}

// IProfileRepo is the profile collaborator. Upsert only writes owner fields;
// LastDonationDate and DonationCount are engine owned.
type IProfileRepo interface {
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error)
	ListAvailableDonors(ctx context.Context) ([]model.Profile, error)
	RecordDonation(ctx context.Context, userID string, at time.Time) error
}

type IStatsRepo interface {
	IncrementDonationCount(ctx context.Context, donorID string) error
	IncrementGlobalStat(ctx context.Context, name string) error
	GlobalStat(ctx context.Context, name string) (int64, error)
}

// INotificationRepo is the per-user notification history.
type INotificationRepo interface {
	AppendNotification(ctx context.Context, n model.Notification) error
	// ListNotifications returns at most limit entries for userID, newest first.
	ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error)
}

// IStore is the full persistence surface a backend provides.
type IStore interface {
	IRequestRepo
	ITrackingRepo
	IProfileRepo
	IStatsRepo
	INotificationRepo
	IsAlive(ctx context.Context) error
	Close() error
}
