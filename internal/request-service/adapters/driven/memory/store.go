// Package memory keeps requests, tracking sessions, profiles and stats in process
// memory. It backs tests and local development and is the working set of the
// SQLite store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
	"blood-link/internal/request-service/core/ports"
)

var _ ports.IStore = (*Store)(nil)

// Persister receives every committed record while the record's lock is still held,
// so writes for one key reach it in commit order. A returned error aborts the commit.
type Persister interface {
	SaveRequest(model.Request) error
	DeleteRequest(id string) error
	SaveSession(model.TrackingSession) error
	SaveProfile(model.Profile) error
	SaveStat(name string, value int64) error
	SaveNotification(model.Notification) error
}

type sessionKey struct {
	requestID string
	donorID   string
}

type Store struct {
	mu       sync.RWMutex
	requests map[string]model.Request
	sessions map[sessionKey]model.TrackingSession
	profiles map[string]model.Profile
	stats    map[string]int64
	// per user, in append order
	notifications map[string][]model.Notification

	locks   *keyedLocks
	persist Persister
}

func New() *Store {
	return NewWithPersister(nil)
}

func NewWithPersister(p Persister) *Store {
	return &Store{
		requests: make(map[string]model.Request),
		sessions: make(map[sessionKey]model.TrackingSession),
		profiles: make(map[string]model.Profile),
		stats:    make(map[string]int64),

		notifications: make(map[string][]model.Notification),
		locks:    newKeyedLocks(),
		persist:  p,
	}
}

// Seed loads previously persisted records without calling the persister.
func (s *Store) Seed(requests []model.Request, sessions []model.TrackingSession, profiles []model.Profile, stats map[string]int64, notifications []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range requests {
		s.requests[r.ID] = r.Clone()
	}
	for _, ts := range sessions {
		s.sessions[sessionKey{ts.RequestID, ts.DonorID}] = ts.Clone()
	}
	for _, p := range profiles {
		s.profiles[p.UserID] = p.Clone()
	}
	for k, v := range stats {
		s.stats[k] = v
	}
	for _, n := range notifications {
		s.notifications[n.UserID] = append(s.notifications[n.UserID], n.Clone())
	}
}

func (s *Store) IsAlive(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

// ---- requests ----

func (s *Store) Create(ctx context.Context, r model.Request, maxActive int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.lock("requester:" + r.RequesterID)
	defer unlock()

	count, err := s.CountActiveByRequester(ctx, r.RequesterID)
	if err != nil {
		return err
	}
	if maxActive > 0 && count >= maxActive {
		return myerrors.New(myerrors.KindRateLimit, "requester already has %d active requests", count)
	}

	unlockReq := s.locks.lock("request:" + r.ID)
	defer unlockReq()

	s.mu.RLock()
	_, exists := s.requests[r.ID]
	s.mu.RUnlock()
	if exists {
		return myerrors.New(myerrors.KindConflict, "request %s already exists", r.ID)
	}
	if s.persist != nil {
		if err := s.persist.SaveRequest(r); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.requests[r.ID] = r.Clone()
	s.mu.Unlock()
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (model.Request, error) {
	if err := ctx.Err(); err != nil {
		return model.Request{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return model.Request{}, myerrors.New(myerrors.KindNotFound, "request %s not found", id)
	}
	return r.Clone(), nil
}

func (s *Store) Update(ctx context.Context, id string, fn func(*model.Request) error) (model.Request, error) {
	unlock := s.locks.lock("request:" + id)
	defer unlock()

	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Request{}, err
	}
	if err := fn(&current); err != nil {
		return model.Request{}, err
	}
	current.ID = id
	if s.persist != nil {
		if err := s.persist.SaveRequest(current); err != nil {
			return model.Request{}, err
		}
	}
	s.mu.Lock()
	s.requests[id] = current.Clone()
	s.mu.Unlock()
	return current, nil
}

func (s *Store) ListByStatus(ctx context.Context, statuses ...model.Status) ([]model.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[model.Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	s.mu.RLock()
	out := make([]model.Request, 0)
	for _, r := range s.requests {
		if len(want) == 0 || want[r.Status] {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Status]int)
	for _, r := range s.requests {
		out[r.Status]++
	}
	return out, nil
}

func (s *Store) ListByRequester(ctx context.Context, requesterID string) ([]model.Request, error) {
	return s.listNewest(ctx, func(r *model.Request) bool { return r.RequesterID == requesterID })
}

func (s *Store) ListByDonor(ctx context.Context, donorID string) ([]model.Request, error) {
	return s.listNewest(ctx, func(r *model.Request) bool { return r.HasDonor(donorID) })
}

func (s *Store) listNewest(ctx context.Context, keep func(*model.Request) bool) ([]model.Request, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.Request, 0)
	for _, r := range s.requests {
		if keep(&r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountActiveByRequester(ctx context.Context, requesterID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.requests {
		if r.RequesterID == requesterID && r.Status == model.StatusActive {
			n++
		}
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.lock("request:" + id)
	defer unlock()

	s.mu.RLock()
	_, ok := s.requests[id]
	s.mu.RUnlock()
	if !ok {
		return myerrors.New(myerrors.KindNotFound, "request %s not found", id)
	}
	if s.persist != nil {
		if err := s.persist.DeleteRequest(id); err != nil {
			return err
		}
	}
	s.mu.Lock()
	delete(s.requests, id)
	for k := range s.sessions {
		if k.requestID == id {
			delete(s.sessions, k)
		}
	}
	s.mu.Unlock()
	return nil
}

// ---- tracking sessions ----

func (s *Store) GetSession(ctx context.Context, requestID, donorID string) (model.TrackingSession, error) {
	if err := ctx.Err(); err != nil {
		return model.TrackingSession{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.sessions[sessionKey{requestID, donorID}]
	if !ok {
		return model.TrackingSession{}, myerrors.New(myerrors.KindNotFound, "tracking session %s/%s not found", requestID, donorID)
	}
	return ts.Clone(), nil
}

func (s *Store) UpdateSession(ctx context.Context, requestID, donorID string, fn func(*model.TrackingSession) error) (model.TrackingSession, error) {
	if err := ctx.Err(); err != nil {
		return model.TrackingSession{}, err
	}
	unlock := s.locks.lock("session:" + requestID + "/" + donorID)
	defer unlock()

	key := sessionKey{requestID, donorID}
	s.mu.RLock()
	current, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		current = current.Clone()
	} else {
		current = model.TrackingSession{RequestID: requestID, DonorID: donorID, Status: model.SessionOpen}
	}
	if err := fn(&current); err != nil {
		return model.TrackingSession{}, err
	}
	current.RequestID, current.DonorID = requestID, donorID
	if s.persist != nil {
		if err := s.persist.SaveSession(current); err != nil {
			return model.TrackingSession{}, err
		}
	}
	s.mu.Lock()
	s.sessions[key] = current.Clone()
	s.mu.Unlock()
	return current, nil
}

func (s *Store) ListSessions(ctx context.Context, requestID string) ([]model.TrackingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.TrackingSession, 0)
	for k, ts := range s.sessions {
		if k.requestID == requestID {
			out = append(out, ts.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (s *Store) ListDueSessions(ctx context.Context, now time.Time) ([]model.TrackingSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.TrackingSession, 0)
	for _, ts := range s.sessions {
		if ts.PromptedAt == nil && ts.DeadlineElapsed(now) {
			out = append(out, ts.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].TrackingDeadline.Before(*out[j].TrackingDeadline) })
	return out, nil
}

// ---- profiles and stats ----

func (s *Store) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return model.Profile{}, myerrors.New(myerrors.KindNotFound, "profile %s not found", userID)
	}
	return p.Clone(), nil
}

func (s *Store) UpsertProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	return s.updateProfile(ctx, p.UserID, true, func(cur *model.Profile) {
		lastDonation, count := cur.LastDonationDate, cur.DonationCount
		*cur = p.Clone()
		cur.LastDonationDate, cur.DonationCount = lastDonation, count
	})
}

func (s *Store) ListAvailableDonors(ctx context.Context) ([]model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]model.Profile, 0)
	for _, p := range s.profiles {
		if p.IsAvailable {
			out = append(out, p.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *Store) RecordDonation(ctx context.Context, userID string, at time.Time) error {
	_, err := s.updateProfile(ctx, userID, false, func(cur *model.Profile) {
		t := at
		cur.LastDonationDate = &t
	})
	return err
}

func (s *Store) IncrementDonationCount(ctx context.Context, donorID string) error {
	_, err := s.updateProfile(ctx, donorID, false, func(cur *model.Profile) {
		cur.DonationCount++
	})
	return err
}

func (s *Store) IncrementGlobalStat(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.lock("stat:" + name)
	defer unlock()

	s.mu.RLock()
	next := s.stats[name] + 1
	s.mu.RUnlock()
	if s.persist != nil {
		if err := s.persist.SaveStat(name, next); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.stats[name] = next
	s.mu.Unlock()
	return nil
}

func (s *Store) GlobalStat(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats[name], nil
}

func (s *Store) updateProfile(ctx context.Context, userID string, create bool, fn func(*model.Profile)) (model.Profile, error) {
	if err := ctx.Err(); err != nil {
		return model.Profile{}, err
	}
	unlock := s.locks.lock("profile:" + userID)
	defer unlock()

	s.mu.RLock()
	current, ok := s.profiles[userID]
	s.mu.RUnlock()
	if !ok && !create {
		return model.Profile{}, myerrors.New(myerrors.KindNotFound, "profile %s not found", userID)
	}
	current = current.Clone()
	fn(&current)
	current.UserID = userID
	if s.persist != nil {
		if err := s.persist.SaveProfile(current); err != nil {
			return model.Profile{}, err
		}
	}
	s.mu.Lock()
	s.profiles[userID] = current.Clone()
	s.mu.Unlock()
	return current, nil
}

// ---- notifications ----

func (s *Store) AppendNotification(ctx context.Context, n model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.locks.lock("notifications:" + n.UserID)
	defer unlock()

	if s.persist != nil {
		if err := s.persist.SaveNotification(n); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n.Clone())
	s.mu.Unlock()
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	list := s.notifications[userID]
	out := make([]model.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i].Clone())
	}
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
