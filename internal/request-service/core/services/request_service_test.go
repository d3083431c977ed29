package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"blood-link/internal/request-service/core/domain/dto"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
)

func TestCreateRequestValidation(t *testing.T) {
	e := newEnv(t, Options{})
	e.profile(t, "req", "A+", nil)
	if _, err := e.store.UpsertProfile(context.Background(), model.Profile{UserID: "nophone", Name: "No Phone", BloodGroup: model.APos}); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	valid := dto.CreateRequestDto{RequesterID: "req", BloodGroup: "A+", UnitsNeeded: 1, Urgency: "routine", Hospital: "City Hospital"}
	cases := []struct {
		name   string
		mutate func(*dto.CreateRequestDto)
	}{
		{"missing requester", func(d *dto.CreateRequestDto) { d.RequesterID = "" }},
		{"no profile", func(d *dto.CreateRequestDto) { d.RequesterID = "ghost" }},
		{"incomplete profile", func(d *dto.CreateRequestDto) { d.RequesterID = "nophone" }},
		{"unknown blood group", func(d *dto.CreateRequestDto) { d.BloodGroup = "C+" }},
		{"zero units", func(d *dto.CreateRequestDto) { d.UnitsNeeded = 0 }},
		{"eleven units", func(d *dto.CreateRequestDto) { d.UnitsNeeded = 11 }},
		{"unknown urgency", func(d *dto.CreateRequestDto) { d.Urgency = "whenever" }},
		{"unknown hospital", func(d *dto.CreateRequestDto) { d.Hospital = "Nowhere General" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			_, err := e.requests.CreateRequest(context.Background(), req)
			assertKind(t, err, myerrors.KindValidation)
		})
	}

	if list, _ := e.store.ListByStatus(context.Background(), model.StatusActive); len(list) != 0 {
		t.Fatalf("rejected requests were stored: %d", len(list))
	}
}

func TestCreateRequestFlagsCriticalBulk(t *testing.T) {
	e := newEnv(t, Options{})
	e.profile(t, "req", "A+", nil)

	r := e.create(t, "req", "A+", 6, "critical", "city hospital")
	if !r.Flagged || r.Status != model.StatusActive {
		t.Fatalf("expected flagged active request, got %+v", r)
	}
	if !r.ExpiresAt.Equal(t0.Add(30 * time.Minute)) {
		t.Fatalf("critical requests expire after 30 minutes, got %v", r.ExpiresAt)
	}
	if r.HospitalName != "City Hospital" || r.HospitalLocation == nil {
		t.Fatalf("hospital not resolved: %+v", r)
	}
	if r.ContactNumber != "+1-555-req" {
		t.Fatalf("contact should default to the profile phone, got %q", r.ContactNumber)
	}

	plain := e.create(t, "req", "A+", 5, "critical", "City Hospital")
	if plain.Flagged {
		t.Fatalf("five units is not flagged")
	}

	if len(e.pub.created) != 2 {
		t.Fatalf("expected 2 created events, got %d", len(e.pub.created))
	}
	if got := e.pub.created[0].CompatibleDonors; len(got) != 4 {
		t.Fatalf("A+ accepts from 4 groups, got %v", got)
	}
	if ev := e.pub.events(); len(ev) != 1 || ev[0] != model.EventRequestFlagged {
		t.Fatalf("expected a single flagged event, got %v", ev)
	}
}

// Scenario E
func TestCreateRequestRateLimit(t *testing.T) {
	e := newEnv(t, Options{})
	e.profile(t, "req", "O+", nil)
	e.create(t, "req", "O+", 1, "routine", "City Hospital")
	e.create(t, "req", "O+", 1, "routine", "City Hospital")

	_, err := e.requests.CreateRequest(context.Background(), dto.CreateRequestDto{
		RequesterID: "req", BloodGroup: "O+", UnitsNeeded: 1, Urgency: "routine", Hospital: "City Hospital",
	})
	if !errors.Is(err, myerrors.ErrRateLimit) {
		t.Fatalf("expected rate limit, got %v", err)
	}
	if n, _ := e.store.CountActiveByRequester(context.Background(), "req"); n != 2 {
		t.Fatalf("third request must not be written, active=%d", n)
	}
	if len(e.pub.created) != 2 {
		t.Fatalf("no event for the rejected request")
	}
}

func TestRateLimitCountsOnlyActive(t *testing.T) {
	e := newEnv(t, Options{})
	e.profile(t, "req", "O+", nil)
	first := e.create(t, "req", "O+", 1, "routine", "City Hospital")
	e.create(t, "req", "O+", 1, "routine", "City Hospital")

	if _, err := e.requests.CancelRequest(context.Background(), first.ID, "req"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	e.create(t, "req", "O+", 1, "routine", "City Hospital")
}

func TestCancelRequest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	e.profile(t, "req", "A+", nil)
	e.profile(t, "d1", "O-", nil)
	r := e.create(t, "req", "A+", 2, "emergency", "City Hospital")

	if _, err := e.matching.Accept(ctx, r.ID, "d1", nil); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := e.requests.CancelRequest(ctx, "missing", "req")
	assertKind(t, err, myerrors.KindNotFound)

	_, err = e.requests.CancelRequest(ctx, r.ID, "d1")
	assertKind(t, err, myerrors.KindPermission)

	cancelled, err := e.requests.CancelRequest(ctx, r.ID, "req")
	if err != nil {
		t.Fatalf("cancel accepted request: %v", err)
	}
	if cancelled.Status != model.StatusCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected %+v", cancelled)
	}
	if e.notes.count("d1", model.EventRequestCancelled) != 1 {
		t.Fatalf("accepted donor not told about the cancellation")
	}
	s, _ := e.store.GetSession(ctx, r.ID, "d1")
	if s.Status != model.SessionClosed {
		t.Fatalf("tracking session left %s", s.Status)
	}

	_, err = e.requests.CancelRequest(ctx, r.ID, "req")
	assertKind(t, err, myerrors.KindInvalidState)

	_, err = e.matching.Accept(ctx, r.ID, "d2", nil)
	assertKind(t, err, myerrors.KindInvalidState)
}

func TestCompleteRequest(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	e.profile(t, "req", "B+", nil)
	e.profile(t, "d1", "B-", nil)
	e.profile(t, "d2", "O+", nil)
	r := e.create(t, "req", "B+", 3, "priority", "City Hospital")

	_, err := e.requests.CompleteRequest(ctx, r.ID, "req")
	assertKind(t, err, myerrors.KindInvalidState)

	for _, d := range []string{"d1", "d2"} {
		if _, err := e.matching.Accept(ctx, r.ID, d, nil); err != nil {
			t.Fatalf("accept %s: %v", d, err)
		}
	}

	_, err = e.requests.CompleteRequest(ctx, r.ID, "d1")
	assertKind(t, err, myerrors.KindPermission)

	done, err := e.requests.CompleteRequest(ctx, r.ID, "req")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.StatusCompleted || done.CompletedAt == nil || done.UnitsFulfilled != 2 {
		t.Fatalf("partial fulfilment still completes, got %+v", done)
	}
	for _, d := range []string{"d1", "d2"} {
		p, _ := e.store.GetProfile(ctx, d)
		if p.DonationCount != 1 {
			t.Fatalf("%s donation count %d", d, p.DonationCount)
		}
	}
	if n, _ := e.store.GlobalStat(ctx, GlobalDonationsStat); n != 1 {
		t.Fatalf("global donations %d", n)
	}

	_, err = e.requests.CompleteRequest(ctx, r.ID, "req")
	assertKind(t, err, myerrors.KindInvalidState)
}

// Scenario C and idempotence
func TestExpireDue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	e.profile(t, "req", "A+", nil)
	e.profile(t, "other", "AB+", nil)
	e.profile(t, "d1", "A+", nil)

	critical := e.create(t, "req", "A+", 1, "critical", "City Hospital")
	routine := e.create(t, "other", "AB+", 1, "routine", "City Hospital")
	accepted := e.create(t, "req", "A+", 1, "critical", "City Hospital")
	if _, err := e.matching.Accept(ctx, accepted.ID, "d1", nil); err != nil {
		t.Fatalf("accept: %v", err)
	}

	e.clock.Advance(30 * time.Minute)
	if n, err := e.requests.ExpireDue(ctx); err != nil || n != 0 {
		t.Fatalf("expiry is strict, got n=%d err=%v", n, err)
	}

	e.clock.Advance(time.Minute)
	n, err := e.requests.ExpireDue(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 expired, got n=%d err=%v", n, err)
	}
	got, _ := e.store.Get(ctx, critical.ID)
	if got.Status != model.StatusExpired || got.ExpiredAt == nil {
		t.Fatalf("critical request not expired: %+v", got)
	}
	if got, _ := e.store.Get(ctx, accepted.ID); got.Status != model.StatusAccepted {
		t.Fatalf("accepted request was expired")
	}
	if got, _ := e.store.Get(ctx, routine.ID); got.Status != model.StatusActive {
		t.Fatalf("routine request expired early")
	}
	if e.notes.count("req", model.EventRequestExpired) != 1 {
		t.Fatalf("requester not notified")
	}

	key := archiveKey(got)
	body, ok := e.archive.objs[key]
	if !ok {
		t.Fatalf("expired request not archived under %s, have %v", key, e.archive.objs)
	}
	var archived model.Request
	if err := json.Unmarshal(body, &archived); err != nil || archived.ID != critical.ID {
		t.Fatalf("archive body %s err=%v", body, err)
	}

	if n, err := e.requests.ExpireDue(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep changed state: n=%d err=%v", n, err)
	}
	if len(e.archive.objs) != 1 {
		t.Fatalf("second sweep archived again")
	}
}

func TestExpireDueRetention(t *testing.T) {
	ctx := context.Background()

	e := newEnv(t, Options{DeleteExpired: true})
	e.profile(t, "req", "A+", nil)
	r := e.create(t, "req", "A+", 1, "critical", "City Hospital")
	e.clock.Advance(31 * time.Minute)
	if n, _ := e.requests.ExpireDue(ctx); n != 1 {
		t.Fatalf("expected 1 expired, got %d", n)
	}
	if _, err := e.store.Get(ctx, r.ID); !errors.Is(err, myerrors.ErrNotFound) {
		t.Fatalf("archived request should be deleted, got %v", err)
	}

	e = newEnv(t, Options{DeleteExpired: true})
	e.archive.fail = true
	e.profile(t, "req", "A+", nil)
	r = e.create(t, "req", "A+", 1, "critical", "City Hospital")
	e.clock.Advance(31 * time.Minute)
	if n, _ := e.requests.ExpireDue(ctx); n != 1 {
		t.Fatalf("archive failure must not block expiry, got %d", n)
	}
	got, err := e.store.Get(ctx, r.ID)
	if err != nil || got.Status != model.StatusExpired {
		t.Fatalf("unarchived request must be kept as expired, got %+v err=%v", got, err)
	}
}

func TestCollaboratorFailuresAreSuppressed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	e.notes.fail = true
	e.profile(t, "req", "A+", nil)
	e.profile(t, "d1", "O-", nil)

	r := e.create(t, "req", "A+", 1, "routine", "City Hospital")
	if _, err := e.matching.Accept(ctx, r.ID, "d1", nil); err != nil {
		t.Fatalf("accept must not fail on notifier errors: %v", err)
	}
	if _, err := e.requests.CompleteRequest(ctx, r.ID, "req"); err != nil {
		t.Fatalf("complete must not fail on notifier errors: %v", err)
	}
}
