package services

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/model"
	"blood-link/internal/request-service/core/myerrors"
)

func TestListMine(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	e.profile(t, "req", "A+", nil)
	e.profile(t, "other", "A+", nil)

	first := e.create(t, "req", "A+", 1, "routine", "City Hospital")
	e.clock.Advance(time.Minute)
	second := e.create(t, "req", "A+", 1, "priority", "City Hospital")
	e.create(t, "other", "A+", 1, "routine", "City Hospital")
	if _, err := e.requests.CancelRequest(ctx, first.ID, "req"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	all, err := e.requests.ListMine(ctx, "req", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 || all[0].ID != second.ID || all[1].ID != first.ID {
		t.Fatalf("want newest first including cancelled, got %+v", all)
	}

	active, err := e.requests.ListMine(ctx, "req", "active")
	if err != nil || len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("active filter: %+v %v", active, err)
	}

	_, err = e.requests.ListMine(ctx, "req", "pending")
	assertKind(t, err, myerrors.KindValidation)
}

func TestListAccepted(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	e.profile(t, "req", "AB+", nil)
	e.profile(t, "d1", "O-", nil)

	earlier := e.create(t, "req", "AB+", 2, "routine", "City Hospital")
	later := e.create(t, "req", "AB+", 2, "routine", "City Hospital")
	if _, err := e.matching.Accept(ctx, earlier.ID, "d1", nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	e.clock.Advance(time.Minute)
	if err := e.store.RecordDonation(ctx, "d1", t0.Add(-100*24*time.Hour)); err != nil {
		t.Fatalf("reset cooldown: %v", err)
	}
	if _, err := e.matching.Accept(ctx, later.ID, "d1", nil); err != nil {
		t.Fatalf("accept: %v", err)
	}

	list, err := e.matching.ListAccepted(ctx, "d1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != later.ID || list[1].ID != earlier.ID {
		t.Fatalf("want most recent acceptance first, got %+v", list)
	}

	if _, err := e.requests.CompleteRequest(ctx, earlier.ID, "req"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	list, _ = e.matching.ListAccepted(ctx, "d1")
	if len(list) != 1 || list[0].ID != later.ID {
		t.Fatalf("completed requests leave the accepted list, got %+v", list)
	}
	if none, _ := e.matching.ListAccepted(ctx, "req"); len(none) != 0 {
		t.Fatalf("requester has accepted nothing: %+v", none)
	}
}

func TestListNotifications(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	ns := NewNotificationService(mylogger.NewWithWriter(mylogger.LevelError, io.Discard), e.store)

	for i := 0; i < DefaultNotificationLimit+5; i++ {
		n := model.Notification{ID: fmt.Sprintf("n%03d", i), UserID: "u1", SentAt: t0.Add(time.Duration(i) * time.Second)}
		if err := e.store.AppendNotification(ctx, n); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	list, err := ns.ListNotifications(ctx, "u1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != DefaultNotificationLimit || list[0].ID != fmt.Sprintf("n%03d", DefaultNotificationLimit+4) {
		t.Fatalf("default page: %d entries, first %+v", len(list), list[0])
	}
	two, _ := ns.ListNotifications(ctx, "u1", 2)
	if len(two) != 2 {
		t.Fatalf("limit ignored: %d", len(two))
	}
	for _, bad := range []int{-1, MaxNotificationLimit + 1} {
		_, err := ns.ListNotifications(ctx, "u1", bad)
		assertKind(t, err, myerrors.KindValidation)
	}
}
