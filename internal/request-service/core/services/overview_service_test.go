package services

import (
	"context"
	"io"
	"testing"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/model"
)

func TestSystemOverview(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, Options{})
	overview := NewOverviewService(mylogger.NewWithWriter(mylogger.LevelError, io.Discard), e.store, Options{Now: e.clock.Now})

	empty, err := overview.GetSystemOverview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if empty.TotalRequests != 0 || empty.Donations != 0 {
		t.Fatalf("fresh store overview: %+v", empty)
	}

	e.profile(t, "req", "AB+", nil)
	e.profile(t, "d1", "O-", nil)
	done := e.create(t, "req", "AB+", 1, "emergency", "City Hospital")
	if _, err := e.matching.Accept(ctx, done.ID, "d1", nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.requests.CompleteRequest(ctx, done.ID, "req"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	e.create(t, "req", "AB+", 2, "routine", "City Hospital")

	got, err := overview.GetSystemOverview(ctx)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if got.TotalRequests != 2 || got.ActiveRequests != 1 || got.ByStatus[model.StatusCompleted] != 1 {
		t.Fatalf("counts: %+v", got)
	}
	if got.Donations != 1 || got.AvailableDonors != 2 {
		t.Fatalf("donations=%d donors=%d", got.Donations, got.AvailableDonors)
	}
	if got.Timestamp != t0.UTC().Format("2006-01-02T15:04:05Z07:00") {
		t.Fatalf("timestamp %s", got.Timestamp)
	}
}
