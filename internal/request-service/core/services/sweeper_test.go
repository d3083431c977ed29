package services

import (
	"context"
	"io"
	"testing"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/domain/model"
)

func TestSweeperRunsBothJobs(t *testing.T) {
	e := newEnv(t, Options{})
	e.profile(t, "req", "A+", nil)
	e.profile(t, "other", "AB+", nil)
	e.profile(t, "d1", "O-", nil)

	stale := e.create(t, "req", "A+", 1, "critical", "City Hospital")
	tracked := e.create(t, "other", "AB+", 1, "routine", "City Hospital")
	if _, err := e.matching.Accept(context.Background(), tracked.ID, "d1", nil); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := e.tracking.ReportLocation(context.Background(), tracked.ID, "d1", nearbyPoint); err != nil {
		t.Fatalf("report: %v", err)
	}
	e.clock.Advance(time.Hour)

	sw := NewSweeper(mylogger.NewWithWriter(mylogger.LevelError, io.Discard), e.requests, e.tracking, 10*time.Millisecond, 10*time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop with its context")
	}

	got, _ := e.requests.GetRequest(context.Background(), stale.ID)
	if got.Status != model.StatusExpired {
		t.Fatalf("stale request not expired: %s", got.Status)
	}
	if n := e.notes.count("other", model.EventArrivalPrompt); n != 1 {
		t.Fatalf("expected one deadline prompt, got %d", n)
	}
}
