package services

import (
	"context"
	"time"

	"blood-link/internal/mylogger"
	"blood-link/internal/request-service/core/ports"
)

// Sweeper drives the two periodic jobs: request expiry and tracking deadlines.
type Sweeper struct {
	mylog            mylogger.Logger
	requests         ports.IRequestService
	tracking         ports.ITrackingService
	expiryInterval   time.Duration
	trackingInterval time.Duration
}

func NewSweeper(log mylogger.Logger, requests ports.IRequestService, tracking ports.ITrackingService, expiryInterval, trackingInterval time.Duration) *Sweeper {
	if expiryInterval <= 0 {
		expiryInterval = 5 * time.Minute
	}
	if trackingInterval <= 0 {
		trackingInterval = time.Minute
	}
	return &Sweeper{
		mylog:            log,
		requests:         requests,
		tracking:         tracking,
		expiryInterval:   expiryInterval,
		trackingInterval: trackingInterval,
	}
}

// Run blocks until ctx is done. Both jobs also run once at start so deadlines missed
// while the process was down are handled right away.
func (s *Sweeper) Run(ctx context.Context) {
	log := s.mylog.Action("Sweeper")
	log.Info("sweeper started", "expiry-interval", s.expiryInterval.String(), "tracking-interval", s.trackingInterval.String())

	expiryTicker := time.NewTicker(s.expiryInterval)
	defer expiryTicker.Stop()
	trackingTicker := time.NewTicker(s.trackingInterval)
	defer trackingTicker.Stop()

	s.SweepExpired(ctx)
	s.SweepDeadlines(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-expiryTicker.C:
			s.SweepExpired(ctx)
		case <-trackingTicker.C:
			s.SweepDeadlines(ctx)
		}
	}
}

func (s *Sweeper) SweepExpired(ctx context.Context) {
	n, err := s.requests.ExpireDue(ctx)
	if err != nil {
		s.mylog.Action("SweepExpired").Error("expiry sweep finished with errors", err, "expired", n)
		return
	}
	if n > 0 {
		s.mylog.Action("SweepExpired").Info("expired requests", "count", n)
	}
}

func (s *Sweeper) SweepDeadlines(ctx context.Context) {
	n, err := s.tracking.CheckDeadlines(ctx)
	if err != nil {
		s.mylog.Action("SweepDeadlines").Error("deadline sweep finished with errors", err, "prompted", n)
		return
	}
	if n > 0 {
		s.mylog.Action("SweepDeadlines").Info("arrival prompts sent", "count", n)
	}
}
